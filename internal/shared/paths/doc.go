// Package paths describes the layout of the module source area.
//
// # Directory Structure
//
//	<root>/
//	  ├── inventory/            (live module: descriptor + sources)
//	  │   ├── module.json
//	  │   └── database/schema.sql
//	  ├── .removed/inventory/   (tombstone of a removed module)
//	  ├── .staging-<ulid>/      (import being written)
//	  └── .trash-<ulid>/        (module being replaced by a swap)
//
// Every dot-prefixed top-level entry belongs to the registry and is never
// treated as a module.
//
// # Usage
//
//	layout, err := paths.NewLayout("./modules")
//	dir := layout.ModuleDir("inventory")
//	rel, err := paths.CleanRelative("database/schema.sql")
package paths
