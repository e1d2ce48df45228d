// Package storage is the SQLite storage collaborator of the module lifecycle.
//
// It applies a module's schema on activation and drops its tables on a
// confirmed removal. A ledger table, module_tables, records which module
// owns which table; a declared table that already exists without being
// owned by the activating module is a schema conflict.
package storage
