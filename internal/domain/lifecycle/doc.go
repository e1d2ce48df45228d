// Package lifecycle orchestrates module state transitions.
//
// State machine:
//
//	discovered -> validated   security validator passes
//	validated  -> active      schema applied, routes and navigation mounted
//	active     -> disabled    routes and navigation unmounted, tables kept
//	disabled   -> active      light re-validation (permissions, tables)
//	*          -> removed     no dependents; optional confirmed table drop
//
// Every mutating operation holds the module's store lease for its whole
// duration and commits with a compare-and-swap, so concurrent requests on
// one module resolve to one winner and conflicts for the rest. The storage
// engine is reached only through the Migrator interface.
package lifecycle
