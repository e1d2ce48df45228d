package registry

import "github.com/GriffinCanCode/AdminConsole/backend/internal/shared/types"

// Filter selects records in List
type Filter func(rec types.Record) bool

// InState matches records in any of the given states
func InState(states ...types.State) Filter {
	return func(rec types.Record) bool {
		for _, s := range states {
			if rec.State == s {
				return true
			}
		}
		return false
	}
}

// NotInState matches records in none of the given states
func NotInState(states ...types.State) Filter {
	in := InState(states...)
	return func(rec types.Record) bool {
		return !in(rec)
	}
}

// DependsOn matches records that list id as a dependency
func DependsOn(id string) Filter {
	return func(rec types.Record) bool {
		return rec.Descriptor.DependsOn(id)
	}
}

// Except excludes one module id
func Except(id string) Filter {
	return func(rec types.Record) bool {
		return rec.ID() != id
	}
}

func matchAll(rec types.Record, filters []Filter) bool {
	for _, f := range filters {
		if f != nil && !f(rec) {
			return false
		}
	}
	return true
}
