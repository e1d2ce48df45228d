package lifecycle

import (
	"path"
	"sort"

	"github.com/GriffinCanCode/AdminConsole/backend/internal/domain/registry"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/shared/types"
)

// RoutePrefix is where module API routes are mounted
const RoutePrefix = "/api/modules"

// MountedRoute is a module route as exposed by the console
type MountedRoute struct {
	ModuleID   string   `json:"module_id"`
	Path       string   `json:"path"`
	Methods    []string `json:"methods"`
	Permission string   `json:"permission,omitempty"`
}

// MountedNav is a navigation entry contributed by an active module
type MountedNav struct {
	ModuleID string `json:"module_id"`
	types.NavEntry
}

// MountTable is what the presentation layer renders: routes and navigation
// of every active module whose directory is present
type MountTable struct {
	Routes     []MountedRoute `json:"routes"`
	Navigation []MountedNav   `json:"navigation"`
	Revision   uint64         `json:"revision"`
}

// BuildMountTable derives the mount table from a store snapshot
func BuildMountTable(snap registry.Snapshot) MountTable {
	table := MountTable{
		Routes:     []MountedRoute{},
		Navigation: []MountedNav{},
		Revision:   snap.Revision(),
	}

	for _, rec := range snap.List(registry.InState(types.StateActive)) {
		if rec.Missing {
			continue
		}
		for _, route := range rec.Descriptor.APIRoutes {
			methods := append([]string(nil), route.Methods...)
			sort.Strings(methods)
			table.Routes = append(table.Routes, MountedRoute{
				ModuleID:   rec.ID(),
				Path:       MountPath(rec.ID(), route.Path),
				Methods:    methods,
				Permission: route.Permission,
			})
		}
		for _, nav := range rec.Descriptor.Navigation {
			table.Navigation = append(table.Navigation, MountedNav{ModuleID: rec.ID(), NavEntry: nav})
		}
	}
	return table
}

// MountPath returns the console path of a module route
func MountPath(moduleID, routePath string) string {
	return path.Join(RoutePrefix, moduleID, routePath)
}
