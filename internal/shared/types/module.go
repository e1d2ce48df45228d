package types

import "time"

// State represents a module's lifecycle state
type State string

const (
	StateDiscovered State = "discovered"
	StateValidated  State = "validated"
	StateActive     State = "active"
	StateDisabled   State = "disabled"
	StateRemoved    State = "removed"
)

// States lists every lifecycle state in machine order
var States = []State{StateDiscovered, StateValidated, StateActive, StateDisabled, StateRemoved}

// Valid reports whether s is a known state
func (s State) Valid() bool {
	for _, known := range States {
		if s == known {
			return true
		}
	}
	return false
}

// Route is an API route a module exposes under its own prefix
type Route struct {
	Path       string   `json:"path" yaml:"path" toml:"path"`
	Methods    []string `json:"methods" yaml:"methods" toml:"methods"`
	Permission string   `json:"permission,omitempty" yaml:"permission,omitempty" toml:"permission,omitempty"`
}

// NavEntry is a navigation item rendered by the console shell
type NavEntry struct {
	Path        string   `json:"path" yaml:"path" toml:"path"`
	Label       string   `json:"label" yaml:"label" toml:"label"`
	Icon        string   `json:"icon,omitempty" yaml:"icon,omitempty" toml:"icon,omitempty"`
	Permissions []string `json:"permissions,omitempty" yaml:"permissions,omitempty" toml:"permissions,omitempty"`
}

// Database declares the tables a module owns and where its schema lives
type Database struct {
	Tables []string `json:"tables" yaml:"tables" toml:"tables"`
	Schema string   `json:"schema,omitempty" yaml:"schema,omitempty" toml:"schema,omitempty"`
}

// Descriptor is the declarative metadata every module ships
type Descriptor struct {
	ID                 string     `json:"id" yaml:"id" toml:"id"`
	Name               string     `json:"name" yaml:"name" toml:"name"`
	Version            string     `json:"version" yaml:"version" toml:"version"`
	Description        string     `json:"description,omitempty" yaml:"description,omitempty" toml:"description,omitempty"`
	Author             string     `json:"author,omitempty" yaml:"author,omitempty" toml:"author,omitempty"`
	Dependencies       []string   `json:"dependencies,omitempty" yaml:"dependencies,omitempty" toml:"dependencies,omitempty"`
	CompatibleVersions []string   `json:"compatibleVersions,omitempty" yaml:"compatibleVersions,omitempty" toml:"compatibleVersions,omitempty"`
	Permissions        []string   `json:"permissions,omitempty" yaml:"permissions,omitempty" toml:"permissions,omitempty"`
	Roles              []string   `json:"roles,omitempty" yaml:"roles,omitempty" toml:"roles,omitempty"`
	Database           Database   `json:"database" yaml:"database" toml:"database"`
	APIRoutes          []Route    `json:"apiRoutes,omitempty" yaml:"apiRoutes,omitempty" toml:"apiRoutes,omitempty"`
	Navigation         []NavEntry `json:"navigation,omitempty" yaml:"navigation,omitempty" toml:"navigation,omitempty"`

	// Format records which descriptor file the value was parsed from
	Format string `json:"-" yaml:"-" toml:"-"`
}

// DefaultSchemaPath is used when a descriptor declares tables but no schema file
const DefaultSchemaPath = "database/schema.sql"

// SchemaPath returns the module-relative path of the schema file
func (d *Descriptor) SchemaPath() string {
	if d.Database.Schema != "" {
		return d.Database.Schema
	}
	return DefaultSchemaPath
}

// Clone returns a deep copy so callers never share slices with the store
func (d Descriptor) Clone() Descriptor {
	out := d
	out.Dependencies = cloneStrings(d.Dependencies)
	out.CompatibleVersions = cloneStrings(d.CompatibleVersions)
	out.Permissions = cloneStrings(d.Permissions)
	out.Roles = cloneStrings(d.Roles)
	out.Database.Tables = cloneStrings(d.Database.Tables)
	if d.APIRoutes != nil {
		out.APIRoutes = make([]Route, len(d.APIRoutes))
		for i, r := range d.APIRoutes {
			r.Methods = cloneStrings(r.Methods)
			out.APIRoutes[i] = r
		}
	}
	if d.Navigation != nil {
		out.Navigation = make([]NavEntry, len(d.Navigation))
		for i, n := range d.Navigation {
			n.Permissions = cloneStrings(n.Permissions)
			out.Navigation[i] = n
		}
	}
	return out
}

// DependsOn reports whether the descriptor lists id as a dependency
func (d *Descriptor) DependsOn(id string) bool {
	for _, dep := range d.Dependencies {
		if dep == id {
			return true
		}
	}
	return false
}

// Record is a Store entry pairing a descriptor with runtime state.
// Records are values; the store never hands out pointers into its snapshot.
type Record struct {
	Descriptor      Descriptor `json:"descriptor"`
	State           State      `json:"state"`
	ContentHash     string     `json:"content_hash"`
	Missing         bool       `json:"missing,omitempty"` // directory vanished; removal pending
	LastScannedAt   time.Time  `json:"last_scanned_at"`
	LastActivatedAt *time.Time `json:"last_activated_at,omitempty"`
	UpdatedAt       time.Time  `json:"updated_at"`
	Revision        uint64     `json:"revision"`
}

// ID returns the record's module id
func (r *Record) ID() string {
	return r.Descriptor.ID
}

// Clone returns a deep copy of the record
func (r Record) Clone() Record {
	out := r
	out.Descriptor = r.Descriptor.Clone()
	if r.LastActivatedAt != nil {
		t := *r.LastActivatedAt
		out.LastActivatedAt = &t
	}
	return out
}

// ModuleStatus is the summary row served by the status operation
type ModuleStatus struct {
	ID              string     `json:"id"`
	State           State      `json:"state"`
	Version         string     `json:"version"`
	Permissions     []string   `json:"permissions"`
	LastActivatedAt *time.Time `json:"lastActivatedAt,omitempty"`
	Missing         bool       `json:"missing,omitempty"`
}

// ToStatus extracts the status summary from a record
func (r *Record) ToStatus() ModuleStatus {
	perms := cloneStrings(r.Descriptor.Permissions)
	if perms == nil {
		perms = []string{}
	}
	return ModuleStatus{
		ID:              r.Descriptor.ID,
		State:           r.State,
		Version:         r.Descriptor.Version,
		Permissions:     perms,
		LastActivatedAt: r.LastActivatedAt,
		Missing:         r.Missing,
	}
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
