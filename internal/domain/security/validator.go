package security

import (
	"fmt"
	"html"
	"sort"
	"strings"

	"github.com/GriffinCanCode/AdminConsole/backend/internal/domain/descriptor"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/shared/paths"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/shared/types"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/shared/utils"
	"github.com/gabriel-vasile/mimetype"
	"github.com/microcosm-cc/bluemonday"
)

// ReservedIDs cannot be used as module ids because they shadow console routes
var ReservedIDs = []string{
	"admin", "api", "auth", "core", "health", "login", "logout",
	"metrics", "modules", "static", "system",
}

// AllowedMethods lists the HTTP methods a module route may declare
var AllowedMethods = []string{"DELETE", "GET", "PATCH", "POST", "PUT"}

// executableTypes are refused anywhere in a module tree
var executableTypes = []string{
	"application/x-elf",
	"application/x-mach-binary",
	"application/vnd.microsoft.portable-executable",
}

// Env is the registry state a validation runs against
type Env struct {
	// Records are the other modules known to the store
	Records []types.Record
}

// Validator runs the module policy checks
type Validator struct {
	hostVersion string
	reserved    map[string]bool
	markup      *bluemonday.Policy
}

// NewValidator creates a validator for the given host version
func NewValidator(hostVersion string) *Validator {
	reserved := make(map[string]bool, len(ReservedIDs))
	for _, id := range ReservedIDs {
		reserved[id] = true
	}
	return &Validator{
		hostVersion: hostVersion,
		reserved:    reserved,
		markup:      bluemonday.StrictPolicy(),
	}
}

// HostVersion returns the version compatibleVersions is checked against
func (v *Validator) HostVersion() string {
	return v.hostVersion
}

// Validate runs every check on a descriptor and its file set
func (v *Validator) Validate(desc types.Descriptor, files map[string][]byte, env Env) types.ValidationResult {
	result := types.ValidationResult{OK: true, Violations: []types.Violation{}}

	v.checkIdentity(&desc, &result)
	v.checkMetadata(&desc, &result)
	v.checkFiles(&desc, files, &result)
	v.checkPermissions(&desc, &result)
	v.checkTables(&desc, env, &result)
	v.checkDependencies(&desc, env, &result)
	v.checkVersion(&desc, &result)
	v.checkRoutes(&desc, &result)
	v.checkMarkup(&desc, &result)

	return result
}

// ValidateLight re-checks only what can change while files stay the same:
// permission well-formedness and table ownership
func (v *Validator) ValidateLight(desc types.Descriptor, env Env) types.ValidationResult {
	result := types.ValidationResult{OK: true, Violations: []types.Violation{}}

	v.checkPermissions(&desc, &result)
	v.checkTables(&desc, env, &result)

	return result
}

func (v *Validator) checkIdentity(desc *types.Descriptor, result *types.ValidationResult) {
	if !utils.ModuleIDPattern.MatchString(desc.ID) {
		result.Add(types.ViolationIdentity, desc.ID, fmt.Sprintf("id must match %s", utils.ModuleIDPattern.String()))
		return
	}
	if len(desc.ID) > utils.MaxIDLength {
		result.Add(types.ViolationIdentity, desc.ID, fmt.Sprintf("id must not exceed %d characters", utils.MaxIDLength))
	}
	if v.reserved[desc.ID] {
		result.Add(types.ViolationIdentity, desc.ID, "id is reserved")
	}
}

func (v *Validator) checkMetadata(desc *types.Descriptor, result *types.ValidationResult) {
	if err := utils.ValidateName(desc.Name, "name"); err != nil {
		result.Add(types.ViolationDescriptor, "name", err.Error())
	}
	if err := utils.ValidateDescription(desc.Description, "description", false); err != nil {
		result.Add(types.ViolationDescriptor, "description", err.Error())
	}
}

func (v *Validator) checkFiles(desc *types.Descriptor, files map[string][]byte, result *types.ValidationResult) {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		topLevel []string
		shadowed map[string]bool
	)
	for _, name := range names {
		clean, err := paths.CleanRelative(name)
		if err != nil {
			result.Add(types.ViolationPath, name, err.Error())
			continue
		}
		if clean != name {
			result.Add(types.ViolationPath, name, fmt.Sprintf("path is not canonical (want %q)", clean))
			continue
		}
		if !strings.Contains(name, "/") {
			topLevel = append(topLevel, name)
		}
		// a file cannot also be a directory holding another file
		for i := strings.Index(name, "/"); i >= 0; i = nextSlash(name, i) {
			parent := name[:i]
			if _, ok := files[parent]; ok && !shadowed[parent] {
				if shadowed == nil {
					shadowed = make(map[string]bool)
				}
				shadowed[parent] = true
				result.Add(types.ViolationPath, parent, fmt.Sprintf("path is both a file and the directory of %q", name))
			}
		}
		if mt := executableType(files[name]); mt != "" {
			result.Add(types.ViolationContent, name, fmt.Sprintf("native executable (%s) not allowed", mt))
		}
	}

	found, err := descriptor.Locate(topLevel)
	switch {
	case err != nil:
		result.Add(types.ViolationDescriptor, "", err.Error())
	case found == "":
		result.Add(types.ViolationDescriptor, "", fmt.Sprintf("no descriptor file (expected one of %v)", descriptor.FileNames()))
	}

	if len(desc.Database.Tables) > 0 || desc.Database.Schema != "" {
		schema := desc.SchemaPath()
		if clean, err := paths.CleanRelative(schema); err != nil {
			result.Add(types.ViolationPath, schema, "schema path: "+err.Error())
		} else if _, ok := files[clean]; !ok {
			result.Add(types.ViolationDescriptor, schema, "schema file is missing")
		}
	}
}

func nextSlash(name string, after int) int {
	if i := strings.Index(name[after+1:], "/"); i >= 0 {
		return after + 1 + i
	}
	return -1
}

func executableType(content []byte) string {
	for mt := mimetype.Detect(content); mt != nil; mt = mt.Parent() {
		for _, exe := range executableTypes {
			if mt.Is(exe) {
				return exe
			}
		}
	}
	return ""
}

func (v *Validator) checkPermissions(desc *types.Descriptor, result *types.ValidationResult) {
	declared := make(map[string]bool, len(desc.Permissions))
	for _, perm := range desc.Permissions {
		declared[perm] = true

		m := utils.PermissionPattern.FindStringSubmatch(perm)
		if m == nil {
			result.Add(types.ViolationPermission, perm, "permission must have the form <module>.<resource>.<action>")
			continue
		}
		if m[1] != desc.ID {
			result.Add(types.ViolationPermission, perm, fmt.Sprintf("permission is outside the module namespace %q", desc.ID))
		}
	}

	for _, route := range desc.APIRoutes {
		if route.Permission != "" && !declared[route.Permission] {
			result.Add(types.ViolationPermission, route.Permission, fmt.Sprintf("route %s guards with an undeclared permission", route.Path))
		}
	}
	for _, nav := range desc.Navigation {
		for _, perm := range nav.Permissions {
			if !declared[perm] {
				result.Add(types.ViolationPermission, perm, fmt.Sprintf("navigation %s requires an undeclared permission", nav.Path))
			}
		}
	}
}

func (v *Validator) checkTables(desc *types.Descriptor, env Env, result *types.ValidationResult) {
	owners := make(map[string]string)
	for _, rec := range env.Records {
		if rec.ID() == desc.ID {
			continue
		}
		if rec.State != types.StateActive && rec.State != types.StateValidated {
			continue
		}
		for _, table := range rec.Descriptor.Database.Tables {
			owners[table] = rec.ID()
		}
	}

	seen := make(map[string]bool, len(desc.Database.Tables))
	for _, table := range desc.Database.Tables {
		if !utils.TableNamePattern.MatchString(table) {
			result.Add(types.ViolationTable, table, fmt.Sprintf("table name must match %s", utils.TableNamePattern.String()))
			continue
		}
		if seen[table] {
			result.Add(types.ViolationTable, table, "table declared twice")
			continue
		}
		seen[table] = true
		if owner, ok := owners[table]; ok {
			result.Add(types.ViolationTable, table, fmt.Sprintf("table is owned by module %q", owner))
		}
	}
}

func (v *Validator) checkDependencies(desc *types.Descriptor, env Env, result *types.ValidationResult) {
	known := make(map[string]types.State, len(env.Records))
	for _, rec := range env.Records {
		known[rec.ID()] = rec.State
	}

	for _, dep := range desc.Dependencies {
		if dep == desc.ID {
			result.Add(types.ViolationDependency, dep, "module cannot depend on itself")
			continue
		}
		state, ok := known[dep]
		switch {
		case !ok:
			result.Add(types.ViolationDependency, dep, "dependency is not installed")
		case state == types.StateRemoved:
			result.Add(types.ViolationDependency, dep, "dependency has been removed")
		}
	}
}

func (v *Validator) checkVersion(desc *types.Descriptor, result *types.ValidationResult) {
	if Canonical(desc.Version) == "" {
		result.Add(types.ViolationVersion, desc.Version, "version is not a semantic version")
	}

	if !Compatible(v.hostVersion, desc.CompatibleVersions) {
		result.Add(types.ViolationVersion, v.hostVersion, fmt.Sprintf("host version is not in compatibleVersions %v", desc.CompatibleVersions))
	}
}

func (v *Validator) checkRoutes(desc *types.Descriptor, result *types.ValidationResult) {
	allowed := make(map[string]bool, len(AllowedMethods))
	for _, m := range AllowedMethods {
		allowed[m] = true
	}

	for _, route := range desc.APIRoutes {
		if !strings.HasPrefix(route.Path, "/") {
			result.Add(types.ViolationRoute, route.Path, "route path must start with /")
		}
		for _, seg := range strings.Split(route.Path, "/") {
			if seg == ".." || seg == "." {
				result.Add(types.ViolationRoute, route.Path, "route path must not contain dot segments")
				break
			}
		}
		if len(route.Methods) == 0 {
			result.Add(types.ViolationRoute, route.Path, "route declares no methods")
		}
		for _, m := range route.Methods {
			if !allowed[m] {
				result.Add(types.ViolationRoute, route.Path, fmt.Sprintf("method %q is not allowed", m))
			}
		}
	}
}

func (v *Validator) checkMarkup(desc *types.Descriptor, result *types.ValidationResult) {
	if !v.plain(desc.Name) {
		result.Add(types.ViolationMarkup, desc.Name, "name must be plain text")
	}
	for _, nav := range desc.Navigation {
		if !v.plain(nav.Label) {
			result.Add(types.ViolationMarkup, nav.Label, "navigation label must be plain text")
		}
		if len(nav.Label) > utils.MaxLabelLength {
			result.Add(types.ViolationMarkup, nav.Label, fmt.Sprintf("navigation label exceeds %d characters", utils.MaxLabelLength))
		}
	}
}

// plain reports whether s survives the strict markup policy unchanged
func (v *Validator) plain(s string) bool {
	return html.UnescapeString(v.markup.Sanitize(s)) == s
}
