package descriptor

import (
	"sort"
	"strings"
)

// Format identifies a descriptor encoding
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
	FormatJS   Format = "js"
)

// fileFormats maps every recognised descriptor file name to its format
var fileFormats = map[string]Format{
	"module.json":      FormatJSON,
	"module.yaml":      FormatYAML,
	"module.yml":       FormatYAML,
	"module.toml":      FormatTOML,
	"module.config.js": FormatJS,
}

// FileNames returns the recognised descriptor file names in sorted order
func FileNames() []string {
	names := make([]string, 0, len(fileFormats))
	for name := range fileFormats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FormatOf returns the format of a descriptor file name
func FormatOf(name string) (Format, bool) {
	f, ok := fileFormats[strings.ToLower(name)]
	return f, ok
}

// IsDescriptorFile reports whether a module-relative path is a descriptor file
func IsDescriptorFile(path string) bool {
	if strings.Contains(path, "/") {
		return false
	}
	_, ok := FormatOf(path)
	return ok
}
