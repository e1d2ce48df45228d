package utils

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Size limits (in bytes)
const (
	MaxJSONSize        = 1 * 1024 * 1024  // 1MB - control request bodies
	DefaultPackageSize = 32 * 1024 * 1024 // 32MB - import bodies
)

// String length limits
const (
	MaxIDLength          = 64
	MaxNameLength        = 256
	MaxDescriptionLength = 2048
	MaxLabelLength       = 128
)

// Regular expressions for validation
var (
	// ModuleIDPattern is the only accepted shape of a module id
	ModuleIDPattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)
	// PermissionPattern matches <module>.<resource>.<action>
	PermissionPattern = regexp.MustCompile(`^([a-z][a-z0-9_-]*)\.([a-z][a-z0-9_-]*)\.([a-z][a-z0-9_-]*)$`)
	// TableNamePattern matches SQL identifiers a module may own
	TableNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)
)

// ValidateString validates a string field with length and content checks
func ValidateString(value, fieldName string, minLen, maxLen int, required bool) error {
	if required && value == "" {
		return fmt.Errorf("%s is required", fieldName)
	}

	if value == "" && !required {
		return nil
	}

	length := utf8.RuneCountInString(value)
	if length < minLen {
		return fmt.Errorf("%s must be at least %d characters", fieldName, minLen)
	}
	if length > maxLen {
		return fmt.Errorf("%s must not exceed %d characters", fieldName, maxLen)
	}

	if strings.Contains(value, "\x00") {
		return fmt.Errorf("%s contains invalid characters", fieldName)
	}

	return nil
}

// ValidateID validates a module id taken from a request
func ValidateID(id, fieldName string, required bool) error {
	if err := ValidateString(id, fieldName, 1, MaxIDLength, required); err != nil {
		return err
	}

	if id != "" && !ModuleIDPattern.MatchString(id) {
		return fmt.Errorf("%s must match %s", fieldName, ModuleIDPattern.String())
	}

	return nil
}

// ValidateName validates a name field
func ValidateName(name, fieldName string) error {
	return ValidateString(name, fieldName, 1, MaxNameLength, true)
}

// ValidateDescription validates a description field
func ValidateDescription(description, fieldName string, required bool) error {
	return ValidateString(description, fieldName, 0, MaxDescriptionLength, required)
}
