package security

import (
	"strings"

	"golang.org/x/mod/semver"
)

// Canonical returns the canonical semver form of a version ("1.0" -> "v1.0.0"),
// or "" when it is not a semantic version
func Canonical(version string) string {
	version = strings.TrimSpace(version)
	if version == "" {
		return ""
	}
	if !strings.HasPrefix(version, "v") {
		version = "v" + version
	}
	return semver.Canonical(version)
}

// Compatible reports whether host is accepted by a compatibleVersions set.
// An empty set accepts any host.
func Compatible(host string, accepted []string) bool {
	if len(accepted) == 0 {
		return true
	}
	h := Canonical(host)
	if h == "" {
		return false
	}
	for _, a := range accepted {
		if Canonical(a) == h {
			return true
		}
	}
	return false
}
