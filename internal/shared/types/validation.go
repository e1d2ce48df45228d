package types

// ViolationKind classifies a security validation failure
type ViolationKind string

const (
	ViolationIdentity   ViolationKind = "identity"
	ViolationPath       ViolationKind = "path"
	ViolationPermission ViolationKind = "permission"
	ViolationTable      ViolationKind = "table"
	ViolationDependency ViolationKind = "dependency"
	ViolationVersion    ViolationKind = "version"
	ViolationRoute      ViolationKind = "route"
	ViolationMarkup     ViolationKind = "markup"
	ViolationContent    ViolationKind = "content"
	ViolationDescriptor ViolationKind = "descriptor"
)

// Violation is a single failed policy check
type Violation struct {
	Kind    ViolationKind `json:"kind"`
	Subject string        `json:"subject,omitempty"`
	Message string        `json:"message"`
}

// ValidationResult is the outcome of validating a descriptor and file set
type ValidationResult struct {
	OK         bool        `json:"ok"`
	Violations []Violation `json:"violations"`
}

// Add records a violation and marks the result failed
func (r *ValidationResult) Add(kind ViolationKind, subject, message string) {
	r.Violations = append(r.Violations, Violation{Kind: kind, Subject: subject, Message: message})
	r.OK = false
}

// Has reports whether any violation of the given kind was recorded
func (r *ValidationResult) Has(kind ViolationKind) bool {
	for _, v := range r.Violations {
		if v.Kind == kind {
			return true
		}
	}
	return false
}
