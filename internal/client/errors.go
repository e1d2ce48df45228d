package client

import (
	"fmt"
	"net/http"

	"github.com/GriffinCanCode/AdminConsole/backend/internal/shared/types"
	"github.com/go-resty/resty/v2"
)

// errorBody mirrors the server's error response
type errorBody struct {
	Error      string            `json:"error"`
	Kind       types.Kind        `json:"kind,omitempty"`
	ModuleID   string            `json:"module_id,omitempty"`
	Violations []types.Violation `json:"violations,omitempty"`
}

// APIError is a non-2xx response. It unwraps to a *types.Error when the
// server reported a kind, so errors.Is(err, types.ErrConflict) works.
type APIError struct {
	StatusCode int
	Message    string
	typed      *types.Error
}

func newAPIError(resp *resty.Response) *APIError {
	e := &APIError{StatusCode: resp.StatusCode()}
	body, _ := resp.Error().(*errorBody)
	if body != nil && body.Error != "" {
		e.Message = body.Error
		if body.Kind != "" {
			e.typed = &types.Error{
				Kind:       body.Kind,
				ModuleID:   body.ModuleID,
				Message:    body.Error,
				Violations: body.Violations,
			}
		}
	} else {
		e.Message = http.StatusText(resp.StatusCode())
	}
	return e
}

func (e *APIError) Error() string {
	return fmt.Sprintf("registry returned %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	if e.typed == nil {
		return nil
	}
	return e.typed
}

// Violations returns the validation violations reported by the server
func (e *APIError) Violations() []types.Violation {
	if e.typed == nil {
		return nil
	}
	return e.typed.Violations
}
