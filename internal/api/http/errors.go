package http

import (
	"errors"
	"net/http"

	"github.com/GriffinCanCode/AdminConsole/backend/internal/shared/types"
	"github.com/gin-gonic/gin"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error      string            `json:"error"`
	Kind       types.Kind        `json:"kind,omitempty"`
	ModuleID   string            `json:"module_id,omitempty"`
	Violations []types.Violation `json:"violations,omitempty"`
}

// StatusFor maps an error kind to its HTTP status
func StatusFor(kind types.Kind) int {
	switch kind {
	case types.KindNotFound:
		return http.StatusNotFound
	case types.KindRemoved:
		return http.StatusGone
	case types.KindConflict, types.KindSchemaConflict, types.KindHasDependents:
		return http.StatusConflict
	case types.KindInvalid, types.KindCorrupt, types.KindParseError:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err with the status of its kind
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)

	typed, ok := types.AsError(err)
	if !ok {
		status := http.StatusInternalServerError
		if errors.Is(err, errBadRequest) {
			status = http.StatusBadRequest
		}
		c.AbortWithStatusJSON(status, ErrorResponse{Error: err.Error()})
		return
	}

	c.AbortWithStatusJSON(StatusFor(typed.Kind), ErrorResponse{
		Error:      typed.Error(),
		Kind:       typed.Kind,
		ModuleID:   typed.ModuleID,
		Violations: typed.Violations,
	})
}

var errBadRequest = errors.New("bad request")

// badRequest marks a malformed request, as opposed to a rejected operation
func badRequest(msg string, cause error) error {
	if cause != nil {
		return &requestError{msg: msg + ": " + cause.Error()}
	}
	return &requestError{msg: msg}
}

type requestError struct{ msg string }

func (e *requestError) Error() string        { return e.msg }
func (e *requestError) Is(target error) bool { return target == errBadRequest }
