// Package apierror maps internal errors onto the wire error envelope and an
// HTTP status code.
package apierror

import (
	"context"
	"errors"
	"net/http"

	"github.com/conversai-app/conversai/pkg/core"
	"github.com/conversai-app/conversai/pkg/gateway/store"
)

// Envelope is the JSON error body. Every error response carries it.
type Envelope struct {
	Error *core.Error `json:"error"`
}

// FromError converts any error into the canonical wire error and status.
// Unknown errors collapse to an opaque 500 so internal details never leak.
func FromError(err error, requestID string) (*core.Error, int) {
	var coreErr *core.Error
	switch {
	case errors.As(err, &coreErr):
		out := *coreErr
		out.RequestID = requestID
		return &out, statusFor(out.Type)
	case errors.Is(err, store.ErrNotFound):
		e := core.NewNotFoundError("not found")
		e.RequestID = requestID
		return e, http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		e := core.NewAPIError("request timed out")
		e.RequestID = requestID
		return e, http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		e := core.NewAPIError("request canceled")
		e.RequestID = requestID
		return e, http.StatusRequestTimeout
	default:
		e := core.NewAPIError("internal error")
		e.RequestID = requestID
		return e, http.StatusInternalServerError
	}
}

func statusFor(t core.ErrorType) int {
	switch t {
	case core.ErrInvalidRequest:
		return http.StatusBadRequest
	case core.ErrAuthentication:
		return http.StatusUnauthorized
	case core.ErrNotFound:
		return http.StatusNotFound
	case core.ErrUpstream:
		return http.StatusBadGateway
	case core.ErrStorage:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
