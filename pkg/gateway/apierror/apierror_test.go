package apierror

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/conversai-app/conversai/pkg/core"
	"github.com/conversai-app/conversai/pkg/gateway/store"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantType   core.ErrorType
		wantStatus int
	}{
		{"invalid request", core.NewInvalidRequestError("bad"), core.ErrInvalidRequest, http.StatusBadRequest},
		{"authentication", core.NewAuthenticationError("nope"), core.ErrAuthentication, http.StatusUnauthorized},
		{"not found", core.NewNotFoundError("gone"), core.ErrNotFound, http.StatusNotFound},
		{"upstream", core.NewUpstreamError("openai", errors.New("503")), core.ErrUpstream, http.StatusBadGateway},
		{"storage", core.NewStorageError(errors.New("disk")), core.ErrStorage, http.StatusInternalServerError},
		{"store sentinel", store.ErrNotFound, core.ErrNotFound, http.StatusNotFound},
		{"wrapped store sentinel", fmt.Errorf("load: %w", store.ErrNotFound), core.ErrNotFound, http.StatusNotFound},
		{"deadline", context.DeadlineExceeded, core.ErrAPI, http.StatusGatewayTimeout},
		{"canceled", context.Canceled, core.ErrAPI, http.StatusRequestTimeout},
		{"unknown", errors.New("boom"), core.ErrAPI, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, status := FromError(tt.err, "req-1")
			if got.Type != tt.wantType {
				t.Errorf("type = %q, want %q", got.Type, tt.wantType)
			}
			if status != tt.wantStatus {
				t.Errorf("status = %d, want %d", status, tt.wantStatus)
			}
			if got.RequestID != "req-1" {
				t.Errorf("requestID = %q, want req-1", got.RequestID)
			}
		})
	}
}

func TestFromErrorOpaqueInternal(t *testing.T) {
	got, _ := FromError(errors.New("pgx: secret dsn"), "")
	if got.Message != "internal error" {
		t.Errorf("message = %q, internal details must not leak", got.Message)
	}
}
