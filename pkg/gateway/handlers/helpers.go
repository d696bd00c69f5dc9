// Package handlers implements the REST surface.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/conversai-app/conversai/pkg/core"
	"github.com/conversai-app/conversai/pkg/gateway/apierror"
	"github.com/conversai-app/conversai/pkg/gateway/mw"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	coreErr, status := apierror.FromError(err, reqID)
	writeJSON(w, status, apierror.Envelope{Error: coreErr})
}

// decodeJSON parses the request body, rejecting unknown fields so typos in
// client payloads fail loudly instead of silently dropping data.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return core.NewInvalidRequestError("request body too large")
		}
		return core.NewInvalidRequestError("invalid JSON body")
	}
	return nil
}
