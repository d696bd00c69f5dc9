package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/conversai-app/conversai/pkg/gateway/config"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	HealthHandler{}.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok\n" {
		t.Errorf("status = %d body = %q", rec.Code, rec.Body.String())
	}
}

func TestReady(t *testing.T) {
	cfg := config.Config{OpenAIAPIKey: "sk-test"}

	rec := httptest.NewRecorder()
	ReadyHandler{Config: cfg, DB: fakePinger{}}.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		OK      bool `json:"ok"`
		LiveKit bool `json:"livekit"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.OK || resp.LiveKit {
		t.Errorf("resp = %+v", resp)
	}
}

func TestReadyDatabaseDown(t *testing.T) {
	cfg := config.Config{OpenAIAPIKey: "sk-test"}

	rec := httptest.NewRecorder()
	ReadyHandler{Config: cfg, DB: fakePinger{err: errors.New("down")}}.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestNotFound(t *testing.T) {
	rec := httptest.NewRecorder()
	NotFoundHandler{}.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	var env struct {
		Error struct {
			Type string `json:"type"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("body not JSON: %v", err)
	}
	if env.Error.Type != "not_found_error" {
		t.Errorf("error type = %q", env.Error.Type)
	}
}
