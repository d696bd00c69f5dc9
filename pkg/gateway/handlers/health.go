package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/conversai-app/conversai/pkg/gateway/config"
)

type HealthHandler struct{}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

// Pinger reports database reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

type ReadyHandler struct {
	Config config.Config
	DB     Pinger
}

func (h ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type readyResp struct {
		OK      bool     `json:"ok"`
		LiveKit bool     `json:"livekit"`
		Issues  []string `json:"issues,omitempty"`
	}

	issues := make([]string, 0, 2)
	if h.Config.OpenAIAPIKey == "" {
		issues = append(issues, "openai api key not configured")
	}
	if h.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.DB.Ping(ctx); err != nil {
			issues = append(issues, "database unreachable")
		}
	}

	resp := readyResp{
		OK:      len(issues) == 0,
		LiveKit: h.Config.LiveKitEnabled(),
		Issues:  issues,
	}
	status := http.StatusOK
	if !resp.OK {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
