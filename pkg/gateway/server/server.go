// Package server wires configuration, stores and handlers into one HTTP
// handler.
package server

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/conversai-app/conversai/pkg/gateway/audio"
	"github.com/conversai-app/conversai/pkg/gateway/auth"
	"github.com/conversai-app/conversai/pkg/gateway/config"
	"github.com/conversai-app/conversai/pkg/gateway/handlers"
	"github.com/conversai-app/conversai/pkg/gateway/live"
	"github.com/conversai-app/conversai/pkg/gateway/mw"
	"github.com/conversai-app/conversai/pkg/gateway/rooms"
	"github.com/conversai-app/conversai/pkg/gateway/session"
	"github.com/conversai-app/conversai/pkg/gateway/store"
)

// Deps carries the constructed services the routes need. Tests inject
// in-memory stands-ins here.
type Deps struct {
	Sessions *session.Service
	Agents   store.AgentStore
	Audio    *audio.Store
	Rooms    *rooms.Service
	DB       handlers.Pinger
	Verifier *auth.Verifier
}

type Server struct {
	cfg    config.Config
	logger *slog.Logger
	mux    *http.ServeMux
	deps   Deps
}

func New(cfg config.Config, logger *slog.Logger, deps Deps) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:    cfg,
		logger: logger,
		mux:    http.NewServeMux(),
		deps:   deps,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.Handle("GET /healthz", handlers.HealthHandler{})
	s.mux.Handle("GET /readyz", handlers.ReadyHandler{Config: s.cfg, DB: s.deps.DB})
	s.mux.Handle("GET /metrics", promhttp.Handler())

	conversations := handlers.ConversationsHandler{
		Sessions:       s.deps.Sessions,
		Audio:          s.deps.Audio,
		MaxUploadBytes: s.cfg.MaxUploadBytes,
	}
	s.mux.Handle("GET /api/conversations", s.jsonBody(conversations.List))
	s.mux.Handle("POST /api/conversations", s.jsonBody(conversations.Create))
	s.mux.Handle("GET /api/conversations/{id}", s.jsonBody(conversations.Get))
	s.mux.Handle("DELETE /api/conversations/{id}", s.jsonBody(conversations.Delete))
	s.mux.Handle("GET /api/conversations/{id}/messages", s.jsonBody(conversations.Messages))
	s.mux.Handle("POST /api/conversations/{id}/messages", s.jsonBody(conversations.PostMessage))
	// Audio uploads carry their own, larger size cap.
	s.mux.Handle("POST /api/conversations/{id}/audio", http.HandlerFunc(conversations.PostAudioMessage))
	s.mux.Handle("PUT /api/conversations/{id}/end", s.jsonBody(conversations.End))
	s.mux.Handle("PUT /api/conversations/{id}/update-title", s.jsonBody(conversations.UpdateTitle))
	s.mux.Handle("GET /api/conversations/stats/user/{userId}", s.jsonBody(conversations.Stats))

	agents := handlers.AgentsHandler{Agents: s.deps.Agents}
	s.mux.Handle("GET /api/agents", s.authed(agents.List))
	s.mux.Handle("POST /api/agents", s.authed(agents.Create))
	s.mux.Handle("GET /api/agents/{id}", s.authed(agents.Get))
	s.mux.Handle("PUT /api/agents/{id}", s.authed(agents.Update))
	s.mux.Handle("DELETE /api/agents/{id}", s.authed(agents.Delete))

	roomsHandler := handlers.RoomsHandler{Rooms: s.deps.Rooms}
	s.mux.Handle("POST /api/create-room", s.jsonBody(roomsHandler.CreateRoom))
	s.mux.Handle("POST /api/join-room", s.jsonBody(roomsHandler.JoinRoom))
	s.mux.Handle("GET /api/rooms", s.jsonBody(roomsHandler.ListRooms))
	s.mux.Handle("DELETE /api/rooms/{name}", s.jsonBody(roomsHandler.DeleteRoom))
	s.mux.Handle("POST /api/create-test-room", s.jsonBody(roomsHandler.CreateTestRoom))

	s.mux.Handle("GET /ws", live.Handler{
		Config:   s.cfg,
		Sessions: s.deps.Sessions,
		Logger:   s.logger,
	})

	if s.deps.Audio != nil {
		s.mux.Handle("GET "+audio.URLPrefix, s.deps.Audio.Handler())
	}

	s.mux.Handle("/", handlers.NotFoundHandler{})
}

func (s *Server) jsonBody(h http.HandlerFunc) http.Handler {
	return mw.MaxBody(s.cfg.MaxBodyBytes, h)
}

func (s *Server) authed(h http.HandlerFunc) http.Handler {
	return mw.Auth(s.deps.Verifier, s.jsonBody(h))
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = mw.CORS(s.cfg, h)
	h = mw.Recover(s.logger, h)
	h = mw.AccessLog(s.logger, h)
	h = mw.RequestID(h)
	return h
}
