package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/conversai-app/conversai/pkg/core"
	"github.com/conversai-app/conversai/pkg/core/types"
	"github.com/conversai-app/conversai/pkg/gateway/auth"
	"github.com/conversai-app/conversai/pkg/gateway/store"
)

// AgentsHandler manages a user's saved agent personas. All routes sit behind
// the auth middleware, so the principal is always present and every query is
// scoped to it.
type AgentsHandler struct {
	Agents store.AgentStore
	Now    func() time.Time
}

func (h AgentsHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// List handles GET /api/agents.
func (h AgentsHandler) List(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())
	agents, err := h.Agents.FindByUser(r.Context(), p.UserID)
	if err != nil {
		writeError(w, r, core.NewStorageError(err))
		return
	}
	if agents == nil {
		agents = []*types.Agent{}
	}
	writeJSON(w, http.StatusOK, agents)
}

type agentRequest struct {
	Name        string   `json:"name"`
	CompanyName string   `json:"companyName"`
	Personality string   `json:"personality,omitempty"`
	CompanyInfo string   `json:"companyInfo,omitempty"`
	Prompts     []string `json:"prompts,omitempty"`
}

func (req agentRequest) validate() error {
	if strings.TrimSpace(req.Name) == "" {
		return core.NewInvalidRequestErrorWithParam("name is required", "name")
	}
	if strings.TrimSpace(req.CompanyName) == "" {
		return core.NewInvalidRequestErrorWithParam("companyName is required", "companyName")
	}
	return nil
}

// Create handles POST /api/agents.
func (h AgentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())
	var req agentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, r, err)
		return
	}

	now := h.now()
	agent := &types.Agent{
		UserID:      p.UserID,
		Name:        strings.TrimSpace(req.Name),
		CompanyName: strings.TrimSpace(req.CompanyName),
		Personality: req.Personality,
		CompanyInfo: req.CompanyInfo,
		Prompts:     req.Prompts,
		Created:     now,
		Updated:     now,
	}
	if err := h.Agents.Insert(r.Context(), agent); err != nil {
		writeError(w, r, core.NewStorageError(err))
		return
	}
	writeJSON(w, http.StatusCreated, agent)
}

// Get handles GET /api/agents/{id}.
func (h AgentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())
	agent, err := h.Agents.FindByID(r.Context(), r.PathValue("id"), p.UserID)
	if err != nil {
		writeError(w, r, agentErr(err))
		return
	}
	writeJSON(w, http.StatusOK, agent)
}

// Update handles PUT /api/agents/{id}.
func (h AgentsHandler) Update(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())
	var req agentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, r, err)
		return
	}

	agent, err := h.Agents.FindByID(r.Context(), r.PathValue("id"), p.UserID)
	if err != nil {
		writeError(w, r, agentErr(err))
		return
	}
	agent.Name = strings.TrimSpace(req.Name)
	agent.CompanyName = strings.TrimSpace(req.CompanyName)
	agent.Personality = req.Personality
	agent.CompanyInfo = req.CompanyInfo
	agent.Prompts = req.Prompts
	agent.Updated = h.now()

	if err := h.Agents.Update(r.Context(), agent); err != nil {
		writeError(w, r, agentErr(err))
		return
	}
	writeJSON(w, http.StatusOK, agent)
}

// Delete handles DELETE /api/agents/{id}.
func (h AgentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())
	if err := h.Agents.Delete(r.Context(), r.PathValue("id"), p.UserID); err != nil {
		writeError(w, r, agentErr(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func agentErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return core.NewNotFoundError("agent not found")
	}
	return core.NewStorageError(err)
}
