package handlers

import (
	"io"
	"net/http"
	"strings"

	"github.com/conversai-app/conversai/pkg/core"
	"github.com/conversai-app/conversai/pkg/core/types"
	"github.com/conversai-app/conversai/pkg/gateway/audio"
	"github.com/conversai-app/conversai/pkg/gateway/session"
	"github.com/conversai-app/conversai/pkg/gateway/store"
)

// ConversationsHandler exposes the conversation lifecycle over REST.
type ConversationsHandler struct {
	Sessions       *session.Service
	Audio          *audio.Store
	MaxUploadBytes int64
}

// List handles GET /api/conversations. Both filters are optional; with
// neither set, every conversation is returned.
func (h ConversationsHandler) List(w http.ResponseWriter, r *http.Request) {
	convs, err := h.Sessions.List(r.Context(), store.ConversationFilter{
		UserID:  strings.TrimSpace(r.URL.Query().Get("userId")),
		AgentID: strings.TrimSpace(r.URL.Query().Get("agentId")),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, convs)
}

type createConversationRequest struct {
	UserID          string         `json:"userId"`
	AgentID         string         `json:"agentId,omitempty"`
	AgentInfo       *types.Persona `json:"agentInfo,omitempty"`
	IsCallSimulator bool           `json:"isCallSimulator,omitempty"`
	Title           string         `json:"title,omitempty"`
}

// Create handles POST /api/conversations.
func (h ConversationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createConversationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.Sessions.Create(r.Context(), session.CreateParams{
		UserID:          req.UserID,
		AgentID:         req.AgentID,
		AgentInfo:       req.AgentInfo,
		IsCallSimulator: req.IsCallSimulator,
		Title:           req.Title,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res.Conversation)
}

// Get handles GET /api/conversations/{id}.
func (h ConversationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	conv, err := h.Sessions.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// Delete handles DELETE /api/conversations/{id}.
func (h ConversationsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Sessions.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// Messages handles GET /api/conversations/{id}/messages.
func (h ConversationsHandler) Messages(w http.ResponseWriter, r *http.Request) {
	messages, err := h.Sessions.Messages(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

type postMessageRequest struct {
	Content string `json:"content"`
	Role    string `json:"role,omitempty"`
}

type turnResponse struct {
	Message      types.Message `json:"message"`
	Title        string        `json:"title"`
	TitleUpdated bool          `json:"titleUpdated"`
}

// PostMessage handles POST /api/conversations/{id}/messages.
func (h ConversationsHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	var req postMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Role != "" && req.Role != string(types.RoleUser) {
		writeError(w, r, core.NewInvalidRequestErrorWithParam("only user messages can be posted", "role"))
		return
	}
	res, err := h.Sessions.AppendUserMessage(r.Context(), r.PathValue("id"), req.Content, "")
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, turnResponse{
		Message:      res.Reply,
		Title:        res.Title,
		TitleUpdated: res.TitleUpdated,
	})
}

// PostAudioMessage handles POST /api/conversations/{id}/audio. The multipart
// form carries the user's recording under "audio" and its text under
// "transcript"; the recording is stored and linked to the user message.
func (h ConversationsHandler) PostAudioMessage(w http.ResponseWriter, r *http.Request) {
	limit := h.MaxUploadBytes
	if limit <= 0 {
		limit = 16 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		writeError(w, r, core.NewInvalidRequestError("invalid multipart form"))
		return
	}

	transcript := strings.TrimSpace(r.FormValue("transcript"))
	if transcript == "" {
		writeError(w, r, core.NewInvalidRequestErrorWithParam("transcript is required", "transcript"))
		return
	}

	var audioURL string
	if file, header, err := r.FormFile("audio"); err == nil {
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			writeError(w, r, core.NewInvalidRequestError("failed to read audio upload"))
			return
		}
		url, err := h.Audio.SaveUpload(data, header.Filename)
		if err != nil {
			writeError(w, r, core.NewStorageError(err))
			return
		}
		audioURL = url
	}

	res, err := h.Sessions.AppendUserMessage(r.Context(), r.PathValue("id"), transcript, audioURL)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, turnResponse{
		Message:      res.Reply,
		Title:        res.Title,
		TitleUpdated: res.TitleUpdated,
	})
}

// End handles PUT /api/conversations/{id}/end.
func (h ConversationsHandler) End(w http.ResponseWriter, r *http.Request) {
	conv, err := h.Sessions.End(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// UpdateTitle handles PUT /api/conversations/{id}/update-title.
func (h ConversationsHandler) UpdateTitle(w http.ResponseWriter, r *http.Request) {
	title, err := h.Sessions.UpdateTitle(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"title": title})
}

// Stats handles GET /api/conversations/stats/user/{userId}.
func (h ConversationsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Sessions.UserStats(r.Context(), r.PathValue("userId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
