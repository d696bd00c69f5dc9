// Package session owns the conversation lifecycle: it mediates all reads and
// writes to a conversation document and decides when to call out to the
// language-model/speech gateway.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/conversai-app/conversai/pkg/core"
	"github.com/conversai-app/conversai/pkg/core/types"
	"github.com/conversai-app/conversai/pkg/gateway/metrics"
	"github.com/conversai-app/conversai/pkg/gateway/store"
)

// AudioStore persists synthesized audio and exposes it by public URL.
type AudioStore interface {
	// SaveMP3 writes audio bytes and returns the public URL.
	SaveMP3(data []byte) (string, error)
	// Remove deletes the file behind a public URL.
	Remove(url string) error
}

// Service mediates one conversation's lifecycle. All mutating operations
// serialize per conversation id, so a load-mutate-save cycle cannot race a
// concurrent append to the same conversation.
type Service struct {
	Conversations store.ConversationStore
	Agents        store.AgentStore
	Provider      core.Provider
	Speech        core.SpeechProvider
	Audio         AudioStore
	Logger        *slog.Logger

	// Demo is the persona used by the call simulator.
	Demo types.Persona

	// ContextWindow bounds how many trailing messages accompany the persona
	// prompt on completion calls. Zero means the default of 5.
	ContextWindow int

	// Companies overrides the company detector; nil uses DetectCompany.
	Companies CompanyDetector

	// Now overrides the clock in tests.
	Now func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// CreateParams describes a new conversation.
type CreateParams struct {
	UserID          string
	AgentID         string
	IsCallSimulator bool
	Title           string
	// AgentInfo is a caller-supplied persona; takes precedence over AgentID.
	AgentInfo *types.Persona
}

// CreateResult is the outward view of a freshly created conversation.
type CreateResult struct {
	Conversation *types.Conversation
	Persona      types.Persona
}

// TurnResult is the outcome of one user turn.
type TurnResult struct {
	Reply        types.Message
	Title        string
	TitleUpdated bool
}

// Create builds the initial [system, welcome] message pair from the resolved
// persona, synthesizes welcome audio (best effort) and persists. The returned
// conversation has the system message stripped from the outward view.
func (s *Service) Create(ctx context.Context, p CreateParams) (*CreateResult, error) {
	if strings.TrimSpace(p.UserID) == "" {
		return nil, core.NewInvalidRequestErrorWithParam("userId is required", "userId")
	}
	if !p.IsCallSimulator && p.AgentInfo == nil && strings.TrimSpace(p.AgentID) == "" {
		return nil, core.NewInvalidRequestErrorWithParam("agentId is required", "agentId")
	}

	persona, err := s.resolvePersona(ctx, p)
	if err != nil {
		return nil, err
	}

	now := s.now()
	systemMsg := types.Message{
		Role:      types.RoleSystem,
		Content:   SystemPrompt(persona),
		Timestamp: now,
	}
	welcome := types.Message{
		Role:      types.RoleAssistant,
		Content:   Greeting(persona),
		Timestamp: now,
	}

	// TTS failure must not block text creation; the welcome message simply
	// carries no audio URL.
	if url, err := s.synthesize(ctx, welcome.Content, persona.Voice); err == nil {
		welcome.AudioURL = url
	}

	conv := &types.Conversation{
		UserID:   p.UserID,
		AgentID:  p.AgentID,
		Messages: []types.Message{systemMsg, welcome},
		Metadata: types.Metadata{
			Duration:  0,
			Sentiment: types.SentimentNeutral,
			Intents:   []string{},
			Created:   now,
			Updated:   now,
		},
	}

	switch {
	case p.IsCallSimulator:
		// Simulator titles are independent of caller input.
		conv.Title = defaultTitle
		if title, err := s.generateTitle(ctx, conv.Messages); err == nil {
			conv.Title = title
		} else {
			metrics.TitleFallbacks.Inc()
		}
	case strings.TrimSpace(p.Title) != "":
		conv.Title = strings.TrimSpace(p.Title)
	default:
		conv.Title = "Chat from " + now.Format("1/2/2006")
	}

	if err := s.Conversations.Insert(ctx, conv); err != nil {
		return nil, core.NewStorageError(err)
	}

	return &CreateResult{Conversation: outward(conv), Persona: persona}, nil
}

// AppendUserMessage runs one full turn: append the user message, recompute
// sentiment and duration, ask the gateway for a reply, regenerate the title
// on cadence, synthesize speech, persist and return the assistant message.
// Exactly two messages are added on success. Gateway failures degrade to the
// fallback reply, neutral sentiment, the unchanged title or a missing audio
// URL; they are never surfaced as request errors.
func (s *Service) AppendUserMessage(ctx context.Context, id, content, userAudioURL string) (*TurnResult, error) {
	if strings.TrimSpace(content) == "" {
		return nil, core.NewInvalidRequestErrorWithParam("content is required", "content")
	}

	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	conv, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	conv.Messages = append(conv.Messages, types.Message{
		Role:      types.RoleUser,
		Content:   content,
		Timestamp: now,
		AudioURL:  userAudioURL,
	})

	// Sentiment is recomputed only after user-role appends, and before the
	// completion call so it reflects the message that was just appended.
	conv.Metadata.Sentiment = s.classifySentiment(ctx, conv)
	conv.Metadata.Intents = ExtractIntents(content)
	conv.Metadata.Duration = int64(now.Sub(conv.Metadata.Created).Seconds())
	conv.Metadata.Updated = now

	reply, err := s.complete(ctx, conv)
	if err != nil {
		metrics.CompletionFallbacks.Inc()
		s.logger().Warn("completion failed, using fallback reply", "conversation", id, "error", err)
		reply = fallbackReply
	}

	conv.Messages = append(conv.Messages, types.Message{
		Role:      types.RoleAssistant,
		Content:   reply,
		Timestamp: now,
	})

	titleUpdated := false
	if userCount := conv.UserCount(); titleDue(userCount) {
		if title, err := s.generateTitle(ctx, conv.Messages); err == nil {
			conv.Title = title
			titleUpdated = true
		} else {
			metrics.TitleFallbacks.Inc()
			s.logger().Warn("title generation failed, keeping current title", "conversation", id, "error", err)
		}
	}

	// Synthesis is awaited before persisting so the response never references
	// an audio file that does not exist yet.
	assistant := &conv.Messages[len(conv.Messages)-1]
	if url, err := s.synthesize(ctx, reply, s.voiceFor(conv)); err == nil {
		assistant.AudioURL = url
	}

	if err := s.Conversations.Replace(ctx, conv); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, core.NewNotFoundError("conversation not found")
		}
		return nil, core.NewStorageError(err)
	}

	metrics.TurnsProcessed.Inc()
	return &TurnResult{
		Reply:        *assistant,
		Title:        conv.Title,
		TitleUpdated: titleUpdated,
	}, nil
}

// End regenerates the title one final time from the full transcript and
// persists. Idempotent, and advisory only: the conversation accepts further
// appends afterwards.
func (s *Service) End(ctx context.Context, id string) (*types.Conversation, error) {
	title, conv, err := s.regenerateTitle(ctx, id)
	if err != nil {
		return nil, err
	}
	conv.Title = title
	return outward(conv), nil
}

// UpdateTitle regenerates the title from the full transcript and persists.
func (s *Service) UpdateTitle(ctx context.Context, id string) (string, error) {
	title, _, err := s.regenerateTitle(ctx, id)
	if err != nil {
		return "", err
	}
	return title, nil
}

func (s *Service) regenerateTitle(ctx context.Context, id string) (string, *types.Conversation, error) {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	conv, err := s.load(ctx, id)
	if err != nil {
		return "", nil, err
	}

	if title, err := s.generateTitle(ctx, conv.Messages); err == nil {
		conv.Title = title
	} else {
		metrics.TitleFallbacks.Inc()
		s.logger().Warn("title generation failed, keeping current title", "conversation", id, "error", err)
	}
	conv.Metadata.Updated = s.now()

	if err := s.Conversations.Replace(ctx, conv); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", nil, core.NewNotFoundError("conversation not found")
		}
		return "", nil, core.NewStorageError(err)
	}
	return conv.Title, conv, nil
}

// Delete removes the conversation document and any audio files it
// referenced. File cleanup is best effort: failures are logged, not raised.
func (s *Service) Delete(ctx context.Context, id string) error {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	conv, err := s.Conversations.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.releaseLock(id)
			return core.NewNotFoundError("conversation not found")
		}
		return core.NewStorageError(err)
	}
	s.releaseLock(id)

	if s.Audio == nil {
		return nil
	}
	for _, m := range conv.Messages {
		if m.AudioURL == "" {
			continue
		}
		if err := s.Audio.Remove(m.AudioURL); err != nil {
			s.logger().Warn("audio cleanup failed", "conversation", id, "url", m.AudioURL, "error", err)
		}
	}
	return nil
}

// Get returns the outward view of one conversation.
func (s *Service) Get(ctx context.Context, id string) (*types.Conversation, error) {
	conv, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return outward(conv), nil
}

// List returns outward views of conversations matching the filter.
func (s *Service) List(ctx context.Context, f store.ConversationFilter) ([]*types.Conversation, error) {
	convs, err := s.Conversations.Find(ctx, f)
	if err != nil {
		return nil, core.NewStorageError(err)
	}
	out := make([]*types.Conversation, 0, len(convs))
	for _, c := range convs {
		out = append(out, outward(c))
	}
	return out, nil
}

// Messages returns a conversation's visible messages.
func (s *Service) Messages(ctx context.Context, id string) ([]types.Message, error) {
	conv, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return conv.VisibleMessages(), nil
}

// UserStats aggregates across all conversations owned by the user. Pure
// aggregation, no mutation.
func (s *Service) UserStats(ctx context.Context, userID string) (*types.UserStats, error) {
	convs, err := s.Conversations.Find(ctx, store.ConversationFilter{UserID: userID})
	if err != nil {
		return nil, core.NewStorageError(err)
	}

	stats := &types.UserStats{
		TotalConversations: len(convs),
		SentimentBreakdown: map[types.Sentiment]int{
			types.SentimentPositive: 0,
			types.SentimentNegative: 0,
			types.SentimentNeutral:  0,
			types.SentimentUrgent:   0,
		},
		Companies: []string{},
	}
	if len(convs) == 0 {
		return stats, nil
	}

	detect := s.Companies
	if detect == nil {
		detect = DetectCompany
	}

	var totalDuration int64
	companies := make(map[string]struct{})
	var last time.Time
	for _, conv := range convs {
		totalDuration += conv.Metadata.Duration
		if conv.Metadata.Updated.After(last) {
			last = conv.Metadata.Updated
		}
		if _, ok := stats.SentimentBreakdown[conv.Metadata.Sentiment]; ok {
			stats.SentimentBreakdown[conv.Metadata.Sentiment]++
		}
		stats.TotalMessages += len(conv.VisibleMessages())
		companies[detect(conv.Messages)] = struct{}{}
	}
	stats.AverageDuration = totalDuration / int64(len(convs))
	stats.LastActivity = &last
	stats.Companies = sortedCompanies(companies)
	return stats, nil
}

// titleDue reports whether the user-message count triggers title
// regeneration: after the first user message, then every third.
func titleDue(userCount int) bool {
	return userCount == 1 || (userCount > 0 && userCount%3 == 0)
}

func (s *Service) resolvePersona(ctx context.Context, p CreateParams) (types.Persona, error) {
	if p.IsCallSimulator || p.AgentInfo != nil {
		return ResolvePersona(p.IsCallSimulator, s.Demo, p.AgentInfo), nil
	}
	agent, err := s.Agents.FindByID(ctx, p.AgentID, p.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Persona{}, core.NewNotFoundError("agent not found")
		}
		return types.Persona{}, core.NewStorageError(err)
	}
	return PersonaFromAgent(agent), nil
}

func (s *Service) load(ctx context.Context, id string) (*types.Conversation, error) {
	conv, err := s.Conversations.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, core.NewNotFoundError("conversation not found")
		}
		return nil, core.NewStorageError(err)
	}
	return conv, nil
}

// complete asks the gateway for a reply using the persona system prompt plus
// a bounded window of trailing messages.
func (s *Service) complete(ctx context.Context, conv *types.Conversation) (string, error) {
	window := s.ContextWindow
	if window <= 0 {
		window = 5
	}

	visible := conv.VisibleMessages()
	if len(visible) > window {
		visible = visible[len(visible)-window:]
	}

	messages := make([]types.ChatMessage, 0, len(visible)+1)
	messages = append(messages, types.ChatMessage{
		Role:    types.RoleSystem,
		Content: s.systemPromptFor(conv),
	})
	for _, m := range visible {
		messages = append(messages, types.ChatMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := s.Provider.CreateCompletion(ctx, &types.CompletionRequest{
		Messages:    messages,
		Temperature: 0.8,
		MaxTokens:   500,
	})
	if err != nil {
		return "", err
	}
	reply := strings.TrimSpace(resp.Content)
	if reply == "" {
		return "", fmt.Errorf("empty completion")
	}
	return reply, nil
}

// classifySentiment asks the gateway's constrained single-word classifier;
// on failure it falls back to the local keyword scorer, then neutral.
func (s *Service) classifySentiment(ctx context.Context, conv *types.Conversation) types.Sentiment {
	var userText []string
	for _, m := range conv.Messages {
		if m.Role == types.RoleUser {
			userText = append(userText, m.Content)
		}
	}
	if len(userText) == 0 {
		return types.SentimentNeutral
	}
	joined := strings.Join(userText, "\n")

	resp, err := s.Provider.CreateCompletion(ctx, &types.CompletionRequest{
		Messages: []types.ChatMessage{
			{Role: types.RoleSystem, Content: sentimentInstruction},
			{Role: types.RoleUser, Content: joined},
		},
		Temperature: 0.3,
		MaxTokens:   10,
	})
	if err != nil {
		metrics.SentimentFallbacks.Inc()
		s.logger().Warn("sentiment classifier failed, using keyword fallback", "conversation", conv.ID, "error", err)
		return FallbackSentiment(joined)
	}
	sentiment, _ := types.ParseSentiment(resp.Content)
	return sentiment
}

// generateTitle asks the gateway for a short descriptive title.
func (s *Service) generateTitle(ctx context.Context, messages []types.Message) (string, error) {
	var b strings.Builder
	b.WriteString("Please generate a title for this conversation:\n\n")
	for _, m := range messages {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}

	resp, err := s.Provider.CreateCompletion(ctx, &types.CompletionRequest{
		Messages: []types.ChatMessage{
			{Role: types.RoleSystem, Content: titleInstruction},
			{Role: types.RoleUser, Content: b.String()},
		},
		Temperature: 0.7,
		MaxTokens:   60,
	})
	if err != nil {
		return "", err
	}
	title := strings.Trim(strings.TrimSpace(resp.Content), `"`)
	if title == "" {
		return "", fmt.Errorf("empty title")
	}
	return title, nil
}

// synthesize converts text to speech and stores the audio file. The write is
// awaited so the returned URL always points at an existing file.
func (s *Service) synthesize(ctx context.Context, text, voice string) (string, error) {
	if s.Speech == nil || s.Audio == nil {
		return "", fmt.Errorf("speech synthesis not configured")
	}
	audio, err := s.Speech.Synthesize(ctx, text, types.SpeechOptions{Voice: voice})
	if err != nil {
		metrics.SynthesisFailures.Inc()
		s.logger().Warn("speech synthesis failed", "error", err)
		return "", err
	}
	url, err := s.Audio.SaveMP3(audio)
	if err != nil {
		metrics.SynthesisFailures.Inc()
		s.logger().Warn("audio save failed", "error", err)
		return "", err
	}
	return url, nil
}

// systemPromptFor returns the persisted persona prompt anchoring the
// conversation, or a generic prompt if the document predates one.
func (s *Service) systemPromptFor(conv *types.Conversation) string {
	for _, m := range conv.Messages {
		if m.Role == types.RoleSystem {
			return m.Content
		}
	}
	return SystemPrompt(types.Persona{})
}

func (s *Service) voiceFor(conv *types.Conversation) string {
	// The demo persona's voice applies to simulator conversations; agent
	// conversations use the provider default.
	if conv.AgentID == "" && s.Demo.Voice != "" {
		return s.Demo.Voice
	}
	return ""
}

func (s *Service) lockFor(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locks == nil {
		s.locks = make(map[string]*sync.Mutex)
	}
	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	return lock
}

// releaseLock drops the per-conversation lock entry once the conversation is
// gone. Waiters already holding a reference proceed on the old mutex and then
// observe the missing document.
func (s *Service) releaseLock(id string) {
	s.mu.Lock()
	delete(s.locks, id)
	s.mu.Unlock()
}

func (s *Service) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// outward copies a conversation with system messages stripped; system
// prompts are never shown to the end user.
func outward(c *types.Conversation) *types.Conversation {
	out := *c
	out.Messages = c.VisibleMessages()
	return &out
}
