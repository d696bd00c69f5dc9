package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/conversai-app/conversai/pkg/core"
	"github.com/conversai-app/conversai/pkg/core/types"
	"github.com/conversai-app/conversai/pkg/gateway/store"
)

type fakeConversationStore struct {
	mu    sync.Mutex
	docs  map[string]*types.Conversation
	nextN int
}

func newFakeConversationStore() *fakeConversationStore {
	return &fakeConversationStore{docs: make(map[string]*types.Conversation)}
}

func (f *fakeConversationStore) Insert(_ context.Context, c *types.Conversation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextN++
	c.ID = fmt.Sprintf("conv-%d", f.nextN)
	stored := *c
	f.docs[c.ID] = &stored
	return nil
}

func (f *fakeConversationStore) FindByID(_ context.Context, id string) (*types.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.docs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copy := *c
	copy.Messages = append([]types.Message(nil), c.Messages...)
	return &copy, nil
}

func (f *fakeConversationStore) Find(_ context.Context, filter store.ConversationFilter) ([]*types.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.Conversation
	for _, c := range f.docs {
		if filter.UserID != "" && c.UserID != filter.UserID {
			continue
		}
		if filter.AgentID != "" && c.AgentID != filter.AgentID {
			continue
		}
		copy := *c
		out = append(out, &copy)
	}
	return out, nil
}

func (f *fakeConversationStore) Replace(_ context.Context, c *types.Conversation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.docs[c.ID]; !ok {
		return store.ErrNotFound
	}
	stored := *c
	f.docs[c.ID] = &stored
	return nil
}

func (f *fakeConversationStore) Delete(_ context.Context, id string) (*types.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.docs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	delete(f.docs, id)
	return c, nil
}

type fakeAgentStore struct {
	agents map[string]*types.Agent
}

func (f *fakeAgentStore) Insert(context.Context, *types.Agent) error { return nil }

func (f *fakeAgentStore) FindByID(_ context.Context, id, userID string) (*types.Agent, error) {
	a, ok := f.agents[id]
	if !ok || a.UserID != userID {
		return nil, store.ErrNotFound
	}
	return a, nil
}

func (f *fakeAgentStore) FindByUser(context.Context, string) ([]*types.Agent, error) {
	return nil, nil
}
func (f *fakeAgentStore) Update(context.Context, *types.Agent) error { return nil }
func (f *fakeAgentStore) Delete(context.Context, string, string) error {
	return nil
}

// fakeProvider routes on the system instruction so one fake serves chat,
// sentiment and title calls.
type fakeProvider struct {
	reply     string
	sentiment string
	title     string

	failChat      bool
	failSentiment bool
	failTitle     bool

	chatCalls      int
	sentimentCalls int
	titleCalls     int
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) CreateCompletion(_ context.Context, req *types.CompletionRequest) (*types.CompletionResponse, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("no messages")
	}
	switch req.Messages[0].Content {
	case sentimentInstruction:
		f.sentimentCalls++
		if f.failSentiment {
			return nil, errors.New("sentiment unavailable")
		}
		return &types.CompletionResponse{Content: f.sentiment}, nil
	case titleInstruction:
		f.titleCalls++
		if f.failTitle {
			return nil, errors.New("title unavailable")
		}
		return &types.CompletionResponse{Content: f.title}, nil
	default:
		f.chatCalls++
		if f.failChat {
			return nil, errors.New("chat unavailable")
		}
		return &types.CompletionResponse{Content: f.reply}, nil
	}
}

type fakeSpeech struct {
	fail  bool
	calls int
}

func (f *fakeSpeech) Name() string { return "fake-tts" }

func (f *fakeSpeech) Synthesize(_ context.Context, text string, _ types.SpeechOptions) ([]byte, error) {
	f.calls++
	if f.fail {
		return nil, errors.New("tts unavailable")
	}
	return []byte("mp3:" + text), nil
}

type fakeAudio struct {
	saved   int
	removed []string
}

func (f *fakeAudio) SaveMP3([]byte) (string, error) {
	f.saved++
	return fmt.Sprintf("/audio/test-%d.mp3", f.saved), nil
}

func (f *fakeAudio) Remove(url string) error {
	f.removed = append(f.removed, url)
	return nil
}

type fixture struct {
	svc      *Service
	convs    *fakeConversationStore
	provider *fakeProvider
	speech   *fakeSpeech
	audio    *fakeAudio
}

func newFixture() *fixture {
	convs := newFakeConversationStore()
	provider := &fakeProvider{
		reply:     "Happy to help with that.",
		sentiment: "positive",
		title:     "Order Cancellation Help",
	}
	speech := &fakeSpeech{}
	audio := &fakeAudio{}
	return &fixture{
		svc: &Service{
			Conversations: convs,
			Agents:        &fakeAgentStore{},
			Provider:      provider,
			Speech:        speech,
			Audio:         audio,
			Demo:          DemoPersona(),
			Now:           func() time.Time { return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC) },
		},
		convs:    convs,
		provider: provider,
		speech:   speech,
		audio:    audio,
	}
}

func (fx *fixture) create(t *testing.T) *types.Conversation {
	t.Helper()
	res, err := fx.svc.Create(context.Background(), CreateParams{UserID: "u1", IsCallSimulator: true})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return res.Conversation
}

func TestCreateSimulator(t *testing.T) {
	fx := newFixture()
	conv := fx.create(t)

	if conv.Title != "Order Cancellation Help" {
		t.Errorf("title = %q, want generated title", conv.Title)
	}
	// Outward view hides the system prompt and shows only the welcome.
	if len(conv.Messages) != 1 || conv.Messages[0].Role != types.RoleAssistant {
		t.Fatalf("visible messages = %+v, want single assistant welcome", conv.Messages)
	}
	if conv.Messages[0].AudioURL == "" {
		t.Error("welcome message has no audio URL")
	}

	stored := fx.convs.docs[conv.ID]
	if len(stored.Messages) != 2 {
		t.Fatalf("stored messages = %d, want 2", len(stored.Messages))
	}
	if stored.Messages[0].Role != types.RoleSystem {
		t.Errorf("first stored message role = %q, want system", stored.Messages[0].Role)
	}
	if !strings.Contains(stored.Messages[0].Content, fx.svc.Demo.Name) {
		t.Error("system prompt does not mention the persona name")
	}
	if stored.Metadata.Sentiment != types.SentimentNeutral {
		t.Errorf("initial sentiment = %q, want neutral", stored.Metadata.Sentiment)
	}
}

func TestCreateValidation(t *testing.T) {
	fx := newFixture()

	_, err := fx.svc.Create(context.Background(), CreateParams{IsCallSimulator: true})
	assertParamError(t, err, "userId")

	_, err = fx.svc.Create(context.Background(), CreateParams{UserID: "u1"})
	assertParamError(t, err, "agentId")
}

func assertParamError(t *testing.T, err error, param string) {
	t.Helper()
	var coreErr *core.Error
	if !errors.As(err, &coreErr) {
		t.Fatalf("error = %v, want *core.Error", err)
	}
	if coreErr.Type != core.ErrInvalidRequest || coreErr.Param != param {
		t.Errorf("error = %+v, want invalid_request on %q", coreErr, param)
	}
}

func TestCreateWithTitleFailure(t *testing.T) {
	fx := newFixture()
	fx.provider.failTitle = true

	res, err := fx.svc.Create(context.Background(), CreateParams{UserID: "u1", IsCallSimulator: true})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if res.Conversation.Title != defaultTitle {
		t.Errorf("title = %q, want %q fallback", res.Conversation.Title, defaultTitle)
	}
}

func TestCreateDateTitle(t *testing.T) {
	fx := newFixture()
	persona := DemoPersona()
	res, err := fx.svc.Create(context.Background(), CreateParams{UserID: "u1", AgentInfo: &persona})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if res.Conversation.Title != "Chat from 3/10/2025" {
		t.Errorf("title = %q, want date title", res.Conversation.Title)
	}
	// Non-simulator creation never consults the title generator.
	if fx.provider.titleCalls != 0 {
		t.Errorf("titleCalls = %d, want 0", fx.provider.titleCalls)
	}
}

func TestCreateSurvivesSynthesisFailure(t *testing.T) {
	fx := newFixture()
	fx.speech.fail = true

	conv := fx.create(t)
	if conv.Messages[0].AudioURL != "" {
		t.Errorf("welcome audio URL = %q, want empty on synthesis failure", conv.Messages[0].AudioURL)
	}
}

func TestAppendUserMessage(t *testing.T) {
	fx := newFixture()
	conv := fx.create(t)
	before := len(fx.convs.docs[conv.ID].Messages)

	res, err := fx.svc.AppendUserMessage(context.Background(), conv.ID, "I'd like to cancel my order", "")
	if err != nil {
		t.Fatalf("AppendUserMessage: %v", err)
	}

	stored := fx.convs.docs[conv.ID]
	if got := len(stored.Messages) - before; got != 2 {
		t.Fatalf("messages added = %d, want exactly 2", got)
	}
	if res.Reply.Content != "Happy to help with that." {
		t.Errorf("reply = %q", res.Reply.Content)
	}
	if res.Reply.AudioURL == "" {
		t.Error("assistant reply has no audio URL")
	}
	if stored.Metadata.Sentiment != types.SentimentPositive {
		t.Errorf("sentiment = %q, want positive from classifier", stored.Metadata.Sentiment)
	}
	wantIntents := []string{IntentPurchase, IntentCancellation}
	if len(stored.Metadata.Intents) != 2 || stored.Metadata.Intents[0] != wantIntents[0] || stored.Metadata.Intents[1] != wantIntents[1] {
		t.Errorf("intents = %v, want %v", stored.Metadata.Intents, wantIntents)
	}
	// First user message triggers a title refresh.
	if !res.TitleUpdated || res.Title != "Order Cancellation Help" {
		t.Errorf("title = %q updated=%v, want refreshed title", res.Title, res.TitleUpdated)
	}
}

func TestAppendValidation(t *testing.T) {
	fx := newFixture()
	conv := fx.create(t)

	_, err := fx.svc.AppendUserMessage(context.Background(), conv.ID, "   ", "")
	assertParamError(t, err, "content")

	_, err = fx.svc.AppendUserMessage(context.Background(), "missing", "hello", "")
	var coreErr *core.Error
	if !errors.As(err, &coreErr) || coreErr.Type != core.ErrNotFound {
		t.Errorf("error = %v, want not_found", err)
	}
}

func TestTitleCadence(t *testing.T) {
	fx := newFixture()
	conv := fx.create(t)
	titleCallsAfterCreate := fx.provider.titleCalls

	var updatedAt []int
	for i := 1; i <= 7; i++ {
		res, err := fx.svc.AppendUserMessage(context.Background(), conv.ID, fmt.Sprintf("message %d", i), "")
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		if res.TitleUpdated {
			updatedAt = append(updatedAt, i)
		}
	}

	want := []int{1, 3, 6}
	if len(updatedAt) != len(want) {
		t.Fatalf("title updates at %v, want %v", updatedAt, want)
	}
	for i := range want {
		if updatedAt[i] != want[i] {
			t.Fatalf("title updates at %v, want %v", updatedAt, want)
		}
	}
	if got := fx.provider.titleCalls - titleCallsAfterCreate; got != 3 {
		t.Errorf("title generator calls = %d, want 3", got)
	}
}

func TestSentimentRecomputedPerUserTurn(t *testing.T) {
	fx := newFixture()
	conv := fx.create(t)

	if fx.provider.sentimentCalls != 0 {
		t.Fatalf("sentiment calls after create = %d, want 0", fx.provider.sentimentCalls)
	}
	for i := 0; i < 3; i++ {
		if _, err := fx.svc.AppendUserMessage(context.Background(), conv.ID, "hello there", ""); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if fx.provider.sentimentCalls != 3 {
		t.Errorf("sentiment calls = %d, want one per user turn", fx.provider.sentimentCalls)
	}

	// End regenerates the title but never the sentiment.
	if _, err := fx.svc.End(context.Background(), conv.ID); err != nil {
		t.Fatalf("End: %v", err)
	}
	if fx.provider.sentimentCalls != 3 {
		t.Errorf("sentiment calls after End = %d, want 3", fx.provider.sentimentCalls)
	}
}

func TestCompletionFailureDegrades(t *testing.T) {
	fx := newFixture()
	conv := fx.create(t)
	fx.provider.failChat = true
	fx.provider.failSentiment = true

	res, err := fx.svc.AppendUserMessage(context.Background(), conv.ID, "this is terrible and awful", "")
	if err != nil {
		t.Fatalf("AppendUserMessage: %v", err)
	}
	if res.Reply.Content != fallbackReply {
		t.Errorf("reply = %q, want fallback apology", res.Reply.Content)
	}

	stored := fx.convs.docs[conv.ID]
	if stored.Metadata.Sentiment != types.SentimentNegative {
		t.Errorf("sentiment = %q, want keyword fallback negative", stored.Metadata.Sentiment)
	}
	// The failed turn is still persisted in full.
	if got := len(stored.Messages); got != 4 {
		t.Errorf("stored messages = %d, want 4", got)
	}
}

func TestEndIdempotent(t *testing.T) {
	fx := newFixture()
	conv := fx.create(t)

	first, err := fx.svc.End(context.Background(), conv.ID)
	if err != nil {
		t.Fatalf("End: %v", err)
	}
	second, err := fx.svc.End(context.Background(), conv.ID)
	if err != nil {
		t.Fatalf("second End: %v", err)
	}
	if first.Title != second.Title {
		t.Errorf("titles diverge across End calls: %q vs %q", first.Title, second.Title)
	}

	// Ending is advisory; the conversation still accepts turns.
	if _, err := fx.svc.AppendUserMessage(context.Background(), conv.ID, "one more thing", ""); err != nil {
		t.Errorf("append after End: %v", err)
	}
}

func TestDeleteCleansUpAudio(t *testing.T) {
	fx := newFixture()
	conv := fx.create(t)
	if _, err := fx.svc.AppendUserMessage(context.Background(), conv.ID, "hello", ""); err != nil {
		t.Fatalf("append: %v", err)
	}

	if err := fx.svc.Delete(context.Background(), conv.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	// Welcome audio plus one assistant reply.
	if len(fx.audio.removed) != 2 {
		t.Errorf("removed audio files = %v, want 2 entries", fx.audio.removed)
	}

	err := fx.svc.Delete(context.Background(), conv.ID)
	var coreErr *core.Error
	if !errors.As(err, &coreErr) || coreErr.Type != core.ErrNotFound {
		t.Errorf("second delete error = %v, want not_found", err)
	}
}

func TestDeleteReleasesLock(t *testing.T) {
	fx := newFixture()
	conv := fx.create(t)
	if _, err := fx.svc.AppendUserMessage(context.Background(), conv.ID, "hello", ""); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := fx.svc.Delete(context.Background(), conv.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	fx.svc.mu.Lock()
	_, held := fx.svc.locks[conv.ID]
	fx.svc.mu.Unlock()
	if held {
		t.Error("lock entry survived delete")
	}
}

func TestAgentPersonaRoundTrip(t *testing.T) {
	fx := newFixture()
	fx.svc.Agents = &fakeAgentStore{agents: map[string]*types.Agent{
		"a1": {
			ID:          "a1",
			UserID:      "u1",
			Name:        "Riley",
			CompanyName: "Acme Corp",
			CompanyInfo: "Acme sells industrial anvils.",
		},
	}}

	res, err := fx.svc.Create(context.Background(), CreateParams{UserID: "u1", AgentID: "a1"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	stored := fx.convs.docs[res.Conversation.ID]
	prompt := stored.Messages[0].Content
	if !strings.Contains(prompt, "Riley") {
		t.Error("system prompt missing agent name")
	}
	if !strings.Contains(prompt, "Acme sells industrial anvils.") {
		t.Error("system prompt missing company info verbatim")
	}
	if !strings.Contains(res.Conversation.Messages[0].Content, "Acme Corp") {
		t.Errorf("greeting = %q, want company name", res.Conversation.Messages[0].Content)
	}
}

func TestUserStats(t *testing.T) {
	fx := newFixture()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	seed := []*types.Conversation{
		{
			UserID: "u1",
			Messages: []types.Message{
				{Role: types.RoleSystem, Content: "x"},
				{Role: types.RoleUser, Content: "my Amazon package never arrived"},
				{Role: types.RoleAssistant, Content: "sorry to hear that"},
			},
			Metadata: types.Metadata{Duration: 30, Sentiment: types.SentimentNegative, Updated: now},
		},
		{
			UserID: "u1",
			Messages: []types.Message{
				{Role: types.RoleUser, Content: "hello"},
			},
			Metadata: types.Metadata{Duration: 10, Sentiment: types.SentimentPositive, Updated: now.Add(time.Hour)},
		},
		{
			UserID:   "someone-else",
			Metadata: types.Metadata{Duration: 999, Sentiment: types.SentimentUrgent},
		},
	}
	for _, c := range seed {
		if err := fx.convs.Insert(context.Background(), c); err != nil {
			t.Fatal(err)
		}
	}

	stats, err := fx.svc.UserStats(context.Background(), "u1")
	if err != nil {
		t.Fatalf("UserStats: %v", err)
	}
	if stats.TotalConversations != 2 {
		t.Errorf("TotalConversations = %d, want 2", stats.TotalConversations)
	}
	if stats.AverageDuration != 20 {
		t.Errorf("AverageDuration = %d, want 20", stats.AverageDuration)
	}
	if stats.TotalMessages != 3 {
		t.Errorf("TotalMessages = %d, want 3 visible", stats.TotalMessages)
	}
	if stats.SentimentBreakdown[types.SentimentNegative] != 1 || stats.SentimentBreakdown[types.SentimentPositive] != 1 {
		t.Errorf("SentimentBreakdown = %v", stats.SentimentBreakdown)
	}
	if stats.LastActivity == nil || !stats.LastActivity.Equal(now.Add(time.Hour)) {
		t.Errorf("LastActivity = %v, want most recent update", stats.LastActivity)
	}
	want := []string{"amazon", "general"}
	if len(stats.Companies) != 2 || stats.Companies[0] != want[0] || stats.Companies[1] != want[1] {
		t.Errorf("Companies = %v, want %v", stats.Companies, want)
	}
}

func TestUserStatsEmpty(t *testing.T) {
	fx := newFixture()
	stats, err := fx.svc.UserStats(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("UserStats: %v", err)
	}
	if stats.TotalConversations != 0 || stats.AverageDuration != 0 || stats.LastActivity != nil {
		t.Errorf("empty stats = %+v, want zero values", stats)
	}
	if len(stats.Companies) != 0 {
		t.Errorf("Companies = %v, want empty", stats.Companies)
	}
}

func TestConcurrentAppendsSerialize(t *testing.T) {
	fx := newFixture()
	conv := fx.create(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := fx.svc.AppendUserMessage(context.Background(), conv.ID, fmt.Sprintf("turn %d", i), ""); err != nil {
				t.Errorf("append %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	stored := fx.convs.docs[conv.ID]
	// 2 initial + 2 per turn, no lost updates.
	if got := len(stored.Messages); got != 18 {
		t.Errorf("stored messages = %d, want 18", got)
	}
}
