// Package openai implements the OpenAI gateway: Chat Completions for text
// and the speech endpoint for audio synthesis.
package openai

import (
	"context"
	"net/http"

	"github.com/conversai-app/conversai/pkg/core/types"
)

const (
	// DefaultBaseURL is the default OpenAI API endpoint.
	DefaultBaseURL = "https://api.openai.com/v1"

	// DefaultChatModel is used when a request does not name a model.
	DefaultChatModel = "gpt-4o-mini"

	// DefaultSpeechModel is the TTS model.
	DefaultSpeechModel = "tts-1"

	// DefaultVoice is used when synthesis options do not name a voice.
	DefaultVoice = "alloy"
)

// Provider talks to the OpenAI API.
type Provider struct {
	apiKey      string
	baseURL     string
	chatModel   string
	speechModel string
	httpClient  *http.Client
}

// New creates a new OpenAI provider.
func New(apiKey string, opts ...Option) *Provider {
	p := &Provider{
		apiKey:      apiKey,
		baseURL:     DefaultBaseURL,
		chatModel:   DefaultChatModel,
		speechModel: DefaultSpeechModel,
		httpClient:  &http.Client{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return "openai"
}

// CreateCompletion sends a non-streaming chat completion request.
func (p *Provider) CreateCompletion(ctx context.Context, req *types.CompletionRequest) (*types.CompletionResponse, error) {
	openaiReq := p.buildRequest(req)

	respBody, err := p.doRequest(ctx, "/chat/completions", openaiReq)
	if err != nil {
		return nil, err
	}

	return parseResponse(respBody)
}

// Synthesize converts text to audio via the speech endpoint. The returned
// bytes are the raw encoded audio (mp3 unless overridden).
func (p *Provider) Synthesize(ctx context.Context, text string, opts types.SpeechOptions) ([]byte, error) {
	voice := opts.Voice
	if voice == "" {
		voice = DefaultVoice
	}
	format := opts.Format
	if format == "" {
		format = "mp3"
	}
	return p.doSpeechRequest(ctx, &speechRequest{
		Model:          p.speechModel,
		Voice:          voice,
		Input:          text,
		ResponseFormat: format,
	})
}
