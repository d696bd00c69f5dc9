package openai

import (
	"net/http"
	"strings"
)

// Option configures the provider.
type Option func(*Provider)

// WithBaseURL overrides the API endpoint (for proxies and tests).
func WithBaseURL(baseURL string) Option {
	return func(p *Provider) {
		baseURL = strings.TrimSpace(baseURL)
		if baseURL != "" {
			p.baseURL = baseURL
		}
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) {
		if client != nil {
			p.httpClient = client
		}
	}
}

// WithChatModel sets the default chat completion model.
func WithChatModel(model string) Option {
	return func(p *Provider) {
		model = strings.TrimSpace(model)
		if model != "" {
			p.chatModel = model
		}
	}
}

// WithSpeechModel sets the TTS model.
func WithSpeechModel(model string) Option {
	return func(p *Provider) {
		model = strings.TrimSpace(model)
		if model != "" {
			p.speechModel = model
		}
	}
}
