package core

import (
	"context"

	"github.com/conversai-app/conversai/pkg/core/types"
)

// Provider is the language-model gateway: given a message list it returns a
// completion string.
type Provider interface {
	// Name returns the provider identifier (e.g., "openai").
	Name() string

	// CreateCompletion sends a non-streaming chat completion request.
	CreateCompletion(ctx context.Context, req *types.CompletionRequest) (*types.CompletionResponse, error)
}

// SpeechProvider synthesizes audio from text.
type SpeechProvider interface {
	// Name returns the provider identifier.
	Name() string

	// Synthesize converts text to audio bytes.
	Synthesize(ctx context.Context, text string, opts types.SpeechOptions) ([]byte, error)
}
