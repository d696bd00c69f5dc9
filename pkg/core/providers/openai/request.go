package openai

import (
	"github.com/conversai-app/conversai/pkg/core/types"
)

// chatRequest is the OpenAI Chat Completions request shape.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// speechRequest is the OpenAI speech endpoint request shape.
type speechRequest struct {
	Model          string `json:"model"`
	Voice          string `json:"voice"`
	Input          string `json:"input"`
	ResponseFormat string `json:"response_format,omitempty"`
}

// buildRequest translates a gateway request into OpenAI's format.
func (p *Provider) buildRequest(req *types.CompletionRequest) *chatRequest {
	model := req.Model
	if model == "" {
		model = p.chatModel
	}

	messages := make([]chatMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, chatMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	out := &chatRequest{
		Model:     model,
		Messages:  messages,
		MaxTokens: req.MaxTokens,
	}
	if req.Temperature != 0 {
		t := req.Temperature
		out.Temperature = &t
	}
	return out
}
