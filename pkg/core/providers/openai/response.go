package openai

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/conversai-app/conversai/pkg/core/types"
)

// chatResponse is the OpenAI Chat Completions response shape.
type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// Error is an error returned by the OpenAI API.
type Error struct {
	StatusCode int    `json:"-"`
	Type       string `json:"type"`
	Message    string `json:"message"`
	Code       string `json:"code"`
	Param      string `json:"param"`
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("openai: %s (code: %s)", e.Message, e.Code)
	}
	return fmt.Sprintf("openai: %s", e.Message)
}

type errorEnvelope struct {
	Error *Error `json:"error"`
}

// parseResponse translates an OpenAI response into the gateway format.
func parseResponse(body []byte) (*types.CompletionResponse, error) {
	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("response has no choices")
	}
	return &types.CompletionResponse{
		Content: resp.Choices[0].Message.Content,
		Model:   resp.Model,
	}, nil
}

// parseError decodes an API error payload; falls back to the HTTP status
// when the body is not the documented envelope.
func parseError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &Error{StatusCode: resp.StatusCode, Message: resp.Status}
	}
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil || env.Error == nil {
		return &Error{StatusCode: resp.StatusCode, Message: resp.Status}
	}
	env.Error.StatusCode = resp.StatusCode
	return env.Error
}
