// Package live carries conversations over a websocket channel.
package live

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/conversai-app/conversai/pkg/core/types"
)

// DecodeError describes a malformed or invalid client frame.
type DecodeError struct {
	Code    string
	Message string
	Param   string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Param) == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Param)
}

func badRequest(message, param string) *DecodeError {
	return &DecodeError{Code: "bad_request", Message: message, Param: param}
}

// StartConversation opens a new conversation on the socket.
type StartConversation struct {
	Type            string         `json:"type"`
	UserID          string         `json:"userId"`
	AgentID         string         `json:"agentId,omitempty"`
	AgentInfo       *types.Persona `json:"agentInfo,omitempty"`
	IsCallSimulator bool           `json:"isCallSimulator,omitempty"`
	Title           string         `json:"title,omitempty"`
}

// UserMessage appends one user turn to an open conversation.
type UserMessage struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId"`
	Message        string `json:"message"`
}

// DecodeClientMessage parses one inbound frame into its typed event.
func DecodeClientMessage(data []byte) (any, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, badRequest("invalid json frame", "")
	}
	typ := strings.TrimSpace(envelope.Type)
	if typ == "" {
		return nil, badRequest("missing type", "type")
	}

	switch typ {
	case "start_conversation":
		var msg StartConversation
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid start_conversation frame", "")
		}
		if strings.TrimSpace(msg.UserID) == "" {
			return nil, badRequest("start_conversation.userId is required", "userId")
		}
		if !msg.IsCallSimulator && msg.AgentInfo == nil && strings.TrimSpace(msg.AgentID) == "" {
			return nil, badRequest("start_conversation.agentId is required", "agentId")
		}
		return msg, nil
	case "user_message":
		var msg UserMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid user_message frame", "")
		}
		if strings.TrimSpace(msg.ConversationID) == "" {
			return nil, badRequest("user_message.conversationId is required", "conversationId")
		}
		if strings.TrimSpace(msg.Message) == "" {
			return nil, badRequest("user_message.message is required", "message")
		}
		return msg, nil
	default:
		return nil, badRequest(fmt.Sprintf("unknown message type %q", typ), "type")
	}
}

// ConversationStarted acknowledges a start_conversation event. The welcome
// message is surfaced on its own for clients that only render the greeting;
// Messages carries the full outward view.
type ConversationStarted struct {
	Type           string          `json:"type"`
	ConversationID string          `json:"conversationId"`
	Title          string          `json:"title"`
	WelcomeMessage *types.Message  `json:"welcomeMessage,omitempty"`
	Messages       []types.Message `json:"messages"`
}

// Typing tells the client whether the assistant is composing a reply.
type Typing struct {
	Type     string `json:"type"`
	IsTyping bool   `json:"isTyping"`
}

// AIResponse carries one assistant turn.
type AIResponse struct {
	Type           string        `json:"type"`
	ConversationID string        `json:"conversationId"`
	Message        types.Message `json:"message"`
	Title          string        `json:"title,omitempty"`
	TitleUpdated   bool          `json:"titleUpdated,omitempty"`
}

// ServerError reports a recoverable or fatal socket error.
type ServerError struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Close   bool   `json:"close,omitempty"`
}
