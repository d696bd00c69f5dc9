// Package types defines the conversation data model shared by the store, the
// session service and the HTTP/websocket surfaces.
package types

import (
	"strings"
	"time"
)

// Role identifies who produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	// RoleSystem anchors the persona prompt. System messages are persisted but
	// filtered out of every outward view.
	RoleSystem Role = "system"
)

// ValidRole reports whether r is one of the three known roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Message is one turn entry. Immutable once appended; insertion order is
// chronological order and is significant.
type Message struct {
	Role      Role      `json:"role" bson:"role"`
	Content   string    `json:"content" bson:"content"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
	AudioURL  string    `json:"audioUrl,omitempty" bson:"audioUrl,omitempty"`
}

// Sentiment is the coarse classification of the customer's mood.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
	SentimentUrgent   Sentiment = "urgent"
)

// ParseSentiment normalizes a classifier reply to a known sentiment.
// Unknown input yields neutral with ok=false.
func ParseSentiment(raw string) (Sentiment, bool) {
	switch Sentiment(strings.ToLower(strings.TrimSpace(raw))) {
	case SentimentPositive:
		return SentimentPositive, true
	case SentimentNegative:
		return SentimentNegative, true
	case SentimentNeutral:
		return SentimentNeutral, true
	case SentimentUrgent:
		return SentimentUrgent, true
	}
	return SentimentNeutral, false
}

// Metadata carries derived conversation state. Updated >= Created always.
type Metadata struct {
	// Duration is whole seconds elapsed since creation, truncated.
	Duration  int64     `json:"duration" bson:"duration"`
	Sentiment Sentiment `json:"sentiment" bson:"sentiment"`
	Intents   []string  `json:"intents" bson:"intents"`
	Created   time.Time `json:"created" bson:"created"`
	Updated   time.Time `json:"updated" bson:"updated"`
}

// Conversation is one customer conversation document. Owned exclusively by
// the session that created it; persisted after every mutation.
type Conversation struct {
	ID       string    `json:"_id" bson:"_id,omitempty"`
	UserID   string    `json:"userId" bson:"userId"`
	AgentID  string    `json:"agentId,omitempty" bson:"agentId,omitempty"`
	Title    string    `json:"title" bson:"title"`
	Messages []Message `json:"messages" bson:"messages"`
	Metadata Metadata  `json:"metadata" bson:"metadata"`
}

// UserCount returns the number of user-role messages.
func (c *Conversation) UserCount() int {
	n := 0
	for _, m := range c.Messages {
		if m.Role == RoleUser {
			n++
		}
	}
	return n
}

// VisibleMessages returns the messages with system entries stripped.
func (c *Conversation) VisibleMessages() []Message {
	out := make([]Message, 0, len(c.Messages))
	for _, m := range c.Messages {
		if m.Role == RoleSystem {
			continue
		}
		out = append(out, m)
	}
	return out
}

// Agent is a caller-defined persona record, scoped to its owning user.
type Agent struct {
	ID          string    `json:"_id" bson:"_id,omitempty"`
	UserID      string    `json:"userId" bson:"userId"`
	Name        string    `json:"name" bson:"name"`
	CompanyName string    `json:"companyName" bson:"companyName"`
	Personality string    `json:"personality" bson:"personality"`
	CompanyInfo string    `json:"companyInfo" bson:"companyInfo"`
	Prompts     []string  `json:"prompts" bson:"prompts"`
	Created     time.Time `json:"createdAt" bson:"createdAt"`
	Updated     time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Persona is the resolved identity a conversation impersonates. It also
// decodes the agentInfo payload clients may supply inline.
type Persona struct {
	Name        string   `json:"name"`
	Company     string   `json:"company,omitempty"`
	Personality string   `json:"personality,omitempty"`
	CompanyInfo string   `json:"companyInfo,omitempty"`
	Prompts     []string `json:"prompts,omitempty"`
	Greeting    string   `json:"greeting,omitempty"`
	Voice       string   `json:"voice,omitempty"`
	// SystemPrompt, when set, is used verbatim instead of being derived from
	// the fields above. The demo persona carries a fixed script here.
	SystemPrompt string `json:"systemPrompt,omitempty"`
}

// UserStats aggregates a user's conversation history. Pure read model.
type UserStats struct {
	TotalConversations int                 `json:"totalCalls"`
	AverageDuration    int64               `json:"averageDuration"`
	LastActivity       *time.Time          `json:"lastPractice"`
	SentimentBreakdown map[Sentiment]int   `json:"sentimentBreakdown"`
	TotalMessages      int                 `json:"totalMessages"`
	Companies          []string            `json:"companiesInteractedWith"`
}

// ChatMessage is one entry in a gateway completion request.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is the gateway chat request.
type CompletionRequest struct {
	Model       string        `json:"model,omitempty"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

// CompletionResponse is the gateway chat reply.
type CompletionResponse struct {
	Content string `json:"content"`
	Model   string `json:"model,omitempty"`
}

// SpeechOptions configures speech synthesis.
type SpeechOptions struct {
	Voice  string // voice identifier, e.g. "alloy"
	Format string // output format, defaults to "mp3"
}
