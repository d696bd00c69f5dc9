package live

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/conversai-app/conversai/pkg/core"
	"github.com/conversai-app/conversai/pkg/core/types"
	"github.com/conversai-app/conversai/pkg/gateway/config"
	"github.com/conversai-app/conversai/pkg/gateway/session"
)

func TestDecodeClientMessage(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		want    any
		wantErr string
	}{
		{
			name:  "start simulator",
			frame: `{"type":"start_conversation","userId":"u1","isCallSimulator":true}`,
			want:  StartConversation{Type: "start_conversation", UserID: "u1", IsCallSimulator: true},
		},
		{
			name:  "user message",
			frame: `{"type":"user_message","conversationId":"c1","message":"hi"}`,
			want:  UserMessage{Type: "user_message", ConversationID: "c1", Message: "hi"},
		},
		{name: "not json", frame: `{`, wantErr: "invalid json frame"},
		{name: "missing type", frame: `{"userId":"u1"}`, wantErr: "missing type"},
		{name: "unknown type", frame: `{"type":"dance"}`, wantErr: "unknown message type"},
		{name: "start without user", frame: `{"type":"start_conversation","isCallSimulator":true}`, wantErr: "userId is required"},
		{name: "start without agent", frame: `{"type":"start_conversation","userId":"u1"}`, wantErr: "agentId is required"},
		{name: "message without conversation", frame: `{"type":"user_message","message":"hi"}`, wantErr: "conversationId is required"},
		{name: "empty message", frame: `{"type":"user_message","conversationId":"c1","message":""}`, wantErr: "message is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeClientMessage([]byte(tt.frame))
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			switch want := tt.want.(type) {
			case StartConversation:
				if got != want {
					t.Errorf("decoded %+v, want %+v", got, want)
				}
			case UserMessage:
				if got != want {
					t.Errorf("decoded %+v, want %+v", got, want)
				}
			}
		})
	}
}

type fakeBackend struct {
	failAppend bool
}

func (f *fakeBackend) Create(_ context.Context, p session.CreateParams) (*session.CreateResult, error) {
	return &session.CreateResult{
		Conversation: &types.Conversation{
			ID:    "c1",
			Title: "New Conversation",
			Messages: []types.Message{
				{Role: types.RoleAssistant, Content: "Hello!"},
			},
		},
	}, nil
}

func (f *fakeBackend) AppendUserMessage(_ context.Context, id, content, _ string) (*session.TurnResult, error) {
	if f.failAppend {
		return nil, core.NewNotFoundError("conversation not found")
	}
	return &session.TurnResult{
		Reply: types.Message{Role: types.RoleAssistant, Content: "echo: " + content},
		Title: "Updated Title",
	}, nil
}

func dialTest(t *testing.T, backend Backend) *websocket.Conn {
	t.Helper()
	h := Handler{
		Config: config.Config{
			WSWriteTimeout: 2 * time.Second,
		},
		Sessions: backend,
	}
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var event map[string]any
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("read event: %v", err)
	}
	return event
}

func TestSocketConversationFlow(t *testing.T) {
	conn := dialTest(t, &fakeBackend{})

	if err := conn.WriteJSON(map[string]any{"type": "start_conversation", "userId": "u1", "isCallSimulator": true}); err != nil {
		t.Fatal(err)
	}
	started := readEvent(t, conn)
	if started["type"] != "conversation_started" || started["conversationId"] != "c1" {
		t.Fatalf("event = %v", started)
	}
	welcome, ok := started["welcomeMessage"].(map[string]any)
	if !ok || welcome["content"] != "Hello!" {
		t.Errorf("welcomeMessage = %v", started["welcomeMessage"])
	}

	if err := conn.WriteJSON(map[string]any{"type": "user_message", "conversationId": "c1", "message": "hi"}); err != nil {
		t.Fatal(err)
	}

	// typing toggles bracket the turn, then the reply arrives.
	typingOn := readEvent(t, conn)
	if typingOn["type"] != "typing" || typingOn["isTyping"] != true {
		t.Fatalf("event = %v, want typing on", typingOn)
	}
	typingOff := readEvent(t, conn)
	if typingOff["type"] != "typing" || typingOff["isTyping"] != false {
		t.Fatalf("event = %v, want typing off", typingOff)
	}
	reply := readEvent(t, conn)
	if reply["type"] != "ai_response" {
		t.Fatalf("event = %v, want ai_response", reply)
	}
	message := reply["message"].(map[string]any)
	if message["content"] != "echo: hi" {
		t.Errorf("reply content = %v", message["content"])
	}
}

func TestSocketErrorEvents(t *testing.T) {
	conn := dialTest(t, &fakeBackend{failAppend: true})

	if err := conn.WriteJSON(map[string]any{"type": "dance"}); err != nil {
		t.Fatal(err)
	}
	event := readEvent(t, conn)
	if event["type"] != "error" || event["code"] != "bad_request" {
		t.Fatalf("event = %v, want bad_request error", event)
	}

	if err := conn.WriteJSON(map[string]any{"type": "user_message", "conversationId": "gone", "message": "hi"}); err != nil {
		t.Fatal(err)
	}
	// typing toggles still bracket the failed turn.
	readEvent(t, conn)
	readEvent(t, conn)
	failed := readEvent(t, conn)
	if failed["type"] != "error" || failed["code"] != "not_found_error" {
		t.Fatalf("event = %v, want not_found_error", failed)
	}
}

func TestSocketOriginDenied(t *testing.T) {
	h := Handler{
		Config: config.Config{
			AllowedOrigins: map[string]struct{}{"http://localhost:3000": {}},
		},
		Sessions: &fakeBackend{},
	}
	srv := httptest.NewServer(h)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	header := map[string][]string{"Origin": {"http://evil.example"}}
	if _, resp, err := websocket.DefaultDialer.Dial(url, header); err == nil {
		t.Fatal("dial from disallowed origin succeeded")
	} else if resp == nil || resp.StatusCode != 403 {
		t.Fatalf("resp = %+v, want 403", resp)
	}
}
