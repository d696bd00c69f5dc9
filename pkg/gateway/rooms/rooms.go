// Package rooms provisions LiveKit rooms and mints join tokens for
// voice-call conversations.
package rooms

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/livekit/protocol/auth"
	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"

	"github.com/conversai-app/conversai/pkg/core"
	"github.com/conversai-app/conversai/pkg/gateway/config"
)

// TokenTTL bounds how long a join token stays valid.
const TokenTTL = time.Hour

// Service wraps the LiveKit room API. A nil *Service is a valid disabled
// service; every method then reports rooms as unconfigured.
type Service struct {
	client    *lksdk.RoomServiceClient
	apiKey    string
	apiSecret string
	wsURL     string
}

// New returns the room service, or nil when LiveKit is not configured.
func New(cfg config.Config) *Service {
	if !cfg.LiveKitEnabled() {
		return nil
	}
	return &Service{
		client:    lksdk.NewRoomServiceClient(hostURL(cfg.LiveKitWSURL), cfg.LiveKitAPIKey, cfg.LiveKitAPISecret),
		apiKey:    cfg.LiveKitAPIKey,
		apiSecret: cfg.LiveKitAPISecret,
		wsURL:     cfg.LiveKitWSURL,
	}
}

// hostURL converts a signalling URL into the HTTP API endpoint.
func hostURL(wsURL string) string {
	switch {
	case strings.HasPrefix(wsURL, "wss://"):
		return "https://" + strings.TrimPrefix(wsURL, "wss://")
	case strings.HasPrefix(wsURL, "ws://"):
		return "http://" + strings.TrimPrefix(wsURL, "ws://")
	default:
		return wsURL
	}
}

// Enabled reports whether room provisioning is configured.
func (s *Service) Enabled() bool { return s != nil }

func (s *Service) disabledErr() error {
	return core.NewInvalidRequestError("voice rooms are not configured")
}

// WSURL returns the signalling URL clients connect to.
func (s *Service) WSURL() string {
	if s == nil {
		return ""
	}
	return s.wsURL
}

// JoinToken mints a scoped token letting identity join the named room.
func (s *Service) JoinToken(room, identity string) (string, error) {
	if s == nil {
		return "", s.disabledErr()
	}
	if room == "" {
		return "", core.NewInvalidRequestErrorWithParam("room is required", "room")
	}
	if identity == "" {
		return "", core.NewInvalidRequestErrorWithParam("identity is required", "identity")
	}

	canPublish := true
	canSubscribe := true
	grant := &auth.VideoGrant{
		RoomJoin:     true,
		Room:         room,
		CanPublish:   &canPublish,
		CanSubscribe: &canSubscribe,
	}
	token := auth.NewAccessToken(s.apiKey, s.apiSecret).
		SetIdentity(identity).
		SetValidFor(TokenTTL).
		SetVideoGrant(grant)
	jwt, err := token.ToJWT()
	if err != nil {
		return "", fmt.Errorf("sign join token: %w", err)
	}
	return jwt, nil
}

// CreateRoom provisions a named room on the LiveKit server.
func (s *Service) CreateRoom(ctx context.Context, name string, maxParticipants uint32) (*livekit.Room, error) {
	if s == nil {
		return nil, s.disabledErr()
	}
	if name == "" {
		return nil, core.NewInvalidRequestErrorWithParam("roomName is required", "roomName")
	}
	room, err := s.client.CreateRoom(ctx, &livekit.CreateRoomRequest{
		Name:            name,
		EmptyTimeout:    300,
		MaxParticipants: maxParticipants,
	})
	if err != nil {
		return nil, core.NewUpstreamError("livekit", err)
	}
	return room, nil
}

// ListRooms returns the active rooms.
func (s *Service) ListRooms(ctx context.Context) ([]*livekit.Room, error) {
	if s == nil {
		return nil, s.disabledErr()
	}
	resp, err := s.client.ListRooms(ctx, &livekit.ListRoomsRequest{})
	if err != nil {
		return nil, core.NewUpstreamError("livekit", err)
	}
	return resp.Rooms, nil
}

// DeleteRoom tears down a room and disconnects its participants.
func (s *Service) DeleteRoom(ctx context.Context, name string) error {
	if s == nil {
		return s.disabledErr()
	}
	if name == "" {
		return core.NewInvalidRequestErrorWithParam("roomName is required", "roomName")
	}
	if _, err := s.client.DeleteRoom(ctx, &livekit.DeleteRoomRequest{Room: name}); err != nil {
		return core.NewUpstreamError("livekit", err)
	}
	return nil
}

// CreateTestRoom provisions a throwaway room with a join token for the
// given identity, for connectivity checks.
func (s *Service) CreateTestRoom(ctx context.Context, identity string) (*livekit.Room, string, error) {
	if s == nil {
		return nil, "", s.disabledErr()
	}
	name := fmt.Sprintf("test-room-%d", time.Now().UnixMilli())
	room, err := s.CreateRoom(ctx, name, 2)
	if err != nil {
		return nil, "", err
	}
	token, err := s.JoinToken(name, identity)
	if err != nil {
		return nil, "", err
	}
	return room, token, nil
}
