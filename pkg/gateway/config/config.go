// Package config loads gateway configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr string

	// Persistence.
	MongoURI      string
	MongoDatabase string

	// Language-model / speech gateway. A missing API key is a fatal
	// configuration error at startup; every per-request gateway failure
	// degrades locally instead.
	OpenAIAPIKey  string
	OpenAIBaseURL string
	ChatModel     string
	SpeechModel   string

	// Directory where synthesized and uploaded audio is written; served
	// under /audio/.
	AudioDir string

	// CORS allowlist (frontend origins). Empty => CORS disabled.
	AllowedOrigins map[string]struct{}

	// SessionSecret signs and verifies agent-API bearer tokens.
	SessionSecret string

	// Real-time room provider. Optional: either all three are set or the
	// room routes are disabled.
	LiveKitAPIKey    string
	LiveKitAPISecret string
	LiveKitWSURL     string

	// Bounded completion context (messages), persona prompt excluded.
	ContextWindow int

	// Operational defaults.
	ReadHeaderTimeout   time.Duration
	ReadTimeout         time.Duration
	ShutdownGracePeriod time.Duration
	MongoConnectTimeout time.Duration
	MaxBodyBytes        int64
	MaxUploadBytes      int64

	// Websocket channel.
	WSPingInterval time.Duration
	WSWriteTimeout time.Duration
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                envOr("CONVERSAI_ADDR", ":5001"),
		MongoURI:            envOr("CONVERSAI_MONGODB_URI", "mongodb://localhost:27017"),
		MongoDatabase:       envOr("CONVERSAI_MONGODB_DATABASE", "conversai"),
		OpenAIAPIKey:        strings.TrimSpace(os.Getenv("CONVERSAI_OPENAI_API_KEY")),
		OpenAIBaseURL:       envOr("CONVERSAI_OPENAI_BASE_URL", ""),
		ChatModel:           envOr("CONVERSAI_CHAT_MODEL", "gpt-4o-mini"),
		SpeechModel:         envOr("CONVERSAI_SPEECH_MODEL", "tts-1"),
		AudioDir:            envOr("CONVERSAI_AUDIO_DIR", "public/audio"),
		AllowedOrigins:      make(map[string]struct{}),
		SessionSecret:       strings.TrimSpace(os.Getenv("CONVERSAI_SESSION_SECRET")),
		LiveKitAPIKey:       strings.TrimSpace(os.Getenv("CONVERSAI_LIVEKIT_API_KEY")),
		LiveKitAPISecret:    strings.TrimSpace(os.Getenv("CONVERSAI_LIVEKIT_API_SECRET")),
		LiveKitWSURL:        normalizeWSURL(os.Getenv("CONVERSAI_LIVEKIT_WS_URL")),
		ContextWindow:       envIntOr("CONVERSAI_CONTEXT_WINDOW", 5),
		ReadHeaderTimeout:   envDurationOr("CONVERSAI_READ_HEADER_TIMEOUT", 10*time.Second),
		ReadTimeout:         envDurationOr("CONVERSAI_READ_TIMEOUT", 30*time.Second),
		ShutdownGracePeriod: envDurationOr("CONVERSAI_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
		MongoConnectTimeout: envDurationOr("CONVERSAI_MONGODB_CONNECT_TIMEOUT", 10*time.Second),
		MaxBodyBytes:        envInt64Or("CONVERSAI_MAX_BODY_BYTES", 1<<20),    // 1 MiB
		MaxUploadBytes:      envInt64Or("CONVERSAI_MAX_UPLOAD_BYTES", 16<<20), // 16 MiB
		WSPingInterval:      envDurationOr("CONVERSAI_WS_PING_INTERVAL", 20*time.Second),
		WSWriteTimeout:      envDurationOr("CONVERSAI_WS_WRITE_TIMEOUT", 5*time.Second),
	}

	for _, origin := range splitCSV(envOr("CONVERSAI_FRONTEND_URL", "http://localhost:3000")) {
		cfg.AllowedOrigins[origin] = struct{}{}
	}

	if cfg.OpenAIAPIKey == "" {
		return Config{}, fmt.Errorf("CONVERSAI_OPENAI_API_KEY must be set")
	}
	if cfg.SessionSecret == "" {
		return Config{}, fmt.Errorf("CONVERSAI_SESSION_SECRET must be set")
	}
	if strings.TrimSpace(cfg.MongoURI) == "" {
		return Config{}, fmt.Errorf("CONVERSAI_MONGODB_URI must not be empty")
	}
	if strings.TrimSpace(cfg.MongoDatabase) == "" {
		return Config{}, fmt.Errorf("CONVERSAI_MONGODB_DATABASE must not be empty")
	}
	if strings.TrimSpace(cfg.AudioDir) == "" {
		return Config{}, fmt.Errorf("CONVERSAI_AUDIO_DIR must not be empty")
	}
	if cfg.ContextWindow <= 0 {
		return Config{}, fmt.Errorf("CONVERSAI_CONTEXT_WINDOW must be > 0")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("CONVERSAI_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ReadTimeout <= 0 {
		return Config{}, fmt.Errorf("CONVERSAI_READ_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("CONVERSAI_SHUTDOWN_GRACE_PERIOD must be > 0")
	}
	if cfg.MongoConnectTimeout <= 0 {
		return Config{}, fmt.Errorf("CONVERSAI_MONGODB_CONNECT_TIMEOUT must be > 0")
	}
	if cfg.MaxBodyBytes <= 0 {
		return Config{}, fmt.Errorf("CONVERSAI_MAX_BODY_BYTES must be > 0")
	}
	if cfg.MaxUploadBytes <= 0 {
		return Config{}, fmt.Errorf("CONVERSAI_MAX_UPLOAD_BYTES must be > 0")
	}
	if cfg.WSPingInterval <= 0 {
		return Config{}, fmt.Errorf("CONVERSAI_WS_PING_INTERVAL must be > 0")
	}
	if cfg.WSWriteTimeout <= 0 {
		return Config{}, fmt.Errorf("CONVERSAI_WS_WRITE_TIMEOUT must be > 0")
	}

	livekitSet := 0
	for _, v := range []string{cfg.LiveKitAPIKey, cfg.LiveKitAPISecret, cfg.LiveKitWSURL} {
		if v != "" {
			livekitSet++
		}
	}
	if livekitSet != 0 && livekitSet != 3 {
		return Config{}, fmt.Errorf("CONVERSAI_LIVEKIT_API_KEY, CONVERSAI_LIVEKIT_API_SECRET and CONVERSAI_LIVEKIT_WS_URL must be set together")
	}

	return cfg, nil
}

// LiveKitEnabled reports whether the room provider is configured.
func (c Config) LiveKitEnabled() bool {
	return c.LiveKitAPIKey != "" && c.LiveKitAPISecret != "" && c.LiveKitWSURL != ""
}

// normalizeWSURL forces a wss:// scheme the way the room provider expects.
func normalizeWSURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	for _, prefix := range []string{"wss://", "ws://", "https://", "http://"} {
		raw = strings.TrimPrefix(raw, prefix)
	}
	return "wss://" + raw
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envInt64Or(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
