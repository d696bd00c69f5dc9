// Command conversai runs the customer support conversation gateway.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/conversai-app/conversai/pkg/core/providers/openai"
	"github.com/conversai-app/conversai/pkg/gateway/audio"
	"github.com/conversai-app/conversai/pkg/gateway/auth"
	"github.com/conversai-app/conversai/pkg/gateway/config"
	"github.com/conversai-app/conversai/pkg/gateway/rooms"
	"github.com/conversai-app/conversai/pkg/gateway/server"
	"github.com/conversai-app/conversai/pkg/gateway/session"
	"github.com/conversai-app/conversai/pkg/gateway/store"
)

type appDeps struct {
	loadConfig   func() (config.Config, error)
	connect      func(ctx context.Context, uri string) (*mongo.Client, error)
	signalNotify func(chan<- os.Signal, ...os.Signal)
	signalStop   func(chan<- os.Signal)
}

func defaultAppDeps() appDeps {
	return appDeps{
		loadConfig: config.LoadFromEnv,
		connect:    store.Connect,
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {
			signal.Notify(c, sig...)
		},
		signalStop: signal.Stop,
	}
}

func buildHTTPServer(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
	}
}

func run(ctx context.Context, logger *slog.Logger, deps appDeps) error {
	if deps.loadConfig == nil || deps.connect == nil {
		return errors.New("missing dependency")
	}
	if deps.signalNotify == nil || deps.signalStop == nil {
		return errors.New("missing signal dependency")
	}
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := deps.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	connectCtx, connectCancel := context.WithTimeout(ctx, cfg.MongoConnectTimeout)
	defer connectCancel()
	client, err := deps.connect(connectCtx, cfg.MongoURI)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() {
		_ = client.Disconnect(context.Background())
	}()
	db := store.NewMongo(client.Database(cfg.MongoDatabase))

	audioStore, err := audio.NewStore(cfg.AudioDir)
	if err != nil {
		return fmt.Errorf("init audio store: %w", err)
	}

	providerOpts := []openai.Option{
		openai.WithChatModel(cfg.ChatModel),
		openai.WithSpeechModel(cfg.SpeechModel),
	}
	if cfg.OpenAIBaseURL != "" {
		providerOpts = append(providerOpts, openai.WithBaseURL(cfg.OpenAIBaseURL))
	}
	provider := openai.New(cfg.OpenAIAPIKey, providerOpts...)

	sessions := &session.Service{
		Conversations: db.Conversations(),
		Agents:        db.Agents(),
		Provider:      provider,
		Speech:        provider,
		Audio:         audioStore,
		Logger:        logger,
		Demo:          session.DemoPersona(),
		ContextWindow: cfg.ContextWindow,
	}

	roomService := rooms.New(cfg)

	srv := server.New(cfg, logger, server.Deps{
		Sessions: sessions,
		Agents:   db.Agents(),
		Audio:    audioStore,
		Rooms:    roomService,
		DB:       db,
		Verifier: auth.NewVerifier(cfg.SessionSecret),
	})
	httpSrv := buildHTTPServer(cfg, srv.Handler())

	logger.Info("starting gateway", "addr", cfg.Addr, "livekit", roomService.Enabled())

	listenErrCh := make(chan error, 1)
	go func() {
		err := httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErrCh <- err
			return
		}
		listenErrCh <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	deps.signalNotify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer deps.signalStop(sigCh)

	select {
	case err := <-listenErrCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	if err := <-listenErrCh; err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	logger.Info("gateway stopped")
	return nil
}

func runMain(ctx context.Context, stderr io.Writer, deps appDeps) int {
	if stderr == nil {
		stderr = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(stderr, nil))

	// A local .env is a development convenience; absence is not an error.
	_ = godotenv.Load()

	if err := run(ctx, logger, deps); err != nil {
		fmt.Fprintf(stderr, "conversai: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(runMain(context.Background(), os.Stderr, defaultAppDeps()))
}
