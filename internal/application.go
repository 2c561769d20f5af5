package application

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/seabattlehq/battleship-backend/internal/config"
	"github.com/seabattlehq/battleship-backend/internal/entity"
	"github.com/seabattlehq/battleship-backend/internal/ratelimit"
	"github.com/seabattlehq/battleship-backend/internal/registry"
	"github.com/seabattlehq/battleship-backend/internal/repository"
	"github.com/seabattlehq/battleship-backend/internal/repository/storage"
	"github.com/seabattlehq/battleship-backend/internal/store"
	"github.com/seabattlehq/battleship-backend/internal/usecase"
	"github.com/seabattlehq/battleship-backend/transport/rest"
	"github.com/seabattlehq/battleship-backend/transport/websocket"
)

// RunApp - runs the application.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Info("Received signal, shutting down", "signal", sig)
		cancel()
	}()

	sessionRepo, cleanup, err := buildSessionRepository(ctx, log, conf)
	if err != nil {
		return err
	}
	defer cleanup()

	sessions := registry.New(sessionRepo)

	limiter := ratelimit.New(conf.Game.ShotWindow(), conf.Game.ShotQuota)
	go limiter.Run(ctx)

	rooms := store.New(logger, conf.Game.RoomTTL())
	rooms.OnDelete = func(room *entity.Room) {
		for _, token := range room.Tokens {
			if dropErr := sessions.Drop(ctx, token); dropErr != nil {
				log.Error("failed to drop session of evicted room", "roomCode", room.Code, "error", dropErr)
			}
		}
	}

	wsServer := websocket.New(logger)
	coordinator := usecase.NewCoordinator(logger, rooms, sessions, limiter, wsServer, conf.Game.GraceDuration())
	wsServer.SetCoordinator(coordinator)

	// run HTTP server
	httpErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "port", conf.HTTPPort)
		if httpErr := rest.Start(ctx, conf.HTTPPort); httpErr != nil {
			log.Error("HTTP server error", "error", httpErr)
			httpErrCh <- httpErr
		}
	}()

	// run Websocket server
	wsErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting WebSocket server", "port", conf.SocketPort)
		if wsErr := wsServer.Start(ctx, conf.SocketPort); wsErr != nil {
			log.Error("WebSocket server error", "error", wsErr)
			wsErrCh <- wsErr
		}
	}()

	select {
	case err = <-httpErrCh:
		return fmt.Errorf("HTTP server error: %w", err)
	case err = <-wsErrCh:
		return fmt.Errorf("WebSocket server error: %w", err)
	case <-ctx.Done():
		log.Info("Application context canceled, shutting down")
		return nil
	}
}

// buildSessionRepository picks Redis-backed session storage when an address
// is configured and the in-process map otherwise.
func buildSessionRepository(ctx context.Context, log *slog.Logger, conf *config.Config) (repository.SessionRepository, func(), error) {
	addr := conf.Redis.GetRedisAddr()
	if addr == "" {
		log.Info("No redis configured, using in-memory sessions")
		return repository.NewMemorySessionRepository(), func() {}, nil
	}

	redisStorage, err := storage.New(ctx, addr)
	if err != nil {
		return nil, nil, fmt.Errorf("could not connect to redis storage: %w", err)
	}

	cleanup := func() {
		if closeErr := redisStorage.Close(); closeErr != nil {
			log.Error("could not close redis storage", "error", closeErr)
		}
	}

	return repository.NewSessionRepository(redisStorage.Connection), cleanup, nil
}
