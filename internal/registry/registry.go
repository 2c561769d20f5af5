package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/seabattlehq/battleship-backend/internal/entity"
	"github.com/seabattlehq/battleship-backend/internal/repository"
)

var ErrSessionNotFound = repository.ErrSessionNotFound

type sessionRepo interface {
	CreateOrUpdate(ctx context.Context, session *entity.Session) error
	GetByToken(ctx context.Context, token string) (*entity.Session, error)
	DeleteByToken(ctx context.Context, token string) error
}

// Registry owns the token → identity map. The coordinator resumes, mints and
// drops bindings through it and never touches the repository directly.
type Registry struct {
	repo sessionRepo
}

func New(repo sessionRepo) *Registry {
	return &Registry{
		repo: repo,
	}
}

// Create mints a fresh unguessable token bound to the room/identity pair.
func (that *Registry) Create(ctx context.Context, roomCode, playerID string) (string, error) {
	session := &entity.Session{
		Token:     uuid.NewString(),
		RoomCode:  roomCode,
		PlayerID:  playerID,
		CreatedAt: time.Now(),
	}

	if err := that.repo.CreateOrUpdate(ctx, session); err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}

	return session.Token, nil
}

// Resume looks up an existing token. ErrSessionNotFound means the client
// must join fresh.
func (that *Registry) Resume(ctx context.Context, token string) (*entity.Session, error) {
	session, err := that.repo.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, ErrSessionNotFound
		}

		return nil, fmt.Errorf("failed to resume session: %w", err)
	}

	return session, nil
}

func (that *Registry) Drop(ctx context.Context, token string) error {
	if err := that.repo.DeleteByToken(ctx, token); err != nil {
		return fmt.Errorf("failed to drop session: %w", err)
	}

	return nil
}

// Attach registers one more physical connection against the token.
func (that *Registry) Attach(ctx context.Context, token, connID string) error {
	session, err := that.repo.GetByToken(ctx, token)
	if err != nil {
		return fmt.Errorf("failed to attach connection: %w", err)
	}

	session.AttachConn(connID)

	if err = that.repo.CreateOrUpdate(ctx, session); err != nil {
		return fmt.Errorf("failed to attach connection: %w", err)
	}

	return nil
}

// Detach unregisters a connection and reports how many are still attached.
// Only the last detach should be treated as the player going away.
func (that *Registry) Detach(ctx context.Context, token, connID string) (int, error) {
	session, err := that.repo.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return 0, ErrSessionNotFound
		}

		return 0, fmt.Errorf("failed to detach connection: %w", err)
	}

	remaining := session.DetachConn(connID)

	if err = that.repo.CreateOrUpdate(ctx, session); err != nil {
		return remaining, fmt.Errorf("failed to detach connection: %w", err)
	}

	return remaining, nil
}
