package repository

import (
	"context"
	"sync"

	"github.com/seabattlehq/battleship-backend/internal/entity"
)

// memorySession is the in-process fallback used when no Redis address is
// configured. Tokens then live exactly as long as the server process.
type memorySession struct {
	mu       sync.RWMutex
	sessions map[string]entity.Session
}

func NewMemorySessionRepository() SessionRepository {
	return &memorySession{
		sessions: make(map[string]entity.Session),
	}
}

func (that *memorySession) CreateOrUpdate(_ context.Context, session *entity.Session) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	stored := *session
	stored.ConnIDs = append([]string(nil), session.ConnIDs...)
	that.sessions[session.Token] = stored

	return nil
}

func (that *memorySession) GetByToken(_ context.Context, token string) (*entity.Session, error) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	stored, ok := that.sessions[token]
	if !ok {
		return nil, ErrSessionNotFound
	}

	session := stored
	session.ConnIDs = append([]string(nil), stored.ConnIDs...)

	return &session, nil
}

func (that *memorySession) DeleteByToken(_ context.Context, token string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	delete(that.sessions, token)

	return nil
}
