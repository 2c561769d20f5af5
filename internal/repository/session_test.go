package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seabattlehq/battleship-backend/internal/entity"
	"github.com/seabattlehq/battleship-backend/testing/suite"
)

func TestSessionRepository_CreateOrUpdate(t *testing.T) {
	ctx, st := suite.New(t)

	sessionRepo := NewSessionRepository(st.Storage)

	// Given: a session bound to a room
	session := &entity.Session{
		Token:     "tok-123",
		RoomCode:  "ABC123",
		PlayerID:  "p1",
		CreatedAt: time.Now().UTC(),
	}

	// When: CreateOrUpdate is called
	err := sessionRepo.CreateOrUpdate(ctx, session)

	// Then: no error should be returned, and the session is stored
	require.NoError(t, err)
}

func TestSessionRepository_GetByToken(t *testing.T) {
	t.Run("GetByToken_Success", func(t *testing.T) {
		ctx, st := suite.New(t)

		sessionRepo := NewSessionRepository(st.Storage)

		// Given: a stored session with attached connections
		session := &entity.Session{
			Token:    "tok-123",
			RoomCode: "ABC123",
			PlayerID: "p1",
			ConnIDs:  []string{"conn-1"},
		}

		err := sessionRepo.CreateOrUpdate(ctx, session)
		require.NoError(t, err)

		// When: GetByToken is called with the existing token
		retrieved, err := sessionRepo.GetByToken(ctx, session.Token)

		// Then: the retrieved session should match the saved one
		require.NoError(t, err)
		require.Equal(t, session.RoomCode, retrieved.RoomCode)
		require.Equal(t, session.PlayerID, retrieved.PlayerID)
		require.Equal(t, session.ConnIDs, retrieved.ConnIDs)
	})

	t.Run("GetByToken_NotFound", func(t *testing.T) {
		ctx, st := suite.New(t)

		sessionRepo := NewSessionRepository(st.Storage)

		// When: GetByToken is called with a non-existent token
		retrieved, err := sessionRepo.GetByToken(ctx, "missing")

		// Then: an ErrSessionNotFound error should be returned
		require.Error(t, err)
		assert.Equal(t, ErrSessionNotFound, err)
		assert.Nil(t, retrieved)
	})
}

func TestSessionRepository_DeleteByToken(t *testing.T) {
	ctx, st := suite.New(t)

	sessionRepo := NewSessionRepository(st.Storage)

	session := &entity.Session{
		Token:    "tok-123",
		RoomCode: "ABC123",
		PlayerID: "p1",
	}

	err := sessionRepo.CreateOrUpdate(ctx, session)
	require.NoError(t, err)

	// When: the session is deleted
	err = sessionRepo.DeleteByToken(ctx, session.Token)
	require.NoError(t, err)

	// Then: it can no longer be fetched
	_, err = sessionRepo.GetByToken(ctx, session.Token)
	assert.Equal(t, ErrSessionNotFound, err)
}

func TestMemorySessionRepository(t *testing.T) {
	t.Run("stored sessions are isolated from caller mutations", func(t *testing.T) {
		repo := NewMemorySessionRepository()

		session := &entity.Session{
			Token:    "tok-123",
			RoomCode: "ABC123",
			PlayerID: "p1",
			ConnIDs:  []string{"conn-1"},
		}

		require.NoError(t, repo.CreateOrUpdate(context.Background(), session))

		// When: the caller keeps mutating its own copy
		session.ConnIDs[0] = "mutated"

		// Then: the stored session is unaffected
		retrieved, err := repo.GetByToken(context.Background(), "tok-123")
		require.NoError(t, err)
		assert.Equal(t, []string{"conn-1"}, retrieved.ConnIDs)
	})

	t.Run("missing token yields ErrSessionNotFound", func(t *testing.T) {
		repo := NewMemorySessionRepository()

		_, err := repo.GetByToken(context.Background(), "missing")

		assert.ErrorIs(t, err, ErrSessionNotFound)
	})
}
