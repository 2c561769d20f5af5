package store

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seabattlehq/battleship-backend/internal/apperror"
	"github.com/seabattlehq/battleship-backend/internal/entity"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNormalizeCode(t *testing.T) {
	t.Run("valid codes are trimmed and upper-cased", func(t *testing.T) {
		code, err := NormalizeCode("  abc123 ")

		require.NoError(t, err)
		assert.Equal(t, "ABC123", code)
	})

	t.Run("underscore and hyphen are allowed", func(t *testing.T) {
		code, err := NormalizeCode("my-room_1")

		require.NoError(t, err)
		assert.Equal(t, "MY-ROOM_1", code)
	})

	t.Run("invalid codes are rejected before any lookup", func(t *testing.T) {
		for _, raw := range []string{"", "   ", "room code", "über", "x!y", "0123456789012345678901234567890123"} {
			_, err := NormalizeCode(raw)
			assert.ErrorIs(t, err, apperror.ErrInvalidRoomCode, "raw=%q", raw)
		}
	})
}

func TestStoreGetOrCreate(t *testing.T) {
	t.Run("same code yields the same room", func(t *testing.T) {
		s := New(testLogger(), time.Minute)

		room := s.GetOrCreate("ABC123")
		again := s.GetOrCreate("ABC123")

		assert.Same(t, room, again)
		assert.Equal(t, 1, s.Len())
	})

	t.Run("get without create reports absence", func(t *testing.T) {
		s := New(testLogger(), time.Minute)

		_, ok := s.Get("NOPE")

		assert.False(t, ok)
	})
}

func TestStoreEviction(t *testing.T) {
	t.Run("idle room is deleted after the TTL", func(t *testing.T) {
		// Given: an empty room with a short TTL
		s := New(testLogger(), 30*time.Millisecond)
		deleted := make(chan *entity.Room, 1)
		s.OnDelete = func(room *entity.Room) { deleted <- room }

		s.GetOrCreate("ABC123")

		// When: eviction is scheduled and the TTL elapses
		s.ScheduleEvictionIfIdle("ABC123")

		// Then: the room is gone and the delete hook observed it
		select {
		case room := <-deleted:
			assert.Equal(t, "ABC123", room.Code)
		case <-time.After(time.Second):
			t.Fatal("room was not evicted")
		}

		assert.Equal(t, 0, s.Len())
	})

	t.Run("room with a seated player is never scheduled", func(t *testing.T) {
		s := New(testLogger(), 30*time.Millisecond)

		room := s.GetOrCreate("ABC123")
		room.Lock()
		require.NoError(t, room.Join("p1"))
		room.Unlock()

		s.ScheduleEvictionIfIdle("ABC123")
		time.Sleep(80 * time.Millisecond)

		assert.Equal(t, 1, s.Len())
	})

	t.Run("a join before the timer fires wins over eviction", func(t *testing.T) {
		// Given: a pending eviction timer on an idle room
		s := New(testLogger(), 50*time.Millisecond)
		room := s.GetOrCreate("ABC123")
		s.ScheduleEvictionIfIdle("ABC123")

		// When: a player arrives and the schedule is re-evaluated
		room.Lock()
		require.NoError(t, room.Join("p1"))
		room.Unlock()
		s.ScheduleEvictionIfIdle("ABC123")

		time.Sleep(120 * time.Millisecond)

		// Then: the room survived the original deadline
		assert.Equal(t, 1, s.Len())
	})

	t.Run("in-grace player keeps the room alive", func(t *testing.T) {
		s := New(testLogger(), 30*time.Millisecond)
		room := s.GetOrCreate("ABC123")

		room.Lock()
		require.NoError(t, room.Join("p1"))
		require.NoError(t, room.MarkDisconnected("p1"))
		room.Unlock()

		s.ScheduleEvictionIfIdle("ABC123")
		time.Sleep(80 * time.Millisecond)

		assert.Equal(t, 1, s.Len())
	})
}
