package entity

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seabattlehq/battleship-backend/internal/apperror"
)

func TestRoomJoin(t *testing.T) {
	t.Run("first player takes the turn", func(t *testing.T) {
		// Given: an empty room
		room := NewRoom("ABC123")

		// When: a player joins
		err := room.Join("p1")

		// Then: the player is seated and holds the turn
		require.NoError(t, err)
		assert.Equal(t, []string{"p1"}, room.Players)
		assert.Equal(t, "p1", room.Turn)
	})

	t.Run("second join fills the room without moving the turn", func(t *testing.T) {
		room := NewRoom("ABC123")
		require.NoError(t, room.Join("p1"))

		// When: a second player joins
		err := room.Join("p2")

		// Then: the room is full and the first player still acts first
		require.NoError(t, err)
		assert.True(t, room.IsFull())
		assert.Equal(t, "p1", room.Turn)
	})

	t.Run("third join is rejected and players stay unchanged", func(t *testing.T) {
		room := NewRoom("ABC123")
		require.NoError(t, room.Join("p1"))
		require.NoError(t, room.Join("p2"))

		// When: a third player tries to join
		err := room.Join("p3")

		// Then: the join fails with ErrRoomFull and the seats are untouched
		require.ErrorIs(t, err, apperror.ErrRoomFull)
		assert.Equal(t, []string{"p1", "p2"}, room.Players)
	})

	t.Run("joining an already held seat is an error, not a no-op", func(t *testing.T) {
		room := NewRoom("ABC123")
		require.NoError(t, room.Join("p1"))

		err := room.Join("p1")

		require.ErrorIs(t, err, apperror.ErrAlreadyInRoom)
		assert.Equal(t, []string{"p1"}, room.Players)
	})
}

func TestRoomResume(t *testing.T) {
	t.Run("resume clears the disconnect entry and keeps the seat", func(t *testing.T) {
		// Given: a full room with one player in the grace window
		room := NewRoom("ABC123")
		require.NoError(t, room.Join("p1"))
		require.NoError(t, room.Join("p2"))
		require.NoError(t, room.MarkDisconnected("p1"))

		// When: the player resumes
		rejoined, err := room.Resume("p1")

		// Then: the seat survived and the grace entry is gone
		require.NoError(t, err)
		assert.True(t, rejoined)
		assert.Equal(t, []string{"p1", "p2"}, room.Players)
		_, still := room.DisconnectedSince("p1")
		assert.False(t, still)
	})

	t.Run("resume twice is idempotent", func(t *testing.T) {
		room := NewRoom("ABC123")
		require.NoError(t, room.Join("p1"))
		require.NoError(t, room.Join("p2"))
		require.NoError(t, room.MarkDisconnected("p1"))

		_, err := room.Resume("p1")
		require.NoError(t, err)
		turn := room.Turn

		// When: the same identity resumes again
		rejoined, err := room.Resume("p1")

		// Then: nothing changes the second time
		require.NoError(t, err)
		assert.False(t, rejoined)
		assert.Equal(t, []string{"p1", "p2"}, room.Players)
		assert.Equal(t, turn, room.Turn)
	})

	t.Run("resume after grace expiry reclaims a free seat", func(t *testing.T) {
		// Given: the player's seat was released after the grace window
		room := NewRoom("ABC123")
		require.NoError(t, room.Join("p1"))
		require.NoError(t, room.Join("p2"))
		require.NoError(t, room.Leave("p1"))

		rejoined, err := room.Resume("p1")

		require.NoError(t, err)
		assert.True(t, rejoined)
		assert.Contains(t, room.Players, "p1")
	})
}

func TestRoomBoards(t *testing.T) {
	board := json.RawMessage(`{"ships":[[0,0],[0,1]]}`)

	t.Run("both boards ready starts the game", func(t *testing.T) {
		room := NewRoom("ABC123")
		require.NoError(t, room.Join("p1"))
		require.NoError(t, room.Join("p2"))

		require.NoError(t, room.SubmitBoard("p1", board))
		assert.False(t, room.BothReady())
		assert.Equal(t, StatusBoards, room.Status())

		require.NoError(t, room.SubmitBoard("p2", board))
		assert.True(t, room.BothReady())
		assert.Equal(t, StatusOngoing, room.Status())
	})

	t.Run("a stranger cannot submit a board", func(t *testing.T) {
		room := NewRoom("ABC123")
		require.NoError(t, room.Join("p1"))

		err := room.SubmitBoard("intruder", board)

		require.ErrorIs(t, err, apperror.ErrNotInRoom)
	})
}

func startedRoom(t *testing.T) *Room {
	t.Helper()

	room := NewRoom("ABC123")
	require.NoError(t, room.Join("p1"))
	require.NoError(t, room.Join("p2"))
	require.NoError(t, room.SubmitBoard("p1", json.RawMessage(`{}`)))
	require.NoError(t, room.SubmitBoard("p2", json.RawMessage(`{}`)))

	return room
}

func TestRoomShots(t *testing.T) {
	t.Run("shot by the turn holder is recorded and keeps the turn", func(t *testing.T) {
		room := startedRoom(t)

		// When: the turn holder shoots
		err := room.RecordShot("p1", 3, 4)

		// Then: the shot is in the history and the turn has not moved yet
		require.NoError(t, err)
		assert.Equal(t, "p1", room.Turn)
		require.Equal(t, 1, room.History.Len())
		assert.Equal(t, MoveShot, room.History.Items()[0].Type)
	})

	t.Run("out of turn shot is rejected without side effects", func(t *testing.T) {
		room := startedRoom(t)

		err := room.RecordShot("p2", 3, 4)

		require.ErrorIs(t, err, apperror.ErrNotYourTurn)
		assert.Equal(t, 0, room.History.Len())
	})

	t.Run("coordinates outside the grid are rejected", func(t *testing.T) {
		room := startedRoom(t)

		for _, coords := range [][2]int{{-1, 0}, {0, -1}, {10, 0}, {0, 10}} {
			err := room.RecordShot("p1", coords[0], coords[1])
			assert.ErrorIs(t, err, apperror.ErrInvalidCoordinates)
		}
	})

	t.Run("shots before both boards are in are rejected", func(t *testing.T) {
		room := NewRoom("ABC123")
		require.NoError(t, room.Join("p1"))
		require.NoError(t, room.Join("p2"))

		err := room.RecordShot("p1", 0, 0)

		require.ErrorIs(t, err, apperror.ErrGameIsNotStarted)
	})
}

func TestRoomApplyResult(t *testing.T) {
	t.Run("non-terminal result hands the turn to the defender", func(t *testing.T) {
		// Given: p1 shot and p2 reports back
		room := startedRoom(t)
		require.NoError(t, room.RecordShot("p1", 3, 4))

		// When: the defender reports a hit that did not end the game
		err := room.ApplyResult("p2", "p1", "hit", 3, 4, false)

		// Then: the defender becomes the turn holder
		require.NoError(t, err)
		assert.Equal(t, "p2", room.Turn)
		assert.False(t, room.GameOver)
	})

	t.Run("turn alternates strictly over several exchanges", func(t *testing.T) {
		room := startedRoom(t)

		require.NoError(t, room.RecordShot("p1", 0, 0))
		require.NoError(t, room.ApplyResult("p2", "p1", "miss", 0, 0, false))
		assert.Equal(t, "p2", room.Turn)

		require.NoError(t, room.RecordShot("p2", 5, 5))
		require.NoError(t, room.ApplyResult("p1", "p2", "hit", 5, 5, false))
		assert.Equal(t, "p1", room.Turn)
	})

	t.Run("all ships sunk ends the game for the attacker", func(t *testing.T) {
		room := startedRoom(t)
		require.NoError(t, room.RecordShot("p1", 3, 4))

		err := room.ApplyResult("p2", "p1", "hit", 3, 4, true)

		require.NoError(t, err)
		assert.True(t, room.GameOver)
		assert.Equal(t, "p1", room.Winner)
		assert.Empty(t, room.Turn)
		assert.Equal(t, StatusFinished, room.Status())
	})

	t.Run("result naming an attacker outside the room is rejected", func(t *testing.T) {
		room := startedRoom(t)

		err := room.ApplyResult("p2", "ghost", "hit", 3, 4, false)

		require.ErrorIs(t, err, apperror.ErrUnknownAttacker)
	})

	t.Run("defender cannot name themselves as attacker", func(t *testing.T) {
		room := startedRoom(t)

		err := room.ApplyResult("p2", "p2", "hit", 3, 4, false)

		require.ErrorIs(t, err, apperror.ErrUnknownAttacker)
	})
}

func TestRoomRestart(t *testing.T) {
	finishedRoom := func(t *testing.T) *Room {
		t.Helper()

		room := startedRoom(t)
		require.NoError(t, room.RecordShot("p1", 3, 4))
		require.NoError(t, room.ApplyResult("p2", "p1", "hit", 3, 4, true))

		return room
	}

	t.Run("one-sided request leaves the game over", func(t *testing.T) {
		room := finishedRoom(t)

		restarted, err := room.RequestRestart("p2")

		require.NoError(t, err)
		assert.False(t, restarted)
		assert.True(t, room.GameOver)
	})

	t.Run("bilateral consent resets the room to board placement", func(t *testing.T) {
		room := finishedRoom(t)

		_, err := room.RequestRestart("p2")
		require.NoError(t, err)

		restarted, err := room.RequestRestart("p1")

		require.NoError(t, err)
		assert.True(t, restarted)
		assert.False(t, room.GameOver)
		assert.Empty(t, room.Winner)
		assert.Empty(t, room.Boards)
		assert.Empty(t, room.RestartRequests)
		assert.Equal(t, 0, room.History.Len())
		assert.Equal(t, 0, room.Events.Len())
		assert.Equal(t, "p1", room.Turn)
		assert.Equal(t, StatusBoards, room.Status())
	})

	t.Run("cancel clears pending requests", func(t *testing.T) {
		room := finishedRoom(t)

		_, err := room.RequestRestart("p2")
		require.NoError(t, err)

		require.NoError(t, room.CancelRestart("p2"))

		assert.Empty(t, room.RestartRequests)
		assert.True(t, room.GameOver)
	})

	t.Run("restart before the game is over is rejected", func(t *testing.T) {
		room := startedRoom(t)

		_, err := room.RequestRestart("p1")

		require.ErrorIs(t, err, apperror.ErrGameIsNotOver)
	})
}

func TestRoomLeave(t *testing.T) {
	t.Run("leaver hands the turn to the remaining player", func(t *testing.T) {
		room := startedRoom(t)

		err := room.Leave("p1")

		require.NoError(t, err)
		assert.Equal(t, []string{"p2"}, room.Players)
		assert.Equal(t, "p2", room.Turn)
	})

	t.Run("last leaver makes the room idle", func(t *testing.T) {
		room := startedRoom(t)

		require.NoError(t, room.Leave("p1"))
		require.NoError(t, room.Leave("p2"))

		assert.Empty(t, room.Turn)
		assert.True(t, room.Idle())
	})

	t.Run("a room with a player in the grace window is not idle", func(t *testing.T) {
		room := NewRoom("ABC123")
		require.NoError(t, room.Join("p1"))
		require.NoError(t, room.MarkDisconnected("p1"))

		assert.False(t, room.Idle())
	})
}

func TestRoomSnapshot(t *testing.T) {
	t.Run("snapshot carries only the viewer's own board", func(t *testing.T) {
		// Given: a running game with both boards submitted
		room := startedRoom(t)
		room.PushEvent("turnBegan", map[string]string{"currentPlayer": "p1"})
		require.NoError(t, room.RecordShot("p1", 3, 4))

		// When: the snapshot is built for p1
		snapshot := room.SnapshotFor("p1")

		// Then: state, history and events are there but p2's fleet is not
		assert.Equal(t, []string{"p1", "p2"}, snapshot.Players)
		assert.Contains(t, snapshot.Boards, "p1")
		assert.NotContains(t, snapshot.Boards, "p2")
		assert.Equal(t, "p1", snapshot.Turn)
		require.Len(t, snapshot.RecentHistory, 1)
		require.Len(t, snapshot.EventBuffer, 1)
	})
}

func TestRing(t *testing.T) {
	t.Run("keeps only the most recent entries", func(t *testing.T) {
		ring := NewRing[int](3)

		for i := 1; i <= 5; i++ {
			ring.Push(i)
		}

		assert.Equal(t, []int{3, 4, 5}, ring.Items())
		assert.Equal(t, 3, ring.Len())
	})

	t.Run("reset empties the buffer", func(t *testing.T) {
		ring := NewRing[string](2)
		ring.Push("a")

		ring.Reset()

		assert.Empty(t, ring.Items())
	})
}
