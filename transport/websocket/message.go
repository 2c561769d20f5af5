package websocket

import (
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/seabattlehq/battleship-backend/internal/apperror"
	"github.com/seabattlehq/battleship-backend/internal/registry"
)

// Message is the wire envelope in both directions. Client commands carry an
// id the acknowledgment echoes back; server-pushed events carry none.
type Message struct {
	Action  string          `json:"action"`
	ID      int64           `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ackPayload is the per-command acknowledgment body.
type ackPayload struct {
	Success      bool   `json:"success,omitempty"`
	Error        string `json:"error,omitempty"`
	RoomCode     string `json:"roomCode,omitempty"`
	PlayerID     string `json:"playerId,omitempty"`
	SessionToken string `json:"sessionToken,omitempty"`
	Resumed      bool   `json:"resumed,omitempty"`
	Restarted    bool   `json:"restarted,omitempty"`
	Waiting      bool   `json:"waiting,omitempty"`
	Pong         bool   `json:"pong,omitempty"`
	ServerTime   int64  `json:"serverTime,omitempty"`
}

type joinRoomRequest struct {
	RoomCode     string `json:"roomCode"`
	SessionToken string `json:"sessionToken,omitempty"`
}

type boardRequest struct {
	RoomCode string          `json:"roomCode,omitempty"`
	Board    json.RawMessage `json:"board"`
}

type shotRequest struct {
	RoomCode string `json:"roomCode,omitempty"`
	Row      *int   `json:"row"`
	Col      *int   `json:"col"`
}

type resultRequest struct {
	RoomCode string `json:"roomCode,omitempty"`
	Result   string `json:"result"`
	Row      int    `json:"row"`
	Col      int    `json:"col"`
	From     string `json:"from,omitempty"`
	AllSunk  bool   `json:"allSunk"`
}

type roomRequest struct {
	RoomCode string `json:"roomCode,omitempty"`
}

// clientErrors are validation failures safe to echo to the caller verbatim.
// Anything else is logged and collapsed into a generic internal error so the
// room never leaks its internals.
var clientErrors = []error{
	apperror.ErrInvalidRoomCode,
	apperror.ErrRoomNotFound,
	apperror.ErrRoomFull,
	apperror.ErrAlreadyInRoom,
	apperror.ErrNotYourTurn,
	apperror.ErrNoOpponent,
	apperror.ErrInvalidCoordinates,
	apperror.ErrNotInRoom,
	apperror.ErrUnknownAttacker,
	apperror.ErrRateLimited,
	apperror.ErrGameFinished,
	apperror.ErrGameIsNotStarted,
	apperror.ErrGameIsNotOver,
	registry.ErrSessionNotFound,
}

func clientMessage(log *slog.Logger, err error) string {
	for _, known := range clientErrors {
		if errors.Is(err, known) {
			return known.Error()
		}
	}

	log.Error("command failed", "error", err)

	return "internal error"
}
