package apperror

import "errors"

var (
	ErrInvalidRoomCode    = errors.New("invalid room code")
	ErrRoomNotFound       = errors.New("room not found")
	ErrRoomFull           = errors.New("room is full")
	ErrAlreadyInRoom      = errors.New("already in the room")
	ErrNotYourTurn        = errors.New("it's not your turn")
	ErrNoOpponent         = errors.New("waiting for an opponent")
	ErrInvalidCoordinates = errors.New("coordinates are out of range")
	ErrNotInRoom          = errors.New("player is not in the room")
	ErrUnknownAttacker    = errors.New("unknown attacker")
	ErrRateLimited        = errors.New("too many shots, slow down")
	ErrGameFinished       = errors.New("game is already finished")
	ErrGameIsNotStarted   = errors.New("game is not started")
	ErrGameIsNotOver      = errors.New("game is not over yet")
)
