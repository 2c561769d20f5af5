package entity

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/seabattlehq/battleship-backend/internal/apperror"
)

const (
	StatusWaiting  = "waiting"
	StatusBoards   = "boards_pending"
	StatusOngoing  = "ongoing"
	StatusFinished = "finished"
)

const (
	MaxPlayers = 2
	BoardSize  = 10

	// HistoryLimit bounds both the move history and the resync event buffer.
	HistoryLimit = 64
)

// Room is one match between at most two players. It is pure state: methods
// validate before mutating and return apperror sentinels, they never log,
// start timers or perform I/O. Callers must hold the room lock around every
// method call; timer callbacks re-acquire it and re-validate before acting.
type Room struct {
	Code      string
	Players   []string
	Boards    map[string]json.RawMessage
	Ready     map[string]bool
	Turn      string
	CreatedAt time.Time

	GameOver bool
	Winner   string

	// Disconnected holds identities whose seat is kept open during the
	// reconnect grace window, keyed to the moment the transport dropped.
	Disconnected map[string]time.Time

	RestartRequests map[string]bool

	// Tokens remembers which session token seats each identity, so the
	// registry entry can be dropped together with the seat.
	Tokens map[string]string

	History *Ring[MoveEvent]
	Events  *Ring[Event]

	mu sync.Mutex
}

func NewRoom(code string) *Room {
	return &Room{
		Code:            code,
		Boards:          make(map[string]json.RawMessage),
		Ready:           make(map[string]bool),
		CreatedAt:       time.Now(),
		Disconnected:    make(map[string]time.Time),
		RestartRequests: make(map[string]bool),
		Tokens:          make(map[string]string),
		History:         NewRing[MoveEvent](HistoryLimit),
		Events:          NewRing[Event](HistoryLimit),
	}
}

func (that *Room) Lock() {
	that.mu.Lock()
}

func (that *Room) Unlock() {
	that.mu.Unlock()
}

// Join seats a new identity. Joining a seat already held is an error, not a
// silent success, so duplicate-seat bugs surface at the caller.
func (that *Room) Join(playerID string) error {
	if that.GameOver {
		return apperror.ErrGameFinished
	}

	if that.HasPlayer(playerID) {
		return apperror.ErrAlreadyInRoom
	}

	if len(that.Players) >= MaxPlayers {
		return apperror.ErrRoomFull
	}

	that.Players = append(that.Players, playerID)
	if that.Turn == "" {
		that.Turn = that.Players[0]
	}

	return nil
}

// Resume re-seats a returning identity. It reports whether the player was
// actually away: a resume for an identity that never left is a no-op, so a
// duplicated tab does not disturb the game.
func (that *Room) Resume(playerID string) (bool, error) {
	if _, away := that.Disconnected[playerID]; away {
		delete(that.Disconnected, playerID)
		return true, nil
	}

	if that.HasPlayer(playerID) {
		return false, nil
	}

	// The grace window has already expired; take a free seat again.
	if len(that.Players) >= MaxPlayers {
		return false, apperror.ErrRoomFull
	}

	that.Players = append(that.Players, playerID)
	if that.Turn == "" && !that.GameOver {
		that.Turn = that.Players[0]
	}

	return true, nil
}

func (that *Room) HasPlayer(playerID string) bool {
	for _, id := range that.Players {
		if id == playerID {
			return true
		}
	}

	return false
}

// Opponent returns the other seated identity, or "" if playing alone.
func (that *Room) Opponent(playerID string) string {
	for _, id := range that.Players {
		if id != playerID {
			return id
		}
	}

	return ""
}

func (that *Room) IsFull() bool {
	return len(that.Players) == MaxPlayers
}

// SubmitBoard stores the player's board blob and marks the seat ready. The
// blob is opaque: the coordinator relays shots blindly and never inspects
// ship placement.
func (that *Room) SubmitBoard(playerID string, board json.RawMessage) error {
	if !that.HasPlayer(playerID) {
		return apperror.ErrNotInRoom
	}

	if that.GameOver {
		return apperror.ErrGameFinished
	}

	that.Boards[playerID] = board
	that.Ready[playerID] = true

	return nil
}

func (that *Room) BothReady() bool {
	if !that.IsFull() {
		return false
	}

	for _, id := range that.Players {
		if !that.Ready[id] {
			return false
		}
	}

	return true
}

// RecordShot validates a shot by the current turn holder and appends it to
// the history. The turn does not change here: it changes when the defender
// reports the result back.
func (that *Room) RecordShot(playerID string, row, col int) error {
	if !that.HasPlayer(playerID) {
		return apperror.ErrNotInRoom
	}

	if that.GameOver {
		return apperror.ErrGameFinished
	}

	if !that.BothReady() {
		return apperror.ErrGameIsNotStarted
	}

	if that.Opponent(playerID) == "" {
		return apperror.ErrNoOpponent
	}

	if that.Turn != playerID {
		return apperror.ErrNotYourTurn
	}

	if row < 0 || row >= BoardSize || col < 0 || col >= BoardSize {
		return apperror.ErrInvalidCoordinates
	}

	that.History.Push(MoveEvent{
		Type:   MoveShot,
		Player: playerID,
		Row:    row,
		Col:    col,
		At:     time.Now(),
	})

	return nil
}

// ApplyResult records the defender's verdict on a received shot. A terminal
// result finishes the game; otherwise the defender becomes the turn holder,
// which yields strict alternation without a separate switch step.
func (that *Room) ApplyResult(defenderID, attackerID, result string, row, col int, allSunk bool) error {
	if !that.HasPlayer(defenderID) {
		return apperror.ErrNotInRoom
	}

	if attackerID == "" || attackerID == defenderID || !that.HasPlayer(attackerID) {
		return apperror.ErrUnknownAttacker
	}

	if that.GameOver {
		return apperror.ErrGameFinished
	}

	that.History.Push(MoveEvent{
		Type:     MoveResult,
		Player:   defenderID,
		Attacker: attackerID,
		Result:   result,
		Row:      row,
		Col:      col,
		AllSunk:  allSunk,
		At:       time.Now(),
	})

	if allSunk {
		that.GameOver = true
		that.Winner = attackerID
		that.Turn = ""
		return nil
	}

	that.Turn = defenderID

	return nil
}

// RequestRestart records one side's consent and reports whether both sides
// have now agreed. On bilateral consent the room is reset in place and goes
// back to board placement.
func (that *Room) RequestRestart(playerID string) (bool, error) {
	if !that.HasPlayer(playerID) {
		return false, apperror.ErrNotInRoom
	}

	if !that.GameOver {
		return false, apperror.ErrGameIsNotOver
	}

	that.RestartRequests[playerID] = true

	if !that.IsFull() {
		return false, nil
	}

	for _, id := range that.Players {
		if !that.RestartRequests[id] {
			return false, nil
		}
	}

	that.resetForRestart()

	return true, nil
}

func (that *Room) CancelRestart(playerID string) error {
	if !that.HasPlayer(playerID) {
		return apperror.ErrNotInRoom
	}

	that.RestartRequests = make(map[string]bool)

	return nil
}

func (that *Room) resetForRestart() {
	that.Boards = make(map[string]json.RawMessage)
	that.Ready = make(map[string]bool)
	that.RestartRequests = make(map[string]bool)
	that.History.Reset()
	that.Events.Reset()
	that.GameOver = false
	that.Winner = ""
	that.Turn = that.Players[0]
}

// Leave removes an identity and everything seated with it. The turn passes
// to the remaining player when the leaver held it.
func (that *Room) Leave(playerID string) error {
	if !that.HasPlayer(playerID) {
		return apperror.ErrNotInRoom
	}

	remaining := make([]string, 0, len(that.Players))
	for _, id := range that.Players {
		if id != playerID {
			remaining = append(remaining, id)
		}
	}

	that.Players = remaining
	delete(that.Boards, playerID)
	delete(that.Ready, playerID)
	delete(that.Disconnected, playerID)
	delete(that.RestartRequests, playerID)
	delete(that.Tokens, playerID)

	if that.Turn == playerID {
		if len(that.Players) > 0 && !that.GameOver {
			that.Turn = that.Players[0]
		} else {
			that.Turn = ""
		}
	}

	return nil
}

// MarkDisconnected keeps the seat but opens the grace window.
func (that *Room) MarkDisconnected(playerID string) error {
	if !that.HasPlayer(playerID) {
		return apperror.ErrNotInRoom
	}

	that.Disconnected[playerID] = time.Now()

	return nil
}

func (that *Room) DisconnectedSince(playerID string) (time.Time, bool) {
	since, ok := that.Disconnected[playerID]
	return since, ok
}

// Idle reports whether nobody holds or may reclaim a seat. Only idle rooms
// are eligible for TTL eviction.
func (that *Room) Idle() bool {
	return len(that.Players) == 0 && len(that.Disconnected) == 0
}

func (that *Room) Status() string {
	switch {
	case that.GameOver:
		return StatusFinished
	case !that.IsFull():
		return StatusWaiting
	case !that.BothReady():
		return StatusBoards
	default:
		return StatusOngoing
	}
}

// PushEvent appends an outbound notification to the resync buffer.
func (that *Room) PushEvent(name string, payload any) {
	that.Events.Push(Event{Name: name, Payload: payload, At: time.Now()})
}

// Snapshot is the full room state pushed to a resuming connection so the
// client catches up instead of replaying from zero.
type Snapshot struct {
	RoomCode      string                     `json:"roomCode"`
	Players       []string                   `json:"players"`
	Boards        map[string]json.RawMessage `json:"boards"`
	Turn          string                     `json:"turn,omitempty"`
	GameOver      bool                       `json:"gameOver"`
	Winner        string                     `json:"winner,omitempty"`
	RecentHistory []MoveEvent                `json:"recentHistory"`
	EventBuffer   []Event                    `json:"eventBuffer"`
}

// SnapshotFor builds a snapshot as seen by one player. Boards are filtered
// to the viewer's own: relaying the opponent's placement would hand the
// resuming client the whole enemy fleet.
func (that *Room) SnapshotFor(playerID string) *Snapshot {
	snapshot := &Snapshot{
		RoomCode:      that.Code,
		Players:       append([]string(nil), that.Players...),
		Boards:        make(map[string]json.RawMessage, 1),
		Turn:          that.Turn,
		GameOver:      that.GameOver,
		Winner:        that.Winner,
		RecentHistory: that.History.Items(),
		EventBuffer:   that.Events.Items(),
	}

	if board, ok := that.Boards[playerID]; ok {
		snapshot.Boards[playerID] = board
	}

	return snapshot
}
