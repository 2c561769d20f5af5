package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/seabattlehq/battleship-backend/internal/apperror"
	"github.com/seabattlehq/battleship-backend/internal/entity"
	"github.com/seabattlehq/battleship-backend/internal/registry"
	"github.com/seabattlehq/battleship-backend/internal/store"
)

type sessionRegistry interface {
	Create(ctx context.Context, roomCode, playerID string) (string, error)
	Resume(ctx context.Context, token string) (*entity.Session, error)
	Drop(ctx context.Context, token string) error
	Attach(ctx context.Context, token, connID string) error
	Detach(ctx context.Context, token, connID string) (int, error)
}

type shotLimiter interface {
	Allow(identity string) bool
}

// Coordinator is the authority every client command goes through. It
// validates against the room state machine, mutates under the room lock and
// fans resulting events out through the sink. No I/O happens while a room
// lock is held.
type Coordinator struct {
	logger   *slog.Logger
	rooms    *store.Store
	sessions sessionRegistry
	limiter  shotLimiter
	sink     EventSink
	grace    time.Duration

	mu          sync.Mutex
	graceTimers map[string]*time.Timer
}

func NewCoordinator(logger *slog.Logger, rooms *store.Store, sessions sessionRegistry, limiter shotLimiter, sink EventSink, grace time.Duration) *Coordinator {
	return &Coordinator{
		logger:      logger,
		rooms:       rooms,
		sessions:    sessions,
		limiter:     limiter,
		sink:        sink,
		grace:       grace,
		graceTimers: make(map[string]*time.Timer),
	}
}

type JoinResult struct {
	RoomCode     string
	PlayerID     string
	SessionToken string
	Resumed      bool
}

// JoinRoom seats a connection in a room. A presented session token resumes
// the old identity when it still matches a live room; otherwise the client
// gets a fresh seat and a fresh token.
func (that *Coordinator) JoinRoom(ctx context.Context, connID, rawCode, token string) (*JoinResult, error) {
	code, err := store.NormalizeCode(rawCode)
	if err != nil {
		return nil, err
	}

	if token != "" {
		session, resumeErr := that.sessions.Resume(ctx, token)

		switch {
		case resumeErr == nil && session.RoomCode == code:
			if room, ok := that.rooms.Get(code); ok {
				return that.resumeSession(ctx, connID, room, session)
			}

			// The room has been evicted; the token is stale.
			_ = that.sessions.Drop(ctx, token)
		case resumeErr != nil && !errors.Is(resumeErr, registry.ErrSessionNotFound):
			return nil, fmt.Errorf("failed to resume by token: %w", resumeErr)
		}
	}

	room := that.rooms.GetOrCreate(code)
	playerID := uuid.NewString()

	room.Lock()
	if err = room.Join(playerID); err != nil {
		room.Unlock()
		return nil, err
	}
	room.Unlock()

	newToken, err := that.sessions.Create(ctx, code, playerID)
	if err != nil {
		room.Lock()
		_ = room.Leave(playerID)
		room.Unlock()

		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	_ = that.sessions.Attach(ctx, newToken, connID)

	room.Lock()
	room.Tokens[playerID] = newToken
	players := append([]string(nil), room.Players...)
	full := room.IsFull()
	room.PushEvent(EventPlayersUpdated, PlayersUpdatedPayload{RoomCode: code, Players: players})
	if full {
		room.PushEvent(EventRoomReady, RoomPayload{RoomCode: code})
	}
	room.Unlock()

	that.sink.Bind(code, playerID, connID)
	that.sink.ToRoom(code, EventPlayersUpdated, PlayersUpdatedPayload{RoomCode: code, Players: players})
	if full {
		that.sink.ToRoom(code, EventRoomReady, RoomPayload{RoomCode: code})
	}

	that.rooms.ScheduleEvictionIfIdle(code)

	return &JoinResult{RoomCode: code, PlayerID: playerID, SessionToken: newToken}, nil
}

// resumeSession re-seats a returning identity and pushes a full state
// snapshot to the resuming connection only, so it catches up on anything it
// missed while offline.
func (that *Coordinator) resumeSession(ctx context.Context, connID string, room *entity.Room, session *entity.Session) (*JoinResult, error) {
	code := room.Code

	room.Lock()
	rejoined, err := room.Resume(session.PlayerID)
	if err != nil {
		room.Unlock()
		return nil, err
	}

	room.Tokens[session.PlayerID] = session.Token
	opponent := room.Opponent(session.PlayerID)
	players := append([]string(nil), room.Players...)
	snapshot := room.SnapshotFor(session.PlayerID)

	if rejoined {
		room.PushEvent(EventOpponentReconnected, RoomPayload{RoomCode: code})
		room.PushEvent(EventPlayersUpdated, PlayersUpdatedPayload{RoomCode: code, Players: players})
	}
	room.Unlock()

	that.cancelGraceTimer(code, session.PlayerID)
	_ = that.sessions.Attach(ctx, session.Token, connID)
	that.sink.Bind(code, session.PlayerID, connID)

	if rejoined {
		if opponent != "" {
			that.sink.ToPlayer(code, opponent, EventOpponentReconnected, RoomPayload{RoomCode: code})
		}

		that.sink.ToRoom(code, EventPlayersUpdated, PlayersUpdatedPayload{RoomCode: code, Players: players})
	}

	that.sink.ToConn(connID, EventStateSnapshot, snapshot)

	that.rooms.ScheduleEvictionIfIdle(code)

	return &JoinResult{RoomCode: code, PlayerID: session.PlayerID, SessionToken: session.Token, Resumed: true}, nil
}

// SubmitBoard records a board blob; once both seats are ready the match
// starts and the first turn is announced.
func (that *Coordinator) SubmitBoard(_ context.Context, rawCode, playerID string, board json.RawMessage) error {
	room, code, err := that.lookupRoom(rawCode)
	if err != nil {
		return err
	}

	room.Lock()
	if err = room.SubmitBoard(playerID, board); err != nil {
		room.Unlock()
		return err
	}

	started := room.BothReady()
	turn := room.Turn
	if started {
		room.PushEvent(EventGameStarted, GameStartedPayload{RoomCode: code, StartedBy: turn})
		room.PushEvent(EventTurnBegan, TurnBeganPayload{RoomCode: code, CurrentPlayer: turn})
	}
	room.Unlock()

	if started {
		that.sink.ToRoom(code, EventGameStarted, GameStartedPayload{RoomCode: code, StartedBy: turn})
		that.sink.ToRoom(code, EventTurnBegan, TurnBeganPayload{RoomCode: code, CurrentPlayer: turn})
	}

	return nil
}

// SubmitShot relays the turn holder's shot to the opponent. The coordinator
// never evaluates hit or miss; the defending client does and reports back.
func (that *Coordinator) SubmitShot(_ context.Context, rawCode, playerID string, row, col int) error {
	if !that.limiter.Allow(playerID) {
		return apperror.ErrRateLimited
	}

	room, code, err := that.lookupRoom(rawCode)
	if err != nil {
		return err
	}

	room.Lock()
	if err = room.RecordShot(playerID, row, col); err != nil {
		room.Unlock()
		return err
	}

	opponent := room.Opponent(playerID)
	payload := ShotIncomingPayload{RoomCode: code, Row: row, Col: col, From: playerID}
	room.PushEvent(EventShotIncoming, payload)
	room.Unlock()

	that.sink.ToPlayer(code, opponent, EventShotIncoming, payload)

	return nil
}

// SubmitResult applies the defender's verdict. Non-terminal results hand the
// turn to the defender; a terminal one ends the game with the attacker as
// winner.
func (that *Coordinator) SubmitResult(_ context.Context, rawCode, defenderID, result string, row, col int, attackerID string, allSunk bool) error {
	room, code, err := that.lookupRoom(rawCode)
	if err != nil {
		return err
	}

	room.Lock()
	if attackerID == "" {
		attackerID = room.Opponent(defenderID)
	}

	if err = room.ApplyResult(defenderID, attackerID, result, row, col, allSunk); err != nil {
		room.Unlock()
		return err
	}

	feedback := ShotFeedbackPayload{RoomCode: code, Result: result, Row: row, Col: col, AllSunk: allSunk}
	if !allSunk {
		feedback.NextPlayer = defenderID
	}

	room.PushEvent(EventShotFeedback, feedback)
	if allSunk {
		room.PushEvent(EventGameEnded, GameEndedPayload{RoomCode: code, Winner: attackerID, Loser: defenderID})
	} else {
		room.PushEvent(EventTurnBegan, TurnBeganPayload{RoomCode: code, CurrentPlayer: defenderID})
	}
	room.Unlock()

	that.sink.ToPlayer(code, attackerID, EventShotFeedback, feedback)

	if allSunk {
		that.sink.ToRoom(code, EventGameEnded, GameEndedPayload{RoomCode: code, Winner: attackerID, Loser: defenderID})
		that.rooms.ScheduleEvictionIfIdle(code)

		return nil
	}

	that.sink.ToRoomExcept(code, attackerID, EventTurnBegan, TurnBeganPayload{RoomCode: code, CurrentPlayer: defenderID})

	return nil
}

// RequestRestart records one side's consent; the room resets only when both
// sides have asked. The returned flag tells the caller whether the restart
// happened or the player is still waiting for the opponent.
func (that *Coordinator) RequestRestart(_ context.Context, rawCode, playerID string) (bool, error) {
	room, code, err := that.lookupRoom(rawCode)
	if err != nil {
		return false, err
	}

	room.Lock()
	restarted, err := room.RequestRestart(playerID)
	if err != nil {
		room.Unlock()
		return false, err
	}

	opponent := room.Opponent(playerID)
	if restarted {
		room.PushEvent(EventGameRestarted, RoomPayload{RoomCode: code})
	}
	room.Unlock()

	if restarted {
		that.sink.ToRoom(code, EventGameRestarted, RoomPayload{RoomCode: code})
	} else if opponent != "" {
		that.sink.ToPlayer(code, opponent, EventOpponentRequestsRestart, RoomPayload{RoomCode: code})
	}

	return restarted, nil
}

func (that *Coordinator) CancelRestart(_ context.Context, rawCode, playerID string) error {
	room, code, err := that.lookupRoom(rawCode)
	if err != nil {
		return err
	}

	room.Lock()
	if err = room.CancelRestart(playerID); err != nil {
		room.Unlock()
		return err
	}

	opponent := room.Opponent(playerID)
	room.Unlock()

	if opponent != "" {
		that.sink.ToPlayer(code, opponent, EventOpponentCancelledRestart, RoomPayload{RoomCode: code})
	}

	return nil
}

// LeaveRoom gives the seat up for good: the session token dies with it.
func (that *Coordinator) LeaveRoom(ctx context.Context, rawCode, playerID string) error {
	room, code, err := that.lookupRoom(rawCode)
	if err != nil {
		return err
	}

	room.Lock()
	token := room.Tokens[playerID]
	opponent := room.Opponent(playerID)

	if err = room.Leave(playerID); err != nil {
		room.Unlock()
		return err
	}

	players := append([]string(nil), room.Players...)
	room.PushEvent(EventPlayersUpdated, PlayersUpdatedPayload{RoomCode: code, Players: players})
	room.Unlock()

	that.cancelGraceTimer(code, playerID)

	if token != "" {
		if dropErr := that.sessions.Drop(ctx, token); dropErr != nil {
			that.logger.Error("failed to drop session on leave", "error", dropErr)
		}
	}

	if opponent != "" {
		that.sink.ToPlayer(code, opponent, EventOpponentLeft, RoomPayload{RoomCode: code})
	}

	that.sink.ToRoom(code, EventPlayersUpdated, PlayersUpdatedPayload{RoomCode: code, Players: players})
	that.sink.UnbindPlayer(code, playerID)

	that.rooms.ScheduleEvictionIfIdle(code)

	return nil
}

// ConnectionClosed is the transport hook for a dropped socket. The seat is
// kept: the identity goes into the grace window and only the grace timer's
// expiry turns the disconnect into a leave.
func (that *Coordinator) ConnectionClosed(ctx context.Context, rawCode, playerID, token, connID string) {
	log := that.logger.With("method", "ConnectionClosed", "playerID", playerID)

	if playerID == "" || token == "" {
		return
	}

	remaining, err := that.sessions.Detach(ctx, token, connID)
	if err != nil {
		// Session already dropped: the player left explicitly.
		return
	}

	if remaining > 0 {
		return
	}

	room, ok := that.rooms.Get(rawCode)
	if !ok {
		return
	}

	code := room.Code

	room.Lock()
	if err = room.MarkDisconnected(playerID); err != nil {
		room.Unlock()
		return
	}

	opponent := room.Opponent(playerID)
	payload := OpponentDisconnectedPayload{RoomCode: code, GraceSeconds: int(that.grace.Seconds())}
	room.PushEvent(EventOpponentDisconnected, payload)
	room.Unlock()

	if opponent != "" {
		that.sink.ToPlayer(code, opponent, EventOpponentDisconnected, payload)
	}

	that.scheduleGraceTimer(code, playerID)
	that.rooms.ScheduleEvictionIfIdle(code)

	log.Info("player entered grace window", "roomCode", code, "graceSeconds", payload.GraceSeconds)
}

// graceExpired fires when the reconnect window closes. It re-validates under
// the room lock: a resume that raced the timer wins and the expiry no-ops.
func (that *Coordinator) graceExpired(code, playerID string) {
	log := that.logger.With("method", "graceExpired", "roomCode", code, "playerID", playerID)

	that.mu.Lock()
	delete(that.graceTimers, graceKey(code, playerID))
	that.mu.Unlock()

	room, ok := that.rooms.Get(code)
	if !ok {
		return
	}

	room.Lock()
	if _, still := room.DisconnectedSince(playerID); !still {
		room.Unlock()
		return
	}

	token := room.Tokens[playerID]
	opponent := room.Opponent(playerID)
	_ = room.Leave(playerID)
	players := append([]string(nil), room.Players...)
	room.PushEvent(EventPlayersUpdated, PlayersUpdatedPayload{RoomCode: code, Players: players})
	room.Unlock()

	if token != "" {
		if err := that.sessions.Drop(context.Background(), token); err != nil {
			log.Error("failed to drop session after grace expiry", "error", err)
		}
	}

	if opponent != "" {
		that.sink.ToPlayer(code, opponent, EventOpponentLeft, RoomPayload{RoomCode: code})
	}

	that.sink.ToRoom(code, EventPlayersUpdated, PlayersUpdatedPayload{RoomCode: code, Players: players})
	that.sink.UnbindPlayer(code, playerID)

	that.rooms.ScheduleEvictionIfIdle(code)

	log.Info("grace window expired, seat released")
}

func (that *Coordinator) scheduleGraceTimer(code, playerID string) {
	key := graceKey(code, playerID)

	that.mu.Lock()
	defer that.mu.Unlock()

	if timer, ok := that.graceTimers[key]; ok {
		timer.Stop()
	}

	that.graceTimers[key] = time.AfterFunc(that.grace, func() {
		that.graceExpired(code, playerID)
	})
}

func (that *Coordinator) cancelGraceTimer(code, playerID string) {
	key := graceKey(code, playerID)

	that.mu.Lock()
	defer that.mu.Unlock()

	if timer, ok := that.graceTimers[key]; ok {
		timer.Stop()
		delete(that.graceTimers, key)
	}
}

func (that *Coordinator) lookupRoom(rawCode string) (*entity.Room, string, error) {
	code, err := store.NormalizeCode(rawCode)
	if err != nil {
		return nil, "", err
	}

	room, ok := that.rooms.Get(code)
	if !ok {
		return nil, "", apperror.ErrRoomNotFound
	}

	return room, code, nil
}

func graceKey(code, playerID string) string {
	return code + "/" + playerID
}
