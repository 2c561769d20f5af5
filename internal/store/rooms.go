package store

import (
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/seabattlehq/battleship-backend/internal/apperror"
	"github.com/seabattlehq/battleship-backend/internal/entity"
)

var codePattern = regexp.MustCompile(`^[A-Z0-9_-]{1,32}$`)

// NormalizeCode trims and upper-cases a client-supplied room code and
// rejects anything outside the allowed alphabet before any lookup happens.
func NormalizeCode(raw string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if !codePattern.MatchString(code) {
		return "", apperror.ErrInvalidRoomCode
	}

	return code, nil
}

// Store owns the set of active rooms. Rooms are created on first join and
// evicted after staying idle for a TTL; the eviction timer re-checks the
// idle condition at fire time so a just-arrived reconnect always wins.
type Store struct {
	logger *slog.Logger
	ttl    time.Duration

	// OnDelete runs after a room is removed, outside all store locks.
	// Wiring uses it to drop the room's lingering session tokens.
	OnDelete func(room *entity.Room)

	mu     sync.Mutex
	rooms  map[string]*entity.Room
	timers map[string]*time.Timer
}

func New(logger *slog.Logger, ttl time.Duration) *Store {
	return &Store{
		logger: logger,
		ttl:    ttl,
		rooms:  make(map[string]*entity.Room),
		timers: make(map[string]*time.Timer),
	}
}

// GetOrCreate is idempotent: an unseen code constructs an empty room.
func (that *Store) GetOrCreate(code string) *entity.Room {
	that.mu.Lock()
	defer that.mu.Unlock()

	room, ok := that.rooms[code]
	if !ok {
		room = entity.NewRoom(code)
		that.rooms[code] = room
	}

	return room
}

func (that *Store) Get(code string) (*entity.Room, bool) {
	that.mu.Lock()
	defer that.mu.Unlock()

	room, ok := that.rooms[code]

	return room, ok
}

func (that *Store) Delete(code string) {
	that.mu.Lock()

	room, ok := that.rooms[code]
	delete(that.rooms, code)

	if timer, exists := that.timers[code]; exists {
		timer.Stop()
		delete(that.timers, code)
	}

	that.mu.Unlock()

	if ok && that.OnDelete != nil {
		that.OnDelete(room)
	}
}

func (that *Store) Len() int {
	that.mu.Lock()
	defer that.mu.Unlock()

	return len(that.rooms)
}

// ScheduleEvictionIfIdle re-evaluates the room's idle state. An idle room
// gets (or keeps) a pending TTL timer; any room that left the idle state
// has its timer canceled.
func (that *Store) ScheduleEvictionIfIdle(code string) {
	room, ok := that.Get(code)
	if !ok {
		return
	}

	room.Lock()
	idle := room.Idle()
	room.Unlock()

	that.mu.Lock()
	defer that.mu.Unlock()

	timer, pending := that.timers[code]

	if !idle {
		if pending {
			timer.Stop()
			delete(that.timers, code)
		}

		return
	}

	if pending {
		return
	}

	that.timers[code] = time.AfterFunc(that.ttl, func() {
		that.evictIfStillIdle(code)
	})
}

func (that *Store) evictIfStillIdle(code string) {
	log := that.logger.With("method", "evictIfStillIdle", "roomCode", code)

	room, ok := that.Get(code)
	if !ok {
		return
	}

	room.Lock()
	idle := room.Idle()
	room.Unlock()

	if !idle {
		// Someone came back while the timer was pending; the next
		// membership change reschedules if needed.
		that.mu.Lock()
		delete(that.timers, code)
		that.mu.Unlock()

		return
	}

	that.Delete(code)
	log.Info("idle room evicted")
}
