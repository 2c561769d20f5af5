package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/seabattlehq/battleship-backend/internal/usecase"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = 25 * time.Second
	maxMessageSize = 1 << 20
)

type coordinator interface {
	JoinRoom(ctx context.Context, connID, rawCode, token string) (*usecase.JoinResult, error)
	SubmitBoard(ctx context.Context, rawCode, playerID string, board json.RawMessage) error
	SubmitShot(ctx context.Context, rawCode, playerID string, row, col int) error
	SubmitResult(ctx context.Context, rawCode, defenderID, result string, row, col int, attackerID string, allSunk bool) error
	RequestRestart(ctx context.Context, rawCode, playerID string) (bool, error)
	CancelRestart(ctx context.Context, rawCode, playerID string) error
	LeaveRoom(ctx context.Context, rawCode, playerID string) error
	ConnectionClosed(ctx context.Context, rawCode, playerID, token, connID string)
}

// client is one websocket connection. Identity fields are set once joinRoom
// succeeds; writeMu serializes frame writes, stateMu guards the identity.
type client struct {
	id   string
	conn *websocket.Conn

	writeMu sync.Mutex

	stateMu  sync.Mutex
	roomCode string
	playerID string
	token    string
}

func (that *client) identity() (roomCode, playerID, token string) {
	that.stateMu.Lock()
	defer that.stateMu.Unlock()

	return that.roomCode, that.playerID, that.token
}

func (that *client) setIdentity(roomCode, playerID, token string) {
	that.stateMu.Lock()
	defer that.stateMu.Unlock()

	that.roomCode = roomCode
	that.playerID = playerID
	that.token = token
}

func (that *client) send(message *Message) error {
	that.writeMu.Lock()
	defer that.writeMu.Unlock()

	_ = that.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := that.conn.WriteJSON(message); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	return nil
}

// Server owns the websocket endpoint and the player → connection routing.
// It is the coordinator's EventSink: every outbound notification leaves
// through here.
type Server struct {
	logger      *slog.Logger
	coordinator coordinator
	upgrader    websocket.Upgrader

	handlers map[string]func(ctx context.Context, c *client, msg *Message)

	mu      sync.RWMutex
	clients map[string]*client
	rooms   map[string]map[string]*client
}

func New(logger *slog.Logger) *Server {
	server := &Server{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The relay is meant to sit behind public static hosting;
			// room codes, not origins, gate access.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[string]*client),
		rooms:   make(map[string]map[string]*client),
	}

	server.handlers = map[string]func(context.Context, *client, *Message){
		"joinRoom":       server.handleJoinRoom,
		"submitBoard":    server.handleSubmitBoard,
		"submitShot":     server.handleSubmitShot,
		"submitResult":   server.handleSubmitResult,
		"requestRestart": server.handleRequestRestart,
		"cancelRestart":  server.handleCancelRestart,
		"leaveRoom":      server.handleLeaveRoom,
		"ping":           server.handlePing,
	}

	return server
}

// SetCoordinator closes the construction cycle: the coordinator needs the
// server as its sink, the server needs the coordinator for commands.
func (that *Server) SetCoordinator(c coordinator) {
	that.coordinator = c
}

// Start - starts WebSocket server.
func (that *Server) Start(ctx context.Context, port string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		that.serveConnection(ctx, w, r)
	})

	srv := &http.Server{
		Addr:        ":" + port,
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

func (that *Server) serveConnection(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "serveConnection")

	conn, err := that.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
	}

	that.mu.Lock()
	that.clients[c.id] = c
	that.mu.Unlock()

	log.Info("connection established", "connID", c.id)

	go that.pingLoop(ctx, c)
	that.readLoop(ctx, c)
}

func (that *Server) readLoop(ctx context.Context, c *client) {
	defer that.dropConnection(ctx, c)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var message Message
		if err := c.conn.ReadJSON(&message); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				that.logger.Error("connection read failed", "connID", c.id, "error", err)
			}

			return
		}

		that.dispatch(ctx, c, &message)
	}
}

// dispatch runs one command handler, converting a panic into an internal
// error ack so a malformed command can never take the room down.
func (that *Server) dispatch(ctx context.Context, c *client, msg *Message) {
	log := that.logger.With("method", "dispatch", "action", msg.Action, "connID", c.id)

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("handler panicked", "panic", rec)
			that.ack(c, msg, ackPayload{Error: "internal error"})
		}
	}()

	handler, ok := that.handlers[msg.Action]
	if !ok {
		that.ack(c, msg, ackPayload{Error: "unknown action"})
		return
	}

	handler(ctx, c, msg)
}

func (that *Server) pingLoop(ctx context.Context, c *client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.writeMu.Lock()
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := c.conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()

			if err != nil {
				return
			}
		}
	}
}

// dropConnection tears down routing for a closed socket and reports the
// drop to the coordinator, which decides whether a grace window opens.
func (that *Server) dropConnection(ctx context.Context, c *client) {
	_ = c.conn.Close()

	roomCode, playerID, token := c.identity()

	that.mu.Lock()
	delete(that.clients, c.id)
	if conns, ok := that.rooms[roomCode]; ok {
		delete(conns, c.id)
		if len(conns) == 0 {
			delete(that.rooms, roomCode)
		}
	}
	that.mu.Unlock()

	that.logger.Info("connection closed", "connID", c.id)

	if that.coordinator != nil {
		that.coordinator.ConnectionClosed(ctx, roomCode, playerID, token, c.id)
	}
}

func (that *Server) ack(c *client, msg *Message, payload ackPayload) {
	body, err := json.Marshal(payload)
	if err != nil {
		that.logger.Error("failed to marshal ack", "error", err)
		return
	}

	if err = c.send(&Message{Action: msg.Action, ID: msg.ID, Payload: body}); err != nil {
		that.logger.Error("failed to send ack", "connID", c.id, "error", err)
	}
}

func (that *Server) push(c *client, event string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		that.logger.Error("failed to marshal event", "event", event, "error", err)
		return
	}

	if err = c.send(&Message{Action: event, Payload: body}); err != nil {
		that.logger.Error("failed to push event", "event", event, "connID", c.id, "error", err)
	}
}

// Bind registers a connection under a player seat for event routing.
func (that *Server) Bind(roomCode, playerID, connID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	c, ok := that.clients[connID]
	if !ok {
		return
	}

	conns, ok := that.rooms[roomCode]
	if !ok {
		conns = make(map[string]*client)
		that.rooms[roomCode] = conns
	}

	conns[connID] = c
}

// UnbindPlayer removes every connection of a player from the room routing
// and clears their identity, so stale tabs must join again.
func (that *Server) UnbindPlayer(roomCode, playerID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	conns, ok := that.rooms[roomCode]
	if !ok {
		return
	}

	for connID, c := range conns {
		if _, pid, _ := c.identity(); pid == playerID {
			c.setIdentity("", "", "")
			delete(conns, connID)
		}
	}

	if len(conns) == 0 {
		delete(that.rooms, roomCode)
	}
}

func (that *Server) ToConn(connID, event string, payload any) {
	that.mu.RLock()
	c, ok := that.clients[connID]
	that.mu.RUnlock()

	if ok {
		that.push(c, event, payload)
	}
}

func (that *Server) ToPlayer(roomCode, playerID, event string, payload any) {
	for _, c := range that.roomClients(roomCode) {
		if _, pid, _ := c.identity(); pid == playerID {
			that.push(c, event, payload)
		}
	}
}

func (that *Server) ToRoom(roomCode, event string, payload any) {
	for _, c := range that.roomClients(roomCode) {
		that.push(c, event, payload)
	}
}

func (that *Server) ToRoomExcept(roomCode, exceptPlayerID, event string, payload any) {
	for _, c := range that.roomClients(roomCode) {
		if _, pid, _ := c.identity(); pid != exceptPlayerID {
			that.push(c, event, payload)
		}
	}
}

func (that *Server) roomClients(roomCode string) []*client {
	that.mu.RLock()
	defer that.mu.RUnlock()

	conns := that.rooms[roomCode]
	clients := make([]*client, 0, len(conns))
	for _, c := range conns {
		clients = append(clients, c)
	}

	return clients
}
