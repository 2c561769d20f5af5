package usecase

// Outbound event names, as the browser client listens for them.
const (
	EventPlayersUpdated           = "playersUpdated"
	EventRoomReady                = "roomReady"
	EventGameStarted              = "gameStarted"
	EventTurnBegan                = "turnBegan"
	EventShotIncoming             = "shotIncoming"
	EventShotFeedback             = "shotFeedback"
	EventGameEnded                = "gameEnded"
	EventOpponentReconnected      = "opponentReconnected"
	EventOpponentDisconnected     = "opponentDisconnected"
	EventOpponentLeft             = "opponentLeft"
	EventStateSnapshot            = "stateSnapshot"
	EventOpponentRequestsRestart  = "opponentRequestsRestart"
	EventOpponentCancelledRestart = "opponentCancelledRestart"
	EventGameRestarted            = "gameRestarted"
)

// EventSink delivers coordinator notifications to connected clients and
// keeps the player → connection routing the deliveries need. The websocket
// transport implements it; sends must never block room mutation.
type EventSink interface {
	Bind(roomCode, playerID, connID string)
	UnbindPlayer(roomCode, playerID string)

	ToConn(connID, event string, payload any)
	ToPlayer(roomCode, playerID, event string, payload any)
	ToRoom(roomCode, event string, payload any)
	ToRoomExcept(roomCode, exceptPlayerID, event string, payload any)
}

type RoomPayload struct {
	RoomCode string `json:"roomCode"`
}

type PlayersUpdatedPayload struct {
	RoomCode string   `json:"roomCode"`
	Players  []string `json:"players"`
}

type GameStartedPayload struct {
	RoomCode  string `json:"roomCode"`
	StartedBy string `json:"startedBy"`
}

type TurnBeganPayload struct {
	RoomCode      string `json:"roomCode"`
	CurrentPlayer string `json:"currentPlayer"`
}

type ShotIncomingPayload struct {
	RoomCode string `json:"roomCode"`
	Row      int    `json:"row"`
	Col      int    `json:"col"`
	From     string `json:"from"`
}

type ShotFeedbackPayload struct {
	RoomCode   string `json:"roomCode"`
	Result     string `json:"result"`
	Row        int    `json:"row"`
	Col        int    `json:"col"`
	AllSunk    bool   `json:"allSunk"`
	NextPlayer string `json:"nextPlayer,omitempty"`
}

type GameEndedPayload struct {
	RoomCode string `json:"roomCode"`
	Winner   string `json:"winner"`
	Loser    string `json:"loser"`
}

type OpponentDisconnectedPayload struct {
	RoomCode     string `json:"roomCode"`
	GraceSeconds int    `json:"graceSeconds"`
}
