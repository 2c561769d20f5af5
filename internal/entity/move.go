package entity

import "time"

const (
	MoveShot   = "shot"
	MoveResult = "result"
)

// MoveEvent is one recorded shot or shot outcome, kept for history and resync.
type MoveEvent struct {
	Type     string    `json:"type"`
	Player   string    `json:"player"`
	Attacker string    `json:"attacker,omitempty"`
	Result   string    `json:"result,omitempty"`
	Row      int       `json:"row"`
	Col      int       `json:"col"`
	AllSunk  bool      `json:"all_sunk,omitempty"`
	At       time.Time `json:"at"`
}

// Event is one outbound notification buffered for reconnecting clients.
type Event struct {
	Name    string    `json:"name"`
	Payload any       `json:"payload,omitempty"`
	At      time.Time `json:"at"`
}
