package entity

import "time"

// Session binds a durable player identity to its room through an opaque
// token. One token may carry several live connections (duplicated tabs);
// game logic always addresses the player, never a connection.
type Session struct {
	Token     string    `json:"token"`
	RoomCode  string    `json:"room_code"`
	PlayerID  string    `json:"player_id"`
	ConnIDs   []string  `json:"conn_ids,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (that *Session) AttachConn(connID string) {
	for _, id := range that.ConnIDs {
		if id == connID {
			return
		}
	}

	that.ConnIDs = append(that.ConnIDs, connID)
}

// DetachConn removes a connection and reports how many remain.
func (that *Session) DetachConn(connID string) int {
	for i, id := range that.ConnIDs {
		if id == connID {
			that.ConnIDs = append(that.ConnIDs[:i], that.ConnIDs[i+1:]...)
			break
		}
	}

	return len(that.ConnIDs)
}
