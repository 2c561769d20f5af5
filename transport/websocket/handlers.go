package websocket

import (
	"context"
	"encoding/json"
	"time"

	"github.com/seabattlehq/battleship-backend/internal/apperror"
)

func (that *Server) handleJoinRoom(ctx context.Context, c *client, msg *Message) {
	log := that.logger.With("method", "handleJoinRoom", "connID", c.id)

	var req joinRoomRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		that.ack(c, msg, ackPayload{Error: apperror.ErrInvalidRoomCode.Error()})
		return
	}

	// One seat per connection: a joined connection must leave first.
	if roomCode, _, _ := c.identity(); roomCode != "" {
		that.ack(c, msg, ackPayload{Error: apperror.ErrAlreadyInRoom.Error()})
		return
	}

	result, err := that.coordinator.JoinRoom(ctx, c.id, req.RoomCode, req.SessionToken)
	if err != nil {
		that.ack(c, msg, ackPayload{Error: clientMessage(log, err)})
		return
	}

	c.setIdentity(result.RoomCode, result.PlayerID, result.SessionToken)

	that.ack(c, msg, ackPayload{
		Success:      true,
		RoomCode:     result.RoomCode,
		PlayerID:     result.PlayerID,
		SessionToken: result.SessionToken,
		Resumed:      result.Resumed,
	})

	log.Info("player joined room", "roomCode", result.RoomCode, "playerID", result.PlayerID, "resumed", result.Resumed)
}

func (that *Server) handleSubmitBoard(ctx context.Context, c *client, msg *Message) {
	log := that.logger.With("method", "handleSubmitBoard", "connID", c.id)

	var req boardRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		that.ack(c, msg, ackPayload{Error: apperror.ErrNotInRoom.Error()})
		return
	}

	roomCode, playerID, ok := that.resolveRoom(c, req.RoomCode)
	if !ok {
		that.ack(c, msg, ackPayload{Error: apperror.ErrNotInRoom.Error()})
		return
	}

	if err := that.coordinator.SubmitBoard(ctx, roomCode, playerID, req.Board); err != nil {
		that.ack(c, msg, ackPayload{Error: clientMessage(log, err)})
		return
	}

	that.ack(c, msg, ackPayload{Success: true})
}

func (that *Server) handleSubmitShot(ctx context.Context, c *client, msg *Message) {
	log := that.logger.With("method", "handleSubmitShot", "connID", c.id)

	var req shotRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil || req.Row == nil || req.Col == nil {
		that.ack(c, msg, ackPayload{Error: apperror.ErrInvalidCoordinates.Error()})
		return
	}

	roomCode, playerID, ok := that.resolveRoom(c, req.RoomCode)
	if !ok {
		that.ack(c, msg, ackPayload{Error: apperror.ErrNotInRoom.Error()})
		return
	}

	if err := that.coordinator.SubmitShot(ctx, roomCode, playerID, *req.Row, *req.Col); err != nil {
		that.ack(c, msg, ackPayload{Error: clientMessage(log, err)})
		return
	}

	that.ack(c, msg, ackPayload{Success: true})
}

func (that *Server) handleSubmitResult(ctx context.Context, c *client, msg *Message) {
	log := that.logger.With("method", "handleSubmitResult", "connID", c.id)

	var req resultRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		that.ack(c, msg, ackPayload{Error: apperror.ErrUnknownAttacker.Error()})
		return
	}

	roomCode, playerID, ok := that.resolveRoom(c, req.RoomCode)
	if !ok {
		that.ack(c, msg, ackPayload{Error: apperror.ErrNotInRoom.Error()})
		return
	}

	err := that.coordinator.SubmitResult(ctx, roomCode, playerID, req.Result, req.Row, req.Col, req.From, req.AllSunk)
	if err != nil {
		that.ack(c, msg, ackPayload{Error: clientMessage(log, err)})
		return
	}

	that.ack(c, msg, ackPayload{Success: true})
}

func (that *Server) handleRequestRestart(ctx context.Context, c *client, msg *Message) {
	log := that.logger.With("method", "handleRequestRestart", "connID", c.id)

	roomCode, playerID, ok := that.resolveRoom(c, decodeRoomCode(msg.Payload))
	if !ok {
		that.ack(c, msg, ackPayload{Error: apperror.ErrNotInRoom.Error()})
		return
	}

	restarted, err := that.coordinator.RequestRestart(ctx, roomCode, playerID)
	if err != nil {
		that.ack(c, msg, ackPayload{Error: clientMessage(log, err)})
		return
	}

	that.ack(c, msg, ackPayload{Success: true, Restarted: restarted, Waiting: !restarted})
}

func (that *Server) handleCancelRestart(ctx context.Context, c *client, msg *Message) {
	log := that.logger.With("method", "handleCancelRestart", "connID", c.id)

	roomCode, playerID, ok := that.resolveRoom(c, decodeRoomCode(msg.Payload))
	if !ok {
		that.ack(c, msg, ackPayload{Error: apperror.ErrNotInRoom.Error()})
		return
	}

	if err := that.coordinator.CancelRestart(ctx, roomCode, playerID); err != nil {
		that.ack(c, msg, ackPayload{Error: clientMessage(log, err)})
		return
	}

	that.ack(c, msg, ackPayload{Success: true})
}

func (that *Server) handleLeaveRoom(ctx context.Context, c *client, msg *Message) {
	log := that.logger.With("method", "handleLeaveRoom", "connID", c.id)

	roomCode, playerID, ok := that.resolveRoom(c, decodeRoomCode(msg.Payload))
	if !ok {
		that.ack(c, msg, ackPayload{Error: apperror.ErrNotInRoom.Error()})
		return
	}

	if err := that.coordinator.LeaveRoom(ctx, roomCode, playerID); err != nil {
		that.ack(c, msg, ackPayload{Error: clientMessage(log, err)})
		return
	}

	c.setIdentity("", "", "")
	that.ack(c, msg, ackPayload{Success: true})

	log.Info("player left room", "roomCode", roomCode, "playerID", playerID)
}

func (that *Server) handlePing(_ context.Context, c *client, msg *Message) {
	that.ack(c, msg, ackPayload{Pong: true, ServerTime: time.Now().UnixMilli()})
}

// resolveRoom picks the explicit room code when the payload names one and
// falls back to the connection's sole joined room otherwise.
func (that *Server) resolveRoom(c *client, explicit string) (roomCode, playerID string, ok bool) {
	joinedRoom, joinedPlayer, _ := c.identity()

	if joinedPlayer == "" {
		return "", "", false
	}

	if explicit != "" {
		return explicit, joinedPlayer, true
	}

	if joinedRoom == "" {
		return "", "", false
	}

	return joinedRoom, joinedPlayer, true
}

func decodeRoomCode(payload json.RawMessage) string {
	if len(payload) == 0 {
		return ""
	}

	var req roomRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return ""
	}

	return req.RoomCode
}
