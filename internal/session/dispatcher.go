// Package session implements the dispatcher that binds transport
// connections to seats and routes the wire protocol's inbound message
// types to room operations, fanning outbound room events back out only
// to the connections bound to that room. A connection's room binding is
// dynamic (create-room / join-room / leave-room change it at runtime),
// so the routing lives one layer above the transport.
package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/otrio-backend/internal/apperr"
	"github.com/DoyleJ11/otrio-backend/internal/boardgame"
	"github.com/DoyleJ11/otrio-backend/internal/protocol"
	"github.com/DoyleJ11/otrio-backend/internal/registry"
	"github.com/DoyleJ11/otrio-backend/internal/room"
)

// Dispatcher routes wire messages between connections and rooms.
type Dispatcher struct {
	reg              *registry.Registry
	logger           *zap.Logger
	table            *bindingTable
	maxInvalidInputs int
}

// New constructs a Dispatcher over the given Registry. maxInvalidInputs
// bounds how many malformed or unrecognized messages a single
// connection may send before the Dispatcher treats it as protocol
// desync and closes it.
func New(reg *registry.Registry, logger *zap.Logger, maxInvalidInputs int) *Dispatcher {
	return &Dispatcher{reg: reg, logger: logger, table: newBindingTable(), maxInvalidInputs: maxInvalidInputs}
}

// RegisterConn admits a new transport connection, not yet bound to any
// room. outbox is the channel the transport's writer goroutine drains;
// closeFn is invoked by the Dispatcher to force-close a connection whose
// outbox has overflowed.
func (d *Dispatcher) RegisterConn(connID string, outbox chan<- protocol.Outbound, closeFn func(reason string)) {
	d.table.register(connID, outbox, closeFn)
}

// UnregisterConn detaches connID, treating it as a disconnect for
// whatever seat it held (if any).
func (d *Dispatcher) UnregisterConn(connID string) {
	b, ok := d.table.get(connID)
	d.table.unregister(connID)
	if !ok || b.roomID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	rm, err := d.reg.Get(ctx, b.roomID)
	if err != nil || rm == nil {
		return
	}
	_ = rm.Leave(ctx, b.seatID, room.LeaveDisconnect)
}

// HandleInbound parses and routes one client message.
func (d *Dispatcher) HandleInbound(ctx context.Context, connID string, raw []byte) {
	in, err := protocol.DecodeInbound(raw)
	if err != nil {
		d.sendTo(connID, protocol.Error(protocol.TypeRoomError, string(apperr.InvalidInput), "malformed message"))
		d.flagInvalid(connID, "too many malformed messages")
		return
	}

	switch in.Type {
	case protocol.TypePing:
		d.sendTo(connID, protocol.Msg(protocol.TypePong, nil))
	case protocol.TypeCreateRoom:
		d.handleCreateRoom(ctx, connID, in)
	case protocol.TypeJoinRoom:
		d.handleJoinRoom(ctx, connID, in)
	case protocol.TypeLeaveRoom:
		d.handleLeaveRoom(ctx, connID)
	case protocol.TypeMakeMove:
		d.handleMakeMove(ctx, connID, in)
	case protocol.TypeGetGameState:
		d.handleGetGameState(ctx, connID)
	case protocol.TypeCastReplayVote:
		d.handleCastReplayVote(ctx, connID, in)
	case protocol.TypeReconnect:
		d.handleReconnect(ctx, connID, in)
	default:
		d.sendTo(connID, protocol.Error(protocol.TypeRoomError, string(apperr.InvalidInput), "unknown message type"))
		d.flagInvalid(connID, "too many unrecognized message types")
	}
}

// flagInvalid counts a malformed or unrecognized message against connID
// and closes the connection once maxInvalidInputs is reached — the
// protocol-desync fatal condition, distinct from the outbox-overflow
// close bindingTable.send already handles.
func (d *Dispatcher) flagInvalid(connID, reason string) {
	if d.maxInvalidInputs <= 0 {
		return
	}
	if d.table.recordInvalid(connID) < d.maxInvalidInputs {
		return
	}
	if d.logger != nil {
		d.logger.Warn("closing connection for protocol desync", zap.String("conn_id", connID))
	}
	d.table.closeConn(connID, reason)
}

func (d *Dispatcher) handleCreateRoom(ctx context.Context, connID string, in protocol.Inbound) {
	if b, ok := d.table.get(connID); ok && b.roomID != "" {
		d.sendErr(connID, protocol.TypeRoomError, apperr.New(apperr.AlreadyIn, "already in a room"))
		return
	}

	opts := room.CreateOptions{
		Name:         in.RoomName,
		Capacity:     in.Capacity,
		IsPrivate:    in.IsPrivate,
		Code:         in.Code,
		HostNickname: in.PlayerName,
	}
	rm, host, code, err := d.reg.Create(ctx, opts)
	if err != nil {
		d.sendErr(connID, protocol.TypeRoomError, err)
		return
	}

	d.startForwarding(rm)
	d.table.bind(connID, rm.ID, host.ID)

	snap, err := rm.Snapshot(ctx)
	if err != nil {
		d.sendErr(connID, protocol.TypeRoomError, err)
		return
	}
	d.sendTo(connID, protocol.Msg(protocol.TypeRoomCreated, protocol.M{
		"roomId":    rm.ID,
		"seatId":    host.ID,
		"code":      code,
		"gameState": snap,
	}))
}

func (d *Dispatcher) handleJoinRoom(ctx context.Context, connID string, in protocol.Inbound) {
	if b, ok := d.table.get(connID); ok && b.roomID != "" {
		d.sendErr(connID, protocol.TypeJoinError, apperr.New(apperr.AlreadyIn, "already in a room"))
		return
	}

	rm, err := d.reg.Get(ctx, in.RoomID)
	if err != nil {
		d.sendErr(connID, protocol.TypeJoinError, err)
		return
	}
	if rm == nil {
		d.sendErr(connID, protocol.TypeJoinError, apperr.New(apperr.NotFound, "room not found"))
		return
	}

	result, err := rm.Join(ctx, in.PlayerName, in.AccessCode)
	if err != nil {
		d.sendErr(connID, protocol.TypeJoinError, err)
		return
	}

	d.table.bind(connID, rm.ID, result.Seat.ID)
	d.sendTo(connID, protocol.Msg(protocol.TypeRoomJoined, protocol.M{
		"roomId":    rm.ID,
		"seatId":    result.Seat.ID,
		"gameState": result.Snapshot,
	}))
}

// handleReconnect lets a fresh connection that already knows its
// roomId/seatId (recovered client-side, e.g. from local storage) resume
// a seat a prior connection disconnected from. A seat stays claimable
// until its reconnect grace window passes (Room.Reconnect then rejects
// with Expired) or the room itself is gone.
func (d *Dispatcher) handleReconnect(ctx context.Context, connID string, in protocol.Inbound) {
	rm, err := d.reg.Get(ctx, in.RoomID)
	if err != nil {
		d.sendErr(connID, protocol.TypeRoomError, err)
		return
	}
	if rm == nil {
		d.sendErr(connID, protocol.TypeRoomError, apperr.New(apperr.NotFound, "room not found"))
		return
	}

	result, err := rm.Reconnect(ctx, in.SeatID)
	if err != nil {
		d.sendErr(connID, protocol.TypeRoomError, err)
		return
	}

	d.table.bind(connID, rm.ID, in.SeatID)
	d.sendTo(connID, protocol.Msg(protocol.TypeRoomJoined, protocol.M{
		"roomId":    rm.ID,
		"seatId":    in.SeatID,
		"gameState": result.Snapshot,
	}))
}

func (d *Dispatcher) handleLeaveRoom(ctx context.Context, connID string) {
	b, ok := d.table.get(connID)
	if !ok || b.roomID == "" {
		d.sendErr(connID, protocol.TypeRoomError, apperr.New(apperr.Conflict, "not in a room"))
		return
	}
	rm, err := d.reg.Get(ctx, b.roomID)
	if err != nil || rm == nil {
		d.table.unbind(connID)
		return
	}
	_ = rm.Leave(ctx, b.seatID, room.LeaveExplicit)
	d.table.unbind(connID)
}

func (d *Dispatcher) handleMakeMove(ctx context.Context, connID string, in protocol.Inbound) {
	b, ok := d.table.get(connID)
	if !ok || b.roomID == "" {
		d.sendErr(connID, protocol.TypeMoveError, apperr.New(apperr.Conflict, "not in a room"))
		return
	}
	rm, err := d.reg.Get(ctx, b.roomID)
	if err != nil || rm == nil {
		d.sendErr(connID, protocol.TypeMoveError, apperr.New(apperr.NotFound, "room no longer exists"))
		return
	}
	if err := rm.SubmitMove(ctx, b.seatID, in.CellIndex, boardgame.Size(in.Size)); err != nil {
		d.sendErr(connID, protocol.TypeMoveError, err)
	}
}

func (d *Dispatcher) handleGetGameState(ctx context.Context, connID string) {
	b, ok := d.table.get(connID)
	if !ok || b.roomID == "" {
		d.sendErr(connID, protocol.TypeRoomError, apperr.New(apperr.Conflict, "not in a room"))
		return
	}
	rm, err := d.reg.Get(ctx, b.roomID)
	if err != nil || rm == nil {
		d.sendErr(connID, protocol.TypeRoomError, apperr.New(apperr.NotFound, "room no longer exists"))
		return
	}
	snap, err := rm.Snapshot(ctx)
	if err != nil {
		d.sendErr(connID, protocol.TypeRoomError, err)
		return
	}
	d.sendTo(connID, protocol.Msg(protocol.TypeGameState, protocol.M{"gameState": snap}))
}

func (d *Dispatcher) handleCastReplayVote(ctx context.Context, connID string, in protocol.Inbound) {
	b, ok := d.table.get(connID)
	if !ok || b.roomID == "" {
		d.sendErr(connID, protocol.TypeMoveError, apperr.New(apperr.Conflict, "not in a room"))
		return
	}
	rm, err := d.reg.Get(ctx, b.roomID)
	if err != nil || rm == nil {
		d.sendErr(connID, protocol.TypeMoveError, apperr.New(apperr.NotFound, "room no longer exists"))
		return
	}
	if err := rm.CastReplayVote(ctx, b.seatID, in.Vote); err != nil {
		d.sendErr(connID, protocol.TypeMoveError, err)
	}
}

// startForwarding pumps a room's broadcast events out to every
// connection currently bound to it, until the room's event channel
// closes (which happens once its actor loop exits).
func (d *Dispatcher) startForwarding(rm *room.Room) {
	go func() {
		for evts := range rm.Events() {
			d.table.fanout(rm.ID, evts, d.logger)
		}
	}()
}

func (d *Dispatcher) sendTo(connID string, out protocol.Outbound) {
	d.table.send(connID, out, d.logger)
}

func (d *Dispatcher) sendErr(connID string, msgType string, err error) {
	code := apperr.CodeOf(err)
	d.sendTo(connID, protocol.Error(msgType, string(code), err.Error()))
}
