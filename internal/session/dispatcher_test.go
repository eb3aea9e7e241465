package session

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/otrio-backend/internal/config"
	"github.com/DoyleJ11/otrio-backend/internal/protocol"
	"github.com/DoyleJ11/otrio-backend/internal/registry"
)

func testCfg() config.Config {
	cfg := config.Default()
	cfg.TurnTimeout = time.Minute
	cfg.ReplayVoteWindow = time.Minute
	cfg.RoomTTL = time.Minute
	cfg.CleanupSweep = time.Minute
	return cfg
}

func newTestDispatcher(t *testing.T) *Dispatcher {
	ctx := context.Background()
	reg := registry.New(ctx, testCfg(), nil)
	t.Cleanup(reg.Shutdown)
	return New(reg, nil, testCfg().MaxInvalidMessages)
}

func recvOne(t *testing.T, outbox chan protocol.Outbound) protocol.Outbound {
	t.Helper()
	select {
	case out := <-outbox:
		return out
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for outbound message")
		return protocol.Outbound{}
	}
}

func encode(t *testing.T, v map[string]any) []byte {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func TestCreateRoomBindsHostAndRepliesRoomCreated(t *testing.T) {
	d := newTestDispatcher(t)
	outbox := make(chan protocol.Outbound, 8)
	d.RegisterConn("conn-1", outbox, func(string) {})

	d.HandleInbound(context.Background(), "conn-1", encode(t, map[string]any{
		"type":       "create-room",
		"playerName": "Host",
		"roomName":   "Table One",
		"capacity":   2,
	}))

	out := recvOne(t, outbox)
	require.Equal(t, protocol.TypeRoomCreated, out.Type)
	require.NotEmpty(t, out.Fields["roomId"])
	require.NotEmpty(t, out.Fields["seatId"])

	b, ok := d.table.get("conn-1")
	require.True(t, ok)
	require.Equal(t, out.Fields["roomId"], b.roomID)
}

func TestJoinRoomBindsSecondSeatAndBroadcastsToHost(t *testing.T) {
	d := newTestDispatcher(t)
	hostOutbox := make(chan protocol.Outbound, 8)
	d.RegisterConn("host-conn", hostOutbox, func(string) {})
	d.HandleInbound(context.Background(), "host-conn", encode(t, map[string]any{
		"type":       "create-room",
		"playerName": "Host",
		"roomName":   "Table Two",
		"capacity":   2,
	}))
	created := recvOne(t, hostOutbox)
	roomID := created.Fields["roomId"].(string)

	joinerOutbox := make(chan protocol.Outbound, 8)
	d.RegisterConn("joiner-conn", joinerOutbox, func(string) {})
	d.HandleInbound(context.Background(), "joiner-conn", encode(t, map[string]any{
		"type":       "join-room",
		"roomId":     roomID,
		"playerName": "Joiner",
	}))

	joined := recvOne(t, joinerOutbox)
	require.Equal(t, protocol.TypeRoomJoined, joined.Type)

	hostEvt := recvOne(t, hostOutbox)
	require.Equal(t, protocol.TypePlayerJoined, hostEvt.Type)
}

func TestJoinUnknownRoomReturnsJoinError(t *testing.T) {
	d := newTestDispatcher(t)
	outbox := make(chan protocol.Outbound, 8)
	d.RegisterConn("conn-1", outbox, func(string) {})

	d.HandleInbound(context.Background(), "conn-1", encode(t, map[string]any{
		"type":       "join-room",
		"roomId":     "does-not-exist",
		"playerName": "Nobody",
	}))

	out := recvOne(t, outbox)
	require.Equal(t, protocol.TypeJoinError, out.Type)
	require.Equal(t, "NotFound", out.Fields["code"])
}

func TestMalformedMessageRepliesRoomError(t *testing.T) {
	d := newTestDispatcher(t)
	outbox := make(chan protocol.Outbound, 8)
	d.RegisterConn("conn-1", outbox, func(string) {})

	d.HandleInbound(context.Background(), "conn-1", []byte("{not json"))

	out := recvOne(t, outbox)
	require.Equal(t, protocol.TypeRoomError, out.Type)
	require.Equal(t, "InvalidInput", out.Fields["code"])
}

func TestRepeatedMalformedMessagesClosesConnection(t *testing.T) {
	ctx := context.Background()
	reg := registry.New(ctx, testCfg(), nil)
	t.Cleanup(reg.Shutdown)
	d := New(reg, nil, 3)

	outbox := make(chan protocol.Outbound, 8)
	closed := false
	d.RegisterConn("conn-1", outbox, func(string) { closed = true })

	for i := 0; i < 3; i++ {
		d.HandleInbound(ctx, "conn-1", []byte("{not json"))
		recvOne(t, outbox)
	}

	require.True(t, closed)
}

func TestMakeMoveWithoutRoomBindingReturnsMoveError(t *testing.T) {
	d := newTestDispatcher(t)
	outbox := make(chan protocol.Outbound, 8)
	d.RegisterConn("conn-1", outbox, func(string) {})

	d.HandleInbound(context.Background(), "conn-1", encode(t, map[string]any{
		"type":      "make-move",
		"cellIndex": 0,
		"size":      "P",
	}))

	out := recvOne(t, outbox)
	require.Equal(t, protocol.TypeMoveError, out.Type)
	require.Equal(t, "Conflict", out.Fields["code"])
}

func TestCreateRoomWhileAlreadyBoundReturnsAlreadyIn(t *testing.T) {
	d := newTestDispatcher(t)
	outbox := make(chan protocol.Outbound, 8)
	d.RegisterConn("conn-1", outbox, func(string) {})

	d.HandleInbound(context.Background(), "conn-1", encode(t, map[string]any{
		"type":       "create-room",
		"playerName": "Host",
		"roomName":   "Table Four",
		"capacity":   2,
	}))
	first := recvOne(t, outbox)
	require.Equal(t, protocol.TypeRoomCreated, first.Type)

	d.HandleInbound(context.Background(), "conn-1", encode(t, map[string]any{
		"type":       "create-room",
		"playerName": "Host",
		"roomName":   "Table Five",
		"capacity":   2,
	}))
	second := recvOne(t, outbox)
	require.Equal(t, protocol.TypeRoomError, second.Type)
	require.Equal(t, "AlreadyIn", second.Fields["code"])

	b, ok := d.table.get("conn-1")
	require.True(t, ok)
	require.Equal(t, first.Fields["roomId"], b.roomID)
}

func TestJoinRoomWhileAlreadyBoundReturnsAlreadyIn(t *testing.T) {
	d := newTestDispatcher(t)
	hostOutbox := make(chan protocol.Outbound, 8)
	d.RegisterConn("host-conn", hostOutbox, func(string) {})
	d.HandleInbound(context.Background(), "host-conn", encode(t, map[string]any{
		"type":       "create-room",
		"playerName": "Host",
		"roomName":   "Table Six",
		"capacity":   3,
	}))
	roomOne := recvOne(t, hostOutbox).Fields["roomId"].(string)

	otherHostOutbox := make(chan protocol.Outbound, 8)
	d.RegisterConn("other-host-conn", otherHostOutbox, func(string) {})
	d.HandleInbound(context.Background(), "other-host-conn", encode(t, map[string]any{
		"type":       "create-room",
		"playerName": "Other Host",
		"roomName":   "Table Seven",
		"capacity":   3,
	}))
	otherRoom := recvOne(t, otherHostOutbox)
	require.Equal(t, protocol.TypeRoomCreated, otherRoom.Type)
	roomTwo := otherRoom.Fields["roomId"].(string)

	joinerOutbox := make(chan protocol.Outbound, 8)
	d.RegisterConn("joiner-conn", joinerOutbox, func(string) {})
	d.HandleInbound(context.Background(), "joiner-conn", encode(t, map[string]any{
		"type":       "join-room",
		"roomId":     roomOne,
		"playerName": "Joiner",
	}))
	recvOne(t, joinerOutbox) // room-joined

	d.HandleInbound(context.Background(), "joiner-conn", encode(t, map[string]any{
		"type":       "join-room",
		"roomId":     roomTwo,
		"playerName": "Joiner",
	}))
	out := recvOne(t, joinerOutbox)
	require.Equal(t, protocol.TypeJoinError, out.Type)
	require.Equal(t, "AlreadyIn", out.Fields["code"])

	b, ok := d.table.get("joiner-conn")
	require.True(t, ok)
	require.Equal(t, roomOne, b.roomID)
}

func TestUnregisterConnDuringMatchDisconnectsSeat(t *testing.T) {
	d := newTestDispatcher(t)
	hostOutbox := make(chan protocol.Outbound, 8)
	d.RegisterConn("host-conn", hostOutbox, func(string) {})
	d.HandleInbound(context.Background(), "host-conn", encode(t, map[string]any{
		"type":       "create-room",
		"playerName": "Host",
		"roomName":   "Table Three",
		"capacity":   2,
	}))
	created := recvOne(t, hostOutbox)
	roomID := created.Fields["roomId"].(string)

	joinerOutbox := make(chan protocol.Outbound, 8)
	d.RegisterConn("joiner-conn", joinerOutbox, func(string) {})
	d.HandleInbound(context.Background(), "joiner-conn", encode(t, map[string]any{
		"type":       "join-room",
		"roomId":     roomID,
		"playerName": "Joiner",
	}))
	recvOne(t, joinerOutbox) // room-joined, already reflects the started match
	recvOne(t, hostOutbox)   // player-joined
	recvOne(t, hostOutbox)   // game-started, capacity reached

	d.UnregisterConn("joiner-conn")

	evt := recvOne(t, hostOutbox)
	require.Equal(t, protocol.TypePlayerDisconnected, evt.Type)
	require.Equal(t, false, evt.Fields["left"])
}
