package room

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/DoyleJ11/otrio-backend/internal/apperr"
	"github.com/DoyleJ11/otrio-backend/internal/boardgame"
	"github.com/DoyleJ11/otrio-backend/internal/match"
	"github.com/DoyleJ11/otrio-backend/internal/player"
	"github.com/DoyleJ11/otrio-backend/internal/protocol"
	"github.com/DoyleJ11/otrio-backend/internal/replay"
)

// LeaveMode distinguishes an explicit leave-room message from a
// transport-detected disconnect: they're treated differently during
// an active match (explicit leave forfeits immediately, disconnect
// grants a reconnect grace window).
type LeaveMode int

const (
	LeaveExplicit LeaveMode = iota
	LeaveDisconnect
)

type joinMsg struct {
	nickname string
	code     string
	reply    chan joinOutcome
}

func (joinMsg) isRoomMsg() {}

type joinOutcome struct {
	result JoinResult
	err    error
}

type leaveMsg struct {
	seatID string
	mode   LeaveMode
	reply  chan error
}

func (leaveMsg) isRoomMsg() {}

type reconnectMsg struct {
	seatID string
	reply  chan reconnectOutcome
}

func (reconnectMsg) isRoomMsg() {}

type reconnectOutcome struct {
	result ReconnectResult
	err    error
}

type moveMsg struct {
	seatID string
	cell   int
	size   boardgame.Size
	reply  chan error
}

func (moveMsg) isRoomMsg() {}

type castVoteMsg struct {
	seatID string
	vote   bool
	reply  chan error
}

func (castVoteMsg) isRoomMsg() {}

type snapshotMsg struct {
	reply chan protocol.GameStateView
}

func (snapshotMsg) isRoomMsg() {}

type summaryMsg struct {
	reply chan protocol.RoomSummary
}

func (summaryMsg) isRoomMsg() {}

// Join seats a new player. code is checked against the room's stored
// hash only if the room is private.
func (r *Room) Join(ctx context.Context, nickname, code string) (JoinResult, error) {
	reply := make(chan joinOutcome, 1)
	select {
	case r.inbox <- joinMsg{nickname: nickname, code: code, reply: reply}:
	case <-ctx.Done():
		return JoinResult{}, ctx.Err()
	case <-r.done:
		return JoinResult{}, apperr.New(apperr.NotFound, "room no longer exists")
	}
	select {
	case out := <-reply:
		return out.result, out.err
	case <-ctx.Done():
		return JoinResult{}, ctx.Err()
	}
}

// Leave removes or marks-disconnected the given seat.
func (r *Room) Leave(ctx context.Context, seatID string, mode LeaveMode) error {
	reply := make(chan error, 1)
	select {
	case r.inbox <- leaveMsg{seatID: seatID, mode: mode, reply: reply}:
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		return nil
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reconnect restores a disconnected seat's Connected flag and returns a
// full snapshot to resync the client.
func (r *Room) Reconnect(ctx context.Context, seatID string) (ReconnectResult, error) {
	reply := make(chan reconnectOutcome, 1)
	select {
	case r.inbox <- reconnectMsg{seatID: seatID, reply: reply}:
	case <-ctx.Done():
		return ReconnectResult{}, ctx.Err()
	case <-r.done:
		return ReconnectResult{}, apperr.New(apperr.NotFound, "room no longer exists")
	}
	select {
	case out := <-reply:
		return out.result, out.err
	case <-ctx.Done():
		return ReconnectResult{}, ctx.Err()
	}
}

// SubmitMove routes a make-move request into the active match.
func (r *Room) SubmitMove(ctx context.Context, seatID string, cell int, size boardgame.Size) error {
	reply := make(chan error, 1)
	select {
	case r.inbox <- moveMsg{seatID: seatID, cell: cell, size: size, reply: reply}:
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		return apperr.New(apperr.NotFound, "room no longer exists")
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CastReplayVote records seatID's vote in the current replay window.
func (r *Room) CastReplayVote(ctx context.Context, seatID string, vote bool) error {
	reply := make(chan error, 1)
	select {
	case r.inbox <- castVoteMsg{seatID: seatID, vote: vote, reply: reply}:
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		return apperr.New(apperr.NotFound, "room no longer exists")
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns the current game-state view.
func (r *Room) Snapshot(ctx context.Context) (protocol.GameStateView, error) {
	reply := make(chan protocol.GameStateView, 1)
	select {
	case r.inbox <- snapshotMsg{reply: reply}:
	case <-ctx.Done():
		return protocol.GameStateView{}, ctx.Err()
	case <-r.done:
		return protocol.GameStateView{}, apperr.New(apperr.NotFound, "room no longer exists")
	}
	select {
	case view := <-reply:
		return view, nil
	case <-ctx.Done():
		return protocol.GameStateView{}, ctx.Err()
	}
}

// Summary returns the GET /rooms row for this room.
func (r *Room) Summary(ctx context.Context) (protocol.RoomSummary, error) {
	reply := make(chan protocol.RoomSummary, 1)
	select {
	case r.inbox <- summaryMsg{reply: reply}:
	case <-ctx.Done():
		return protocol.RoomSummary{}, ctx.Err()
	case <-r.done:
		return protocol.RoomSummary{}, apperr.New(apperr.NotFound, "room no longer exists")
	}
	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return protocol.RoomSummary{}, ctx.Err()
	}
}

// --- actor-thread handlers, called only from loop() ---

func (r *Room) handleJoin(nickname, code string) joinOutcome {
	if time.Now().After(r.expiresAt) {
		return joinOutcome{err: apperr.New(apperr.Expired, "room has expired")}
	}
	if r.m != nil && r.m.Status == match.StatusPlaying {
		return joinOutcome{err: apperr.New(apperr.Conflict, "match already in progress")}
	}
	if len(r.seats) >= r.Capacity {
		return joinOutcome{err: apperr.New(apperr.Conflict, "room is full")}
	}
	if r.IsPrivate && !CompareCode(r.codeHash, code) {
		return joinOutcome{err: apperr.New(apperr.InvalidCode, "invalid room code")}
	}

	clean, err := validateNickname(nickname)
	if err != nil {
		return joinOutcome{err: err}
	}

	color, err := r.nextColor()
	if err != nil {
		return joinOutcome{err: err}
	}

	seat := player.New(uuid.NewString(), clean)
	seat.Color = color
	r.seats = append(r.seats, seat)

	now := time.Now()
	r.resetTTL(now)

	r.broadcast([]protocol.Outbound{protocol.Msg(protocol.TypePlayerJoined, protocol.M{
		"roomId": r.ID,
		"player": playerView(seat),
	})})

	if len(r.seats) == r.Capacity {
		r.startMatch(now, false)
	}

	return joinOutcome{result: JoinResult{Seat: seat, Snapshot: r.buildGameStateView()}}
}

func (r *Room) handleLeave(seatID string, mode LeaveMode) error {
	seat := r.seatByID(seatID)
	if seat == nil {
		return apperr.New(apperr.NotFound, "seat not found")
	}

	now := time.Now()

	if r.m == nil || r.m.Status != match.StatusPlaying {
		// Waiting-room leave: the seat is removed outright, freeing its
		// color and capacity slot.
		r.removeSeat(seatID)
		if seat.IsHost {
			r.promoteNextHost()
		}
		r.broadcast([]protocol.Outbound{protocol.Msg(protocol.TypePlayerDisconnected, protocol.M{
			"roomId": r.ID,
			"seatId": seatID,
			"left":   true,
		})})
		return nil
	}

	if mode == LeaveDisconnect {
		seat.SetConnected(false, now)
		r.broadcast([]protocol.Outbound{protocol.Msg(protocol.TypePlayerDisconnected, protocol.M{
			"roomId": r.ID,
			"seatId": seatID,
			"left":   false,
		})})
		return nil
	}

	// Explicit leave during a match eliminates the seat immediately. Only
	// force a turn advance if the leaver was the one actually holding the
	// turn — SkipCurrent operates on whoever currently holds it, and a
	// leaver who wasn't due to move must not cost the real turn-holder a
	// skip.
	wasCurrent := seat.ID == r.m.CurrentSeatID
	seat.Eliminate()
	if wasCurrent {
		evts := r.m.SkipCurrent("left", now)
		r.afterMatchEvents(evts)
	}
	r.checkSoleSurvivor(now)
	return nil
}

func (r *Room) handleReconnect(seatID string) reconnectOutcome {
	seat := r.seatByID(seatID)
	if seat == nil {
		return reconnectOutcome{err: apperr.New(apperr.NotFound, "seat not found")}
	}
	now := time.Now()
	if seat.ReconnectExpired(now, r.cfg.ReconnectGrace) {
		return reconnectOutcome{err: apperr.New(apperr.Expired, "reconnect grace window has passed")}
	}
	seat.SetConnected(true, now)
	r.broadcast([]protocol.Outbound{protocol.Msg(protocol.TypePlayerJoined, protocol.M{
		"roomId":      r.ID,
		"seatId":      seatID,
		"reconnected": true,
	})})
	return reconnectOutcome{result: ReconnectResult{Snapshot: r.buildGameStateView()}}
}

func (r *Room) handleMove(seatID string, cell int, size boardgame.Size) error {
	if r.m == nil {
		return apperr.New(apperr.Conflict, "no match in progress")
	}
	evts, err := r.m.SubmitMove(seatID, cell, size, time.Now())
	if err != nil {
		return err
	}
	r.afterMatchEvents(evts)
	return nil
}

func (r *Room) handleCastVote(seatID string, vote bool) error {
	if r.vote == nil {
		return apperr.New(apperr.Conflict, "no replay vote in progress")
	}
	outcome, err := r.vote.Cast(seatID, vote, time.Now())
	if err != nil {
		return err
	}
	r.broadcast([]protocol.Outbound{protocol.Msg(protocol.TypeReplayVoteUpdated, protocol.M{
		"roomId": r.ID,
		"votes":  r.vote.Votes(),
	})})
	if outcome != replay.Pending {
		r.afterVoteOutcome(outcome)
	}
	return nil
}
