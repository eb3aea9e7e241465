// Package room implements the per-room actor: a single goroutine
// owning one room's players, its current match, and any replay vote in
// progress, serializing every operation through a single inbox
// channel.
package room

import (
	"context"
	"math/rand/v2"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/otrio-backend/internal/apperr"
	"github.com/DoyleJ11/otrio-backend/internal/boardgame"
	"github.com/DoyleJ11/otrio-backend/internal/config"
	"github.com/DoyleJ11/otrio-backend/internal/match"
	"github.com/DoyleJ11/otrio-backend/internal/player"
	"github.com/DoyleJ11/otrio-backend/internal/protocol"
	"github.com/DoyleJ11/otrio-backend/internal/replay"
	"github.com/DoyleJ11/otrio-backend/internal/roomtimer"
)

// Msg is the sealed interface for everything a Room's actor loop
// accepts on its inbox.
type Msg interface{ isRoomMsg() }

const (
	minNicknameLen = 1
	maxNicknameLen = 20
	minRoomNameLen = 1
	maxRoomNameLen = 50
	minCodeLen     = 4
	maxCodeLen     = 20
)

// validateNickname trims surrounding whitespace and checks the result
// falls within the code-point bounds a seat's display name must meet.
func validateNickname(raw string) (string, error) {
	nickname := strings.TrimSpace(raw)
	n := utf8.RuneCountInString(nickname)
	if n < minNicknameLen || n > maxNicknameLen {
		return "", apperr.New(apperr.InvalidInput, "nickname must be 1-20 characters")
	}
	return nickname, nil
}

// validateRoomName trims surrounding whitespace and checks the result
// falls within the code-point bounds a room's display name must meet.
func validateRoomName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	n := utf8.RuneCountInString(name)
	if n < minRoomNameLen || n > maxRoomNameLen {
		return "", apperr.New(apperr.InvalidInput, "room name must be 1-50 characters")
	}
	return name, nil
}

// validateCode checks a private room's plaintext join code falls within
// the code-point bounds required before it's hashed and stored.
func validateCode(raw string) error {
	n := utf8.RuneCountInString(raw)
	if n < minCodeLen || n > maxCodeLen {
		return apperr.New(apperr.InvalidInput, "room code must be 4-20 characters")
	}
	return nil
}

// CreateOptions carries raw room-creation parameters as received from
// the client; New trims and validates the name, host nickname and
// private code before using them.
type CreateOptions struct {
	Name         string
	Capacity     int
	IsPrivate    bool
	Code         string // plaintext; ignored if !IsPrivate
	HostNickname string
}

// JoinResult is returned to a caller of Join.
type JoinResult struct {
	Seat     *player.Seat
	Snapshot protocol.GameStateView
}

// ReconnectResult is returned to a caller of Reconnect.
type ReconnectResult struct {
	Snapshot protocol.GameStateView
}

// Room is the actor owning one lobby's lifecycle: waiting for players,
// running a match to completion, and offering a replay vote.
type Room struct {
	ID        string
	Name      string
	Capacity  int
	IsPrivate bool
	CreatedAt time.Time

	// LastActivityAt tracks the most recent join or match start, for the
	// Registry's activity-ordered room listing.
	LastActivityAt time.Time

	codeHash []byte

	cfg    config.Config
	logger *zap.Logger
	rng    *rand.Rand

	seats  []*player.Seat // join order
	hostID string
	m      *match.Match
	vote   *replay.Vote

	expiresAt time.Time

	turnTimer  roomtimer.Timer
	voteTimer  roomtimer.Timer
	turnFireCh chan roomtimer.FireMsg
	voteFireCh chan roomtimer.FireMsg
	voteEpoch  int

	events chan []protocol.Outbound

	inbox  chan Msg
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New constructs a Room and starts its actor goroutine. The returned
// hostSeat is already seated (index 0) and IsHost.
func New(parent context.Context, id string, opts CreateOptions, cfg config.Config, logger *zap.Logger) (*Room, *player.Seat, string, error) {
	if opts.Capacity < 2 || opts.Capacity > 4 {
		return nil, nil, "", apperr.New(apperr.InvalidInput, "capacity must be between 2 and 4")
	}
	name, err := validateRoomName(opts.Name)
	if err != nil {
		return nil, nil, "", err
	}
	hostNickname, err := validateNickname(opts.HostNickname)
	if err != nil {
		return nil, nil, "", err
	}

	var codeHash []byte
	plaintextCode := ""
	if opts.IsPrivate {
		if opts.Code != "" {
			if err := validateCode(opts.Code); err != nil {
				return nil, nil, "", err
			}
			plaintextCode = opts.Code
		} else {
			generated, err := GenerateJoinCode()
			if err != nil {
				return nil, nil, "", err
			}
			plaintextCode = generated
		}
		hash, err := HashCode(plaintextCode)
		if err != nil {
			return nil, nil, "", err
		}
		codeHash = hash
	}

	ctx, cancel := context.WithCancel(parent)
	now := time.Now()

	host := player.New(uuid.NewString(), hostNickname)
	host.SetHost(true)
	host.Color = cfg.ColorPalette[0]

	r := &Room{
		ID:             id,
		Name:           name,
		Capacity:       opts.Capacity,
		IsPrivate:      opts.IsPrivate,
		CreatedAt:      now,
		LastActivityAt: now,
		codeHash:       codeHash,
		cfg:            cfg,
		logger:         logger,
		rng:            rand.New(rand.NewPCG(uint64(now.UnixNano()), uint64(id[0])+1)),
		seats:          []*player.Seat{host},
		hostID:         host.ID,
		expiresAt:      now.Add(cfg.RoomTTL),
		turnFireCh:     make(chan roomtimer.FireMsg, 1),
		voteFireCh:     make(chan roomtimer.FireMsg, 1),
		events:         make(chan []protocol.Outbound, 256),
		inbox:          make(chan Msg, 64),
		ctx:            ctx,
		cancel:         cancel,
		done:           make(chan struct{}),
	}

	go r.loop()
	return r, host, plaintextCode, nil
}

// Inbox exposes the raw mailbox for callers that want fire-and-forget
// delivery (none currently do; every operation below waits for a reply
// because the wire protocol always needs one).
func (r *Room) Inbox() chan<- Msg { return r.inbox }

// Events is the outbound broadcast channel: every state change produces
// zero or more protocol.Outbound messages the Session Dispatcher fans
// out to connections bound to this room.
func (r *Room) Events() <-chan []protocol.Outbound { return r.events }

// Done closes once the room has become terminal (see isTerminal) and
// its actor loop has exited. The Registry watches this to know when to
// drop the room from its index.
func (r *Room) Done() <-chan struct{} { return r.done }

func (r *Room) broadcast(evts []protocol.Outbound) {
	if len(evts) == 0 {
		return
	}
	select {
	case r.events <- evts:
	default:
		if r.logger != nil {
			r.logger.Warn("room event channel full, dropping broadcast", zap.String("room_id", r.ID))
		}
	}
}

func (r *Room) loop() {
	defer close(r.done)
	defer close(r.events)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	defer r.turnTimer.Cancel()
	defer r.voteTimer.Cancel()

	for {
		select {
		case <-r.ctx.Done():
			return

		case fm := <-r.turnFireCh:
			r.handleTurnFire(fm)
			if r.isTerminal() {
				return
			}

		case fm := <-r.voteFireCh:
			r.handleVoteFire(fm)
			if r.isTerminal() {
				return
			}

		case <-ticker.C:
			if r.m != nil && r.m.Status == match.StatusPlaying && r.turnTimer.Remaining() == 0 {
				// The turn deadline has passed: skip now even if the timer's
				// fire was dropped. A fire still queued for this turn then
				// carries a stale epoch and is ignored.
				r.handleTurnFire(roomtimer.FireMsg{Epoch: r.m.TurnEpoch})
			}
			if r.m != nil && r.m.Status == match.StatusPlaying {
				r.broadcast([]protocol.Outbound{protocol.Msg(protocol.TypeTimerUpdate, protocol.M{
					"roomId":       r.ID,
					"timeLeftSecs": int(r.turnTimer.Remaining() / time.Second),
				})})
			}
			if r.isTerminal() {
				return
			}

		case m := <-r.inbox:
			r.dispatch(m)
			if r.isTerminal() {
				return
			}
		}
	}
}

func (r *Room) dispatch(m Msg) {
	switch msg := m.(type) {
	case joinMsg:
		msg.reply <- r.handleJoin(msg.nickname, msg.code)
	case leaveMsg:
		msg.reply <- r.handleLeave(msg.seatID, msg.mode)
	case reconnectMsg:
		msg.reply <- r.handleReconnect(msg.seatID)
	case moveMsg:
		msg.reply <- r.handleMove(msg.seatID, msg.cell, msg.size)
	case castVoteMsg:
		msg.reply <- r.handleCastVote(msg.seatID, msg.vote)
	case snapshotMsg:
		msg.reply <- r.buildGameStateView()
	case summaryMsg:
		msg.reply <- r.buildSummary()
	}
}

func (r *Room) handleTurnFire(fm roomtimer.FireMsg) {
	if r.m == nil || fm.Epoch != r.m.TurnEpoch {
		return // stale fire from a superseded turn epoch
	}
	evts := r.m.SkipCurrent("timeout", time.Now())
	r.afterMatchEvents(evts)
}

func (r *Room) handleVoteFire(fm roomtimer.FireMsg) {
	if r.vote == nil || fm.Epoch != r.voteEpoch {
		return
	}
	outcome := r.vote.Expire()
	r.afterVoteOutcome(outcome)
}

// isTerminal reports whether the room should be torn down: empty while
// waiting, a rejected/expired replay vote with no match to return to,
// or past its TTL.
func (r *Room) isTerminal() bool {
	if len(r.seats) == 0 {
		return true
	}
	if r.vote != nil {
		switch r.vote.Outcome() {
		case replay.Rejected, replay.Expired:
			return true
		}
	}
	return time.Now().After(r.expiresAt)
}

func (r *Room) seatByID(id string) *player.Seat {
	for _, s := range r.seats {
		if s.ID == id {
			return s
		}
	}
	return nil
}

func (r *Room) usedColors() map[boardgame.Color]bool {
	used := make(map[boardgame.Color]bool, len(r.seats))
	for _, s := range r.seats {
		used[s.Color] = true
	}
	return used
}

func (r *Room) nextColor() (boardgame.Color, error) {
	used := r.usedColors()
	for _, c := range r.cfg.ColorPalette {
		if !used[c] {
			return c, nil
		}
	}
	return "", apperr.New(apperr.Conflict, "no colors remaining")
}

func (r *Room) resetTTL(now time.Time) {
	r.expiresAt = now.Add(r.cfg.RoomTTL)
	r.LastActivityAt = now
}
