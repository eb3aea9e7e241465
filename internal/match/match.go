// Package match implements the state machine for one match: turn
// order, move validation, inventory decrement, terminal detection,
// forced skip, and elimination. There is exactly one authoritative
// Match per Room, mutated in place rather than command-sourced into a
// replayable log.
package match

import (
	"math/rand/v2"
	"time"

	"github.com/DoyleJ11/otrio-backend/internal/apperr"
	"github.com/DoyleJ11/otrio-backend/internal/boardgame"
	"github.com/DoyleJ11/otrio-backend/internal/player"
)

// Status is the Match's lifecycle state.
type Status string

const (
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

// Config bundles the tunables the Match Engine needs from
// internal/config without importing it directly, so match does not
// depend on the config package or its dependencies.
type Config struct {
	TurnTimeout          time.Duration
	ConsecutiveSkipLimit int
}

// EventType classifies one entry in the Events returned by a Match
// mutation. The Room translates these into the wire-level outbound
// message types (game-updated, turn-skipped, player-eliminated,
// game-ended, ...).
type EventType string

const (
	EvtMoveApplied  EventType = "move_applied"
	EvtSkipped      EventType = "skipped"
	EvtEliminated   EventType = "eliminated"
	EvtTurnAdvanced EventType = "turn_advanced"
	EvtFinished     EventType = "finished"
)

// Event is one atomic thing that happened as a result of a Match
// mutation. A single call can produce several, in emission order.
type Event struct {
	Type     EventType
	SeatID   string
	Cell     int
	Size     boardgame.Size
	Color    boardgame.Color
	Reason   string
	WinnerID string
	IsDraw   bool
}

// Match is owned exclusively by one Room for the duration of one game.
// Seats are shared pointers owned by the Room — Match never appends to
// or removes from the seat set, it only reads/mutates the per-seat
// fields (inventory, skip counter, elimination) that belong to gameplay.
type Match struct {
	cfg Config

	Board         boardgame.Board
	SeatOrder     []string // snapshot at start; never reordered
	seatByID      map[string]*player.Seat
	CurrentSeatID string
	Status        Status
	WinnerID      string
	IsDraw        bool
	TurnStartedAt time.Time
	TurnDeadline  time.Time
	TurnEpoch     int
	StartedAt     time.Time
	FinishedAt    time.Time
}

// New initializes a Match over the given seats (2..4, room join order).
// Every seat's inventory/skip/elimination is reset, a starting seat is
// picked uniformly at random, and the first turn deadline is computed.
func New(cfg Config, seats []*player.Seat, now time.Time, rng *rand.Rand) *Match {
	seatByID := make(map[string]*player.Seat, len(seats))
	order := make([]string, len(seats))
	for i, s := range seats {
		s.ResetForMatch()
		seatByID[s.ID] = s
		order[i] = s.ID
	}

	starter := order[rng.IntN(len(order))]

	m := &Match{
		cfg:           cfg,
		SeatOrder:     order,
		seatByID:      seatByID,
		CurrentSeatID: starter,
		Status:        StatusPlaying,
		TurnStartedAt: now,
		TurnDeadline:  now.Add(cfg.TurnTimeout),
		StartedAt:     now,
	}
	return m
}

// Seat returns the seat pointer for id, or nil if it isn't part of this
// match.
func (m *Match) Seat(id string) *player.Seat { return m.seatByID[id] }

// SubmitMove validates and applies a move for seatID.
func (m *Match) SubmitMove(seatID string, cell int, size boardgame.Size, now time.Time) ([]Event, error) {
	if m.Status != StatusPlaying {
		return nil, apperr.New(apperr.Unavailable, "match is not in progress")
	}
	if seatID != m.CurrentSeatID {
		return nil, apperr.New(apperr.Forbidden, "it is not your turn")
	}
	seat := m.seatByID[seatID]
	if seat == nil {
		return nil, apperr.New(apperr.NotFound, "unknown seat")
	}
	if seat.IsEliminated {
		return nil, apperr.New(apperr.Forbidden, "seat is eliminated")
	}
	if seat.Inventory.Count(size) <= 0 {
		return nil, apperr.New(apperr.IllegalMove, "no pieces of that size remain")
	}
	if !boardgame.IsLegal(m.Board, cell, size) {
		return nil, apperr.New(apperr.IllegalMove, "slot already occupied")
	}

	newBoard, err := boardgame.ApplyMove(m.Board, cell, size, seat.Color)
	if err != nil {
		return nil, apperr.Wrap(apperr.IllegalMove, "illegal move", err)
	}
	m.Board = newBoard
	if err := seat.UsePiece(size); err != nil {
		return nil, err
	}
	seat.ResetSkip()

	events := []Event{{Type: EvtMoveApplied, SeatID: seatID, Cell: cell, Size: size, Color: seat.Color}}

	if boardgame.HasWin(m.Board, seat.Color) {
		m.Status = StatusFinished
		m.WinnerID = seatID
		m.FinishedAt = now
		events = append(events, Event{Type: EvtFinished, WinnerID: seatID})
		return events, nil
	}

	if !m.anyActiveSeatHasLegalMove() {
		m.Status = StatusFinished
		m.IsDraw = true
		m.FinishedAt = now
		events = append(events, Event{Type: EvtFinished, IsDraw: true})
		return events, nil
	}

	events = append(events, m.advanceTurn(now)...)
	return events, nil
}

// SkipCurrent forces the current seat to forfeit its turn: invoked by
// the Room on a turn timeout or on an explicit leave while the leaver
// holds the turn. advanceTurn runs the same skip path (forcedSkip)
// directly when it lands on a seat that structurally has no legal move
// available to it.
func (m *Match) SkipCurrent(reason string, now time.Time) []Event {
	seat := m.seatByID[m.CurrentSeatID]
	if seat == nil || m.Status != StatusPlaying {
		return nil
	}
	return m.forcedSkip(seat, reason, now)
}

// FinishAsForfeit concludes the match immediately with winnerID as
// winner. Match has no notion of "a seat left the room" — only that a
// seat is eliminated — so the Room is the one that detects "exactly one
// uneliminated seat remains" after an explicit leave and calls this to
// record the forfeit outcome.
func (m *Match) FinishAsForfeit(winnerID string, now time.Time) []Event {
	m.Status = StatusFinished
	m.WinnerID = winnerID
	m.FinishedAt = now
	return []Event{{Type: EvtFinished, WinnerID: winnerID}}
}

func (m *Match) forcedSkip(seat *player.Seat, reason string, now time.Time) []Event {
	seat.IncrementSkip()
	events := []Event{{Type: EvtSkipped, SeatID: seat.ID, Reason: reason}}

	if seat.SkipsInARow >= m.cfg.ConsecutiveSkipLimit {
		seat.Eliminate()
		events = append(events, Event{Type: EvtEliminated, SeatID: seat.ID})

		// The elimination itself may have just taken the last active seat
		// off the board. That's a distinct outcome from a stuck-but-still-
		// active field: a sole surviving uneliminated seat wins outright
		// rather than drawing.
		if !m.anyActiveSeatRemains() {
			return append(events, m.finishOnNoActiveSeats(now)...)
		}
	}

	if !m.anyActiveSeatHasLegalMove() {
		m.Status = StatusFinished
		m.IsDraw = true
		m.FinishedAt = now
		events = append(events, Event{Type: EvtFinished, IsDraw: true})
		return events
	}

	events = append(events, m.advanceTurn(now)...)
	return events
}

// advanceTurn scans forward from CurrentSeatID for the next active seat,
// wrapping. A landed-on seat that structurally cannot move (inventory
// exhausted or the board leaves it no room) is forced-skipped in place,
// including the elimination check, so a skip count at or above the
// limit always implies elimination regardless of why the skip
// happened. If no active seat remains, the match ends.
func (m *Match) advanceTurn(now time.Time) []Event {
	next := m.nextActiveAfter(m.CurrentSeatID)
	if next == nil {
		return m.finishOnNoActiveSeats(now)
	}

	m.CurrentSeatID = next.ID
	m.TurnEpoch++
	events := []Event{{Type: EvtTurnAdvanced, SeatID: next.ID}}

	if boardgame.AnyLegalMoveFor(m.Board, next.Inventory) {
		m.TurnStartedAt = now
		m.TurnDeadline = now.Add(m.cfg.TurnTimeout)
		return events
	}

	// next structurally cannot move: forced-skip it in place and let the
	// recursion continue the scan from its position.
	return append(events, m.forcedSkip(next, "no_legal_move", now)...)
}

func (m *Match) finishOnNoActiveSeats(now time.Time) []Event {
	var uneliminated []*player.Seat
	for _, id := range m.SeatOrder {
		s := m.seatByID[id]
		if !s.IsEliminated {
			uneliminated = append(uneliminated, s)
		}
	}

	m.Status = StatusFinished
	m.FinishedAt = now
	ev := Event{Type: EvtFinished}
	if len(uneliminated) == 1 {
		m.WinnerID = uneliminated[0].ID
		ev.WinnerID = m.WinnerID
	} else {
		m.IsDraw = true
		ev.IsDraw = true
	}
	return []Event{ev}
}

// nextActiveAfter returns the first Active seat found scanning forward
// from (excluding) seatID, wrapping around SeatOrder. Returns nil if no
// active seat exists.
func (m *Match) nextActiveAfter(seatID string) *player.Seat {
	n := len(m.SeatOrder)
	start := 0
	for i, id := range m.SeatOrder {
		if id == seatID {
			start = i
			break
		}
	}
	for i := 1; i <= n; i++ {
		id := m.SeatOrder[(start+i)%n]
		s := m.seatByID[id]
		if s.Active() {
			return s
		}
	}
	return nil
}

func (m *Match) anyActiveSeatRemains() bool {
	for _, id := range m.SeatOrder {
		if m.seatByID[id].Active() {
			return true
		}
	}
	return false
}

func (m *Match) anyActiveSeatHasLegalMove() bool {
	for _, id := range m.SeatOrder {
		s := m.seatByID[id]
		if !s.Active() {
			continue
		}
		if boardgame.AnyLegalMoveFor(m.Board, s.Inventory) {
			return true
		}
	}
	return false
}
