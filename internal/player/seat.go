// Package player holds the per-seat record. Every mutation here is
// synchronous and is only ever invoked from within the owning Room's
// serialized mailbox loop — nothing in this package takes a lock.
package player

import (
	"time"

	"github.com/DoyleJ11/otrio-backend/internal/apperr"
	"github.com/DoyleJ11/otrio-backend/internal/boardgame"
)

// Seat is one player's slot within a specific room. It persists across
// that room's lifetime, surviving match replays.
type Seat struct {
	ID             string
	Nickname       string
	Color          boardgame.Color
	Inventory      boardgame.Inventory
	Connected      bool
	DisconnectedAt time.Time
	SkipsInARow    int
	IsEliminated   bool
	IsHost         bool
}

// New constructs a freshly joined seat: no color yet (the Room assigns
// one from the palette), connected, zero skips, not eliminated.
func New(id, nickname string) *Seat {
	return &Seat{
		ID:        id,
		Nickname:  nickname,
		Inventory: boardgame.NewInventory(),
		Connected: true,
	}
}

// UsePiece decrements the seat's inventory for size, failing with
// apperr.IllegalMove if none remain.
func (s *Seat) UsePiece(size boardgame.Size) error {
	inv, err := s.Inventory.Decrement(size)
	if err != nil {
		return apperr.Wrap(apperr.IllegalMove, "no pieces of that size remain", err)
	}
	s.Inventory = inv
	return nil
}

// IncrementSkip bumps the consecutive-skip counter and returns the new
// value.
func (s *Seat) IncrementSkip() int {
	s.SkipsInARow++
	return s.SkipsInARow
}

// ResetSkip clears the consecutive-skip counter after a successful
// move.
func (s *Seat) ResetSkip() { s.SkipsInARow = 0 }

// Eliminate marks the seat as permanently out for the remainder of the
// match. Once true it remains true until the next match reinitializes
// the seat via ResetForMatch.
func (s *Seat) Eliminate() { s.IsEliminated = true }

// SetConnected updates the transport-liveness flag, stamping
// DisconnectedAt when the seat goes offline so Room can enforce a
// reconnect grace window.
func (s *Seat) SetConnected(connected bool, now time.Time) {
	s.Connected = connected
	if !connected {
		s.DisconnectedAt = now
	}
}

// ReconnectExpired reports whether seat has been disconnected longer
// than grace, and so may no longer be reclaimed by Reconnect.
func (s *Seat) ReconnectExpired(now time.Time, grace time.Duration) bool {
	return !s.Connected && !s.DisconnectedAt.IsZero() && now.Sub(s.DisconnectedAt) > grace
}

// SetHost flips the host flag; the Room guarantees at most one seat per
// room ever has this set.
func (s *Seat) SetHost(host bool) { s.IsHost = host }

// Active reports whether the seat currently participates in turn
// rotation: neither eliminated nor disconnected.
func (s *Seat) Active() bool { return !s.IsEliminated && s.Connected }

// ResetForMatch restores the seat to its start-of-match state: full
// inventory, no skips, not eliminated. Identity, nickname, color, and
// connection/host flags are untouched.
func (s *Seat) ResetForMatch() {
	s.Inventory = boardgame.NewInventory()
	s.SkipsInARow = 0
	s.IsEliminated = false
}
