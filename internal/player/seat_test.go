package player

import (
	"testing"
	"time"

	"github.com/DoyleJ11/otrio-backend/internal/apperr"
	"github.com/DoyleJ11/otrio-backend/internal/boardgame"
)

func TestUsePiece(t *testing.T) {
	s := New("seat-1", "Ada")
	if err := s.UsePiece(boardgame.Small); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if s.Inventory.P != 2 {
		t.Fatalf("expected 2 remaining, got %d", s.Inventory.P)
	}

	s.Inventory = boardgame.Inventory{}
	err := s.UsePiece(boardgame.Small)
	if err == nil {
		t.Fatalf("expected error using an exhausted size")
	}
	if apperr.CodeOf(err) != apperr.IllegalMove {
		t.Fatalf("expected IllegalMove, got %v", apperr.CodeOf(err))
	}
}

func TestSkipAndEliminateLifecycle(t *testing.T) {
	s := New("seat-1", "Ada")
	s.IncrementSkip()
	if s.SkipsInARow != 1 {
		t.Fatalf("want 1, got %d", s.SkipsInARow)
	}
	s.IncrementSkip()
	if s.SkipsInARow != 2 {
		t.Fatalf("want 2, got %d", s.SkipsInARow)
	}
	s.Eliminate()
	if !s.IsEliminated {
		t.Fatalf("expected eliminated")
	}
	if s.Active() {
		t.Fatalf("eliminated seat must not be active")
	}

	s.ResetForMatch()
	if s.IsEliminated || s.SkipsInARow != 0 || s.Inventory != boardgame.NewInventory() {
		t.Fatalf("ResetForMatch did not fully reset seat: %+v", s)
	}
}

func TestActiveRequiresConnected(t *testing.T) {
	s := New("seat-1", "Ada")
	s.SetConnected(false, time.Now())
	if s.Active() {
		t.Fatalf("disconnected seat must not be active")
	}
}

func TestReconnectExpiredAfterGraceWindow(t *testing.T) {
	s := New("seat-1", "Ada")
	now := time.Now()
	s.SetConnected(false, now)

	if s.ReconnectExpired(now.Add(30*time.Second), time.Minute) {
		t.Fatalf("should still be within the grace window")
	}
	if !s.ReconnectExpired(now.Add(2*time.Minute), time.Minute) {
		t.Fatalf("should be expired past the grace window")
	}
}
