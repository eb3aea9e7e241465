package room

import (
	"time"

	"github.com/DoyleJ11/otrio-backend/internal/boardgame"
	"github.com/DoyleJ11/otrio-backend/internal/match"
	"github.com/DoyleJ11/otrio-backend/internal/player"
	"github.com/DoyleJ11/otrio-backend/internal/protocol"
	"github.com/DoyleJ11/otrio-backend/internal/replay"
)

// startMatch initializes a fresh Match over the current seats and arms
// the first turn timer. Called once capacity fills, and again after a
// unanimous replay vote — restart distinguishes which event the two
// callers broadcast, since a rematch and an initial start are different
// wire events even though they share every other step.
func (r *Room) startMatch(now time.Time, restart bool) {
	r.vote = nil
	r.m = match.New(match.Config{
		TurnTimeout:          r.cfg.TurnTimeout,
		ConsecutiveSkipLimit: r.cfg.ConsecutiveSkipLimit,
	}, r.seats, now, r.rng)
	r.armTurnTimer()
	r.resetTTL(now)

	msgType := protocol.TypeGameStarted
	if restart {
		msgType = protocol.TypeGameRestarted
	}
	r.broadcast([]protocol.Outbound{protocol.Msg(msgType, protocol.M{
		"roomId":    r.ID,
		"gameState": r.buildGameStateView(),
	})})
}

func (r *Room) armTurnTimer() {
	if r.m == nil || r.m.Status != match.StatusPlaying {
		return
	}
	r.turnTimer.Start(r.m.TurnEpoch, r.cfg.TurnTimeout, r.turnFireCh)
}

// afterMatchEvents translates a batch of match.Event into outbound wire
// messages, re-arms or disarms the turn timer as the match's epoch and
// status dictate, and opens a replay vote if the match just concluded.
func (r *Room) afterMatchEvents(evts []match.Event) {
	now := time.Now()
	var outbound []protocol.Outbound

	for _, ev := range evts {
		switch ev.Type {
		case match.EvtMoveApplied:
			outbound = append(outbound, protocol.Msg(protocol.TypeGameUpdated, protocol.M{
				"roomId":    r.ID,
				"gameState": r.buildGameStateView(),
			}))
		case match.EvtSkipped:
			outbound = append(outbound, protocol.Msg(protocol.TypeTurnSkipped, protocol.M{
				"roomId": r.ID,
				"seatId": ev.SeatID,
				"reason": ev.Reason,
			}))
		case match.EvtEliminated:
			outbound = append(outbound, protocol.Msg(protocol.TypePlayerEliminated, protocol.M{
				"roomId": r.ID,
				"seatId": ev.SeatID,
			}))
		case match.EvtTurnAdvanced:
			r.armTurnTimer()
		case match.EvtFinished:
			r.turnTimer.Cancel()
			outbound = append(outbound, protocol.Msg(protocol.TypeGameEnded, protocol.M{
				"roomId":    r.ID,
				"winnerId":  ev.WinnerID,
				"isDraw":    ev.IsDraw,
				"gameState": r.buildGameStateView(),
			}))
			r.openReplayVote(now)
		}
	}

	r.broadcast(outbound)
}

// openReplayVote starts a unanimity vote among the seats connected at
// the instant the match concluded.
func (r *Room) openReplayVote(now time.Time) {
	var voters []string
	for _, s := range r.seats {
		if s.Connected {
			voters = append(voters, s.ID)
		}
	}
	if len(voters) == 0 {
		return
	}
	r.vote = replay.New(voters, now, r.cfg.ReplayVoteWindow)
	r.voteEpoch++
	r.voteTimer.Start(r.voteEpoch, r.cfg.ReplayVoteWindow, r.voteFireCh)

	r.broadcast([]protocol.Outbound{protocol.Msg(protocol.TypeReplayVotingStarted, protocol.M{
		"roomId":     r.ID,
		"voterIds":   voters,
		"deadlineMs": r.vote.Deadline().UnixMilli(),
	})})
}

// afterVoteOutcome reacts to a replay vote concluding, whether by
// unanimous cast or by its window expiring.
func (r *Room) afterVoteOutcome(outcome replay.Outcome) {
	switch outcome {
	case replay.Accepted:
		r.voteTimer.Cancel()
		r.startMatch(time.Now(), true)
	case replay.Rejected:
		r.voteTimer.Cancel()
		r.broadcast([]protocol.Outbound{protocol.Msg(protocol.TypeReplayRejected, protocol.M{
			"roomId": r.ID,
		})})
		// isTerminal() picks this up on the next loop iteration and the
		// room is torn down.
	case replay.Expired:
		r.broadcast([]protocol.Outbound{protocol.Msg(protocol.TypeReplayTimeout, protocol.M{
			"roomId": r.ID,
		})})
	}
}

// checkSoleSurvivor concludes the match by forfeit if an explicit leave
// has left exactly one seat uneliminated. This is Room-level, not
// Match-level: Match only tracks elimination, never "left the room".
func (r *Room) checkSoleSurvivor(now time.Time) {
	if r.m == nil || r.m.Status != match.StatusPlaying {
		return
	}
	var uneliminated []*player.Seat
	for _, s := range r.seats {
		if !s.IsEliminated {
			uneliminated = append(uneliminated, s)
		}
	}
	if len(uneliminated) == 1 {
		r.turnTimer.Cancel()
		evts := r.m.FinishAsForfeit(uneliminated[0].ID, now)
		r.afterMatchEvents(evts)
	}
}

func (r *Room) removeSeat(seatID string) {
	for i, s := range r.seats {
		if s.ID == seatID {
			r.seats = append(r.seats[:i], r.seats[i+1:]...)
			return
		}
	}
}

// promoteNextHost hands the host flag to the longest-seated remaining
// player. It is the single promotion path, run by handleLeave when the
// host leaves a waiting room (explicitly or by disconnect); a host who
// leaves during a match keeps the flag.
func (r *Room) promoteNextHost() {
	if len(r.seats) == 0 {
		return
	}
	next := r.seats[0]
	next.SetHost(true)
	r.hostID = next.ID
	r.broadcast([]protocol.Outbound{protocol.Msg(protocol.TypeHostTransferred, protocol.M{
		"roomId": r.ID,
		"seatId": next.ID,
	})})
}

func playerView(s *player.Seat) protocol.PlayerView {
	return protocol.PlayerView{
		ID:           s.ID,
		Nickname:     s.Nickname,
		Color:        string(s.Color),
		Connected:    s.Connected,
		IsHost:       s.IsHost,
		IsEliminated: s.IsEliminated,
		SkipsInARow:  s.SkipsInARow,
		Inventory: protocol.InventoryView{
			P: s.Inventory.Count(boardgame.Small),
			M: s.Inventory.Count(boardgame.Mid),
			G: s.Inventory.Count(boardgame.Large),
		},
	}
}

func cellView(c boardgame.Cell) protocol.CellView {
	return protocol.CellView{
		P: colorPtr(c.P),
		M: colorPtr(c.M),
		G: colorPtr(c.G),
	}
}

func colorPtr(c boardgame.Color) *string {
	return protocol.StrPtr(string(c))
}

func (r *Room) buildGameStateView() protocol.GameStateView {
	view := protocol.GameStateView{
		Players: make([]protocol.PlayerView, len(r.seats)),
	}
	for i, s := range r.seats {
		view.Players[i] = playerView(s)
	}

	if r.m == nil {
		view.Status = string(protocol.RoomWaiting)
		return view
	}

	for i := 0; i < 9; i++ {
		view.Board[i] = cellView(r.m.Board[i])
	}
	view.CurrentPlayerID = protocol.StrPtr(r.m.CurrentSeatID)
	view.IsDraw = r.m.IsDraw
	view.WinnerID = protocol.StrPtr(r.m.WinnerID)
	if !r.m.StartedAt.IsZero() {
		ms := r.m.StartedAt.UnixMilli()
		view.StartedAt = &ms
	}
	if !r.m.FinishedAt.IsZero() {
		ms := r.m.FinishedAt.UnixMilli()
		view.FinishedAt = &ms
	}
	view.TurnTimeLeftSecs = int(r.turnTimer.Remaining() / time.Second)

	switch r.m.Status {
	case match.StatusPlaying:
		view.Status = string(protocol.RoomPlaying)
	case match.StatusFinished:
		view.Status = string(protocol.RoomFinished)
	}
	return view
}

func (r *Room) buildSummary() protocol.RoomSummary {
	status := protocol.RoomWaiting
	if r.m != nil {
		switch r.m.Status {
		case match.StatusPlaying:
			status = protocol.RoomPlaying
		case match.StatusFinished:
			status = protocol.RoomFinished
		}
	}
	return protocol.RoomSummary{
		ID:          r.ID,
		Name:        r.Name,
		PlayerCount: len(r.seats),
		Capacity:    r.Capacity,
		IsPrivate:   r.IsPrivate,
		Status:      string(status),
	}
}
