// Package replay implements the post-match replay vote: a unanimity
// vote among the seats connected at the moment the vote opens.
package replay

import (
	"time"

	"github.com/DoyleJ11/otrio-backend/internal/apperr"
)

// Outcome classifies how a Vote concluded.
type Outcome string

const (
	Pending  Outcome = "pending"
	Accepted Outcome = "accepted"
	Rejected Outcome = "rejected"
	Expired  Outcome = "expired"
)

// Vote is parameterized by the voter set fixed at the instant it opens;
// seats connecting or disconnecting during the window do not alter it.
type Vote struct {
	voterSet map[string]struct{}
	votes    map[string]bool
	deadline time.Time
	outcome  Outcome
}

// New opens a vote over voterSeatIDs, closing after window elapses from
// now.
func New(voterSeatIDs []string, now time.Time, window time.Duration) *Vote {
	set := make(map[string]struct{}, len(voterSeatIDs))
	for _, id := range voterSeatIDs {
		set[id] = struct{}{}
	}
	return &Vote{
		voterSet: set,
		votes:    make(map[string]bool, len(voterSeatIDs)),
		deadline: now.Add(window),
		outcome:  Pending,
	}
}

// Deadline returns the wall-clock instant the window closes at.
func (v *Vote) Deadline() time.Time { return v.deadline }

// VoterIDs returns the fixed voter set, in no particular order.
func (v *Vote) VoterIDs() []string {
	ids := make([]string, 0, len(v.voterSet))
	for id := range v.voterSet {
		ids = append(ids, id)
	}
	return ids
}

// Votes returns a copy of the seatID -> vote map cast so far.
func (v *Vote) Votes() map[string]bool {
	out := make(map[string]bool, len(v.votes))
	for k, val := range v.votes {
		out[k] = val
	}
	return out
}

// Outcome returns the vote's current outcome. It is Pending until either
// every voter has cast (see Cast) or Expire is called.
func (v *Vote) Outcome() Outcome { return v.outcome }

// Cast records seatID's vote. Re-casting the same value is a silent
// no-op; changing a prior vote is allowed until the vote concludes. A
// seat outside the voter set gets apperr.Forbidden; a cast after the
// vote has already concluded gets apperr.Expired.
func (v *Vote) Cast(seatID string, vote bool, now time.Time) (Outcome, error) {
	if v.outcome != Pending {
		return v.outcome, apperr.New(apperr.Expired, "replay vote window has closed")
	}
	if _, ok := v.voterSet[seatID]; !ok {
		return v.outcome, apperr.New(apperr.Forbidden, "seat is not part of this vote")
	}
	if now.After(v.deadline) {
		v.outcome = Expired
		return v.outcome, apperr.New(apperr.Expired, "replay vote window has closed")
	}

	v.votes[seatID] = vote

	if len(v.votes) == len(v.voterSet) {
		v.outcome = v.tally()
	}
	return v.outcome, nil
}

// Expire is invoked by the Room's vote timer firing. It is a no-op if
// the vote already concluded (all votes in before the timer fired).
func (v *Vote) Expire() Outcome {
	if v.outcome == Pending {
		v.outcome = Expired
	}
	return v.outcome
}

func (v *Vote) tally() Outcome {
	for _, cast := range v.votes {
		if !cast {
			return Rejected
		}
	}
	return Accepted
}
