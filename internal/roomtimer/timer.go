// Package roomtimer implements a generation-tagged, single-shot
// countdown shared by the turn timer and the replay-vote window. A
// Room arms one instance for turns and a second, independent one for
// replay votes; the epoch tag lets a stale fire from a timer that was
// since restarted or canceled be detected and dropped.
package roomtimer

import (
	"sync"
	"time"
)

// FireMsg is delivered into the owning Room's mailbox when a Timer
// fires. Epoch lets the receiver discard a fire that raced a
// cancellation — a message stamped with an epoch that no longer matches
// the Room's current epoch for this timer is a no-op.
type FireMsg struct {
	Epoch int
}

// Timer is a cancellable, one-shot countdown. The zero value is ready
// to use.
type Timer struct {
	mu       sync.Mutex
	inner    *time.Timer
	deadline time.Time
}

// Start arms the timer to fire after d, tagged with epoch, delivering a
// non-blocking send on fire. Any previously armed countdown on this
// Timer is cancelled first. Returns the wall-clock deadline for
// Remaining/UI purposes.
func (t *Timer) Start(epoch int, d time.Duration, fire chan<- FireMsg) time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.inner != nil {
		t.inner.Stop()
	}
	t.deadline = time.Now().Add(d)
	t.inner = time.AfterFunc(d, func() {
		select {
		case fire <- FireMsg{Epoch: epoch}:
		default:
			// The Room's mailbox is a single reader that never blocks on
			// external I/O; if it's momentarily full the fire is simply
			// dropped. A dropped timeout is recovered because the next
			// periodic tick still observes Remaining() == 0.
		}
	})
	return t.deadline
}

// Cancel disarms the countdown, if any. Safe to call when nothing is
// armed.
func (t *Timer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.inner != nil {
		t.inner.Stop()
	}
}

// Remaining returns the time left until the last-armed deadline, floored
// at zero. It is meaningless if nothing has ever been Started.
func (t *Timer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	d := time.Until(t.deadline)
	if d < 0 {
		return 0
	}
	return d
}

// Deadline returns the wall-clock instant the last-armed countdown
// expires at.
func (t *Timer) Deadline() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.deadline
}
