package replay

import (
	"testing"
	"time"

	"github.com/DoyleJ11/otrio-backend/internal/apperr"
)

func TestUnanimousVoteAccepts(t *testing.T) {
	now := time.Now()
	v := New([]string{"a", "b", "c"}, now, 30*time.Second)

	if outcome, err := v.Cast("a", true, now.Add(2*time.Second)); err != nil || outcome != Pending {
		t.Fatalf("unexpected: %v %v", outcome, err)
	}
	if outcome, err := v.Cast("b", true, now.Add(5*time.Second)); err != nil || outcome != Pending {
		t.Fatalf("unexpected: %v %v", outcome, err)
	}
	outcome, err := v.Cast("c", true, now.Add(10*time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if outcome != Accepted {
		t.Fatalf("want Accepted, got %v", outcome)
	}
}

func TestOneNoVoteRejects(t *testing.T) {
	now := time.Now()
	v := New([]string{"a", "b", "c"}, now, 30*time.Second)

	if _, err := v.Cast("a", false, now); err != nil {
		t.Fatal(err)
	}
	if _, err := v.Cast("b", true, now); err != nil {
		t.Fatal(err)
	}
	outcome, err := v.Cast("c", true, now)
	if err != nil {
		t.Fatal(err)
	}
	if outcome != Rejected {
		t.Fatalf("want Rejected as soon as all votes are in, got %v", outcome)
	}
}

func TestCastIdempotentSameValue(t *testing.T) {
	now := time.Now()
	v := New([]string{"a", "b"}, now, 30*time.Second)
	if _, err := v.Cast("a", true, now); err != nil {
		t.Fatal(err)
	}
	if _, err := v.Cast("a", true, now); err != nil {
		t.Fatalf("re-casting the same value should be a silent no-op, got %v", err)
	}
	if len(v.Votes()) != 1 {
		t.Fatalf("expected exactly one vote recorded, got %d", len(v.Votes()))
	}
}

func TestCastCanChangeUntilClose(t *testing.T) {
	now := time.Now()
	v := New([]string{"a", "b"}, now, 30*time.Second)
	if _, err := v.Cast("a", true, now); err != nil {
		t.Fatal(err)
	}
	if _, err := v.Cast("a", false, now); err != nil {
		t.Fatal(err)
	}
	if v.Votes()["a"] != false {
		t.Fatalf("expected changed vote to stick")
	}
}

func TestCastRejectsNonVoter(t *testing.T) {
	now := time.Now()
	v := New([]string{"a"}, now, 30*time.Second)
	_, err := v.Cast("intruder", true, now)
	if err == nil || apperr.CodeOf(err) != apperr.Forbidden {
		t.Fatalf("want Forbidden, got %v", err)
	}
}

func TestExpiryTreatedDistinctlyFromRejection(t *testing.T) {
	now := time.Now()
	v := New([]string{"a", "b"}, now, 30*time.Second)
	if _, err := v.Cast("a", true, now); err != nil {
		t.Fatal(err)
	}
	outcome := v.Expire()
	if outcome != Expired {
		t.Fatalf("want Expired, got %v", outcome)
	}

	// A cast after expiry is rejected with Expired, not silently applied.
	_, err := v.Cast("b", true, now)
	if err == nil || apperr.CodeOf(err) != apperr.Expired {
		t.Fatalf("want Expired error on cast after window closed, got %v", err)
	}
}

func TestCastAfterDeadlinePassedMarksExpired(t *testing.T) {
	now := time.Now()
	v := New([]string{"a", "b"}, now, 10*time.Second)
	_, err := v.Cast("a", true, now.Add(11*time.Second))
	if err == nil || apperr.CodeOf(err) != apperr.Expired {
		t.Fatalf("want Expired, got %v", err)
	}
	if v.Outcome() != Expired {
		t.Fatalf("want vote outcome to have flipped to Expired, got %v", v.Outcome())
	}
}
