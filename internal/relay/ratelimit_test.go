package relay_test

import (
	"testing"
	"time"

	"github.com/edgard/pontebot/internal/relay"
)

func TestLimiterAllow(t *testing.T) {
	t.Parallel()

	const interval = 1200 * time.Millisecond
	base := time.Now()

	testCases := []struct {
		name    string
		offsets []time.Duration
		allowed []bool
	}{
		{
			name:    "first message always allowed",
			offsets: []time.Duration{0},
			allowed: []bool{true},
		},
		{
			name:    "burst below interval denied",
			offsets: []time.Duration{0, 500 * time.Millisecond},
			allowed: []bool{true, false},
		},
		{
			name:    "spaced messages allowed",
			offsets: []time.Duration{0, 2 * time.Second, 4 * time.Second},
			allowed: []bool{true, true, true},
		},
		{
			name:    "denied message does not reset the gate",
			offsets: []time.Duration{0, 1 * time.Second, 2 * time.Second},
			allowed: []bool{true, false, true},
		},
		{
			name:    "exactly at interval allowed",
			offsets: []time.Duration{0, interval},
			allowed: []bool{true, true},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			l := relay.NewLimiter(interval)
			for i, off := range tc.offsets {
				got := l.Allow(77, base.Add(off))
				if got != tc.allowed[i] {
					t.Fatalf("message %d: Allow = %v, want %v", i, got, tc.allowed[i])
				}
			}
		})
	}
}

func TestLimiterIndependentConversations(t *testing.T) {
	t.Parallel()

	l := relay.NewLimiter(1200 * time.Millisecond)
	now := time.Now()

	if !l.Allow(1, now) {
		t.Fatal("first message for chat 1 should be allowed")
	}
	if !l.Allow(2, now) {
		t.Fatal("chat 2 should not be affected by chat 1's gate")
	}
	if l.Allow(1, now.Add(100*time.Millisecond)) {
		t.Fatal("chat 1 burst should be denied")
	}
	if !l.Allow(3, now.Add(100*time.Millisecond)) {
		t.Fatal("chat 3 should be unaffected")
	}
}

func TestLimiterSeed(t *testing.T) {
	t.Parallel()

	l := relay.NewLimiter(1200 * time.Millisecond)
	now := time.Now()

	l.Seed(9, now)
	if l.Allow(9, now.Add(time.Second)) {
		t.Fatal("seeded timestamp should gate a burst after restart")
	}
	if !l.Allow(9, now.Add(2*time.Second)) {
		t.Fatal("spaced message after seed should be allowed")
	}

	// Seeding never moves the timestamp backwards.
	l.Seed(9, now)
	last, ok := l.LastSeen(9)
	if !ok {
		t.Fatal("expected a recorded timestamp")
	}
	if last.Before(now.Add(2 * time.Second)) {
		t.Fatalf("timestamp moved backwards to %v", last)
	}
}
