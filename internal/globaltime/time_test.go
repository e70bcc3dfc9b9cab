package globaltime

import (
	"testing"
	"time"
)

// Not parallel: the clock is process-wide.
func TestMockClock(t *testing.T) {
	t.Cleanup(ResetTime)

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.FixedZone("IDT", 3*3600))
	SetMockTime(at)
	if !Now().Equal(at) {
		t.Fatalf("Now = %v, want %v", Now(), at)
	}
	if UTC().Location() != time.UTC {
		t.Fatalf("UTC location = %v", UTC().Location())
	}

	Advance(90 * time.Second)
	if got := Since(at); got != 90*time.Second {
		t.Fatalf("Since = %s, want 1m30s", got)
	}

	ResetTime()
	Advance(time.Hour)
	if time.Since(Now()) > time.Minute {
		t.Fatalf("wall clock expected after reset, got %v", Now())
	}
}
