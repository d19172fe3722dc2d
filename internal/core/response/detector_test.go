package response

import (
	"testing"
	"time"
)

const botIdentity = "cardwatch-bot"

var base = time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC)

func TestDetect_IgnoresSystemAuthoredActivity(t *testing.T) {
	entries := []Activity{
		{Author: botIdentity, Body: "Reminder: please respond", Timestamp: base.Add(time.Hour)},
		{Author: botIdentity, Body: "Reminder: please respond", Timestamp: base.Add(2 * time.Hour)},
	}

	got := Detect(entries, base, botIdentity)
	if got.Responded {
		t.Fatalf("Detect() = responded, want no response for system-only activity")
	}
}

func TestDetect_StrictlyAfterSince(t *testing.T) {
	entries := []Activity{
		{Author: "alice", Body: "old comment", Timestamp: base},
	}

	t.Run("activity at exactly since does not qualify", func(t *testing.T) {
		got := Detect(entries, base, botIdentity)
		if got.Responded {
			t.Errorf("Detect() = responded, want not responded for timestamp == since")
		}
	})

	t.Run("activity after since qualifies", func(t *testing.T) {
		got := Detect(entries, base.Add(-time.Second), botIdentity)
		if !got.Responded {
			t.Fatalf("Detect() = not responded, want responded")
		}
		if got.Author != "alice" {
			t.Errorf("Author = %q, want %q", got.Author, "alice")
		}
	})
}

func TestDetect_ReturnsEarliestQualifying(t *testing.T) {
	entries := []Activity{
		{Author: "bob", Timestamp: base.Add(3 * time.Hour)},
		{Author: botIdentity, Timestamp: base.Add(time.Hour)},
		{Author: "alice", Timestamp: base.Add(2 * time.Hour)},
	}

	got := Detect(entries, base, botIdentity)
	if !got.Responded {
		t.Fatalf("Detect() = not responded, want responded")
	}
	if !got.RespondedAt.Equal(base.Add(2 * time.Hour)) {
		t.Errorf("RespondedAt = %v, want %v (earliest human entry)", got.RespondedAt, base.Add(2*time.Hour))
	}
	if got.Author != "alice" {
		t.Errorf("Author = %q, want %q", got.Author, "alice")
	}
}

func TestDetect_AnyHumanAuthorCounts(t *testing.T) {
	// Authorship is checked against the system identity only; a commenter
	// who is not an assigned recipient still closes the cycle.
	entries := []Activity{
		{Author: "drive-by-commenter", Timestamp: base.Add(time.Minute)},
	}

	got := Detect(entries, base, botIdentity)
	if !got.Responded {
		t.Errorf("Detect() = not responded, want responded for non-system author")
	}
}

func TestDetect_EmptyHistory(t *testing.T) {
	got := Detect(nil, base, botIdentity)
	if got.Responded {
		t.Errorf("Detect() = responded, want not responded for empty history")
	}
}
