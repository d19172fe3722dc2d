// Package response decides whether board activity counts as a human
// response to a reminder.
package response

import "time"

// Activity is one externally visible entry on a card (comment, status
// change note, etc.) as reported by the board.
type Activity struct {
	Author    string
	Body      string
	Timestamp time.Time
}

// Result reports whether a qualifying response exists and when it
// happened. RespondedAt is the earliest qualifying activity timestamp,
// so latency is measured at the true response time, not detection time.
type Result struct {
	Responded   bool
	RespondedAt time.Time
	Author      string
}

// Detect scans activity entries for a human response.
//
// An entry qualifies when its timestamp is strictly after since and it
// was not authored by systemIdentity: the engine's own reminder comments
// must never be mistaken for a response. Authorship is checked against
// the system identity only, not the assignee list.
func Detect(entries []Activity, since time.Time, systemIdentity string) Result {
	var best Result

	for _, e := range entries {
		if e.Author == systemIdentity {
			continue
		}
		if !e.Timestamp.After(since) {
			continue
		}
		if !best.Responded || e.Timestamp.Before(best.RespondedAt) {
			best = Result{
				Responded:   true,
				RespondedAt: e.Timestamp,
				Author:      e.Author,
			}
		}
	}

	return best
}
