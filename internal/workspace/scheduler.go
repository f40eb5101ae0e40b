package workspace

import "time"

// ReminderKind distinguishes the two reminder messages.
type ReminderKind int

const (
	// ReminderExpiry warns that the workspace will expire in Days days.
	ReminderExpiry ReminderKind = iota
	// ReminderDeletion warns that the expired workspace will be destroyed
	// in Days days.
	ReminderDeletion
)

// Reminder is the decision to notify a workspace owner.
type Reminder struct {
	Kind ReminderKind
	// Days until expiry (ReminderExpiry) or until permanent deletion
	// (ReminderDeletion), truncated.
	Days int
	// Deadline is the instant the crossed notification threshold passed.
	Deadline time.Time
}

// NextReminder decides whether a workspace owner is due for a reminder.
//
// offsets must be sorted ascending. Each offset marks a checkpoint at
// expiration−offset; a larger offset is an earlier checkpoint. The smallest
// offset strictly greater than the remaining lifetime is the most recently
// crossed checkpoint. A reminder fires only if the latest log entry (last,
// nil when the log is empty) predates that crossing; otherwise the owner has
// already been notified at or after it.
//
// An evaluation at an instant exactly equal to a checkpoint does not fire;
// the threshold counts as crossed only strictly after it passes.
func NextReminder(expiresAt time.Time, offsets []time.Duration, retention time.Duration, last *time.Time, now time.Time) *Reminder {
	remaining := expiresAt.Sub(now)

	var offset time.Duration
	crossed := false
	for _, o := range offsets {
		if o > remaining {
			offset = o
			crossed = true
			break
		}
	}
	if !crossed {
		return nil
	}

	deadline := expiresAt.Add(-offset)
	if last != nil && !last.Before(deadline) {
		return nil
	}

	if remaining >= 0 {
		return &Reminder{Kind: ReminderExpiry, Days: days(remaining), Deadline: deadline}
	}
	return &Reminder{Kind: ReminderDeletion, Days: days(retention + remaining), Deadline: deadline}
}

func days(d time.Duration) int {
	return int(d / (24 * time.Hour))
}
