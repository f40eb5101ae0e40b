package workspace_test

import (
	"testing"
	"time"

	"workspaces/internal/workspace"
)

const day = 24 * time.Hour

func TestNextReminder(t *testing.T) {
	offsets := []time.Duration{1 * day, 7 * day}
	retention := 14 * day
	expires := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("no threshold crossed yet", func(t *testing.T) {
		now := expires.Add(-10 * day)
		if rem := workspace.NextReminder(expires, offsets, retention, nil, now); rem != nil {
			t.Errorf("NextReminder() = %+v, want nil", rem)
		}
	})

	t.Run("exactly at a threshold does not fire", func(t *testing.T) {
		now := expires.Add(-7 * day)
		if rem := workspace.NextReminder(expires, offsets, retention, nil, now); rem != nil {
			t.Errorf("NextReminder() = %+v, want nil", rem)
		}
	})

	t.Run("fires after the seven day threshold", func(t *testing.T) {
		now := expires.Add(-5 * day)
		rem := workspace.NextReminder(expires, offsets, retention, nil, now)
		if rem == nil {
			t.Fatal("NextReminder() = nil, want a reminder")
		}
		if rem.Kind != workspace.ReminderExpiry {
			t.Errorf("Kind = %v, want ReminderExpiry", rem.Kind)
		}
		if rem.Days != 5 {
			t.Errorf("Days = %d, want 5", rem.Days)
		}
		if want := expires.Add(-7 * day); !rem.Deadline.Equal(want) {
			t.Errorf("Deadline = %v, want %v", rem.Deadline, want)
		}
	})

	t.Run("suppressed once notified for the crossed threshold", func(t *testing.T) {
		now := expires.Add(-5 * day)
		last := expires.Add(-6 * day)
		if rem := workspace.NextReminder(expires, offsets, retention, &last, now); rem != nil {
			t.Errorf("NextReminder() = %+v, want nil", rem)
		}
	})

	t.Run("entry at the deadline counts as notified", func(t *testing.T) {
		now := expires.Add(-5 * day)
		last := expires.Add(-7 * day)
		if rem := workspace.NextReminder(expires, offsets, retention, &last, now); rem != nil {
			t.Errorf("NextReminder() = %+v, want nil", rem)
		}
	})

	t.Run("earlier entry does not cover a later threshold", func(t *testing.T) {
		now := expires.Add(-12 * time.Hour)
		last := expires.Add(-6 * day)
		rem := workspace.NextReminder(expires, offsets, retention, &last, now)
		if rem == nil {
			t.Fatal("NextReminder() = nil, want a reminder")
		}
		if rem.Days != 0 {
			t.Errorf("Days = %d, want 0", rem.Days)
		}
		if want := expires.Add(-1 * day); !rem.Deadline.Equal(want) {
			t.Errorf("Deadline = %v, want %v", rem.Deadline, want)
		}
	})

	t.Run("negative offset warns about pending deletion", func(t *testing.T) {
		withPostExpiry := []time.Duration{-7 * day, 1 * day, 7 * day}
		now := expires.Add(8 * day)
		last := expires.Add(-12 * time.Hour)
		rem := workspace.NextReminder(expires, withPostExpiry, retention, &last, now)
		if rem == nil {
			t.Fatal("NextReminder() = nil, want a reminder")
		}
		if rem.Kind != workspace.ReminderDeletion {
			t.Errorf("Kind = %v, want ReminderDeletion", rem.Kind)
		}
		if rem.Days != 6 {
			t.Errorf("Days = %d, want 6", rem.Days)
		}
	})

	t.Run("no offsets never fires", func(t *testing.T) {
		now := expires.Add(-1 * time.Hour)
		if rem := workspace.NextReminder(expires, nil, retention, nil, now); rem != nil {
			t.Errorf("NextReminder() = %+v, want nil", rem)
		}
	})
}
