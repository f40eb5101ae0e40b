package workspace

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"workspaces/internal/model"
)

// Maintain is the maintenance sweep. For every workspace it evaluates the
// reminder schedule, destroys workspaces past their retention boundary, and
// re-applies read-only on expired ones. All notification-log mutations and
// row deletions share one transaction: a transport failure rolls everything
// back, while per-user recipient problems only skip that workspace's
// reminder. After the rows, one snapshot is taken per filesystem flagged
// for it.
func (s *Service) Maintain(ctx context.Context) error {
	tx, err := s.store.BeginSweep(ctx)
	if err != nil {
		return fmt.Errorf("beginning sweep: %w", err)
	}
	defer tx.Rollback()

	for _, ws := range tx.Workspaces() {
		p, ok := s.policies[ws.Filesystem]
		if !ok {
			// A row can outlive its config entry; one stale entry must not
			// wedge the whole sweep.
			s.logger.Error("workspace references unconfigured filesystem, skipping",
				"filesystem", ws.Filesystem, "owner", ws.Owner, "name", ws.Name)
			continue
		}

		if s.mailer != nil {
			if err := s.notifyIfDue(ctx, tx, ws, p); err != nil {
				var userErr *UserNotifyError
				if !errors.As(err, &userErr) {
					return err
				}
				s.logger.Warn("skipping reminder", "owner", ws.Owner, "name", ws.Name, "error", err)
			}
		}

		volume := VolumeName(p.Root, ws.Owner, ws.Name)
		now := s.clock.Now()
		switch {
		case now.After(ws.ExpiresAt.Add(p.Retention)):
			// Past retention: destroy first, delete the row only on success
			// so a failed destroy is retried on the next pass.
			if err := s.volumes.Destroy(ctx, volume); err != nil {
				s.logger.Warn("destroying volume failed, keeping workspace for next pass",
					"volume", volume, "error", err)
				continue
			}
			if err := tx.DeleteWorkspace(ws.ID); err != nil {
				return fmt.Errorf("deleting workspace %d: %w", ws.ID, err)
			}
			s.logger.Info("workspace destroyed", "filesystem", ws.Filesystem, "owner", ws.Owner, "name", ws.Name)
		case now.After(ws.ExpiresAt):
			// Within retention: keep the volume but make sure it is read-only.
			if err := s.volumes.SetProperty(ctx, volume, "readonly", "on"); err != nil {
				return &ExternalResourceError{Op: "set readonly=on", Volume: volume, Err: err}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing sweep: %w", err)
	}

	names := make([]string, 0, len(s.policies))
	for name := range s.policies {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		p := s.policies[name]
		if !p.Snapshot {
			continue
		}
		if err := s.volumes.Snapshot(ctx, p.Root); err != nil {
			return &ExternalResourceError{Op: "snapshot", Volume: p.Root, Err: err}
		}
		s.logger.Debug("filesystem snapshotted", "filesystem", name, "root", p.Root)
	}

	return nil
}

// notifyIfDue runs the scheduler for one workspace and, on fire, resolves
// the recipient, sends the reminder, and records the log entry in the sweep
// transaction.
func (s *Service) notifyIfDue(ctx context.Context, tx SweepTx, ws model.Workspace, p FilesystemPolicy) error {
	last, err := tx.LastNotification(ws.ID)
	if err != nil {
		return fmt.Errorf("reading notification log for workspace %d: %w", ws.ID, err)
	}

	now := s.clock.Now()
	rem := NextReminder(ws.ExpiresAt, p.NotifyOffsets, p.Retention, last, now)
	if rem == nil {
		return nil
	}

	to, err := s.recipients.Lookup(ws.Owner)
	if err != nil {
		return &UserNotifyError{User: ws.Owner, Err: err}
	}

	subject, body := reminderMessage(ws, rem, s.hostname)
	if err := s.mailer.Send(ctx, s.mailFrom, to, subject, body); err != nil {
		return &TransportError{Err: err}
	}
	if err := tx.RecordNotification(ws.ID, now); err != nil {
		return fmt.Errorf("recording notification for workspace %d: %w", ws.ID, err)
	}
	s.logger.Info("reminder sent", "owner", ws.Owner, "name", ws.Name, "days", rem.Days)
	return nil
}
