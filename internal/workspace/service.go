package workspace

import (
	"context"
	"fmt"
	"time"

	"workspaces/internal/model"
)

// Service is the lifecycle engine. Every operation follows the same shape:
// authorization and policy checks, one store transaction, then external
// side effects. The store commit always happens before any volume or mail
// call, so a failure afterwards leaves the volume state lagging the
// database, to be reconciled by a later sweep or a retried operation.
type Service struct {
	store      Store
	volumes    VolumeManager
	mailer     Mailer // nil when SMTP is not configured
	recipients RecipientResolver
	policies   map[string]FilesystemPolicy
	mailFrom   string
	hostname   string
	logger     Logger
	clock      Clock
}

// NewService creates a Service with the provided dependencies. mailer may be
// nil, in which case all notification sends are skipped.
func NewService(store Store, volumes VolumeManager, mailer Mailer, recipients RecipientResolver,
	policies map[string]FilesystemPolicy, mailFrom, hostname string, logger Logger, clock Clock) *Service {
	return &Service{
		store:      store,
		volumes:    volumes,
		mailer:     mailer,
		recipients: recipients,
		policies:   policies,
		mailFrom:   mailFrom,
		hostname:   hostname,
		logger:     logger,
		clock:      clock,
	}
}

func (s *Service) policy(filesystem string) (FilesystemPolicy, error) {
	p, ok := s.policies[filesystem]
	if !ok {
		return FilesystemPolicy{}, fmt.Errorf("%w: %s", ErrUnknownFilesystem, filesystem)
	}
	return p, nil
}

func authorize(caller model.Caller, owner string) error {
	if caller.Name != owner && !caller.Privileged {
		return ErrNotAuthorized
	}
	return nil
}

// checkPolicy enforces the disabled flag and the duration ceiling for
// create and extend. Privileged callers bypass both.
func checkPolicy(caller model.Caller, p FilesystemPolicy, duration time.Duration) error {
	if caller.Privileged {
		return nil
	}
	if p.Disabled {
		return ErrFilesystemDisabled
	}
	if duration > p.MaxDuration {
		return fmt.Errorf("%w (%d days)", ErrDurationTooLong, int(p.MaxDuration/(24*time.Hour)))
	}
	return nil
}

// Create makes a new workspace expiring after duration, provisions its
// volume, restricts the mountpoint to the owner, and sends a best-effort
// "created" notification. Returns the volume mountpoint.
func (s *Service) Create(ctx context.Context, caller model.Caller, filesystem, owner, name string, duration time.Duration) (string, error) {
	p, err := s.policy(filesystem)
	if err != nil {
		return "", err
	}
	if err := authorize(caller, owner); err != nil {
		return "", err
	}
	if err := checkPolicy(caller, p, duration); err != nil {
		return "", err
	}

	now := s.clock.Now()
	ws := &model.Workspace{
		Filesystem: filesystem,
		Owner:      owner,
		Name:       name,
		ExpiresAt:  now.Add(duration),
	}
	if err := s.store.CreateWorkspace(ctx, ws, now); err != nil {
		return "", err
	}
	s.logger.Info("workspace created", "filesystem", filesystem, "owner", owner, "name", name, "expires_at", ws.ExpiresAt)

	volume := VolumeName(p.Root, owner, name)
	if err := s.volumes.Create(ctx, volume); err != nil {
		return "", &ExternalResourceError{Op: "create", Volume: volume, Err: err}
	}
	if err := s.volumes.RestrictToOwner(ctx, volume, owner); err != nil {
		return "", &ExternalResourceError{Op: "restrict", Volume: volume, Err: err}
	}
	mountpoint, err := s.volumes.GetProperty(ctx, volume, "mountpoint")
	if err != nil {
		return "", &ExternalResourceError{Op: "get mountpoint", Volume: volume, Err: err}
	}

	subject, body := createdMessage(ws, mountpoint, s.hostname, days(duration))
	s.sendBestEffort(ctx, owner, subject, body)

	return mountpoint, nil
}

// Extend pushes the expiration to now+duration unless the workspace already
// lives longer, prunes silence entries a prior expire may have left in the
// future, and re-enables writes on the volume.
func (s *Service) Extend(ctx context.Context, caller model.Caller, filesystem, owner, name string, duration time.Duration) (*model.Workspace, error) {
	p, err := s.policy(filesystem)
	if err != nil {
		return nil, err
	}
	if err := authorize(caller, owner); err != nil {
		return nil, err
	}
	if err := checkPolicy(caller, p, duration); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	// An owner extending their own workspace has seen the reminder; record
	// the acknowledgement so the crossed threshold does not fire again.
	acknowledge := caller.Name == owner && !caller.Privileged
	ws, err := s.store.ExtendWorkspace(ctx, filesystem, owner, name, now.Add(duration), now, acknowledge)
	if err != nil {
		return nil, err
	}
	s.logger.Info("workspace extended", "filesystem", filesystem, "owner", owner, "name", name, "expires_at", ws.ExpiresAt)

	volume := VolumeName(p.Root, owner, name)
	if err := s.volumes.SetProperty(ctx, volume, "readonly", "off"); err != nil {
		return ws, &ExternalResourceError{Op: "set readonly=off", Volume: volume, Err: err}
	}

	subject, body := extendedMessage(ws, s.hostname)
	s.sendBestEffort(ctx, owner, subject, body)

	return ws, nil
}

// Expire lowers the expiration to now, or to now−retention when immediate is
// set so the next sweep reclaims the workspace, and marks the volume
// read-only. The expiration is never raised.
func (s *Service) Expire(ctx context.Context, caller model.Caller, filesystem, owner, name string, immediate bool) (*model.Workspace, error) {
	p, err := s.policy(filesystem)
	if err != nil {
		return nil, err
	}
	if err := authorize(caller, owner); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	candidate := now
	if immediate {
		candidate = now.Add(-p.Retention)
	}
	ws, err := s.store.ExpireWorkspace(ctx, filesystem, owner, name, candidate, now)
	if err != nil {
		return nil, err
	}
	s.logger.Info("workspace expired", "filesystem", filesystem, "owner", owner, "name", name, "expires_at", ws.ExpiresAt)

	volume := VolumeName(p.Root, owner, name)
	if err := s.volumes.SetProperty(ctx, volume, "readonly", "on"); err != nil {
		return ws, &ExternalResourceError{Op: "set readonly=on", Volume: volume, Err: err}
	}
	return ws, nil
}

// Rename changes a workspace's name and renames its volume to match. If the
// volume rename fails after the row has committed there is no compensating
// action; the operator reconciles by renaming the volume by hand.
func (s *Service) Rename(ctx context.Context, caller model.Caller, filesystem, owner, src, dest string) error {
	p, err := s.policy(filesystem)
	if err != nil {
		return err
	}
	if err := authorize(caller, owner); err != nil {
		return err
	}
	if p.Disabled && !caller.Privileged {
		return ErrFilesystemDisabled
	}

	if err := s.store.RenameWorkspace(ctx, filesystem, owner, src, dest); err != nil {
		return err
	}
	s.logger.Info("workspace renamed", "filesystem", filesystem, "owner", owner, "src", src, "dest", dest)

	oldVolume := VolumeName(p.Root, owner, src)
	newVolume := VolumeName(p.Root, owner, dest)
	if err := s.volumes.Rename(ctx, oldVolume, newVolume); err != nil {
		return &ExternalResourceError{Op: "rename", Volume: oldVolume, Err: err}
	}
	return nil
}

// NotifyTest sends a one-off test mail, to an explicit address or to the
// user's configured one. Privileged callers only.
func (s *Service) NotifyTest(ctx context.Context, caller model.Caller, username, toOverride string) error {
	if !caller.Privileged {
		return ErrNotAuthorized
	}
	if s.mailer == nil {
		return ErrMailNotConfigured
	}

	to := toOverride
	if to == "" {
		addr, err := s.recipients.Lookup(username)
		if err != nil {
			return &UserNotifyError{User: username, Err: err}
		}
		to = addr
	}

	subject, body := testMessage(s.hostname)
	if err := s.mailer.Send(ctx, s.mailFrom, to, subject, body); err != nil {
		return &TransportError{Err: err}
	}
	return nil
}

// sendBestEffort mails the owner if SMTP is configured; failures are logged
// and never fail the surrounding operation.
func (s *Service) sendBestEffort(ctx context.Context, owner, subject, body string) {
	if s.mailer == nil {
		return
	}
	to, err := s.recipients.Lookup(owner)
	if err != nil {
		s.logger.Warn("skipping notification", "user", owner, "error", err)
		return
	}
	if err := s.mailer.Send(ctx, s.mailFrom, to, subject, body); err != nil {
		s.logger.Warn("sending notification failed", "user", owner, "error", err)
	}
}
