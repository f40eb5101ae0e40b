package workspace

import (
	"errors"
	"fmt"
)

// Sentinel errors for the user-facing failure kinds. The CLI maps each to a
// distinct exit code; the core never inspects exit codes.
var (
	// ErrNotAuthorized: the caller is neither the workspace owner nor privileged.
	ErrNotAuthorized = errors.New("you are not allowed to execute this operation")

	// ErrFilesystemDisabled: the filesystem does not accept creation or extension.
	ErrFilesystemDisabled = errors.New("filesystem is disabled")

	// ErrDurationTooLong: the requested duration exceeds the filesystem maximum.
	ErrDurationTooLong = errors.New("duration exceeds the filesystem maximum")

	// ErrWorkspaceNotFound: no workspace matches the (filesystem, owner, name) triple.
	ErrWorkspaceNotFound = errors.New("workspace not found")

	// ErrWorkspaceExists: a workspace with the same triple already exists.
	ErrWorkspaceExists = errors.New("workspace already exists")

	// ErrUnknownFilesystem: the named filesystem has no configuration entry.
	ErrUnknownFilesystem = errors.New("unknown filesystem")

	// ErrMailNotConfigured: an operation requiring SMTP ran without an [smtp] block.
	ErrMailNotConfigured = errors.New("smtp is not configured")
)

// ExternalResourceError reports a failed volume-manager call. The store
// mutation it followed has already committed; the volume state lags the
// database until a later sweep or retry reconciles it.
type ExternalResourceError struct {
	Op     string // volume operation, e.g. "create", "rename"
	Volume string
	Err    error
}

func (e *ExternalResourceError) Error() string {
	return fmt.Sprintf("volume %s %s: %v", e.Op, e.Volume, e.Err)
}

func (e *ExternalResourceError) Unwrap() error { return e.Err }

// UserNotifyError reports a per-user failure while resolving who to notify
// (unknown account, unreadable or invalid contact file). It is recoverable:
// the sweep logs it and moves on to the next workspace.
type UserNotifyError struct {
	User string
	Err  error
}

func (e *UserNotifyError) Error() string {
	return fmt.Sprintf("resolving notification recipient for %s: %v", e.User, e.Err)
}

func (e *UserNotifyError) Unwrap() error { return e.Err }

// TransportError reports a mail-transport failure. It is fatal to the sweep:
// the in-progress notification-log insertions are rolled back so the next
// pass re-evaluates every deadline.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("sending mail: %v", e.Err) }

func (e *TransportError) Unwrap() error { return e.Err }
