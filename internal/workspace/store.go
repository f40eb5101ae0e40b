package workspace

import (
	"context"
	"time"

	"workspaces/internal/model"
)

// Store provides atomic access to workspace rows and their notification log.
// Each lifecycle method runs in its own transaction; the uniqueness of the
// (filesystem, owner, name) triple and the MIN/MAX expiration rules are
// enforced here so partial failures never leave the rules violated.
type Store interface {
	// CreateWorkspace inserts ws and seeds its notification log with an entry
	// at now, so a freshly created workspace is not flagged as overdue by the
	// very next sweep. Sets ws.ID on success. Returns ErrWorkspaceExists on a
	// uniqueness conflict.
	CreateWorkspace(ctx context.Context, ws *model.Workspace, now time.Time) error

	// FindWorkspace returns the workspace matching the triple, or nil if none.
	FindWorkspace(ctx context.Context, filesystem, owner, name string) (*model.Workspace, error)

	// ListWorkspaces returns all workspaces in stable order.
	ListWorkspaces(ctx context.Context) ([]model.Workspace, error)

	// ExpireWorkspace lowers the expiration to the minimum of its current
	// value and candidate, never raising it, and appends a silence entry at
	// now so the owner is not immediately re-notified. Returns the updated
	// row, or ErrWorkspaceNotFound.
	ExpireWorkspace(ctx context.Context, filesystem, owner, name string, candidate, now time.Time) (*model.Workspace, error)

	// ExtendWorkspace raises the expiration to the maximum of its current
	// value and candidate, never lowering it, and deletes notification
	// entries timestamped after now (silence artifacts of a prior expire).
	// When acknowledge is true a fresh entry at now is appended. Returns the
	// updated row, or ErrWorkspaceNotFound.
	ExtendWorkspace(ctx context.Context, filesystem, owner, name string, candidate, now time.Time, acknowledge bool) (*model.Workspace, error)

	// RenameWorkspace changes the workspace name from src to dest. Returns
	// ErrWorkspaceExists when dest is taken (row untouched), or
	// ErrWorkspaceNotFound when src does not exist.
	RenameWorkspace(ctx context.Context, filesystem, owner, src, dest string) error

	// Notifications returns a workspace's log entries, oldest first.
	Notifications(ctx context.Context, workspaceID int64) ([]model.NotificationLogEntry, error)

	// BeginSweep opens the single transaction surrounding all log-table
	// mutations of one maintenance pass.
	BeginSweep(ctx context.Context) (SweepTx, error)

	// Close closes the underlying database.
	Close() error
}

// SweepTx is the transaction handle of one maintenance pass. Workspaces
// returns the rows snapshotted at BeginSweep; log mutations and row
// deletions accumulate until Commit, and are discarded by Rollback.
type SweepTx interface {
	Workspaces() []model.Workspace
	LastNotification(workspaceID int64) (*time.Time, error)
	RecordNotification(workspaceID int64, at time.Time) error
	// DeleteWorkspace removes the row; the cascade removes its log entries.
	DeleteWorkspace(workspaceID int64) error
	Commit() error
	Rollback() error
}
