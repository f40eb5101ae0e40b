package model

import "time"

// Workspace is a named, owned, time-bounded storage allocation backed by a
// ZFS volume. A workspace is uniquely identified by its
// (filesystem, owner, name) triple; ID is the stable database identity.
type Workspace struct {
	ID         int64
	Filesystem string // Config key of the filesystem the workspace lives in
	Owner      string // Login name of the owning user
	Name       string
	ExpiresAt  time.Time // Instant after which the workspace is soft-reclaimed
}

// NotificationLogEntry records that the owner of a workspace was notified
// (or should be treated as notified) at a point in time. Entries are
// append-only; only the most recent one per workspace matters for
// reminder scheduling.
type NotificationLogEntry struct {
	WorkspaceID int64
	Timestamp   time.Time
}

// Caller identifies who is performing an operation. Privileged callers
// (root) may act on any workspace and bypass filesystem policy.
type Caller struct {
	Name       string
	Privileged bool
}
