package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"workspaces/internal/model"
	"workspaces/internal/workspace"
)

// SQLiteStore implements the workspace.Store interface using SQLite.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens a SQLite workspace store.
// path can be a file path or ":memory:" for an in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// NewSQLiteStoreFromDB wraps an existing database connection. The caller is
// responsible for ensuring the connection is properly configured.
func NewSQLiteStoreFromDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// OpenConnection opens and configures a SQLite connection with appropriate
// PRAGMAs. Exported for the migrator and tests.
func OpenConnection(path string) (*sql.DB, error) {
	// Foreign keys drive the notification-log cascade; SQLite defaults to
	// OFF. Set via the DSN so every pooled connection gets the pragmas.
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every pooled connection to ":memory:" would get its own database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	return db, nil
}

// DB exposes the underlying connection for the migrator.
func (s *SQLiteStore) DB() *sql.DB { return s.db }

// isUniqueViolation reports whether err is a SQLite uniqueness conflict.
// All constraint translation happens here; callers only ever see the
// domain error.
func isUniqueViolation(err error) bool {
	var serr sqlite3.Error
	if !errors.As(err, &serr) {
		return false
	}
	return serr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		serr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

func (s *SQLiteStore) CreateWorkspace(ctx context.Context, ws *model.Workspace, now time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO workspaces(filesystem, owner, name, expiration_time) VALUES(?, ?, ?, ?)`,
		ws.Filesystem, ws.Owner, ws.Name, ws.ExpiresAt.UTC())
	if isUniqueViolation(err) {
		return workspace.ErrWorkspaceExists
	}
	if err != nil {
		return fmt.Errorf("inserting workspace: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading workspace id: %w", err)
	}

	// Seed the log so the very next sweep does not flag the fresh workspace
	// as overdue.
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO notifications(workspace_id, timestamp) VALUES(?, ?)`,
		id, now.UTC()); err != nil {
		return fmt.Errorf("seeding notification log: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	ws.ID = id
	return nil
}

func (s *SQLiteStore) FindWorkspace(ctx context.Context, filesystem, owner, name string) (*model.Workspace, error) {
	ws, err := scanWorkspace(s.db.QueryRowContext(ctx,
		`SELECT id, filesystem, owner, name, expiration_time FROM workspaces
		 WHERE filesystem = ? AND owner = ? AND name = ?`,
		filesystem, owner, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, fmt.Errorf("finding workspace: %w", err)
	}
	return ws, nil
}

func (s *SQLiteStore) ListWorkspaces(ctx context.Context) ([]model.Workspace, error) {
	return listWorkspaces(ctx, s.db)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func listWorkspaces(ctx context.Context, q querier) ([]model.Workspace, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, filesystem, owner, name, expiration_time FROM workspaces
		 ORDER BY filesystem, owner, name`)
	if err != nil {
		return nil, fmt.Errorf("listing workspaces: %w", err)
	}
	defer rows.Close()

	var result []model.Workspace
	for rows.Next() {
		var ws model.Workspace
		if err := rows.Scan(&ws.ID, &ws.Filesystem, &ws.Owner, &ws.Name, &ws.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scanning workspace: %w", err)
		}
		result = append(result, ws)
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkspace(row rowScanner) (*model.Workspace, error) {
	var ws model.Workspace
	if err := row.Scan(&ws.ID, &ws.Filesystem, &ws.Owner, &ws.Name, &ws.ExpiresAt); err != nil {
		return nil, err
	}
	return &ws, nil
}

func (s *SQLiteStore) ExpireWorkspace(ctx context.Context, filesystem, owner, name string, candidate, now time.Time) (*model.Workspace, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	ws, err := lockWorkspace(ctx, tx, filesystem, owner, name)
	if err != nil {
		return nil, err
	}

	// Expiration only ever moves backwards here.
	if candidate.Before(ws.ExpiresAt) {
		ws.ExpiresAt = candidate.UTC()
		if _, err := tx.ExecContext(ctx,
			`UPDATE workspaces SET expiration_time = ? WHERE id = ?`,
			ws.ExpiresAt, ws.ID); err != nil {
			return nil, fmt.Errorf("updating expiration: %w", err)
		}
	}

	// Silence entry: the owner chose this, no reminder needed right away.
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO notifications(workspace_id, timestamp) VALUES(?, ?)`,
		ws.ID, now.UTC()); err != nil {
		return nil, fmt.Errorf("inserting silence entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return ws, nil
}

func (s *SQLiteStore) ExtendWorkspace(ctx context.Context, filesystem, owner, name string, candidate, now time.Time, acknowledge bool) (*model.Workspace, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	ws, err := lockWorkspace(ctx, tx, filesystem, owner, name)
	if err != nil {
		return nil, err
	}

	// Expiration only ever moves forwards here.
	if candidate.After(ws.ExpiresAt) {
		ws.ExpiresAt = candidate.UTC()
		if _, err := tx.ExecContext(ctx,
			`UPDATE workspaces SET expiration_time = ? WHERE id = ?`,
			ws.ExpiresAt, ws.ID); err != nil {
			return nil, fmt.Errorf("updating expiration: %w", err)
		}
	}

	// A prior immediate expire leaves a silence entry in the future; it must
	// not keep suppressing legitimate reminders now that the workspace lives on.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM notifications WHERE workspace_id = ? AND timestamp > ?`,
		ws.ID, now.UTC()); err != nil {
		return nil, fmt.Errorf("pruning future notification entries: %w", err)
	}

	if acknowledge {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO notifications(workspace_id, timestamp) VALUES(?, ?)`,
			ws.ID, now.UTC()); err != nil {
			return nil, fmt.Errorf("inserting acknowledgement: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return ws, nil
}

func lockWorkspace(ctx context.Context, tx *sql.Tx, filesystem, owner, name string) (*model.Workspace, error) {
	ws, err := scanWorkspace(tx.QueryRowContext(ctx,
		`SELECT id, filesystem, owner, name, expiration_time FROM workspaces
		 WHERE filesystem = ? AND owner = ? AND name = ?`,
		filesystem, owner, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, workspace.ErrWorkspaceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding workspace: %w", err)
	}
	return ws, nil
}

func (s *SQLiteStore) RenameWorkspace(ctx context.Context, filesystem, owner, src, dest string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE workspaces SET name = ? WHERE filesystem = ? AND owner = ? AND name = ?`,
		dest, filesystem, owner, src)
	if isUniqueViolation(err) {
		return workspace.ErrWorkspaceExists
	}
	if err != nil {
		return fmt.Errorf("renaming workspace: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rename result: %w", err)
	}
	if affected == 0 {
		return workspace.ErrWorkspaceNotFound
	}
	return nil
}

func (s *SQLiteStore) Notifications(ctx context.Context, workspaceID int64) ([]model.NotificationLogEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT workspace_id, timestamp FROM notifications
		 WHERE workspace_id = ? ORDER BY timestamp`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	defer rows.Close()

	var result []model.NotificationLogEntry
	for rows.Next() {
		var e model.NotificationLogEntry
		if err := rows.Scan(&e.WorkspaceID, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning notification: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// BeginSweep opens the transaction surrounding one maintenance pass and
// snapshots the workspace rows it will evaluate.
func (s *SQLiteStore) BeginSweep(ctx context.Context) (workspace.SweepTx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting sweep transaction: %w", err)
	}

	rows, err := listWorkspaces(ctx, tx)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	return &sweepTx{ctx: ctx, tx: tx, rows: rows}, nil
}

type sweepTx struct {
	ctx  context.Context
	tx   *sql.Tx
	rows []model.Workspace
	done bool
}

func (t *sweepTx) Workspaces() []model.Workspace { return t.rows }

func (t *sweepTx) LastNotification(workspaceID int64) (*time.Time, error) {
	var ts time.Time
	err := t.tx.QueryRowContext(t.ctx,
		`SELECT timestamp FROM notifications
		 WHERE workspace_id = ? ORDER BY timestamp DESC LIMIT 1`,
		workspaceID).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // never notified
	}
	if err != nil {
		return nil, fmt.Errorf("reading last notification: %w", err)
	}
	return &ts, nil
}

func (t *sweepTx) RecordNotification(workspaceID int64, at time.Time) error {
	if _, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO notifications(workspace_id, timestamp) VALUES(?, ?)`,
		workspaceID, at.UTC()); err != nil {
		return fmt.Errorf("recording notification: %w", err)
	}
	return nil
}

func (t *sweepTx) DeleteWorkspace(workspaceID int64) error {
	if _, err := t.tx.ExecContext(t.ctx,
		`DELETE FROM workspaces WHERE id = ?`, workspaceID); err != nil {
		return fmt.Errorf("deleting workspace: %w", err)
	}
	return nil
}

func (t *sweepTx) Commit() error {
	t.done = true
	return t.tx.Commit()
}

func (t *sweepTx) Rollback() error {
	if t.done {
		return nil
	}
	return t.tx.Rollback()
}

// BackupTo creates a complete copy of the database at destPath using VACUUM INTO.
func (s *SQLiteStore) BackupTo(destPath string) error {
	if _, err := s.db.Exec("VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Path returns the database file path (empty for wrapped connections).
func (s *SQLiteStore) Path() string { return s.path }

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Compile-time check that SQLiteStore implements the Store interface.
var _ workspace.Store = (*SQLiteStore)(nil)
