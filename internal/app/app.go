package app

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"workspaces/internal/config"
	"workspaces/internal/database"
	"workspaces/internal/database/migrations"
	"workspaces/internal/mail"
	"workspaces/internal/model"
	"workspaces/internal/volume"
	"workspaces/internal/workspace"
)

// App is the application layer between the CLI and the lifecycle service.
// It constructs all dependencies from config, brings the database schema up
// to date, and exposes the operations the CLI needs. The caller must call
// Close when done.
type App struct {
	cfg     *config.Config
	store   *database.SQLiteStore
	volumes workspace.VolumeManager
	service *workspace.Service
	caller  model.Caller
	logFile *os.File
}

// New creates a fully wired App from the given config.
func New(cfg *config.Config) (*App, error) {
	clock := workspace.RealClock{}

	dbPath, warning, err := cfg.DatabasePath()
	if err != nil {
		return nil, err
	}
	if warning != "" {
		fmt.Fprintln(os.Stderr, warning)
	}

	store, err := database.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := migrations.Upgrade(store.DB(), dbPath, clock.Now()); err != nil {
		store.Close()
		return nil, fmt.Errorf("upgrading database schema: %w", err)
	}

	volumes, err := volume.NewManagerFromConfig(cfg.VolumeManager, clock)
	if err != nil {
		store.Close()
		return nil, err
	}

	var mailer workspace.Mailer
	mailFrom := ""
	if cfg.SMTP != nil {
		smtp, err := mail.NewSMTPMailer(*cfg.SMTP)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("creating mailer: %w", err)
		}
		mailer = smtp
		mailFrom = smtp.From()
	}

	hostname, err := os.Hostname()
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("reading hostname: %w", err)
	}

	opID := uuid.New().String()[:8]
	logger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	caller, err := currentCaller()
	if err != nil {
		store.Close()
		return nil, err
	}

	svc := workspace.NewService(store, volumes, mailer, mail.NewUserConfigResolver(),
		policiesFromConfig(cfg), mailFrom, hostname, &slogAdapter{l: logger}, clock)

	return &App{
		cfg:     cfg,
		store:   store,
		volumes: volumes,
		service: svc,
		caller:  caller,
		logFile: logFile,
	}, nil
}

// currentCaller resolves the invoking user; root is privileged.
func currentCaller() (model.Caller, error) {
	u, err := user.Current()
	if err != nil {
		return model.Caller{}, fmt.Errorf("resolving current user: %w", err)
	}
	return model.Caller{Name: u.Username, Privileged: os.Geteuid() == 0}, nil
}

// policiesFromConfig converts configured day counts into durations.
func policiesFromConfig(cfg *config.Config) map[string]workspace.FilesystemPolicy {
	const day = 24 * time.Hour
	policies := make(map[string]workspace.FilesystemPolicy, len(cfg.Filesystems))
	for name, fs := range cfg.Filesystems {
		offsets := make([]time.Duration, len(fs.NotifyDays))
		for i, d := range fs.NotifyDays {
			offsets[i] = time.Duration(d) * day
		}
		policies[name] = workspace.FilesystemPolicy{
			Root:          fs.Root,
			MaxDuration:   time.Duration(fs.MaxDurationDays) * day,
			Retention:     time.Duration(fs.ExpiredRetentionDays) * day,
			NotifyOffsets: offsets,
			Snapshot:      fs.Snapshot,
			Disabled:      fs.Disabled,
		}
	}
	return policies
}

// resolveTarget picks the filesystem and fills in the owner default.
func (a *App) resolveTarget(filesystem, owner string) (string, string, error) {
	fs, err := a.cfg.ResolveFilesystem(filesystem)
	if err != nil {
		return "", "", err
	}
	if owner == "" {
		owner = a.caller.Name
	}
	return fs, owner, nil
}

// Create makes a new workspace and returns its mountpoint.
func (a *App) Create(ctx context.Context, filesystem, owner, name string, durationDays int) (string, error) {
	fs, owner, err := a.resolveTarget(filesystem, owner)
	if err != nil {
		return "", err
	}
	return a.service.Create(ctx, a.caller, fs, owner, name, time.Duration(durationDays)*24*time.Hour)
}

// Extend pushes a workspace's expiration to now plus the given days.
func (a *App) Extend(ctx context.Context, filesystem, owner, name string, durationDays int) (*model.Workspace, error) {
	fs, owner, err := a.resolveTarget(filesystem, owner)
	if err != nil {
		return nil, err
	}
	return a.service.Extend(ctx, a.caller, fs, owner, name, time.Duration(durationDays)*24*time.Hour)
}

// Expire marks a workspace expired; immediate schedules it for deletion on
// the next maintenance run.
func (a *App) Expire(ctx context.Context, filesystem, owner, name string, immediate bool) (*model.Workspace, error) {
	fs, owner, err := a.resolveTarget(filesystem, owner)
	if err != nil {
		return nil, err
	}
	return a.service.Expire(ctx, a.caller, fs, owner, name, immediate)
}

// Rename changes a workspace's name.
func (a *App) Rename(ctx context.Context, filesystem, owner, src, dest string) error {
	fs, owner, err := a.resolveTarget(filesystem, owner)
	if err != nil {
		return err
	}
	return a.service.Rename(ctx, a.caller, fs, owner, src, dest)
}

// Maintain runs one maintenance sweep.
func (a *App) Maintain(ctx context.Context) error {
	return a.service.Maintain(ctx)
}

// NotifyTest sends a test mail to the given user, or to an explicit address.
func (a *App) NotifyTest(ctx context.Context, username, toOverride string) error {
	if username == "" {
		username = a.caller.Name
	}
	return a.service.NotifyTest(ctx, a.caller, username, toOverride)
}

// WorkspaceInfo is one row of the list output: the stored workspace plus
// live volume details and the retention that applies to it.
type WorkspaceInfo struct {
	model.Workspace
	Mountpoint string
	SizeBytes  int64
	Retention  time.Duration
}

// ListWorkspaces returns all workspaces with their volume details.
// Workspaces whose volume cannot be queried are reported on stderr and
// skipped, so one broken volume does not hide the rest.
func (a *App) ListWorkspaces(ctx context.Context) ([]WorkspaceInfo, error) {
	rows, err := a.store.ListWorkspaces(ctx)
	if err != nil {
		return nil, err
	}

	policies := policiesFromConfig(a.cfg)
	var result []WorkspaceInfo
	for _, ws := range rows {
		p, ok := policies[ws.Filesystem]
		if !ok {
			fmt.Fprintf(os.Stderr, "workspace %s/%s references unconfigured filesystem %s\n", ws.Owner, ws.Name, ws.Filesystem)
			continue
		}
		vol := workspace.VolumeName(p.Root, ws.Owner, ws.Name)

		mountpoint, err := a.volumes.GetProperty(ctx, vol, "mountpoint")
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to get info for %s\n", vol)
			continue
		}
		referenced, err := a.volumes.GetProperty(ctx, vol, "referenced")
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to get info for %s\n", vol)
			continue
		}
		size, _ := strconv.ParseInt(referenced, 10, 64)

		result = append(result, WorkspaceInfo{
			Workspace:  ws,
			Mountpoint: mountpoint,
			SizeBytes:  size,
			Retention:  p.Retention,
		})
	}
	return result, nil
}

// FilesystemInfo is one row of the filesystems output.
type FilesystemInfo struct {
	Name          string
	UsedBytes     int64
	AvailBytes    int64
	MaxDays       int
	RetentionDays int
	Disabled      bool
}

// Filesystems returns usage and policy details for every configured filesystem.
func (a *App) Filesystems(ctx context.Context) ([]FilesystemInfo, error) {
	names := make([]string, 0, len(a.cfg.Filesystems))
	for name := range a.cfg.Filesystems {
		names = append(names, name)
	}
	sort.Strings(names)

	var result []FilesystemInfo
	for _, name := range names {
		fs := a.cfg.Filesystems[name]
		used, err := a.volumes.GetProperty(ctx, fs.Root, "used")
		if err != nil {
			return nil, fmt.Errorf("reading usage of %s: %w", fs.Root, err)
		}
		avail, err := a.volumes.GetProperty(ctx, fs.Root, "available")
		if err != nil {
			return nil, fmt.Errorf("reading free space of %s: %w", fs.Root, err)
		}
		usedBytes, _ := strconv.ParseInt(used, 10, 64)
		availBytes, _ := strconv.ParseInt(avail, 10, 64)

		result = append(result, FilesystemInfo{
			Name:          name,
			UsedBytes:     usedBytes,
			AvailBytes:    availBytes,
			MaxDays:       fs.MaxDurationDays,
			RetentionDays: fs.ExpiredRetentionDays,
			Disabled:      fs.Disabled,
		})
	}
	return result, nil
}

// Close closes the database and the log file.
func (a *App) Close() error {
	err := a.store.Close()
	if a.logFile != nil {
		a.logFile.Close()
	}
	return err
}
