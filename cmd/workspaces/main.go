package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"workspaces/internal/app"
	"workspaces/internal/config"
	"workspaces/internal/workspace"
)

// Exit codes, kept stable for scripts wrapping the tool.
const (
	exitInsufficientPrivileges = 1
	exitFsDisabled             = 2
	exitTooHighDuration        = 3
	exitUnknownWorkspace       = 4
	exitWorkspaceExists        = 5
	exitNoFilesystem           = 6
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

// exitCode maps the error taxonomy onto process exit codes. This is the
// only place exit codes exist; the core returns tagged errors.
func exitCode(err error) int {
	switch {
	case errors.Is(err, workspace.ErrNotAuthorized):
		return exitInsufficientPrivileges
	case errors.Is(err, workspace.ErrFilesystemDisabled):
		return exitFsDisabled
	case errors.Is(err, workspace.ErrDurationTooLong):
		return exitTooHighDuration
	case errors.Is(err, workspace.ErrWorkspaceNotFound),
		errors.Is(err, workspace.ErrUnknownFilesystem),
		errors.Is(err, config.ErrUnknownFilesystem):
		return exitUnknownWorkspace
	case errors.Is(err, workspace.ErrWorkspaceExists):
		return exitWorkspaceExists
	case errors.Is(err, config.ErrNoFilesystem):
		return exitNoFilesystem
	default:
		return 1
	}
}

// newApp reads the config and wires the application. The caller must defer
// Close.
func newApp() (*app.App, error) {
	cfg, err := config.ReadFromFile(app.ConfigPath())
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return app.New(cfg)
}

var (
	flagFilesystem string
	flagUser       string
)

var rootCmd = &cobra.Command{
	Use:           "workspaces",
	Short:         "Manage named, time-bounded ZFS workspaces",
	SilenceUsage:  true,
	SilenceErrors: false,
}

var createCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a new workspace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		days, _ := cmd.Flags().GetInt("duration")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		mountpoint, err := a.Create(context.Background(), flagFilesystem, flagUser, args[0], days)
		if err != nil {
			return err
		}
		fmt.Printf("Created workspace at %s\n", mountpoint)
		return nil
	},
}

var extendCmd = &cobra.Command{
	Use:   "extend NAME",
	Short: "Extend a workspace's lifetime",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		days, _ := cmd.Flags().GetInt("duration")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ws, err := a.Extend(context.Background(), flagFilesystem, flagUser, args[0], days)
		if err != nil {
			return err
		}
		fmt.Printf("Workspace %s now expires %s\n", ws.Name, ws.ExpiresAt.Local().Format("2006-01-02 15:04"))
		return nil
	},
}

var expireCmd = &cobra.Command{
	Use:   "expire NAME",
	Short: "Mark a workspace as expired",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		immediate, _ := cmd.Flags().GetBool("delete-on-next-clean")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if _, err := a.Expire(context.Background(), flagFilesystem, flagUser, args[0], immediate); err != nil {
			return err
		}
		fmt.Printf("Workspace %s expired\n", args[0])
		return nil
	},
}

var renameCmd = &cobra.Command{
	Use:   "rename SRC DEST",
	Short: "Rename a workspace",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Rename(context.Background(), flagFilesystem, flagUser, args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("Workspace %s renamed to %s\n", args[0], args[1])
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List workspaces",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		users, _ := cmd.Flags().GetStringSlice("user")
		filesystems, _ := cmd.Flags().GetStringSlice("filesystem")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		infos, err := a.ListWorkspaces(context.Background())
		if err != nil {
			return err
		}
		renderWorkspaces(os.Stdout, filterWorkspaces(infos, users, filesystems))
		return nil
	},
}

var filesystemsCmd = &cobra.Command{
	Use:   "filesystems",
	Short: "Show configured filesystems and their usage",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		infos, err := a.Filesystems(context.Background())
		if err != nil {
			return err
		}
		renderFilesystems(os.Stdout, infos)
		return nil
	},
}

var maintainCmd = &cobra.Command{
	Use:   "maintain",
	Short: "Run one maintenance sweep (reminders, read-only, deletion, snapshots)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		return a.Maintain(context.Background())
	},
}

var notifyTestCmd = &cobra.Command{
	Use:   "notify-test [USER]",
	Short: "Send a test notification mail (admin only)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		to, _ := cmd.Flags().GetString("to")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		username := ""
		if len(args) > 0 {
			username = args[0]
		}
		if err := a.NotifyTest(context.Background(), username, to); err != nil {
			return err
		}
		fmt.Println("Test email sent")
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{createCmd, extendCmd, expireCmd, renameCmd} {
		cmd.Flags().StringVarP(&flagFilesystem, "filesystem", "f", "", "filesystem to operate on")
		cmd.Flags().StringVarP(&flagUser, "user", "u", "", "workspace owner (defaults to the calling user)")
	}
	createCmd.Flags().IntP("duration", "d", 0, "lifetime in days")
	createCmd.MarkFlagRequired("duration")
	extendCmd.Flags().IntP("duration", "d", 0, "extension in days from now")
	extendCmd.MarkFlagRequired("duration")
	expireCmd.Flags().Bool("delete-on-next-clean", false, "schedule deletion for the next maintenance run")

	listCmd.Flags().StringSliceP("user", "u", nil, "only show workspaces of these users")
	listCmd.Flags().StringSliceP("filesystem", "f", nil, "only show workspaces on these filesystems")

	notifyTestCmd.Flags().String("to", "", "send to this address instead of the user's configured one")

	rootCmd.AddCommand(createCmd, extendCmd, expireCmd, renameCmd, listCmd, filesystemsCmd, maintainCmd, notifyTestCmd)
}
