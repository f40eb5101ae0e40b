package main

import (
	"fmt"
	"io"
	"os"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"workspaces/internal/app"
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true)
	urgentStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	disabledStyle = lipgloss.NewStyle().Faint(true)
)

func colorized(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// paint applies a style only when writing to a terminal so piped output
// stays clean.
func paint(s string, st lipgloss.Style, color bool) string {
	if !color {
		return s
	}
	return st.Render(s)
}

func filterWorkspaces(infos []app.WorkspaceInfo, users, filesystems []string) []app.WorkspaceInfo {
	if len(users) == 0 && len(filesystems) == 0 {
		return infos
	}
	out := infos[:0:0]
	for _, info := range infos {
		if len(users) > 0 && !slices.Contains(users, info.Owner) {
			continue
		}
		if len(filesystems) > 0 && !slices.Contains(filesystems, info.Filesystem) {
			continue
		}
		out = append(out, info)
	}
	return out
}

func renderWorkspaces(w io.Writer, infos []app.WorkspaceInfo) {
	color := colorized(w)
	now := time.Now()

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, paint("FILESYSTEM\tOWNER\tNAME\tSIZE\tEXPIRY\tMOUNTPOINT", headerStyle, color))
	for _, info := range infos {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			info.Filesystem, info.Owner, info.Name,
			gigabytes(info.SizeBytes),
			expiryCell(info, now, color),
			info.Mountpoint)
	}
	tw.Flush()
}

// expiryCell describes where a workspace is in its lifecycle. Expired
// workspaces count down to deletion instead of showing a stale date.
func expiryCell(info app.WorkspaceInfo, now time.Time, color bool) string {
	deleteAt := info.ExpiresAt.Add(info.Retention)
	switch {
	case now.After(deleteAt):
		return paint("deleted soon", urgentStyle, color)
	case now.After(info.ExpiresAt):
		days := int(deleteAt.Sub(now) / (24 * time.Hour))
		return paint(fmt.Sprintf("deleted in %2dd", days), urgentStyle, color)
	case info.ExpiresAt.Sub(now) < 30*24*time.Hour:
		days := int(info.ExpiresAt.Sub(now) / (24 * time.Hour))
		return paint(fmt.Sprintf("expires in %2dd", days), warnStyle, color)
	default:
		return info.ExpiresAt.Local().Format("2006-01-02")
	}
}

func renderFilesystems(w io.Writer, infos []app.FilesystemInfo) {
	color := colorized(w)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, paint("NAME\tUSED\tAVAIL\tUSE%\tMAX DURATION\tRETENTION\tSTATE", headerStyle, color))
	for _, info := range infos {
		state := "active"
		if info.Disabled {
			state = "disabled"
		}
		line := fmt.Sprintf("%s\t%s\t%s\t%s\t%dd\t%dd\t%s",
			info.Name,
			gigabytes(info.UsedBytes),
			gigabytes(info.AvailBytes),
			usageCell(info, color),
			info.MaxDays, info.RetentionDays,
			state)
		if info.Disabled {
			line = paint(line, disabledStyle, color)
		}
		fmt.Fprintln(tw, line)
	}
	tw.Flush()
}

func usageCell(info app.FilesystemInfo, color bool) string {
	total := info.UsedBytes + info.AvailBytes
	if total == 0 {
		return "-"
	}
	pct := int(info.UsedBytes * 100 / total)
	cell := fmt.Sprintf("%d%%", pct)
	switch {
	case pct >= 90:
		return paint(cell, urgentStyle, color)
	case pct >= 75:
		return paint(cell, warnStyle, color)
	default:
		return cell
	}
}

func gigabytes(b int64) string {
	return fmt.Sprintf("%dG", b>>30)
}
