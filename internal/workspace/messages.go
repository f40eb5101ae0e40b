package workspace

import (
	"fmt"

	"workspaces/internal/model"
)

// Mail message composition. Subjects and bodies mention the host so users
// with workspaces on several machines know where to act.

func createdMessage(ws *model.Workspace, mountpoint, host string, durationDays int) (subject, body string) {
	subject = fmt.Sprintf("Workspace %s created on %s", ws.Name, host)
	body = fmt.Sprintf(
		"Hello,\n\nYour workspace %q has been created on %s.\nFilesystem: %s\nMountpoint: %s\nInitial expiry: in %d days.\n\nYou can extend it with:\n  workspaces extend -f %s -d <days> %s\n",
		ws.Name, host, ws.Filesystem, mountpoint, durationDays, ws.Filesystem, ws.Name)
	return subject, body
}

func extendedMessage(ws *model.Workspace, host string) (subject, body string) {
	subject = fmt.Sprintf("Workspace %s on %s extended until %s", ws.Name, host,
		ws.ExpiresAt.Format("2006-01-02"))
	body = fmt.Sprintf(
		"Hello,\n\nYour workspace %q on %s now expires on %s.\n",
		ws.Name, host, ws.ExpiresAt.Format("2006-01-02 15:04 MST"))
	return subject, body
}

func reminderMessage(ws model.Workspace, rem *Reminder, host string) (subject, body string) {
	switch rem.Kind {
	case ReminderExpiry:
		subject = fmt.Sprintf("Your workspace %s on %s will expire in %d days.", ws.Name, host, rem.Days)
	default:
		subject = fmt.Sprintf("Your workspace %s on %s will be deleted in %d days.", ws.Name, host, rem.Days)
	}
	body = fmt.Sprintf(
		"%s\n\nYou can extend it by logging into %s and running\n`workspaces extend -d <duration in days> %s`.\n\nTo disable notifications for this workspace, manually mark this workspace as expired by running\n`workspaces expire %s`.",
		subject, host, ws.Name, ws.Name)
	return subject, body
}

func testMessage(host string) (subject, body string) {
	subject = fmt.Sprintf("Workspaces test email from %s", host)
	body = fmt.Sprintf(
		"Hello,\n\nThis is a test email sent by Workspaces on %s.\nIf you can read this, SMTP is configured correctly.\n", host)
	return subject, body
}
