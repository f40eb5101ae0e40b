package mail

import (
	"fmt"
	"net/mail"
	"os/user"
	"path/filepath"

	"workspaces/internal/config"
	"workspaces/internal/workspace"
)

// UserConfigResolver resolves a login name to the notification address the
// user keeps in ~/.config/workspaces.toml.
type UserConfigResolver struct{}

func NewUserConfigResolver() *UserConfigResolver { return &UserConfigResolver{} }

func (*UserConfigResolver) Lookup(username string) (string, error) {
	u, err := user.Lookup(username)
	if err != nil {
		return "", fmt.Errorf("user not found: %w", err)
	}

	uc, err := config.ReadUserConfigFile(filepath.Join(u.HomeDir, ".config", "workspaces.toml"))
	if err != nil {
		return "", err
	}

	if _, err := mail.ParseAddress(uc.Email); err != nil {
		return "", fmt.Errorf("invalid email address %q: %w", uc.Email, err)
	}
	return uc.Email, nil
}

// Compile-time check that UserConfigResolver implements RecipientResolver.
var _ workspace.RecipientResolver = (*UserConfigResolver)(nil)
