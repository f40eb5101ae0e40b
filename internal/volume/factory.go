package volume

import (
	"fmt"

	"workspaces/internal/workspace"
)

// NewManagerFromConfig creates a VolumeManager for the configured backend
// type: "zfs" (the default) or "memory" for dry runs.
func NewManagerFromConfig(backend string, clock workspace.Clock) (workspace.VolumeManager, error) {
	switch backend {
	case "", "zfs":
		return NewZFS(clock), nil
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown volume manager type: %s", backend)
	}
}
