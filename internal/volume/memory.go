package volume

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"workspaces/internal/workspace"
)

// Memory is an in-memory volume manager for dry runs and tests.
// Safe for concurrent use.
type Memory struct {
	mu        sync.Mutex
	volumes   map[string]*memVolume
	snapshots []string
}

type memVolume struct {
	props map[string]string
	owner string
}

// NewMemory creates an empty in-memory volume manager.
func NewMemory() *Memory {
	return &Memory{volumes: make(map[string]*memVolume)}
}

func (m *Memory) Create(_ context.Context, volume string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.volumes[volume]; ok {
		return fmt.Errorf("volume %s already exists", volume)
	}
	m.volumes[volume] = &memVolume{props: map[string]string{
		"mountpoint": "/" + volume,
		"readonly":   "off",
		"used":       "0",
		"available":  "0",
	}}
	return nil
}

func (m *Memory) Destroy(_ context.Context, volume string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Destroying an absent volume is a no-op, mirroring the retry-safe
	// contract of the real manager.
	delete(m.volumes, volume)
	return nil
}

func (m *Memory) Rename(_ context.Context, oldVolume, newVolume string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.volumes[oldVolume]
	if !ok {
		return fmt.Errorf("volume %s does not exist", oldVolume)
	}
	if _, ok := m.volumes[newVolume]; ok {
		return fmt.Errorf("volume %s already exists", newVolume)
	}
	delete(m.volumes, oldVolume)
	m.volumes[newVolume] = v
	v.props["mountpoint"] = "/" + newVolume
	return nil
}

func (m *Memory) SetProperty(_ context.Context, volume, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.volumes[volume]
	if !ok {
		return fmt.Errorf("volume %s does not exist", volume)
	}
	v.props[key] = value
	return nil
}

func (m *Memory) GetProperty(_ context.Context, volume, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.volumes[volume]
	if !ok {
		return "", fmt.Errorf("volume %s does not exist", volume)
	}
	value, ok := v.props[key]
	if !ok {
		return "", fmt.Errorf("volume %s has no property %s", volume, key)
	}
	return value, nil
}

func (m *Memory) Snapshot(_ context.Context, volume string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Roots are implicit; recording the request is enough for a dry run.
	m.snapshots = append(m.snapshots, volume)
	return nil
}

// Snapshots returns the snapshot requests seen so far, in order.
func (m *Memory) Snapshots() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.snapshots...)
}

func (m *Memory) RestrictToOwner(_ context.Context, volume, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.volumes[volume]
	if !ok {
		return fmt.Errorf("volume %s does not exist", volume)
	}
	v.owner = owner
	return nil
}

// Exists reports whether a volume is present.
func (m *Memory) Exists(volume string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.volumes[volume]
	return ok
}

// Owner returns the recorded owner of a volume, or "".
func (m *Memory) Owner(volume string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.volumes[volume]; ok {
		return v.owner
	}
	return ""
}

// Volumes returns all volume names, sorted.
func (m *Memory) Volumes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.volumes))
	for name := range m.volumes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Compile-time check that Memory implements the VolumeManager interface.
var _ workspace.VolumeManager = (*Memory)(nil)
