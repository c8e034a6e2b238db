package window

import (
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/sunbird89629/pip-plugin/internal/pip"
)

// Backend is a native window toolkit able to host the PiP surface (X11,
// Win32, in-memory).
type Backend interface {
	pip.SurfaceFactory

	// Connect establishes the connection to the display server and starts
	// the backend's event processing.
	Connect() error

	// Close releases the display connection. Surfaces must have been
	// destroyed first.
	Close() error

	// Name returns the backend name (e.g., "x11", "win32")
	Name() string
}

var (
	registryMu sync.Mutex
	registry   = map[string]func() Backend{}
)

// Register makes a backend constructor available to Open. Platform files
// call it from init.
func Register(name string, ctor func() Backend) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = ctor
}

// Available lists the registered backend names.
func Available() []string {
	registryMu.Lock()
	defer registryMu.Unlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultName is the backend chosen for "auto" on this platform.
func DefaultName() string {
	if runtime.GOOS == "windows" {
		return "win32"
	}
	return "x11"
}

// Open constructs and connects the named backend. "auto" or "" selects
// DefaultName.
func Open(name string) (Backend, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == "auto" {
		name = DefaultName()
	}

	registryMu.Lock()
	ctor, ok := registry[name]
	registryMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown window backend %q (available: %s)", name, strings.Join(Available(), ", "))
	}

	b := ctor()
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("connect %s backend: %w", name, err)
	}
	return b, nil
}
