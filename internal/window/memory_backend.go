package window

import (
	"errors"
	"image"
	"sync"

	"github.com/sunbird89629/pip-plugin/internal/logger"
	"github.com/sunbird89629/pip-plugin/internal/pip"
)

func init() {
	Register("memory", func() Backend { return NewMemoryBackend() })
}

// ErrSurfaceDestroyed is returned by surface methods after Destroy.
var ErrSurfaceDestroyed = errors.New("window: surface destroyed")

// MemoryScreen is the virtual screen size used for centering.
var MemoryScreen = pip.Size{Width: 1920, Height: 1080}

// MemoryBackend keeps windows as plain structs. It backs headless runs and
// tests; events are injected with the Simulate methods of MemorySurface.
type MemoryBackend struct {
	mu       sync.Mutex
	surfaces []*MemorySurface

	// CreateErr, when set, makes CreateSurface fail.
	CreateErr error
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

func (b *MemoryBackend) Connect() error { return nil }

func (b *MemoryBackend) Close() error { return nil }

func (b *MemoryBackend) Name() string { return "memory" }

// CreateSurface implements pip.SurfaceFactory.
func (b *MemoryBackend) CreateSurface(opts pip.SurfaceOptions, events pip.SurfaceEvents) (pip.Surface, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.CreateErr != nil {
		return nil, b.CreateErr
	}

	s := &MemorySurface{
		events:  events,
		title:   opts.Title,
		size:    opts.Size,
		ratio:   opts.AspectRatio,
		opacity: opts.Opacity,
	}
	b.surfaces = append(b.surfaces, s)

	logger.WithComponent("window").Debug().
		Str("backend", "memory").
		Str("title", opts.Title).
		Str("size", opts.Size.String()).
		Msg("Surface created")
	return s, nil
}

// Surfaces returns every surface created so far, destroyed ones included.
func (b *MemoryBackend) Surfaces() []*MemorySurface {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*MemorySurface(nil), b.surfaces...)
}

// Last returns the most recently created surface, or nil.
func (b *MemoryBackend) Last() *MemorySurface {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.surfaces) == 0 {
		return nil
	}
	return b.surfaces[len(b.surfaces)-1]
}

// MemorySurface is a pip.Surface that records what was asked of it.
type MemorySurface struct {
	mu     sync.Mutex
	events pip.SurfaceEvents

	title     string
	size      pip.Size
	position  pip.Point
	ratio     pip.AspectRatio
	opacity   uint8
	visible   bool
	destroyed bool
	frame     *image.RGBA

	shows    int
	hides    int
	presents int
}

func (s *MemorySurface) Show(center bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return ErrSurfaceDestroyed
	}
	if center {
		s.position = pip.CenteredOrigin(MemoryScreen, s.size)
	}
	s.visible = true
	s.shows++
	return nil
}

func (s *MemorySurface) Hide() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return ErrSurfaceDestroyed
	}
	s.visible = false
	s.hides++
	return nil
}

func (s *MemorySurface) Size() (pip.Size, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return pip.Size{}, ErrSurfaceDestroyed
	}
	return s.size, nil
}

func (s *MemorySurface) Resize(size pip.Size) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return ErrSurfaceDestroyed
	}
	s.size = size
	return nil
}

func (s *MemorySurface) SetAspectRatio(r pip.AspectRatio) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return ErrSurfaceDestroyed
	}
	s.ratio = r
	return nil
}

func (s *MemorySurface) SetOpacity(alpha uint8) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return ErrSurfaceDestroyed
	}
	s.opacity = alpha
	return nil
}

func (s *MemorySurface) Present(frame *image.RGBA) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return ErrSurfaceDestroyed
	}
	s.frame = frame
	s.presents++
	return nil
}

func (s *MemorySurface) Destroy() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return ErrSurfaceDestroyed
	}
	s.destroyed = true
	s.visible = false
	return nil
}

// SimulateClose behaves like the user pressing the close button.
func (s *MemorySurface) SimulateClose() {
	s.events.CloseRequested()
}

// SimulateResize behaves like the user dragging the window border: the
// window takes the new size, then the backend reports it.
func (s *MemorySurface) SimulateResize(size pip.Size) {
	s.mu.Lock()
	s.size = size
	s.mu.Unlock()
	s.events.Resized(size)
}

// SimulateExpose behaves like the window being uncovered.
func (s *MemorySurface) SimulateExpose() {
	s.events.Exposed()
}

// MemorySnapshot is a copy of a MemorySurface's recorded state.
type MemorySnapshot struct {
	Title     string
	Size      pip.Size
	Position  pip.Point
	Ratio     pip.AspectRatio
	Opacity   uint8
	Visible   bool
	Destroyed bool
	Frame     *image.RGBA
	Shows     int
	Hides     int
	Presents  int
}

// Snapshot returns the recorded state.
func (s *MemorySurface) Snapshot() MemorySnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return MemorySnapshot{
		Title:     s.title,
		Size:      s.size,
		Position:  s.position,
		Ratio:     s.ratio,
		Opacity:   s.opacity,
		Visible:   s.visible,
		Destroyed: s.destroyed,
		Frame:     s.frame,
		Shows:     s.shows,
		Hides:     s.hides,
		Presents:  s.presents,
	}
}
