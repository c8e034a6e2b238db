package window

import (
	"errors"
	"image"
	"testing"

	"github.com/sunbird89629/pip-plugin/internal/pip"
)

type recordedEvents struct {
	closes  int
	resizes []pip.Size
	exposes int
}

func (r *recordedEvents) CloseRequested()    { r.closes++ }
func (r *recordedEvents) Resized(s pip.Size) { r.resizes = append(r.resizes, s) }
func (r *recordedEvents) Exposed()           { r.exposes++ }

func TestMemorySurfaceLifecycle(t *testing.T) {
	b := NewMemoryBackend()
	ev := &recordedEvents{}

	surf, err := b.CreateSurface(pip.SurfaceOptions{
		Title:       "PiP Window",
		Size:        pip.Size{Width: 320, Height: 180},
		AspectRatio: pip.AspectRatio{Num: 16, Den: 9},
		Opacity:     204,
	}, ev)
	if err != nil {
		t.Fatalf("CreateSurface: %v", err)
	}
	s := b.Last()
	if s == nil || pip.Surface(s) != surf {
		t.Fatalf("Last did not return the created surface")
	}

	snap := s.Snapshot()
	if snap.Visible || snap.Title != "PiP Window" || snap.Opacity != 204 {
		t.Fatalf("initial snapshot=%+v", snap)
	}

	if err := surf.Show(true); err != nil {
		t.Fatalf("Show: %v", err)
	}
	snap = s.Snapshot()
	if !snap.Visible || snap.Position != (pip.Point{X: 800, Y: 450}) {
		t.Fatalf("after Show visible=%v position=%+v, want centered", snap.Visible, snap.Position)
	}

	frame := image.NewRGBA(image.Rect(0, 0, 320, 180))
	if err := surf.Present(frame); err != nil {
		t.Fatalf("Present: %v", err)
	}
	if got := s.Snapshot(); got.Frame != frame || got.Presents != 1 {
		t.Fatalf("frame not recorded")
	}

	if err := surf.Hide(); err != nil {
		t.Fatalf("Hide: %v", err)
	}
	if err := surf.Destroy(); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if err := surf.Show(false); !errors.Is(err, ErrSurfaceDestroyed) {
		t.Fatalf("Show after Destroy err=%v, want ErrSurfaceDestroyed", err)
	}
	if err := surf.Destroy(); !errors.Is(err, ErrSurfaceDestroyed) {
		t.Fatalf("second Destroy err=%v, want ErrSurfaceDestroyed", err)
	}
}

func TestMemorySurfaceSimulatedEvents(t *testing.T) {
	b := NewMemoryBackend()
	ev := &recordedEvents{}
	if _, err := b.CreateSurface(pip.SurfaceOptions{Size: pip.Size{Width: 10, Height: 10}}, ev); err != nil {
		t.Fatalf("CreateSurface: %v", err)
	}
	s := b.Last()

	s.SimulateClose()
	s.SimulateResize(pip.Size{Width: 40, Height: 20})
	s.SimulateExpose()

	if ev.closes != 1 || ev.exposes != 1 || len(ev.resizes) != 1 {
		t.Fatalf("events=%+v", ev)
	}
	if got, _ := s.Size(); got != (pip.Size{Width: 40, Height: 20}) {
		t.Fatalf("size=%s, want 40x20", got)
	}
	if s.Snapshot().Destroyed {
		t.Fatalf("close request destroyed the surface")
	}
}

func TestMemoryBackendCreateError(t *testing.T) {
	b := NewMemoryBackend()
	b.CreateErr = errors.New("out of handles")

	if _, err := b.CreateSurface(pip.SurfaceOptions{}, &recordedEvents{}); err == nil {
		t.Fatalf("CreateSurface succeeded")
	}
	if len(b.Surfaces()) != 0 {
		t.Fatalf("failed creation was recorded")
	}
}

func TestOpen(t *testing.T) {
	b, err := Open("memory")
	if err != nil {
		t.Fatalf("Open(memory): %v", err)
	}
	defer b.Close()
	if b.Name() != "memory" {
		t.Fatalf("Name=%q, want memory", b.Name())
	}

	if _, err := Open("nonexistent"); err == nil {
		t.Fatalf("Open(nonexistent) succeeded")
	}
}

func TestAvailable(t *testing.T) {
	names := Available()
	found := false
	for _, n := range names {
		if n == "memory" {
			found = true
		}
	}
	if !found {
		t.Fatalf("Available()=%v, want memory listed", names)
	}
}
