// Package plugin assembles the PiP controller, its UI thread, the native
// window backend and the host connection into one object that owns them all.
package plugin

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"github.com/sunbird89629/pip-plugin/internal/logger"
	"github.com/sunbird89629/pip-plugin/internal/pip"
	"github.com/sunbird89629/pip-plugin/internal/platform"
	"github.com/sunbird89629/pip-plugin/internal/render"
	"github.com/sunbird89629/pip-plugin/internal/rpc"
	"github.com/sunbird89629/pip-plugin/internal/uithread"
	"github.com/sunbird89629/pip-plugin/internal/window"
)

// ErrNoFrame is returned by Snapshot before anything was drawn.
var ErrNoFrame = errors.New("plugin: no frame presented")

// Options configure a Plugin.
type Options struct {
	// AllowedOrigins restricts browser origins on the websocket.
	AllowedOrigins []string

	// Version overrides the getPlatformVersion result.
	Version func() string

	// SnapshotPath, when set, makes Run write the last frame there before
	// the window is destroyed.
	SnapshotPath string
}

// Plugin is one PiP plugin registration: a single controller and the
// resources it needs. Nothing in it is global.
type Plugin struct {
	backend  window.Backend
	thread   *uithread.Thread
	hub      *rpc.Hub
	ctrl     *pip.Controller
	server   *rpc.Server
	log      *zerolog.Logger
	snapshot string
	threadMu sync.Mutex
	started  bool
}

// New creates a Plugin on an already connected backend. The Plugin takes
// ownership of the backend and closes it on shutdown.
func New(backend window.Backend, opts Options) (*Plugin, error) {
	renderer, err := render.New()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", pip.ErrResourceCreation, err)
	}

	version := opts.Version
	if version == nil {
		version = platform.Version
	}

	p := &Plugin{
		backend:  backend,
		thread:   uithread.New(),
		hub:      rpc.NewHub(),
		log:      logger.WithComponent("plugin"),
		snapshot: opts.SnapshotPath,
	}

	p.ctrl = pip.NewController(backend, renderer, p.hub, pip.WithEventRouter(p.routeEvents))

	dispatcher := rpc.NewDispatcher(p.Exec, version)
	p.server = rpc.NewServer(dispatcher, p.hub, p.status, opts.AllowedOrigins)

	p.log.Info().Str("backend", backend.Name()).Msg("Plugin registered")
	return p, nil
}

// Start runs the UI thread until ctx is cancelled. It must be called before
// any operation is executed.
func (p *Plugin) Start(ctx context.Context) {
	p.threadMu.Lock()
	defer p.threadMu.Unlock()
	if p.started {
		return
	}
	p.started = true
	go p.thread.Run(ctx)
}

// Run starts the UI thread and serves hosts on addr until ctx is cancelled,
// then tears everything down.
func (p *Plugin) Run(ctx context.Context, addr string) error {
	threadCtx, cancelThread := context.WithCancel(context.Background())
	defer cancelThread()
	p.Start(threadCtx)

	serveErr := p.server.Serve(ctx, addr)

	if p.snapshot != "" {
		if err := p.Snapshot(p.snapshot); err != nil {
			p.log.Warn().Err(err).Str("path", p.snapshot).Msg("Failed to write snapshot")
		} else {
			p.log.Info().Str("path", p.snapshot).Msg("Snapshot written")
		}
	}

	closeErr := p.Shutdown(cancelThread)
	if serveErr != nil {
		return serveErr
	}
	return closeErr
}

// Shutdown destroys the window on the UI thread, stops the thread with
// stopThread and then releases the backend.
func (p *Plugin) Shutdown(stopThread context.CancelFunc) error {
	err := p.thread.Call(p.ctrl.Close)
	if errors.Is(err, uithread.ErrStopped) {
		err = nil
	}
	stopThread()
	<-p.thread.Done()

	if cerr := p.backend.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("close backend: %w", cerr)
	}
	p.log.Info().Msg("Plugin unregistered")
	return err
}

// Exec runs f against the controller on the UI thread.
func (p *Plugin) Exec(f func(c *pip.Controller) error) error {
	return p.thread.Call(func() error { return f(p.ctrl) })
}

// Server returns the host-facing server.
func (p *Plugin) Server() *rpc.Server {
	return p.server
}

// Status returns the controller's diagnostic snapshot.
func (p *Plugin) Status() (pip.Status, error) {
	var st pip.Status
	err := p.Exec(func(c *pip.Controller) error {
		st = c.Status()
		return nil
	})
	return st, err
}

func (p *Plugin) status() (any, error) {
	return p.Status()
}

// Snapshot writes the last presented frame to path as PNG, composited at
// the window opacity over black.
func (p *Plugin) Snapshot(path string) error {
	var img *image.RGBA
	err := p.Exec(func(c *pip.Controller) error {
		frame := c.Frame()
		cfg, ok := c.Configuration()
		if frame == nil || !ok {
			return ErrNoFrame
		}
		// composite on the UI thread; the frame is replaced on repaint
		img = render.Composite(frame, cfg.BackgroundColor.A, color.Black)
		return nil
	})
	if err != nil {
		return err
	}
	return writePNG(path, img)
}

func writePNG(path string, img image.Image) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create snapshot directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create snapshot: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return f.Close()
}

// routeEvents moves window-system callbacks onto the UI thread. Post never
// blocks, so backends may call from inside their own event loop.
func (p *Plugin) routeEvents(direct pip.SurfaceEvents) pip.SurfaceEvents {
	return routedEvents{thread: p.thread, direct: direct, log: p.log}
}

type routedEvents struct {
	thread *uithread.Thread
	direct pip.SurfaceEvents
	log    *zerolog.Logger
}

func (r routedEvents) post(name string, f func()) {
	if !r.thread.Post(f) {
		r.log.Debug().Str("event", name).Msg("Window event after shutdown dropped")
	}
}

func (r routedEvents) CloseRequested() {
	r.post("close", r.direct.CloseRequested)
}

func (r routedEvents) Resized(s pip.Size) {
	r.post("resize", func() { r.direct.Resized(s) })
}

func (r routedEvents) Exposed() {
	r.post("expose", r.direct.Exposed)
}
