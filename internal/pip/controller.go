package pip

import (
	"fmt"
	"image"

	"github.com/rs/zerolog"
	"github.com/sunbird89629/pip-plugin/internal/logger"
)

// instance is the single PiP window and its state. It exists from a
// successful Setup until Close.
type instance struct {
	surface Surface
	cfg     Configuration
	visible bool
	// shown is set after the first Show; the window is centered only once.
	shown bool

	frame     *image.RGBA
	frameSize Size
}

// Controller owns the PiP window lifecycle. It is not safe for concurrent
// use: every method, including the event handlers, must be called from the
// UI thread.
type Controller struct {
	factory  SurfaceFactory
	renderer Renderer
	notifier Notifier
	events   SurfaceEvents
	log      *zerolog.Logger

	inst *instance
}

// Option configures a Controller.
type Option func(*Controller)

// WithEventRouter wraps the handler the Controller registers with new
// surfaces. The plugin uses it to move window-system callbacks onto the UI
// thread before they reach the Controller.
func WithEventRouter(route func(direct SurfaceEvents) SurfaceEvents) Option {
	return func(c *Controller) {
		c.events = route(c.events)
	}
}

// NewController creates a Controller with no window. The notifier is
// borrowed and only used to send stop notifications.
func NewController(factory SurfaceFactory, renderer Renderer, notifier Notifier, opts ...Option) *Controller {
	c := &Controller{
		factory:  factory,
		renderer: renderer,
		notifier: notifier,
		log:      logger.WithComponent("pip"),
	}
	c.events = directEvents{c}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsSupported reports whether PiP windows can be shown on this platform.
func (c *Controller) IsSupported() bool {
	return true
}

// Ready reports whether Setup has completed.
func (c *Controller) Ready() bool {
	return c.inst != nil
}

// Visible reports whether the window is currently shown.
func (c *Controller) Visible() bool {
	return c.inst != nil && c.inst.visible
}

// Configuration returns a copy of the current configuration.
func (c *Controller) Configuration() (Configuration, bool) {
	if c.inst == nil {
		return Configuration{}, false
	}
	return c.inst.cfg, true
}

// Frame returns the last frame presented to the window, or nil.
func (c *Controller) Frame() *image.RGBA {
	if c.inst == nil {
		return nil
	}
	return c.inst.frame
}

// Status is a diagnostic snapshot of the controller.
type Status struct {
	Ready         bool           `json:"ready"`
	Visible       bool           `json:"visible"`
	Configuration *Configuration `json:"configuration,omitempty"`
	Size          *Size          `json:"size,omitempty"`
}

// Status returns the current state for diagnostics.
func (c *Controller) Status() Status {
	if c.inst == nil {
		return Status{}
	}
	cfg := c.inst.cfg
	st := Status{Ready: true, Visible: c.inst.visible, Configuration: &cfg}
	if size, err := c.inst.surface.Size(); err == nil {
		st.Size = &size
	}
	return st
}

// Setup creates the PiP window, or reconfigures it when it already exists.
//
// The configuration is rebuilt from defaults with the patch overlaid. On a
// second Setup the window title is kept and no new window is created; the
// existing one is resized to the derived size and repainted.
func (c *Controller) Setup(p Patch) error {
	if c.inst != nil {
		return c.reconfigure(p)
	}

	cfg := DefaultConfiguration()
	cfg.apply(p, true, true)
	size := InitialSize(cfg.AspectRatio)

	surface, err := c.factory.CreateSurface(SurfaceOptions{
		Title:       cfg.WindowTitle,
		Size:        size,
		AspectRatio: cfg.AspectRatio,
		Opacity:     cfg.BackgroundColor.A,
	}, c.events)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrResourceCreation, err)
	}

	c.inst = &instance{surface: surface, cfg: cfg}
	if err := c.repaint(); err != nil {
		// A window that cannot be drawn is not kept half-initialized.
		if derr := surface.Destroy(); derr != nil {
			c.log.Warn().Err(derr).Msg("Failed to destroy window after setup failure")
		}
		c.inst = nil
		return fmt.Errorf("%w: first frame: %w", ErrResourceCreation, err)
	}

	c.log.Info().
		Str("title", cfg.WindowTitle).
		Str("size", size.String()).
		Str("ratio", cfg.AspectRatio.String()).
		Msg("PiP window created")
	return nil
}

func (c *Controller) reconfigure(p Patch) error {
	inst := c.inst
	cfg := DefaultConfiguration()
	cfg.apply(p, false, true)
	cfg.WindowTitle = inst.cfg.WindowTitle
	inst.cfg = cfg

	size := InitialSize(cfg.AspectRatio)
	if err := inst.surface.SetAspectRatio(cfg.AspectRatio); err != nil {
		return fmt.Errorf("set aspect ratio: %w", err)
	}
	if err := inst.surface.Resize(size); err != nil {
		return fmt.Errorf("resize window: %w", err)
	}
	if err := inst.surface.SetOpacity(cfg.BackgroundColor.A); err != nil {
		return fmt.Errorf("set opacity: %w", err)
	}

	c.log.Info().
		Str("size", size.String()).
		Str("ratio", cfg.AspectRatio.String()).
		Msg("PiP window reconfigured")
	return c.repaint()
}

// Update patches the style of an existing window. Title and text are not
// touched; fields absent from the patch keep their current value.
func (c *Controller) Update(p Patch) error {
	if c.inst == nil {
		return ErrNotReady
	}
	inst := c.inst

	prevAlpha := inst.cfg.BackgroundColor.A
	ratioChanged := inst.cfg.apply(p, false, false)

	if inst.cfg.BackgroundColor.A != prevAlpha {
		if err := inst.surface.SetOpacity(inst.cfg.BackgroundColor.A); err != nil {
			return fmt.Errorf("set opacity: %w", err)
		}
	}

	if ratioChanged {
		cur, err := inst.surface.Size()
		if err != nil {
			return fmt.Errorf("query window size: %w", err)
		}
		next := Size{Width: WidthForHeight(cur.Height, inst.cfg.AspectRatio), Height: cur.Height}
		if err := inst.surface.SetAspectRatio(inst.cfg.AspectRatio); err != nil {
			return fmt.Errorf("set aspect ratio: %w", err)
		}
		if err := inst.surface.Resize(next); err != nil {
			return fmt.Errorf("resize window: %w", err)
		}
		c.log.Debug().
			Str("ratio", inst.cfg.AspectRatio.String()).
			Str("size", next.String()).
			Msg("Aspect ratio changed")
	}

	return c.repaint()
}

// UpdateText replaces the caption and repaints. No other field changes.
func (c *Controller) UpdateText(text string) error {
	if c.inst == nil {
		return ErrNotReady
	}
	c.inst.cfg.Text = text
	return c.repaint()
}

// Start shows the window, centering it the first time. Starting a visible
// window does nothing.
func (c *Controller) Start() error {
	if c.inst == nil {
		return ErrNotReady
	}
	inst := c.inst
	if inst.visible {
		return nil
	}

	if err := inst.surface.Show(!inst.shown); err != nil {
		return fmt.Errorf("show window: %w", err)
	}
	inst.shown = true
	inst.visible = true

	c.log.Info().Msg("PiP started")
	return nil
}

// Stop hides the window and notifies the host. The notification is sent
// even when the window was already hidden.
func (c *Controller) Stop() error {
	if c.inst == nil {
		return ErrNotReady
	}
	if err := c.hide(); err != nil {
		return err
	}
	c.log.Info().Msg("PiP stopped")
	c.notifyStopped()
	return nil
}

// HandleCloseRequest reacts to the user closing the window from its chrome.
// The window is hidden rather than destroyed so a later Start can reuse it.
func (c *Controller) HandleCloseRequest() {
	if c.inst == nil {
		c.log.Debug().Msg("Close request without a window")
		return
	}
	if err := c.hide(); err != nil {
		c.log.Warn().Err(err).Msg("Failed to hide window on close request")
	}
	c.log.Info().Msg("PiP closed by user")
	c.notifyStopped()
}

// HandleResize is called after the window system changed the window size.
// Sizes that do not match the aspect ratio are corrected.
func (c *Controller) HandleResize(size Size) {
	if c.inst == nil {
		return
	}
	inst := c.inst

	want := ConstrainSize(size, inst.cfg.AspectRatio)
	if want != size {
		c.log.Debug().
			Str("got", size.String()).
			Str("want", want.String()).
			Msg("Constraining window to aspect ratio")
		if err := inst.surface.Resize(want); err != nil {
			c.log.Warn().Err(err).Msg("Failed to constrain window size")
			return
		}
	}

	if inst.frame != nil && inst.frameSize == want {
		return
	}
	if err := c.repaint(); err != nil {
		c.log.Warn().Err(err).Msg("Failed to repaint after resize")
	}
}

// HandleExpose re-presents the current frame after the window was uncovered.
func (c *Controller) HandleExpose() {
	if c.inst == nil {
		return
	}
	inst := c.inst

	size, err := inst.surface.Size()
	if err == nil && inst.frame != nil && size == inst.frameSize {
		err = inst.surface.Present(inst.frame)
	} else {
		err = c.repaint()
	}
	if err != nil {
		c.log.Warn().Err(err).Msg("Failed to repaint exposed window")
	}
}

// Close tears down the window and then the drawing resources it uses.
// Further operations return ErrNotReady.
func (c *Controller) Close() error {
	var firstErr error
	if c.inst != nil {
		if err := c.inst.surface.Destroy(); err != nil {
			firstErr = fmt.Errorf("destroy window: %w", err)
		}
		c.inst = nil
		c.log.Info().Msg("PiP window destroyed")
	}
	if err := c.renderer.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close renderer: %w", err)
	}
	return firstErr
}

func (c *Controller) hide() error {
	inst := c.inst
	if inst.visible {
		if err := inst.surface.Hide(); err != nil {
			return fmt.Errorf("hide window: %w", err)
		}
	}
	inst.visible = false
	return nil
}

func (c *Controller) notifyStopped() {
	if c.notifier != nil {
		c.notifier.Notify(NotifyPipStopped, true)
	}
}

func (c *Controller) repaint() error {
	inst := c.inst
	size, err := inst.surface.Size()
	if err != nil {
		return fmt.Errorf("query window size: %w", err)
	}

	frame, err := c.renderer.Render(inst.cfg, size)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	if err := inst.surface.Present(frame); err != nil {
		return fmt.Errorf("present frame: %w", err)
	}
	inst.frame = frame
	inst.frameSize = size
	return nil
}

// directEvents delivers surface events straight to the Controller. Used when
// no router is configured, i.e. when the backend already calls back on the
// UI thread.
type directEvents struct {
	c *Controller
}

func (d directEvents) CloseRequested() { d.c.HandleCloseRequest() }
func (d directEvents) Resized(s Size)  { d.c.HandleResize(s) }
func (d directEvents) Exposed()        { d.c.HandleExpose() }
