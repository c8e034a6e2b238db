package window

import (
	"fmt"
	"image"
	"sync"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
	"github.com/BurntSushi/xgbutil/xevent"
	"github.com/BurntSushi/xgbutil/xgraphics"
	"github.com/BurntSushi/xgbutil/xwindow"
	"github.com/rs/zerolog"
	"github.com/sunbird89629/pip-plugin/internal/logger"
	"github.com/sunbird89629/pip-plugin/internal/pip"
)

func init() {
	Register("x11", func() Backend { return NewX11Backend() })
}

// X11Backend hosts the PiP window on an X server through xgbutil. The
// xevent main loop runs on its own goroutine and forwards window events to
// the pip.SurfaceEvents given at creation.
type X11Backend struct {
	xu  *xgbutil.XUtil
	log *zerolog.Logger

	mu      sync.Mutex
	running bool
	loopEnd chan struct{}
}

// NewX11Backend creates an unconnected X11 backend.
func NewX11Backend() *X11Backend {
	return &X11Backend{log: logger.WithComponent("window")}
}

// Connect opens the display named by $DISPLAY and starts the event loop.
func (b *X11Backend) Connect() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		return nil
	}

	xu, err := xgbutil.NewConn()
	if err != nil {
		return fmt.Errorf("failed to connect to X server: %w", err)
	}
	b.xu = xu
	b.loopEnd = make(chan struct{})
	b.running = true

	go func() {
		defer close(b.loopEnd)
		xevent.Main(xu)
	}()

	screen := xu.Screen()
	b.log.Info().
		Uint16("screen_width", screen.WidthInPixels).
		Uint16("screen_height", screen.HeightInPixels).
		Uint8("depth", screen.RootDepth).
		Msg("Connected to X server")
	return nil
}

// Close stops the event loop and closes the X connection.
func (b *X11Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.running {
		return nil
	}
	b.running = false

	xevent.Quit(b.xu)
	b.xu.Conn().Close()
	<-b.loopEnd
	return nil
}

// Name returns the backend name
func (b *X11Backend) Name() string {
	return "x11"
}

// CreateSurface creates a hidden, resizable top-level window that asks the
// window manager to keep it above other windows.
func (b *X11Backend) CreateSurface(opts pip.SurfaceOptions, events pip.SurfaceEvents) (pip.Surface, error) {
	b.mu.Lock()
	running := b.running
	b.mu.Unlock()
	if !running {
		return nil, fmt.Errorf("x11 backend not connected")
	}

	win, err := xwindow.Generate(b.xu)
	if err != nil {
		return nil, fmt.Errorf("failed to create window ID: %w", err)
	}

	// Value list order follows the mask bits: back pixel, then event mask.
	err = win.CreateChecked(
		b.xu.RootWin(),
		0, 0,
		opts.Size.Width, opts.Size.Height,
		xproto.CwBackPixel|xproto.CwEventMask,
		0x000000,
		xproto.EventMaskExposure|xproto.EventMaskStructureNotify,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create window: %w", err)
	}

	s := &x11Surface{
		xu:     b.xu,
		win:    win,
		events: events,
		log:    b.log,
	}

	if err := s.decorate(opts); err != nil {
		win.Destroy()
		return nil, err
	}

	// The window manager's close button sends WM_DELETE_WINDOW; the window
	// is kept and the controller decides what to do.
	win.WMGracefulClose(func(w *xwindow.Window) {
		events.CloseRequested()
	})

	xevent.ConfigureNotifyFun(func(xu *xgbutil.XUtil, ev xevent.ConfigureNotifyEvent) {
		events.Resized(pip.Size{Width: int(ev.Width), Height: int(ev.Height)})
	}).Connect(b.xu, win.Id)

	xevent.ExposeFun(func(xu *xgbutil.XUtil, ev xevent.ExposeEvent) {
		// only the last event of an expose burst triggers a repaint
		if ev.Count == 0 {
			events.Exposed()
		}
	}).Connect(b.xu, win.Id)

	b.log.Debug().
		Str("backend", "x11").
		Uint32("window_id", uint32(win.Id)).
		Str("size", opts.Size.String()).
		Msg("Surface created")
	return s, nil
}

type x11Surface struct {
	xu     *xgbutil.XUtil
	win    *xwindow.Window
	events pip.SurfaceEvents
	log    *zerolog.Logger

	img *xgraphics.Image
}

// decorate sets the properties that make the window a PiP overlay: title,
// class, utility type, always-on-top state, aspect hints and opacity.
func (s *x11Surface) decorate(opts pip.SurfaceOptions) error {
	id := s.win.Id

	if err := ewmh.WmNameSet(s.xu, id, opts.Title); err != nil {
		return fmt.Errorf("failed to set window title: %w", err)
	}
	if err := icccm.WmNameSet(s.xu, id, opts.Title); err != nil {
		s.log.Warn().Err(err).Msg("Failed to set WM_NAME")
	}
	if err := icccm.WmClassSet(s.xu, id, &icccm.WmClass{Instance: "pipd", Class: "Pipd"}); err != nil {
		s.log.Warn().Err(err).Msg("Failed to set window class")
	}
	if err := ewmh.WmWindowTypeSet(s.xu, id, []string{"_NET_WM_WINDOW_TYPE_UTILITY"}); err != nil {
		s.log.Warn().Err(err).Msg("Failed to set window type")
	}
	if err := s.setAbove(); err != nil {
		return err
	}
	if err := s.SetAspectRatio(opts.AspectRatio); err != nil {
		return err
	}
	return s.SetOpacity(opts.Opacity)
}

// setAbove writes _NET_WM_STATE before mapping. Window managers drop the
// state when a window is withdrawn, so it is written again on every Show.
func (s *x11Surface) setAbove() error {
	if err := ewmh.WmStateSet(s.xu, s.win.Id, []string{"_NET_WM_STATE_ABOVE", "_NET_WM_STATE_SKIP_TASKBAR"}); err != nil {
		return fmt.Errorf("failed to set always-on-top state: %w", err)
	}
	return nil
}

func (s *x11Surface) Show(center bool) error {
	if err := s.setAbove(); err != nil {
		return err
	}
	if center {
		size, err := s.Size()
		if err != nil {
			return err
		}
		screen := s.xu.Screen()
		origin := pip.CenteredOrigin(pip.Size{
			Width:  int(screen.WidthInPixels),
			Height: int(screen.HeightInPixels),
		}, size)
		s.win.Move(origin.X, origin.Y)
	}
	s.win.Map()
	return nil
}

func (s *x11Surface) Hide() error {
	s.win.Unmap()
	return nil
}

func (s *x11Surface) Size() (pip.Size, error) {
	geom, err := xproto.GetGeometry(s.xu.Conn(), xproto.Drawable(s.win.Id)).Reply()
	if err != nil {
		return pip.Size{}, fmt.Errorf("failed to get window geometry: %w", err)
	}
	return pip.Size{Width: int(geom.Width), Height: int(geom.Height)}, nil
}

// Resize changes width and height only, so the top-left corner stays put.
func (s *x11Surface) Resize(size pip.Size) error {
	s.win.Resize(size.Width, size.Height)
	return nil
}

// SetAspectRatio publishes WM_NORMAL_HINTS with equal min and max aspect so
// the window manager constrains interactive resizes.
func (s *x11Surface) SetAspectRatio(r pip.AspectRatio) error {
	if err := icccm.WmNormalHintsSet(s.xu, s.win.Id, aspectHints(r)); err != nil {
		return fmt.Errorf("failed to set aspect hints: %w", err)
	}
	return nil
}

// aspectHints builds WM_NORMAL_HINTS that pin the aspect ratio. Both terms
// of a stored ratio are positive.
func aspectHints(r pip.AspectRatio) *icccm.NormalHints {
	return &icccm.NormalHints{
		Flags:        uint(icccm.SizeHintPAspect),
		MinAspectNum: uint(r.Num),
		MinAspectDen: uint(r.Den),
		MaxAspectNum: uint(r.Num),
		MaxAspectDen: uint(r.Den),
	}
}

// SetOpacity uses _NET_WM_WINDOW_OPACITY, which a compositing manager turns
// into window-level alpha.
func (s *x11Surface) SetOpacity(alpha uint8) error {
	if err := ewmh.WmWindowOpacitySet(s.xu, s.win.Id, float64(alpha)/255); err != nil {
		return fmt.Errorf("failed to set window opacity: %w", err)
	}
	return nil
}

// Present converts the frame into a server-side pixmap and makes it the
// window background, so later exposures are repainted by the server.
func (s *x11Surface) Present(frame *image.RGBA) error {
	img := xgraphics.NewConvert(s.xu, frame)
	if err := img.XSurfaceSet(s.win.Id); err != nil {
		img.Destroy()
		return fmt.Errorf("failed to create window pixmap: %w", err)
	}
	img.XDraw()
	img.XPaint(s.win.Id)

	if s.img != nil {
		s.img.Destroy()
	}
	s.img = img
	return nil
}

// Destroy releases the window and then the pixmap it was painted from.
func (s *x11Surface) Destroy() error {
	s.win.Destroy()
	if s.img != nil {
		s.img.Destroy()
		s.img = nil
	}
	return nil
}
