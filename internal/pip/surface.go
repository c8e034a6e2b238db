package pip

import "image"

// Surface is a native top-level window owned by the Controller.
//
// Implementations are called only from the UI thread. They must never destroy
// the window on their own: a close request from the window chrome is
// reported through SurfaceEvents.CloseRequested and the window stays alive
// until Destroy.
type Surface interface {
	// Show maps the window. When center is true it is first moved to the
	// middle of its screen.
	Show(center bool) error

	// Hide unmaps the window without releasing it.
	Hide() error

	// Size returns the current client area size.
	Size() (Size, error)

	// Resize changes the client area, keeping the top-left corner in place.
	Resize(Size) error

	// SetAspectRatio publishes the ratio to the window system so live
	// resizing can be constrained where the platform supports it.
	SetAspectRatio(AspectRatio) error

	// SetOpacity applies window-level translucency (255 = opaque).
	SetOpacity(alpha uint8) error

	// Present copies a rendered frame to the window.
	Present(frame *image.RGBA) error

	// Destroy releases the native window. The surface is unusable afterwards.
	Destroy() error
}

// SurfaceOptions describe the window created at setup.
type SurfaceOptions struct {
	Title       string
	Size        Size
	AspectRatio AspectRatio
	Opacity     uint8
}

// SurfaceEvents receives window-system events. Backends may call these from
// their own goroutine; the plugin routes them onto the UI thread before they
// reach the Controller.
type SurfaceEvents interface {
	CloseRequested()
	Resized(Size)
	Exposed()
}

// SurfaceFactory creates the native window for a toolkit.
type SurfaceFactory interface {
	CreateSurface(opts SurfaceOptions, events SurfaceEvents) (Surface, error)
}

// Renderer paints a configuration into a frame of the given size.
type Renderer interface {
	Render(cfg Configuration, size Size) (*image.RGBA, error)
	Close() error
}

// Notifier carries outbound events to the host. Notify must not block.
type Notifier interface {
	Notify(method string, payload any)
}

// NotifyPipStopped is sent with payload true whenever the window is hidden by
// the user or by Stop.
const NotifyPipStopped = "pipStopped"
