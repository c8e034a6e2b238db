//go:build windows

package window

import (
	"errors"
	"fmt"
	"image"
	"runtime"
	"sync"
	"unsafe"

	"github.com/rs/zerolog"
	"github.com/sunbird89629/pip-plugin/internal/logger"
	"github.com/sunbird89629/pip-plugin/internal/pip"
	"golang.org/x/sys/windows"
)

func init() {
	Register("win32", func() Backend { return NewWin32Backend() })
}

var (
	user32   = windows.NewLazySystemDLL("user32.dll")
	gdi32    = windows.NewLazySystemDLL("gdi32.dll")
	kernel32 = windows.NewLazySystemDLL("kernel32.dll")

	procRegisterClassExW           = user32.NewProc("RegisterClassExW")
	procCreateWindowExW            = user32.NewProc("CreateWindowExW")
	procDefWindowProcW             = user32.NewProc("DefWindowProcW")
	procDestroyWindow              = user32.NewProc("DestroyWindow")
	procShowWindow                 = user32.NewProc("ShowWindow")
	procSetWindowPos               = user32.NewProc("SetWindowPos")
	procGetClientRect              = user32.NewProc("GetClientRect")
	procGetWindowRect              = user32.NewProc("GetWindowRect")
	procAdjustWindowRectEx         = user32.NewProc("AdjustWindowRectEx")
	procInvalidateRect             = user32.NewProc("InvalidateRect")
	procBeginPaint                 = user32.NewProc("BeginPaint")
	procEndPaint                   = user32.NewProc("EndPaint")
	procGetMessageW                = user32.NewProc("GetMessageW")
	procPeekMessageW               = user32.NewProc("PeekMessageW")
	procTranslateMessage           = user32.NewProc("TranslateMessage")
	procDispatchMessageW           = user32.NewProc("DispatchMessageW")
	procPostThreadMessageW         = user32.NewProc("PostThreadMessageW")
	procPostQuitMessage            = user32.NewProc("PostQuitMessage")
	procSetLayeredWindowAttributes = user32.NewProc("SetLayeredWindowAttributes")
	procGetSystemMetrics           = user32.NewProc("GetSystemMetrics")
	procLoadCursorW                = user32.NewProc("LoadCursorW")
	procSetDIBitsToDevice          = gdi32.NewProc("SetDIBitsToDevice")
	procGetModuleHandleW           = kernel32.NewProc("GetModuleHandleW")
)

const (
	wsOverlappedWindow = 0x00CF0000
	wsExTopmost        = 0x00000008
	wsExToolWindow     = 0x00000080
	wsExLayered        = 0x00080000

	swHide           = 0
	swShowNoActivate = 4

	swpNoSize     = 0x0001
	swpNoMove     = 0x0002
	swpNoZOrder   = 0x0004
	swpNoActivate = 0x0010

	wmDestroy    = 0x0002
	wmSize       = 0x0005
	wmPaint      = 0x000F
	wmClose      = 0x0010
	wmEraseBkgnd = 0x0014
	wmSizing     = 0x0214
	wmUser       = 0x0400
	wmInvoke     = wmUser + 1

	sizeMinimized = 1

	lwaAlpha = 0x00000002

	smCxScreen = 0
	smCyScreen = 1

	idcArrow = 32512

	pmNoRemove = 0x0000

	biRGB        = 0
	dibRGBColors = 0

	className = "PipdOverlayWindow"
	style     = wsOverlappedWindow
	exStyle   = wsExTopmost | wsExToolWindow | wsExLayered
)

var hwndTopmost = ^uintptr(0) // (HWND)-1

type wndClassExW struct {
	CbSize        uint32
	Style         uint32
	LpfnWndProc   uintptr
	CbClsExtra    int32
	CbWndExtra    int32
	HInstance     uintptr
	HIcon         uintptr
	HCursor       uintptr
	HbrBackground uintptr
	LpszMenuName  *uint16
	LpszClassName *uint16
	HIconSm       uintptr
}

type winMsg struct {
	Hwnd    uintptr
	Message uint32
	WParam  uintptr
	LParam  uintptr
	Time    uint32
	Pt      struct{ X, Y int32 }
}

type paintStruct struct {
	Hdc         uintptr
	FErase      int32
	RcPaint     windows.Rect
	FRestore    int32
	FIncUpdate  int32
	RgbReserved [32]byte
}

type bitmapInfoHeader struct {
	BiSize          uint32
	BiWidth         int32
	BiHeight        int32
	BiPlanes        uint16
	BiBitCount      uint16
	BiCompression   uint32
	BiSizeImage     uint32
	BiXPelsPerMeter int32
	BiYPelsPerMeter int32
	BiClrUsed       uint32
	BiClrImportant  uint32
}

// surfaces maps window handles to their surface for the window procedure.
var (
	surfacesMu sync.Mutex
	surfaces   = map[uintptr]*win32Surface{}

	wndProcOnce sync.Once
	wndProcPtr  uintptr
)

// Win32Backend runs a message pump on a dedicated, locked OS thread. Every
// window call is marshalled onto that thread, because Win32 windows belong
// to the thread that created them.
type Win32Backend struct {
	log *zerolog.Logger

	mu       sync.Mutex
	running  bool
	threadID uint32
	calls    []func()
	stopped  chan struct{}
}

// NewWin32Backend creates an unconnected Win32 backend.
func NewWin32Backend() *Win32Backend {
	return &Win32Backend{log: logger.WithComponent("window")}
}

func (b *Win32Backend) Name() string { return "win32" }

// Connect starts the window thread and registers the window class.
func (b *Win32Backend) Connect() error {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()

	ready := make(chan error, 1)
	b.stopped = make(chan struct{})
	go b.pump(ready)
	if err := <-ready; err != nil {
		return err
	}

	b.mu.Lock()
	b.running = true
	b.mu.Unlock()
	b.log.Info().Uint32("thread_id", b.threadID).Msg("Win32 window thread started")
	return nil
}

// Close stops the message pump.
func (b *Win32Backend) Close() error {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return nil
	}
	b.running = false
	b.mu.Unlock()

	procPostThreadMessageW.Call(uintptr(b.threadID), wmInvoke, 0, 1)
	<-b.stopped
	return nil
}

func (b *Win32Backend) pump(ready chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(b.stopped)

	b.threadID = windows.GetCurrentThreadId()

	// force creation of the thread message queue before anyone posts to it
	var msg winMsg
	procPeekMessageW.Call(uintptr(unsafe.Pointer(&msg)), 0, wmUser, wmUser, pmNoRemove)

	if err := registerClass(); err != nil {
		ready <- err
		return
	}
	ready <- nil

	for {
		ret, _, _ := procGetMessageW.Call(uintptr(unsafe.Pointer(&msg)), 0, 0, 0)
		if ret == 0 || int32(ret) == -1 {
			return
		}
		if msg.Hwnd == 0 && msg.Message == wmInvoke {
			b.drain()
			if msg.LParam == 1 {
				procPostQuitMessage.Call(0)
			}
			continue
		}
		procTranslateMessage.Call(uintptr(unsafe.Pointer(&msg)))
		procDispatchMessageW.Call(uintptr(unsafe.Pointer(&msg)))
	}
}

func (b *Win32Backend) drain() {
	b.mu.Lock()
	calls := b.calls
	b.calls = nil
	b.mu.Unlock()

	for _, f := range calls {
		f()
	}
}

// invoke runs f on the window thread and waits for it.
func (b *Win32Backend) invoke(f func() error) error {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return errors.New("win32 backend not running")
	}
	done := make(chan error, 1)
	b.calls = append(b.calls, func() { done <- f() })
	threadID := b.threadID
	b.mu.Unlock()

	ret, _, err := procPostThreadMessageW.Call(uintptr(threadID), wmInvoke, 0, 0)
	if ret == 0 {
		return fmt.Errorf("post to window thread: %w", err)
	}
	return <-done
}

func registerClass() error {
	wndProcOnce.Do(func() {
		wndProcPtr = windows.NewCallback(wndProc)
	})

	hInstance, _, _ := procGetModuleHandleW.Call(0)
	name, err := windows.UTF16PtrFromString(className)
	if err != nil {
		return err
	}
	cursor, _, _ := procLoadCursorW.Call(0, idcArrow)

	wc := wndClassExW{
		LpfnWndProc:   wndProcPtr,
		HInstance:     hInstance,
		HCursor:       cursor,
		LpszClassName: name,
	}
	wc.CbSize = uint32(unsafe.Sizeof(wc))

	// a second registration in the same process fails harmlessly
	procRegisterClassExW.Call(uintptr(unsafe.Pointer(&wc)))
	return nil
}

// CreateSurface implements pip.SurfaceFactory.
func (b *Win32Backend) CreateSurface(opts pip.SurfaceOptions, events pip.SurfaceEvents) (pip.Surface, error) {
	s := &win32Surface{backend: b, events: events, ratio: opts.AspectRatio}

	err := b.invoke(func() error {
		frameW, frameH := frameExtents()
		s.frameW, s.frameH = frameW, frameH

		hInstance, _, _ := procGetModuleHandleW.Call(0)
		cls, _ := windows.UTF16PtrFromString(className)
		title, err := windows.UTF16PtrFromString(opts.Title)
		if err != nil {
			return err
		}

		hwnd, _, callErr := procCreateWindowExW.Call(
			exStyle,
			uintptr(unsafe.Pointer(cls)),
			uintptr(unsafe.Pointer(title)),
			style,
			0, 0,
			uintptr(opts.Size.Width+frameW), uintptr(opts.Size.Height+frameH),
			0, 0, hInstance, 0,
		)
		if hwnd == 0 {
			return fmt.Errorf("CreateWindowExW: %w", callErr)
		}
		s.hwnd = hwnd

		surfacesMu.Lock()
		surfaces[hwnd] = s
		surfacesMu.Unlock()

		// layered windows stay invisible until their attributes are set
		return s.setOpacity(opts.Opacity)
	})
	if err != nil {
		return nil, err
	}

	b.log.Debug().
		Str("backend", "win32").
		Uint64("hwnd", uint64(s.hwnd)).
		Str("size", opts.Size.String()).
		Msg("Surface created")
	return s, nil
}

// frameExtents returns how much wider and taller the window rectangle is
// than its client area for the PiP window style.
func frameExtents() (int, int) {
	var r windows.Rect
	procAdjustWindowRectEx.Call(uintptr(unsafe.Pointer(&r)), style, 0, exStyle)
	return int(r.Right - r.Left), int(r.Bottom - r.Top)
}

type win32Surface struct {
	backend *Win32Backend
	events  pip.SurfaceEvents
	hwnd    uintptr

	frameW, frameH int

	mu     sync.Mutex
	ratio  pip.AspectRatio
	pixels []byte
	pixW   int
	pixH   int
}

func (s *win32Surface) Show(center bool) error {
	return s.backend.invoke(func() error {
		if center {
			var r windows.Rect
			procGetWindowRect.Call(s.hwnd, uintptr(unsafe.Pointer(&r)))
			cx, _, _ := procGetSystemMetrics.Call(smCxScreen)
			cy, _, _ := procGetSystemMetrics.Call(smCyScreen)
			origin := pip.CenteredOrigin(
				pip.Size{Width: int(cx), Height: int(cy)},
				pip.Size{Width: int(r.Right - r.Left), Height: int(r.Bottom - r.Top)},
			)
			procSetWindowPos.Call(s.hwnd, hwndTopmost, uintptr(origin.X), uintptr(origin.Y), 0, 0, swpNoSize|swpNoActivate)
		}
		procShowWindow.Call(s.hwnd, swShowNoActivate)
		return nil
	})
}

func (s *win32Surface) Hide() error {
	return s.backend.invoke(func() error {
		procShowWindow.Call(s.hwnd, swHide)
		return nil
	})
}

func (s *win32Surface) Size() (pip.Size, error) {
	var size pip.Size
	err := s.backend.invoke(func() error {
		var r windows.Rect
		ret, _, err := procGetClientRect.Call(s.hwnd, uintptr(unsafe.Pointer(&r)))
		if ret == 0 {
			return fmt.Errorf("GetClientRect: %w", err)
		}
		size = pip.Size{Width: int(r.Right - r.Left), Height: int(r.Bottom - r.Top)}
		return nil
	})
	return size, err
}

func (s *win32Surface) Resize(size pip.Size) error {
	return s.backend.invoke(func() error {
		ret, _, err := procSetWindowPos.Call(s.hwnd, 0, 0, 0,
			uintptr(size.Width+s.frameW), uintptr(size.Height+s.frameH),
			swpNoMove|swpNoZOrder|swpNoActivate)
		if ret == 0 {
			return fmt.Errorf("SetWindowPos: %w", err)
		}
		return nil
	})
}

// SetAspectRatio stores the ratio used by the WM_SIZING handler.
func (s *win32Surface) SetAspectRatio(r pip.AspectRatio) error {
	s.mu.Lock()
	s.ratio = r
	s.mu.Unlock()
	return nil
}

func (s *win32Surface) SetOpacity(alpha uint8) error {
	return s.backend.invoke(func() error {
		return s.setOpacity(alpha)
	})
}

func (s *win32Surface) setOpacity(alpha uint8) error {
	ret, _, err := procSetLayeredWindowAttributes.Call(s.hwnd, 0, uintptr(alpha), lwaAlpha)
	if ret == 0 {
		return fmt.Errorf("SetLayeredWindowAttributes: %w", err)
	}
	return nil
}

// Present keeps a BGRA copy of the frame for WM_PAINT and invalidates the
// window.
func (s *win32Surface) Present(frame *image.RGBA) error {
	b := frame.Bounds()
	w, h := b.Dx(), b.Dy()
	pixels := make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		src := frame.Pix[y*frame.Stride : y*frame.Stride+w*4]
		dst := pixels[y*w*4 : (y+1)*w*4]
		for x := 0; x < w*4; x += 4 {
			dst[x] = src[x+2]
			dst[x+1] = src[x+1]
			dst[x+2] = src[x]
			dst[x+3] = 0xff
		}
	}

	s.mu.Lock()
	s.pixels, s.pixW, s.pixH = pixels, w, h
	s.mu.Unlock()

	return s.backend.invoke(func() error {
		procInvalidateRect.Call(s.hwnd, 0, 0)
		return nil
	})
}

func (s *win32Surface) Destroy() error {
	return s.backend.invoke(func() error {
		ret, _, err := procDestroyWindow.Call(s.hwnd)
		surfacesMu.Lock()
		delete(surfaces, s.hwnd)
		surfacesMu.Unlock()
		if ret == 0 {
			return fmt.Errorf("DestroyWindow: %w", err)
		}
		return nil
	})
}

func (s *win32Surface) paint(hwnd uintptr) {
	var ps paintStruct
	hdc, _, _ := procBeginPaint.Call(hwnd, uintptr(unsafe.Pointer(&ps)))
	defer procEndPaint.Call(hwnd, uintptr(unsafe.Pointer(&ps)))

	s.mu.Lock()
	pixels, w, h := s.pixels, s.pixW, s.pixH
	s.mu.Unlock()
	if len(pixels) == 0 {
		return
	}

	bih := bitmapInfoHeader{
		BiWidth:       int32(w),
		BiHeight:      -int32(h), // top-down rows
		BiPlanes:      1,
		BiBitCount:    32,
		BiCompression: biRGB,
	}
	bih.BiSize = uint32(unsafe.Sizeof(bih))

	procSetDIBitsToDevice.Call(
		hdc,
		0, 0,
		uintptr(w), uintptr(h),
		0, 0,
		0, uintptr(h),
		uintptr(unsafe.Pointer(&pixels[0])),
		uintptr(unsafe.Pointer(&bih)),
		dibRGBColors,
	)
}

// constrainSizing rewrites the in-progress window rectangle of a WM_SIZING
// message so the client area keeps the aspect ratio. The top-left corner is
// left untouched.
func (s *win32Surface) constrainSizing(r *windows.Rect) {
	s.mu.Lock()
	ratio := s.ratio
	s.mu.Unlock()

	client := pip.Size{
		Width:  int(r.Right-r.Left) - s.frameW,
		Height: int(r.Bottom-r.Top) - s.frameH,
	}
	want := pip.ConstrainSize(client, ratio)
	r.Right = r.Left + int32(want.Width+s.frameW)
	r.Bottom = r.Top + int32(want.Height+s.frameH)
}

func lookupSurface(hwnd uintptr) *win32Surface {
	surfacesMu.Lock()
	defer surfacesMu.Unlock()
	return surfaces[hwnd]
}

func wndProc(hwnd, msg, wParam, lParam uintptr) uintptr {
	s := lookupSurface(hwnd)
	if s == nil {
		ret, _, _ := procDefWindowProcW.Call(hwnd, msg, wParam, lParam)
		return ret
	}

	switch msg {
	case wmClose:
		// never let DefWindowProc destroy the window
		s.events.CloseRequested()
		return 0

	case wmSizing:
		// lParam is a RECT owned by the system for the duration of this call;
		// it is not Go memory and is not retained after return.
		s.constrainSizing((*windows.Rect)(unsafe.Pointer(lParam)))
		return 1

	case wmSize:
		if wParam != sizeMinimized {
			s.events.Resized(pip.Size{
				Width:  int(lParam & 0xffff),
				Height: int((lParam >> 16) & 0xffff),
			})
		}
		return 0

	case wmEraseBkgnd:
		return 1

	case wmPaint:
		s.paint(hwnd)
		return 0

	case wmDestroy:
		return 0
	}

	ret, _, _ := procDefWindowProcW.Call(hwnd, msg, wParam, lParam)
	return ret
}
