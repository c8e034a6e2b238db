package pip

import (
	"errors"
	"image"
	"testing"
)

// calls records the order of side effects across fakes.
type calls []string

func (c *calls) add(s string) { *c = append(*c, s) }

type fakeSurface struct {
	log *calls

	opts      SurfaceOptions
	size      Size
	ratio     AspectRatio
	opacity   uint8
	visible   bool
	destroyed bool

	shows    int
	centered int
	hides    int
	resizes  []Size
	presents int
	frame    *image.RGBA

	presentErr error
}

func (s *fakeSurface) Show(center bool) error {
	s.log.add("show")
	s.shows++
	if center {
		s.centered++
	}
	s.visible = true
	return nil
}

func (s *fakeSurface) Hide() error {
	s.log.add("hide")
	s.hides++
	s.visible = false
	return nil
}

func (s *fakeSurface) Size() (Size, error) { return s.size, nil }

func (s *fakeSurface) Resize(size Size) error {
	s.log.add("resize")
	s.size = size
	s.resizes = append(s.resizes, size)
	return nil
}

func (s *fakeSurface) SetAspectRatio(r AspectRatio) error {
	s.ratio = r
	return nil
}

func (s *fakeSurface) SetOpacity(alpha uint8) error {
	s.opacity = alpha
	return nil
}

func (s *fakeSurface) Present(frame *image.RGBA) error {
	if s.presentErr != nil {
		return s.presentErr
	}
	s.log.add("present")
	s.presents++
	s.frame = frame
	return nil
}

func (s *fakeSurface) Destroy() error {
	s.log.add("destroy")
	s.destroyed = true
	return nil
}

type fakeFactory struct {
	log      *calls
	err      error
	surfaces []*fakeSurface
	events   SurfaceEvents
}

func (f *fakeFactory) CreateSurface(opts SurfaceOptions, events SurfaceEvents) (Surface, error) {
	if f.err != nil {
		return nil, f.err
	}
	s := &fakeSurface{
		log:     f.log,
		opts:    opts,
		size:    opts.Size,
		ratio:   opts.AspectRatio,
		opacity: opts.Opacity,
	}
	f.surfaces = append(f.surfaces, s)
	f.events = events
	return s, nil
}

func (f *fakeFactory) last() *fakeSurface {
	return f.surfaces[len(f.surfaces)-1]
}

type fakeRenderer struct {
	log     *calls
	renders []Configuration
	closed  bool
}

func (r *fakeRenderer) Render(cfg Configuration, size Size) (*image.RGBA, error) {
	r.log.add("render")
	r.renders = append(r.renders, cfg)
	return image.NewRGBA(image.Rect(0, 0, size.Width, size.Height)), nil
}

func (r *fakeRenderer) Close() error {
	r.log.add("renderer.close")
	r.closed = true
	return nil
}

func (r *fakeRenderer) last() Configuration {
	return r.renders[len(r.renders)-1]
}

type fakeNotifier struct {
	methods  []string
	payloads []any
}

func (n *fakeNotifier) Notify(method string, payload any) {
	n.methods = append(n.methods, method)
	n.payloads = append(n.payloads, payload)
}

type harness struct {
	log      *calls
	factory  *fakeFactory
	renderer *fakeRenderer
	notifier *fakeNotifier
	ctrl     *Controller
}

func newHarness() *harness {
	log := &calls{}
	h := &harness{
		log:      log,
		factory:  &fakeFactory{log: log},
		renderer: &fakeRenderer{log: log},
		notifier: &fakeNotifier{},
	}
	h.ctrl = NewController(h.factory, h.renderer, h.notifier)
	return h
}

func mustSetup(t *testing.T, h *harness, args map[string]any) *fakeSurface {
	t.Helper()
	p, _ := DecodePatch(args)
	if err := h.ctrl.Setup(p); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	return h.factory.last()
}

func TestSetupCreatesHiddenWindowWithDerivedSize(t *testing.T) {
	h := newHarness()
	s := mustSetup(t, h, map[string]any{"ratio": []any{4.0, 3.0}, "text": "Live"})

	if s.size != (Size{240, 180}) {
		t.Fatalf("size=%s, want 240x180", s.size)
	}
	if s.opts.Title != DefaultWindowTitle {
		t.Fatalf("title=%q, want %q", s.opts.Title, DefaultWindowTitle)
	}
	if s.opacity != DefaultBackgroundColor.A {
		t.Fatalf("opacity=%d, want %d", s.opacity, DefaultBackgroundColor.A)
	}
	if s.visible || s.shows != 0 {
		t.Fatalf("window shown by Setup")
	}
	if s.presents != 1 {
		t.Fatalf("presents=%d, want 1", s.presents)
	}
	if got := h.renderer.last().Text; got != "Live" {
		t.Fatalf("rendered text=%q, want Live", got)
	}
	if !h.ctrl.Ready() || h.ctrl.Visible() {
		t.Fatalf("Ready=%v Visible=%v, want true false", h.ctrl.Ready(), h.ctrl.Visible())
	}
}

func TestSetupRejectsNonPositiveRatio(t *testing.T) {
	for _, ratio := range [][]any{{0.0, 5.0}, {5.0, 0.0}, {-4.0, 3.0}} {
		h := newHarness()
		s := mustSetup(t, h, map[string]any{"ratio": ratio})
		if s.size != (Size{320, 180}) {
			t.Fatalf("ratio %v: size=%s, want default 320x180", ratio, s.size)
		}
		cfg, _ := h.ctrl.Configuration()
		if cfg.AspectRatio != DefaultAspectRatio {
			t.Fatalf("ratio %v: stored %s, want 16:9", ratio, cfg.AspectRatio)
		}
	}
}

func TestSetupSkipsMalformedFields(t *testing.T) {
	h := newHarness()
	mustSetup(t, h, map[string]any{
		"backgroundColor": []any{1.0, 2.0},
		"textColor":       []any{9.0, 8.0, 7.0},
		"textSize":        "big",
	})

	cfg, _ := h.ctrl.Configuration()
	if cfg.BackgroundColor != DefaultBackgroundColor {
		t.Fatalf("backgroundColor=%v, want default", cfg.BackgroundColor)
	}
	if cfg.TextColor != (RGBA{9, 8, 7, 255}) {
		t.Fatalf("textColor=%v, want {9 8 7 255}", cfg.TextColor)
	}
	if cfg.TextSize != DefaultTextSize {
		t.Fatalf("textSize=%v, want default", cfg.TextSize)
	}
}

func TestOperationsBeforeSetup(t *testing.T) {
	h := newHarness()

	ops := map[string]func() error{
		"Start":      h.ctrl.Start,
		"Stop":       h.ctrl.Stop,
		"UpdateText": func() error { return h.ctrl.UpdateText("x") },
		"Update":     func() error { return h.ctrl.Update(Patch{}) },
	}
	for name, op := range ops {
		if err := op(); !errors.Is(err, ErrNotReady) {
			t.Fatalf("%s err=%v, want ErrNotReady", name, err)
		}
	}

	// window events without a window are ignored
	h.ctrl.HandleCloseRequest()
	h.ctrl.HandleResize(Size{10, 10})
	h.ctrl.HandleExpose()

	if len(h.notifier.methods) != 0 {
		t.Fatalf("notifications=%v, want none", h.notifier.methods)
	}
	if len(h.factory.surfaces) != 0 {
		t.Fatalf("surfaces created without Setup")
	}
}

func TestSetupFailureKeepsNoInstance(t *testing.T) {
	h := newHarness()
	h.factory.err = errors.New("no display")

	err := h.ctrl.Setup(Patch{})
	if !errors.Is(err, ErrResourceCreation) {
		t.Fatalf("err=%v, want ErrResourceCreation", err)
	}
	if h.ctrl.Ready() {
		t.Fatalf("Ready after failed Setup")
	}
	if err := h.ctrl.Start(); !errors.Is(err, ErrNotReady) {
		t.Fatalf("Start err=%v, want ErrNotReady", err)
	}

	h.factory.err = nil
	mustSetup(t, h, nil)
}

func TestSetupFirstFrameFailureDestroysWindow(t *testing.T) {
	h := newHarness()

	// the present error has to be in place before the first frame
	h.ctrl.factory = factoryFunc(func(opts SurfaceOptions, events SurfaceEvents) (Surface, error) {
		s, _ := h.factory.CreateSurface(opts, events)
		s.(*fakeSurface).presentErr = errors.New("lost connection")
		return s, nil
	})

	if err := h.ctrl.Setup(Patch{}); !errors.Is(err, ErrResourceCreation) {
		t.Fatalf("err=%v, want ErrResourceCreation", err)
	}
	if !h.factory.last().destroyed {
		t.Fatalf("half-initialized window was not destroyed")
	}
	if h.ctrl.Ready() {
		t.Fatalf("Ready after failed Setup")
	}
}

type factoryFunc func(SurfaceOptions, SurfaceEvents) (Surface, error)

func (f factoryFunc) CreateSurface(opts SurfaceOptions, events SurfaceEvents) (Surface, error) {
	return f(opts, events)
}

func TestSecondSetupReconfiguresExistingWindow(t *testing.T) {
	h := newHarness()
	s := mustSetup(t, h, map[string]any{
		"windowTitle": "First",
		"textColor":   []any{1.0, 2.0, 3.0},
		"ratio":       []any{4.0, 3.0},
	})
	if err := h.ctrl.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	mustSetup(t, h, map[string]any{"windowTitle": "Second", "text": "again"})

	if len(h.factory.surfaces) != 1 {
		t.Fatalf("surfaces=%d, want 1", len(h.factory.surfaces))
	}
	cfg, _ := h.ctrl.Configuration()
	if cfg.WindowTitle != "First" {
		t.Fatalf("title=%q, want First", cfg.WindowTitle)
	}
	if cfg.TextColor != DefaultTextColor {
		t.Fatalf("textColor=%v, want reset to default", cfg.TextColor)
	}
	if cfg.Text != "again" {
		t.Fatalf("text=%q, want again", cfg.Text)
	}
	if s.size != (Size{320, 180}) {
		t.Fatalf("size=%s, want 320x180", s.size)
	}
	if !h.ctrl.Visible() || !s.visible {
		t.Fatalf("visibility changed by Setup")
	}
}

func TestStartIsIdempotentAndCentersOnce(t *testing.T) {
	h := newHarness()
	s := mustSetup(t, h, nil)

	for i := 0; i < 3; i++ {
		if err := h.ctrl.Start(); err != nil {
			t.Fatalf("Start #%d: %v", i, err)
		}
	}
	if s.shows != 1 {
		t.Fatalf("shows=%d, want 1", s.shows)
	}

	if err := h.ctrl.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := h.ctrl.Start(); err != nil {
		t.Fatalf("Start after Stop: %v", err)
	}
	if s.shows != 2 || s.centered != 1 {
		t.Fatalf("shows=%d centered=%d, want 2 1", s.shows, s.centered)
	}
}

func TestStopAlwaysNotifies(t *testing.T) {
	h := newHarness()
	s := mustSetup(t, h, nil)

	if err := h.ctrl.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := h.ctrl.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}

	if len(h.notifier.methods) != 2 {
		t.Fatalf("notifications=%d, want 2", len(h.notifier.methods))
	}
	for i, m := range h.notifier.methods {
		if m != NotifyPipStopped || h.notifier.payloads[i] != true {
			t.Fatalf("notification %d = %s(%v), want pipStopped(true)", i, m, h.notifier.payloads[i])
		}
	}
	if s.hides != 0 {
		t.Fatalf("hides=%d, want 0 for a window that was never shown", s.hides)
	}
	if s.destroyed {
		t.Fatalf("Stop destroyed the window")
	}
}

func TestCloseRequestMirrorsStop(t *testing.T) {
	h := newHarness()
	s := mustSetup(t, h, nil)
	if err := h.ctrl.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	h.factory.events.CloseRequested()

	if h.ctrl.Visible() || s.visible {
		t.Fatalf("window still visible after close request")
	}
	if s.destroyed {
		t.Fatalf("close request destroyed the window")
	}
	if len(h.notifier.methods) != 1 || h.notifier.methods[0] != NotifyPipStopped {
		t.Fatalf("notifications=%v, want one pipStopped", h.notifier.methods)
	}

	if err := h.ctrl.Start(); err != nil {
		t.Fatalf("Start after close: %v", err)
	}
	if !s.visible || s.shows != 2 {
		t.Fatalf("visible=%v shows=%d, want true 2", s.visible, s.shows)
	}
}

func TestUpdateMergesStyleOnly(t *testing.T) {
	h := newHarness()
	mustSetup(t, h, map[string]any{"windowTitle": "T", "text": "caption", "textSize": 20.0})

	p, _ := DecodePatch(map[string]any{
		"windowTitle": "ignored",
		"text":        "ignored",
		"textColor":   []any{255.0, 0.0, 0.0},
		"textAlign":   "left",
	})
	if err := h.ctrl.Update(p); err != nil {
		t.Fatalf("Update: %v", err)
	}

	cfg, _ := h.ctrl.Configuration()
	want := DefaultConfiguration()
	want.WindowTitle = "T"
	want.Text = "caption"
	want.TextSize = 20
	want.TextColor = RGBA{255, 0, 0, 255}
	want.TextAlign = AlignLeft
	if cfg != want {
		t.Fatalf("configuration=%+v, want %+v", cfg, want)
	}
	if h.renderer.last() != want {
		t.Fatalf("last render used stale configuration")
	}
}

func TestUpdateRatioKeepsHeight(t *testing.T) {
	h := newHarness()
	s := mustSetup(t, h, nil)

	// user made the window bigger first
	s.size = Size{480, 270}
	h.factory.events.Resized(Size{480, 270})

	p, _ := DecodePatch(map[string]any{"ratio": []any{4.0, 3.0}})
	if err := h.ctrl.Update(p); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if s.size != (Size{360, 270}) {
		t.Fatalf("size=%s, want 360x270", s.size)
	}
	if s.ratio != (AspectRatio{4, 3}) {
		t.Fatalf("published ratio=%s, want 4:3", s.ratio)
	}

	resizes := len(s.resizes)
	p, _ = DecodePatch(map[string]any{"ratio": []any{0.0, 3.0}})
	if err := h.ctrl.Update(p); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(s.resizes) != resizes {
		t.Fatalf("invalid ratio resized the window")
	}
}

func TestUpdateRatioWidthIsBounded(t *testing.T) {
	h := newHarness()
	s := mustSetup(t, h, nil)

	s.size = Size{480, 270}
	h.factory.events.Resized(Size{480, 270})

	p, err := DecodePatch(map[string]any{"ratio": []any{90.0, 1.0}})
	if err != nil {
		t.Fatalf("DecodePatch: %v", err)
	}
	if err := h.ctrl.Update(p); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if s.size != (Size{MaxDimension, 270}) {
		t.Fatalf("size=%s, want %dx270", s.size, MaxDimension)
	}
}

func TestUpdateBackgroundAlphaSetsOpacity(t *testing.T) {
	h := newHarness()
	s := mustSetup(t, h, nil)

	p, _ := DecodePatch(map[string]any{"backgroundColor": []any{10.0, 10.0, 10.0}})
	if err := h.ctrl.Update(p); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if s.opacity != 255 {
		t.Fatalf("opacity=%d, want 255", s.opacity)
	}
}

func TestUpdateTextChangesOnlyText(t *testing.T) {
	h := newHarness()
	mustSetup(t, h, map[string]any{"textAlign": "right"})
	before, _ := h.ctrl.Configuration()

	if err := h.ctrl.UpdateText("hello"); err != nil {
		t.Fatalf("UpdateText: %v", err)
	}

	after, _ := h.ctrl.Configuration()
	before.Text = "hello"
	if after != before {
		t.Fatalf("configuration=%+v, want %+v", after, before)
	}
	if h.renderer.last().Text != "hello" {
		t.Fatalf("text not repainted")
	}
}

func TestHandleResizeConstrains(t *testing.T) {
	h := newHarness()
	s := mustSetup(t, h, nil)
	renders := len(h.renderer.renders)

	s.size = Size{320, 270}
	h.factory.events.Resized(Size{320, 270})

	if s.size != (Size{320, 180}) {
		t.Fatalf("size=%s, want 320x180", s.size)
	}
	if len(h.renderer.renders) != renders+1 {
		t.Fatalf("renders=%d, want %d", len(h.renderer.renders), renders+1)
	}

	// a resize to the size already drawn does not repaint
	h.factory.events.Resized(Size{320, 180})
	if len(h.renderer.renders) != renders+1 {
		t.Fatalf("repainted for an unchanged size")
	}
}

func TestHandleExposeRepresentsFrame(t *testing.T) {
	h := newHarness()
	s := mustSetup(t, h, nil)
	frame := s.frame
	renders := len(h.renderer.renders)

	h.factory.events.Exposed()

	if len(h.renderer.renders) != renders {
		t.Fatalf("expose re-rendered an up-to-date frame")
	}
	if s.presents != 2 || s.frame != frame {
		t.Fatalf("presents=%d, want the same frame presented twice", s.presents)
	}
}

func TestCloseDestroysWindowBeforeRenderer(t *testing.T) {
	h := newHarness()
	mustSetup(t, h, nil)

	if err := h.ctrl.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	log := *h.log
	if len(log) < 2 || log[len(log)-2] != "destroy" || log[len(log)-1] != "renderer.close" {
		t.Fatalf("teardown order=%v, want destroy then renderer.close", log)
	}
	if h.ctrl.Ready() {
		t.Fatalf("Ready after Close")
	}
	if err := h.ctrl.Start(); !errors.Is(err, ErrNotReady) {
		t.Fatalf("Start after Close err=%v, want ErrNotReady", err)
	}
}

func TestStatus(t *testing.T) {
	h := newHarness()
	if st := h.ctrl.Status(); st.Ready || st.Configuration != nil {
		t.Fatalf("Status before setup=%+v", st)
	}

	mustSetup(t, h, nil)
	if err := h.ctrl.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	st := h.ctrl.Status()
	if !st.Ready || !st.Visible || st.Size == nil || *st.Size != (Size{320, 180}) {
		t.Fatalf("Status=%+v", st)
	}
}
