package frame_test

import (
	"context"
	"errors"
	"image"
	"reflect"
	"strings"
	"testing"
	"time"

	"golang.org/x/mobile/event/lifecycle"
	"golang.org/x/mobile/event/mouse"
	"golang.org/x/mobile/event/paint"
	"golang.org/x/mobile/event/size"

	"handmade.dev/present/backbuf"
	"handmade.dev/present/backbuf/backbuftest"
	"handmade.dev/present/frame"
)

var closeEvent = lifecycle.Event{From: lifecycle.StageVisible, To: lifecycle.StageDead}

// script is a Display whose event queue is refilled one batch per
// drain. Once the batches run out it reports err, or a close.
type script struct {
	batches [][]interface{}
	err     error
	closed  int
}

func (d *script) Window() backbuf.Window { return 42 }

func (d *script) PollEvent() (interface{}, error) {
	if len(d.batches) == 0 {
		if d.err != nil {
			return nil, d.err
		}
		return closeEvent, nil
	}
	b := d.batches[0]
	if len(b) == 0 {
		d.batches = d.batches[1:]
		return nil, nil
	}
	d.batches[0] = b[1:]
	return b[0], nil
}

func (d *script) Close() error {
	d.closed++
	return nil
}

// recorder renders by touching every corner of the surface,
// which panics if the surface is smaller than it claims.
type recorder struct {
	sizes  []image.Point
	events []interface{}
}

func (r *recorder) Render(s *backbuf.Surface) {
	r.sizes = append(r.sizes, image.Pt(s.Width, s.Height))
	w, h := s.Width-1, s.Height-1
	for _, p := range []image.Point{{0, 0}, {w, 0}, {0, h}, {w, h}} {
		s.SetPixel(p.X, p.Y, backbuf.Pack(0xff, 0, 0))
	}
}

func (r *recorder) Handle(e interface{}) { r.events = append(r.events, e) }

func resize(w, h, x, y int) frame.Resize {
	return frame.Resize{Event: size.Event{WidthPx: w, HeightPx: h}, X: x, Y: y}
}

type harness struct {
	fake   *backbuftest.Fake
	disp   *script
	r      *recorder
	s      *frame.Scheduler
	states []frame.State
}

func newHarness(cfg *frame.Config, batches ...[]interface{}) *harness {
	h := &harness{
		fake: backbuftest.New(),
		disp: &script{batches: batches},
		r:    new(recorder),
	}
	if cfg == nil {
		cfg = new(frame.Config)
	}
	cfg.OnState = func(st frame.State) { h.states = append(h.states, st) }
	h.s = frame.New(h.disp, backbuf.New(h.fake, h.fake, nil), h.r, cfg)
	return h
}

func (h *harness) checkShutdown(t *testing.T) {
	t.Helper()
	want := []frame.State{frame.Starting, frame.Running, frame.Stopping, frame.Stopped}
	if !reflect.DeepEqual(h.states, want) {
		t.Errorf("states %v; want %v", h.states, want)
	}
	if h.s.State() != frame.Stopped {
		t.Errorf("final state %v", h.s.State())
	}
	if h.disp.closed != 1 {
		t.Errorf("display closed %d times", h.disp.closed)
	}
	if h.fake.Segments() != 0 || h.fake.Pixmaps() != 0 || h.fake.Attachments() != 0 {
		t.Errorf("leaked %d segments, %d pixmaps, %d attachments", h.fake.Segments(), h.fake.Pixmaps(), h.fake.Attachments())
	}
	for _, v := range h.fake.Violations {
		t.Error(v)
	}
}

func count(calls []string, verb string) int {
	n := 0
	for _, c := range calls {
		if c == verb || strings.HasPrefix(c, verb+" ") {
			n++
		}
	}
	return n
}

func TestScenario(t *testing.T) {
	h := newHarness(nil,
		[]interface{}{resize(1280, 720, 10, 10)},
		[]interface{}{resize(800, 600, -1, 5)},
		[]interface{}{resize(640, 480, 5, -1)},
		[]interface{}{closeEvent},
	)
	if err := h.s.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	want := []image.Point{{1280, 720}, {1280, 720}, {1280, 720}}
	if !reflect.DeepEqual(h.r.sizes, want) {
		t.Errorf("rendered sizes %v; want %v", h.r.sizes, want)
	}
	if h.s.Frames() != 3 {
		t.Errorf("Frames() = %d; want 3", h.s.Frames())
	}
	calls := strings.Join(h.fake.Calls, "\n")
	big := strings.Index(calls, "shmget 8294400")
	release := strings.Index(calls, "shmdt 1")
	small := strings.Index(calls, "shmget 3686400")
	if big < 0 || release < big || small < release {
		t.Errorf("want 1920x1080 acquired, released, then 1280x720 acquired; calls:\n%s", calls)
	}
	if n := count(h.fake.Calls, "shmget"); n != 2 {
		t.Errorf("%d allocations; want 2", n)
	}
	h.checkShutdown(t)
}

func TestExposeRepresents(t *testing.T) {
	h := newHarness(&frame.Config{Size: image.Pt(64, 48)},
		[]interface{}{paint.Event{}, paint.Event{}},
	)
	if err := h.s.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	// Two exposes plus one rendered frame, then the close.
	if n := count(h.fake.Calls, "put"); n != 3 {
		t.Errorf("%d presents; want 3", n)
	}
	if len(h.r.sizes) != 1 {
		t.Errorf("%d renders; want 1", len(h.r.sizes))
	}
	h.checkShutdown(t)
}

func TestResizeSameSizeIgnored(t *testing.T) {
	h := newHarness(&frame.Config{Size: image.Pt(300, 200)},
		[]interface{}{resize(300, 200, 5, 5), resize(300, 200, 0, 0)},
		[]interface{}{resize(0, 200, 0, 0)},
	)
	if err := h.s.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n := count(h.fake.Calls, "shmget"); n != 1 {
		t.Errorf("%d allocations; want 1", n)
	}
	for _, sz := range h.r.sizes {
		if sz != image.Pt(300, 200) {
			t.Errorf("rendered at %v", sz)
		}
	}
	h.checkShutdown(t)
}

func TestResizeSequence(t *testing.T) {
	var batches [][]interface{}
	for i := 1; i <= 40; i++ {
		w, hh := 1+(i*37)%200, 1+(i*91)%150
		batches = append(batches, []interface{}{resize(w, hh, i%3, 0), paint.Event{}})
	}
	h := newHarness(&frame.Config{Size: image.Pt(10, 10)}, batches...)
	if err := h.s.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(h.r.sizes) != 40 {
		t.Errorf("%d renders; want 40", len(h.r.sizes))
	}
	if err := h.fake.CheckStale(); err != nil {
		t.Error(err)
	}
	h.checkShutdown(t)
}

func TestOtherEvents(t *testing.T) {
	ev := []interface{}{
		mouse.Event{X: 3, Y: 4, Button: mouse.ButtonLeft, Direction: mouse.DirPress},
		lifecycle.Event{From: lifecycle.StageAlive, To: lifecycle.StageVisible},
		"unknown",
	}
	h := newHarness(&frame.Config{Size: image.Pt(8, 8)}, ev)
	if err := h.s.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(h.r.events, ev) {
		t.Errorf("handled %v; want %v", h.r.events, ev)
	}
	h.checkShutdown(t)
}

func TestCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h := newHarness(&frame.Config{Size: image.Pt(8, 8)}, []interface{}{paint.Event{}})
	if err := h.s.Run(ctx); err != nil {
		t.Fatal(err)
	}
	if h.s.Frames() != 0 {
		t.Errorf("%d frames after cancel", h.s.Frames())
	}
	h.checkShutdown(t)
}

func TestPollError(t *testing.T) {
	errLost := errors.New("connection lost")
	h := newHarness(&frame.Config{Size: image.Pt(8, 8)}, []interface{}{})
	h.disp.err = errLost
	if err := h.s.Run(context.Background()); !errors.Is(err, errLost) {
		t.Fatalf("Run = %v; want %v", err, errLost)
	}
	h.checkShutdown(t)
}

func TestStartFailure(t *testing.T) {
	h := newHarness(nil)
	h.fake.Fail["shmget"] = errors.New("no memory")
	err := h.s.Run(context.Background())
	if !errors.Is(err, backbuf.ErrAllocation) {
		t.Fatalf("Run = %v; want ErrAllocation", err)
	}
	want := []frame.State{frame.Starting, frame.Stopping, frame.Stopped}
	if !reflect.DeepEqual(h.states, want) {
		t.Errorf("states %v; want %v", h.states, want)
	}
	if h.disp.closed != 1 {
		t.Errorf("display closed %d times", h.disp.closed)
	}
}

func TestResizeFailureIsFatal(t *testing.T) {
	h := newHarness(nil, []interface{}{resize(16, 16, 0, 0)})
	h.s = frame.New(h.disp, backbuf.New(h.fake, failAfter{h.fake, 1}, nil), h.r, &frame.Config{
		Size:    image.Pt(8, 8),
		OnState: func(st frame.State) { h.states = append(h.states, st) },
	})
	err := h.s.Run(context.Background())
	if !errors.Is(err, backbuf.ErrAllocation) {
		t.Fatalf("Run = %v; want ErrAllocation", err)
	}
	if len(h.r.sizes) != 0 {
		t.Errorf("rendered %v after a failed resize", h.r.sizes)
	}
	h.checkShutdown(t)
}

// failAfter is a kernel that refuses segments after the first n.
type failAfter struct {
	*backbuftest.Fake
	n int
}

func (k failAfter) Get(size int) (int, error) {
	if count(k.Fake.Calls, "shmget") >= k.n {
		return 0, errors.New("ENOSPC")
	}
	return k.Fake.Get(size)
}

func TestRunTwice(t *testing.T) {
	h := newHarness(&frame.Config{Size: image.Pt(8, 8)})
	if err := h.s.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := h.s.Run(context.Background()); err == nil {
		t.Errorf("second Run succeeded")
	}
}

func TestTickerPacer(t *testing.T) {
	p := frame.Every(time.Millisecond)
	defer p.Stop()
	h := newHarness(&frame.Config{Size: image.Pt(8, 8), Pacer: p},
		[]interface{}{}, []interface{}{}, []interface{}{},
	)
	start := time.Now()
	if err := h.s.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if h.s.Frames() != 3 {
		t.Errorf("%d frames; want 3", h.s.Frames())
	}
	if d := time.Since(start); d < 2*time.Millisecond {
		t.Errorf("3 paced frames took %v", d)
	}
	h.checkShutdown(t)
}

func TestPerSecond(t *testing.T) {
	if _, ok := frame.PerSecond(0).(frame.Uncapped); !ok {
		t.Errorf("PerSecond(0) is not Uncapped")
	}
	p, ok := frame.PerSecond(60).(*frame.Ticker)
	if !ok {
		t.Fatalf("PerSecond(60) is not a Ticker")
	}
	p.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	slow := frame.Every(time.Hour)
	defer slow.Stop()
	if err := slow.Wait(ctx); err != context.Canceled {
		t.Errorf("Wait on cancelled context = %v", err)
	}
}

func TestStateString(t *testing.T) {
	for st, want := range map[frame.State]string{
		frame.Starting: "starting",
		frame.Running:  "running",
		frame.Stopping: "stopping",
		frame.Stopped:  "stopped",
		frame.State(9): "State(?)",
	} {
		if st.String() != want {
			t.Errorf("State(%d).String() = %q; want %q", int(st), st.String(), want)
		}
	}
}
