// Package frame runs the render loop: drain pending window events
// without blocking, render one frame into the shared surface, present it,
// and repeat until the window is closed.
//
// Everything happens on the goroutine that calls Run. Closing is
// cooperative: a close event or a cancelled context is noticed at the top
// of the next iteration and never interrupts a render or present.
package frame

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"golang.org/x/mobile/event/lifecycle"
	"golang.org/x/mobile/event/paint"

	"handmade.dev/present/backbuf"
)

// Initial surface size when Config.Size is zero.
const (
	DefaultWidth  = 1920
	DefaultHeight = 1080
)

// A Display is the window side of the display connection.
type Display interface {
	Window() backbuf.Window

	// PollEvent returns the next queued event, or nil, nil if
	// there is none. It never blocks.
	PollEvent() (interface{}, error)

	// Close unmaps and destroys the window and closes the connection.
	Close() error
}

// A Renderer draws one frame into s.
// It must only write inside s.Bounds() and must not keep s.
type Renderer interface {
	Render(s *backbuf.Surface)
}

// A Handler receives the events the Scheduler does not handle itself.
type Handler interface {
	Handle(e interface{})
}

// Config configures a Scheduler. A nil *Config means the defaults.
type Config struct {
	Size    image.Point // initial surface size
	Pacer   Pacer       // nil means Uncapped
	Logger  *slog.Logger
	OnState func(State) // called on every state transition
}

// State is the state of a Scheduler.
type State int

const (
	Starting State = iota
	Running
	Stopping
	Stopped
)

var stateNames = [...]string{
	Starting: "starting",
	Running:  "running",
	Stopping: "stopping",
	Stopped:  "stopped",
}

func (s State) String() string {
	if 0 <= s && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "State(?)"
}

// A Scheduler drives a Display, a backbuf.Manager and a Renderer.
type Scheduler struct {
	disp    Display
	bb      *backbuf.Manager
	r       Renderer
	pace    Pacer
	log     *slog.Logger
	onState func(State)
	size    image.Point

	state  State
	ran    bool
	frames uint64
}

// New returns a Scheduler in the Starting state.
func New(d Display, bb *backbuf.Manager, r Renderer, cfg *Config) *Scheduler {
	s := &Scheduler{
		disp: d,
		bb:   bb,
		r:    r,
		pace: Uncapped{},
		log:  slog.New(slog.DiscardHandler),
		size: image.Pt(DefaultWidth, DefaultHeight),
	}
	if cfg != nil {
		if cfg.Size.X > 0 && cfg.Size.Y > 0 {
			s.size = cfg.Size
		}
		if cfg.Pacer != nil {
			s.pace = cfg.Pacer
		}
		if cfg.Logger != nil {
			s.log = cfg.Logger
		}
		s.onState = cfg.OnState
	}
	return s
}

// State returns the current state.
func (s *Scheduler) State() State { return s.state }

// Frames returns the number of frames rendered and presented.
func (s *Scheduler) Frames() uint64 { return s.frames }

// Run allocates the initial surface and runs the loop until the window
// is closed or ctx is done. Whatever happens, Run releases the surface
// and closes the display before returning. It returns nil after a clean
// close and the first error otherwise.
func (s *Scheduler) Run(ctx context.Context) (err error) {
	if s.ran {
		return errors.New("frame: scheduler already ran")
	}
	s.ran = true
	s.enter(Starting)
	defer func() {
		if serr := s.stop(); err == nil {
			err = serr
		}
	}()

	if err := s.bb.Resize(s.disp.Window(), s.size.X, s.size.Y); err != nil {
		return err
	}
	s.enter(Running)
	for s.state == Running {
		if err := s.step(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scheduler) enter(st State) {
	s.state = st
	s.log.Info("frame: state", "state", st, "frames", s.frames)
	if s.onState != nil {
		s.onState(st)
	}
}

func (s *Scheduler) step(ctx context.Context) error {
	if ctx.Err() != nil {
		s.enter(Stopping)
		return nil
	}
	if err := s.drain(); err != nil {
		return err
	}
	if s.state != Running {
		return nil
	}

	surf := s.bb.Surface()
	if surf == nil {
		return backbuf.ErrNoSurface
	}
	s.r.Render(surf)
	if err := s.bb.Present(s.disp.Window()); err != nil {
		return err
	}
	s.frames++

	// A cancelled wait is seen at the top of the next step.
	s.pace.Wait(ctx)
	return nil
}

// drain handles every queued event, stopping early at a close.
func (s *Scheduler) drain() error {
	win := s.disp.Window()
	for {
		e, err := s.disp.PollEvent()
		if err != nil {
			return err
		}
		if e == nil {
			return nil
		}
		switch e := e.(type) {
		case paint.Event:
			if err := s.bb.Present(win); err != nil {
				return err
			}

		case Resize:
			if !e.OnScreen() || e.Size() == s.bb.Size() {
				s.log.Debug("frame: skip resize", "width", e.WidthPx, "height", e.HeightPx, "x", e.X, "y", e.Y)
				break
			}
			if err := s.bb.Resize(win, e.WidthPx, e.HeightPx); err != nil {
				return err
			}

		case lifecycle.Event:
			if IsClose(e) {
				s.enter(Stopping)
				return nil
			}
			s.handle(e)

		default:
			s.handle(e)
		}
	}
}

func (s *Scheduler) handle(e interface{}) {
	if h, ok := s.r.(Handler); ok {
		h.Handle(e)
		return
	}
	s.log.Debug("frame: skip event", "type", fmt.Sprintf("%T", e))
}

func (s *Scheduler) stop() error {
	if s.state != Stopping {
		s.enter(Stopping)
	}
	err := s.bb.Release()
	if cerr := s.disp.Close(); err == nil {
		err = cerr
	}
	s.enter(Stopped)
	return err
}
