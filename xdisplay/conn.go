// Package xdisplay connects to an X server with the MIT-SHM extension
// and creates the single window the render loop draws into.
//
// A Conn is both the backbuf.Server the pipeline pushes pixels through
// and the frame.Display the loop polls for events.
package xdisplay

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/shm"
	"github.com/BurntSushi/xgb/xproto"

	"handmade.dev/present/backbuf"
)

const eventMask = xproto.EventMaskExposure |
	xproto.EventMaskStructureNotify |
	xproto.EventMaskButtonPress |
	xproto.EventMaskButtonRelease |
	xproto.EventMaskButton1Motion |
	xproto.EventMaskKeyPress

// Options configures the connection and its window.
type Options struct {
	Display string          // X display name; empty means $DISPLAY
	Title   string          // window title
	Rect    image.Rectangle // window position and size
	Border  int             // border width in pixels
	Logger  *slog.Logger
}

// A Conn is a connection to an X server holding one window.
type Conn struct {
	xc     *xgb.Conn
	screen *xproto.ScreenInfo
	win    xproto.Window
	gc     xproto.Gcontext
	log    *slog.Logger

	wmProtocols xproto.Atom
	wmDelete    xproto.Atom

	// pending counts shared-memory puts whose completion event has
	// not arrived. Events read while waiting for completions are
	// kept in backlog for PollEvent.
	pending int
	backlog []xgb.Event
}

// Open connects to the X server, checks for MIT-SHM, and creates and
// maps the window, asking the window manager to report close requests
// instead of killing the connection.
func Open(opts *Options) (*Conn, error) {
	if opts == nil {
		opts = new(Options)
	}
	if opts.Rect.Empty() {
		return nil, fmt.Errorf("xdisplay: empty window rectangle %v", opts.Rect)
	}
	if opts.Border < 0 {
		return nil, fmt.Errorf("xdisplay: negative border width %d", opts.Border)
	}
	xc, err := xgb.NewConnDisplay(opts.Display)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", backbuf.ErrConnection, err)
	}
	c := &Conn{xc: xc, log: opts.Logger}
	if c.log == nil {
		c.log = slog.New(slog.DiscardHandler)
	}
	if err := c.init(opts); err != nil {
		xc.Close()
		return nil, err
	}
	return c, nil
}

func (c *Conn) init(opts *Options) error {
	if err := shm.Init(c.xc); err != nil {
		return fmt.Errorf("%w: MIT-SHM: %w", backbuf.ErrConnection, err)
	}
	v, err := shm.QueryVersion(c.xc).Reply()
	if err != nil {
		return fmt.Errorf("%w: MIT-SHM version: %w", backbuf.ErrConnection, err)
	}
	c.log.Debug("xdisplay: MIT-SHM", "major", v.MajorVersion, "minor", v.MinorVersion)

	c.screen = xproto.Setup(c.xc).DefaultScreen(c.xc)
	if c.win, err = xproto.NewWindowId(c.xc); err != nil {
		return fmt.Errorf("%w: window id: %w", backbuf.ErrAllocation, err)
	}
	r := opts.Rect
	err = xproto.CreateWindowChecked(c.xc, c.screen.RootDepth, c.win, c.screen.Root,
		int16(r.Min.X), int16(r.Min.Y), uint16(r.Dx()), uint16(r.Dy()), uint16(opts.Border),
		xproto.WindowClassInputOutput, c.screen.RootVisual,
		xproto.CwBackPixel|xproto.CwBorderPixel|xproto.CwEventMask,
		[]uint32{c.screen.WhitePixel, c.screen.BlackPixel, eventMask}).Check()
	if err != nil {
		return fmt.Errorf("%w: create window: %w", backbuf.ErrAllocation, err)
	}

	xproto.ChangeProperty(c.xc, xproto.PropModeReplace, c.win, xproto.AtomWmName, xproto.AtomString,
		8, uint32(len(opts.Title)), []byte(opts.Title))

	if c.wmProtocols, err = c.atom("WM_PROTOCOLS"); err != nil {
		return err
	}
	if c.wmDelete, err = c.atom("WM_DELETE_WINDOW"); err != nil {
		return err
	}
	xproto.ChangeProperty(c.xc, xproto.PropModeReplace, c.win, c.wmProtocols, xproto.AtomAtom,
		32, 1, atomList(c.wmDelete))

	if c.gc, err = xproto.NewGcontextId(c.xc); err != nil {
		return fmt.Errorf("%w: gc id: %w", backbuf.ErrAllocation, err)
	}
	err = xproto.CreateGCChecked(c.xc, c.gc, xproto.Drawable(c.win),
		xproto.GcGraphicsExposures, []uint32{0}).Check()
	if err != nil {
		return fmt.Errorf("%w: create gc: %w", backbuf.ErrAllocation, err)
	}

	xproto.MapWindow(c.xc, c.win)
	c.log.Info("xdisplay: window", "id", c.win, "rect", r, "depth", c.screen.RootDepth)
	return nil
}

func (c *Conn) atom(name string) (xproto.Atom, error) {
	r, err := xproto.InternAtom(c.xc, false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, fmt.Errorf("%w: intern %s: %w", backbuf.ErrProtocol, name, err)
	}
	return r.Atom, nil
}

// atomList encodes atoms as a 32-bit property value.
func atomList(atoms ...xproto.Atom) []byte {
	b := make([]byte, 4*len(atoms))
	for i, a := range atoms {
		xgb.Put32(b[4*i:], uint32(a))
	}
	return b
}

// Window returns the id of the window.
func (c *Conn) Window() backbuf.Window { return backbuf.Window(c.win) }

// Close unmaps and destroys the window and closes the connection.
func (c *Conn) Close() error {
	xproto.UnmapWindow(c.xc, c.win)
	xproto.FreeGC(c.xc, c.gc)
	err := xproto.DestroyWindowChecked(c.xc, c.win).Check()
	c.xc.Close()
	if err != nil {
		return fmt.Errorf("%w: destroy window: %w", backbuf.ErrProtocol, err)
	}
	return nil
}
