package xdisplay

import (
	"fmt"

	"github.com/BurntSushi/xgb/shm"
	"github.com/BurntSushi/xgb/xproto"

	"handmade.dev/present/backbuf"
)

// Attach asks the server to attach the System V segment shmid
// read-write and returns the server's name for it.
func (c *Conn) Attach(shmid int) (backbuf.SegID, error) {
	seg, err := shm.NewSegId(c.xc)
	if err != nil {
		return 0, fmt.Errorf("%w: segment id: %w", backbuf.ErrAllocation, err)
	}
	if err := shm.AttachChecked(c.xc, seg, uint32(shmid), false).Check(); err != nil {
		return 0, fmt.Errorf("%w: attach segment %d: %w", backbuf.ErrAllocation, shmid, err)
	}
	return backbuf.SegID(seg), nil
}

// Detach queues a detach of seg. It takes effect by the next Sync.
func (c *Conn) Detach(seg backbuf.SegID) error {
	shm.Detach(c.xc, shm.Seg(seg))
	return nil
}

// Sync waits for a reply to a round trip, so every request sent
// before it has been processed by the server.
func (c *Conn) Sync() error {
	if _, err := xproto.GetInputFocus(c.xc).Reply(); err != nil {
		return fmt.Errorf("%w: sync: %w", backbuf.ErrProtocol, err)
	}
	return nil
}

// CreatePixmap creates a pixmap of the window's depth.
func (c *Conn) CreatePixmap(win backbuf.Window, w, h int) (backbuf.Pixmap, error) {
	pid, err := xproto.NewPixmapId(c.xc)
	if err != nil {
		return 0, fmt.Errorf("%w: pixmap id: %w", backbuf.ErrAllocation, err)
	}
	err = xproto.CreatePixmapChecked(c.xc, c.screen.RootDepth, pid, xproto.Drawable(win), uint16(w), uint16(h)).Check()
	if err != nil {
		return 0, fmt.Errorf("%w: create pixmap %dx%d: %w", backbuf.ErrAllocation, w, h, err)
	}
	return backbuf.Pixmap(pid), nil
}

func (c *Conn) FreePixmap(p backbuf.Pixmap) error {
	xproto.FreePixmap(c.xc, xproto.Pixmap(p))
	return nil
}

// PutImage copies the w×h image at the start of seg into dst.
// If notify is set the server sends a completion event once it is
// done reading the segment; AwaitPresented waits for it.
func (c *Conn) PutImage(dst backbuf.Pixmap, seg backbuf.SegID, w, h int, notify bool) error {
	var send byte
	if notify {
		send = 1
		c.pending++
	}
	shm.PutImage(c.xc, xproto.Drawable(dst), c.gc,
		uint16(w), uint16(h), 0, 0, uint16(w), uint16(h), 0, 0,
		c.screen.RootDepth, xproto.ImageFormatZPixmap, send, shm.Seg(seg), 0)
	return nil
}

func (c *Conn) CopyArea(src backbuf.Pixmap, dst backbuf.Window, w, h int) error {
	xproto.CopyArea(c.xc, xproto.Drawable(src), xproto.Drawable(dst), c.gc, 0, 0, 0, 0, uint16(w), uint16(h))
	return nil
}

// AwaitPresented blocks until every notified put has completed.
// Other events read meanwhile are queued for PollEvent.
func (c *Conn) AwaitPresented() error {
	for c.pending > 0 {
		ev, xerr := c.xc.WaitForEvent()
		if xerr != nil {
			return fmt.Errorf("%w: %v", backbuf.ErrProtocol, xerr)
		}
		if ev == nil {
			return fmt.Errorf("%w: connection closed awaiting %d completions", backbuf.ErrConnection, c.pending)
		}
		if _, ok := ev.(shm.CompletionEvent); ok {
			c.pending--
			continue
		}
		c.backlog = append(c.backlog, ev)
	}
	return nil
}
