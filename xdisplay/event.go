package xdisplay

import (
	"fmt"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/shm"
	"github.com/BurntSushi/xgb/xproto"
	"golang.org/x/mobile/event/key"
	"golang.org/x/mobile/event/lifecycle"
	"golang.org/x/mobile/event/mouse"
	"golang.org/x/mobile/event/paint"
	"golang.org/x/mobile/event/size"
	"golang.org/x/mobile/geom"

	"handmade.dev/present/backbuf"
	"handmade.dev/present/frame"
)

// PollEvent returns the next event without blocking, or nil, nil if
// the queue is empty. X errors come back as ErrProtocol.
func (c *Conn) PollEvent() (interface{}, error) {
	for {
		var ev xgb.Event
		if len(c.backlog) > 0 {
			ev, c.backlog = c.backlog[0], c.backlog[1:]
		} else {
			e, xerr := c.xc.PollForEvent()
			if xerr != nil {
				return nil, fmt.Errorf("%w: %v", backbuf.ErrProtocol, xerr)
			}
			if e == nil {
				return nil, nil
			}
			ev = e
		}
		if e, ok := c.translate(ev); ok {
			return e, nil
		}
	}
}

// translate converts ev to the loop's event vocabulary.
// It reports false for events that are consumed here.
func (c *Conn) translate(ev xgb.Event) (interface{}, bool) {
	switch e := ev.(type) {
	case xproto.ExposeEvent:
		// Only the last of a run of exposes matters.
		if e.Count != 0 {
			return nil, false
		}
		return paint.Event{}, true

	case xproto.ConfigureNotifyEvent:
		if e.Window != c.win {
			return nil, false
		}
		w, h := int(e.Width), int(e.Height)
		return frame.Resize{
			Event: size.Event{
				WidthPx:     w,
				HeightPx:    h,
				WidthPt:     geom.Pt(w),
				HeightPt:    geom.Pt(h),
				PixelsPerPt: 1,
			},
			X: int(e.X),
			Y: int(e.Y),
		}, true

	case xproto.ClientMessageEvent:
		if e.Format == 32 && e.Type == c.wmProtocols && len(e.Data.Data32) > 0 &&
			xproto.Atom(e.Data.Data32[0]) == c.wmDelete {
			return lifecycle.Event{From: lifecycle.StageFocused, To: lifecycle.StageDead}, true
		}

	case xproto.ButtonPressEvent:
		b, dir := button(e.Detail, mouse.DirPress)
		return mouse.Event{
			X:         float32(e.EventX),
			Y:         float32(e.EventY),
			Button:    b,
			Modifiers: modifiers(e.State),
			Direction: dir,
		}, true

	case xproto.ButtonReleaseEvent:
		b, dir := button(e.Detail, mouse.DirRelease)
		if dir == mouse.DirStep {
			// The press already stepped the wheel.
			return nil, false
		}
		return mouse.Event{
			X:         float32(e.EventX),
			Y:         float32(e.EventY),
			Button:    b,
			Modifiers: modifiers(e.State),
			Direction: dir,
		}, true

	case xproto.MotionNotifyEvent:
		return mouse.Event{
			X:         float32(e.EventX),
			Y:         float32(e.EventY),
			Modifiers: modifiers(e.State),
			Direction: mouse.DirNone,
		}, true

	case xproto.KeyPressEvent:
		return key.Event{
			Rune:      -1,
			Code:      key.CodeUnknown,
			Modifiers: modifiers(e.State),
			Direction: key.DirPress,
		}, true

	case shm.CompletionEvent:
		if c.pending > 0 {
			c.pending--
		}
		return nil, false
	}
	return ev, true
}

// button maps an X button number to a mouse button.
// Buttons 4 to 7 are wheel steps.
func button(detail xproto.Button, dir mouse.Direction) (mouse.Button, mouse.Direction) {
	switch detail {
	case 1:
		return mouse.ButtonLeft, dir
	case 2:
		return mouse.ButtonMiddle, dir
	case 3:
		return mouse.ButtonRight, dir
	case 4:
		return mouse.ButtonWheelUp, mouse.DirStep
	case 5:
		return mouse.ButtonWheelDown, mouse.DirStep
	case 6:
		return mouse.ButtonWheelLeft, mouse.DirStep
	case 7:
		return mouse.ButtonWheelRight, mouse.DirStep
	}
	return mouse.ButtonNone, dir
}

func modifiers(state uint16) key.Modifiers {
	var m key.Modifiers
	if state&xproto.ModMaskShift != 0 {
		m |= key.ModShift
	}
	if state&xproto.ModMaskControl != 0 {
		m |= key.ModControl
	}
	if state&xproto.ModMask1 != 0 {
		m |= key.ModAlt
	}
	if state&xproto.ModMask4 != 0 {
		m |= key.ModMeta
	}
	return m
}
