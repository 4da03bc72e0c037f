package frame

import (
	"golang.org/x/mobile/event/lifecycle"
	"golang.org/x/mobile/event/size"
)

// Events are delivered as interface{} values, in server queue order:
//
//	paint.Event      the window was exposed; present the current frame again
//	Resize           the window was configured
//	lifecycle.Event  To == lifecycle.StageDead means the window was closed
//
// Anything else (mouse.Event, key.Event, raw server events) is passed
// to the Renderer if it implements Handler.

// A Resize reports the window's new size and its position in its parent.
// A position with a negative coordinate means the window was moved
// off screen; such resizes are ignored.
type Resize struct {
	size.Event
	X, Y int
}

// OnScreen reports whether the resize position is usable.
func (e Resize) OnScreen() bool { return e.X >= 0 && e.Y >= 0 }

// IsClose reports whether e asks the loop to stop.
func IsClose(e interface{}) bool {
	l, ok := e.(lifecycle.Event)
	return ok && l.To == lifecycle.StageDead
}
