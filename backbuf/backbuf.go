// Package backbuf keeps a CPU-writable pixel buffer synchronized with an
// X server through shared memory.
//
// A Manager owns exactly one live pair: a Surface, whose pixels live in a
// shared memory segment the server reads directly, and a pixmap of the
// same size on the server. Present moves the surface into the pixmap and
// the pixmap onto the window. Resize tears the pair down and builds a new
// one; the teardown always detaches the server from the segment, waits for
// a round trip, and only then unmaps the memory, so the process never
// unmaps a segment the server is still attached to.
//
// Callers must not keep a *Surface across a Resize: the old surface's
// memory is gone once Resize returns.
package backbuf

import (
	"errors"
	"log/slog"
)

// Error kinds. Every error returned by this package and by the display
// adapters wraps exactly one of them.
var (
	// ErrConnection: the display server is unreachable or lacks a required extension.
	ErrConnection = errors.New("display connection failed")

	// ErrAllocation: the kernel or the server refused a segment, pixmap or attachment.
	ErrAllocation = errors.New("allocation failed")

	// ErrProtocol: the server sent an unexpected error or reply.
	ErrProtocol = errors.New("display protocol error")

	// ErrNoSurface: there is no live surface to present.
	ErrNoSurface = errors.New("no live surface")
)

// BytesPerPixel is the size of one packed pixel.
const BytesPerPixel = 4

// Server-side resource ids.
type (
	Window uint32
	Pixmap uint32
	SegID  uint32
)

// A Kernel allocates shared memory segments. shm.SysV is the real one.
type Kernel interface {
	Get(size int) (id int, err error)
	Map(id int) ([]byte, error)
	Unmap(b []byte) error
	Remove(id int) error
}

// A Server is the part of the display-server connection the pipeline uses.
//
// Detach, FreePixmap, PutImage and CopyArea may be asynchronous: they
// only promise that the request has been sent. Sync returns once the
// server has processed every request sent before it.
type Server interface {
	Attach(shmid int) (SegID, error)
	Detach(seg SegID) error
	Sync() error

	CreatePixmap(win Window, width, height int) (Pixmap, error)
	FreePixmap(p Pixmap) error

	// PutImage copies width×height pixels from seg into dst.
	// If notify is set the server reports completion of the copy,
	// and AwaitPresented blocks until all such reports have arrived.
	PutImage(dst Pixmap, seg SegID, width, height int, notify bool) error
	CopyArea(src Pixmap, dst Window, width, height int) error
	AwaitPresented() error
}

// Options configures a Manager. A nil *Options means the defaults.
type Options struct {
	// Logger receives debug records for every acquire and release.
	// If nil, nothing is logged.
	Logger *slog.Logger

	// AwaitPresent makes every present request a completion report,
	// and makes every release wait for outstanding reports before
	// detaching the segment. Without it the pipeline relies on the
	// detach round trip alone.
	AwaitPresent bool
}

func (o *Options) logger() *slog.Logger {
	if o == nil || o.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return o.Logger
}
