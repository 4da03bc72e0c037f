package backbuf

import (
	"fmt"
	"image"
	"log/slog"
)

// MaxDim is the largest width or height the X protocol can address.
const MaxDim = 1<<15 - 1

// A Manager owns the live surface and its server-side pixmap.
// It is not safe for concurrent use; the frame loop is its only user.
type Manager struct {
	srv   Server
	kern  Kernel
	log   *slog.Logger
	await bool

	surf   *Surface
	mem    []byte // full mapping of surf's segment, for Unmap
	pixmap Pixmap
}

// New returns a Manager with no live surface.
func New(srv Server, kern Kernel, opts *Options) *Manager {
	m := &Manager{
		srv:  srv,
		kern: kern,
		log:  opts.logger(),
	}
	if opts != nil {
		m.await = opts.AwaitPresent
	}
	return m
}

// Surface returns the live surface, or nil.
// The result is only valid until the next Resize or Release.
func (m *Manager) Surface() *Surface {
	if !m.surf.Live() {
		return nil
	}
	return m.surf
}

// Width returns the width of the live surface, or 0.
func (m *Manager) Width() int {
	if !m.surf.Live() {
		return 0
	}
	return m.surf.Width
}

// Height returns the height of the live surface, or 0.
func (m *Manager) Height() int {
	if !m.surf.Live() {
		return 0
	}
	return m.surf.Height
}

// Size returns the dimensions of the live surface.
func (m *Manager) Size() image.Point { return image.Pt(m.Width(), m.Height()) }

// Resize replaces the live pair with one of the given size, for use with win.
// Non-positive sizes are ignored.
//
// The old pair is released completely before the new one is acquired.
// If Resize fails, no pair is live and the window cannot be presented
// until a later Resize succeeds.
func (m *Manager) Resize(win Window, width, height int) error {
	if width <= 0 || height <= 0 {
		m.log.Debug("ignore resize", "width", width, "height", height)
		return nil
	}
	if err := m.Release(); err != nil {
		return err
	}
	if width > MaxDim || height > MaxDim {
		return fmt.Errorf("%w: surface %dx%d exceeds %d", ErrAllocation, width, height, MaxDim)
	}
	return m.acquire(win, width, height)
}

// Release frees the live pair, if any.
func (m *Manager) Release() error {
	if m.surf == nil {
		return nil
	}
	perr := m.srv.FreePixmap(m.pixmap)
	m.pixmap = 0
	err := m.releaseSurface()
	if perr != nil {
		return fmt.Errorf("free pixmap: %w", perr)
	}
	return err
}

func (m *Manager) acquire(win Window, width, height int) error {
	n := width * height * BytesPerPixel
	id, err := m.kern.Get(n)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAllocation, err)
	}
	mem, err := m.kern.Map(id)
	if err != nil {
		m.kern.Remove(id)
		return fmt.Errorf("%w: %w", ErrAllocation, err)
	}
	if len(mem) < n {
		m.kern.Unmap(mem)
		m.kern.Remove(id)
		return fmt.Errorf("%w: segment %d has %d bytes, want %d", ErrAllocation, id, len(mem), n)
	}
	seg, err := m.srv.Attach(id)
	if err != nil {
		m.kern.Unmap(mem)
		m.kern.Remove(id)
		return fmt.Errorf("%w: attach segment %d: %w", ErrAllocation, id, err)
	}
	if err := m.srv.Sync(); err != nil {
		// The server may or may not be attached; leave the memory
		// mapped and let the kernel reclaim it at exit.
		m.kern.Remove(id)
		return fmt.Errorf("%w: attach segment %d: %v", ErrAllocation, id, err)
	}

	m.surf = &Surface{
		Width:  width,
		Height: height,
		Stride: width * BytesPerPixel,
		Pix:    mem[:n:n],
		shmid:  id,
		seg:    seg,
	}
	m.mem = mem

	// Both sides are attached: the segment now lives exactly as long
	// as its attachments.
	if err := m.kern.Remove(id); err != nil {
		m.releaseSurface()
		return fmt.Errorf("%w: %w", ErrAllocation, err)
	}

	p, err := m.srv.CreatePixmap(win, width, height)
	if err != nil {
		m.releaseSurface()
		return fmt.Errorf("%w: pixmap %dx%d: %w", ErrAllocation, width, height, err)
	}
	m.pixmap = p
	m.log.Debug("acquire", "width", width, "height", height, "shmid", id, "seg", seg, "pixmap", p)
	return nil
}

// releaseSurface detaches the server from the segment, waits for the
// detach to be processed, and only then unmaps the memory.
func (m *Manager) releaseSurface() error {
	s, mem := m.surf, m.mem
	m.surf, m.mem = nil, nil
	s.Pix = nil

	if m.await {
		if err := m.srv.AwaitPresented(); err != nil {
			return fmt.Errorf("release segment %d: %w", s.shmid, err)
		}
	}
	if err := m.srv.Detach(s.seg); err != nil {
		return fmt.Errorf("release segment %d: %w", s.shmid, err)
	}
	if err := m.srv.Sync(); err != nil {
		// Without the round trip the server may still read the
		// segment: keep it mapped.
		return fmt.Errorf("release segment %d: %w", s.shmid, err)
	}
	if err := m.kern.Unmap(mem); err != nil {
		return fmt.Errorf("%w: release segment %d: %w", ErrAllocation, s.shmid, err)
	}
	m.log.Debug("release", "width", s.Width, "height", s.Height, "shmid", s.shmid, "seg", s.seg)
	return nil
}
