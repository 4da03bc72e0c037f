// Package backbuftest provides an in-memory kernel and display server
// for testing code built on backbuf.
//
// A Fake implements both backbuf.Kernel and backbuf.Server. It records
// every call in Calls and checks the one rule that matters most: a
// segment must not be unmapped while the server is attached to it, where
// a detach only takes effect at the next Sync.
package backbuftest

import (
	"bytes"
	"fmt"

	"handmade.dev/present/backbuf"
)

// A Fake is a kernel and display server in one.
// The zero value is not usable; call New.
type Fake struct {
	// Calls lists the calls made so far, for example
	// "shmget 16", "shmat 1", "attach 1", "sync", "rmid 1",
	// "pixmap 1 2x2", "put 1", "copy 1", "freepixmap 1", "detach 1", "shmdt 1".
	// Segments are always named by their kernel id. A call that
	// failed because of Fail is marked with a trailing " !".
	Calls []string

	// Violations lists every unmap of a segment the server was
	// still attached to.
	Violations []string

	// Fail makes the named call ("shmget", "shmat", "shmdt", "rmid",
	// "attach", "detach", "sync", "pixmap", "freepixmap", "put", "copy",
	// "await") return the given error.
	Fail map[string]error

	nextID   int
	segs     map[int]*segment
	byAddr   map[*byte]*segment
	attached map[backbuf.SegID]*attachment
	pixmaps  map[backbuf.Pixmap]*pixmap
	windows  map[backbuf.Window]*pixmap
	pending  int
	gone     []*segment
}

type segment struct {
	id      int
	mem     []byte
	maps    int
	server  int // server attachments, including unsynced detaches
	removed bool
	final   []byte // contents at unmap
}

type attachment struct {
	seg      *segment
	detached bool
}

type pixmap struct {
	w, h int
	pix  []byte
}

// New returns an empty Fake.
func New() *Fake {
	return &Fake{
		Fail:     make(map[string]error),
		segs:     make(map[int]*segment),
		byAddr:   make(map[*byte]*segment),
		attached: make(map[backbuf.SegID]*attachment),
		pixmaps:  make(map[backbuf.Pixmap]*pixmap),
		windows:  make(map[backbuf.Window]*pixmap),
	}
}

func (f *Fake) call(name, format string, args ...interface{}) error {
	s := name
	if format != "" {
		s += " " + fmt.Sprintf(format, args...)
	}
	err := f.Fail[name]
	if err != nil {
		s += " !"
	}
	f.Calls = append(f.Calls, s)
	return err
}

func (f *Fake) id() int {
	f.nextID++
	return f.nextID
}

func (f *Fake) destroy(s *segment) {
	if s.removed && s.maps == 0 && s.server == 0 {
		delete(f.segs, s.id)
		f.gone = append(f.gone, s)
	}
}

// Get implements backbuf.Kernel.
func (f *Fake) Get(size int) (int, error) {
	if err := f.call("shmget", "%d", size); err != nil {
		return 0, err
	}
	s := &segment{id: f.id(), mem: make([]byte, size)}
	f.segs[s.id] = s
	return s.id, nil
}

// Map implements backbuf.Kernel.
func (f *Fake) Map(id int) ([]byte, error) {
	if err := f.call("shmat", "%d", id); err != nil {
		return nil, err
	}
	s := f.segs[id]
	if s == nil {
		return nil, fmt.Errorf("shmat %d: no such segment", id)
	}
	s.maps++
	f.byAddr[&s.mem[0]] = s
	return s.mem, nil
}

// Unmap implements backbuf.Kernel.
func (f *Fake) Unmap(b []byte) error {
	s := f.byAddr[&b[0]]
	if s == nil {
		f.call("shmdt", "?")
		return fmt.Errorf("shmdt: not mapped")
	}
	if err := f.call("shmdt", "%d", s.id); err != nil {
		return err
	}
	if s.server > 0 {
		f.Violations = append(f.Violations, fmt.Sprintf("segment %d unmapped with %d server attachments", s.id, s.server))
	}
	s.maps--
	if s.maps == 0 {
		delete(f.byAddr, &b[0])
		s.final = bytes.Clone(s.mem)
	}
	f.destroy(s)
	return nil
}

// Remove implements backbuf.Kernel.
func (f *Fake) Remove(id int) error {
	if err := f.call("rmid", "%d", id); err != nil {
		return err
	}
	s := f.segs[id]
	if s == nil || s.removed {
		return fmt.Errorf("shmctl %d: invalid argument", id)
	}
	s.removed = true
	f.destroy(s)
	return nil
}

// Attach implements backbuf.Server.
func (f *Fake) Attach(shmid int) (backbuf.SegID, error) {
	if err := f.call("attach", "%d", shmid); err != nil {
		return 0, err
	}
	s := f.segs[shmid]
	if s == nil || s.removed {
		return 0, fmt.Errorf("BadAccess: segment %d", shmid)
	}
	s.server++
	seg := backbuf.SegID(f.id())
	f.attached[seg] = &attachment{seg: s}
	return seg, nil
}

// Detach implements backbuf.Server. It takes effect at the next Sync.
func (f *Fake) Detach(seg backbuf.SegID) error {
	a := f.attached[seg]
	if a == nil {
		f.call("detach", "?")
		return fmt.Errorf("BadShmSeg: %d", seg)
	}
	if err := f.call("detach", "%d", a.seg.id); err != nil {
		return err
	}
	a.detached = true
	return nil
}

// Sync implements backbuf.Server.
func (f *Fake) Sync() error {
	if err := f.call("sync", ""); err != nil {
		return err
	}
	for seg, a := range f.attached {
		if a.detached {
			a.seg.server--
			delete(f.attached, seg)
			f.destroy(a.seg)
		}
	}
	return nil
}

// CreatePixmap implements backbuf.Server.
func (f *Fake) CreatePixmap(win backbuf.Window, w, h int) (backbuf.Pixmap, error) {
	id := backbuf.Pixmap(f.id())
	if err := f.call("pixmap", "%d %dx%d", id, w, h); err != nil {
		return 0, err
	}
	f.pixmaps[id] = &pixmap{w: w, h: h, pix: make([]byte, w*h*backbuf.BytesPerPixel)}
	return id, nil
}

// FreePixmap implements backbuf.Server.
func (f *Fake) FreePixmap(p backbuf.Pixmap) error {
	if err := f.call("freepixmap", "%d", p); err != nil {
		return err
	}
	if f.pixmaps[p] == nil {
		return fmt.Errorf("BadPixmap: %d", p)
	}
	delete(f.pixmaps, p)
	return nil
}

// PutImage implements backbuf.Server.
func (f *Fake) PutImage(dst backbuf.Pixmap, seg backbuf.SegID, w, h int, notify bool) error {
	if err := f.call("put", "%d", dst); err != nil {
		return err
	}
	a := f.attached[seg]
	if a == nil || a.detached {
		return fmt.Errorf("BadShmSeg: %d", seg)
	}
	p := f.pixmaps[dst]
	if p == nil || p.w < w || p.h < h {
		return fmt.Errorf("BadDrawable: %d", dst)
	}
	n := w * h * backbuf.BytesPerPixel
	if len(a.seg.mem) < n {
		return fmt.Errorf("BadValue: segment %d too small", a.seg.id)
	}
	copy(p.pix, a.seg.mem[:n])
	if notify {
		f.pending++
	}
	return nil
}

// CopyArea implements backbuf.Server.
func (f *Fake) CopyArea(src backbuf.Pixmap, dst backbuf.Window, w, h int) error {
	if err := f.call("copy", "%d", src); err != nil {
		return err
	}
	p := f.pixmaps[src]
	if p == nil {
		return fmt.Errorf("BadDrawable: %d", src)
	}
	f.windows[dst] = &pixmap{w: w, h: h, pix: bytes.Clone(p.pix[:w*h*backbuf.BytesPerPixel])}
	return nil
}

// AwaitPresented implements backbuf.Server.
func (f *Fake) AwaitPresented() error {
	if err := f.call("await", ""); err != nil {
		return err
	}
	f.pending = 0
	return nil
}

// Window returns the visible contents of win and its size.
func (f *Fake) Window(win backbuf.Window) (pix []byte, w, h int) {
	p := f.windows[win]
	if p == nil {
		return nil, 0, 0
	}
	return p.pix, p.w, p.h
}

// Pending returns the number of presents awaiting a completion report.
func (f *Fake) Pending() int { return f.pending }

// Segments returns the number of kernel segments not yet destroyed.
func (f *Fake) Segments() int { return len(f.segs) }

// Pixmaps returns the number of live pixmaps.
func (f *Fake) Pixmaps() int { return len(f.pixmaps) }

// Attachments returns the number of server attachments, counting
// detaches not yet synced.
func (f *Fake) Attachments() int { return len(f.attached) }

// CheckStale reports an error if memory of any unmapped segment changed
// after it was unmapped.
func (f *Fake) CheckStale() error {
	for _, s := range f.allSegments() {
		if s.final != nil && s.maps == 0 && !bytes.Equal(s.final, s.mem) {
			return fmt.Errorf("segment %d written after unmap", s.id)
		}
	}
	return nil
}

func (f *Fake) allSegments() []*segment {
	var all []*segment
	for _, s := range f.segs {
		all = append(all, s)
	}
	for _, s := range f.gone {
		all = append(all, s)
	}
	return all
}
