package backbuf

import "fmt"

// Present makes the current contents of the live surface visible on win.
//
// The surface is first copied into the off-screen pixmap through shared
// memory, then the pixmap is copied onto the window, so the window never
// shows a frame the server is still reading. Present returns as soon as
// both requests are sent; it does not wait for the server.
func (m *Manager) Present(win Window) error {
	s := m.surf
	if !s.Live() {
		return ErrNoSurface
	}
	if err := m.srv.PutImage(m.pixmap, s.seg, s.Width, s.Height, m.await); err != nil {
		return fmt.Errorf("present: %w", err)
	}
	if err := m.srv.CopyArea(m.pixmap, win, s.Width, s.Height); err != nil {
		return fmt.Errorf("present: %w", err)
	}
	return nil
}
