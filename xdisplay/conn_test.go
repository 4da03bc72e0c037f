package xdisplay_test

import (
	"errors"
	"image"
	"os"
	"testing"

	"handmade.dev/present/backbuf"
	"handmade.dev/present/shm"
	"handmade.dev/present/xdisplay"
)

func TestOpenEmptyRect(t *testing.T) {
	_, err := xdisplay.Open(&xdisplay.Options{Display: ":nonexistent"})
	if err == nil {
		t.Fatal("Open with an empty rectangle succeeded")
	}
	for _, kind := range []error{backbuf.ErrConnection, backbuf.ErrAllocation, backbuf.ErrProtocol} {
		if errors.Is(err, kind) {
			t.Errorf("Open = %v; want a configuration error, not %v", err, kind)
		}
	}
}

func TestOpenNegativeBorder(t *testing.T) {
	_, err := xdisplay.Open(&xdisplay.Options{
		Display: ":nonexistent",
		Rect:    image.Rect(0, 0, 10, 10),
		Border:  -1,
	})
	if err == nil || errors.Is(err, backbuf.ErrConnection) {
		t.Errorf("Open = %v; want a configuration error", err)
	}
}

func TestOpenNoServer(t *testing.T) {
	_, err := xdisplay.Open(&xdisplay.Options{
		Display: "/nonexistent/socket:99",
		Rect:    image.Rect(0, 0, 10, 10),
	})
	if !errors.Is(err, backbuf.ErrConnection) {
		t.Errorf("Open = %v; want ErrConnection", err)
	}
}

// TestPresentLive runs a few resize and present cycles against a real
// server. It needs $DISPLAY.
func TestPresentLive(t *testing.T) {
	if os.Getenv("DISPLAY") == "" {
		t.Skip("no $DISPLAY")
	}
	c, err := xdisplay.Open(&xdisplay.Options{Title: "xdisplay test", Rect: image.Rect(0, 0, 64, 48)})
	if err != nil {
		t.Skipf("no usable X server: %v", err)
	}
	for _, await := range []bool{false, true} {
		m := backbuf.New(c, shm.SysV{}, &backbuf.Options{AwaitPresent: await})
		for _, sz := range []image.Point{{64, 48}, {200, 100}, {1, 1}} {
			if err := m.Resize(c.Window(), sz.X, sz.Y); err != nil {
				t.Fatalf("Resize(%v): %v", sz, err)
			}
			m.Surface().SetPixel(0, 0, backbuf.Pack(0xff, 0xff, 0xff))
			if err := m.Present(c.Window()); err != nil {
				t.Fatalf("Present: %v", err)
			}
		}
		if err := m.Release(); err != nil {
			t.Fatalf("Release: %v", err)
		}
	}
	for {
		e, err := c.PollEvent()
		if err != nil {
			t.Fatalf("PollEvent: %v", err)
		}
		if e == nil {
			break
		}
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
}
