// Handmade opens a window and redraws a scrolling gradient into it as
// fast as the display allows, through an X shared-memory back buffer.
//
// Usage:
//
//	handmade [-s geometry] [-fps n] [-await] [-title title] [-border width] [-display name]
//
// The geometry is WxH, WxH@X,Y or x0,y0,x1,y1 and defaults to
// 1920x1080@50,50. Setting $HANDMADETRACE to a non-empty value other
// than 0 logs the buffer and loop lifecycle to standard error.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"handmade.dev/present/backbuf"
	"handmade.dev/present/frame"
	"handmade.dev/present/gradient"
	"handmade.dev/present/shm"
	"handmade.dev/present/xdisplay"
)

var (
	winsize = flag.String("s", "1920x1080@50,50", "window `geometry`")
	fps     = flag.Int("fps", 0, "cap the frame rate at `n` frames per second; 0 is uncapped")
	await   = flag.Bool("await", false, "wait for each frame to be copied out before reusing the buffer")
	title   = flag.String("title", "Handmade", "window `title`")
	border  = flag.Int("border", 15, "window border `width` in pixels")
	display = flag.String("display", "", "X display `name` (default $DISPLAY)")
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: handmade [options]\n")
	flag.PrintDefaults()
	os.Exit(2)
}

func main() {
	log.SetPrefix("handmade: ")
	log.SetFlags(0)
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() != 0 {
		usage()
	}

	r, _, err := parsewinsize(*winsize)
	if err != nil {
		log.Fatal(err)
	}
	if r.Empty() {
		log.Fatalf("empty window size '%s'", *winsize)
	}

	level := slog.LevelWarn
	if p := os.Getenv("HANDMADETRACE"); p != "" && p != "0" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := xdisplay.Open(&xdisplay.Options{
		Display: *display,
		Title:   *title,
		Rect:    r,
		Border:  *border,
		Logger:  logger,
	})
	if err != nil {
		log.Fatal(err)
	}
	bb := backbuf.New(conn, shm.SysV{}, &backbuf.Options{Logger: logger, AwaitPresent: *await})

	pace := frame.PerSecond(*fps)
	if t, ok := pace.(*frame.Ticker); ok {
		defer t.Stop()
	}
	s := frame.New(conn, bb, new(gradient.Renderer), &frame.Config{
		Size:   r.Size(),
		Pacer:  pace,
		Logger: logger,
	})
	if err := s.Run(ctx); err != nil {
		stop()
		log.Fatal(err)
	}
	logger.Info("handmade: exit", "frames", s.Frames())
}
