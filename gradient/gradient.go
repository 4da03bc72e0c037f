// Package gradient is a placeholder payload for the render loop:
// a scrolling blue-green gradient with freehand scribbles on top.
package gradient

import (
	"encoding/binary"
	"image"
	"math"

	"golang.org/x/image/vector"
	"golang.org/x/mobile/event/mouse"

	"handmade.dev/present/backbuf"
)

// LineWidth is the width of scribbled strokes, in pixels.
const LineWidth = 4

// MaxPoints bounds the scribble history; the oldest strokes are
// dropped first.
const MaxPoints = 1 << 14

type point struct{ x, y float32 }

// A Renderer draws the gradient and remembers scribbles.
// Its zero value is ready to use.
type Renderer struct {
	// Offsets of the gradient, advanced once per frame.
	XOffset, YOffset int

	strokes [][]point
	npoint  int
	drawing bool

	z      vector.Rasterizer
	mask   image.Alpha // coverage of the strokes' bounding box
	origin point       // surface position of the mask's origin
}

// Render draws one frame into s and advances the gradient.
func (g *Renderer) Render(s *backbuf.Surface) {
	for y := 0; y < s.Height; y++ {
		row := s.Row(y)
		green := uint8(y + g.YOffset)
		for x := 0; x < s.Width; x++ {
			binary.NativeEndian.PutUint32(row[x*backbuf.BytesPerPixel:], backbuf.Pack(0, green, uint8(x+g.XOffset)))
		}
	}
	g.scribble(s)
	g.XOffset++
	g.YOffset += 2
}

// Handle records mouse input: any button press plots a point, and
// dragging with the left button held draws a line.
func (g *Renderer) Handle(e interface{}) {
	m, ok := e.(mouse.Event)
	if !ok {
		return
	}
	p := point{m.X, m.Y}
	switch m.Direction {
	case mouse.DirPress:
		g.strokes = append(g.strokes, []point{p})
		g.npoint++
		g.drawing = m.Button == mouse.ButtonLeft
	case mouse.DirRelease:
		g.drawing = false
	case mouse.DirNone:
		if !g.drawing || len(g.strokes) == 0 {
			return
		}
		last := len(g.strokes) - 1
		g.strokes[last] = append(g.strokes[last], p)
		g.npoint++
	}
	for g.npoint > MaxPoints && len(g.strokes) > 1 {
		g.npoint -= len(g.strokes[0])
		g.strokes = g.strokes[1:]
	}
}

// Strokes returns the number of strokes remembered.
func (g *Renderer) Strokes() int { return len(g.strokes) }

func (g *Renderer) scribble(s *backbuf.Surface) {
	if len(g.strokes) == 0 {
		return
	}
	const r = LineWidth / 2
	w, h := float32(s.Width), float32(s.Height)
	clamp := func(p point) point {
		return point{min(max(p.x, 0), w), min(max(p.y, 0), h)}
	}

	// Only the strokes' bounding box is rasterized and composited.
	lo, hi := point{w, h}, point{0, 0}
	for _, st := range g.strokes {
		for _, p := range st {
			a, b := clamp(point{p.x - r, p.y - r}), clamp(point{p.x + r, p.y + r})
			lo = point{min(lo.x, a.x), min(lo.y, a.y)}
			hi = point{max(hi.x, b.x), max(hi.y, b.y)}
		}
	}
	bb := image.Rect(int(lo.x), int(lo.y), int(math.Ceil(float64(hi.x))), int(math.Ceil(float64(hi.y))))
	bb = bb.Intersect(s.Bounds())
	if bb.Empty() {
		return
	}
	g.origin = point{float32(bb.Min.X), float32(bb.Min.Y)}

	g.z.Reset(bb.Dx(), bb.Dy())
	for _, st := range g.strokes {
		c := st[0]
		g.quad(clamp(point{c.x - r, c.y - r}), clamp(point{c.x + r, c.y - r}),
			clamp(point{c.x + r, c.y + r}), clamp(point{c.x - r, c.y + r}))
		for i := 1; i < len(st); i++ {
			a, b := st[i-1], st[i]
			dx, dy := b.x-a.x, b.y-a.y
			d := float32(math.Hypot(float64(dx), float64(dy)))
			if d == 0 {
				continue
			}
			nx, ny := -dy/d*r, dx/d*r
			g.quad(clamp(point{a.x + nx, a.y + ny}), clamp(point{b.x + nx, b.y + ny}),
				clamp(point{b.x - nx, b.y - ny}), clamp(point{a.x - nx, a.y - ny}))
		}
	}

	n := bb.Dx() * bb.Dy()
	if cap(g.mask.Pix) < n {
		g.mask.Pix = make([]uint8, n)
	}
	g.mask.Pix = g.mask.Pix[:n]
	clear(g.mask.Pix)
	g.mask.Stride = bb.Dx()
	g.mask.Rect = image.Rect(0, 0, bb.Dx(), bb.Dy())
	g.z.Draw(&g.mask, g.mask.Rect, image.Opaque, image.Point{})

	// Black over the gradient with the mask as coverage.
	for y := 0; y < bb.Dy(); y++ {
		row := s.Row(bb.Min.Y + y)[bb.Min.X*backbuf.BytesPerPixel:]
		for x, a := range g.mask.Pix[y*g.mask.Stride : (y+1)*g.mask.Stride] {
			if a == 0 {
				continue
			}
			px := row[x*backbuf.BytesPerPixel:]
			cr, cg, cb := backbuf.Unpack(binary.NativeEndian.Uint32(px))
			k := 0xff - uint32(a)
			binary.NativeEndian.PutUint32(px, backbuf.Pack(
				uint8(uint32(cr)*k/0xff), uint8(uint32(cg)*k/0xff), uint8(uint32(cb)*k/0xff)))
		}
	}
}

// quad adds the quadrilateral abcd to the path, wound clockwise on
// screen: overlapping opposite windings would cancel out.
func (g *Renderer) quad(a, b, c, d point) {
	area := a.x*b.y - b.x*a.y + b.x*c.y - c.x*b.y + c.x*d.y - d.x*c.y + d.x*a.y - a.x*d.y
	if area < 0 {
		b, d = d, b
	}
	o := g.origin
	g.z.MoveTo(a.x-o.x, a.y-o.y)
	g.z.LineTo(b.x-o.x, b.y-o.y)
	g.z.LineTo(c.x-o.x, c.y-o.y)
	g.z.LineTo(d.x-o.x, d.y-o.y)
	g.z.ClosePath()
}
