package backbuf

import (
	"encoding/binary"
	"image"
	"image/color"
)

// A Surface is a block of pixels shared between this process and the
// display server. Each pixel is a uint32 0x00RRGGBB in host byte order,
// so in memory the low byte is blue, then green, then red, then unused.
//
// Pix is non-nil if and only if the surface is live.
type Surface struct {
	Width  int
	Height int
	Stride int // bytes per row
	Pix    []byte

	shmid int
	seg   SegID
}

// Pack packs a color the way the surface stores it.
func Pack(r, g, b uint8) uint32 {
	return uint32(r)<<16 | uint32(g)<<8 | uint32(b)
}

// Unpack is the inverse of Pack.
func Unpack(p uint32) (r, g, b uint8) {
	return uint8(p >> 16), uint8(p >> 8), uint8(p)
}

// Live reports whether the surface memory may be used.
func (s *Surface) Live() bool { return s != nil && s.Pix != nil }

// Len returns the number of addressable pixel bytes.
func (s *Surface) Len() int { return len(s.Pix) }

// PixOffset returns the index of the first byte of pixel (x, y) in Pix.
func (s *Surface) PixOffset(x, y int) int {
	return y*s.Stride + x*BytesPerPixel
}

// SetPixel stores the packed pixel p at (x, y).
// It panics if (x, y) is outside the surface or the surface is not live.
func (s *Surface) SetPixel(x, y int, p uint32) {
	if uint(x) >= uint(s.Width) || uint(y) >= uint(s.Height) {
		panic("backbuf: pixel out of range")
	}
	i := s.PixOffset(x, y)
	binary.NativeEndian.PutUint32(s.Pix[i:i+4], p)
}

// Pixel returns the packed pixel at (x, y).
func (s *Surface) Pixel(x, y int) uint32 {
	if uint(x) >= uint(s.Width) || uint(y) >= uint(s.Height) {
		panic("backbuf: pixel out of range")
	}
	i := s.PixOffset(x, y)
	return binary.NativeEndian.Uint32(s.Pix[i : i+4])
}

// Row returns the bytes of row y, for callers that fill whole scanlines.
func (s *Surface) Row(y int) []byte {
	i := y * s.Stride
	return s.Pix[i : i+s.Width*BytesPerPixel]
}

// The methods below make a Surface an image/draw.Image.

func (s *Surface) ColorModel() color.Model { return color.RGBAModel }

func (s *Surface) Bounds() image.Rectangle { return image.Rect(0, 0, s.Width, s.Height) }

func (s *Surface) At(x, y int) color.Color {
	if !s.Live() || !(image.Point{x, y}.In(s.Bounds())) {
		return color.RGBA{}
	}
	r, g, b := Unpack(s.Pixel(x, y))
	return color.RGBA{r, g, b, 0xff}
}

func (s *Surface) Set(x, y int, c color.Color) {
	if !s.Live() || !(image.Point{x, y}.In(s.Bounds())) {
		return
	}
	r, g, b, _ := c.RGBA()
	s.SetPixel(x, y, Pack(uint8(r>>8), uint8(g>>8), uint8(b>>8)))
}
