package main

import (
	"fmt"
	"image"
	"strconv"
)

// parsewinsize parses a window geometry, either "WxH", "WxH@X,Y"
// or the corners "x0,y0,x1,y1" (blanks may replace the commas).
// havemin reports whether the geometry included a position.
func parsewinsize(s string) (r image.Rectangle, havemin bool, err error) {
	oops := fmt.Errorf("bad syntax in window size '%s'", s)
	rest := s
	num := func() (int, bool) {
		i := 0
		for i < len(rest) && '0' <= rest[i] && rest[i] <= '9' {
			i++
		}
		if i == 0 {
			return 0, false
		}
		n, err := strconv.Atoi(rest[:i])
		rest = rest[i:]
		return n, err == nil
	}
	sep := func(c ...byte) (byte, bool) {
		if rest == "" {
			return 0, false
		}
		for _, x := range c {
			if rest[0] == x {
				rest = rest[1:]
				return x, true
			}
		}
		return 0, false
	}

	i, ok := num()
	if !ok {
		return r, false, oops
	}
	if _, ok := sep('x'); ok {
		j, ok := num()
		if !ok {
			return r, false, oops
		}
		r.Max = image.Pt(i, j)
		if rest == "" {
			return r, false, nil
		}
		if _, ok := sep('@'); !ok {
			return r, false, oops
		}
		x, ok := num()
		if !ok {
			return r, false, oops
		}
		if _, ok := sep(',', ' '); !ok {
			return r, false, oops
		}
		y, ok := num()
		if !ok || rest != "" {
			return r, false, oops
		}
		return r.Add(image.Pt(x, y)), true, nil
	}

	c, ok := sep(',', ' ')
	if !ok {
		return r, false, oops
	}
	j, ok := num()
	if !ok {
		return r, false, oops
	}
	if _, ok := sep(c); !ok {
		return r, false, oops
	}
	k, ok := num()
	if !ok {
		return r, false, oops
	}
	if _, ok := sep(c); !ok {
		return r, false, oops
	}
	l, ok := num()
	if !ok || rest != "" {
		return r, false, oops
	}
	return image.Rect(i, j, k, l), true, nil
}
