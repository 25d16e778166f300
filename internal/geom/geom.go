// Package geom holds the 2-D primitives shared by projection, tile math and
// image compositing: points (Pair), axis-aligned rectangles (Rect) and the
// window/viewport affine transform between two rectangles.
//
// A Rect keeps its orientation: a rectangle whose Y1 is below Y0 is "flipped"
// and the sign of its extent carries that information through transforms.
package geom

import (
	"fmt"
	"math"
)

type Pair struct {
	X float64
	Y float64
}

func (p Pair) Add(o Pair) Pair { return Pair{X: p.X + o.X, Y: p.Y + o.Y} }
func (p Pair) Sub(o Pair) Pair { return Pair{X: p.X - o.X, Y: p.Y - o.Y} }
func (p Pair) Mul(o Pair) Pair { return Pair{X: p.X * o.X, Y: p.Y * o.Y} }
func (p Pair) Div(o Pair) Pair { return Pair{X: p.X / o.X, Y: p.Y / o.Y} }

func (p Pair) Scale(s float64) Pair { return Pair{X: p.X * s, Y: p.Y * s} }

func (p Pair) String() string { return fmt.Sprintf("(%g, %g)", p.X, p.Y) }

type Rect struct {
	X0 float64
	Y0 float64
	X1 float64
	Y1 float64
}

func NewRect(x0, y0, x1, y1 float64) Rect {
	return Rect{X0: x0, Y0: y0, X1: x1, Y1: y1}
}

// RectFromOriginAndExtent builds the rect starting at xy0 spanning ext.
func RectFromOriginAndExtent(xy0, ext Pair) Rect {
	return Rect{X0: xy0.X, Y0: xy0.Y, X1: xy0.X + ext.X, Y1: xy0.Y + ext.Y}
}

func (r Rect) XY0() Pair { return Pair{X: r.X0, Y: r.Y0} }
func (r Rect) XY1() Pair { return Pair{X: r.X1, Y: r.Y1} }

func (r Rect) SignedWidth() float64  { return r.X1 - r.X0 }
func (r Rect) SignedHeight() float64 { return r.Y1 - r.Y0 }

func (r Rect) Width() float64  { return math.Abs(r.SignedWidth()) }
func (r Rect) Height() float64 { return math.Abs(r.SignedHeight()) }

func (r Rect) SignedExtent() Pair { return Pair{X: r.SignedWidth(), Y: r.SignedHeight()} }
func (r Rect) Extent() Pair       { return Pair{X: r.Width(), Y: r.Height()} }

func (r Rect) IsFlippedX() bool { return r.X1 < r.X0 }
func (r Rect) IsFlippedY() bool { return r.Y1 < r.Y0 }

// Normalized returns r with X0<=X1 and Y0<=Y1.
func (r Rect) Normalized() Rect {
	out := r
	if out.IsFlippedX() {
		out.X0, out.X1 = out.X1, out.X0
	}
	if out.IsFlippedY() {
		out.Y0, out.Y1 = out.Y1, out.Y0
	}
	return out
}

func (r Rect) Offset(p Pair) Rect {
	return Rect{X0: r.X0 + p.X, Y0: r.Y0 + p.Y, X1: r.X1 + p.X, Y1: r.Y1 + p.Y}
}

// Resize keeps the origin corner and sets the signed extent to ext.
func (r Rect) Resize(ext Pair) Rect {
	return RectFromOriginAndExtent(r.XY0(), ext)
}

func (r Rect) Div(s float64) Rect {
	return Rect{X0: r.X0 / s, Y0: r.Y0 / s, X1: r.X1 / s, Y1: r.Y1 / s}
}

// Trunc truncates every coordinate toward zero.
func (r Rect) Trunc() Rect {
	return Rect{X0: math.Trunc(r.X0), Y0: math.Trunc(r.Y0), X1: math.Trunc(r.X1), Y1: math.Trunc(r.Y1)}
}

func (r Rect) Floor() Rect {
	return Rect{X0: math.Floor(r.X0), Y0: math.Floor(r.Y0), X1: math.Floor(r.X1), Y1: math.Floor(r.Y1)}
}

// Contains reports whether o lies inside r; both are compared normalized.
func (r Rect) Contains(o Rect) bool {
	a, b := r.Normalized(), o.Normalized()
	return a.X0 <= b.X0 && a.Y0 <= b.Y0 && b.X1 <= a.X1 && b.Y1 <= a.Y1
}

func (r Rect) String() string {
	return fmt.Sprintf("[%g,%g -> %g,%g]", r.X0, r.Y0, r.X1, r.Y1)
}
