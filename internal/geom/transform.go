package geom

// Transform maps a logical rectangle onto a physical one, axis by axis:
//
//	phys = (log - log.xy0) * scale + phys.xy0
//
// with scale = phys.SignedExtent / log.SignedExtent. A flipped physical rect
// (y growing downward) needs no special casing.
type Transform struct {
	logical  Rect
	physical Rect
	scale    Pair
}

func NewTransform(logical, physical Rect) Transform {
	return Transform{
		logical:  logical,
		physical: physical,
		scale:    physical.SignedExtent().Div(logical.SignedExtent()),
	}
}

func (t Transform) Logical() Rect  { return t.logical }
func (t Transform) Physical() Rect { return t.physical }
func (t Transform) Scale() Pair    { return t.scale }

func (t Transform) LogPtToPhys(p Pair) Pair {
	return p.Sub(t.logical.XY0()).Mul(t.scale).Add(t.physical.XY0())
}

func (t Transform) PhysPtToLog(p Pair) Pair {
	return p.Sub(t.physical.XY0()).Div(t.scale).Add(t.logical.XY0())
}

func (t Transform) LogRectToPhys(r Rect) Rect {
	a, b := t.LogPtToPhys(r.XY0()), t.LogPtToPhys(r.XY1())
	return Rect{X0: a.X, Y0: a.Y, X1: b.X, Y1: b.Y}
}

func (t Transform) PhysRectToLog(r Rect) Rect {
	a, b := t.PhysPtToLog(r.XY0()), t.PhysPtToLog(r.XY1())
	return Rect{X0: a.X, Y0: a.Y, X1: b.X, Y1: b.Y}
}
