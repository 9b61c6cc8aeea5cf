package jpegtran

// sourceBlock maps a block position in the rotated component plane back to
// the block it is taken from. sw and sh are the source plane size in blocks.
func (t Transform) sourceBlock(bx, by, sw, sh int) (int, int) {
	switch t {
	case Rotate90:
		return by, sh - 1 - bx
	case Rotate180:
		return sw - 1 - bx, sh - 1 - by
	case Rotate270:
		return sw - 1 - by, bx
	}
	return bx, by
}

// apply writes the rotated coefficients of src into dst. Both blocks are in
// natural order, index v*8+u for vertical frequency v and horizontal u.
// A quarter turn transposes the block and negates odd frequencies along one
// axis; a half turn negates every coefficient with odd u+v.
func (t Transform) apply(dst, src *block) {
	switch t {
	case Rotate90:
		for v := 0; v < 8; v++ {
			for u := 0; u < 8; u++ {
				c := src[u*8+v]
				if u&1 == 1 {
					c = -c
				}
				dst[v*8+u] = c
			}
		}
	case Rotate180:
		for v := 0; v < 8; v++ {
			for u := 0; u < 8; u++ {
				c := src[v*8+u]
				if (u+v)&1 == 1 {
					c = -c
				}
				dst[v*8+u] = c
			}
		}
	case Rotate270:
		for v := 0; v < 8; v++ {
			for u := 0; u < 8; u++ {
				c := src[u*8+v]
				if v&1 == 1 {
					c = -c
				}
				dst[v*8+u] = c
			}
		}
	default:
		*dst = *src
	}
}

// quant returns the quantization table matching coefficients rotated by t.
func (t Transform) quant(q *quantTable) *quantTable {
	if !t.swapsAxes() {
		return q
	}
	out := &quantTable{precision: q.precision}
	for v := 0; v < 8; v++ {
		for u := 0; u < 8; u++ {
			out.q[v*8+u] = q.q[u*8+v]
		}
	}
	return out
}
