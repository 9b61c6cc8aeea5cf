package jpegtran

import "fmt"

type scanComponent struct {
	c      *component
	dc, ac *huffDecoder
}

// decodeScan reads one sequential Huffman scan starting at pos and returns
// the offset of the marker following its entropy-coded data.
func (f *frame) decodeScan(p []byte, data []byte, pos int) (int, error) {
	if f.comps == nil {
		return pos, fmt.Errorf("scan before frame header")
	}
	if len(p) < 1 {
		return pos, errTruncated
	}
	ns := int(p[0])
	if ns < 1 || ns > 4 || len(p) != 4+2*ns {
		return pos, fmt.Errorf("bad SOS header")
	}

	scomps := make([]scanComponent, ns)
	for i := 0; i < ns; i++ {
		c := f.component(p[1+2*i])
		if c == nil {
			return pos, fmt.Errorf("scan references unknown component %d", p[1+2*i])
		}
		if c.decoded {
			return pos, fmt.Errorf("%w: component %d coded in more than one scan", ErrUnsupported, c.id)
		}
		td, ta := p[2+2*i]>>4, p[2+2*i]&0x0F
		if td > 3 || ta > 3 || f.dc[td] == nil || f.ac[ta] == nil {
			return pos, fmt.Errorf("scan references undefined huffman table")
		}
		scomps[i] = scanComponent{c: c, dc: f.dc[td], ac: f.ac[ta]}
	}
	ss, se, ahal := p[1+2*ns], p[2+2*ns], p[3+2*ns]
	if ss != 0 || se != 63 || ahal != 0 {
		return pos, fmt.Errorf("%w: spectral selection %d-%d approximation 0x%02X", ErrUnsupported, ss, se, ahal)
	}

	r := &bitReader{data: data, pos: pos}
	preds := make([]int32, ns)
	units := 0
	startUnit := func() error {
		if f.restart > 0 && units > 0 && units%f.restart == 0 {
			if err := r.restart(); err != nil {
				return err
			}
			clear(preds)
		}
		units++
		return nil
	}

	if ns == 1 {
		sc := scomps[0]
		c := sc.c
		w := ceilDiv(ceilDiv(f.width*c.h, f.hmax), 8)
		h := ceilDiv(ceilDiv(f.height*c.v, f.vmax), 8)
		for by := 0; by < h; by++ {
			for bx := 0; bx < w; bx++ {
				if err := startUnit(); err != nil {
					return pos, err
				}
				if err := decodeBlock(r, sc.dc, sc.ac, &preds[0], c.at(bx, by)); err != nil {
					return pos, fmt.Errorf("component %d block %d,%d: %w", c.id, bx, by, err)
				}
			}
		}
	} else {
		for my := 0; my < f.mcuy; my++ {
			for mx := 0; mx < f.mcux; mx++ {
				if err := startUnit(); err != nil {
					return pos, err
				}
				for i, sc := range scomps {
					c := sc.c
					for v := 0; v < c.v; v++ {
						for h := 0; h < c.h; h++ {
							if err := decodeBlock(r, sc.dc, sc.ac, &preds[i], c.at(mx*c.h+h, my*c.v+v)); err != nil {
								return pos, fmt.Errorf("mcu %d,%d: %w", mx, my, err)
							}
						}
					}
				}
			}
		}
	}

	for _, sc := range scomps {
		sc.c.decoded = true
	}
	return r.end(), nil
}

func decodeBlock(r *bitReader, dc, ac *huffDecoder, pred *int32, b *block) error {
	t, err := dc.decode(r)
	if err != nil {
		return err
	}
	if t > 11 {
		return fmt.Errorf("DC category %d out of range", t)
	}
	v, err := r.receive(int(t))
	if err != nil {
		return err
	}
	*pred += extend(v, int(t))
	b[0] = int16(*pred)

	for k := 1; k < 64; {
		rs, err := ac.decode(r)
		if err != nil {
			return err
		}
		run, size := int(rs>>4), int(rs&0x0F)
		if size == 0 {
			if run != 15 {
				break
			}
			k += 16
			continue
		}
		k += run
		if k > 63 {
			return fmt.Errorf("AC coefficient index %d out of range", k)
		}
		v, err := r.receive(size)
		if err != nil {
			return err
		}
		b[unzig[k]] = int16(extend(v, size))
		k++
	}
	return nil
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
