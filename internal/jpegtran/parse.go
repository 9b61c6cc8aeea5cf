package jpegtran

import (
	"encoding/binary"
	"fmt"
)

const (
	markerSOF0  = 0xC0
	markerSOF1  = 0xC1
	markerDHT   = 0xC4
	markerJPG   = 0xC8
	markerDAC   = 0xCC
	markerRST0  = 0xD0
	markerRST7  = 0xD7
	markerSOI   = 0xD8
	markerEOI   = 0xD9
	markerSOS   = 0xDA
	markerDQT   = 0xDB
	markerDNL   = 0xDC
	markerDRI   = 0xDD
	markerAPP0  = 0xE0
	markerAPP1  = 0xE1
	markerAPP15 = 0xEF
	markerCOM   = 0xFE
	markerTEM   = 0x01
)

// unzig maps zigzag scan position to natural (row-major) order.
var unzig = [64]int{
	0, 1, 8, 16, 9, 2, 3, 10,
	17, 24, 32, 25, 18, 11, 4, 5,
	12, 19, 26, 33, 40, 48, 41, 34,
	27, 20, 13, 6, 7, 14, 21, 28,
	35, 42, 49, 56, 57, 50, 43, 36,
	29, 22, 15, 23, 30, 37, 44, 51,
	58, 59, 52, 45, 38, 31, 39, 46,
	53, 60, 61, 54, 47, 55, 62, 63,
}

// maxPixels bounds the coefficient buffers we are willing to allocate.
const maxPixels = 1 << 28

type block [64]int16

type segment struct {
	marker  byte
	payload []byte
}

type quantTable struct {
	precision byte
	q         [64]uint16 // natural order
}

type component struct {
	id      byte
	h, v    int
	tq      byte
	bw, bh  int
	blocks  []block
	decoded bool
}

func (c *component) at(bx, by int) *block {
	return &c.blocks[by*c.bw+bx]
}

type frame struct {
	sof           byte
	width, height int
	hmax, vmax    int
	mcux, mcuy    int
	comps         []*component
	quant         [4]*quantTable
	extra         []segment
	restart       int
	dc, ac        [4]*huffDecoder
}

func parse(data []byte) (*frame, error) {
	if len(data) < 4 || data[0] != 0xFF || data[1] != markerSOI {
		return nil, errNotJPEG
	}
	f := &frame{}
	pos := 2
	for {
		if pos >= len(data) {
			// Missing EOI is tolerated once every component has its scan.
			return f, f.complete()
		}
		marker, next, err := readMarker(data, pos)
		if err != nil {
			return nil, err
		}
		pos = next

		switch {
		case marker == markerEOI:
			return f, f.complete()
		case marker >= markerRST0 && marker <= markerRST7, marker == markerTEM:
			continue
		}

		if pos+2 > len(data) {
			return nil, errTruncated
		}
		n := int(binary.BigEndian.Uint16(data[pos:]))
		if n < 2 || pos+n > len(data) {
			return nil, errTruncated
		}
		payload := data[pos+2 : pos+n]
		pos += n

		switch {
		case marker >= markerAPP0 && marker <= markerAPP15, marker == markerCOM:
			f.extra = append(f.extra, segment{marker: marker, payload: payload})
		case marker == markerDQT:
			err = f.parseDQT(payload)
		case marker == markerDHT:
			err = f.parseDHT(payload)
		case marker == markerDRI:
			if len(payload) != 2 {
				return nil, fmt.Errorf("bad DRI length %d", len(payload))
			}
			f.restart = int(binary.BigEndian.Uint16(payload))
		case marker == markerSOF0, marker == markerSOF1:
			err = f.parseSOF(marker, payload)
		case isFrameMarker(marker), marker == markerDAC:
			return nil, fmt.Errorf("%w: frame type 0x%02X", ErrUnsupported, marker)
		case marker == markerDNL:
			return nil, fmt.Errorf("%w: DNL marker", ErrUnsupported)
		case marker == markerSOS:
			pos, err = f.decodeScan(payload, data, pos)
		}
		if err != nil {
			return nil, err
		}
	}
}

func readMarker(data []byte, pos int) (byte, int, error) {
	if pos >= len(data) || data[pos] != 0xFF {
		return 0, pos, fmt.Errorf("expected marker at offset %d", pos)
	}
	for pos < len(data) && data[pos] == 0xFF {
		pos++
	}
	if pos >= len(data) {
		return 0, pos, errTruncated
	}
	return data[pos], pos + 1, nil
}

func isFrameMarker(m byte) bool {
	return m >= 0xC0 && m <= 0xCF && m != markerDHT && m != markerJPG && m != markerDAC
}

func (f *frame) complete() error {
	if f.comps == nil {
		return fmt.Errorf("no frame header")
	}
	for _, c := range f.comps {
		if !c.decoded {
			return fmt.Errorf("component %d has no scan", c.id)
		}
	}
	return nil
}

func (f *frame) parseDQT(p []byte) error {
	for len(p) > 0 {
		pq, tq := p[0]>>4, p[0]&0x0F
		if pq > 1 || tq > 3 {
			return fmt.Errorf("bad DQT table %d precision %d", tq, pq)
		}
		size := 64 * (int(pq) + 1)
		if len(p) < 1+size {
			return errTruncated
		}
		qt := &quantTable{precision: pq}
		for i := 0; i < 64; i++ {
			if pq == 0 {
				qt.q[unzig[i]] = uint16(p[1+i])
			} else {
				qt.q[unzig[i]] = binary.BigEndian.Uint16(p[1+2*i:])
			}
		}
		f.quant[tq] = qt
		p = p[1+size:]
	}
	return nil
}

func (f *frame) parseDHT(p []byte) error {
	for len(p) > 0 {
		if len(p) < 17 {
			return errTruncated
		}
		tc, th := p[0]>>4, p[0]&0x0F
		if tc > 1 || th > 3 {
			return fmt.Errorf("bad DHT class %d id %d", tc, th)
		}
		var counts [16]byte
		copy(counts[:], p[1:17])
		total := 0
		for _, c := range counts {
			total += int(c)
		}
		if len(p) < 17+total {
			return errTruncated
		}
		d, err := newHuffDecoder(counts, p[17:17+total])
		if err != nil {
			return err
		}
		if tc == 0 {
			f.dc[th] = d
		} else {
			f.ac[th] = d
		}
		p = p[17+total:]
	}
	return nil
}

func (f *frame) parseSOF(marker byte, p []byte) error {
	if f.comps != nil {
		return fmt.Errorf("multiple frame headers")
	}
	if len(p) < 6 {
		return errTruncated
	}
	if p[0] != 8 {
		return fmt.Errorf("%w: %d-bit samples", ErrUnsupported, p[0])
	}
	f.sof = marker
	f.height = int(binary.BigEndian.Uint16(p[1:]))
	f.width = int(binary.BigEndian.Uint16(p[3:]))
	nf := int(p[5])
	if f.height == 0 || f.width == 0 {
		return fmt.Errorf("%w: image height defined by DNL", ErrUnsupported)
	}
	if nf == 0 || nf > 4 {
		return fmt.Errorf("%w: %d components", ErrUnsupported, nf)
	}
	if len(p) != 6+3*nf {
		return fmt.Errorf("bad SOF length %d for %d components", len(p), nf)
	}
	if f.width*f.height > maxPixels {
		return fmt.Errorf("%w: %dx%d image too large", ErrUnsupported, f.width, f.height)
	}

	f.hmax, f.vmax = 1, 1
	for i := 0; i < nf; i++ {
		c := &component{
			id: p[6+3*i],
			h:  int(p[7+3*i] >> 4),
			v:  int(p[7+3*i] & 0x0F),
			tq: p[8+3*i],
		}
		if c.h < 1 || c.h > 4 || c.v < 1 || c.v > 4 || c.tq > 3 {
			return fmt.Errorf("bad component %d parameters", c.id)
		}
		for _, o := range f.comps {
			if o.id == c.id {
				return fmt.Errorf("duplicate component id %d", c.id)
			}
		}
		f.hmax = max(f.hmax, c.h)
		f.vmax = max(f.vmax, c.v)
		f.comps = append(f.comps, c)
	}
	if nf == 1 {
		// A lone component is always coded one block per MCU.
		f.comps[0].h, f.comps[0].v = 1, 1
		f.hmax, f.vmax = 1, 1
	}

	mw, mh := 8*f.hmax, 8*f.vmax
	if f.width%mw != 0 || f.height%mh != 0 {
		return fmt.Errorf("%w: %dx%d is not a multiple of the %dx%d MCU", ErrUnsupported, f.width, f.height, mw, mh)
	}
	f.mcux, f.mcuy = f.width/mw, f.height/mh
	for _, c := range f.comps {
		c.bw, c.bh = f.mcux*c.h, f.mcuy*c.v
		c.blocks = make([]block, c.bw*c.bh)
	}
	return nil
}

func (f *frame) component(id byte) *component {
	for _, c := range f.comps {
		if c.id == id {
			return c
		}
	}
	return nil
}
