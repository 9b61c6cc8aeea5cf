package jpegtran

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"
)

type outComponent struct {
	src    *component
	h, v   int
	bw, bh int
	table  int
}

type layout struct {
	t             Transform
	width, height int
	mcux, mcuy    int
	comps         []outComponent
}

func (f *frame) layout(t Transform) *layout {
	l := &layout{t: t, width: f.width, height: f.height, mcux: f.mcux, mcuy: f.mcuy}
	if t.swapsAxes() {
		l.width, l.height = f.height, f.width
		l.mcux, l.mcuy = f.mcuy, f.mcux
	}
	for i, c := range f.comps {
		oc := outComponent{src: c, h: c.h, v: c.v, bw: c.bw, bh: c.bh}
		if t.swapsAxes() {
			oc.h, oc.v = c.v, c.h
			oc.bw, oc.bh = c.bh, c.bw
		}
		if i > 0 {
			oc.table = 1
		}
		l.comps = append(l.comps, oc)
	}
	return l
}

// each visits every block of the output scan in coding order with its
// coefficients already rotated.
func (l *layout) each(fn func(ci int, b *block) error) error {
	var tmp block
	visit := func(ci, bx, by int) error {
		c := &l.comps[ci]
		sx, sy := l.t.sourceBlock(bx, by, c.src.bw, c.src.bh)
		l.t.apply(&tmp, c.src.at(sx, sy))
		return fn(ci, &tmp)
	}

	if len(l.comps) == 1 {
		c := &l.comps[0]
		for by := 0; by < c.bh; by++ {
			for bx := 0; bx < c.bw; bx++ {
				if err := visit(0, bx, by); err != nil {
					return err
				}
			}
		}
		return nil
	}
	for my := 0; my < l.mcuy; my++ {
		for mx := 0; mx < l.mcux; mx++ {
			for ci := range l.comps {
				c := &l.comps[ci]
				for v := 0; v < c.v; v++ {
					for h := 0; h < c.h; h++ {
						if err := visit(ci, mx*c.h+h, my*c.v+v); err != nil {
							return err
						}
					}
				}
			}
		}
	}
	return nil
}

// entropySink receives the symbols and raw bits of the entropy coder. The
// first pass counts symbol frequencies, the second writes the stream.
type entropySink interface {
	symbol(class, table int, sym byte) error
	bits(v uint32, n uint)
}

type freqCounter struct {
	freq [2][2][256]int64
}

func (c *freqCounter) symbol(class, table int, sym byte) error {
	c.freq[class][table][sym]++
	return nil
}

func (c *freqCounter) bits(uint32, uint) {}

type streamWriter struct {
	w   *bitWriter
	enc [2][2]*huffEncoder
}

func (s *streamWriter) symbol(class, table int, sym byte) error {
	e := s.enc[class][table]
	if e.size[sym] == 0 {
		return fmt.Errorf("symbol 0x%02X missing from huffman table", sym)
	}
	s.w.emit(uint32(e.code[sym]), uint(e.size[sym]))
	return nil
}

func (s *streamWriter) bits(v uint32, n uint) { s.w.emit(v, n) }

const (
	classDC = 0
	classAC = 1
)

func encodeBlock(sink entropySink, table int, b *block, pred *int32) error {
	diff := int32(b[0]) - *pred
	*pred = int32(b[0])
	mag, val := magnitude(diff)
	if mag > 11 {
		return fmt.Errorf("DC difference %d out of range", diff)
	}
	if err := sink.symbol(classDC, table, byte(mag)); err != nil {
		return err
	}
	sink.bits(val, mag)

	run := 0
	for k := 1; k < 64; k++ {
		c := int32(b[unzig[k]])
		if c == 0 {
			run++
			continue
		}
		for run > 15 {
			if err := sink.symbol(classAC, table, 0xF0); err != nil {
				return err
			}
			run -= 16
		}
		mag, val := magnitude(c)
		if mag > 10 {
			return fmt.Errorf("AC coefficient %d out of range", c)
		}
		if err := sink.symbol(classAC, table, byte(run<<4)|byte(mag)); err != nil {
			return err
		}
		sink.bits(val, mag)
		run = 0
	}
	if run > 0 {
		return sink.symbol(classAC, table, 0x00)
	}
	return nil
}

// magnitude returns the size category of v and the bits that encode it.
func magnitude(v int32) (uint, uint32) {
	a := v
	if a < 0 {
		a = -a
		v--
	}
	n := uint(bits.Len32(uint32(a)))
	return n, uint32(v) & (1<<n - 1)
}

func (l *layout) code(sink entropySink) error {
	preds := make([]int32, len(l.comps))
	return l.each(func(ci int, b *block) error {
		return encodeBlock(sink, l.comps[ci].table, b, &preds[ci])
	})
}

func (f *frame) encode(t Transform, resetOrientation bool) ([]byte, error) {
	l := f.layout(t)
	tables := 1
	if len(l.comps) > 1 {
		tables = 2
	}

	counter := &freqCounter{}
	if err := l.code(counter); err != nil {
		return nil, err
	}
	var specs [2][2]huffSpec
	sw := &streamWriter{}
	for class := 0; class < 2; class++ {
		for tbl := 0; tbl < tables; tbl++ {
			s, err := optimalSpec(&counter.freq[class][tbl])
			if err != nil {
				return nil, err
			}
			specs[class][tbl] = s
			sw.enc[class][tbl] = newHuffEncoder(s)
		}
	}

	var out bytes.Buffer
	out.Write([]byte{0xFF, markerSOI})

	for _, s := range f.extra {
		payload := s.payload
		if resetOrientation && s.marker == markerAPP1 && isExif(payload) {
			patched, err := resetExifOrientation(payload)
			switch {
			case err == nil:
				payload = patched
			case !errors.Is(err, errNoExifOrient):
				return nil, err
			}
		}
		if err := writeSegment(&out, s.marker, payload); err != nil {
			return nil, err
		}
	}

	for tq := 0; tq < 4; tq++ {
		used := false
		for _, c := range f.comps {
			used = used || int(c.tq) == tq
		}
		if !used {
			continue
		}
		if f.quant[tq] == nil {
			return nil, fmt.Errorf("quantization table %d not defined", tq)
		}
		q := t.quant(f.quant[tq])
		p := []byte{q.precision<<4 | byte(tq)}
		for i := 0; i < 64; i++ {
			if q.precision == 0 {
				p = append(p, byte(q.q[unzig[i]]))
			} else {
				p = binary.BigEndian.AppendUint16(p, q.q[unzig[i]])
			}
		}
		if err := writeSegment(&out, markerDQT, p); err != nil {
			return nil, err
		}
	}

	sof := []byte{8}
	sof = binary.BigEndian.AppendUint16(sof, uint16(l.height))
	sof = binary.BigEndian.AppendUint16(sof, uint16(l.width))
	sof = append(sof, byte(len(l.comps)))
	for _, c := range l.comps {
		sof = append(sof, c.src.id, byte(c.h<<4|c.v), c.src.tq)
	}
	if err := writeSegment(&out, f.sof, sof); err != nil {
		return nil, err
	}

	var dht []byte
	for class := 0; class < 2; class++ {
		for tbl := 0; tbl < tables; tbl++ {
			s := specs[class][tbl]
			dht = append(dht, byte(class<<4|tbl))
			dht = append(dht, s.counts[:]...)
			dht = append(dht, s.vals...)
		}
	}
	if err := writeSegment(&out, markerDHT, dht); err != nil {
		return nil, err
	}

	sos := []byte{byte(len(l.comps))}
	for _, c := range l.comps {
		sos = append(sos, c.src.id, byte(c.table<<4|c.table))
	}
	sos = append(sos, 0, 63, 0)
	if err := writeSegment(&out, markerSOS, sos); err != nil {
		return nil, err
	}

	sw.w = &bitWriter{buf: &out}
	if err := l.code(sw); err != nil {
		return nil, err
	}
	sw.w.flush()

	out.Write([]byte{0xFF, markerEOI})
	return out.Bytes(), nil
}

func writeSegment(out *bytes.Buffer, marker byte, payload []byte) error {
	if len(payload)+2 > 0xFFFF {
		return fmt.Errorf("segment 0x%02X too large", marker)
	}
	out.Write([]byte{0xFF, marker})
	_ = binary.Write(out, binary.BigEndian, uint16(len(payload)+2))
	out.Write(payload)
	return nil
}
