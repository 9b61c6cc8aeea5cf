package jpegtran

import "bytes"

// bitReader reads entropy-coded bits, removing 0xFF00 stuffing. Once a
// marker is reached it yields zero bits, as decoders conventionally do for
// a short final MCU.
type bitReader struct {
	data     []byte
	pos      int
	cur      byte
	n        uint
	atMarker bool
	padded   int
}

func (r *bitReader) bit() (uint32, error) {
	if r.n == 0 {
		b, err := r.nextByte()
		if err != nil {
			return 0, err
		}
		r.cur = b
		r.n = 8
	}
	r.n--
	return uint32(r.cur>>r.n) & 1, nil
}

func (r *bitReader) nextByte() (byte, error) {
	if r.atMarker {
		r.padded++
		if r.padded > 64 {
			return 0, errTruncated
		}
		return 0, nil
	}
	if r.pos >= len(r.data) {
		return 0, errTruncated
	}
	b := r.data[r.pos]
	if b != 0xFF {
		r.pos++
		return b, nil
	}
	if r.pos+1 >= len(r.data) {
		return 0, errTruncated
	}
	if r.data[r.pos+1] == 0x00 {
		r.pos += 2
		return 0xFF, nil
	}
	r.atMarker = true
	return r.nextByte()
}

func (r *bitReader) receive(s int) (int32, error) {
	v := int32(0)
	for i := 0; i < s; i++ {
		b, err := r.bit()
		if err != nil {
			return 0, err
		}
		v = v<<1 | int32(b)
	}
	return v, nil
}

// restart consumes the next RSTn marker and resets bit alignment.
func (r *bitReader) restart() error {
	r.n = 0
	r.atMarker = false
	r.padded = 0
	p := r.pos
	for p+1 < len(r.data) && r.data[p] == 0xFF && r.data[p+1] == 0xFF {
		p++
	}
	if p+1 >= len(r.data) || r.data[p] != 0xFF || r.data[p+1] < markerRST0 || r.data[p+1] > markerRST7 {
		return errBadRestart
	}
	r.pos = p + 2
	return nil
}

// end returns the offset of the marker that terminates the scan.
func (r *bitReader) end() int {
	p := r.pos
	for p+1 < len(r.data) {
		if r.data[p] != 0xFF {
			p++
			continue
		}
		next := r.data[p+1]
		switch {
		case next == 0xFF:
			p++
		case next == 0x00, next >= markerRST0 && next <= markerRST7:
			p += 2
		default:
			return p
		}
	}
	return len(r.data)
}

func extend(v int32, s int) int32 {
	if s == 0 {
		return 0
	}
	if v < 1<<(s-1) {
		return v - (1 << s) + 1
	}
	return v
}

type bitWriter struct {
	buf *bytes.Buffer
	acc uint32
	n   uint
}

func (w *bitWriter) emit(bits uint32, n uint) {
	if n == 0 {
		return
	}
	w.acc = w.acc<<n | bits&(1<<n-1)
	w.n += n
	for w.n >= 8 {
		b := byte(w.acc >> (w.n - 8))
		w.buf.WriteByte(b)
		if b == 0xFF {
			w.buf.WriteByte(0x00)
		}
		w.n -= 8
	}
}

// flush pads the final byte with one bits.
func (w *bitWriter) flush() {
	if w.n > 0 {
		pad := 8 - w.n
		w.emit(1<<pad-1, pad)
	}
	w.acc = 0
}
