package jpegtran

import (
	"fmt"
	"math"
)

type huffDecoder struct {
	maxcode [17]int32
	mincode [17]int32
	valptr  [17]int32
	vals    []byte
}

func newHuffDecoder(counts [16]byte, vals []byte) (*huffDecoder, error) {
	d := &huffDecoder{vals: append([]byte(nil), vals...)}
	code, k := int32(0), int32(0)
	for l := 1; l <= 16; l++ {
		n := int32(counts[l-1])
		d.valptr[l] = k
		d.mincode[l] = code
		code += n
		k += n
		if n > 0 {
			d.maxcode[l] = code - 1
		} else {
			d.maxcode[l] = -1
		}
		if code > 1<<l {
			return nil, fmt.Errorf("huffman table overflows %d-bit codes", l)
		}
		code <<= 1
	}
	return d, nil
}

func (d *huffDecoder) decode(r *bitReader) (byte, error) {
	code := int32(0)
	for l := 1; l <= 16; l++ {
		b, err := r.bit()
		if err != nil {
			return 0, err
		}
		code = code<<1 | int32(b)
		if code <= d.maxcode[l] {
			return d.vals[d.valptr[l]+code-d.mincode[l]], nil
		}
	}
	return 0, errBadHuffman
}

// huffSpec is a table as it appears in a DHT segment.
type huffSpec struct {
	counts [16]byte
	vals   []byte
}

// optimalSpec builds a length-limited Huffman table for the observed symbol
// frequencies, following the procedure of JPEG Annex K.2. Symbol 256 is a
// reserved pseudo-symbol so that no real code is all ones.
func optimalSpec(observed *[256]int64) (huffSpec, error) {
	var freq [257]int64
	copy(freq[:], observed[:])
	freq[256] = 1

	var codesize [257]int
	var others [257]int
	for i := range others {
		others[i] = -1
	}

	for {
		c1, c2 := -1, -1
		v := int64(math.MaxInt64)
		for i := 0; i <= 256; i++ {
			if freq[i] != 0 && freq[i] <= v {
				v = freq[i]
				c1 = i
			}
		}
		v = math.MaxInt64
		for i := 0; i <= 256; i++ {
			if freq[i] != 0 && freq[i] <= v && i != c1 {
				v = freq[i]
				c2 = i
			}
		}
		if c2 < 0 {
			break
		}

		freq[c1] += freq[c2]
		freq[c2] = 0

		codesize[c1]++
		for others[c1] >= 0 {
			c1 = others[c1]
			codesize[c1]++
		}
		others[c1] = c2

		codesize[c2]++
		for others[c2] >= 0 {
			c2 = others[c2]
			codesize[c2]++
		}
	}

	var bits [33]int
	for i := 0; i <= 256; i++ {
		if codesize[i] > 0 {
			if codesize[i] > 32 {
				return huffSpec{}, fmt.Errorf("huffman code length %d out of range", codesize[i])
			}
			bits[codesize[i]]++
		}
	}

	for i := 32; i > 16; i-- {
		for bits[i] > 0 {
			j := i - 2
			for bits[j] == 0 {
				j--
			}
			bits[i] -= 2
			bits[i-1]++
			bits[j+1] += 2
			bits[j]--
		}
	}
	i := 16
	for bits[i] == 0 {
		i--
	}
	bits[i]--

	var spec huffSpec
	for l := 1; l <= 16; l++ {
		spec.counts[l-1] = byte(bits[l])
	}
	for l := 1; l <= 32; l++ {
		for s := 0; s <= 255; s++ {
			if codesize[s] == l {
				spec.vals = append(spec.vals, byte(s))
			}
		}
	}
	return spec, nil
}

type huffEncoder struct {
	code [256]uint16
	size [256]uint8
}

func newHuffEncoder(s huffSpec) *huffEncoder {
	e := &huffEncoder{}
	code, k := uint32(0), 0
	for l := 1; l <= 16; l++ {
		for i := 0; i < int(s.counts[l-1]); i++ {
			sym := s.vals[k]
			e.code[sym] = uint16(code)
			e.size[sym] = uint8(l)
			code++
			k++
		}
		code <<= 1
	}
	return e
}
