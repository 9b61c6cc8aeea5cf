package jpegtran

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const tagOrientation = 0x0112

var exifHeader = []byte("Exif\x00\x00")

func isExif(payload []byte) bool {
	return bytes.HasPrefix(payload, exifHeader)
}

// resetExifOrientation returns a copy of an APP1 EXIF payload with the IFD0
// Orientation entry set to 1.
func resetExifOrientation(payload []byte) ([]byte, error) {
	out := append([]byte(nil), payload...)
	tiff := out[len(exifHeader):]
	if len(tiff) < 8 {
		return nil, fmt.Errorf("exif: short tiff header")
	}

	var order binary.ByteOrder
	switch string(tiff[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("exif: bad byte order %q", tiff[:2])
	}
	if order.Uint16(tiff[2:]) != 42 {
		return nil, fmt.Errorf("exif: bad tiff magic")
	}

	off := int(order.Uint32(tiff[4:]))
	if off < 8 || off+2 > len(tiff) {
		return nil, fmt.Errorf("exif: IFD0 offset %d out of range", off)
	}
	n := int(order.Uint16(tiff[off:]))
	for i := 0; i < n; i++ {
		e := off + 2 + 12*i
		if e+12 > len(tiff) {
			return nil, fmt.Errorf("exif: IFD0 entry %d out of range", i)
		}
		if order.Uint16(tiff[e:]) != tagOrientation {
			continue
		}
		typ, count := order.Uint16(tiff[e+2:]), order.Uint32(tiff[e+4:])
		if typ != 3 || count != 1 {
			return nil, fmt.Errorf("exif: orientation has type %d count %d", typ, count)
		}
		order.PutUint16(tiff[e+8:], 1)
		return out, nil
	}
	return out, errNoExifOrient
}
