// Package jpegtran rotates baseline JPEG images in the DCT coefficient
// domain. Pixels are never decoded, so the output carries exactly the
// information of the input.
package jpegtran

import (
	"errors"
	"fmt"
)

// Transform selects a clockwise rotation.
type Transform int

const (
	identity Transform = iota
	Rotate90
	Rotate180
	Rotate270
)

func (t Transform) String() string {
	switch t {
	case identity:
		return "none"
	case Rotate90:
		return "rotate 90"
	case Rotate180:
		return "rotate 180"
	case Rotate270:
		return "rotate 270"
	}
	return fmt.Sprintf("Transform(%d)", int(t))
}

// swapsAxes reports whether the transform exchanges width and height.
func (t Transform) swapsAxes() bool {
	return t == Rotate90 || t == Rotate270
}

// ErrUnsupported is returned for inputs the codec will not transform
// without loss: progressive or arithmetic coding, 12-bit samples, and
// dimensions that are not a whole number of MCUs.
var ErrUnsupported = errors.New("jpeg transform unsupported")

var (
	errNotJPEG      = errors.New("not a jpeg stream")
	errTruncated    = errors.New("truncated jpeg stream")
	errBadHuffman   = errors.New("invalid huffman code")
	errBadRestart   = errors.New("missing restart marker")
	errNoExifOrient = errors.New("exif orientation tag not found")
)

// Apply decodes the coefficients of data, rotates them by t and encodes a
// new JPEG. APPn and COM segments are kept; the EXIF orientation tag, when
// present, is rewritten to upright. Any error means the output must not be
// used.
func Apply(data []byte, t Transform) ([]byte, error) {
	switch t {
	case Rotate90, Rotate180, Rotate270:
	default:
		return nil, fmt.Errorf("invalid transform %v", t)
	}
	f, err := parse(data)
	if err != nil {
		return nil, err
	}
	return f.encode(t, true)
}
