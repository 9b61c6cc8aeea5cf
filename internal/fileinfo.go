package internal

import (
	"errors"
	"fmt"
	"time"

	"mediacopy/internal/jpegtran"
)

var (
	// ErrNoTimestamp is returned when a file info would carry a zero capture time.
	ErrNoTimestamp = errors.New("no capture timestamp")
	// ErrInvalidMetadata marks a metadata field that is present but unusable.
	ErrInvalidMetadata = errors.New("invalid metadata")
)

// FileInfo is one of *Image, *ImageJpeg or *Video. The set is closed: the
// unexported method keeps other packages from adding variants.
type FileInfo interface {
	Path() string
	Timestamp() time.Time
	Offset() (time.Duration, bool)
	fileInfo()
}

// capture holds what every variant shares. The timestamp is the wall clock
// recorded by the device, stored in time.UTC without conversion.
type capture struct {
	path      string
	timestamp time.Time
	offset    *time.Duration
}

func newCapture(path string, ts time.Time, offset *time.Duration) (capture, error) {
	if ts.IsZero() {
		return capture{}, fmt.Errorf("%s: %w", path, ErrNoTimestamp)
	}
	return capture{path: path, timestamp: ts, offset: offset}, nil
}

func (c *capture) Path() string         { return c.path }
func (c *capture) Timestamp() time.Time { return c.timestamp }

func (c *capture) Offset() (time.Duration, bool) {
	if c.offset == nil {
		return 0, false
	}
	return *c.offset, true
}

func (c *capture) fileInfo() {}

// DestinationTime is the time a destination pattern is rendered against.
// With useUTC and a known offset the wall clock is shifted to UTC;
// otherwise the recorded wall clock is used unchanged.
func DestinationTime(f FileInfo, useUTC bool) time.Time {
	ts := f.Timestamp()
	if off, ok := f.Offset(); ok && useUTC {
		return ts.Add(-off)
	}
	return ts
}

type Image struct{ capture }

func NewImage(path string, ts time.Time, offset *time.Duration) (*Image, error) {
	c, err := newCapture(path, ts, offset)
	if err != nil {
		return nil, err
	}
	return &Image{c}, nil
}

// ImageJpeg is a JPEG whose EXIF data declares an orientation.
type ImageJpeg struct {
	capture
	Orientation Orientation
}

// NewImageJpeg fails with ErrInvalidMetadata for mirrored or out-of-range
// orientation codes.
func NewImageJpeg(path string, ts time.Time, offset *time.Duration, o Orientation) (*ImageJpeg, error) {
	c, err := newCapture(path, ts, offset)
	if err != nil {
		return nil, err
	}
	if !o.Valid() {
		return nil, fmt.Errorf("%s: orientation %d: %w", path, int(o), ErrInvalidMetadata)
	}
	if !o.Correctable() {
		return nil, fmt.Errorf("%s: mirrored orientation %d: %w", path, int(o), ErrInvalidMetadata)
	}
	return &ImageJpeg{capture: c, Orientation: o}, nil
}

type Video struct{ capture }

func NewVideo(path string, ts time.Time, offset *time.Duration) (*Video, error) {
	c, err := newCapture(path, ts, offset)
	if err != nil {
		return nil, err
	}
	return &Video{c}, nil
}

// Orientation is the EXIF orientation code (tag 0x0112). The names say
// which clockwise rotation displays the image upright.
type Orientation int

const (
	OrientationUpright    Orientation = 1
	OrientationMirrored   Orientation = 2
	OrientationRotate180  Orientation = 3
	OrientationFlipped    Orientation = 4
	OrientationTranspose  Orientation = 5
	OrientationRotate90   Orientation = 6
	OrientationTransverse Orientation = 7
	OrientationRotate270  Orientation = 8
)

func (o Orientation) Valid() bool {
	return o >= OrientationUpright && o <= OrientationRotate270
}

// Correctable reports whether o is upright or a pure rotation.
func (o Orientation) Correctable() bool {
	switch o {
	case OrientationUpright, OrientationRotate90, OrientationRotate180, OrientationRotate270:
		return true
	}
	return false
}

// Transform returns the lossless rotation that makes the image upright.
// ok is false for upright and mirrored codes.
func (o Orientation) Transform() (t jpegtran.Transform, ok bool) {
	switch o {
	case OrientationRotate90:
		return jpegtran.Rotate90, true
	case OrientationRotate180:
		return jpegtran.Rotate180, true
	case OrientationRotate270:
		return jpegtran.Rotate270, true
	}
	return 0, false
}
