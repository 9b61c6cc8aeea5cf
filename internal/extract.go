package internal

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
	"github.com/sirupsen/logrus"
)

// ErrNotMedia means no capture time could be established for a file. It is
// an expected outcome: the file is skipped.
var ErrNotMedia = errors.New("not a media file")

// EXIF 2.31 offset tags, unknown to goexif.
const (
	OffsetTime          exif.FieldName = "OffsetTime"
	OffsetTimeOriginal  exif.FieldName = "OffsetTimeOriginal"
	OffsetTimeDigitized exif.FieldName = "OffsetTimeDigitized"
)

var offsetFields = map[uint16]exif.FieldName{
	0x9010: OffsetTime,
	0x9011: OffsetTimeOriginal,
	0x9012: OffsetTimeDigitized,
}

// offsetParser loads the offset tags from the EXIF sub-IFD.
type offsetParser struct{}

func (offsetParser) Parse(x *exif.Exif) error {
	tag, err := x.Get(exif.ExifIFDPointer)
	if err != nil {
		return nil
	}
	off, err := tag.Int64(0)
	if err != nil {
		return nil
	}
	r := bytes.NewReader(x.Raw)
	if _, err := r.Seek(off, io.SeekStart); err != nil {
		return nil
	}
	dir, _, err := tiff.DecodeDir(r, x.Tiff.Order)
	if err != nil {
		return nil
	}
	x.LoadTags(dir, offsetFields, false)
	return nil
}

func init() {
	exif.RegisterParsers(offsetParser{})
}

// Capture-time fields in priority order, each with the sub-second and
// offset fields that belong to it.
var timestampFields = []struct {
	time   exif.FieldName
	subSec exif.FieldName
	offset exif.FieldName
}{
	{exif.DateTimeOriginal, exif.SubSecTimeOriginal, OffsetTimeOriginal},
	{exif.DateTimeDigitized, exif.SubSecTimeDigitized, OffsetTimeDigitized},
	{exif.DateTime, exif.SubSecTime, OffsetTime},
}

var timestampLayouts = []string{
	"2006:01:02 15:04:05",
	"2006-01-02 15:04:05",
	"02:01:2006 15:04:05",
	"02-01-2006 15:04:05",
}

// Extractor turns a path into a FileInfo.
type Extractor struct {
	exiftool *exiftoolProbe
	log      logrus.FieldLogger
}

// NewExtractor returns an extractor using the native probes only. Call
// EnableExiftool to add the exiftool fallback.
func NewExtractor(log logrus.FieldLogger) *Extractor {
	return &Extractor{log: log}
}

// Close releases the exiftool process, if any.
func (e *Extractor) Close() error {
	if e.exiftool == nil {
		return nil
	}
	return e.exiftool.Close()
}

// Extract probes path as an image, then as a video, then through exiftool
// when enabled. Errors wrapping ErrNotMedia or ErrInvalidMetadata mean the
// file should be skipped; anything else is an I/O failure.
func (e *Extractor) Extract(path string) (FileInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	mt, err := mimetype.DetectReader(f)
	if err != nil {
		return nil, fmt.Errorf("detect type of %s: %w", path, err)
	}
	kind, _, _ := strings.Cut(mt.String(), "/")

	if kind == "image" {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
		info, err := probeImage(f, path, mt.Is("image/jpeg"))
		switch {
		case err == nil:
			return info, nil
		case errors.Is(err, ErrInvalidMetadata):
			return nil, err
		}
		e.log.WithField("src", path).Debugf("no usable exif: %v", err)
	}

	if isISOBMFF(f) {
		info, err := probeVideo(f, path)
		switch {
		case err == nil:
			return info, nil
		case errors.Is(err, ErrInvalidMetadata):
			return nil, err
		}
		e.log.WithField("src", path).Debugf("no usable movie header: %v", err)
	}

	if e.exiftool != nil && (kind == "image" || kind == "video") {
		return e.exiftool.probe(path, kind == "video")
	}
	return nil, fmt.Errorf("%s (%s): %w", path, mt.String(), ErrNotMedia)
}

func probeImage(r io.Reader, path string, isJPEG bool) (FileInfo, error) {
	x, err := exif.Decode(r)
	if err != nil && (x == nil || exif.IsCriticalError(err)) {
		return nil, err
	}

	ts, offset, err := exifTimestamp(x)
	if err != nil {
		return nil, err
	}

	if isJPEG {
		if tag, err := x.Get(exif.Orientation); err == nil {
			v, err := tag.Int(0)
			if err != nil {
				return nil, fmt.Errorf("%s: orientation: %w", path, ErrInvalidMetadata)
			}
			return NewImageJpeg(path, ts, offset, Orientation(v))
		}
	}
	return NewImage(path, ts, offset)
}

func exifTimestamp(x *exif.Exif) (time.Time, *time.Duration, error) {
	for _, field := range timestampFields {
		raw, ok := exifString(x, field.time)
		if !ok {
			continue
		}
		ts, err := parseTimestamp(raw)
		if err != nil {
			return time.Time{}, nil, fmt.Errorf("%s %q: %w", field.time, raw, ErrInvalidMetadata)
		}

		if s, ok := exifString(x, field.subSec); ok {
			sub, err := parseSubSec(s)
			if err != nil {
				return time.Time{}, nil, fmt.Errorf("%s %q: %w", field.subSec, s, ErrInvalidMetadata)
			}
			ts = ts.Add(sub)
		}

		var offset *time.Duration
		if s, ok := exifString(x, field.offset); ok {
			if off, err := parseOffset(s); err == nil {
				offset = &off
			}
		}
		return ts, offset, nil
	}
	return time.Time{}, nil, errors.New("no exif timestamp")
}

// exifString returns a trimmed ASCII field; blank and all-zero dates count
// as absent.
func exifString(x *exif.Exif, name exif.FieldName) (string, bool) {
	tag, err := x.Get(name)
	if err != nil {
		return "", false
	}
	s, err := tag.StringVal()
	if err != nil {
		return "", false
	}
	s = strings.Trim(s, " \x00")
	if s == "" || strings.Trim(s, "0: -") == "" {
		return "", false
	}
	return s, true
}

// parseTimestamp reads a wall-clock time with no zone.
func parseTimestamp(s string) (time.Time, error) {
	s = strings.Trim(s, " \x00")
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// parseSubSec interprets up to three digits as milliseconds and longer
// values as microseconds. Digits past the sixth are dropped.
func parseSubSec(s string) (time.Duration, error) {
	s = strings.Trim(s, " \x00")
	if len(s) > 6 {
		s = s[:6]
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, err
	}
	if len(s) <= 3 {
		return time.Duration(n) * time.Millisecond, nil
	}
	return time.Duration(n) * time.Microsecond, nil
}

// parseOffset reads "+01:00", "-0530" or "Z".
func parseOffset(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "Z" {
		return 0, nil
	}
	for _, layout := range []string{"-07:00", "-0700", "-07"} {
		if t, err := time.Parse(layout, s); err == nil {
			_, sec := t.Zone()
			return time.Duration(sec) * time.Second, nil
		}
	}
	return 0, fmt.Errorf("unrecognised utc offset %q", s)
}
