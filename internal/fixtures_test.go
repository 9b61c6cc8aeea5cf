package internal

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

// testImage draws a gradient with a bright block in one corner; seed shifts
// the colours so different seeds never encode to the same scan data.
func testImage(width, height, seed int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := color.RGBA{
				R: uint8((x*255)/width + seed*37),
				G: uint8((y*255)/height + seed*11),
				B: uint8(64 + seed*23),
				A: 255,
			}
			if x < width/4 && y < height/3 {
				c = color.RGBA{R: 250, G: 250, B: 250, A: 255}
			}
			img.Set(x, y, c)
		}
	}
	return img
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

type tiffEntry struct {
	tag   uint16
	typ   uint16
	count uint32
	data  []byte
}

func asciiTag(tag uint16, s string) tiffEntry {
	b := append([]byte(s), 0)
	return tiffEntry{tag: tag, typ: 2, count: uint32(len(b)), data: b}
}

func shortTag(tag, v uint16) tiffEntry {
	return tiffEntry{tag: tag, typ: 3, count: 1, data: binary.BigEndian.AppendUint16(nil, v)}
}

// exifApp1 builds a big-endian APP1 segment with the given IFD0 entries
// and, when sub is non-empty, an EXIF sub-IFD.
func exifApp1(ifd0, sub []tiffEntry) []byte {
	be := binary.BigEndian
	entries0 := append([]tiffEntry{}, ifd0...)
	if len(sub) > 0 {
		entries0 = append(entries0, tiffEntry{tag: 0x8769, typ: 4, count: 1})
	}
	subOff := 8 + 2 + 12*len(entries0) + 4
	dataOff := subOff
	if len(sub) > 0 {
		dataOff += 2 + 12*len(sub) + 4
	}
	if len(sub) > 0 {
		entries0[len(entries0)-1].data = be.AppendUint32(nil, uint32(subOff))
	}

	var data []byte
	ifd := func(entries []tiffEntry) []byte {
		b := be.AppendUint16(nil, uint16(len(entries)))
		for _, e := range entries {
			ent := make([]byte, 12)
			be.PutUint16(ent[0:], e.tag)
			be.PutUint16(ent[2:], e.typ)
			be.PutUint32(ent[4:], e.count)
			if len(e.data) <= 4 {
				copy(ent[8:], e.data)
			} else {
				be.PutUint32(ent[8:], uint32(dataOff+len(data)))
				data = append(data, e.data...)
				if len(data)%2 == 1 {
					data = append(data, 0)
				}
			}
			b = append(b, ent...)
		}
		return append(b, 0, 0, 0, 0)
	}

	tiff := []byte("MM\x00\x2a\x00\x00\x00\x08")
	tiff = append(tiff, ifd(entries0)...)
	if len(sub) > 0 {
		tiff = append(tiff, ifd(sub)...)
	}
	tiff = append(tiff, data...)

	payload := append([]byte("Exif\x00\x00"), tiff...)
	seg := []byte{0xFF, 0xE1, 0, 0}
	be.PutUint16(seg[2:], uint16(len(payload)+2))
	return append(seg, payload...)
}

// photoExif describes the EXIF block of a test photo. Empty strings and a
// zero orientation leave the tag out.
type photoExif struct {
	dateTimeOriginal string
	subSecOriginal   string
	offsetOriginal   string
	dateTime         string
	subSec           string
	orientation      uint16
}

func (p photoExif) segment() []byte {
	var ifd0, sub []tiffEntry
	if p.orientation != 0 {
		ifd0 = append(ifd0, shortTag(0x0112, p.orientation))
	}
	if p.dateTime != "" {
		ifd0 = append(ifd0, asciiTag(0x0132, p.dateTime))
	}
	if p.dateTimeOriginal != "" {
		sub = append(sub, asciiTag(0x9003, p.dateTimeOriginal))
	}
	if p.offsetOriginal != "" {
		sub = append(sub, asciiTag(0x9011, p.offsetOriginal))
	}
	if p.subSec != "" {
		sub = append(sub, asciiTag(0x9290, p.subSec))
	}
	if p.subSecOriginal != "" {
		sub = append(sub, asciiTag(0x9291, p.subSecOriginal))
	}
	return exifApp1(ifd0, sub)
}

func withSegment(jpg, seg []byte) []byte {
	out := append([]byte{}, jpg[:2]...)
	out = append(out, seg...)
	return append(out, jpg[2:]...)
}

// writePhoto writes a JPEG of the given size carrying meta to dir/name.
func writePhoto(t *testing.T, dir, name string, width, height, seed int, meta photoExif) string {
	t.Helper()
	data := withSegment(encodeJPEG(t, testImage(width, height, seed)), meta.segment())
	return writeFile(t, dir, name, data)
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func box(typ string, payload ...[]byte) []byte {
	size := 8
	for _, p := range payload {
		size += len(p)
	}
	b := binary.BigEndian.AppendUint32(nil, uint32(size))
	b = append(b, typ...)
	for _, p := range payload {
		b = append(b, p...)
	}
	return b
}

// mvhdBox builds a version 0 movie header with the given creation time in
// seconds since 1904.
func mvhdBox(created uint32) []byte {
	p := make([]byte, 100)
	binary.BigEndian.PutUint32(p[4:], created)
	binary.BigEndian.PutUint32(p[8:], created)
	binary.BigEndian.PutUint32(p[12:], 1000)
	binary.BigEndian.PutUint32(p[20:], 0x00010000)
	binary.BigEndian.PutUint16(p[24:], 0x0100)
	binary.BigEndian.PutUint32(p[36:], 0x00010000)
	binary.BigEndian.PutUint32(p[52:], 0x00010000)
	binary.BigEndian.PutUint32(p[68:], 0x40000000)
	binary.BigEndian.PutUint32(p[96:], 2)
	return box("mvhd", p)
}

// appleMeta builds a QuickTime meta box whose single key is the Apple
// creation date.
func appleMeta(date string) []byte {
	hdlr := make([]byte, 24)
	copy(hdlr[8:], "mdta")
	hdlr = append(hdlr, 0)

	key := binary.BigEndian.AppendUint32(nil, uint32(8+len(appleCreationDateKey)))
	key = append(key, "mdta"...)
	key = append(key, appleCreationDateKey...)
	keys := box("keys", []byte{0, 0, 0, 0}, binary.BigEndian.AppendUint32(nil, 1), key)

	value := append([]byte{0, 0, 0, 1, 0, 0, 0, 0}, date...)
	item := box("\x00\x00\x00\x01", box("data", value))
	return box("meta", box("hdlr", hdlr), keys, box("ilst", item))
}

// movie returns an MP4 file with an mvhd creation time and, when date is
// non-empty, QuickTime metadata.
func movie(mvhdTime time.Time, date string) []byte {
	var created uint32
	if !mvhdTime.IsZero() {
		created = uint32(mvhdTime.Unix() + quickTimeEpochOffset)
	}
	moov := [][]byte{mvhdBox(created)}
	if date != "" {
		moov = append(moov, appleMeta(date))
	}
	ftyp := box("ftyp", []byte("isom"), []byte{0, 0, 2, 0}, []byte("isommp42"))
	return append(ftyp, box("moov", moov...)...)
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
