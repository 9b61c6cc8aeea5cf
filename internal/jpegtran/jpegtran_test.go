package jpegtran

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
)

// testImage draws a gradient with an off-centre bright square so that every
// rotation produces a visibly different picture.
func testImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := color.RGBA{
				R: uint8((x * 255) / width),
				G: uint8((y * 255) / height),
				B: 64,
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

func encode(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// exifSegment builds an APP1 segment holding a single IFD0 Orientation entry.
func exifSegment(order binary.ByteOrder, orientation uint16) []byte {
	tiff := make([]byte, 26)
	if order == binary.LittleEndian {
		copy(tiff, "II")
	} else {
		copy(tiff, "MM")
	}
	order.PutUint16(tiff[2:], 42)
	order.PutUint32(tiff[4:], 8)
	order.PutUint16(tiff[8:], 1)
	order.PutUint16(tiff[10:], tagOrientation)
	order.PutUint16(tiff[12:], 3)
	order.PutUint32(tiff[14:], 1)
	order.PutUint16(tiff[18:], orientation)

	payload := append([]byte("Exif\x00\x00"), tiff...)
	seg := []byte{0xFF, markerAPP1, 0, 0}
	binary.BigEndian.PutUint16(seg[2:], uint16(len(payload)+2))
	return append(seg, payload...)
}

func withSegment(jpg, seg []byte) []byte {
	out := append([]byte{}, jpg[:2]...)
	out = append(out, seg...)
	return append(out, jpg[2:]...)
}

func decode(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return img
}

// maxDiff returns the largest per-channel difference between two images of
// the same size.
func maxDiff(t *testing.T, a, b image.Image) int {
	t.Helper()
	if a.Bounds().Size() != b.Bounds().Size() {
		t.Fatalf("size mismatch: %v vs %v", a.Bounds().Size(), b.Bounds().Size())
	}
	worst := 0
	ab, bb := a.Bounds(), b.Bounds()
	for y := 0; y < ab.Dy(); y++ {
		for x := 0; x < ab.Dx(); x++ {
			r1, g1, b1, _ := a.At(ab.Min.X+x, ab.Min.Y+y).RGBA()
			r2, g2, b2, _ := b.At(bb.Min.X+x, bb.Min.Y+y).RGBA()
			for _, d := range []int{int(r1>>8) - int(r2>>8), int(g1>>8) - int(g2>>8), int(b1>>8) - int(b2>>8)} {
				if d < 0 {
					d = -d
				}
				worst = max(worst, d)
			}
		}
	}
	return worst
}

func TestApply_MatchesPixelRotation(t *testing.T) {
	src := encode(t, testImage(64, 32))
	ref := decode(t, src)

	// imaging rotates counter-clockwise.
	tests := []struct {
		transform Transform
		want      image.Image
	}{
		{Rotate90, imaging.Rotate270(ref)},
		{Rotate180, imaging.Rotate180(ref)},
		{Rotate270, imaging.Rotate90(ref)},
	}
	for _, tt := range tests {
		t.Run(tt.transform.String(), func(t *testing.T) {
			out, err := Apply(src, tt.transform)
			if err != nil {
				t.Fatalf("Apply: %v", err)
			}
			got := decode(t, out)
			if d := maxDiff(t, got, tt.want); d > 12 {
				t.Errorf("rotated image differs from reference by %d", d)
			}
		})
	}
}

func TestApply_Grayscale(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 24, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 24; x++ {
			gray.SetGray(x, y, color.Gray{Y: uint8(x*10 + y)})
		}
	}
	src := encode(t, gray)

	out, err := Apply(src, Rotate90)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	got := decode(t, out)
	if got.Bounds().Dx() != 16 || got.Bounds().Dy() != 24 {
		t.Fatalf("expected 16x24, got %v", got.Bounds())
	}
	if d := maxDiff(t, got, imaging.Rotate270(decode(t, src))); d > 8 {
		t.Errorf("rotated grayscale differs by %d", d)
	}
}

func TestApply_RoundTripIsLossless(t *testing.T) {
	src := encode(t, testImage(48, 32))

	f, err := parse(src)
	if err != nil {
		t.Fatal(err)
	}
	plain, err := f.encode(identity, false)
	if err != nil {
		t.Fatal(err)
	}

	pairs := [][2]Transform{
		{Rotate90, Rotate270},
		{Rotate270, Rotate90},
		{Rotate180, Rotate180},
	}
	for _, p := range pairs {
		once, err := Apply(src, p[0])
		if err != nil {
			t.Fatalf("%v: %v", p[0], err)
		}
		back, err := Apply(once, p[1])
		if err != nil {
			t.Fatalf("%v: %v", p[1], err)
		}
		if !bytes.Equal(back, plain) {
			t.Errorf("%v then %v is not byte-identical to a re-encode of the original", p[0], p[1])
		}
	}
}

func TestApply_RejectsPartialMCU(t *testing.T) {
	src := encode(t, testImage(60, 32))
	_, err := Apply(src, Rotate90)
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestApply_RejectsProgressive(t *testing.T) {
	src := encode(t, testImage(32, 32))
	i := bytes.Index(src, []byte{0xFF, markerSOF0})
	if i < 0 {
		t.Fatal("no SOF0 in fixture")
	}
	src[i+1] = 0xC2

	_, err := Apply(src, Rotate180)
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestApply_NotJPEG(t *testing.T) {
	_, err := Apply([]byte("definitely not a jpeg"), Rotate90)
	if err == nil || errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected a decode error, got %v", err)
	}
}

func TestApply_ResetsOrientation(t *testing.T) {
	for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		src := withSegment(encode(t, testImage(32, 16)), exifSegment(order, 6))

		out, err := Apply(src, Rotate90)
		if err != nil {
			t.Fatalf("Apply: %v", err)
		}
		x, err := exif.Decode(bytes.NewReader(out))
		if err != nil {
			t.Fatalf("exif decode: %v", err)
		}
		tag, err := x.Get(exif.Orientation)
		if err != nil {
			t.Fatalf("orientation missing: %v", err)
		}
		if v, _ := tag.Int(0); v != 1 {
			t.Errorf("%v: orientation = %d, want 1", order, v)
		}
	}
}

func TestResetExifOrientation_Malformed(t *testing.T) {
	if _, err := resetExifOrientation([]byte("Exif\x00\x00XX")); err == nil {
		t.Fatal("expected error for short header")
	}
	seg := exifSegment(binary.BigEndian, 3)
	payload := seg[4:]
	payload[len(exifHeader)+11] = 0x13 // tag 0x0113
	if _, err := resetExifOrientation(payload); !errors.Is(err, errNoExifOrient) {
		t.Fatalf("expected errNoExifOrient, got %v", err)
	}
}

func TestOptimalSpec_LengthLimited(t *testing.T) {
	var freq [256]int64
	a, b := int64(1), int64(1)
	for i := 0; i < 40; i++ {
		freq[i] = a
		a, b = b, a+b
	}
	spec, err := optimalSpec(&freq)
	if err != nil {
		t.Fatal(err)
	}
	if len(spec.vals) != 40 {
		t.Fatalf("expected 40 symbols, got %d", len(spec.vals))
	}

	total := 0
	kraft := 0.0
	for l, n := range spec.counts {
		total += int(n)
		kraft += float64(n) / float64(uint(1)<<(l+1))
	}
	if total != 40 {
		t.Errorf("counts sum to %d", total)
	}
	if kraft >= 1 {
		t.Errorf("kraft sum %f leaves no room for the reserved code", kraft)
	}
}

func TestMagnitude(t *testing.T) {
	tests := []struct {
		in    int32
		n     uint
		value uint32
	}{
		{0, 0, 0},
		{1, 1, 1},
		{-1, 1, 0},
		{3, 2, 3},
		{-3, 2, 0},
		{-2, 2, 1},
		{255, 8, 255},
		{-1024, 11, 1023},
	}
	for _, tt := range tests {
		n, v := magnitude(tt.in)
		if n != tt.n || v != tt.value {
			t.Errorf("magnitude(%d) = %d,%d want %d,%d", tt.in, n, v, tt.n, tt.value)
		}
	}
}

func TestBitWriter_StuffsAndPads(t *testing.T) {
	var buf bytes.Buffer
	w := &bitWriter{buf: &buf}
	w.emit(0xFF, 8)
	w.emit(0x1, 2)
	w.flush()
	want := []byte{0xFF, 0x00, 0x7F}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("got % X want % X", buf.Bytes(), want)
	}
}
