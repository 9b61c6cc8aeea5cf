package internal

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"os"
)

// Comparison covers at most dupChunkSize*dupMaxChunks bytes (1 MiB) of
// each file past its header; equality beyond that is assumed.
const (
	dupChunkSize = 4096
	dupMaxChunks = 256
)

// IsDuplicate reports whether two files hold the same content. JPEG files
// are compared from their first start-of-scan marker, so copies that only
// differ in EXIF or other header segments are duplicates. A missing file is
// an error.
func IsDuplicate(a, b string) (bool, error) {
	fa, err := os.Open(a)
	if err != nil {
		return false, err
	}
	defer fa.Close()
	fb, err := os.Open(b)
	if err != nil {
		return false, err
	}
	defer fb.Close()

	ra, err := contentReader(fa)
	if err != nil {
		return false, err
	}
	rb, err := contentReader(fb)
	if err != nil {
		return false, err
	}
	return sameChunks(ra, rb)
}

// contentReader positions f at the data that identifies the image: the
// scan data of a JPEG, or byte zero for anything else, including a JPEG
// whose segments cannot be walked.
func contentReader(f *os.File) (io.Reader, error) {
	br := bufio.NewReaderSize(f, dupChunkSize)
	head, err := br.Peek(2)
	if err != nil || head[0] != 0xFF || head[1] != 0xD8 {
		return br, nil
	}
	if skipToScan(br) {
		return br, nil
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return bufio.NewReaderSize(f, dupChunkSize), nil
}

// skipToScan walks JPEG marker segments until just past an SOS marker.
func skipToScan(r *bufio.Reader) bool {
	if _, err := r.Discard(2); err != nil {
		return false
	}
	var buf [2]byte
	for {
		c, err := r.ReadByte()
		if err != nil || c != 0xFF {
			return false
		}
		// Any number of 0xFF fill bytes may precede the marker code.
		for c == 0xFF {
			if c, err = r.ReadByte(); err != nil {
				return false
			}
		}
		if c == 0xDA {
			return true
		}
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return false
		}
		n := int(binary.BigEndian.Uint16(buf[:]))
		if n < 2 {
			return false
		}
		if _, err := r.Discard(n - 2); err != nil {
			return false
		}
	}
}

func sameChunks(a, b io.Reader) (bool, error) {
	ba := make([]byte, dupChunkSize)
	bb := make([]byte, dupChunkSize)
	for i := 0; i < dupMaxChunks; i++ {
		na, errA := io.ReadFull(a, ba)
		nb, errB := io.ReadFull(b, bb)
		if err := readErr(errA); err != nil {
			return false, err
		}
		if err := readErr(errB); err != nil {
			return false, err
		}
		if na != nb || !bytes.Equal(ba[:na], bb[:nb]) {
			return false, nil
		}
		if na < dupChunkSize {
			return true, nil
		}
	}
	return true, nil
}

func readErr(err error) error {
	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return nil
	}
	return err
}
