package internal

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/abema/go-mp4"
)

// Seconds between the QuickTime epoch (1904-01-01) and the Unix epoch.
const quickTimeEpochOffset = 2082844800

const appleCreationDateKey = "com.apple.quicktime.creationdate"

var boxTypeData = mp4.StrToBoxType("data")

var appleDateLayouts = []string{
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05-07:00",
	"2006-01-02T15:04:05Z07:00",
}

func isISOBMFF(r io.ReadSeeker) bool {
	var head [8]byte
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return false
	}
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return false
	}
	return bytes.Equal(head[4:], []byte("ftyp"))
}

type movieTimes struct {
	created uint64 // mvhd, seconds since 1904 UTC
	hasMvhd bool
	keys    []string
	items   map[uint32][]byte
}

func readMovieTimes(r io.ReadSeeker) (*movieTimes, error) {
	mt := &movieTimes{items: map[uint32][]byte{}}
	_, err := mp4.ReadBoxStructure(r, func(h *mp4.ReadHandle) (interface{}, error) {
		switch h.BoxInfo.Type {
		case mp4.BoxTypeMoov(), mp4.BoxTypeMeta(), mp4.BoxTypeIlst(), mp4.BoxTypeUdta():
			return h.Expand()
		case mp4.BoxTypeMvhd():
			box, _, err := h.ReadPayload()
			if err != nil {
				return nil, err
			}
			if mvhd, ok := box.(*mp4.Mvhd); ok {
				mt.created = mvhd.GetCreationTime()
				mt.hasMvhd = true
			}
		case mp4.BoxTypeKeys():
			box, _, err := h.ReadPayload()
			if err != nil {
				return nil, err
			}
			if keys, ok := box.(*mp4.Keys); ok {
				mt.keys = mt.keys[:0]
				for _, k := range keys.Entries {
					mt.keys = append(mt.keys, string(k.KeyValue))
				}
			}
		case boxTypeData:
			// A value inside a numbered ilst entry: 4 bytes type, 4 bytes
			// locale, then the value.
			if len(h.Path) < 3 || h.Path[len(h.Path)-3] != mp4.BoxTypeIlst() {
				return nil, nil
			}
			var buf bytes.Buffer
			if _, err := h.ReadData(&buf); err != nil || buf.Len() < 8 {
				return nil, nil
			}
			parent := h.Path[len(h.Path)-2]
			mt.items[binary.BigEndian.Uint32(parent[:])] = buf.Bytes()[8:]
		default:
			if len(h.Path) < 2 || h.Path[len(h.Path)-2] != mp4.BoxTypeIlst() {
				return nil, nil
			}
			if h.BoxInfo.IsSupportedType() {
				box, _, err := h.ReadPayload()
				if err == nil {
					if item, ok := box.(*mp4.Item); ok && len(item.Data.Data) > 0 {
						mt.items[binary.BigEndian.Uint32(h.BoxInfo.Type[:])] = item.Data.Data
						return nil, nil
					}
				}
			}
			if _, err := h.Expand(); err != nil {
				return nil, nil
			}
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return mt, nil
}

// appleCreationDate returns the QuickTime metadata creation date, which
// carries the recording device's UTC offset.
func (mt *movieTimes) appleCreationDate() (string, bool) {
	for i, k := range mt.keys {
		if k != appleCreationDateKey {
			continue
		}
		v, ok := mt.items[uint32(i+1)]
		if !ok || len(v) == 0 {
			return "", false
		}
		return string(v), true
	}
	return "", false
}

func probeVideo(r io.ReadSeeker, path string) (FileInfo, error) {
	mt, err := readMovieTimes(r)
	if err != nil {
		return nil, err
	}

	if s, ok := mt.appleCreationDate(); ok {
		ts, offset, err := parseZonedTimestamp(s, appleDateLayouts)
		if err == nil {
			return NewVideo(path, ts, &offset)
		}
	}

	if !mt.hasMvhd || mt.created == 0 {
		return nil, errors.New("no creation time")
	}
	if mt.created < quickTimeEpochOffset {
		return nil, fmt.Errorf("creation time %d before 1970: %w", mt.created, ErrInvalidMetadata)
	}
	ts := time.Unix(int64(mt.created-quickTimeEpochOffset), 0).UTC()
	return NewVideo(path, ts, nil)
}

// parseZonedTimestamp returns the wall clock of s in time.UTC along with the
// zone offset it declared.
func parseZonedTimestamp(s string, layouts []string) (time.Time, time.Duration, error) {
	for _, layout := range layouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		_, sec := t.Zone()
		wall := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
		return wall, time.Duration(sec) * time.Second, nil
	}
	return time.Time{}, 0, fmt.Errorf("unrecognised zoned timestamp %q", s)
}
