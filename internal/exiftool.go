package internal

import (
	"fmt"
	"sync"
	"time"

	"github.com/barasher/go-exiftool"
)

// exiftoolProbe starts exiftool lazily on first use and keeps it running in
// stay_open mode for the rest of the run.
type exiftoolProbe struct {
	mu  sync.Mutex
	et  *exiftool.Exiftool
	bin string
}

// EnableExiftool adds the exiftool fallback for files the native probes
// cannot date. bin may be empty to use exiftool from PATH.
func (e *Extractor) EnableExiftool(bin string) {
	e.exiftool = &exiftoolProbe{bin: bin}
}

func (p *exiftoolProbe) ensure() (*exiftool.Exiftool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.et != nil {
		return p.et, nil
	}
	var opts []func(*exiftool.Exiftool) error
	if p.bin != "" {
		opts = append(opts, exiftool.SetExiftoolBinaryPath(p.bin))
	}
	et, err := exiftool.NewExiftool(opts...)
	if err != nil {
		return nil, fmt.Errorf("start exiftool: %w", err)
	}
	p.et = et
	return et, nil
}

func (p *exiftoolProbe) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.et == nil {
		return nil
	}
	err := p.et.Close()
	p.et = nil
	return err
}

var (
	exiftoolImageFields = []struct{ time, offset string }{
		{"DateTimeOriginal", "OffsetTimeOriginal"},
		{"CreateDate", "OffsetTimeDigitized"},
		{"ModifyDate", "OffsetTime"},
	}
	exiftoolSubSecFields = []string{"SubSecTimeOriginal", "SubSecTimeDigitized", "SubSecTime"}
	exiftoolZonedLayouts = []string{
		"2006:01:02 15:04:05-07:00",
		"2006:01:02 15:04:05Z07:00",
		"2006:01:02 15:04:05.999999999-07:00",
	}
)

func (p *exiftoolProbe) probe(path string, video bool) (FileInfo, error) {
	et, err := p.ensure()
	if err != nil {
		return nil, err
	}
	infos := et.ExtractMetadata(path)
	if len(infos) == 0 {
		return nil, fmt.Errorf("%s: exiftool returned nothing: %w", path, ErrNotMedia)
	}
	fm := infos[0]
	if fm.Err != nil {
		return nil, fmt.Errorf("%s: %v: %w", path, fm.Err, ErrNotMedia)
	}

	get := func(key string) (string, bool) {
		s, err := fm.GetString(key)
		if err != nil || s == "" || s == "0000:00:00 00:00:00" {
			return "", false
		}
		return s, true
	}

	if video {
		if s, ok := get("CreationDate"); ok {
			if ts, off, err := parseZonedTimestamp(s, exiftoolZonedLayouts); err == nil {
				return NewVideo(path, ts, &off)
			}
		}
		for _, key := range []string{"CreateDate", "MediaCreateDate", "TrackCreateDate"} {
			if s, ok := get(key); ok {
				if ts, err := parseTimestamp(s); err == nil {
					return NewVideo(path, ts, nil)
				}
			}
		}
		return nil, fmt.Errorf("%s: no creation date: %w", path, ErrNotMedia)
	}

	for _, field := range exiftoolImageFields {
		s, ok := get(field.time)
		if !ok {
			continue
		}
		ts, err := parseTimestamp(s)
		if err != nil {
			return nil, fmt.Errorf("%s %q: %w", field.time, s, ErrInvalidMetadata)
		}
		for _, key := range exiftoolSubSecFields {
			if sub, ok := get(key); ok {
				if d, err := parseSubSec(sub); err == nil {
					ts = ts.Add(d)
				}
				break
			}
		}
		var offset *time.Duration
		if s, ok := get(field.offset); ok {
			if off, err := parseOffset(s); err == nil {
				offset = &off
			}
		}
		return NewImage(path, ts, offset)
	}
	return nil, fmt.Errorf("%s: no capture date: %w", path, ErrNotMedia)
}
