package internal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"mediacopy/internal/fsx"
	"mediacopy/internal/jpegtran"
)

// ErrAlreadyUpright is returned by RotateJpeg when there is nothing to do.
var ErrAlreadyUpright = errors.New("already upright")

// Filesystem hooks, replaced in tests.
var (
	renameFile = fsx.Rename
	removeFile = os.Remove
	copyFile   = fsx.CopyFile
)

// Outcome describes a successful Apply.
type Outcome struct {
	Rotated bool
	Bytes   int64
}

// Operation places one registered file at its destination.
type Operation interface {
	Apply(f FileInfo, dest string) (Outcome, error)
	Action() Action
}

// NewOperation returns the operation for cmd. With rotate set, JPEGs with
// a rotated orientation are straightened on the way.
func NewOperation(cmd Command, rotate bool, log logrus.FieldLogger) (Operation, error) {
	switch cmd {
	case CommandCopy:
		return &Copy{Rotate: rotate, log: log}, nil
	case CommandMove:
		return &Move{Rotate: rotate, log: log}, nil
	case CommandSimulate:
		return Simulate{}, nil
	}
	return nil, fmt.Errorf("unknown command %q", cmd)
}

type Copy struct {
	Rotate bool
	log    logrus.FieldLogger
}

func (c *Copy) Action() Action { return ActionCopied }

func (c *Copy) Apply(f FileInfo, dest string) (Outcome, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return Outcome{}, fmt.Errorf("failed to create directory %s: %w", filepath.Dir(dest), err)
	}
	if n, ok := rotateOrFallBack(f, dest, c.Rotate, c.log); ok {
		return Outcome{Rotated: true, Bytes: n}, nil
	}
	n, err := copyFile(f.Path(), dest)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Bytes: n}, nil
}

type Move struct {
	Rotate bool
	log    logrus.FieldLogger
}

func (m *Move) Action() Action { return ActionMoved }

// Apply renames f to dest. Across filesystems it copies and then removes
// the source; a source that cannot be removed is only a warning.
func (m *Move) Apply(f FileInfo, dest string) (Outcome, error) {
	src := f.Path()
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return Outcome{}, fmt.Errorf("failed to create directory %s: %w", filepath.Dir(dest), err)
	}
	if n, ok := rotateOrFallBack(f, dest, m.Rotate, m.log); ok {
		m.removeSource(src)
		return Outcome{Rotated: true, Bytes: n}, nil
	}

	st, err := os.Stat(src)
	if err != nil {
		return Outcome{}, err
	}
	err = renameFile(src, dest)
	if err == nil {
		return Outcome{Bytes: st.Size()}, nil
	}
	if !fsx.IsCrossDevice(err) {
		return Outcome{}, err
	}

	m.log.WithField("src", src).Debug("cross-device move, copying")
	n, err := copyFile(src, dest)
	if err != nil {
		return Outcome{}, err
	}
	m.removeSource(src)
	return Outcome{Bytes: n}, nil
}

func (m *Move) removeSource(src string) {
	if err := removeFile(src); err != nil {
		m.log.WithField("src", src).Warnf("copied but could not remove source: %v", err)
	}
}

// Simulate touches nothing; the worker reports the pair it would have used.
type Simulate struct{}

func (Simulate) Action() Action { return ActionSimulated }

func (Simulate) Apply(FileInfo, string) (Outcome, error) { return Outcome{}, nil }

// rotateOrFallBack writes a straightened copy of a rotated JPEG to dest.
// It reports false when the caller should copy the original bytes instead.
func rotateOrFallBack(f FileInfo, dest string, rotate bool, log logrus.FieldLogger) (int64, bool) {
	switch f := f.(type) {
	case *ImageJpeg:
		if !rotate {
			return 0, false
		}
		n, err := RotateJpeg(f, dest)
		switch {
		case err == nil:
			log.WithField("src", f.Path()).Debugf("rotated to upright (orientation %d)", f.Orientation)
			return n, true
		case errors.Is(err, ErrAlreadyUpright):
		case errors.Is(err, jpegtran.ErrUnsupported):
			log.WithField("src", f.Path()).Warnf("cannot rotate losslessly, copying unchanged: %v", err)
		default:
			log.WithField("src", f.Path()).Warnf("rotation failed, copying unchanged: %v", err)
		}
	case *Image, *Video:
	}
	return 0, false
}

// RotateJpeg writes f to dest rotated upright in the coefficient domain,
// with the orientation tag reset. It fails with ErrAlreadyUpright,
// jpegtran.ErrUnsupported, or an I/O error; dest is untouched on failure.
func RotateJpeg(f *ImageJpeg, dest string) (int64, error) {
	t, ok := f.Orientation.Transform()
	if !ok {
		return 0, ErrAlreadyUpright
	}
	data, err := os.ReadFile(f.Path())
	if err != nil {
		return 0, err
	}
	out, err := jpegtran.Apply(data, t)
	if err != nil {
		return 0, fmt.Errorf("%s: %s: %w", f.Path(), t, err)
	}
	if err := fsx.WriteFile(dest, out); err != nil {
		return 0, err
	}
	return int64(len(out)), nil
}
