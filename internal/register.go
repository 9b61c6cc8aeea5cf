package internal

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/ncruces/go-strftime"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

// MaxSuffix is the highest numeric suffix tried for one destination before
// the register gives up. Reaching it means the pattern does not separate
// files at all (for example one without time fields over a huge input).
const MaxSuffix = 1 << 20

// ErrNoUniqueDestination aborts a run: no free suffix up to MaxSuffix.
var ErrNoUniqueDestination = errors.New("no unique destination path")

// FileRegister assigns each file a destination below a base directory and
// remembers collisions for a final duplicate sweep. It is not safe for
// concurrent use; a run owns its register.
type FileRegister struct {
	destDir string
	pattern string
	useUTC  bool

	registry  map[string]FileInfo
	conflicts map[string][]string

	isDuplicate func(a, b string) (bool, error)
	maxSuffix   int
	log         logrus.FieldLogger
}

func NewFileRegister(destDir, pattern string, useUTC bool, log logrus.FieldLogger) *FileRegister {
	return &FileRegister{
		destDir:     destDir,
		pattern:     pattern,
		useUTC:      useUTC,
		registry:    make(map[string]FileInfo),
		conflicts:   make(map[string][]string),
		isDuplicate: IsDuplicate,
		maxSuffix:   MaxSuffix,
		log:         log,
	}
}

// DestinationPath renders the pattern for f and appends "_suffix" (when
// suffix > 0) and the source extension.
func (r *FileRegister) DestinationPath(f FileInfo, suffix int) string {
	name := strftime.Format(r.pattern, DestinationTime(f, r.useUTC))
	if suffix > 0 {
		name = fmt.Sprintf("%s_%d", name, suffix)
	}
	name += filepath.Ext(f.Path())
	return filepath.Join(r.destDir, filepath.FromSlash(name))
}

// Add returns the destination for f, or ok=false when f duplicates a file
// already registered or already present at a candidate path.
func (r *FileRegister) Add(f FileInfo) (dest string, ok bool, err error) {
	var collided []string
	for suffix := 0; suffix <= r.maxSuffix; suffix++ {
		candidate := r.DestinationPath(f, suffix)

		if existing, found := r.registry[candidate]; found {
			// A moved source is gone; its destination holds the content.
			other := existing.Path()
			if !exists(other) {
				other = candidate
			}
			dup, err := r.isDuplicate(f.Path(), other)
			if err != nil {
				return "", false, err
			}
			if dup {
				r.log.WithField("src", f.Path()).Infof("duplicate of %s", existing.Path())
				return "", false, nil
			}
			collided = append(collided, candidate)
			continue
		}

		_, err := os.Stat(candidate)
		switch {
		case err == nil:
			dup, err := r.isDuplicate(f.Path(), candidate)
			if err != nil {
				return "", false, err
			}
			if dup {
				r.log.WithField("src", f.Path()).Infof("already present at %s", candidate)
				return "", false, nil
			}
			collided = append(collided, candidate)
			continue
		case !errors.Is(err, fs.ErrNotExist):
			return "", false, err
		}

		r.registry[candidate] = f
		if len(collided) > 0 {
			r.conflicts[candidate] = collided
		}
		return candidate, true, nil
	}
	return "", false, fmt.Errorf("%s: %w (tried %d suffixes of %s)", f.Path(), ErrNoUniqueDestination, r.maxSuffix+1, r.DestinationPath(f, 0))
}

// Registered returns the file info accepted for dest.
func (r *FileRegister) Registered(dest string) (FileInfo, bool) {
	f, ok := r.registry[dest]
	return f, ok
}

// RemoveDuplicates deletes accepted destinations that turned out to equal
// one of the paths they collided with. The earlier path is kept. It returns
// the removed paths and every error met on the way.
func (r *FileRegister) RemoveDuplicates() ([]string, error) {
	var removed []string
	var errs error
	for _, path := range sortedKeys(r.conflicts) {
		if !exists(path) {
			continue
		}
		for _, other := range r.conflicts[path] {
			if !exists(other) {
				continue
			}
			dup, err := r.isDuplicate(path, other)
			if err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			if !dup {
				continue
			}
			if err := os.Remove(path); err != nil {
				errs = multierr.Append(errs, err)
				break
			}
			r.log.WithField("dest", path).Infof("removed duplicate of %s", other)
			removed = append(removed, path)
			break
		}
	}
	return removed, errs
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func sortedKeys(m map[string][]string) []string {
	// Lexical order keeps the sweep reproducible.
	return slices.Sorted(maps.Keys(m))
}
