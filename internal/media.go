package internal

import (
	"io/fs"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// Scanner walks an input tree in lexical order and yields regular files.
// Symlinks, devices and anything under a skipped directory are ignored.
type Scanner struct {
	root      string
	skipDirs  map[string]bool
	skipFiles map[string]bool
	log       logrus.FieldLogger
}

func NewScanner(root string, log logrus.FieldLogger) *Scanner {
	return &Scanner{
		root:      root,
		skipDirs:  make(map[string]bool),
		skipFiles: make(map[string]bool),
		log:       log,
	}
}

// SkipDir excludes dir and everything below it.
func (s *Scanner) SkipDir(dir string) {
	if dir != "" {
		s.skipDirs[filepath.Clean(dir)] = true
	}
}

func (s *Scanner) SkipFile(path string) {
	if path != "" {
		s.skipFiles[filepath.Clean(path)] = true
	}
}

// Walk calls fn for every file. fn may return fs.SkipAll to stop early;
// any other error ends the walk and is returned. Unreadable directories
// are logged and skipped.
func (s *Scanner) Walk(fn func(path string) error) error {
	return s.walk(fn, true)
}

func (s *Scanner) walk(fn func(path string) error, report bool) error {
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == s.root {
				return err
			}
			if report {
				s.log.WithField("src", path).Warnf("cannot read: %v", err)
			}
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != s.root && s.skipDirs[path] {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || s.skipFiles[path] {
			return nil
		}
		return fn(path)
	})
	if err == fs.SkipAll {
		return nil
	}
	return err
}

// Count returns the number of files Walk would visit.
func (s *Scanner) Count() (int, error) {
	n := 0
	err := s.walk(func(string) error {
		n++
		return nil
	}, false)
	return n, err
}
