package internal

import (
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strings"
	"syscall"

	"mediacopy/internal/jpegtran"
)

// ErrorCategory represents the type of error encountered
type ErrorCategory string

const (
	ErrorCategoryIO          ErrorCategory = "io_error"              // File system, permissions, disk space
	ErrorCategoryMetadata    ErrorCategory = "metadata_error"        // Timestamp or orientation unusable
	ErrorCategoryUnsupported ErrorCategory = "unsupported_format"    // Not a media file, or a JPEG the rotator refuses
	ErrorCategoryExhausted   ErrorCategory = "destination_exhausted" // No free suffix for a destination
	ErrorCategoryUnknown     ErrorCategory = "unknown_error"
)

// ErrorSeverity indicates how critical the error is
type ErrorSeverity string

const (
	ErrorSeverityCritical ErrorSeverity = "critical" // Ends the run
	ErrorSeverityError    ErrorSeverity = "error"    // The file was not processed
	ErrorSeverityWarning  ErrorSeverity = "warning"  // Skipped or degraded, run unaffected
)

// ProcessError is a categorized error for one file
type ProcessError struct {
	FilePath    string
	Category    ErrorCategory
	Severity    ErrorSeverity
	OriginalErr error
	Suggestion  string
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("[%s/%s] %s: %v", e.Severity, e.Category, e.FilePath, e.OriginalErr)
}

func (e *ProcessError) Unwrap() error { return e.OriginalErr }

// CategorizeError classifies err, first by sentinel and errno, then by
// message for errors that lost their type on the way.
func CategorizeError(filePath string, err error) *ProcessError {
	if err == nil {
		return nil
	}
	pe := &ProcessError{FilePath: filePath, OriginalErr: err}

	switch {
	case errors.Is(err, ErrNoUniqueDestination):
		pe.Category, pe.Severity = ErrorCategoryExhausted, ErrorSeverityCritical
		pe.Suggestion = "Add time fields such as %H%M%S to the pattern so files get distinct names"
		return pe
	case errors.Is(err, ErrNotMedia):
		pe.Category, pe.Severity = ErrorCategoryUnsupported, ErrorSeverityWarning
		pe.Suggestion = "No capture date found - try --exiftool for formats the built-in probes cannot read"
		return pe
	case errors.Is(err, ErrInvalidMetadata), errors.Is(err, ErrNoTimestamp):
		pe.Category, pe.Severity = ErrorCategoryMetadata, ErrorSeverityWarning
		pe.Suggestion = "The file's date or orientation tag is malformed - it was skipped"
		return pe
	case errors.Is(err, jpegtran.ErrUnsupported):
		pe.Category, pe.Severity = ErrorCategoryUnsupported, ErrorSeverityWarning
		pe.Suggestion = "The JPEG was copied without rotation"
		return pe
	case errors.Is(err, syscall.ENOSPC):
		pe.Category, pe.Severity = ErrorCategoryIO, ErrorSeverityError
		pe.Suggestion = "Free up disk space on the destination drive and retry"
		return pe
	case errors.Is(err, fs.ErrPermission):
		pe.Category, pe.Severity = ErrorCategoryIO, ErrorSeverityError
		pe.Suggestion = "Check file permissions on both source and destination directories"
		return pe
	case errors.Is(err, fs.ErrNotExist):
		pe.Category, pe.Severity = ErrorCategoryIO, ErrorSeverityError
		pe.Suggestion = "Source file disappeared during the run - check if an external drive disconnected"
		return pe
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "no space left"):
		pe.Category, pe.Severity = ErrorCategoryIO, ErrorSeverityError
		pe.Suggestion = "Free up disk space on the destination drive and retry"
	case strings.Contains(errStr, "read-only file system"):
		pe.Category, pe.Severity = ErrorCategoryIO, ErrorSeverityError
		pe.Suggestion = "Destination filesystem is read-only - check mount options"
	case strings.Contains(errStr, "too many open files"):
		pe.Category, pe.Severity = ErrorCategoryIO, ErrorSeverityError
		pe.Suggestion = "System file descriptor limit reached - increase ulimit"
	case strings.Contains(errStr, "input/output error"):
		pe.Category, pe.Severity = ErrorCategoryIO, ErrorSeverityError
		pe.Suggestion = "I/O error - check disk health with SMART tools"
	case strings.Contains(errStr, "exif") || strings.Contains(errStr, "metadata"):
		pe.Category, pe.Severity = ErrorCategoryMetadata, ErrorSeverityWarning
		pe.Suggestion = "Metadata could not be read - the file was skipped"
	default:
		pe.Category, pe.Severity = ErrorCategoryUnknown, ErrorSeverityError
		pe.Suggestion = "Unexpected error - check the log file for details"
	}
	return pe
}

// ErrorStats tracks error statistics during a run
type ErrorStats struct {
	Total      int
	Critical   int
	Errors     int
	Warnings   int
	ByCategory map[ErrorCategory]int
	LastErrors []*ProcessError // Last 5 errors for quick diagnosis
}

func NewErrorStats() *ErrorStats {
	return &ErrorStats{
		ByCategory: make(map[ErrorCategory]int),
		LastErrors: make([]*ProcessError, 0, 5),
	}
}

func (s *ErrorStats) Add(err *ProcessError) {
	s.Total++
	s.ByCategory[err.Category]++

	switch err.Severity {
	case ErrorSeverityCritical:
		s.Critical++
	case ErrorSeverityError:
		s.Errors++
	case ErrorSeverityWarning:
		s.Warnings++
	}

	if len(s.LastErrors) >= 5 {
		s.LastErrors = s.LastErrors[1:]
	}
	s.LastErrors = append(s.LastErrors, err)
}

// Report renders a human-readable summary of the collected errors.
func (s *ErrorStats) Report() string {
	var report strings.Builder

	fmt.Fprintf(&report, "%d problems:\n", s.Total)
	if s.Critical > 0 {
		fmt.Fprintf(&report, "  critical: %d\n", s.Critical)
	}
	if s.Errors > 0 {
		fmt.Fprintf(&report, "  errors:   %d\n", s.Errors)
	}
	if s.Warnings > 0 {
		fmt.Fprintf(&report, "  warnings: %d\n", s.Warnings)
	}

	cats := make([]string, 0, len(s.ByCategory))
	for cat := range s.ByCategory {
		cats = append(cats, string(cat))
	}
	slices.Sort(cats)
	report.WriteString("\nBy category:\n")
	for _, cat := range cats {
		fmt.Fprintf(&report, "  %s: %d\n", cat, s.ByCategory[ErrorCategory(cat)])
	}

	report.WriteString("\nRecent:\n")
	for i, err := range s.LastErrors {
		fmt.Fprintf(&report, "%d. %s\n", i+1, err.FilePath)
		fmt.Fprintf(&report, "   %s/%s: %v\n", err.Category, err.Severity, err.OriginalErr)
		if err.Suggestion != "" {
			fmt.Fprintf(&report, "   hint: %s\n", err.Suggestion)
		}
	}

	if s.ByCategory[ErrorCategoryUnsupported] > s.Total/2 {
		report.WriteString("\nMost problems are unrecognised files - consider --exiftool\n")
	}
	return report.String()
}
