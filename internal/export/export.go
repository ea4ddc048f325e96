// Package export writes the final relation to timestamped delimited and
// columnar files in the output directory.
package export

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/leapstack-labs/claimjoin/pkg/relation"
)

// TimestampLayout is the run timestamp embedded in file names (YYYYMMDD_HHMMSS).
const TimestampLayout = "20060102_150405"

// maxCollisions bounds the counter appended to a taken file name.
const maxCollisions = 1000

// Format is an export file format.
type Format string

// Supported formats.
const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatCSV, FormatParquet:
		return Format(s), nil
	default:
		return "", fmt.Errorf("unknown export format %q (expected csv or parquet)", s)
	}
}

// File describes one written export.
type File struct {
	Path   string `json:"path"`
	Format Format `json:"format"`
	Rows   int    `json:"rows"`
	Size   int64  `json:"size"`
}

// SizeKB returns the file size in kilobytes.
func (f *File) SizeKB() float64 {
	return float64(f.Size) / 1024
}

// Exporter writes relations into Dir.
type Exporter struct {
	Dir string

	// Now supplies the run timestamp. Nil means time.Now.
	Now func() time.Time
}

// FileName returns "{prefix}_{YYYYMMDD_HHMMSS}.{ext}".
func FileName(prefix string, ts time.Time, format Format) string {
	return fmt.Sprintf("%s_%s.%s", prefix, ts.Format(TimestampLayout), format)
}

// Export writes rel in the given format under a fresh name. A name that is
// already taken gets a "_N" counter; existing files are never overwritten.
func (e *Exporter) Export(rel *relation.Relation, prefix string, format Format) (*File, error) {
	if format == "" {
		format = FormatCSV
	}
	write, err := writerFor(format)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(e.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	now := time.Now
	if e.Now != nil {
		now = e.Now
	}

	f, path, err := createUnique(e.Dir, FileName(prefix, now(), format))
	if err != nil {
		return nil, err
	}

	if err := write(f, rel); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return nil, fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close %s: %w", path, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return &File{Path: path, Format: format, Rows: rel.Len(), Size: info.Size()}, nil
}

func writerFor(format Format) (func(io.Writer, *relation.Relation) error, error) {
	switch format {
	case FormatCSV:
		return WriteCSV, nil
	case FormatParquet:
		return WriteParquet, nil
	default:
		return nil, fmt.Errorf("unknown export format %q", format)
	}
}

// createUnique opens name in dir exclusively, appending _1, _2, ... before the
// extension while the name is taken.
func createUnique(dir, name string) (*os.File, string, error) {
	ext := filepath.Ext(name)
	base := name[:len(name)-len(ext)]

	candidate := name
	for n := 1; n <= maxCollisions; n++ {
		path := filepath.Join(dir, candidate)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644) //nolint:gosec // path is built from the output directory
		if err == nil {
			return f, path, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", fmt.Errorf("failed to create %s: %w", path, err)
		}
		candidate = fmt.Sprintf("%s_%d%s", base, n, ext)
	}
	return nil, "", fmt.Errorf("failed to find a free name for %s after %d attempts", name, maxCollisions)
}
