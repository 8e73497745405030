package csv

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/couchcryptid/era5-etl/internal/domain"
)

// MergedFileName is the name of the merged table under the output root.
const MergedFileName = "era5_merged.csv"

// TimeLayout renders time columns.
const TimeLayout = "2006-01-02 15:04:05"

// Writer persists the merged table as <root>/MergedFileName.
// It implements pipeline.MergeLoader.
type Writer struct {
	root   string
	logger *slog.Logger
}

// NewWriter creates a Writer rooted at the output directory.
func NewWriter(root string, logger *slog.Logger) *Writer {
	return &Writer{root: root, logger: logger}
}

// Path returns the merged CSV path.
func (w *Writer) Path() string {
	return filepath.Join(w.root, MergedFileName)
}

// LoadMerged writes t to the merged CSV, replacing any previous file.
func (w *Writer) LoadMerged(ctx context.Context, t *domain.Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.root, 0o755); err != nil {
		return err
	}
	path := w.Path()
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, t); err != nil {
		f.Close() //nolint:errcheck // the encoding error is more useful
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	w.logger.Info("merged dataset saved", "path", path, "rows", t.Len(), "columns", len(t.Columns))
	return nil
}

// Write encodes t as CSV with a header row.
func Write(out io.Writer, t *domain.Table) error {
	bw := bufio.NewWriter(out)
	cw := csv.NewWriter(bw)

	if err := cw.Write(t.ColumnNames()); err != nil {
		return err
	}
	record := make([]string, len(t.Columns))
	for r := range t.Len() {
		for j := range t.Columns {
			record[j] = formatCell(&t.Columns[j], r)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return bw.Flush()
}

func formatCell(c *domain.Column, row int) string {
	if c.Kind == domain.KindString {
		return c.Strings[row]
	}
	return FormatValue(c, c.Values[row])
}

// FormatValue renders one numeric cell of c. NaN is written as an empty field.
func FormatValue(c *domain.Column, v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	switch c.Kind {
	case domain.KindTime:
		sec, frac := math.Modf(v)
		return time.Unix(int64(sec), int64(frac*1e9)).UTC().Format(TimeLayout)
	case domain.KindInt:
		return strconv.FormatInt(int64(v), 10)
	default:
		bits := c.BitSize
		if bits != 32 {
			bits = 64
		}
		return strconv.FormatFloat(v, 'f', -1, bits)
	}
}
