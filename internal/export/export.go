// Package export writes collected candles to CSV files in an output
// directory.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ahmethakanbesel/candle-csv/internal/candle"
)

const (
	timestampFormat = "2006-01-02 15:04:05"
	nameDateFormat  = "060102"
)

var header = []string{"timestamp", "open", "high", "low", "close", "volume"}

var nonAlnum = regexp.MustCompile(`[^A-Za-z0-9]`)

// FileName builds a readable, per-job unique name such as
// BTCUSDT-1h-240101-240131-1f0c2a9e.csv.
func FileName(symbol, timeframe string, start, end int64, jobID string) string {
	id := strings.ReplaceAll(jobID, "-", "")
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("%s-%s-%s-%s-%s.csv",
		strings.ToUpper(nonAlnum.ReplaceAllString(symbol, "")),
		timeframe,
		time.UnixMilli(start).UTC().Format(nameDateFormat),
		time.UnixMilli(end).UTC().Format(nameDateFormat),
		id,
	)
}

type Writer struct {
	dir string
}

// NewWriter creates dir if needed.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &Writer{dir: dir}, nil
}

func (w *Writer) Dir() string { return w.dir }

// Path resolves a file name inside the output directory. Names that would
// escape the directory are rejected.
func (w *Writer) Path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid file name: %q", name)
	}
	return filepath.Join(w.dir, name), nil
}

// Write stores candles under name. The file is written to a temporary name
// and renamed into place once flushed and closed, so name never refers to a
// partial file.
func (w *Writer) Write(name string, candles []candle.Candle) (err error) {
	path, err := w.Path(name)
	if err != nil {
		return err
	}

	f, err := os.CreateTemp(w.dir, "."+name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
		}
	}()

	if err = Encode(f, candles); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	if err = f.Sync(); err != nil {
		return fmt.Errorf("sync csv: %w", err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("close csv: %w", err)
	}
	if err = os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename csv: %w", err)
	}
	return nil
}

// Encode writes the header and one row per candle.
func Encode(out io.Writer, candles []candle.Candle) error {
	cw := csv.NewWriter(out)
	if err := cw.Write(header); err != nil {
		return err
	}
	row := make([]string, len(header))
	for _, c := range candles {
		row[0] = c.OpenTime().Format(timestampFormat)
		row[1] = formatDecimal(c.Open)
		row[2] = formatDecimal(c.High)
		row[3] = formatDecimal(c.Low)
		row[4] = formatDecimal(c.Close)
		row[5] = formatDecimal(c.Volume)
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// formatDecimal prints d with the scale it was parsed with, so exchange
// values such as "42283.58000000" are written unchanged.
func formatDecimal(d decimal.Decimal) string {
	if exp := d.Exponent(); exp < 0 {
		return d.StringFixed(-exp)
	}
	return d.String()
}
