// Package output writes run results as JSON files.
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"

	"newsdigest/internal/model"
)

// LatestFile is the name of the file mirroring the most recent result.
const LatestFile = "latest-data.json"

// Writer stores results under a directory.
type Writer struct {
	dir string
}

// New creates a Writer rooted at dir.
func New(dir string) *Writer {
	return &Writer{dir: dir}
}

// Dir returns the output directory.
func (w *Writer) Dir() string { return w.dir }

// FileName returns the dated result file name for date (YYYY-MM-DD).
func FileName(date string) string {
	return "news-data-" + date + ".json"
}

// Write stores result as its dated file and returns the file path.
// The latest pointer is left untouched; see WriteLatest.
func (w *Writer) Write(result *model.Result) (string, error) {
	data, err := encode(result)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(w.dir, 0o750); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	path := filepath.Join(w.dir, FileName(result.Date))
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write result: %w", err)
	}
	return path, nil
}

// WriteLatest replaces the latest pointer with result.
func (w *Writer) WriteLatest(result *model.Result) error {
	data, err := encode(result)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(w.dir, 0o750); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := renameio.WriteFile(filepath.Join(w.dir, LatestFile), data, 0o644); err != nil {
		return fmt.Errorf("write latest result: %w", err)
	}
	return nil
}

func encode(result *model.Result) ([]byte, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return append(data, '\n'), nil
}

// Read loads a result file by name from the output directory.
func (w *Writer) Read(name string) (*model.Result, error) {
	if name != filepath.Base(name) {
		return nil, fmt.Errorf("invalid result name %q", name)
	}
	data, err := os.ReadFile(filepath.Join(w.dir, name))
	if err != nil {
		return nil, fmt.Errorf("read result: %w", err)
	}
	var r model.Result
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return &r, nil
}
