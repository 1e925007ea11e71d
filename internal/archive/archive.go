// Package archive maintains the bounded, date-keyed record of past runs.
package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/renameio/v2"

	"newsdigest/internal/model"
)

// Formats used for entry dates.
const (
	DateLayout        = "2006-01-02"
	DisplayDateLayout = "Monday, January 2, 2006"
)

// DefaultLimit is the number of entries kept when no limit is configured.
const DefaultLimit = 30

type document struct {
	Summaries []model.ArchiveEntry `json:"summaries"`
}

// Store reads and writes the archive file. It is not safe for concurrent writers.
type Store struct {
	path  string
	limit int
	log   *slog.Logger
}

// New creates a Store for the file at path.
func New(path string, limit int, log *slog.Logger) *Store {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Store{path: path, limit: limit, log: log}
}

// Path returns the archive file location.
func (s *Store) Path() string { return s.path }

// NewEntry builds an entry for date pointing at file.
func NewEntry(date time.Time, file string) model.ArchiveEntry {
	return model.ArchiveEntry{
		Date:        date.Format(DateLayout),
		DisplayDate: date.Format(DisplayDateLayout),
		File:        file,
	}
}

// Load returns the archived entries. A missing or corrupt file yields an empty archive.
func (s *Store) Load() []model.ArchiveEntry {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []model.ArchiveEntry{}
	}
	if err != nil {
		s.log.Warn("archive unreadable, starting empty", "path", s.path, "error", err)
		return []model.ArchiveEntry{}
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		s.log.Warn("archive corrupt, starting empty", "path", s.path, "error", err)
		return []model.ArchiveEntry{}
	}

	entries := make([]model.ArchiveEntry, 0, len(doc.Summaries))
	for _, e := range doc.Summaries {
		if _, err := time.Parse(DateLayout, e.Date); err != nil {
			s.log.Warn("dropping archive entry with invalid date", "date", e.Date)
			continue
		}
		entries = append(entries, e)
	}
	return entries
}

// Upsert replaces any entry with the same date, keeps the most recent entries up to
// the limit, and atomically rewrites the file. It returns the new archive.
func (s *Store) Upsert(entry model.ArchiveEntry) ([]model.ArchiveEntry, error) {
	if _, err := time.Parse(DateLayout, entry.Date); err != nil {
		return nil, fmt.Errorf("invalid archive date %q: %w", entry.Date, err)
	}

	entries := Apply(s.Load(), entry, s.limit)
	if err := s.write(entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Apply returns entries with entry upserted, sorted by date descending and cut to limit.
func Apply(entries []model.ArchiveEntry, entry model.ArchiveEntry, limit int) []model.ArchiveEntry {
	out := make([]model.ArchiveEntry, 0, len(entries)+1)
	for _, e := range entries {
		if e.Date != entry.Date {
			out = append(out, e)
		}
	}
	out = append(out, entry)

	// YYYY-MM-DD sorts lexically in date order.
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *Store) write(entries []model.ArchiveEntry) error {
	data, err := json.MarshalIndent(document{Summaries: entries}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal archive: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create archive dir: %w", err)
		}
	}
	if err := renameio.WriteFile(s.path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write archive: %w", err)
	}
	return nil
}
