// backend/src/store/csv_store.go
package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/username/aptledger/backend/src/models"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const defaultFileMode fs.FileMode = 0o644

// CSVStore keeps records in a single comma-separated file: a header row
// followed by one row per record.
//
// CSVStore does no locking of its own; callers serialise access.
type CSVStore struct {
	path   string
	schema models.Schema
}

// NewCSVStore returns a store backed by the file at path. The file is not
// touched until the first write.
func NewCSVStore(path string, schema models.Schema) *CSVStore {
	return &CSVStore{path: path, schema: schema}
}

// Path returns the location of the backing file.
func (s *CSVStore) Path() string {
	return s.path
}

// Header returns the first row of the file, or nil when the file has no
// bytes at all. A file holding only blank lines yields an empty, non-nil
// header, which matches no schema. A missing file yields an error matching
// fs.ErrNotExist.
func (s *CSVStore) Header() ([]string, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	header, err := newReader(f).Read()
	if errors.Is(err, io.EOF) {
		info, statErr := f.Stat()
		if statErr != nil {
			return nil, fmt.Errorf("stat %s: %w", s.path, statErr)
		}
		if info.Size() > 0 {
			return []string{}, nil
		}
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading header of %s: %w", s.path, err)
	}
	return header, nil
}

// ReadRaw returns every data row keyed by the file's own header, in file order.
// Cells past the end of the header are dropped and short rows simply lack the
// trailing keys. A missing file yields an error matching fs.ErrNotExist.
func (s *CSVStore) ReadRaw() ([]map[string]string, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := newReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.path, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	header := rows[0]
	out := make([]map[string]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		m := make(map[string]string, len(header))
		for j, name := range header {
			if j < len(row) {
				m[name] = row[j]
			}
		}
		out = append(out, m)
	}
	return out, nil
}

// LoadAll returns every record in file order, normalised to the store's schema.
// A missing file is an empty store.
func (s *CSVStore) LoadAll() ([]models.Record, error) {
	raw, err := s.ReadRaw()
	if errors.Is(err, fs.ErrNotExist) {
		return []models.Record{}, nil
	}
	if err != nil {
		return nil, err
	}

	records := make([]models.Record, 0, len(raw))
	for _, values := range raw {
		records = append(records, s.schema.Normalize(values))
	}
	return records, nil
}

// Append adds one record to the end of the file, writing the header first when
// the file is new or holds no rows. Only schema fields are written; missing
// ones are stored as the placeholder. The stored record is returned.
func (s *CSVStore) Append(values map[string]string) (models.Record, error) {
	header, err := s.Header()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	needsHeader := len(header) == 0

	var size int64
	if info, err := os.Stat(s.path); err == nil {
		size = info.Size()
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("stat %s: %w", s.path, err)
	}

	needsNewline := false
	if size > 0 {
		needsNewline, err = lacksTrailingNewline(s.path, size)
		if err != nil {
			return nil, err
		}
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, defaultFileMode)
	if err != nil {
		return nil, fmt.Errorf("opening %s for append: %w", s.path, err)
	}

	if needsNewline {
		if _, err := f.Write([]byte("\n")); err != nil {
			f.Close()
			return nil, fmt.Errorf("appending to %s: %w", s.path, err)
		}
	}

	rec := s.schema.Normalize(values)
	w := csv.NewWriter(f)
	if needsHeader {
		w.Write(s.schema.Header())
	}
	w.Write(s.schema.Row(rec))
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return nil, fmt.Errorf("appending to %s: %w", s.path, err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("closing %s: %w", s.path, err)
	}
	return rec, nil
}

// RewriteAll replaces the whole file with the header followed by records, in
// the given order. The new content is written to a sibling temporary file and
// renamed over the original.
func (s *CSVStore) RewriteAll(records []models.Record) error {
	mode := defaultFileMode
	if info, err := os.Stat(s.path); err == nil {
		mode = info.Mode().Perm()
	}

	dir, base := filepath.Split(s.path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temporary file for %s: %w", s.path, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	w := csv.NewWriter(tmp)
	w.Write(s.schema.Header())
	for _, rec := range records {
		w.Write(s.schema.Row(rec))
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("writing %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("syncing %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		return fmt.Errorf("setting mode on %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replacing %s: %w", s.path, err)
	}
	committed = true
	return nil
}

// Reset replaces the file with the header row alone.
func (s *CSVStore) Reset() error {
	return s.RewriteAll(nil)
}

// newReader returns a CSV reader that skips a leading byte order mark and
// tolerates rows whose width differs from the header.
func newReader(r io.Reader) *csv.Reader {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	cr := csv.NewReader(decoded)
	cr.FieldsPerRecord = -1
	return cr
}

func lacksTrailingNewline(path string, size int64) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	last := make([]byte, 1)
	if _, err := f.ReadAt(last, size-1); err != nil {
		return false, fmt.Errorf("reading %s: %w", path, err)
	}
	return last[0] != '\n', nil
}
