// backend/src/migration/schema_migrator.go
package migration

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/username/aptledger/backend/src/logger"
	"github.com/username/aptledger/backend/src/models"
)

// DefaultBackupSuffix is appended to the store path to name the backup copy.
const DefaultBackupSuffix = ".bak"

// Store is the subset of the record store the migrator needs.
type Store interface {
	Path() string
	Header() ([]string, error)
	ReadRaw() ([]map[string]string, error)
	RewriteAll(records []models.Record) error
}

// Result describes what a migration run did.
type Result struct {
	Migrated       bool
	Rows           int
	BackupPath     string
	PreviousHeader []string
}

// SchemaMigrator upgrades a record store written with an older column layout.
type SchemaMigrator struct {
	store        Store
	schema       models.Schema
	backupSuffix string
}

func NewSchemaMigrator(store Store, schema models.Schema, backupSuffix string) *SchemaMigrator {
	if backupSuffix == "" {
		backupSuffix = DefaultBackupSuffix
	}
	return &SchemaMigrator{
		store:        store,
		schema:       schema,
		backupSuffix: backupSuffix,
	}
}

// BackupPath returns where the pre-migration copy of the store is written.
func (m *SchemaMigrator) BackupPath() string {
	return m.store.Path() + m.backupSuffix
}

// Migrate rewrites the store so that its header equals the schema. A missing
// or empty store, or one whose header already matches, is left untouched.
//
// Rows keep their order; fields absent from a row become the placeholder and
// columns outside the schema are dropped. The original file is copied to
// BackupPath before it is overwritten.
func (m *SchemaMigrator) Migrate() (Result, error) {
	header, err := m.store.Header()
	if errors.Is(err, fs.ErrNotExist) {
		logger.L.Debug("No record store found, nothing to migrate", "path", m.store.Path())
		return Result{}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("reading store header: %w", err)
	}
	// A file with only blank lines reports an empty header and is rewritten below.
	if header == nil {
		logger.L.Debug("Record store is empty, nothing to migrate", "path", m.store.Path())
		return Result{}, nil
	}
	if m.schema.Equal(header) {
		logger.L.Debug("Record store already uses the current schema", "path", m.store.Path())
		return Result{}, nil
	}

	logger.L.Info("Upgrading record store to the current schema...",
		"path", m.store.Path(), "fromColumns", header, "toColumns", []string(m.schema))

	raw, err := m.store.ReadRaw()
	if err != nil {
		return Result{}, fmt.Errorf("reading store rows: %w", err)
	}
	records := make([]models.Record, 0, len(raw))
	for _, values := range raw {
		records = append(records, m.schema.Normalize(values))
	}

	backupPath := m.BackupPath()
	if err := copyFile(m.store.Path(), backupPath); err != nil {
		return Result{}, fmt.Errorf("backing up store to %s: %w", backupPath, err)
	}

	if err := m.store.RewriteAll(records); err != nil {
		return Result{}, fmt.Errorf("rewriting store: %w", err)
	}

	logger.L.Info("Upgrade complete.", "path", m.store.Path(), "rows", len(records), "backup", backupPath)
	return Result{
		Migrated:       true,
		Rows:           len(records),
		BackupPath:     backupPath,
		PreviousHeader: header,
	}, nil
}

// copyFile writes a byte-for-byte copy of src to dst, replacing dst if it exists.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
