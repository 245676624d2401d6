// backend/src/services/record_service.go
package services

import (
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/aptledger/backend/src/logger"
	"github.com/username/aptledger/backend/src/models"
	"github.com/username/aptledger/backend/src/security/validation"
)

const ckAllRecords = "records_all"

// Options tunes the record service.
type Options struct {
	// MaxFieldLength bounds each stored value in runes; zero or less means no limit.
	MaxFieldLength int
	SanitizeHTML   bool
	// CacheTTL is how long a Load result is reused; zero disables caching.
	CacheTTL time.Duration
}

type recordServiceImpl struct {
	// mu serialises every operation so that each request sees the store as
	// the previous one left it.
	mu      sync.Mutex
	store   RecordStore
	schema  models.Schema
	opts    Options
	records *cache.Cache
}

func NewRecordService(store RecordStore, schema models.Schema, opts Options) RecordService {
	s := &recordServiceImpl{
		store:  store,
		schema: schema,
		opts:   opts,
	}
	if opts.CacheTTL > 0 {
		s.records = cache.New(opts.CacheTTL, 2*opts.CacheTTL)
	}
	return s
}

func (s *recordServiceImpl) Load() ([]models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.records != nil {
		if cached, found := s.records.Get(ckAllRecords); found {
			return cloneRecords(cached.([]models.Record)), nil
		}
	}

	records, err := s.store.LoadAll()
	if err != nil {
		return nil, fmt.Errorf("loading records: %w", err)
	}
	if s.records != nil {
		s.records.SetDefault(ckAllRecords, cloneRecords(records))
	}
	return records, nil
}

// cloneRecords keeps callers from mutating cached records.
func cloneRecords(records []models.Record) []models.Record {
	out := make([]models.Record, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out
}

func (s *recordServiceImpl) Save(values map[string]string) (models.Record, error) {
	clean := make(map[string]string, len(s.schema))
	for field, v := range values {
		if !s.schema.Has(field) {
			continue
		}
		v = validation.StripUnprintable(v)
		if s.opts.SanitizeHTML {
			v = validation.SanitizeText(v)
		}
		clean[field] = v
	}
	if err := validation.ValidateValues(clean, s.opts.MaxFieldLength); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.store.Append(clean)
	if err != nil {
		return nil, fmt.Errorf("saving record: %w", err)
	}
	s.invalidateLocked()
	logger.L.Info("Record saved", "id", rec.ID())
	return rec, nil
}

func (s *recordServiceImpl) Delete(id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.store.LoadAll()
	if err != nil {
		return 0, fmt.Errorf("loading records for delete: %w", err)
	}

	kept := make([]models.Record, 0, len(records))
	for _, rec := range records {
		if rec.ID() != id {
			kept = append(kept, rec)
		}
	}

	if err := s.store.RewriteAll(kept); err != nil {
		return 0, fmt.Errorf("rewriting records after delete: %w", err)
	}
	s.invalidateLocked()

	removed := len(records) - len(kept)
	logger.L.Info("Records deleted", "id", id, "removed", removed, "remaining", len(kept))
	return removed, nil
}

func (s *recordServiceImpl) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Reset(); err != nil {
		return fmt.Errorf("resetting records: %w", err)
	}
	s.invalidateLocked()
	logger.L.Info("Record store reset")
	return nil
}

func (s *recordServiceImpl) invalidateLocked() {
	if s.records != nil {
		s.records.Delete(ckAllRecords)
	}
}
