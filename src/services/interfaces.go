// backend/src/services/interfaces.go
package services

import (
	"errors"

	"github.com/username/aptledger/backend/src/models"
)

// Define common service errors
var (
	ErrInvalidRecord = errors.New("invalid record")
)

// RecordStore is the persistence the record service works against.
type RecordStore interface {
	LoadAll() ([]models.Record, error)
	Append(values map[string]string) (models.Record, error)
	RewriteAll(records []models.Record) error
	Reset() error
}

// RecordService defines the operations exposed over HTTP.
type RecordService interface {
	// Load returns every record in store order.
	Load() ([]models.Record, error)
	// Save appends one record built from values and returns what was stored.
	Save(values map[string]string) (models.Record, error)
	// Delete removes every record whose id equals id and reports how many went.
	Delete(id string) (int, error)
	// Reset empties the store, keeping only the header.
	Reset() error
}
