// backend/src/models/record.go
package models

import (
	"maps"
	"slices"
)

// Placeholder is stored for every field a record does not provide.
const Placeholder = "-"

// Schema is the ordered list of columns a record store carries.
type Schema []string

// CurrentSchema is the column layout every store is migrated to.
var CurrentSchema = Schema{
	"id",
	"date",
	"apt",
	"type",
	"category",
	"amount",
	"posFee",
	"myShare",
	"desc",
	"method",
	"platform",
}

// Record is a single ledger entry keyed by field name.
// Records built through Schema.Normalize hold exactly the schema's keys.
type Record map[string]string

// ID returns the record's identifier as stored.
func (r Record) ID() string {
	return r["id"]
}

// Clone returns a copy of r that shares no storage with it.
func (r Record) Clone() Record {
	return maps.Clone(r)
}

// Equal reports whether header matches the schema field for field, in order.
func (s Schema) Equal(header []string) bool {
	return slices.Equal([]string(s), header)
}

// Has reports whether field is part of the schema.
func (s Schema) Has(field string) bool {
	return slices.Contains(s, field)
}

// Normalize builds a Record holding exactly the schema's fields.
// Fields missing from values are set to Placeholder; unknown keys are dropped.
func (s Schema) Normalize(values map[string]string) Record {
	rec := make(Record, len(s))
	for _, field := range s {
		v, ok := values[field]
		if !ok {
			v = Placeholder
		}
		rec[field] = v
	}
	return rec
}

// Row returns the record's values in schema order, ready to be written as a CSV row.
func (s Schema) Row(rec Record) []string {
	row := make([]string, len(s))
	for i, field := range s {
		v, ok := rec[field]
		if !ok {
			v = Placeholder
		}
		row[i] = v
	}
	return row
}

// Header returns a copy of the schema suitable for writing as the header row.
func (s Schema) Header() []string {
	return slices.Clone([]string(s))
}
