package ports

import (
	"context"

	"cmportal/domain/reference"
)

// ReferenceSource loads the full set of reference tables the portal serves from
type ReferenceSource interface {
	// Load reads and validates every table
	Load(ctx context.Context) (*reference.Tables, error)
	// Name identifies the source in logs and cache stats
	Name() string
}

// ReferenceStore persists reference tables so another source can serve them
type ReferenceStore interface {
	// Replace swaps the stored tables for the given ones atomically
	Replace(ctx context.Context, tables *reference.Tables) error
}

// TablesProvider hands out the current reference tables, loading them on first use
type TablesProvider interface {
	Tables(ctx context.Context) (*reference.Tables, error)
}
