// Package storage persists experiment results.
package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/copyleftdev/optilab/internal/experiment"
)

// Store persists experiment records keyed by their metadata ID.
type Store interface {
	Init(ctx context.Context) error
	SaveResults(ctx context.Context, results *experiment.Results) error
	GetResults(ctx context.Context, id string) (*experiment.Results, bool, error)
	ListResults(ctx context.Context) ([]Summary, error)
	Close() error
}

// Summary identifies a stored record without its data.
type Summary struct {
	ID        string
	Method    string
	Benchmark string
	TimeBegin string
	TimeEnd   string
	Series    int
}

func summarize(r *experiment.Results) Summary {
	return Summary{
		ID:        r.Metadata.ID,
		Method:    r.Metadata.MethodName,
		Benchmark: r.Metadata.BenchmarkName,
		TimeBegin: r.Metadata.TimeBegin,
		TimeEnd:   r.Metadata.TimeEnd,
		Series:    len(r.Data),
	}
}

// NewStore builds an uninitialized store of the given kind.
func NewStore(kind, dsn string) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", kind)
	}
}

func encodeResults(r *experiment.Results) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("results cannot be nil")
	}
	if r.Metadata.ID == "" {
		return nil, fmt.Errorf("results ID cannot be empty")
	}
	payload, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode results %s: %w", r.Metadata.ID, err)
	}
	return payload, nil
}
