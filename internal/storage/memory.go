package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/copyleftdev/optilab/internal/experiment"
)

// MemoryStore keeps serialized records in memory.
type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	payloads    map[string][]byte
	summaries   map[string]Summary
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.payloads = make(map[string][]byte)
	s.summaries = make(map[string]Summary)
	return nil
}

func (s *MemoryStore) SaveResults(_ context.Context, results *experiment.Results) error {
	payload, err := encodeResults(results)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.payloads[results.Metadata.ID] = payload
	s.summaries[results.Metadata.ID] = summarize(results)
	return nil
}

func (s *MemoryStore) GetResults(_ context.Context, id string) (*experiment.Results, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, false, errNotInitialized
	}
	payload, ok := s.payloads[id]
	if !ok {
		return nil, false, nil
	}
	results, err := experiment.DecodeJSON(payload)
	if err != nil {
		return nil, false, err
	}
	return results, true, nil
}

func (s *MemoryStore) ListResults(_ context.Context) ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, errNotInitialized
	}
	out := make([]Summary, 0, len(s.summaries))
	for _, summary := range s.summaries {
		out = append(out, summary)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TimeBegin != out[j].TimeBegin {
			return out[i].TimeBegin < out[j].TimeBegin
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

var errNotInitialized = errors.New("store is not initialized")
