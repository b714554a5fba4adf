package memory

import (
	"context"
	"sync"

	"redlight-quiz/internal/domain"
	"redlight-quiz/internal/store"

	"github.com/google/uuid"
)

// RecordStore is an in-memory implementation of store.RecordStore, used by
// tests and by store-less demo serving. Listing order is insertion order,
// which doubles as question presentation order.
type RecordStore struct {
	mu      sync.RWMutex
	records map[string]map[string]store.Fields
	order   map[string][]string
}

func NewRecordStore() *RecordStore {
	return &RecordStore{
		records: make(map[string]map[string]store.Fields),
		order:   make(map[string][]string),
	}
}

func (s *RecordStore) GetOne(_ context.Context, collection, id string) (store.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fields, ok := s.records[collection][id]
	if !ok {
		return store.Record{}, domain.ErrRecordNotFound
	}
	return store.Record{ID: id, Fields: cloneFields(fields)}, nil
}

func (s *RecordStore) GetFirstMatch(_ context.Context, collection string) (store.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.order[collection]
	if len(ids) == 0 {
		return store.Record{}, domain.ErrRecordNotFound
	}
	id := ids[0]
	return store.Record{ID: id, Fields: cloneFields(s.records[collection][id])}, nil
}

func (s *RecordStore) ListAll(_ context.Context, collection string) ([]store.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := make([]store.Record, 0, len(s.order[collection]))
	for _, id := range s.order[collection] {
		records = append(records, store.Record{ID: id, Fields: cloneFields(s.records[collection][id])})
	}
	return records, nil
}

func (s *RecordStore) Create(_ context.Context, collection string, fields store.Fields) (store.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, _ := fields["id"].(string)
	if id == "" {
		id = uuid.NewString()
	}
	if s.records[collection] == nil {
		s.records[collection] = make(map[string]store.Fields)
	}
	if _, exists := s.records[collection][id]; !exists {
		s.order[collection] = append(s.order[collection], id)
	}
	stored := cloneFields(fields)
	delete(stored, "id")
	s.records[collection][id] = stored
	return store.Record{ID: id, Fields: cloneFields(stored)}, nil
}

func (s *RecordStore) Update(_ context.Context, collection, id string, fields store.Fields) (store.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.records[collection][id]
	if !ok {
		return store.Record{}, domain.ErrRecordNotFound
	}
	for k, v := range fields {
		existing[k] = v
	}
	return store.Record{ID: id, Fields: cloneFields(existing)}, nil
}

func cloneFields(fields store.Fields) store.Fields {
	out := make(store.Fields, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
