package memory

import (
	"context"
	"sync"

	"github.com/ValerySidorin/arcxml/pkg/journal/record"
	"github.com/pkg/errors"
)

type Store struct {
	mu     sync.Mutex
	nextID int64
	recs   []record.Record
}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) InsertRecord(ctx context.Context, rec *record.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	rec.ID = s.nextID
	s.recs = append(s.recs, *rec)

	return nil
}

func (s *Store) UpdateRecord(ctx context.Context, rec *record.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.recs {
		if s.recs[i].ID == rec.ID {
			s.recs[i] = *rec
			return nil
		}
	}

	return errors.Errorf("memory journal store: record %d not found", rec.ID)
}

func (s *Store) GetAllRecords(ctx context.Context) ([]*record.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := make([]*record.Record, 0, len(s.recs))
	for i := range s.recs {
		rec := s.recs[i]
		res = append(res, &rec)
	}

	return res, nil
}

func (s *Store) Dispose(ctx context.Context) error {
	return nil
}
