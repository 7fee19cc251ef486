// Package memstore is an in-memory tracker.VisitStore used by tests and the
// offline validate tool.
package memstore

import (
	"context"
	"sync"

	"github.com/couchcryptid/visit-tracker/internal/domain"
	"github.com/couchcryptid/visit-tracker/internal/tracker"
)

// Store keeps visits, points, and settings in process memory.
type Store struct {
	mu       sync.Mutex
	visits   map[string]domain.Visit
	points   []domain.LocationPoint
	settings tracker.Settings
}

// New creates an empty Store.
func New() *Store {
	return &Store{visits: make(map[string]domain.Visit)}
}

func (s *Store) UpsertVisit(_ context.Context, v domain.Visit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visits[v.ID] = v
	return nil
}

func (s *Store) GetVisit(_ context.Context, id string) (domain.Visit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.visits[id]
	if !ok {
		return domain.Visit{}, tracker.ErrVisitNotFound
	}
	return v, nil
}

func (s *Store) OpenVisitAt(_ context.Context, c domain.Coordinate) (domain.Visit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.visits {
		if v.Open() && v.Coordinate == c {
			return v, nil
		}
	}
	return domain.Visit{}, tracker.ErrVisitNotFound
}

func (s *Store) OpenVisit(_ context.Context) (domain.Visit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.visits {
		if v.Open() {
			return v, nil
		}
	}
	return domain.Visit{}, tracker.ErrVisitNotFound
}

func (s *Store) CreateLocationPoint(_ context.Context, p domain.LocationPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points = append(s.points, p)
	return nil
}

func (s *Store) DeleteAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visits = make(map[string]domain.Visit)
	s.points = nil
	return nil
}

func (s *Store) SaveSettings(_ context.Context, set tracker.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = set
	return nil
}

func (s *Store) LoadSettings(_ context.Context) (tracker.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings, nil
}

// Visits returns a snapshot of all stored visits.
func (s *Store) Visits() []domain.Visit {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Visit, 0, len(s.visits))
	for _, v := range s.visits {
		out = append(out, v)
	}
	return out
}

// Points returns a snapshot of all stored location points.
func (s *Store) Points() []domain.LocationPoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.LocationPoint, len(s.points))
	copy(out, s.points)
	return out
}
