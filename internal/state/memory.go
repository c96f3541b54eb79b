package state

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pyrewatch-systems/sentinel-node/internal/model"
)

// MemoryStore is the default in-process state store. Baselines and the
// alert window are lost on restart; nodes that need persistence enable
// the Redis store instead.
type MemoryStore struct {
	mu        sync.RWMutex
	baselines map[model.ParameterID]*Baseline
	alerts    []recordedAlert
	byID      map[uuid.UUID]int
	now       func() time.Time
}

type recordedAlert struct {
	alert    model.AlertEvent
	recorded time.Time
	expires  time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		baselines: make(map[model.ParameterID]*Baseline),
		byID:      make(map[uuid.UUID]int),
		now:       time.Now,
	}
}

// WithClock overrides the store's clock. Test hook.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

// Baseline returns the rolling baseline for a parameter.
func (s *MemoryStore) Baseline(_ context.Context, param model.ParameterID) (*Baseline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.baselines[param]
	if !ok {
		return &Baseline{Samples: []float64{}, UpdatedAt: s.now().Unix()}, nil
	}
	// Copy so callers cannot mutate shared state between cycles.
	cp := *b
	cp.Samples = append([]float64(nil), b.Samples...)
	return &cp, nil
}

// UpdateBaseline folds a fused value into the parameter's baseline.
func (s *MemoryStore) UpdateBaseline(_ context.Context, param model.ParameterID, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.baselines[param]
	if !ok {
		b = &Baseline{Samples: []float64{}}
		s.baselines[param] = b
	}
	foldSample(b, value, s.now())
	return nil
}

// RecordAlert records an emitted alert and opens its suppression window.
// Recording also prunes alerts past retention and caps the history, so a
// long-running node never grows this store without bound.
func (s *MemoryStore) RecordAlert(_ context.Context, alert *model.AlertEvent, window time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.pruneLocked(now)
	s.alerts = append(s.alerts, recordedAlert{
		alert:    *alert,
		recorded: now,
		expires:  now.Add(window),
	})
	s.byID[alert.ID] = len(s.alerts) - 1
	return nil
}

// pruneLocked drops alerts past retention, trims the history to the same
// cap the Redis store uses, and reindexes. Caller holds mu.
func (s *MemoryStore) pruneLocked(now time.Time) {
	kept := make([]recordedAlert, 0, len(s.alerts))
	for _, r := range s.alerts {
		if now.Sub(r.recorded) > alertRetention {
			continue
		}
		kept = append(kept, r)
	}
	if len(kept) >= recentListMaxLen {
		kept = kept[len(kept)-recentListMaxLen+1:]
	}
	s.alerts = kept
	s.byID = make(map[uuid.UUID]int, len(kept))
	for i, r := range kept {
		s.byID[r.alert.ID] = i
	}
}

// FindDuplicate returns a recorded alert of the same type and location
// whose suppression window is still open, or nil.
func (s *MemoryStore) FindDuplicate(_ context.Context, typ model.AlertType, location string) (*model.AlertEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	for i := len(s.alerts) - 1; i >= 0; i-- {
		r := s.alerts[i]
		if r.expires.Before(now) {
			continue
		}
		if r.alert.Type == typ && r.alert.Location == location {
			cp := r.alert
			return &cp, nil
		}
	}
	return nil, nil
}

// MergeEvidence appends evidence to a previously recorded alert.
func (s *MemoryStore) MergeEvidence(_ context.Context, id uuid.UUID, evidence []model.DetectionEvidence) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.byID[id]
	if !ok || idx >= len(s.alerts) {
		return fmt.Errorf("alert %s not found", id)
	}
	s.alerts[idx].alert.Evidence = append(s.alerts[idx].alert.Evidence, evidence...)
	return nil
}

// RecentAlerts returns up to limit most recently recorded alerts, newest first.
func (s *MemoryStore) RecentAlerts(_ context.Context, limit int) ([]model.AlertEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.alerts) {
		limit = len(s.alerts)
	}
	out := make([]model.AlertEvent, 0, limit)
	for i := len(s.alerts) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.alerts[i].alert)
	}
	return out, nil
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error { return nil }
