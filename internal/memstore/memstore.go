// Package memstore is an in-process lead.Repository used by tests and by
// `siftly serve --memory`.
package memstore

import (
	"context"
	"crypto/rand"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/siftly/siftly/internal/errors"
	"github.com/siftly/siftly/internal/lead"
)

// Store keeps leads in a map keyed by phone number. Returned leads are copies.
type Store struct {
	mu    sync.RWMutex
	leads map[string]*lead.Lead

	// Now is the clock used for timestamps. Tests may replace it.
	Now func() time.Time
}

var _ lead.Repository = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{leads: make(map[string]*lead.Lead), Now: time.Now}
}

// Get returns the lead for phone.
func (s *Store) Get(_ context.Context, phone string) (*lead.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.leads[phone]
	if !ok {
		return nil, errors.NewNotFound(phone)
	}
	return l.Clone(), nil
}

// Create inserts a lead unless one exists for phone.
func (s *Store) Create(_ context.Context, phone string, status lead.Status) (*lead.Lead, bool, error) {
	if phone == "" {
		return nil, false, errors.NewInvalidRequest("phone_number is required")
	}
	if status.Terminal() || !status.Valid() {
		return nil, false, errors.NewInvalidPatch(phone, "leads must be created in a pre-classification status")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.leads[phone]; ok {
		return existing.Clone(), false, nil
	}

	t := s.Now()
	l := &lead.Lead{
		ID:          ulid.MustNew(ulid.Timestamp(t), ulid.Monotonic(rand.Reader, 0)).String(),
		PhoneNumber: phone,
		Status:      status,
		Version:     1,
		CreatedAt:   t.Unix(),
		UpdatedAt:   t.Unix(),
	}
	s.leads[phone] = l
	return l.Clone(), true, nil
}

// Apply commits p if the stored version equals version.
func (s *Store) Apply(_ context.Context, phone string, version int64, p lead.Patch) (*lead.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.leads[phone]
	if !ok {
		return nil, errors.NewNotFound(phone)
	}
	if current.Version != version {
		return nil, errors.NewConflict(phone, version, current.Version)
	}
	if err := p.Validate(current); err != nil {
		return nil, err
	}
	next := p.Apply(current, s.Now().Unix())
	s.leads[phone] = next
	return next.Clone(), nil
}

// List returns leads ordered by most recent update.
func (s *Store) List(_ context.Context, filter lead.ListFilter) ([]*lead.Lead, int, error) {
	s.mu.RLock()
	matched := make([]*lead.Lead, 0, len(s.leads))
	for _, l := range s.leads {
		if filter.Status == "" || l.Status == filter.Status {
			matched = append(matched, l.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].UpdatedAt != matched[j].UpdatedAt {
			return matched[i].UpdatedAt > matched[j].UpdatedAt
		}
		return matched[i].ID > matched[j].ID
	})

	total := len(matched)
	if filter.Offset >= total {
		return nil, total, nil
	}
	matched = matched[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}

// CountByStatus summarizes leads by status.
func (s *Store) CountByStatus(_ context.Context) (map[lead.Status]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[lead.Status]int)
	for _, l := range s.leads {
		counts[l.Status]++
	}
	return counts, nil
}
