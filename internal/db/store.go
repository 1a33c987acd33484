package db

import (
	"context"
	"crypto/rand"
	"database/sql"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/siftly/siftly/internal/errors"
	"github.com/siftly/siftly/internal/lead"
)

// Store is the SQLite-backed lead.Repository.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ lead.Repository = (*Store)(nil)

// NewStore wraps an initialized database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Get returns the lead for phone.
func (s *Store) Get(ctx context.Context, phone string) (*lead.Lead, error) {
	return GetByPhone(ctx, s.db, phone)
}

// Create inserts a lead in the given status unless one already exists for phone.
// Concurrent callers race on the phone_number unique key; exactly one sees created=true.
func (s *Store) Create(ctx context.Context, phone string, status lead.Status) (*lead.Lead, bool, error) {
	if phone == "" {
		return nil, false, errors.NewInvalidRequest("phone_number is required")
	}
	if status.Terminal() || !status.Valid() {
		return nil, false, errors.NewInvalidPatch(phone, "leads must be created in a pre-classification status")
	}

	now := s.now().Unix()
	l := &lead.Lead{
		PhoneNumber: phone,
		Status:      status,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// Retry once on the astronomically unlikely ID collision.
	for attempt := 0; ; attempt++ {
		l.ID = newID(s.now())
		inserted, err := InsertIfAbsent(ctx, s.db, l)
		if err == ErrUniqueConstraint && attempt == 0 {
			continue
		}
		if err != nil {
			return nil, false, err
		}
		if inserted {
			return l, true, nil
		}
		break
	}

	existing, err := GetByPhone(ctx, s.db, phone)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// Apply validates p against the stored lead and commits it if the stored
// version still equals version.
func (s *Store) Apply(ctx context.Context, phone string, version int64, p lead.Patch) (*lead.Lead, error) {
	current, err := GetByPhone(ctx, s.db, phone)
	if err != nil {
		return nil, err
	}
	if current.Version != version {
		return nil, errors.NewConflict(phone, version, current.Version)
	}
	if err := p.Validate(current); err != nil {
		return nil, err
	}

	next := p.Apply(current, s.now().Unix())
	if err := UpdateIfVersion(ctx, s.db, next, version); err != nil {
		return nil, err
	}
	return next, nil
}

// List returns a page of leads.
func (s *Store) List(ctx context.Context, filter lead.ListFilter) ([]*lead.Lead, int, error) {
	return ListLeads(ctx, s.db, filter)
}

// CountByStatus summarizes leads by status.
func (s *Store) CountByStatus(ctx context.Context) (map[lead.Status]int, error) {
	return CountByStatus(ctx, s.db)
}

func newID(t time.Time) string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}
