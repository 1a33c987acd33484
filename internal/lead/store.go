package lead

import "context"

// Store persists one lead per phone number.
//
// Implementations must make Create a conditional insert (a second Create for
// the same phone returns the existing record with created=false) and Apply a
// compare-and-swap on Version (a stale version yields an errors.ErrConflict).
type Store interface {
	// Get returns the lead for phone or an errors.ErrNotFound error.
	Get(ctx context.Context, phone string) (*Lead, error)

	// Create inserts a lead with the given initial status unless one exists.
	Create(ctx context.Context, phone string, status Status) (l *Lead, created bool, err error)

	// Apply validates and commits p if the stored version equals version.
	Apply(ctx context.Context, phone string, version int64, p Patch) (*Lead, error)
}

// Lister is implemented by stores that can enumerate leads.
type Lister interface {
	// List returns leads ordered by most recent update, filtered by status when non-empty.
	List(ctx context.Context, filter ListFilter) ([]*Lead, int, error)
}

// ListFilter narrows List results.
type ListFilter struct {
	Status Status
	Limit  int
	Offset int
}

// Counter is implemented by stores that can summarize leads by status.
type Counter interface {
	CountByStatus(ctx context.Context) (map[Status]int, error)
}

// Repository is the full read/write surface used by the admin tooling.
type Repository interface {
	Store
	Lister
	Counter
}
