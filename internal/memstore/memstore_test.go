package memstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/siftly/siftly/internal/errors"
	"github.com/siftly/siftly/internal/lead"
	"github.com/stretchr/testify/require"
)

func TestCreateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := New()

	first, created, err := s.Create(ctx, "+15551234567", lead.StatusActive)
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := s.Create(ctx, "+15551234567", lead.StatusActive)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first, second)
}

func TestConcurrentCreate(t *testing.T) {
	ctx := context.Background()
	s := New()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := s.Create(ctx, "+15551234567", lead.StatusAwaitingZip)
			if err != nil {
				t.Errorf("Create() error = %v", err)
				return
			}
			if ok {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, created)
}

func TestApplyVersionCheck(t *testing.T) {
	ctx := context.Background()
	s := New()

	l, _, err := s.Create(ctx, "+15551234567", lead.StatusAwaitingZip)
	require.NoError(t, err)

	patch := lead.Patch{ZipCode: lead.StringPtr("12345"), Status: lead.StatusPtr(lead.StatusAwaitingProjectType)}
	updated, err := s.Apply(ctx, l.PhoneNumber, l.Version, patch)
	require.NoError(t, err)
	require.Equal(t, l.Version+1, updated.Version)

	_, err = s.Apply(ctx, l.PhoneNumber, l.Version, patch)
	require.True(t, errors.Is(err, errors.ErrConflict), "err = %v", err)

	_, err = s.Apply(ctx, "+10000000000", 1, patch)
	require.True(t, errors.Is(err, errors.ErrNotFound), "err = %v", err)
}

func TestReturnedLeadsAreCopies(t *testing.T) {
	ctx := context.Background()
	s := New()

	l, _, err := s.Create(ctx, "+15551234567", lead.StatusAwaitingZip)
	require.NoError(t, err)
	l.Status = lead.StatusHot

	got, err := s.Get(ctx, "+15551234567")
	require.NoError(t, err)
	require.Equal(t, lead.StatusAwaitingZip, got.Status)
}

func TestListOrdersByUpdate(t *testing.T) {
	ctx := context.Background()
	s := New()
	clock := time.Unix(1700000000, 0)
	s.Now = func() time.Time { return clock }

	for _, phone := range []string{"+1", "+2", "+3"} {
		_, _, err := s.Create(ctx, phone, lead.StatusAwaitingZip)
		require.NoError(t, err)
		clock = clock.Add(time.Second)
	}

	leads, total, err := s.List(ctx, lead.ListFilter{Limit: 2})
	require.NoError(t, err)
	require.Equal(t, 3, total)
	require.Equal(t, "+3", leads[0].PhoneNumber)
	require.Equal(t, "+2", leads[1].PhoneNumber)

	leads, _, err = s.List(ctx, lead.ListFilter{Offset: 5})
	require.NoError(t, err)
	require.Empty(t, leads)

	counts, err := s.CountByStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, counts[lead.StatusAwaitingZip])
}
