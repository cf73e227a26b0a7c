// SPDX-License-Identifier: MIT
package history

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careshift/careshift/internal/clinical"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func plan(rev uint64) clinical.ScheduleResponse {
	return clinical.ScheduleResponse{
		GeneratedAt: time.Date(2026, 8, 26, 7, 0, 0, 0, time.UTC),
		Revision:    rev,
		Notes:       []string{},
	}
}

func TestLatestEmpty(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Latest(context.Background())
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestAppendAndLatest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, plan(1)))
	require.NoError(t, s.Append(ctx, plan(2)))

	got, err := s.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), got.Revision)
}

func TestRecentNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for rev := uint64(1); rev <= 5; rev++ {
		require.NoError(t, s.Append(ctx, plan(rev)))
	}

	plans, err := s.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, plans, 3)
	assert.Equal(t, uint64(5), plans[0].Revision)
	assert.Equal(t, uint64(4), plans[1].Revision)
	assert.Equal(t, uint64(3), plans[2].Revision)
}

func TestRecentZeroLimit(t *testing.T) {
	s := newTestStore(t)
	plans, err := s.Recent(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, plans)
}

func TestAppendOverwritesSameRevision(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := plan(7)
	p.Notes = []string{"first"}
	require.NoError(t, s.Append(ctx, p))
	p.Notes = []string{"second"}
	require.NoError(t, s.Append(ctx, p))

	got, err := s.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"second"}, got.Notes)

	plans, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, plans, 1)
}
