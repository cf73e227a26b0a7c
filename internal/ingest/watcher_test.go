// SPDX-License-Identifier: MIT
package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/careshift/careshift/internal/store"
)

func TestWatcherIngestsDroppedFile(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	s := store.NewMemory()
	t.Cleanup(func() { _ = s.Close() })

	w := NewWatcher(dir, NewLoader(s))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher a moment to register before dropping the file.
	time.Sleep(100 * time.Millisecond)
	path := filepath.Join(dir, "bundle.json")
	require.NoError(t, os.WriteFile(path, []byte(bundleJSON), 0o600))

	waitForChange(t, s, 5*time.Second)

	snap, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Orders, 1)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestWatcherProcessesExistingFiles(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "seed.json"), []byte(bundleJSON), 0o600))

	s := store.NewMemory()
	t.Cleanup(func() { _ = s.Close() })

	w := NewWatcher(dir, NewLoader(s))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	waitForChange(t, s, 5*time.Second)

	snap, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Patients, 1)

	cancel()
	<-done
}

func TestWatcherIgnoresNonJSON(t *testing.T) {
	assert.True(t, isBundleFile("shift.json"))
	assert.True(t, isBundleFile("SHIFT.JSON"))
	assert.False(t, isBundleFile("shift.json.tmp"))
	assert.False(t, isBundleFile("notes.txt"))
}

func waitForChange(t *testing.T, s store.Store, timeout time.Duration) {
	t.Helper()
	deadline := time.After(timeout)
	for {
		snap, err := s.Snapshot(context.Background())
		require.NoError(t, err)
		if snap.Revision > 0 {
			return
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for store change")
		case <-time.After(20 * time.Millisecond):
		}
	}
}
