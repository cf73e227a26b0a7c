// SPDX-License-Identifier: MIT

// Package history keeps an append-only archive of generated shift plans in
// BadgerDB. Every replan is recorded, so an operator can answer "what did the
// timeline look like before that order came in".
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/careshift/careshift/internal/clinical"
)

// ErrEmpty is returned when no plan has been archived yet.
var ErrEmpty = errors.New("history: no plans archived")

const (
	planPrefix = "plan:"
	latestKey  = "latest"
)

// Store is the Badger-backed plan archive.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the archive at path.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("history: open failed: %w", err)
	}
	return &Store{db: db}, nil
}

// OpenInMemory opens an ephemeral archive, used in tests and when no data
// directory is configured.
func OpenInMemory() (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("history: open in-memory failed: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Append archives a plan under its revision and moves the latest pointer.
func (s *Store) Append(_ context.Context, plan clinical.ScheduleResponse) error {
	buf, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("history: marshal plan: %w", err)
	}
	key := planKey(plan.Revision)
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, buf); err != nil {
			return fmt.Errorf("history: set plan: %w", err)
		}
		if err := txn.Set([]byte(latestKey), key); err != nil {
			return fmt.Errorf("history: set latest pointer: %w", err)
		}
		return nil
	})
}

// Latest returns the most recently archived plan.
func (s *Store) Latest(_ context.Context) (clinical.ScheduleResponse, error) {
	var plan clinical.ScheduleResponse
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(latestKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrEmpty
		}
		if err != nil {
			return fmt.Errorf("history: get latest pointer: %w", err)
		}
		var key []byte
		if err := item.Value(func(val []byte) error {
			key = append([]byte(nil), val...)
			return nil
		}); err != nil {
			return fmt.Errorf("history: read latest pointer: %w", err)
		}
		item, err = txn.Get(key)
		if err != nil {
			return fmt.Errorf("history: get latest plan: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &plan)
		})
	})
	return plan, err
}

// Recent returns up to limit archived plans, newest first.
func (s *Store) Recent(_ context.Context, limit int) ([]clinical.ScheduleResponse, error) {
	if limit <= 0 {
		return nil, nil
	}
	var plans []clinical.ScheduleResponse
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(planPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration needs a seek key past the end of the prefix range.
		seek := append([]byte(planPrefix), 0xff)
		for it.Seek(seek); it.ValidForPrefix([]byte(planPrefix)) && len(plans) < limit; it.Next() {
			var plan clinical.ScheduleResponse
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &plan)
			}); err != nil {
				return fmt.Errorf("history: read plan: %w", err)
			}
			plans = append(plans, plan)
		}
		return nil
	})
	return plans, err
}

// planKey builds a fixed-width, lexically sortable key for a revision.
func planKey(revision uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", planPrefix, revision))
}
