// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/DebtScope/services/analyze/callgraph"
)

// ErrSnapshotNotFound is returned when no snapshot exists for a
// project root.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// snapshotPrefix namespaces snapshot keys so other record types can
// share the database.
const snapshotPrefix = "snapshot:"

// Store persists call-graph snapshots keyed by project root.
//
// Thread Safety: safe for concurrent use. BadgerDB handles transaction
// isolation; Store itself holds no mutable state.
type Store struct {
	db  *DB
	ttl time.Duration
}

// NewStore wraps db as a snapshot store. A ttl of zero means snapshots
// never expire.
func NewStore(db *DB, ttl time.Duration) *Store {
	return &Store{db: db, ttl: ttl}
}

func snapshotKey(projectRoot string) []byte {
	return []byte(snapshotPrefix + projectRoot)
}

// Save serializes and stores the snapshot for projectRoot, replacing
// any previous snapshot for the same root.
func (s *Store) Save(ctx context.Context, projectRoot string, snap *callgraph.Snapshot) error {
	if projectRoot == "" {
		return errors.New("project root is required")
	}
	if snap == nil {
		return errors.New("snapshot is nil")
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot for %s: %w", projectRoot, err)
	}

	return s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		entry := badger.NewEntry(snapshotKey(projectRoot), data)
		if s.ttl > 0 {
			entry = entry.WithTTL(s.ttl)
		}
		return txn.SetEntry(entry)
	})
}

// Load reads the snapshot for projectRoot. Returns ErrSnapshotNotFound
// when none exists.
func (s *Store) Load(ctx context.Context, projectRoot string) (*callgraph.Snapshot, error) {
	var snap callgraph.Snapshot
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(snapshotKey(projectRoot))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrSnapshotNotFound, projectRoot)
		}
		if err != nil {
			return fmt.Errorf("read snapshot for %s: %w", projectRoot, err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &snap)
		})
	})
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// LoadGraph reads the snapshot for projectRoot and rehydrates it into
// a frozen graph ready for queries.
func (s *Store) LoadGraph(ctx context.Context, projectRoot string) (*callgraph.Graph, error) {
	snap, err := s.Load(ctx, projectRoot)
	if err != nil {
		return nil, err
	}
	g, err := callgraph.FromSnapshot(snap)
	if err != nil {
		return nil, fmt.Errorf("rehydrate snapshot for %s: %w", projectRoot, err)
	}
	return g, nil
}

// Delete removes the snapshot for projectRoot. Deleting a missing
// snapshot is not an error.
func (s *Store) Delete(ctx context.Context, projectRoot string) error {
	return s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Delete(snapshotKey(projectRoot))
	})
}

// ListProjects returns the project roots that have stored snapshots,
// via a keys-only prefix scan.
func (s *Store) ListProjects(ctx context.Context) ([]string, error) {
	var roots []string
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(snapshotPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			roots = append(roots, strings.TrimPrefix(key, snapshotPrefix))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return roots, nil
}
