// Credboard - Credential Issuance Metrics Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/credboard

package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/credboard/internal/logging"
)

// ErrNotFound is returned by Persister.Get for a key that has no entry.
// A stored empty string is a value, not ErrNotFound.
var ErrNotFound = errors.New("session: key not found")

// Persister is the durable key/value layer under the Store.
type Persister interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	Close() error
}

// StoreType selects a Persister implementation.
type StoreType string

const (
	// StoreMemory keeps entries in process memory only.
	StoreMemory StoreType = "memory"
	// StoreBadger persists entries in a BadgerDB directory.
	StoreBadger StoreType = "badger"
)

// NewPersister opens the persister for storeType. path is only used by badger.
func NewPersister(storeType StoreType, path string) (Persister, error) {
	switch storeType {
	case StoreBadger:
		opts := badger.DefaultOptions(path)
		opts.Logger = nil
		db, err := badger.Open(opts)
		if err != nil {
			return nil, fmt.Errorf("open badger db for session: %w", err)
		}
		return &BadgerPersister{db: db, owned: true}, nil
	case StoreMemory, "":
		return NewMemoryPersister(), nil
	default:
		return nil, fmt.Errorf("unknown session store type %q", storeType)
	}
}

// MemoryPersister is a map-backed Persister for tests and ephemeral runs.
type MemoryPersister struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewMemoryPersister creates an empty in-memory persister.
func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{entries: make(map[string]string)}
}

// Get returns the stored value or ErrNotFound.
func (m *MemoryPersister) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// Set stores value under key.
func (m *MemoryPersister) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
	return nil
}

// Delete removes key.
func (m *MemoryPersister) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// Close is a no-op.
func (m *MemoryPersister) Close() error { return nil }

// badgerRecord wraps values so an empty string is still a non-empty entry.
type badgerRecord struct {
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BadgerPersister stores session entries in BadgerDB.
type BadgerPersister struct {
	db    *badger.DB
	owned bool
}

// NewBadgerPersister wraps an already open DB. Close does not close db.
func NewBadgerPersister(db *badger.DB) *BadgerPersister {
	return &BadgerPersister{db: db}
}

// Get returns the stored value or ErrNotFound.
func (b *BadgerPersister) Get(_ context.Context, key string) (string, error) {
	var rec badgerRecord
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get %s: %w", key, err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return "", err
	}
	return rec.Value, nil
}

// Set stores value under key.
func (b *BadgerPersister) Set(_ context.Context, key, value string) error {
	data, err := json.Marshal(badgerRecord{Value: value, UpdatedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

// Delete removes key.
func (b *BadgerPersister) Delete(_ context.Context, key string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(key)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete %s: %w", key, err)
		}
		return nil
	})
}

// Close closes the DB when this persister opened it.
func (b *BadgerPersister) Close() error {
	if b.owned {
		return b.db.Close()
	}
	return nil
}

// GCInterval is how often Serve reclaims badger value log space.
const GCInterval = 10 * time.Minute

// RunGC reclaims space left by overwritten and deleted entries.
// badger.ErrNoRewrite means there was nothing to reclaim.
func (b *BadgerPersister) RunGC() error {
	err := b.db.RunValueLogGC(0.5)
	if errors.Is(err, badger.ErrNoRewrite) {
		return nil
	}
	return err
}

// Serve runs value log GC every GCInterval until ctx is canceled. It
// implements suture.Service.
func (b *BadgerPersister) Serve(ctx context.Context) error {
	ticker := time.NewTicker(GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := b.RunGC(); err != nil {
				logging.Warn().Err(err).Msg("Session store GC failed")
			}
		}
	}
}

// String implements fmt.Stringer for supervisor logs.
func (b *BadgerPersister) String() string {
	return "session-gc"
}
