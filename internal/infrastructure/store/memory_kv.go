// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// MemoryKeyValue is an in-process INatsKeyValue with JetStream revision
// semantics. It backs STORE_BACKEND=memory and the repository tests.
type MemoryKeyValue struct {
	mu      sync.RWMutex
	bucket  string
	entries map[string]*memoryEntry
	seq     uint64

	updateFailures []error
}

// NewMemoryKeyValue creates an empty bucket.
func NewMemoryKeyValue(bucket string) *MemoryKeyValue {
	return &MemoryKeyValue{
		bucket:  bucket,
		entries: make(map[string]*memoryEntry),
	}
}

// FailNextUpdates makes the next len(errs) calls to Update return errs in order.
func (m *MemoryKeyValue) FailNextUpdates(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateFailures = append(m.updateFailures, errs...)
}

// Len returns the number of live keys.
func (m *MemoryKeyValue) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *MemoryKeyValue) ListKeys(ctx context.Context, _ ...jetstream.WatchOpt) (jetstream.KeyLister, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	keys := make([]string, 0, len(m.entries))
	for key := range m.entries {
		keys = append(keys, key)
	}
	m.mu.RUnlock()

	sort.Strings(keys)
	return &memoryKeyLister{keys: keys}, nil
}

func (m *MemoryKeyValue) Get(ctx context.Context, key string) (jetstream.KeyValueEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.entries[key]
	if !ok {
		return nil, jetstream.ErrKeyNotFound
	}
	clone := *entry
	clone.value = append([]byte(nil), entry.value...)
	return &clone, nil
}

func (m *MemoryKeyValue) Create(ctx context.Context, key string, value []byte, _ ...jetstream.KVCreateOpt) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[key]; ok {
		return 0, jetstream.ErrKeyExists
	}
	return m.write(key, value), nil
}

func (m *MemoryKeyValue) Update(ctx context.Context, key string, value []byte, revision uint64) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.updateFailures) > 0 {
		err := m.updateFailures[0]
		m.updateFailures = m.updateFailures[1:]
		return 0, err
	}

	entry, ok := m.entries[key]
	if !ok {
		return 0, jetstream.ErrKeyNotFound
	}
	if entry.revision != revision {
		return 0, ErrWrongLastSequence
	}
	return m.write(key, value), nil
}

func (m *MemoryKeyValue) Delete(ctx context.Context, key string, _ ...jetstream.KVDeleteOpt) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[key]; !ok {
		return jetstream.ErrKeyNotFound
	}
	delete(m.entries, key)
	return nil
}

// write must be called with mu held.
func (m *MemoryKeyValue) write(key string, value []byte) uint64 {
	m.seq++
	m.entries[key] = &memoryEntry{
		bucket:   m.bucket,
		key:      key,
		value:    append([]byte(nil), value...),
		revision: m.seq,
		created:  time.Now(),
	}
	return m.seq
}

// ErrWrongLastSequence is the error JetStream returns when an update names a stale revision.
var ErrWrongLastSequence error = &jetstream.APIError{
	Code:        400,
	ErrorCode:   jetstream.JSErrCodeStreamWrongLastSequence,
	Description: "wrong last sequence",
}

type memoryEntry struct {
	bucket   string
	key      string
	value    []byte
	revision uint64
	created  time.Time
}

func (e *memoryEntry) Bucket() string                  { return e.bucket }
func (e *memoryEntry) Key() string                     { return e.key }
func (e *memoryEntry) Value() []byte                   { return e.value }
func (e *memoryEntry) Revision() uint64                { return e.revision }
func (e *memoryEntry) Created() time.Time              { return e.created }
func (e *memoryEntry) Delta() uint64                   { return 0 }
func (e *memoryEntry) Operation() jetstream.KeyValueOp { return jetstream.KeyValuePut }

type memoryKeyLister struct {
	keys []string
}

func (l *memoryKeyLister) Keys() <-chan string {
	ch := make(chan string, len(l.keys))
	for _, key := range l.keys {
		ch <- key
	}
	close(ch)
	return ch
}

func (l *memoryKeyLister) Stop() error { return nil }
