// Package probecache implements the filesystem-backed Probe Cache: entries
// are keyed by the file path the caller supplies, not by a hash of chunk
// content or parameters; corrupt entries are treated as a miss, writes are
// best-effort.
package probecache

import (
	"bytes"
	"encoding/gob"
	"os"
	"path/filepath"
	"sync"
)

// schemaVersion is bumped whenever the on-disk entry shape changes; a
// mismatch is treated as a miss rather than a decode error.
const schemaVersion = 1

type entry struct {
	Version int
	Value   []byte
}

// Store is a get_or_compute key-value cache backed by one file per key.
// Reads tolerate corruption and version drift by reporting a miss; writes
// never return an error the caller must treat as fatal.
type Store struct {
	mu sync.Mutex
}

// New returns a Store. No state beyond the mutex: each key maps directly to
// a file path supplied by the caller (see internal/ctx.RunContext's path
// helpers for the concrete cache instances).
func New() *Store {
	return &Store{}
}

// Get reads and gob-decodes the value at path into dst. Returns ok=false on
// any error — missing file, corrupt gob stream, or version mismatch — never
// an error the caller must propagate.
func (s *Store) Get(path string, dst any) (ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}

	var e entry
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&e); err != nil {
		return false
	}
	if e.Version != schemaVersion {
		return false
	}
	if err := gob.NewDecoder(bytes.NewReader(e.Value)).Decode(dst); err != nil {
		return false
	}
	return true
}

// Put gob-encodes src and writes it to path, best-effort: a write failure is
// silently dropped. Cache failures must never abort the pipeline.
func (s *Store) Put(path string, src any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var valueBuf bytes.Buffer
	if err := gob.NewEncoder(&valueBuf).Encode(src); err != nil {
		return
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(entry{Version: schemaVersion, Value: valueBuf.Bytes()}); err != nil {
		return
	}

	_ = os.MkdirAll(filepath.Dir(path), 0o755)
	_ = os.WriteFile(path, buf.Bytes(), 0o644)
}

// GetOrCompute returns the cached value at path if present and valid;
// otherwise it calls compute, caches the result (best-effort), and returns it.
func GetOrCompute[T any](s *Store, path string, compute func() (T, error)) (T, error) {
	var cached T
	if s.Get(path, &cached) {
		return cached, nil
	}
	value, err := compute()
	if err != nil {
		var zero T
		return zero, err
	}
	s.Put(path, value)
	return value, nil
}
