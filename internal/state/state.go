// Package state persists the last-known attributes of every managed node
// across runs. The snapshot is the sole source of truth for "what currently
// exists"; the declarative graph is only the desired-state target. Access
// goes through a narrow store: read snapshot, write snapshot, advisory lock
// during apply.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// Record is the persisted identity and attribute set of one node.
// Dependencies preserve the node's graph edges so deletes can be ordered
// dependents-first even after the declaration disappears from config.
// Arguments lists the attribute names that were declared in configuration at
// the last apply, which lets the planner tell a removed argument apart from
// a provider-computed attribute.
type Record struct {
	Kind         string                  `json:"kind"`
	Attributes   ctyjson.SimpleJSONValue `json:"attributes"`
	Arguments    []string                `json:"arguments,omitempty"`
	Dependencies []string                `json:"dependencies,omitempty"`
}

// Snapshot maps every node's logical address to its last-known state. Serial
// increments on every write; a plan records the serial it was computed
// against so a stale plan can be refused.
type Snapshot struct {
	Serial    uint64             `json:"serial"`
	Lineage   string             `json:"lineage"`
	Resources map[string]*Record `json:"resources"`
}

// NewSnapshot returns an empty snapshot with a fresh lineage.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Serial:    0,
		Lineage:   uuid.NewString(),
		Resources: make(map[string]*Record),
	}
}

// Store reads and writes snapshots at a fixed path.
type Store struct {
	path string
}

// NewStore creates a store for the given snapshot file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the snapshot file path.
func (s *Store) Path() string {
	return s.path
}

// Read loads the snapshot. A missing file yields a fresh, empty snapshot
// rather than an error: first runs start from nothing.
func (s *Store) Read() (*Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return NewSnapshot(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("state snapshot %s is corrupt: %w", s.path, err)
	}
	if snap.Resources == nil {
		snap.Resources = make(map[string]*Record)
	}
	return &snap, nil
}

// Write persists the snapshot atomically (temp file plus rename), so a
// crash mid-write never leaves a truncated snapshot behind.
func (s *Store) Write(snap *Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state snapshot: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".stratus-state-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary state file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write state snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temporary state file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace state snapshot: %w", err)
	}
	return nil
}

// Lock takes an advisory lock for the duration of an apply. It is purely
// cooperative: it guards against concurrent stratus invocations, nothing
// else. The returned function releases the lock.
func (s *Store) Lock() (func() error, error) {
	lockPath := s.path + ".lock"
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("state is locked by another invocation (remove %s if that invocation is gone)", lockPath)
		}
		return nil, fmt.Errorf("failed to acquire state lock: %w", err)
	}
	fmt.Fprintf(f, "pid %d\n", os.Getpid())
	f.Close()

	return func() error {
		return os.Remove(lockPath)
	}, nil
}
