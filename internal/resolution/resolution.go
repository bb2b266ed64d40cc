// Package resolution loads and serves the declarative method->alias
// map: a read-mostly table keyed by lowercased method name, reloaded
// from disk on an fsnotify event with last-wins merge semantics.
package resolution

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"

	"appgateway/pkg/types"
)

// resolutionFile is the on-disk shape: a single top-level object with
// the "resolutions" map.
type resolutionFile struct {
	Resolutions map[string]types.ResolutionEntry `json:"resolutions"`
}

// Table is the method resolution table. Reads take a shared lock;
// loads take an exclusive one.
type Table struct {
	mu          sync.RWMutex
	entries     map[string]*types.ResolutionEntry
	configured  bool
}

// NewTable returns an empty, unconfigured table.
func NewTable() *Table {
	return &Table{entries: make(map[string]*types.ResolutionEntry)}
}

// LoadFile reads path and merges its entries into the table with
// last-wins semantics: a key present in both the table and the new
// file takes the new file's value. Lowercasing is applied to every key
// on load so lookups are inherently case-insensitive.
func (t *Table) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("resolution: read %s: %w", path, err)
	}
	return t.LoadBytes(data)
}

// LoadBytes parses data as a resolution config document and merges it
// into the table, the same way LoadFile does for a file on disk.
func (t *Table) LoadBytes(data []byte) error {
	var doc resolutionFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("resolution: parse: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for key, entry := range doc.Resolutions {
		entry := entry
		normalized := types.NormalizeMethod(key)
		if err := entry.Validate(); err != nil {
			log.Printf("resolution: skipping invalid entry %q: %v", key, err)
			continue
		}
		t.entries[normalized] = &entry
	}
	t.configured = true

	return nil
}

// Lookup returns the resolution entry for method, normalizing case
// before the lookup. ok is false for an unknown method; callers
// translate that into a JSON-RPC MethodNotFound error.
func (t *Table) Lookup(method string) (*types.ResolutionEntry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	entry, ok := t.entries[types.NormalizeMethod(method)]
	return entry, ok
}

// HasEvent reports whether method resolves to an event subscription.
func (t *Table) HasEvent(method string) bool {
	entry, ok := t.Lookup(method)
	return ok && entry.IsEvent()
}

// HasComRpcRequestSupport reports whether method's resolution entry
// has useComRpc set.
func (t *Table) HasComRpcRequestSupport(method string) bool {
	entry, ok := t.Lookup(method)
	return ok && entry.UseComRpc
}

// IsConfigured reports whether at least one successful load has
// happened.
func (t *Table) IsConfigured() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.configured
}

// Size returns the number of resolved methods currently in the table,
// useful for diagnostics and tests.
func (t *Table) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
