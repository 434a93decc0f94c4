// Package resindex holds the unified resource index: every module, package
// resource, and distribution file the importer can see, whether it came
// from a packed-resources blob or from the embedding host's own compiled-in
// builtin/frozen tables.
package resindex

import (
	"fmt"
	"sync"

	"github.com/indygreg/pyembed-go/internal/codec"
	"github.com/indygreg/pyembed-go/internal/errcode"
	"github.com/indygreg/pyembed-go/internal/resource"
)

// HostTables is implemented by the embedding host to expose modules it
// already carries compiled into the binary (CPython's builtin and frozen
// module tables, in the terms this format borrows from). MergeHostTables
// folds these into the index as name-only records so FindSpec sees one
// unified namespace regardless of where a module actually lives.
type HostTables interface {
	// BuiltinModuleNames lists modules implemented as host-native code,
	// initialized through the host's own init-function table.
	BuiltinModuleNames() []string
	// FrozenModuleNames lists modules whose bytecode the host carries
	// compiled into its own binary rather than in a packed-resources blob.
	FrozenModuleNames() []string
}

// Index is safe for concurrent use. Reads (Lookup, Contents, Len) never
// block each other; AddResource/AddResources/MergeHostTables take the
// write lock. There is no GIL backing this format in Go, so mutation must
// be explicitly synchronized rather than assumed exclusive.
type Index struct {
	mu      sync.RWMutex
	records []resource.Record
	byName  map[string]int
}

// New returns an empty index.
func New() *Index {
	return &Index{byName: make(map[string]int)}
}

// FromParseResult builds an index from a parsed packed-resources blob. The
// returned index borrows every byte slice in pr.Records; see codec.Parse.
func FromParseResult(pr *codec.ParseResult) *Index {
	idx := New()
	idx.records = append(idx.records, pr.Records...)
	for name, i := range pr.ByName {
		idx.byName[name] = i
	}
	return idx
}

// MergeHostTables adds one name-only record per host-provided builtin and
// frozen module. Per SPEC_FULL.md §3.3, a name already present from a
// packed-resources blob wins over the host's synthetic entry and is left
// untouched; only a collision between two host-table entries themselves
// (the host's own tables contradicting each other) is a bug worth
// reporting, and fails with IDX001.
func (idx *Index) MergeHostTables(tables HostTables) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	fromHost := make(map[string]bool)
	add := func(name string, flavor resource.Flavor) error {
		if fromHost[name] {
			return errcode.Newf("resindex", errcode.IDX001, "host table provided duplicate module name %q", name)
		}
		fromHost[name] = true
		if _, exists := idx.byName[name]; exists {
			// Packed-blob entry already present; it wins silently.
			return nil
		}
		idx.byName[name] = len(idx.records)
		idx.records = append(idx.records, resource.Record{
			Flavor:         flavor,
			Name:           name,
			ProvidedByHost: true,
		})
		return nil
	}

	for _, name := range tables.BuiltinModuleNames() {
		if err := add(name, resource.FlavorBuiltin); err != nil {
			return err
		}
	}
	for _, name := range tables.FrozenModuleNames() {
		if err := add(name, resource.FlavorFrozen); err != nil {
			return err
		}
	}
	return nil
}

// AddResource validates and inserts or replaces a single record. A record
// with a name already present in the index overwrites the prior entry,
// mirroring the collector's last-wins conflict policy (SPEC_FULL.md §4.6).
func (idx *Index) AddResource(r resource.Record) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("resindex: %w", err)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if i, exists := idx.byName[r.Name]; exists {
		idx.records[i] = r
		return nil
	}
	idx.byName[r.Name] = len(idx.records)
	idx.records = append(idx.records, r)
	return nil
}

// AddResources adds each record in turn, stopping at the first error.
// Records already added before a failing one remain in the index: callers
// that need all-or-nothing semantics should validate up front.
func (idx *Index) AddResources(rs []resource.Record) error {
	for _, r := range rs {
		if err := idx.AddResource(r); err != nil {
			return err
		}
	}
	return nil
}

// Lookup returns a copy of the record named name, if present.
func (idx *Index) Lookup(name string) (resource.Record, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	i, ok := idx.byName[name]
	if !ok {
		return resource.Record{}, false
	}
	return idx.records[i], true
}

// Contents returns the names currently in the index, in insertion order.
func (idx *Index) Contents() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	names := make([]string, len(idx.records))
	for i, r := range idx.records {
		names[i] = r.Name
	}
	return names
}

// Len reports how many records the index holds.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.records)
}

// Records returns a copy of the full record slice, in insertion order.
// Used by the importer's FindDistributions and SerializeIndexedResources.
func (idx *Index) Records() []resource.Record {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]resource.Record, len(idx.records))
	copy(out, idx.records)
	return out
}
