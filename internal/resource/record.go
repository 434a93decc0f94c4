// Package resource defines the data model for a single packed Python
// resource: a named bundle of optional in-memory and on-disk payloads.
package resource

import (
	"fmt"
	"unicode/utf8"
)

// Flavor classifies what kind of thing a Record represents.
type Flavor uint8

const (
	FlavorNone Flavor = iota
	FlavorModule
	FlavorBuiltin
	FlavorFrozen
	FlavorExtension
	FlavorSharedLibrary
)

func (f Flavor) String() string {
	switch f {
	case FlavorNone:
		return "none"
	case FlavorModule:
		return "module"
	case FlavorBuiltin:
		return "builtin"
	case FlavorFrozen:
		return "frozen"
	case FlavorExtension:
		return "extension"
	case FlavorSharedLibrary:
		return "shared_library"
	default:
		return fmt.Sprintf("flavor(%d)", uint8(f))
	}
}

// KV is an ordered key/value pair of bytes, used for the resource and
// distribution maps where key order must round-trip deterministically.
type KV struct {
	Key   string
	Value []byte
}

// PathKV is an ordered key/relative-path pair, used for the on-disk
// counterparts of the resource and distribution maps.
type PathKV struct {
	Key  string
	Path string
}

// Record is a single named resource with its typed payloads. Every []byte
// field is either nil (absent) or a byte slice that, for records produced
// by codec.Parse, borrows directly from the parsed blob. Records are never
// mutated after being inserted into an index; call Clone to get an
// independent copy before mutating.
type Record struct {
	Flavor             Flavor
	Name               string
	IsPackage          bool
	IsNamespacePackage bool

	// ProvidedByHost marks a record whose payload is supplied by the
	// embedding host rather than carried in the blob: an extension whose
	// shared library the host provides, or a builtin/frozen record added
	// from the host's tables.
	ProvidedByHost bool

	Source       []byte
	Bytecode     []byte
	BytecodeOpt1 []byte
	BytecodeOpt2 []byte

	InMemoryExtensionSharedLibrary []byte
	InMemorySharedLibrary         []byte
	SharedLibraryDependencyNames  []string

	InMemoryPackageResources      []KV
	InMemoryDistributionResources []KV

	RelativePathSource                 string
	RelativePathBytecode                string
	RelativePathBytecodeOpt1            string
	RelativePathBytecodeOpt2            string
	RelativePathExtensionSharedLibrary  string
	RelativePathSharedLibrary           string
	RelativePathPackageResources        []PathKV
	RelativePathDistributionResources   []PathKV
}

// HasBytecode reports whether any bytecode variant is present.
func (r *Record) HasBytecode() bool {
	return r.Bytecode != nil || r.BytecodeOpt1 != nil || r.BytecodeOpt2 != nil
}

// BytecodeForLevel returns the bytecode payload for the given optimization level
// (0, 1, or 2), or nil if absent.
func (r *Record) BytecodeForLevel(level int) []byte {
	switch level {
	case 1:
		return r.BytecodeOpt1
	case 2:
		return r.BytecodeOpt2
	default:
		return r.Bytecode
	}
}

// Validate checks the invariants from SPEC_FULL.md §3.1.
func (r *Record) Validate() error {
	if r.Flavor != FlavorNone && r.Name == "" {
		return fmt.Errorf("resource: name must be non-empty for flavor %s", r.Flavor)
	}
	if r.Name != "" && !utf8.ValidString(r.Name) {
		return fmt.Errorf("resource: name %q is not valid UTF-8", r.Name)
	}
	if r.IsNamespacePackage && !r.IsPackage {
		return fmt.Errorf("resource %q: namespace package must also be a package", r.Name)
	}

	switch r.Flavor {
	case FlavorModule:
		if r.Source == nil && !r.HasBytecode() &&
			r.RelativePathSource == "" && r.RelativePathBytecode == "" &&
			r.RelativePathBytecodeOpt1 == "" && r.RelativePathBytecodeOpt2 == "" {
			return fmt.Errorf("resource %q: module record needs source or bytecode (in-memory or on-disk)", r.Name)
		}
	case FlavorExtension:
		if r.InMemoryExtensionSharedLibrary == nil &&
			r.RelativePathExtensionSharedLibrary == "" &&
			!r.ProvidedByHost {
			return fmt.Errorf("resource %q: extension record needs a shared library or ProvidedByHost", r.Name)
		}
	case FlavorBuiltin, FlavorFrozen:
		// name only; payload resolved by the host's tables.
	}

	if err := validateUniqueKeys(Keys(r.InMemoryPackageResources)); err != nil {
		return fmt.Errorf("resource %q: package resources: %w", r.Name, err)
	}
	if err := validateUniqueKeys(Keys(r.InMemoryDistributionResources)); err != nil {
		return fmt.Errorf("resource %q: distribution resources: %w", r.Name, err)
	}
	if err := validateUniqueKeys(pathKeys(r.RelativePathPackageResources)); err != nil {
		return fmt.Errorf("resource %q: relative-path package resources: %w", r.Name, err)
	}
	if err := validateUniqueKeys(pathKeys(r.RelativePathDistributionResources)); err != nil {
		return fmt.Errorf("resource %q: relative-path distribution resources: %w", r.Name, err)
	}
	return nil
}

func validateUniqueKeys(keys []string) error {
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if seen[k] {
			return fmt.Errorf("duplicate key %q", k)
		}
		seen[k] = true
	}
	return nil
}

func pathKeys(kvs []PathKV) []string {
	keys := make([]string, len(kvs))
	for i, kv := range kvs {
		keys[i] = kv.Key
	}
	return keys
}

// Clone returns a deep copy of r. Byte slices and KV maps are copied so
// mutation of the clone never affects r or any index holding r.
func (r *Record) Clone() *Record {
	c := *r
	c.Source = cloneBytes(r.Source)
	c.Bytecode = cloneBytes(r.Bytecode)
	c.BytecodeOpt1 = cloneBytes(r.BytecodeOpt1)
	c.BytecodeOpt2 = cloneBytes(r.BytecodeOpt2)
	c.InMemoryExtensionSharedLibrary = cloneBytes(r.InMemoryExtensionSharedLibrary)
	c.InMemorySharedLibrary = cloneBytes(r.InMemorySharedLibrary)
	c.SharedLibraryDependencyNames = append([]string(nil), r.SharedLibraryDependencyNames...)
	c.InMemoryPackageResources = cloneKVs(r.InMemoryPackageResources)
	c.InMemoryDistributionResources = cloneKVs(r.InMemoryDistributionResources)
	c.RelativePathPackageResources = append([]PathKV(nil), r.RelativePathPackageResources...)
	c.RelativePathDistributionResources = append([]PathKV(nil), r.RelativePathDistributionResources...)
	return &c
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func cloneKVs(kvs []KV) []KV {
	if kvs == nil {
		return nil
	}
	out := make([]KV, len(kvs))
	for i, kv := range kvs {
		out[i] = KV{Key: kv.Key, Value: cloneBytes(kv.Value)}
	}
	return out
}

// Lookup finds a value by key in an ordered KV slice.
func Lookup(kvs []KV, key string) ([]byte, bool) {
	for _, kv := range kvs {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return nil, false
}

// Keys returns the keys of an ordered KV slice in their stored order.
func Keys(kvs []KV) []string {
	keys := make([]string, len(kvs))
	for i, kv := range kvs {
		keys[i] = kv.Key
	}
	return keys
}

// LookupPath finds a relative path by key in an ordered PathKV slice.
func LookupPath(kvs []PathKV, key string) (string, bool) {
	for _, kv := range kvs {
		if kv.Key == key {
			return kv.Path, true
		}
	}
	return "", false
}

// PathKeys returns the keys of an ordered PathKV slice in their stored order.
func PathKeys(kvs []PathKV) []string {
	return pathKeys(kvs)
}
