// Package resolve turns an index lookup into something an importer can
// hand the interpreter: in-memory bytes when the blob carries them,
// filesystem bytes read relative to an install root otherwise.
package resolve

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/indygreg/pyembed-go/internal/errcode"
	"github.com/indygreg/pyembed-go/internal/resindex"
	"github.com/indygreg/pyembed-go/internal/resource"
)

// Origin reports where a resolved payload's bytes actually came from.
type Origin uint8

const (
	// OriginNone means the record carries no payload of the kind asked for.
	OriginNone Origin = iota
	// OriginMemory means the bytes were sliced directly out of the blob.
	OriginMemory
	// OriginFilesystem means the bytes were read from InstallRoot-relative path.
	OriginFilesystem
	// OriginHost means the flavor is resolved by the host's own tables
	// (builtin/frozen) and this resolver never produces bytes for it.
	OriginHost
)

// Payload is the result of resolving one of a record's byte-producing
// fields (source, a bytecode level, or a shared library).
type Payload struct {
	Origin Origin
	Data   []byte
	Path   string // set when Origin == OriginFilesystem
}

// Resolver looks up resource.Records in an index and resolves their
// payload fields, reading from InstallRoot when a record only carries an
// on-disk relative path.
type Resolver struct {
	Index       *resindex.Index
	InstallRoot string
}

// New returns a Resolver over idx. installRoot may be "" if the index only
// ever carries in-memory payloads.
func New(idx *resindex.Index, installRoot string) *Resolver {
	return &Resolver{Index: idx, InstallRoot: installRoot}
}

// Lookup returns the raw record for name, exactly as resindex.Index.Lookup.
func (r *Resolver) Lookup(name string) (resource.Record, bool) {
	return r.Index.Lookup(name)
}

// Source resolves a module's source payload.
func (r *Resolver) Source(name string) (Payload, error) {
	rec, ok := r.Index.Lookup(name)
	if !ok {
		return Payload{}, notFound(name)
	}
	return r.resolveBlobOrPath(rec.Source, rec.RelativePathSource, "source", name)
}

// Bytecode resolves a module's bytecode payload for the given optimization
// level (0, 1, or 2).
func (r *Resolver) Bytecode(name string, level int) (Payload, error) {
	rec, ok := r.Index.Lookup(name)
	if !ok {
		return Payload{}, notFound(name)
	}
	mem := rec.BytecodeForLevel(level)
	var relPath string
	switch level {
	case 1:
		relPath = rec.RelativePathBytecodeOpt1
	case 2:
		relPath = rec.RelativePathBytecodeOpt2
	default:
		relPath = rec.RelativePathBytecode
	}
	return r.resolveBlobOrPath(mem, relPath, "bytecode", name)
}

// SharedLibrary resolves an extension or shared-library record's binary
// payload. ProvidedByHost records resolve to OriginHost with no bytes: the
// embedding host's native loader is responsible for finding that library.
func (r *Resolver) SharedLibrary(name string) (Payload, error) {
	rec, ok := r.Index.Lookup(name)
	if !ok {
		return Payload{}, notFound(name)
	}
	if rec.ProvidedByHost {
		return Payload{Origin: OriginHost}, nil
	}
	var mem []byte
	var relPath string
	switch rec.Flavor {
	case resource.FlavorExtension:
		mem, relPath = rec.InMemoryExtensionSharedLibrary, rec.RelativePathExtensionSharedLibrary
	case resource.FlavorSharedLibrary:
		mem, relPath = rec.InMemorySharedLibrary, rec.RelativePathSharedLibrary
	}
	return r.resolveBlobOrPath(mem, relPath, "shared_library", name)
}

// Data resolves a package- or distribution-resource payload addressed by
// key, checking in-memory maps first and falling back to the relative-path
// maps read from InstallRoot.
func (r *Resolver) Data(moduleName, key string, distribution bool) (Payload, error) {
	rec, ok := r.Index.Lookup(moduleName)
	if !ok {
		return Payload{}, notFound(moduleName)
	}
	memMap := rec.InMemoryPackageResources
	pathMap := rec.RelativePathPackageResources
	if distribution {
		memMap = rec.InMemoryDistributionResources
		pathMap = rec.RelativePathDistributionResources
	}
	if v, ok := resource.Lookup(memMap, key); ok {
		return Payload{Origin: OriginMemory, Data: v}, nil
	}
	if p, ok := resource.LookupPath(pathMap, key); ok {
		return r.readFile(p)
	}
	return Payload{}, errcode.New("resolve", errcode.RES404, fmt.Sprintf("resource %q has no data key %q", moduleName, key), map[string]any{"name": moduleName, "key": key})
}

// ReadRelative reads relPath off disk, joined against InstallRoot, exactly
// as the *-or-path resolvers do for their filesystem fallback. Exported for
// callers (importer.GetData) that already know which relative-path map
// entry they want and just need its bytes.
func (r *Resolver) ReadRelative(relPath string) (Payload, error) {
	return r.readFile(relPath)
}

func (r *Resolver) resolveBlobOrPath(mem []byte, relPath string, field string, name string) (Payload, error) {
	if mem != nil {
		return Payload{Origin: OriginMemory, Data: mem}, nil
	}
	if relPath != "" {
		return r.readFile(relPath)
	}
	return Payload{Origin: OriginNone}, nil
}

func (r *Resolver) readFile(relPath string) (Payload, error) {
	full := relPath
	if r.InstallRoot != "" {
		full = filepath.Join(r.InstallRoot, relPath)
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return Payload{}, errcode.New("resolve", errcode.RES404, fmt.Sprintf("reading %s: %v", full, err), map[string]any{"path": full})
	}
	return Payload{Origin: OriginFilesystem, Data: data, Path: full}, nil
}

func notFound(name string) error {
	return errcode.New("resolve", errcode.RES404, fmt.Sprintf("resource %q not found", name), map[string]any{"name": name})
}
