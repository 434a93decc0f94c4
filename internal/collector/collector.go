// Package collector builds up a set of resource.Records for packaging:
// the write side of this library, as opposed to resindex/importer which
// serve an already-built set. A Collector is the typed, ergonomic
// counterpart to constructing resource.Record literals by hand.
package collector

import (
	"fmt"
	"sort"

	"github.com/indygreg/pyembed-go/internal/resource"
)

// Collector accumulates records by name, applying last-wins on conflicts:
// adding a resource under a name already present replaces the prior entry
// wholesale rather than merging field-by-field. This matches how a real
// packaging pipeline resolves overlapping inputs (an app's own module
// shadowing one pulled in from a shared wheel cache, for instance).
type Collector struct {
	order        []string
	byName       map[string]resource.Record
	installFiles []InstallFile
}

// InstallFile describes one filesystem-relative payload a build must write
// next to the consumer binary, per SPEC_FULL.md C6's side-list output: the
// collector only canonicalizes records for the codec, it never does file
// I/O itself, so the caller (a build driver) is responsible for actually
// writing Content to InstallPath under whatever root the resolver will
// later read relative to.
type InstallFile struct {
	InstallPath string
	Content     []byte
	Executable  bool
}

// New returns an empty Collector.
func New() *Collector {
	return &Collector{byName: make(map[string]resource.Record)}
}

func (c *Collector) put(r resource.Record) {
	if _, exists := c.byName[r.Name]; !exists {
		c.order = append(c.order, r.Name)
	}
	c.byName[r.Name] = r
}

// SourceModule adds a module backed by in-memory source text.
func (c *Collector) SourceModule(name string, source []byte, isPackage bool) {
	c.put(resource.Record{
		Flavor: resource.FlavorModule, Name: name, IsPackage: isPackage, Source: source,
	})
}

// BytecodeModule adds a module backed by in-memory compiled bytecode at
// optimization level 0. Use AddResource directly for opt-1/opt-2 variants.
func (c *Collector) BytecodeModule(name string, bytecode []byte, isPackage bool) {
	c.put(resource.Record{
		Flavor: resource.FlavorModule, Name: name, IsPackage: isPackage, Bytecode: bytecode,
	})
}

// ExtensionModule adds a native extension module backed by an in-memory
// shared library image.
func (c *Collector) ExtensionModule(name string, sharedLibrary []byte, deps []string) {
	c.put(resource.Record{
		Flavor: resource.FlavorExtension, Name: name,
		InMemoryExtensionSharedLibrary: sharedLibrary,
		SharedLibraryDependencyNames:   deps,
	})
}

// HostExtensionModule adds an extension module whose shared library the
// embedding host already provides; the collector only needs to record that
// the module exists.
func (c *Collector) HostExtensionModule(name string) {
	c.put(resource.Record{
		Flavor: resource.FlavorExtension, Name: name, ProvidedByHost: true,
	})
}

// PackageResource attaches a data file to an already-added package module.
// It returns an error if pkgName has not been added yet.
func (c *Collector) PackageResource(pkgName, key string, data []byte) error {
	rec, ok := c.byName[pkgName]
	if !ok {
		return fmt.Errorf("collector: package %q must be added before attaching resources to it", pkgName)
	}
	rec.InMemoryPackageResources = append(rec.InMemoryPackageResources, resource.KV{Key: key, Value: data})
	c.byName[pkgName] = rec
	return nil
}

// DistributionResource attaches a distribution-info file (METADATA, RECORD,
// ...) to a distribution record, creating it on first use.
func (c *Collector) DistributionResource(distName, key string, data []byte) {
	rec, ok := c.byName[distName]
	if !ok {
		rec = resource.Record{Flavor: resource.FlavorModule, Name: distName, Source: []byte{}}
		c.order = append(c.order, distName)
	}
	rec.InMemoryDistributionResources = append(rec.InMemoryDistributionResources, resource.KV{Key: key, Value: data})
	c.byName[distName] = rec
}

// DataFile adds a standalone on-disk data file reference (no in-memory
// payload), for resources too large to want copied into the blob.
func (c *Collector) DataFile(pkgName, key, relativePath string) error {
	rec, ok := c.byName[pkgName]
	if !ok {
		return fmt.Errorf("collector: package %q must be added before attaching resources to it", pkgName)
	}
	rec.RelativePathPackageResources = append(rec.RelativePathPackageResources, resource.PathKV{Key: key, Path: relativePath})
	c.byName[pkgName] = rec
	return nil
}

// InstallFile registers an on-disk module (source or bytecode at a
// relative path, for builds that keep large modules out of the blob). If
// content is non-nil, it is also added to the side list returned by
// InstallFiles so a build driver knows to write it to relativeSourcePath;
// pass nil when the source tree already has the file in place and nothing
// needs to be copied.
func (c *Collector) InstallFile(name string, relativeSourcePath string, isPackage bool, content []byte) {
	c.put(resource.Record{
		Flavor: resource.FlavorModule, Name: name, IsPackage: isPackage,
		RelativePathSource: relativeSourcePath,
	})
	if content != nil {
		c.RegisterInstallFile(relativeSourcePath, content, false)
	}
}

// RegisterInstallFile appends to the side list of filesystem payloads a
// build driver must write next to the consumer binary (SPEC_FULL.md C6).
func (c *Collector) RegisterInstallFile(installPath string, content []byte, executable bool) {
	c.installFiles = append(c.installFiles, InstallFile{
		InstallPath: installPath, Content: content, Executable: executable,
	})
}

// InstallFiles returns the accumulated side list of filesystem-relative
// payloads, in the order they were registered.
func (c *Collector) InstallFiles() []InstallFile {
	out := make([]InstallFile, len(c.installFiles))
	copy(out, c.installFiles)
	return out
}

// AddResource inserts or replaces a fully-built record, for cases the
// typed constructors above don't cover.
func (c *Collector) AddResource(r resource.Record) {
	c.put(r)
}

// Records returns every collected record, in the order each name was
// first added. Validation is the caller's job (codec.Emit validates at
// serialization time); Collector itself never rejects a record.
func (c *Collector) Records() []resource.Record {
	out := make([]resource.Record, len(c.order))
	for i, name := range c.order {
		out[i] = c.byName[name]
	}
	return out
}

// Names returns the collected resource names in sorted order, independent
// of insertion order — useful for deterministic test assertions and CLI
// listings.
func (c *Collector) Names() []string {
	names := make([]string, 0, len(c.byName))
	for name := range c.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len reports how many distinct resource names have been collected.
func (c *Collector) Len() int {
	return len(c.byName)
}
