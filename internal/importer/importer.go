// Package importer implements the meta-path-importer façade: the surface
// a host exposes to an embedded interpreter so module lookup, execution,
// and resource/data access are all served out of one packed-resources
// index instead of the filesystem.
package importer

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/indygreg/pyembed-go/internal/codec"
	"github.com/indygreg/pyembed-go/internal/distmeta"
	"github.com/indygreg/pyembed-go/internal/errcode"
	"github.com/indygreg/pyembed-go/internal/resindex"
	"github.com/indygreg/pyembed-go/internal/resolve"
	"github.com/indygreg/pyembed-go/internal/resource"
	"github.com/indygreg/pyembed-go/internal/textnorm"
)

// NotFoundError is returned by every lookup method when the requested name
// or key is absent, wrapping errcode.RES404 so callers using errors.As get
// a typed result without parsing Report.Data themselves.
type NotFoundError struct {
	Name string
	Key  string // set for GetData/GetResourceReader lookups
}

func (e *NotFoundError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("importer: %s has no resource %q", e.Name, e.Key)
	}
	return fmt.Sprintf("importer: module %q not found", e.Name)
}

func (e *NotFoundError) Unwrap() error {
	data := map[string]any{"name": e.Name}
	if e.Key != "" {
		data["key"] = e.Key
	}
	return errcode.New("importer", errcode.RES404, e.Error(), data)
}

// ModuleSpec is the Go analogue of importlib.machinery.ModuleSpec: enough
// information for a host to create and execute a module object without
// touching the index again.
type ModuleSpec struct {
	Name                     string
	IsPackage                bool
	SubmoduleSearchLocations []string // non-nil only for packages
	Origin                   string   // display string, e.g. "memory:pkg.mod" or a filesystem path
	HasLocation              bool     // true when Origin is a real filesystem path
}

// Module is a resolved module ready for a host to execute: either source
// text (the host compiles it) or bytecode (opaque to this library).
type Module struct {
	Spec     *ModuleSpec
	Source   string // set when the record carries source and no bytecode was requested
	Bytecode []byte
}

// NativeLoader is implemented by the embedding host to actually dlopen an
// extension module's shared library. This library never links against
// CPython itself; it only carries the bytes and hands them to the host.
type NativeLoader interface {
	// LoadExtension dlopens payload and calls the extension's module-init
	// entry point, returning the host's notion of the resulting module.
	LoadExtension(name string, payload resolve.Payload) (handle any, err error)
	// LoadSharedLibrary dlopens payload without calling any init entry
	// point, for a plain dependency an extension links against rather
	// than a Python module in its own right.
	LoadSharedLibrary(name string, payload resolve.Payload) error
}

// ResourceReader models importlib.resources.abc.ResourceReader: access to
// a package's non-code data files, both in-memory and on disk.
type ResourceReader struct {
	imp    *Importer
	module string
}

// OpenResource returns the bytes of a package-resource file.
func (rr *ResourceReader) OpenResource(key string) ([]byte, error) {
	p, err := rr.imp.res.Data(rr.module, key, false)
	if err != nil {
		return nil, &NotFoundError{Name: rr.module, Key: key}
	}
	return p.Data, nil
}

// ResourcePath returns a filesystem path for key, when one exists. In-memory
// resources have no path and return path="", ok=false.
func (rr *ResourceReader) ResourcePath(key string) (path string, ok bool) {
	rec, found := rr.imp.idx.Lookup(rr.module)
	if !found {
		return "", false
	}
	p, found := resource.LookupPath(rec.RelativePathPackageResources, key)
	return p, found
}

// IsResource reports whether key names a resource (not a sub-package) of
// this package.
func (rr *ResourceReader) IsResource(key string) bool {
	rec, found := rr.imp.idx.Lookup(rr.module)
	if !found {
		return false
	}
	if _, ok := resource.Lookup(rec.InMemoryPackageResources, key); ok {
		return true
	}
	_, ok := resource.LookupPath(rec.RelativePathPackageResources, key)
	return ok
}

// Contents lists every resource key and every immediate submodule name.
func (rr *ResourceReader) Contents() []string {
	rec, found := rr.imp.idx.Lookup(rr.module)
	seen := map[string]bool{}
	var out []string
	if found {
		for _, k := range resource.Keys(rec.InMemoryPackageResources) {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
		for _, k := range resource.PathKeys(rec.RelativePathPackageResources) {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	prefix := rr.module + "."
	for _, sub := range rr.imp.IterModules(rr.module) {
		short := strings.TrimPrefix(sub, prefix)
		if !seen[short] {
			seen[short] = true
			out = append(out, short)
		}
	}
	sort.Strings(out)
	return out
}

// DistributionContext carries a distribution's raw resource maps, for
// callers that need more than parsed Metadata (e.g. listing RECORD or
// INSTALLER alongside it).
type DistributionContext struct {
	Name string
	res  *resolve.Resolver
}

// Read returns the bytes of another distribution-info file (RECORD,
// INSTALLER, WHEEL, top_level.txt, ...) alongside METADATA, checking
// in-memory distribution resources first and falling back to the record's
// relative-path distribution resources, read from the install root.
func (dc *DistributionContext) Read(key string) ([]byte, bool) {
	p, err := dc.res.Data(dc.Name, key, true)
	if err != nil {
		return nil, false
	}
	return p.Data, true
}

// Distribution is the Go analogue of importlib.metadata.Distribution:
// enough to answer "what is this package's name/version" and read its
// metadata. Per SPEC_FULL.md §4.3, EntryPoints/Files/Requires are part of
// the surface but always raise DST002 rather than being implemented, and
// Metadata/Version raise DST001 when neither METADATA nor PKG-INFO is
// present — metadata parsing is deferred to first access rather than
// done eagerly in FindDistributions, so a distribution with resource
// files but no metadata can still be listed.
type Distribution struct {
	Name    string // the resource record's name, e.g. "requests-2.31.0.dist-info"
	Context *DistributionContext
}

// Metadata parses and returns the distribution's METADATA or PKG-INFO
// file, raising errcode.DST001 if neither is present or parsing fails.
func (d *Distribution) Metadata() (*distmeta.Metadata, error) {
	raw, ok := d.Context.Read("METADATA")
	if !ok {
		raw, ok = d.Context.Read("PKG-INFO")
	}
	if !ok {
		return nil, errcode.New("importer", errcode.DST001, "neither METADATA nor PKG-INFO present", map[string]any{"name": d.Name})
	}
	md, err := distmeta.Parse(raw)
	if err != nil {
		return nil, errcode.New("importer", errcode.DST001, err.Error(), map[string]any{"name": d.Name})
	}
	return md, nil
}

// Version returns the distribution's Version metadata header, raising
// errcode.DST001 under the same conditions as Metadata.
func (d *Distribution) Version() (string, error) {
	md, err := d.Metadata()
	if err != nil {
		return "", err
	}
	return md.Version(), nil
}

// ReadText decodes another distribution-info file (RECORD, INSTALLER,
// entry_points.txt, ...) as UTF-8 text, raising a NotFoundError if absent.
func (d *Distribution) ReadText(filename string) (string, error) {
	raw, ok := d.Context.Read(filename)
	if !ok {
		return "", &NotFoundError{Name: d.Name, Key: filename}
	}
	return textnorm.DecodeSource(raw)
}

// EntryPoints always raises DST002: entry-point parsing is not
// implemented by this module (SPEC_FULL.md §4.3).
func (d *Distribution) EntryPoints() ([]string, error) {
	return nil, errcode.New("importer", errcode.DST002, "entry_points is not implemented", map[string]any{"name": d.Name})
}

// Files always raises DST002: file-listing (RECORD parsing) is not
// implemented by this module (SPEC_FULL.md §4.3).
func (d *Distribution) Files() ([]string, error) {
	return nil, errcode.New("importer", errcode.DST002, "files is not implemented", map[string]any{"name": d.Name})
}

// Requires always raises DST002: requirement parsing is not implemented
// by this module (SPEC_FULL.md §4.3).
func (d *Distribution) Requires() ([]string, error) {
	return nil, errcode.New("importer", errcode.DST002, "requires is not implemented", map[string]any{"name": d.Name})
}

// Importer is the façade a host wires into sys.meta_path (conceptually:
// this library never touches CPython directly, per SPEC_FULL.md's
// HostTables boundary). It is safe for concurrent use: all mutation runs
// through Index, which owns its own lock.
type Importer struct {
	idx     *resindex.Index
	res     *resolve.Resolver
	loader  NativeLoader
	exePath string // current executable's path, the GetData in-memory prefix
}

// New builds an Importer over idx, resolving on-disk payloads relative to
// installRoot (when "", the directory of the current executable) and handing extension
// modules to loader (may be nil if the host never loads extensions). The
// current executable's own path (used as GetData's in-memory prefix, per
// SPEC_FULL.md §4.3) is discovered via os.Executable; use NewWithExecutable
// to set it explicitly, e.g. under test.
func New(idx *resindex.Index, installRoot string, loader NativeLoader) *Importer {
	return NewWithExecutable(idx, installRoot, "", loader)
}

// NewWithExecutable is New, but with the current executable's path supplied
// explicitly instead of discovered via os.Executable.
func NewWithExecutable(idx *resindex.Index, installRoot, executablePath string, loader NativeLoader) *Importer {
	if executablePath == "" {
		if p, err := os.Executable(); err == nil {
			executablePath = p
		}
	}
	if installRoot == "" && executablePath != "" {
		installRoot = filepath.Dir(executablePath)
	}
	return &Importer{
		idx:     idx,
		res:     resolve.New(idx, installRoot),
		loader:  loader,
		exePath: executablePath,
	}
}

// exeDir returns the directory GetData treats as the filesystem-relative
// prefix: the resolver's configured install root if one was given, else the
// directory of the executable path.
func (imp *Importer) exeDir() string {
	if imp.res.InstallRoot != "" {
		return imp.res.InstallRoot
	}
	if imp.exePath != "" {
		return filepath.Dir(imp.exePath)
	}
	return ""
}

// InMemoryDataPath builds the synthetic absolute path GetData expects for an
// in-memory package resource, for callers that address resources by module
// name and key rather than already holding a path (e.g. the CLI inspector).
func (imp *Importer) InMemoryDataPath(module, key string) string {
	return filepath.Join(imp.exePath, strings.ReplaceAll(module, ".", "/"), key)
}

// FindSpec resolves name to a ModuleSpec, the first step of Python's import
// protocol (PEP 451). A miss returns (nil, nil), not an error: per the
// meta-path-finder contract, a finder that errors on a lookup miss aborts
// import resolution entirely instead of letting the next finder on the path
// try, so "not found" must be silent here.
func (imp *Importer) FindSpec(name string) (*ModuleSpec, error) {
	rec, ok := imp.idx.Lookup(name)
	if !ok || rec.Flavor == resource.FlavorNone {
		return nil, nil
	}

	spec := &ModuleSpec{Name: name, IsPackage: rec.IsPackage}
	switch {
	case rec.Flavor == resource.FlavorBuiltin:
		spec.Origin = "built-in"
	case rec.Flavor == resource.FlavorFrozen:
		spec.Origin = "frozen"
	case rec.RelativePathSource != "":
		spec.Origin = rec.RelativePathSource
		spec.HasLocation = true
	case rec.RelativePathBytecode != "":
		spec.Origin = rec.RelativePathBytecode
		spec.HasLocation = true
	default:
		spec.Origin = "memory:" + name
	}
	if rec.IsPackage {
		if spec.HasLocation {
			spec.SubmoduleSearchLocations = []string{filepath.Dir(filepath.FromSlash(spec.Origin))}
		} else {
			spec.SubmoduleSearchLocations = []string{filepath.Join(imp.exeDir(), strings.ReplaceAll(name, ".", "/"))}
		}
	}
	return spec, nil
}

// CreateModule resolves a spec's payload into a Module the host can
// execute. For FlavorBuiltin/FlavorFrozen records provided by the host's
// own tables, CreateModule returns a Module with no Source/Bytecode: the
// host is expected to recognize ProvidedByHost and use its own machinery,
// mirroring create_module returning None in Python to request default
// handling.
func (imp *Importer) CreateModule(spec *ModuleSpec) (*Module, error) {
	rec, ok := imp.idx.Lookup(spec.Name)
	if !ok {
		return nil, &NotFoundError{Name: spec.Name}
	}
	if rec.ProvidedByHost {
		return &Module{Spec: spec}, nil
	}

	mod := &Module{Spec: spec}
	if rec.HasBytecode() {
		p, err := imp.res.Bytecode(spec.Name, 0)
		if err != nil {
			return nil, err
		}
		mod.Bytecode = p.Data
	}
	if mod.Bytecode == nil {
		p, err := imp.res.Source(spec.Name)
		if err != nil {
			return nil, err
		}
		if p.Origin != resolve.OriginNone {
			src, err := textnorm.DecodeSource(p.Data)
			if err != nil {
				return nil, errcode.New("importer", errcode.DEC001, err.Error(), map[string]any{"name": spec.Name})
			}
			mod.Source = src
		}
	}
	return mod, nil
}

// ExecModule is a no-op for every flavor this library resolves: actually
// running Python bytecode or compiling source is the host interpreter's
// job, never this library's. It exists so the façade's method set
// mirrors the import protocol a host expects to call in order.
func (imp *Importer) ExecModule(mod *Module) error {
	return nil
}

// GetSource returns a module's decoded source text.
func (imp *Importer) GetSource(name string) (string, error) {
	p, err := imp.res.Source(name)
	if err != nil {
		return "", err
	}
	if p.Origin == resolve.OriginNone {
		return "", &NotFoundError{Name: name}
	}
	src, err := textnorm.DecodeSource(p.Data)
	if err != nil {
		return "", errcode.New("importer", errcode.DEC001, err.Error(), map[string]any{"name": name})
	}
	return src, nil
}

// GetCode returns a module's bytecode for the given optimization level.
// It never compiles source on the fly: a source-only module has no code
// until the host compiles it itself.
func (imp *Importer) GetCode(name string, level int) ([]byte, error) {
	p, err := imp.res.Bytecode(name, level)
	if err != nil {
		return nil, err
	}
	if p.Origin == resolve.OriginNone {
		return nil, &NotFoundError{Name: name}
	}
	return p.Data, nil
}

// GetData resolves an absolute path into package-resource bytes, mirroring
// importlib's loader.get_data(path). The path must be prefixed by the
// current executable's own path (in-memory resources only) or by its
// directory (filesystem-relative resources only); the remainder is tried
// as successively shorter dotted-package-name prefixes against the index
// until one names an indexed package, and whatever's left becomes the
// resource key looked up in that package's resource map. A path outside
// both prefixes, or one with no matching package/key, returns
// *NotFoundError carrying the original path.
func (imp *Importer) GetData(path string) ([]byte, error) {
	rel, memoryOnly, ok := imp.splitDataPath(path)
	if !ok {
		return nil, &NotFoundError{Name: path}
	}

	segments := strings.Split(rel, "/")
	for i := len(segments); i > 0; i-- {
		pkg := strings.Join(segments[:i], ".")
		rec, ok := imp.idx.Lookup(pkg)
		if !ok {
			continue
		}
		key := strings.Join(segments[i:], "/")
		if memoryOnly {
			if v, ok := resource.Lookup(rec.InMemoryPackageResources, key); ok {
				return v, nil
			}
			continue
		}
		if relPath, ok := resource.LookupPath(rec.RelativePathPackageResources, key); ok {
			p, err := imp.res.ReadRelative(relPath)
			if err != nil {
				return nil, &NotFoundError{Name: path}
			}
			return p.Data, nil
		}
	}
	return nil, &NotFoundError{Name: path}
}

// splitDataPath strips the executable-path or executable-directory prefix
// from an absolute path per GetData's path discipline (SPEC_FULL.md §4.3,
// §7 property 7), reporting whether the remainder addresses in-memory
// resources (executable-path prefix) or filesystem-relative ones (its
// directory). ok is false when path is outside both prefixes.
func (imp *Importer) splitDataPath(path string) (rel string, memoryOnly bool, ok bool) {
	clean := filepath.Clean(path)
	if imp.exePath != "" {
		if r, isRel := cutPathPrefix(clean, filepath.Clean(imp.exePath)); isRel {
			return filepath.ToSlash(r), true, true
		}
	}
	if dir := imp.exeDir(); dir != "" {
		if r, isRel := cutPathPrefix(clean, filepath.Clean(dir)); isRel {
			return filepath.ToSlash(r), false, true
		}
	}
	return "", false, false
}

// cutPathPrefix reports whether s is prefix or a descendant of prefix,
// returning the remainder with the separator between them stripped.
func cutPathPrefix(s, prefix string) (string, bool) {
	if s == prefix {
		return "", true
	}
	if !strings.HasPrefix(s, prefix+string(filepath.Separator)) {
		return "", false
	}
	return strings.TrimPrefix(s, prefix+string(filepath.Separator)), true
}

// GetResourceReader returns a ResourceReader for a package, or a
// *NotFoundError if name does not name an indexed package.
func (imp *Importer) GetResourceReader(name string) (*ResourceReader, error) {
	rec, ok := imp.idx.Lookup(name)
	if !ok || !rec.IsPackage {
		return nil, &NotFoundError{Name: name}
	}
	return &ResourceReader{imp: imp, module: name}, nil
}

// LoadExtension resolves an extension module's shared library and hands it
// to the injected NativeLoader, loading every name listed in the record's
// shared_library_dependency_names first (dependency-first order, per
// SPEC_FULL.md §9's load-order-hint treatment of that field — not a
// strict DAG, so an unresolvable dependency name is left for the host's
// own dynamic linker to find rather than treated as an error here). It
// fails with errcode.EXT001 if no loader was configured, if a dependency
// cycle is detected among in-memory entries, or if the loader itself
// errors.
func (imp *Importer) LoadExtension(name string) (any, error) {
	if imp.loader == nil {
		return nil, errcode.New("importer", errcode.EXT001, "no NativeLoader configured", map[string]any{"name": name})
	}

	order, err := resolve.TopoOrder([]string{name}, func(n string) []string {
		rec, ok := imp.idx.Lookup(n)
		if !ok {
			return nil
		}
		return rec.SharedLibraryDependencyNames
	})
	if err != nil {
		return nil, errcode.New("importer", errcode.EXT001, err.Error(), map[string]any{"name": name})
	}

	for _, dep := range order {
		if dep == name {
			continue
		}
		if _, ok := imp.idx.Lookup(dep); !ok {
			// Not one of our records; the host's own dynamic linker is
			// expected to resolve it (e.g. libc, libm).
			continue
		}
		p, err := imp.res.SharedLibrary(dep)
		if err != nil || p.Origin == resolve.OriginNone {
			continue
		}
		if err := imp.loader.LoadSharedLibrary(dep, p); err != nil {
			return nil, errcode.New("importer", errcode.EXT001, err.Error(), map[string]any{"name": dep})
		}
	}

	p, err := imp.res.SharedLibrary(name)
	if err != nil {
		return nil, err
	}
	handle, err := imp.loader.LoadExtension(name, p)
	if err != nil {
		return nil, errcode.New("importer", errcode.EXT001, err.Error(), map[string]any{"name": name})
	}
	return handle, nil
}

// IterModules lists the immediate submodules of pkgName (pass "" for the
// top level). A name is an immediate submodule of pkgName when it has
// pkgName+"." as a prefix and no further "." beyond that.
func (imp *Importer) IterModules(pkgName string) []string {
	prefix := ""
	if pkgName != "" {
		prefix = pkgName + "."
	}
	seen := map[string]bool{}
	var out []string
	for _, name := range imp.idx.Contents() {
		if pkgName == "" {
			if strings.Contains(name, ".") {
				continue
			}
		} else {
			if !strings.HasPrefix(name, prefix) {
				continue
			}
			rest := name[len(prefix):]
			if rest == "" || strings.Contains(rest, ".") {
				continue
			}
		}
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// FindDistributions returns a Distribution for every indexed package
// carrying any in_memory_distribution_resources or
// relative_path_distribution_resources, filtered to those whose normalized
// record name (PEP 503) matches name. When name is "" (the Go analogue of
// Python's Context(name=None)), every such distribution is returned,
// mirroring find_distributions' contract of ignoring the path attribute
// of context and honoring only name. Matching is against the record's own
// name rather than a parsed METADATA Name header, so a distribution
// missing metadata can still be found by name; accessing its Metadata or
// Version raises DST001 (SPEC_FULL.md §7).
func (imp *Importer) FindDistributions(name string) ([]*Distribution, error) {
	wanted := ""
	if name != "" {
		wanted = distmeta.NormalizeProjectName(name)
	}
	var out []*Distribution
	for _, rec := range imp.idx.Records() {
		if len(rec.InMemoryDistributionResources) == 0 && len(rec.RelativePathDistributionResources) == 0 {
			continue
		}
		if name != "" && distmeta.NormalizeProjectName(rec.Name) != wanted {
			continue
		}
		out = append(out, &Distribution{
			Name: rec.Name,
			Context: &DistributionContext{
				Name: rec.Name,
				res:  imp.res,
			},
		})
	}
	return out, nil
}

// AddResource inserts or replaces a single record, delegating validation
// and locking to the underlying index. The record's payloads are copied
// first, so later changes to the caller's slices never reach the index.
func (imp *Importer) AddResource(r resource.Record) error {
	return imp.idx.AddResource(*r.Clone())
}

// AddResources inserts or replaces each record in turn, copying each one
// as AddResource does and stopping at the first error.
func (imp *Importer) AddResources(rs []resource.Record) error {
	for _, r := range rs {
		if err := imp.AddResource(r); err != nil {
			return err
		}
	}
	return nil
}

// SerializeOptions controls which synthesized host-table records
// SerializeIndexedResources leaves out of its re-emitted blob.
type SerializeOptions struct {
	IgnoreBuiltin bool
	IgnoreFrozen  bool
}

// DefaultSerializeOptions matches serialize_indexed_resources' own default
// arguments (ignore_builtin=True, ignore_frozen=True): built-in and frozen
// records only describe modules the current host's interpreter already
// provides, so they aren't portable to a blob meant to be read back by a
// different host.
func DefaultSerializeOptions() SerializeOptions {
	return SerializeOptions{IgnoreBuiltin: true, IgnoreFrozen: true}
}

// SerializeIndexedResources re-emits every record currently in the index as
// a packed-resources blob, suitable for persisting a runtime-modified index
// back to disk. Per opts, FlavorBuiltin/FlavorFrozen records are dropped
// before emission rather than re-serialized verbatim.
func (imp *Importer) SerializeIndexedResources(opts SerializeOptions) ([]byte, error) {
	all := imp.idx.Records()
	out := make([]resource.Record, 0, len(all))
	for _, rec := range all {
		if opts.IgnoreBuiltin && rec.Flavor == resource.FlavorBuiltin {
			continue
		}
		if opts.IgnoreFrozen && rec.Flavor == resource.FlavorFrozen {
			continue
		}
		out = append(out, rec)
	}
	return codec.Emit(out, codec.CurrentVersion)
}
