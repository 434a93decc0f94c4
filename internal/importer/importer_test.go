package importer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/indygreg/pyembed-go/internal/codec"
	"github.com/indygreg/pyembed-go/internal/errcode"
	"github.com/indygreg/pyembed-go/internal/resindex"
	"github.com/indygreg/pyembed-go/internal/resolve"
	"github.com/indygreg/pyembed-go/internal/resource"
)

func newTestImporter(t *testing.T) *Importer {
	t.Helper()
	idx := resindex.New()
	records := []resource.Record{
		{Flavor: resource.FlavorModule, Name: "pkg", IsPackage: true, Source: []byte("# pkg\n")},
		{Flavor: resource.FlavorModule, Name: "pkg.sub", Source: []byte("x = 1\n")},
		{Flavor: resource.FlavorModule, Name: "top", Source: []byte("y = 2\n")},
		{
			Flavor: resource.FlavorModule, Name: "dist_pkg", Source: []byte{},
			InMemoryDistributionResources: []resource.KV{
				{Key: "METADATA", Value: []byte("Name: Dist-Pkg\nVersion: 1.0\n")},
			},
		},
	}
	require.NoError(t, idx.AddResources(records))
	return New(idx, "", nil)
}

func TestFindSpecReturnsPackageSearchLocations(t *testing.T) {
	imp := newTestImporter(t)
	spec, err := imp.FindSpec("pkg")
	require.NoError(t, err)
	assert.True(t, spec.IsPackage)
	assert.NotEmpty(t, spec.SubmoduleSearchLocations)
}

func TestFindSpecMissingReturnsNilNil(t *testing.T) {
	imp := newTestImporter(t)
	spec, err := imp.FindSpec("nope")
	require.NoError(t, err)
	assert.Nil(t, spec)
}

func TestCreateModuleResolvesSource(t *testing.T) {
	imp := newTestImporter(t)
	spec, err := imp.FindSpec("top")
	require.NoError(t, err)
	mod, err := imp.CreateModule(spec)
	require.NoError(t, err)
	assert.Equal(t, "y = 2\n", mod.Source)
	assert.Nil(t, mod.Bytecode)
}

func TestGetSourceAndGetCode(t *testing.T) {
	imp := newTestImporter(t)
	src, err := imp.GetSource("pkg.sub")
	require.NoError(t, err)
	assert.Equal(t, "x = 1\n", src)

	_, err = imp.GetCode("pkg.sub", 0)
	require.Error(t, err) // no bytecode stored, only source
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestIterModulesTopLevelAndNested(t *testing.T) {
	imp := newTestImporter(t)
	top := imp.IterModules("")
	assert.Contains(t, top, "pkg")
	assert.Contains(t, top, "top")
	assert.NotContains(t, top, "pkg.sub")

	subs := imp.IterModules("pkg")
	assert.Equal(t, []string{"pkg.sub"}, subs)
}

func TestGetResourceReaderRejectsNonPackage(t *testing.T) {
	imp := newTestImporter(t)
	_, err := imp.GetResourceReader("top")
	require.Error(t, err)
}

func TestResourceReaderContentsIncludesSubmodules(t *testing.T) {
	imp := newTestImporter(t)
	rr, err := imp.GetResourceReader("pkg")
	require.NoError(t, err)
	assert.Contains(t, rr.Contents(), "sub")
}

func TestFindDistributionsMatchesNormalizedName(t *testing.T) {
	imp := newTestImporter(t)
	dists, err := imp.FindDistributions("dist-pkg")
	require.NoError(t, err)
	require.Len(t, dists, 1)
	md, err := dists[0].Metadata()
	require.NoError(t, err)
	assert.Equal(t, "Dist-Pkg", md.Name())
	version, err := dists[0].Version()
	require.NoError(t, err)
	assert.Equal(t, "1.0", version)
}

func TestFindDistributionsListsAllWhenNameEmpty(t *testing.T) {
	imp := newTestImporter(t)
	dists, err := imp.FindDistributions("")
	require.NoError(t, err)
	require.Len(t, dists, 1)
	assert.Equal(t, "dist_pkg", dists[0].Name)
}

func TestDistributionMetadataMissingRaisesDST001(t *testing.T) {
	idx := resindex.New()
	require.NoError(t, idx.AddResource(resource.Record{
		Flavor: resource.FlavorModule, Name: "no_md", IsPackage: true, Source: []byte{},
		InMemoryDistributionResources: []resource.KV{
			{Key: "RECORD", Value: []byte("no_md/__init__.py,,\n")},
		},
	}))
	imp := New(idx, "", nil)

	dists, err := imp.FindDistributions("no_md")
	require.NoError(t, err)
	require.Len(t, dists, 1)

	_, err = dists[0].Metadata()
	require.Error(t, err)
	rep, ok := errcode.AsReport(err)
	require.True(t, ok)
	assert.Equal(t, errcode.DST001, rep.Code)

	_, err = dists[0].Version()
	require.Error(t, err)

	text, err := dists[0].ReadText("RECORD")
	require.NoError(t, err)
	assert.Contains(t, text, "no_md/__init__.py")

	_, err = dists[0].EntryPoints()
	require.Error(t, err)
	_, err = dists[0].Files()
	require.Error(t, err)
	_, err = dists[0].Requires()
	require.Error(t, err)
}

func TestSerializeIndexedResourcesRoundTrips(t *testing.T) {
	imp := newTestImporter(t)
	blob, err := imp.SerializeIndexedResources(DefaultSerializeOptions())
	require.NoError(t, err)
	assert.NotEmpty(t, blob)
}

func TestSerializeIndexedResourcesDropsBuiltinAndFrozenByDefault(t *testing.T) {
	idx := resindex.New()
	require.NoError(t, idx.AddResources([]resource.Record{
		{Flavor: resource.FlavorModule, Name: "pkg", Source: []byte("x = 1\n")},
		{Flavor: resource.FlavorBuiltin, Name: "sys", ProvidedByHost: true},
		{Flavor: resource.FlavorFrozen, Name: "_frozen_importlib", ProvidedByHost: true},
	}))
	imp := New(idx, "", nil)

	blob, err := imp.SerializeIndexedResources(DefaultSerializeOptions())
	require.NoError(t, err)
	result, err := codec.Parse(blob, codec.CurrentVersion.Major)
	require.NoError(t, err)
	assert.Len(t, result.Records, 1)
	assert.Equal(t, "pkg", result.Records[0].Name)

	kept, err := imp.SerializeIndexedResources(SerializeOptions{})
	require.NoError(t, err)
	result, err = codec.Parse(kept, codec.CurrentVersion.Major)
	require.NoError(t, err)
	assert.Len(t, result.Records, 3)
}

func TestFindSpecOriginForBuiltinAndFrozen(t *testing.T) {
	idx := resindex.New()
	require.NoError(t, idx.AddResources([]resource.Record{
		{Flavor: resource.FlavorBuiltin, Name: "sys", ProvidedByHost: true},
		{Flavor: resource.FlavorFrozen, Name: "_frozen_importlib", ProvidedByHost: true},
	}))
	imp := New(idx, "", nil)

	spec, err := imp.FindSpec("sys")
	require.NoError(t, err)
	assert.Equal(t, "built-in", spec.Origin)
	assert.False(t, spec.HasLocation)

	spec, err = imp.FindSpec("_frozen_importlib")
	require.NoError(t, err)
	assert.Equal(t, "frozen", spec.Origin)
	assert.False(t, spec.HasLocation)
}

func TestGetDataResolvesInMemoryUnderExecutablePrefix(t *testing.T) {
	idx := resindex.New()
	require.NoError(t, idx.AddResource(resource.Record{
		Flavor: resource.FlavorModule, Name: "pkg", IsPackage: true, Source: []byte{},
		InMemoryPackageResources: []resource.KV{{Key: "data.txt", Value: []byte("hello")}},
	}))
	imp := NewWithExecutable(idx, "", filepath.Join("opt", "app", "myapp"), nil)

	data, err := imp.GetData(filepath.Join("opt", "app", "myapp", "pkg", "data.txt"))
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)
}

func TestGetDataResolvesFilesystemUnderExecutableDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "assets"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "assets", "a.bin"), []byte("bin"), 0o644))

	idx := resindex.New()
	require.NoError(t, idx.AddResource(resource.Record{
		Flavor: resource.FlavorModule, Name: "pkg", IsPackage: true, Source: []byte{},
		RelativePathPackageResources: []resource.PathKV{{Key: "a.bin", Path: "assets/a.bin"}},
	}))
	imp := NewWithExecutable(idx, dir, filepath.Join(dir, "myapp"), nil)

	data, err := imp.GetData(filepath.Join(dir, "pkg", "a.bin"))
	require.NoError(t, err)
	assert.Equal(t, []byte("bin"), data)
}

func TestGetDataRejectsPathOutsideExecutablePrefixes(t *testing.T) {
	imp := NewWithExecutable(resindex.New(), "", filepath.Join("opt", "app", "myapp"), nil)
	_, err := imp.GetData(filepath.Join("somewhere", "else", "pkg", "data.txt"))
	require.Error(t, err)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestLoadExtensionFailsWithoutLoader(t *testing.T) {
	idx := resindex.New()
	require.NoError(t, idx.AddResource(resource.Record{
		Flavor: resource.FlavorExtension, Name: "_ext", InMemoryExtensionSharedLibrary: []byte{0x7f, 'E', 'L', 'F'},
	}))
	imp := New(idx, "", nil)
	_, err := imp.LoadExtension("_ext")
	require.Error(t, err)
}

type recordingLoader struct {
	libs []string
	ext  []string
}

func (l *recordingLoader) LoadSharedLibrary(name string, _ resolve.Payload) error {
	l.libs = append(l.libs, name)
	return nil
}

func (l *recordingLoader) LoadExtension(name string, _ resolve.Payload) (any, error) {
	l.ext = append(l.ext, name)
	return "handle:" + name, nil
}

func TestLoadExtensionLoadsDependenciesFirst(t *testing.T) {
	idx := resindex.New()
	require.NoError(t, idx.AddResources([]resource.Record{
		{
			Flavor: resource.FlavorSharedLibrary, Name: "libfoo",
			InMemorySharedLibrary: []byte{0x7f, 'E', 'L', 'F'},
		},
		{
			Flavor: resource.FlavorExtension, Name: "_ext",
			InMemoryExtensionSharedLibrary: []byte{0x7f, 'E', 'L', 'F'},
			SharedLibraryDependencyNames:   []string{"libfoo", "libc.so.6"},
		},
	}))
	loader := &recordingLoader{}
	imp := New(idx, "", loader)

	handle, err := imp.LoadExtension("_ext")
	require.NoError(t, err)
	assert.Equal(t, "handle:_ext", handle)
	assert.Equal(t, []string{"libfoo"}, loader.libs)
	assert.Equal(t, []string{"_ext"}, loader.ext)
}
