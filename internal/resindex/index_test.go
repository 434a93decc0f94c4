package resindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/indygreg/pyembed-go/internal/codec"
	"github.com/indygreg/pyembed-go/internal/errcode"
	"github.com/indygreg/pyembed-go/internal/resource"
)

type fakeHostTables struct {
	builtin []string
	frozen  []string
}

func (f fakeHostTables) BuiltinModuleNames() []string { return f.builtin }
func (f fakeHostTables) FrozenModuleNames() []string  { return f.frozen }

func TestMergeHostTablesAddsNameOnlyRecords(t *testing.T) {
	idx := New()
	err := idx.MergeHostTables(fakeHostTables{
		builtin: []string{"sys", "_thread"},
		frozen:  []string{"importlib._bootstrap"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, idx.Len())

	sys, ok := idx.Lookup("sys")
	require.True(t, ok)
	assert.Equal(t, resource.FlavorBuiltin, sys.Flavor)
	assert.True(t, sys.ProvidedByHost)

	bootstrap, ok := idx.Lookup("importlib._bootstrap")
	require.True(t, ok)
	assert.Equal(t, resource.FlavorFrozen, bootstrap.Flavor)
}

func TestMergeHostTablesRejectsDuplicateNames(t *testing.T) {
	idx := New()
	err := idx.MergeHostTables(fakeHostTables{builtin: []string{"sys", "sys"}})
	require.Error(t, err)
	rep, ok := errcode.AsReport(err)
	require.True(t, ok)
	assert.Equal(t, errcode.IDX001, rep.Code)
}

func TestMergeHostTablesYieldsToPackedEntry(t *testing.T) {
	idx := New()
	require.NoError(t, idx.AddResource(resource.Record{
		Flavor: resource.FlavorModule, Name: "sys", Source: []byte("packed override"),
	}))
	err := idx.MergeHostTables(fakeHostTables{builtin: []string{"sys", "_thread"}})
	require.NoError(t, err)

	assert.Equal(t, 2, idx.Len())
	sys, ok := idx.Lookup("sys")
	require.True(t, ok)
	assert.Equal(t, resource.FlavorModule, sys.Flavor)
	assert.False(t, sys.ProvidedByHost)
	assert.Equal(t, []byte("packed override"), sys.Source)

	thread, ok := idx.Lookup("_thread")
	require.True(t, ok)
	assert.True(t, thread.ProvidedByHost)
}

func TestAddResourceOverwritesOnDuplicateName(t *testing.T) {
	idx := New()
	require.NoError(t, idx.AddResource(resource.Record{
		Flavor: resource.FlavorModule, Name: "pkg", Source: []byte("v1"),
	}))
	require.NoError(t, idx.AddResource(resource.Record{
		Flavor: resource.FlavorModule, Name: "pkg", Source: []byte("v2"),
	}))

	assert.Equal(t, 1, idx.Len())
	r, ok := idx.Lookup("pkg")
	require.True(t, ok)
	assert.Equal(t, []byte("v2"), r.Source)
}

func TestAddResourceRejectsInvalidRecord(t *testing.T) {
	idx := New()
	err := idx.AddResource(resource.Record{Flavor: resource.FlavorModule, Name: "broken"})
	require.Error(t, err)
	assert.Equal(t, 0, idx.Len())
}

func TestFromParseResultPreservesNames(t *testing.T) {
	records := []resource.Record{
		{Flavor: resource.FlavorModule, Name: "a", Source: []byte{}},
		{Flavor: resource.FlavorModule, Name: "b", Source: []byte{}},
	}
	blob, err := codec.Emit(records, codec.CurrentVersion)
	require.NoError(t, err)

	pr, err := codec.Parse(blob, codec.CurrentVersion.Major)
	require.NoError(t, err)

	idx := FromParseResult(pr)
	assert.Equal(t, 2, idx.Len())
	assert.ElementsMatch(t, []string{"a", "b"}, idx.Contents())
}

func TestLookupMissingReturnsFalse(t *testing.T) {
	idx := New()
	_, ok := idx.Lookup("nope")
	assert.False(t, ok)
}
