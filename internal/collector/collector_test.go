package collector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/indygreg/pyembed-go/internal/codec"
)

func TestSourceModuleThenPackageResource(t *testing.T) {
	c := New()
	c.SourceModule("pkg", []byte("# pkg\n"), true)
	require.NoError(t, c.PackageResource("pkg", "data.txt", []byte("hello")))

	records := c.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "pkg", records[0].Name)
	assert.Len(t, records[0].InMemoryPackageResources, 1)
}

func TestPackageResourceBeforeModuleErrors(t *testing.T) {
	c := New()
	err := c.PackageResource("missing", "data.txt", []byte("x"))
	require.Error(t, err)
}

func TestLastWinsOnDuplicateName(t *testing.T) {
	c := New()
	c.SourceModule("mod", []byte("v1"), false)
	c.SourceModule("mod", []byte("v2"), false)

	records := c.Records()
	require.Len(t, records, 1)
	assert.Equal(t, []byte("v2"), records[0].Source)
}

func TestDistributionResourceCreatesRecordOnFirstUse(t *testing.T) {
	c := New()
	c.DistributionResource("pkg-1.0.dist-info", "METADATA", []byte("Name: pkg\nVersion: 1.0\n"))

	records := c.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "pkg-1.0.dist-info", records[0].Name)
}

func TestHostExtensionModuleHasNoInMemoryLibrary(t *testing.T) {
	c := New()
	c.HostExtensionModule("_socket")
	records := c.Records()
	require.Len(t, records, 1)
	assert.True(t, records[0].ProvidedByHost)
	assert.Nil(t, records[0].InMemoryExtensionSharedLibrary)
}

func TestRecordsSerializeThroughCodec(t *testing.T) {
	c := New()
	c.SourceModule("a", []byte("x = 1\n"), false)
	c.ExtensionModule("a._native", []byte{0x7f, 'E', 'L', 'F'}, []string{"libc.so.6"})

	blob, err := codec.Emit(c.Records(), codec.CurrentVersion)
	require.NoError(t, err)

	result, err := codec.Parse(blob, codec.CurrentVersion.Major)
	require.NoError(t, err)
	assert.Equal(t, 2, len(result.Records))
}

func TestInstallFileRegistersSideListEntry(t *testing.T) {
	c := New()
	c.InstallFile("pkg.big", "pkg/big.py", false, []byte("x = 1\n"))

	records := c.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "pkg/big.py", records[0].RelativePathSource)

	files := c.InstallFiles()
	require.Len(t, files, 1)
	assert.Equal(t, "pkg/big.py", files[0].InstallPath)
	assert.Equal(t, []byte("x = 1\n"), files[0].Content)
	assert.False(t, files[0].Executable)
}

func TestInstallFileWithNilContentSkipsSideList(t *testing.T) {
	c := New()
	c.InstallFile("pkg.already_on_disk", "pkg/already_on_disk.py", false, nil)
	assert.Empty(t, c.InstallFiles())
}

func TestNamesAreSorted(t *testing.T) {
	c := New()
	c.SourceModule("zeta", []byte{}, false)
	c.SourceModule("alpha", []byte{}, false)
	assert.Equal(t, []string{"alpha", "zeta"}, c.Names())
}
