package distmeta

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `Metadata-Version: 2.1
Name: Requests
Version: 2.31.0
Requires-Dist: charset-normalizer (<4,>=2)
Requires-Dist: idna (<4,>=2.5)
Classifier: Programming Language :: Python :: 3
Description-Content-Type: text/markdown

This is the
 long description.
`

func TestParseHeadersAndBody(t *testing.T) {
	m, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, "Requests", m.Name())
	assert.Equal(t, "2.31.0", m.Version())

	requires := m.All("Requires-Dist")
	assert.Equal(t, []string{"charset-normalizer (<4,>=2)", "idna (<4,>=2.5)"}, requires)

	assert.Contains(t, m.Body, "This is the")
	assert.Contains(t, m.Body, "long description.")
}

func TestArbitraryEscapeHatch(t *testing.T) {
	m, err := Parse([]byte(sample))
	require.NoError(t, err)

	vals, ok := m.Arbitrary("Description-Content-Type")
	require.True(t, ok)
	assert.Equal(t, []string{"text/markdown"}, vals)

	_, ok = m.Arbitrary("Nonexistent-Header")
	assert.False(t, ok)
}

func TestContinuationLines(t *testing.T) {
	const withWrap = "Name: foo\nSummary: first line\n second line\n"
	m, err := Parse([]byte(withWrap))
	require.NoError(t, err)
	v, ok := m.Get("Summary")
	require.True(t, ok)
	assert.Equal(t, "first line\nsecond line", v)
}

func TestNormalizeProjectName(t *testing.T) {
	cases := map[string]string{
		"Friendly-Bard":  "friendly-bard",
		"Friendly_Bard":  "friendly-bard",
		"FRIENDLY.BARD":  "friendly-bard",
		"friendly--bard": "friendly-bard",
		"--edge--":       "edge",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeProjectName(in), "input=%q", in)
	}
}

func TestMalformedHeaderLineErrors(t *testing.T) {
	_, err := Parse([]byte("not-a-header-line-without-colon\n"))
	require.Error(t, err)
}
