package errcode

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodePrefixesMatchPhase(t *testing.T) {
	codecCodes := []string{CDC001, CDC002, CDC003, CDC004, CDC005, CDC006, CDC007, CDC008, CDC009, CDC010}
	for _, code := range codecCodes {
		assert.True(t, strings.HasPrefix(code, "CDC"), "codec code %s should start with CDC", code)
	}

	assert.True(t, strings.HasPrefix(IDX001, "IDX"))
	assert.True(t, strings.HasPrefix(DEC001, "DEC"))
	assert.True(t, strings.HasPrefix(EXT001, "EXT"))
	assert.True(t, strings.HasPrefix(RES404, "RES"))
	assert.True(t, strings.HasPrefix(DST001, "DST"))
	assert.True(t, strings.HasPrefix(DST002, "DST"))
	assert.True(t, strings.HasPrefix(COL001, "COL"))
}

func TestReportRoundTripsThroughErrorChain(t *testing.T) {
	err := New("codec", CDC005, "duplicate resource name", map[string]any{"name": "foo.bar"})

	wrapped := errWrap(err)
	rep, ok := AsReport(wrapped)
	assert.True(t, ok)
	assert.Equal(t, CDC005, rep.Code)
	assert.Equal(t, "codec", rep.Phase)
	assert.Equal(t, "foo.bar", rep.Data["name"])

	assert.Contains(t, err.Error(), CDC005)
}

func TestReportToJSON(t *testing.T) {
	rep := &Report{Schema: "pyembed.error/v1", Code: RES404, Phase: "importer", Message: "not found"}
	js, err := rep.ToJSON(true)
	assert.NoError(t, err)
	assert.Contains(t, js, "\"code\":\"RES404\"")
}

func errWrap(err error) error {
	return &wrapper{err: err}
}

type wrapper struct{ err error }

func (w *wrapper) Error() string { return w.err.Error() }
func (w *wrapper) Unwrap() error { return w.err }
