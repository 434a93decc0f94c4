package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeStripsBOM(t *testing.T) {
	src := append([]byte{0xEF, 0xBB, 0xBF}, []byte("x = 1\n")...)
	got := Normalize(src)
	assert.Equal(t, []byte("x = 1\n"), got)
}

func TestNormalizeAppliesNFC(t *testing.T) {
	// "cafe" followed by combining acute accent U+0301 (NFD form) must
	// normalize to the single precomposed U+00E9 codepoint (NFC form).
	nfd := append([]byte("cafe"), []byte{0xCC, 0x81}...) // U+0301 combining acute, UTF-8
	nfc := append([]byte("caf"), []byte{0xC3, 0xA9}...)  // U+00E9, UTF-8
	assert.Equal(t, nfc, Normalize(nfd))
}

func TestDecodeSourceRejectsInvalidUTF8(t *testing.T) {
	_, err := DecodeSource([]byte{0xff, 0xfe, 0x00})
	require.Error(t, err)
}

func TestDecodeSourceRoundTripsPlainASCII(t *testing.T) {
	s, err := DecodeSource([]byte("import os\n"))
	require.NoError(t, err)
	assert.Equal(t, "import os\n", s)
}
