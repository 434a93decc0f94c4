// Package textnorm normalizes Python module source text at the boundary
// where it leaves the packed-resources blob and becomes a string a host
// can hand to a parser: strip a UTF-8 BOM, then apply Unicode NFC so
// source written on different platforms/editors compares and hashes
// identically.
package textnorm

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

var bomUTF8 = []byte{0xEF, 0xBB, 0xBF}

// Normalize strips a leading UTF-8 BOM and applies NFC normalization.
// IsNormal is checked first since it's allocation-free for the common
// case of already-normalized source.
func Normalize(src []byte) []byte {
	src = bytes.TrimPrefix(src, bomUTF8)
	if !norm.NFC.IsNormal(src) {
		src = norm.NFC.Bytes(src)
	}
	return src
}

// DecodeSource normalizes raw source bytes and validates the result as
// UTF-8, returning a plain error for invalid input (the importer wraps it
// as errcode.DEC001). Kept separate from Normalize so
// callers that already know their bytes are valid UTF-8 (e.g. compiled
// bytecode payloads, which are opaque) never pay the validation cost.
func DecodeSource(src []byte) (string, error) {
	normalized := Normalize(src)
	if !utf8.Valid(normalized) {
		return "", fmt.Errorf("textnorm: source is not valid UTF-8 after normalization")
	}
	return string(normalized), nil
}
