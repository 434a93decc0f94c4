// Package codec implements the packed-resources wire format: an index-first
// binary layout that lets Parse read every resource's metadata without
// touching payload bytes, then slice payloads directly out of the input
// buffer with zero heap allocation.
package codec

// Magic is the fixed 8-byte ASCII header identifying a packed-resources blob.
const Magic = "pyembed1"

// Version identifies the wire-format revision.
type Version struct {
	Major uint8
	Minor uint8
}

// CurrentVersion is the version this codec emits.
var CurrentVersion = Version{Major: 1, Minor: 0}

// Flag bits packed into the per-resource flag byte.
const (
	flagIsPackage          = 1 << 0
	flagIsNamespacePackage = 1 << 1
	flagProvidedByHost     = 1 << 2
	flagKnownBits          = flagIsPackage | flagIsNamespacePackage | flagProvidedByHost
)

// Field-type codes, partitioned into ranges so an unrecognized code can
// still be decoded generically (the range tells the parser how many
// length integers follow, even when it doesn't know what the field means).
//
//	0x01-0x3F  "blob"    — one u64 byte length
//	0x40-0x7F  "path"    — one u16 path length
//	0x80-0xFE  "map"     — one u64 byte length + one u64 entry count
//	0xFF       sentinel  — end of field list
const (
	fieldSource           = 0x01
	fieldBytecode         = 0x02
	fieldBytecodeOpt1     = 0x03
	fieldBytecodeOpt2     = 0x04
	fieldExtSharedLibrary = 0x05
	fieldSharedLibrary    = 0x06

	fieldRelPathSource           = 0x40
	fieldRelPathBytecode         = 0x41
	fieldRelPathBytecodeOpt1     = 0x42
	fieldRelPathBytecodeOpt2     = 0x43
	fieldRelPathExtSharedLibrary = 0x44
	fieldRelPathSharedLibrary    = 0x45

	fieldSharedLibraryDeps           = 0x80
	fieldPackageResources             = 0x81
	fieldDistributionResources        = 0x82
	fieldRelPathPackageResources      = 0x83
	fieldRelPathDistributionResources = 0x84

	fieldEnd = 0xFF
)

type fieldKind uint8

const (
	kindUnknown fieldKind = iota
	kindBlob
	kindPath
	kindMap
)

func kindOf(code byte) fieldKind {
	switch {
	case code == fieldEnd:
		return kindUnknown
	case code >= 0x01 && code <= 0x3F:
		return kindBlob
	case code >= 0x40 && code <= 0x7F:
		return kindPath
	case code >= 0x80 && code <= 0xFE:
		return kindMap
	default:
		return kindUnknown
	}
}

// canonicalFieldOrder is the order Emit writes field descriptors within a
// record, and the order Parse groups payload sections in: names first
// (from the fixed header, not listed here), then each of these in turn,
// each spanning every record that carries it before moving to the next.
var canonicalFieldOrder = []byte{
	fieldSource,
	fieldBytecode,
	fieldBytecodeOpt1,
	fieldBytecodeOpt2,
	fieldExtSharedLibrary,
	fieldSharedLibrary,
	fieldSharedLibraryDeps,
	fieldPackageResources,
	fieldDistributionResources,
	fieldRelPathSource,
	fieldRelPathBytecode,
	fieldRelPathBytecodeOpt1,
	fieldRelPathBytecodeOpt2,
	fieldRelPathExtSharedLibrary,
	fieldRelPathSharedLibrary,
	fieldRelPathPackageResources,
	fieldRelPathDistributionResources,
}
