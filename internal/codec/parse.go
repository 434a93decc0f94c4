package codec

import (
	"encoding/binary"
	"unicode/utf8"

	"github.com/indygreg/pyembed-go/internal/errcode"
	"github.com/indygreg/pyembed-go/internal/resource"
)

// ParseResult holds the records parsed from a blob. Every byte slice in
// every Record borrows directly from the data passed to Parse: the caller
// must keep that buffer alive for as long as ParseResult (or anything
// built on top of it) is in use.
type ParseResult struct {
	Records []resource.Record
	ByName  map[string]int
}

type rawDescriptor struct {
	code   byte
	length uint64
	count  uint64 // only populated for kindMap
}

type rawRecord struct {
	flavor      byte
	flags       byte
	nameLen     uint16
	descriptors []rawDescriptor
}

// Parse decodes a packed-resources blob. expectedMajor is the maximum
// major version this caller understands; a blob with a newer major
// version is rejected even if Parse itself could technically read it,
// since minor-version-only forward compatibility is the only kind this
// format promises (SPEC_FULL.md §3.2).
func Parse(data []byte, expectedMajor uint8) (*ParseResult, error) {
	r := &cursor{data: data}

	magic, ok := r.take(len(Magic))
	if !ok {
		return nil, newFormatError(errcode.CDC003, "blob shorter than magic header")
	}
	if string(magic) != Magic {
		return nil, newFormatError(errcode.CDC001, "bad magic bytes")
	}

	major, ok := r.u8()
	if !ok {
		return nil, newFormatError(errcode.CDC003, "truncated version header")
	}
	minor, ok := r.u8()
	if !ok {
		return nil, newFormatError(errcode.CDC003, "truncated version header")
	}
	if major > expectedMajor {
		return nil, newFormatErrorf(errcode.CDC002, "version",
			"blob major version %d exceeds supported major version %d", major, expectedMajor)
	}
	_ = minor // minor versions are forward compatible by construction (unknown fields are skipped)

	count, ok := r.u32()
	if !ok {
		return nil, newFormatError(errcode.CDC003, "truncated resource count")
	}
	totalLen, ok := r.u32()
	if !ok {
		return nil, newFormatError(errcode.CDC003, "truncated blob length")
	}
	if uint64(r.pos)+uint64(totalLen) > uint64(len(data)) {
		return nil, newFormatErrorf(errcode.CDC003, "", "blob declares body length %d but only %d bytes remain", totalLen, len(data)-r.pos)
	}
	// Bound all subsequent reads to the declared blob length so trailing
	// bytes after this blob (e.g. when embedded in a larger file) are
	// never mistaken for payload.
	r.limit = r.pos + int(totalLen)

	raws := make([]rawRecord, count)
	for i := range raws {
		flavor, ok := r.u8()
		if !ok {
			return nil, newFormatError(errcode.CDC003, "truncated resource header")
		}
		flags, ok := r.u8()
		if !ok {
			return nil, newFormatError(errcode.CDC003, "truncated resource header")
		}
		if flags&^flagKnownBits != 0 {
			return nil, newFormatErrorf(errcode.CDC008, "flags", "unknown flag bits set: 0x%02x", flags)
		}
		if _, ok := flavorFromByte(flavor); !ok {
			return nil, newFormatErrorf(errcode.CDC007, "flavor", "unrecognized flavor byte 0x%02x", flavor)
		}
		nameLen, ok := r.u16()
		if !ok {
			return nil, newFormatError(errcode.CDC003, "truncated name length")
		}

		var descriptors []rawDescriptor
		for {
			code, ok := r.u8()
			if !ok {
				return nil, newFormatError(errcode.CDC003, "truncated field descriptor")
			}
			if code == fieldEnd {
				break
			}
			d := rawDescriptor{code: code}
			switch kindOf(code) {
			case kindBlob:
				length, ok := r.u64()
				if !ok {
					return nil, newFormatError(errcode.CDC003, "truncated field length")
				}
				d.length = length
			case kindPath:
				length, ok := r.u16()
				if !ok {
					return nil, newFormatError(errcode.CDC003, "truncated path length")
				}
				d.length = uint64(length)
			case kindMap:
				length, ok := r.u64()
				if !ok {
					return nil, newFormatError(errcode.CDC003, "truncated map length")
				}
				cnt, ok := r.u64()
				if !ok {
					return nil, newFormatError(errcode.CDC003, "truncated map count")
				}
				d.length = length
				d.count = cnt
			default:
				return nil, newFormatErrorf(errcode.CDC003, "field", "field code 0x%02x outside any known range", code)
			}
			descriptors = append(descriptors, d)
		}

		raws[i] = rawRecord{flavor: flavor, flags: flags, nameLen: nameLen, descriptors: descriptors}
	}

	records := make([]resource.Record, count)

	// Names section: one contiguous run, in header order.
	for i := range raws {
		nameBytes, ok := r.take(int(raws[i].nameLen))
		if !ok {
			return nil, newFormatError(errcode.CDC006, "name field overflows blob")
		}
		if !utf8.Valid(nameBytes) {
			return nil, newFormatErrorf(errcode.CDC004, "name", "resource name is not valid UTF-8")
		}
		records[i].Name = string(nameBytes)
		flavor, _ := flavorFromByte(raws[i].flavor)
		records[i].Flavor = flavor
		records[i].IsPackage = raws[i].flags&flagIsPackage != 0
		records[i].IsNamespacePackage = raws[i].flags&flagIsNamespacePackage != 0
		records[i].ProvidedByHost = raws[i].flags&flagProvidedByHost != 0
	}

	// Known-field sections, grouped by field code across all records.
	for _, code := range canonicalFieldOrder {
		for i := range raws {
			desc, found := findDescriptor(raws[i].descriptors, code)
			if !found {
				continue
			}
			payload, ok := r.take(int(desc.length))
			if !ok {
				return nil, newFormatErrorf(errcode.CDC006, fieldName(code), "field overflows blob")
			}
			if err := applyField(&records[i], code, payload, desc.count); err != nil {
				return nil, err
			}
		}
	}

	// Unknown-field tail: any descriptor code Parse didn't recognize is
	// still skipped correctly (we know its length from the descriptor),
	// satisfying minor-version forward compatibility without needing to
	// know where a hypothetical future field lives in the section order.
	for i := range raws {
		for _, d := range raws[i].descriptors {
			if isKnownCode(d.code) {
				continue
			}
			if _, ok := r.take(int(d.length)); !ok {
				return nil, newFormatError(errcode.CDC006, "unknown field overflows blob")
			}
		}
	}

	byName := make(map[string]int, count)
	for i := range records {
		if _, dup := byName[records[i].Name]; dup {
			return nil, newFormatErrorf(errcode.CDC005, "name", "duplicate resource name %q", records[i].Name)
		}
		byName[records[i].Name] = i
	}

	return &ParseResult{Records: records, ByName: byName}, nil
}

func isKnownCode(code byte) bool {
	switch code {
	case fieldSource, fieldBytecode, fieldBytecodeOpt1, fieldBytecodeOpt2,
		fieldExtSharedLibrary, fieldSharedLibrary,
		fieldRelPathSource, fieldRelPathBytecode, fieldRelPathBytecodeOpt1, fieldRelPathBytecodeOpt2,
		fieldRelPathExtSharedLibrary, fieldRelPathSharedLibrary,
		fieldSharedLibraryDeps, fieldPackageResources, fieldDistributionResources,
		fieldRelPathPackageResources, fieldRelPathDistributionResources:
		return true
	default:
		return false
	}
}

func findDescriptor(descs []rawDescriptor, code byte) (rawDescriptor, bool) {
	for _, d := range descs {
		if d.code == code {
			return d, true
		}
	}
	return rawDescriptor{}, false
}

func applyField(rec *resource.Record, code byte, payload []byte, count uint64) error {
	switch code {
	case fieldSource:
		rec.Source = payload
	case fieldBytecode:
		rec.Bytecode = payload
	case fieldBytecodeOpt1:
		rec.BytecodeOpt1 = payload
	case fieldBytecodeOpt2:
		rec.BytecodeOpt2 = payload
	case fieldExtSharedLibrary:
		rec.InMemoryExtensionSharedLibrary = payload
	case fieldSharedLibrary:
		rec.InMemorySharedLibrary = payload
	case fieldRelPathSource:
		rec.RelativePathSource = string(payload)
	case fieldRelPathBytecode:
		rec.RelativePathBytecode = string(payload)
	case fieldRelPathBytecodeOpt1:
		rec.RelativePathBytecodeOpt1 = string(payload)
	case fieldRelPathBytecodeOpt2:
		rec.RelativePathBytecodeOpt2 = string(payload)
	case fieldRelPathExtSharedLibrary:
		rec.RelativePathExtensionSharedLibrary = string(payload)
	case fieldRelPathSharedLibrary:
		rec.RelativePathSharedLibrary = string(payload)
	case fieldSharedLibraryDeps:
		names, err := decodeNameList(payload, count)
		if err != nil {
			return err
		}
		rec.SharedLibraryDependencyNames = names
	case fieldPackageResources:
		kvs, err := decodeKVMap(payload, count)
		if err != nil {
			return err
		}
		rec.InMemoryPackageResources = kvs
	case fieldDistributionResources:
		kvs, err := decodeKVMap(payload, count)
		if err != nil {
			return err
		}
		rec.InMemoryDistributionResources = kvs
	case fieldRelPathPackageResources:
		kvs, err := decodePathMap(payload, count)
		if err != nil {
			return err
		}
		rec.RelativePathPackageResources = kvs
	case fieldRelPathDistributionResources:
		kvs, err := decodePathMap(payload, count)
		if err != nil {
			return err
		}
		rec.RelativePathDistributionResources = kvs
	}
	return nil
}

func decodeNameList(payload []byte, expectedCount uint64) ([]string, error) {
	c := &cursor{data: payload, limit: len(payload)}
	n, ok := c.u64()
	if !ok {
		return nil, newFormatError(errcode.CDC006, "truncated name-list count")
	}
	names := make([]string, 0, n)
	for i := uint64(0); i < n; i++ {
		nameLen, ok := c.u16()
		if !ok {
			return nil, newFormatError(errcode.CDC006, "truncated name-list entry")
		}
		b, ok := c.take(int(nameLen))
		if !ok {
			return nil, newFormatError(errcode.CDC006, "name-list entry overflows field")
		}
		if !utf8.Valid(b) {
			return nil, newFormatErrorf(errcode.CDC004, "shared_library_dependency_names", "entry is not valid UTF-8")
		}
		names = append(names, string(b))
	}
	if n != expectedCount {
		return nil, newFormatError(errcode.CDC006, "name-list count mismatch with descriptor")
	}
	return names, nil
}

func decodeKVMap(payload []byte, expectedCount uint64) ([]resource.KV, error) {
	c := &cursor{data: payload, limit: len(payload)}
	n, ok := c.u64()
	if !ok {
		return nil, newFormatError(errcode.CDC006, "truncated map count")
	}
	kvs := make([]resource.KV, 0, n)
	for i := uint64(0); i < n; i++ {
		keyLen, ok := c.u16()
		if !ok {
			return nil, newFormatError(errcode.CDC006, "truncated map key length")
		}
		key, ok := c.take(int(keyLen))
		if !ok {
			return nil, newFormatError(errcode.CDC006, "map key overflows field")
		}
		if !utf8.Valid(key) {
			return nil, newFormatErrorf(errcode.CDC004, "map key", "key is not valid UTF-8")
		}
		valLen, ok := c.u64()
		if !ok {
			return nil, newFormatError(errcode.CDC006, "truncated map value length")
		}
		val, ok := c.take(int(valLen))
		if !ok {
			return nil, newFormatError(errcode.CDC006, "map value overflows field")
		}
		kvs = append(kvs, resource.KV{Key: string(key), Value: val})
	}
	if n != expectedCount {
		return nil, newFormatError(errcode.CDC006, "map count mismatch with descriptor")
	}
	return kvs, nil
}

func decodePathMap(payload []byte, expectedCount uint64) ([]resource.PathKV, error) {
	c := &cursor{data: payload, limit: len(payload)}
	n, ok := c.u64()
	if !ok {
		return nil, newFormatError(errcode.CDC006, "truncated path-map count")
	}
	kvs := make([]resource.PathKV, 0, n)
	for i := uint64(0); i < n; i++ {
		keyLen, ok := c.u16()
		if !ok {
			return nil, newFormatError(errcode.CDC006, "truncated path-map key length")
		}
		key, ok := c.take(int(keyLen))
		if !ok {
			return nil, newFormatError(errcode.CDC006, "path-map key overflows field")
		}
		pathLen, ok := c.u64()
		if !ok {
			return nil, newFormatError(errcode.CDC006, "truncated path-map value length")
		}
		path, ok := c.take(int(pathLen))
		if !ok {
			return nil, newFormatError(errcode.CDC006, "path-map value overflows field")
		}
		kvs = append(kvs, resource.PathKV{Key: string(key), Path: string(path)})
	}
	if n != expectedCount {
		return nil, newFormatError(errcode.CDC006, "path-map count mismatch with descriptor")
	}
	return kvs, nil
}

func flavorFromByte(b byte) (resource.Flavor, bool) {
	f := resource.Flavor(b)
	switch f {
	case resource.FlavorNone, resource.FlavorModule, resource.FlavorBuiltin,
		resource.FlavorFrozen, resource.FlavorExtension, resource.FlavorSharedLibrary:
		return f, true
	default:
		return 0, false
	}
}

func fieldName(code byte) string {
	switch code {
	case fieldSource:
		return "source"
	case fieldBytecode:
		return "bytecode"
	case fieldBytecodeOpt1:
		return "bytecode_opt1"
	case fieldBytecodeOpt2:
		return "bytecode_opt2"
	case fieldExtSharedLibrary:
		return "in_memory_extension_shared_library"
	case fieldSharedLibrary:
		return "in_memory_shared_library"
	case fieldSharedLibraryDeps:
		return "shared_library_dependency_names"
	case fieldPackageResources:
		return "in_memory_package_resources"
	case fieldDistributionResources:
		return "in_memory_distribution_resources"
	case fieldRelPathSource:
		return "relative_path_source"
	case fieldRelPathBytecode:
		return "relative_path_bytecode"
	case fieldRelPathBytecodeOpt1:
		return "relative_path_bytecode_opt1"
	case fieldRelPathBytecodeOpt2:
		return "relative_path_bytecode_opt2"
	case fieldRelPathExtSharedLibrary:
		return "relative_path_extension_shared_library"
	case fieldRelPathSharedLibrary:
		return "relative_path_shared_library"
	case fieldRelPathPackageResources:
		return "relative_path_package_resources"
	case fieldRelPathDistributionResources:
		return "relative_path_distribution_resources"
	default:
		return "unknown"
	}
}

// cursor is a tiny bounds-checked little-endian reader over a byte slice.
type cursor struct {
	data  []byte
	pos   int
	limit int // exclusive upper bound; 0 means "not yet set" (see Parse)
}

func (c *cursor) take(n int) ([]byte, bool) {
	if n < 0 {
		return nil, false
	}
	end := c.pos + n
	bound := len(c.data)
	if c.limit > 0 && c.limit < bound {
		bound = c.limit
	}
	if end > bound {
		return nil, false
	}
	b := c.data[c.pos:end]
	c.pos = end
	return b, true
}

func (c *cursor) u8() (byte, bool) {
	b, ok := c.take(1)
	if !ok {
		return 0, false
	}
	return b[0], true
}

func (c *cursor) u16() (uint16, bool) {
	b, ok := c.take(2)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint16(b), true
}

func (c *cursor) u32() (uint32, bool) {
	b, ok := c.take(4)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint32(b), true
}

func (c *cursor) u64() (uint64, bool) {
	b, ok := c.take(8)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint64(b), true
}
