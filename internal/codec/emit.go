package codec

import (
	"bytes"
	"encoding/binary"
	"sort"
	"strings"

	"github.com/indygreg/pyembed-go/internal/errcode"
	"github.com/indygreg/pyembed-go/internal/resource"
)

// Emit serializes records into a packed-resources blob. Records are sorted
// by name before writing, so Emit is deterministic regardless of input
// order: two calls with the same record set (by value) always produce
// byte-identical output (SPEC_FULL.md §8 property 2).
func Emit(records []resource.Record, version Version) ([]byte, error) {
	sorted := make([]resource.Record, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	for i := range sorted {
		if strings.IndexByte(sorted[i].Name, 0) >= 0 {
			return nil, newFormatErrorf(errcode.CDC009, "name", "resource name %q contains a NUL byte", sorted[i].Name)
		}
		if i > 0 && sorted[i].Name == sorted[i-1].Name {
			return nil, newFormatErrorf(errcode.CDC005, "name", "duplicate resource name %q", sorted[i].Name)
		}
		if err := checkUniqueKVs(resource.Keys(sorted[i].InMemoryPackageResources)); err != nil {
			return nil, newFormatErrorf(errcode.CDC010, "in_memory_package_resources", "%s: %v", sorted[i].Name, err)
		}
		if err := checkUniqueKVs(resource.Keys(sorted[i].InMemoryDistributionResources)); err != nil {
			return nil, newFormatErrorf(errcode.CDC010, "in_memory_distribution_resources", "%s: %v", sorted[i].Name, err)
		}
		if err := checkUniqueKVs(resource.PathKeys(sorted[i].RelativePathPackageResources)); err != nil {
			return nil, newFormatErrorf(errcode.CDC010, "relative_path_package_resources", "%s: %v", sorted[i].Name, err)
		}
		if err := checkUniqueKVs(resource.PathKeys(sorted[i].RelativePathDistributionResources)); err != nil {
			return nil, newFormatErrorf(errcode.CDC010, "relative_path_distribution_resources", "%s: %v", sorted[i].Name, err)
		}
	}

	var header bytes.Buffer
	var payload bytes.Buffer

	for i := range sorted {
		writeRecordHeader(&header, &sorted[i])
	}

	for i := range sorted {
		payload.WriteString(sorted[i].Name)
	}

	for _, code := range canonicalFieldOrder {
		for i := range sorted {
			writeFieldPayload(&payload, code, &sorted[i])
		}
	}

	var out bytes.Buffer
	out.WriteString(Magic)
	out.WriteByte(version.Major)
	out.WriteByte(version.Minor)
	writeU32(&out, uint32(len(sorted)))

	bodyLen := header.Len() + payload.Len()
	// totalLen covers everything after the length field itself: the
	// per-record headers plus every payload section.
	writeU32(&out, uint32(bodyLen))
	out.Write(header.Bytes())
	out.Write(payload.Bytes())

	return out.Bytes(), nil
}

func checkUniqueKVs(keys []string) error {
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if seen[k] {
			return newFormatErrorf(errcode.CDC010, "", "duplicate key %q", k)
		}
		seen[k] = true
	}
	return nil
}

func writeRecordHeader(w *bytes.Buffer, r *resource.Record) {
	w.WriteByte(byte(r.Flavor))

	var flags byte
	if r.IsPackage {
		flags |= flagIsPackage
	}
	if r.IsNamespacePackage {
		flags |= flagIsNamespacePackage
	}
	if r.ProvidedByHost {
		flags |= flagProvidedByHost
	}
	w.WriteByte(flags)

	writeU16(w, uint16(len(r.Name)))

	for _, code := range canonicalFieldOrder {
		writeDescriptor(w, code, r)
	}
	w.WriteByte(fieldEnd)
}

func writeDescriptor(w *bytes.Buffer, code byte, r *resource.Record) {
	switch code {
	case fieldSource:
		writeBlobDescriptor(w, code, r.Source)
	case fieldBytecode:
		writeBlobDescriptor(w, code, r.Bytecode)
	case fieldBytecodeOpt1:
		writeBlobDescriptor(w, code, r.BytecodeOpt1)
	case fieldBytecodeOpt2:
		writeBlobDescriptor(w, code, r.BytecodeOpt2)
	case fieldExtSharedLibrary:
		writeBlobDescriptor(w, code, r.InMemoryExtensionSharedLibrary)
	case fieldSharedLibrary:
		writeBlobDescriptor(w, code, r.InMemorySharedLibrary)
	case fieldRelPathSource:
		writePathDescriptor(w, code, r.RelativePathSource, r.RelativePathSource != "")
	case fieldRelPathBytecode:
		writePathDescriptor(w, code, r.RelativePathBytecode, r.RelativePathBytecode != "")
	case fieldRelPathBytecodeOpt1:
		writePathDescriptor(w, code, r.RelativePathBytecodeOpt1, r.RelativePathBytecodeOpt1 != "")
	case fieldRelPathBytecodeOpt2:
		writePathDescriptor(w, code, r.RelativePathBytecodeOpt2, r.RelativePathBytecodeOpt2 != "")
	case fieldRelPathExtSharedLibrary:
		writePathDescriptor(w, code, r.RelativePathExtensionSharedLibrary, r.RelativePathExtensionSharedLibrary != "")
	case fieldRelPathSharedLibrary:
		writePathDescriptor(w, code, r.RelativePathSharedLibrary, r.RelativePathSharedLibrary != "")
	case fieldSharedLibraryDeps:
		if r.SharedLibraryDependencyNames != nil {
			writeMapDescriptor(w, code, nameListEncodedLength(r.SharedLibraryDependencyNames), uint64(len(r.SharedLibraryDependencyNames)))
		}
	case fieldPackageResources:
		if r.InMemoryPackageResources != nil {
			writeMapDescriptor(w, code, kvMapEncodedLength(r.InMemoryPackageResources), uint64(len(r.InMemoryPackageResources)))
		}
	case fieldDistributionResources:
		if r.InMemoryDistributionResources != nil {
			writeMapDescriptor(w, code, kvMapEncodedLength(r.InMemoryDistributionResources), uint64(len(r.InMemoryDistributionResources)))
		}
	case fieldRelPathPackageResources:
		if r.RelativePathPackageResources != nil {
			writeMapDescriptor(w, code, pathMapEncodedLength(r.RelativePathPackageResources), uint64(len(r.RelativePathPackageResources)))
		}
	case fieldRelPathDistributionResources:
		if r.RelativePathDistributionResources != nil {
			writeMapDescriptor(w, code, pathMapEncodedLength(r.RelativePathDistributionResources), uint64(len(r.RelativePathDistributionResources)))
		}
	}
}

func writeBlobDescriptor(w *bytes.Buffer, code byte, b []byte) {
	if b == nil {
		return
	}
	w.WriteByte(code)
	writeU64(w, uint64(len(b)))
}

func writePathDescriptor(w *bytes.Buffer, code byte, s string, present bool) {
	if !present {
		return
	}
	w.WriteByte(code)
	writeU16(w, uint16(len(s)))
}

func writeMapDescriptor(w *bytes.Buffer, code byte, length uint64, count uint64) {
	w.WriteByte(code)
	writeU64(w, length)
	writeU64(w, count)
}

func writeFieldPayload(w *bytes.Buffer, code byte, r *resource.Record) {
	switch code {
	case fieldSource:
		writeBlobPayload(w, r.Source)
	case fieldBytecode:
		writeBlobPayload(w, r.Bytecode)
	case fieldBytecodeOpt1:
		writeBlobPayload(w, r.BytecodeOpt1)
	case fieldBytecodeOpt2:
		writeBlobPayload(w, r.BytecodeOpt2)
	case fieldExtSharedLibrary:
		writeBlobPayload(w, r.InMemoryExtensionSharedLibrary)
	case fieldSharedLibrary:
		writeBlobPayload(w, r.InMemorySharedLibrary)
	case fieldRelPathSource:
		w.WriteString(r.RelativePathSource)
	case fieldRelPathBytecode:
		w.WriteString(r.RelativePathBytecode)
	case fieldRelPathBytecodeOpt1:
		w.WriteString(r.RelativePathBytecodeOpt1)
	case fieldRelPathBytecodeOpt2:
		w.WriteString(r.RelativePathBytecodeOpt2)
	case fieldRelPathExtSharedLibrary:
		w.WriteString(r.RelativePathExtensionSharedLibrary)
	case fieldRelPathSharedLibrary:
		w.WriteString(r.RelativePathSharedLibrary)
	case fieldSharedLibraryDeps:
		if r.SharedLibraryDependencyNames != nil {
			writeNameList(w, r.SharedLibraryDependencyNames)
		}
	case fieldPackageResources:
		if r.InMemoryPackageResources != nil {
			writeKVMap(w, r.InMemoryPackageResources)
		}
	case fieldDistributionResources:
		if r.InMemoryDistributionResources != nil {
			writeKVMap(w, r.InMemoryDistributionResources)
		}
	case fieldRelPathPackageResources:
		if r.RelativePathPackageResources != nil {
			writePathMap(w, r.RelativePathPackageResources)
		}
	case fieldRelPathDistributionResources:
		if r.RelativePathDistributionResources != nil {
			writePathMap(w, r.RelativePathDistributionResources)
		}
	}
}

func writeBlobPayload(w *bytes.Buffer, b []byte) {
	if b == nil {
		return
	}
	w.Write(b)
}

func nameListEncodedLength(names []string) uint64 {
	n := uint64(8)
	for _, s := range names {
		n += 2 + uint64(len(s))
	}
	return n
}

func writeNameList(w *bytes.Buffer, names []string) {
	writeU64(w, uint64(len(names)))
	for _, s := range names {
		writeU16(w, uint16(len(s)))
		w.WriteString(s)
	}
}

func kvMapEncodedLength(kvs []resource.KV) uint64 {
	n := uint64(8)
	for _, kv := range kvs {
		n += 2 + uint64(len(kv.Key)) + 8 + uint64(len(kv.Value))
	}
	return n
}

func writeKVMap(w *bytes.Buffer, kvs []resource.KV) {
	writeU64(w, uint64(len(kvs)))
	for _, kv := range kvs {
		writeU16(w, uint16(len(kv.Key)))
		w.WriteString(kv.Key)
		writeU64(w, uint64(len(kv.Value)))
		w.Write(kv.Value)
	}
}

func pathMapEncodedLength(kvs []resource.PathKV) uint64 {
	n := uint64(8)
	for _, kv := range kvs {
		n += 2 + uint64(len(kv.Key)) + 8 + uint64(len(kv.Path))
	}
	return n
}

func writePathMap(w *bytes.Buffer, kvs []resource.PathKV) {
	writeU64(w, uint64(len(kvs)))
	for _, kv := range kvs {
		writeU16(w, uint16(len(kv.Key)))
		w.WriteString(kv.Key)
		writeU64(w, uint64(len(kv.Path)))
		w.WriteString(kv.Path)
	}
}

func writeU16(w *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.Write(b[:])
}

func writeU32(w *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.Write(b[:])
}

func writeU64(w *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.Write(b[:])
}
