// Package distmeta parses Python distribution metadata (the METADATA or
// PKG-INFO file inside a *.dist-info or *.egg-info directory): an RFC
// 822-style header block, optionally followed by a blank line and a long
// description body.
package distmeta

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
)

// Metadata is a parsed METADATA/PKG-INFO document. Headers preserve
// insertion order and allow repeats (Requires-Dist, Classifier, ... all
// appear multiple times in real packages), so storage is order-preserving
// rather than a plain map.
type Metadata struct {
	headers []header
	Body    string // the long description, if the file had one
}

type header struct {
	key   string
	value string
}

// Parse reads an RFC 822-style header block out of data. It does not
// require a Metadata-Version header to be present, since some legacy
// PKG-INFO files omit it.
func Parse(data []byte) (*Metadata, error) {
	m := &Metadata{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var lastKey string
	inBody := false
	var body strings.Builder

	for scanner.Scan() {
		line := scanner.Text()

		if inBody {
			body.WriteString(line)
			body.WriteByte('\n')
			continue
		}

		if line == "" {
			inBody = true
			continue
		}

		if (line[0] == ' ' || line[0] == '\t') && lastKey != "" {
			// Continuation of the previous header's value.
			last := len(m.headers) - 1
			m.headers[last].value += "\n" + strings.TrimLeft(line, " \t")
			continue
		}

		idx := strings.IndexByte(line, ':')
		if idx < 0 {
			return nil, fmt.Errorf("distmeta: malformed header line %q", line)
		}
		key := strings.TrimSpace(line[:idx])
		value := strings.TrimSpace(line[idx+1:])
		m.headers = append(m.headers, header{key: key, value: value})
		lastKey = key
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("distmeta: %w", err)
	}

	m.Body = strings.TrimRight(body.String(), "\n")
	return m, nil
}

// Get returns the first value of key (case-sensitive, as the metadata spec
// defines header names), or false if absent.
func (m *Metadata) Get(key string) (string, bool) {
	for _, h := range m.headers {
		if h.key == key {
			return h.value, true
		}
	}
	return "", false
}

// All returns every value of key in document order, for headers that are
// allowed to repeat (Classifier, Requires-Dist, Provides-Extra, ...).
func (m *Metadata) All(key string) []string {
	var out []string
	for _, h := range m.headers {
		if h.key == key {
			out = append(out, h.value)
		}
	}
	return out
}

// Arbitrary is the escape hatch for header names this package assigns no
// dedicated accessor to: every METADATA field ever defined, current or
// future, is reachable through it without a code change here.
func (m *Metadata) Arbitrary(key string) ([]string, bool) {
	vals := m.All(key)
	return vals, len(vals) > 0
}

// Name returns the Name header, the distribution's project name.
func (m *Metadata) Name() string {
	v, _ := m.Get("Name")
	return v
}

// Version returns the Version header.
func (m *Metadata) Version() string {
	v, _ := m.Get("Version")
	return v
}

// NormalizeProjectName applies the PEP 503 normalization rule: runs of
// -, _, and . collapse to a single - and the result is lowercased. Two
// distribution names compare equal for lookup purposes exactly when their
// normalized forms match.
func NormalizeProjectName(name string) string {
	var b strings.Builder
	lastWasSeparator := false
	for _, r := range strings.ToLower(name) {
		if r == '-' || r == '_' || r == '.' {
			if !lastWasSeparator && b.Len() > 0 {
				b.WriteByte('-')
			}
			lastWasSeparator = true
			continue
		}
		b.WriteRune(r)
		lastWasSeparator = false
	}
	return strings.Trim(b.String(), "-")
}
