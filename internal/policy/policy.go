// Package policy loads the YAML packaging policy a collector consults
// when deciding how to place a resource: in-memory vs. filesystem,
// bytecode optimization level, and per-resource overrides by glob.
package policy

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Placement chooses where a resource's bytes end up.
type Placement string

const (
	PlacementInMemory   Placement = "in-memory"
	PlacementFilesystem Placement = "filesystem"
)

// ResourcePolicy overrides the default Placement/BytecodeOptimizeLevel for
// resource names matching Pattern (a filepath.Match-style glob against the
// dotted module name).
type ResourcePolicy struct {
	Pattern                string    `yaml:"pattern"`
	Placement               Placement `yaml:"placement"`
	BytecodeOptimizeLevel  *int      `yaml:"bytecode_optimize_level,omitempty"`
	IncludeSource          *bool     `yaml:"include_source,omitempty"`
}

// Policy is the top-level packaging policy document.
type Policy struct {
	Schema                string            `yaml:"schema"`
	DefaultPlacement      Placement         `yaml:"default_placement"`
	DefaultOptimizeLevel  int               `yaml:"default_bytecode_optimize_level"`
	DefaultIncludeSource  bool              `yaml:"default_include_source"`
	Resources             []ResourcePolicy  `yaml:"resources"`
}

// Load reads and parses a policy document from path.
func Load(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("policy: reading %s: %w", path, err)
	}

	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("policy: parsing %s: %w", path, err)
	}
	if p.DefaultPlacement == "" {
		p.DefaultPlacement = PlacementInMemory
	}
	for _, rp := range p.Resources {
		if rp.Pattern == "" {
			return nil, fmt.Errorf("policy: resource rule missing pattern")
		}
	}
	return &p, nil
}

// Resolved is the effective policy for one resource name, after applying
// the first matching override (rules are checked in document order; the
// first match wins, falling back to the document defaults).
type Resolved struct {
	Placement              Placement
	BytecodeOptimizeLevel  int
	IncludeSource          bool
}

// For resolves the effective policy for a dotted resource name.
func (p *Policy) For(name string) Resolved {
	r := Resolved{
		Placement:             p.DefaultPlacement,
		BytecodeOptimizeLevel: p.DefaultOptimizeLevel,
		IncludeSource:         p.DefaultIncludeSource,
	}
	for _, rp := range p.Resources {
		matched, err := filepath.Match(rp.Pattern, name)
		if err != nil || !matched {
			continue
		}
		if rp.Placement != "" {
			r.Placement = rp.Placement
		}
		if rp.BytecodeOptimizeLevel != nil {
			r.BytecodeOptimizeLevel = *rp.BytecodeOptimizeLevel
		}
		if rp.IncludeSource != nil {
			r.IncludeSource = *rp.IncludeSource
		}
		break
	}
	return r
}
