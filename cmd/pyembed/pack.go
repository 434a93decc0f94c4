package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/indygreg/pyembed-go/internal/codec"
	"github.com/indygreg/pyembed-go/internal/collector"
	"github.com/indygreg/pyembed-go/internal/policy"
)

// runPack walks one or more source directories, turning every .py file
// into a module record under a dotted name derived from its path relative
// to the directory root, then emits a packed-resources blob.
func runPack(args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: pyembed pack <policy.yaml> <out.blob> <dir...>")
	}
	policyPath, outPath, dirs := args[0], args[1], args[2:]

	pol, err := policy.Load(policyPath)
	if err != nil {
		return err
	}

	c := collector.New()
	for _, dir := range dirs {
		if err := collectDir(c, pol, dir); err != nil {
			return err
		}
	}

	blob, err := codec.Emit(c.Records(), codec.CurrentVersion)
	if err != nil {
		return fmt.Errorf("emitting blob: %w", err)
	}
	if err := os.WriteFile(outPath, blob, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", outPath, err)
	}

	installRoot := filepath.Dir(outPath)
	for _, f := range c.InstallFiles() {
		dst := filepath.Join(installRoot, filepath.FromSlash(f.InstallPath))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return fmt.Errorf("creating directory for %s: %w", dst, err)
		}
		mode := os.FileMode(0o644)
		if f.Executable {
			mode = 0o755
		}
		if err := os.WriteFile(dst, f.Content, mode); err != nil {
			return fmt.Errorf("writing %s: %w", dst, err)
		}
	}

	fmt.Printf("%s wrote %d resources to %s (%d bytes, %d filesystem-relative files)\n",
		green("ok"), c.Len(), outPath, len(blob), len(c.InstallFiles()))
	return nil
}

func collectDir(c *collector.Collector, pol *policy.Policy, root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, ".py") {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		name, isPackage := moduleNameFromPath(rel)

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}

		resolved := pol.For(name)
		switch resolved.Placement {
		case policy.PlacementFilesystem:
			c.InstallFile(name, rel, isPackage, data)
		default:
			c.SourceModule(name, data, isPackage)
		}
		return nil
	})
}

// moduleNameFromPath converts a path relative to a collection root (e.g.
// "pkg/sub/__init__.py" or "pkg/mod.py") into a dotted module name and
// whether it represents a package.
func moduleNameFromPath(rel string) (name string, isPackage bool) {
	rel = filepath.ToSlash(rel)
	rel = strings.TrimSuffix(rel, ".py")
	if strings.HasSuffix(rel, "/__init__") {
		rel = strings.TrimSuffix(rel, "/__init__")
		isPackage = true
	} else if rel == "__init__" {
		rel = ""
		isPackage = true
	}
	name = strings.ReplaceAll(rel, "/", ".")
	return name, isPackage
}
