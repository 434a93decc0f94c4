package resolve

import (
	"fmt"
	"strings"
)

// CycleError reports a dependency cycle found while computing load order.
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Cycle, " -> "))
}

// TopoOrder returns roots and everything they transitively depend on (via
// deps) in dependency-first order, suitable for loading shared libraries
// before the extension modules that link against them. Names absent from
// deps' domain are treated as leaves with no further dependencies.
func TopoOrder(roots []string, deps func(name string) []string) ([]string, error) {
	visited := make(map[string]bool)
	inPath := make(map[string]bool)
	var sorted []string
	var path []string

	var dfs func(name string) error
	dfs = func(name string) error {
		if visited[name] {
			return nil
		}
		if inPath[name] {
			cycle := append([]string{}, path...)
			cycle = append(cycle, name)
			start := 0
			for i, n := range cycle {
				if n == name {
					start = i
					break
				}
			}
			return &CycleError{Cycle: cycle[start:]}
		}

		inPath[name] = true
		path = append(path, name)

		for _, dep := range deps(name) {
			if err := dfs(dep); err != nil {
				return err
			}
		}

		inPath[name] = false
		path = path[:len(path)-1]
		visited[name] = true
		sorted = append(sorted, name)
		return nil
	}

	for _, root := range roots {
		if err := dfs(root); err != nil {
			return nil, err
		}
	}
	return sorted, nil
}
