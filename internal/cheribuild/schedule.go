package cheribuild

import (
	"fmt"
	"sort"
)

// TopologicalSort orders the requested nodes plus their full transitive
// closure so that every node comes after all of its dependencies. The result
// is grouped into levels of nodes with no remaining unsatisfied dependencies;
// names within a level are sorted for determinism. A cyclic dependency set is
// reported with the residual node -> dependency mapping.
func (r *Registry) TopologicalSort(requested []Node) ([][]string, error) {
	data := make(map[string]map[string]bool, len(requested))
	for _, node := range requested {
		deps := make(map[string]bool, len(node.DependencyNames()))
		for dep := range node.DependencyNames() {
			deps[dep] = true
		}
		data[node.Name()] = deps
	}

	// pull in everything the requested nodes transitively need
	for _, node := range requested {
		closure, err := r.RecursiveDependencyNames(node)
		if err != nil {
			return nil, err
		}
		for dep := range closure {
			if _, ok := data[dep]; ok {
				continue
			}
			depNode, err := r.Lookup(dep)
			if err != nil {
				return nil, err
			}
			deps := make(map[string]bool, len(depNode.DependencyNames()))
			for d := range depNode.DependencyNames() {
				deps[d] = true
			}
			data[dep] = deps
		}
	}

	var levels [][]string
	for len(data) > 0 {
		var ready []string
		for name, deps := range data {
			if len(deps) == 0 {
				ready = append(ready, name)
			}
		}
		if len(ready) == 0 {
			return nil, fmt.Errorf("cyclic dependency exists amongst %v", residualDeps(data))
		}
		sort.Strings(ready)
		levels = append(levels, ready)
		for _, name := range ready {
			delete(data, name)
		}
		for _, deps := range data {
			for _, name := range ready {
				delete(deps, name)
			}
		}
	}
	return levels, nil
}

// residualDeps renders the leftover dependency sets for the cycle error.
func residualDeps(data map[string]map[string]bool) map[string][]string {
	out := make(map[string][]string, len(data))
	for name, deps := range data {
		var list []string
		for dep := range deps {
			list = append(list, dep)
		}
		sort.Strings(list)
		out[name] = list
	}
	return out
}
