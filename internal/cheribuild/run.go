package cheribuild

import "strings"

// Run is the orchestration loop. It resolves the requested target names,
// optionally expands them to their full transitive closure in dependency
// order, then runs two phases over the chosen list: first every node's
// system-dependency check, then every node's execute. Any failure aborts the
// remainder of the current phase; completed nodes are never rolled back.
func (r *Registry) Run(cfg *Config, e *Executor, targetNames []string) error {
	explicitlyChosen := make([]Node, 0, len(targetNames))
	for _, name := range targetNames {
		node, err := r.Lookup(name)
		if err != nil {
			return err
		}
		explicitlyChosen = append(explicitlyChosen, node)
	}

	var chosen []Node
	if !cfg.IncludeDependencies {
		// run exactly what was asked for, in the order it was asked
		chosen = explicitlyChosen
	} else {
		levels, err := r.TopologicalSort(explicitlyChosen)
		if err != nil {
			return err
		}
		for _, level := range levels {
			for _, name := range level {
				node, err := r.Lookup(name)
				if err != nil {
					return err
				}
				chosen = append(chosen, node)
			}
		}
	}

	if Debug {
		names := make([]string, len(chosen))
		for i, node := range chosen {
			names[i] = node.Name()
		}
		debugf("build order: %s\n", strings.Join(names, ", "))
	}

	// make sure all system dependencies exist first
	for _, node := range chosen {
		if err := node.CheckSystemDeps(cfg, e); err != nil {
			return err
		}
	}
	for _, node := range chosen {
		if err := node.Execute(cfg, e); err != nil {
			return err
		}
	}
	return nil
}
