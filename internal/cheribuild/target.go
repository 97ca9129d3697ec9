package cheribuild

import (
	"fmt"
	"time"
)

// Target is a named, idempotent unit of orchestrated work: check system
// dependencies, then execute the wrapped project's build pipeline. The
// completed flag only ever goes false -> true.
type Target struct {
	name         string
	dependencies map[string]bool
	factory      projectFactory

	project   Project
	completed bool
}

func NewTarget(name string, factory projectFactory, dependencies ...string) *Target {
	deps := make(map[string]bool, len(dependencies))
	for _, d := range dependencies {
		deps[d] = true
	}
	return &Target{name: name, dependencies: deps, factory: factory}
}

func (t *Target) Name() string { return t.name }

// DependencyNames returns the declared direct dependencies.
func (t *Target) DependencyNames() map[string]bool { return t.dependencies }

// CheckSystemDeps instantiates the wrapped project and verifies required
// external tools exist. No-op once the target has completed.
func (t *Target) CheckSystemDeps(cfg *Config, e *Executor) error {
	if t.completed {
		return nil
	}
	project, err := t.factory(cfg)
	if err != nil {
		return fmt.Errorf("cannot instantiate target %s: %w", t.name, err)
	}
	t.project = project
	return project.CheckSystemDependencies(e)
}

// Execute runs the project's build pipeline exactly once and records the
// elapsed wall-clock time.
func (t *Target) Execute(cfg *Config, e *Executor) error {
	if t.completed {
		return nil
	}
	if t.project == nil {
		// CheckSystemDeps is always called first by the run loop.
		return fmt.Errorf("target %s executed without dependency check", t.name)
	}
	start := time.Now()
	if err := t.project.Process(e); err != nil {
		return err
	}
	statusUpdate(fmt.Sprintf("Built target '%s' in %.2f seconds", t.name, time.Since(start).Seconds()))
	t.completed = true
	return nil
}

// Completed reports whether the target has already executed successfully.
func (t *Target) Completed() bool { return t.completed }

// GroupTarget aggregates child targets. Children run in declared order (the
// declared order is the contract, not dependency order), skipping any that
// already completed.
type GroupTarget struct {
	name      string
	registry  *Registry
	children  []string
	completed bool
}

func NewGroupTarget(name string, registry *Registry, children []string) *GroupTarget {
	if len(children) == 0 {
		fatalError("group target with no children should not exist: target name =", name)
	}
	return &GroupTarget{name: name, registry: registry, children: children}
}

func (g *GroupTarget) Name() string { return g.name }

func (g *GroupTarget) DependencyNames() map[string]bool {
	deps := make(map[string]bool, len(g.children))
	for _, c := range g.children {
		deps[c] = true
	}
	return deps
}

func (g *GroupTarget) CheckSystemDeps(cfg *Config, e *Executor) error {
	if g.completed {
		return nil
	}
	for _, name := range g.children {
		child, err := g.registry.Lookup(name)
		if err != nil {
			return err
		}
		if child.Completed() {
			continue
		}
		if err := child.CheckSystemDeps(cfg, e); err != nil {
			return err
		}
	}
	return nil
}

func (g *GroupTarget) Execute(cfg *Config, e *Executor) error {
	if g.completed {
		return nil
	}
	start := time.Now()
	for _, name := range g.children {
		child, err := g.registry.Lookup(name)
		if err != nil {
			return err
		}
		if child.Completed() {
			continue
		}
		if err := child.Execute(cfg, e); err != nil {
			return err
		}
	}
	statusUpdate(fmt.Sprintf("Built target '%s' in %.2f seconds", g.name, time.Since(start).Seconds()))
	g.completed = true
	return nil
}

func (g *GroupTarget) Completed() bool { return g.completed }

// Node is what the registry stores: simple targets and group targets.
type Node interface {
	Name() string
	DependencyNames() map[string]bool
	CheckSystemDeps(cfg *Config, e *Executor) error
	Execute(cfg *Config, e *Executor) error
	Completed() bool
}
