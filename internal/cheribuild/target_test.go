package cheribuild

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConfig(t *testing.T) *Config {
	t.Helper()
	cfg := &Config{
		Values:            map[string]string{},
		SourceRoot:        t.TempDir(),
		CrossTarget:       TargetCheri,
		CheriBits:         CheriBits128,
		Linker:            "lld",
		DebugInfo:         true,
		OptimizationFlags: []string{"-O2"},
		MakeJobs:          4,
	}
	cfg.OutputRoot = filepath.Join(cfg.SourceRoot, "output")
	cfg.BuildRoot = filepath.Join(cfg.SourceRoot, "build")
	cfg.SdkDir = filepath.Join(cfg.OutputRoot, "sdk128")
	return cfg
}

func newTestExecutor() *Executor {
	e := NewExecutor(context.Background())
	e.Quiet = true
	return e
}

// fakeProject records pipeline invocations.
type fakeProject struct {
	name       string
	checkCalls int
	runCalls   int
	checkErr   error
	runErr     error
}

func (p *fakeProject) Name() string { return p.name }
func (p *fakeProject) CheckSystemDependencies(e *Executor) error {
	p.checkCalls++
	return p.checkErr
}
func (p *fakeProject) Process(e *Executor) error {
	p.runCalls++
	return p.runErr
}

func fakeFactory(p *fakeProject) projectFactory {
	return func(cfg *Config) (Project, error) { return p, nil }
}

func TestTargetExecuteIsIdempotent(t *testing.T) {
	cfg := newTestConfig(t)
	e := newTestExecutor()
	project := &fakeProject{name: "demo"}
	target := NewTarget("demo", fakeFactory(project))

	require.NoError(t, target.CheckSystemDeps(cfg, e))
	require.NoError(t, target.Execute(cfg, e))
	require.NoError(t, target.Execute(cfg, e))

	assert.Equal(t, 1, project.runCalls, "the build pipeline must run exactly once")
	assert.True(t, target.Completed())

	// a completed target skips the dependency check as well
	require.NoError(t, target.CheckSystemDeps(cfg, e))
	assert.Equal(t, 1, project.checkCalls)
}

func TestTargetFailureDoesNotMarkCompleted(t *testing.T) {
	cfg := newTestConfig(t)
	e := newTestExecutor()
	project := &fakeProject{name: "broken", runErr: errors.New("boom")}
	target := NewTarget("broken", fakeFactory(project))

	require.NoError(t, target.CheckSystemDeps(cfg, e))
	require.Error(t, target.Execute(cfg, e))
	assert.False(t, target.Completed())
}

func TestGroupTargetRunsChildrenInDeclaredOrder(t *testing.T) {
	cfg := newTestConfig(t)
	e := newTestExecutor()
	r := &Registry{targetMap: make(map[string]Node)}

	var order []string
	makeChild := func(name string) *Target {
		p := &fakeProject{name: name}
		target := NewTarget(name, func(cfg *Config) (Project, error) {
			return &orderedProject{fakeProject: p, order: &order}, nil
		})
		r.targetMap[name] = target
		return target
	}
	makeChild("zeta")
	makeChild("alpha")
	makeChild("mid")

	// declared order is the contract, not lexicographic order
	group := NewGroupTarget("group", r, []string{"zeta", "alpha", "mid"})
	r.targetMap["group"] = group

	require.NoError(t, group.CheckSystemDeps(cfg, e))
	require.NoError(t, group.Execute(cfg, e))
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, order)
	assert.True(t, group.Completed())

	// children that already completed are skipped on a second run
	require.NoError(t, group.Execute(cfg, e))
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, order)
}

type orderedProject struct {
	*fakeProject
	order *[]string
}

func (p *orderedProject) Process(e *Executor) error {
	*p.order = append(*p.order, p.name)
	return p.fakeProject.Process(e)
}

func TestRunUnknownTargetTouchesNothing(t *testing.T) {
	cfg := newTestConfig(t)
	e := newTestExecutor()
	project := &fakeProject{name: "real"}
	r := &Registry{targetMap: map[string]Node{
		"real": NewTarget("real", fakeFactory(project)),
	}}

	err := r.Run(cfg, e, []string{"real", "no-such-target"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown target")
	assert.Zero(t, project.checkCalls)
	assert.Zero(t, project.runCalls)
}

func TestRunPhasesAreOrderedAndFailFast(t *testing.T) {
	cfg := newTestConfig(t)
	e := newTestExecutor()

	good := &fakeProject{name: "good"}
	bad := &fakeProject{name: "bad", runErr: errors.New("build broke")}
	after := &fakeProject{name: "after"}
	r := &Registry{targetMap: map[string]Node{
		"good":  NewTarget("good", fakeFactory(good)),
		"bad":   NewTarget("bad", fakeFactory(bad)),
		"after": NewTarget("after", fakeFactory(after)),
	}}

	err := r.Run(cfg, e, []string{"good", "bad", "after"})
	require.Error(t, err)

	// phase A ran for every node before phase B started
	assert.Equal(t, 1, good.checkCalls)
	assert.Equal(t, 1, bad.checkCalls)
	assert.Equal(t, 1, after.checkCalls)
	// phase B aborted at the failing node
	assert.Equal(t, 1, good.runCalls)
	assert.Equal(t, 1, bad.runCalls)
	assert.Zero(t, after.runCalls)
}

func TestRunWithoutIncludeDependenciesKeepsUserOrder(t *testing.T) {
	cfg := newTestConfig(t)
	e := newTestExecutor()

	var order []string
	node := func(name string, deps ...string) *Target {
		p := &fakeProject{name: name}
		return NewTarget(name, func(cfg *Config) (Project, error) {
			return &orderedProject{fakeProject: p, order: &order}, nil
		}, deps...)
	}
	r := &Registry{targetMap: make(map[string]Node)}
	r.targetMap["b"] = node("b")
	r.targetMap["a"] = node("a", "b")

	// dependency inclusion disabled: no reordering, no closure expansion
	require.NoError(t, r.Run(cfg, e, []string{"a", "b"}))
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestRegistryLookupAndNames(t *testing.T) {
	cfg := newTestConfig(t)
	r := NewRegistry(cfg)

	_, err := r.Lookup("llvm")
	require.NoError(t, err)
	_, err = r.Lookup("nonexistent")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown target")

	names := r.Names()
	for _, expected := range []string{"all", "sdk", "sdk-sysroot", "disk-image", "run", "cheribsd", "qemu", "llvm"} {
		assert.Contains(t, names, expected)
	}
}
