package cheribuild

import (
	"fmt"
	"runtime"
	"sort"
	"strings"
)

// Registry is the single source of truth for the dependency graph: the fixed
// set of all target and group nodes and their hand-declared dependency names.
// It is built once at startup; there is no dynamic discovery.
type Registry struct {
	targetMap map[string]Node
}

// NewRegistry builds the full target table. The SDK composition differs by
// host OS: on FreeBSD the sysroot is populated from a locally built world,
// everywhere else the base tools have to be cross-built first.
func NewRegistry(cfg *Config) *Registry {
	r := &Registry{targetMap: make(map[string]Node)}

	var sdkDeps []string
	if runtime.GOOS == "freebsd" {
		sdkDeps = []string{"llvm", "cheribsd"}
	} else {
		sdkDeps = []string{"awk", "elftoolchain", "binutils", "llvm"}
	}

	simple := []*Target{
		NewTarget("binutils", func(cfg *Config) (Project, error) {
			return newAutotoolsProject(cfg, "binutils", InstallDirSdkSysroot, false,
				"--target=mips64-unknown-freebsd", "--disable-werror")
		}),
		NewTarget("awk", func(cfg *Config) (Project, error) {
			return newMakeProject(cfg, "awk", InstallDirSdkSysroot, false)
		}),
		NewTarget("elftoolchain", func(cfg *Config) (Project, error) {
			return newMakeProject(cfg, "elftoolchain", InstallDirSdkSysroot, false)
		}),
		NewTarget("cmake", func(cfg *Config) (Project, error) {
			return newAutotoolsProject(cfg, "cmake", InstallDirSdkSysroot, false)
		}),
		NewTarget("llvm", func(cfg *Config) (Project, error) {
			return newCMakeProject(cfg, "llvm", InstallDirSdkSysroot, false,
				"-DLLVM_DEFAULT_TARGET_TRIPLE=cheri-unknown-freebsd",
				"-DLLVM_TARGETS_TO_BUILD=Mips;host")
		}),
		NewTarget("qemu", func(cfg *Config) (Project, error) {
			return newAutotoolsProject(cfg, "qemu", InstallDirSdkSysroot, false,
				"--target-list=cheri-softmmu")
		}),
		NewTarget("cheribsd", newCheriBSDProject, "llvm"),
		NewTarget("cheritrace", func(cfg *Config) (Project, error) {
			return newCMakeProject(cfg, "cheritrace", InstallDirSdkSysroot, false)
		}, "llvm"),
		NewTarget("disk-image", newDiskImageProject, "cheribsd", "qemu"),
		NewTarget("sdk-sysroot", newSysrootArchiveProject, sdkDeps...),
		NewTarget("run", newLaunchQEMUProject, "qemu", "disk-image"),
	}
	for _, t := range simple {
		r.targetMap[t.Name()] = t
	}

	r.targetMap["sdk"] = NewGroupTarget("sdk", r, append(append([]string(nil), sdkDeps...), "sdk-sysroot"))
	r.targetMap["all"] = NewGroupTarget("all", r, []string{"qemu", "sdk", "disk-image", "run"})
	return r
}

// Lookup resolves a node by name.
func (r *Registry) Lookup(name string) (Node, error) {
	node, ok := r.targetMap[name]
	if !ok {
		return nil, fmt.Errorf("unknown target %q, valid choices are %s", name, strings.Join(r.Names(), ", "))
	}
	return node, nil
}

// Names returns all registered node names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.targetMap))
	for name := range r.targetMap {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RecursiveDependencyNames computes the transitive closure of a node's
// dependencies. The traversal keeps a visited set, so it terminates even on a
// graph that would fail scheduling with a cycle error.
func (r *Registry) RecursiveDependencyNames(node Node) (map[string]bool, error) {
	existing := make(map[string]bool)
	if err := r.collectDependencies(node, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

func (r *Registry) collectDependencies(node Node, existing map[string]bool) error {
	for dep := range node.DependencyNames() {
		if existing[dep] {
			continue
		}
		existing[dep] = true
		depNode, err := r.Lookup(dep)
		if err != nil {
			return fmt.Errorf("target %s depends on %s: %w", node.Name(), dep, err)
		}
		if err := r.collectDependencies(depNode, existing); err != nil {
			return err
		}
	}
	return nil
}
