package cheribuild

import (
	"fmt"
	"path/filepath"
	"strings"
)

// AutotoolsAdapter assembles the environment and argument list for a
// configure-script driven project from a ToolchainConfig. Flags are appended
// to CC/CXX rather than exported through CFLAGS because generated configure
// scripts commonly override that variable.
type AutotoolsAdapter struct {
	Toolchain *ToolchainConfig

	// SupportsLibdir is false for configure scripts (nginx) that do not
	// understand --libdir.
	SupportsLibdir bool

	ConfigureArgs []string
	ConfigureEnv  map[string]string
}

func NewAutotoolsAdapter(tc *ToolchainConfig) *AutotoolsAdapter {
	return &AutotoolsAdapter{
		Toolchain:      tc,
		SupportsLibdir: true,
		ConfigureEnv:   make(map[string]string),
	}
}

// defaultCompilerFlags is the flag set appended to the compiler invocation
// strings: base flags, optimization, target triple and sysroot lookup.
func (a *AutotoolsAdapter) defaultCompilerFlags() []string {
	tc := a.Toolchain
	result := append([]string(nil), tc.CommonFlags...)
	result = append(result, tc.OptimizationFlags...)
	result = append(result, "-target", tc.TargetTripleWithVersion())
	if !tc.CompilingForHost() {
		result = append(result, "--sysroot="+tc.SdkSysroot, "-B"+tc.SdkBinDir)
	}
	return result
}

// setEnvArg records an environment entry, failing if it was already set.
// A double set indicates a logic error in flag assembly.
func (a *AutotoolsAdapter) setEnvArg(key, value string) error {
	if value == "" {
		return nil
	}
	if existing, ok := a.ConfigureEnv[key]; ok {
		return fmt.Errorf("configure environment variable %s already set to %q", key, existing)
	}
	a.ConfigureEnv[key] = value
	return nil
}

// setProgWithArgs sets a tool environment entry to "path arg1 arg2 ...".
func (a *AutotoolsAdapter) setProgWithArgs(prog, path string, args []string) error {
	fullpath := path
	if len(args) > 0 {
		fullpath += " " + strings.Join(args, " ")
	}
	return a.setEnvArg(prog, fullpath)
}

// Assemble fills ConfigureArgs and ConfigureEnv for the project. The
// executor is only consulted to find ld.lld for the LD override.
func (a *AutotoolsAdapter) Assemble(e *Executor) error {
	tc := a.Toolchain

	if !tc.CompilingForHost() {
		triple, err := hostTriple()
		if err != nil {
			return err
		}
		a.ConfigureArgs = append(a.ConfigureArgs,
			"--host="+tc.TargetTriple,
			"--target="+tc.TargetTriple,
			"--build="+triple)
	}

	// The version suffix is only part of the -target flag, never of the
	// compiler binary name.
	compilerPrefix := tc.TargetTriple + "-"
	if tc.CompilingForHost() {
		compilerPrefix = ""
	} else if tc.CompilingForCheri() && a.SupportsLibdir {
		// capability libraries are expected in <prefix>/libcheri
		a.ConfigureArgs = append(a.ConfigureArgs, "--libdir="+tc.InstallPrefix+"/libcheri")
	}

	flags := a.defaultCompilerFlags()
	cc := filepath.Join(tc.SdkBinDir, compilerPrefix+"clang")
	cxx := filepath.Join(tc.SdkBinDir, compilerPrefix+"clang++")

	// autotools overrides CFLAGS -> fold the flags into CC and CXX
	ccFlags := append(append([]string(nil), flags...), tc.CFlags...)
	cxxFlags := append(append([]string(nil), flags...), tc.CXXFlags...)
	if err := a.setProgWithArgs("CC", cc, ccFlags); err != nil {
		return err
	}
	if err := a.setProgWithArgs("CXX", cxx, cxxFlags); err != nil {
		return err
	}
	ldflags := append(append([]string(nil), tc.LDFlags...), tc.DefaultLDFlags()...)
	if err := a.setEnvArg("LDFLAGS", strings.Join(ldflags, " ")); err != nil {
		return err
	}

	if !tc.CompilingForHost() {
		if err := a.setProgWithArgs("CPP", filepath.Join(tc.SdkBinDir, compilerPrefix+"clang-cpp"), flags); err != nil {
			return err
		}
		if strings.Contains(tc.Linker, "lld") {
			if ld, err := e.LookTool("ld.lld"); err == nil {
				if err := a.setEnvArg("LD", ld); err != nil {
					return err
				}
			}
		}
	}

	// remove all empty items from environment
	for k, v := range a.ConfigureEnv {
		if v == "" {
			delete(a.ConfigureEnv, k)
		}
	}
	return nil
}
