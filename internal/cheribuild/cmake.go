package cheribuild

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// CMakeAdapter turns a ToolchainConfig into a CMake invocation: it renders
// the toolchain descriptor file into the build directory and assembles the
// configure command line. One adapter instance per project.
type CMakeAdapter struct {
	Toolchain *ToolchainConfig
	BuildDir  string
	BuildType string
	ExtraOpts []string

	toolchainFile string
}

func NewCMakeAdapter(tc *ToolchainConfig, buildDir string) *CMakeAdapter {
	name := "CheriBSDToolchain.cmake"
	if tc.CompilingForHost() {
		name = "NativeToolchain.cmake"
	}
	return &CMakeAdapter{
		Toolchain:     tc,
		BuildDir:      buildDir,
		BuildType:     "RelWithDebInfo",
		toolchainFile: filepath.Join(buildDir, name),
	}
}

// ToolchainFilePath is where the generated descriptor is written; the
// configure command references it via CMAKE_TOOLCHAIN_FILE.
func (a *CMakeAdapter) ToolchainFilePath() string { return a.toolchainFile }

// WriteToolchainFile renders and writes the toolchain descriptor. For the
// capability variant it also injects the libcheri suffix logic and, when the
// installed CMake predates custom lib suffix support, creates the fallback
// symlinks inside the sysroot.
func (a *CMakeAdapter) WriteToolchainFile(e *Executor) error {
	tc := a.Toolchain

	template := crossToolchainTemplate
	commonFlags := append([]string(nil), tc.CommonFlags...)
	commonFlags = append(commonFlags, "-B"+tc.SdkBinDir)

	var addLibSuffix, processor, sysroot interface{}
	if tc.CompilingForHost() {
		template = nativeToolchainTemplate
	} else {
		commonFlags = append(commonFlags, "-target", tc.TargetTripleWithVersion())
		sysroot = tc.SdkSysroot
		switch {
		case tc.CompilingForCheri():
			addLibSuffix = cheriLibSuffixSnippet
			processor = "CHERI (MIPS IV compatible)"
			if older, err := cmakeOlderThan(e, 3, 9); err == nil && older {
				if err := ensureCheriLibSymlinks(tc.SdkSysroot); err != nil {
					return err
				}
			}
		case tc.CompilingForMips():
			addLibSuffix = "# no lib suffix for mips libraries"
			processor = "BERI (MIPS IV compatible)"
		}
	}

	compilerDir := tc.SdkBinDir
	configured, err := prepareToolchainFile(template, map[string]interface{}{
		"TOOLCHAIN_SDK_BINDIR":       tc.SdkBinDir,
		"TOOLCHAIN_COMPILER_BINDIR":  compilerDir,
		"TOOLCHAIN_TARGET_TRIPLE":    targetTripleOrNil(tc),
		"TOOLCHAIN_COMMON_FLAGS":     commonFlags,
		"TOOLCHAIN_C_FLAGS":          tc.CFlags,
		"TOOLCHAIN_CXX_FLAGS":        tc.CXXFlags,
		"TOOLCHAIN_ASM_FLAGS":        tc.ASMFlags,
		"TOOLCHAIN_LINKER_FLAGS":     append(append([]string(nil), tc.LDFlags...), tc.DefaultLDFlags()...),
		"TOOLCHAIN_C_COMPILER":       filepath.Join(compilerDir, "clang"),
		"TOOLCHAIN_CXX_COMPILER":     filepath.Join(compilerDir, "clang++"),
		"TOOLCHAIN_SYSROOT":          sysroot,
		"ADD_TOOLCHAIN_LIB_SUFFIX":   addLibSuffix,
		"TOOLCHAIN_SYSTEM_PROCESSOR": processor,
	})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(a.BuildDir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(a.toolchainFile, []byte(configured), 0o644)
}

// ConfigureArgs assembles the cmake command line for the project source dir.
func (a *CMakeAdapter) ConfigureArgs(sourceDir string) []string {
	tc := a.Toolchain
	args := []string{
		sourceDir,
		"-DCMAKE_BUILD_TYPE=" + a.BuildType,
		"-DCMAKE_TOOLCHAIN_FILE=" + a.toolchainFile,
	}
	if tc.CompilingForHost() {
		args = append(args, "-DCMAKE_INSTALL_PREFIX="+tc.InstallDir)
	} else {
		args = append(args, "-DCMAKE_INSTALL_PREFIX="+tc.InstallPrefix)
	}
	args = append(args, a.ExtraOpts...)
	return args
}

func targetTripleOrNil(tc *ToolchainConfig) interface{} {
	if tc.CompilingForHost() {
		return nil
	}
	return tc.TargetTriple
}

// cmakeOlderThan reports whether the cmake found by the executor predates the
// given version. Parse failures are reported rather than guessed at.
func cmakeOlderThan(e *Executor, major, minor int) (bool, error) {
	path, err := e.LookTool("cmake")
	if err != nil {
		return false, err
	}
	var out bytes.Buffer
	cmd := exec.CommandContext(e.Context, path, "--version")
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return false, fmt.Errorf("cmake --version failed: %w", err)
	}
	// first line looks like "cmake version 3.27.1"
	fields := strings.Fields(strings.SplitN(out.String(), "\n", 2)[0])
	if len(fields) < 3 {
		return false, fmt.Errorf("cannot parse cmake version from %q", out.String())
	}
	parts := strings.SplitN(fields[2], ".", 3)
	if len(parts) < 2 {
		return false, fmt.Errorf("cannot parse cmake version %q", fields[2])
	}
	haveMajor, err1 := strconv.Atoi(parts[0])
	haveMinor, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return false, fmt.Errorf("cannot parse cmake version %q", fields[2])
	}
	return haveMajor < major || (haveMajor == major && haveMinor < minor), nil
}
