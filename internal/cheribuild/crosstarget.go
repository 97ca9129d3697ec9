package cheribuild

import (
	"fmt"
	"path/filepath"
)

// CrossTarget selects the architecture variant a project is compiled for.
// It is fixed once per build configuration and drives every downstream flag
// decision.
type CrossTarget string

const (
	TargetNative CrossTarget = "native"
	TargetMips   CrossTarget = "mips"
	TargetCheri  CrossTarget = "cheri"
)

// ParseCrossTarget validates a user-supplied variant name.
func ParseCrossTarget(s string) (CrossTarget, error) {
	switch CrossTarget(s) {
	case TargetNative, TargetMips, TargetCheri:
		return CrossTarget(s), nil
	}
	return "", fmt.Errorf("invalid cross-compile target %q (expected cheri, mips or native)", s)
}

// CheriBits is the width of the hardware capability representation.
type CheriBits int

const (
	CheriBits128 CheriBits = 128
	CheriBits256 CheriBits = 256
)

// InstallDirKind governs where a cross-compiled project installs to.
type InstallDirKind int

const (
	InstallDirNone InstallDirKind = iota
	InstallDirRootfsExtra
	InstallDirSdkSysroot
)

// variantSpec holds the per-variant toolchain constants, one row per
// architecture variant.
type variantSpec struct {
	triple    string
	abi       string
	emulation string
	baseFlags []string
}

var variantSpecs = map[CrossTarget]variantSpec{
	TargetMips: {
		triple:    "mips64-unknown-freebsd",
		abi:       "n64",
		emulation: "elf64btsmip_fbsd",
		baseFlags: []string{"-integrated-as", "-pipe", "-msoft-float", "-G0"},
	},
	TargetCheri: {
		triple:    "cheri-unknown-freebsd",
		abi:       "purecap",
		emulation: "elf64btsmip_cheri_fbsd",
		baseFlags: []string{"-integrated-as", "-pipe", "-msoft-float", "-G0"},
	},
}

// freebsdVersionSuffix is appended to the target triple used for compiler
// invocations so that the matching C++ standard library is selected.
// Anything over 10 defaults to libc++.
const freebsdVersionSuffix = "12"

// ToolchainConfig is the immutable flag set derived once per project instance
// from the architecture variant, the capability width and the user options.
// Exactly one of {InstallPrefix+DestDir} (cross builds) or {InstallDir}
// (native builds) is populated.
type ToolchainConfig struct {
	Target       CrossTarget
	Bits         CheriBits
	TargetTriple string
	ABI          string

	CommonFlags []string
	CFlags      []string
	CXXFlags    []string
	ASMFlags    []string
	LDFlags     []string

	Linker            string
	OptimizationFlags []string
	DebugInfo         bool
	NewCapRelocs      bool
	Libstatcounters   bool

	SdkBinDir  string
	SdkSysroot string

	InstallDir    string // native builds
	InstallPrefix string // cross builds
	DestDir       string // cross builds
}

// NewToolchainConfig derives the flag set for one project. projectName and
// buildDir are needed for install-path resolution; installDirKind picks
// between the rootfs staging tree and the SDK sysroot.
func NewToolchainConfig(cfg *Config, projectName, buildDir string, installDirKind InstallDirKind) (*ToolchainConfig, error) {
	tc := &ToolchainConfig{
		Target:            cfg.CrossTarget,
		Bits:              cfg.CheriBits,
		Linker:            cfg.Linker,
		OptimizationFlags: append([]string(nil), cfg.OptimizationFlags...),
		DebugInfo:         cfg.DebugInfo,
		NewCapRelocs:      cfg.NewCapRelocs,
		Libstatcounters:   cfg.WithLibstatcounters,
		SdkBinDir:         cfg.SdkBinDir(),
		SdkSysroot:        cfg.SdkSysrootDir(),
	}

	if tc.Target == TargetNative {
		triple, err := hostTriple()
		if err != nil {
			return nil, err
		}
		tc.TargetTriple = triple
		switch installDirKind {
		case InstallDirSdkSysroot:
			tc.InstallDir = cfg.SdkDir
		case InstallDirRootfsExtra:
			// Native rebuilds of rootfs projects install into a throwaway
			// prefix inside the build directory.
			tc.InstallDir = filepath.Join(buildDir, "test-install-prefix")
		default:
			return nil, fmt.Errorf("unknown install dir for native build of %s", projectName)
		}
	} else {
		spec, ok := variantSpecs[tc.Target]
		if !ok {
			return nil, fmt.Errorf("no variant spec for target %q", tc.Target)
		}
		tc.TargetTriple = spec.triple
		tc.ABI = spec.abi
		tc.CommonFlags = append(tc.CommonFlags, spec.baseFlags...)
		if tc.Target == TargetCheri {
			tc.CommonFlags = append(tc.CommonFlags, "-mabi=purecap")
			if tc.Bits == CheriBits128 {
				tc.CommonFlags = append(tc.CommonFlags, "-mcpu=cheri128")
			}
		} else {
			tc.CommonFlags = append(tc.CommonFlags, "-mabi="+spec.abi)
		}
		if !cfg.NoUseMxgot {
			tc.CommonFlags = append(tc.CommonFlags, "-mxgot")
		}

		switch installDirKind {
		case InstallDirSdkSysroot:
			tc.InstallPrefix = "/usr/local"
			tc.DestDir = cfg.SdkSysrootDir()
		case InstallDirRootfsExtra:
			installDir := filepath.Join(cfg.RootfsDir(), "extra", projectName)
			rel, err := filepath.Rel(cfg.RootfsDir(), installDir)
			if err != nil {
				return nil, err
			}
			tc.InstallPrefix = "/" + rel
			tc.DestDir = cfg.RootfsDir()
		default:
			return nil, fmt.Errorf("unknown install dir for %s", projectName)
		}
	}
	if tc.DebugInfo {
		tc.CommonFlags = append(tc.CommonFlags, "-g")
	}
	return tc, nil
}

func (tc *ToolchainConfig) CompilingForHost() bool  { return tc.Target == TargetNative }
func (tc *ToolchainConfig) CompilingForCheri() bool { return tc.Target == TargetCheri }
func (tc *ToolchainConfig) CompilingForMips() bool  { return tc.Target == TargetMips }

// TargetTripleWithVersion appends the OS version suffix so the compiler picks
// the right standard library ABI. Native builds use the plain host triple.
func (tc *ToolchainConfig) TargetTripleWithVersion() string {
	if tc.CompilingForHost() {
		return tc.TargetTriple
	}
	return tc.TargetTriple + freebsdVersionSuffix
}

// SizeofVoidPtr reports the pointer size in bytes for the selected variant,
// for consumers that need ABI-size-dependent logic.
func (tc *ToolchainConfig) SizeofVoidPtr() int {
	if tc.Target == TargetMips || tc.Target == TargetNative {
		return 8
	}
	if tc.Bits == CheriBits128 {
		return 16
	}
	return 32
}

// DefaultLDFlags returns the linker flags every cross build needs. Native
// builds get none.
func (tc *ToolchainConfig) DefaultLDFlags() []string {
	if tc.CompilingForHost() {
		return nil
	}
	spec := variantSpecs[tc.Target]
	result := []string{
		"-mabi=" + spec.abi,
		"-Wl,-m" + spec.emulation,
		"-fuse-ld=" + tc.Linker,
		// needed so that LLD allows text relocations
		"-Wl,-z,notext",
		"--sysroot=" + tc.SdkSysroot,
		"-B" + tc.SdkBinDir,
	}
	if tc.CompilingForCheri() && tc.NewCapRelocs {
		result = append(result, "-no-capsizefix", "-Wl,-process-cap-relocs", "-Wl,-verbose")
	}
	if tc.Libstatcounters {
		result = append(result, "-Wl,--whole-archive", "-lstatcounters", "-Wl,--no-whole-archive")
	}
	return result
}
