package cheribuild

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// Config holds the build configuration assembled from /etc/cheribuild.conf,
// CHERIBUILD_* environment overrides and command line flags, in that order of
// precedence (later wins).
type Config struct {
	Values map[string]string

	// Paths. Everything lives under OutputRoot except the checked-out sources.
	SourceRoot string
	OutputRoot string
	BuildRoot  string
	SdkDir     string

	// Cross-compilation settings.
	CrossTarget         CrossTarget
	CheriBits           CheriBits
	Linker              string // lld or bfd
	DebugInfo           bool
	NoUseMxgot          bool
	NewCapRelocs        bool
	WithLibstatcounters bool
	OptimizationFlags   []string

	// Run loop behaviour.
	IncludeDependencies bool
	SkipBuildworld      bool
	MakeJobs            int
	Upload              bool
}

// SdkBinDir is where the cross toolchain binaries end up.
func (c *Config) SdkBinDir() string { return filepath.Join(c.SdkDir, "bin") }

// SdkSysrootDir is the sysroot presented to the cross compiler.
func (c *Config) SdkSysrootDir() string { return filepath.Join(c.SdkDir, "sysroot") }

// RootfsDir is the staging tree the target OS installs into.
func (c *Config) RootfsDir() string { return filepath.Join(c.OutputRoot, "rootfs") }

// CheriBitsStr returns the capability width as used in directory suffixes.
func (c *Config) CheriBitsStr() string {
	if c.CheriBits == CheriBits256 {
		return "256"
	}
	return "128"
}

// loadConfig reads the key=value config file and merges environment overrides.
// A missing config file is not an error; defaults apply.
func loadConfig(path string) (*Config, error) {
	cfg := &Config{Values: make(map[string]string)}

	file, err := os.Open(path)
	if err == nil {
		defer file.Close()
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			parts := strings.SplitN(line, "=", 2)
			if len(parts) != 2 {
				continue
			}
			key := strings.TrimSpace(parts[0])
			val := strings.TrimSpace(parts[1])
			val = strings.Trim(val, `"'`)
			cfg.Values[key] = val
		}
		if err := scanner.Err(); err != nil {
			return cfg, err
		}
	}

	mergeEnvOverrides(cfg)
	return cfg, nil
}

// Merge CHERIBUILD_* env overrides
func mergeEnvOverrides(cfg *Config) {
	for _, env := range os.Environ() {
		if strings.HasPrefix(env, "CHERIBUILD_") {
			parts := strings.SplitN(env, "=", 2)
			if len(parts) == 2 {
				cfg.Values[parts[0]] = parts[1]
			}
		}
	}
}

// initConfig applies defaults and resolves the derived paths. Flag values have
// already been written into cfg by the CLI layer at this point.
func initConfig(cfg *Config) {
	home, _ := os.UserHomeDir()

	cfg.SourceRoot = cfg.Values["CHERIBUILD_SOURCE_ROOT"]
	if cfg.SourceRoot == "" {
		cfg.SourceRoot = filepath.Join(home, "cheri")
	}
	cfg.OutputRoot = cfg.Values["CHERIBUILD_OUTPUT_ROOT"]
	if cfg.OutputRoot == "" {
		cfg.OutputRoot = filepath.Join(cfg.SourceRoot, "output")
	}
	cfg.BuildRoot = cfg.Values["CHERIBUILD_BUILD_ROOT"]
	if cfg.BuildRoot == "" {
		cfg.BuildRoot = filepath.Join(cfg.SourceRoot, "build")
	}

	// The SDK directory carries the capability width suffix so that 128 and
	// 256 bit SDKs can coexist.
	cfg.SdkDir = cfg.Values["CHERIBUILD_SDK_DIR"]
	if cfg.SdkDir == "" {
		cfg.SdkDir = filepath.Join(cfg.OutputRoot, "sdk"+cfg.CheriBitsStr())
	}

	if cfg.Values["CHERIBUILD_DEBUG"] == "1" {
		Debug = true
	}

	if cfg.Linker == "" {
		cfg.Linker = "lld"
	}
	if len(cfg.OptimizationFlags) == 0 {
		cfg.OptimizationFlags = []string{"-O2"}
	}
	if cfg.MakeJobs <= 0 {
		cfg.MakeJobs = defaultMakeJobs()
	}
}
