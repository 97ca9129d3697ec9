package cheribuild

import (
	"fmt"
	"os"
	"path/filepath"
)

// cheriBSDProject builds the target OS world and kernel with the freshly
// built toolchain. The build is driven by the source tree's own make
// infrastructure; this step only assembles its environment.
type cheriBSDProject struct {
	cfg       *Config
	sourceDir string
	objDir    string
}

func newCheriBSDProject(cfg *Config) (Project, error) {
	if cfg.CrossTarget == TargetNative {
		return nil, fmt.Errorf("cheribsd cannot be built for the native target")
	}
	return &cheriBSDProject{
		cfg:       cfg,
		sourceDir: filepath.Join(cfg.SourceRoot, "cheribsd"),
		objDir:    filepath.Join(cfg.BuildRoot, "cheribsd-obj"),
	}, nil
}

func (p *cheriBSDProject) Name() string { return "cheribsd" }

func (p *cheriBSDProject) CheckSystemDependencies(e *Executor) error {
	if _, err := os.Stat(p.sourceDir); err != nil {
		return fmt.Errorf("cheribsd source tree missing: %s", p.sourceDir)
	}
	for _, tool := range []string{"make", "bmake"} {
		if _, err := e.LookTool(tool); err == nil {
			return nil
		}
	}
	return fmt.Errorf("neither make nor bmake found in PATH, needed for target cheribsd")
}

func (p *cheriBSDProject) buildEnv() map[string]string {
	env := map[string]string{
		"MAKEOBJDIRPREFIX": p.objDir,
		"CHERI_CC":         filepath.Join(p.cfg.SdkBinDir(), "clang"),
	}
	return env
}

func (p *cheriBSDProject) makeArgs() []string {
	args := []string{
		"TARGET=mips",
		"TARGET_ARCH=mips64",
		"-DDB_FROM_SRC",
		"-DNO_ROOT",
	}
	if p.cfg.CrossTarget == TargetCheri {
		args = append(args, "CHERI="+p.cfg.CheriBitsStr())
	}
	return args
}

func (p *cheriBSDProject) Process(e *Executor) error {
	if err := os.MkdirAll(p.objDir, 0o755); err != nil {
		return err
	}
	rootfs := p.cfg.RootfsDir()
	if err := os.MkdirAll(rootfs, 0o755); err != nil {
		return err
	}
	jobs := "-j" + fmt.Sprint(p.cfg.MakeJobs)
	env := p.buildEnv()

	if !p.cfg.SkipBuildworld {
		args := append([]string{jobs}, p.makeArgs()...)
		args = append(args, "buildworld")
		if err := e.RunIn(p.sourceDir, env, "make", args...); err != nil {
			return fmt.Errorf("failed to build world: %w", err)
		}
	}
	kernArgs := append([]string{jobs}, p.makeArgs()...)
	kernArgs = append(kernArgs, "KERNCONF=CHERI_MALTA64", "buildkernel")
	if err := e.RunIn(p.sourceDir, env, "make", kernArgs...); err != nil {
		return fmt.Errorf("failed to build kernel: %w", err)
	}

	for _, phase := range []string{"installworld", "installkernel", "distribution"} {
		args := append(p.makeArgs(), "DESTDIR="+rootfs, "KERNCONF=CHERI_MALTA64", phase)
		if err := e.RunIn(p.sourceDir, env, "make", args...); err != nil {
			return fmt.Errorf("%s failed: %w", phase, err)
		}
	}
	return nil
}

// sysrootArchiveProject populates the SDK sysroot and packages it for other
// machines. On hosts that cannot build the target OS themselves, an existing
// world archive seeds the sysroot instead.
type sysrootArchiveProject struct {
	cfg *Config
}

func newSysrootArchiveProject(cfg *Config) (Project, error) {
	return &sysrootArchiveProject{cfg: cfg}, nil
}

func (p *sysrootArchiveProject) Name() string { return "sdk-sysroot" }

func (p *sysrootArchiveProject) CheckSystemDependencies(e *Executor) error {
	if archive := p.cfg.Values["CHERIBUILD_SYSROOT_ARCHIVE"]; archive != "" {
		if _, err := os.Stat(archive); err != nil {
			return fmt.Errorf("configured sysroot archive not found: %s", archive)
		}
	}
	return nil
}

func (p *sysrootArchiveProject) Process(e *Executor) error {
	sysroot := p.cfg.SdkSysrootDir()
	if err := os.MkdirAll(sysroot, 0o755); err != nil {
		return err
	}

	if archive := p.cfg.Values["CHERIBUILD_SYSROOT_ARCHIVE"]; archive != "" {
		statusUpdate("Seeding sysroot from", archive)
		if err := extractTarArchive(archive, sysroot); err != nil {
			return err
		}
	} else {
		// headers and libraries from the locally built world
		rootfsUsr := filepath.Join(p.cfg.RootfsDir(), "usr")
		if _, err := os.Stat(rootfsUsr); err != nil {
			return fmt.Errorf("no sysroot archive configured and no built world found at %s", rootfsUsr)
		}
		if err := e.RunIn(p.cfg.RootfsDir(), nil, "cp", "-a", "usr", sysroot); err != nil {
			return fmt.Errorf("populating sysroot failed: %w", err)
		}
	}

	out := filepath.Join(p.cfg.OutputRoot, "sdk"+p.cfg.CheriBitsStr()+"-sysroot.tar.zst")
	if err := createTarZst(sysroot, out); err != nil {
		return fmt.Errorf("packaging sysroot failed: %w", err)
	}
	if _, err := writeChecksumFile(out); err != nil {
		return err
	}
	statusUpdate("Sysroot archive written to", out)
	if p.cfg.Upload {
		return uploadArtifacts(e.Context, p.cfg, out, out+".b3sum")
	}
	return nil
}

// launchQEMUProject boots the built disk image in the capability-aware
// emulator. Interactive: the console is attached to the current terminal.
type launchQEMUProject struct {
	cfg *Config
}

func newLaunchQEMUProject(cfg *Config) (Project, error) {
	return &launchQEMUProject{cfg: cfg}, nil
}

func (p *launchQEMUProject) Name() string { return "run" }

func (p *launchQEMUProject) qemuBinary() string {
	return filepath.Join(p.cfg.SdkBinDir(), "qemu-system-cheri")
}

func (p *launchQEMUProject) CheckSystemDependencies(e *Executor) error {
	if _, err := os.Stat(p.qemuBinary()); err != nil {
		return fmt.Errorf("emulator binary missing, build the qemu target first: %s", p.qemuBinary())
	}
	return nil
}

func (p *launchQEMUProject) Process(e *Executor) error {
	image := filepath.Join(p.cfg.OutputRoot, fmt.Sprintf("cheribsd-%s.img", p.cfg.CheriBitsStr()))
	kernel := filepath.Join(p.cfg.RootfsDir(), "boot", "kernel", "kernel")
	statusUpdate("Booting", image, "- use Ctrl-A X to exit the emulator")
	return e.RunIn(p.cfg.OutputRoot, nil, p.qemuBinary(),
		"-M", "malta",
		"-kernel", kernel,
		"-hda", image,
		"-m", "2048",
		"-nographic")
}
