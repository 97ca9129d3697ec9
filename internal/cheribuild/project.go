package cheribuild

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Project is the unit of buildable work wrapped by a target node. Concrete
// projects assemble their command lines through the toolchain adapters; the
// orchestrator only sees this interface.
type Project interface {
	Name() string
	// CheckSystemDependencies verifies required external tools are present
	// before any build starts.
	CheckSystemDependencies(e *Executor) error
	// Process runs the project's build pipeline (configure, build, install).
	Process(e *Executor) error
}

// projectFactory instantiates a project lazily, on first dependency check.
type projectFactory func(cfg *Config) (Project, error)

// baseProject carries what every buildable project needs: source and build
// directories, the derived toolchain and the tools that must exist on the
// system.
type baseProject struct {
	name        string
	cfg         *Config
	sourceDir   string
	buildDir    string
	toolchain   *ToolchainConfig
	systemTools []string
}

func newBaseProject(cfg *Config, name string, installKind InstallDirKind, crossBuild bool) (*baseProject, error) {
	p := &baseProject{
		name:      name,
		cfg:       cfg,
		sourceDir: filepath.Join(cfg.SourceRoot, name),
	}
	// 128 and 256 bit capability builds must not share a build directory.
	suffix := string(cfg.CrossTarget)
	if crossBuild && cfg.CrossTarget == TargetCheri {
		suffix = cfg.CheriBitsStr()
	}
	if !crossBuild {
		suffix = "native"
	}
	p.buildDir = filepath.Join(cfg.BuildRoot, name+"-"+suffix+"-build")

	tcCfg := *cfg
	if !crossBuild {
		tcCfg.CrossTarget = TargetNative
	}
	tc, err := NewToolchainConfig(&tcCfg, name, p.buildDir, installKind)
	if err != nil {
		return nil, err
	}
	p.toolchain = tc
	return p, nil
}

func (p *baseProject) Name() string { return p.name }

func (p *baseProject) CheckSystemDependencies(e *Executor) error {
	for _, tool := range p.systemTools {
		if _, err := e.LookTool(tool); err != nil {
			return fmt.Errorf("required tool %q for target %s not found in PATH: %w", tool, p.name, err)
		}
	}
	if _, err := os.Stat(p.sourceDir); err != nil {
		return fmt.Errorf("source directory for %s missing: %s", p.name, p.sourceDir)
	}
	return nil
}

func (p *baseProject) mkBuildDir() error {
	return os.MkdirAll(p.buildDir, 0o755)
}

// installEnv returns the DESTDIR override for cross installs; native builds
// install straight into their prefix.
func (p *baseProject) installEnv() map[string]string {
	if p.toolchain.CompilingForHost() {
		return nil
	}
	return map[string]string{"DESTDIR": p.toolchain.DestDir}
}

func (p *baseProject) makeJobsArg() string {
	return "-j" + strconv.Itoa(p.cfg.MakeJobs)
}

// autotoolsProject drives a configure-script based build.
type autotoolsProject struct {
	*baseProject
	adapter       *AutotoolsAdapter
	extraConfArgs []string
}

func newAutotoolsProject(cfg *Config, name string, installKind InstallDirKind, crossBuild bool, extraArgs ...string) (*autotoolsProject, error) {
	base, err := newBaseProject(cfg, name, installKind, crossBuild)
	if err != nil {
		return nil, err
	}
	base.systemTools = []string{"make", "sh"}
	return &autotoolsProject{
		baseProject:   base,
		adapter:       NewAutotoolsAdapter(base.toolchain),
		extraConfArgs: extraArgs,
	}, nil
}

func (p *autotoolsProject) Process(e *Executor) error {
	if err := p.mkBuildDir(); err != nil {
		return err
	}
	if err := p.adapter.Assemble(e); err != nil {
		return err
	}
	args := []string{}
	if p.toolchain.CompilingForHost() {
		args = append(args, "--prefix="+p.toolchain.InstallDir)
	} else {
		args = append(args, "--prefix="+p.toolchain.InstallPrefix)
	}
	args = append(args, p.adapter.ConfigureArgs...)
	args = append(args, p.extraConfArgs...)

	configure := filepath.Join(p.sourceDir, "configure")
	if err := e.RunIn(p.buildDir, p.adapter.ConfigureEnv, configure, args...); err != nil {
		return fmt.Errorf("configure failed for %s: %w", p.name, err)
	}
	if err := e.RunIn(p.buildDir, nil, "make", p.makeJobsArg()); err != nil {
		return fmt.Errorf("build failed for %s: %w", p.name, err)
	}
	if err := e.RunIn(p.buildDir, p.installEnv(), "make", "install"); err != nil {
		return fmt.Errorf("install failed for %s: %w", p.name, err)
	}
	return nil
}

// cmakeProject drives a CMake based build via a generated toolchain file.
type cmakeProject struct {
	*baseProject
	adapter *CMakeAdapter
}

func newCMakeProject(cfg *Config, name string, installKind InstallDirKind, crossBuild bool, extraOpts ...string) (*cmakeProject, error) {
	base, err := newBaseProject(cfg, name, installKind, crossBuild)
	if err != nil {
		return nil, err
	}
	base.systemTools = []string{"cmake", "make"}
	adapter := NewCMakeAdapter(base.toolchain, base.buildDir)
	adapter.ExtraOpts = extraOpts
	return &cmakeProject{baseProject: base, adapter: adapter}, nil
}

func (p *cmakeProject) Process(e *Executor) error {
	if err := p.mkBuildDir(); err != nil {
		return err
	}
	if err := p.adapter.WriteToolchainFile(e); err != nil {
		return err
	}
	if err := e.RunIn(p.buildDir, nil, "cmake", p.adapter.ConfigureArgs(p.sourceDir)...); err != nil {
		return fmt.Errorf("cmake configure failed for %s: %w", p.name, err)
	}
	if err := e.RunIn(p.buildDir, nil, "make", p.makeJobsArg()); err != nil {
		return fmt.Errorf("build failed for %s: %w", p.name, err)
	}
	if err := e.RunIn(p.buildDir, p.installEnv(), "make", "install"); err != nil {
		return fmt.Errorf("install failed for %s: %w", p.name, err)
	}
	return nil
}

// makeProject drives a plain BSD-make style build without a configure step.
type makeProject struct {
	*baseProject
	buildArgs   []string
	installArgs []string
	buildEnv    map[string]string
}

func newMakeProject(cfg *Config, name string, installKind InstallDirKind, crossBuild bool) (*makeProject, error) {
	base, err := newBaseProject(cfg, name, installKind, crossBuild)
	if err != nil {
		return nil, err
	}
	base.systemTools = []string{"make"}
	return &makeProject{baseProject: base}, nil
}

func (p *makeProject) Process(e *Executor) error {
	if err := p.mkBuildDir(); err != nil {
		return err
	}
	args := append([]string{p.makeJobsArg()}, p.buildArgs...)
	if err := e.RunIn(p.sourceDir, p.buildEnv, "make", args...); err != nil {
		return fmt.Errorf("build failed for %s: %w", p.name, err)
	}
	installArgs := append([]string{"install"}, p.installArgs...)
	env := p.installEnv()
	for k, v := range p.buildEnv {
		if env == nil {
			env = make(map[string]string)
		}
		env[k] = v
	}
	if err := e.RunIn(p.sourceDir, env, "make", installArgs...); err != nil {
		return fmt.Errorf("install failed for %s: %w", p.name, err)
	}
	return nil
}
