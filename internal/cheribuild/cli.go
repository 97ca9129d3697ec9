package cheribuild

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gookit/color"
)

func printHelp() {
	colSuccess.Println("Usage: cheribuild [options] <target>...")
	colSuccess.Println("Builds the CHERI software stack (toolchain, OS, disk image, emulator).")
	fmt.Println()
	colInfo.Println("Run 'cheribuild -list-targets' to see all available targets.")
	fmt.Println()
	flag.PrintDefaults()
}

// Main is the CLI entrypoint for cmd invocation from the root package.
func Main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigs:
			colArrow.Print("\n-> ")
			color.Danger.Printf("Received %v. Cancelling build gracefully\n", sig)
			cancel()
			// Give the running command a moment to die and flush its buffers
			time.Sleep(100 * time.Millisecond)
			select {
			case <-sigs:
				colArrow.Print("\n-> ")
				color.Danger.Println("Second interrupt received. Forcing immediate exit.")
				os.Exit(130)
			case <-time.After(2 * time.Second):
				os.Exit(130)
			}
		case <-ctx.Done():
		}
	}()

	configPath := ConfigFile
	if override := os.Getenv("CHERIBUILD_CONFIG"); override != "" {
		configPath = override
	}
	cfg, err := loadConfig(configPath)
	if err != nil {
		warningMessage("Could not read config file:", err)
	}

	var (
		targetName     string
		cheriBits      int
		optFlags       string
		listTargets    bool
		useTUI         bool
		clean          bool
		skipDeprecated bool
		showVersion    bool
	)
	flag.Usage = printHelp
	flag.BoolVar(&cfg.IncludeDependencies, "include-dependencies", false,
		"Also build the chosen targets' transitive dependencies, in dependency order")
	flag.BoolVar(&cfg.IncludeDependencies, "d", false, "Shorthand for -include-dependencies")
	flag.StringVar(&targetName, "target", "cheri", "The target to build for (cheri, mips or native)")
	flag.IntVar(&cheriBits, "cheri-bits", 128, "Capability width for the cheri target (128 or 256)")
	flag.StringVar(&cfg.Linker, "linker", "lld", "The linker to use (lld or bfd)")
	flag.BoolVar(&cfg.DebugInfo, "debug-info", true, "Build with debug info")
	flag.BoolVar(&cfg.NoUseMxgot, "no-use-mxgot", false,
		"Compile without the -mxgot flag (unless the program is small this will probably break everything!)")
	flag.BoolVar(&cfg.NewCapRelocs, "new-cap-relocs", false, "Use the new __cap_relocs processing in LLD")
	flag.BoolVar(&cfg.WithLibstatcounters, "with-libstatcounters", false,
		"Link the statistics counters library into every binary")
	flag.StringVar(&optFlags, "optimization-flags", "-O2", "Compiler optimization flags (space separated)")
	flag.IntVar(&cfg.MakeJobs, "j", 0, "Number of parallel make jobs (default: number of CPUs)")
	flag.BoolVar(&cfg.SkipBuildworld, "skip-buildworld", false, "Skip the OS buildworld step (kernel only)")
	flag.BoolVar(&cfg.Upload, "upload", false, "Upload built artifacts to the configured mirror")
	flag.BoolVar(&listTargets, "list-targets", false, "List all available targets and exit")
	flag.BoolVar(&useTUI, "tui", false, "Browse the dependency graph interactively")
	flag.BoolVar(&clean, "clean", false, "Remove the build directories before building")
	flag.BoolVar(&skipDeprecated, "skip-dependencies", false, "Deprecated, this is now the default behaviour")
	flag.BoolVar(&Verbose, "v", false, "Verbose output")
	flag.BoolVar(&Debug, "debug", false, "Print debug output")
	flag.BoolVar(&showVersion, "version", false, "Print version information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("cheribuild %s (built %s)\n", version, buildDate)
		return
	}
	if skipDeprecated {
		warningMessage("-skip-dependencies is now the default behaviour and will be removed soon.")
	}

	crossTarget, err := ParseCrossTarget(targetName)
	if err != nil {
		fatalError(err)
	}
	cfg.CrossTarget = crossTarget
	switch cheriBits {
	case 128:
		cfg.CheriBits = CheriBits128
	case 256:
		cfg.CheriBits = CheriBits256
	default:
		fatalError("invalid capability width", cheriBits, "(expected 128 or 256)")
	}
	cfg.OptimizationFlags = strings.Fields(optFlags)
	initConfig(cfg)

	registry := NewRegistry(cfg)

	if useTUI {
		if err := runTargetBrowser(registry); err != nil {
			fatalError(err)
		}
		return
	}
	if listTargets {
		for _, name := range registry.Names() {
			fmt.Println(name)
		}
		return
	}

	if clean {
		if askForConfirmation("Remove all build directories under %s?", cfg.BuildRoot) {
			if err := os.RemoveAll(cfg.BuildRoot); err != nil {
				fatalError("clean failed:", err)
			}
			statusUpdate("Removed", cfg.BuildRoot)
		}
	}

	targets := flag.Args()
	if len(targets) == 0 {
		printHelp()
		return
	}

	executor := NewExecutor(ctx)
	// every configure/build/install runs with the SDK tools first in $PATH
	executor.PathPrefix = cfg.SdkBinDir()

	if err := registry.Run(cfg, executor, targets); err != nil {
		fatalError(err)
	}
}
