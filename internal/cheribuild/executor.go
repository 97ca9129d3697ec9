package cheribuild

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

// Executor provides a consistent interface for executing build commands. The
// command search path is never mutated process-wide: PathPrefix is prepended
// to $PATH for each invocation, guaranteeing the SDK tools are found
// regardless of the ambient environment.
type Executor struct {
	Context    context.Context // The context to use for cancellation
	PathPrefix string          // Directory prepended to $PATH for every command
	Quiet      bool            // Suppress command echo
}

// NewExecutor returns an executor bound to the given context.
func NewExecutor(ctx context.Context) *Executor {
	return &Executor{Context: ctx}
}

// commandEnv merges extra variables over the ambient environment and applies
// the search-path prefix. Entries with empty values are dropped.
func (e *Executor) commandEnv(extra map[string]string) []string {
	path := os.Getenv("PATH")
	if e.PathPrefix != "" {
		path = e.PathPrefix + ":" + path
	}
	env := make([]string, 0, len(extra)+8)
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, "PATH=") {
			continue
		}
		key := kv[:strings.IndexByte(kv, '=')]
		if _, overridden := extra[key]; overridden {
			continue
		}
		env = append(env, kv)
	}
	env = append(env, "PATH="+path)
	for k, v := range extra {
		if v == "" {
			continue
		}
		env = append(env, k+"="+v)
	}
	return env
}

// Run executes cmd with the executor's environment handling. It wires up
// stdio, isolates the child in its own process group and kills the whole
// group if the context is cancelled.
func (e *Executor) Run(cmd *exec.Cmd, extraEnv map[string]string) error {
	if cmd.Stdin == nil {
		cmd.Stdin = os.Stdin
	}
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	cmd.Env = e.commandEnv(extraEnv)

	if !e.Quiet {
		statusUpdate("Running:", strings.Join(cmd.Args, " "))
		if Verbose && cmd.Dir != "" {
			statusUpdate("Working directory:", cmd.Dir)
		}
	}

	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start command: %w", err)
	}

	pgid := cmd.Process.Pid
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-e.Context.Done():
			syscall.Kill(-pgid, syscall.SIGKILL)
		case <-done:
		}
	}()

	if waitErr := cmd.Wait(); waitErr != nil {
		if e.Context.Err() != nil {
			time.Sleep(100 * time.Millisecond)
			return fmt.Errorf("command aborted: %v", e.Context.Err())
		}
		return waitErr
	}
	return nil
}

// RunIn is a convenience wrapper that builds the command in a working
// directory and runs it.
func (e *Executor) RunIn(dir string, extraEnv map[string]string, name string, args ...string) error {
	cmd := exec.CommandContext(e.Context, name, args...)
	cmd.Dir = dir
	return e.Run(cmd, extraEnv)
}

// LookTool resolves an executable, preferring the search-path prefix over the
// ambient $PATH. Used by dependency checks so the result matches what Run
// will later execute.
func (e *Executor) LookTool(name string) (string, error) {
	if e.PathPrefix != "" {
		candidate := e.PathPrefix + "/" + name
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return exec.LookPath(name)
}
