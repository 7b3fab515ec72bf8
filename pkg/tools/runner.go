// Package tools implements loaders, debuggers and tracers that drive external
// programs such as openocd, JLinkExe and bossac.
//
// Every tool runs to completion and its exit status is returned to the
// caller. Nothing replaces the boardctl process.
package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/OpenTraceLab/boardctl/internal/logging"
)

// interruptGrace is how long a cancelled tool gets to exit after SIGINT
// before it is killed.
const interruptGrace = 3 * time.Second

// Runner starts an external program and waits for it.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// ExitError reports a tool that exited with a non-zero status.
type ExitError struct {
	Name string
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s failed with exit code %d", e.Name, e.Code)
}

// ExecRunner runs programs with os/exec. Nil streams default to the
// process's own.
type ExecRunner struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = r.Stdin
	if cmd.Stdin == nil {
		cmd.Stdin = os.Stdin
	}
	cmd.Stdout = r.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	cmd.Stderr = r.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = interruptGrace

	log := logging.For(logging.ComponentTools)
	log.Debug("exec", "cmd", name, "args", strings.Join(args, " "))

	err := cmd.Run()
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%s: %w", filepath.Base(name), ctx.Err())
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return &ExitError{Name: filepath.Base(name), Code: ee.ExitCode()}
	}
	return fmt.Errorf("run %s: %w", name, err)
}

func toolLog(tool string) *slog.Logger {
	return logging.For(logging.ComponentTools).With("tool", tool)
}
