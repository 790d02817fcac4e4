package analyzer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/polish-dev/polish/internal/suggest"
)

// Invoker runs one analyzer against one file.
type Invoker interface {
	Invoke(ctx context.Context, def Definition, path string, timeout time.Duration) *Result
}

// ExecInvoker implements Invoker by spawning the analyzer command.
type ExecInvoker struct{}

// NewInvoker returns the real subprocess-backed invoker.
func NewInvoker() *ExecInvoker {
	return &ExecInvoker{}
}

// Invoke spawns the analyzer with the file path as its sole positional
// argument and parses suggestion lines from stdout. The timeout is
// enforced by killing the process; a timed-out analyzer yields status
// timeout with zero suggestions and never blocks the run. Partial
// output from a failing analyzer is honored: a non-zero exit with at
// least one parsed suggestion still counts as ok.
func (iv *ExecInvoker) Invoke(ctx context.Context, def Definition, path string, timeout time.Duration) *Result {
	res := &Result{Analyzer: def.Name}

	runCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	args := append(append([]string{}, def.Args...), path)
	cmd := exec.CommandContext(runCtx, def.Command, args...)
	cmd.Env = append(os.Environ(), "POLISH_NON_INTERACTIVE=1")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	res.Elapsed = time.Since(start)

	// Run-level cancellation trumps everything; the file is reported
	// as skipped, not failed.
	if ctx.Err() != nil {
		res.Status = StatusSkipped
		res.Diagnostic = "run cancelled"
		return res
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		res.Status = StatusTimeout
		res.Diagnostic = fmt.Sprintf("killed after %s", timeout)
		return res
	}

	res.Suggestions, res.Malformed = suggest.ParseOutput(def.Name, stdout.String())

	if runErr != nil {
		if len(res.Suggestions) > 0 {
			// Partial output beats strictness.
			res.Status = StatusOK
			return res
		}
		res.Status = StatusError
		res.Diagnostic = exitDiagnostic(runErr, stderr.String())
		return res
	}

	res.Status = StatusOK
	if len(res.Suggestions) == 0 && res.Malformed > 0 {
		res.Diagnostic = fmt.Sprintf("%d malformed suggestion line(s), none parsed", res.Malformed)
	}
	return res
}

// exitDiagnostic builds a short human-readable failure message from the
// exec error and captured stderr.
func exitDiagnostic(runErr error, stderr string) string {
	msg := runErr.Error()
	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		msg = fmt.Sprintf("exit code %d", exitErr.ExitCode())
	}
	if s := strings.TrimSpace(stderr); s != "" {
		if len(s) > 200 {
			s = s[:200]
		}
		msg += ": " + s
	}
	return msg
}
