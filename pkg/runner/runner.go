// Package runner resolves and invokes the external neuroimaging tools the
// conversion pipeline depends on. Every invocation is synchronous and
// blocking; a non-zero exit from any tool is an error that carries the
// tool name and the tail of its stderr output.
package runner

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// maxStderrTail limits how much captured stderr is attached to an error.
const maxStderrTail = 2048

// Runner executes external tools with an explicit working directory.
type Runner struct {
	// verbose prints each command line before it runs
	verbose bool
}

// NewRunner creates a runner. When verbose is true, each invoked command
// line is printed before execution.
func NewRunner(verbose bool) *Runner {
	return &Runner{verbose: verbose}
}

// CheckTools verifies that every named tool is resolvable on the execution
// search path. It fails on the first missing tool, naming it. This is
// called before any filesystem mutation so a missing dependency never
// leaves partial state behind.
func (r *Runner) CheckTools(names ...string) error {
	for _, name := range names {
		if _, err := exec.LookPath(name); err != nil {
			return fmt.Errorf("required tool %q not found on PATH", name)
		}
	}
	return nil
}

// Run invokes one external tool and waits for it to finish. The working
// directory is set explicitly per invocation rather than mutating the
// process-wide working directory, so concurrent pipeline stages in tests
// stay independent. Stdout is captured and returned; stderr is captured
// and surfaced in the error on failure.
func (r *Runner) Run(ctx context.Context, dir, name string, args ...string) (string, error) {
	if r.verbose {
		fmt.Printf("  $ %s %s\n", name, strings.Join(args, " "))
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return stdout.String(), fmt.Errorf("%s failed: %v%s", name, err, stderrTail(stderr.String()))
	}
	return stdout.String(), nil
}

// stderrTail formats the trailing portion of captured stderr for inclusion
// in an error message.
func stderrTail(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if len(s) > maxStderrTail {
		s = s[len(s)-maxStderrTail:]
	}
	return ": " + s
}
