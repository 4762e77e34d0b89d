package classifier

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	customlog "github.com/open-teleop/commandbot/pkg/log"
)

// ExecClassifier runs an external program once per input, writing the text
// to its stdin and returning its trimmed stdout.
type ExecClassifier struct {
	Command string
	Args    []string
	Timeout time.Duration
	logger  customlog.Logger
}

// NewExecClassifier runs "<command> run <model>", the Ollama CLI form.
func NewExecClassifier(command, model string, timeout time.Duration, logger customlog.Logger) *ExecClassifier {
	if logger == nil {
		logger = customlog.NewNopLogger()
	}
	return &ExecClassifier{
		Command: command,
		Args:    []string{"run", model},
		Timeout: timeout,
		logger:  logger,
	}
}

// Classify runs the program and returns its output. A non-zero exit, a
// start failure or a timeout is a classifier failure.
func (c *ExecClassifier) Classify(ctx context.Context, text string) (string, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.Command, c.Args...)
	cmd.Stdin = strings.NewReader(text + "\n")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Children that inherit stdout must not keep Run blocked after a kill.
	cmd.WaitDelay = time.Second

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if errors.Is(ctxErr, context.DeadlineExceeded) {
				return "", failure("%s timed out after %s", c.Command, c.Timeout)
			}
			return "", failure("%s cancelled: %v", c.Command, ctxErr)
		}
		return "", failure("%s failed: %v (stderr: %s)", c.Command, err, strings.TrimSpace(stderr.String()))
	}

	output := strings.TrimSpace(stdout.String())
	c.logger.Debugf("%s answered %q in %s", c.Command, output, elapsed)
	return output, nil
}
