// Package app sequences one invocation: logging, device session, command
// and the report of whatever went wrong.
package app

import (
	"context"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/term"

	"gammascout/internal/config"
	"gammascout/internal/logging"
	"gammascout/internal/session"
)

// ExitCode is the process status of every run. Failures are reported on
// the output streams only.
// TODO: confirm with the product owner whether failures should exit non-zero.
const ExitCode = 0

const defaultWidth = 80

// Session is the device session as seen by the runner.
type Session interface {
	Connect(ctx context.Context) error
	Execute(ctx context.Context) error
	Close()
}

var _ Session = (*session.Session)(nil)

// SessionFactory constructs the session for a run.
type SessionFactory func(cfg config.Config, logger zerolog.Logger, stdout io.Writer) Session

// Runner executes a single command against the device.
type Runner struct {
	Stdout     io.Writer
	Stderr     io.Writer
	NewSession SessionFactory
	// Width returns the terminal width used to wrap diagnostics.
	Width func() int
}

// NewRunner returns a runner bound to the process streams and the serial
// port.
func NewRunner() *Runner {
	return &Runner{
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		NewSession: func(cfg config.Config, logger zerolog.Logger, stdout io.Writer) Session {
			return session.New(cfg, logger, stdout)
		},
		Width: terminalWidth,
	}
}

// Run performs the configured command and reports its outcome. It returns
// the process exit status.
func (r *Runner) Run(ctx context.Context, cfg config.Config) int {
	logger, err := logging.New(cfg.Logging, r.Stderr)
	if err != nil {
		r.report(err, cfg)
		return ExitCode
	}
	defer logger.Close()

	sess := r.NewSession(cfg, logger.Logger, r.Stdout)
	r.report(r.execute(ctx, sess), cfg)
	return ExitCode
}

// execute connects and runs the command. The session is closed on every
// path, including a panic inside the session.
func (r *Runner) execute(ctx context.Context, sess Session) (err error) {
	defer sess.Close()
	defer func() {
		if p := recover(); p != nil {
			err = errors.Errorf("panic: %v", p)
		}
	}()

	if err := sess.Connect(ctx); err != nil {
		return err
	}
	return sess.Execute(ctx)
}

func (r *Runner) width() int {
	if r.Width == nil {
		return defaultWidth
	}
	if w := r.Width(); w > 0 {
		return w
	}
	return defaultWidth
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stderr.Fd()))
	if err != nil || width <= 0 {
		return defaultWidth
	}
	return width
}
