package session

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"gammascout/internal/config"
	"gammascout/internal/failure"
	"gammascout/internal/protocol"
	"gammascout/internal/transport"
	"gammascout/tasks"
)

type state int

const (
	unconnected state = iota
	connected
	closed
)

func (s state) String() string {
	switch s {
	case connected:
		return "connected"
	case closed:
		return "closed"
	default:
		return "unconnected"
	}
}

// Session owns the connection to one device for one command.
type Session struct {
	cfg    config.Config
	logger zerolog.Logger
	stdout io.Writer
	open   transport.Opener

	conn  *transport.Conn
	state state
}

// Option customizes a Session.
type Option func(*Session)

// WithOpener replaces the serial port opener.
func WithOpener(open transport.Opener) Option {
	return func(s *Session) {
		s.open = open
	}
}

// New creates an unconnected session. Command output goes to stdout.
func New(cfg config.Config, logger zerolog.Logger, stdout io.Writer, opts ...Option) *Session {
	s := &Session{
		cfg:    cfg,
		logger: logger.With().Str("device", cfg.GetDevice()).Logger(),
		stdout: stdout,
		open:   transport.OpenSerial,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect opens the serial link with the parameters of the configured
// protocol version.
func (s *Session) Connect(ctx context.Context) error {
	if s.state != unconnected {
		return errors.Errorf("cannot connect a %s session", s.state)
	}
	if err := ctx.Err(); err != nil {
		return errors.Wrap(failure.ErrInterrupted, err.Error())
	}

	settings, err := protocol.Settings(s.cfg.GetProtocol())
	if err != nil {
		return err
	}

	conn, err := transport.Open(s.cfg.GetDevice(), settings, s.open, s.logger)
	if err != nil {
		return err
	}
	s.conn = conn
	s.state = connected
	s.logger.Debug().Str("protocol", s.cfg.GetProtocol()).Msg("Connected")
	return nil
}

// Execute runs the configured command.
func (s *Session) Execute(ctx context.Context) error {
	if s.state != connected {
		return failure.Comm(failure.TypeIO, "session is %s", s.state)
	}

	dev, err := protocol.New(s.cfg.GetProtocol(), s.conn, s.cfg.GetTimeout(), s.logger)
	if err != nil {
		return err
	}

	task, err := tasks.New(s.cfg.Command, s.cfg.Args, tasks.Env{
		Stdout: s.stdout,
		Output: s.cfg.GetOutput(),
		Format: s.cfg.GetFormat(),
		Logger: s.logger,
	})
	if err != nil {
		return err
	}

	s.logger.Debug().Str("command", s.cfg.Command).Strs("args", s.cfg.Args).Msg("Executing command")
	return task.Run(ctx, dev)
}

// Close releases the connection. It is safe to call in any state and more
// than once.
func (s *Session) Close() {
	if s.state == closed {
		return
	}
	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("Closing serial port failed")
		}
		s.conn = nil
	}
	s.state = closed
}
