// Package protocol implements the Gamma Scout serial command set.
package protocol

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.bug.st/serial"

	"gammascout/internal/config"
	"gammascout/internal/failure"
	"gammascout/internal/transport"
)

// Mode is the operating mode reported by the device.
type Mode string

const (
	ModeStandard Mode = "Standard"
	ModePC       Mode = "PC"
)

// slowWriteDelay is the pause between bytes of a slowly written command.
// 400ms is too fast for v1 firmware, 500ms works.
const slowWriteDelay = 550 * time.Millisecond

// Conn is the datagram link the protocol runs on.
type Conn interface {
	Next(ctx context.Context, timeout time.Duration) (string, error)
	Write(ctx context.Context, s string) error
	WriteSlow(ctx context.Context, s string, delay time.Duration) error
}

var _ Conn = (*transport.Conn)(nil)

// Device is the command set of a Gamma Scout.
type Device interface {
	Version(ctx context.Context) (*Version, error)
	SwitchMode(ctx context.Context, mode Mode) error
	SetTime(ctx context.Context, t time.Time) error
	SyncTime(ctx context.Context) error
	ReadLog(ctx context.Context) (*Log, error)
	ClearLog(ctx context.Context) error
	Reset(ctx context.Context) error
	ReadConfig(ctx context.Context) ([]byte, error)
}

// Settings returns the serial line parameters of a protocol version.
func Settings(version string) (transport.Settings, error) {
	switch version {
	case config.ProtocolV1:
		return transport.Settings{
			BaudRate: 9600,
			DataBits: 7,
			Parity:   serial.EvenParity,
			StopBits: serial.OneStopBit,
		}, nil
	case config.ProtocolV2:
		return transport.Settings{
			BaudRate: 460800,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		}, nil
	default:
		return transport.Settings{}, failure.InvalidArg("unsupported protocol version %q", version)
	}
}

// New returns the Device speaking the given protocol version over conn.
// timeout bounds the wait for each response datagram.
func New(version string, conn Conn, timeout time.Duration, logger zerolog.Logger) (Device, error) {
	c := &Client{
		conn:    conn,
		timeout: timeout,
		logger:  logger.With().Str("protocol", version).Logger(),
		now:     time.Now,
	}

	switch version {
	case config.ProtocolV1:
		c.switchesMode = true
		c.slowWrites = true
	case config.ProtocolV2:
		// Online devices stay in PC mode and accept full-speed writes.
	default:
		return nil, failure.InvalidArg("unsupported protocol version %q", version)
	}
	return c, nil
}
