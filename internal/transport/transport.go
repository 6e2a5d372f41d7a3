package transport

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"go.bug.st/serial"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"gammascout/internal/failure"
)

const (
	// pollInterval bounds how long a single port read blocks so the reader
	// goroutine notices Close.
	pollInterval = 100 * time.Millisecond
	readSize     = 128
	queueSize    = 256
	lineEnding   = "\r\n"
)

// Port is the subset of serial.Port used by Conn.
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
}

var _ Port = (serial.Port)(nil)

// Settings are the line parameters of a serial link.
type Settings struct {
	BaudRate int
	DataBits int
	Parity   serial.Parity
	StopBits serial.StopBits
}

// Opener opens the port for a device path.
type Opener func(device string, settings Settings) (Port, error)

// OpenSerial opens a real serial port.
func OpenSerial(device string, settings Settings) (Port, error) {
	mode := &serial.Mode{
		BaudRate: settings.BaudRate,
		DataBits: settings.DataBits,
		Parity:   settings.Parity,
		StopBits: settings.StopBits,
	}
	port, err := serial.Open(device, mode)
	if err != nil {
		return nil, err
	}
	return port, nil
}

// Conn is a datagram connection to the device. Datagrams are Latin-1 text
// lines terminated by CRLF.
type Conn struct {
	port   Port
	logger zerolog.Logger

	datagrams chan string
	readErr   chan error
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error

	lineBuffer string
}

// Open opens device with open and starts the reader.
func Open(device string, settings Settings, open Opener, logger zerolog.Logger) (*Conn, error) {
	port, err := open(device, settings)
	if err != nil {
		return nil, failure.WrapComm(err, failure.TypeOpen, "cannot open "+device)
	}
	if err := port.SetReadTimeout(pollInterval); err != nil {
		_ = port.Close()
		return nil, failure.WrapComm(err, failure.TypeOpen, "cannot configure "+device)
	}

	logger.Debug().
		Str("device", device).
		Int("baud_rate", settings.BaudRate).
		Int("data_bits", settings.DataBits).
		Msg("Serial port opened")

	return NewConn(port, logger), nil
}

// NewConn wraps an already opened port.
func NewConn(port Port, logger zerolog.Logger) *Conn {
	c := &Conn{
		port:      port,
		logger:    logger,
		datagrams: make(chan string, queueSize),
		readErr:   make(chan error, 1),
		done:      make(chan struct{}),
	}
	c.wg.Add(1)
	go c.run()
	return c
}

func (c *Conn) run() {
	defer c.wg.Done()

	buf := make([]byte, readSize)
	for {
		select {
		case <-c.done:
			return
		default:
		}

		n, err := c.port.Read(buf)
		if n > 0 {
			if !c.receive(buf[:n]) {
				return
			}
		}
		if err != nil && !errors.Is(err, io.EOF) {
			select {
			case <-c.done:
			default:
				c.readErr <- err
			}
			return
		}
	}
}

// receive splits incoming data into datagrams. It reports false once the
// connection is closed.
func (c *Conn) receive(data []byte) bool {
	c.lineBuffer += decodeLatin1(data)
	parts := strings.Split(c.lineBuffer, lineEnding)
	c.lineBuffer = parts[len(parts)-1]
	c.logger.Debug().Strs("parts", parts).Msg("<-")

	for _, datagram := range parts[:len(parts)-1] {
		select {
		case c.datagrams <- datagram:
		case <-c.done:
			return false
		}
	}
	return true
}

// Next waits up to timeout for the next complete datagram.
func (c *Conn) Next(ctx context.Context, timeout time.Duration) (string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case datagram := <-c.datagrams:
		c.logger.Debug().Str("datagram", datagram).Msg("#")
		return datagram, nil
	case err := <-c.readErr:
		return "", failure.WrapComm(err, failure.TypeIO, "reading from device failed")
	case <-ctx.Done():
		return "", errors.Wrap(failure.ErrInterrupted, ctx.Err().Error())
	case <-c.done:
		return "", failure.Comm(failure.TypeIO, "connection closed")
	case <-timer.C:
		c.logger.Debug().Dur("timeout", timeout).Msg("# no datagram")
		return "", failure.Comm(failure.TypeTimeout, "timeout after %s waiting for device response", timeout)
	}
}

// Write sends s to the device.
func (c *Conn) Write(ctx context.Context, s string) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(failure.ErrInterrupted, err.Error())
	}
	c.logger.Debug().Str("data", s).Msg("->")
	return c.write(encodeLatin1(s))
}

// WriteSlow sends s one byte at a time, pausing delay after each byte.
// Some devices drop characters that arrive faster.
func (c *Conn) WriteSlow(ctx context.Context, s string, delay time.Duration) error {
	c.logger.Debug().Str("data", s).Dur("delay", delay).Msg("-> slow")
	for _, b := range encodeLatin1(s) {
		if err := c.write([]byte{b}); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(failure.ErrInterrupted, ctx.Err().Error())
		case <-time.After(delay):
		}
	}
	return nil
}

func (c *Conn) write(data []byte) error {
	select {
	case <-c.done:
		return failure.Comm(failure.TypeIO, "connection closed")
	default:
	}

	n, err := c.port.Write(data)
	if err != nil {
		return failure.WrapComm(err, failure.TypeIO, "writing to device failed")
	}
	if n != len(data) {
		return failure.Comm(failure.TypeIO, "incomplete write: wrote %d of %d bytes", n, len(data))
	}
	return nil
}

// Close stops the reader and closes the port. Repeated calls return the
// result of the first one.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.closeErr = c.port.Close()
		c.wg.Wait()
		c.logger.Debug().Msg("Serial port closed")
	})
	return c.closeErr
}

func decodeLatin1(data []byte) string {
	// Every byte maps to a code point in ISO 8859-1, so decoding cannot fail.
	decoded, _ := charmap.ISO8859_1.NewDecoder().Bytes(data)
	return string(decoded)
}

// encodeLatin1 replaces characters outside ISO 8859-1 with the charmap's
// substitute byte.
func encodeLatin1(s string) []byte {
	encoded, _ := encoding.ReplaceUnsupported(charmap.ISO8859_1.NewEncoder()).String(s)
	return []byte(encoded)
}
