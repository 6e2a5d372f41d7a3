package protocol

import (
	"context"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"gammascout/internal/failure"
)

var (
	versionPCRegex = regexp.MustCompile(`^Version ([0-9]\.[0-9]{2}) ([0-9]+) ([0-9a-fA-F]+) ([0-9]{2})\.([0-9]{2})\.([0-9]{2}) ([0-9]{2}):([0-9]{2}):([0-9]{2})$`)
	configFirstLine = regexp.MustCompile(`^([0-9a-fA-F]+) ([0-9a-fA-F]+) ([0-9a-fA-F]+)$`)
)

// Device answers.
const (
	answerTimeSet       = "Datum und Zeit gestellt"
	answerPCModeStarted = "PC-Mode gestartet"
	answerPCModeEnded   = "PC-Mode beendet"
	answerLogHeader     = "GAMMA-SCOUT Protokoll"
	answerLogCleared    = "Protokollspeicher wieder frei"
)

// Version describes the device as reported by the "v" command.
type Version struct {
	Mode       Mode       `json:"mode" yaml:"mode"`
	Firmware   string     `json:"firmware,omitempty" yaml:"firmware,omitempty"`
	Serial     int        `json:"serial,omitempty" yaml:"serial,omitempty"`
	BufferFill int        `json:"buffer_fill,omitempty" yaml:"buffer_fill,omitempty"`
	Clock      *time.Time `json:"clock,omitempty" yaml:"clock,omitempty"`
}

// Log is the raw content of the device's log memory.
type Log struct {
	BufferFill int
	Data       []byte
	// ChecksumErrors counts lines whose checksum did not match.
	ChecksumErrors int
}

// Client implements Device.
type Client struct {
	conn         Conn
	timeout      time.Duration
	logger       zerolog.Logger
	now          func() time.Time
	switchesMode bool
	slowWrites   bool
}

var _ Device = (*Client)(nil)

// expectResponse reads the empty datagram that opens every answer and then
// the answer itself, which must equal want.
func (c *Client) expectResponse(ctx context.Context, want string, timeout time.Duration) error {
	datagram, err := c.conn.Next(ctx, timeout)
	if err != nil {
		return err
	}
	if datagram != "" {
		return failure.Comm(failure.TypeProtocol, "first response datagram was %q while expecting an empty one", datagram)
	}

	datagram, err = c.conn.Next(ctx, timeout)
	if err != nil {
		return err
	}
	if datagram != want {
		return failure.Comm(failure.TypeProtocol, "second response datagram was %q while expecting %q", datagram, want)
	}
	return nil
}

func (c *Client) Version(ctx context.Context) (*Version, error) {
	if err := c.conn.Write(ctx, "v"); err != nil {
		return nil, err
	}
	if _, err := c.conn.Next(ctx, c.timeout); err != nil {
		return nil, errors.Wrap(err, "first datagram of version")
	}
	line, err := c.conn.Next(ctx, c.timeout)
	if err != nil {
		return nil, errors.Wrap(err, "second datagram of version")
	}
	return parseVersion(line)
}

func parseVersion(line string) (*Version, error) {
	if line == string(ModeStandard) {
		return &Version{Mode: ModeStandard}, nil
	}

	m := versionPCRegex.FindStringSubmatch(line)
	if m == nil {
		return nil, failure.Comm(failure.TypeProtocol, "unparsable version string %q", line)
	}

	serialNo, err := strconv.Atoi(m[2])
	if err != nil {
		return nil, failure.WrapComm(err, failure.TypeProtocol, "invalid serial number")
	}
	fill, err := strconv.ParseInt(m[3], 16, 32)
	if err != nil {
		return nil, failure.WrapComm(err, failure.TypeProtocol, "invalid buffer fill")
	}

	var fields [6]int
	for i := range fields {
		fields[i], _ = strconv.Atoi(m[4+i])
	}
	day, month, year := fields[0], fields[1], fields[2]+2000
	clock := time.Date(year, time.Month(month), day, fields[3], fields[4], fields[5], 0, time.Local)
	if clock.Day() != day || int(clock.Month()) != month {
		return nil, failure.Comm(failure.TypeProtocol, "invalid device date in %q", line)
	}

	return &Version{
		Mode:       ModePC,
		Firmware:   m[1],
		Serial:     serialNo,
		BufferFill: int(fill),
		Clock:      &clock,
	}, nil
}

func (c *Client) SwitchMode(ctx context.Context, mode Mode) error {
	if mode != ModeStandard && mode != ModePC {
		return failure.InvalidArg("unknown mode %q", mode)
	}
	if !c.switchesMode {
		if mode == ModeStandard {
			return failure.InvalidArg("this protocol version does not support standard mode")
		}
		return nil
	}

	current, err := c.Version(ctx)
	if err != nil {
		return err
	}
	if current.Mode == mode {
		c.logger.Debug().Str("mode", string(mode)).Msg("Device already in requested mode")
		return nil
	}

	c.logger.Info().Str("from", string(current.Mode)).Str("to", string(mode)).Msg("Switching device mode")
	if mode == ModeStandard {
		if err := c.conn.Write(ctx, "X"); err != nil {
			return err
		}
		return c.expectResponse(ctx, answerPCModeEnded, 2*c.timeout)
	}
	if err := c.conn.Write(ctx, "P"); err != nil {
		return err
	}
	return c.expectResponse(ctx, answerPCModeStarted, 2*c.timeout)
}

func (c *Client) SetTime(ctx context.Context, t time.Time) error {
	if t.Year() < 2000 || t.Year() > 2099 {
		return failure.InvalidArg("year %d cannot be stored on the device (2000-2099)", t.Year())
	}
	command := fmt.Sprintf("t%02d%02d%02d%02d%02d%02d",
		t.Day(), int(t.Month()), t.Year()-2000, t.Hour(), t.Minute(), t.Second())

	var err error
	if c.slowWrites {
		err = c.conn.WriteSlow(ctx, command, slowWriteDelay)
	} else {
		err = c.conn.Write(ctx, command)
	}
	if err != nil {
		return err
	}
	return c.expectResponse(ctx, answerTimeSet, c.timeout)
}

func (c *Client) SyncTime(ctx context.Context) error {
	return c.SetTime(ctx, c.now())
}

func (c *Client) ReadLog(ctx context.Context) (*Log, error) {
	if err := c.SwitchMode(ctx, ModePC); err != nil {
		return nil, err
	}
	version, err := c.Version(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.conn.Write(ctx, "b"); err != nil {
		return nil, err
	}
	if err := c.expectResponse(ctx, answerLogHeader, c.timeout); err != nil {
		return nil, err
	}

	log := &Log{BufferFill: version.BufferFill}
	for lineNo := 1; ; lineNo++ {
		line, done, err := c.nextDataLine(ctx)
		if err != nil {
			return nil, err
		}
		if done {
			break
		}
		if len(line)%2 != 0 {
			return nil, failure.Comm(failure.TypeProtocol, "protocol line was not a multiple of two bytes (%d bytes received)", len(line))
		}

		data, err := hex.DecodeString(line)
		if err != nil {
			return nil, failure.WrapComm(err, failure.TypeProtocol, fmt.Sprintf("log line %d is not hexadecimal", lineNo))
		}
		if len(data) == 0 {
			continue
		}

		payload, transmitted := data[:len(data)-1], data[len(data)-1]
		if calculated := checksum(payload); calculated != transmitted {
			log.ChecksumErrors++
			c.logger.Warn().
				Int("line", lineNo).
				Str("calculated", fmt.Sprintf("0x%02x", calculated)).
				Str("transmitted", fmt.Sprintf("0x%02x", transmitted)).
				Msg("Log line has checksum error")
		}
		log.Data = append(log.Data, payload...)
	}

	c.logger.Info().Int("bytes", len(log.Data)).Int("buffer_fill", log.BufferFill).Msg("Log read")
	return log, nil
}

// nextDataLine returns the next datagram of a bulk transfer. The device
// signals the end of the transfer by going silent, so a timeout reports
// done instead of an error.
func (c *Client) nextDataLine(ctx context.Context) (string, bool, error) {
	line, err := c.conn.Next(ctx, c.timeout)
	if err != nil {
		if failure.CommType(err) == failure.TypeTimeout {
			return "", true, nil
		}
		return "", false, err
	}
	return line, false, nil
}

func checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return sum
}

func (c *Client) ClearLog(ctx context.Context) error {
	if err := c.SwitchMode(ctx, ModePC); err != nil {
		return err
	}
	if err := c.conn.Write(ctx, "z"); err != nil {
		return err
	}
	return c.expectResponse(ctx, answerLogCleared, c.timeout)
}

func (c *Client) Reset(ctx context.Context) error {
	if err := c.SwitchMode(ctx, ModePC); err != nil {
		return err
	}
	return c.conn.Write(ctx, "i")
}

func (c *Client) ReadConfig(ctx context.Context) ([]byte, error) {
	if err := c.SwitchMode(ctx, ModePC); err != nil {
		return nil, err
	}
	if err := c.conn.Write(ctx, "c"); err != nil {
		return nil, err
	}

	var out []byte
	for lineNo := 1; ; lineNo++ {
		line, done, err := c.nextDataLine(ctx)
		if err != nil {
			return nil, err
		}
		if done {
			break
		}
		if lineNo == 1 {
			continue
		}

		if lineNo == 2 {
			m := configFirstLine.FindStringSubmatch(line)
			if m == nil {
				return nil, failure.Comm(failure.TypeProtocol, "first configuration data line format unexpected (received %q)", line)
			}
			for _, field := range m[1:3] {
				v, err := strconv.ParseUint(field, 16, 8)
				if err != nil {
					return nil, failure.WrapComm(err, failure.TypeProtocol, "invalid configuration header")
				}
				out = append(out, byte(v))
			}
			line = m[3]
		}

		data, err := hex.DecodeString(line)
		if err != nil {
			return nil, failure.WrapComm(err, failure.TypeProtocol, fmt.Sprintf("configuration line %d is not hexadecimal", lineNo))
		}
		out = append(out, data...)
	}
	return out, nil
}
