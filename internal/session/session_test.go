package session

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gammascout/internal/config"
	"gammascout/internal/failure"
	"gammascout/internal/transport"
	"gammascout/internal/transport/transporttest"
)

func testConfig(command string, args ...string) config.Config {
	return config.Config{
		Device:   "/dev/ttyFAKE",
		Protocol: config.ProtocolV1,
		Command:  command,
		Args:     args,
		Timeout:  "50ms",
	}
}

func TestSession_Identify(t *testing.T) {
	port := transporttest.NewPort(transporttest.Commands(map[string][]string{
		"v": {"Standard"},
	}))
	var out bytes.Buffer
	s := New(testConfig("identify"), zerolog.Nop(), &out, WithOpener(port.Opener()))

	require.NoError(t, s.Connect(context.Background()))
	require.NoError(t, s.Execute(context.Background()))
	s.Close()

	assert.Equal(t, "Mode:        Standard\n", out.String())
	assert.Equal(t, "v", port.Written())
	assert.Equal(t, 1, port.CloseCount())
}

func TestSession_UsesProtocolSettings(t *testing.T) {
	port := transporttest.NewPort(nil)
	var got transport.Settings
	opener := func(device string, settings transport.Settings) (transport.Port, error) {
		assert.Equal(t, "/dev/ttyFAKE", device)
		got = settings
		return port, nil
	}

	cfg := testConfig("identify")
	cfg.Protocol = config.ProtocolV2
	s := New(cfg, zerolog.Nop(), &bytes.Buffer{}, WithOpener(opener))
	defer s.Close()

	require.NoError(t, s.Connect(context.Background()))
	assert.Equal(t, 460800, got.BaudRate)
}

func TestSession_ExecuteTimeout(t *testing.T) {
	port := transporttest.NewPort(nil)
	s := New(testConfig("identify"), zerolog.Nop(), &bytes.Buffer{}, WithOpener(port.Opener()))
	defer s.Close()

	require.NoError(t, s.Connect(context.Background()))
	err := s.Execute(context.Background())

	require.Error(t, err)
	assert.Equal(t, failure.TypeTimeout, failure.CommType(err))
}

func TestSession_UnknownCommand(t *testing.T) {
	port := transporttest.NewPort(nil)
	s := New(testConfig("fly"), zerolog.Nop(), &bytes.Buffer{}, WithOpener(port.Opener()))
	defer s.Close()

	require.NoError(t, s.Connect(context.Background()))
	err := s.Execute(context.Background())
	assert.Equal(t, failure.InvalidArgument, failure.Classify(err))
}

func TestSession_ConnectFailure(t *testing.T) {
	opener := func(string, transport.Settings) (transport.Port, error) {
		return nil, errors.New("permission denied")
	}
	s := New(testConfig("identify"), zerolog.Nop(), &bytes.Buffer{}, WithOpener(opener))

	err := s.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, failure.TypeOpen, failure.CommType(err))

	// Close after a failed connect is a no-op, and so is a second Close.
	s.Close()
	s.Close()
	assert.Equal(t, closed, s.state)
}

func TestSession_ConnectInterrupted(t *testing.T) {
	port := transporttest.NewPort(nil)
	s := New(testConfig("identify"), zerolog.Nop(), &bytes.Buffer{}, WithOpener(port.Opener()))
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Connect(ctx)
	assert.Equal(t, failure.Interrupt, failure.Classify(err))
	assert.Equal(t, 0, port.CloseCount())
}

func TestSession_ExecuteInterrupted(t *testing.T) {
	port := transporttest.NewPort(nil)
	cfg := testConfig("identify")
	cfg.Timeout = "5s"
	s := New(cfg, zerolog.Nop(), &bytes.Buffer{}, WithOpener(port.Opener()))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Connect(ctx))

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := s.Execute(ctx)
	assert.Equal(t, failure.Interrupt, failure.Classify(err))

	s.Close()
	assert.Equal(t, 1, port.CloseCount())
}

func TestSession_ExecuteBeforeConnect(t *testing.T) {
	s := New(testConfig("identify"), zerolog.Nop(), &bytes.Buffer{})

	err := s.Execute(context.Background())
	assert.Equal(t, failure.TypeIO, failure.CommType(err))
}

func TestSession_ConnectAfterClose(t *testing.T) {
	s := New(testConfig("identify"), zerolog.Nop(), &bytes.Buffer{})
	s.Close()

	err := s.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, failure.Unclassified, failure.Classify(err))
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	port := transporttest.NewPort(nil)
	s := New(testConfig("identify"), zerolog.Nop(), &bytes.Buffer{}, WithOpener(port.Opener()))

	require.NoError(t, s.Connect(context.Background()))
	s.Close()
	s.Close()

	assert.Equal(t, 1, port.CloseCount())
}
