package transport_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gammascout/internal/failure"
	"gammascout/internal/transport"
	"gammascout/internal/transport/transporttest"
)

func newConn(t *testing.T, respond transporttest.Responder) (*transport.Conn, *transporttest.Port) {
	t.Helper()
	port := transporttest.NewPort(respond)
	conn, err := transport.Open("/dev/fake", transport.Settings{BaudRate: 9600}, port.Opener(), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn, port
}

func TestConn_SplitsDatagrams(t *testing.T) {
	conn, port := newConn(t, nil)
	ctx := context.Background()

	port.Feed("\r\nVersion 6.")
	port.Feed("10 1234 00A0 ")
	port.Feed("01.02.11 10:20:30\r\nSecond\r\npartial")

	first, err := conn.Next(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "", first)

	second, err := conn.Next(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "Version 6.10 1234 00A0 01.02.11 10:20:30", second)

	third, err := conn.Next(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "Second", third)

	_, err = conn.Next(ctx, 50*time.Millisecond)
	require.Error(t, err)
	assert.Equal(t, failure.TypeTimeout, failure.CommType(err))
}

func TestConn_DecodesLatin1(t *testing.T) {
	conn, port := newConn(t, nil)

	port.Feed("Gr\xfc\xdfe\r\n")

	datagram, err := conn.Next(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "Grüße", datagram)
}

func TestConn_Write(t *testing.T) {
	conn, port := newConn(t, transporttest.Commands(map[string][]string{
		"v": {"Standard"},
	}))
	ctx := context.Background()

	require.NoError(t, conn.Write(ctx, "v"))
	assert.Equal(t, "v", port.Written())

	first, err := conn.Next(ctx, time.Second)
	require.NoError(t, err)
	assert.Empty(t, first)

	second, err := conn.Next(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "Standard", second)
}

func TestConn_WriteSlow(t *testing.T) {
	conn, port := newConn(t, nil)

	start := time.Now()
	require.NoError(t, conn.WriteSlow(context.Background(), "t12", 10*time.Millisecond))

	assert.Equal(t, "t12", port.Written())
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestConn_WriteSlowInterrupted(t *testing.T) {
	conn, _ := newConn(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := conn.WriteSlow(ctx, "t010203", time.Second)
	assert.Equal(t, failure.Interrupt, failure.Classify(err))
}

func TestConn_NextInterrupted(t *testing.T) {
	conn, _ := newConn(t, nil)
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := conn.Next(ctx, 5*time.Second)
	assert.Equal(t, failure.Interrupt, failure.Classify(err))
}

func TestConn_ReadError(t *testing.T) {
	conn, port := newConn(t, nil)
	port.FailRead(errors.New("device unplugged"))

	_, err := conn.Next(context.Background(), time.Second)
	require.Error(t, err)
	assert.Equal(t, failure.TypeIO, failure.CommType(err))
	assert.Contains(t, err.Error(), "device unplugged")
}

func TestConn_CloseIsIdempotent(t *testing.T) {
	conn, port := newConn(t, nil)

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())
	assert.Equal(t, 1, port.CloseCount())

	err := conn.Write(context.Background(), "v")
	assert.Equal(t, failure.TypeIO, failure.CommType(err))
}

func TestOpen_Failure(t *testing.T) {
	opener := func(string, transport.Settings) (transport.Port, error) {
		return nil, errors.New("no such file or directory")
	}

	_, err := transport.Open("/dev/missing", transport.Settings{}, opener, zerolog.Nop())
	require.Error(t, err)
	assert.Equal(t, failure.TypeOpen, failure.CommType(err))
	assert.Contains(t, err.Error(), "/dev/missing")
}
