// Package transporttest provides an in-memory serial port for tests.
package transporttest

import (
	"errors"
	"sync"
	"time"

	"gammascout/internal/transport"
)

// Responder returns the bytes the fake device sends back after receiving
// written. It may return nil.
type Responder func(written []byte) []byte

// Port is a scripted in-memory transport.Port.
type Port struct {
	mu          sync.Mutex
	written     []byte
	respond     Responder
	incoming    chan []byte
	pending     []byte
	closed      chan struct{}
	closeCount  int
	readTimeout time.Duration
	readErr     error
}

var _ transport.Port = (*Port)(nil)

// NewPort returns a port answering writes with respond.
func NewPort(respond Responder) *Port {
	return &Port{
		respond:     respond,
		incoming:    make(chan []byte, 1024),
		closed:      make(chan struct{}),
		readTimeout: 10 * time.Millisecond,
	}
}

// FailRead makes the next Read return err.
func (p *Port) FailRead(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readErr = err
}

// Feed queues data as if the device had sent it.
func (p *Port) Feed(data string) {
	p.incoming <- []byte(data)
}

func (p *Port) Read(buf []byte) (int, error) {
	p.mu.Lock()
	if err := p.readErr; err != nil {
		p.readErr = nil
		p.mu.Unlock()
		return 0, err
	}
	if len(p.pending) > 0 {
		n := copy(buf, p.pending)
		p.pending = p.pending[n:]
		p.mu.Unlock()
		return n, nil
	}
	timeout := p.readTimeout
	p.mu.Unlock()

	select {
	case <-p.closed:
		return 0, errors.New("port closed")
	case data := <-p.incoming:
		n := copy(buf, data)
		if n < len(data) {
			p.mu.Lock()
			p.pending = append(p.pending, data[n:]...)
			p.mu.Unlock()
		}
		return n, nil
	case <-time.After(timeout):
		return 0, nil
	}
}

func (p *Port) Write(data []byte) (int, error) {
	select {
	case <-p.closed:
		return 0, errors.New("port closed")
	default:
	}

	p.mu.Lock()
	p.written = append(p.written, data...)
	respond := p.respond
	p.mu.Unlock()

	if respond != nil {
		if answer := respond(data); len(answer) > 0 {
			p.incoming <- answer
		}
	}
	return len(data), nil
}

func (p *Port) SetReadTimeout(t time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readTimeout = t
	return nil
}

func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeCount++
	if p.closeCount == 1 {
		close(p.closed)
	}
	return nil
}

// Written returns everything written so far.
func (p *Port) Written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return string(p.written)
}

// CloseCount reports how often Close was called.
func (p *Port) CloseCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeCount
}

// Opener returns a transport.Opener that always yields p.
func (p *Port) Opener() transport.Opener {
	return func(string, transport.Settings) (transport.Port, error) {
		return p, nil
	}
}

// Commands answers single-byte commands from a table, each reply framed
// as the device does: an empty datagram followed by the text lines.
func Commands(replies map[string][]string) Responder {
	return func(written []byte) []byte {
		lines, ok := replies[string(written)]
		if !ok {
			return nil
		}
		out := "\r\n"
		for _, l := range lines {
			out += l + "\r\n"
		}
		return []byte(out)
	}
}
