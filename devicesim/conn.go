package devicesim

import (
	"os"
	"sync"
	"time"

	"go.bug.st/serial"
)

type chunk struct {
	data  []byte
	ready time.Time
}

// Conn is one open connection to a Device. It implements transport.Port.
type Conn struct {
	dev  *Device
	mute bool

	mu      sync.Mutex
	out     []chunk
	line    []byte
	timeout time.Duration
	closed  bool
	notify  chan struct{}
}

func newConn(d *Device, mute bool) *Conn {
	return &Conn{
		dev:     d,
		mute:    mute,
		timeout: serial.NoTimeout,
		notify:  make(chan struct{}, 1),
	}
}

func (c *Conn) wake() {
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// Write feeds bytes to the simulated firmware one character at a time.
func (c *Conn) Write(p []byte) (int, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0, os.ErrClosed
	}
	var lines []string
	for _, b := range p {
		switch {
		case b == '\r' || b == '\n':
			if !c.dev.cfg.echo && b == '\r' {
				continue
			}
			c.emit("\r\n", 0)
			lines = append(lines, string(c.line))
			c.line = c.line[:0]
		case b == 8:
			if len(c.line) > 0 {
				c.line = c.line[:len(c.line)-1]
				if c.dev.cfg.echo {
					c.emit("\x08 \x08", 0)
				}
			}
		default:
			c.line = append(c.line, b)
			if c.dev.cfg.echo {
				c.emit(string(b), 0)
			}
		}
	}
	c.mu.Unlock()

	for _, line := range lines {
		resp := c.dev.execute(line)
		c.mu.Lock()
		for _, r := range resp {
			c.emit(r.data, r.delay)
		}
		c.mu.Unlock()
	}
	c.wake()
	return len(p), nil
}

// emit queues output; the caller holds c.mu.
func (c *Conn) emit(s string, delay time.Duration) {
	if c.mute || c.dev.cfg.silent {
		return
	}
	ready := time.Now()
	if n := len(c.out); n > 0 && c.out[n-1].ready.After(ready) {
		ready = c.out[n-1].ready
	}
	c.out = append(c.out, chunk{data: []byte(s), ready: ready.Add(delay)})
}

// Read returns output that is ready. It returns (0, nil) when the read
// timeout passes without any, like go.bug.st/serial.
func (c *Conn) Read(p []byte) (int, error) {
	c.mu.Lock()
	timeout := c.timeout
	c.mu.Unlock()

	var deadline <-chan time.Time
	if timeout >= 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		deadline = t.C
	}

	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return 0, os.ErrClosed
		}
		n, wait := c.take(p)
		c.mu.Unlock()
		if n > 0 {
			return n, nil
		}

		var ready <-chan time.Time
		var t *time.Timer
		if wait > 0 {
			t = time.NewTimer(wait)
			ready = t.C
		}
		select {
		case <-deadline:
			stopTimer(t)
			return 0, nil
		case <-c.notify:
		case <-ready:
		}
		stopTimer(t)
	}
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}

// take copies ready output into p. When nothing is ready it returns the
// time until the next chunk is, or zero if no output is queued.
func (c *Conn) take(p []byte) (int, time.Duration) {
	now := time.Now()
	n := 0
	for len(c.out) > 0 && n < len(p) {
		head := &c.out[0]
		if head.ready.After(now) {
			if n == 0 {
				return 0, head.ready.Sub(now)
			}
			break
		}
		m := copy(p[n:], head.data)
		n += m
		head.data = head.data[m:]
		if len(head.data) == 0 {
			c.out = c.out[1:]
		}
	}
	return n, 0
}

func (c *Conn) SetReadTimeout(t time.Duration) error {
	c.mu.Lock()
	c.timeout = t
	c.mu.Unlock()
	return nil
}

// ResetInputBuffer discards output that is ready to be read.
func (c *Conn) ResetInputBuffer() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	for len(c.out) > 0 && !c.out[0].ready.After(now) {
		c.out = c.out[1:]
	}
	return nil
}

func (c *Conn) ResetOutputBuffer() error { return nil }

func (c *Conn) Drain() error { return nil }

func (c *Conn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.wake()
	return nil
}
