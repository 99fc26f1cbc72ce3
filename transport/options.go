package transport

import (
	"time"

	"github.com/rs/zerolog"
	"go.bug.st/serial/enumerator"

	"github.com/moffa90/go-28c256/protocol"
)

// Default USB identity of the FTDI FT232R bridge on the programmer board.
const (
	DefaultVID = "0403"
	DefaultPID = "6001"
)

// Config holds the session configuration.
type Config struct {
	// BaudRate of the serial line
	BaudRate int

	// ReadTimeout is the length of one read window. A window that passes
	// without a byte counts as silence.
	ReadTimeout time.Duration

	// SyncAttempts is how many empty commands are sent before giving up
	SyncAttempts int

	// SyncDelay is the pause between sync attempts and before the buffers
	// are flushed after a successful sync
	SyncDelay time.Duration

	// Dialer opens the port. Defaults to SerialDialer.
	Dialer Dialer

	// Logger receives lifecycle events at debug level and wire lines at trace level
	Logger zerolog.Logger

	// VID and PID select USB candidates during discovery (hex, no prefix)
	VID string
	PID string

	// PortLister enumerates serial ports for discovery.
	// Defaults to enumerator.GetDetailedPortsList.
	PortLister PortLister
}

// PortLister returns the serial ports present on the system.
type PortLister func() ([]*enumerator.PortDetails, error)

func defaultConfig() Config {
	return Config{
		BaudRate:     protocol.DefaultBaudRate,
		ReadTimeout:  200 * time.Millisecond,
		SyncAttempts: 3,
		SyncDelay:    50 * time.Millisecond,
		Dialer:       SerialDialer,
		Logger:       zerolog.Nop(),
		VID:          DefaultVID,
		PID:          DefaultPID,
		PortLister:   enumerator.GetDetailedPortsList,
	}
}

func newConfig(opts []Option) Config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Option is a functional option for configuring a Session.
type Option func(*Config)

// WithBaudRate sets the line speed. Default is 38400.
func WithBaudRate(baud int) Option {
	return func(c *Config) {
		if baud > 0 {
			c.BaudRate = baud
		}
	}
}

// WithReadTimeout sets the read window. Default is 200ms.
//
// Example:
//
//	s, err := transport.Open(ctx, "/dev/ttyUSB0", transport.WithReadTimeout(500*time.Millisecond))
func WithReadTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		if timeout > 0 {
			c.ReadTimeout = timeout
		}
	}
}

// WithSyncAttempts sets the number of sync probes. Default is 3.
func WithSyncAttempts(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.SyncAttempts = n
		}
	}
}

// WithSyncDelay sets the pause used by the sync handshake. Default is 50ms.
func WithSyncDelay(d time.Duration) Option {
	return func(c *Config) {
		if d >= 0 {
			c.SyncDelay = d
		}
	}
}

// WithDialer replaces the function used to open ports.
//
// Example:
//
//	dev := devicesim.New()
//	s, err := transport.Open(ctx, "sim", transport.WithDialer(dev.Dialer()))
func WithDialer(d Dialer) Option {
	return func(c *Config) {
		if d != nil {
			c.Dialer = d
		}
	}
}

// WithLogger sets the logger for session events.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithUSBID sets the USB vendor and product IDs used by discovery.
func WithUSBID(vid, pid string) Option {
	return func(c *Config) {
		if vid != "" {
			c.VID = vid
		}
		if pid != "" {
			c.PID = pid
		}
	}
}

// WithPortLister replaces the port enumerator used by discovery.
func WithPortLister(l PortLister) Option {
	return func(c *Config) {
		if l != nil {
			c.PortLister = l
		}
	}
}
