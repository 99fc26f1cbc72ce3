package programmer

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/moffa90/go-28c256/transport"
)

// Config holds the programmer configuration.
type Config struct {
	// ProgressCallback is called during operations to report progress (optional)
	ProgressCallback ProgressCallback

	// ResultCallback is called once per finished operation (optional)
	ResultCallback ResultCallback

	// Logger is used for logging operations
	Logger zerolog.Logger

	// ResponseTimeout is how long the device may stay silent before an
	// operation fails with ErrTimeout
	ResponseTimeout time.Duration

	// EraseTimeout replaces ResponseTimeout while a chip erase runs
	EraseTimeout time.Duration

	// EraseTick is the interval of the time-based erase progress
	EraseTick time.Duration

	// VerifyAfterWrite reads the device back after Write
	VerifyAfterWrite bool

	// TransportOptions are passed to transport.Open for every operation
	TransportOptions []transport.Option
}

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		Logger:          zerolog.Nop(),
		ResponseTimeout: 2 * time.Second,
		EraseTimeout:    30 * time.Second,
		EraseTick:       time.Second,
	}
}

// Option is a functional option for configuring the Programmer.
type Option func(*Config)

// WithProgressCallback sets a callback function to track progress.
//
// Example:
//
//	prog := programmer.New("/dev/ttyUSB0",
//	    programmer.WithProgressCallback(func(p programmer.Progress) {
//	        fmt.Printf("%s %.1f%%\n", p.Operation, p.Percentage)
//	    }),
//	)
func WithProgressCallback(callback ProgressCallback) Option {
	return func(c *Config) {
		c.ProgressCallback = callback
	}
}

// WithResultCallback sets a callback invoked with the Result of every
// operation, successful or not.
func WithResultCallback(callback ResultCallback) Option {
	return func(c *Config) {
		c.ResultCallback = callback
	}
}

// WithLogger sets the logger for programmer operations. It is also handed
// to the transport session unless the transport options set their own.
//
// Example:
//
//	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
//	prog := programmer.New("/dev/ttyUSB0", programmer.WithLogger(logger))
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithResponseTimeout sets how long the device may stay silent.
// Default is 2s.
func WithResponseTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		if timeout > 0 {
			c.ResponseTimeout = timeout
		}
	}
}

// WithEraseTimeout sets how long a chip erase may take. Default is 30s.
func WithEraseTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		if timeout > 0 {
			c.EraseTimeout = timeout
		}
	}
}

// WithEraseTick sets the interval of erase progress updates. Default is 1s.
func WithEraseTick(tick time.Duration) Option {
	return func(c *Config) {
		if tick > 0 {
			c.EraseTick = tick
		}
	}
}

// WithVerifyAfterWrite enables a full read-back after Write.
// Default is false.
//
// Example:
//
//	prog := programmer.New(port, programmer.WithVerifyAfterWrite(true))
func WithVerifyAfterWrite(verify bool) Option {
	return func(c *Config) {
		c.VerifyAfterWrite = verify
	}
}

// WithTransportOptions adds options for the serial session, such as a
// custom dialer or read timeout.
//
// Example:
//
//	dev := devicesim.New()
//	prog := programmer.New("sim",
//	    programmer.WithTransportOptions(transport.WithDialer(dev.Dialer())),
//	)
func WithTransportOptions(opts ...transport.Option) Option {
	return func(c *Config) {
		c.TransportOptions = append(c.TransportOptions, opts...)
	}
}
