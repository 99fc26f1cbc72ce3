package devicesim

import "time"

type config struct {
	echo          bool
	latency       time.Duration
	eraseDuration time.Duration
	ignoreProbes  int
	silent        bool
	omitEnd       bool
	eraseFails    bool
	corruptAt     map[uint16]bool
	writeErrorAt  map[uint16]bool
}

// Option configures a simulated Device.
type Option func(*config)

// WithEcho makes the device behave like the real firmware on a terminal:
// typed characters are echoed, and CR and LF each end a command line, so
// a CR-LF terminated command is followed by a second, empty command and a
// second prompt.
func WithEcho() Option {
	return func(c *config) { c.echo = true }
}

// WithLatency delays every response by d.
func WithLatency(d time.Duration) Option {
	return func(c *config) { c.latency = d }
}

// WithEraseDuration sets how long a chip erase takes before the prompt.
func WithEraseDuration(d time.Duration) Option {
	return func(c *config) { c.eraseDuration = d }
}

// WithSyncAfterProbes makes the device ignore the first n empty commands.
func WithSyncAfterProbes(n int) Option {
	return func(c *config) { c.ignoreProbes = n }
}

// WithSilent makes the device swallow all input without answering.
func WithSilent() Option {
	return func(c *config) { c.silent = true }
}

// WithOmitEndRecord drops the end-of-file record from full reads.
func WithOmitEndRecord() Option {
	return func(c *config) { c.omitEnd = true }
}

// WithEraseFailure makes every erase report "Erase failed".
func WithEraseFailure() Option {
	return func(c *config) { c.eraseFails = true }
}

// WithCorruptRecordAt corrupts the checksum of the read record that starts
// at address.
func WithCorruptRecordAt(address uint16) Option {
	return func(c *config) {
		if c.corruptAt == nil {
			c.corruptAt = make(map[uint16]bool)
		}
		c.corruptAt[address] = true
	}
}

// WithWriteErrorAt makes writes covering address fail with the firmware's
// "write error at XXXX" message.
func WithWriteErrorAt(address uint16) Option {
	return func(c *config) {
		if c.writeErrorAt == nil {
			c.writeErrorAt = make(map[uint16]bool)
		}
		c.writeErrorAt[address] = true
	}
}
