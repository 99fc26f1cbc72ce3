package transport

import (
	"context"
	"fmt"
	"strings"

	"go.bug.st/serial/enumerator"
)

// Candidate is a serial port that looks like a programmer.
type Candidate struct {
	Path    string
	VID     string
	PID     string
	Product string
	Serial  string
}

func (c Candidate) String() string {
	if c.VID == "" {
		return c.Path
	}
	return fmt.Sprintf("%s (%s:%s %s)", c.Path, c.VID, c.PID, c.Product)
}

// Candidates lists the USB serial ports whose VID/PID match the configured
// identity (FTDI FT232R by default) or whose product string names an
// FT232R. Ports are not opened.
func Candidates(opts ...Option) ([]Candidate, error) {
	cfg := newConfig(opts)

	ports, err := cfg.PortLister()
	if err != nil {
		return nil, fmt.Errorf("enumerate ports: %w", err)
	}

	var out []Candidate
	for _, p := range ports {
		if !matches(p, cfg) {
			continue
		}
		out = append(out, Candidate{
			Path:    p.Name,
			VID:     p.VID,
			PID:     p.PID,
			Product: p.Product,
			Serial:  p.SerialNumber,
		})
	}
	return out, nil
}

func matches(p *enumerator.PortDetails, cfg Config) bool {
	if p == nil || !p.IsUSB {
		return false
	}
	if strings.EqualFold(p.VID, cfg.VID) && strings.EqualFold(p.PID, cfg.PID) {
		return true
	}
	return strings.Contains(strings.ToLower(p.Product), "ft232r")
}

// FindPort probes every candidate and returns the first one that answers
// the sync handshake.
//
// Example:
//
//	path, err := transport.FindPort(ctx)
//	if errors.Is(err, transport.ErrNoProgrammer) {
//	    log.Fatal("is the programmer plugged in?")
//	}
func FindPort(ctx context.Context, opts ...Option) (string, error) {
	cfg := newConfig(opts)

	candidates, err := Candidates(opts...)
	if err != nil {
		return "", err
	}

	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		cfg.Logger.Debug().Str("port", c.Path).Str("product", c.Product).Msg("probing")
		if Probe(ctx, c.Path, opts...) {
			cfg.Logger.Info().Str("port", c.Path).Msg("programmer found")
			return c.Path, nil
		}
	}
	return "", ErrNoProgrammer
}
