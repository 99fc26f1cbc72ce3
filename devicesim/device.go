package devicesim

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.bug.st/serial"

	"github.com/moffa90/go-28c256/protocol"
	"github.com/moffa90/go-28c256/transport"
)

const helpText = "Commands:\r\nblankcheck\r\nread [adr len]\r\nhelp\r\n" +
	"erase\r\nlock\r\nunlock\r\nsend intel hex to write\r\n"

// Device simulates the programmer firmware and the EEPROM behind it.
//
// A Device is safe for concurrent use. Connections obtained through
// Dialer share its memory.
type Device struct {
	mu     sync.Mutex
	cfg    config
	log    zerolog.Logger
	mem    [protocol.MemorySize]byte
	locked bool

	probes   int
	records  int
	commands []string
}

// New returns a simulated device with blank memory.
//
// Example:
//
//	dev := devicesim.New(devicesim.WithEcho())
//	prog := programmer.New("sim", programmer.WithTransportOptions(
//	    transport.WithDialer(dev.Dialer()),
//	))
func New(opts ...Option) *Device {
	d := &Device{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&d.cfg)
	}
	for i := range d.mem {
		d.mem[i] = protocol.BlankByte
	}
	return d
}

// SetLogger sets the logger used for command tracing.
func (d *Device) SetLogger(l zerolog.Logger) {
	d.mu.Lock()
	d.log = l.With().Str("component", "devicesim").Logger()
	d.mu.Unlock()
}

// Dialer returns a transport.Dialer that connects to this device
// regardless of the requested path.
func (d *Device) Dialer() transport.Dialer {
	return func(path string, mode *serial.Mode) (transport.Port, error) {
		if mode != nil && mode.BaudRate != protocol.DefaultBaudRate {
			d.log.Debug().Int("baud", mode.BaudRate).Msg("baud mismatch, device will not answer")
			return newConn(d, true), nil
		}
		return newConn(d, false), nil
	}
}

// Load copies b into memory starting at address 0.
func (d *Device) Load(b []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	copy(d.mem[:], b)
}

// Memory returns a copy of the device memory.
func (d *Device) Memory() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]byte, len(d.mem))
	copy(out, d.mem[:])
	return out
}

// Locked reports whether software data protection is enabled.
func (d *Device) Locked() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.locked
}

// RecordsWritten returns the number of data records programmed.
func (d *Device) RecordsWritten() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.records
}

// Commands returns every command line received, records included.
func (d *Device) Commands() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.commands...)
}

// response is one piece of output and the delay before it becomes
// readable, relative to the previous piece.
type response struct {
	data  string
	delay time.Duration
}

// execute runs one command line and returns the device output.
func (d *Device) execute(line string) []response {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.commands = append(d.commands, line)
	d.log.Trace().Str("line", line).Msg("command")

	if d.cfg.silent {
		return nil
	}

	line = strings.TrimSpace(line)
	if line == "" && d.probes < d.cfg.ignoreProbes {
		d.probes++
		return nil
	}

	var out []response
	if strings.HasPrefix(line, string(protocol.RecordStart)) {
		out = append(out, response{data: d.writeRecord(line)})
	} else {
		out = append(out, d.command(line)...)
	}
	out = append(out, response{data: "\r\n" + protocol.Prompt})

	if d.cfg.latency > 0 {
		out[0].delay += d.cfg.latency
	}
	return out
}

func (d *Device) command(line string) []response {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return nil
	}

	switch fields[0] {
	case protocol.CmdRead:
		return []response{{data: d.read(fields[1:])}}
	case protocol.CmdHelp, protocol.UnknownCommandReply:
		return []response{{data: helpText}}
	case protocol.CmdErase:
		if d.cfg.eraseFails {
			return []response{{data: "Erase failed\r\n", delay: d.cfg.eraseDuration}}
		}
		for i := range d.mem {
			d.mem[i] = protocol.BlankByte
		}
		return []response{{delay: d.cfg.eraseDuration}}
	case protocol.CmdLock:
		d.locked = true
	case protocol.CmdUnlock:
		d.locked = false
	case protocol.CmdBlankCheck:
		for _, b := range d.mem {
			if b != protocol.BlankByte {
				return []response{{data: "Not blank\r\n"}}
			}
		}
	default:
		return []response{{data: protocol.UnknownCommandReply}}
	}
	return nil
}

// read renders a full or ranged read the way the firmware does.
func (d *Device) read(args []string) string {
	var sb strings.Builder

	if len(args) == 0 {
		sb.WriteString(":020000040000FA\r\n")
		d.hexread(&sb, 0, protocol.MemorySize)
		if !d.cfg.omitEnd {
			sb.WriteString(protocol.EndOfFileLine + "\r\n")
		}
		return sb.String()
	}

	adr, err1 := strconv.ParseUint(args[0], 16, 16)
	n := uint64(protocol.MemorySize) - adr
	var err2 error
	if len(args) > 1 {
		n, err2 = strconv.ParseUint(args[1], 16, 16)
	}
	if err1 != nil || err2 != nil || adr >= protocol.MemorySize || n == 0 || n > protocol.MemorySize-adr {
		return "Invalid parameter(s)\r\n"
	}
	d.hexread(&sb, int(adr), int(n))
	return sb.String()
}

func (d *Device) hexread(sb *strings.Builder, adr, n int) {
	for n > 0 {
		count := min(n, protocol.ChunkSize)
		rec, _ := protocol.Encode(uint16(adr), d.mem[adr:adr+count])
		if d.cfg.corruptAt[uint16(adr)] {
			rec.Checksum++
		}
		sb.WriteString(rec.String())
		sb.WriteString("\r\n")
		adr += count
		n -= count
	}
}

// writeRecord applies one record line, returning any firmware message.
func (d *Device) writeRecord(line string) string {
	raw, ok := dehex(line[1:])
	if !ok || protocol.Sum(raw) != 0 {
		return "bad checksum\r\n"
	}
	if len(raw) < protocol.MinRecordSize {
		return ""
	}

	n := int(raw[0])
	adr := uint16(raw[1])<<8 | uint16(raw[2])
	switch protocol.RecordType(raw[3]) {
	case protocol.TypeData:
		data := raw[protocol.RecordHeaderSize : len(raw)-protocol.RecordChecksumSize]
		if n < len(data) {
			data = data[:n]
		}
		for i, b := range data {
			a := int(adr) + i
			if d.cfg.writeErrorAt[uint16(a)] || a >= protocol.MemorySize {
				return fmt.Sprintf("write error at %04X\r\n", a&0xFFFF)
			}
			d.mem[a] = b
		}
		d.records++
	case protocol.TypeEndOfFile, protocol.TypeExtendedLinear:
	default:
		return "unsupported record type\r\n"
	}
	return ""
}

func dehex(s string) ([]byte, bool) {
	if len(s)%2 != 0 {
		return nil, false
	}
	out := make([]byte, len(s)/2)
	for i := range out {
		v, err := strconv.ParseUint(s[2*i:2*i+2], 16, 8)
		if err != nil {
			return nil, false
		}
		out[i] = byte(v)
	}
	return out, true
}
