package programmer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/moffa90/go-28c256/memimage"
	"github.com/moffa90/go-28c256/protocol"
	"github.com/moffa90/go-28c256/transport"
)

// Total is the number of bytes an operation covers.
const Total = protocol.MemorySize

// eraseSteps is the number of cosmetic progress steps during an erase.
const eraseSteps = 20

// WriteSummary reports what Write sent to the device.
type WriteSummary struct {
	// Written is the number of records sent
	Written int

	// Skipped is the number of blank 16-byte chunks not sent
	Skipped int
}

// Programmer runs operations against the 28C256 programmer on one serial
// port. Each operation opens its own session and closes it before
// returning.
//
// Only one operation runs at a time; a second one fails with ErrBusy.
// Programmer is safe for concurrent use.
type Programmer struct {
	path   string
	config Config
	log    zerolog.Logger

	mu sync.Mutex
}

// New creates a Programmer for the serial port at path.
//
// Example:
//
//	prog := programmer.New("/dev/ttyUSB0",
//	    programmer.WithProgressCallback(progressFunc),
//	    programmer.WithVerifyAfterWrite(true),
//	)
func New(path string, opts ...Option) *Programmer {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Programmer{
		path:   path,
		config: cfg,
		log:    cfg.Logger.With().Str("port", path).Logger(),
	}
}

// Path returns the serial port path.
func (p *Programmer) Path() string { return p.path }

// Read reads the whole device into img. img is only replaced once the
// end-of-file record has arrived; on any error it is left untouched.
//
// Example:
//
//	img := memimage.New()
//	if err := prog.Read(ctx, img); err != nil {
//	    return err
//	}
//	err := memimage.Save("dump.hex", img)
func (p *Programmer) Read(ctx context.Context, img *memimage.Image) error {
	_, err := p.do(ctx, OpRead, img, nil)
	return err
}

// ReadRange reads length bytes starting at address into img with the
// firmware's ranged read. Cells outside the range keep their contents, and
// img is only updated once every requested byte has arrived.
//
// Example:
//
//	img := memimage.New()
//	err := prog.ReadRange(ctx, img, 0x7FF0, 16) // reset vectors
func (p *Programmer) ReadRange(ctx context.Context, img *memimage.Image, address uint16, length int) error {
	cmd, err := protocol.BuildReadRangeCommand(address, length)
	if err != nil {
		return fmt.Errorf("%s: %w", OpRead, err)
	}
	if !p.mu.TryLock() {
		return fmt.Errorf("%s: %w", OpRead, ErrBusy)
	}
	defer p.mu.Unlock()

	_, err = p.exec(ctx, OpRead, img, nil, func(ctx context.Context, s *transport.Session, tr *tracker) (WriteSummary, error) {
		return WriteSummary{}, p.readRange(ctx, s, img, cmd, int(address), length, tr)
	})
	return err
}

// Verify compares the device contents with img. It stops at the first
// record that differs and returns a *VerifyMismatchError listing the
// differing bytes of that record.
func (p *Programmer) Verify(ctx context.Context, img *memimage.Image) error {
	_, err := p.do(ctx, OpVerify, img, nil)
	return err
}

// Write erases the device and programs img in 16-byte records. Records
// that are entirely 0xFF are skipped since the erase already left them
// blank.
//
// Example:
//
//	img, _ := memimage.Load("firmware.bin")
//	sum, err := prog.Write(ctx, img)
//	fmt.Printf("%d records written, %d skipped\n", sum.Written, sum.Skipped)
func (p *Programmer) Write(ctx context.Context, img *memimage.Image) (WriteSummary, error) {
	return p.do(ctx, OpWrite, img, nil)
}

// BlankCheck asks the device whether every cell reads 0xFF. A non-blank
// device yields a *DeviceError carrying the firmware message.
func (p *Programmer) BlankCheck(ctx context.Context) error {
	_, err := p.do(ctx, OpBlankCheck, nil, nil)
	return err
}

// Erase performs a chip erase.
func (p *Programmer) Erase(ctx context.Context) error {
	_, err := p.do(ctx, OpErase, nil, nil)
	return err
}

// Lock enables software data protection.
func (p *Programmer) Lock(ctx context.Context) error {
	_, err := p.do(ctx, OpLock, nil, nil)
	return err
}

// Unlock disables software data protection.
func (p *Programmer) Unlock(ctx context.Context) error {
	_, err := p.do(ctx, OpUnlock, nil, nil)
	return err
}

// Run executes op and returns its Result. img is required for read,
// verify and write.
func (p *Programmer) Run(ctx context.Context, op Operation, img *memimage.Image) Result {
	start := time.Now()
	sum, err := p.do(ctx, op, img, nil)
	return Result{
		Operation: op,
		Status:    Classify(err),
		Err:       err,
		Summary:   sum,
		Elapsed:   time.Since(start),
	}
}

// do acquires the programmer and runs op.
func (p *Programmer) do(ctx context.Context, op Operation, img *memimage.Image, progress ProgressCallback) (WriteSummary, error) {
	if !p.mu.TryLock() {
		return WriteSummary{}, fmt.Errorf("%s: %w", op, ErrBusy)
	}
	defer p.mu.Unlock()
	return p.exec(ctx, op, img, progress, nil)
}

// body runs an operation on a synchronized session.
type body func(ctx context.Context, s *transport.Session, tr *tracker) (WriteSummary, error)

// exec runs op with the programmer already acquired. A nil run selects the
// standard implementation of op.
func (p *Programmer) exec(ctx context.Context, op Operation, img *memimage.Image, progress ProgressCallback, run body) (sum WriteSummary, err error) {
	start := time.Now()
	log := p.log.With().Str("op", op.String()).Logger()

	defer func() {
		res := Result{Operation: op, Status: Classify(err), Err: err, Summary: sum, Elapsed: time.Since(start)}
		if err != nil {
			log.Error().Err(err).Str("status", res.Status.String()).Dur("elapsed", res.Elapsed).Msg("operation failed")
		} else {
			log.Info().Dur("elapsed", res.Elapsed).Msg("operation complete")
		}
		if p.config.ResultCallback != nil {
			p.config.ResultCallback(res)
		}
	}()

	if needsImage(op) && img == nil {
		return sum, fmt.Errorf("%s: image cannot be nil", op)
	}

	s, err := transport.Open(ctx, p.path, p.transportOptions()...)
	if err != nil {
		return sum, fmt.Errorf("%s: %w", op, err)
	}
	defer s.Close()

	if err := s.Synchronize(ctx); err != nil {
		return sum, fmt.Errorf("%s: %w", op, err)
	}
	log.Debug().Msg("synchronized")

	tr := newTracker(op, p.config.ProgressCallback, progress)

	if run == nil {
		run = p.standard(op, img, progress)
	}
	sum, err = run(ctx, s, tr)
	if err != nil {
		return sum, fmt.Errorf("%s: %w", op, err)
	}
	return sum, nil
}

// standard returns the implementation of op.
func (p *Programmer) standard(op Operation, img *memimage.Image, progress ProgressCallback) body {
	return func(ctx context.Context, s *transport.Session, tr *tracker) (WriteSummary, error) {
		switch op {
		case OpRead:
			return WriteSummary{}, p.read(ctx, s, img, tr)
		case OpVerify:
			return WriteSummary{}, p.verify(ctx, s, img, tr)
		case OpWrite:
			return p.write(ctx, s, img, tr, progress)
		case OpBlankCheck:
			return WriteSummary{}, p.command(ctx, s, protocol.CmdBlankCheck, p.config.ResponseTimeout, tr, nil)
		case OpErase:
			return WriteSummary{}, p.erase(ctx, s, tr)
		case OpLock:
			return WriteSummary{}, p.toggle(ctx, s, protocol.CmdLock, tr)
		case OpUnlock:
			return WriteSummary{}, p.toggle(ctx, s, protocol.CmdUnlock, tr)
		default:
			return WriteSummary{}, fmt.Errorf("unknown operation %d", int(op))
		}
	}
}

func needsImage(op Operation) bool {
	return op == OpRead || op == OpVerify || op == OpWrite
}

func (p *Programmer) transportOptions() []transport.Option {
	opts := []transport.Option{transport.WithLogger(p.config.Logger)}
	return append(opts, p.config.TransportOptions...)
}

// lineReader applies the silence policy on top of a session: silent read
// windows are tolerated until timeout has passed since the last line.
type lineReader struct {
	s       *transport.Session
	timeout time.Duration
	last    time.Time

	// idle is called after every read window, with or without a line
	idle func()
}

func newLineReader(s *transport.Session, timeout time.Duration) *lineReader {
	return &lineReader{s: s, timeout: timeout, last: time.Now()}
}

func (r *lineReader) next(ctx context.Context) (string, error) {
	for {
		line, err := r.s.RecvLine(ctx)
		if r.idle != nil {
			r.idle()
		}
		if errors.Is(err, transport.ErrTimeout) {
			if time.Since(r.last) >= r.timeout {
				return "", fmt.Errorf("no response for %v: %w", r.timeout, ErrTimeout)
			}
			continue
		}
		if err != nil {
			return "", err
		}
		r.last = time.Now()
		return line, nil
	}
}

// read streams the device into a scratch image and replaces img with it
// once the end-of-file record arrives.
func (p *Programmer) read(ctx context.Context, s *transport.Session, img *memimage.Image, tr *tracker) error {
	if err := s.Send(ctx, protocol.CmdRead); err != nil {
		return err
	}

	scratch := memimage.New()
	r := newLineReader(s, p.config.ResponseTimeout)
	for {
		line, err := r.next(ctx)
		if err != nil {
			return err
		}

		switch protocol.Classify(line, protocol.CmdRead) {
		case protocol.LinePrompt:
			return &IncompleteReadError{Received: tr.current.Done}
		case protocol.LineRecord:
			rec, err := protocol.Decode(line)
			if err != nil {
				return &ProtocolError{Line: line, Err: err}
			}
			switch rec.Type {
			case protocol.TypeData:
				if err := scratch.SetBytes(int(rec.Address), rec.Data); err != nil {
					return &ProtocolError{Line: line, Err: err}
				}
				tr.advance(rec.End())
			case protocol.TypeEndOfFile:
				img.Replace(scratch)
				tr.advance(Total)
				return nil
			}
		}
	}
}

// readRange collects the records answering a ranged read command. The
// firmware sends no header or end record, so the prompt ends the reply.
func (p *Programmer) readRange(ctx context.Context, s *transport.Session, img *memimage.Image, cmd []byte, address, length int, tr *tracker) error {
	tr.limit(length)
	if err := s.SendLine(ctx, cmd); err != nil {
		return err
	}

	scratch := img.Clone()
	received := 0
	r := newLineReader(s, p.config.ResponseTimeout)
	for {
		line, err := r.next(ctx)
		if err != nil {
			return err
		}

		switch protocol.Classify(line, protocol.CmdRead) {
		case protocol.LinePrompt:
			if received < length {
				return &IncompleteReadError{Received: received}
			}
			img.Replace(scratch)
			tr.advance(length)
			return nil
		case protocol.LineRecord:
			rec, err := protocol.Decode(line)
			if err != nil {
				return &ProtocolError{Line: line, Err: err}
			}
			if rec.Type != protocol.TypeData {
				continue
			}
			if int(rec.Address) < address || rec.End() > address+length {
				return &ProtocolError{Line: line, Err: fmt.Errorf("record outside 0x%04X-0x%04X", address, address+length-1)}
			}
			if err := scratch.SetBytes(int(rec.Address), rec.Data); err != nil {
				return &ProtocolError{Line: line, Err: err}
			}
			received += int(rec.Length)
			tr.advance(received)
		}
	}
}

// verify streams the device and compares it with img.
func (p *Programmer) verify(ctx context.Context, s *transport.Session, img *memimage.Image, tr *tracker) error {
	if err := s.Send(ctx, protocol.CmdRead); err != nil {
		return err
	}

	expected := img.Bytes()
	r := newLineReader(s, p.config.ResponseTimeout)
	for {
		line, err := r.next(ctx)
		if err != nil {
			return err
		}

		switch protocol.Classify(line, protocol.CmdRead) {
		case protocol.LinePrompt:
			return nil
		case protocol.LineRecord:
			rec, err := protocol.Decode(line)
			if err != nil {
				return &ProtocolError{Line: line, Err: err}
			}
			switch rec.Type {
			case protocol.TypeData:
				var mismatches []Mismatch
				for i, b := range rec.Data {
					addr := int(rec.Address) + i
					if expected[addr] != b {
						mismatches = append(mismatches, Mismatch{Address: addr, Expected: expected[addr], Actual: b})
					}
				}
				tr.advance(rec.End())
				if len(mismatches) > 0 {
					return &VerifyMismatchError{Mismatches: mismatches}
				}
			case protocol.TypeEndOfFile:
				tr.advance(Total)
				return nil
			}
		}
	}
}

// write erases the device, then sends every non-blank chunk of img.
func (p *Programmer) write(ctx context.Context, s *transport.Session, img *memimage.Image, tr *tracker, progress ProgressCallback) (WriteSummary, error) {
	var sum WriteSummary

	if err := p.command(ctx, s, protocol.CmdErase, p.config.EraseTimeout, tr, nil); err != nil {
		return sum, fmt.Errorf("erase: %w", err)
	}
	if err := s.Synchronize(ctx); err != nil {
		return sum, err
	}

	data := img.Bytes()
	r := newLineReader(s, p.config.ResponseTimeout)
	for addr := 0; addr < Total; addr += protocol.ChunkSize {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		rec, err := protocol.Encode(uint16(addr), data[addr:addr+protocol.ChunkSize])
		if err != nil {
			return sum, err
		}
		if rec.IsBlank() {
			sum.Skipped++
			tr.countSkipped()
			tr.advance(addr + protocol.ChunkSize)
			continue
		}

		if err := s.SendLine(ctx, protocol.BuildRecordCommand(rec)); err != nil {
			return sum, err
		}
		for {
			line, err := r.next(ctx)
			if err != nil {
				return sum, fmt.Errorf("record at 0x%04X: %w", addr, err)
			}
			if protocol.IsPrompt(line) {
				break
			}
			if protocol.IsWriteFailure(line) {
				return sum, &DeviceError{Op: OpWrite, Address: addr, Message: line}
			}
		}

		sum.Written++
		tr.countWritten()
		tr.advance(addr + protocol.ChunkSize)
	}
	p.log.Debug().Int("written", sum.Written).Int("skipped", sum.Skipped).Msg("records sent")

	if p.config.VerifyAfterWrite {
		if err := s.Synchronize(ctx); err != nil {
			return sum, err
		}
		vt := newTracker(OpVerify, p.config.ProgressCallback, progress)
		if err := p.verify(ctx, s, img, vt); err != nil {
			return sum, fmt.Errorf("verify: %w", err)
		}
	}
	return sum, nil
}

// command sends verb and collects device text until the prompt. Any text
// other than the echoed verb is returned as a *DeviceError.
func (p *Programmer) command(ctx context.Context, s *transport.Session, verb string, timeout time.Duration, tr *tracker, idle func()) error {
	if err := s.Send(ctx, verb); err != nil {
		return err
	}

	r := newLineReader(s, timeout)
	r.idle = idle

	var msgs []string
	for {
		line, err := r.next(ctx)
		if err != nil {
			return err
		}
		kind := protocol.Classify(line, verb)
		if kind == protocol.LinePrompt {
			break
		}
		if kind == protocol.LineEcho || kind == protocol.LineEmpty {
			continue
		}
		msgs = append(msgs, line)
	}

	if len(msgs) > 0 {
		return &DeviceError{Op: opForVerb(verb), Address: -1, Message: strings.Join(msgs, "\n")}
	}
	if tr.op.String() == verb {
		tr.advance(Total)
	}
	return nil
}

// erase runs a chip erase with time-based progress.
func (p *Programmer) erase(ctx context.Context, s *transport.Session, tr *tracker) error {
	start := time.Now()
	steps := 0
	tick := func() {
		for steps < eraseSteps && time.Since(start) >= time.Duration(steps+1)*p.config.EraseTick {
			steps++
			tr.advance(steps * Total / eraseSteps)
		}
	}
	return p.command(ctx, s, protocol.CmdErase, p.config.EraseTimeout, tr, tick)
}

// toggle sends lock or unlock and discards the single line that follows.
func (p *Programmer) toggle(ctx context.Context, s *transport.Session, verb string, tr *tracker) error {
	if err := s.Send(ctx, verb); err != nil {
		return err
	}
	r := newLineReader(s, p.config.ResponseTimeout)
	if _, err := r.next(ctx); err != nil && !errors.Is(err, ErrTimeout) {
		return err
	}
	tr.advance(Total)
	return nil
}

func opForVerb(verb string) Operation {
	op, err := ParseOperation(verb)
	if err != nil {
		return OpWrite
	}
	return op
}
