package programmer

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/moffa90/go-28c256/devicesim"
	"github.com/moffa90/go-28c256/memimage"
	"github.com/moffa90/go-28c256/protocol"
	"github.com/moffa90/go-28c256/transport"
)

func newTestProgrammer(t *testing.T, dev *devicesim.Device, opts ...Option) *Programmer {
	t.Helper()
	logger := zerolog.New(zerolog.NewTestWriter(t))
	dev.SetLogger(logger)

	base := []Option{
		WithLogger(logger),
		WithResponseTimeout(500 * time.Millisecond),
		WithTransportOptions(
			transport.WithDialer(dev.Dialer()),
			transport.WithReadTimeout(10*time.Millisecond),
			transport.WithSyncDelay(time.Millisecond),
		),
	}
	return New("sim", append(base, opts...)...)
}

// progressLog collects progress updates per operation.
type progressLog struct {
	mu      sync.Mutex
	updates []Progress
}

func (l *progressLog) callback(p Progress) {
	l.mu.Lock()
	l.updates = append(l.updates, p)
	l.mu.Unlock()
}

func (l *progressLog) check(t *testing.T) {
	t.Helper()
	l.mu.Lock()
	defer l.mu.Unlock()

	last := map[Operation]int{}
	for _, p := range l.updates {
		if p.Done < last[p.Operation] {
			t.Fatalf("%s progress went backwards: %d after %d", p.Operation, p.Done, last[p.Operation])
		}
		if p.Done > p.Total || p.Total != protocol.MemorySize {
			t.Fatalf("progress out of range: %+v", p)
		}
		last[p.Operation] = p.Done
	}
}

func (l *progressLog) final(op Operation) (Progress, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.updates) - 1; i >= 0; i-- {
		if l.updates[i].Operation == op {
			return l.updates[i], true
		}
	}
	return Progress{}, false
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		options []Option
		check   func(t *testing.T, c Config)
	}{
		{
			name: "defaults",
			check: func(t *testing.T, c Config) {
				if c.ResponseTimeout != 2*time.Second || c.EraseTimeout != 30*time.Second || c.EraseTick != time.Second {
					t.Errorf("unexpected defaults: %+v", c)
				}
				if c.VerifyAfterWrite {
					t.Error("VerifyAfterWrite should default to false")
				}
			},
		},
		{
			name: "with all options",
			options: []Option{
				WithProgressCallback(func(Progress) {}),
				WithResultCallback(func(Result) {}),
				WithLogger(zerolog.Nop()),
				WithResponseTimeout(time.Second),
				WithEraseTimeout(time.Minute),
				WithEraseTick(100 * time.Millisecond),
				WithVerifyAfterWrite(true),
				WithTransportOptions(transport.WithBaudRate(38400)),
			},
			check: func(t *testing.T, c Config) {
				if c.ResponseTimeout != time.Second || c.EraseTimeout != time.Minute || c.EraseTick != 100*time.Millisecond {
					t.Errorf("timeouts not applied: %+v", c)
				}
				if !c.VerifyAfterWrite || c.ProgressCallback == nil || c.ResultCallback == nil {
					t.Error("options not applied")
				}
				if len(c.TransportOptions) != 1 {
					t.Errorf("TransportOptions = %d, want 1", len(c.TransportOptions))
				}
			},
		},
		{
			name:    "invalid values are ignored",
			options: []Option{WithResponseTimeout(0), WithEraseTimeout(-1), WithEraseTick(0)},
			check: func(t *testing.T, c Config) {
				if c.ResponseTimeout != 2*time.Second || c.EraseTimeout != 30*time.Second || c.EraseTick != time.Second {
					t.Errorf("invalid values changed config: %+v", c)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog := New("/dev/ttyUSB0", tt.options...)
			if prog.Path() != "/dev/ttyUSB0" {
				t.Errorf("Path() = %q", prog.Path())
			}
			tt.check(t, prog.config)
		})
	}
}

func TestWriteThenRead(t *testing.T) {
	dev := devicesim.New()
	var progress progressLog
	prog := newTestProgrammer(t, dev, WithProgressCallback(progress.callback))
	ctx := context.Background()

	img := memimage.New()
	_ = img.Set(0x0010, 0x42)

	sum, err := prog.Write(ctx, img)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if sum.Written != 1 || sum.Skipped != 2047 {
		t.Errorf("Write() summary = %+v, want 1 written, 2047 skipped", sum)
	}
	if dev.RecordsWritten() != 1 {
		t.Errorf("device received %d records, want 1", dev.RecordsWritten())
	}

	back := memimage.New()
	back.Fill(0x00)
	if err := prog.Read(ctx, back); err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if !back.Equal(img) {
		t.Errorf("read back image differs at %v", back.Diff(img))
	}
	if b, _ := back.Get(0x0010); b != 0x42 {
		t.Errorf("0x0010 = 0x%02X, want 0x42", b)
	}

	progress.check(t)
	for _, op := range []Operation{OpWrite, OpRead} {
		p, ok := progress.final(op)
		if !ok || p.Done != Total || p.Percentage != 100 {
			t.Errorf("%s final progress = %+v", op, p)
		}
	}
	if p, _ := progress.final(OpWrite); p.Written != 1 || p.Skipped != 2047 {
		t.Errorf("write progress counters = %+v", p)
	}
}

func TestWriteSkipsBlankChunks(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(img *memimage.Image)
		wantWritten int
	}{
		{name: "blank image", setup: func(*memimage.Image) {}, wantWritten: 0},
		{name: "one byte", setup: func(img *memimage.Image) { _ = img.Set(0x7FFF, 0x00) }, wantWritten: 1},
		{
			name: "two rows",
			setup: func(img *memimage.Image) {
				_ = img.SetBytes(0x0100, []byte("hello"))
				_ = img.SetBytes(0x4000, []byte("world"))
			},
			wantWritten: 2,
		},
		{name: "full image", setup: func(img *memimage.Image) { img.Fill(0x00) }, wantWritten: 2048},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := devicesim.New()
			prog := newTestProgrammer(t, dev)

			img := memimage.New()
			tt.setup(img)

			sum, err := prog.Write(context.Background(), img)
			if err != nil {
				t.Fatalf("Write() error = %v", err)
			}
			if sum.Written != tt.wantWritten || sum.Written+sum.Skipped != 2048 {
				t.Errorf("summary = %+v, want %d written", sum, tt.wantWritten)
			}
			if dev.RecordsWritten() != tt.wantWritten {
				t.Errorf("device received %d records, want %d", dev.RecordsWritten(), tt.wantWritten)
			}
			if !bytes.Equal(dev.Memory(), img.Bytes()) {
				t.Error("device memory differs from image")
			}
		})
	}
}

func TestWriteErasesFirst(t *testing.T) {
	dev := devicesim.New()
	dev.Load(bytes.Repeat([]byte{0x00}, protocol.MemorySize))
	prog := newTestProgrammer(t, dev)

	if _, err := prog.Write(context.Background(), memimage.New()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if !bytes.Equal(dev.Memory(), memimage.New().Bytes()) {
		t.Error("device should be blank after writing a blank image")
	}
	if cmds := dev.Commands(); len(cmds) < 2 || cmds[1] != protocol.CmdErase {
		t.Errorf("commands = %q, want erase after sync", cmds)
	}
}

func TestWriteWithVerify(t *testing.T) {
	dev := devicesim.New()
	var progress progressLog
	prog := newTestProgrammer(t, dev,
		WithVerifyAfterWrite(true),
		WithProgressCallback(progress.callback),
	)

	img := memimage.New()
	_ = img.SetBytes(0x2000, []byte{1, 2, 3})

	if _, err := prog.Write(context.Background(), img); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	progress.check(t)
	if p, ok := progress.final(OpVerify); !ok || p.Done != Total {
		t.Errorf("verify progress = %+v", p)
	}
}

func TestWriteDeviceError(t *testing.T) {
	dev := devicesim.New(devicesim.WithWriteErrorAt(0x0012))
	prog := newTestProgrammer(t, dev)

	img := memimage.New()
	_ = img.SetBytes(0x0010, []byte{1, 2, 3, 4})
	_ = img.Set(0x0100, 0x55)

	sum, err := prog.Write(context.Background(), img)

	var devErr *DeviceError
	if !errors.As(err, &devErr) {
		t.Fatalf("expected DeviceError, got %v", err)
	}
	if devErr.Message != "write error at 0012" {
		t.Errorf("Message = %q, want verbatim device text", devErr.Message)
	}
	if devErr.Address != 0x0010 || devErr.Op != OpWrite {
		t.Errorf("DeviceError = %+v", devErr)
	}
	if sum.Written != 0 {
		t.Errorf("Written = %d, want 0", sum.Written)
	}
	if Classify(err) != StatusDeviceError {
		t.Errorf("Classify() = %v", Classify(err))
	}
}

func TestVerify(t *testing.T) {
	t.Run("identical", func(t *testing.T) {
		dev := devicesim.New()
		dev.Load([]byte("28C256"))
		prog := newTestProgrammer(t, dev)

		img, _ := memimage.FromBytes([]byte("28C256"))
		if err := prog.Verify(context.Background(), img); err != nil {
			t.Errorf("Verify() error = %v", err)
		}
	})

	t.Run("difference at 0x1234", func(t *testing.T) {
		dev := devicesim.New()
		mem := dev.Memory()
		mem[0x1234] = 0x00
		mem[0x1236] = 0x01
		dev.Load(mem)
		prog := newTestProgrammer(t, dev)

		err := prog.Verify(context.Background(), memimage.New())

		var mismatch *VerifyMismatchError
		if !errors.As(err, &mismatch) {
			t.Fatalf("expected VerifyMismatchError, got %v", err)
		}
		first := mismatch.First()
		if first.Address != 0x1234 || first.Expected != 0xFF || first.Actual != 0x00 {
			t.Errorf("First() = %+v", first)
		}
		if len(mismatch.Mismatches) != 2 {
			t.Errorf("Mismatches = %+v, want both bytes of the record", mismatch.Mismatches)
		}
		if Classify(err) != StatusVerifyMismatch {
			t.Errorf("Classify() = %v", Classify(err))
		}
	})
}

func TestReadChecksumError(t *testing.T) {
	dev := devicesim.New(devicesim.WithCorruptRecordAt(0x0100))
	prog := newTestProgrammer(t, dev)

	img := memimage.New()
	_ = img.Set(0, 0x12)

	err := prog.Read(context.Background(), img)

	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("expected ProtocolError, got %v", err)
	}
	if !errors.Is(err, protocol.ErrChecksum) {
		t.Errorf("error should match protocol.ErrChecksum: %v", err)
	}
	if b, _ := img.Get(0); b != 0x12 {
		t.Error("image must be untouched after a failed read")
	}
	if Classify(err) != StatusProtocolError {
		t.Errorf("Classify() = %v", Classify(err))
	}
}

func TestReadIncomplete(t *testing.T) {
	dev := devicesim.New(devicesim.WithOmitEndRecord())
	dev.Load([]byte{0x00})
	prog := newTestProgrammer(t, dev)

	img := memimage.New()
	err := prog.Read(context.Background(), img)

	var incomplete *IncompleteReadError
	if !errors.As(err, &incomplete) {
		t.Fatalf("expected IncompleteReadError, got %v", err)
	}
	if incomplete.Received != Total {
		t.Errorf("Received = %d, want %d", incomplete.Received, Total)
	}
	if !img.IsBlank() {
		t.Error("image must be untouched after an incomplete read")
	}
}

func TestReadRange(t *testing.T) {
	content := make([]byte, 0x40)
	for i := range content {
		content[i] = byte(i)
	}
	dev := devicesim.New()
	dev.Load(content)

	var log progressLog
	prog := newTestProgrammer(t, dev, WithProgressCallback(log.callback))

	img := memimage.New()
	img.Fill(0xAA)
	if err := prog.ReadRange(context.Background(), img, 0x0008, 0x14); err != nil {
		t.Fatalf("ReadRange() error = %v", err)
	}

	got, _ := img.Chunk(0x0007, 0x16)
	want := append(append([]byte{0xAA}, content[0x08:0x1C]...), 0xAA)
	if !bytes.Equal(got, want) {
		t.Errorf("image = % X\nwant    % X", got, want)
	}

	last, ok := log.final(OpRead)
	if !ok || last.Done != 0x14 || last.Total != 0x14 || last.Percentage != 100 {
		t.Errorf("final progress = %+v", last)
	}
	if cmds := dev.Commands(); len(cmds) == 0 || cmds[len(cmds)-1] != "read 8 14" {
		t.Errorf("commands = %q", cmds)
	}
}

func TestReadRangeErrors(t *testing.T) {
	t.Run("past end of device", func(t *testing.T) {
		dev := devicesim.New()
		prog := newTestProgrammer(t, dev)

		err := prog.ReadRange(context.Background(), memimage.New(), 0x7FFF, 2)
		if !errors.Is(err, protocol.ErrAddressOutOfRange) {
			t.Fatalf("expected ErrAddressOutOfRange, got %v", err)
		}
		if len(dev.Commands()) != 0 {
			t.Errorf("nothing should be sent, got %q", dev.Commands())
		}
	})

	t.Run("corrupt record", func(t *testing.T) {
		dev := devicesim.New(devicesim.WithCorruptRecordAt(0x0100))
		prog := newTestProgrammer(t, dev)

		img := memimage.New()
		err := prog.ReadRange(context.Background(), img, 0x0100, 16)
		var perr *ProtocolError
		if !errors.As(err, &perr) || !errors.Is(err, protocol.ErrChecksum) {
			t.Fatalf("expected checksum ProtocolError, got %v", err)
		}
		if Classify(err) != StatusProtocolError {
			t.Errorf("Classify() = %v", Classify(err))
		}
	})
}

func TestReadWithEcho(t *testing.T) {
	dev := devicesim.New(devicesim.WithEcho())
	dev.Load([]byte("echo"))
	prog := newTestProgrammer(t, dev)

	img := memimage.New()
	if err := prog.Read(context.Background(), img); err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if !bytes.Equal(img.Bytes(), dev.Memory()) {
		t.Error("image differs from device")
	}
}

func TestBlankCheck(t *testing.T) {
	tests := []struct {
		name    string
		opts    []devicesim.Option
		content []byte
		wantErr string
	}{
		{name: "blank"},
		{name: "blank with echo", opts: []devicesim.Option{devicesim.WithEcho()}},
		{name: "not blank", content: []byte{0x00}, wantErr: "Not blank"},
		{name: "not blank with echo", opts: []devicesim.Option{devicesim.WithEcho()}, content: []byte{0x00}, wantErr: "Not blank"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := devicesim.New(tt.opts...)
			dev.Load(tt.content)
			prog := newTestProgrammer(t, dev)

			err := prog.BlankCheck(context.Background())
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("BlankCheck() error = %v", err)
				}
				return
			}

			var devErr *DeviceError
			if !errors.As(err, &devErr) {
				t.Fatalf("expected DeviceError, got %v", err)
			}
			if devErr.Message != tt.wantErr || devErr.Op != OpBlankCheck {
				t.Errorf("DeviceError = %+v", devErr)
			}
		})
	}
}

func TestErase(t *testing.T) {
	dev := devicesim.New(devicesim.WithEraseDuration(150 * time.Millisecond))
	dev.Load([]byte{0x00, 0x11})

	var progress progressLog
	prog := newTestProgrammer(t, dev,
		WithEraseTick(20*time.Millisecond),
		WithProgressCallback(progress.callback),
	)

	if err := prog.Erase(context.Background()); err != nil {
		t.Fatalf("Erase() error = %v", err)
	}
	if !bytes.Equal(dev.Memory(), memimage.New().Bytes()) {
		t.Error("device should be blank after erase")
	}

	progress.check(t)
	progress.mu.Lock()
	n := len(progress.updates)
	progress.mu.Unlock()
	if n < 3 {
		t.Errorf("expected time-based erase progress, got %d updates", n)
	}
	if p, _ := progress.final(OpErase); p.Done != Total {
		t.Errorf("final erase progress = %+v", p)
	}
}

func TestEraseFailure(t *testing.T) {
	dev := devicesim.New(devicesim.WithEraseFailure(), devicesim.WithEcho())
	prog := newTestProgrammer(t, dev)

	err := prog.Erase(context.Background())
	var devErr *DeviceError
	if !errors.As(err, &devErr) || devErr.Message != "Erase failed" {
		t.Fatalf("expected Erase failed DeviceError, got %v", err)
	}
}

func TestEraseTimeout(t *testing.T) {
	dev := devicesim.New(devicesim.WithEraseDuration(time.Second))
	prog := newTestProgrammer(t, dev, WithEraseTimeout(100*time.Millisecond))

	err := prog.Erase(context.Background())
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if Classify(err) != StatusTimeout {
		t.Errorf("Classify() = %v", Classify(err))
	}
}

func TestLockUnlock(t *testing.T) {
	dev := devicesim.New()
	prog := newTestProgrammer(t, dev)
	ctx := context.Background()

	if err := prog.Lock(ctx); err != nil {
		t.Fatalf("Lock() error = %v", err)
	}
	if !dev.Locked() {
		t.Error("device should be locked")
	}
	if err := prog.Unlock(ctx); err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}
	if dev.Locked() {
		t.Error("device should be unlocked")
	}
}

func TestNotSynced(t *testing.T) {
	dev := devicesim.New(devicesim.WithSilent())
	prog := newTestProgrammer(t, dev)

	err := prog.BlankCheck(context.Background())
	if !errors.Is(err, transport.ErrNotSynced) {
		t.Fatalf("expected ErrNotSynced, got %v", err)
	}
	if Classify(err) != StatusTimeout {
		t.Errorf("Classify() = %v", Classify(err))
	}
}

func TestNilImage(t *testing.T) {
	prog := newTestProgrammer(t, devicesim.New())

	if err := prog.Read(context.Background(), nil); err == nil {
		t.Error("Read(nil) should fail")
	}
	if _, err := prog.Write(context.Background(), nil); err == nil {
		t.Error("Write(nil) should fail")
	}
}

func TestResultCallback(t *testing.T) {
	var results []Result
	dev := devicesim.New()
	prog := newTestProgrammer(t, dev, WithResultCallback(func(r Result) {
		results = append(results, r)
	}))

	_ = prog.Lock(context.Background())
	dev.Load([]byte{0})
	_ = prog.BlankCheck(context.Background())

	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Operation != OpLock || !results[0].OK() {
		t.Errorf("lock result = %+v", results[0])
	}
	if results[1].Operation != OpBlankCheck || results[1].Status != StatusDeviceError {
		t.Errorf("blankcheck result = %+v", results[1])
	}
}

func TestRun(t *testing.T) {
	dev := devicesim.New()
	prog := newTestProgrammer(t, dev)

	img := memimage.New()
	_ = img.Set(0x10, 0x42)

	res := prog.Run(context.Background(), OpWrite, img)
	if !res.OK() || res.Summary.Written != 1 || res.Operation != OpWrite {
		t.Errorf("Run(write) = %+v", res)
	}
}
