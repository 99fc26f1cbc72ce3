// Package programmer runs operations against a 28C256 EEPROM programmer.
//
// The Programmer opens a transport session for every operation,
// synchronizes with the firmware, runs the operation and always closes the
// session again. Supported operations are Read, Verify, Write, BlankCheck,
// Erase, Lock and Unlock, plus ReadRange for part of the chip. Only one
// operation runs at a time.
//
// Basic usage:
//
//	prog := programmer.New("/dev/ttyUSB0")
//
//	img, err := memimage.Load("firmware.bin")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if _, err := prog.Write(ctx, img); err != nil {
//	    log.Fatal(err)
//	}
//	if err := prog.Verify(ctx, img); err != nil {
//	    var mismatch *programmer.VerifyMismatchError
//	    if errors.As(err, &mismatch) {
//	        log.Fatalf("first difference at 0x%04X", mismatch.First().Address)
//	    }
//	    log.Fatal(err)
//	}
//
// # Progress
//
// Progress is reported in bytes from 0 to 32768 and never decreases within
// an operation:
//
//	prog := programmer.New(port,
//	    programmer.WithProgressCallback(func(p programmer.Progress) {
//	        fmt.Printf("\r%s %5.1f%%", p.Operation, p.Percentage)
//	    }),
//	)
//
// Erase progress is derived from elapsed time since the firmware reports
// nothing until the erase is done.
//
// # Background operations
//
// Start runs an operation in a goroutine and returns a Job with a
// progress channel, a done channel and Cancel.
//
// # Errors
//
// Operations return typed errors that can be inspected with errors.As:
//   - *DeviceError: the firmware printed an error, such as "Not blank"
//   - *ProtocolError: a record from the device did not decode
//   - *VerifyMismatchError: device contents differ from the image
//   - *IncompleteReadError: the read ended without an end-of-file record
//
// ErrTimeout, ErrBusy and context errors are matched with errors.Is.
// Classify maps any of them to a Status.
package programmer
