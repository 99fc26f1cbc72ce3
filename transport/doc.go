// Package transport owns the serial link to the 28C256 programmer.
//
// A Session moves through the states closed, opening, synced and busy. It
// is opened with Open, brought to a known state with Synchronize, and then
// exchanges text lines: Send writes a command terminated by CR-LF and
// RecvLine returns the next trimmed line. The firmware ends every command
// with a ">" prompt that has no line terminator; RecvLine returns it as
// soon as it arrives.
//
// Ports are opened through a Dialer. The default uses go.bug.st/serial at
// 38400 baud, 8N1. Tests and the device simulator supply their own.
//
// Basic usage:
//
//	s, err := transport.Open(ctx, "/dev/ttyUSB0")
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	if err := s.Synchronize(ctx); err != nil {
//	    return err
//	}
//	if err := s.Send(ctx, protocol.CmdBlankCheck); err != nil {
//	    return err
//	}
//	for {
//	    line, err := s.RecvLine(ctx)
//	    if err != nil {
//	        return err
//	    }
//	    if protocol.IsPrompt(line) {
//	        break
//	    }
//	    fmt.Println(line)
//	}
//
// FindPort locates the programmer by USB identity (FTDI FT232R,
// 0403:6001) and confirms it with the sync handshake.
package transport
