// Package devicesim simulates the 28C256 programmer firmware in memory.
//
// A Device holds 32 KiB of EEPROM contents and answers the firmware's
// command set: read (full and ranged), blankcheck, erase, lock, unlock,
// help and hex record writes. Connections are handed out through
// Device.Dialer, which plugs into transport.WithDialer, so the rest of the
// stack runs unchanged against the simulator. eepromctl uses it for
// --simulate and the tests use it as the device under test.
//
// Faults can be injected with options such as WithCorruptRecordAt,
// WithWriteErrorAt, WithOmitEndRecord and WithSilent.
package devicesim
