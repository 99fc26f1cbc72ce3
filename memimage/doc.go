// Package memimage holds the 32 KiB memory image of a 28C256 EEPROM.
//
// An Image always contains exactly Size bytes. It starts blank (0xFF), is
// replaced wholesale when a file is loaded or the device is read, and is
// edited in place with Set and SetBytes. Every access is bounds checked.
//
// # Files
//
// Two formats are supported, selected by extension:
//   - ".hex": hex records (":LLAAAATTDD...CC"), terminated by ":00000001FF"
//   - anything else: a raw binary dump
//
// Binary files shorter than 32 KiB are padded with 0xFF and longer ones are
// truncated:
//
//	img, err := memimage.Load("firmware.bin")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = memimage.Save("firmware.hex", img)
//
// # Editing
//
// ParseValues accepts the edit grammar of the hex editor, so a row can be
// patched from text:
//
//	b, _ := memimage.ParseValues("0x42 'OK")
//	_ = img.SetBytes(0x0010, b)
package memimage
