package protocol

// Sum returns the 8-bit sum of all bytes.
func Sum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return sum
}

// Checksum computes the record checksum for data.
// Uses basic summation with 2's complement, so that
// Sum(data) + Checksum(data) == 0 (mod 256).
func Checksum(data []byte) byte {
	// Return 2's complement: invert and add 1
	return ^Sum(data) + 1
}

// ValidChecksum reports whether a full record (including its checksum byte)
// sums to zero.
func ValidChecksum(record []byte) bool {
	return Sum(record) == 0
}
