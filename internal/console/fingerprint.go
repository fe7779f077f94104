package console

import (
	"fmt"
	"strconv"

	"github.com/zeebo/xxh3"
)

// Fingerprint combines the hashes of label and callstack into the dedup key.
// The combine is order-sensitive with label first, so swapping the two
// strings yields a different key. Severity is not part of the key.
func Fingerprint(label, callstack string) uint64 {
	h := xxh3.HashString(label)
	return h ^ (xxh3.HashString(callstack) + 0x9e3779b97f4a7c15 + (h << 6) + (h >> 2))
}

// FormatFingerprint renders fp as a fixed-width hex key for JSON and URLs.
func FormatFingerprint(fp uint64) string {
	return fmt.Sprintf("%016x", fp)
}

// ParseFingerprint is the inverse of FormatFingerprint.
func ParseFingerprint(s string) (uint64, error) {
	fp, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("console: parse fingerprint %q: %w", s, err)
	}
	return fp, nil
}
