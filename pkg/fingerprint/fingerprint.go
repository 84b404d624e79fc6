// Package fingerprint computes a fixed non-cryptographic digest of a values document
// (spec §4.3), used both to key the Reuse Cache and to derive a deterministic release
// name. A single xxhash sum is only 64 bits wide; two independently-seeded sums are
// concatenated to reach the required >=128-bit effective width.
package fingerprint

import (
	"encoding/hex"

	"github.com/cespare/xxhash/v2"
)

// secondSalt decorrelates the second sum from the first; its exact value is
// arbitrary, only its difference from the empty prefix matters.
const secondSalt = "\x9e\x37\x79\xb1\x85\xeb\xca\x87"

// Of returns a 32-character hex digest (128 bits) of text.
func Of(text string) string {
	first := xxhash.Sum64String(text)
	second := xxhash.Sum64String(secondSalt + text)

	buf := make([]byte, 16)
	putUint64(buf[0:8], first)
	putUint64(buf[8:16], second)
	return hex.EncodeToString(buf)
}

// Short returns the first n hex characters of a fingerprint, for embedding in release
// names per spec §4.3's `<fp[:8]>` token.
func Short(fp string, n int) string {
	if n > len(fp) {
		n = len(fp)
	}
	return fp[:n]
}

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (56 - 8*i))
	}
}
