package utils

import (
	"crypto/rand"
	"fmt"
)

// Charset for referral codes. 0/O and 1/I are excluded so codes survive
// being read aloud or retyped from a screenshot.
const codeCharset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GenerateCode produces a random invite code of the given length using
// crypto/rand so concurrent generators cannot collide by seed.
func GenerateCode(length int) (string, error) {
	if length <= 0 {
		length = 8
	}

	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}

	for i, b := range buf {
		buf[i] = codeCharset[int(b)%len(codeCharset)]
	}
	return string(buf), nil
}
