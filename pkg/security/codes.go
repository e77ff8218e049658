package security

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"strings"
)

// Ambiguous glyphs (0/O, 1/I/L) are left out so codes can be read aloud.
var enrollmentCharset = []byte("ABCDEFGHJKMNPQRSTUVWXYZ23456789")

// GenerateEnrollmentCode produces a random gym enrollment code of the given length.
func GenerateEnrollmentCode(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("length must be positive")
	}

	result := make([]byte, length)
	for i := range result {
		idx, err := randInt(len(enrollmentCharset))
		if err != nil {
			return "", err
		}
		result[i] = enrollmentCharset[idx]
	}
	return string(result), nil
}

// CodesEqual compares two enrollment codes in constant time, ignoring case and
// surrounding whitespace.
func CodesEqual(a, b string) bool {
	na := strings.ToUpper(strings.TrimSpace(a))
	nb := strings.ToUpper(strings.TrimSpace(b))
	return subtle.ConstantTimeCompare([]byte(na), []byte(nb)) == 1
}

// randInt draws uniformly from [0, max) using rejection sampling.
func randInt(max int) (int, error) {
	if max <= 0 || max > 256 {
		return 0, fmt.Errorf("invalid max %d", max)
	}
	limit := 256 - (256 % max)
	buf := make([]byte, 1)
	for {
		if _, err := rand.Read(buf); err != nil {
			return 0, err
		}
		if int(buf[0]) < limit {
			return int(buf[0]) % max, nil
		}
	}
}
