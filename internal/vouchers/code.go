package vouchers

import (
	"crypto/rand"
	"fmt"
	"regexp"
	"strings"
)

// codeAlphabet omits 0/O/1/I to keep codes human-typeable.
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const codeLength = 6

// vPathPattern extracts the code from a /v/{code} share URL.
var vPathPattern = regexp.MustCompile(`(?i)/v/([A-Za-z0-9-]+)/?$`)

// NewCode mints a voucher code like BLK-7F3K2A.
func NewCode(prefix string) (string, error) {
	b := make([]byte, codeLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	for i := range b {
		b[i] = codeAlphabet[int(b[i])%len(codeAlphabet)]
	}
	if prefix == "" {
		return string(b), nil
	}
	return prefix + "-" + string(b), nil
}

// NormalizeCode resolves scanner input to a canonical code. Both the bare code
// ABC123 and a share URL https://host/v/ABC123 resolve to ABC123.
func NormalizeCode(input string) string {
	s := strings.TrimSpace(input)
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	if m := vPathPattern.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	return strings.ToUpper(s)
}
