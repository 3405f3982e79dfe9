package vouchers

import (
	"strings"
	"testing"
)

func TestNormalizeCode(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"bare code", "BLK-7F3K2A", "BLK-7F3K2A"},
		{"lowercase", "blk-7f3k2a", "BLK-7F3K2A"},
		{"surrounding whitespace", "  BLK-7F3K2A \n", "BLK-7F3K2A"},
		{"share url", "https://balkly.example/v/BLK-7F3K2A", "BLK-7F3K2A"},
		{"share url trailing slash", "https://balkly.example/v/BLK-7F3K2A/", "BLK-7F3K2A"},
		{"share url with query", "https://balkly.example/v/BLK-7F3K2A?src=qr", "BLK-7F3K2A"},
		{"share url with fragment", "https://balkly.example/v/BLK-7F3K2A#top", "BLK-7F3K2A"},
		{"lowercase url", "https://balkly.example/V/blk-7f3k2a", "BLK-7F3K2A"},
		{"unrelated path left alone", "https://balkly.example/about", "HTTPS://BALKLY.EXAMPLE/ABOUT"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeCode(tc.input); got != tc.want {
				t.Errorf("NormalizeCode(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestNewCode(t *testing.T) {
	code, err := NewCode("BLK")
	if err != nil {
		t.Fatalf("NewCode: %v", err)
	}
	if !strings.HasPrefix(code, "BLK-") {
		t.Fatalf("code %q missing prefix", code)
	}
	body := strings.TrimPrefix(code, "BLK-")
	if len(body) != codeLength {
		t.Fatalf("code body %q has length %d, want %d", body, len(body), codeLength)
	}
	for _, r := range body {
		if !strings.ContainsRune(codeAlphabet, r) {
			t.Fatalf("code body %q contains %q outside alphabet", body, r)
		}
	}

	// A normalized code round-trips through its share URL.
	if got := NormalizeCode("https://balkly.example/v/" + code); got != code {
		t.Fatalf("url round trip = %q, want %q", got, code)
	}
}

func TestNewCodeNoPrefix(t *testing.T) {
	code, err := NewCode("")
	if err != nil {
		t.Fatalf("NewCode: %v", err)
	}
	if len(code) != codeLength {
		t.Fatalf("code %q has length %d, want %d", code, len(code), codeLength)
	}
}
