package util

import (
	"errors"
	"net/url"
	"strings"
	"unicode/utf8"
)

// ErrMalformedURIComponent is returned for bad escapes and for escapes that do not
// decode to UTF-8.
var ErrMalformedURIComponent = errors.New("malformed uri component")

const upperhex = "0123456789ABCDEF"

// EncodeURIComponent escapes s the way browsers do for a single URI component:
// everything except letters, digits and -_.!~*'() becomes %XX.
func EncodeURIComponent(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if componentSafe(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&15])
	}
	return b.String()
}

// DecodeURIComponent reverses EncodeURIComponent. A "+" stays a "+".
func DecodeURIComponent(s string) (string, error) {
	decoded, err := url.PathUnescape(s)
	if err != nil || !utf8.ValidString(decoded) {
		return "", ErrMalformedURIComponent
	}
	return decoded, nil
}

func componentSafe(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	switch c {
	case '-', '_', '.', '!', '~', '*', '\'', '(', ')':
		return true
	}
	return false
}
