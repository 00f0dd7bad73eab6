// Package payment builds bank QR payment payloads and fetches the
// rendered QR image from the external image API.
package payment

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxMessageLen is the longest message banking QR decoders accept.
const MaxMessageLen = 60

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))

// SanitizeMessage reduces free text to the alphabet accepted in a QR
// payment message: diacritics are stripped, everything outside
// [A-Za-z0-9 -.,/:] is removed, whitespace runs collapse to one space and
// the result is upper-cased and truncated to MaxMessageLen.
func SanitizeMessage(s string) string {
	plain, _, err := transform.String(stripMarks, s)
	if err != nil {
		plain = s
	}

	var b strings.Builder
	b.Grow(len(plain))
	space := false
	for _, r := range plain {
		switch {
		case unicode.IsSpace(r):
			space = true
			continue
		case !allowed(r):
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(unicode.ToUpper(r))
	}

	out := b.String()
	if len(out) > MaxMessageLen {
		out = out[:MaxMessageLen]
	}
	return out
}

func allowed(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	}
	return strings.ContainsRune("-.,/:", r)
}
