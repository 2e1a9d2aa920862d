package restclient

import "strings"

// QueryEncoder escapes a single query-string key or value.
type QueryEncoder func(s string) string

const upperhex = "0123456789ABCDEF"

// ComponentEncoding escapes s the way ECMAScript encodeURIComponent does:
// every byte except ASCII letters, digits and - _ . ! ~ * ' ( ) is
// percent-encoded with upper-case hex digits. Spaces become %20.
//
// It is the default encoder of Request.FullURL.
func ComponentEncoding(s string) string {
	n := 0
	for i := 0; i < len(s); i++ {
		if !isUnreservedComponent(s[i]) {
			n++
		}
	}
	if n == 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + 2*n)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreservedComponent(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&0x0f])
	}
	return b.String()
}

// readableReplacer turns the escapes of @ : $ , ; + = ? / back into the
// literal characters.
var readableReplacer = strings.NewReplacer(
	"%40", "@",
	"%3A", ":",
	"%24", "$",
	"%2C", ",",
	"%3B", ";",
	"%2B", "+",
	"%3D", "=",
	"%3F", "?",
	"%2F", "/",
)

// ReadableEncoding applies ComponentEncoding and then restores the
// characters @ : $ , ; + = ? / to their literal form so they stay readable
// in the query string. Servers that decode '+' as a space will see a
// different value; select it per service with ServiceBuilder.QueryEncoding.
func ReadableEncoding(s string) string {
	return readableReplacer.Replace(ComponentEncoding(s))
}

func isUnreservedComponent(c byte) bool {
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
