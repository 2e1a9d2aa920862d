package restclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComponentEncoding(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "given unreserved characters, then unchanged", in: "aZ09-_.!~*'()", want: "aZ09-_.!~*'()"},
		{name: "given space, then %20", in: "a b", want: "a%20b"},
		{name: "given reserved characters, then escaped", in: "1+5=6", want: "1%2B5%3D6"},
		{name: "given url, then slashes and colon escaped", in: "https://x.io/?a", want: "https%3A%2F%2Fx.io%2F%3Fa"},
		{name: "given ampersand and hash, then escaped", in: "a&b#c", want: "a%26b%23c"},
		{name: "given multibyte rune, then utf-8 bytes escaped", in: "é", want: "%C3%A9"},
		{name: "given empty string, then empty", in: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComponentEncoding(tt.in))
		})
	}
}

func TestReadableEncoding(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "given readable reserved set, then kept literal", in: "@:$,;+=?/", want: "@:$,;+=?/"},
		{name: "given space and ampersand, then still escaped", in: "a b&c", want: "a%20b%26c"},
		{name: "given hash, then still escaped", in: "#", want: "%23"},
		{name: "given url, then readable", in: "https://x.io/p?q=1", want: "https://x.io/p?q=1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ReadableEncoding(tt.in))
		})
	}
}
