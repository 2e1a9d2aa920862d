package restclient

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsFalsy(t *testing.T) {
	var nilMap map[string]string
	var nilPtr *int

	tests := []struct {
		name string
		v    any
		want bool
	}{
		{name: "nil", v: nil, want: true},
		{name: "typed nil pointer", v: nilPtr, want: true},
		{name: "nil map", v: nilMap, want: true},
		{name: "false", v: false, want: true},
		{name: "zero int", v: 0, want: true},
		{name: "zero uint8", v: uint8(0), want: true},
		{name: "zero float", v: 0.0, want: true},
		{name: "NaN", v: math.NaN(), want: true},
		{name: "empty string", v: "", want: true},
		{name: "true", v: true, want: false},
		{name: "negative int", v: -1, want: false},
		{name: "non-empty string", v: "0", want: false},
		{name: "empty non-nil map", v: map[string]string{}, want: false},
		{name: "empty non-nil slice", v: []int{}, want: false},
		{name: "zero struct", v: struct{}{}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isFalsy(tt.v))
		})
	}
}

func TestArgumentString(t *testing.T) {
	type point struct {
		X int `json:"x"`
	}

	tests := []struct {
		name string
		v    any
		want string
	}{
		{name: "given string, then as is", v: "abc", want: "abc"},
		{name: "given int, then decimal", v: 5, want: "5"},
		{name: "given int64, then decimal", v: int64(-7), want: "-7"},
		{name: "given float, then shortest form", v: 2.50, want: "2.5"},
		{name: "given bool, then literal", v: true, want: "true"},
		{name: "given duration, then stringer", v: 2 * time.Second, want: "2s"},
		{name: "given pointer to int, then pointee", v: func() *int { i := 3; return &i }(), want: "3"},
		{name: "given struct, then json", v: point{X: 1}, want: `{"x":1}`},
		{name: "given map, then json", v: map[string]string{"url": "https://dabraka.com/"}, want: `{"url":"https://dabraka.com/"}`},
		{name: "given slice, then json", v: []int{1, 2}, want: `[1,2]`},
		{name: "given bytes, then text", v: []byte("raw"), want: "raw"},
		{name: "given nil, then empty", v: nil, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, argumentString(tt.v))
		})
	}
}
