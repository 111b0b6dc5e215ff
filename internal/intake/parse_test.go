package intake

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCoords(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want ParsedCoords
		ok   bool
	}{
		{
			name: "plain pair",
			in:   "42.1790 18.9420",
			want: ParsedCoords{Lat: 42.1790, Lon: 18.9420},
			ok:   true,
		},
		{
			name: "comma separated",
			in:   "42.1790, 18.9420",
			want: ParsedCoords{Lat: 42.1790, Lon: 18.9420},
			ok:   true,
		},
		{
			name: "semicolon separated",
			in:   "42.1790;18.9420",
			want: ParsedCoords{Lat: 42.1790, Lon: 18.9420},
			ok:   true,
		},
		{
			name: "handle and tail",
			in:   "42.1 18.9 @marko smoke near the ridge",
			want: ParsedCoords{Lat: 42.1, Lon: 18.9, Contact: "@marko", Tail: "smoke near the ridge"},
			ok:   true,
		},
		{
			name: "phone contact",
			in:   "42.1 18.9 +38267123456",
			want: ParsedCoords{Lat: 42.1, Lon: 18.9, Contact: "+38267123456"},
			ok:   true,
		},
		{
			name: "contact not leading token",
			in:   "42.1 18.9 two cars @marko",
			want: ParsedCoords{Lat: 42.1, Lon: 18.9, Contact: "@marko", Tail: "two cars"},
			ok:   true,
		},
		{name: "empty", in: "", ok: false},
		{name: "single number", in: "42.1", ok: false},
		{name: "not numbers", in: "see you at noon", ok: false},
		{name: "latitude out of range", in: "91.0 18.9", ok: false},
		{name: "longitude out of range", in: "42.1 181.0", ok: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseCoords(tc.in)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestStripFirePrefix(t *testing.T) {
	s, ok := stripFirePrefix("fire 42.1 18.9")
	assert.True(t, ok)
	assert.Equal(t, "42.1 18.9", s)

	s, ok = stripFirePrefix("Fire 42.1 18.9")
	assert.True(t, ok, "prefix match is case-insensitive")
	assert.Equal(t, "42.1 18.9", s)

	s, ok = stripFirePrefix("42.1 18.9")
	assert.False(t, ok)
	assert.Equal(t, "42.1 18.9", s)
}

func TestIsContactToken(t *testing.T) {
	assert.True(t, isContactToken("@marko"))
	assert.True(t, isContactToken("+38267123456"))
	assert.False(t, isContactToken("@"))
	assert.False(t, isContactToken("+plus"))
	assert.False(t, isContactToken("marko"))
}
