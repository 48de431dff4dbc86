package passes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestB85RoundTrip(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"one byte", "a"},
		{"partial group", "abc"},
		{"full group", "abcd"},
		{"full plus partial", "hello world"},
		{"binary", "\x00\x01\xfe\xff"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			encoded := B85Encode([]byte(tc.data))

			decoded, err := B85Decode(encoded)
			require.NoError(t, err)
			assert.Equal(t, tc.data, string(decoded))
		})
	}
}

// Spot-check against base64.b85encode output so emitted payloads decode on
// the Python side.
func TestB85KnownVectors(t *testing.T) {
	assert.Equal(t, "Xk~0{Zv", B85Encode([]byte("hello")))
	assert.Equal(t, "Xk~0{Zy<MXa%^NF", B85Encode([]byte("hello world!")))
}

func TestB85PartialGroupLength(t *testing.T) {
	// n trailing bytes encode as n+1 characters.
	assert.Len(t, B85Encode([]byte("a")), 2)
	assert.Len(t, B85Encode([]byte("ab")), 3)
	assert.Len(t, B85Encode([]byte("abc")), 4)
	assert.Len(t, B85Encode([]byte("abcd")), 5)
	assert.Len(t, B85Encode([]byte("abcde")), 7)
}

func TestB85DecodeErrors(t *testing.T) {
	_, err := B85Decode("NM&qnZ")
	assert.ErrorContains(t, err, "truncated group")

	_, err = B85Decode("NM\"qn")
	assert.ErrorContains(t, err, "invalid character")

	// All-~ groups read past 2^32 and decode to no byte sequence.
	_, err = B85Decode("~~~~~")
	assert.ErrorContains(t, err, "out of range")

	_, err = B85Decode("Xk~0{~~~~~")
	assert.ErrorContains(t, err, "offset 5")
}
