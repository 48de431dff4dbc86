package passes

import "fmt"

// base64.b85encode uses the RFC 1924 alphabet, which differs from the one
// encoding/ascii85 implements, so the codec is spelled out here. Payloads
// are produced without padding: a partial final group of n bytes emits n+1
// characters.
const b85Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ" +
	"abcdefghijklmnopqrstuvwxyz!#$%&()*+-;<=>?@^_`{|}~"

var b85Reverse = func() [256]int {
	var table [256]int
	for i := range table {
		table[i] = -1
	}

	for i := 0; i < len(b85Alphabet); i++ {
		table[b85Alphabet[i]] = i
	}

	return table
}()

// B85Encode renders data in the RFC 1924 base85 form.
func B85Encode(data []byte) string {
	if len(data) == 0 {
		return ""
	}

	out := make([]byte, 0, (len(data)+3)/4*5)

	for i := 0; i < len(data); i += 4 {
		var group uint32

		n := len(data) - i
		if n > 4 {
			n = 4
		}

		for j := 0; j < 4; j++ {
			group <<= 8
			if j < n {
				group |= uint32(data[i+j])
			}
		}

		var chunk [5]byte

		for j := 4; j >= 0; j-- {
			chunk[j] = b85Alphabet[group%85]
			group /= 85
		}

		out = append(out, chunk[:n+1]...)
	}

	return string(out)
}

// B85Decode inverts B85Encode.
func B85Decode(encoded string) ([]byte, error) {
	if encoded == "" {
		return nil, nil
	}

	out := make([]byte, 0, len(encoded)/5*4+4)

	for i := 0; i < len(encoded); i += 5 {
		n := len(encoded) - i
		if n > 5 {
			n = 5
		}

		if n == 1 {
			return nil, fmt.Errorf("base85: truncated group at offset %d", i)
		}

		var group uint64

		for j := 0; j < 5; j++ {
			digit := 84
			if j < n {
				digit = b85Reverse[encoded[i+j]]
				if digit < 0 {
					return nil, fmt.Errorf("base85: invalid character %q at offset %d", encoded[i+j], i+j)
				}
			}

			group = group*85 + uint64(digit)
		}

		// 85^5 exceeds 2^32, so some digit strings name no 4-byte group.
		if group > 0xffff_ffff {
			return nil, fmt.Errorf("base85: group out of range at offset %d", i)
		}

		var chunk [4]byte

		for j := 3; j >= 0; j-- {
			chunk[j] = byte(group)
			group >>= 8
		}

		out = append(out, chunk[:n-1]...)
	}

	return out, nil
}
