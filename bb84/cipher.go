package bb84

import (
	"fmt"
	"strings"

	"github.com/alan-christopher/bb84sim/bb84/bitmap"
)

const charBits = 8

// Encrypt XORs the binary encoding of message (see EncodeText) with key,
// repeating or truncating the key to the message's length. Encryption is
// deterministic: the same message and key always produce the same ciphertext.
func Encrypt(message string, key bitmap.Dense) (bitmap.Dense, error) {
	plain, err := EncodeText(message)
	if err != nil {
		return bitmap.Empty(), err
	}
	return xorKey(plain, key)
}

// Decrypt inverts Encrypt, recovering the message from ciphertext and the key it
// was encrypted with.
func Decrypt(ciphertext, key bitmap.Dense) (string, error) {
	if ciphertext.Size()%charBits != 0 {
		return "", fmt.Errorf("%w: %d bits is not a whole number of characters", ErrMalformedCiphertext, ciphertext.Size())
	}
	plain, err := xorKey(ciphertext, key)
	if err != nil {
		return "", err
	}
	return DecodeText(plain)
}

// EncodeText encodes message as 8 bits per character, most significant bit
// first, in character order. Characters above U+00FF do not fit in 8 bits and
// are rejected.
func EncodeText(message string) (bitmap.Dense, error) {
	var d bitmap.Dense
	for i, c := range message {
		if c > 0xFF {
			return bitmap.Empty(), fmt.Errorf("%w: character %q at byte %d does not fit in %d bits", ErrInvalidArgument, c, i, charBits)
		}
		for j := charBits - 1; j >= 0; j-- {
			d.AppendBit(c&(1<<j) != 0)
		}
	}
	return d, nil
}

// DecodeText inverts EncodeText.
func DecodeText(bits bitmap.Dense) (string, error) {
	if bits.Size()%charBits != 0 {
		return "", fmt.Errorf("%w: %d bits is not a whole number of characters", ErrMalformedCiphertext, bits.Size())
	}
	var sb strings.Builder
	for i := 0; i < bits.Size(); i += charBits {
		var c rune
		for j := 0; j < charBits; j++ {
			c <<= 1
			if bits.Get(i + j) {
				c |= 1
			}
		}
		sb.WriteRune(c)
	}
	return sb.String(), nil
}

func xorKey(data, key bitmap.Dense) (bitmap.Dense, error) {
	if data.Size() == 0 {
		return bitmap.Empty(), nil
	}
	if key.Size() == 0 {
		return bitmap.Empty(), fmt.Errorf("%w: empty key", ErrInvalidArgument)
	}
	return bitmap.XOr(data, bitmap.Cycle(key, data.Size())), nil
}
