package bb84

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument indicates a malformed request, e.g. a negative key
	// length or a message that cannot be encoded.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrKeyMismatch indicates that the sender and receiver arrived at
	// different sifted keys. Over a noiseless channel this means somebody
	// interfered with the qubits in flight; the exchange must be abandoned.
	ErrKeyMismatch = errors.New("quantum key mismatch detected, potential eavesdropping")

	// ErrMalformedCiphertext indicates a ciphertext whose length is not a whole
	// number of 8-bit characters.
	ErrMalformedCiphertext = errors.New("malformed ciphertext")
)

// A KeyMismatchError reports which positions of the sifted key disagreed. It
// matches ErrKeyMismatch under errors.Is.
type KeyMismatchError struct {
	// Positions holds indices into the sifted key, in ascending order.
	Positions []int
	// Sifted is the length of the sifted key.
	Sifted int
}

func (e *KeyMismatchError) Error() string {
	return fmt.Sprintf("%v: %d of %d sifted bits differ", ErrKeyMismatch, len(e.Positions), e.Sifted)
}

// Is reports whether target is ErrKeyMismatch.
func (e *KeyMismatchError) Is(target error) bool {
	return target == ErrKeyMismatch
}
