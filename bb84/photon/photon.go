// Package photon provides transmission oracles for photon-encoded qubits: given
// the bits and bases a sender prepared and the bases a receiver measures in,
// an oracle reports what the receiver observes.
package photon

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/alan-christopher/bb84sim/bb84/bitmap"
)

// An Oracle simulates sending qubits over a quantum channel and measuring them
// at the far end.
type Oracle interface {
	// Transmit returns the bits the receiver measures:
	//  - bits contains the logical bit values prepared by the sender.
	//  - sendBases specifies the encoding basis per qubit, rectilinear (0) or
	//    diagonal (1).
	//  - recvBases specifies the basis each qubit is measured in.
	// All three must share a size, which is also the size of the result. On
	// a noiseless channel, positions where the bases agree measure the sent
	// bit; other positions are uniformly random.
	Transmit(ctx context.Context, bits, sendBases, recvBases bitmap.Dense) (bitmap.Dense, error)
}

func checkSizes(bits, sendBases, recvBases bitmap.Dense) error {
	if bits.Size() != sendBases.Size() {
		return fmt.Errorf("bit and basis length must agree: %d != %d", bits.Size(), sendBases.Size())
	}
	if bits.Size() != recvBases.Size() {
		return fmt.Errorf("send length must match receive basis length: %d != %d", bits.Size(), recvBases.Size())
	}
	return nil
}

// Ideal is a noiseless, eavesdropper-free channel. It does not model qubit
// states at all and is mostly useful as a test double.
type Ideal struct {
	// Rand decides the outcome of measurements taken in the wrong basis.
	Rand *rand.Rand
}

// NewIdeal returns an Ideal oracle using r for mismatched-basis outcomes.
func NewIdeal(r *rand.Rand) *Ideal {
	return &Ideal{Rand: r}
}

// Transmit implements the Oracle interface.
func (o *Ideal) Transmit(ctx context.Context, bits, sendBases, recvBases bitmap.Dense) (bitmap.Dense, error) {
	if err := checkSizes(bits, sendBases, recvBases); err != nil {
		return bitmap.Empty(), err
	}
	if err := ctx.Err(); err != nil {
		return bitmap.Empty(), err
	}
	flips := bitmap.Random(o.Rand, bits.Size())
	flips = bitmap.And(flips, bitmap.XOr(sendBases, recvBases))
	return bitmap.XOr(flips, bits), nil
}
