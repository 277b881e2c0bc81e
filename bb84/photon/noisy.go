package photon

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/alan-christopher/bb84sim/bb84/bitmap"
)

// Noisy wraps another oracle, flipping some of the bits it measures to model
// an imperfect channel.
type Noisy struct {
	Oracle Oracle

	// Errors, when non-empty, marks positions whose measurement is always
	// flipped. Positions past its end are unaffected.
	Errors bitmap.Dense

	// QBER is the probability that any other measurement is flipped. Rand
	// must be non-nil when QBER is positive.
	QBER float64
	Rand *rand.Rand
}

// Transmit implements the Oracle interface.
func (n *Noisy) Transmit(ctx context.Context, bits, sendBases, recvBases bitmap.Dense) (bitmap.Dense, error) {
	if n.QBER < 0 || n.QBER > 1 {
		return bitmap.Empty(), fmt.Errorf("qber must be within [0, 1], got %f", n.QBER)
	}
	measured, err := n.Oracle.Transmit(ctx, bits, sendBases, recvBases)
	if err != nil {
		return bitmap.Empty(), err
	}
	measured = measured.Clone()
	for i := 0; i < measured.Size(); i++ {
		flip := n.Errors.Get(i)
		if !flip && n.QBER > 0 {
			flip = n.Rand.Float64() < n.QBER
		}
		if flip {
			measured.Flip(i)
		}
	}
	return measured, nil
}
