package photon

import (
	"context"
	"math"
	"math/rand"

	"github.com/alan-christopher/bb84sim/bb84/bitmap"
	"gonum.org/v1/gonum/mat"
)

// Amplitudes this close to certainty are treated as certain, so that floating
// point error cannot flip a measurement taken in the preparation basis.
const snapEpsilon = 1e-12

var (
	// pauliX flips |0> and |1>.
	pauliX = mat.NewDense(2, 2, []float64{
		0, 1,
		1, 0,
	})
	// hadamard rotates between the rectilinear and diagonal bases.
	hadamard = mat.NewDense(2, 2, []float64{
		math.Sqrt2 / 2, math.Sqrt2 / 2,
		math.Sqrt2 / 2, -math.Sqrt2 / 2,
	})
)

// A Circuit simulates each qubit as a two-amplitude state vector, running the
// BB84 circuit one wire at a time: X to encode a 1, H to encode in the diagonal
// basis, H again to measure in the diagonal basis, then a computational basis
// measurement. Every gate BB84 needs is real, so real amplitudes suffice.
type Circuit struct {
	rand *rand.Rand
}

// NewCircuit returns a Circuit which samples measurement outcomes from r.
func NewCircuit(r *rand.Rand) *Circuit {
	return &Circuit{rand: r}
}

// Transmit implements the Oracle interface.
func (c *Circuit) Transmit(ctx context.Context, bits, sendBases, recvBases bitmap.Dense) (bitmap.Dense, error) {
	if err := checkSizes(bits, sendBases, recvBases); err != nil {
		return bitmap.Empty(), err
	}
	r := bitmap.Empty()
	for i := 0; i < bits.Size(); i++ {
		if err := ctx.Err(); err != nil {
			return bitmap.Empty(), err
		}
		state := mat.NewVecDense(2, []float64{1, 0})
		if bits.Get(i) {
			state = apply(pauliX, state)
		}
		if sendBases.Get(i) {
			state = apply(hadamard, state)
		}
		if recvBases.Get(i) {
			state = apply(hadamard, state)
		}
		r.AppendBit(c.measure(state))
	}
	return r, nil
}

// measure collapses state in the computational basis, returning true for |1>.
func (c *Circuit) measure(state *mat.VecDense) bool {
	p1 := probOne(state)
	switch {
	case p1 < snapEpsilon:
		return false
	case p1 > 1-snapEpsilon:
		return true
	}
	return c.rand.Float64() < p1
}

func probOne(state *mat.VecDense) float64 {
	a := state.AtVec(1)
	return a * a
}

func apply(gate mat.Matrix, state *mat.VecDense) *mat.VecDense {
	next := mat.NewVecDense(2, nil)
	next.MulVec(gate, state)
	return next
}
