package photon

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/alan-christopher/bb84sim/bb84/bitmap"
)

// An Interceptor models an intercept-resend eavesdropper sitting on the
// channel in front of another oracle. For each qubit it intercepts, Eve
// measures in a basis of her own choosing and sends a fresh qubit encoding her
// result in that basis. When she guesses the wrong basis she disturbs the
// qubit, which is what lets the legitimate parties notice her.
//
// Both Eve's measurement and the resent qubits go through Oracle, so Oracle
// must be noiseless. To model a noisy channel as well, wrap the Interceptor in
// a Noisy rather than the other way around.
type Interceptor struct {
	Oracle Oracle

	// Probability is the chance that any given qubit is intercepted.
	Probability float64

	// Rand decides which qubits are intercepted and Eve's bases.
	Rand *rand.Rand

	// Intercepted, if non-nil, is incremented by the number of qubits
	// intercepted on each call.
	Intercepted *int
}

// Transmit implements the Oracle interface.
func (e *Interceptor) Transmit(ctx context.Context, bits, sendBases, recvBases bitmap.Dense) (bitmap.Dense, error) {
	if err := checkSizes(bits, sendBases, recvBases); err != nil {
		return bitmap.Empty(), err
	}
	if e.Probability < 0 || e.Probability > 1 {
		return bitmap.Empty(), fmt.Errorf("interception probability must be within [0, 1], got %f", e.Probability)
	}
	n := bits.Size()
	caught := bitmap.NewDense(nil, n)
	for i := 0; i < n; i++ {
		caught.Set(i, e.Rand.Float64() < e.Probability)
	}
	eveBases := bitmap.Random(e.Rand, n)
	eveBits, err := e.Oracle.Transmit(ctx, bits, sendBases, eveBases)
	if err != nil {
		return bitmap.Empty(), fmt.Errorf("intercepting qubits: %w", err)
	}

	// Qubits Eve let through keep the sender's preparation.
	resentBits := bitmap.Or(bitmap.And(caught, eveBits), bitmap.And(bitmap.Not(caught), bits))
	resentBases := bitmap.Or(bitmap.And(caught, eveBases), bitmap.And(bitmap.Not(caught), sendBases))
	if e.Intercepted != nil {
		*e.Intercepted += bitmap.CountOnes(caught)
	}
	return e.Oracle.Transmit(ctx, resentBits, resentBases, recvBases)
}
