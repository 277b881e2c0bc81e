package photon

import (
	"fmt"
	"math/rand"
)

// Oracle kinds understood by Config.
const (
	KindIdeal   = "ideal"
	KindCircuit = "circuit"
)

// Config describes a channel: the oracle measuring qubits, plus optional noise
// and eavesdropping layered on top of it. Noise only touches what the receiver
// measures; an eavesdropper sees the qubits as sent.
type Config struct {
	Kind      string  `yaml:"oracle"`
	QBER      float64 `yaml:"qber"`
	Eavesdrop float64 `yaml:"eavesdrop"`
}

// Build assembles the channel described by c. Each layer draws from its own
// generator, seeded from r.
func (c Config) Build(r *rand.Rand) (Oracle, error) {
	fork := func() *rand.Rand { return rand.New(rand.NewSource(r.Int63())) }
	var o Oracle
	switch c.Kind {
	case KindIdeal:
		o = NewIdeal(fork())
	case KindCircuit, "":
		o = NewCircuit(fork())
	default:
		return nil, fmt.Errorf("unknown oracle %q, want %q or %q", c.Kind, KindIdeal, KindCircuit)
	}
	if c.QBER < 0 || c.QBER > 1 {
		return nil, fmt.Errorf("qber must be within [0, 1], got %f", c.QBER)
	}
	if c.Eavesdrop < 0 || c.Eavesdrop > 1 {
		return nil, fmt.Errorf("eavesdrop probability must be within [0, 1], got %f", c.Eavesdrop)
	}
	if c.Eavesdrop > 0 {
		o = &Interceptor{Oracle: o, Probability: c.Eavesdrop, Rand: fork()}
	}
	if c.QBER > 0 {
		o = &Noisy{Oracle: o, QBER: c.QBER, Rand: fork()}
	}
	return o, nil
}
