// Package bb84 simulates negotiating a shared secret using the BB84 protocol,
// and provides a simple XOR cipher keyed by the result.
//
// The quantum half of the protocol, i.e. preparing, sending and measuring
// qubits, is delegated to a photon.Oracle. This package owns the classical
// half: choosing bits and bases, sifting on matching bases and checking that
// both parties hold the same key.
package bb84

import (
	"errors"
	"math/rand"

	"github.com/alan-christopher/bb84sim/bb84/bitmap"
	"github.com/alan-christopher/bb84sim/bb84/photon"
	log "github.com/sirupsen/logrus"
)

// DefaultMaxQubits is the largest number of qubits exchanged per key
// negotiation unless overridden, matching the width of the hardware backends
// the protocol was first run against.
var DefaultMaxQubits = 127

// Stats packages together a collection of potentially interesting metrics
// pertaining to a BB84 key negotiation.
type Stats struct {
	// Requested is the key length asked for, and Qubits the number of qubits
	// actually exchanged after clamping to the simulator's maximum.
	Requested int
	Qubits    int
	Clamped   bool

	// Sifted is the number of positions where sender and receiver bases
	// agreed, i.e. the length of the sifted key.
	Sifted int

	// Mismatches counts sifted positions where the keys disagreed.
	Mismatches int
}

// Opts packages together the arguments necessary to construct a new Simulator.
// Oracle and Rand do *not* have reasonable defaults; leaving them unset results
// in NewSimulator returning an error.
type Opts struct {
	// Oracle carries qubits from sender to receiver. Must be non-nil.
	Oracle photon.Oracle

	// Rand provides the sender's bits and bases. This may use pRNG for
	// experimental and/or testing, but for unconditional security this must
	// be truly random. Must be non-nil.
	Rand *rand.Rand

	// ReceiverRand provides the receiver's bases. Defaults to Rand.
	ReceiverRand *rand.Rand

	// MaxQubits caps the number of qubits exchanged per call to GenerateKey.
	// Larger requests are clamped. Defaults to DefaultMaxQubits.
	MaxQubits int

	// Logger defaults to the standard logrus logger.
	Logger *log.Entry

	// Metrics, if non-nil, records the outcome of every negotiation.
	Metrics *Metrics
}

// A Simulator plays both legitimate parties of a BB84 key exchange. It is not
// safe for concurrent use.
type Simulator struct {
	oracle       photon.Oracle
	rand         *rand.Rand
	receiverRand *rand.Rand
	maxQubits    int
	logger       *log.Entry
	metrics      *Metrics

	// Test hooks overriding random generation.
	bitsFunc      func(n int) bitmap.Dense
	basesFunc     func(n int) bitmap.Dense
	recvBasesFunc func(n int) bitmap.Dense
}

// NewSimulator returns a new Simulator, configured in accordance with opts, or
// an error if the options are nonsensical.
func NewSimulator(opts Opts) (*Simulator, error) {
	if opts.Oracle == nil {
		return nil, errors.New("must provide Oracle")
	}
	if opts.Rand == nil {
		return nil, errors.New("must provide Rand")
	}
	if opts.MaxQubits < 0 {
		return nil, errors.New("MaxQubits must not be negative")
	}
	recvRand := opts.ReceiverRand
	if recvRand == nil {
		recvRand = opts.Rand
	}
	maxQubits := opts.MaxQubits
	if maxQubits == 0 {
		maxQubits = DefaultMaxQubits
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &Simulator{
		oracle:       opts.Oracle,
		rand:         opts.Rand,
		receiverRand: recvRand,
		maxQubits:    maxQubits,
		logger:       logger,
		metrics:      opts.Metrics,
	}, nil
}
