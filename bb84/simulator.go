package bb84

import (
	"context"
	"fmt"

	"github.com/alan-christopher/bb84sim/bb84/bitmap"
	log "github.com/sirupsen/logrus"
)

// GenerateKey performs one round of BB84 key exchange over nBits qubits and
// returns the sifted key both parties agreed upon. Requests for more qubits
// than the simulator allows are clamped, so callers should not rely on the
// key's length. The key is about nBits/2 long and may be empty.
//
// If the parties' sifted keys differ, GenerateKey returns a *KeyMismatchError.
// The exchange is not retried; callers may start over with fresh randomness.
func (s *Simulator) GenerateKey(ctx context.Context, nBits int) (key bitmap.Dense, stats Stats, err error) {
	if nBits < 0 {
		return bitmap.Empty(), stats, fmt.Errorf("%w: key length must not be negative, got %d", ErrInvalidArgument, nBits)
	}
	stats.Requested = nBits
	n := nBits
	if n > s.maxQubits {
		n = s.maxQubits
		stats.Clamped = true
		s.logger.WithFields(log.Fields{"requested": nBits, "max_qubits": s.maxQubits}).
			Warnln("Clamping key length to the number of available qubits")
	}
	stats.Qubits = n
	defer func() { s.metrics.observe(stats, err) }()
	if n == 0 {
		return bitmap.Empty(), stats, nil
	}

	bits, bases := s.prepare(n)
	recvBases := s.chooseBases(n)
	if err := ctx.Err(); err != nil {
		return bitmap.Empty(), stats, err
	}
	measured, err := s.oracle.Transmit(ctx, bits, bases, recvBases)
	if err != nil {
		return bitmap.Empty(), stats, fmt.Errorf("transmitting qubits: %w", err)
	}
	if measured.Size() != n {
		return bitmap.Empty(), stats, fmt.Errorf("oracle measured %d qubits, sent %d", measured.Size(), n)
	}

	aliceKey, bobKey := sift(bits, bases, recvBases, measured)
	stats.Sifted = aliceKey.Size()
	if diff := bitmap.Ones(bitmap.XOr(aliceKey, bobKey)); len(diff) > 0 {
		stats.Mismatches = len(diff)
		s.logger.WithFields(log.Fields{"sifted": stats.Sifted, "mismatches": stats.Mismatches}).
			Errorln("Sifted keys disagree")
		return bitmap.Empty(), stats, &KeyMismatchError{Positions: diff, Sifted: stats.Sifted}
	}
	s.logger.WithFields(log.Fields{"qubits": n, "sifted": stats.Sifted}).Debugln("Negotiated key")
	return aliceKey, stats, nil
}

// prepare returns the sender's random bits and encoding bases.
func (s *Simulator) prepare(n int) (bits, bases bitmap.Dense) {
	if s.bitsFunc == nil {
		bits = bitmap.Random(s.rand, n)
	} else {
		bits = s.bitsFunc(n)
	}
	if s.basesFunc == nil {
		bases = bitmap.Random(s.rand, n)
	} else {
		bases = s.basesFunc(n)
	}
	return bits, bases
}

// chooseBases returns the receiver's measurement bases, drawn without any
// knowledge of what the sender prepared.
func (s *Simulator) chooseBases(n int) bitmap.Dense {
	if s.recvBasesFunc != nil {
		return s.recvBasesFunc(n)
	}
	return bitmap.Random(s.receiverRand, n)
}

// sift keeps the positions where sendBasis and receiveBasis agree, returning
// the sender's and receiver's bits at those positions in order.
func sift(bits, sendBasis, receiveBasis, measured bitmap.Dense) (aliceKey, bobKey bitmap.Dense) {
	siftMask := bitmap.XNor(sendBasis, receiveBasis)
	return bitmap.Select(bits, siftMask), bitmap.Select(measured, siftMask)
}
