package bb84

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/alan-christopher/bb84sim/bb84/bitmap"
	"github.com/alan-christopher/bb84sim/bb84/photon"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

// A recordingOracle remembers what it was asked to transmit, and optionally
// tampers with the result.
type recordingOracle struct {
	inner  photon.Oracle
	tamper func(bits, sendBases, recvBases, measured bitmap.Dense) bitmap.Dense

	calls                      int
	bits, sendBases, recvBases bitmap.Dense
}

func (r *recordingOracle) Transmit(ctx context.Context, bits, sendBases, recvBases bitmap.Dense) (bitmap.Dense, error) {
	r.calls++
	r.bits, r.sendBases, r.recvBases = bits, sendBases, recvBases
	measured, err := r.inner.Transmit(ctx, bits, sendBases, recvBases)
	if err != nil || r.tamper == nil {
		return measured, err
	}
	return r.tamper(bits, sendBases, recvBases, measured), nil
}

// flipFirstMatch flips the receiver's first measurement taken in the sender's
// basis.
func flipFirstMatch(_, sendBases, recvBases, measured bitmap.Dense) bitmap.Dense {
	measured = measured.Clone()
	for i := 0; i < measured.Size(); i++ {
		if sendBases.Get(i) == recvBases.Get(i) {
			measured.Flip(i)
			break
		}
	}
	return measured
}

type errOracle struct{ err error }

func (e errOracle) Transmit(context.Context, bitmap.Dense, bitmap.Dense, bitmap.Dense) (bitmap.Dense, error) {
	return bitmap.Empty(), e.err
}

type shortOracle struct{}

func (shortOracle) Transmit(_ context.Context, bits, _, _ bitmap.Dense) (bitmap.Dense, error) {
	return bitmap.NewDense(nil, bits.Size()-1), nil
}

func mustDense(t *testing.T, s string) bitmap.Dense {
	d, err := bitmap.FromString(s)
	if err != nil {
		t.Fatalf("bugged test setup: %v", err)
	}
	return d
}

func newTestSimulator(t *testing.T, o photon.Oracle, seed int64) *Simulator {
	logger, _ := test.NewNullLogger()
	s, err := NewSimulator(Opts{
		Oracle:       o,
		Rand:         rand.New(rand.NewSource(seed)),
		ReceiverRand: rand.New(rand.NewSource(seed + 1)),
		Logger:       log.NewEntry(logger),
	})
	if err != nil {
		t.Fatalf("Building simulator: %v", err)
	}
	return s
}

func TestGenerateKeyScenario(t *testing.T) {
	o := &recordingOracle{inner: photon.NewIdeal(rand.New(rand.NewSource(1)))}
	s := newTestSimulator(t, o, 42)
	s.bitsFunc = func(int) bitmap.Dense { return mustDense(t, "1011") }
	s.basesFunc = func(int) bitmap.Dense { return mustDense(t, "0101") }
	s.recvBasesFunc = func(int) bitmap.Dense { return mustDense(t, "0001") }

	key, stats, err := s.GenerateKey(context.Background(), 4)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	if got := key.String(); got != "111" {
		t.Errorf("key == %s, want 111", got)
	}
	if stats.Sifted != 3 || stats.Qubits != 4 || stats.Clamped {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestGenerateKeySiftsSenderBits(t *testing.T) {
	oracles := map[string]func(seed int64) photon.Oracle{
		"ideal":   func(seed int64) photon.Oracle { return photon.NewIdeal(rand.New(rand.NewSource(seed))) },
		"circuit": func(seed int64) photon.Oracle { return photon.NewCircuit(rand.New(rand.NewSource(seed))) },
	}
	for name, newOracle := range oracles {
		t.Run(name, func(t *testing.T) {
			for seed := int64(0); seed < 50; seed++ {
				o := &recordingOracle{inner: newOracle(seed)}
				s := newTestSimulator(t, o, seed)
				key, stats, err := s.GenerateKey(context.Background(), 100)
				if err != nil {
					t.Fatalf("seed %d: GenerateKey: %v", seed, err)
				}
				if o.bits.Size() != 100 || o.sendBases.Size() != 100 || o.recvBases.Size() != 100 {
					t.Fatalf("seed %d: oracle saw sizes %d/%d/%d, want 100", seed,
						o.bits.Size(), o.sendBases.Size(), o.recvBases.Size())
				}
				match := bitmap.XNor(o.sendBases, o.recvBases)
				if n := len(bitmap.Ones(match)); key.Size() != n || stats.Sifted != n {
					t.Errorf("seed %d: key of len %d (stats %d), want %d", seed, key.Size(), stats.Sifted, n)
				}
				if want := bitmap.Select(o.bits, match); !bitmap.Equal(key, want) {
					t.Errorf("seed %d: key %v is not the sender's sifted bits %v", seed, key, want)
				}
			}
		})
	}
}

func TestGenerateKeyDetectsTampering(t *testing.T) {
	o := &recordingOracle{
		inner:  photon.NewIdeal(rand.New(rand.NewSource(1))),
		tamper: flipFirstMatch,
	}
	s := newTestSimulator(t, o, 7)
	key, stats, err := s.GenerateKey(context.Background(), 64)
	if !errors.Is(err, ErrKeyMismatch) {
		t.Fatalf("GenerateKey error = %v, want ErrKeyMismatch", err)
	}
	var kme *KeyMismatchError
	if !errors.As(err, &kme) {
		t.Fatalf("GenerateKey error %T is not a *KeyMismatchError", err)
	}
	if len(kme.Positions) != 1 || kme.Positions[0] != 0 {
		t.Errorf("mismatch positions == %v, want [0]", kme.Positions)
	}
	if key.Size() != 0 {
		t.Errorf("got key %v alongside a mismatch", key)
	}
	if stats.Mismatches != 1 {
		t.Errorf("stats.Mismatches == %d, want 1", stats.Mismatches)
	}
}

func TestGenerateKeyDetectsEavesdropper(t *testing.T) {
	o := &photon.Interceptor{
		Oracle:      photon.NewCircuit(rand.New(rand.NewSource(5))),
		Probability: 1,
		Rand:        rand.New(rand.NewSource(6)),
	}
	s := newTestSimulator(t, o, 9)
	if _, _, err := s.GenerateKey(context.Background(), 127); !errors.Is(err, ErrKeyMismatch) {
		t.Errorf("GenerateKey error = %v, want ErrKeyMismatch", err)
	}
}

func TestGenerateKeyEmpty(t *testing.T) {
	o := &recordingOracle{inner: photon.NewIdeal(rand.New(rand.NewSource(1)))}
	s := newTestSimulator(t, o, 1)
	key, _, err := s.GenerateKey(context.Background(), 0)
	if err != nil {
		t.Fatalf("GenerateKey(0): %v", err)
	}
	if key.Size() != 0 {
		t.Errorf("GenerateKey(0) == %v, want empty", key)
	}
	if o.calls != 0 {
		t.Errorf("oracle called %d times for an empty key", o.calls)
	}
}

func TestGenerateKeyNegative(t *testing.T) {
	s := newTestSimulator(t, photon.NewIdeal(rand.New(rand.NewSource(1))), 1)
	if _, _, err := s.GenerateKey(context.Background(), -1); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("GenerateKey(-1) error = %v, want ErrInvalidArgument", err)
	}
}

func TestGenerateKeyClamps(t *testing.T) {
	o := &recordingOracle{inner: photon.NewIdeal(rand.New(rand.NewSource(1)))}
	logger, hook := test.NewNullLogger()
	s, err := NewSimulator(Opts{
		Oracle: o,
		Rand:   rand.New(rand.NewSource(3)),
		Logger: log.NewEntry(logger),
	})
	if err != nil {
		t.Fatalf("Building simulator: %v", err)
	}
	_, stats, err := s.GenerateKey(context.Background(), 1000)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	if !stats.Clamped || stats.Requested != 1000 || stats.Qubits != DefaultMaxQubits {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if o.bits.Size() != DefaultMaxQubits {
		t.Errorf("oracle saw %d qubits, want %d", o.bits.Size(), DefaultMaxQubits)
	}
	if hook.LastEntry() == nil || hook.LastEntry().Level != log.WarnLevel {
		t.Errorf("expected a warning about clamping, got %v", hook.AllEntries())
	}
}

func TestGenerateKeyReproducible(t *testing.T) {
	a := newTestSimulator(t, photon.NewCircuit(rand.New(rand.NewSource(1))), 99)
	b := newTestSimulator(t, photon.NewCircuit(rand.New(rand.NewSource(1))), 99)
	ka, _, err := a.GenerateKey(context.Background(), 80)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	kb, _, err := b.GenerateKey(context.Background(), 80)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	if !bitmap.Equal(ka, kb) {
		t.Errorf("same seeds produced keys %v and %v", ka, kb)
	}
}

func TestGenerateKeyOracleFailures(t *testing.T) {
	boom := errors.New("backend unavailable")
	tcs := []struct {
		name   string
		oracle photon.Oracle
		eErr   error
	}{
		{"oracle error", errOracle{boom}, boom},
		{"short result", shortOracle{}, nil},
	}
	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestSimulator(t, tc.oracle, 1)
			_, _, err := s.GenerateKey(context.Background(), 16)
			if err == nil {
				t.Fatalf("expected error: got nil")
			}
			if tc.eErr != nil && !errors.Is(err, tc.eErr) {
				t.Errorf("error = %v, want %v", err, tc.eErr)
			}
			if errors.Is(err, ErrKeyMismatch) {
				t.Errorf("oracle failure reported as key mismatch: %v", err)
			}
		})
	}
}

func TestGenerateKeyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	o := &recordingOracle{inner: photon.NewIdeal(rand.New(rand.NewSource(1)))}
	s := newTestSimulator(t, o, 1)
	if _, _, err := s.GenerateKey(ctx, 16); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if o.calls != 0 {
		t.Errorf("oracle called after cancellation")
	}
}

func TestNewSimulatorValidation(t *testing.T) {
	o := photon.NewIdeal(rand.New(rand.NewSource(1)))
	r := rand.New(rand.NewSource(1))
	tcs := []struct {
		name string
		opts Opts
		eErr bool
	}{
		{"valid", Opts{Oracle: o, Rand: r}, false},
		{"no oracle", Opts{Rand: r}, true},
		{"no rand", Opts{Oracle: o}, true},
		{"negative max", Opts{Oracle: o, Rand: r, MaxQubits: -1}, true},
	}
	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewSimulator(tc.opts)
			if !tc.eErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if tc.eErr && err == nil {
				t.Errorf("expected error: got nil")
			}
		})
	}
}
