package main

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"

	"github.com/alan-christopher/bb84sim/bb84"
	"github.com/alan-christopher/bb84sim/bb84/bitmap"
	"github.com/alan-christopher/bb84sim/bb84/keystore"
	"github.com/alan-christopher/bb84sim/bb84/photon"
	log "github.com/sirupsen/logrus"
)

// defaultExchangeBits is the number of qubits exchanged by the exchange and
// circuit commands when --bits is unset.
const (
	defaultExchangeBits = 127
	defaultCircuitBits  = 8
)

// envelopeLabel separates the envelope MAC stream from any other use of a key.
const envelopeLabel = "qkd envelope v1"

func newSimulator(cfg Config, r *rand.Rand) (*bb84.Simulator, error) {
	oracle, err := cfg.Channel.Build(r)
	if err != nil {
		return nil, err
	}
	return bb84.NewSimulator(bb84.Opts{
		Oracle:       oracle,
		Rand:         rand.New(rand.NewSource(r.Int63())),
		ReceiverRand: rand.New(rand.NewSource(r.Int63())),
		MaxQubits:    cfg.MaxQubits,
		Logger:       log.WithField("component", "bb84"),
	})
}

// runDemo negotiates a key long enough to cover message, then encrypts and
// decrypts message with it, printing every step.
func runDemo(w io.Writer, cfg Config, r *rand.Rand, message string, bits int) error {
	if bits == 0 {
		bits = len(message) * 8
	}
	sim, err := newSimulator(cfg, r)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Original Message: %s\n", message)
	key, stats, err := sim.GenerateKey(context.Background(), bits)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"requested": stats.Requested,
		"qubits":    stats.Qubits,
		"sifted":    stats.Sifted,
	}).Infoln("Negotiated key")
	fmt.Fprintf(w, "Quantum Key: %s\n", key)
	ct, err := bb84.Encrypt(message, key)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Encrypted Message (Binary): %s\n", ct)
	pt, err := bb84.Decrypt(ct, key)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Decrypted Message: %s\n", pt)
	if pt != message {
		return fmt.Errorf("decryption failed: got %q, want %q", pt, message)
	}
	return nil
}

// runExchange negotiates a key and stores it under name.
func runExchange(w io.Writer, cfg Config, r *rand.Rand, name string, bits int) error {
	if bits == 0 {
		bits = defaultExchangeBits
	}
	sim, err := newSimulator(cfg, r)
	if err != nil {
		return err
	}
	key, stats, err := sim.GenerateKey(context.Background(), bits)
	if err != nil {
		return err
	}
	if key.Size() == 0 {
		return fmt.Errorf("negotiated an empty key from %d qubits", stats.Qubits)
	}
	store, err := keystore.Open(cfg.Keystore)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Put(name, key); err != nil {
		return err
	}
	fmt.Fprintf(w, "Stored %d-bit key %q (%d qubits exchanged)\n", key.Size(), name, stats.Qubits)
	return nil
}

// runEncrypt encrypts message under the stored key name and writes it as an
// authenticated envelope to out.
func runEncrypt(cfg Config, name, message, out string) (err error) {
	key, err := loadKey(cfg, name)
	if err != nil {
		return err
	}
	ct, err := bb84.Encrypt(message, key)
	if err != nil {
		return err
	}
	f := os.Stdout
	if out != "-" {
		if f, err = os.Create(out); err != nil {
			return err
		}
		defer func() {
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}()
	}
	w := bufio.NewWriter(f)
	if err := writeEnvelope(w, key, bb84.Envelope{KeyID: name, Ciphertext: ct}); err != nil {
		return err
	}
	return w.Flush()
}

// runDecrypt reads an envelope from in, and decrypts it with the key it names,
// or with the key name when non-empty.
func runDecrypt(w io.Writer, cfg Config, name, in string) error {
	f := os.Stdin
	if in != "-" {
		var err error
		if f, err = os.Open(in); err != nil {
			return err
		}
		defer f.Close()
	}
	store, err := keystore.Open(cfg.Keystore)
	if err != nil {
		return err
	}
	defer store.Close()
	msg, err := readEnvelope(f, func(keyID string) (bitmap.Dense, error) {
		if name != "" {
			keyID = name
		}
		return store.Get(keyID)
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(w, msg)
	return nil
}

// runCircuit prints the OpenQASM program for one randomly prepared exchange.
func runCircuit(w io.Writer, r *rand.Rand, bits int) error {
	if bits == 0 {
		bits = defaultCircuitBits
	}
	prog, err := photon.QASM(bitmap.Random(r, bits), bitmap.Random(r, bits), bitmap.Random(r, bits))
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, prog)
	return err
}

// runKeys lists the stored keys.
func runKeys(w io.Writer, cfg Config) error {
	store, err := keystore.Open(cfg.Keystore)
	if err != nil {
		return err
	}
	defer store.Close()
	names, err := store.List()
	if err != nil {
		return err
	}
	for _, n := range names {
		key, err := store.Get(n)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%d bits\n", n, key.Size())
	}
	return nil
}

func loadKey(cfg Config, name string) (bitmap.Dense, error) {
	store, err := keystore.Open(cfg.Keystore)
	if err != nil {
		return bitmap.Empty(), err
	}
	defer store.Close()
	return store.Get(name)
}

func writeEnvelope(w io.Writer, key bitmap.Dense, e bb84.Envelope) error {
	secret, err := bb84.SecretStream(key, envelopeLabel)
	if err != nil {
		return err
	}
	codec, err := bb84.NewEnvelopeCodec(halfDuplex{w: w}, secret, bb84.EnvelopeOpts{})
	if err != nil {
		return err
	}
	return codec.WriteEnvelope(e)
}

// readEnvelope can't know which key authenticates an envelope until it has
// read the key id, so it peeks at the record before verifying it.
func readEnvelope(r io.Reader, lookup func(keyID string) (bitmap.Dense, error)) (string, error) {
	frame, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	keyID, err := bb84.PeekKeyID(frame)
	if err != nil {
		return "", err
	}
	key, err := lookup(keyID)
	if err != nil {
		return "", err
	}
	secret, err := bb84.SecretStream(key, envelopeLabel)
	if err != nil {
		return "", err
	}
	codec, err := bb84.NewEnvelopeCodec(halfDuplex{r: bytes.NewReader(frame)}, secret, bb84.EnvelopeOpts{})
	if err != nil {
		return "", err
	}
	e, err := codec.ReadEnvelope()
	if err != nil {
		return "", err
	}
	return bb84.Decrypt(e.Ciphertext, key)
}

// halfDuplex adapts a reader or a writer for codecs that only use one
// direction.
type halfDuplex struct {
	r io.Reader
	w io.Writer
}

func (h halfDuplex) Read(p []byte) (int, error) {
	if h.r == nil {
		return 0, os.ErrInvalid
	}
	return h.r.Read(p)
}

func (h halfDuplex) Write(p []byte) (int, error) {
	if h.w == nil {
		return 0, os.ErrInvalid
	}
	return h.w.Write(p)
}
