package bb84

import (
	"bytes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/alan-christopher/bb84sim/bb84/bitmap"
	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/hkdf"
	"google.golang.org/protobuf/encoding/protowire"
)

var (
	DefaultEpsilon        = 1e-12
	DefaultMaxRecordBytes = 4 << 10
)

// ErrInvalidMAC indicates an envelope that failed authentication.
var ErrInvalidMAC = errors.New("invalid mac")

// Field numbers of the envelope record.
const (
	keyIDField      protowire.Number = 1
	ciphertextField protowire.Number = 2
	bitLenField     protowire.Number = 3
)

// An Envelope carries a ciphertext along with the name of the key it was
// encrypted under.
type Envelope struct {
	KeyID      string
	Ciphertext bitmap.Dense
}

// EnvelopeOpts tunes an EnvelopeCodec. Zero values select defaults.
type EnvelopeOpts struct {
	// EpsilonAuth specifies the probability that we are willing to accept that
	// an adversary can forge a message. Each envelope spends log_2(1/EpsilonAuth)
	// bits of secret, rounded up to the nearest byte.
	//
	// Defaults to DefaultEpsilon.
	EpsilonAuth float64

	// MaxRecordBytes bounds the size of an encoded envelope, which in turn
	// decides how much secret is spent up front on the hash matrix. Defaults
	// to DefaultMaxRecordBytes.
	MaxRecordBytes int
}

// An EnvelopeCodec reads and writes framed envelopes to the wire.
// The structure of the frame is trivial:  record-length | record | mac
//
// Records use the protobuf wire format. MACs are computed by applying a secret
// Toeplitz matrix to create a hash, then applying a one-time pad to the hash
// to allow for unconditional security. See also,
// https://arxiv.org/abs/1603.08387.
type EnvelopeCodec struct {
	rw       io.ReadWriter
	secret   io.Reader
	t        toeplitz
	maxBytes int
}

// NewEnvelopeCodec returns a codec exchanging envelopes over rw. Both ends must
// draw from identical secret streams, and must read and write envelopes in the
// same order.
func NewEnvelopeCodec(rw io.ReadWriter, secret io.Reader, opts EnvelopeOpts) (*EnvelopeCodec, error) {
	if rw == nil {
		return nil, errors.New("must provide a ReadWriter")
	}
	if secret == nil {
		return nil, errors.New("must provide secret")
	}
	eps := opts.EpsilonAuth
	if eps == 0 {
		eps = DefaultEpsilon
	}
	if eps < 0 || eps >= 1 {
		return nil, fmt.Errorf("EpsilonAuth must be within (0, 1), got %g", eps)
	}
	maxBytes := opts.MaxRecordBytes
	if maxBytes == 0 {
		maxBytes = DefaultMaxRecordBytes
	}
	m := bitmap.BytesFor(int(math.Ceil(math.Log2(1/eps)))) * 8
	nDiags := m + maxBytes*8 - 1
	diags := make([]byte, bitmap.BytesFor(nDiags))
	if _, err := io.ReadFull(secret, diags); err != nil {
		return nil, fmt.Errorf("reading hash seed: %w", err)
	}
	return &EnvelopeCodec{
		rw:     rw,
		secret: secret,
		t: toeplitz{
			diags: bitmap.NewDense(diags, nDiags),
			m:     m,
		},
		maxBytes: maxBytes,
	}, nil
}

// WriteEnvelope frames and authenticates e, then writes it.
func (c *EnvelopeCodec) WriteEnvelope(e Envelope) error {
	marshalled := e.marshal()
	if len(marshalled) > c.maxBytes {
		return fmt.Errorf("envelope of %d bytes exceeds limit of %d", len(marshalled), c.maxBytes)
	}
	if err := binary.Write(c.rw, binary.LittleEndian, int32(len(marshalled))); err != nil {
		return err
	}
	if _, err := c.rw.Write(marshalled); err != nil {
		return err
	}
	mac, err := c.buildMAC(marshalled)
	if err != nil {
		return err
	}
	if _, err := c.rw.Write(mac); err != nil {
		return err
	}
	return nil
}

// ReadEnvelope reads the next envelope, verifying its MAC.
func (c *EnvelopeCodec) ReadEnvelope() (Envelope, error) {
	var mLen int32
	if err := binary.Read(c.rw, binary.LittleEndian, &mLen); err != nil {
		return Envelope{}, err
	}
	if mLen < 0 || int(mLen) > c.maxBytes {
		return Envelope{}, fmt.Errorf("envelope of %d bytes exceeds limit of %d", mLen, c.maxBytes)
	}
	marshalled := make([]byte, mLen)
	if _, err := io.ReadFull(c.rw, marshalled); err != nil {
		return Envelope{}, err
	}
	mac := make([]byte, c.t.m/8)
	if _, err := io.ReadFull(c.rw, mac); err != nil {
		return Envelope{}, err
	}
	emac, err := c.buildMAC(marshalled)
	if err != nil {
		return Envelope{}, err
	}
	if !bytes.Equal(mac, emac) {
		return Envelope{}, fmt.Errorf("%w: got %x, expected %x", ErrInvalidMAC, mac, emac)
	}
	return unmarshalEnvelope(marshalled)
}

// PeekKeyID returns the key id of the first envelope framed in b without
// authenticating it. Callers use it to find the key for a codec, and must
// still read the envelope through that codec before trusting its contents.
func PeekKeyID(b []byte) (string, error) {
	if len(b) < 4 {
		return "", io.ErrUnexpectedEOF
	}
	mLen := int32(binary.LittleEndian.Uint32(b))
	b = b[4:]
	if mLen < 0 || int(mLen) > len(b) {
		return "", fmt.Errorf("envelope length %d exceeds frame of %d bytes", mLen, len(b))
	}
	e, err := unmarshalEnvelope(b[:mLen])
	if err != nil {
		return "", err
	}
	return e.KeyID, nil
}

func (c *EnvelopeCodec) buildMAC(msg []byte) ([]byte, error) {
	c.t.n = len(msg) * 8
	hash, err := c.t.Mul(bitmap.NewDense(msg, -1))
	if err != nil {
		return nil, err
	}
	otp := make([]byte, hash.SizeBytes())
	if _, err := io.ReadFull(c.secret, otp); err != nil {
		return nil, fmt.Errorf("reading one-time pad: %w", err)
	}
	mac := bitmap.XOr(hash, bitmap.NewDense(otp, -1))
	return mac.Data(), nil
}

func (e Envelope) marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, keyIDField, protowire.BytesType)
	b = protowire.AppendString(b, e.KeyID)
	b = protowire.AppendTag(b, ciphertextField, protowire.BytesType)
	b = protowire.AppendBytes(b, e.Ciphertext.Data()[:e.Ciphertext.SizeBytes()])
	b = protowire.AppendTag(b, bitLenField, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(e.Ciphertext.Size()))
	return b
}

func unmarshalEnvelope(b []byte) (Envelope, error) {
	var (
		e      Envelope
		data   []byte
		bitLen uint64
	)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Envelope{}, protowire.ParseError(n)
		}
		b = b[n:]
		switch {
		case num == keyIDField && typ == protowire.BytesType:
			e.KeyID, n = protowire.ConsumeString(b)
		case num == ciphertextField && typ == protowire.BytesType:
			var v []byte
			v, n = protowire.ConsumeBytes(b)
			data = append([]byte(nil), v...)
		case num == bitLenField && typ == protowire.VarintType:
			bitLen, n = protowire.ConsumeVarint(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return Envelope{}, protowire.ParseError(n)
		}
		b = b[n:]
	}
	if bitLen > uint64(len(data))*8 || uint64(bitmap.BytesFor(int(bitLen))) != uint64(len(data)) {
		return Envelope{}, fmt.Errorf("ciphertext of %d bytes cannot hold %d bits", len(data), bitLen)
	}
	if off := bitLen % 8; off != 0 {
		data[len(data)-1] &= 0xFF >> (8 - off)
	}
	e.Ciphertext = bitmap.NewDense(data, int(bitLen))
	return e, nil
}

// SecretStream derives an unbounded stream of shared secret bytes from an
// agreed key, suitable for an EnvelopeCodec. Distinct labels yield independent
// streams.
func SecretStream(key bitmap.Dense, label string) (io.Reader, error) {
	if key.Size() == 0 {
		return nil, fmt.Errorf("%w: empty key", ErrInvalidArgument)
	}
	var ikm []byte
	ikm = binary.BigEndian.AppendUint32(ikm, uint32(key.Size()))
	ikm = append(ikm, key.Data()[:key.SizeBytes()]...)
	kdf := hkdf.New(sha256.New, ikm, nil, []byte(label))
	seed := make([]byte, chacha20.KeySize+chacha20.NonceSize)
	if _, err := io.ReadFull(kdf, seed); err != nil {
		return nil, err
	}
	s, err := chacha20.NewUnauthenticatedCipher(seed[:chacha20.KeySize], seed[chacha20.KeySize:])
	if err != nil {
		return nil, err
	}
	return cipher.StreamReader{S: s, R: zeros{}}, nil
}

// zeros is an endless source of zero bytes.
type zeros struct{}

func (zeros) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}
