// Package schnorr implements the Schnorr signature scheme over Ristretto255
// specified in spec.md §3/§4.2: challenge e = SHA3-512(pubkey ‖ message ‖
// R.compress()) reduced to a Scalar, response s = k + e*privkey. The
// sign/verify control flow is grounded on the gate-function shape used
// throughout the teacher's validation code (a typed-error-returning check,
// no panics on malformed input) even though the teacher signs over
// secp256k1 rather than Ristretto255.
package schnorr

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/sha3"

	"github.com/tos-network/tos/crypto/ristretto"
)

// PublicKeySize and SignatureSize are the wire sizes of a public key and a
// full signature (R ‖ s), each a 32-byte Ristretto255 element/scalar.
const (
	PublicKeySize = ristretto.PointSize
	SignatureSize = ristretto.PointSize + ristretto.ScalarSize
)

// PrivateKey is a Ristretto255 scalar.
type PrivateKey struct {
	scalar *ristretto.Scalar
}

// GeneratePrivateKey draws a fresh private key from the OS CSPRNG.
func GeneratePrivateKey() (*PrivateKey, error) {
	s, err := ristretto.NewRandomScalar()
	if err != nil {
		return nil, err
	}
	return &PrivateKey{scalar: s}, nil
}

// PublicKey derives the public key priv*B.
func (priv *PrivateKey) PublicKey() *ristretto.Point {
	return priv.scalar.BasePointMult()
}

// Signature is a Schnorr signature: a commitment point R and response scalar s.
type Signature struct {
	R *ristretto.Point
	S *ristretto.Scalar
}

// Encode serializes the signature as R ‖ s, SignatureSize bytes.
func (sig *Signature) Encode() []byte {
	out := make([]byte, 0, SignatureSize)
	out = append(out, sig.R.Encode()...)
	out = append(out, sig.S.Encode()...)
	return out
}

// DecodeSignature parses a SignatureSize-byte R ‖ s encoding.
func DecodeSignature(data []byte) (*Signature, error) {
	if len(data) != SignatureSize {
		return nil, fmt.Errorf("schnorr: signature must be %d bytes, got %d", SignatureSize, len(data))
	}
	r, err := ristretto.DecodePoint(data[:ristretto.PointSize])
	if err != nil {
		return nil, fmt.Errorf("schnorr: decoding R: %w", err)
	}
	s, err := ristretto.DecodeScalar(data[ristretto.PointSize:])
	if err != nil {
		return nil, fmt.Errorf("schnorr: decoding s: %w", err)
	}
	return &Signature{R: r, S: s}, nil
}

// Challenge computes e = SHA3-512(pubkey ‖ message ‖ R.compress()) reduced
// mod q, the signature challenge contract of spec.md §4.1.
func Challenge(pubkey *ristretto.Point, message []byte, r *ristretto.Point) *ristretto.Scalar {
	h := sha3.New512()
	h.Write(pubkey.Encode())
	h.Write(message)
	h.Write(r.Encode())
	var digest [64]byte
	h.Sum(digest[:0])
	return ristretto.ScalarFromUniformBytes(digest)
}

// Sign produces a Schnorr signature over message with priv. The nonce k is
// derived via SHA3-512 from the private key, the message and 32 fresh random
// bytes from a CSPRNG, so signing the same message twice with the same key
// yields two different (equally valid) signatures.
func Sign(priv *PrivateKey, message []byte) (*Signature, error) {
	pub := priv.PublicKey()

	var blind [32]byte
	if _, err := rand.Read(blind[:]); err != nil {
		return nil, fmt.Errorf("schnorr: reading random blind: %w", err)
	}

	h := sha3.New512()
	h.Write(priv.scalar.Encode())
	h.Write(message)
	h.Write(blind[:])
	var nonceDigest [64]byte
	h.Sum(nonceDigest[:0])
	k := ristretto.ScalarFromUniformBytes(nonceDigest)

	r := k.BasePointMult()
	e := Challenge(pub, message, r)
	s := k.Add(e.Multiply(priv.scalar))

	return &Signature{R: r, S: s}, nil
}

// Verify checks sig against message under pubkey: B*s == R + pubkey*e.
func Verify(pubkey *ristretto.Point, message []byte, sig *Signature) bool {
	e := Challenge(pubkey, message, sig.R)
	lhs := sig.S.BasePointMult()
	rhs := sig.R.Add(pubkey.ScalarMult(e))
	return lhs.Equal(rhs)
}

// BatchItem is one (pubkey, message, signature) triple to verify together.
type BatchItem struct {
	PublicKey *ristretto.Point
	Message   []byte
	Signature *Signature
}

// VerifyBatch verifies n signatures with O(n) Ristretto scalar/point
// operations via a single multi-scalar multiplication, per spec.md §4.2's
// batched validator variant. The batch equation checked is:
//
//	B * (Σ zi*si)  ==  Σ zi*Ri + Σ (zi*ei)*Pi
//
// where zi are independent random blinding weights (drawn per item) so a
// forger cannot cancel an invalid signature's error term against another
// item's. Returns (true, nil) iff every signature is valid; on failure the
// caller cannot tell which item failed and must fall back to individual
// Verify calls to localize the bad signature.
func VerifyBatch(items []BatchItem) (bool, error) {
	if len(items) == 0 {
		return true, nil
	}

	scalars := make([]*ristretto.Scalar, 0, 2*len(items)+1)
	points := make([]*ristretto.Point, 0, 2*len(items)+1)

	// sum accumulates Σ zi*si.
	var sum *ristretto.Scalar

	for _, item := range items {
		z, err := ristretto.NewRandomScalar()
		if err != nil {
			return false, err
		}
		e := Challenge(item.PublicKey, item.Message, item.Signature.R)

		zs := z.Multiply(item.Signature.S)
		if sum == nil {
			sum = zs
		} else {
			sum = sum.Add(zs)
		}

		scalars = append(scalars, z)
		points = append(points, item.Signature.R)

		ze := z.Multiply(e)
		scalars = append(scalars, ze)
		points = append(points, item.PublicKey)
	}

	lhs := sum.BasePointMult()
	rhs, err := ristretto.MultiScalarMult(scalars, points)
	if err != nil {
		return false, err
	}
	return lhs.Equal(rhs), nil
}
