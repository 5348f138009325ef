// Package ristretto provides the Scalar/Point group arithmetic the wire
// format's Data Model (spec.md §3) is built on: 32-byte compressed Ristretto255
// group elements and scalars reduced modulo the group order. It is a thin,
// domain-named wrapper over github.com/gtank/ristretto255 (the canonical Go
// Ristretto255 implementation; no repo in the retrieved corpus imports it, so
// it is named here as an out-of-pack dependency rather than grounded on a
// specific example — see SPEC_FULL.md §4.1a / DESIGN.md C1).
package ristretto

import (
	"crypto/rand"
	"fmt"

	"github.com/gtank/ristretto255"
)

// PointSize and ScalarSize are the fixed on-wire sizes dictated by the curve
// (spec.md §4.1).
const (
	PointSize  = 32
	ScalarSize = 32
)

// Scalar is an integer modulo the Ristretto255 group order.
type Scalar struct {
	inner *ristretto255.Scalar
}

// Point is a compressed Ristretto255 group element.
type Point struct {
	inner *ristretto255.Element
}

// NewRandomScalar draws a uniformly random, nonzero scalar from the OS CSPRNG.
func NewRandomScalar() (*Scalar, error) {
	var buf [64]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return nil, fmt.Errorf("ristretto: reading random bytes: %w", err)
	}
	s := ristretto255.NewScalar().FromUniformBytes(buf[:])
	return &Scalar{inner: s}, nil
}

// ScalarFromUniformBytes reduces a 64-byte wide input (e.g. a SHA3-512
// digest) into a Scalar modulo the group order. This is the signature
// challenge reduction of spec.md §3: "SHA3_512(...) reduced to Scalar".
func ScalarFromUniformBytes(wide [64]byte) *Scalar {
	s := ristretto255.NewScalar().FromUniformBytes(wide[:])
	return &Scalar{inner: s}
}

// DecodeScalar decodes a canonical 32-byte little-endian scalar encoding.
func DecodeScalar(data []byte) (*Scalar, error) {
	if len(data) != ScalarSize {
		return nil, fmt.Errorf("ristretto: scalar must be %d bytes, got %d", ScalarSize, len(data))
	}
	s := ristretto255.NewScalar()
	if err := s.Decode(data); err != nil {
		return nil, fmt.Errorf("ristretto: decoding scalar: %w", err)
	}
	return &Scalar{inner: s}, nil
}

// Encode returns the canonical 32-byte encoding of the scalar.
func (s *Scalar) Encode() []byte {
	return s.inner.Encode(nil)
}

// Add returns s + other.
func (s *Scalar) Add(other *Scalar) *Scalar {
	return &Scalar{inner: ristretto255.NewScalar().Add(s.inner, other.inner)}
}

// Multiply returns s * other.
func (s *Scalar) Multiply(other *Scalar) *Scalar {
	return &Scalar{inner: ristretto255.NewScalar().Multiply(s.inner, other.inner)}
}

// Equal reports whether s and other encode the same scalar.
func (s *Scalar) Equal(other *Scalar) bool {
	return s.inner.Equal(other.inner) == 1
}

// BasePointMult returns s * B, where B is the Ristretto255 base point.
func (s *Scalar) BasePointMult() *Point {
	return &Point{inner: ristretto255.NewElement().ScalarBaseMult(s.inner)}
}

// IdentityPoint is the group identity element.
func IdentityPoint() *Point {
	return &Point{inner: ristretto255.NewElement()}
}

// DecodePoint decodes a canonical 32-byte compressed point encoding.
func DecodePoint(data []byte) (*Point, error) {
	if len(data) != PointSize {
		return nil, fmt.Errorf("ristretto: point must be %d bytes, got %d", PointSize, len(data))
	}
	e := ristretto255.NewElement()
	if err := e.Decode(data); err != nil {
		return nil, fmt.Errorf("ristretto: decoding point: %w", err)
	}
	return &Point{inner: e}, nil
}

// Encode returns the canonical 32-byte compressed encoding of the point.
func (p *Point) Encode() []byte {
	return p.inner.Encode(nil)
}

// Add returns p + other.
func (p *Point) Add(other *Point) *Point {
	return &Point{inner: ristretto255.NewElement().Add(p.inner, other.inner)}
}

// ScalarMult returns s * p.
func (p *Point) ScalarMult(s *Scalar) *Point {
	return &Point{inner: ristretto255.NewElement().ScalarMult(s.inner, p.inner)}
}

// Equal reports whether p and other encode the same point.
func (p *Point) Equal(other *Point) bool {
	return p.inner.Equal(other.inner) == 1
}

// MultiScalarMult computes the multi-scalar multiplication
// Σ scalars[i]*points[i] in a single pass, used by the transaction
// validator's batched Schnorr verification (spec.md §4.2).
func MultiScalarMult(scalars []*Scalar, points []*Point) (*Point, error) {
	if len(scalars) != len(points) {
		return nil, fmt.Errorf("ristretto: mismatched scalar/point counts: %d != %d", len(scalars), len(points))
	}
	innerScalars := make([]*ristretto255.Scalar, len(scalars))
	innerPoints := make([]*ristretto255.Element, len(points))
	for i := range scalars {
		innerScalars[i] = scalars[i].inner
		innerPoints[i] = points[i].inner
	}
	result := ristretto255.NewElement().MultiscalarMul(innerScalars, innerPoints)
	return &Point{inner: result}, nil
}
