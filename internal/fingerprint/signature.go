package fingerprint

import (
	"errors"
	"fmt"
	"math"

	"github.com/disintegration/imaging"
)

const (
	// CropSize is the side of the canonical grayscale crop a signature is built from.
	CropSize = 100
	// Buckets is the number of intensity buckets in a signature.
	Buckets = 256
)

// ErrSignatureLength is returned when restoring a signature from a weight slice of the wrong size.
var ErrSignatureLength = errors.New("signature must have 256 weights")

// Signature is an L2-normalized 256-bucket intensity histogram of a 100x100 face crop.
// The zero value carries no information and scores as "no score".
type Signature struct {
	weights [Buckets]float32
}

// Extract builds the signature of region r of grid g.
func Extract(g *Grid, r Region) (Signature, error) {
	if r.grid != g || !r.valid() {
		return Signature{}, ErrInvalidRegion
	}

	crop := imaging.Crop(g.Image, r.Rect())
	if crop.Bounds().Empty() {
		return Signature{}, ErrInvalidRegion
	}
	crop = imaging.Grayscale(crop)
	crop = imaging.Resize(crop, CropSize, CropSize, imaging.Linear)

	var counts [Buckets]float64
	for y := range CropSize {
		row := crop.Pix[y*crop.Stride:]
		for x := range CropSize {
			counts[row[x*4]]++
		}
	}

	var sumSq float64
	for _, c := range counts {
		sumSq += c * c
	}
	norm := math.Sqrt(sumSq)
	if norm == 0 {
		return Signature{}, ErrInvalidRegion
	}

	var sig Signature
	for i, c := range counts {
		sig.weights[i] = float32(c / norm)
	}
	return sig, nil
}

// SignatureFromWeights restores a signature persisted with Weights.
func SignatureFromWeights(w []float32) (Signature, error) {
	if len(w) != Buckets {
		return Signature{}, fmt.Errorf("%w: got %d", ErrSignatureLength, len(w))
	}
	var sig Signature
	copy(sig.weights[:], w)
	return sig, nil
}

// Weights returns a copy of the bucket weights.
func (s Signature) Weights() []float32 {
	out := make([]float32, Buckets)
	copy(out, s.weights[:])
	return out
}

// IsZero reports whether the signature is the zero value.
func (s Signature) IsZero() bool {
	return s.weights == [Buckets]float32{}
}
