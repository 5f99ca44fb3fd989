package fingerprint

import (
	"fmt"
	"math"
)

// Score is a correlation value or the absence of one.
type Score struct {
	Value float64
	Valid bool
}

// NoScore is the result of a comparison that could not be computed.
func NoScore() Score {
	return Score{}
}

// Exceeds reports whether s is a valid score strictly above threshold.
func (s Score) Exceeds(threshold float64) bool {
	return s.Valid && s.Value > threshold
}

// Beats reports whether s should replace best as the running maximum.
// Any valid score beats no score; equal values do not replace.
func (s Score) Beats(best Score) bool {
	if !s.Valid {
		return false
	}
	return !best.Valid || s.Value > best.Value
}

// Ptr returns the value for nullable storage, nil when there is no score.
func (s Score) Ptr() *float64 {
	if !s.Valid {
		return nil
	}
	v := s.Value
	return &v
}

func (s Score) String() string {
	if !s.Valid {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", s.Value)
}

// Correlate computes the Pearson correlation of the bucket weights of a and b.
// Signatures with no variance (for example the zero value) yield NoScore.
func Correlate(a, b Signature) Score {
	var meanA, meanB float64
	for i := range Buckets {
		meanA += float64(a.weights[i])
		meanB += float64(b.weights[i])
	}
	meanA /= Buckets
	meanB /= Buckets

	var num, varA, varB float64
	for i := range Buckets {
		da := float64(a.weights[i]) - meanA
		db := float64(b.weights[i]) - meanB
		num += da * db
		varA += da * da
		varB += db * db
	}

	den := math.Sqrt(varA * varB)
	if den == 0 || math.IsNaN(den) {
		return NoScore()
	}

	r := num / den
	return Score{Value: math.Max(-1, math.Min(1, r)), Valid: true}
}
