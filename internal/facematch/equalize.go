package facematch

import "math"

// equalizeHist spreads the luma histogram of pixels over the full 0-255 range.
// The lowest occupied level maps to 0; a single-level image is returned unchanged.
func equalizeHist(pixels []uint8) []uint8 {
	out := make([]uint8, len(pixels))
	if len(pixels) == 0 {
		return out
	}

	var hist [256]int
	for _, p := range pixels {
		hist[p]++
	}

	first := 0
	for hist[first] == 0 {
		first++
	}
	total := len(pixels)
	if hist[first] == total {
		copy(out, pixels)
		return out
	}

	var lut [256]uint8
	scale := 255.0 / float64(total-hist[first])
	sum := 0
	for i := first + 1; i < 256; i++ {
		sum += hist[i]
		v := math.Round(float64(sum) * scale)
		lut[i] = uint8(min(255, max(0, v)))
	}

	for i, p := range pixels {
		out[i] = lut[p]
	}
	return out
}
