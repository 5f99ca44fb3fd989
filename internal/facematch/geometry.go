package facematch

import (
	"image"

	"github.com/kozaktomas/facelog/internal/fingerprint"
)

// ComputeIoU calculates Intersection over Union between two rectangles.
func ComputeIoU(a, b image.Rectangle) float64 {
	inter := a.Intersect(b)
	if inter.Empty() {
		return 0 // No intersection
	}

	intersection := float64(inter.Dx() * inter.Dy())
	union := float64(a.Dx()*a.Dy()+b.Dx()*b.Dy()) - intersection
	if union <= 0 {
		return 0
	}

	return intersection / union
}

// Largest returns the region with the largest area. Ties keep the first region.
func Largest(regions []fingerprint.Region) (fingerprint.Region, bool) {
	if len(regions) == 0 {
		return fingerprint.Region{}, false
	}
	best := regions[0]
	for _, r := range regions[1:] {
		if r.Area() > best.Area() {
			best = r
		}
	}
	return best, true
}

// squareRect converts a centre/side detection into its square.
func squareRect(d Detection) image.Rectangle {
	half := d.Scale / 2
	return image.Rect(d.Col-half, d.Row-half, d.Col-half+d.Scale, d.Row-half+d.Scale)
}

// detectionRect is squareRect clamped to a w x h grid.
func detectionRect(d Detection, w, h int) image.Rectangle {
	return squareRect(d).Intersect(image.Rect(0, 0, w, h))
}
