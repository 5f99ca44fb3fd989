package facematch

import (
	"image"
	"math"
	"testing"

	"github.com/kozaktomas/facelog/internal/fingerprint"
)

func TestComputeIoU(t *testing.T) {
	tests := []struct {
		name     string
		a        image.Rectangle
		b        image.Rectangle
		expected float64
	}{
		{
			name:     "identical boxes",
			a:        image.Rect(0, 0, 10, 10),
			b:        image.Rect(0, 0, 10, 10),
			expected: 1.0,
		},
		{
			name:     "no overlap",
			a:        image.Rect(0, 0, 10, 10),
			b:        image.Rect(20, 20, 30, 30),
			expected: 0.0,
		},
		{
			name:     "touching edges",
			a:        image.Rect(0, 0, 10, 10),
			b:        image.Rect(10, 0, 20, 10),
			expected: 0.0,
		},
		{
			name:     "partial overlap",
			a:        image.Rect(0, 0, 10, 10),
			b:        image.Rect(5, 5, 15, 15),
			expected: 25.0 / 175.0, // intersection=25, union=100+100-25=175
		},
		{
			name:     "one inside other",
			a:        image.Rect(0, 0, 20, 20),
			b:        image.Rect(5, 5, 15, 15),
			expected: 100.0 / 400.0,
		},
		{
			name:     "empty rectangles",
			a:        image.Rectangle{},
			b:        image.Rectangle{},
			expected: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ComputeIoU(tt.a, tt.b)
			if math.Abs(result-tt.expected) > 0.0001 {
				t.Errorf("ComputeIoU(%v, %v) = %v, want %v", tt.a, tt.b, result, tt.expected)
			}
		})
	}
}

func TestLargest(t *testing.T) {
	g := newTestGrid(100, 100)
	mustRegion := func(x, y, w, h int) fingerprint.Region {
		r, err := g.Region(x, y, w, h)
		if err != nil {
			t.Fatalf("Region(%d,%d,%d,%d): %v", x, y, w, h, err)
		}
		return r
	}

	if _, ok := Largest(nil); ok {
		t.Error("expected no region for empty input")
	}

	small := mustRegion(0, 0, 10, 10)
	big := mustRegion(20, 20, 40, 40)
	sameArea := mustRegion(50, 50, 40, 40)

	got, ok := Largest([]fingerprint.Region{small, big, sameArea})
	if !ok {
		t.Fatal("expected a region")
	}
	if got != big {
		t.Errorf("Largest = %+v, want first of the largest %+v", got, big)
	}
}

func TestDetectionRect(t *testing.T) {
	tests := []struct {
		name     string
		det      Detection
		expected image.Rectangle
	}{
		{"centered", Detection{Row: 50, Col: 50, Scale: 20}, image.Rect(40, 40, 60, 60)},
		{"clamped top left", Detection{Row: 5, Col: 5, Scale: 20}, image.Rect(0, 0, 15, 15)},
		{"clamped bottom right", Detection{Row: 95, Col: 95, Scale: 20}, image.Rect(85, 85, 100, 100)},
		{"outside", Detection{Row: 200, Col: 200, Scale: 20}, image.Rectangle{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := detectionRect(tt.det, 100, 100)
			if got.Empty() && tt.expected.Empty() {
				return
			}
			if got != tt.expected {
				t.Errorf("detectionRect(%+v) = %v, want %v", tt.det, got, tt.expected)
			}
		})
	}
}
