package facematch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEqualizeHist(t *testing.T) {
	tests := []struct {
		name     string
		input    []uint8
		expected []uint8
	}{
		{"empty", []uint8{}, []uint8{}},
		{"single level unchanged", []uint8{7, 7, 7}, []uint8{7, 7, 7}},
		{"two levels stretched", []uint8{100, 101, 100, 101}, []uint8{0, 255, 0, 255}},
		{"three levels", []uint8{10, 20, 30, 30}, []uint8{0, 85, 255, 255}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, equalizeHist(tc.input))
		})
	}
}

func TestEqualizeHistDoesNotModifyInput(t *testing.T) {
	in := []uint8{1, 2, 3}
	equalizeHist(in)
	assert.Equal(t, []uint8{1, 2, 3}, in)
}
