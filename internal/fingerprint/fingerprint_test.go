package fingerprint

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestImage creates a solid color test image.
func createTestImage(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := range width {
		for y := range height {
			img.Set(x, y, c)
		}
	}
	return img
}

// createGradientImage creates a horizontal gradient from black to white.
func createGradientImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := range width {
		v := uint8(x * 255 / width)
		for y := range height {
			img.Set(x, y, color.RGBA{v, v, v, 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

func TestDecode(t *testing.T) {
	g, err := Decode(encodePNG(t, createGradientImage(40, 30)))
	require.NoError(t, err)
	assert.Equal(t, 40, g.Width)
	assert.Equal(t, 30, g.Height)
	assert.Equal(t, 3, g.Channels)
	assert.Len(t, g.Gray, 40*30)
	assert.Equal(t, uint8(0), g.Gray[0])
}

func TestDecodeGrayscaleSource(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 8, 8))
	g, err := Decode(encodePNG(t, img))
	require.NoError(t, err)
	assert.Equal(t, 1, g.Channels)
}

func TestDecodeJPEG(t *testing.T) {
	g, err := Decode(encodeJPEG(t, createTestImage(16, 16, color.White)))
	require.NoError(t, err)
	assert.Equal(t, 16, g.Width)
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"nil", nil},
		{"empty", []byte{}},
		{"garbage", []byte("not an image")},
		{"truncated png", encodePNG(t, createGradientImage(20, 20))[:30]},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			g, err := Decode(tc.data)
			assert.Nil(t, g)
			var decErr *DecodeError
			assert.True(t, errors.As(err, &decErr), "expected DecodeError, got %v", err)
		})
	}

	_, err := Decode(nil)
	assert.ErrorIs(t, err, ErrEmptyImage)
}

func TestGridRegion(t *testing.T) {
	g := NewGrid(createTestImage(50, 40, color.White))

	tests := []struct {
		name       string
		x, y, w, h int
		wantErr    bool
	}{
		{"full grid", 0, 0, 50, 40, false},
		{"inner", 10, 5, 20, 20, false},
		{"zero width", 0, 0, 0, 10, true},
		{"negative height", 0, 0, 10, -1, true},
		{"negative origin", -1, 0, 10, 10, true},
		{"exceeds width", 45, 0, 10, 10, true},
		{"exceeds height", 0, 35, 10, 10, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r, err := g.Region(tc.x, tc.y, tc.w, tc.h)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRegion)
				return
			}
			require.NoError(t, err)
			assert.Same(t, g, r.Grid())
			assert.Equal(t, tc.w*tc.h, r.Area())
		})
	}
}

func TestExtractDeterministic(t *testing.T) {
	g, err := Decode(encodePNG(t, createGradientImage(120, 90)))
	require.NoError(t, err)
	r, err := g.Region(10, 10, 80, 70)
	require.NoError(t, err)

	a, err := Extract(g, r)
	require.NoError(t, err)
	b, err := Extract(g, r)
	require.NoError(t, err)

	assert.Equal(t, a.Weights(), b.Weights())
	assert.False(t, a.IsZero())
}

func TestExtractUnitNorm(t *testing.T) {
	g := NewGrid(createGradientImage(64, 64))
	r, err := g.Region(0, 0, 64, 64)
	require.NoError(t, err)

	sig, err := Extract(g, r)
	require.NoError(t, err)

	var sumSq float64
	for _, w := range sig.Weights() {
		sumSq += float64(w) * float64(w)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sumSq), 1e-5)
}

func TestExtractInvalidRegion(t *testing.T) {
	g := NewGrid(createTestImage(30, 30, color.White))
	other := NewGrid(createTestImage(30, 30, color.Black))
	foreign, err := other.Region(0, 0, 10, 10)
	require.NoError(t, err)

	_, err = Extract(g, Region{})
	assert.ErrorIs(t, err, ErrInvalidRegion)

	_, err = Extract(g, foreign)
	assert.ErrorIs(t, err, ErrInvalidRegion)

	_, err = Extract(nil, Region{X: 0, Y: 0, Width: 5, Height: 5})
	assert.ErrorIs(t, err, ErrInvalidRegion)
}

func TestSignatureFromWeights(t *testing.T) {
	g := NewGrid(createGradientImage(32, 32))
	r, err := g.Region(0, 0, 32, 32)
	require.NoError(t, err)
	sig, err := Extract(g, r)
	require.NoError(t, err)

	restored, err := SignatureFromWeights(sig.Weights())
	require.NoError(t, err)
	assert.Equal(t, sig, restored)

	_, err = SignatureFromWeights(make([]float32, 128))
	assert.ErrorIs(t, err, ErrSignatureLength)
}

func TestCorrelate(t *testing.T) {
	gradient := NewGrid(createGradientImage(100, 100))
	solid := NewGrid(createTestImage(100, 100, color.RGBA{200, 200, 200, 255}))

	rg, err := gradient.Region(0, 0, 100, 100)
	require.NoError(t, err)
	rs, err := solid.Region(0, 0, 100, 100)
	require.NoError(t, err)

	a, err := Extract(gradient, rg)
	require.NoError(t, err)
	b, err := Extract(solid, rs)
	require.NoError(t, err)

	t.Run("self similarity", func(t *testing.T) {
		s := Correlate(a, a)
		assert.True(t, s.Valid)
		assert.InDelta(t, 1.0, s.Value, 1e-9)
	})

	t.Run("symmetric", func(t *testing.T) {
		assert.Equal(t, Correlate(a, b), Correlate(b, a))
	})

	t.Run("range", func(t *testing.T) {
		s := Correlate(a, b)
		assert.True(t, s.Valid)
		assert.GreaterOrEqual(t, s.Value, -1.0)
		assert.LessOrEqual(t, s.Value, 1.0)
		assert.Less(t, s.Value, 0.5)
	})

	t.Run("zero signature has no score", func(t *testing.T) {
		assert.False(t, Correlate(a, Signature{}).Valid)
		assert.False(t, Correlate(Signature{}, Signature{}).Valid)
	})
}

func TestScoreOrdering(t *testing.T) {
	none := NoScore()
	low := Score{Value: -0.4, Valid: true}
	high := Score{Value: 0.85, Valid: true}

	assert.True(t, low.Beats(none), "any valid score beats no score")
	assert.True(t, high.Beats(low))
	assert.False(t, high.Beats(high), "ties keep the incumbent")
	assert.False(t, none.Beats(low))

	assert.False(t, Score{Value: 0.7, Valid: true}.Exceeds(0.7))
	assert.True(t, Score{Value: 0.7000001, Valid: true}.Exceeds(0.7))
	assert.False(t, none.Exceeds(-2))

	assert.Nil(t, none.Ptr())
	require.NotNil(t, high.Ptr())
	assert.Equal(t, 0.85, *high.Ptr())
	assert.Equal(t, "0.85", high.String())
	assert.Equal(t, "n/a", none.String())
}

func TestParseDataURL(t *testing.T) {
	raw := []byte{0x89, 'P', 'N', 'G'}
	payload := base64.StdEncoding.EncodeToString(raw)

	tests := []struct {
		name       string
		input      string
		wantFormat string
		wantErr    error
	}{
		{"png envelope", "data:image/png;base64," + payload, "png", nil},
		{"jpeg envelope with whitespace", "  data:image/JPEG;base64," + payload + "\n", "jpeg", nil},
		{"missing delimiter", "data:image/png," + payload, "", ErrMalformedEnvelope},
		{"missing prefix", "image/png;base64," + payload, "", ErrMalformedEnvelope},
		{"empty payload", "data:image/png;base64,", "", ErrMalformedEnvelope},
		{"invalid base64", "data:image/png;base64,@@@###", "", ErrInvalidBase64},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			data, format, err := ParseDataURL(tc.input)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, raw, data)
			assert.Equal(t, tc.wantFormat, format)
		})
	}
}

func TestDigest(t *testing.T) {
	assert.Equal(t, Digest([]byte("abc")), Digest([]byte("abc")))
	assert.NotEqual(t, Digest([]byte("abc")), Digest([]byte("abd")))
	assert.Len(t, Digest(nil), 64)
}
