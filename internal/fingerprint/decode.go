package fingerprint

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrEmptyImage is wrapped by DecodeError when there are no bytes to decode.
var ErrEmptyImage = errors.New("empty image data")

// DecodeError reports image bytes that could not be turned into a pixel grid.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return "failed to decode image: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Decode turns raw encoded image bytes into a Grid.
func Decode(data []byte) (*Grid, error) {
	if len(data) == 0 {
		return nil, &DecodeError{Err: ErrEmptyImage}
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Err: err}
	}

	g := NewGrid(img)
	if g.Empty() {
		return nil, &DecodeError{Err: fmt.Errorf("image has no pixels: %w", ErrEmptyImage)}
	}
	return g, nil
}

// Digest returns the hex SHA-256 of image bytes.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
