package facematch

import (
	_ "embed"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"sync"

	pigo "github.com/esimov/pigo/core"
)

//go:embed data/facefinder
var facefinderCascade []byte

// ErrCascadeNotLoaded is returned when the cascade file is missing or unreadable.
var ErrCascadeNotLoaded = errors.New("face cascade not loaded")

const (
	// shiftFactor moves the detection window by 10% of its size.
	shiftFactor = 0.1
	// cascadeHeaderLen is the header size pigo reads before the trees.
	cascadeHeaderLen = 16
	// maxTreeDepth bounds the per-tree allocation pigo makes from the header.
	maxTreeDepth = 8
)

// PigoClassifier wraps the pigo facefinder cascade. The cascade is unpacked once,
// on first use, and shared read-only by every detection afterwards.
type PigoClassifier struct {
	load func() ([]byte, error)

	once       sync.Once
	classifier *pigo.Pigo
	err        error
}

// NewPigoClassifier creates a classifier reading the cascade from path on first use.
// An empty path selects the built-in facefinder cascade.
func NewPigoClassifier(path string) *PigoClassifier {
	if path == "" {
		return NewPigoClassifierFromBytes(facefinderCascade)
	}
	return &PigoClassifier{
		load: func() ([]byte, error) {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrCascadeNotLoaded, err)
			}
			return data, nil
		},
	}
}

// NewPigoClassifierFromBytes creates a classifier from an in-memory cascade.
func NewPigoClassifierFromBytes(cascade []byte) *PigoClassifier {
	return &PigoClassifier{
		load: func() ([]byte, error) { return cascade, nil },
	}
}

// Load unpacks the cascade if it has not been unpacked yet and returns the load error, if any.
func (c *PigoClassifier) Load() error {
	c.once.Do(func() {
		data, err := c.load()
		if err != nil {
			c.err = err
			return
		}
		if err := checkCascadeHeader(data); err != nil {
			c.err = fmt.Errorf("%w: %v", ErrCascadeNotLoaded, err)
			return
		}
		c.classifier, c.err = unpackCascade(data)
		if c.err != nil {
			c.err = fmt.Errorf("%w: error unpacking the cascade file: %v", ErrCascadeNotLoaded, c.err)
		}
	})
	return c.err
}

// checkCascadeHeader makes sure the tree depth and count in the header describe
// no more data than the file holds. pigo sizes its buffers from these fields.
func checkCascadeHeader(data []byte) error {
	if len(data) < cascadeHeaderLen {
		return fmt.Errorf("cascade is %d bytes", len(data))
	}
	depth := binary.LittleEndian.Uint32(data[8:12])
	trees := binary.LittleEndian.Uint32(data[12:16])
	if depth == 0 || depth > maxTreeDepth {
		return fmt.Errorf("invalid tree depth %d", depth)
	}
	if trees == 0 {
		return errors.New("cascade has no trees")
	}

	// each tree: 4*2^depth-4 node codes, 2^depth float32 leaves and a float32 threshold
	leaves := uint64(1) << depth
	treeLen := (4*leaves - 4) + 4*leaves + 4
	if need := cascadeHeaderLen + uint64(trees)*treeLen; uint64(len(data)) < need {
		return fmt.Errorf("cascade is %d bytes, header describes %d", len(data), need)
	}
	return nil
}

func unpackCascade(data []byte) (p *pigo.Pigo, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("corrupt cascade: %v", r)
		}
	}()
	return pigo.NewPigo().Unpack(data)
}

// Classify runs the cascade over the luma plane. A cascade that failed to load finds nothing.
func (c *PigoClassifier) Classify(pixels []uint8, rows, cols, minSize int, scaleFactor float64) []Detection {
	if c.Load() != nil || rows <= 0 || cols <= 0 || len(pixels) < rows*cols || scaleFactor <= 1 {
		return nil
	}

	// Smallest window for which one scaleFactor step is at least a pixel.
	if floor := int(math.Ceil(1 / (scaleFactor - 1))); minSize < floor {
		minSize = floor
	}
	maxSize := min(rows, cols)
	if minSize > maxSize {
		return nil
	}

	params := pigo.CascadeParams{
		MinSize:     minSize,
		MaxSize:     maxSize,
		ShiftFactor: shiftFactor,
		ScaleFactor: scaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pixels,
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	raw := c.classifier.RunCascade(params, 0.0)
	dets := make([]Detection, len(raw))
	for i, d := range raw {
		dets[i] = Detection{Row: d.Row, Col: d.Col, Scale: d.Scale, Q: d.Q}
	}
	return dets
}
