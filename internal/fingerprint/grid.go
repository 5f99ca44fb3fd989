package fingerprint

import (
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// ErrInvalidRegion is returned when a region is empty, out of bounds or belongs to another grid.
var ErrInvalidRegion = errors.New("invalid face region")

// Grid is a decoded pixel grid with its luma plane.
type Grid struct {
	Width    int
	Height   int
	Channels int          // 1 for grayscale sources, 3 otherwise
	Image    *image.NRGBA // origin is always (0,0)
	Gray     []uint8      // row-major luma, Width*Height values
}

// NewGrid copies img into a grid anchored at the origin and computes its luma plane.
func NewGrid(img image.Image) *Grid {
	channels := 3
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		channels = 1
	}

	nrgba := imaging.Clone(img)
	gray := imaging.Grayscale(nrgba)

	b := nrgba.Bounds()
	g := &Grid{
		Width:    b.Dx(),
		Height:   b.Dy(),
		Channels: channels,
		Image:    nrgba,
		Gray:     make([]uint8, b.Dx()*b.Dy()),
	}
	for y := range g.Height {
		row := gray.Pix[y*gray.Stride:]
		for x := range g.Width {
			g.Gray[y*g.Width+x] = row[x*4]
		}
	}
	return g
}

// Empty reports whether the grid has no pixels.
func (g *Grid) Empty() bool {
	return g == nil || g.Width <= 0 || g.Height <= 0
}

// Region returns the rectangle (x, y, w, h) of g. The rectangle must be non-empty
// and lie fully inside the grid.
func (g *Grid) Region(x, y, w, h int) (Region, error) {
	if g.Empty() {
		return Region{}, fmt.Errorf("%w: empty grid", ErrInvalidRegion)
	}
	if w <= 0 || h <= 0 {
		return Region{}, fmt.Errorf("%w: %dx%d", ErrInvalidRegion, w, h)
	}
	if x < 0 || y < 0 || x+w > g.Width || y+h > g.Height {
		return Region{}, fmt.Errorf("%w: %d,%d %dx%d outside %dx%d", ErrInvalidRegion, x, y, w, h, g.Width, g.Height)
	}
	return Region{X: x, Y: y, Width: w, Height: h, grid: g}, nil
}

// Region is a face rectangle inside the grid it was found in.
type Region struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`

	grid *Grid
}

// Grid returns the grid the region was taken from.
func (r Region) Grid() *Grid {
	return r.grid
}

// Area returns width times height.
func (r Region) Area() int {
	return r.Width * r.Height
}

// Rect returns the region as an image rectangle.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

func (r Region) valid() bool {
	g := r.grid
	if g.Empty() || r.Width <= 0 || r.Height <= 0 {
		return false
	}
	return r.X >= 0 && r.Y >= 0 && r.X+r.Width <= g.Width && r.Y+r.Height <= g.Height
}
