package graphics

import (
	"errors"
	"fmt"
)

// ErrInvalidViewport is returned for viewports with negative dimensions.
var ErrInvalidViewport = errors.New("invalid viewport")

// Viewport is the surface sub-rectangle frames are drawn into.
type Viewport struct {
	X, Y          int
	Width, Height int
}

// Array returns the viewport the way GL reports it: x, y, width, height.
func (v Viewport) Array() [4]int {
	return [4]int{v.X, v.Y, v.Width, v.Height}
}

func (v Viewport) Validate() error {
	if v.Width < 0 || v.Height < 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidViewport, v.Width, v.Height)
	}
	return nil
}

// Aspect returns width/height, or 1 for an empty viewport.
func (v Viewport) Aspect() float32 {
	if v.Width == 0 || v.Height == 0 {
		return 1
	}
	return float32(v.Width) / float32(v.Height)
}
