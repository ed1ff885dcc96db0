package renderer

import "github.com/go-gl/mathgl/mgl32"

type config struct {
	pixelRatio float32
	clearColor mgl32.Vec4
}

// Option configures a Renderer.
type Option func(*config)

// WithPixelRatio scales point sizes, for high density surfaces.
func WithPixelRatio(ratio float32) Option {
	return func(c *config) { c.pixelRatio = ratio }
}

// WithClearColor sets the color the frame is cleared to before drawing.
func WithClearColor(rgba mgl32.Vec4) Option {
	return func(c *config) { c.clearColor = rgba }
}
