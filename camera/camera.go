// Package camera provides the perspective camera the renderer reads at draw
// time.
package camera

import "github.com/go-gl/mathgl/mgl32"

// Props configures a perspective camera. Zero values pick defaults.
type Props struct {
	Near     float32
	Far      float32
	FOV      float32 // vertical field of view in radians
	Position mgl32.Vec3
	Target   mgl32.Vec3
	Up       mgl32.Vec3
}

// Perspective is a look-at camera with a perspective projection.
type Perspective struct {
	Near     float32
	Far      float32
	FOV      float32
	Position mgl32.Vec3
	Target   mgl32.Vec3
	Up       mgl32.Vec3
}

// New creates a perspective camera.
func New(p Props) *Perspective {
	c := &Perspective{
		Near:     p.Near,
		Far:      p.Far,
		FOV:      p.FOV,
		Position: p.Position,
		Target:   p.Target,
		Up:       p.Up,
	}
	if c.Near <= 0 {
		c.Near = 0.1
	}
	if c.Far <= c.Near {
		c.Far = c.Near * 10000
	}
	if c.FOV <= 0 {
		c.FOV = mgl32.DegToRad(45)
	}
	if c.Up.Len() == 0 {
		c.Up = mgl32.Vec3{0, 1, 0}
	}
	if c.Position == c.Target {
		c.Position = c.Target.Add(mgl32.Vec3{0, 0, 50})
	}
	return c
}

// View returns the world-to-eye matrix.
func (c *Perspective) View() mgl32.Mat4 {
	return mgl32.LookAtV(c.Position, c.Target, c.Up)
}

// Projection returns the eye-to-clip matrix for the given aspect ratio.
func (c *Perspective) Projection(aspect float32) mgl32.Mat4 {
	return mgl32.Perspective(c.FOV, aspect, c.Near, c.Far)
}
