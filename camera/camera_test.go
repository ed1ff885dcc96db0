package camera

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestNewDefaults(t *testing.T) {
	c := New(Props{})
	assert.Equal(t, float32(0.1), c.Near)
	assert.Greater(t, c.Far, c.Near)
	assert.Equal(t, mgl32.Vec3{0, 1, 0}, c.Up)
	assert.Equal(t, mgl32.Vec3{0, 0, 50}, c.Position)
}

func TestProjectsTargetToCenter(t *testing.T) {
	c := New(Props{Near: 0.01, Far: 10000, Position: mgl32.Vec3{0, 0, 50}})
	clip := c.Projection(1).Mul4(c.View()).Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	ndc := clip.Vec3().Mul(1 / clip.W())
	assert.InDelta(t, 0, ndc.X(), 1e-6)
	assert.InDelta(t, 0, ndc.Y(), 1e-6)
	assert.True(t, ndc.Z() > -1 && ndc.Z() < 1)
}
