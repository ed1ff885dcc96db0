package shader

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgramIsDeterministic(t *testing.T) {
	cfg := Config{Primitive: Points, ColorType: Uniform}
	a, b := Program(cfg), Program(cfg)
	assert.Equal(t, a, b)
	assert.Equal(t, a.Key(), b.Key())
}

func TestProgramVariants(t *testing.T) {
	base := Config{Primitive: Points, ColorType: Uniform}
	variants := []Config{
		{Primitive: Points, ColorType: Attribute},
		{Primitive: Points, ColorType: Uniform, Instanced: true},
		{Primitive: Mesh, ColorType: Uniform},
		{Primitive: Points, ColorType: Uniform, GLES: true},
	}
	for _, v := range variants {
		assert.NotEqual(t, Program(base).Key(), Program(v).Key(), "%+v", v)
	}
}

func TestProgramHeaders(t *testing.T) {
	gl := Program(Config{Primitive: Mesh, ColorType: Attribute, Instanced: true})
	assert.Contains(t, gl.Vertex, "#version 410 core")
	assert.Contains(t, gl.Vertex, "#define dPrimitive_mesh")
	assert.Contains(t, gl.Vertex, "#define dColorType_attribute")
	assert.Contains(t, gl.Fragment, "#define dInstanced")

	es := Program(Config{Primitive: Points, ColorType: Uniform, GLES: true})
	assert.Contains(t, es.Vertex, "#version 300 es")
	assert.NotContains(t, es.Vertex, "#define dInstanced")
}
