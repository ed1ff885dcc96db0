package scene

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/richinsley/molgl/shader"
	"github.com/richinsley/molgl/valuecell"
)

// FillSerial writes 0, 1, 2, ... into a and returns it.
func FillSerial(a []float32) []float32 {
	for i := range a {
		a[i] = float32(i)
	}
	return a
}

// HexToRGB splits a 0xRRGGBB color into normalized components.
func HexToRGB(hex uint32) mgl32.Vec3 {
	return mgl32.Vec3{
		float32(hex>>16&0xff) / 255,
		float32(hex>>8&0xff) / 255,
		float32(hex&0xff) / 255,
	}
}

// UniformColor is one color for the whole object.
func UniformColor(hex uint32) ColorData {
	c := HexToRGB(hex)
	return ColorData{Type: shader.Uniform, Value: valuecell.New([]float32{c[0], c[1], c[2]})}
}

// AttributeColor is one RGB triple per vertex.
func AttributeColor(rgb []float32) ColorData {
	return ColorData{Type: shader.Attribute, Value: valuecell.New(rgb)}
}

// UniformSize is one point size for the whole object.
func UniformSize(v float32) SizeData {
	return SizeData{Type: shader.Uniform, Value: valuecell.New([]float32{v})}
}

// AttributeSize is one point size per vertex.
func AttributeSize(sizes []float32) SizeData {
	return SizeData{Type: shader.Attribute, Value: valuecell.New(sizes)}
}

// IdentityTransforms returns n column-major identity matrices back to back.
func IdentityTransforms(n int) []float32 {
	out := make([]float32, 0, 16*n)
	id := mgl32.Ident4()
	for i := 0; i < n; i++ {
		out = append(out, id[:]...)
	}
	return out
}

// Transforms flattens matrices into the layout IdentityTransforms produces.
func Transforms(ms ...mgl32.Mat4) []float32 {
	out := make([]float32, 0, 16*len(ms))
	for _, m := range ms {
		out = append(out, m[:]...)
	}
	return out
}
