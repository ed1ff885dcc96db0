package graphics

import (
	"fmt"
	"image"
)

// Handles are device object names. Zero is never a live object.
type (
	Buffer      uint32
	VertexArray uint32
	Texture     uint32
	Shader      uint32
	Program     uint32
)

// ShaderStage identifies the pipeline stage a shader is compiled for.
type ShaderStage int

const (
	VertexStage ShaderStage = iota
	FragmentStage
)

func (s ShaderStage) String() string {
	switch s {
	case VertexStage:
		return "vertex"
	case FragmentStage:
		return "fragment"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// BufferTarget selects what a buffer is bound as.
type BufferTarget int

const (
	ArrayBuffer BufferTarget = iota
	ElementBuffer
)

// BufferUsage is a hint for how often a buffer is rewritten.
type BufferUsage int

const (
	StaticDraw BufferUsage = iota
	DynamicDraw
)

// BufferDesc describes the initial contents of a buffer. Data is used for
// array buffers, Indices for element buffers.
type BufferDesc struct {
	Target  BufferTarget
	Usage   BufferUsage
	Data    []float32
	Indices []uint32
}

// Attribute locations shared by the shader generator and the renderer.
const (
	AttribPosition  = 0
	AttribID        = 1
	AttribColor     = 2
	AttribSize      = 3
	AttribNormal    = 4
	AttribTransform = 5 // occupies 5..8, one column each
)

// AttributeLayout binds a buffer region to a vertex attribute location.
// Stride and Offset are in float32 elements. A Divisor above zero makes the
// attribute advance once per Divisor instances.
type AttributeLayout struct {
	Location   int
	Components int
	Stride     int
	Offset     int
	Divisor    int
}

// TextureFilter selects min/mag filtering.
type TextureFilter string

const (
	FilterLinear  TextureFilter = "linear"
	FilterNearest TextureFilter = "nearest"
	FilterMipmap  TextureFilter = "mipmap"
)

// TextureDesc describes a 2D RGBA texture. When Image is set it wins over
// Width/Height.
type TextureDesc struct {
	Width  int
	Height int
	Image  image.Image
	Filter TextureFilter
	Repeat bool
	VFlip  bool
	Float  bool
}

// DrawMode is the primitive topology of a draw call.
type DrawMode int

const (
	Points DrawMode = iota
	Triangles
)

// DrawCall is a single instanced draw. Uniform values may be float32,
// int32, mgl32.Vec3, mgl32.Vec4 or mgl32.Mat4.
type DrawCall struct {
	Program       Program
	VertexArray   VertexArray
	Mode          DrawMode
	Count         int
	InstanceCount int
	Indexed       bool
	DepthMask     bool
	Blend         bool
	Uniforms      map[string]any
}

// Device is the set of graphics primitives the resource layer is built on.
// All methods must be called from the goroutine that owns the device.
type Device interface {
	IsGLES() bool

	CreateBuffer(desc BufferDesc) (Buffer, error)
	UpdateBuffer(b Buffer, data []float32) error
	DeleteBuffer(b Buffer)

	CreateVertexArray() (VertexArray, error)
	BindAttribute(vao VertexArray, b Buffer, layout AttributeLayout)
	BindElements(vao VertexArray, b Buffer)
	DeleteVertexArray(vao VertexArray)

	CreateTexture(desc TextureDesc) (Texture, error)
	DeleteTexture(t Texture)

	CompileShader(stage ShaderStage, source string) (Shader, error)
	DeleteShader(s Shader)
	LinkProgram(vertex, fragment Shader) (Program, error)
	DeleteProgram(p Program)

	SetViewport(v Viewport)
	Viewport() Viewport
	Clear(r, g, b, a float32)
	Draw(call DrawCall)
	ReadPixels(x, y, width, height int) ([]byte, error)
}
