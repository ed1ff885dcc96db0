// Package gldevice implements graphics.Device on OpenGL 4.1 core through
// go-gl. A surface must be current on the calling thread before New.
package gldevice

import (
	"fmt"
	"image"
	"image/draw"
	"strings"
	"sync"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/richinsley/molgl/graphics"
	"github.com/sirupsen/logrus"
)

var glInitOnce sync.Once

// Device issues graphics.Device operations as GL calls.
type Device struct {
	gles     bool
	viewport graphics.Viewport
	uniforms map[graphics.Program]*uniformCache
	log      *logrus.Entry
}

// New loads the GL entry points once per process and returns a device for
// the current context.
func New(gles bool, log *logrus.Entry) (*Device, error) {
	var initErr error
	glInitOnce.Do(func() {
		initErr = gl.Init()
	})
	if initErr != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", initErr)
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	d := &Device{
		gles:     gles,
		uniforms: make(map[graphics.Program]*uniformCache),
		log:      log.WithField("component", "gldevice"),
	}
	if !gles {
		gl.Enable(gl.PROGRAM_POINT_SIZE)
	}
	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LEQUAL)
	d.log.WithFields(logrus.Fields{
		"version":  gl.GoStr(gl.GetString(gl.VERSION)),
		"renderer": gl.GoStr(gl.GetString(gl.RENDERER)),
	}).Info("OpenGL initialized")
	return d, nil
}

func (d *Device) IsGLES() bool { return d.gles }

func bufferTarget(t graphics.BufferTarget) uint32 {
	if t == graphics.ElementBuffer {
		return gl.ELEMENT_ARRAY_BUFFER
	}
	return gl.ARRAY_BUFFER
}

func bufferUsage(u graphics.BufferUsage) uint32 {
	if u == graphics.DynamicDraw {
		return gl.DYNAMIC_DRAW
	}
	return gl.STATIC_DRAW
}

func (d *Device) CreateBuffer(desc graphics.BufferDesc) (graphics.Buffer, error) {
	var b uint32
	gl.GenBuffers(1, &b)
	if b == 0 {
		return 0, fmt.Errorf("glGenBuffers returned no name")
	}
	target := bufferTarget(desc.Target)
	gl.BindBuffer(target, b)
	switch {
	case desc.Target == graphics.ElementBuffer && len(desc.Indices) > 0:
		gl.BufferData(target, len(desc.Indices)*4, gl.Ptr(desc.Indices), bufferUsage(desc.Usage))
	case len(desc.Data) > 0:
		gl.BufferData(target, len(desc.Data)*4, gl.Ptr(desc.Data), bufferUsage(desc.Usage))
	default:
		gl.BufferData(target, 0, nil, bufferUsage(desc.Usage))
	}
	gl.BindBuffer(target, 0)
	return graphics.Buffer(b), nil
}

func (d *Device) UpdateBuffer(b graphics.Buffer, data []float32) error {
	gl.BindBuffer(gl.ARRAY_BUFFER, uint32(b))
	defer gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	if len(data) == 0 {
		gl.BufferData(gl.ARRAY_BUFFER, 0, nil, gl.DYNAMIC_DRAW)
		return nil
	}
	gl.BufferData(gl.ARRAY_BUFFER, len(data)*4, gl.Ptr(data), gl.DYNAMIC_DRAW)
	return nil
}

func (d *Device) DeleteBuffer(b graphics.Buffer) {
	n := uint32(b)
	gl.DeleteBuffers(1, &n)
}

func (d *Device) CreateVertexArray() (graphics.VertexArray, error) {
	var vao uint32
	gl.GenVertexArrays(1, &vao)
	if vao == 0 {
		return 0, fmt.Errorf("glGenVertexArrays returned no name")
	}
	return graphics.VertexArray(vao), nil
}

func (d *Device) BindAttribute(vao graphics.VertexArray, b graphics.Buffer, l graphics.AttributeLayout) {
	loc := uint32(l.Location)
	gl.BindVertexArray(uint32(vao))
	gl.BindBuffer(gl.ARRAY_BUFFER, uint32(b))
	gl.EnableVertexAttribArray(loc)
	gl.VertexAttribPointer(loc, int32(l.Components), gl.FLOAT, false, int32(l.Stride*4), gl.PtrOffset(l.Offset*4))
	gl.VertexAttribDivisor(loc, uint32(l.Divisor))
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	gl.BindVertexArray(0)
}

// BindElements records b as the index buffer of vao. The binding is vertex
// array state, so the buffer is left bound until the array is unbound.
func (d *Device) BindElements(vao graphics.VertexArray, b graphics.Buffer) {
	gl.BindVertexArray(uint32(vao))
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, uint32(b))
	gl.BindVertexArray(0)
}

func (d *Device) DeleteVertexArray(vao graphics.VertexArray) {
	n := uint32(vao)
	gl.DeleteVertexArrays(1, &n)
}

func (d *Device) CompileShader(stage graphics.ShaderStage, source string) (graphics.Shader, error) {
	shaderType := uint32(gl.VERTEX_SHADER)
	if stage == graphics.FragmentStage {
		shaderType = gl.FRAGMENT_SHADER
	}
	sh, err := compileShader(source, shaderType)
	return graphics.Shader(sh), err
}

func (d *Device) DeleteShader(s graphics.Shader) { gl.DeleteShader(uint32(s)) }

// LinkProgram links the two shaders. The shaders stay alive; they belong to
// the shader cache.
func (d *Device) LinkProgram(vertex, fragment graphics.Shader) (graphics.Program, error) {
	program := gl.CreateProgram()
	gl.AttachShader(program, uint32(vertex))
	gl.AttachShader(program, uint32(fragment))
	gl.LinkProgram(program)

	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLength)
		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetProgramInfoLog(program, logLength, nil, gl.Str(log))
		gl.DeleteProgram(program)
		return 0, fmt.Errorf("failed to link program: %v", log)
	}
	gl.DetachShader(program, uint32(vertex))
	gl.DetachShader(program, uint32(fragment))
	return graphics.Program(program), nil
}

func (d *Device) DeleteProgram(p graphics.Program) {
	delete(d.uniforms, p)
	gl.DeleteProgram(uint32(p))
}

func compileShader(source string, shaderType uint32) (uint32, error) {
	shader := gl.CreateShader(shaderType)
	csources, free := gl.Strs(source + "\x00")
	gl.ShaderSource(shader, 1, csources, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLength)
		logText := strings.Repeat("\x00", int(logLength+1))
		gl.GetShaderInfoLog(shader, logLength, nil, gl.Str(logText))
		gl.DeleteShader(shader)
		return 0, fmt.Errorf("failed to compile shader: %v", logText)
	}
	return shader, nil
}

func (d *Device) CreateTexture(desc graphics.TextureDesc) (graphics.Texture, error) {
	width, height := int32(desc.Width), int32(desc.Height)
	var pix []uint8
	if desc.Image != nil {
		rgba := image.NewRGBA(desc.Image.Bounds())
		draw.Draw(rgba, rgba.Bounds(), desc.Image, desc.Image.Bounds().Min, draw.Src)
		if desc.VFlip {
			rgba = vflip(rgba)
		}
		width = int32(rgba.Rect.Dx())
		height = int32(rgba.Rect.Dy())
		pix = rgba.Pix
	}

	var tex uint32
	gl.GenTextures(1, &tex)
	if tex == 0 {
		return 0, fmt.Errorf("glGenTextures returned no name")
	}
	gl.BindTexture(gl.TEXTURE_2D, tex)

	wrap := int32(gl.CLAMP_TO_EDGE)
	if desc.Repeat {
		wrap = gl.REPEAT
	}
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, wrap)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, wrap)
	minFilter, magFilter := filterMode(desc.Filter)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, minFilter)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, magFilter)

	var internalFormat int32 = gl.RGBA8
	if desc.Float {
		internalFormat = gl.RGBA16F
	}
	var data unsafe.Pointer
	if len(pix) > 0 {
		data = gl.Ptr(pix)
	}
	gl.TexImage2D(gl.TEXTURE_2D, 0, internalFormat, width, height, 0, gl.RGBA, gl.UNSIGNED_BYTE, data)
	if desc.Filter == graphics.FilterMipmap {
		gl.GenerateMipmap(gl.TEXTURE_2D)
	}
	gl.BindTexture(gl.TEXTURE_2D, 0)
	return graphics.Texture(tex), nil
}

func (d *Device) DeleteTexture(t graphics.Texture) {
	n := uint32(t)
	gl.DeleteTextures(1, &n)
}

// vflip returns src upside down, copying whole rows.
func vflip(src *image.RGBA) *image.RGBA {
	bounds := src.Bounds()
	flipped := image.NewRGBA(bounds)
	height := bounds.Dy()
	rowSize := bounds.Dx() * 4
	for y := 0; y < height; y++ {
		srcRow := src.Pix[((height-1)-y)*src.Stride:]
		dstRow := flipped.Pix[y*flipped.Stride:]
		copy(dstRow, srcRow[:rowSize])
	}
	return flipped
}

func filterMode(filter graphics.TextureFilter) (minFilter, magFilter int32) {
	switch filter {
	case graphics.FilterMipmap:
		return gl.LINEAR_MIPMAP_LINEAR, gl.LINEAR
	case graphics.FilterNearest:
		return gl.NEAREST, gl.NEAREST
	default:
		return gl.LINEAR, gl.LINEAR
	}
}

func (d *Device) SetViewport(v graphics.Viewport) {
	d.viewport = v
	gl.Viewport(int32(v.X), int32(v.Y), int32(v.Width), int32(v.Height))
}

func (d *Device) Viewport() graphics.Viewport { return d.viewport }

func (d *Device) Clear(r, g, b, a float32) {
	gl.DepthMask(true)
	gl.ClearColor(r, g, b, a)
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
}

func (d *Device) Draw(call graphics.DrawCall) {
	gl.UseProgram(uint32(call.Program))
	uc := d.uniformCache(call.Program)
	for name, v := range call.Uniforms {
		uc.set(name, v)
	}

	gl.DepthMask(call.DepthMask)
	if call.Blend {
		gl.Enable(gl.BLEND)
		gl.BlendFunc(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA)
	} else {
		gl.Disable(gl.BLEND)
	}

	mode := uint32(gl.POINTS)
	if call.Mode == graphics.Triangles {
		mode = gl.TRIANGLES
	}
	instances := int32(call.InstanceCount)
	if instances < 1 {
		instances = 1
	}
	gl.BindVertexArray(uint32(call.VertexArray))
	if call.Indexed {
		gl.DrawElementsInstanced(mode, int32(call.Count), gl.UNSIGNED_INT, nil, instances)
	} else {
		gl.DrawArraysInstanced(mode, 0, int32(call.Count), instances)
	}
	gl.BindVertexArray(0)
}

// ReadPixels returns RGBA rows bottom-up.
func (d *Device) ReadPixels(x, y, width, height int) ([]byte, error) {
	if width < 0 || height < 0 {
		return nil, fmt.Errorf("invalid read size %dx%d", width, height)
	}
	pixels := make([]byte, width*height*4)
	if len(pixels) == 0 {
		return pixels, nil
	}
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.ReadPixels(int32(x), int32(y), int32(width), int32(height), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(pixels))
	if e := gl.GetError(); e != gl.NO_ERROR {
		return nil, fmt.Errorf("glReadPixels failed: 0x%x", e)
	}
	return pixels, nil
}

// uniformCache remembers uniform locations per program.
type uniformCache struct {
	program   uint32
	locations map[string]int32
}

func (d *Device) uniformCache(p graphics.Program) *uniformCache {
	uc, ok := d.uniforms[p]
	if !ok {
		uc = &uniformCache{program: uint32(p), locations: make(map[string]int32)}
		d.uniforms[p] = uc
	}
	return uc
}

func (uc *uniformCache) location(name string) int32 {
	if loc, ok := uc.locations[name]; ok {
		return loc
	}
	loc := gl.GetUniformLocation(uc.program, gl.Str(name+"\x00"))
	uc.locations[name] = loc
	return loc
}

func (uc *uniformCache) set(name string, v any) {
	loc := uc.location(name)
	if loc == -1 {
		return
	}
	switch v := v.(type) {
	case float32:
		gl.Uniform1f(loc, v)
	case int32:
		gl.Uniform1i(loc, v)
	case mgl32.Vec3:
		gl.Uniform3fv(loc, 1, &v[0])
	case mgl32.Vec4:
		gl.Uniform4fv(loc, 1, &v[0])
	case mgl32.Mat4:
		gl.UniformMatrix4fv(loc, 1, false, &v[0])
	}
}
