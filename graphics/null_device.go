package graphics

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl32"
)

// ErrInjectedFault is returned by a NullDevice operation armed with FailAfter.
var ErrInjectedFault = errors.New("injected device fault")

// Op names a fallible NullDevice operation for fault injection.
type Op string

const (
	OpCreateBuffer      Op = "CreateBuffer"
	OpCreateVertexArray Op = "CreateVertexArray"
	OpCreateTexture     Op = "CreateTexture"
	OpCompileShader     Op = "CompileShader"
	OpLinkProgram       Op = "LinkProgram"
)

// NullOptions configures a NullDevice.
type NullOptions struct {
	// PreserveDrawingBuffer keeps pixel contents across EndFrame.
	PreserveDrawingBuffer bool
}

// NullLive counts the objects currently alive on a NullDevice.
type NullLive struct {
	Buffers, VertexArrays, Textures, Shaders, Programs int
}

type nullBuffer struct {
	target  BufferTarget
	data    []float32
	indices []uint32
}

type nullBinding struct {
	buffer Buffer
	layout AttributeLayout
}

type nullVertexArray struct {
	attribs  map[int]nullBinding
	elements Buffer
}

// NullDevice is a software Device and Surface. It keeps every object in
// memory, rasterises point draws into an RGBA framebuffer and never touches
// a GPU, so it runs anywhere tests run.
type NullDevice struct {
	width, height int
	preserve      bool
	start         time.Time
	closed        bool
	frames        int

	next     uint32
	buffers  map[Buffer]*nullBuffer
	vaos     map[VertexArray]*nullVertexArray
	textures map[Texture]TextureDesc
	shaders  map[Shader]ShaderStage
	programs map[Program][2]Shader

	viewport Viewport
	pixels   []byte
	calls    []DrawCall
	faults   map[Op]int
}

// NewNullDevice creates a software device over a width×height surface.
func NewNullDevice(width, height int, opts NullOptions) *NullDevice {
	return &NullDevice{
		width:    width,
		height:   height,
		preserve: opts.PreserveDrawingBuffer,
		start:    time.Now(),
		buffers:  make(map[Buffer]*nullBuffer),
		vaos:     make(map[VertexArray]*nullVertexArray),
		textures: make(map[Texture]TextureDesc),
		shaders:  make(map[Shader]ShaderStage),
		programs: make(map[Program][2]Shader),
		viewport: Viewport{Width: width, Height: height},
		pixels:   make([]byte, width*height*4),
		faults:   make(map[Op]int),
	}
}

// FailAfter arms op to fail once after n more successful calls.
func (d *NullDevice) FailAfter(op Op, n int) {
	d.faults[op] = n
}

func (d *NullDevice) fault(op Op) error {
	n, ok := d.faults[op]
	if !ok {
		return nil
	}
	if n == 0 {
		delete(d.faults, op)
		return fmt.Errorf("%s: %w", op, ErrInjectedFault)
	}
	d.faults[op] = n - 1
	return nil
}

func (d *NullDevice) name() uint32 {
	d.next++
	return d.next
}

// Live reports how many device objects have not been deleted.
func (d *NullDevice) Live() NullLive {
	return NullLive{
		Buffers:      len(d.buffers),
		VertexArrays: len(d.vaos),
		Textures:     len(d.textures),
		Shaders:      len(d.shaders),
		Programs:     len(d.programs),
	}
}

// Calls returns the draw calls issued since the last EndFrame.
func (d *NullDevice) Calls() []DrawCall {
	return append([]DrawCall(nil), d.calls...)
}

// Frames returns how many frames have ended.
func (d *NullDevice) Frames() int { return d.frames }

// BufferData returns a copy of an array buffer's contents.
func (d *NullDevice) BufferData(b Buffer) ([]float32, bool) {
	buf, ok := d.buffers[b]
	if !ok {
		return nil, false
	}
	return append([]float32(nil), buf.data...), true
}

func (d *NullDevice) IsGLES() bool { return false }

func (d *NullDevice) CreateBuffer(desc BufferDesc) (Buffer, error) {
	if err := d.fault(OpCreateBuffer); err != nil {
		return 0, err
	}
	b := Buffer(d.name())
	d.buffers[b] = &nullBuffer{
		target:  desc.Target,
		data:    append([]float32(nil), desc.Data...),
		indices: append([]uint32(nil), desc.Indices...),
	}
	return b, nil
}

func (d *NullDevice) UpdateBuffer(b Buffer, data []float32) error {
	buf, ok := d.buffers[b]
	if !ok {
		return fmt.Errorf("update of unknown buffer %d", b)
	}
	buf.data = append(buf.data[:0], data...)
	return nil
}

func (d *NullDevice) DeleteBuffer(b Buffer) { delete(d.buffers, b) }

func (d *NullDevice) CreateVertexArray() (VertexArray, error) {
	if err := d.fault(OpCreateVertexArray); err != nil {
		return 0, err
	}
	vao := VertexArray(d.name())
	d.vaos[vao] = &nullVertexArray{attribs: make(map[int]nullBinding)}
	return vao, nil
}

func (d *NullDevice) BindAttribute(vao VertexArray, b Buffer, layout AttributeLayout) {
	if va, ok := d.vaos[vao]; ok {
		va.attribs[layout.Location] = nullBinding{buffer: b, layout: layout}
	}
}

func (d *NullDevice) BindElements(vao VertexArray, b Buffer) {
	if va, ok := d.vaos[vao]; ok {
		va.elements = b
	}
}

func (d *NullDevice) DeleteVertexArray(vao VertexArray) { delete(d.vaos, vao) }

func (d *NullDevice) CreateTexture(desc TextureDesc) (Texture, error) {
	if err := d.fault(OpCreateTexture); err != nil {
		return 0, err
	}
	t := Texture(d.name())
	d.textures[t] = desc
	return t, nil
}

func (d *NullDevice) DeleteTexture(t Texture) { delete(d.textures, t) }

// CompileShader accepts any source that does not contain an #error directive.
func (d *NullDevice) CompileShader(stage ShaderStage, source string) (Shader, error) {
	if err := d.fault(OpCompileShader); err != nil {
		return 0, err
	}
	if strings.Contains(source, "#error") {
		return 0, fmt.Errorf("failed to compile %s shader: #error directive", stage)
	}
	s := Shader(d.name())
	d.shaders[s] = stage
	return s, nil
}

func (d *NullDevice) DeleteShader(s Shader) { delete(d.shaders, s) }

func (d *NullDevice) LinkProgram(vertex, fragment Shader) (Program, error) {
	if err := d.fault(OpLinkProgram); err != nil {
		return 0, err
	}
	if st, ok := d.shaders[vertex]; !ok || st != VertexStage {
		return 0, fmt.Errorf("failed to link program: %d is not a vertex shader", vertex)
	}
	if st, ok := d.shaders[fragment]; !ok || st != FragmentStage {
		return 0, fmt.Errorf("failed to link program: %d is not a fragment shader", fragment)
	}
	p := Program(d.name())
	d.programs[p] = [2]Shader{vertex, fragment}
	return p, nil
}

func (d *NullDevice) DeleteProgram(p Program) { delete(d.programs, p) }

func (d *NullDevice) SetViewport(v Viewport) { d.viewport = v }

func (d *NullDevice) Viewport() Viewport { return d.viewport }

func (d *NullDevice) Clear(r, g, b, a float32) {
	px := [4]byte{unorm(r), unorm(g), unorm(b), unorm(a)}
	for i := 0; i < len(d.pixels); i += 4 {
		copy(d.pixels[i:i+4], px[:])
	}
}

// Draw records the call and rasterises point draws, one pixel per vertex.
func (d *NullDevice) Draw(call DrawCall) {
	d.calls = append(d.calls, call)
	if call.Mode != Points {
		return
	}
	va, ok := d.vaos[call.VertexArray]
	if !ok {
		return
	}
	mvp := uniformMat4(call.Uniforms, "uProjection").
		Mul4(uniformMat4(call.Uniforms, "uView")).
		Mul4(uniformMat4(call.Uniforms, "uModel"))
	alpha := float32(1)
	if a, ok := call.Uniforms["uAlpha"].(float32); ok {
		alpha = a
	}
	instances := call.InstanceCount
	if instances < 1 {
		instances = 1
	}
	for inst := 0; inst < instances; inst++ {
		m := mvp.Mul4(d.instanceTransform(va, inst))
		for i := 0; i < call.Count; i++ {
			pos := d.attribute(va, AttribPosition, i, inst)
			if len(pos) < 3 {
				continue
			}
			clip := m.Mul4x1(mgl32.Vec4{pos[0], pos[1], pos[2], 1})
			if clip.W() <= 0 {
				continue
			}
			ndc := clip.Vec3().Mul(1 / clip.W())
			x := d.viewport.X + int(math.Floor(float64((ndc.X()+1)/2*float32(d.viewport.Width))))
			y := d.viewport.Y + int(math.Floor(float64((ndc.Y()+1)/2*float32(d.viewport.Height))))
			if x < 0 || y < 0 || x >= d.width || y >= d.height {
				continue
			}
			col := d.attribute(va, AttribColor, i, inst)
			for len(col) < 3 {
				col = append(col, 1)
			}
			o := (y*d.width + x) * 4
			d.pixels[o] = unorm(col[0])
			d.pixels[o+1] = unorm(col[1])
			d.pixels[o+2] = unorm(col[2])
			d.pixels[o+3] = unorm(alpha)
		}
	}
}

func (d *NullDevice) instanceTransform(va *nullVertexArray, inst int) mgl32.Mat4 {
	if _, ok := va.attribs[AttribTransform]; !ok {
		return mgl32.Ident4()
	}
	var m mgl32.Mat4
	for col := 0; col < 4; col++ {
		v := d.attribute(va, AttribTransform+col, 0, inst)
		if len(v) < 4 {
			return mgl32.Ident4()
		}
		copy(m[col*4:col*4+4], v)
	}
	return m
}

func (d *NullDevice) attribute(va *nullVertexArray, loc, vertex, instance int) []float32 {
	bind, ok := va.attribs[loc]
	if !ok {
		return nil
	}
	buf, ok := d.buffers[bind.buffer]
	if !ok {
		return nil
	}
	l := bind.layout
	index := vertex
	if l.Divisor > 0 {
		index = instance / l.Divisor
	}
	stride := l.Stride
	if stride == 0 {
		stride = l.Components
	}
	start := index*stride + l.Offset
	if start+l.Components > len(buf.data) {
		return nil
	}
	return append([]float32(nil), buf.data[start:start+l.Components]...)
}

// ReadPixels returns RGBA rows bottom-up, the way GL does.
func (d *NullDevice) ReadPixels(x, y, width, height int) ([]byte, error) {
	if x < 0 || y < 0 || width < 0 || height < 0 || x+width > d.width || y+height > d.height {
		return nil, fmt.Errorf("read of %dx%d at %d,%d outside %dx%d surface", width, height, x, y, d.width, d.height)
	}
	out := make([]byte, 0, width*height*4)
	for row := y; row < y+height; row++ {
		o := (row*d.width + x) * 4
		out = append(out, d.pixels[o:o+width*4]...)
	}
	return out, nil
}

func (d *NullDevice) MakeCurrent() {}

func (d *NullDevice) Shutdown() { d.closed = true }

func (d *NullDevice) ShouldClose() bool { return d.closed }

// EndFrame discards the framebuffer unless the drawing buffer is preserved.
func (d *NullDevice) EndFrame() {
	d.frames++
	d.calls = d.calls[:0]
	if !d.preserve {
		clear(d.pixels)
	}
}

func (d *NullDevice) GetFramebufferSize() (int, int) { return d.width, d.height }

func (d *NullDevice) Time() float64 { return time.Since(d.start).Seconds() }

func uniformMat4(u map[string]any, name string) mgl32.Mat4 {
	if m, ok := u[name].(mgl32.Mat4); ok {
		return m
	}
	return mgl32.Ident4()
}

func unorm(v float32) byte {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return byte(v*255 + 0.5)
}
