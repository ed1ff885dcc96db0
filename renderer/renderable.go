package renderer

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/richinsley/molgl/gfx"
	"github.com/richinsley/molgl/graphics"
	"github.com/richinsley/molgl/scene"
	"github.com/richinsley/molgl/shader"
)

type attributeBuffer struct {
	name    string
	cell    *scene.Float32Cell
	buffer  graphics.Buffer
	version uint64
}

// Renderable is the device side of one render object: its private buffers
// and vertex array plus a lease on a shared program.
type Renderable struct {
	Object *scene.RenderObject
	VAO    graphics.VertexArray
	Lease  gfx.Lease

	attributes []attributeBuffer
	elements   graphics.Buffer
}

// Buffers returns every buffer the renderable owns.
func (ra *Renderable) Buffers() []graphics.Buffer {
	out := make([]graphics.Buffer, 0, len(ra.attributes)+1)
	for _, a := range ra.attributes {
		out = append(out, a.buffer)
	}
	if ra.elements != 0 {
		out = append(out, ra.elements)
	}
	return out
}

// realize creates the device objects for o. On error everything created so
// far is released in reverse order.
func realize(ctx *gfx.Context, o *scene.RenderObject) (ra *Renderable, err error) {
	var undo []func()
	defer func() {
		if err != nil {
			for i := len(undo) - 1; i >= 0; i-- {
				undo[i]()
			}
		}
	}()

	ra = &Renderable{Object: o}
	lease, err := ctx.ProgramCache.Acquire(shader.Program(o.ShaderConfig(ctx.Device.IsGLES())))
	if err != nil {
		return nil, err
	}
	ra.Lease = lease
	undo = append(undo, func() { ctx.ProgramCache.Rollback(lease) })

	for _, attr := range o.Attributes() {
		data, version := attr.Cell.Load()
		b, err := ctx.CreateBuffer(graphics.BufferDesc{Target: graphics.ArrayBuffer, Usage: graphics.DynamicDraw, Data: data})
		if err != nil {
			return nil, fmt.Errorf("%s buffer: %w", attr.Name, err)
		}
		undo = append(undo, func() { _ = ctx.DisposeBuffer(b) })
		ra.attributes = append(ra.attributes, attributeBuffer{name: attr.Name, cell: attr.Cell, buffer: b, version: version})
	}

	if o.Elements != nil {
		b, err := ctx.CreateBuffer(graphics.BufferDesc{Target: graphics.ElementBuffer, Usage: graphics.StaticDraw, Indices: o.Elements.Value()})
		if err != nil {
			return nil, fmt.Errorf("element buffer: %w", err)
		}
		undo = append(undo, func() { _ = ctx.DisposeBuffer(b) })
		ra.elements = b
	}

	vao, err := ctx.CreateVAO()
	if err != nil {
		return nil, err
	}
	undo = append(undo, func() { _ = ctx.DisposeVAO(vao) })
	ra.VAO = vao

	attrs := o.Attributes()
	for i, a := range ra.attributes {
		for _, layout := range attrs[i].Layouts {
			ctx.Device.BindAttribute(vao, a.buffer, layout)
		}
	}
	if ra.elements != 0 {
		ctx.Device.BindElements(vao, ra.elements)
	}
	return ra, nil
}

// destroy releases everything realize created. A program lease taken before
// the program cache was disposed is not released again.
func (ra *Renderable) destroy(ctx *gfx.Context) error {
	var errs []error
	if err := ctx.DisposeVAO(ra.VAO); err != nil {
		errs = append(errs, err)
	}
	for _, b := range ra.Buffers() {
		if err := ctx.DisposeBuffer(b); err != nil {
			errs = append(errs, err)
		}
	}
	if ra.Lease.Generation == ctx.ProgramCache.Generation() {
		if err := ctx.ProgramCache.Release(ra.Lease); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// sync re-uploads attribute cells written since the last upload.
func (ra *Renderable) sync(ctx *gfx.Context) (int, error) {
	n := 0
	for i := range ra.attributes {
		a := &ra.attributes[i]
		data, version := a.cell.Load()
		if version == a.version {
			continue
		}
		if err := ctx.UpdateBuffer(a.buffer, data); err != nil {
			return n, fmt.Errorf("%s buffer: %w", a.name, err)
		}
		a.version = version
		n++
	}
	return n, nil
}

func (ra *Renderable) drawCall(uniforms map[string]any) graphics.DrawCall {
	o := ra.Object
	mode := graphics.Points
	if o.Kind == scene.MeshKind {
		mode = graphics.Triangles
	}
	u := make(map[string]any, len(uniforms)+2)
	for k, v := range uniforms {
		u[k] = v
	}
	u["uAlpha"] = o.Alpha
	if !o.Instanced() {
		var m mgl32.Mat4
		copy(m[:], o.Transform.Value())
		u["uModel"] = m
	}
	return graphics.DrawCall{
		Program:       ra.Lease.Program,
		VertexArray:   ra.VAO,
		Mode:          mode,
		Count:         o.ElementCount,
		InstanceCount: o.InstanceCount,
		Indexed:       ra.elements != 0,
		DepthMask:     o.DepthMask,
		Blend:         o.Transparent(),
		Uniforms:      u,
	}
}
