// Package renderer realizes render objects on a gfx.Context and draws them
// with a camera and viewport.
package renderer

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/richinsley/molgl/capture"
	"github.com/richinsley/molgl/gfx"
	"github.com/richinsley/molgl/graphics"
	"github.com/richinsley/molgl/scene"
	"github.com/sirupsen/logrus"
)

// ErrInconsistentState is returned by debug checks when the context's live
// objects disagree with the active render objects.
var ErrInconsistentState = errors.New("renderer state inconsistent with context")

// ErrStaleProgram is reported when an object's program was destroyed by a
// program cache Dispose while the object was still active.
var ErrStaleProgram = errors.New("program evicted while object is active")

// Camera supplies the view and projection matrices at draw time.
type Camera interface {
	View() mgl32.Mat4
	Projection(aspect float32) mgl32.Mat4
}

// Renderer owns the active render objects of one context.
type Renderer struct {
	ctx      *gfx.Context
	camera   Camera
	viewport graphics.Viewport
	scene    *Scene
	cfg      config
	log      *logrus.Entry
	frame    int64
}

// Create binds a renderer to ctx and cam. No device objects are created.
func Create(ctx *gfx.Context, cam Camera, opts ...Option) *Renderer {
	cfg := config{pixelRatio: 1, clearColor: mgl32.Vec4{0, 0, 0, 1}}
	for _, o := range opts {
		o(&cfg)
	}
	return &Renderer{
		ctx:      ctx,
		camera:   cam,
		viewport: ctx.Device.Viewport(),
		scene:    newScene(),
		cfg:      cfg,
		log:      ctx.Logger().WithField("component", "renderer"),
	}
}

func (r *Renderer) Context() *gfx.Context { return r.ctx }

func (r *Renderer) Camera() Camera { return r.camera }

// SetCamera replaces the camera read by subsequent frames.
func (r *Renderer) SetCamera(cam Camera) { r.camera = cam }

// SetViewport validates v and applies it to the device immediately.
func (r *Renderer) SetViewport(v graphics.Viewport) error {
	if err := v.Validate(); err != nil {
		return err
	}
	r.viewport = v
	r.ctx.Device.SetViewport(v)
	return nil
}

// Viewport returns the rectangle set last.
func (r *Renderer) Viewport() graphics.Viewport { return r.viewport }

// Add realizes o and makes it active. It fails without side effects when o is
// invalid, its id is already active or any device object cannot be created.
func (r *Renderer) Add(o *scene.RenderObject) error {
	if o == nil {
		return fmt.Errorf("%w: nil render object", scene.ErrInvalidRenderObject)
	}
	if err := o.Validate(); err != nil {
		return err
	}
	if _, ok := r.scene.Get(o.ID); ok {
		return fmt.Errorf("%w: render object %d", gfx.ErrDuplicateRegistration, o.ID)
	}
	ra, err := realize(r.ctx, o)
	if err != nil {
		return fmt.Errorf("add render object %d: %w", o.ID, err)
	}
	r.scene.add(ra)

	l := r.log.WithFields(logrus.Fields{"id": o.ID, "kind": o.Kind.String()})
	if r.ctx.Settings().DebugChecks() {
		l = l.WithFields(r.ctx.Stats().Fields())
		if err := r.checkConsistency(nil); err != nil {
			l.WithError(err).Error("consistency check failed")
			return err
		}
	}
	l.Debug("added render object")
	return nil
}

// Remove destroys the device objects of o and deactivates it. Every owned
// object is released even when one of them fails; the errors are joined.
func (r *Renderer) Remove(o *scene.RenderObject) error {
	if o == nil {
		return fmt.Errorf("%w: nil render object", gfx.ErrUnknownRegistration)
	}
	ra, ok := r.scene.Get(o.ID)
	if !ok {
		return fmt.Errorf("%w: render object %d", gfx.ErrUnknownRegistration, o.ID)
	}
	r.scene.remove(o.ID)
	err := ra.destroy(r.ctx)

	l := r.log.WithField("id", o.ID)
	if r.ctx.Settings().DebugChecks() {
		l = l.WithFields(r.ctx.Stats().Fields())
		if cerr := r.checkConsistency(ra); cerr != nil {
			l.WithError(cerr).Error("consistency check failed")
			err = errors.Join(err, cerr)
		}
	}
	if err != nil {
		l.WithError(err).Warn("removed render object with errors")
		return fmt.Errorf("remove render object %d: %w", o.ID, err)
	}
	l.Debug("removed render object")
	return nil
}

// checkConsistency verifies that every active object's buffers and vertex
// array are live in the context, that the context holds at least as many
// as the active objects own, and that each current program lease is
// covered by the program cache's reference count. A removed renderable
// must no longer own live objects.
func (r *Renderer) checkConsistency(removed *Renderable) error {
	var errs []error
	buffers, refs := 0, make(map[gfx.ProgramKey]int)
	gen := r.ctx.ProgramCache.Generation()
	r.scene.Each(func(ra *Renderable) {
		if !r.ctx.TracksVAO(ra.VAO) {
			errs = append(errs, fmt.Errorf("object %d: vertex array %d is not live", ra.Object.ID, ra.VAO))
		}
		for _, b := range ra.Buffers() {
			if !r.ctx.TracksBuffer(b) {
				errs = append(errs, fmt.Errorf("object %d: buffer %d is not live", ra.Object.ID, b))
			}
			buffers++
		}
		if ra.Lease.Generation == gen {
			refs[ra.Lease.Key]++
		}
	})
	if n := r.ctx.VAOCount(); n < r.scene.Len() {
		errs = append(errs, fmt.Errorf("%d live vertex arrays for %d objects", n, r.scene.Len()))
	}
	if n := r.ctx.BufferCount(); n < buffers {
		errs = append(errs, fmt.Errorf("%d live buffers, objects own %d", n, buffers))
	}
	for key, n := range refs {
		if got := r.ctx.ProgramCache.Refs(key); got < n {
			errs = append(errs, fmt.Errorf("program %s has %d references for %d objects", key, got, n))
		}
	}
	if removed != nil {
		if r.ctx.TracksVAO(removed.VAO) {
			errs = append(errs, fmt.Errorf("removed object %d: vertex array %d still live", removed.Object.ID, removed.VAO))
		}
		for _, b := range removed.Buffers() {
			if r.ctx.TracksBuffer(b) {
				errs = append(errs, fmt.Errorf("removed object %d: buffer %d still live", removed.Object.ID, b))
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInconsistentState, errors.Join(errs...))
	}
	return nil
}

// Has reports whether id is active.
func (r *Renderer) Has(id int) bool {
	_, ok := r.scene.Get(id)
	return ok
}

// Count returns the number of active objects.
func (r *Renderer) Count() int { return r.scene.Len() }

// Objects returns the active objects in insertion order.
func (r *Renderer) Objects() []*scene.RenderObject {
	out := make([]*scene.RenderObject, 0, r.scene.Len())
	r.scene.Each(func(ra *Renderable) { out = append(out, ra.Object) })
	return out
}

// Clear removes every active object.
func (r *Renderer) Clear() error {
	var errs []error
	for _, o := range r.Objects() {
		if err := r.Remove(o); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Dispose removes every object and then empties both caches.
func (r *Renderer) Dispose() error {
	err := r.Clear()
	r.ctx.ProgramCache.Dispose()
	r.ctx.ShaderCache.Clear()
	return err
}

// FrameStats describes one Render call.
type FrameStats struct {
	Drawn    int
	Skipped  int
	Uploaded int
	Elapsed  time.Duration
}

// Render clears the viewport and draws the visible objects, opaque objects
// first, each group in insertion order. Attribute cells written since the
// previous frame are uploaded before drawing.
func (r *Renderer) Render() (FrameStats, error) {
	start := time.Now()
	var st FrameStats

	proj := r.camera.Projection(r.viewport.Aspect())
	view := r.camera.View()
	uniforms := map[string]any{
		"uProjection": proj,
		"uView":       view,
		"uPixelRatio": r.cfg.pixelRatio,
	}

	c := r.cfg.clearColor
	r.ctx.Device.Clear(c[0], c[1], c[2], c[3])

	var opaque, transparent []*Renderable
	r.scene.Each(func(ra *Renderable) {
		switch {
		case !ra.Object.Visible:
			st.Skipped++
		case ra.Object.Transparent():
			transparent = append(transparent, ra)
		default:
			opaque = append(opaque, ra)
		}
	})

	gen := r.ctx.ProgramCache.Generation()
	for _, ra := range append(opaque, transparent...) {
		if ra.Lease.Generation != gen {
			err := fmt.Errorf("%w: render object %d", ErrStaleProgram, ra.Object.ID)
			if r.ctx.Settings().DebugChecks() {
				return st, err
			}
			r.log.WithError(err).Warn("skipping render object")
			st.Skipped++
			continue
		}
		n, err := ra.sync(r.ctx)
		st.Uploaded += n
		if err != nil {
			return st, fmt.Errorf("render object %d: %w", ra.Object.ID, err)
		}
		r.ctx.Device.Draw(ra.drawCall(uniforms))
		st.Drawn++
	}

	r.frame++
	st.Elapsed = time.Since(start)
	if r.ctx.Settings().Timing {
		r.log.WithFields(logrus.Fields{
			"frame":    r.frame,
			"drawn":    st.Drawn,
			"skipped":  st.Skipped,
			"uploaded": st.Uploaded,
			"elapsed":  st.Elapsed,
		}).Debug("frame rendered")
	}
	return st, nil
}

// Snapshot reads the current viewport back from the device.
func (r *Renderer) Snapshot() (*capture.Frame, error) {
	v := r.viewport
	pixels, err := r.ctx.Device.ReadPixels(v.X, v.Y, v.Width, v.Height)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	return capture.FromBottomUp(v.Width, v.Height, pixels, r.frame)
}
