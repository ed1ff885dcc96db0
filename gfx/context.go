// Package gfx owns the device objects created on behalf of render objects:
// it counts live buffers, vertex arrays and textures, and deduplicates
// shaders and programs through reference counted caches.
package gfx

import (
	"fmt"
	"sync"

	"github.com/richinsley/molgl/graphics"
	"github.com/richinsley/molgl/options"
	"github.com/sirupsen/logrus"
)

type config struct {
	settings  options.Settings
	logger    *logrus.Entry
	preserve  bool
	evictIdle bool
}

// Option configures a Context.
type Option func(*config)

// WithSettings sets the debug/timing/production switches.
func WithSettings(s options.Settings) Option {
	return func(c *config) { c.settings = s }
}

// WithLogger sets the logger the context and its caches write to.
func WithLogger(l *logrus.Entry) Option {
	return func(c *config) { c.logger = l }
}

// WithPreserveDrawingBuffer records whether pixel contents persist across
// frames. It does not change resource tracking.
func WithPreserveDrawingBuffer(preserve bool) Option {
	return func(c *config) { c.preserve = preserve }
}

// WithEvictIdle makes both caches destroy an entry as soon as its reference
// count drops to zero instead of keeping it for reuse.
func WithEvictIdle(evict bool) Option {
	return func(c *config) { c.evictIdle = evict }
}

// Stats is a snapshot of a context's live resource counts.
type Stats struct {
	Buffers  int
	Textures int
	VAOs     int
	Programs int
	Shaders  int
}

// Fields returns the stats as log fields.
func (s Stats) Fields() logrus.Fields {
	return logrus.Fields{
		"buffers":  s.Buffers,
		"textures": s.Textures,
		"vaos":     s.VAOs,
		"programs": s.Programs,
		"shaders":  s.Shaders,
	}
}

// Context wraps a device and tracks every buffer, vertex array and texture
// created through it. Disposing a handle the context does not track is a
// double free.
type Context struct {
	Device       graphics.Device
	Surface      graphics.Surface
	ShaderCache  *ShaderCache
	ProgramCache *ProgramCache

	settings options.Settings
	preserve bool
	log      *logrus.Entry

	mu       sync.Mutex
	buffers  map[graphics.Buffer]struct{}
	vaos     map[graphics.VertexArray]struct{}
	textures map[graphics.Texture]struct{}
}

// NewContext binds a context to dev and sets the device viewport to the
// full surface.
func NewContext(dev graphics.Device, surface graphics.Surface, opts ...Option) *Context {
	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logrus.NewEntry(logrus.StandardLogger())
	}
	cfg.logger = cfg.logger.WithField("component", "gfx")

	shaders := newShaderCache(dev, cfg)
	ctx := &Context{
		Device:       dev,
		Surface:      surface,
		ShaderCache:  shaders,
		ProgramCache: newProgramCache(dev, shaders, cfg),
		settings:     cfg.settings,
		preserve:     cfg.preserve,
		log:          cfg.logger,
		buffers:      make(map[graphics.Buffer]struct{}),
		vaos:         make(map[graphics.VertexArray]struct{}),
		textures:     make(map[graphics.Texture]struct{}),
	}

	width, height := surface.GetFramebufferSize()
	dev.SetViewport(graphics.Viewport{Width: width, Height: height})
	ctx.log.WithFields(logrus.Fields{"width": width, "height": height, "gles": dev.IsGLES()}).Debug("context created")
	return ctx
}

// Settings returns the switches the context was created with.
func (c *Context) Settings() options.Settings { return c.settings }

// PreserveDrawingBuffer reports whether frames keep their pixels after EndFrame.
func (c *Context) PreserveDrawingBuffer() bool { return c.preserve }

// Logger returns the context logger.
func (c *Context) Logger() *logrus.Entry { return c.log }

// BufferCount returns the number of live buffers.
func (c *Context) BufferCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buffers)
}

// TextureCount returns the number of live textures.
func (c *Context) TextureCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.textures)
}

// VAOCount returns the number of live vertex arrays.
func (c *Context) VAOCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.vaos)
}

// Stats returns all live counts at once.
func (c *Context) Stats() Stats {
	c.mu.Lock()
	s := Stats{Buffers: len(c.buffers), Textures: len(c.textures), VAOs: len(c.vaos)}
	c.mu.Unlock()
	s.Programs = c.ProgramCache.Count()
	s.Shaders = c.ShaderCache.Count()
	return s
}

// TracksBuffer reports whether b is live in this context.
func (c *Context) TracksBuffer(b graphics.Buffer) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.buffers[b]
	return ok
}

// TracksVAO reports whether vao is live in this context.
func (c *Context) TracksVAO(vao graphics.VertexArray) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.vaos[vao]
	return ok
}

// CreateBuffer creates a device buffer and tracks it.
func (c *Context) CreateBuffer(desc graphics.BufferDesc) (graphics.Buffer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, err := c.Device.CreateBuffer(desc)
	if err != nil {
		return 0, fmt.Errorf("create buffer: %w", err)
	}
	c.buffers[b] = struct{}{}
	return b, nil
}

// UpdateBuffer rewrites the contents of a live buffer.
func (c *Context) UpdateBuffer(b graphics.Buffer, data []float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.buffers[b]; !ok {
		return fmt.Errorf("%w: update of buffer %d", ErrUnknownRegistration, b)
	}
	return c.Device.UpdateBuffer(b, data)
}

// DisposeBuffer deletes a tracked buffer.
func (c *Context) DisposeBuffer(b graphics.Buffer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.buffers[b]; !ok {
		return fmt.Errorf("%w: buffer %d", ErrDoubleFree, b)
	}
	c.Device.DeleteBuffer(b)
	delete(c.buffers, b)
	return nil
}

// CreateVAO creates a vertex array and tracks it.
func (c *Context) CreateVAO() (graphics.VertexArray, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	vao, err := c.Device.CreateVertexArray()
	if err != nil {
		return 0, fmt.Errorf("create vertex array: %w", err)
	}
	c.vaos[vao] = struct{}{}
	return vao, nil
}

// DisposeVAO deletes a tracked vertex array.
func (c *Context) DisposeVAO(vao graphics.VertexArray) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.vaos[vao]; !ok {
		return fmt.Errorf("%w: vertex array %d", ErrDoubleFree, vao)
	}
	c.Device.DeleteVertexArray(vao)
	delete(c.vaos, vao)
	return nil
}

// CreateTexture creates a texture and tracks it.
func (c *Context) CreateTexture(desc graphics.TextureDesc) (graphics.Texture, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, err := c.Device.CreateTexture(desc)
	if err != nil {
		return 0, fmt.Errorf("create texture: %w", err)
	}
	c.textures[t] = struct{}{}
	return t, nil
}

// DisposeTexture deletes a tracked texture.
func (c *Context) DisposeTexture(t graphics.Texture) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.textures[t]; !ok {
		return fmt.Errorf("%w: texture %d", ErrDoubleFree, t)
	}
	c.Device.DeleteTexture(t)
	delete(c.textures, t)
	return nil
}

// Dispose destroys both caches and every object still tracked. The context
// can be reused afterwards; all counts are zero.
func (c *Context) Dispose() {
	c.ProgramCache.Dispose()
	c.ShaderCache.Clear()

	c.mu.Lock()
	defer c.mu.Unlock()
	leaked := logrus.Fields{"buffers": len(c.buffers), "vaos": len(c.vaos), "textures": len(c.textures)}
	for vao := range c.vaos {
		c.Device.DeleteVertexArray(vao)
	}
	for b := range c.buffers {
		c.Device.DeleteBuffer(b)
	}
	for t := range c.textures {
		c.Device.DeleteTexture(t)
	}
	c.vaos = make(map[graphics.VertexArray]struct{})
	c.buffers = make(map[graphics.Buffer]struct{})
	c.textures = make(map[graphics.Texture]struct{})
	c.log.WithFields(leaked).Debug("context disposed")
}
