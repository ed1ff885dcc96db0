package gfx

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/richinsley/molgl/graphics"
	"github.com/sirupsen/logrus"
)

// ShaderKey identifies a compiled shader by stage and source digest.
type ShaderKey struct {
	Stage graphics.ShaderStage
	Sum   [sha256.Size]byte
}

// KeyOf returns the cache key for source compiled as stage.
func KeyOf(stage graphics.ShaderStage, source string) ShaderKey {
	return ShaderKey{Stage: stage, Sum: sha256.Sum256([]byte(source))}
}

func (k ShaderKey) String() string {
	return k.Stage.String() + ":" + hex.EncodeToString(k.Sum[:6])
}

type shaderEntry struct {
	shader graphics.Shader
	refs   int
}

// ShaderCache deduplicates compiled shaders by stage and source text.
// Entries are reference counted. An entry whose count drops to zero stays
// resident until Sweep or Clear, unless the cache evicts idle entries.
type ShaderCache struct {
	dev       graphics.Device
	log       *logrus.Entry
	timing    bool
	evictIdle bool

	mu         sync.Mutex
	entries    map[ShaderKey]*shaderEntry
	generation uint64
}

func newShaderCache(dev graphics.Device, cfg *config) *ShaderCache {
	return &ShaderCache{
		dev:       dev,
		log:       cfg.logger.WithField("cache", "shader"),
		timing:    cfg.settings.Timing,
		evictIdle: cfg.evictIdle,
		entries:   make(map[ShaderKey]*shaderEntry),
	}
}

// Acquire returns the shader compiled from source, compiling it on first
// use, and takes one reference on it.
func (c *ShaderCache) Acquire(stage graphics.ShaderStage, source string) (ShaderKey, graphics.Shader, error) {
	key, sh, _, err := c.acquire(stage, source)
	return key, sh, err
}

func (c *ShaderCache) acquire(stage graphics.ShaderStage, source string) (ShaderKey, graphics.Shader, bool, error) {
	key := KeyOf(stage, source)

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.refs++
		return key, e.shader, false, nil
	}

	start := time.Now()
	sh, err := c.dev.CompileShader(stage, source)
	if err != nil {
		return key, 0, false, fmt.Errorf("%w: %s shader: %v", ErrResourceCompilation, stage, err)
	}
	c.entries[key] = &shaderEntry{shader: sh, refs: 1}

	l := c.log.WithField("key", key.String())
	if c.timing {
		l = l.WithField("elapsed", time.Since(start))
	}
	l.Debug("compiled shader")
	return key, sh, true, nil
}

// Release drops one reference on key.
func (c *ShaderCache) Release(key ShaderKey) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.release(key, c.evictIdle)
}

// discard undoes an acquire. A freshly created entry is destroyed even when
// idle entries are retained, so a failed attempt leaves Count unchanged.
func (c *ShaderCache) discard(key ShaderKey, created bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.release(key, c.evictIdle || created); err != nil {
		c.log.WithError(err).Warn("shader rollback")
	}
}

// caller must hold c.mu.
func (c *ShaderCache) release(key ShaderKey, evict bool) error {
	e, ok := c.entries[key]
	if !ok {
		return fmt.Errorf("%w: shader %s", ErrUnknownRegistration, key)
	}
	if e.refs == 0 {
		return fmt.Errorf("%w: shader %s has no outstanding references", ErrUnknownRegistration, key)
	}
	e.refs--
	if e.refs == 0 && evict {
		c.destroy(key, e)
	}
	return nil
}

// caller must hold c.mu.
func (c *ShaderCache) destroy(key ShaderKey, e *shaderEntry) {
	c.dev.DeleteShader(e.shader)
	delete(c.entries, key)
	c.log.WithField("key", key.String()).Debug("destroyed shader")
}

// Count returns the number of resident entries.
func (c *ShaderCache) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Refs returns the reference count of key, or -1 when it is not resident.
func (c *ShaderCache) Refs(key ShaderKey) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		return e.refs
	}
	return -1
}

// Generation increases every time Clear evicts the whole cache.
func (c *ShaderCache) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// Sweep destroys resident entries without references and returns how many
// were destroyed.
func (c *ShaderCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for key, e := range c.entries {
		if e.refs == 0 {
			c.destroy(key, e)
			n++
		}
	}
	return n
}

// Clear destroys every entry regardless of outstanding references.
// Shaders acquired before Clear must not be used afterwards.
func (c *ShaderCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, e := range c.entries {
		c.destroy(key, e)
	}
	c.generation++
	c.log.Debug("cleared shader cache")
}
