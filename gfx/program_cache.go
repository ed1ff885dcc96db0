package gfx

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/richinsley/molgl/graphics"
	"github.com/sirupsen/logrus"
)

// ProgramSource is the vertex/fragment source pairing of a program.
type ProgramSource struct {
	Vertex   string
	Fragment string
}

// ProgramKey identifies a linked program by its constituent shader keys.
type ProgramKey struct {
	Vertex   ShaderKey
	Fragment ShaderKey
}

// Key returns the cache key of the pairing.
func (s ProgramSource) Key() ProgramKey {
	return ProgramKey{
		Vertex:   KeyOf(graphics.VertexStage, s.Vertex),
		Fragment: KeyOf(graphics.FragmentStage, s.Fragment),
	}
}

func (k ProgramKey) String() string {
	return k.Vertex.String() + "+" + k.Fragment.String()
}

type programEntry struct {
	program graphics.Program
	source  ProgramSource
	refs    int

	// held counts the shader references taken for this entry under
	// shaderGen. A Clear of the shader cache invalidates them.
	shaderGen uint64
	held      int
}

// ProgramCache deduplicates linked programs by their shader pairing. Every
// acquire also takes one reference on each constituent shader entry.
type ProgramCache struct {
	dev       graphics.Device
	shaders   *ShaderCache
	log       *logrus.Entry
	timing    bool
	evictIdle bool

	mu         sync.Mutex
	entries    map[ProgramKey]*programEntry
	generation uint64
}

func newProgramCache(dev graphics.Device, shaders *ShaderCache, cfg *config) *ProgramCache {
	return &ProgramCache{
		dev:       dev,
		shaders:   shaders,
		log:       cfg.logger.WithField("cache", "program"),
		timing:    cfg.settings.Timing,
		evictIdle: cfg.evictIdle,
		entries:   make(map[ProgramKey]*programEntry),
	}
}

// Lease records one successful acquire. It is released with Release or
// undone with Rollback.
type Lease struct {
	Key     ProgramKey
	Program graphics.Program
	// Generation is the program cache generation the lease was taken under.
	Generation uint64
	// ShaderGeneration is the shader cache generation the shader references
	// were taken under. A Clear of the shader cache voids them.
	ShaderGeneration uint64

	created bool
	vsNew   bool
	fsNew   bool
}

// Acquire returns a lease on the program linked from src, compiling and
// linking on first use. On failure every reference taken by the attempt is
// returned and no entry is left behind.
func (c *ProgramCache) Acquire(src ProgramSource) (Lease, error) {
	key := src.Key()

	c.mu.Lock()
	defer c.mu.Unlock()

	l := Lease{Key: key, Generation: c.generation}
	_, vs, vsNew, err := c.shaders.acquire(graphics.VertexStage, src.Vertex)
	if err != nil {
		return l, err
	}
	_, fs, fsNew, err := c.shaders.acquire(graphics.FragmentStage, src.Fragment)
	if err != nil {
		c.shaders.discard(key.Vertex, vsNew)
		return l, err
	}

	e, ok := c.entries[key]
	if !ok {
		start := time.Now()
		p, err := c.dev.LinkProgram(vs, fs)
		if err != nil {
			c.shaders.discard(key.Fragment, fsNew)
			c.shaders.discard(key.Vertex, vsNew)
			return l, fmt.Errorf("%w: link %s: %v", ErrResourceCompilation, key, err)
		}
		e = &programEntry{program: p, source: src}
		c.entries[key] = e

		log := c.log.WithField("key", key.String())
		if c.timing {
			log = log.WithField("elapsed", time.Since(start))
		}
		log.Debug("linked program")
	}

	gen := c.shaders.Generation()
	if e.shaderGen != gen {
		e.shaderGen = gen
		e.held = 0
	}
	e.refs++
	e.held++

	l.Program = e.program
	l.ShaderGeneration = gen
	l.created = !ok
	l.vsNew = vsNew
	l.fsNew = fsNew
	return l, nil
}

// Rollback undoes an Acquire. Entries the lease created are destroyed even
// when idle entries are retained, so Count is as it was before the acquire.
// A lease from before the last Dispose is ignored.
func (c *ProgramCache) Rollback(l Lease) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[l.Key]
	if !ok || l.Generation != c.generation || e.refs == 0 {
		return
	}
	e.refs--
	if c.ownsShaders(l, e) {
		e.held--
		c.shaders.discard(l.Key.Fragment, l.fsNew)
		c.shaders.discard(l.Key.Vertex, l.vsNew)
	}
	if e.refs == 0 && (c.evictIdle || l.created) {
		c.destroy(l.Key, e)
	}
}

// Release drops the reference l holds on its program and, unless the shader
// cache was cleared since, on the program's shader entries.
func (c *ProgramCache) Release(l Lease) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[l.Key]
	if !ok || l.Generation != c.generation {
		return fmt.Errorf("%w: program %s", ErrUnknownRegistration, l.Key)
	}
	if e.refs == 0 {
		return fmt.Errorf("%w: program %s has no outstanding references", ErrUnknownRegistration, l.Key)
	}
	e.refs--
	if c.ownsShaders(l, e) {
		e.held--
		c.releaseShaders(l.Key)
	}
	if e.refs == 0 && c.evictIdle {
		c.destroy(l.Key, e)
	}
	return nil
}

// ownsShaders reports whether l still holds live shader references.
// caller must hold c.mu.
func (c *ProgramCache) ownsShaders(l Lease, e *programEntry) bool {
	gen := c.shaders.Generation()
	return l.ShaderGeneration == gen && e.shaderGen == gen && e.held > 0
}

// caller must hold c.mu.
func (c *ProgramCache) releaseShaders(key ProgramKey) {
	for _, sk := range [2]ShaderKey{key.Vertex, key.Fragment} {
		if err := c.shaders.Release(sk); err != nil && !errors.Is(err, ErrUnknownRegistration) {
			c.log.WithError(err).Warn("release shader dependency")
		}
	}
}

// caller must hold c.mu.
func (c *ProgramCache) destroy(key ProgramKey, e *programEntry) {
	c.dev.DeleteProgram(e.program)
	delete(c.entries, key)
	c.log.WithField("key", key.String()).Debug("destroyed program")
}

// Count returns the number of resident entries.
func (c *ProgramCache) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Refs returns the reference count of key, or -1 when it is not resident.
func (c *ProgramCache) Refs(key ProgramKey) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		return e.refs
	}
	return -1
}

// Generation increases every time Dispose evicts the whole cache. Holders
// compare it with the generation they acquired under to detect eviction.
func (c *ProgramCache) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// Sweep destroys resident programs without references.
func (c *ProgramCache) Sweep() int {
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

// Dispose destroys every program regardless of outstanding references and
// releases the shader references they hold.
func (c *ProgramCache) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	gen := c.shaders.Generation()
	for key, e := range c.entries {
		if e.shaderGen == gen {
			for ; e.held > 0; e.held-- {
				c.releaseShaders(key)
			}
		}
		c.destroy(key, e)
	}
	c.generation++
	c.log.Debug("disposed program cache")
}
