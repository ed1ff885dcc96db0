package gfx

import (
	"testing"

	"github.com/richinsley/molgl/graphics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSource(name string) ProgramSource {
	return ProgramSource{
		Vertex:   "// " + name + "\nvoid main() { gl_Position = vec4(0.0); }\n",
		Fragment: "// " + name + "\nout vec4 c; void main() { c = vec4(1.0); }\n",
	}
}

func TestShaderCacheDedup(t *testing.T) {
	ctx, dev := newTestContext(t)
	sc := ctx.ShaderCache

	k1, s1, err := sc.Acquire(graphics.VertexStage, "void main() {}")
	require.NoError(t, err)
	k2, s2, err := sc.Acquire(graphics.VertexStage, "void main() {}")
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
	assert.Equal(t, s1, s2)
	assert.Equal(t, 1, sc.Count())
	assert.Equal(t, 2, sc.Refs(k1))

	k3, _, err := sc.Acquire(graphics.FragmentStage, "void main() {}")
	require.NoError(t, err)
	assert.NotEqual(t, k1, k3, "same text in another stage is another shader")
	assert.Equal(t, 2, sc.Count())
	assert.Equal(t, 2, dev.Live().Shaders)
}

func TestShaderCacheRelease(t *testing.T) {
	ctx, _ := newTestContext(t)
	sc := ctx.ShaderCache

	k, _, err := sc.Acquire(graphics.VertexStage, "void main() {}")
	require.NoError(t, err)
	require.NoError(t, sc.Release(k))
	assert.Equal(t, 1, sc.Count(), "idle entries stay resident")
	assert.Equal(t, 0, sc.Refs(k))
	assert.ErrorIs(t, sc.Release(k), ErrUnknownRegistration)

	assert.Equal(t, 1, sc.Sweep())
	assert.Equal(t, 0, sc.Count())
	assert.Equal(t, -1, sc.Refs(k))
	assert.ErrorIs(t, sc.Release(k), ErrUnknownRegistration)
}

func TestShaderCacheEvictIdle(t *testing.T) {
	ctx, dev := newTestContext(t, WithEvictIdle(true))
	sc := ctx.ShaderCache

	k, _, err := sc.Acquire(graphics.VertexStage, "void main() {}")
	require.NoError(t, err)
	_, _, err = sc.Acquire(graphics.VertexStage, "void main() {}")
	require.NoError(t, err)

	require.NoError(t, sc.Release(k))
	assert.Equal(t, 1, sc.Count())
	require.NoError(t, sc.Release(k))
	assert.Equal(t, 0, sc.Count())
	assert.Equal(t, 0, dev.Live().Shaders)
}

func TestShaderCacheCompileFailure(t *testing.T) {
	ctx, dev := newTestContext(t)
	_, _, err := ctx.ShaderCache.Acquire(graphics.FragmentStage, "#error broken")
	assert.ErrorIs(t, err, ErrResourceCompilation)
	assert.Equal(t, 0, ctx.ShaderCache.Count())
	assert.Equal(t, 0, dev.Live().Shaders)
}

func TestShaderCacheClear(t *testing.T) {
	ctx, dev := newTestContext(t)
	sc := ctx.ShaderCache
	k, _, err := sc.Acquire(graphics.VertexStage, "a")
	require.NoError(t, err)
	_, _, err = sc.Acquire(graphics.FragmentStage, "b")
	require.NoError(t, err)

	gen := sc.Generation()
	sc.Clear()
	assert.Equal(t, 0, sc.Count())
	assert.Equal(t, gen+1, sc.Generation())
	assert.Equal(t, 0, dev.Live().Shaders)
	assert.ErrorIs(t, sc.Release(k), ErrUnknownRegistration)
}

func TestProgramCacheDedup(t *testing.T) {
	ctx, dev := newTestContext(t)
	pc := ctx.ProgramCache

	l1, err := pc.Acquire(testSource("points"))
	require.NoError(t, err)
	l2, err := pc.Acquire(testSource("points"))
	require.NoError(t, err)

	k1 := l1.Key
	assert.Equal(t, k1, l2.Key)
	assert.Equal(t, l1.Program, l2.Program)
	assert.Equal(t, 1, pc.Count())
	assert.Equal(t, 2, ctx.ShaderCache.Count())
	assert.Equal(t, 2, pc.Refs(k1))
	assert.Equal(t, 2, ctx.ShaderCache.Refs(k1.Vertex))
	assert.Equal(t, 2, ctx.ShaderCache.Refs(k1.Fragment))
	assert.Equal(t, 1, dev.Live().Programs)

	_, err = pc.Acquire(testSource("mesh"))
	require.NoError(t, err)
	assert.Equal(t, 2, pc.Count())
	assert.Equal(t, 4, ctx.ShaderCache.Count())
}

func TestProgramCacheSharedShader(t *testing.T) {
	ctx, _ := newTestContext(t)
	a := testSource("a")
	b := ProgramSource{Vertex: a.Vertex, Fragment: testSource("b").Fragment}

	la, err := ctx.ProgramCache.Acquire(a)
	require.NoError(t, err)
	_, err = ctx.ProgramCache.Acquire(b)
	require.NoError(t, err)

	assert.Equal(t, 2, ctx.ProgramCache.Count())
	assert.Equal(t, 3, ctx.ShaderCache.Count())
	assert.Equal(t, 2, ctx.ShaderCache.Refs(la.Key.Vertex))
}

func TestProgramCacheRelease(t *testing.T) {
	ctx, _ := newTestContext(t)
	pc := ctx.ProgramCache

	l, err := pc.Acquire(testSource("points"))
	require.NoError(t, err)
	l2, err := pc.Acquire(testSource("points"))
	require.NoError(t, err)
	k := l.Key

	require.NoError(t, pc.Release(l))
	assert.Equal(t, 1, pc.Refs(k))
	assert.Equal(t, 1, ctx.ShaderCache.Refs(k.Vertex))

	require.NoError(t, pc.Release(l2))
	assert.Equal(t, 0, pc.Refs(k))
	assert.Equal(t, 1, pc.Count())
	assert.Equal(t, 2, ctx.ShaderCache.Count())
	assert.ErrorIs(t, pc.Release(l), ErrUnknownRegistration)

	assert.ErrorIs(t, pc.Release(Lease{Key: testSource("other").Key()}), ErrUnknownRegistration)
}

func TestProgramCacheEvictIdle(t *testing.T) {
	ctx, dev := newTestContext(t, WithEvictIdle(true))
	l, err := ctx.ProgramCache.Acquire(testSource("points"))
	require.NoError(t, err)

	require.NoError(t, ctx.ProgramCache.Release(l))
	assert.Equal(t, 0, ctx.ProgramCache.Count())
	assert.Equal(t, 0, ctx.ShaderCache.Count())
	assert.Equal(t, graphics.NullLive{}, dev.Live())
}

func TestProgramCacheFailureRollsBack(t *testing.T) {
	tests := []struct {
		name string
		arm  func(*graphics.NullDevice)
		src  ProgramSource
	}{
		{
			name: "vertex compile",
			src:  ProgramSource{Vertex: "#error v", Fragment: testSource("x").Fragment},
		},
		{
			name: "fragment compile",
			src:  ProgramSource{Vertex: testSource("x").Vertex, Fragment: "#error f"},
		},
		{
			name: "link",
			arm:  func(d *graphics.NullDevice) { d.FailAfter(graphics.OpLinkProgram, 0) },
			src:  testSource("x"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, dev := newTestContext(t)
			if tt.arm != nil {
				tt.arm(dev)
			}
			_, err := ctx.ProgramCache.Acquire(tt.src)
			assert.ErrorIs(t, err, ErrResourceCompilation)
			assert.Equal(t, 0, ctx.ProgramCache.Count())
			assert.Equal(t, 0, ctx.ShaderCache.Count())
			assert.Equal(t, graphics.NullLive{}, dev.Live())
		})
	}
}

func TestProgramCacheLinkFailureKeepsSharedShader(t *testing.T) {
	ctx, dev := newTestContext(t)
	a := testSource("a")
	la, err := ctx.ProgramCache.Acquire(a)
	require.NoError(t, err)

	dev.FailAfter(graphics.OpLinkProgram, 0)
	_, err = ctx.ProgramCache.Acquire(ProgramSource{Vertex: a.Vertex, Fragment: testSource("b").Fragment})
	require.ErrorIs(t, err, ErrResourceCompilation)

	assert.Equal(t, 1, ctx.ProgramCache.Count())
	assert.Equal(t, 2, ctx.ShaderCache.Count())
	assert.Equal(t, 1, ctx.ShaderCache.Refs(la.Key.Vertex))
}

func TestProgramCacheDispose(t *testing.T) {
	ctx, dev := newTestContext(t)
	pc := ctx.ProgramCache

	l, err := pc.Acquire(testSource("points"))
	require.NoError(t, err)
	_, err = pc.Acquire(testSource("points"))
	require.NoError(t, err)
	k := l.Key

	gen := pc.Generation()
	pc.Dispose()
	assert.Equal(t, 0, pc.Count())
	assert.Equal(t, gen+1, pc.Generation())
	assert.Equal(t, 0, dev.Live().Programs)
	assert.Equal(t, 0, ctx.ShaderCache.Refs(k.Vertex), "shader references were returned")
	assert.Equal(t, 2, ctx.ShaderCache.Count())
	assert.ErrorIs(t, pc.Release(l), ErrUnknownRegistration)

	ctx.ShaderCache.Clear()
	assert.Equal(t, 0, ctx.ShaderCache.Count())
}

func TestProgramCacheAfterShaderClear(t *testing.T) {
	ctx, dev := newTestContext(t)
	pc := ctx.ProgramCache

	l, err := pc.Acquire(testSource("points"))
	require.NoError(t, err)
	k := l.Key
	ctx.ShaderCache.Clear()

	require.NoError(t, pc.Release(l), "stale shader references are skipped")
	assert.Equal(t, 0, ctx.ShaderCache.Count())

	l, err = pc.Acquire(testSource("points"))
	require.NoError(t, err)
	assert.Equal(t, 1, pc.Count())
	assert.Equal(t, 2, ctx.ShaderCache.Count(), "shaders are recompiled on reuse")
	assert.Equal(t, 1, ctx.ShaderCache.Refs(k.Vertex))

	require.NoError(t, pc.Release(l))
	assert.Equal(t, 0, ctx.ShaderCache.Refs(k.Vertex))
	assert.Equal(t, 1, dev.Live().Programs)
}

func TestProgramCacheRollback(t *testing.T) {
	ctx, dev := newTestContext(t)
	pc := ctx.ProgramCache

	l, err := pc.Acquire(testSource("fresh"))
	require.NoError(t, err)
	pc.Rollback(l)
	assert.Equal(t, 0, pc.Count(), "a created entry is destroyed")
	assert.Equal(t, 0, ctx.ShaderCache.Count())
	assert.Equal(t, graphics.NullLive{}, dev.Live())

	kept, err := pc.Acquire(testSource("kept"))
	require.NoError(t, err)
	k := kept.Key
	l, err = pc.Acquire(testSource("kept"))
	require.NoError(t, err)
	pc.Rollback(l)
	assert.Equal(t, 1, pc.Count())
	assert.Equal(t, 1, pc.Refs(k))
	assert.Equal(t, 1, ctx.ShaderCache.Refs(k.Vertex))

	l, err = pc.Acquire(testSource("kept"))
	require.NoError(t, err)
	pc.Dispose()
	pc.Rollback(l)
	assert.Equal(t, 0, pc.Count(), "leases from before Dispose are ignored")
}

func TestProgramCacheReleaseAcrossShaderClear(t *testing.T) {
	ctx, _ := newTestContext(t)
	pc := ctx.ProgramCache

	before, err := pc.Acquire(testSource("points"))
	require.NoError(t, err)
	ctx.ShaderCache.Clear()
	after, err := pc.Acquire(testSource("points"))
	require.NoError(t, err)
	k := after.Key

	require.NoError(t, pc.Release(before))
	assert.Equal(t, 1, pc.Refs(k))
	assert.Equal(t, 1, ctx.ShaderCache.Refs(k.Vertex), "the later lease keeps its shaders")
	assert.Equal(t, 1, ctx.ShaderCache.Refs(k.Fragment))
	assert.Equal(t, 0, ctx.ShaderCache.Sweep())

	require.NoError(t, pc.Release(after))
	assert.Equal(t, 0, ctx.ShaderCache.Refs(k.Vertex))
	assert.Equal(t, 2, ctx.ShaderCache.Sweep())
}
