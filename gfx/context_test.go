package gfx

import (
	"io"
	"testing"

	"github.com/richinsley/molgl/graphics"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func newTestContext(t *testing.T, opts ...Option) (*Context, *graphics.NullDevice) {
	t.Helper()
	dev := graphics.NewNullDevice(32, 32, graphics.NullOptions{PreserveDrawingBuffer: true})
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	return NewContext(dev, dev, opts...), dev
}

func TestNewContext(t *testing.T) {
	ctx, dev := newTestContext(t, WithPreserveDrawingBuffer(true))

	assert.Equal(t, Stats{}, ctx.Stats())
	assert.Equal(t, 0, ctx.BufferCount())
	assert.Equal(t, 0, ctx.TextureCount())
	assert.Equal(t, 0, ctx.VAOCount())
	assert.Equal(t, 0, ctx.ProgramCache.Count())
	assert.Equal(t, 0, ctx.ShaderCache.Count())
	assert.Equal(t, graphics.Viewport{Width: 32, Height: 32}, dev.Viewport())
	assert.True(t, ctx.PreserveDrawingBuffer())
}

func TestContextBuffers(t *testing.T) {
	ctx, dev := newTestContext(t)

	a, err := ctx.CreateBuffer(graphics.BufferDesc{Data: []float32{1}})
	require.NoError(t, err)
	b, err := ctx.CreateBuffer(graphics.BufferDesc{Data: []float32{2}})
	require.NoError(t, err)
	assert.Equal(t, 2, ctx.BufferCount())

	require.NoError(t, ctx.UpdateBuffer(a, []float32{3, 4}))
	data, _ := dev.BufferData(a)
	assert.Equal(t, []float32{3, 4}, data)

	require.NoError(t, ctx.DisposeBuffer(a))
	assert.Equal(t, 1, ctx.BufferCount())
	assert.ErrorIs(t, ctx.DisposeBuffer(a), ErrDoubleFree)
	assert.ErrorIs(t, ctx.UpdateBuffer(a, nil), ErrUnknownRegistration)
	assert.Equal(t, 1, ctx.BufferCount(), "a failed dispose changes nothing")

	require.NoError(t, ctx.DisposeBuffer(b))
	assert.Equal(t, 0, ctx.BufferCount())
	assert.Equal(t, 0, dev.Live().Buffers)
}

func TestContextVAOsAndTextures(t *testing.T) {
	ctx, dev := newTestContext(t)

	vao, err := ctx.CreateVAO()
	require.NoError(t, err)
	tex, err := ctx.CreateTexture(graphics.TextureDesc{Width: 4, Height: 4})
	require.NoError(t, err)
	assert.Equal(t, 1, ctx.VAOCount())
	assert.Equal(t, 1, ctx.TextureCount())

	require.NoError(t, ctx.DisposeVAO(vao))
	require.NoError(t, ctx.DisposeTexture(tex))
	assert.ErrorIs(t, ctx.DisposeVAO(vao), ErrDoubleFree)
	assert.ErrorIs(t, ctx.DisposeTexture(tex), ErrDoubleFree)
	assert.ErrorIs(t, ctx.DisposeVAO(graphics.VertexArray(999)), ErrDoubleFree)
	assert.Equal(t, Stats{}, ctx.Stats())
	assert.Equal(t, graphics.NullLive{}, dev.Live())
}

func TestContextCreateFailureLeavesCountsUnchanged(t *testing.T) {
	ctx, dev := newTestContext(t)
	dev.FailAfter(graphics.OpCreateBuffer, 0)
	dev.FailAfter(graphics.OpCreateVertexArray, 0)
	dev.FailAfter(graphics.OpCreateTexture, 0)

	_, err := ctx.CreateBuffer(graphics.BufferDesc{})
	assert.ErrorIs(t, err, graphics.ErrInjectedFault)
	_, err = ctx.CreateVAO()
	assert.ErrorIs(t, err, graphics.ErrInjectedFault)
	_, err = ctx.CreateTexture(graphics.TextureDesc{})
	assert.ErrorIs(t, err, graphics.ErrInjectedFault)
	assert.Equal(t, Stats{}, ctx.Stats())
}

func TestContextDispose(t *testing.T) {
	ctx, dev := newTestContext(t)

	_, err := ctx.CreateBuffer(graphics.BufferDesc{})
	require.NoError(t, err)
	_, err = ctx.CreateVAO()
	require.NoError(t, err)
	_, err = ctx.CreateTexture(graphics.TextureDesc{})
	require.NoError(t, err)
	_, err = ctx.ProgramCache.Acquire(testSource("a"))
	require.NoError(t, err)

	ctx.Dispose()
	assert.Equal(t, Stats{}, ctx.Stats())
	assert.Equal(t, graphics.NullLive{}, dev.Live())
}
