package capture

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromBottomUp(t *testing.T) {
	// two rows, bottom row red, top row blue
	pixels := []byte{
		255, 0, 0, 255,
		0, 0, 255, 255,
	}
	f, err := FromBottomUp(1, 2, pixels, 7)
	require.NoError(t, err)
	assert.Equal(t, [4]byte{0, 0, 255, 255}, f.At(0, 0))
	assert.Equal(t, [4]byte{255, 0, 0, 255}, f.At(0, 1))
	assert.Equal(t, int64(7), f.PTS)
	assert.Equal(t, 2, f.Image().Bounds().Dy())

	_, err = FromBottomUp(2, 2, pixels, 0)
	assert.Error(t, err)
}

func TestWritePPM(t *testing.T) {
	f := &Frame{Width: 2, Height: 1, Pixels: []byte{1, 2, 3, 255, 4, 5, 6, 0}}
	var buf bytes.Buffer
	require.NoError(t, f.WritePPM(&buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "P3", lines[0])
	assert.Equal(t, "2 1", lines[2])
	assert.Equal(t, "255", lines[3])
	assert.Equal(t, "1 2 3 4 5 6", strings.TrimSpace(lines[4]))
}

func TestRecorderArgs(t *testing.T) {
	opts := RecorderOptions{Width: 64, Height: 48, FPS: 30, OutputFile: "out.mp4", Codec: "hevc"}
	in := inputArgs(opts)
	assert.Equal(t, "64x48", in["s"])
	assert.Equal(t, "rgba", in["pix_fmt"])

	out := outputArgs(opts)
	assert.Equal(t, "libx265", out["c:v"])
	assert.Equal(t, "hvc1", out["tag:v"])

	opts.Codec = ""
	assert.Equal(t, "libx264", outputArgs(opts)["c:v"])
}

func TestStartRecorderValidates(t *testing.T) {
	_, err := StartRecorder(RecorderOptions{Width: 0, Height: 10, FPS: 30, OutputFile: "x.mp4"}, nil)
	assert.Error(t, err)
	_, err = StartRecorder(RecorderOptions{Width: 10, Height: 10, FPS: 0, OutputFile: "x.mp4"}, nil)
	assert.Error(t, err)
	_, err = StartRecorder(RecorderOptions{Width: 10, Height: 10, FPS: 30}, nil)
	assert.Error(t, err)
}

func TestRecorderClosed(t *testing.T) {
	opts := RecorderOptions{Width: 1, Height: 1, FPS: 30, OutputFile: "x.mp4"}
	r := &Recorder{opts: opts, frames: make(chan *Frame, 4), done: make(chan error, 1)}
	go func() {
		for range r.frames {
		}
		r.done <- nil
	}()

	f := &Frame{Width: 1, Height: 1, Pixels: make([]byte, 4)}
	require.NoError(t, r.WriteFrame(f))
	require.NoError(t, r.Close())
	assert.ErrorIs(t, r.WriteFrame(f), ErrRecorderClosed)
	assert.ErrorIs(t, r.Close(), ErrRecorderClosed)
}
