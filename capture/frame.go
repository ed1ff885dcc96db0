// Package capture turns read-back framebuffers into images and video.
package capture

import (
	"bufio"
	"fmt"
	"image"
	"io"
	"strconv"
)

// Frame is one RGBA framebuffer with rows stored top-down.
type Frame struct {
	Width  int
	Height int
	Pixels []byte
	PTS    int64
}

// FromBottomUp builds a frame from rows in the order glReadPixels returns
// them.
func FromBottomUp(width, height int, pixels []byte, pts int64) (*Frame, error) {
	rowSize := width * 4
	if len(pixels) != rowSize*height {
		return nil, fmt.Errorf("got %d bytes for a %dx%d frame", len(pixels), width, height)
	}
	out := make([]byte, len(pixels))
	for y := 0; y < height; y++ {
		copy(out[y*rowSize:(y+1)*rowSize], pixels[(height-1-y)*rowSize:(height-y)*rowSize])
	}
	return &Frame{Width: width, Height: height, Pixels: out, PTS: pts}, nil
}

// At returns the RGBA value of pixel (x, y) counted from the top left.
func (f *Frame) At(x, y int) [4]byte {
	o := (y*f.Width + x) * 4
	return [4]byte{f.Pixels[o], f.Pixels[o+1], f.Pixels[o+2], f.Pixels[o+3]}
}

// Image wraps the pixels without copying.
func (f *Frame) Image() *image.RGBA {
	return &image.RGBA{
		Pix:    f.Pixels,
		Stride: f.Width * 4,
		Rect:   image.Rect(0, 0, f.Width, f.Height),
	}
}

// WritePPM writes the frame as a plain text (P3) portable pixmap, dropping
// alpha.
func (f *Frame) WritePPM(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "P3\n# molgl.ppm\n%d %d\n255\n", f.Width, f.Height)
	var num []byte
	for i := 0; i+4 <= len(f.Pixels); i += 4 {
		for j := 0; j < 3; j++ {
			num = strconv.AppendInt(num[:0], int64(f.Pixels[i+j]), 10)
			bw.Write(num)
			bw.WriteByte(' ')
		}
	}
	bw.WriteByte('\n')
	return bw.Flush()
}
