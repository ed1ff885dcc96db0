package capture

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

var errEncoderExited = errors.New("ffmpeg exited")

// ErrRecorderClosed is returned by WriteFrame and Close after Close.
var ErrRecorderClosed = errors.New("recorder closed")

// RecorderOptions configures a video recording.
type RecorderOptions struct {
	Width      int
	Height     int
	FPS        int
	OutputFile string
	FFMPEGPath string
	Codec      string
}

// Recorder pipes raw RGBA frames into an ffmpeg process.
type Recorder struct {
	opts   RecorderOptions
	frames chan *Frame
	done   chan error
	log    *logrus.Entry

	mu     sync.Mutex
	closed bool
}

func inputArgs(opts RecorderOptions) ffmpeg.KwArgs {
	return ffmpeg.KwArgs{
		"format":    "rawvideo",
		"pix_fmt":   "rgba",
		"s":         fmt.Sprintf("%dx%d", opts.Width, opts.Height),
		"framerate": opts.FPS,
	}
}

func outputArgs(opts RecorderOptions) ffmpeg.KwArgs {
	args := ffmpeg.KwArgs{
		"pix_fmt": "yuv420p",
	}
	switch opts.Codec {
	case "hevc":
		args["c:v"] = "libx265"
		if strings.HasSuffix(opts.OutputFile, ".mp4") {
			args["tag:v"] = "hvc1"
		}
	case "", "h264":
		args["c:v"] = "libx264"
	default:
		args["c:v"] = opts.Codec
	}
	return args
}

// StartRecorder launches ffmpeg and returns a recorder accepting frames of
// exactly opts.Width by opts.Height.
func StartRecorder(opts RecorderOptions, log *logrus.Entry) (*Recorder, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("invalid recording size %dx%d", opts.Width, opts.Height)
	}
	if opts.FPS <= 0 {
		return nil, fmt.Errorf("invalid frame rate %d", opts.FPS)
	}
	if opts.OutputFile == "" {
		return nil, fmt.Errorf("no output file")
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	r := &Recorder{
		opts:   opts,
		frames: make(chan *Frame, 4),
		done:   make(chan error, 1),
		log:    log.WithField("component", "recorder"),
	}
	go r.run()
	return r, nil
}

func (r *Recorder) run() {
	pipeReader, pipeWriter := io.Pipe()

	cmd := ffmpeg.Input("pipe:", inputArgs(r.opts)).
		Output(r.opts.OutputFile, outputArgs(r.opts)).
		OverWriteOutput().WithInput(pipeReader).ErrorToStdOut()
	if r.opts.FFMPEGPath != "" {
		cmd = cmd.SetFfmpegPath(r.opts.FFMPEGPath)
	}
	r.log.WithFields(logrus.Fields{"file": r.opts.OutputFile, "size": fmt.Sprintf("%dx%d", r.opts.Width, r.opts.Height)}).Info("recording started")

	errc := make(chan error, 1)
	go func() {
		err := cmd.Run()
		pipeReader.CloseWithError(errEncoderExited)
		errc <- err
	}()

	var writeErr error
	n := 0
	for frame := range r.frames {
		if writeErr != nil {
			continue
		}
		if _, err := pipeWriter.Write(frame.Pixels); err != nil {
			r.log.WithError(err).WithField("pts", frame.PTS).Error("writing frame to ffmpeg")
			writeErr = err
			continue
		}
		n++
	}
	pipeWriter.Close()

	err := <-errc
	if err == nil && writeErr != nil {
		err = writeErr
	}
	r.log.WithField("frames", n).Info("recording finished")
	r.done <- err
}

// WriteFrame queues f for encoding.
func (r *Recorder) WriteFrame(f *Frame) error {
	if f.Width != r.opts.Width || f.Height != r.opts.Height {
		return fmt.Errorf("frame is %dx%d, recording is %dx%d", f.Width, f.Height, r.opts.Width, r.opts.Height)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRecorderClosed
	}
	r.frames <- f
	return nil
}

// Close flushes queued frames and waits for ffmpeg to exit.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRecorderClosed
	}
	r.closed = true
	close(r.frames)
	r.mu.Unlock()
	return <-r.done
}
