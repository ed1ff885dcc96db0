package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"runtime"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/richinsley/molgl/camera"
	"github.com/richinsley/molgl/capture"
	"github.com/richinsley/molgl/gfx"
	"github.com/richinsley/molgl/gldevice"
	"github.com/richinsley/molgl/glfwcontext"
	"github.com/richinsley/molgl/graphics"
	"github.com/richinsley/molgl/headless"
	"github.com/richinsley/molgl/options"
	"github.com/richinsley/molgl/renderer"
	"github.com/richinsley/molgl/scene"
	"github.com/richinsley/molgl/valuecell"
	log "github.com/sirupsen/logrus"
)

func init() {
	runtime.LockOSThread()
}

// sphere spreads n points over a sphere of the given radius and colors
// them by direction.
func sphere(id, n int, radius float32) (*scene.RenderObject, error) {
	pos := make([]float32, 0, 3*n)
	col := make([]float32, 0, 3*n)
	golden := math.Pi * (3 - math.Sqrt(5))
	for i := 0; i < n; i++ {
		y := 1 - 2*(float64(i)+0.5)/float64(n)
		r := math.Sqrt(1 - y*y)
		theta := golden * float64(i)
		v := mgl32.Vec3{float32(math.Cos(theta) * r), float32(y), float32(math.Sin(theta) * r)}
		p := v.Mul(radius)
		pos = append(pos, p[0], p[1], p[2])
		col = append(col, 0.5+v[0]/2, 0.5+v[1]/2, 0.5+v[2]/2)
	}
	return scene.NewPointRenderObject(scene.PointProps{
		ObjectID:      id,
		Alpha:         1,
		Visible:       true,
		DepthMask:     true,
		Position:      valuecell.New(pos),
		IDs:           valuecell.New(scene.FillSerial(make([]float32, n))),
		Color:         scene.AttributeColor(col),
		Size:          scene.UniformSize(4),
		Transform:     valuecell.New(scene.IdentityTransforms(1)),
		InstanceCount: 1,
		ElementCount:  n,
		PositionCount: n,
	})
}

type target struct {
	dev     graphics.Device
	surface graphics.Surface
	cleanup func()
}

func openTarget(opts *options.RenderOptions, logger *log.Entry) (*target, error) {
	switch *opts.Mode {
	case "null":
		dev := graphics.NewNullDevice(*opts.Width, *opts.Height, graphics.NullOptions{PreserveDrawingBuffer: *opts.Preserve})
		return &target{dev: dev, surface: dev, cleanup: func() {}}, nil
	case "headless":
		h, err := headless.NewHeadless(*opts.Width, *opts.Height, logger)
		if err != nil {
			return nil, err
		}
		dev, err := gldevice.New(h.IsGLES(), logger)
		if err != nil {
			h.Shutdown()
			return nil, err
		}
		return &target{dev: dev, surface: h, cleanup: h.Shutdown}, nil
	case "window":
		if err := glfwcontext.InitGraphics(logger); err != nil {
			return nil, fmt.Errorf("failed to initialize GLFW: %w", err)
		}
		win, err := glfwcontext.New(*opts.Width, *opts.Height, true)
		if err != nil {
			glfwcontext.TerminateGraphics(logger)
			return nil, fmt.Errorf("failed to create window: %w", err)
		}
		win.MakeCurrent()
		dev, err := gldevice.New(win.IsGLES(), logger)
		if err != nil {
			win.Shutdown()
			glfwcontext.TerminateGraphics(logger)
			return nil, err
		}
		return &target{dev: dev, surface: win, cleanup: func() {
			win.Shutdown()
			glfwcontext.TerminateGraphics(logger)
		}}, nil
	default:
		return nil, fmt.Errorf("unknown mode %q", *opts.Mode)
	}
}

func run(opts *options.RenderOptions, settings options.Settings) error {
	logger := log.WithField("app", "molgl")

	t, err := openTarget(opts, logger)
	if err != nil {
		return err
	}
	defer t.cleanup()

	ctx := gfx.NewContext(t.dev, t.surface,
		gfx.WithSettings(settings),
		gfx.WithLogger(logger),
		gfx.WithPreserveDrawingBuffer(*opts.Preserve),
	)
	defer ctx.Dispose()

	fbWidth, _ := t.surface.GetFramebufferSize()
	cam := camera.New(camera.Props{Near: 0.01, Far: 10000, Position: mgl32.Vec3{0, 0, 50}})
	r := renderer.Create(ctx, cam, renderer.WithPixelRatio(float32(fbWidth)/float32(*opts.Width)))
	defer func() {
		if err := r.Dispose(); err != nil {
			logger.WithError(err).Warn("renderer dispose")
		}
		logger.WithFields(ctx.Stats().Fields()).Info("resources after dispose")
	}()

	obj, err := sphere(1, *opts.Points, 15)
	if err != nil {
		return err
	}
	if err := r.Add(obj); err != nil {
		return err
	}
	logger.WithFields(ctx.Stats().Fields()).Info("scene ready")

	var rec *capture.Recorder
	if *opts.OutputFile != "" {
		v := r.Viewport()
		rec, err = capture.StartRecorder(capture.RecorderOptions{
			Width:      v.Width,
			Height:     v.Height,
			FPS:        *opts.FPS,
			OutputFile: *opts.OutputFile,
			FFMPEGPath: *opts.FFMPEGPath,
			Codec:      *opts.Codec,
		}, logger)
		if err != nil {
			return err
		}
	}

	var last *capture.Frame
	for frame := 0; *opts.Frames <= 0 || frame < *opts.Frames; frame++ {
		if t.surface.ShouldClose() {
			break
		}
		angle := float32(frame) / float32(*opts.FPS)
		obj.Transform.Set(scene.Transforms(mgl32.HomogRotate3DY(angle)))

		if _, err := r.Render(); err != nil {
			return err
		}
		if rec != nil || *opts.Snapshot != "" {
			if last, err = r.Snapshot(); err != nil {
				return err
			}
			if rec != nil {
				if err := rec.WriteFrame(last); err != nil {
					return err
				}
			}
		}
		t.surface.EndFrame()
	}

	if rec != nil {
		if err := rec.Close(); err != nil {
			return fmt.Errorf("recording failed: %w", err)
		}
		logger.WithField("file", *opts.OutputFile).Info("recording written")
	}
	if *opts.Snapshot != "" && last != nil {
		f, err := os.Create(*opts.Snapshot)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := last.WritePPM(f); err != nil {
			return err
		}
		logger.WithField("file", *opts.Snapshot).Info("snapshot written")
	}
	return r.Remove(obj)
}

func main() {
	opts := &options.RenderOptions{
		Help:       flag.Bool("help", false, "Show help message"),
		Mode:       flag.String("mode", "window", "Render target: window, headless or null"),
		Width:      flag.Int("width", 1280, "Width of the output"),
		Height:     flag.Int("height", 720, "Height of the output"),
		Points:     flag.Int("points", 2000, "Number of points to draw"),
		Frames:     flag.Int("frames", 0, "Frames to render, 0 renders until the window closes"),
		FPS:        flag.Int("fps", 60, "Frames per second for animation and recording"),
		OutputFile: flag.String("output", "", "Record the frames to this video file"),
		FFMPEGPath: flag.String("ffmpeg", "", "Path to ffmpeg executable"),
		Codec:      flag.String("codec", "h264", "Video codec for recording"),
		Snapshot:   flag.String("snapshot", "", "Write the last frame to this PPM file"),
		Preserve:   flag.Bool("preserve", false, "Preserve the drawing buffer across frames"),
		EnvFile:    flag.String("env", ".env", "Environment file to load"),
	}
	flag.Parse()

	if *opts.Help {
		fmt.Println("molgl point cloud renderer")
		flag.PrintDefaults()
		return
	}

	if err := options.LoadDotEnv(*opts.EnvFile); err != nil {
		log.WithError(err).Fatal("failed to load environment")
	}
	settings := options.FromEnv()
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(settings.LogLevel())

	if *opts.Mode != "window" && *opts.Frames <= 0 {
		*opts.Frames = *opts.FPS
	}
	if err := run(opts, settings); err != nil {
		log.WithError(err).Fatal("render failed")
	}
}
