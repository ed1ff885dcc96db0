package options

// RenderOptions holds the command line configuration of the demo renderer.
type RenderOptions struct {
	Help       *bool
	Mode       *string // "window", "headless" or "null"
	Width      *int
	Height     *int
	Points     *int
	Frames     *int
	FPS        *int
	OutputFile *string // video file, recorded through ffmpeg when set
	FFMPEGPath *string
	Codec      *string // "h264", "hevc" or an ffmpeg encoder name
	Snapshot   *string // PPM file written after the last frame
	Preserve   *bool   // preserve the drawing buffer across frames
	EnvFile    *string
}
