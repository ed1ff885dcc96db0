package graphics

// Surface defines the drawable the device renders into: a window, a pbuffer
// or an in-memory framebuffer.
type Surface interface {
	MakeCurrent()
	Shutdown()
	ShouldClose() bool
	EndFrame()
	GetFramebufferSize() (int, int)
	Time() float64
}
