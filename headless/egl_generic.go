//go:build !linux

package headless

import (
	"fmt"

	"github.com/richinsley/molgl/graphics"
	"github.com/sirupsen/logrus"
)

// Headless is unavailable off Linux.
type Headless struct{}

var _ graphics.Surface = (*Headless)(nil)

func NewHeadless(width, height int, log *logrus.Entry) (*Headless, error) {
	return nil, fmt.Errorf("egl headless rendering is not supported on this platform")
}

func (h *Headless) IsGLES() bool { return true }
func (h *Headless) MakeCurrent() {}
func (h *Headless) Shutdown() {}
func (h *Headless) ShouldClose() bool { return true }
func (h *Headless) EndFrame() {}
func (h *Headless) GetFramebufferSize() (int, int) { return 0, 0 }
func (h *Headless) Time() float64 { return 0 }
