package display

import (
	"fmt"
	"image"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/scanout"
	"github.com/gogpu/scanout/backend"
	"github.com/gogpu/scanout/framebuffer"
)

// Swapper presents a window's back buffer.
type Swapper interface {
	SwapBuffers() error
}

// Windowed presents frames through a window's default framebuffer.
type Windowed struct {
	window  gpucontext.WindowProvider
	swapper Swapper
}

var _ scanout.Presenter = (*Windowed)(nil)

// NewWindowed creates a presenter for window, swapping through swapper.
func NewWindowed(window gpucontext.WindowProvider, swapper Swapper) *Windowed {
	return &Windowed{window: window, swapper: swapper}
}

// NewSession creates a session presenting into the window. When the
// window is a backend.Context it is made current for every operation.
func (w *Windowed) NewSession(dev backend.Device, opts ...scanout.SessionOption) (*scanout.Session, error) {
	if ctx, ok := w.window.(backend.Context); ok {
		opts = append([]scanout.SessionOption{scanout.WithContext(ctx)}, opts...)
	}
	return scanout.NewSession(dev, w, opts...)
}

// pixelSize returns the window size in physical pixels.
func (w *Windowed) pixelSize() (int, int) {
	ww, wh := w.window.Size()
	if f := w.window.ScaleFactor(); f > 0 && f != 1 {
		ww = int(float64(ww) * f)
		wh = int(float64(wh) * f)
	}
	return ww, wh
}

// Offscreen implements scanout.Presenter.
func (w *Windowed) Offscreen() bool { return false }

// Prepare implements scanout.Presenter. dst becomes the window's default
// framebuffer at the current window size.
func (w *Windowed) Prepare(_ backend.Device, dst *framebuffer.Framebuffer, contentW, contentH int) (float64, float64, error) {
	ww, wh := w.pixelSize()
	if ww <= 0 || wh <= 0 || contentW <= 0 || contentH <= 0 {
		return 0, 0, fmt.Errorf("display: window %dx%d content %dx%d: %w",
			ww, wh, contentW, contentH, backend.ErrInvalidSize)
	}
	dst.SetupDefault(ww, wh)
	return float64(ww) / float64(contentW), float64(wh) / float64(contentH), nil
}

// Present implements scanout.Presenter.
func (w *Windowed) Present(_ backend.Device, _ *framebuffer.Framebuffer, _ image.Rectangle) error {
	if err := w.swapper.SwapBuffers(); err != nil {
		return fmt.Errorf("display: swap buffers: %w", err)
	}
	return nil
}

// PresentSurface implements scanout.Presenter. The surface is stretched
// over the whole window.
func (w *Windowed) PresentSurface(dev backend.Device, surface *framebuffer.Framebuffer) (float64, float64, error) {
	var win framebuffer.Framebuffer
	sx, sy, err := w.Prepare(dev, &win, surface.Width, surface.Height)
	if err != nil {
		return 0, 0, err
	}
	if err := framebuffer.Blit(dev, &win, surface, true); err != nil {
		return 0, 0, fmt.Errorf("display: draw surface: %w", err)
	}
	if err := w.Present(dev, &win, image.Rectangle{}); err != nil {
		return 0, 0, err
	}
	return sx, sy, nil
}
