package software

import (
	"image"
	"sync"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/scanout/backend"
)

// Window is an in-memory stand-in for a native window with a
// double-buffered surface.
//
// The back buffer is bottom-first like any GL default framebuffer and
// follows the window size. SwapBuffers publishes it as the front image,
// top-first, which is what a user would see.
type Window struct {
	mu       sync.Mutex
	width    int
	height   int
	scale    float64
	back     *image.RGBA
	front    *image.RGBA
	swaps    int
	redraws  int
	currents int
}

var (
	_ gpucontext.WindowProvider = (*Window)(nil)
	_ backend.Context           = (*Window)(nil)
)

// NewWindow creates a window with the given client size.
func NewWindow(w, h int) *Window {
	return &Window{width: w, height: h, scale: 1}
}

// Size returns the client area size.
func (w *Window) Size() (width, height int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.width, w.height
}

// ScaleFactor returns the DPI scale factor, always 1.
func (w *Window) ScaleFactor() float64 { return w.scale }

// RequestRedraw records a redraw request.
func (w *Window) RequestRedraw() {
	w.mu.Lock()
	w.redraws++
	w.mu.Unlock()
}

// Resize changes the client size. The back buffer is reallocated on next use.
func (w *Window) Resize(width, height int) {
	w.mu.Lock()
	w.width, w.height = width, height
	w.mu.Unlock()
}

// MakeCurrent records that the window's context became current.
func (w *Window) MakeCurrent() error {
	w.mu.Lock()
	w.currents++
	w.mu.Unlock()
	return nil
}

// SwapBuffers publishes the back buffer.
func (w *Window) SwapBuffers() error {
	back := w.backBuffer()
	front := flipRows(back, back.Bounds())
	w.mu.Lock()
	w.front = front
	w.swaps++
	w.mu.Unlock()
	return nil
}

// Front returns the last presented image, or nil before the first swap.
func (w *Window) Front() *image.RGBA {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.front
}

// Swaps returns the number of SwapBuffers calls.
func (w *Window) Swaps() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.swaps
}

// Currents returns the number of MakeCurrent calls.
func (w *Window) Currents() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.currents
}

// Redraws returns the number of RequestRedraw calls.
func (w *Window) Redraws() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.redraws
}

// backBuffer returns the back buffer, reallocated if the window was resized.
func (w *Window) backBuffer() *image.RGBA {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.back == nil || w.back.Rect.Dx() != w.width || w.back.Rect.Dy() != w.height {
		w.back = image.NewRGBA(image.Rect(0, 0, max(w.width, 0), max(w.height, 0)))
	}
	return w.back
}
