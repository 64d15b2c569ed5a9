package display

import (
	"fmt"
	"image"

	"github.com/gogpu/scanout"
	"github.com/gogpu/scanout/backend"
	"github.com/gogpu/scanout/framebuffer"
)

// Notifier receives host surface changes from a Headless display.
type Notifier interface {
	// GfxUpdate reports that a rectangle of an output's surface changed.
	GfxUpdate(output, x, y, w, h int)

	// ReplaceSurface reports that an output got a new surface, after the
	// guest changed its scanout size.
	ReplaceSurface(output int, img *image.RGBA)
}

// Headless reads composed frames back into host memory.
type Headless struct {
	outputs []*Output
}

// Output is one headless display output.
type Output struct {
	index    int
	session  *scanout.Session
	surface  *image.RGBA
	notifier Notifier
}

var _ scanout.Presenter = (*Output)(nil)

// NewHeadless creates n outputs on dev, each with its own session. The
// options apply to every session.
func NewHeadless(dev backend.Device, n int, notifier Notifier, opts ...scanout.SessionOption) (*Headless, error) {
	if n <= 0 {
		return nil, fmt.Errorf("display: %d headless outputs", n)
	}
	h := &Headless{outputs: make([]*Output, 0, n)}
	for i := range n {
		o := &Output{index: i, notifier: notifier}
		s, err := scanout.NewSession(dev, o, opts...)
		if err != nil {
			h.Close()
			return nil, fmt.Errorf("display: output %d: %w", i, err)
		}
		o.session = s
		h.outputs = append(h.outputs, o)
	}
	scanout.Logger().Info("display: headless outputs created", "count", n)
	return h, nil
}

// Outputs returns the outputs in creation order.
func (h *Headless) Outputs() []*Output { return h.outputs }

// Output returns output i, or nil.
func (h *Headless) Output(i int) *Output {
	if i < 0 || i >= len(h.outputs) {
		return nil
	}
	return h.outputs[i]
}

// Sessions returns the session of every output.
func (h *Headless) Sessions() []*scanout.Session {
	ss := make([]*scanout.Session, len(h.outputs))
	for i, o := range h.outputs {
		ss[i] = o.session
	}
	return ss
}

// Close closes every session.
func (h *Headless) Close() error {
	var first error
	for _, o := range h.outputs {
		if o.session == nil {
			continue
		}
		if err := o.session.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Index returns the output number.
func (o *Output) Index() int { return o.index }

// Session returns the output's session.
func (o *Output) Session() *scanout.Session { return o.session }

// Surface returns the host surface frames are read into.
func (o *Output) Surface() *image.RGBA { return o.surface }

// SwitchSurface replaces the host surface. Headless outputs keep plain
// surfaces in host memory, so there is nothing to draw while scanout is
// disabled.
func (o *Output) SwitchSurface(img *image.RGBA) {
	o.surface = img
}

// Offscreen implements scanout.Presenter.
func (o *Output) Offscreen() bool { return true }

// Prepare implements scanout.Presenter. It replaces the host surface when
// the composition target changed size.
func (o *Output) Prepare(_ backend.Device, dst *framebuffer.Framebuffer, _, _ int) (float64, float64, error) {
	if dst.Texture == 0 {
		return 0, 0, fmt.Errorf("display: headless target: %w", framebuffer.ErrEmpty)
	}
	if o.surface == nil || o.surface.Bounds().Dx() != dst.Width || o.surface.Bounds().Dy() != dst.Height {
		o.surface = image.NewRGBA(image.Rect(0, 0, dst.Width, dst.Height))
		if o.notifier != nil {
			o.notifier.ReplaceSurface(o.index, o.surface)
		}
	}
	return 1, 1, nil
}

// Present implements scanout.Presenter. It reads dst into the host
// surface and reports region as updated.
func (o *Output) Present(dev backend.Device, dst *framebuffer.Framebuffer, region image.Rectangle) error {
	if o.surface == nil || o.surface.Bounds().Dx() != dst.Width || o.surface.Bounds().Dy() != dst.Height {
		return fmt.Errorf("%w: output %d target %dx%d", scanout.ErrSurfaceFormat, o.index, dst.Width, dst.Height)
	}
	if err := framebuffer.Read(dev, dst, o.surface); err != nil {
		return err
	}
	if o.notifier != nil {
		o.notifier.GfxUpdate(o.index, region.Min.X, region.Min.Y, region.Dx(), region.Dy())
	}
	return nil
}

// PresentSurface implements scanout.Presenter. Headless surfaces already
// live in host memory.
func (o *Output) PresentSurface(backend.Device, *framebuffer.Framebuffer) (float64, float64, error) {
	return 1, 1, nil
}
