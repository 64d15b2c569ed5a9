package display

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/gogpu/scanout"
	"github.com/gogpu/scanout/backend"
	"github.com/gogpu/scanout/backend/software"
	"github.com/gogpu/scanout/framebuffer"
)

type gfxUpdate struct {
	output, x, y, w, h int
}

type recordingNotifier struct {
	updates  []gfxUpdate
	replaced map[int][]*image.RGBA
}

func (n *recordingNotifier) GfxUpdate(output, x, y, w, h int) {
	n.updates = append(n.updates, gfxUpdate{output, x, y, w, h})
}

func (n *recordingNotifier) ReplaceSurface(output int, img *image.RGBA) {
	if n.replaced == nil {
		n.replaced = make(map[int][]*image.RGBA)
	}
	n.replaced[output] = append(n.replaced[output], img)
}

type handles map[scanout.Handle]scanout.Backing

func (m handles) Resolve(h scanout.Handle) (scanout.Backing, bool) {
	b, ok := m[h]
	return b, ok
}

func pattern(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 0x40, A: 0xff})
		}
	}
	return img
}

func (m handles) upload(t *testing.T, dev backend.Device, h scanout.Handle, img *image.RGBA) {
	t.Helper()
	tex, err := backend.NewImageFromRGBA(dev, img)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	m[h] = scanout.Backing{
		Texture:  tex.ID(),
		Target:   backend.Target2D,
		TopFirst: true,
		Width:    tex.Width(),
		Height:   tex.Height(),
	}
}

func TestNewHeadless(t *testing.T) {
	if _, err := NewHeadless(software.New(), 0, nil); err == nil {
		t.Error("NewHeadless with no outputs succeeded")
	}
	h, err := NewHeadless(software.New(), 3, nil)
	if err != nil {
		t.Fatalf("NewHeadless: %v", err)
	}
	if len(h.Outputs()) != 3 || len(h.Sessions()) != 3 {
		t.Fatalf("outputs = %d, sessions = %d", len(h.Outputs()), len(h.Sessions()))
	}
	for i, o := range h.Outputs() {
		if o.Index() != i || h.Output(i) != o {
			t.Errorf("output %d has index %d", i, o.Index())
		}
		if o.Session() == nil || o.Session().ScanoutEnabled() {
			t.Errorf("output %d session not created disabled", i)
		}
	}
	if h.Output(3) != nil || h.Output(-1) != nil {
		t.Error("Output out of range returned an output")
	}
	if err := h.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestHeadlessScanout(t *testing.T) {
	dev := software.New()
	n := &recordingNotifier{}
	res := handles{}
	h, err := NewHeadless(dev, 2, n, scanout.WithResolver(res))
	if err != nil {
		t.Fatalf("NewHeadless: %v", err)
	}
	defer h.Close()

	guest := pattern(256, 256)
	res.upload(t, dev, 1, guest)
	out := h.Output(0)
	if err := out.Session().OnScanoutTexture(1, 0, 0, 256, 256); err != nil {
		t.Fatalf("OnScanoutTexture: %v", err)
	}
	for _, s := range h.Sessions() {
		if err := s.Refresh(); err != nil {
			t.Fatalf("Refresh: %v", err)
		}
	}

	if got := len(n.replaced[0]); got != 1 {
		t.Fatalf("surface replacements = %d, want 1", got)
	}
	if len(n.replaced[1]) != 0 {
		t.Error("disabled output replaced its surface")
	}
	want := []gfxUpdate{{0, 0, 0, 256, 256}}
	if len(n.updates) != 1 || n.updates[0] != want[0] {
		t.Errorf("updates = %v, want %v", n.updates, want)
	}
	surface := out.Surface()
	if surface != n.replaced[0][0] {
		t.Error("notified surface is not the output surface")
	}
	for _, pt := range []image.Point{{0, 0}, {3, 250}, {255, 255}} {
		if got := surface.RGBAAt(pt.X, pt.Y); got != guest.RGBAAt(pt.X, pt.Y) {
			t.Errorf("surface %v = %v, want %v", pt, got, guest.RGBAAt(pt.X, pt.Y))
		}
	}

	// Same size: the surface is kept.
	if err := out.Session().Refresh(); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if len(n.replaced[0]) != 1 || len(n.updates) != 2 {
		t.Errorf("replaced=%d updates=%d after second refresh", len(n.replaced[0]), len(n.updates))
	}

	// A new guest size brings a new surface.
	res.upload(t, dev, 2, pattern(128, 64))
	if err := out.Session().OnScanoutTexture(2, 0, 0, 100, 50); err != nil {
		t.Fatalf("OnScanoutTexture: %v", err)
	}
	if err := out.Session().Refresh(); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got := out.Surface().Bounds(); got != image.Rect(0, 0, 128, 64) {
		t.Errorf("surface bounds = %v, want 128x64", got)
	}
	if last := n.updates[len(n.updates)-1]; last != (gfxUpdate{0, 0, 0, 100, 50}) {
		t.Errorf("last update = %v, want scanout region", last)
	}
}

func TestHeadlessSurfaceFormatAssertion(t *testing.T) {
	dev := software.New()
	h, err := NewHeadless(dev, 1, nil)
	if err != nil {
		t.Fatalf("NewHeadless: %v", err)
	}
	out := h.Output(0)

	var fb framebuffer.Framebuffer
	if err := fb.SetupRenderTarget(dev, 16, 16); err != nil {
		t.Fatalf("SetupRenderTarget: %v", err)
	}
	out.SwitchSurface(image.NewRGBA(image.Rect(0, 0, 8, 8)))
	if err := out.Present(dev, &fb, image.Rect(0, 0, 16, 16)); !errors.Is(err, scanout.ErrSurfaceFormat) {
		t.Errorf("Present with mismatched surface error = %v", err)
	}

	if _, _, err := out.Prepare(dev, &framebuffer.Framebuffer{}, 16, 16); !errors.Is(err, framebuffer.ErrEmpty) {
		t.Errorf("Prepare with empty target error = %v", err)
	}
	if sx, sy, err := out.Prepare(dev, &fb, 16, 16); err != nil || sx != 1 || sy != 1 {
		t.Errorf("Prepare = %v, %v, %v", sx, sy, err)
	}
	if err := out.Present(dev, &fb, image.Rect(0, 0, 16, 16)); err != nil {
		t.Errorf("Present after Prepare: %v", err)
	}
	if !out.Offscreen() {
		t.Error("headless output is not offscreen")
	}
}
