package backend

import (
	"errors"
	"image"
	"slices"
	"testing"
)

// fakeDevice records texture uploads and nothing else.
type fakeDevice struct {
	name     string
	next     TextureID
	uploads  map[TextureID][]byte
	released []TextureID
}

func newFakeDevice(name string) *fakeDevice {
	return &fakeDevice{name: name, uploads: make(map[TextureID][]byte)}
}

func (f *fakeDevice) Name() string { return f.name }

func (f *fakeDevice) CreateTexture(w, h int) (TextureID, error) {
	if w <= 0 || h <= 0 {
		return 0, ErrInvalidSize
	}
	f.next++
	return f.next, nil
}

func (f *fakeDevice) UploadTexture(tex TextureID, w, h int, pix []byte) error {
	if len(pix) < w*h*4 {
		return ErrInvalidSize
	}
	f.uploads[tex] = append([]byte(nil), pix...)
	return nil
}

func (f *fakeDevice) DestroyTexture(tex TextureID) { f.released = append(f.released, tex) }

func (f *fakeDevice) CreateFramebuffer() (FramebufferID, error) { return 1, nil }

func (f *fakeDevice) AttachTexture(FramebufferID, TextureID, Target) error { return nil }

func (f *fakeDevice) DestroyFramebuffer(FramebufferID) {}

func (f *fakeDevice) BlitFramebuffer(_, _ FramebufferID, _, _ Rect) error { return nil }

func (f *fakeDevice) ReadPixels(FramebufferID, int, int, []byte) error { return nil }

func (f *fakeDevice) NewProgram() (Program, error) { return nil, ErrBackendNotAvailable }

func (f *fakeDevice) Close() {}

func TestRegistry(t *testing.T) {
	t.Cleanup(func() {
		Unregister("fake-a")
		Unregister("fake-b")
		Unregister(BackendSoftware)
	})

	Register("fake-a", func() Device { return newFakeDevice("fake-a") })
	if !IsRegistered("fake-a") {
		t.Fatal("fake-a not registered")
	}
	if !slices.Contains(Available(), "fake-a") {
		t.Errorf("Available() = %v, missing fake-a", Available())
	}
	if d := Get("fake-a"); d == nil || d.Name() != "fake-a" {
		t.Errorf("Get(fake-a) = %v", d)
	}
	if d := Get("missing"); d != nil {
		t.Errorf("Get(missing) = %v, want nil", d)
	}

	// A prioritized backend wins over an unlisted one.
	Register(BackendSoftware, func() Device { return newFakeDevice(BackendSoftware) })
	if d := Default(); d == nil || d.Name() != BackendSoftware {
		t.Errorf("Default() = %v, want software", d)
	}

	// A factory that cannot create a device is skipped.
	Register(BackendSoftware, func() Device { return nil })
	if d := Default(); d == nil || d.Name() != "fake-a" {
		t.Errorf("Default() with failing software = %v, want fake-a", d)
	}

	if _, err := Open("missing"); !errors.Is(err, ErrBackendNotAvailable) {
		t.Errorf("Open(missing) error = %v, want ErrBackendNotAvailable", err)
	}
	if d, err := Open("fake-a"); err != nil || d.Name() != "fake-a" {
		t.Errorf("Open(fake-a) = %v, %v", d, err)
	}
}

func TestRect(t *testing.T) {
	r := Rect{X0: 0, Y0: 10, X1: 20, Y1: 0}
	if !r.Flipped() {
		t.Error("Flipped() = false for Y0 > Y1")
	}
	if r.Dy() != -10 || r.Dx() != 20 {
		t.Errorf("Dx, Dy = %d, %d", r.Dx(), r.Dy())
	}
	if got := r.Canon(); got != image.Rect(0, 0, 20, 10) {
		t.Errorf("Canon() = %v", got)
	}
	vp := Viewport{X: 1, Y: 2, W: 3, H: 4}
	if got := vp.Rect(); got != image.Rect(1, 2, 4, 6) {
		t.Errorf("Viewport.Rect() = %v", got)
	}
}

type countingContext struct {
	calls int
	err   error
}

func (c *countingContext) MakeCurrent() error {
	c.calls++
	return c.err
}

func TestWithCurrent(t *testing.T) {
	ctx := &countingContext{}
	ran := false
	if err := WithCurrent(ctx, func() error { ran = true; return nil }); err != nil {
		t.Fatalf("WithCurrent() error = %v", err)
	}
	if !ran || ctx.calls != 1 {
		t.Errorf("ran=%v calls=%d", ran, ctx.calls)
	}

	failing := &countingContext{err: errors.New("lost context")}
	ran = false
	err := WithCurrent(failing, func() error { ran = true; return nil })
	if !errors.Is(err, ErrMakeCurrent) || ran {
		t.Errorf("WithCurrent with failing context: err=%v ran=%v", err, ran)
	}

	if err := WithCurrent(nil, func() error { return nil }); err != nil {
		t.Errorf("WithCurrent(nil) error = %v", err)
	}
}

func TestImage(t *testing.T) {
	dev := newFakeDevice("fake")
	if _, err := NewImage(dev, 0, 4, nil); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("NewImage(0x4) error = %v", err)
	}

	src := image.NewRGBA(image.Rect(0, 0, 2, 2))
	src.Pix[0] = 7
	img, err := NewImageFromRGBA(dev, src)
	if err != nil {
		t.Fatalf("NewImageFromRGBA: %v", err)
	}
	if img.Width() != 2 || img.Height() != 2 {
		t.Errorf("size = %dx%d", img.Width(), img.Height())
	}
	if got := dev.uploads[img.ID()]; len(got) != 16 || got[0] != 7 {
		t.Errorf("upload = %v", got)
	}
	if err := img.UpdateRGBA(image.NewRGBA(image.Rect(0, 0, 3, 3))); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("UpdateRGBA mismatch error = %v", err)
	}

	id := img.ID()
	img.Destroy()
	img.Destroy()
	if len(dev.released) != 1 || dev.released[0] != id {
		t.Errorf("released = %v, want [%d]", dev.released, id)
	}
	if err := img.UpdateData(nil); !errors.Is(err, ErrUnknownTexture) {
		t.Errorf("UpdateData after Destroy error = %v", err)
	}

	tex, err := Creator{Device: dev}.NewTextureFromRGBA(1, 1, []byte{1, 2, 3, 4})
	if err != nil || tex.Width() != 1 {
		t.Errorf("Creator.NewTextureFromRGBA = %v, %v", tex, err)
	}
}

func TestPackRGBASubImage(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := range src.Pix {
		src.Pix[i] = byte(i)
	}
	sub := src.SubImage(image.Rect(1, 1, 3, 3)).(*image.RGBA)
	got := packRGBA(sub)
	if len(got) != 2*2*4 {
		t.Fatalf("len = %d", len(got))
	}
	if want := src.Pix[src.PixOffset(1, 2)]; got[8] != want {
		t.Errorf("second row first byte = %d, want %d", got[8], want)
	}
}
