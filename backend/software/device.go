package software

import (
	"fmt"
	"image"
	"log/slog"

	"golang.org/x/image/draw"

	"github.com/gogpu/scanout/backend"
)

func init() {
	backend.Register(backend.BackendSoftware, func() backend.Device {
		return New()
	})
}

// Stats counts device operations. Live counts are current totals.
type Stats struct {
	Blits        int
	Draws        int
	Blends       int
	Readbacks    int
	Uploads      int
	Textures     int
	Framebuffers int
}

type framebuffer struct {
	tex    backend.TextureID
	target backend.Target
}

// Device is a CPU backend.Device.
type Device struct {
	filter   draw.Interpolator
	window   *Window
	textures map[backend.TextureID]*image.RGBA
	fbos     map[backend.FramebufferID]*framebuffer
	nextTex  backend.TextureID
	nextFB   backend.FramebufferID
	stats    Stats
}

var _ backend.Device = (*Device)(nil)

// Option configures a Device.
type Option func(*Device)

// WithFilter sets the interpolator used for scaled copies.
// The default is draw.NearestNeighbor.
func WithFilter(f draw.Interpolator) Option {
	return func(d *Device) {
		if f != nil {
			d.filter = f
		}
	}
}

// WithWindow attaches a window whose back buffer is framebuffer 0.
func WithWindow(w *Window) Option {
	return func(d *Device) {
		d.window = w
	}
}

// New creates a CPU device.
func New(opts ...Option) *Device {
	d := &Device{
		filter:   draw.NearestNeighbor,
		textures: make(map[backend.TextureID]*image.RGBA),
		fbos:     make(map[backend.FramebufferID]*framebuffer),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Name returns "software".
func (d *Device) Name() string { return backend.BackendSoftware }

// SetLogger sets the package logger.
func (d *Device) SetLogger(l *slog.Logger) { setLogger(l) }

// Window returns the attached window, or nil.
func (d *Device) Window() *Window { return d.window }

// Stats returns a snapshot of the operation counters.
func (d *Device) Stats() Stats {
	s := d.stats
	s.Textures = len(d.textures)
	s.Framebuffers = len(d.fbos)
	return s
}

// ResetStats zeroes the operation counters.
func (d *Device) ResetStats() { d.stats = Stats{} }

// Texture returns the backing image of a texture, or nil.
func (d *Device) Texture(tex backend.TextureID) *image.RGBA { return d.textures[tex] }

// CreateTexture allocates a transparent w×h texture.
func (d *Device) CreateTexture(w, h int) (backend.TextureID, error) {
	if w <= 0 || h <= 0 {
		return 0, fmt.Errorf("%w: %dx%d", backend.ErrInvalidSize, w, h)
	}
	d.nextTex++
	d.textures[d.nextTex] = image.NewRGBA(image.Rect(0, 0, w, h))
	slogger().Debug("software: texture created", "id", d.nextTex, "w", w, "h", h)
	return d.nextTex, nil
}

// UploadTexture replaces the contents of a texture.
func (d *Device) UploadTexture(tex backend.TextureID, w, h int, pix []byte) error {
	img, ok := d.textures[tex]
	if !ok {
		return fmt.Errorf("%w: %d", backend.ErrUnknownTexture, tex)
	}
	b := img.Bounds()
	if b.Dx() != w || b.Dy() != h || len(pix) < w*h*4 {
		return fmt.Errorf("%w: upload %dx%d (%d bytes) into %dx%d",
			backend.ErrInvalidSize, w, h, len(pix), b.Dx(), b.Dy())
	}
	copy(img.Pix, pix[:w*h*4])
	d.stats.Uploads++
	return nil
}

// DestroyTexture releases a texture.
func (d *Device) DestroyTexture(tex backend.TextureID) {
	delete(d.textures, tex)
}

// CreateFramebuffer allocates an empty framebuffer object.
func (d *Device) CreateFramebuffer() (backend.FramebufferID, error) {
	d.nextFB++
	d.fbos[d.nextFB] = &framebuffer{}
	return d.nextFB, nil
}

// AttachTexture binds tex as the color attachment of fb.
func (d *Device) AttachTexture(fb backend.FramebufferID, tex backend.TextureID, target backend.Target) error {
	f, ok := d.fbos[fb]
	if !ok {
		return fmt.Errorf("%w: %d", backend.ErrUnknownFramebuffer, fb)
	}
	if _, ok := d.textures[tex]; !ok {
		return fmt.Errorf("%w: %d", backend.ErrUnknownTexture, tex)
	}
	f.tex = tex
	f.target = target
	return nil
}

// DestroyFramebuffer releases a framebuffer object.
func (d *Device) DestroyFramebuffer(fb backend.FramebufferID) {
	delete(d.fbos, fb)
}

// BlitFramebuffer copies srcRect of src into dstRect of dst.
func (d *Device) BlitFramebuffer(dst, src backend.FramebufferID, srcRect, dstRect backend.Rect) error {
	dImg, err := d.image(dst)
	if err != nil {
		return err
	}
	sImg, err := d.image(src)
	if err != nil {
		return err
	}
	sr := srcRect.Canon().Intersect(sImg.Bounds())
	if sr.Empty() {
		return nil
	}
	var from image.Image = sImg.SubImage(sr)
	if srcRect.Flipped() != dstRect.Flipped() {
		from = flipRows(sImg, sr)
	}
	d.filter.Scale(dImg, dstRect.Canon(), from, from.Bounds(), draw.Src, nil)
	d.stats.Blits++
	return nil
}

// ReadPixels copies the first h rows of fb into dst.
func (d *Device) ReadPixels(fb backend.FramebufferID, w, h int, dst []byte) error {
	img, err := d.image(fb)
	if err != nil {
		return err
	}
	b := img.Bounds()
	if w <= 0 || h <= 0 || w > b.Dx() || h > b.Dy() || len(dst) < w*h*4 {
		return fmt.Errorf("%w: read %dx%d from %dx%d", backend.ErrInvalidSize, w, h, b.Dx(), b.Dy())
	}
	row := w * 4
	for y := 0; y < h; y++ {
		copy(dst[y*row:(y+1)*row], img.Pix[y*img.Stride:y*img.Stride+row])
	}
	d.stats.Readbacks++
	return nil
}

// NewProgram returns the textured quad program.
func (d *Device) NewProgram() (backend.Program, error) {
	return &program{dev: d}, nil
}

// Close releases all textures and framebuffers.
func (d *Device) Close() {
	clear(d.textures)
	clear(d.fbos)
}

// image resolves a framebuffer id to the image it renders into.
func (d *Device) image(fb backend.FramebufferID) (*image.RGBA, error) {
	if fb == backend.DefaultFramebuffer {
		if d.window == nil {
			return nil, backend.ErrNoDefaultFramebuffer
		}
		return d.window.backBuffer(), nil
	}
	f, ok := d.fbos[fb]
	if !ok {
		return nil, fmt.Errorf("%w: %d", backend.ErrUnknownFramebuffer, fb)
	}
	if f.tex == 0 {
		return nil, fmt.Errorf("%w: %d", backend.ErrIncomplete, fb)
	}
	img, ok := d.textures[f.tex]
	if !ok {
		return nil, fmt.Errorf("%w: %d attached to framebuffer %d", backend.ErrUnknownTexture, f.tex, fb)
	}
	return img, nil
}

// program draws textured quads with the device's filter.
type program struct {
	dev       *Device
	destroyed bool
}

func (p *program) Draw(dp backend.DrawParams) error {
	if p.destroyed {
		return fmt.Errorf("software: draw with destroyed program")
	}
	d := p.dev
	dImg, err := d.image(dp.Target)
	if err != nil {
		return err
	}
	sImg, ok := d.textures[dp.Source]
	if !ok {
		return fmt.Errorf("%w: %d", backend.ErrUnknownTexture, dp.Source)
	}
	if dp.Viewport.W <= 0 || dp.Viewport.H <= 0 {
		return nil
	}
	if dp.Flip {
		sImg = flipRows(sImg, sImg.Bounds())
	}
	if dp.Blend {
		// Texels carry straight alpha; let draw convert them.
		src := &image.NRGBA{Pix: sImg.Pix, Stride: sImg.Stride, Rect: sImg.Rect}
		d.filter.Scale(dImg, dp.Viewport.Rect(), src, src.Bounds(), draw.Over, nil)
		d.stats.Blends++
	} else {
		d.filter.Scale(dImg, dp.Viewport.Rect(), sImg, sImg.Bounds(), draw.Src, nil)
	}
	d.stats.Draws++
	return nil
}

func (p *program) Destroy() { p.destroyed = true }

// flipRows returns a copy of r within src with the row order reversed.
// The result's bounds start at the origin.
func flipRows(src *image.RGBA, r image.Rectangle) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	row := r.Dx() * 4
	for y := 0; y < r.Dy(); y++ {
		s := src.PixOffset(r.Min.X, r.Max.Y-1-y)
		copy(out.Pix[y*out.Stride:y*out.Stride+row], src.Pix[s:s+row])
	}
	return out
}
