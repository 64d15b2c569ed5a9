package scanout

import (
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/gogpu/scanout/backend"
	"github.com/gogpu/scanout/framebuffer"
)

// Session errors.
var (
	// ErrClosed is returned by operations on a closed session.
	ErrClosed = errors.New("scanout: session closed")

	// ErrSurfaceFormat is returned by presenters when the host surface
	// does not match the composed image. Sessions treat it as fatal.
	ErrSurfaceFormat = errors.New("scanout: surface format mismatch")

	// ErrNilDevice is returned by NewSession without a device.
	ErrNilDevice = errors.New("scanout: nil device")

	// ErrNilPresenter is returned by NewSession without a presenter.
	ErrNilPresenter = errors.New("scanout: nil presenter")
)

// Mode is the content mode of a session.
type Mode uint8

const (
	// Disabled shows the plain host surface, if any.
	Disabled Mode = iota

	// ScanoutActive composites the guest texture on every refresh.
	ScanoutActive
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case Disabled:
		return "Disabled"
	case ScanoutActive:
		return "ScanoutActive"
	default:
		return fmt.Sprintf("Mode(%d)", m)
	}
}

// Presenter is the host side of a session: where composed frames go.
type Presenter interface {
	// Offscreen reports whether composed frames are read back into host
	// memory. Offscreen sessions compose into a render target sized like
	// the guest.
	Offscreen() bool

	// Prepare sets up dst as the composition target for content of the
	// given size and returns the scale from content to target pixels.
	Prepare(dev backend.Device, dst *framebuffer.Framebuffer, contentW, contentH int) (scaleX, scaleY float64, err error)

	// Present hands the composed frame to the host. region is the guest
	// scanout rectangle that changed.
	Present(dev backend.Device, dst *framebuffer.Framebuffer, region image.Rectangle) error

	// PresentSurface shows the plain surface texture, whose rows are top
	// first, and returns the scale from surface to target pixels.
	PresentSurface(dev backend.Device, surface *framebuffer.Framebuffer) (scaleX, scaleY float64, err error)
}

// Session composes the scanout of one display output.
//
// A session holds three framebuffers: the guest scanout, an optional
// cursor overlay and the composition target. All methods must be called
// from one goroutine; display.Loop provides that. Every method that
// touches the device makes the session's context current first.
type Session struct {
	dev       backend.Device
	ctx       backend.Context
	presenter Presenter
	resolver  Resolver
	importer  Importer
	log       *slog.Logger
	fatal     func(error)

	prog backend.Program

	guest  framebuffer.Framebuffer
	cursor framebuffer.Framebuffer
	blit   framebuffer.Framebuffer

	mode           Mode
	y0Top          bool
	cursorTopFirst bool
	region         image.Rectangle
	cursorPos      image.Point
	hotspot        Hotspot
	hasHotspot     bool
	scaleX, scaleY float64

	surface        *image.RGBA
	surfaceTex     *backend.Image
	surfaceFB      framebuffer.Framebuffer
	surfaceDirty   bool
	surfaceUpdates int

	closed bool
}

// NewSession creates a disabled session composing on dev and presenting
// through p.
func NewSession(dev backend.Device, p Presenter, opts ...SessionOption) (*Session, error) {
	if dev == nil {
		return nil, ErrNilDevice
	}
	if p == nil {
		return nil, ErrNilPresenter
	}
	o := defaultSessionOptions()
	for _, opt := range opts {
		opt(&o)
	}
	log := o.logger
	if log == nil {
		log = Logger()
	}
	if _, silent := log.Handler().(nopHandler); !silent {
		propagateLogger(dev, log)
	}
	return &Session{
		dev:       dev,
		ctx:       o.ctx,
		presenter: p,
		resolver:  o.resolver,
		importer:  o.importer,
		log:       log.With("device", dev.Name()),
		fatal:     o.fatal,
		scaleX:    1,
		scaleY:    1,
	}, nil
}

// Device returns the device the session composes on.
func (s *Session) Device() backend.Device { return s.dev }

// Mode returns the current content mode.
func (s *Session) Mode() Mode { return s.mode }

// ScanoutEnabled reports whether the session is in ScanoutActive mode.
func (s *Session) ScanoutEnabled() bool { return s.mode == ScanoutActive }

// Guest returns the guest framebuffer. The result must not be modified.
func (s *Session) Guest() framebuffer.Framebuffer { return s.guest }

// Cursor returns the cursor framebuffer. The result must not be modified.
func (s *Session) Cursor() framebuffer.Framebuffer { return s.cursor }

// Blit returns the composition target. The result must not be modified.
func (s *Session) Blit() framebuffer.Framebuffer { return s.blit }

// TopFirst reports the row orientation of the guest scanout.
func (s *Session) TopFirst() bool { return s.y0Top }

// Region returns the guest scanout rectangle.
func (s *Session) Region() image.Rectangle { return s.region }

// CursorPosition returns the cursor position in guest pixels.
func (s *Session) CursorPosition() image.Point { return s.cursorPos }

// Hotspot returns the cursor hotspot and whether the guest supplied one.
func (s *Session) Hotspot() (Hotspot, bool) { return s.hotspot, s.hasHotspot }

// Scale returns the content to target scale of the last draw.
func (s *Session) Scale() (x, y float64) { return s.scaleX, s.scaleY }

// OnScanoutTexture binds the texture behind handle as the guest scanout,
// showing the w×h rectangle at (x, y). A zero w or h disables scanout.
// A handle that does not resolve leaves the session unchanged.
func (s *Session) OnScanoutTexture(h Handle, x, y, w, hgt int) error {
	return s.run(func() error {
		if w == 0 || hgt == 0 {
			s.disable()
			return nil
		}
		b, ok := s.resolve(h)
		if !ok {
			s.log.Debug("scanout: unresolved scanout handle", "handle", h)
			return nil
		}
		return s.bindGuest(b, image.Rect(x, y, x+w, y+hgt))
	})
}

// OnScanoutDMABuf binds an imported DMA-buf as the guest scanout. Without
// an Importer, or when the import fails, the session is unchanged.
func (s *Session) OnScanoutDMABuf(buf *DMABuf) error {
	return s.run(func() error {
		if !s.importDMABuf(buf) {
			return nil
		}
		b := Backing{
			Texture:  buf.Texture,
			Target:   backend.Target2D,
			TopFirst: buf.TopFirst,
			Width:    buf.Width,
			Height:   buf.Height,
		}
		return s.bindGuest(b, image.Rect(0, 0, buf.Width, buf.Height))
	})
}

// OnCursorTexture binds the texture behind handle as the cursor overlay.
// A zero handle removes the cursor. A handle that does not resolve leaves
// the session unchanged.
func (s *Session) OnCursorTexture(h Handle, hot *Hotspot) error {
	return s.run(func() error {
		if h == 0 {
			s.clearCursor()
			return nil
		}
		b, ok := s.resolve(h)
		if !ok {
			s.log.Debug("scanout: unresolved cursor handle", "handle", h)
			return nil
		}
		return s.bindCursor(b, hot)
	})
}

// OnCursorDMABuf binds an imported DMA-buf as the cursor overlay. A nil
// buf removes the cursor.
func (s *Session) OnCursorDMABuf(buf *DMABuf, hot *Hotspot) error {
	return s.run(func() error {
		if buf == nil {
			s.clearCursor()
			return nil
		}
		if !s.importDMABuf(buf) {
			return nil
		}
		return s.bindCursor(Backing{
			Texture:  buf.Texture,
			Target:   backend.Target2D,
			TopFirst: buf.TopFirst,
			Width:    buf.Width,
			Height:   buf.Height,
		}, hot)
	})
}

// ReleaseDMABuf releases an imported DMA-buf. A scanout or cursor still
// showing it is dropped first.
func (s *Session) ReleaseDMABuf(buf *DMABuf) error {
	return s.run(func() error {
		if buf == nil || buf.Texture == 0 {
			return nil
		}
		if s.guest.Texture == buf.Texture {
			s.disable()
		}
		if s.cursor.Texture == buf.Texture {
			s.clearCursor()
		}
		if s.importer != nil {
			s.importer.Release(buf)
		}
		return nil
	})
}

// OnCursorPosition moves the cursor to (x, y) in guest pixels.
func (s *Session) OnCursorPosition(x, y int) error {
	if s.closed {
		return ErrClosed
	}
	s.cursorPos = image.Pt(x, y)
	return nil
}

// ScanoutDisable leaves scanout mode, releasing the guest scanout and the
// composition target.
func (s *Session) ScanoutDisable() error {
	return s.run(func() error {
		s.disable()
		return s.surfaceErr(s.recreateSurfaceTexture())
	})
}

// SwitchSurface replaces the plain host surface. Its rows are top first.
// A nil img detaches the surface.
func (s *Session) SwitchSurface(img *image.RGBA) error {
	return s.run(func() error {
		resized := s.surface == nil || img == nil ||
			s.surface.Bounds().Size() != img.Bounds().Size()
		s.surface = img
		if resized {
			s.releaseSurfaceTexture()
		}
		s.surfaceDirty = true
		return nil
	})
}

// Surface returns the plain host surface.
func (s *Session) Surface() *image.RGBA { return s.surface }

// UpdateSurface marks r of the plain host surface as changed. On
// windowed presenters this also leaves scanout mode at the next refresh.
func (s *Session) UpdateSurface(r image.Rectangle) error {
	if s.closed {
		return ErrClosed
	}
	if s.surface == nil || r.Intersect(s.surface.Bounds()).Empty() {
		return nil
	}
	s.surfaceDirty = true
	s.surfaceUpdates++
	return nil
}

// Refresh runs one compose and present cycle.
func (s *Session) Refresh() error {
	return s.run(func() error {
		if s.surfaceUpdates > 0 {
			s.surfaceUpdates = 0
			if s.mode == ScanoutActive && !s.presenter.Offscreen() {
				s.disable()
			}
		}
		if s.mode == ScanoutActive {
			return s.compose()
		}
		return s.drawSurface()
	})
}

// Close releases every resource of the session. Calling Close again does
// nothing.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	err := backend.WithCurrent(s.ctx, func() error {
		s.guest.Destroy(s.dev)
		s.cursor.Destroy(s.dev)
		s.blit.Destroy(s.dev)
		s.releaseSurfaceTexture()
		if s.prog != nil {
			s.prog.Destroy()
			s.prog = nil
		}
		return nil
	})
	s.mode = Disabled
	s.closed = true
	return err
}

// run makes the context current and calls fn.
func (s *Session) run(fn func() error) error {
	if s.closed {
		return ErrClosed
	}
	err := backend.WithCurrent(s.ctx, fn)
	if err != nil && errors.Is(err, backend.ErrMakeCurrent) {
		return s.fail(err)
	}
	return err
}

// fail reports an unrecoverable error to the fatal handler.
func (s *Session) fail(err error) error {
	s.log.Error("scanout: fatal", "err", err)
	s.fatal(err)
	return err
}

func (s *Session) resolve(h Handle) (Backing, bool) {
	if h == 0 || s.resolver == nil {
		return Backing{}, false
	}
	b, ok := s.resolver.Resolve(h)
	if !ok || !b.valid() {
		return Backing{}, false
	}
	return b, true
}

// importDMABuf imports buf unless it already has a texture.
func (s *Session) importDMABuf(buf *DMABuf) bool {
	if buf == nil {
		return false
	}
	if buf.Texture != 0 {
		return true
	}
	if s.importer == nil {
		s.log.Debug("scanout: dmabuf without importer", "fd", buf.FD)
		return false
	}
	if err := s.importer.Import(buf); err != nil {
		s.log.Debug("scanout: dmabuf import failed", "fd", buf.FD, "err", err)
		return false
	}
	return buf.Texture != 0
}

func (s *Session) bindGuest(b Backing, region image.Rectangle) error {
	if err := s.guest.SetupView(s.dev, b.Width, b.Height, b.Texture, b.Target, false); err != nil {
		return s.fail(err)
	}
	if s.mode == Disabled {
		s.releaseSurfaceTexture()
		s.mode = ScanoutActive
		s.log.Info("scanout: enabled", "width", b.Width, "height", b.Height)
	}
	s.y0Top = b.TopFirst
	s.region = region
	if s.presenter.Offscreen() && !s.blit.SizeEquals(b.Width, b.Height) {
		s.blit.Destroy(s.dev)
		if err := s.blit.SetupRenderTarget(s.dev, b.Width, b.Height); err != nil {
			return s.fail(err)
		}
	}
	s.log.Debug("scanout: guest bound", "fb", s.guest.String(), "region", region)
	return nil
}

func (s *Session) bindCursor(b Backing, hot *Hotspot) error {
	if err := s.cursor.SetupView(s.dev, b.Width, b.Height, b.Texture, b.Target, false); err != nil {
		return s.fail(err)
	}
	s.cursorTopFirst = b.TopFirst
	s.hotspot, s.hasHotspot = Hotspot{}, hot != nil
	if hot != nil {
		s.hotspot = *hot
	}
	return nil
}

func (s *Session) clearCursor() {
	s.cursor.Destroy(s.dev)
	s.cursorTopFirst = false
	s.hotspot, s.hasHotspot = Hotspot{}, false
}

// disable leaves scanout mode. The surface texture is recreated lazily.
func (s *Session) disable() {
	if s.mode == Disabled && s.guest.Empty() && s.blit.Empty() {
		return
	}
	s.guest.Destroy(s.dev)
	s.blit.Destroy(s.dev)
	s.region = image.Rectangle{}
	s.y0Top = false
	if s.mode == ScanoutActive {
		s.log.Info("scanout: disabled")
	}
	s.mode = Disabled
	s.surfaceDirty = true
}

// program returns the blit and blend program, creating it on first use.
func (s *Session) program() (backend.Program, error) {
	if s.prog != nil {
		return s.prog, nil
	}
	prog, err := s.dev.NewProgram()
	if err != nil {
		return nil, fmt.Errorf("scanout: create program: %w", err)
	}
	s.prog = prog
	return prog, nil
}

// compose draws the guest, and the cursor over it, into the composition
// target and presents the result.
func (s *Session) compose() error {
	if s.guest.Texture == 0 {
		return nil
	}
	sx, sy, err := s.presenter.Prepare(s.dev, &s.blit, s.region.Dx(), s.region.Dy())
	if err != nil {
		return s.fail(fmt.Errorf("scanout: prepare target: %w", err))
	}
	s.scaleX, s.scaleY = sx, sy

	if s.cursor.Texture != 0 {
		prog, err := s.program()
		if err != nil {
			return s.fail(err)
		}
		if err := framebuffer.TextureBlit(prog, &s.blit, &s.guest, s.y0Top, false); err != nil {
			return fmt.Errorf("scanout: draw guest: %w", err)
		}
		x := int(float64(s.cursorPos.X) * sx)
		y := int(float64(s.cursorPos.Y) * sy)
		if err := framebuffer.TextureBlend(prog, &s.blit, &s.cursor, s.cursorTopFirst, false, x, y, sx, sy); err != nil {
			return fmt.Errorf("scanout: blend cursor: %w", err)
		}
	} else if err := framebuffer.Blit(s.dev, &s.blit, &s.guest, s.y0Top); err != nil {
		return fmt.Errorf("scanout: blit guest: %w", err)
	}

	if err := s.presenter.Present(s.dev, &s.blit, s.region); err != nil {
		if errors.Is(err, ErrSurfaceFormat) {
			return s.fail(err)
		}
		return fmt.Errorf("scanout: present: %w", err)
	}
	return nil
}

// drawSurface presents the plain host surface.
func (s *Session) drawSurface() error {
	if s.surface == nil {
		return nil
	}
	if err := s.surfaceErr(s.syncSurfaceTexture()); err != nil {
		return err
	}
	sx, sy, err := s.presenter.PresentSurface(s.dev, &s.surfaceFB)
	if err != nil {
		return fmt.Errorf("scanout: present surface: %w", err)
	}
	s.scaleX, s.scaleY = sx, sy
	return nil
}

// syncSurfaceTexture creates the surface texture, or uploads pending
// surface changes into it.
func (s *Session) syncSurfaceTexture() error {
	if s.surfaceTex == nil {
		img, err := backend.NewImageFromRGBA(s.dev, s.surface)
		if err != nil {
			return fmt.Errorf("scanout: create surface texture: %w", err)
		}
		err = s.surfaceFB.SetupView(s.dev, img.Width(), img.Height(), img.ID(), backend.Target2D, false)
		if err != nil {
			img.Destroy()
			return err
		}
		s.surfaceTex = img
		s.surfaceDirty = false
		return nil
	}
	if !s.surfaceDirty {
		return nil
	}
	if err := s.surfaceTex.UpdateRGBA(s.surface); err != nil {
		return fmt.Errorf("scanout: update surface texture: %w", err)
	}
	s.surfaceDirty = false
	return nil
}

// recreateSurfaceTexture replaces the surface texture with a fresh upload
// of the surface.
func (s *Session) recreateSurfaceTexture() error {
	s.releaseSurfaceTexture()
	if s.surface == nil {
		return nil
	}
	return s.syncSurfaceTexture()
}

func (s *Session) releaseSurfaceTexture() {
	s.surfaceFB.Destroy(s.dev)
	if s.surfaceTex != nil {
		s.surfaceTex.Destroy()
		s.surfaceTex = nil
	}
}

// surfaceErr routes surface texture allocation failures to the fatal
// handler.
func (s *Session) surfaceErr(err error) error {
	if err != nil {
		return s.fail(err)
	}
	return nil
}
