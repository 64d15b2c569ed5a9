package backend

import (
	"errors"
	"fmt"
	"image"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not available.
	ErrBackendNotAvailable = errors.New("backend: not available")

	// ErrUnknownTexture is returned for a texture id the device does not know.
	ErrUnknownTexture = errors.New("backend: unknown texture")

	// ErrUnknownFramebuffer is returned for a framebuffer id the device does not know.
	ErrUnknownFramebuffer = errors.New("backend: unknown framebuffer")

	// ErrIncomplete is returned when drawing to or reading from a
	// framebuffer object with no texture attached.
	ErrIncomplete = errors.New("backend: framebuffer incomplete")

	// ErrNoDefaultFramebuffer is returned by devices without a window.
	ErrNoDefaultFramebuffer = errors.New("backend: no default framebuffer")

	// ErrInvalidSize is returned for non-positive dimensions or short buffers.
	ErrInvalidSize = errors.New("backend: invalid size")

	// ErrMakeCurrent wraps failures to make a rendering context current.
	ErrMakeCurrent = errors.New("backend: make current")
)

// TextureID names a texture owned or imported by a Device. Zero means none.
type TextureID uint32

// FramebufferID names a framebuffer object. Zero is the default framebuffer.
type FramebufferID uint32

// DefaultFramebuffer is the window's framebuffer.
const DefaultFramebuffer FramebufferID = 0

// Target is the kind of texture bound to a framebuffer.
type Target uint8

const (
	// Target2D is a regular 2D texture.
	Target2D Target = iota
	// TargetExternal is an externally supplied image, such as an imported
	// DMA buffer.
	TargetExternal
)

// String returns the target name.
func (t Target) String() string {
	switch t {
	case Target2D:
		return "2d"
	case TargetExternal:
		return "external"
	default:
		return fmt.Sprintf("Target(%d)", t)
	}
}

// Rect is a blit rectangle in framebuffer coordinates. Coordinates are
// edges, not pixels: (0,0)-(w,h) covers a w×h image. A rectangle with
// Y0 > Y1 addresses its rows in reverse order.
type Rect struct {
	X0, Y0, X1, Y1 int
}

// Dx returns the signed width.
func (r Rect) Dx() int { return r.X1 - r.X0 }

// Dy returns the signed height.
func (r Rect) Dy() int { return r.Y1 - r.Y0 }

// Flipped reports whether the rows are addressed in reverse order.
func (r Rect) Flipped() bool { return r.Y0 > r.Y1 }

// Canon returns the rectangle with non-negative extents.
func (r Rect) Canon() image.Rectangle {
	return image.Rect(r.X0, r.Y0, r.X1, r.Y1)
}

// Viewport is the destination area of a program draw, in memory rows.
type Viewport struct {
	X, Y, W, H int
}

// Rect returns the viewport as an image rectangle.
func (v Viewport) Rect() image.Rectangle {
	return image.Rect(v.X, v.Y, v.X+v.W, v.Y+v.H)
}

// DrawParams describes one textured quad drawn by a Program.
type DrawParams struct {
	// Target is the framebuffer drawn into.
	Target FramebufferID
	// Viewport is the area of Target covered by the quad.
	Viewport Viewport
	// Source is the sampled texture.
	Source TextureID
	// SourceTarget is the kind of Source.
	SourceTarget Target
	// Flip samples Source with its rows reversed.
	Flip bool
	// Blend composites Source over Target using the source alpha.
	// When false, Source replaces the covered pixels.
	Blend bool
}

// Device is a GPU (or GPU-like) driver the compositor renders with.
//
// Pixel data passed to and from a Device is 8-bit RGBA, tightly packed,
// in memory row order.
type Device interface {
	// Name returns the backend identifier (e.g., "software", "wgpu").
	Name() string

	// CreateTexture allocates an uninitialized w×h RGBA texture.
	CreateTexture(w, h int) (TextureID, error)

	// UploadTexture replaces the contents of a texture.
	UploadTexture(tex TextureID, w, h int, pix []byte) error

	// DestroyTexture releases a texture. Unknown ids are ignored.
	DestroyTexture(tex TextureID)

	// CreateFramebuffer allocates a framebuffer object with nothing attached.
	CreateFramebuffer() (FramebufferID, error)

	// AttachTexture makes tex the color attachment of fb.
	AttachTexture(fb FramebufferID, tex TextureID, target Target) error

	// DestroyFramebuffer releases a framebuffer object. The attached
	// texture is not affected. Unknown ids are ignored.
	DestroyFramebuffer(fb FramebufferID)

	// BlitFramebuffer copies srcRect of src into dstRect of dst, scaling
	// and flipping as the rectangles imply.
	BlitFramebuffer(dst, src FramebufferID, srcRect, dstRect Rect) error

	// ReadPixels reads the first h rows of fb, w pixels wide, into dst.
	ReadPixels(fb FramebufferID, w, h int, dst []byte) error

	// NewProgram creates the textured quad program used for blit and
	// blend draws.
	NewProgram() (Program, error)

	// Close releases the device.
	Close()
}

// Program draws a texture into a viewport of a framebuffer.
type Program interface {
	Draw(p DrawParams) error
	Destroy()
}

// Context is a rendering context that can be made current on the calling
// thread.
type Context interface {
	MakeCurrent() error
}

// WithCurrent makes ctx current and runs fn. A nil ctx runs fn directly.
func WithCurrent(ctx Context, fn func() error) error {
	if ctx != nil {
		if err := ctx.MakeCurrent(); err != nil {
			return fmt.Errorf("%w: %w", ErrMakeCurrent, err)
		}
	}
	return fn()
}
