package scanout

import (
	"github.com/gogpu/scanout/backend"
)

// Handle is an opaque guest scanout or cursor resource. Zero means none.
type Handle uint32

// Backing describes the texture behind a handle.
type Backing struct {
	Texture backend.TextureID
	Target  backend.Target
	// TopFirst reports whether row 0 of the texture is the top of the
	// image.
	TopFirst bool
	Width    int
	Height   int
}

// valid reports whether b names a usable texture.
func (b Backing) valid() bool {
	return b.Texture != 0 && b.Width > 0 && b.Height > 0
}

// Resolver turns guest handles into textures. It reports false when the
// handle cannot be resolved.
type Resolver interface {
	Resolve(h Handle) (Backing, bool)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(h Handle) (Backing, bool)

// Resolve calls f(h).
func (f ResolverFunc) Resolve(h Handle) (Backing, bool) { return f(h) }

// DMABuf is a guest buffer shared with the host as a DMA-buf.
type DMABuf struct {
	FD       int
	Width    int
	Height   int
	Stride   int
	Fourcc   uint32
	Modifier uint64
	// TopFirst reports whether the first row in memory is the top of the
	// image.
	TopFirst bool

	// Texture is the imported texture, 0 until an Importer has imported
	// the buffer.
	Texture backend.TextureID
}

// Importer imports DMA-bufs as textures on the session's device.
//
// Import sets buf.Texture on success. Release frees the texture and
// resets buf.Texture. Both are called with the rendering context current.
type Importer interface {
	Import(buf *DMABuf) error
	Release(buf *DMABuf)
}

// Hotspot is the point within a cursor image that tracks the pointer.
type Hotspot struct {
	X, Y int
}
