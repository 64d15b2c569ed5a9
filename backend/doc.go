// Package backend defines the GPU device abstraction used by the scanout
// compositor.
//
// A [Device] owns textures and framebuffer objects addressed by small
// integer ids, in the manner of a GL-style driver: id 0 means "none" for
// textures and "the window's default framebuffer" for framebuffers. All
// images are stored in memory row order; render targets and the default
// framebuffer treat row 0 as the bottom of the visible image.
//
// # Backend Registration
//
// Device implementations register themselves from init() functions and are
// selected at runtime:
//
//	import _ "github.com/gogpu/scanout/backend/software"
//
//	dev := backend.Default()
//	// or
//	dev := backend.Get(backend.BackendSoftware)
//
// # Current Context
//
// Every Device call must run with the owning rendering context current.
// [WithCurrent] makes a [Context] current for the duration of a function:
//
//	err := backend.WithCurrent(ctx, func() error {
//	    return dev.BlitFramebuffer(dst, src, srcRect, dstRect)
//	})
package backend
