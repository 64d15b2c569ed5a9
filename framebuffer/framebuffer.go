// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package framebuffer manages the framebuffer resources the scanout
// compositor renders with, and the blit and blend primitives between them.
//
// A Framebuffer bundles a texture, the kind of texture it is, the
// framebuffer object used to render into or read from it, and its size.
// It is either a render target, owning a texture it allocated, or a view
// over a texture owned by someone else, such as a guest scanout.
//
// All functions operate on the device of the current rendering context;
// the caller makes that context current first.
package framebuffer

import (
	"errors"
	"fmt"

	"github.com/gogpu/scanout/backend"
)

// ErrEmpty is returned when a framebuffer without a texture or size is
// used as a source.
var ErrEmpty = errors.New("framebuffer: empty")

// Framebuffer is a texture plus the framebuffer object bound to it.
//
// The zero value is an empty framebuffer. A framebuffer with no texture
// and a non-zero size describes the window's default framebuffer.
type Framebuffer struct {
	Width   int
	Height  int
	Texture backend.TextureID
	Target  backend.Target
	FBO     backend.FramebufferID

	owned bool
}

// Owned reports whether Destroy releases the texture.
func (fb *Framebuffer) Owned() bool { return fb.owned }

// Empty reports whether fb holds nothing at all.
func (fb *Framebuffer) Empty() bool {
	return fb.Texture == 0 && fb.FBO == 0 && fb.Width == 0 && fb.Height == 0
}

// SizeEquals reports whether fb is w×h.
func (fb *Framebuffer) SizeEquals(w, h int) bool {
	return fb.Width == w && fb.Height == h
}

// SetupDefault describes the window's default framebuffer at the given
// size. No GPU objects are created.
func (fb *Framebuffer) SetupDefault(w, h int) {
	fb.Width = w
	fb.Height = h
	fb.Texture = 0
	fb.Target = backend.Target2D
	fb.FBO = backend.DefaultFramebuffer
	fb.owned = false
}

// SetupRenderTarget allocates a new w×h texture and makes fb a render
// target owning it. A texture fb owned before is released; its
// framebuffer object is reused.
func (fb *Framebuffer) SetupRenderTarget(dev backend.Device, w, h int) error {
	tex, err := dev.CreateTexture(w, h)
	if err != nil {
		return fmt.Errorf("framebuffer: create %dx%d texture: %w", w, h, err)
	}
	if err := fb.SetupView(dev, w, h, tex, backend.Target2D, true); err != nil {
		dev.DestroyTexture(tex)
		return err
	}
	return nil
}

// SetupView binds fb to tex, a w×h texture of the given kind. When own is
// true fb releases tex on Destroy. The framebuffer object is created on
// first use and reused afterwards. A different texture fb owned before is
// released.
func (fb *Framebuffer) SetupView(dev backend.Device, w, h int, tex backend.TextureID, target backend.Target, own bool) error {
	if tex == 0 {
		return fmt.Errorf("framebuffer: view of texture 0: %w", backend.ErrUnknownTexture)
	}
	if fb.FBO == 0 {
		id, err := dev.CreateFramebuffer()
		if err != nil {
			return fmt.Errorf("framebuffer: create framebuffer object: %w", err)
		}
		fb.FBO = id
	}
	if err := dev.AttachTexture(fb.FBO, tex, target); err != nil {
		return fmt.Errorf("framebuffer: attach texture %d: %w", tex, err)
	}
	if fb.owned && fb.Texture != 0 && fb.Texture != tex {
		dev.DestroyTexture(fb.Texture)
	}
	fb.Width = w
	fb.Height = h
	fb.Texture = tex
	fb.Target = target
	fb.owned = own
	return nil
}

// Destroy releases the framebuffer object, and the texture if fb owns it,
// and resets fb to the zero value. Destroying an empty framebuffer does
// nothing.
func (fb *Framebuffer) Destroy(dev backend.Device) {
	if fb.FBO != 0 {
		dev.DestroyFramebuffer(fb.FBO)
	}
	if fb.owned && fb.Texture != 0 {
		dev.DestroyTexture(fb.Texture)
	}
	*fb = Framebuffer{}
}

// String describes fb for logs.
func (fb *Framebuffer) String() string {
	switch {
	case fb.Empty():
		return "framebuffer(empty)"
	case fb.Texture == 0:
		return fmt.Sprintf("framebuffer(default %dx%d)", fb.Width, fb.Height)
	default:
		return fmt.Sprintf("framebuffer(%dx%d tex=%d %s fbo=%d owned=%v)",
			fb.Width, fb.Height, fb.Texture, fb.Target, fb.FBO, fb.owned)
	}
}
