// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package framebuffer

import (
	"fmt"
	"image"

	"github.com/gogpu/scanout/backend"
)

// Render targets and the default framebuffer store the bottom row of the
// visible image first. A source whose row 0 is the top must be flipped on
// its way in, once.

// Blit copies all of src into all of dst, scaling to dst's size. With flip
// the rows are copied in reverse order.
func Blit(dev backend.Device, dst, src *Framebuffer, flip bool) error {
	if src.Texture == 0 || src.Width == 0 || src.Height == 0 {
		return ErrEmpty
	}
	y0, y1 := 0, src.Height
	if flip {
		y0, y1 = src.Height, 0
	}
	return dev.BlitFramebuffer(dst.FBO, src.FBO,
		backend.Rect{X0: 0, Y0: y0, X1: src.Width, Y1: y1},
		backend.Rect{X0: 0, Y0: 0, X1: dst.Width, Y1: dst.Height})
}

// TextureBlit draws src over the whole of dst through the program,
// replacing dst's contents. flip reverses the source rows. swap selects
// the destination row origin; a draw covering all of dst is the same
// either way.
func TextureBlit(prog backend.Program, dst, src *Framebuffer, flip, swap bool) error {
	if src.Texture == 0 {
		return ErrEmpty
	}
	return prog.Draw(backend.DrawParams{
		Target:       dst.FBO,
		Viewport:     backend.Viewport{X: 0, Y: 0, W: dst.Width, H: dst.Height},
		Source:       src.Texture,
		SourceTarget: src.Target,
		Flip:         flip,
	})
}

// TextureBlend composites src over dst with alpha blending. (x, y) is the
// position of src's top-left corner measured from dst's top-left corner,
// and src is scaled by (scaleX, scaleY). With swap, y is measured from
// dst's first memory row instead.
func TextureBlend(prog backend.Program, dst, src *Framebuffer, flip, swap bool, x, y int, scaleX, scaleY float64) error {
	if src.Texture == 0 {
		return ErrEmpty
	}
	return prog.Draw(backend.DrawParams{
		Target:       dst.FBO,
		Viewport:     BlendViewport(dst, src, swap, x, y, scaleX, scaleY),
		Source:       src.Texture,
		SourceTarget: src.Target,
		Flip:         flip,
		Blend:        true,
	})
}

// BlendViewport returns the destination area TextureBlend draws into.
func BlendViewport(dst, src *Framebuffer, swap bool, x, y int, scaleX, scaleY float64) backend.Viewport {
	w := int(scaleX * float64(src.Width))
	h := int(scaleY * float64(src.Height))
	if !swap {
		y = dst.Height - h - y
	}
	return backend.Viewport{X: x, Y: y, W: w, H: h}
}

// Read copies src into img, which must not be larger than src. img is
// filled top row first, so its rows are the reverse of src's memory order.
func Read(dev backend.Device, src *Framebuffer, img *image.RGBA) error {
	if src.Width == 0 || src.Height == 0 {
		return ErrEmpty
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w > src.Width || h > src.Height {
		return fmt.Errorf("framebuffer: read %dx%d from %dx%d: %w",
			w, h, src.Width, src.Height, backend.ErrInvalidSize)
	}
	buf := make([]byte, w*h*4)
	if err := dev.ReadPixels(src.FBO, w, h, buf); err != nil {
		return fmt.Errorf("framebuffer: read pixels: %w", err)
	}
	row := w * 4
	for y := 0; y < h; y++ {
		off := img.PixOffset(b.Min.X, b.Min.Y+y)
		s := (h - 1 - y) * row
		copy(img.Pix[off:off+row], buf[s:s+row])
	}
	return nil
}
