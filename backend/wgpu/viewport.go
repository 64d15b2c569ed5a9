// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package wgpu

import (
	"image"

	"github.com/gogpu/scanout/backend"
)

// clipViewport returns the part of vp inside a w×h target. Viewports may
// extend past the target (a cursor near the edge); scissor rectangles may
// not.
func clipViewport(vp backend.Viewport, w, h int) image.Rectangle {
	r := vp.Rect().Intersect(image.Rect(0, 0, w, h))
	if r.Empty() {
		return image.Rectangle{}
	}
	return r
}
