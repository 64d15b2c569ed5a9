package backend

import (
	"fmt"
	"image"

	"github.com/gogpu/gpucontext"
)

// Image is a texture filled from host memory. It is used for plain
// (non-scanout) surfaces and by tests and tools that fabricate guest
// textures.
type Image struct {
	dev    Device
	id     TextureID
	width  int
	height int
}

var (
	_ gpucontext.Texture        = (*Image)(nil)
	_ gpucontext.TextureUpdater = (*Image)(nil)
)

// NewImage allocates a w×h texture on dev and uploads pix into it.
// A nil pix leaves the texture contents undefined.
func NewImage(dev Device, w, h int, pix []byte) (*Image, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, w, h)
	}
	id, err := dev.CreateTexture(w, h)
	if err != nil {
		return nil, err
	}
	img := &Image{dev: dev, id: id, width: w, height: h}
	if pix != nil {
		if err := img.UpdateData(pix); err != nil {
			dev.DestroyTexture(id)
			return nil, err
		}
	}
	return img, nil
}

// NewImageFromRGBA uploads an RGBA image. Row 0 of src becomes memory
// row 0 of the texture.
func NewImageFromRGBA(dev Device, src *image.RGBA) (*Image, error) {
	b := src.Bounds()
	return NewImage(dev, b.Dx(), b.Dy(), packRGBA(src))
}

// ID returns the texture id.
func (i *Image) ID() TextureID { return i.id }

// Width returns the texture width in pixels.
func (i *Image) Width() int { return i.width }

// Height returns the texture height in pixels.
func (i *Image) Height() int { return i.height }

// UpdateData replaces the whole texture contents.
func (i *Image) UpdateData(data []byte) error {
	if i.id == 0 {
		return ErrUnknownTexture
	}
	return i.dev.UploadTexture(i.id, i.width, i.height, data)
}

// UpdateRGBA replaces the texture contents from an image of the same size.
func (i *Image) UpdateRGBA(src *image.RGBA) error {
	b := src.Bounds()
	if b.Dx() != i.width || b.Dy() != i.height {
		return fmt.Errorf("%w: image %dx%d, texture %dx%d",
			ErrInvalidSize, b.Dx(), b.Dy(), i.width, i.height)
	}
	return i.UpdateData(packRGBA(src))
}

// Destroy releases the texture. Safe to call more than once.
func (i *Image) Destroy() {
	if i.id != 0 {
		i.dev.DestroyTexture(i.id)
		i.id = 0
	}
}

// Creator adapts a Device to gpucontext.TextureCreator.
type Creator struct {
	Device Device
}

var _ gpucontext.TextureCreator = Creator{}

// NewTextureFromRGBA implements gpucontext.TextureCreator.
func (c Creator) NewTextureFromRGBA(width, height int, data []byte) (gpucontext.Texture, error) {
	return NewImage(c.Device, width, height, data)
}

// packRGBA returns the pixels of src without row padding.
func packRGBA(src *image.RGBA) []byte {
	b := src.Bounds()
	row := b.Dx() * 4
	if src.Stride == row && b.Min == (image.Point{}) {
		return src.Pix[:row*b.Dy()]
	}
	out := make([]byte, row*b.Dy())
	for y := 0; y < b.Dy(); y++ {
		off := src.PixOffset(b.Min.X, b.Min.Y+y)
		copy(out[y*row:(y+1)*row], src.Pix[off:off+row])
	}
	return out
}
