// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package wgpu

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/scanout/backend"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

func init() {
	backend.Register(backend.BackendWGPU, func() backend.Device {
		d, err := New()
		if err != nil {
			slogger().Warn("wgpu: device unavailable", "err", err)
			return nil
		}
		return d
	})
}

// textureFormat is the format of every texture the device creates.
const textureFormat = gputypes.TextureFormatRGBA8Unorm

// copyRowAlignment is the required bytesPerRow alignment for
// texture-to-buffer copies.
const copyRowAlignment = 256

var (
	// ErrNoAdapter is returned when the HAL backend exposes no adapters.
	ErrNoAdapter = errors.New("wgpu: no GPU adapters found")

	// ErrUnsupported is returned for blits the device cannot express.
	ErrUnsupported = errors.New("wgpu: unsupported operation")
)

type texture struct {
	tex    hal.Texture
	view   hal.TextureView
	width  int
	height int
	owned  bool
}

type framebuffer struct {
	tex    backend.TextureID
	target backend.Target
}

// Device is a backend.Device backed by a HAL device and queue.
type Device struct {
	instance   hal.Instance
	device     hal.Device
	queue      hal.Queue
	external   bool
	useSPIRV   bool
	adapter    string
	textures   map[backend.TextureID]*texture
	fbos       map[backend.FramebufferID]*framebuffer
	nextTex    backend.TextureID
	nextFB     backend.FramebufferID
	scaleBlits *program
}

var _ backend.Device = (*Device)(nil)

type config struct {
	variant  gputypes.Backend
	useSPIRV bool
}

// Option configures New.
type Option func(*config)

// WithBackend selects the HAL backend. The default is Vulkan.
func WithBackend(variant gputypes.Backend) Option {
	return func(c *config) { c.variant = variant }
}

// WithSPIRV makes the device hand SPIR-V compiled by naga to the HAL
// instead of WGSL source.
func WithSPIRV() Option {
	return func(c *config) { c.useSPIRV = true }
}

// New opens the first suitable adapter of the selected HAL backend.
// Discrete and integrated GPUs are preferred.
func New(opts ...Option) (*Device, error) {
	cfg := config{variant: gputypes.BackendVulkan}
	for _, opt := range opts {
		opt(&cfg)
	}
	be, ok := hal.GetBackend(cfg.variant)
	if !ok {
		return nil, fmt.Errorf("%w: %v backend", backend.ErrBackendNotAvailable, cfg.variant)
	}
	instance, err := be.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoAdapter
	}
	selected := &adapters[0]
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	open, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("wgpu: open device: %w", err)
	}
	d := newDevice(open.Device, open.Queue)
	d.instance = instance
	d.useSPIRV = cfg.useSPIRV
	d.adapter = selected.Info.Name
	slogger().Info("wgpu: device opened", "adapter", selected.Info.Name, "backend", cfg.variant)
	return d, nil
}

// NewFromHAL wraps a device and queue owned by the caller. Close does not
// destroy them.
func NewFromHAL(device hal.Device, queue hal.Queue) *Device {
	d := newDevice(device, queue)
	d.external = true
	return d
}

// NewFromProvider shares the GPU device of a windowing host. The provider
// must implement HalDevice() any and HalQueue() any returning hal.Device
// and hal.Queue.
func NewFromProvider(provider any) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, fmt.Errorf("wgpu: provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("wgpu: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("wgpu: provider HalQueue is not hal.Queue")
	}
	return NewFromHAL(device, queue), nil
}

func newDevice(device hal.Device, queue hal.Queue) *Device {
	return &Device{
		device:   device,
		queue:    queue,
		textures: make(map[backend.TextureID]*texture),
		fbos:     make(map[backend.FramebufferID]*framebuffer),
	}
}

// Name returns "wgpu".
func (d *Device) Name() string { return backend.BackendWGPU }

// Adapter returns the adapter name, empty for shared devices.
func (d *Device) Adapter() string { return d.adapter }

// SetLogger sets the package logger.
func (d *Device) SetLogger(l *slog.Logger) { setLogger(l) }

// HAL returns the underlying device and queue.
func (d *Device) HAL() (hal.Device, hal.Queue) { return d.device, d.queue }

// CreateTexture allocates a w×h RGBA8 texture usable as a copy source,
// copy destination, sampled texture and render attachment.
func (d *Device) CreateTexture(w, h int) (backend.TextureID, error) {
	if w <= 0 || h <= 0 {
		return 0, fmt.Errorf("%w: %dx%d", backend.ErrInvalidSize, w, h)
	}
	tex, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "scanout_texture",
		Size:          hal.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        textureFormat,
		Usage: gputypes.TextureUsageCopySrc | gputypes.TextureUsageCopyDst |
			gputypes.TextureUsageTextureBinding | gputypes.TextureUsageRenderAttachment,
	})
	if err != nil {
		return 0, fmt.Errorf("wgpu: create texture %dx%d: %w", w, h, err)
	}
	id, err := d.register(tex, w, h, true)
	if err != nil {
		d.device.DestroyTexture(tex)
		return 0, err
	}
	return id, nil
}

// ImportTexture registers a texture created elsewhere, such as an imported
// DMA buffer. The device creates a view for it but never destroys it.
func (d *Device) ImportTexture(tex hal.Texture, w, h int) (backend.TextureID, error) {
	if tex == nil {
		return 0, fmt.Errorf("%w: nil texture", backend.ErrUnknownTexture)
	}
	return d.register(tex, w, h, false)
}

func (d *Device) register(tex hal.Texture, w, h int, owned bool) (backend.TextureID, error) {
	view, err := d.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:           "scanout_texture_view",
		Format:          textureFormat,
		Dimension:       gputypes.TextureViewDimension2D,
		Aspect:          gputypes.TextureAspectAll,
		MipLevelCount:   1,
		ArrayLayerCount: 1,
	})
	if err != nil {
		return 0, fmt.Errorf("wgpu: create texture view: %w", err)
	}
	d.nextTex++
	d.textures[d.nextTex] = &texture{tex: tex, view: view, width: w, height: h, owned: owned}
	return d.nextTex, nil
}

// UploadTexture writes pix into a texture through the queue.
func (d *Device) UploadTexture(id backend.TextureID, w, h int, pix []byte) error {
	t, ok := d.textures[id]
	if !ok {
		return fmt.Errorf("%w: %d", backend.ErrUnknownTexture, id)
	}
	if t.width != w || t.height != h || len(pix) < w*h*4 {
		return fmt.Errorf("%w: upload %dx%d (%d bytes) into %dx%d",
			backend.ErrInvalidSize, w, h, len(pix), t.width, t.height)
	}
	return d.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: t.tex, Aspect: gputypes.TextureAspectAll},
		pix[:w*h*4],
		&hal.ImageDataLayout{BytesPerRow: uint32(w * 4), RowsPerImage: uint32(h)},
		&hal.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
	)
}

// DestroyTexture releases the view, and the texture if the device owns it.
func (d *Device) DestroyTexture(id backend.TextureID) {
	t, ok := d.textures[id]
	if !ok {
		return
	}
	delete(d.textures, id)
	d.device.DestroyTextureView(t.view)
	if t.owned {
		d.device.DestroyTexture(t.tex)
	}
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

// attachment resolves a framebuffer to its color attachment.
func (d *Device) attachment(fb backend.FramebufferID) (backend.TextureID, *texture, error) {
	if fb == backend.DefaultFramebuffer {
		return 0, nil, backend.ErrNoDefaultFramebuffer
	}
	f, ok := d.fbos[fb]
	if !ok {
		return 0, nil, fmt.Errorf("%w: %d", backend.ErrUnknownFramebuffer, fb)
	}
	if f.tex == 0 {
		return 0, nil, fmt.Errorf("%w: %d", backend.ErrIncomplete, fb)
	}
	t, ok := d.textures[f.tex]
	if !ok {
		return 0, nil, fmt.Errorf("%w: %d attached to framebuffer %d", backend.ErrUnknownTexture, f.tex, fb)
	}
	return f.tex, t, nil
}

// BlitFramebuffer copies srcRect of src into dstRect of dst. Copies of
// equal size go through the copy engine; scaled copies are drawn and
// must read the whole source.
func (d *Device) BlitFramebuffer(dst, src backend.FramebufferID, srcRect, dstRect backend.Rect) error {
	_, dt, err := d.attachment(dst)
	if err != nil {
		return err
	}
	srcTex, st, err := d.attachment(src)
	if err != nil {
		return err
	}
	sr, dr := srcRect.Canon(), dstRect.Canon()
	if sr.Empty() || dr.Empty() {
		return nil
	}
	flip := srcRect.Flipped() != dstRect.Flipped()
	srcBounds := image.Rect(0, 0, st.width, st.height)
	dstBounds := image.Rect(0, 0, dt.width, dt.height)
	if sr.Size() == dr.Size() && sr.In(srcBounds) && dr.In(dstBounds) {
		regions := copyRegions(sr, dr, flip)
		return d.submit("scanout_blit", func(enc hal.CommandEncoder) {
			enc.CopyTextureToTexture(st.tex, dt.tex, regions)
		})
	}
	if sr != srcBounds {
		return fmt.Errorf("%w: scaled blit from partial source %v of %v", ErrUnsupported, sr, srcBounds)
	}
	if d.scaleBlits == nil {
		p, err := d.newProgram()
		if err != nil {
			return err
		}
		d.scaleBlits = p
	}
	return d.scaleBlits.Draw(backend.DrawParams{
		Target:   dst,
		Viewport: backend.Viewport{X: dr.Min.X, Y: dr.Min.Y, W: dr.Dx(), H: dr.Dy()},
		Source:   srcTex,
		Flip:     flip,
	})
}

// copyRegions returns the copy regions for an unscaled blit. A flipped
// blit copies one row per region.
func copyRegions(sr, dr image.Rectangle, flip bool) []hal.TextureCopy {
	region := func(sy, dy, rows int) hal.TextureCopy {
		return hal.TextureCopy{
			SrcBase: hal.ImageCopyTexture{
				Origin: hal.Origin3D{X: uint32(sr.Min.X), Y: uint32(sy)},
				Aspect: gputypes.TextureAspectAll,
			},
			DstBase: hal.ImageCopyTexture{
				Origin: hal.Origin3D{X: uint32(dr.Min.X), Y: uint32(dy)},
				Aspect: gputypes.TextureAspectAll,
			},
			Size: hal.Extent3D{Width: uint32(sr.Dx()), Height: uint32(rows), DepthOrArrayLayers: 1},
		}
	}
	if !flip {
		return []hal.TextureCopy{region(sr.Min.Y, dr.Min.Y, sr.Dy())}
	}
	regions := make([]hal.TextureCopy, sr.Dy())
	for i := range regions {
		regions[i] = region(sr.Max.Y-1-i, dr.Min.Y+i, 1)
	}
	return regions
}

// ReadPixels copies the first h rows of fb into dst through a staging
// buffer.
func (d *Device) ReadPixels(fb backend.FramebufferID, w, h int, dst []byte) error {
	_, t, err := d.attachment(fb)
	if err != nil {
		return err
	}
	if w <= 0 || h <= 0 || w > t.width || h > t.height || len(dst) < w*h*4 {
		return fmt.Errorf("%w: read %dx%d from %dx%d", backend.ErrInvalidSize, w, h, t.width, t.height)
	}
	row := w * 4
	stride := (row + copyRowAlignment - 1) / copyRowAlignment * copyRowAlignment
	size := uint64(stride * h)
	buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "scanout_readback",
		Size:  size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("wgpu: create readback buffer: %w", err)
	}
	defer d.device.DestroyBuffer(buf)

	err = d.submit("scanout_readback", func(enc hal.CommandEncoder) {
		enc.CopyTextureToBuffer(t.tex, buf, []hal.BufferTextureCopy{{
			BufferLayout: hal.ImageDataLayout{BytesPerRow: uint32(stride), RowsPerImage: uint32(h)},
			TextureBase:  hal.ImageCopyTexture{Texture: t.tex, Aspect: gputypes.TextureAspectAll},
			Size:         hal.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
		}})
	})
	if err != nil {
		return err
	}
	mapping, err := d.device.MapBuffer(buf, 0, size)
	if err != nil {
		return fmt.Errorf("wgpu: map readback buffer: %w", err)
	}
	staged := unsafe.Slice((*byte)(mapping.Ptr), size)
	for y := 0; y < h; y++ {
		copy(dst[y*row:(y+1)*row], staged[y*stride:y*stride+row])
	}
	if err := d.device.UnmapBuffer(buf); err != nil {
		return fmt.Errorf("wgpu: unmap readback buffer: %w", err)
	}
	return nil
}

// NewProgram creates the blit/blend render pipelines.
func (d *Device) NewProgram() (backend.Program, error) {
	return d.newProgram()
}

// submit records commands into a new encoder, submits them and waits for
// the queue to drain.
func (d *Device) submit(label string, record func(enc hal.CommandEncoder)) error {
	enc, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return fmt.Errorf("wgpu: create command encoder: %w", err)
	}
	if err := enc.BeginEncoding(label); err != nil {
		return fmt.Errorf("wgpu: begin encoding: %w", err)
	}
	record(enc)
	cmd, err := enc.EndEncoding()
	if err != nil {
		return fmt.Errorf("wgpu: end encoding: %w", err)
	}
	defer d.device.FreeCommandBuffer(cmd)
	if _, err := d.queue.Submit([]hal.CommandBuffer{cmd}); err != nil {
		return fmt.Errorf("wgpu: submit %s: %w", label, err)
	}
	if err := d.device.WaitIdle(); err != nil {
		return fmt.Errorf("wgpu: wait idle: %w", err)
	}
	return nil
}

// Close releases every texture and the internal program, then the device
// itself unless it is shared.
func (d *Device) Close() {
	if d.scaleBlits != nil {
		d.scaleBlits.Destroy()
		d.scaleBlits = nil
	}
	for id := range d.textures {
		d.DestroyTexture(id)
	}
	clear(d.fbos)
	if d.external {
		return
	}
	if d.device != nil {
		d.device.Destroy()
		d.device = nil
	}
	if d.instance != nil {
		d.instance.Destroy()
		d.instance = nil
	}
}
