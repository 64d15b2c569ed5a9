// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package wgpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/scanout/backend"
	"github.com/gogpu/scanout/shader"
)

// program holds the render pipelines of the quad shader: one that
// replaces the destination and one that alpha blends over it.
type program struct {
	dev            *Device
	shader         hal.ShaderModule
	bindLayout     hal.BindGroupLayout
	pipelineLayout hal.PipelineLayout
	sampler        hal.Sampler
	uniforms       hal.Buffer
	replace        hal.RenderPipeline
	blend          hal.RenderPipeline
}

func (d *Device) newProgram() (*program, error) {
	p := &program{dev: d}
	if err := p.create(); err != nil {
		p.Destroy()
		return nil, err
	}
	return p, nil
}

func (p *program) create() error {
	dev := p.dev.device

	source := hal.ShaderSource{WGSL: shader.Source}
	if p.dev.useSPIRV {
		words, err := shader.SPIRV()
		if err != nil {
			return err
		}
		source = hal.ShaderSource{SPIRV: words}
	}
	var err error
	p.shader, err = dev.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "scanout_quad",
		Source: source,
	})
	if err != nil {
		return fmt.Errorf("wgpu: create shader module: %w", err)
	}

	p.bindLayout, err = dev.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "scanout_quad_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageVertex,
				Buffer: &gputypes.BufferBindingLayout{
					Type:           gputypes.BufferBindingTypeUniform,
					MinBindingSize: shader.ParamsSize,
				},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			{
				Binding:    2,
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("wgpu: create bind group layout: %w", err)
	}

	p.pipelineLayout, err = dev.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "scanout_quad_pipeline_layout",
		BindGroupLayouts: []hal.BindGroupLayout{p.bindLayout},
	})
	if err != nil {
		return fmt.Errorf("wgpu: create pipeline layout: %w", err)
	}

	p.sampler, err = dev.CreateSampler(&hal.SamplerDescriptor{
		Label:        "scanout_quad_sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeLinear,
		MinFilter:    gputypes.FilterModeLinear,
		MipmapFilter: gputypes.FilterModeNearest,
		LodMaxClamp:  32,
		Anisotropy:   1,
	})
	if err != nil {
		return fmt.Errorf("wgpu: create sampler: %w", err)
	}

	p.uniforms, err = dev.CreateBuffer(&hal.BufferDescriptor{
		Label: "scanout_quad_params",
		Size:  shader.ParamsSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("wgpu: create uniform buffer: %w", err)
	}

	if p.replace, err = p.createPipeline("scanout_quad_replace", nil); err != nil {
		return err
	}
	alpha := gputypes.BlendStateAlpha()
	if p.blend, err = p.createPipeline("scanout_quad_blend", &alpha); err != nil {
		return err
	}
	return nil
}

func (p *program) createPipeline(label string, blend *gputypes.BlendState) (hal.RenderPipeline, error) {
	pipeline, err := p.dev.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  label,
		Layout: p.pipelineLayout,
		Vertex: hal.VertexState{
			Module:     p.shader,
			EntryPoint: shader.VertexEntry,
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleStrip,
		},
		Multisample: gputypes.MultisampleState{Count: 1, Mask: 0xFFFFFFFF},
		Fragment: &hal.FragmentState{
			Module:     p.shader,
			EntryPoint: shader.FragmentEntry,
			Targets: []gputypes.ColorTargetState{{
				Format:    textureFormat,
				Blend:     blend,
				WriteMask: gputypes.ColorWriteMaskAll,
			}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create pipeline %s: %w", label, err)
	}
	return pipeline, nil
}

// Draw records and submits one quad.
func (p *program) Draw(dp backend.DrawParams) error {
	if p.replace == nil {
		return fmt.Errorf("wgpu: draw with destroyed program")
	}
	d := p.dev
	_, target, err := d.attachment(dp.Target)
	if err != nil {
		return err
	}
	src, ok := d.textures[dp.Source]
	if !ok {
		return fmt.Errorf("%w: %d", backend.ErrUnknownTexture, dp.Source)
	}
	vp := clipViewport(dp.Viewport, target.width, target.height)
	if vp.Empty() {
		return nil
	}
	if err := d.queue.WriteBuffer(p.uniforms, 0, shader.Params{Flip: dp.Flip}.Bytes()); err != nil {
		return fmt.Errorf("wgpu: write params: %w", err)
	}
	group, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "scanout_quad_bind_group",
		Layout: p.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{
				Buffer: p.uniforms.NativeHandle(),
				Size:   shader.ParamsSize,
			}},
			{Binding: 1, Resource: gputypes.TextureViewBinding{TextureView: src.view.NativeHandle()}},
			{Binding: 2, Resource: gputypes.SamplerBinding{Sampler: p.sampler.NativeHandle()}},
		},
	})
	if err != nil {
		return fmt.Errorf("wgpu: create bind group: %w", err)
	}
	defer d.device.DestroyBindGroup(group)

	pipeline := p.replace
	if dp.Blend {
		pipeline = p.blend
	}
	return d.submit("scanout_quad", func(enc hal.CommandEncoder) {
		pass := enc.BeginRenderPass(&hal.RenderPassDescriptor{
			Label: "scanout_quad_pass",
			ColorAttachments: []hal.RenderPassColorAttachment{{
				View:    target.view,
				LoadOp:  gputypes.LoadOpLoad,
				StoreOp: gputypes.StoreOpStore,
			}},
		})
		pass.SetPipeline(pipeline)
		pass.SetBindGroup(0, group, nil)
		pass.SetViewport(float32(dp.Viewport.X), float32(dp.Viewport.Y),
			float32(dp.Viewport.W), float32(dp.Viewport.H), 0, 1)
		pass.SetScissorRect(uint32(vp.Min.X), uint32(vp.Min.Y), uint32(vp.Dx()), uint32(vp.Dy()))
		pass.Draw(shader.VertexCount, 1, 0, 0)
		pass.End()
	})
}

// Destroy releases the pipelines and their resources in reverse order of
// creation.
func (p *program) Destroy() {
	dev := p.dev.device
	if p.blend != nil {
		dev.DestroyRenderPipeline(p.blend)
		p.blend = nil
	}
	if p.replace != nil {
		dev.DestroyRenderPipeline(p.replace)
		p.replace = nil
	}
	if p.uniforms != nil {
		dev.DestroyBuffer(p.uniforms)
		p.uniforms = nil
	}
	if p.sampler != nil {
		dev.DestroySampler(p.sampler)
		p.sampler = nil
	}
	if p.pipelineLayout != nil {
		dev.DestroyPipelineLayout(p.pipelineLayout)
		p.pipelineLayout = nil
	}
	if p.bindLayout != nil {
		dev.DestroyBindGroupLayout(p.bindLayout)
		p.bindLayout = nil
	}
	if p.shader != nil {
		dev.DestroyShaderModule(p.shader)
		p.shader = nil
	}
}
