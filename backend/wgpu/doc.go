// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package wgpu implements backend.Device on top of the gogpu/wgpu HAL.
//
// Textures are RGBA8Unorm. Framebuffer objects are bookkeeping only: a
// framebuffer id resolves to the texture view it renders into. Unscaled
// blits use texture-to-texture copies (one region per row when flipped);
// scaled blits and the blit/blend program use a render pipeline built
// from the shader package.
//
// The device is offscreen: it has no default framebuffer. Use it with a
// headless presenter, or share a device with a windowing host through
// NewFromProvider.
//
// Importing the package registers the device under backend.BackendWGPU
// and links the Vulkan HAL.
package wgpu
