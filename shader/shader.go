// Package shader holds the GPU program used to blit and blend scanout
// textures.
//
// The program draws one textured quad per call. Bindings:
//
//	@group(0) @binding(0) uniform Params (16 bytes)
//	@group(0) @binding(1) texture_2d<f32> source
//	@group(0) @binding(2) sampler
package shader

import (
	_ "embed"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/gogpu/naga"
)

// Source is the WGSL source of the quad program.
//
//go:embed quad.wgsl
var Source string

// Entry points and draw parameters of the quad program.
const (
	VertexEntry   = "vs_main"
	FragmentEntry = "fs_main"
	VertexCount   = 4
	ParamsSize    = 16
)

// Params is the uniform block of the quad program.
type Params struct {
	// Flip samples the source with its rows reversed.
	Flip bool
}

// Bytes returns the std140 layout of p.
func (p Params) Bytes() []byte {
	buf := make([]byte, ParamsSize)
	var flip uint32
	if p.Flip {
		flip = 1
	}
	binary.LittleEndian.PutUint32(buf[0:4], flip)
	return buf
}

var (
	spirvOnce sync.Once
	spirvCode []uint32
	spirvErr  error
)

// SPIRV returns the program compiled to SPIR-V words. The result is
// computed once.
func SPIRV() ([]uint32, error) {
	spirvOnce.Do(func() {
		spirvCode, spirvErr = CompileSPIRV(Source)
	})
	return spirvCode, spirvErr
}

// CompileSPIRV compiles WGSL source to SPIR-V words.
func CompileSPIRV(wgsl string) ([]uint32, error) {
	b, err := naga.Compile(wgsl)
	if err != nil {
		return nil, fmt.Errorf("shader: compile: %w", err)
	}
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("shader: SPIR-V length %d is not a multiple of 4", len(b))
	}
	// SPIR-V is little-endian 32-bit words.
	words := make([]uint32, len(b)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return words, nil
}
