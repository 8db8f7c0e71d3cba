// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package wgpu

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gogpu/naga"
)

//go:embed shaders/prelude.wgsl
var preludeWGSL string

//go:embed shaders/gradient.wgsl
var gradientWGSL string

//go:embed shaders/plasma.wgsl
var plasmaWGSL string

//go:embed shaders/checker.wgsl
var checkerWGSL string

// DefaultShader is the built-in shader used when none is selected.
const DefaultShader = "gradient"

var builtinShaders = map[string]string{
	"gradient": gradientWGSL,
	"plasma":   plasmaWGSL,
	"checker":  checkerWGSL,
}

// ErrShaderCompile is returned when WGSL source fails to compile.
var ErrShaderCompile = errors.New("wgpu: shader compilation failed")

// Shader is a WGSL fragment body. It must define
//
//	fn shade(coord: vec2<f32>, resolution: vec2<f32>, time: f32) -> vec4<f32>
//
// where coord is the pixel center in frame coordinates (origin top-left,
// y down). The backend supplies the entry points and the scene uniform.
type Shader struct {
	// Name identifies the shader in logs and output file names.
	Name string

	// Source is the WGSL body.
	Source string
}

// BuiltinShaders returns the names of the embedded shaders, sorted.
func BuiltinShaders() []string {
	names := make([]string, 0, len(builtinShaders))
	for name := range builtinShaders {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// LoadShader resolves a shader reference: "" selects DefaultShader, a
// built-in name selects an embedded shader, anything else is read as a WGSL
// file path.
func LoadShader(ref string) (Shader, error) {
	if ref == "" {
		ref = DefaultShader
	}
	if src, ok := builtinShaders[ref]; ok {
		return Shader{Name: ref, Source: src}, nil
	}
	src, err := os.ReadFile(ref)
	if err != nil {
		return Shader{}, fmt.Errorf("wgpu: load shader %q: %w", ref, err)
	}
	name := strings.TrimSuffix(filepath.Base(ref), filepath.Ext(ref))
	return Shader{Name: name, Source: string(src)}, nil
}

// fullSource joins the prelude and the shader body into one module.
func (s Shader) fullSource() string {
	return preludeWGSL + "\n// ---- " + s.Name + " ----\n" + s.Source
}

// compile validates the shader and converts it to SPIR-V words.
func (s Shader) compile() ([]uint32, error) {
	spirvBytes, err := naga.Compile(s.fullSource())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrShaderCompile, s.Name, err)
	}
	if len(spirvBytes)%4 != 0 {
		return nil, fmt.Errorf("%w: %s: SPIR-V length %d is not a multiple of 4", ErrShaderCompile, s.Name, len(spirvBytes))
	}

	code := make([]uint32, len(spirvBytes)/4)
	for i := range code {
		code[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return code, nil
}
