// Package shader compiles the WGSL programs of the pipeline with naga.
//
// Both programs expose a vertex entry point vs_main and a fragment entry
// point fs_main in one module. Compilation happens once at startup and any
// failure is fatal.
package shader

import (
	_ "embed"
	"fmt"

	"github.com/gogpu/framepipe/gpu"
	"github.com/gogpu/naga"
	"github.com/gogpu/naga/hlsl"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/naga/spirv"
)

// Entry point names every program must define.
const (
	VertexEntry   = "vs_main"
	FragmentEntry = "fs_main"
)

// ColorWGSL draws vertices with a per-vertex color.
//
//go:embed color.wgsl
var ColorWGSL string

// TextureWGSL samples a texture at binding 0 with the sampler at binding 1.
//
//go:embed texture.wgsl
var TextureWGSL string

// Options control code generation.
type Options struct {
	// Debug embeds names and line information in the SPIR-V output.
	Debug bool
}

// Program is a compiled WGSL module with both pipeline stages.
type Program struct {
	label  string
	source string
	module *ir.Module
	code   []byte
}

// Compile parses, validates and compiles source. Errors wrap
// gpu.ErrShaderCompile and carry the pipeline stage that failed.
func Compile(label, source string, opts Options) (*Program, error) {
	ast, err := naga.Parse(source)
	if err != nil {
		return nil, compileErr(label, "parse", err)
	}
	module, err := naga.LowerWithSource(ast, source)
	if err != nil {
		return nil, compileErr(label, "lower", err)
	}
	verrs, err := naga.Validate(module)
	if err != nil {
		return nil, compileErr(label, "validate", err)
	}
	if len(verrs) > 0 {
		return nil, compileErr(label, "validate", &verrs[0])
	}
	if err := checkEntryPoints(module); err != nil {
		return nil, compileErr(label, "entry points", err)
	}

	code, err := naga.GenerateSPIRV(module, spirv.Options{
		Version: spirv.Version1_3,
		Debug:   opts.Debug,
	})
	if err != nil {
		return nil, compileErr(label, "spirv", err)
	}
	slogger().Debug("shader: compiled", "label", label, "bytes", len(code), "debug", opts.Debug)
	return &Program{label: label, source: source, module: module, code: code}, nil
}

func compileErr(label, stage string, err error) error {
	return fmt.Errorf("shader %q: %s: %w: %w", label, stage, gpu.ErrShaderCompile, err)
}

func checkEntryPoints(m *ir.Module) error {
	want := map[string]ir.ShaderStage{
		VertexEntry:   ir.StageVertex,
		FragmentEntry: ir.StageFragment,
	}
	for _, ep := range m.EntryPoints {
		stage, ok := want[ep.Name]
		if !ok {
			continue
		}
		if ep.Stage != stage {
			return fmt.Errorf("%s has the wrong stage", ep.Name)
		}
		delete(want, ep.Name)
	}
	for _, name := range []string{VertexEntry, FragmentEntry} {
		if _, missing := want[name]; missing {
			return fmt.Errorf("missing entry point %s", name)
		}
	}
	return nil
}

// Label returns the name given at compile time.
func (p *Program) Label() string { return p.label }

// SPIRV returns the compiled module.
func (p *Program) SPIRV() []byte { return p.code }

// VS returns the vertex stage bytecode.
func (p *Program) VS() gpu.ShaderBytecode {
	return gpu.ShaderBytecode{EntryPoint: VertexEntry, Source: p.source, Code: p.code}
}

// PS returns the pixel stage bytecode.
func (p *Program) PS() gpu.ShaderBytecode {
	return gpu.ShaderBytecode{EntryPoint: FragmentEntry, Source: p.source, Code: p.code}
}

// HLSL returns the program translated to HLSL shader model 5.1, for
// inspecting what a Direct3D backend would compile.
func (p *Program) HLSL() (string, error) {
	src, _, err := hlsl.Compile(p.module, hlsl.DefaultOptions())
	if err != nil {
		return "", fmt.Errorf("shader %q: hlsl: %w", p.label, err)
	}
	return src, nil
}
