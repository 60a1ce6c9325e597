// Package backend provides a pluggable device backend abstraction.
//
// The backend package allows framepipe to run the same frame pipeline on
// different device implementations: hardware GPUs through gogpu/wgpu and a
// CPU reference device that executes command lists on its own timeline.
//
// # Backend Registration
//
// Backends are registered via init() functions and selected at runtime:
//
//	import _ "github.com/gogpu/framepipe/backend/reference"
//	import _ "github.com/gogpu/framepipe/backend/native"
//
// # Adapter Selection
//
// SelectAdapter walks every registered backend in priority order and picks
// a hardware adapter when one reaches the required feature level, falling
// back to a software adapter otherwise:
//
//	sel, err := backend.SelectAdapter(true, gpu.FeatureLevel11_0)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer sel.Backend.Close()
//
//	dev, queue, err := sel.Adapter.Open()
//
// # Available Backends
//
// - "native": GPU via gogpu/wgpu HAL (Vulkan, Metal, DX12, GLES)
// - "reference": CPU reference device (always available)
package backend
