package frame

import (
	"fmt"

	"github.com/gogpu/framepipe/gpu"
)

// Bundle is a precompiled draw replayed inside frame command lists.
type Bundle struct {
	alloc gpu.CommandAllocator
	list  gpu.CommandList
}

// NewBundle records draw once into a bundle list.
func NewBundle(dev gpu.Device, draw *Draw) (*Bundle, error) {
	if err := draw.validate(); err != nil {
		return nil, err
	}
	alloc, err := dev.CreateCommandAllocator(gpu.ListBundle)
	if err != nil {
		return nil, fmt.Errorf("frame: bundle allocator: %w", err)
	}
	list, err := dev.CreateCommandList(gpu.ListBundle, alloc, draw.Pipeline)
	if err != nil {
		alloc.Destroy()
		return nil, fmt.Errorf("frame: bundle list: %w", err)
	}
	b := &Bundle{alloc: alloc, list: list}

	draw.bind(list)
	draw.issue(list)
	if err := list.Close(); err != nil {
		b.Destroy()
		return nil, fmt.Errorf("frame: record bundle: %w", err)
	}
	return b, nil
}

// List returns the closed bundle list.
func (b *Bundle) List() gpu.CommandList { return b.list }

// Destroy releases the bundle. No submitted frame may still replay it.
func (b *Bundle) Destroy() {
	if b.list != nil {
		b.list.Destroy()
		b.list = nil
	}
	if b.alloc != nil {
		b.alloc.Destroy()
		b.alloc = nil
	}
}
