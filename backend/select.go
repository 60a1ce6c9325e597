package backend

import (
	"fmt"

	"github.com/gogpu/framepipe/gpu"
)

// Selection is the outcome of SelectAdapter.
type Selection struct {
	// Backend owns Adapter and must be closed after the device is destroyed.
	Backend Backend

	// Adapter is the chosen adapter.
	Adapter gpu.Adapter

	// Fallback is true when a software adapter was chosen although
	// hardware was preferred.
	Fallback bool
}

// SelectAdapter picks the first capable adapter across all registered
// backends, in priority order.
//
// With preferHardware, adapters that are not software and reach minLevel
// win. Otherwise, or when no hardware adapter qualifies, the first software
// adapter reaching minLevel is used. Backends that fail to initialize are
// skipped. Returns an error wrapping gpu.ErrNoAdapter when nothing qualifies.
func SelectAdapter(preferHardware bool, minLevel gpu.FeatureLevel) (*Selection, error) {
	type candidate struct {
		backend Backend
		adapter gpu.Adapter
	}

	var opened []Backend
	var hardware, software []candidate
	for _, name := range Available() {
		b := Get(name)
		if b == nil {
			continue
		}
		if err := b.Init(); err != nil {
			continue
		}
		opened = append(opened, b)
		adapters, err := b.Adapters()
		if err != nil {
			continue
		}
		for _, a := range adapters {
			info := a.Info()
			if info.FeatureLevel < minLevel {
				continue
			}
			if info.Software() {
				software = append(software, candidate{b, a})
			} else {
				hardware = append(hardware, candidate{b, a})
			}
		}
	}

	var pick *candidate
	fallback := false
	switch {
	case preferHardware && len(hardware) > 0:
		pick = &hardware[0]
	case len(software) > 0:
		pick = &software[0]
		fallback = preferHardware
	}

	for _, b := range opened {
		if pick == nil || b != pick.backend {
			b.Close()
		}
	}

	if pick == nil {
		return nil, fmt.Errorf("backend: no adapter at feature level %s: %w", minLevel, gpu.ErrNoAdapter)
	}
	return &Selection{Backend: pick.backend, Adapter: pick.adapter, Fallback: fallback}, nil
}
