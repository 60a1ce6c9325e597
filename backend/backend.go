package backend

import (
	"errors"

	"github.com/gogpu/framepipe/gpu"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not available.
	ErrBackendNotAvailable = errors.New("backend: not available")

	// ErrNotInitialized is returned when operations are called before Init.
	ErrNotInitialized = errors.New("backend: not initialized")
)

// Backend name constants.
const (
	// BackendNative is the name of the hardware backend (gogpu/wgpu HAL).
	BackendNative = "native"
	// BackendReference is the name of the CPU reference device.
	BackendReference = "reference"
)

// Backend is a source of adapters.
// It abstracts the device implementation, allowing framepipe to run on
// hardware through the wgpu HAL or on the CPU reference device.
//
// Backends must be registered via Register() and are selected via
// Get(), Default() or SelectAdapter().
type Backend interface {
	// Name returns the backend identifier (e.g., "native", "reference").
	Name() string

	// Init prepares the backend for adapter enumeration.
	Init() error

	// Close releases all backend resources. Devices opened from its
	// adapters must be destroyed first.
	Close()

	// Adapters returns the adapters this backend exposes.
	// Returns ErrNotInitialized before Init.
	Adapters() ([]gpu.Adapter, error)
}
