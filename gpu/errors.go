package gpu

import "errors"

// Fatal-at-init errors. Startup aborts; there is no retry.
var (
	// ErrNoAdapter is returned when no adapter reaches the required feature level.
	ErrNoAdapter = errors.New("gpu: no capable adapter")

	// ErrDeviceCreation is returned when the logical device cannot be created.
	ErrDeviceCreation = errors.New("gpu: device creation failed")

	// ErrShaderCompile is returned when a shader stage fails to compile.
	ErrShaderCompile = errors.New("gpu: shader compilation failed")

	// ErrRootSignature is returned when a root signature cannot be serialized.
	ErrRootSignature = errors.New("gpu: root signature serialization failed")

	// ErrSyncObject is returned when a fence or its event cannot be created.
	ErrSyncObject = errors.New("gpu: synchronization object creation failed")

	// ErrFullscreenUnsupported is returned for swap chains requesting fullscreen.
	ErrFullscreenUnsupported = errors.New("gpu: fullscreen swap chains are not supported")
)

// Fatal-at-runtime errors. Resource states are no longer trustworthy after
// one of these and the device must be torn down.
var (
	// ErrDeviceLost is returned when the device stops executing work.
	ErrDeviceLost = errors.New("gpu: device lost")
)

// Usage errors.
var (
	// ErrOutOfRange is returned for indices at or past a fixed capacity.
	ErrOutOfRange = errors.New("gpu: index out of range")

	// ErrNotShaderVisible is returned when a GPU handle is requested from a
	// heap that shaders cannot see.
	ErrNotShaderVisible = errors.New("gpu: descriptor heap is not shader visible")

	// ErrInvalidState is returned for operations illegal in the object's
	// current lifecycle state (recording a closed list, executing an open one).
	ErrInvalidState = errors.New("gpu: invalid object state")

	// ErrAllocatorInUse is returned by debug layers when an allocator is reset
	// while the GPU may still execute lists recorded from it.
	ErrAllocatorInUse = errors.New("gpu: command allocator reset while in flight")

	// ErrNotMappable is returned when mapping a resource in device-local memory.
	ErrNotMappable = errors.New("gpu: resource is not CPU accessible")

	// ErrDestroyed is returned when using an object after Destroy.
	ErrDestroyed = errors.New("gpu: object destroyed")
)
