package native

import "errors"

// Native backend errors.
var (
	// ErrNoGPU is returned when no HAL backend yields an adapter.
	ErrNoGPU = errors.New("native: no GPU adapter available")

	// ErrTextureDestroyed is returned when operating on a destroyed texture.
	ErrTextureDestroyed = errors.New("native: texture has been destroyed")

	// ErrNilHALDevice is returned when creating a view without a HAL device.
	ErrNilHALDevice = errors.New("native: HAL device is nil")

	// ErrDefaultViewCreationFailed is returned when lazy default view creation fails.
	ErrDefaultViewCreationFailed = errors.New("native: failed to create default view")

	// ErrNoSurfaceTexture is returned when the surface yields no back buffer.
	ErrNoSurfaceTexture = errors.New("native: surface has no texture to present")
)
