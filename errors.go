package framepipe

import "errors"

var (
	// ErrNotInitialized is returned when rendering before OnInit succeeded.
	ErrNotInitialized = errors.New("framepipe: pipeline not initialized")

	// ErrDestroyed is returned when using a pipeline after OnDestroy.
	ErrDestroyed = errors.New("framepipe: pipeline destroyed")

	// ErrNoFrame is returned when capturing before any frame was presented.
	ErrNoFrame = errors.New("framepipe: no frame presented yet")

	// ErrInvalidConfig is returned for configuration values out of range.
	ErrInvalidConfig = errors.New("framepipe: invalid configuration")
)
