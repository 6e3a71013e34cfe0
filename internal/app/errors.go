package service

import "errors"

// Sentinel errors returned by the service.
var (
	ErrNoCamera     = errors.New("no camera configured")
	ErrDetectorInit = errors.New("landmark detector failed to initialize")
	ErrCameraLost   = errors.New("camera stopped producing frames")
	ErrNotStarted   = errors.New("service not started")
)
