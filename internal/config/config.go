// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers defaults, an optional .env file, an optional YAML file and env vars.
// - Validation errors wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFile, when set, tees logs into a rotating file.
	LogFile string `koanf:"log_file"`

	// Addr configures the HTTP listen address for the dashboard and metrics.
	Addr string `koanf:"addr"`

	// QueueSize bounds the snapshot fan-out queue.
	QueueSize int `koanf:"queue_size"`

	Thresholds Thresholds `koanf:"thresholds"`
	Camera     Camera     `koanf:"camera"`
	Display    Display    `koanf:"display"`
	Detector   Detector   `koanf:"detector"`
	Audio      Audio      `koanf:"audio"`
}

// Thresholds holds the alert tuning constants.
type Thresholds struct {
	EyeAR       float64 `koanf:"eye_ar"`
	MouthAR     float64 `koanf:"mouth_ar"`
	EyeFrames   int     `koanf:"eye_frames"`
	MouthFrames int     `koanf:"mouth_frames"`
}

// Camera configures the capture device.
type Camera struct {
	Index int `koanf:"index"`

	// Width and Height resize captured frames; zero keeps the native size.
	Width  int `koanf:"width"`
	Height int `koanf:"height"`

	ReadBackoffMS int `koanf:"read_backoff_ms"`

	// MaxReadFailures ends the session after that many consecutive failed
	// reads. Zero retries forever.
	MaxReadFailures int `koanf:"max_read_failures"`

	// MaxFPS caps the sampling rate; zero disables the cap.
	MaxFPS float64 `koanf:"max_fps"`
}

// Display configures the local preview window.
type Display struct {
	Enabled bool   `koanf:"enabled"`
	Title   string `koanf:"title"`
}

// Detector configures the landmark sidecar and its model asset.
type Detector struct {
	// URL of the landmark sidecar. Empty selects the stub detector.
	URL       string   `koanf:"url"`
	TimeoutMS int      `koanf:"timeout_ms"`
	ModelPath string   `koanf:"model_path"`
	ModelURLs []string `koanf:"model_urls"`

	// DownloadRetries is the number of extra attempts per mirror.
	DownloadRetries int `koanf:"download_retries"`
}

// Audio configures the alert sound.
type Audio struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
	Command string `koanf:"command"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:  "info",
		Addr:      ":9080",
		QueueSize: 256,
		Thresholds: Thresholds{
			EyeAR:       0.25,
			MouthAR:     0.5,
			EyeFrames:   20,
			MouthFrames: 35,
		},
		Camera: Camera{
			Index:         0,
			ReadBackoffMS: 100,
		},
		Display: Display{
			Enabled: true,
			Title:   "DrowsyWatch - Press 'q' to quit",
		},
		Detector: Detector{
			TimeoutMS: 2000,
			ModelPath: "models/face_landmarker.task",
			ModelURLs: []string{
				"https://storage.googleapis.com/mediapipe-models/vision/face_landmarker/float16/1/face_landmarker.task",
				"https://cdn-lfs.huggingface.co/repos/google/mediapipe-models/face_landmarker.task",
			},
			DownloadRetries: 2,
		},
		Audio: Audio{
			Enabled: true,
			Path:    "music.wav",
			Command: "aplay",
		},
	}
}

// ReadBackoff returns the camera retry delay.
func (c Camera) ReadBackoff() time.Duration {
	return time.Duration(c.ReadBackoffMS) * time.Millisecond
}

// Timeout returns the per-request detector timeout.
func (d Detector) Timeout() time.Duration {
	return time.Duration(d.TimeoutMS) * time.Millisecond
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.Thresholds.EyeAR <= 0:
		return fmt.Errorf("%w: thresholds.eye_ar must be positive", ErrInvalidConfig)
	case c.Thresholds.MouthAR <= 0:
		return fmt.Errorf("%w: thresholds.mouth_ar must be positive", ErrInvalidConfig)
	case c.Thresholds.EyeFrames < 1:
		return fmt.Errorf("%w: thresholds.eye_frames must be at least 1", ErrInvalidConfig)
	case c.Thresholds.MouthFrames < 1:
		return fmt.Errorf("%w: thresholds.mouth_frames must be at least 1", ErrInvalidConfig)
	case c.Camera.Index < 0:
		return fmt.Errorf("%w: camera.index must not be negative", ErrInvalidConfig)
	case c.Camera.Width < 0 || c.Camera.Height < 0:
		return fmt.Errorf("%w: camera.width and camera.height must not be negative", ErrInvalidConfig)
	case c.Camera.MaxFPS < 0:
		return fmt.Errorf("%w: camera.max_fps must not be negative", ErrInvalidConfig)
	case c.Detector.ModelPath == "":
		return fmt.Errorf("%w: detector.model_path must not be empty", ErrInvalidConfig)
	}
	return nil
}
