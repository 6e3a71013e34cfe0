// Package sidecar talks to the face-landmark sidecar process over HTTP.
//
// The sidecar wraps the landmark model; this package never runs inference
// itself. Protocol:
//
//	POST /v1/landmarker {"model_path": "...", "num_faces": 1}
//	POST /v1/detect     {"image": "<base64 jpeg>", "width": W, "height": H}
//	                 -> {"faces": [[{"x":..,"y":..,"z":..}, ...]]}
//	POST /v1/close
package sidecar

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/okian/drowsywatch/internal/domain/model"
	"github.com/okian/drowsywatch/pkg/metrics"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Errors returned by the client.
var (
	ErrSidecarUnavailable = errors.New("landmark sidecar unavailable")
	ErrInvalidResponse    = errors.New("invalid sidecar response")
	ErrNotInitialized     = errors.New("landmarker not initialized")
)

// Config holds the configuration for the sidecar client.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://127.0.0.1:7070",
		Timeout: 2 * time.Second,
	}
}

type initRequest struct {
	ModelPath string `json:"model_path"`
	NumFaces  int    `json:"num_faces"`
}

type detectRequest struct {
	Image  string `json:"image"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type detectResponse struct {
	Faces []model.Face `json:"faces"`
}

// Client is the HTTP client for the landmark sidecar.
type Client struct {
	httpClient  *http.Client
	config      Config
	initialized bool
}

// NewClient creates a new sidecar client.
func NewClient(config Config) *Client {
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	return &Client{
		httpClient: &http.Client{Timeout: config.Timeout},
		config:     config,
	}
}

// Init loads the model at modelPath inside the sidecar.
func (c *Client) Init(ctx context.Context, modelPath string) error {
	req := initRequest{ModelPath: modelPath, NumFaces: 1}
	if err := c.doRequest(ctx, "/v1/landmarker", req, nil); err != nil {
		return err
	}
	c.initialized = true
	return nil
}

// Detect returns the landmarks of at most one face in frame. No face is an
// empty result, not an error.
func (c *Client) Detect(ctx context.Context, frame model.Frame) ([]model.Face, error) { //nolint:gocritic // hugeParam
	if !c.initialized {
		return nil, ErrNotInitialized
	}
	start := time.Now()
	defer func() {
		metrics.RecordDetectorLatency(float64(time.Since(start).Milliseconds()))
	}()

	req := detectRequest{
		Image:  base64.StdEncoding.EncodeToString(frame.JPEG),
		Width:  frame.Width,
		Height: frame.Height,
	}
	var resp detectResponse
	if err := c.doRequest(ctx, "/v1/detect", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Faces) > 1 {
		resp.Faces = resp.Faces[:1]
	}
	if len(resp.Faces) == 1 && len(resp.Faces[0]) == 0 {
		return nil, nil
	}
	return resp.Faces, nil
}

// Close releases the model inside the sidecar.
func (c *Client) Close() error {
	if !c.initialized {
		return nil
	}
	c.initialized = false
	ctx, cancel := context.WithTimeout(context.Background(), c.config.Timeout)
	defer cancel()
	return c.doRequest(ctx, "/v1/close", struct{}{}, nil)
}

func (c *Client) doRequest(ctx context.Context, path string, body, result any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSidecarUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%w: %s returned status %d: %s", ErrSidecarUnavailable, path, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidResponse, err)
		}
	}
	return nil
}
