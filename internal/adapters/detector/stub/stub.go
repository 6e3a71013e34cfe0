// Package stub provides a detector that never finds a face. It stands in
// when no landmark sidecar is configured so the rest of the pipeline still
// runs (every frame reads as AWAKE).
package stub

import (
	"context"

	"github.com/okian/drowsywatch/internal/domain/model"
)

// Detector satisfies the app detector contract without a model.
type Detector struct{}

// Init is a no-op.
func (Detector) Init(context.Context, string) error { return nil }

// Detect always reports no face.
func (Detector) Detect(context.Context, model.Frame) ([]model.Face, error) { return nil, nil } //nolint:gocritic // hugeParam

// Close is a no-op.
func (Detector) Close() error { return nil }
