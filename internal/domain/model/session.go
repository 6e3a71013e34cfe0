package model

import (
	"time"

	"github.com/okian/drowsywatch/internal/domain/alert"
)

// HistoryRecord is appended every frame an alert condition holds.
type HistoryRecord struct {
	ID     string       `json:"id"`
	Time   time.Time    `json:"time"`
	Status alert.Status `json:"status"`
}

// Snapshot summarizes the monitoring session after a frame.
type Snapshot struct {
	SessionID    string    `json:"session_id"`
	Started      time.Time `json:"started"`
	Latest       Reading   `json:"latest"`
	Frames       int       `json:"frames"`
	Events       int       `json:"events"`
	Vigilance    int       `json:"vigilance"`
	AvgVigilance float64   `json:"avg_vigilance"`
	AvgEAR       float64   `json:"avg_ear"`
	AvgMAR       float64   `json:"avg_mar"`
}

// Series holds the per-frame series plotted by the dashboard.
type Series struct {
	EAR       []float64 `json:"ear"`
	MAR       []float64 `json:"mar"`
	Vigilance []int     `json:"vigilance"`
}
