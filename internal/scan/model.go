package scan

import (
	"time"

	"github.com/linnemanlabs/devwatch/internal/confirmers"
	"github.com/linnemanlabs/devwatch/internal/evidence"
)

// Request is one scan cycle as delivered by a probe aggregator.
type Request struct {
	Devices []evidence.RawDeviceRecord `json:"devices"`
	Bridges *confirmers.Output         `json:"bridges,omitempty"`
}

// Report is the outcome of processing one scan.
type Report struct {
	ID          string              `json:"scan_id"`
	StartedAt   time.Time           `json:"started_at"`
	Duration    float64             `json:"duration_seconds"`
	Dossiers    []evidence.Dossier  `json:"dossiers"`
	Summary     evidence.Summary    `json:"summary"`
	Tracked     bool                `json:"tracked"`
	NewDevices  []string            `json:"new_devices,omitempty"`
	BridgeNotes map[string][]string `json:"bridge_notes,omitempty"`
}
