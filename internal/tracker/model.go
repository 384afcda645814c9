package tracker

import (
	"slices"
	"time"

	"github.com/linnemanlabs/devwatch/internal/evidence"
)

// TrackedDevice is the last known state of one device id across scans.
type TrackedDevice struct {
	ID                string                     `json:"id"`
	Platform          evidence.Platform          `json:"platform,omitempty"`
	DeviceMode        evidence.Mode              `json:"device_mode,omitempty"`
	Confidence        float64                    `json:"confidence"`
	CorrelationBadge  evidence.Badge             `json:"correlation_badge,omitempty"`
	MatchedIDs        []string                   `json:"matched_ids"`
	CorrelationNotes  []string                   `json:"correlation_notes"`
	DetectionEvidence evidence.DetectionEvidence `json:"detection_evidence"`
	Serial            *string                    `json:"serial,omitempty"`
	VendorID          *uint16                    `json:"vendorId,omitempty"`
	ProductID         *uint16                    `json:"productId,omitempty"`
	FirstSeen         time.Time                  `json:"first_seen"`
	LastUpdated       time.Time                  `json:"last_updated"`
	Updates           int                        `json:"updates"`
}

// Fields is a partial update. Nil pointers and nil slices are absent and
// leave the stored value alone; a non-nil empty slice clears the stored one.
type Fields struct {
	Platform         *evidence.Platform
	DeviceMode       *evidence.Mode
	Confidence       *float64
	CorrelationBadge *evidence.Badge
	MatchedIDs       []string
	CorrelationNotes []string
	USBEvidence      []string
	Serial           *string
	VendorID         *uint16
	ProductID        *uint16
}

// IsEmpty reports whether f carries no field at all.
func (f *Fields) IsEmpty() bool {
	return f.Platform == nil &&
		f.DeviceMode == nil &&
		f.Confidence == nil &&
		f.CorrelationBadge == nil &&
		f.MatchedIDs == nil &&
		f.CorrelationNotes == nil &&
		f.USBEvidence == nil &&
		f.Serial == nil &&
		f.VendorID == nil &&
		f.ProductID == nil
}

// FieldsFromDossier builds a full update from a dossier. Serial, vendor and
// product ids are recovered from the dossier's usb evidence since the
// dossier does not carry them directly.
func FieldsFromDossier(d *evidence.Dossier) Fields {
	usb := evidence.ParseUSBEvidence(d.DetectionEvidence.USBEvidence)
	platform, mode, conf, badge := d.Platform, d.DeviceMode, d.Confidence, d.CorrelationBadge
	return Fields{
		Platform:         &platform,
		DeviceMode:       &mode,
		Confidence:       &conf,
		CorrelationBadge: &badge,
		MatchedIDs:       nonNil(d.MatchedIDs),
		CorrelationNotes: nonNil(d.CorrelationNotes),
		USBEvidence:      nonNil(d.DetectionEvidence.USBEvidence),
		Serial:           usb.Serial,
		VendorID:         usb.VendorID,
		ProductID:        usb.ProductID,
	}
}

// apply merges f into d. Caller holds the entry lock.
func (d *TrackedDevice) apply(f *Fields) {
	if f.Platform != nil {
		d.Platform = *f.Platform
	}
	if f.DeviceMode != nil {
		d.DeviceMode = *f.DeviceMode
	}
	if f.Confidence != nil {
		d.Confidence = *f.Confidence
	}
	if f.CorrelationBadge != nil {
		d.CorrelationBadge = *f.CorrelationBadge
	}
	if f.MatchedIDs != nil {
		d.MatchedIDs = slices.Clone(f.MatchedIDs)
	}
	if f.CorrelationNotes != nil {
		d.CorrelationNotes = slices.Clone(f.CorrelationNotes)
	}
	if f.USBEvidence != nil {
		d.DetectionEvidence.USBEvidence = slices.Clone(f.USBEvidence)
	}
	if f.Serial != nil {
		d.Serial = clonePtr(f.Serial)
	}
	if f.VendorID != nil {
		d.VendorID = clonePtr(f.VendorID)
	}
	if f.ProductID != nil {
		d.ProductID = clonePtr(f.ProductID)
	}
}

// clone returns a deep copy safe to hand to callers.
func (d *TrackedDevice) clone() TrackedDevice {
	cp := *d
	cp.MatchedIDs = nonNil(slices.Clone(d.MatchedIDs))
	cp.CorrelationNotes = nonNil(slices.Clone(d.CorrelationNotes))
	cp.DetectionEvidence.USBEvidence = nonNil(slices.Clone(d.DetectionEvidence.USBEvidence))
	cp.Serial = clonePtr(d.Serial)
	cp.VendorID = clonePtr(d.VendorID)
	cp.ProductID = clonePtr(d.ProductID)
	return cp
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
