package evidence

// Platform is the device family a probe attributes a record to.
type Platform string

const (
	PlatformAndroid Platform = "android"
	PlatformIOS     Platform = "ios"
	PlatformUnknown Platform = "unknown"
)

// Known reports whether p is one of the recognized platform values.
func (p Platform) Known() bool {
	switch p {
	case PlatformAndroid, PlatformIOS, PlatformUnknown:
		return true
	}
	return false
}

// Mode is the operating mode a probe believes the device is in.
type Mode string

const (
	// ModeConfirmedAndroid means a bridge saw the device booted into Android.
	ModeConfirmedAndroid Mode = "confirmed_android_os"

	// ModeConfirmedIOS means a bridge saw the device booted into iOS.
	ModeConfirmedIOS Mode = "confirmed_ios"

	// ModeBootloader means the device answered in a bootloader/fastboot state.
	ModeBootloader Mode = "bootloader"

	// ModeLikelyAndroid means USB descriptors look like Android, nothing more.
	ModeLikelyAndroid Mode = "likely_android"

	// ModeUnconfirmed means no claim.
	ModeUnconfirmed Mode = "unconfirmed"
)

// Known reports whether m is one of the recognized mode values.
func (m Mode) Known() bool {
	switch m {
	case ModeConfirmedAndroid, ModeConfirmedIOS, ModeBootloader, ModeLikelyAndroid, ModeUnconfirmed:
		return true
	}
	return false
}

// OSConfirmed reports whether a bridge confirmed a booted OS.
func (m Mode) OSConfirmed() bool {
	return m == ModeConfirmedAndroid || m == ModeConfirmedIOS
}

// SystemConfirmed reports whether a system-level tool confirmed the device
// in any state, bootloader included.
func (m Mode) SystemConfirmed() bool {
	return m.OSConfirmed() || m == ModeBootloader
}

// Badge is the correlation classification assigned to a dossier.
type Badge string

const (
	BadgeCorrelated      Badge = "CORRELATED"
	BadgeCorrelatedWeak  Badge = "CORRELATED_WEAK"
	BadgeSystemConfirmed Badge = "SYSTEM_CONFIRMED"
	BadgeLikely          Badge = "LIKELY"
	BadgeUnconfirmed     Badge = "UNCONFIRMED"
)

// RawDeviceRecord is one physically distinct device as seen by a single scan.
type RawDeviceRecord struct {
	ID             string   `json:"id"`
	Serial         *string  `json:"serial,omitempty"`
	VendorID       uint16   `json:"vendorId"`
	ProductID      uint16   `json:"productId"`
	Platform       Platform `json:"platform"`
	Mode           Mode     `json:"mode"`
	Confidence     float64  `json:"confidence"`
	MatchedToolIDs []string `json:"matched_tool_ids,omitempty"`
}

// DetectionEvidence holds synthesized facts about how a device was detected.
type DetectionEvidence struct {
	USBEvidence []string `json:"usb_evidence"`
}

// Dossier is the normalized, badge-classified view of one RawDeviceRecord.
type Dossier struct {
	ID                string            `json:"id"`
	Platform          Platform          `json:"platform"`
	DeviceMode        Mode              `json:"device_mode"`
	Confidence        float64           `json:"confidence"`
	CorrelationBadge  Badge             `json:"correlation_badge"`
	MatchedIDs        []string          `json:"matched_ids"`
	CorrelationNotes  []string          `json:"correlation_notes"`
	DetectionEvidence DetectionEvidence `json:"detection_evidence"`
}

// Summary aggregates badge counts over one scan. LIKELY dossiers are counted
// in Total only.
type Summary struct {
	Total           int `json:"total"`
	Correlated      int `json:"correlated"`
	SystemConfirmed int `json:"system_confirmed"`
	Unconfirmed     int `json:"unconfirmed"`
}
