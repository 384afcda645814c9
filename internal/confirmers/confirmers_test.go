package confirmers

import (
	"math"
	"reflect"
	"testing"

	"github.com/linnemanlabs/devwatch/internal/evidence"
)

func strPtr(s string) *string { return &s }

func TestParseADB(t *testing.T) {
	t.Parallel()

	out := `* daemon not running; starting now at tcp:5037
* daemon started successfully
List of devices attached
R58M12ABCDE            device usb:1-1 product:a52qnsxx model:SM_A525F device:a52q transport_id:1
emulator-5554          offline
ZY22DEVICE             unauthorized usb:1-2 transport_id:3
HT7A1SIDE              sideload
0123456789ABCDEF       recovery usb:1-4

`
	got := ParseADB(out)
	want := []string{"R58M12ABCDE", "HT7A1SIDE", "0123456789ABCDEF"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseADB = %v, want %v", got, want)
	}
}

func TestParseFastboot(t *testing.T) {
	t.Parallel()

	got := ParseFastboot("8A3X0KQ1\tfastboot\n\n  FA7B1\tfastboot  \n")
	want := []string{"8A3X0KQ1", "FA7B1"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseFastboot = %v, want %v", got, want)
	}
}

func TestParseIdevice(t *testing.T) {
	t.Parallel()

	got := ParseIdevice("00008030-001A2D3E0C41802E\n\n  abcdef0123456789abcdef0123456789abcdef01 \n")
	want := []string{"00008030-001A2D3E0C41802E", "abcdef0123456789abcdef0123456789abcdef01"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseIdevice = %v, want %v", got, want)
	}
}

func TestParse_EmptyOutputs(t *testing.T) {
	t.Parallel()

	for _, got := range [][]string{ParseADB(""), ParseFastboot(""), ParseIdevice("  \n")} {
		if len(got) != 0 {
			t.Errorf("parse of empty output = %v, want none", got)
		}
	}
}

func TestCorrelate_ADBMatch(t *testing.T) {
	t.Parallel()

	b := Parse(Output{ADB: strPtr("List of devices attached\nR58M\tdevice\n")})
	rec := evidence.RawDeviceRecord{
		ID:         "usb-1-1",
		Serial:     strPtr("R58M"),
		Platform:   evidence.PlatformUnknown,
		Mode:       evidence.ModeLikelyAndroid,
		Confidence: 0.80,
	}

	got, notes := b.Correlate(rec)
	if got.Mode != evidence.ModeConfirmedAndroid {
		t.Errorf("Mode = %q, want %q", got.Mode, evidence.ModeConfirmedAndroid)
	}
	if got.Platform != evidence.PlatformAndroid {
		t.Errorf("Platform = %q, want %q", got.Platform, evidence.PlatformAndroid)
	}
	if got.Confidence != boostCeiling {
		t.Errorf("Confidence = %v, want %v", got.Confidence, boostCeiling)
	}
	if !reflect.DeepEqual(got.MatchedToolIDs, []string{"R58M"}) {
		t.Errorf("MatchedToolIDs = %v, want [R58M]", got.MatchedToolIDs)
	}
	if len(notes) != 1 {
		t.Errorf("notes = %v, want 1", notes)
	}
	if rec.Mode != evidence.ModeLikelyAndroid || rec.MatchedToolIDs != nil {
		t.Error("input record was modified")
	}

	// end to end the enriched record classifies as CORRELATED
	dossiers, _ := evidence.Normalize([]evidence.RawDeviceRecord{got})
	if dossiers[0].CorrelationBadge != evidence.BadgeCorrelated {
		t.Errorf("badge = %q, want %q", dossiers[0].CorrelationBadge, evidence.BadgeCorrelated)
	}
}

func TestCorrelate_FastbootSetsBootloader(t *testing.T) {
	t.Parallel()

	b := Parse(Output{ADB: strPtr(""), Fastboot: strPtr("FB01\tfastboot\n")})
	got, _ := b.Correlate(evidence.RawDeviceRecord{
		ID:         "usb-2",
		Serial:     strPtr("FB01"),
		Mode:       evidence.ModeUnconfirmed,
		Confidence: 0.6,
	})
	if got.Mode != evidence.ModeBootloader {
		t.Errorf("Mode = %q, want %q", got.Mode, evidence.ModeBootloader)
	}
	dossiers, _ := evidence.Normalize([]evidence.RawDeviceRecord{got})
	if dossiers[0].CorrelationBadge != evidence.BadgeCorrelatedWeak {
		t.Errorf("badge = %q, want %q", dossiers[0].CorrelationBadge, evidence.BadgeCorrelatedWeak)
	}
}

func TestCorrelate_IdeviceMatch(t *testing.T) {
	t.Parallel()

	b := Parse(Output{IDevice: strPtr("UDID-1\n")})
	got, _ := b.Correlate(evidence.RawDeviceRecord{
		ID:         "usb-3",
		Serial:     strPtr("UDID-1"),
		VendorID:   0x05ac,
		Mode:       evidence.ModeUnconfirmed,
		Confidence: 0.75,
	})
	if got.Mode != evidence.ModeConfirmedIOS || got.Platform != evidence.PlatformIOS {
		t.Errorf("Mode/Platform = %q/%q, want confirmed_ios/ios", got.Mode, got.Platform)
	}
}

func TestCorrelate_MultipleBridgesDedupeAndCap(t *testing.T) {
	t.Parallel()

	b := Parse(Output{
		ADB:      strPtr("S1 device\n"),
		Fastboot: strPtr("S1 fastboot\n"),
	})
	got, notes := b.Correlate(evidence.RawDeviceRecord{
		ID:             "usb-4",
		Serial:         strPtr("S1"),
		Mode:           evidence.ModeUnconfirmed,
		Confidence:     0.7,
		MatchedToolIDs: []string{"S1"},
	})
	if !reflect.DeepEqual(got.MatchedToolIDs, []string{"S1"}) {
		t.Errorf("MatchedToolIDs = %v, want [S1]", got.MatchedToolIDs)
	}
	if got.Confidence != boostCeiling {
		t.Errorf("Confidence = %v, want %v", got.Confidence, boostCeiling)
	}
	if len(notes) != 2 {
		t.Errorf("notes = %v, want 2", notes)
	}
}

func TestCorrelate_NoSerialOrMissingBridge(t *testing.T) {
	t.Parallel()

	b := Parse(Output{})
	rec := evidence.RawDeviceRecord{ID: "x", Serial: strPtr("S1"), Mode: evidence.ModeUnconfirmed, Confidence: 0.3}
	got, notes := b.Correlate(rec)
	if !reflect.DeepEqual(got, rec) || notes != nil {
		t.Errorf("absent bridges changed record: %+v %v", got, notes)
	}

	b = Parse(Output{ADB: strPtr("S1 device\n")})
	rec = evidence.RawDeviceRecord{ID: "y", Mode: evidence.ModeUnconfirmed, Confidence: 0.3}
	got, notes = b.Correlate(rec)
	if !reflect.DeepEqual(got, rec) || notes != nil {
		t.Errorf("serial-less record changed: %+v %v", got, notes)
	}
}

func TestBoost_NeverLowers(t *testing.T) {
	t.Parallel()

	tests := []struct{ in, want float64 }{
		{0.5, 0.65},
		{0.9, 0.95},
		{0.99, 0.99},
	}
	for _, tt := range tests {
		if got := boost(tt.in); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("boost(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestCorrelateAll(t *testing.T) {
	t.Parallel()

	b := Parse(Output{ADB: strPtr("A device\n")})
	out, notes := b.CorrelateAll([]evidence.RawDeviceRecord{
		{ID: "1", Serial: strPtr("A"), Mode: evidence.ModeUnconfirmed},
		{ID: "2", Serial: strPtr("B"), Mode: evidence.ModeUnconfirmed},
	})
	if len(out) != 2 || out[0].ID != "1" || out[1].ID != "2" {
		t.Fatalf("out = %+v", out)
	}
	if len(notes) != 1 || len(notes["1"]) != 1 {
		t.Errorf("notes = %v, want one note for id 1", notes)
	}
}
