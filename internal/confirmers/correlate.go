package confirmers

import (
	"fmt"
	"slices"

	"github.com/linnemanlabs/devwatch/internal/evidence"
)

const (
	// matchBoost is added to a record's confidence per bridge that lists its serial.
	matchBoost = 0.15
	// boostCeiling bounds what bridge matches alone can lift confidence to.
	boostCeiling = 0.95
)

// Output is the captured stdout of each bridge. A nil field means the bridge
// was not available to the probe; an empty string means it ran and listed
// nothing.
type Output struct {
	ADB      *string `json:"adb,omitempty"`
	Fastboot *string `json:"fastboot,omitempty"`
	IDevice  *string `json:"idevice_id,omitempty"`
}

// bridge is one parsed device list.
type bridge struct {
	name    string
	present bool
	ids     map[string]bool
}

func newBridge(name string, out *string, parse func(string) []string) bridge {
	b := bridge{name: name, present: out != nil, ids: map[string]bool{}}
	if out != nil {
		for _, id := range parse(*out) {
			b.ids[id] = true
		}
	}
	return b
}

func (b bridge) lists(serial string) bool {
	return b.present && b.ids[serial]
}

// Bridges holds the parsed device lists for one scan.
type Bridges struct {
	adb      bridge
	fastboot bridge
	idevice  bridge
}

// Parse parses every available bridge output.
func Parse(o Output) *Bridges {
	return &Bridges{
		adb:      newBridge("adb", o.ADB, ParseADB),
		fastboot: newBridge("fastboot", o.Fastboot, ParseFastboot),
		idevice:  newBridge("idevice_id", o.IDevice, ParseIdevice),
	}
}

// Correlate matches rec's serial against every bridge. Each listing bridge
// adds the serial to MatchedToolIDs, raises confidence and may upgrade the
// mode. Records without a serial are returned unchanged. rec is not modified.
func (b *Bridges) Correlate(rec evidence.RawDeviceRecord) (evidence.RawDeviceRecord, []string) {
	if rec.Serial == nil || *rec.Serial == "" {
		return rec, nil
	}
	serial := *rec.Serial
	rec.MatchedToolIDs = slices.Clone(rec.MatchedToolIDs)

	var notes []string
	hit := func(br bridge) {
		if !slices.Contains(rec.MatchedToolIDs, serial) {
			rec.MatchedToolIDs = append(rec.MatchedToolIDs, serial)
		}
		rec.Confidence = boost(rec.Confidence)
		notes = append(notes, fmt.Sprintf("%s device id matches USB serial %s", br.name, serial))
	}

	if b.adb.lists(serial) {
		hit(b.adb)
		if rec.Mode == evidence.ModeUnconfirmed || rec.Mode == evidence.ModeLikelyAndroid || !rec.Mode.Known() {
			rec.Mode = evidence.ModeConfirmedAndroid
		}
		if rec.Platform != evidence.PlatformIOS {
			rec.Platform = evidence.PlatformAndroid
		}
	}
	if b.fastboot.lists(serial) {
		hit(b.fastboot)
		rec.Mode = evidence.ModeBootloader
		if rec.Platform != evidence.PlatformIOS {
			rec.Platform = evidence.PlatformAndroid
		}
	}
	if b.idevice.lists(serial) {
		hit(b.idevice)
		if !rec.Mode.SystemConfirmed() {
			rec.Mode = evidence.ModeConfirmedIOS
		}
		rec.Platform = evidence.PlatformIOS
	}
	return rec, notes
}

// CorrelateAll runs Correlate over records, returning the enriched records in
// order and the notes keyed by record id.
func (b *Bridges) CorrelateAll(records []evidence.RawDeviceRecord) ([]evidence.RawDeviceRecord, map[string][]string) {
	out := make([]evidence.RawDeviceRecord, 0, len(records))
	notes := map[string][]string{}
	for _, rec := range records {
		enriched, n := b.Correlate(rec)
		out = append(out, enriched)
		if len(n) > 0 {
			notes[rec.ID] = append(notes[rec.ID], n...)
		}
	}
	return out, notes
}

// boost raises c by matchBoost up to boostCeiling, never lowering it.
func boost(c float64) float64 {
	return max(c, min(c+matchBoost, boostCeiling))
}
