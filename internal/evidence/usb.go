package evidence

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	vendorPrefix  = "VendorID: 0x"
	productPrefix = "ProductID: 0x"
	serialPrefix  = "Serial: "
)

// USBEvidenceLines synthesizes the usb_evidence lines for rec. Vendor and
// product ids are always present; the serial line only when a serial was
// reported.
func USBEvidenceLines(rec *RawDeviceRecord) []string {
	lines := []string{
		fmt.Sprintf("%s%04x", vendorPrefix, rec.VendorID),
		fmt.Sprintf("%s%04x", productPrefix, rec.ProductID),
	}
	if rec.Serial != nil {
		lines = append(lines, serialPrefix+*rec.Serial)
	}
	return lines
}

// USBFacts are the raw USB attributes recoverable from usb_evidence lines.
type USBFacts struct {
	VendorID  *uint16
	ProductID *uint16
	Serial    *string
}

// ParseUSBEvidence recovers vendor id, product id and serial from lines
// produced by USBEvidenceLines. Lines that do not parse are ignored; the
// first occurrence of each field wins.
func ParseUSBEvidence(lines []string) USBFacts {
	var f USBFacts
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, vendorPrefix) && f.VendorID == nil:
			f.VendorID = parseHex16(strings.TrimPrefix(line, vendorPrefix))
		case strings.HasPrefix(line, productPrefix) && f.ProductID == nil:
			f.ProductID = parseHex16(strings.TrimPrefix(line, productPrefix))
		case strings.HasPrefix(line, serialPrefix) && f.Serial == nil:
			s := strings.TrimPrefix(line, serialPrefix)
			f.Serial = &s
		}
	}
	return f
}

func parseHex16(s string) *uint16 {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 16, 16)
	if err != nil {
		return nil
	}
	u := uint16(v)
	return &u
}
