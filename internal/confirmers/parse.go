// Package confirmers turns the device lists printed by platform bridges
// (adb, fastboot, idevice_id) into tool ids and correlates them with USB
// records by serial. It only parses text a probe agent already captured; it
// never runs the tools.
package confirmers

import (
	"bufio"
	"strings"
)

// adb states that mean the device is reachable through the bridge.
var adbReachable = map[string]bool{
	"device":   true,
	"sideload": true,
	"recovery": true,
}

// ParseADB extracts serials from `adb devices -l` output. Devices in states
// like "unauthorized" or "offline" are skipped.
func ParseADB(stdout string) []string {
	var ids []string
	eachLine(stdout, func(line string) {
		if strings.HasPrefix(line, "List of devices") || strings.HasPrefix(line, "*") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) >= 2 && adbReachable[parts[1]] {
			ids = append(ids, parts[0])
		}
	})
	return ids
}

// ParseFastboot extracts serials from `fastboot devices` output.
func ParseFastboot(stdout string) []string {
	var ids []string
	eachLine(stdout, func(line string) {
		if parts := strings.Fields(line); len(parts) > 0 {
			ids = append(ids, parts[0])
		}
	})
	return ids
}

// ParseIdevice extracts UDIDs from `idevice_id -l` output, one per line.
func ParseIdevice(stdout string) []string {
	var ids []string
	eachLine(stdout, func(line string) {
		ids = append(ids, line)
	})
	return ids
}

func eachLine(s string, fn func(string)) {
	sc := bufio.NewScanner(strings.NewReader(s))
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			fn(line)
		}
	}
}
