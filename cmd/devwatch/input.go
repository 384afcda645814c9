package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/linnemanlabs/devwatch/internal/evidence"
	"github.com/linnemanlabs/devwatch/internal/scan"
)

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

// readScan loads a scan from the file named by args[0], or stdin when args
// is empty or "-".
func readScan(cmd *cobra.Command, args []string) (*scan.Request, error) {
	var (
		data []byte
		err  error
	)
	if len(args) == 0 || args[0] == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return nil, fmt.Errorf("read scan: %w", err)
	}
	return decodeScan(data)
}

// decodeScan accepts either a bare array of device records or a full scan
// object with optional bridge output.
func decodeScan(data []byte) (*scan.Request, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("scan input is empty")
	}

	var req scan.Request
	switch data[0] {
	case '[':
		if err := json.Unmarshal(data, &req.Devices); err != nil {
			return nil, fmt.Errorf("decode device records: %w", err)
		}
	case '{':
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, fmt.Errorf("decode scan: %w", err)
		}
	default:
		return nil, errors.New("scan input must be a JSON array or object")
	}
	return &req, nil
}

func parseThresholds(strong, likely float64) (evidence.Thresholds, error) {
	if !(strong > 0 && strong <= 1) {
		return evidence.Thresholds{}, fmt.Errorf("--strong %v must be in (0, 1]", strong)
	}
	if !(likely > 0 && likely < strong) {
		return evidence.Thresholds{}, fmt.Errorf("--likely %v must be in (0, %v)", likely, strong)
	}
	return evidence.Thresholds{Strong: strong, Likely: likely}, nil
}
