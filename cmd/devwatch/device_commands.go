package main

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/linnemanlabs/devwatch/internal/scan"
	"github.com/linnemanlabs/devwatch/internal/tracker"
)

func newSubmitCommand(opts *rootOptions) *cobra.Command {
	var notes bool

	cmd := &cobra.Command{
		Use:   "submit [file|-]",
		Short: "Send a scan to the server and print its report",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := readScan(cmd, args)
			if err != nil {
				return err
			}

			var report scan.Report
			if err := newAPIClient(opts).do(cmd.Context(), "POST", "/api/v1/scans", req, &report); err != nil {
				return err
			}

			if opts.json {
				return writeJSON(cmd, &report)
			}
			printReport(cmd, &report, notes)
			return nil
		},
	}
	cmd.Flags().BoolVar(&notes, "notes", false, "Print correlation notes under the table")
	return cmd
}

func newDevicesCommand(opts *rootOptions) *cobra.Command {
	var order string

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List tracked devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := tracker.ParseOrder(order); err != nil {
				return err
			}

			var resp struct {
				Devices []tracker.TrackedDevice `json:"devices"`
			}
			path := "/api/v1/devices?order=" + url.QueryEscape(order)
			if err := newAPIClient(opts).do(cmd.Context(), "GET", path, nil, &resp); err != nil {
				return err
			}

			if opts.json {
				return writeJSON(cmd, resp.Devices)
			}
			if len(resp.Devices) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No devices tracked")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderDevices(resp.Devices))
			return nil
		},
	}
	cmd.Flags().StringVar(&order, "order", string(tracker.OrderInserted), "Sort order: inserted, last_updated, confidence, id")
	return cmd
}

func newDeviceCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "device <id>",
		Short: "Show one tracked device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var dev tracker.TrackedDevice
			if err := newAPIClient(opts).do(cmd.Context(), "GET", "/api/v1/devices/"+url.PathEscape(args[0]), nil, &dev); err != nil {
				return err
			}

			if opts.json {
				return writeJSON(cmd, &dev)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderDeviceDetail(&dev))
			for _, n := range dev.CorrelationNotes {
				fmt.Fprintf(out, "  - %s\n", n)
			}
			return nil
		},
	}
}

func newEvictCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "evict <id>",
		Short: "Remove a device from the tracker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newAPIClient(opts).do(cmd.Context(), "DELETE", "/api/v1/devices/"+url.PathEscape(args[0]), nil, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Evicted %s\n", args[0])
			return nil
		},
	}
}

func renderDevices(devices []tracker.TrackedDevice) string {
	headers := []string{"ID", "Platform", "Mode", "Confidence", "Badge", "Updates", "Last Updated"}
	rows := make([][]string, 0, len(devices))
	for i := range devices {
		d := &devices[i]
		rows = append(rows, []string{
			d.ID,
			string(d.Platform),
			string(d.DeviceMode),
			fmt.Sprintf("%.2f", d.Confidence),
			string(d.CorrelationBadge),
			strconv.Itoa(d.Updates),
			d.LastUpdated.Local().Format(time.DateTime),
		})
	}
	return renderTable(headers, rows, []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignLeft})
}

func renderDeviceDetail(d *tracker.TrackedDevice) string {
	rows := [][]string{
		{"ID", d.ID},
		{"Platform", string(d.Platform)},
		{"Mode", string(d.DeviceMode)},
		{"Confidence", fmt.Sprintf("%.2f", d.Confidence)},
		{"Badge", string(d.CorrelationBadge)},
		{"Matched", joinOrDash(d.MatchedIDs)},
		{"Serial", deref(d.Serial, "-")},
		{"Vendor ID", hexOrDash(d.VendorID)},
		{"Product ID", hexOrDash(d.ProductID)},
		{"First Seen", d.FirstSeen.Local().Format(time.DateTime)},
		{"Last Updated", d.LastUpdated.Local().Format(time.DateTime)},
		{"Updates", strconv.Itoa(d.Updates)},
	}
	return renderTable([]string{"Field", "Value"}, rows, nil)
}

func deref(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}

func hexOrDash(v *uint16) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("0x%04x", *v)
}
