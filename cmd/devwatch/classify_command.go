package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/devwatch/internal/evidence"
	"github.com/linnemanlabs/devwatch/internal/scan"
)

// offline classification has no request size concerns
const classifyMaxDevices = 1 << 20

func newClassifyCommand(opts *rootOptions) *cobra.Command {
	var (
		strong float64
		likely float64
		notes  bool
	)

	cmd := &cobra.Command{
		Use:   "classify [file|-]",
		Short: "Classify a scan locally and print one dossier per device",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			th, err := parseThresholds(strong, likely)
			if err != nil {
				return err
			}
			req, err := readScan(cmd, args)
			if err != nil {
				return err
			}

			svc := scan.NewService(log.Nop(), scan.Options{
				Normalizer: evidence.NewNormalizer(th),
				MaxDevices: classifyMaxDevices,
			})
			report, err := svc.Process(cmd.Context(), req)
			if err != nil {
				return err
			}

			if opts.json {
				return writeJSON(cmd, report)
			}
			printReport(cmd, report, notes)
			return nil
		},
	}

	cmd.Flags().Float64Var(&strong, "strong", evidence.DefaultThresholds.Strong, "Minimum confidence for CORRELATED")
	cmd.Flags().Float64Var(&likely, "likely", evidence.DefaultThresholds.Likely, "Minimum confidence for LIKELY")
	cmd.Flags().BoolVar(&notes, "notes", false, "Print correlation notes under the table")

	return cmd
}

func printReport(cmd *cobra.Command, report *scan.Report, notes bool) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderDossiers(report.Dossiers))
	fmt.Fprintln(out, summaryLine(report.Summary))
	if len(report.NewDevices) > 0 {
		fmt.Fprintf(out, "New devices: %s\n", strings.Join(report.NewDevices, ", "))
	}
	if notes {
		for i := range report.Dossiers {
			d := &report.Dossiers[i]
			fmt.Fprintf(out, "\n%s\n", d.ID)
			for _, n := range d.CorrelationNotes {
				fmt.Fprintf(out, "  - %s\n", n)
			}
			for _, n := range report.BridgeNotes[d.ID] {
				fmt.Fprintf(out, "  - %s\n", n)
			}
		}
	}
}

func renderDossiers(dossiers []evidence.Dossier) string {
	headers := []string{"ID", "Platform", "Mode", "Confidence", "Badge", "Matched"}
	rows := make([][]string, 0, len(dossiers))
	for _, d := range dossiers {
		rows = append(rows, []string{
			d.ID,
			string(d.Platform),
			string(d.DeviceMode),
			fmt.Sprintf("%.2f", d.Confidence),
			string(d.CorrelationBadge),
			joinOrDash(d.MatchedIDs),
		})
	}
	return renderTable(headers, rows, []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft})
}

func summaryLine(s evidence.Summary) string {
	return fmt.Sprintf("%d devices: %d correlated, %d system confirmed, %d unconfirmed",
		s.Total, s.Correlated, s.SystemConfirmed, s.Unconfirmed)
}

func joinOrDash(ids []string) string {
	if len(ids) == 0 {
		return "-"
	}
	return strings.Join(ids, ", ")
}
