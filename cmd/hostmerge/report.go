package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/hostmerge/internal/report"
)

var reportJSONOutput bool

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize the stored inventory",
	Long:  "Prints OS distribution, host activity and the largest network segments over the merged inventory.",
	Args:  cobra.NoArgs,
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().BoolVar(&reportJSONOutput, "json", false,
		"Output in JSON format")
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	summary, err := report.Generate(ctx, rt.Store, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("generate report: %w", err)
	}

	if reportJSONOutput {
		return printJSON(cmd.OutOrStdout(), summary)
	}

	printSummary(cmd.OutOrStdout(), summary)
	return nil
}

func printSummary(out io.Writer, s *report.Summary) {
	fmt.Fprintf(out, "Assets: %d\n\n", s.TotalAssets)

	fmt.Fprintln(out, "OS distribution:")
	w := newTabWriter(out)
	for _, platform := range []string{"Linux", "Windows", "Unknown"} {
		if count, ok := s.OSDistribution[platform]; ok {
			fmt.Fprintf(w, "  %s\t%d\n", platform, count)
		}
	}
	for platform, count := range s.OSDistribution {
		switch platform {
		case "Linux", "Windows", "Unknown":
			continue
		}
		fmt.Fprintf(w, "  %s\t%d\n", platform, count)
	}
	w.Flush()

	fmt.Fprintf(out, "\nActivity (as of %s):\n", s.Activity.ReferenceDate)
	w = newTabWriter(out)
	fmt.Fprintf(w, "  active\t%d\n", s.Activity.Active)
	fmt.Fprintf(w, "  stale\t%d\n", s.Activity.Stale)
	w.Flush()

	if len(s.NetworkSegments) > 0 {
		fmt.Fprintln(out, "\nLargest network segments:")
		w = newTabWriter(out)
		fmt.Fprintln(w, "  GATEWAY\tHOSTS")
		for _, seg := range s.NetworkSegments {
			fmt.Fprintf(w, "  %s\t%d\n", seg.Gateway, seg.Hosts)
		}
		w.Flush()
	}
}

// printJSON marshals v to JSON and writes to the given writer.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newTabWriter returns a configured tabwriter for aligned columns.
func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}
