package cmd

import (
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var signaturesCmd = &cobra.Command{
	Use:   "signatures",
	Short: "Manage cached face signatures",
}

var signaturesRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Recompute every cached signature from the reference images",
	Long: `Recompute the cached face signature of every enrolled identity from its
stored reference image and rebuild the nearest-identity index. Identities
whose reference image is missing or no longer contains a face are reported
and keep their previous signature.`,
	Args: cobra.NoArgs,
	RunE: runSignaturesRebuild,
}

func init() {
	rootCmd.AddCommand(signaturesCmd)
	signaturesCmd.AddCommand(signaturesRebuildCmd)

	signaturesRebuildCmd.Flags().Bool("json", false, "Output as JSON")
}

// RebuildOutput is the JSON form of a signature rebuild.
type RebuildOutput struct {
	Success    bool            `json:"success"`
	Total      int             `json:"total"`
	Updated    int             `json:"updated"`
	Stale      int             `json:"stale"`
	Indexed    int             `json:"indexed"`
	Failures   []RebuildFailed `json:"failures,omitempty"`
	DurationMs int64           `json:"duration_ms"`
}

// RebuildFailed is an identity the rebuild skipped.
type RebuildFailed struct {
	IdentityID string `json:"identity_id"`
	Error      string `json:"error"`
}

func runSignaturesRebuild(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	startTime := time.Now()

	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	var bar *progressbar.ProgressBar
	progress := func(done, total int) {
		if jsonOutput {
			return
		}
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetDescription("Rebuilding signatures"),
				progressbar.OptionShowCount(),
				progressbar.OptionShowIts(),
				progressbar.OptionSetItsString("identities"),
				progressbar.OptionShowElapsedTimeOnFinish(),
				progressbar.OptionSetPredictTime(true),
				progressbar.OptionFullWidth(),
			)
		}
		_ = bar.Set(done)
	}

	report, err := a.service.RebuildSignatures(cmd.Context(), progress)
	if err != nil {
		return fmt.Errorf("signature rebuild failed: %w", err)
	}
	if bar != nil {
		_ = bar.Finish()
	}
	a.saveIndex()

	result := RebuildOutput{
		Success:    len(report.Failures) == 0,
		Total:      report.Total,
		Updated:    report.Updated,
		Stale:      report.Stale,
		Indexed:    a.service.Index().Count(),
		DurationMs: time.Since(startTime).Milliseconds(),
	}
	for _, f := range report.Failures {
		result.Failures = append(result.Failures, RebuildFailed{IdentityID: f.IdentityID, Error: f.Err.Error()})
	}

	if jsonOutput {
		return outputJSON(result)
	}

	fmt.Println("\nRebuild complete!")
	fmt.Printf("  Identities:  %d\n", result.Total)
	fmt.Printf("  Updated:     %d\n", result.Updated)
	if result.Stale > 0 {
		fmt.Printf("  Re-enrolled: %d\n", result.Stale)
	}
	fmt.Printf("  Indexed:     %d\n", result.Indexed)
	fmt.Printf("  Duration:    %s\n", formatDuration(time.Since(startTime)))
	if len(result.Failures) > 0 {
		fmt.Printf("\n%d identities could not be rebuilt:\n", len(result.Failures))
		for _, f := range result.Failures {
			fmt.Printf("  %s: %s\n", f.IdentityID, f.Error)
		}
	}
	return nil
}
