package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/facelog/internal/facematch"
	"github.com/kozaktomas/facelog/internal/recognition"
)

var matchCmd = &cobra.Command{
	Use:   "match <image>",
	Short: "Match a face against the enrolled identities",
	Long: `Run a face login attempt from the command line.
The face in the image is compared against every enrolled identity and the
best match is accepted when its correlation exceeds the threshold. The
attempt is recorded in the recognition log like a web login.`,
	Args: cobra.ExactArgs(1),
	RunE: runMatch,
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().Float64("threshold", 0, "Acceptance threshold (overrides FACE_ACCEPT_THRESHOLD)")
	matchCmd.Flags().Bool("json", false, "Output as JSON")
}

// MatchOutput is the JSON form of a match decision.
type MatchOutput struct {
	Accepted   bool     `json:"accepted"`
	Reason     string   `json:"reason"`
	IdentityID string   `json:"identity_id,omitempty"`
	Name       string   `json:"name,omitempty"`
	Score      *float64 `json:"score"`
	Compared   int      `json:"compared"`
	Skipped    int      `json:"skipped"`
	DurationMs int64    `json:"duration_ms"`
}

func runMatch(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}

	var opts []recognition.Option
	if cmd.Flags().Changed("threshold") {
		opts = append(opts, recognition.WithMatcherOptions(facematch.WithThreshold(mustGetFloat64(cmd, "threshold"))))
	}

	a, err := openApp(cmd.Context(), opts...)
	if err != nil {
		return err
	}
	defer a.Close()

	start := time.Now()
	result, err := a.service.Authenticate(cmd.Context(), data)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	out := MatchOutput{
		Accepted:   result.Accepted,
		Reason:     string(result.Reason),
		IdentityID: result.IdentityID,
		Name:       result.Name,
		Score:      result.Score.Ptr(),
		Compared:   result.Compared,
		Skipped:    result.Skipped,
		DurationMs: elapsed.Milliseconds(),
	}
	if mustGetBool(cmd, "json") {
		return outputJSON(out)
	}

	if out.Accepted {
		fmt.Printf("Accepted: %s (%s)\n", out.IdentityID, out.Name)
	} else {
		fmt.Printf("Rejected: %s\n", out.Reason)
		if result.HasCandidate() {
			fmt.Printf("  Best candidate: %s (%s)\n", out.IdentityID, out.Name)
		}
	}
	fmt.Printf("  Score:     %s (threshold %.2f)\n", result.Score, a.service.Matcher().Threshold())
	fmt.Printf("  Compared:  %d\n", out.Compared)
	if out.Skipped > 0 {
		fmt.Printf("  Skipped:   %d\n", out.Skipped)
	}
	fmt.Printf("  Duration:  %s\n", formatDuration(elapsed))
	return nil
}
