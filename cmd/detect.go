package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/facelog/internal/config"
	"github.com/kozaktomas/facelog/internal/facematch"
	"github.com/kozaktomas/facelog/internal/fingerprint"
)

var detectCmd = &cobra.Command{
	Use:   "detect <image>",
	Short: "Detect faces in an image",
	Long: `Run face detection on an image without touching the identity store.
Every detector pass is tried and the pass that finds the most faces wins.
The largest face is the one enrollment and login would use.`,
	Args: cobra.ExactArgs(1),
	RunE: runDetect,
}

func init() {
	rootCmd.AddCommand(detectCmd)

	detectCmd.Flags().Bool("json", false, "Output as JSON")
}

// DetectOutput is the JSON form of a detection.
type DetectOutput struct {
	Image   string               `json:"image"`
	Width   int                  `json:"width"`
	Height  int                  `json:"height"`
	Profile string               `json:"profile,omitempty"`
	Faces   []fingerprint.Region `json:"faces"`
	Largest *fingerprint.Region  `json:"largest,omitempty"`
}

func runDetect(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}

	detector, err := newDetector(config.Load())
	if err != nil {
		return err
	}

	grid, err := fingerprint.Decode(data)
	if err != nil {
		return err
	}
	result := detector.DetectAll(grid)

	out := DetectOutput{
		Image:   args[0],
		Width:   grid.Width,
		Height:  grid.Height,
		Profile: result.Profile,
		Faces:   result.Regions,
	}
	if largest, ok := facematch.Largest(result.Regions); ok {
		out.Largest = &largest
	}

	if mustGetBool(cmd, "json") {
		return outputJSON(out)
	}

	if len(out.Faces) == 0 {
		fmt.Printf("No face detected in %s (%dx%d)\n", out.Image, out.Width, out.Height)
		return nil
	}
	fmt.Printf("Found %d face(s) in %s (%dx%d) with the %s pass\n", len(out.Faces), out.Image, out.Width, out.Height, out.Profile)
	for i, r := range out.Faces {
		marker := ""
		if out.Largest != nil && r.X == out.Largest.X && r.Y == out.Largest.Y && r.Width == out.Largest.Width {
			marker = "  (largest)"
		}
		fmt.Printf("  %d. %dx%d at %d,%d%s\n", i+1, r.Width, r.Height, r.X, r.Y, marker)
	}
	return nil
}
