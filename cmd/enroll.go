package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/facelog/internal/recognition"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll <image>",
	Short: "Enroll a reference face for an identity",
	Long: `Store the image as the reference face of an identity.
Enrolling an identity that already exists replaces its reference image.
The command warns when the new face looks like another enrolled identity.`,
	Args: cobra.ExactArgs(1),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().String("id", "", "Identity ID (required)")
	enrollCmd.Flags().String("name", "", "Display name (defaults to the current name or the ID)")
	enrollCmd.Flags().Bool("json", false, "Output as JSON")
	_ = enrollCmd.MarkFlagRequired("id")
}

// EnrollOutput is the JSON form of an enrollment.
type EnrollOutput struct {
	IdentityID      string   `json:"identity_id"`
	Name            string   `json:"name"`
	Replaced        bool     `json:"replaced"`
	Profile         string   `json:"profile"`
	Region          [4]int   `json:"region"`
	SimilarIdentity string   `json:"similar_identity,omitempty"`
	SimilarityScore *float64 `json:"similarity_score,omitempty"`
}

func runEnroll(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}

	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.service.LoadIndex(cmd.Context()); err != nil {
		return fmt.Errorf("failed to load signature index: %w", err)
	}

	result, err := a.service.Enroll(cmd.Context(), recognition.EnrollRequest{
		IdentityID: mustGetString(cmd, "id"),
		Name:       mustGetString(cmd, "name"),
		Image:      data,
		Format:     strings.TrimPrefix(filepath.Ext(args[0]), "."),
	})
	if err != nil {
		return err
	}
	a.saveIndex()

	out := EnrollOutput{
		IdentityID: result.Identity.ID,
		Name:       result.Identity.Name,
		Replaced:   result.Replaced,
		Profile:    result.Profile,
		Region:     [4]int{result.Region.X, result.Region.Y, result.Region.Width, result.Region.Height},
	}
	if result.Similar != nil {
		out.SimilarIdentity = result.Similar.IdentityID
		score := result.Similar.Correlation
		out.SimilarityScore = &score
	}

	if mustGetBool(cmd, "json") {
		return outputJSON(out)
	}

	action := "Enrolled"
	if out.Replaced {
		action = "Replaced reference for"
	}
	fmt.Printf("%s %s (%s)\n", action, out.IdentityID, out.Name)
	fmt.Printf("  Face:    %dx%d at %d,%d (%s pass)\n", out.Region[2], out.Region[3], out.Region[0], out.Region[1], out.Profile)
	if out.SimilarIdentity != "" {
		fmt.Printf("  Warning: looks like %s (correlation %.2f)\n", out.SimilarIdentity, *out.SimilarityScore)
	}
	return nil
}
