package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var identitiesCmd = &cobra.Command{
	Use:   "identities",
	Short: "Manage enrolled identities",
}

var identitiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled identities",
	Args:  cobra.NoArgs,
	RunE:  runIdentitiesList,
}

var identitiesDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an identity and its reference image",
	Args:  cobra.ExactArgs(1),
	RunE:  runIdentitiesDelete,
}

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show the newest face login attempts",
	Args:  cobra.NoArgs,
	RunE:  runLogs,
}

func init() {
	rootCmd.AddCommand(identitiesCmd)
	rootCmd.AddCommand(logsCmd)
	identitiesCmd.AddCommand(identitiesListCmd)
	identitiesCmd.AddCommand(identitiesDeleteCmd)

	identitiesListCmd.Flags().Bool("json", false, "Output as JSON")
	logsCmd.Flags().Int("limit", 20, "Number of attempts to show")
	logsCmd.Flags().Bool("json", false, "Output as JSON")
}

// IdentityOutput is the JSON form of an enrolled identity.
type IdentityOutput struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	ImageSHA256  string    `json:"image_sha256"`
	HasSignature bool      `json:"has_signature"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func runIdentitiesList(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	identities, err := a.service.ListIdentities(cmd.Context())
	if err != nil {
		return err
	}

	out := make([]IdentityOutput, 0, len(identities))
	for _, identity := range identities {
		out = append(out, IdentityOutput{
			ID:           identity.ID,
			Name:         identity.Name,
			ImageSHA256:  identity.ImageSHA256,
			HasSignature: identity.HasSignature(),
			CreatedAt:    identity.CreatedAt,
			UpdatedAt:    identity.UpdatedAt,
		})
	}

	if mustGetBool(cmd, "json") {
		return outputJSON(out)
	}

	if len(out) == 0 {
		fmt.Println("No identities enrolled")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSIGNATURE\tUPDATED")
	for _, o := range out {
		signature := "cached"
		if !o.HasSignature {
			signature = "missing"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", o.ID, o.Name, signature, o.UpdatedAt.Format(time.DateTime))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\n%d identities\n", len(out))
	return nil
}

func runIdentitiesDelete(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.service.LoadIndex(cmd.Context()); err != nil {
		return err
	}
	if err := a.service.Remove(cmd.Context(), args[0]); err != nil {
		return err
	}
	a.saveIndex()

	fmt.Printf("Deleted identity %s\n", args[0])
	return nil
}

// LogOutput is the JSON form of a recognition log entry.
type LogOutput struct {
	ID         string    `json:"id"`
	IdentityID string    `json:"identity_id,omitempty"`
	Accepted   bool      `json:"accepted"`
	Reason     string    `json:"reason"`
	Score      *float64  `json:"score"`
	Compared   int       `json:"compared"`
	Skipped    int       `json:"skipped"`
	CreatedAt  time.Time `json:"created_at"`
}

func runLogs(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	entries, err := a.service.RecognitionLogs(cmd.Context(), mustGetInt(cmd, "limit"))
	if err != nil {
		return err
	}

	out := make([]LogOutput, 0, len(entries))
	for _, e := range entries {
		out = append(out, LogOutput(e))
	}

	if mustGetBool(cmd, "json") {
		return outputJSON(out)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tRESULT\tREASON\tCANDIDATE\tSCORE\tCOMPARED\tSKIPPED")
	for _, o := range out {
		result := "rejected"
		if o.Accepted {
			result = "accepted"
		}
		score := "n/a"
		if o.Score != nil {
			score = fmt.Sprintf("%.2f", *o.Score)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%d\n",
			o.CreatedAt.Format(time.DateTime), result, o.Reason, o.IdentityID, score, o.Compared, o.Skipped)
	}
	return w.Flush()
}
