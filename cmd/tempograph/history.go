package tempograph

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history [entity|relationship] [id]",
	Short: "Show the version history of an entity or relationship",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := newClient()
		if err != nil {
			return err
		}
		defer client.Close(cmd.Context())

		switch args[0] {
		case "entity":
			history, err := client.EntityHistory(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			return printOutput(history)
		case "relationship":
			history, err := client.RelationshipHistory(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			return printOutput(history)
		default:
			return fmt.Errorf("unknown record kind %q, want entity or relationship", args[0])
		}
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
}

// parseTime accepts RFC3339 or a bare date; empty means now.
func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Now().UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("cannot parse time %q, want RFC3339 or YYYY-MM-DD", value)
}
