package tempograph

import (
	"github.com/spf13/cobra"

	"github.com/soundprediction/tempograph/pkg/temporal"
)

var (
	snapshotAt    string
	snapshotTypes []string

	snapshotCmd = &cobra.Command{
		Use:   "snapshot",
		Short: "Reconstruct the graph state at an instant",
		RunE: func(cmd *cobra.Command, args []string) error {
			at, err := parseTime(snapshotAt)
			if err != nil {
				return err
			}

			client, _, err := newClient()
			if err != nil {
				return err
			}
			defer client.Close(cmd.Context())

			snapshot, err := client.Snapshot(cmd.Context(), at, &temporal.SnapshotOptions{
				EntityTypes: snapshotTypes,
			})
			if err != nil {
				return err
			}
			return printOutput(snapshot)
		},
	}

	diffFrom string
	diffTo   string

	diffCmd = &cobra.Command{
		Use:   "diff",
		Short: "Diff the graph state between two instants",
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := parseTime(diffFrom)
			if err != nil {
				return err
			}
			to, err := parseTime(diffTo)
			if err != nil {
				return err
			}

			client, _, err := newClient()
			if err != nil {
				return err
			}
			defer client.Close(cmd.Context())

			diff, err := client.CompareSnapshots(cmd.Context(), from, to, nil)
			if err != nil {
				return err
			}
			return printOutput(diff)
		},
	}
)

func init() {
	snapshotCmd.Flags().StringVar(&snapshotAt, "at", "", "instant to reconstruct (RFC3339 or YYYY-MM-DD, default now)")
	snapshotCmd.Flags().StringSliceVar(&snapshotTypes, "type", nil, "restrict to entities carrying any of these labels")
	rootCmd.AddCommand(snapshotCmd)

	diffCmd.Flags().StringVar(&diffFrom, "from", "", "earlier instant (RFC3339 or YYYY-MM-DD)")
	diffCmd.Flags().StringVar(&diffTo, "to", "", "later instant (RFC3339 or YYYY-MM-DD, default now)")
	diffCmd.MarkFlagRequired("from")
	rootCmd.AddCommand(diffCmd)
}
