package tempograph

import (
	"github.com/spf13/cobra"

	"github.com/soundprediction/tempograph/pkg/types"
)

var (
	conflictsAt       string
	conflictsStrategy string
	conflictsResolve  bool
	conflictsApply    bool

	conflictsCmd = &cobra.Command{
		Use:   "conflicts",
		Short: "Detect and optionally resolve contradictions",
		Long: `Detects contradictions over the entity states active at an instant.
With --resolve each conflict is resolved using its default strategy (or the
one given with --strategy); with --apply resolved values are written back to
the graph store.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			at, err := parseTime(conflictsAt)
			if err != nil {
				return err
			}

			client, _, err := newClient()
			if err != nil {
				return err
			}
			defer client.Close(cmd.Context())

			entities, err := client.EntitiesAtTime(cmd.Context(), "", at, 0)
			if err != nil {
				return err
			}
			conflicts, err := client.DetectContradictions(cmd.Context(), entities)
			if err != nil {
				return err
			}
			if !conflictsResolve {
				return printOutput(conflicts)
			}

			resolutions, err := client.ResolveContradictions(cmd.Context(), conflicts, types.ResolutionStrategy(conflictsStrategy))
			if err != nil {
				return err
			}
			if conflictsApply {
				if _, err := client.ApplyResolutions(cmd.Context(), resolutions); err != nil {
					return err
				}
			}
			return printOutput(client.ConflictLog().Entries())
		},
	}
)

func init() {
	conflictsCmd.Flags().StringVar(&conflictsAt, "at", "", "instant whose active entities to check (default now)")
	conflictsCmd.Flags().StringVar(&conflictsStrategy, "strategy", "", "force one resolution strategy for every conflict")
	conflictsCmd.Flags().BoolVar(&conflictsResolve, "resolve", false, "resolve detected conflicts")
	conflictsCmd.Flags().BoolVar(&conflictsApply, "apply", false, "write resolutions back to the graph store")
	rootCmd.AddCommand(conflictsCmd)
}
