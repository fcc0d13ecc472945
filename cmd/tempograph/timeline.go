package tempograph

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/soundprediction/tempograph/pkg/temporal"
)

var (
	timelineType        string
	timelineFrom        string
	timelineTo          string
	timelineGranularity string

	timelineCmd = &cobra.Command{
		Use:   "timeline",
		Short: "Count entity creation events per period",
		RunE: func(cmd *cobra.Command, args []string) error {
			var from, to time.Time
			var err error
			if timelineFrom != "" {
				if from, err = parseTime(timelineFrom); err != nil {
					return err
				}
			}
			if timelineTo != "" {
				if to, err = parseTime(timelineTo); err != nil {
					return err
				}
			}

			client, _, err := newClient()
			if err != nil {
				return err
			}
			defer client.Close(cmd.Context())

			timeline, err := client.Timeline(cmd.Context(), timelineType, from, to, temporal.Granularity(timelineGranularity))
			if err != nil {
				return err
			}
			return printOutput(timeline)
		},
	}
)

func init() {
	timelineCmd.Flags().StringVar(&timelineType, "type", "", "restrict to entities carrying this label")
	timelineCmd.Flags().StringVar(&timelineFrom, "from", "", "earliest creation date to count")
	timelineCmd.Flags().StringVar(&timelineTo, "to", "", "latest creation date to count")
	timelineCmd.Flags().StringVar(&timelineGranularity, "granularity", "month", "bucket width (day, week, month, year)")
	rootCmd.AddCommand(timelineCmd)
}
