package tempograph

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/soundprediction/tempograph/pkg/export"
	"github.com/soundprediction/tempograph/pkg/types"
)

var (
	exportFormat string
	exportOut    string

	exportCmd = &cobra.Command{
		Use:   "export [entities|relationships|conflicts]",
		Short: "Archive version history or the conflict log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, cfg, err := newClient()
			if err != nil {
				return err
			}
			defer client.Close(cmd.Context())

			if exportFormat == "json" {
				if exportOut == "" {
					return fmt.Errorf("json export requires --out")
				}
				var count int
				switch args[0] {
				case "entities":
					count, err = export.WriteVersionHistoryJSON(cmd.Context(), client.Store(), types.KindEntity, exportOut)
				case "relationships":
					count, err = export.WriteVersionHistoryJSON(cmd.Context(), client.Store(), types.KindRelationship, exportOut)
				case "conflicts":
					count, err = export.WriteConflictLogJSON(cmd.Context(), client.ConflictLog(), exportOut)
				default:
					return fmt.Errorf("unknown export target %q", args[0])
				}
				if err != nil {
					return err
				}
				return printOutput(map[string]interface{}{"path": exportOut, "records": count})
			}

			baseDir := exportOut
			if baseDir == "" {
				baseDir = cfg.Export.ParquetPath
			}
			writer, err := export.NewParquetArchiveWriter(baseDir)
			if err != nil {
				return err
			}

			var path string
			var count int
			switch args[0] {
			case "entities":
				path, count, err = writer.WriteVersionHistory(cmd.Context(), client.Store(), types.KindEntity)
			case "relationships":
				path, count, err = writer.WriteVersionHistory(cmd.Context(), client.Store(), types.KindRelationship)
			case "conflicts":
				path, count, err = writer.WriteConflictLog(cmd.Context(), client.ConflictLog())
			default:
				return fmt.Errorf("unknown export target %q", args[0])
			}
			if err != nil {
				return err
			}
			return printOutput(map[string]interface{}{"path": path, "records": count})
		},
	}
)

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "parquet", "archive format (parquet, json)")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output path (json) or directory (parquet)")
	rootCmd.AddCommand(exportCmd)
}
