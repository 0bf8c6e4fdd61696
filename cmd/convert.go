package cmd

import (
	"fmt"

	"github.com/lehigh-university-libraries/datagen/internal/dataset"
	"github.com/spf13/cobra"
)

func newConvertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "convert <src> <dst>",
		Short: "Convert a dataset between JSONL and Parquet",
		Long: `Reads a dataset and writes it in the format implied by the destination
extension (.jsonl or .parquet).`,
		Example: `  datagen convert train_20250101_120000.jsonl train.parquet`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := dataset.ConvertFile(args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Converted %d records to %s\n", n, args[1])
			return nil
		},
	}
}
