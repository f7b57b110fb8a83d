package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/foldcrew/internal/sequence"
)

var preprocessCmd = &cobra.Command{
	Use:   "preprocess [file|-]",
	Short: "Validate and normalize a submission without folding",
	Long: `Parse a submission, drop chains that are not amino-acid sequences and
print the canonical preprocess result as JSON:

  {"structure_name": "...", "num_chains": N, "clean_sequences": [...]}

Accepts the same input and --name/--chains flags as 'foldcrew run'.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		source := "-"
		if len(args) > 0 {
			source = args[0]
		}
		req, err := readRequest(source, cmd.InOrStdin())
		if err != nil {
			return err
		}

		pre := sequence.Normalize(req.StructureName, req.NumChains, req.Sequences)
		data, err := sequence.MarshalResult(pre)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

func init() {
	preprocessCmd.Flags().StringVar(&runName, "name", "", "Structure name (default: first FASTA header or file name)")
	preprocessCmd.Flags().IntVar(&runChains, "chains", 0, "Declared chain count (default: number of submitted chains)")
}
