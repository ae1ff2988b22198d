package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/tri-cli/internal/geography"
)

var coordsCmd = &cobra.Command{
	Use:   "coords DMS [DMS...]",
	Short: "Convert packed DMS coordinate strings to decimal degrees",
	Long:  "Converts TRI packed degrees-minutes-seconds values (e.g. 324528 or -0841530) to decimal degrees. Unparseable values print NaN.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, arg := range args {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%.8f\n", arg, geography.DMSToDecimal(arg))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(coordsCmd)
}
