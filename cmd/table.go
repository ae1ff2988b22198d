package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/tri-cli/internal/envirofacts"
	"github.com/sells-group/tri-cli/internal/tabular"
)

var tableCmd = &cobra.Command{
	Use:   "table",
	Short: "Fetch and filter Envirofacts tables",
}

var tableCountCmd = &cobra.Command{
	Use:   "count TABLE",
	Short: "Print a table's total row count",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		table, err := newEnvirofactsClient().OpenTable(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), table.RowCount())
		return nil
	},
}

var (
	tableOut   string
	tableLimit int
)

var tableFetchCmd = &cobra.Command{
	Use:   "fetch TABLE",
	Short: "Fetch a complete table, paginating as needed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		table, err := newEnvirofactsClient().OpenTable(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		frame, err := table.FetchAll(cmd.Context())
		if err != nil {
			return err
		}

		zap.L().Info("fetched table",
			zap.String("table", table.Name()),
			zap.Int("rows", frame.Len()),
		)
		return writeFrame(cmd, frame)
	},
}

var (
	filterEq []string
	filterIn []string
)

var tableFilterCmd = &cobra.Command{
	Use:   "filter TABLE",
	Short: "Fetch rows matching column filters",
	Long:  "Applies --eq filters server-side and --in filters client-side. Ambiguous server responses escalate to a full paginated scan automatically.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filters, err := parseFilters(filterEq, filterIn)
		if err != nil {
			return err
		}

		table, err := newEnvirofactsClient().OpenTable(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		frame, err := table.Filter(cmd.Context(), filters)
		if err != nil {
			return err
		}

		zap.L().Info("filtered table",
			zap.String("table", table.Name()),
			zap.Int("rows", frame.Len()),
		)
		return writeFrame(cmd, frame)
	},
}

// parseFilters turns --eq COL=VALUE and --in COL=V1,V2 flags into a filter spec.
func parseFilters(eq, in []string) (envirofacts.Filters, error) {
	filters := envirofacts.Filters{
		Equals: map[string]string{},
		Within: map[string][]string{},
	}
	for _, spec := range eq {
		col, val, ok := strings.Cut(spec, "=")
		if !ok || col == "" {
			return envirofacts.Filters{}, fmt.Errorf("invalid --eq %q, want COL=VALUE", spec)
		}
		filters.Equals[col] = val
	}
	for _, spec := range in {
		col, vals, ok := strings.Cut(spec, "=")
		if !ok || col == "" || vals == "" {
			return envirofacts.Filters{}, fmt.Errorf("invalid --in %q, want COL=V1,V2", spec)
		}
		filters.Within[col] = strings.Split(vals, ",")
	}
	return filters, nil
}

// writeFrame writes the frame as CSV to --out, or renders it to stdout.
func writeFrame(cmd *cobra.Command, frame *tabular.Frame) error {
	if tableOut != "" {
		f, err := os.Create(tableOut)
		if err != nil {
			return err
		}
		defer f.Close() //nolint:errcheck
		return frame.WriteCSV(f)
	}
	frame.Render(cmd.OutOrStdout(), tableLimit)
	return nil
}

func init() {
	for _, c := range []*cobra.Command{tableFetchCmd, tableFilterCmd} {
		c.Flags().StringVar(&tableOut, "out", "", "write CSV to file instead of rendering")
		c.Flags().IntVar(&tableLimit, "limit", 50, "max rows to render (0 = all)")
	}
	tableFilterCmd.Flags().StringArrayVar(&filterEq, "eq", nil, "server-side filter COL=VALUE (repeatable)")
	tableFilterCmd.Flags().StringArrayVar(&filterIn, "in", nil, "client-side filter COL=V1,V2 (repeatable)")

	tableCmd.AddCommand(tableCountCmd, tableFetchCmd, tableFilterCmd)
	rootCmd.AddCommand(tableCmd)
}
