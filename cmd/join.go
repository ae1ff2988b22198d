package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/tri-cli/internal/geography"
	"github.com/sells-group/tri-cli/internal/tabular"
)

var (
	joinCSV       string
	joinShapefile string
	joinLatCol    string
	joinLonCol    string
	joinOutCol    string
	joinNameField string
)

var joinCmd = &cobra.Command{
	Use:   "join",
	Short: "Tag facility rows with the region containing their coordinates",
	Long:  "Reads facility rows from a CSV, loads region polygons from a shapefile, and appends a column naming the region each facility falls inside.",
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(joinCSV)
		if err != nil {
			return err
		}
		defer f.Close() //nolint:errcheck

		frame, err := tabular.Decode(f)
		if err != nil {
			return err
		}

		regions, err := geography.LoadRegions(joinShapefile, joinNameField)
		if err != nil {
			return err
		}
		zap.L().Info("loaded regions",
			zap.String("shapefile", joinShapefile),
			zap.Int("regions", len(regions)),
		)

		joined, err := geography.JoinRegions(frame, joinLatCol, joinLonCol, joinOutCol, regions)
		if err != nil {
			return err
		}
		return writeFrame(cmd, joined)
	},
}

func init() {
	joinCmd.Flags().StringVar(&joinCSV, "csv", "", "facility CSV file")
	joinCmd.Flags().StringVar(&joinShapefile, "shp", "", "region polygon shapefile")
	joinCmd.Flags().StringVar(&joinLatCol, "lat", "LATITUDE", "latitude column")
	joinCmd.Flags().StringVar(&joinLonCol, "lon", "LONGITUDE", "longitude column")
	joinCmd.Flags().StringVar(&joinOutCol, "out-col", "REGION", "appended region column")
	joinCmd.Flags().StringVar(&joinNameField, "name-field", "NAME", "shapefile attribute holding region names")
	_ = joinCmd.MarkFlagRequired("csv")
	_ = joinCmd.MarkFlagRequired("shp")

	joinCmd.Flags().StringVar(&tableOut, "out", "", "write CSV to file instead of rendering")
	joinCmd.Flags().IntVar(&tableLimit, "limit", 50, "max rows to render (0 = all)")

	rootCmd.AddCommand(joinCmd)
}
