package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sells-group/tri-cli/pkg/geocode"
)

var geocodeAddr geocode.Address

var geocodeCmd = &cobra.Command{
	Use:   "geocode [QUERY]",
	Short: "Geolocate a facility address via Nominatim",
	Long:  "Geocodes a raw query string, or an address given via flags. Flagged addresses fall back through progressively relaxed variants until one matches.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newGeocoder()

		var result *geocode.Result
		var err error
		switch {
		case len(args) == 1:
			result, err = client.Geocode(cmd.Context(), args[0])
		case geocodeAddr.Street != "":
			result, err = client.GeocodeAddress(cmd.Context(), geocodeAddr)
		default:
			return fmt.Errorf("provide a query argument or --street")
		}
		if err != nil {
			return err
		}

		if !result.Matched {
			fmt.Fprintln(cmd.OutOrStdout(), "no match")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%.8f,%.8f\t%s\n",
			result.Latitude, result.Longitude, strings.TrimSpace(result.Query))
		return nil
	},
}

func init() {
	geocodeCmd.Flags().StringVar(&geocodeAddr.Street, "street", "", "street address")
	geocodeCmd.Flags().StringVar(&geocodeAddr.City, "city", "", "city")
	geocodeCmd.Flags().StringVar(&geocodeAddr.County, "county", "", "county")
	geocodeCmd.Flags().StringVar(&geocodeAddr.State, "state", "", "state")
	geocodeCmd.Flags().StringVar(&geocodeAddr.Zip, "zip", "", "zip code")
	rootCmd.AddCommand(geocodeCmd)
}
