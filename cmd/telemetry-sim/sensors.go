package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"telemetry-sim/internal/config"
)

var sensorsFile string

var sensorsCmd = &cobra.Command{
	Use:   "sensors",
	Short: "Validate and list the sensor catalogue",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := sensorsFile
		if !cmd.Flags().Changed("file") {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			path = cfg.SensorsFile
		}
		catalog, err := config.LoadCatalog(path)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tKIND\tSUBSYSTEM\tUNIT\tINTERVAL")
		for _, s := range catalog.Sensors {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.ID, s.Type, s.Subsystem, s.Unit, s.Interval)
		}
		return w.Flush()
	},
}

func init() {
	sensorsCmd.Flags().StringVar(&sensorsFile, "file", "", "catalogue YAML to check instead of TELEMETRY_SENSORS_FILE")
}
