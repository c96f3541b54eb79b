// Command sentinel runs the on-device detection engine for one monitoring
// node: sensor acquisition, domain detectors, fusion, temporal correlation
// and alert classification on a fixed cycle.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.3.0"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "sentinel",
	Short: "Multi-sensor fusion and anomaly detection node",
	Long: `sentinel is the on-device detection engine for field-deployed
environmental and infrastructure monitors. It samples the node's sensor
complement on a fixed cycle, runs chemical, electrical and fire-weather
detectors, fuses redundant channels, correlates across time and publishes
classified alerts.`,
	Version: version,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the sentinel version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("sentinel %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(versionCmd)
}
