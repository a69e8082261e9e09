package commands

import (
	"github.com/spf13/cobra"

	"github.com/dmehra2102/prod-golang-projects/glucoflow/config"
)

var rootCmd = &cobra.Command{
	Use:   "glucoflow",
	Short: "Run the glucose reading server",
	Long: `glucoflow stores blood-glucose readings and serves them over HTTP.

Running without a subcommand is the same as "glucoflow serve".`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd)
	},
}

func init() {
	config.RegisterFlags(rootCmd.PersistentFlags())
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

func Execute() error {
	return rootCmd.Execute()
}
