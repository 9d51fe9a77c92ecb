// Command bomberhans runs the game server and inspects recorded matches.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:           "bomberhans",
		Short:         "Deterministic bomberhans game server",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringP("config", "c", "", "path to the YAML configuration file")

	root.AddCommand(newServeCmd())
	root.AddCommand(newReplayCmd())
	root.AddCommand(newMatchesCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
