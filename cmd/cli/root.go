// cmd/cli is locomote-server's operator CLI: rescanning the content
// root, triggering a reindex or a build out of band, and printing
// branch status, grounded on the teacher's own cmd/cli package — a
// flat package main, one file per subcommand, a package-level rootCmd
// every init() registers against.
package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "locomote-cli",
	Short: "Operate a locomote-server instance out of band",
	Long:  `locomote-cli rescans branches, triggers reindexing or builds, and reports branch status against the same content root and config the server uses.`,
}

// Execute runs the CLI, parsing os.Args.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default: searched per internal/config.Load)")
}
