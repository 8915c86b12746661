package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rescanCmd = &cobra.Command{
	Use:   "rescan",
	Short: "Rescan the content root for accounts, repos and branches",
	RunE:  runRescan,
}

func init() {
	rootCmd.AddCommand(rescanCmd)
}

func runRescan(cmd *cobra.Command, _ []string) error {
	application, cleanup, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	// app.New already rescans once during construction; a second call
	// here picks up any change made between that rescan and now.
	if err := application.BranchDB.Rescan(); err != nil {
		return fmt.Errorf("rescan: %w", err)
	}

	public := application.BranchDB.ListPublic()
	buildable := application.BranchDB.ListBuildable()
	fmt.Printf("rescan complete: %d public branch(es), %d buildable branch(es)\n", len(public), len(buildable))
	return nil
}
