package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sevigo/locomote-server/internal/core"
)

var buildCmd = &cobra.Command{
	Use:   "build account/repo/branch",
	Short: "Trigger a build for one branch, the same way the post-receive hook does",
	Args:  cobra.ExactArgs(1),
	RunE:  runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	application, cleanup, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	account, repo, branch, err := splitTriple(args[0])
	if err != nil {
		return err
	}

	req := core.BuildRequest{Account: account, Repo: repo, Branch: branch}
	if err := application.Builder.Dispatch(context.Background(), req); err != nil {
		return fmt.Errorf("build %s: %w", args[0], err)
	}
	fmt.Printf("build complete: %s\n", args[0])
	return nil
}
