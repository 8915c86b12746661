package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex [account/repo/branch]",
	Short: "Reindex one branch for full-text search, or every known public branch if none is given",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runReindex,
}

func init() {
	rootCmd.AddCommand(reindexCmd)
}

func runReindex(cmd *cobra.Command, args []string) error {
	application, cleanup, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := context.Background()

	if len(args) == 0 {
		refs := application.BranchDB.ListPublic()
		var failed int
		for _, ref := range refs {
			repo, ok := application.BranchDB.Get(ref.Account, ref.Repo)
			if !ok {
				continue
			}
			if err := application.Search.IndexBranch(ctx, ref.Account, ref.Repo, ref.Branch, repo.RepoPath); err != nil {
				fmt.Printf("index %s/%s/%s: %v\n", ref.Account, ref.Repo, ref.Branch, err)
				failed++
				continue
			}
			fmt.Printf("indexed %s/%s/%s\n", ref.Account, ref.Repo, ref.Branch)
		}
		if failed > 0 {
			return fmt.Errorf("reindex: %d branch(es) failed", failed)
		}
		return nil
	}

	account, repoName, branch, err := splitTriple(args[0])
	if err != nil {
		return err
	}
	repo, ok := application.BranchDB.Get(account, repoName)
	if !ok {
		return fmt.Errorf("reindex: unknown repo %s/%s", account, repoName)
	}
	if err := application.Search.IndexBranch(ctx, account, repoName, branch, repo.RepoPath); err != nil {
		return fmt.Errorf("reindex %s: %w", args[0], err)
	}
	fmt.Printf("indexed %s\n", args[0])
	return nil
}

func splitTriple(s string) (account, repo, branch string, err error) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", fmt.Errorf("expected account/repo/branch, got %q", s)
	}
	return parts[0], parts[1], parts[2], nil
}
