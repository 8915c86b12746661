package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sevigo/locomote-server/internal/branchdb"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Shows every account/repo/branch this server currently knows about",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output status as JSON")
	rootCmd.AddCommand(statusCmd)
}

type branchStatus struct {
	Account   string `json:"account"`
	Repo      string `json:"repo"`
	Branch    string `json:"branch"`
	Buildable bool   `json:"buildable"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	application, cleanup, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	rows := mergeBranchStatus(application.BranchDB.ListPublic(), application.BranchDB.ListBuildable())

	if statusJSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(rows)
	}

	if len(rows) == 0 {
		fmt.Println("no branches known; run 'rescan' first")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ACCOUNT\tREPO\tBRANCH\tBUILDABLE")
	for _, row := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%v\n", row.Account, row.Repo, row.Branch, row.Buildable)
	}
	return w.Flush()
}

func mergeBranchStatus(public, buildable []branchdb.BranchRef) []branchStatus {
	buildableSet := make(map[string]bool, len(buildable))
	for _, b := range buildable {
		buildableSet[b.Account+"/"+b.Repo+"/"+b.Branch] = true
	}

	seen := make(map[string]bool)
	var rows []branchStatus
	for _, ref := range append(append([]branchdb.BranchRef{}, public...), buildable...) {
		key := ref.Account + "/" + ref.Repo + "/" + ref.Branch
		if seen[key] {
			continue
		}
		seen[key] = true
		rows = append(rows, branchStatus{
			Account:   ref.Account,
			Repo:      ref.Repo,
			Branch:    ref.Branch,
			Buildable: buildableSet[key],
		})
	}
	return rows
}
