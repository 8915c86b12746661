// Package builder serializes per-repo external build invocations
// behind a named opqueue, records build completions and emits
// invalidation events. It is grounded on the teacher's jobs.dispatcher
// (serial per-worker execution, wait-for-drain Stop) and
// repomanager.manager's per-repo sync.Map mutex idiom, generalized from
// "run the AI review job" to "run the external build tool and stream
// its log", with the actual exec.Command invocation grounded on
// inful-docbuilder's internal/hugo.runHugoBuild (cmd.Dir, stdout/stderr
// redirected to a log file instead of the process's own).
package builder

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sevigo/locomote-server/internal/async"
	"github.com/sevigo/locomote-server/internal/branchdb"
	"github.com/sevigo/locomote-server/internal/core"
	"github.com/sevigo/locomote-server/internal/events"
	"github.com/sevigo/locomote-server/internal/manifest"
	"github.com/sevigo/locomote-server/internal/metrics"
)

// masterBranch mirrors internal/branchdb's constant: a repo's
// locomote.json (and therefore its build profile reference) is always
// read from master, regardless of which branch is being built.
const masterBranch = "master"

// VCR is the narrow slice of internal/vcr.Adapter the builder needs.
type VCR interface {
	HeadCommit(repoPath, branch string) (*core.CommitInfo, bool, error)
}

// BranchInfo is the narrow slice of internal/branchdb.BranchDB the
// builder needs: reload one repo's manifest, then read back its
// current buildable-branch list.
type BranchInfo interface {
	UpdateBranchInfo(account, repo string) error
	Get(account, repo string) (*core.Repo, bool)
	IsBuildableBranch(account, repo, branch string) bool
}

// ProfileLookup resolves a manifest's "build.profile" id to the global
// build profile it names, shared with internal/branchdb.ProfileLookup.
type ProfileLookup func(id string) (*core.BuildProfile, bool)

// Builder runs spec §4.11's build procedure behind the "builder" named
// opqueue, so concurrent requests for different repos run in parallel
// but two builds for the same account/repo/branch never overlap.
type Builder struct {
	layout    core.Layout
	vcr       VCR
	manifests *manifest.Cache
	branches  BranchInfo
	profiles  ProfileLookup
	store     *sqlx.DB
	bus       *events.Bus
	metrics   *metrics.Recorder

	queue *async.Queue
}

// New creates a Builder. store is the search database's connection,
// reused to hold the builds table (spec §4.11's "build DB") rather than
// introducing a second persistent store for one small table.
func New(layout core.Layout, vcr VCR, manifests *manifest.Cache, branches BranchInfo, profiles ProfileLookup, store *sqlx.DB, bus *events.Bus, rec *metrics.Recorder) *Builder {
	return &Builder{
		layout:    layout,
		vcr:       vcr,
		manifests: manifests,
		branches:  branches,
		profiles:  profiles,
		store:     store,
		bus:       bus,
		metrics:   rec,
		queue:     async.NewQueue(),
	}
}

func queueKey(req core.BuildRequest) string {
	return req.Account + "/" + req.Repo + "/" + req.Branch
}

// Dispatch implements core.BuildDispatcher: queues req on the "builder"
// serial queue, keyed by account/repo/branch.
func (b *Builder) Dispatch(ctx context.Context, req core.BuildRequest) error {
	_, err := async.Submit(b.queue, queueKey(req), func() (struct{}, error) {
		return struct{}{}, b.run(ctx, req)
	})
	return err
}

// run executes spec §4.11's numbered procedure for one build request.
func (b *Builder) run(ctx context.Context, req core.BuildRequest) error {
	if err := b.branches.UpdateBranchInfo(req.Account, req.Repo); err != nil {
		return fmt.Errorf("builder: reload %s/%s: %w", req.Account, req.Repo, err)
	}

	repo, ok := b.branches.Get(req.Account, req.Repo)
	if !ok {
		return fmt.Errorf("%w: %s/%s", core.ErrNotFound, req.Account, req.Repo)
	}

	entry, err := b.manifests.Get(repo.RepoPath, masterBranch)
	if err != nil {
		return fmt.Errorf("builder: manifest %s/%s: %w", req.Account, req.Repo, err)
	}
	ref := entry.Manifest.Build
	if ref == nil {
		return nil // build disabled for this repo
	}

	head, ok, err := b.vcr.HeadCommit(repo.RepoPath, req.Branch)
	if err != nil {
		return fmt.Errorf("builder: head commit %s/%s/%s: %w", req.Account, req.Repo, req.Branch, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s/%s/%s", core.ErrNotFound, req.Account, req.Repo, req.Branch)
	}

	last, hasLast, err := b.lastBuiltCommit(req.Account, req.Repo, req.Branch)
	if err != nil {
		return err
	}
	if hasLast && last == head.ID {
		return nil // already built at this commit
	}

	profile, ok := b.resolveProfile(ref)
	if !ok {
		return nil
	}
	if !b.branches.IsBuildableBranch(req.Account, req.Repo, req.Branch) {
		return nil
	}

	if err := b.invoke(ctx, req, profile, head.ID); err != nil {
		if b.metrics != nil {
			b.metrics.IncBuildOutcome("failed")
		}
		return err
	}
	if b.metrics != nil {
		b.metrics.IncBuildOutcome("success")
	}

	if err := b.recordCompletion(req.Account, req.Repo, req.Branch, head.ID); err != nil {
		return err
	}

	if b.bus != nil {
		b.bus.Publish(core.RepoUpdateEvent{
			Account: req.Account,
			Repo:    req.Repo,
			Branch:  req.Branch,
			Key:     fmt.Sprintf("%s/%s/%s", req.Account, req.Repo, req.Branch),
		})
	}
	return nil
}

func (b *Builder) resolveProfile(ref *core.BuildProfileRef) (*core.BuildProfile, bool) {
	if ref.Inline != nil {
		return ref.Inline, true
	}
	if b.profiles == nil {
		return nil, false
	}
	return b.profiles(ref.ProfileID)
}

// invoke runs profile.Command in the repo's workspace directory,
// streaming combined stdout+stderr to build.log (spec §6.3's
// "workspaceHome/<account>/build.log").
func (b *Builder) invoke(ctx context.Context, req core.BuildRequest, profile *core.BuildProfile, commit string) error {
	if len(profile.Command) == 0 {
		return fmt.Errorf("builder: profile %q has no command", profile.ID)
	}

	workDir := b.layout.WorkspaceDir(req.Account, req.Repo)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return fmt.Errorf("builder: ensure workspace dir: %w", err)
	}

	logPath := b.layout.BuildLogPath(req.Account)
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("builder: ensure log dir: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("builder: open build log: %w", err)
	}
	defer logFile.Close()

	cmd := exec.CommandContext(ctx, profile.Command[0], profile.Command[1:]...)
	cmd.Dir = workDir
	cmd.Env = append(os.Environ(),
		"LOCOMOTE_ACCOUNT="+req.Account,
		"LOCOMOTE_REPO="+req.Repo,
		"LOCOMOTE_BRANCH="+req.Branch,
		"LOCOMOTE_COMMIT="+commit,
	)
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("builder: build tool failed for %s/%s/%s: %w", req.Account, req.Repo, req.Branch, err)
	}
	return nil
}

func (b *Builder) lastBuiltCommit(account, repo, branch string) (string, bool, error) {
	var commit string
	err := b.store.Get(&commit, `SELECT commit_sha FROM builds WHERE account = ? AND repo = ? AND branch = ?`, account, repo, branch)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("builder: read build record: %w", err)
	}
	return commit, true, nil
}

func (b *Builder) recordCompletion(account, repo, branch, commit string) error {
	_, err := b.store.Exec(`
		INSERT INTO builds (account, repo, branch, commit_sha, built_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (account, repo, branch) DO UPDATE SET commit_sha = excluded.commit_sha, built_at = excluded.built_at
	`, account, repo, branch, commit, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("builder: record build completion: %w", err)
	}
	return nil
}

// BuildableLister is the slice of internal/branchdb.BranchDB the
// startup recovery scan needs, kept separate from BranchInfo since only
// Recover (not every Builder) requires it.
type BuildableLister interface {
	ListBuildable() []branchdb.BranchRef
}

// Recover is spec §4.11's startup recovery scan: list every currently
// buildable branch and dispatch a build for each, relying on run's
// head-vs-last-recorded-commit check to skip branches already
// up to date. Errors from individual dispatches are collected and
// returned for the caller to log; a failing dispatch does not stop the
// scan, so one stale/broken repo does not block recovery of the rest.
func (b *Builder) Recover(ctx context.Context, lister BuildableLister) []error {
	var errs []error
	for _, ref := range lister.ListBuildable() {
		req := core.BuildRequest{Account: ref.Account, Repo: ref.Repo, Branch: ref.Branch}
		if err := b.Dispatch(ctx, req); err != nil {
			errs = append(errs, fmt.Errorf("builder: recover %s/%s/%s: %w", ref.Account, ref.Repo, ref.Branch, err))
		}
	}
	return errs
}
