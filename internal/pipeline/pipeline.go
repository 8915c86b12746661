package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sevigo/locomote-server/internal/async"
	"github.com/sevigo/locomote-server/internal/core"
)

// StepFunc consumes in (the previous stage's output) and writes the
// transformed stream to out.
type StepFunc func(ctx context.Context, vars core.Vars, out io.Writer, in io.Reader) error

// DoneFunc is the pipeline's last mutation of the produced artifact,
// typically annotating it with commit/group/mime type/cache-control.
type DoneFunc func(vars core.Vars, art *core.Artifact) (*core.Artifact, error)

// Step is one named stage after Open. A Step with an empty Template runs
// purely in memory, piped straight into the next stage; a Step with a
// Template is disk-cached at CacheDir/<interpolated Template>, and is
// skipped entirely (its Run is never called) when that file already
// exists.
type Step struct {
	Name     string
	Template string
	Run      StepFunc
}

// InitFunc produces a pipeline invocation's variable map. Returning
// ok=false signals the spec's "not found / empty" short-circuit: the
// caller receives core.ErrNotFound without running Open or any Step.
type InitFunc[A any] func(ctx context.Context, args A) (vars core.Vars, ok bool, err error)

// Pipeline is an ordered init/open/step.../done chain (spec §4.2). The
// same Vars always interpolate to the same on-disk path for a given
// Template, and that path always holds a byte-equal artifact — this is
// the cache-correctness invariant every caller must uphold when
// choosing template variables.
type Pipeline[A any] struct {
	CacheDir string

	Init InitFunc[A]

	// OpenTemplate, if non-empty, caches Open's output the same way a
	// Step's Template does.
	OpenTemplate string
	Open         func(ctx context.Context, vars core.Vars, out io.Writer) error

	Steps []Step

	Done DoneFunc

	// OnCache, if set, is called once per disk-cached stage (Open or any
	// templated Step) with whether that stage's artifact already existed
	// (hit) or had to be produced (miss). internal/metrics uses this to
	// maintain the pipeline cache hit/miss counters spec §2's "(NEW)
	// Metrics" note describes; it is never required for correctness.
	OnCache func(stageName string, hit bool)

	// dedup wraps an entire invocation (open..last step) in a
	// single-flight keyed by the final artifact path, so concurrent
	// requests for the same artifact produce it exactly once (spec §4.2
	// "Failure model").
	dedup *async.Singleton
}

// New creates a pipeline backed by cacheDir, with its own single-flight
// de-duplicator for concurrent producer coalescing.
func New[A any](cacheDir string, init InitFunc[A], done DoneFunc) *Pipeline[A] {
	return &Pipeline[A]{CacheDir: cacheDir, Init: init, Done: done, dedup: async.NewSingleton()}
}

type stage struct {
	name     string
	template string // "" = uncached, in-memory
	run      func(ctx context.Context, vars core.Vars, out io.Writer, in io.Reader) error
}

// Run executes the pipeline for args, returning core.ErrNotFound if Init
// reports ok=false.
func (p *Pipeline[A]) Run(ctx context.Context, args A) (*core.Artifact, error) {
	vars, ok, err := p.Init(ctx, args)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, core.ErrNotFound
	}

	stages, err := p.buildStages(vars)
	if err != nil {
		return nil, err
	}

	finalPath, err := p.finalArtifactPath(stages, vars)
	if err != nil {
		return nil, err
	}

	art, err := async.Do(p.dedup, finalPath, func() (*core.Artifact, error) {
		return p.runStages(ctx, vars, stages, finalPath)
	})
	if err != nil {
		return nil, err
	}
	if p.Done == nil {
		return art, nil
	}
	return p.Done(vars, art)
}

func (p *Pipeline[A]) buildStages(vars core.Vars) ([]stage, error) {
	stages := make([]stage, 0, len(p.Steps)+1)
	stages = append(stages, stage{
		name:     "open",
		template: p.OpenTemplate,
		run: func(ctx context.Context, vars core.Vars, out io.Writer, _ io.Reader) error {
			return p.Open(ctx, vars, out)
		},
	})
	for _, s := range p.Steps {
		s := s
		stages = append(stages, stage{name: s.Name, template: s.Template, run: s.Run})
	}
	return stages, nil
}

// finalArtifactPath is the interpolated Template of the last stage that
// declares one. A pipeline whose last stage has no Template is
// in-memory only and has no disk artifact; this is a caller error.
func (p *Pipeline[A]) finalArtifactPath(stages []stage, vars core.Vars) (string, error) {
	for i := len(stages) - 1; i >= 0; i-- {
		if stages[i].template != "" {
			rel, err := interpolate(stages[i].template, vars)
			if err != nil {
				return "", err
			}
			return filepath.Join(p.CacheDir, rel), nil
		}
	}
	return "", fmt.Errorf("pipeline: no stage declares a cache template; nothing to produce an artifact from")
}

// runStages resumes from the furthest-along stage whose cache file
// already exists (scanning backward), then runs every stage after it in
// order, feeding each one the previous stage's output stream.
func (p *Pipeline[A]) runStages(ctx context.Context, vars core.Vars, stages []stage, finalPath string) (*core.Artifact, error) {
	paths := make([]string, len(stages))
	for i, s := range stages {
		if s.template == "" {
			continue
		}
		rel, err := interpolate(s.template, vars)
		if err != nil {
			return nil, err
		}
		paths[i] = filepath.Join(p.CacheDir, rel)
	}

	resumeFrom := -1
	var input io.ReadCloser
	for i := len(stages) - 1; i >= 0; i-- {
		if paths[i] == "" {
			continue
		}
		if f, err := os.Open(paths[i]); err == nil {
			resumeFrom = i
			input = f
			break
		}
	}

	if p.OnCache != nil {
		for i, s := range stages {
			if paths[i] == "" {
				continue
			}
			p.OnCache(s.name, i <= resumeFrom)
		}
	}

	for i := resumeFrom + 1; i < len(stages); i++ {
		s := stages[i]
		var err error
		input, err = runStage(ctx, vars, s, input, paths[i])
		if err != nil {
			return nil, fmt.Errorf("pipeline: stage %q: %w", s.name, err)
		}
	}
	if input != nil {
		_ = input.Close()
	}

	return &core.Artifact{FilePath: finalPath}, nil
}

// runStage executes one stage, writing to a temp file and renaming it
// into place when cached (so a concurrent reader never observes a
// partial file), or piping in-memory otherwise. On failure the partial
// cache file is removed before the error propagates, so a failed
// invocation never poisons the cache for the next caller.
func runStage(ctx context.Context, vars core.Vars, s stage, in io.ReadCloser, path string) (io.ReadCloser, error) {
	if path == "" {
		pr, pw := io.Pipe()
		go func() {
			err := s.run(ctx, vars, pw, in)
			if in != nil {
				_ = in.Close()
			}
			_ = pw.CloseWithError(err)
		}()
		return pr, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return nil, err
	}
	tmpPath := tmp.Name()

	runErr := s.run(ctx, vars, tmp, in)
	if in != nil {
		_ = in.Close()
	}
	closeErr := tmp.Close()
	if runErr != nil {
		_ = os.Remove(tmpPath)
		return nil, runErr
	}
	if closeErr != nil {
		_ = os.Remove(tmpPath)
		return nil, closeErr
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return nil, err
	}
	return os.Open(path)
}
