package core

import "context"

// BuildRequest is a single unit of build work, keyed by repo and branch.
// It is the builder's analogue of the upstream project's GitHubEvent.
type BuildRequest struct {
	Account string
	Repo    string
	Branch  string
}

// BuildDispatcher decouples the post-receive hook (and the startup
// recovery scan) from the serial build queue.
type BuildDispatcher interface {
	Dispatch(ctx context.Context, req BuildRequest) error
}

// BuildJob is the unit of executable work a BuildDispatcher queues.
type BuildJob interface {
	Run(ctx context.Context, req BuildRequest) error
}
