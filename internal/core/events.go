// Package core defines the essential interfaces and data structures that
// form the backbone of Locomote Server. These components are designed to
// be abstract, allowing flexible and decoupled implementations of the
// application's logic, in the same spirit as the upstream project's own
// core package.
package core

// RepoUpdateEvent is the system-wide invalidation signal: emitted
// whenever a branch advances (a build completes, or an operator forces
// a rescan). Every cache keyed by Key must drop its entry for Key before
// or during the emission; the next request repopulates lazily.
type RepoUpdateEvent struct {
	Account string
	Repo    string
	Branch  string
	Key     string // Account/Repo/Branch
}

// RepoUpdateListener is notified of a RepoUpdateEvent. Implementations
// must not block the emitter for long; do the real invalidation work
// synchronously (it's just a map delete) and nothing more.
type RepoUpdateListener interface {
	OnRepoUpdate(evt RepoUpdateEvent)
}

// RepoUpdateListenerFunc adapts a plain function to RepoUpdateListener.
type RepoUpdateListenerFunc func(evt RepoUpdateEvent)

func (f RepoUpdateListenerFunc) OnRepoUpdate(evt RepoUpdateEvent) { f(evt) }
