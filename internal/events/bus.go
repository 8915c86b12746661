// Package events implements the system-wide content-repo-update fan-out
// spec §5/§9 describes: a single event struct, many subscribers
// registered at startup, dispatched under a mutex-protected subscriber
// list. It replaces the source project's module-level EventEmitter
// (`builder.on('content-repo-update', ...)`) with an explicit pub-sub
// owned by the composition root, per the spec's own design note.
package events

import (
	"sync"

	"github.com/sevigo/locomote-server/internal/core"
)

// Bus dispatches core.RepoUpdateEvent to every registered
// core.RepoUpdateListener. It is the single invalidation signal spec §2
// describes: the fileDB (file-info DB), manifest cache, auth-settings
// cache, content-negotiator resources cache and search indexer all
// subscribe to the same Bus instance, built once by internal/app, which
// hands it to the builder as the publisher.
type Bus struct {
	mu        sync.Mutex
	listeners []core.RepoUpdateListener
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers l to receive every future Publish call. Intended
// to be called during composition, before the server starts accepting
// requests; it is safe to call concurrently with Publish regardless.
func (b *Bus) Subscribe(l core.RepoUpdateListener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, l)
}

// Publish notifies every subscriber of evt, synchronously and in
// registration order. Per spec §5, subscribers must not block for long:
// the real invalidation work is a map delete, not I/O.
func (b *Bus) Publish(evt core.RepoUpdateEvent) {
	b.mu.Lock()
	listeners := make([]core.RepoUpdateListener, len(b.listeners))
	copy(listeners, b.listeners)
	b.mu.Unlock()

	for _, l := range listeners {
		l.OnRepoUpdate(evt)
	}
}
