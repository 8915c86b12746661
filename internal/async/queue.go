// Package async provides the coordination primitives every other
// subsystem is built on: a named FIFO queue, a de-duplicating
// single-flight, a caching single-flight, and a bounded worker pool.
// Named queues and single-flight maps are not package globals here —
// each is a value (Queue, Singleton, CachingSingleton, WorkerPool) that
// the service using it constructs and owns.
package async

import "sync"

// namedQueue runs operations submitted under it strictly in submission
// order. It is destroyed (removed from its owning Queue) once drained.
type namedQueue struct {
	mu      sync.Mutex
	pending []func()
	running bool
}

// Queue serializes operations per name: operations submitted under the
// same name execute one at a time, in submission order; operations
// under different names run independently.
type Queue struct {
	mu     sync.Mutex
	queues map[string]*namedQueue
}

// NewQueue creates an empty named-FIFO-queue set.
func NewQueue() *Queue {
	return &Queue{queues: make(map[string]*namedQueue)}
}

// Submit runs op under name, after any already-pending operation for
// that name completes, and returns op's result.
func Submit[T any](q *Queue, name string, op func() (T, error)) (T, error) {
	type result struct {
		val T
		err error
	}
	resultCh := make(chan result, 1)

	q.mu.Lock()
	nq, ok := q.queues[name]
	if !ok {
		nq = &namedQueue{}
		q.queues[name] = nq
	}
	nq.mu.Lock()
	task := func() {
		v, err := op()
		resultCh <- result{v, err}
		q.drainNext(name, nq)
	}
	if nq.running {
		nq.pending = append(nq.pending, task)
		nq.mu.Unlock()
		q.mu.Unlock()
	} else {
		nq.running = true
		nq.mu.Unlock()
		q.mu.Unlock()
		go task()
	}

	r := <-resultCh
	return r.val, r.err
}

// drainNext runs the next pending op for name, or removes the named
// queue entirely when it has drained.
func (q *Queue) drainNext(name string, nq *namedQueue) {
	nq.mu.Lock()
	if len(nq.pending) == 0 {
		nq.running = false
		nq.mu.Unlock()

		q.mu.Lock()
		if cur, ok := q.queues[name]; ok && cur == nq && !nq.running {
			delete(q.queues, name)
		}
		q.mu.Unlock()
		return
	}
	next := nq.pending[0]
	nq.pending = nq.pending[1:]
	nq.mu.Unlock()
	go next()
}

// OpQueue is `args -> Submit(name(args), op(args))`: serial execution
// per name, built from a naming function and the operation itself.
func OpQueue[A any, T any](q *Queue, name func(A) string, op func(A) (T, error)) func(A) (T, error) {
	return func(args A) (T, error) {
		return Submit(q, name(args), func() (T, error) { return op(args) })
	}
}
