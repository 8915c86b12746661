// Package hook implements the post-receive hook contract: a
// process-local TCP listener accepting newline-terminated
// "account/repo/branch" keys and enqueuing a build for each (spec
// §6.4). This component has no teacher analogue — code-warden never
// runs its own TCP listener, accepting pushes exclusively via its
// GitHub webhook HTTP endpoint instead — so its lifecycle shape
// (Start/Stop, graceful drain of in-flight connections) is adapted
// from the teacher's internal/server.Server Start/Stop pair, applied
// to a raw net.Listener instead of an http.Server.
package hook

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"

	"github.com/sevigo/locomote-server/internal/core"
)

// Listener accepts newline-terminated account/repo/branch keys on a TCP
// socket and dispatches a build for each.
type Listener struct {
	addr       string
	dispatcher core.BuildDispatcher
	logger     *slog.Logger

	ln net.Listener
	wg sync.WaitGroup
}

// New creates a post-receive hook listener bound to addr (e.g.
// "localhost:8870").
func New(addr string, dispatcher core.BuildDispatcher, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener{addr: addr, dispatcher: dispatcher, logger: logger}
}

// Start binds the listening socket and begins accepting connections in
// the background. It returns once the socket is bound.
func (l *Listener) Start() error {
	ln, err := net.Listen("tcp", l.addr)
	if err != nil {
		return fmt.Errorf("hook: listen %s: %w", l.addr, err)
	}
	l.ln = ln
	l.logger.Info("post-receive hook listening", "address", l.addr)

	l.wg.Add(1)
	go l.acceptLoop()
	return nil
}

// Stop closes the listener and waits for in-flight connections to
// finish being read.
func (l *Listener) Stop() error {
	if l.ln == nil {
		return nil
	}
	l.logger.Info("stopping post-receive hook listener")
	err := l.ln.Close()
	l.wg.Wait()
	return err
}

func (l *Listener) acceptLoop() {
	defer l.wg.Done()
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			l.logger.Warn("hook: accept failed", "error", err)
			continue
		}
		l.wg.Add(1)
		go l.handleConn(conn)
	}
}

func (l *Listener) handleConn(conn net.Conn) {
	defer l.wg.Done()
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		req, err := parseKey(line)
		if err != nil {
			l.logger.Warn("hook: malformed key", "line", line, "error", err)
			continue
		}
		if err := l.dispatcher.Dispatch(context.Background(), req); err != nil {
			l.logger.Warn("hook: dispatch failed", "key", line, "error", err)
		}
	}
	if err := scanner.Err(); err != nil {
		l.logger.Warn("hook: connection read error", "error", err)
	}
}

// parseKey splits "account/repo/branch" into a core.BuildRequest.
func parseKey(key string) (core.BuildRequest, error) {
	parts := strings.SplitN(key, "/", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return core.BuildRequest{}, fmt.Errorf("hook: expected account/repo/branch, got %q", key)
	}
	return core.BuildRequest{Account: parts[0], Repo: parts[1], Branch: parts[2]}, nil
}
