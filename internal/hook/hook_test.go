package hook

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sevigo/locomote-server/internal/core"
)

type recordingDispatcher struct {
	mu   sync.Mutex
	reqs []core.BuildRequest
}

func (d *recordingDispatcher) Dispatch(_ context.Context, req core.BuildRequest) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reqs = append(d.reqs, req)
	return nil
}

func (d *recordingDispatcher) seen() []core.BuildRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]core.BuildRequest, len(d.reqs))
	copy(out, d.reqs)
	return out
}

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func TestListenerDispatchesOneBuildPerLine(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	addr := freeAddr(t)
	l := New(addr, dispatcher, nil)
	require.NoError(t, l.Start())
	defer l.Stop()

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	_, err = conn.Write([]byte("acme/site/main\nacme/site/staging\n"))
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		return len(dispatcher.seen()) == 2
	}, time.Second, 10*time.Millisecond)

	reqs := dispatcher.seen()
	require.Equal(t, core.BuildRequest{Account: "acme", Repo: "site", Branch: "main"}, reqs[0])
	require.Equal(t, core.BuildRequest{Account: "acme", Repo: "site", Branch: "staging"}, reqs[1])
}

func TestListenerIgnoresMalformedLines(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	addr := freeAddr(t)
	l := New(addr, dispatcher, nil)
	require.NoError(t, l.Start())
	defer l.Stop()

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	_, err = conn.Write([]byte("not-a-valid-key\n\nacme/site/main\n"))
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		return len(dispatcher.seen()) == 1
	}, time.Second, 10*time.Millisecond)
	require.Equal(t, "main", dispatcher.seen()[0].Branch)
}

func TestParseKeyRejectsMissingSegments(t *testing.T) {
	_, err := parseKey("acme/site")
	require.Error(t, err)
}
