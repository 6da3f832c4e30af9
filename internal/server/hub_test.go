package server

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func writeFile(path, body string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(body), 0o644)
}

func TestHubBroadcastsReload(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL(srv), nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool { return hub.Count() == 1 },
		2*time.Second, 10*time.Millisecond)

	hub.Broadcast(ctx)

	kind, data, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, websocket.MessageText, kind)
	assert.Equal(t, "reload", string(data))
}

func TestHubBroadcastReachesAllClients(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var conns []*websocket.Conn
	for i := 0; i < 3; i++ {
		conn, _, err := websocket.Dial(ctx, wsURL(srv), nil)
		require.NoError(t, err)
		defer conn.Close(websocket.StatusNormalClosure, "")
		conns = append(conns, conn)
	}

	require.Eventually(t, func() bool { return hub.Count() == 3 },
		2*time.Second, 10*time.Millisecond)

	hub.Broadcast(ctx)

	for _, conn := range conns {
		_, data, err := conn.Read(ctx)
		require.NoError(t, err)
		assert.Equal(t, "reload", string(data))
	}
}

func TestHubDropsDisconnectedClients(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL(srv), nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.Count() == 1 },
		2*time.Second, 10*time.Millisecond)

	conn.Close(websocket.StatusNormalClosure, "")

	assert.Eventually(t, func() bool { return hub.Count() == 0 },
		2*time.Second, 10*time.Millisecond)
}

func TestWatcherCoalescesBursts(t *testing.T) {
	root := t.TempDir()
	contentDir := root + "/content"
	require.NoError(t, writeFile(contentDir+"/seed.md", "seed"))

	w, err := NewWatcher(root)
	require.NoError(t, err)
	defer w.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, writeFile(contentDir+"/seed.md", "edit"))
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case <-w.Trigger:
	case <-time.After(3 * time.Second):
		t.Fatal("expected a rebuild trigger")
	}

	// The burst already fired; quiet period means no second trigger.
	select {
	case <-w.Trigger:
		t.Fatal("expected a single coalesced trigger")
	case <-time.After(600 * time.Millisecond):
	}
}

func TestWatcherPicksUpNewDirectories(t *testing.T) {
	root := t.TempDir()
	contentDir := root + "/content"
	require.NoError(t, writeFile(contentDir+"/seed.md", "seed"))

	w, err := NewWatcher(root)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, writeFile(contentDir+"/sub/new.md", "new"))

	select {
	case <-w.Trigger:
	case <-time.After(3 * time.Second):
		t.Fatal("expected a trigger for a new subdirectory")
	}
}
