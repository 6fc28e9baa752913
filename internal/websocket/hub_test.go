package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/templpack/internal/manifest"
)

func dial(t *testing.T, server *httptest.Server, origin string) *websocket.Conn {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	header := http.Header{}
	header.Set("Origin", origin)
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(server.URL, "http"), &websocket.DialOptions{HTTPHeader: header})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.CloseNow() })

	return conn
}

func TestHubBroadcastsManifest(t *testing.T) {
	hub := NewHub(nil, nil)
	defer hub.Shutdown()

	server := httptest.NewServer(hub)
	defer server.Close()

	conn := dial(t, server, "http://localhost:3000")
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 5*time.Second, 10*time.Millisecond)

	hub.Broadcast(NewManifestMessage(manifest.Manifest{
		"main":  {"js": "/build/main.js"},
		"admin": {"css": "/build/admin.css"},
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	typ, data, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, websocket.MessageText, typ)

	var msg UpdateMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, MessageManifest, msg.Type)
	assert.ElementsMatch(t, []string{"main", "admin"}, msg.Names)
	assert.False(t, msg.Timestamp.IsZero())
}

func TestHubRejectsOrigins(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{name: "missing origin", origin: "", want: false},
		{name: "localhost by default", origin: "http://localhost:8080", want: true},
		{name: "loopback by default", origin: "https://127.0.0.1", want: true},
		{name: "remote by default", origin: "http://example.com", want: false},
		{name: "bad scheme", origin: "file://localhost", want: false},
		{name: "allowed host", allowed: []string{"app.test:8000"}, origin: "http://app.test:8000", want: true},
		{name: "localhost not listed", allowed: []string{"app.test:8000"}, origin: "http://localhost:8000", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub := NewHub(tt.allowed, nil)
			defer hub.Shutdown()

			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, hub.checkOrigin(r))
		})
	}
}

func TestHubForbiddenOrigin(t *testing.T) {
	hub := NewHub(nil, nil)
	defer hub.Shutdown()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Origin", "http://example.com")
	w := httptest.NewRecorder()

	hub.ServeHTTP(w, r)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Zero(t, hub.Clients())
}

func TestHubShutdownClosesClients(t *testing.T) {
	hub := NewHub(nil, nil)

	server := httptest.NewServer(hub)
	defer server.Close()

	conn := dial(t, server, "http://localhost")
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 5*time.Second, 10*time.Millisecond)

	hub.Shutdown()
	assert.Zero(t, hub.Clients())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, _, err := conn.Read(ctx)
	assert.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(err))
}
