package approver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/harunnryd/mezame/internal/config"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDebugger emulates the remote-debugging surface: version probe, target
// list, and a WebSocket that answers Runtime.evaluate with canned values.
type fakeDebugger struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu          sync.Mutex
	expressions []string
	clicks      int64
}

func newFakeDebugger(t *testing.T) *fakeDebugger {
	t.Helper()
	d := &fakeDebugger{}

	mux := http.NewServeMux()
	mux.HandleFunc("/json/version", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"Browser": "fake/1.0"})
	})
	mux.HandleFunc("/json/list", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]string{
			{
				"type":                 "page",
				"title":                "workbench",
				"url":                  "vscode-webview://panel",
				"webSocketDebuggerUrl": "ws://" + d.srv.Listener.Addr().String() + "/devtools/page/1",
			},
		})
	})
	mux.HandleFunc("/devtools/page/1", d.serveWS)

	d.srv = httptest.NewServer(mux)
	t.Cleanup(d.srv.Close)
	return d
}

func (d *fakeDebugger) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := d.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	for {
		var req struct {
			ID     int64 `json:"id"`
			Params struct {
				Expression string `json:"expression"`
			} `json:"params"`
		}
		if err := conn.ReadJSON(&req); err != nil {
			return
		}

		d.mu.Lock()
		d.expressions = append(d.expressions, req.Params.Expression)
		clicks := d.clicks
		d.mu.Unlock()

		var value interface{}
		if strings.Contains(req.Params.Expression, "stats.clicks") {
			value = clicks
		}
		conn.WriteJSON(map[string]interface{}{
			"id": req.ID,
			"result": map[string]interface{}{
				"result": map[string]interface{}{"value": value},
			},
		})
	}
}

func (d *fakeDebugger) port(t *testing.T) int {
	t.Helper()
	_, portStr, err := net.SplitHostPort(d.srv.Listener.Addr().String())
	require.NoError(t, err)
	var port int
	_, err = fmt.Sscanf(portStr, "%d", &port)
	require.NoError(t, err)
	return port
}

func (d *fakeDebugger) setClicks(n int64) {
	d.mu.Lock()
	d.clicks = n
	d.mu.Unlock()
}

func (d *fakeDebugger) seen() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.expressions))
	copy(out, d.expressions)
	return out
}

func newCDPForTest(t *testing.T, d *fakeDebugger) *CDP {
	t.Helper()
	port := d.port(t)
	c, err := NewCDP(config.ApprovalConfig{
		DenyList: []string{"rm -rf"},
		CDP: config.CDPConfig{
			PortStart:    port,
			PortEnd:      port,
			ProbeTimeout: "2s",
			EvalTimeout:  "2s",
		},
	}, slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCDP_AttachInjectsAndReportsClicks(t *testing.T) {
	d := newFakeDebugger(t)
	c := newCDPForTest(t, d)

	approved, err := c.AttemptApprove(context.Background())
	require.NoError(t, err)
	assert.False(t, approved, "no clicks yet")

	seen := d.seen()
	require.GreaterOrEqual(t, len(seen), 3)
	assert.Contains(t, seen[0], "window.__mezame")
	assert.Contains(t, seen[1], "start(")
	assert.Contains(t, seen[1], "rm -rf")

	d.setClicks(2)
	approved, err = c.AttemptApprove(context.Background())
	require.NoError(t, err)
	assert.True(t, approved)

	// unchanged counter means nothing new was approved
	approved, err = c.AttemptApprove(context.Background())
	require.NoError(t, err)
	assert.False(t, approved)
}

func TestCDP_SetRuleConfigPushesToScript(t *testing.T) {
	d := newFakeDebugger(t)
	c := newCDPForTest(t, d)

	_, err := c.AttemptApprove(context.Background())
	require.NoError(t, err)

	require.NoError(t, c.SetRuleConfig(context.Background(), []string{"git push"}, nil, 500*time.Millisecond))

	seen := d.seen()
	last := seen[len(seen)-1]
	assert.Contains(t, last, "setConfig(")
	assert.Contains(t, last, "git push")
}

func TestCDP_NoTargetFails(t *testing.T) {
	c, err := NewCDP(config.ApprovalConfig{
		CDP: config.CDPConfig{
			PortStart:    1, // nothing listens here
			PortEnd:      1,
			ProbeTimeout: "100ms",
			EvalTimeout:  "100ms",
		},
	}, slog.Default())
	require.NoError(t, err)

	_, err = c.AttemptApprove(context.Background())
	assert.Error(t, err)
}

func TestCDP_CloseStopsScript(t *testing.T) {
	d := newFakeDebugger(t)
	c := newCDPForTest(t, d)

	_, err := c.AttemptApprove(context.Background())
	require.NoError(t, err)

	require.NoError(t, c.Close())
	seen := d.seen()
	assert.Contains(t, seen[len(seen)-1], "stop()")

	require.NoError(t, c.Close(), "close is idempotent")
}
