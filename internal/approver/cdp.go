package approver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/harunnryd/mezame/internal/config"

	"github.com/gorilla/websocket"
)

// injectedScript runs inside the host webview. It polls the DOM for pending
// accept buttons, skips any whose nearby code block matches the pushed deny
// list, and clicks the rest. State is read back by evaluation, not callbacks.
const injectedScript = `
(function () {
  if (window.__mezame) return;
  var state = {
    running: false,
    config: { denyList: [], allowList: [], intervalMs: 750 },
    stats: { clicks: 0, blocked: 0 },
    timer: null
  };
  function matchesAny(text, patterns) {
    text = (text || '').toLowerCase();
    for (var i = 0; i < patterns.length; i++) {
      var p = (patterns[i] || '').toLowerCase();
      if (!p) continue;
      if (text.indexOf(p) !== -1) return true;
      if (p.indexOf('*') !== -1) {
        try {
          if (new RegExp('^' + p.replace(/\*/g, '.*') + '$').test(text)) return true;
        } catch (e) {}
      }
    }
    return false;
  }
  function nearbyCode(btn) {
    var el = btn.closest('[class*="chat"], [class*="step"], [class*="tool"]') || btn.parentElement;
    if (!el) return '';
    var code = el.querySelector('code, pre');
    return code ? code.textContent : el.textContent;
  }
  function tick() {
    if (!state.running) return;
    var buttons = document.querySelectorAll('a, button');
    for (var i = 0; i < buttons.length; i++) {
      var btn = buttons[i];
      var label = (btn.textContent || '').trim().toLowerCase();
      if (label !== 'accept' && label !== 'allow' && label !== 'run command') continue;
      if (matchesAny(nearbyCode(btn), state.config.denyList)) {
        state.stats.blocked++;
        continue;
      }
      btn.dispatchEvent(new MouseEvent('click', { bubbles: true }));
      state.stats.clicks++;
    }
  }
  window.__mezame = {
    start: function (config) {
      if (config) state.config = config;
      if (state.running) return;
      state.running = true;
      state.timer = setInterval(tick, state.config.intervalMs || 750);
    },
    setConfig: function (config) { state.config = config; },
    stop: function () {
      state.running = false;
      if (state.timer) { clearInterval(state.timer); state.timer = null; }
    },
    state: state
  };
})();
`

type injectedConfig struct {
	DenyList   []string `json:"denyList"`
	AllowList  []string `json:"allowList"`
	IntervalMs int      `json:"intervalMs"`
}

type cdpTarget struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	DebuggerURL string `json:"webSocketDebuggerUrl"`
}

// CDP drives approval through the host's remote-debugging endpoint: probe the
// port range, attach a WebSocket to a webview target, install the injected
// script, and read click counters back each tick.
type CDP struct {
	cfg          config.ApprovalConfig
	probeTimeout time.Duration
	evalTimeout  time.Duration
	probe        *http.Client
	dialer       *websocket.Dialer
	log          *slog.Logger

	mu         sync.Mutex
	conn       *websocket.Conn
	nextID     int64
	started    bool
	lastClicks int64
}

func NewCDP(cfg config.ApprovalConfig, log *slog.Logger) (*CDP, error) {
	probeTimeout, err := config.DurationOrDefault(cfg.CDP.ProbeTimeout, config.DefaultCDPProbeTimeout)
	if err != nil {
		return nil, fmt.Errorf("parse cdp probe timeout: %w", err)
	}
	evalTimeout, err := config.DurationOrDefault(cfg.CDP.EvalTimeout, config.DefaultCDPEvalTimeout)
	if err != nil {
		return nil, fmt.Errorf("parse cdp eval timeout: %w", err)
	}

	return &CDP{
		cfg:          cfg,
		probeTimeout: probeTimeout,
		evalTimeout:  evalTimeout,
		probe:        &http.Client{Timeout: probeTimeout},
		dialer:       &websocket.Dialer{HandshakeTimeout: probeTimeout},
		log:          log,
	}, nil
}

func (c *CDP) Name() string {
	return StrategyCDP
}

// AttemptApprove ensures the injected script is running in an attached target
// and reports clicks performed since the previous tick. A lost connection is
// dropped and re-established on the next tick.
func (c *CDP) AttemptApprove(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		if err := c.attachLocked(ctx); err != nil {
			return false, err
		}
	}

	if !c.started {
		if _, err := c.evalLocked(ctx, injectedScript); err != nil {
			c.dropLocked()
			return false, err
		}
		cfgJSON, err := json.Marshal(c.injectedConfig())
		if err != nil {
			return false, err
		}
		if _, err := c.evalLocked(ctx, fmt.Sprintf("window.__mezame.start(%s)", cfgJSON)); err != nil {
			c.dropLocked()
			return false, err
		}
		c.started = true
		c.log.Info("injected approver started")
	}

	raw, err := c.evalLocked(ctx, "window.__mezame.state.stats.clicks")
	if err != nil {
		c.dropLocked()
		return false, err
	}

	var clicks int64
	if err := json.Unmarshal(raw, &clicks); err != nil {
		return false, nil
	}
	approved := clicks > c.lastClicks
	c.lastClicks = clicks
	return approved, nil
}

// SetRuleConfig pushes the current deny/allow lists and polling interval into
// the injected script, when one is attached.
func (c *CDP) SetRuleConfig(ctx context.Context, deny, allow []string, interval time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cfg.DenyList = deny
	c.cfg.AllowList = allow
	if !c.started {
		return nil
	}

	cfgJSON, err := json.Marshal(injectedConfig{
		DenyList:   deny,
		AllowList:  allow,
		IntervalMs: int(interval / time.Millisecond),
	})
	if err != nil {
		return err
	}
	if _, err := c.evalLocked(ctx, fmt.Sprintf("window.__mezame.setConfig(%s)", cfgJSON)); err != nil {
		c.dropLocked()
		return err
	}
	return nil
}

// Close stops the injected script and tears down the socket. Safe to call
// repeatedly.
func (c *CDP) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil && c.started {
		ctx, cancel := context.WithTimeout(context.Background(), c.evalTimeout)
		_, _ = c.evalLocked(ctx, "window.__mezame.stop()")
		cancel()
	}
	c.dropLocked()
	return nil
}

func (c *CDP) injectedConfig() injectedConfig {
	intervalMs := 750
	if d, err := config.DurationOrDefault(c.cfg.PollInterval, config.DefaultApprovalPollInterval); err == nil {
		intervalMs = int(d / time.Millisecond)
	}
	return injectedConfig{
		DenyList:   c.cfg.DenyList,
		AllowList:  c.cfg.AllowList,
		IntervalMs: intervalMs,
	}
}

// attachLocked probes the debug port range and connects to the first webview
// target that exposes a debugger endpoint.
func (c *CDP) attachLocked(ctx context.Context) error {
	portStart := c.cfg.CDP.PortStart
	if portStart == 0 {
		portStart = config.DefaultCDPPortStart
	}
	portEnd := c.cfg.CDP.PortEnd
	if portEnd < portStart {
		portEnd = config.DefaultCDPPortEnd
	}

	for port := portStart; port <= portEnd; port++ {
		if !c.portAlive(ctx, port) {
			continue
		}
		target, ok := c.pickTarget(ctx, port)
		if !ok {
			continue
		}
		conn, _, err := c.dialer.DialContext(ctx, target.DebuggerURL, nil)
		if err != nil {
			c.log.Debug("debugger dial failed", "port", port, "error", err)
			continue
		}
		c.conn = conn
		c.started = false
		c.lastClicks = 0
		c.log.Info("attached to debug target", "port", port, "title", target.Title)
		return nil
	}
	return fmt.Errorf("no debug target found in ports %d-%d", portStart, portEnd)
}

func (c *CDP) portAlive(ctx context.Context, port int) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("http://127.0.0.1:%d/json/version", port), nil)
	if err != nil {
		return false
	}
	resp, err := c.probe.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (c *CDP) pickTarget(ctx context.Context, port int) (cdpTarget, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("http://127.0.0.1:%d/json/list", port), nil)
	if err != nil {
		return cdpTarget{}, false
	}
	resp, err := c.probe.Do(req)
	if err != nil {
		return cdpTarget{}, false
	}
	defer resp.Body.Close()

	var targets []cdpTarget
	if err := json.NewDecoder(resp.Body).Decode(&targets); err != nil {
		return cdpTarget{}, false
	}
	for _, t := range targets {
		if t.DebuggerURL == "" {
			continue
		}
		if t.Type == "page" || strings.Contains(strings.ToLower(t.URL), "webview") {
			return t, true
		}
	}
	return cdpTarget{}, false
}

type evalRequest struct {
	ID     int64                  `json:"id"`
	Method string                 `json:"method"`
	Params map[string]interface{} `json:"params"`
}

type evalResponse struct {
	ID     int64 `json:"id"`
	Result struct {
		Result struct {
			Value json.RawMessage `json:"value"`
		} `json:"result"`
	} `json:"result"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// evalLocked runs one Runtime.evaluate round-trip, skipping unsolicited
// protocol events until the matching response id arrives.
func (c *CDP) evalLocked(ctx context.Context, expression string) (json.RawMessage, error) {
	c.nextID++
	id := c.nextID

	deadline := time.Now().Add(c.evalTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.conn.SetWriteDeadline(deadline)
	_ = c.conn.SetReadDeadline(deadline)

	req := evalRequest{
		ID:     id,
		Method: "Runtime.evaluate",
		Params: map[string]interface{}{
			"expression":    expression,
			"returnByValue": true,
		},
	}
	if err := c.conn.WriteJSON(req); err != nil {
		return nil, fmt.Errorf("evaluate write: %w", err)
	}

	for {
		var resp evalResponse
		if err := c.conn.ReadJSON(&resp); err != nil {
			return nil, fmt.Errorf("evaluate read: %w", err)
		}
		if resp.ID != id {
			continue
		}
		if resp.Error != nil {
			return nil, fmt.Errorf("evaluate failed: %s", resp.Error.Message)
		}
		return resp.Result.Result.Value, nil
	}
}

func (c *CDP) dropLocked() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.started = false
}
