package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/marovik/scribe/telemetry"
)

const (
	heartbeatInterval = 30 * time.Second
	reconnectBase     = time.Second
	reconnectMax      = time.Minute
	maxFrameSize      = 1 << 20
)

// frame is the gateway wire envelope.
type frame struct {
	Op    string          `json:"op"`
	Type  string          `json:"type,omitempty"`
	Token string          `json:"token,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Gateway holds the realtime socket to the platform and fans message
// events out to registered handlers. Run blocks until the context ends,
// reconnecting with capped backoff whenever the socket drops.
type Gateway struct {
	URL   string
	Token string

	// ReconnectBase overrides the initial reconnect delay. Zero means
	// one second.
	ReconnectBase time.Duration

	mu        sync.Mutex
	handlers  []func(Record)
	connected atomic.Bool
}

func NewGateway(url, token string) *Gateway {
	return &Gateway{URL: url, Token: token}
}

// OnMessage registers a handler for new records. Handlers run on the
// read loop and must not block.
func (g *Gateway) OnMessage(fn func(Record)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.handlers = append(g.handlers, fn)
}

// Connected reports whether the socket is currently up and identified.
func (g *Gateway) Connected() bool {
	return g.connected.Load()
}

// Run connects and processes events until ctx is done. Every drop is
// followed by a jittered, exponentially growing delay; the delay resets
// after a connection that held for over a minute.
func (g *Gateway) Run(ctx context.Context) error {
	base := g.ReconnectBase
	if base <= 0 {
		base = reconnectBase
	}
	delay := base
	for {
		start := time.Now()
		err := g.runOnce(ctx)
		g.connected.Store(false)
		telemetry.UpdateGatewayGauge(false)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if time.Since(start) > time.Minute {
			delay = base
		}
		telemetry.GatewayReconnects.Inc()
		slog.Warn("gateway disconnected, reconnecting",
			slog.Any("err", err),
			slog.Duration("delay", delay))
		if err := sleepContext(ctx, jitterDuration(delay)); err != nil {
			return err
		}
		delay *= 2
		if delay > reconnectMax {
			delay = reconnectMax
		}
	}
}

func (g *Gateway) runOnce(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, g.URL, nil)
	if err != nil {
		return fmt.Errorf("dial gateway: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")
	conn.SetReadLimit(maxFrameSize)

	if err := wsjson.Write(ctx, conn, frame{Op: "identify", Token: g.Token}); err != nil {
		return fmt.Errorf("identify: %w", err)
	}
	var ready frame
	if err := wsjson.Read(ctx, conn, &ready); err != nil {
		return fmt.Errorf("read ready: %w", err)
	}
	if ready.Op != "ready" {
		return fmt.Errorf("expected ready frame, got op %q", ready.Op)
	}
	g.connected.Store(true)
	telemetry.UpdateGatewayGauge(true)
	slog.Info("gateway connected")

	hbCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go g.heartbeat(hbCtx, conn)

	for {
		var f frame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			return err
		}
		switch f.Op {
		case "heartbeat_ack":
		case "event":
			if f.Type != "message_create" {
				continue
			}
			var rec Record
			if err := json.Unmarshal(f.Data, &rec); err != nil {
				slog.Warn("gateway: bad event payload", slog.Any("err", err))
				continue
			}
			g.dispatch(rec)
		}
	}
}

func (g *Gateway) heartbeat(ctx context.Context, conn *websocket.Conn) {
	t := time.NewTicker(heartbeatInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := wsjson.Write(ctx, conn, frame{Op: "heartbeat"}); err != nil {
				return
			}
		}
	}
}

func (g *Gateway) dispatch(rec Record) {
	g.mu.Lock()
	handlers := append(([]func(Record))(nil), g.handlers...)
	g.mu.Unlock()
	for _, fn := range handlers {
		fn(rec)
	}
}

func jitterDuration(d time.Duration) time.Duration {
	f := 0.8 + 0.4*rand.Float64()
	return time.Duration(float64(d) * f)
}
