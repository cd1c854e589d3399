package live

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/relvacode/iso8601"

	"optiontrader/internal/domain/valueobject"
)

const (
	feedPingInterval     = 30 * time.Second
	feedReadTimeout      = 90 * time.Second
	feedMaxReconnectWait = 30 * time.Second
	feedWriteTimeout     = 10 * time.Second
	feedBufferSize       = 256
)

// BarHandler receives one completed bar for vtSymbol as it arrives off
// the market feed; Pipeline.OnBars wraps this into a one-symbol batch.
type BarHandler func(vtSymbol string, bar valueobject.Bar)

// MarketFeed is a reconnecting WebSocket connection to the exchange's
// market-data channel. It has no ContractParams method, so on its own
// it does not satisfy gateway.MarketDataGateway. Grounded
// on the teacher's internal/exchanges/binance/websocket.go
// WebSocketManager: auto-reconnect with exponential backoff,
// re-subscribe on reconnect, read-deadline-driven dead-connection
// detection, and a ping keepalive loop — all carried over unchanged;
// only the message shape (bar events, not order-book deltas) differs.
type MarketFeed struct {
	url    string
	conn   *websocket.Conn
	connMu sync.Mutex

	subscribedMu sync.RWMutex
	subscribed   map[string]bool

	onBar  BarHandler
	logger *slog.Logger
}

func NewMarketFeed(url string, onBar BarHandler, logger *slog.Logger) *MarketFeed {
	if logger == nil {
		logger = slog.Default()
	}
	return &MarketFeed{
		url: url, subscribed: make(map[string]bool),
		onBar: onBar, logger: logger.With("component", "live_market_feed"),
	}
}

// Subscribe satisfies gateway.MarketDataGateway.
func (f *MarketFeed) Subscribe(ctx context.Context, symbols []string) error {
	f.subscribedMu.Lock()
	for _, s := range symbols {
		f.subscribed[s] = true
	}
	f.subscribedMu.Unlock()
	return f.writeJSON(map[string]any{"op": "subscribe", "symbols": symbols})
}

// Unsubscribe satisfies gateway.MarketDataGateway.
func (f *MarketFeed) Unsubscribe(ctx context.Context, symbols []string) error {
	f.subscribedMu.Lock()
	for _, s := range symbols {
		delete(f.subscribed, s)
	}
	f.subscribedMu.Unlock()
	return f.writeJSON(map[string]any{"op": "unsubscribe", "symbols": symbols})
}

// ContractParams is not served by the market feed; the live gateway's
// REST Client answers it instead (gateway.MarketDataGateway is split
// across the two for this reason, composed together at wiring time).

// Run dials and maintains the connection, reconnecting with
// exponential backoff until ctx is cancelled.
func (f *MarketFeed) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		err := f.connectAndRead(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		f.logger.Warn("market feed disconnected, reconnecting", "error", err, "backoff", backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > feedMaxReconnectWait {
			backoff = feedMaxReconnectWait
		}
	}
}

func (f *MarketFeed) Close() error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn != nil {
		return f.conn.Close()
	}
	return nil
}

func (f *MarketFeed) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	f.connMu.Lock()
	f.conn = conn
	f.connMu.Unlock()
	defer func() {
		f.connMu.Lock()
		conn.Close()
		f.conn = nil
		f.connMu.Unlock()
	}()

	if err := f.resubscribe(); err != nil {
		return fmt.Errorf("resubscribe: %w", err)
	}
	f.logger.Info("market feed connected")

	pingCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go f.pingLoop(pingCtx)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn.SetReadDeadline(time.Now().Add(feedReadTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		f.dispatch(msg)
	}
}

func (f *MarketFeed) resubscribe() error {
	f.subscribedMu.RLock()
	symbols := make([]string, 0, len(f.subscribed))
	for s := range f.subscribed {
		symbols = append(symbols, s)
	}
	f.subscribedMu.RUnlock()
	if len(symbols) == 0 {
		return nil
	}
	return f.writeJSON(map[string]any{"op": "subscribe", "symbols": symbols})
}

type barEvent struct {
	EventType string  `json:"event_type"`
	Symbol    string  `json:"symbol"`
	Time      string  `json:"time"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

func (f *MarketFeed) dispatch(data []byte) {
	var evt barEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		f.logger.Debug("market feed: ignoring non-json message", "data", string(data))
		return
	}
	if evt.EventType != "bar" {
		f.logger.Debug("market feed: ignoring event", "type", evt.EventType)
		return
	}

	ts, err := iso8601.ParseString(evt.Time)
	if err != nil {
		f.logger.Error("market feed: unparsable bar timestamp", "symbol", evt.Symbol, "value", evt.Time, "error", err)
		return
	}

	bar := valueobject.Bar{Time: ts.Unix(), Open: evt.Open, High: evt.High, Low: evt.Low, Close: evt.Close, Volume: evt.Volume}
	if f.onBar != nil {
		f.onBar(evt.Symbol, bar)
	}
}

func (f *MarketFeed) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(feedPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := f.writeMessage(websocket.PingMessage, nil); err != nil {
				f.logger.Warn("market feed: ping failed", "error", err)
				return
			}
		}
	}
}

func (f *MarketFeed) writeJSON(v any) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn == nil {
		return fmt.Errorf("market feed: not connected")
	}
	f.conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
	return f.conn.WriteJSON(v)
}

func (f *MarketFeed) writeMessage(msgType int, data []byte) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn == nil {
		return fmt.Errorf("market feed: not connected")
	}
	f.conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
	return f.conn.WriteMessage(msgType, data)
}
