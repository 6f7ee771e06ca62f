package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"triarb/internal/infra/metrics"
	"triarb/internal/orderbook"
)

// streamTicker is one frame of the all-market !bookTicker stream.
type streamTicker struct {
	UpdateID int64  `json:"u"`
	Symbol   string `json:"s"`
	BidPrice string `json:"b"`
	BidQty   string `json:"B"`
	AskPrice string `json:"a"`
	AskQty   string `json:"A"`
}

// StreamBookTickers reads the !bookTicker stream and calls fn for every
// valid frame. The connection is re-dialled with exponential backoff until
// ctx is done.
func (a *Adapter) StreamBookTickers(ctx context.Context, fn func(orderbook.BookTicker)) error {
	if a.wsURL == "" {
		return errors.New("binance: websocket url not configured")
	}
	backoff := time.Second
	for {
		started := time.Now()
		err := a.streamOnce(ctx, fn)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		reason := "read"
		if errors.Is(err, errDial) {
			reason = "dial"
		}
		metrics.WSReconnectsTotal.WithLabelValues(a.Name(), reason).Inc()
		if time.Since(started) > time.Minute {
			backoff = time.Second
		}
		a.logger.Warn().Err(err).Dur("backoff", backoff).Msg("book ticker stream lost")
		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		backoff = min(backoff*2, 30*time.Second)
	}
}

var errDial = errors.New("dial")

func (a *Adapter) streamOnce(ctx context.Context, fn func(orderbook.BookTicker)) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, a.wsURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", errDial, err)
	}
	defer func() { _ = conn.Close() }()
	a.logger.Info().Str("url", a.wsURL).Msg("book ticker stream connected")

	keepAlive := a.keepAlive
	if keepAlive <= 0 {
		keepAlive = 15 * time.Second
	}
	readTimeout := 3 * keepAlive
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})
	// the server pings every few minutes and drops clients that do not answer
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		tick := time.NewTicker(keepAlive)
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"), time.Now().Add(time.Second))
				_ = conn.Close()
				return
			case <-done:
				return
			case <-tick.C:
				if err := conn.WriteControl(websocket.PingMessage, []byte("keepalive"), time.Now().Add(5*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		var m streamTicker
		if err := json.Unmarshal(data, &m); err != nil || m.Symbol == "" {
			continue
		}
		bt := orderbook.BookTicker{
			Symbol:   m.Symbol,
			BidPrice: parse(m.BidPrice),
			BidQty:   parse(m.BidQty),
			AskPrice: parse(m.AskPrice),
			AskQty:   parse(m.AskQty),
		}
		if bt.Valid() {
			fn(bt)
		}
	}
}
