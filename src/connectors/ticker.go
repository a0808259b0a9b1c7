package connectors

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

const (
	tickerReconnectDelay = 5 * time.Second
	tickerReadTimeout    = 30 * time.Second
)

// Ticker is a streaming last-price cache over the broker's websocket
// feed. It subscribes in LTP mode and keeps the latest traded price per
// instrument token. The REST quote endpoint remains the source of truth
// for order pricing; the cache only serves the status endpoint and
// logging, so a stale or disconnected ticker is never fatal.
type Ticker struct {
	session *Session
	url     string

	mu     sync.RWMutex
	prices map[uint32]decimal.Decimal
	tokens []uint32
}

func NewTicker(session *Session, tokens []uint32) *Ticker {
	config := GetConfig()

	return &Ticker{
		session: session,
		url:     config.TickerURL,
		prices:  make(map[uint32]decimal.Decimal),
		tokens:  tokens,
	}
}

// LastPrice returns the cached last traded price for a token.
func (t *Ticker) LastPrice(token uint32) (decimal.Decimal, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	price, ok := t.prices[token]
	return price, ok
}

// Run connects and consumes ticks until the context is cancelled,
// reconnecting after transient failures.
func (t *Ticker) Run(ctx context.Context) {
	for {
		if err := t.consume(ctx); err != nil {
			logger.WithError(err).Warn("ticker stream interrupted")
		}

		select {
		case <-ctx.Done():
			logger.Info("ticker stopped")
			return
		case <-time.After(tickerReconnectDelay):
		}
	}
}

func (t *Ticker) consume(ctx context.Context) error {
	url := fmt.Sprintf("%s?api_key=%s&access_token=%s", t.url, t.session.APIKey, t.session.AccessToken)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial ticker: %w", err)
	}
	defer conn.Close()

	if err := t.subscribe(conn); err != nil {
		return err
	}

	logger.WithField("tokens", len(t.tokens)).Info("ticker stream connected")

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		if err := conn.SetReadDeadline(time.Now().Add(tickerReadTimeout)); err != nil {
			return fmt.Errorf("set read deadline: %w", err)
		}

		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read tick: %w", err)
		}

		if msgType == websocket.BinaryMessage {
			t.applyTicks(data)
		}
	}
}

func (t *Ticker) subscribe(conn *websocket.Conn) error {
	sub := map[string]interface{}{"a": "subscribe", "v": t.tokens}
	mode := map[string]interface{}{"a": "mode", "v": []interface{}{"ltp", t.tokens}}

	for _, msg := range []map[string]interface{}{sub, mode} {
		b, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("marshal subscribe message: %w", err)
		}
		if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
			return fmt.Errorf("write subscribe message: %w", err)
		}
	}
	return nil
}

// applyTicks decodes an LTP-mode binary frame: a 2-byte packet count,
// then per packet a 2-byte length followed by 4-byte token and 4-byte
// price in paise.
func (t *Ticker) applyTicks(data []byte) {
	if len(data) < 2 {
		return
	}
	count := int(binary.BigEndian.Uint16(data[0:2]))
	offset := 2

	t.mu.Lock()
	defer t.mu.Unlock()

	for i := 0; i < count; i++ {
		if offset+2 > len(data) {
			return
		}
		length := int(binary.BigEndian.Uint16(data[offset : offset+2]))
		offset += 2
		if offset+length > len(data) || length < 8 {
			return
		}

		token := binary.BigEndian.Uint32(data[offset : offset+4])
		paise := binary.BigEndian.Uint32(data[offset+4 : offset+8])
		t.prices[token] = decimal.New(int64(paise), -2)

		offset += length
	}
}
