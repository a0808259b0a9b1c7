// REST API CLIENT FOR THE KITE CONNECT BROKER GATEWAY
// RESTY ONLY + INTERNAL RETRY
package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"github.com/aamirazhar/phithebot/src/model"
	"github.com/aamirazhar/phithebot/src/utils"
)

const (
	defaultRetryAttempts   = 3
	defaultRetryBaseDelay  = 500 * time.Millisecond
	defaultRetryMaxBackoff = 4 * time.Second

	kiteTimeLayout = "2006-01-02 15:04:05"

	ExchangeNFO = "NFO"
	ExchangeNSE = "NSE"

	productNRML = "NRML"
	validityDay = "DAY"
	varietyReg  = "regular"
)

// -----------------------------
// API RESPONSE WRAPPER
// -----------------------------
type apiResponse struct {
	Status    string          `json:"status"`
	Message   string          `json:"message"`
	ErrorType string          `json:"error_type"`
	Data      json.RawMessage `json:"data"`
}

// kiteOrder is the wire shape of an order on the history/list endpoints.
type kiteOrder struct {
	OrderID                 string  `json:"order_id"`
	Status                  string  `json:"status"`
	TradingSymbol           string  `json:"tradingsymbol"`
	TransactionType         string  `json:"transaction_type"`
	OrderType               string  `json:"order_type"`
	Quantity                int     `json:"quantity"`
	Price                   float64 `json:"price"`
	InstrumentToken         uint32  `json:"instrument_token"`
	OrderTimestamp          string  `json:"order_timestamp"`
	ExchangeUpdateTimestamp string  `json:"exchange_update_timestamp"`
}

func (o *kiteOrder) toModel() model.BrokerOrder {
	return model.BrokerOrder{
		OrderID:                 o.OrderID,
		Status:                  o.Status,
		TradingSymbol:           o.TradingSymbol,
		TransactionType:         o.TransactionType,
		OrderType:               o.OrderType,
		Quantity:                o.Quantity,
		Price:                   decimal.NewFromFloat(o.Price),
		InstrumentToken:         o.InstrumentToken,
		OrderTimestamp:          parseKiteTime(o.OrderTimestamp),
		ExchangeUpdateTimestamp: parseKiteTime(o.ExchangeUpdateTimestamp),
	}
}

func parseKiteTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation(kiteTimeLayout, s, utils.IST())
	if err != nil {
		logger.WithField("value", s).WithError(err).Warn("failed to parse broker timestamp")
		return time.Time{}
	}
	return t
}

// -----------------------------
// AUTHENTICATED CLIENT
// -----------------------------

// KiteClient is the broker gateway client. All operations are blocking
// network calls bounded by the resty client timeout.
type KiteClient struct {
	session *Session
	http    *resty.Client
	now     func() time.Time
}

func isRetryableResp(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if r == nil {
		return false
	}

	code := r.StatusCode()
	if code >= 500 && code <= 599 {
		return true
	}
	if code == http.StatusTooManyRequests || code == http.StatusRequestTimeout {
		return true
	}
	return false
}

func NewKiteClient(session *Session) *KiteClient {
	config := GetConfig()

	httpClient := resty.New().
		SetBaseURL(config.BaseURL).
		SetTimeout(config.HTTPTimeout).
		SetHeader("X-Kite-Version", "3").
		SetRetryCount(defaultRetryAttempts - 1).
		SetRetryWaitTime(defaultRetryBaseDelay).
		SetRetryMaxWaitTime(defaultRetryMaxBackoff).
		AddRetryCondition(isRetryableResp)

	return &KiteClient{
		session: session,
		http:    httpClient,
		now:     time.Now,
	}
}

// Session exposes the active session for expiry checks by callers.
func (c *KiteClient) Session() *Session {
	return c.session
}

func (c *KiteClient) doRequest(ctx context.Context, method, path string, query map[string]string, form map[string]string) (*apiResponse, error) {
	op := method + " " + path

	if !c.session.Valid(c.now()) {
		return nil, ErrSessionExpired
	}

	req := c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", fmt.Sprintf("token %s:%s", c.session.APIKey, c.session.AccessToken))

	if query != nil {
		req = req.SetQueryParams(query)
	}
	if form != nil {
		req = req.SetFormData(form)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		logger.WithFields(logger.Fields{
			"method": method,
			"path":   path,
		}).WithError(err).Error("broker gateway request failed")
		return nil, &TransientError{Op: op, Err: err}
	}

	logger.WithFields(logger.Fields{
		"method": method,
		"path":   path,
		"status": resp.StatusCode(),
	}).Debug("broker gateway response")

	var apiResp apiResponse
	if err := json.Unmarshal(resp.Body(), &apiResp); err != nil {
		return nil, fmt.Errorf("unmarshal gateway response: %w", err)
	}

	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		if isRetryableResp(resp, nil) {
			return nil, &TransientError{Op: op, Err: fmt.Errorf("http status %d: %s", resp.StatusCode(), apiResp.Message)}
		}
		if apiResp.ErrorType == "TokenException" {
			return nil, ErrSessionExpired
		}
		return nil, fmt.Errorf("gateway error (%s): %s", apiResp.ErrorType, apiResp.Message)
	}

	if apiResp.Status != "success" {
		if apiResp.ErrorType == "NetworkException" {
			return nil, &TransientError{Op: op, Err: fmt.Errorf("%s", apiResp.Message)}
		}
		return nil, fmt.Errorf("gateway error (%s): %s", apiResp.ErrorType, apiResp.Message)
	}

	return &apiResp, nil
}

// -----------------------------
// ORDERS
// -----------------------------

// OrderParams is a limit order submission.
type OrderParams struct {
	TradingSymbol   string
	Exchange        string
	TransactionType string
	Quantity        int
	Price           decimal.Decimal
}

// PlaceOrder submits a day-validity limit order and returns the broker
// order id. A transient error does NOT mean the order was not placed.
func (c *KiteClient) PlaceOrder(ctx context.Context, params OrderParams) (string, error) {
	exchange := params.Exchange
	if exchange == "" {
		exchange = ExchangeNFO
	}

	logger.WithFields(logger.Fields{
		"tradingsymbol":    params.TradingSymbol,
		"transaction_type": params.TransactionType,
		"quantity":         params.Quantity,
		"price":            params.Price.String(),
	}).Info("placing limit order")

	resp, err := c.doRequest(ctx, http.MethodPost, "/orders/"+varietyReg, nil, map[string]string{
		"exchange":         exchange,
		"tradingsymbol":    params.TradingSymbol,
		"transaction_type": params.TransactionType,
		"quantity":         fmt.Sprintf("%d", params.Quantity),
		"product":          productNRML,
		"order_type":       model.OrderTypeLimit,
		"price":            params.Price.String(),
		"validity":         validityDay,
	})
	if err != nil {
		return "", err
	}

	var data struct {
		OrderID string `json:"order_id"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return "", fmt.Errorf("unmarshal place order response: %w", err)
	}

	logger.WithField("order_id", data.OrderID).Info("limit order accepted by broker")
	return data.OrderID, nil
}

// ModifyOrder re-prices a resting order and returns its order id.
func (c *KiteClient) ModifyOrder(ctx context.Context, orderID string, quantity int, price decimal.Decimal) (string, error) {
	logger.WithFields(logger.Fields{
		"order_id": orderID,
		"quantity": quantity,
		"price":    price.String(),
	}).Info("modifying resting order")

	resp, err := c.doRequest(ctx, http.MethodPut, "/orders/"+varietyReg+"/"+orderID, nil, map[string]string{
		"quantity":   fmt.Sprintf("%d", quantity),
		"price":      price.String(),
		"order_type": model.OrderTypeLimit,
		"validity":   validityDay,
	})
	if err != nil {
		return "", err
	}

	var data struct {
		OrderID string `json:"order_id"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return "", fmt.Errorf("unmarshal modify order response: %w", err)
	}

	return data.OrderID, nil
}

// OrderHistory returns the status snapshots of one order, latest last.
func (c *KiteClient) OrderHistory(ctx context.Context, orderID string) ([]model.BrokerOrder, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/orders/"+orderID, nil, nil)
	if err != nil {
		return nil, err
	}

	var rows []kiteOrder
	if err := json.Unmarshal(resp.Data, &rows); err != nil {
		return nil, fmt.Errorf("unmarshal order history: %w", err)
	}

	orders := make([]model.BrokerOrder, 0, len(rows))
	for i := range rows {
		orders = append(orders, rows[i].toModel())
	}
	return orders, nil
}

// Orders returns all orders submitted today, oldest first.
func (c *KiteClient) Orders(ctx context.Context) ([]model.BrokerOrder, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/orders", nil, nil)
	if err != nil {
		return nil, err
	}

	var rows []kiteOrder
	if err := json.Unmarshal(resp.Data, &rows); err != nil {
		return nil, fmt.Errorf("unmarshal order list: %w", err)
	}

	orders := make([]model.BrokerOrder, 0, len(rows))
	for i := range rows {
		orders = append(orders, rows[i].toModel())
	}
	return orders, nil
}

// -----------------------------
// QUOTES & HISTORICAL DATA
// -----------------------------

// LTP fetches the last traded price for an exchange-qualified symbol,
// e.g. "NFO:NIFTY21APR15000CE" or "NSE:NIFTY 50".
func (c *KiteClient) LTP(ctx context.Context, exchangeSymbol string) (model.Quote, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/quote/ltp", map[string]string{"i": exchangeSymbol}, nil)
	if err != nil {
		return model.Quote{}, err
	}

	var data map[string]struct {
		InstrumentToken uint32  `json:"instrument_token"`
		LastPrice       float64 `json:"last_price"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return model.Quote{}, fmt.Errorf("unmarshal ltp response: %w", err)
	}

	q, ok := data[exchangeSymbol]
	if !ok {
		return model.Quote{}, fmt.Errorf("no quote returned for %s", exchangeSymbol)
	}

	return model.Quote{
		TradingSymbol:   exchangeSymbol,
		InstrumentToken: q.InstrumentToken,
		LastPrice:       decimal.NewFromFloat(q.LastPrice),
	}, nil
}

// HistoricalCandles fetches OHLC bars for the last ndays days at the
// given interval, oldest first. The latest bar may still be forming.
func (c *KiteClient) HistoricalCandles(ctx context.Context, token uint32, ndays int, interval string) ([]model.Candle, error) {
	now := c.now().In(utils.IST())
	from := now.AddDate(0, 0, -ndays).Format("2006-01-02")
	to := now.Format("2006-01-02")

	path := fmt.Sprintf("/instruments/historical/%d/%s", token, interval)
	resp, err := c.doRequest(ctx, http.MethodGet, path, map[string]string{"from": from, "to": to}, nil)
	if err != nil {
		return nil, err
	}

	var data struct {
		Candles [][]json.RawMessage `json:"candles"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, fmt.Errorf("unmarshal historical data: %w", err)
	}

	candles := make([]model.Candle, 0, len(data.Candles))
	for _, row := range data.Candles {
		if len(row) < 6 {
			continue
		}
		var (
			ts         string
			o, h, l, c float64
			v          int64
		)
		if err := json.Unmarshal(row[0], &ts); err != nil {
			return nil, fmt.Errorf("unmarshal candle timestamp: %w", err)
		}
		for i, dst := range []*float64{&o, &h, &l, &c} {
			if err := json.Unmarshal(row[i+1], dst); err != nil {
				return nil, fmt.Errorf("unmarshal candle value: %w", err)
			}
		}
		if err := json.Unmarshal(row[5], &v); err != nil {
			return nil, fmt.Errorf("unmarshal candle volume: %w", err)
		}

		date, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return nil, fmt.Errorf("parse candle timestamp %q: %w", ts, err)
		}

		candles = append(candles, model.Candle{
			Date:   date.In(utils.IST()),
			Open:   decimal.NewFromFloat(o),
			High:   decimal.NewFromFloat(h),
			Low:    decimal.NewFromFloat(l),
			Close:  decimal.NewFromFloat(c),
			Volume: v,
		})
	}

	return candles, nil
}

// Positions returns the net open positions for the account.
func (c *KiteClient) Positions(ctx context.Context) ([]model.Position, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/portfolio/positions", nil, nil)
	if err != nil {
		return nil, err
	}

	var data struct {
		Net []struct {
			TradingSymbol string  `json:"tradingsymbol"`
			Quantity      int     `json:"quantity"`
			LastPrice     float64 `json:"last_price"`
			PnL           float64 `json:"pnl"`
		} `json:"net"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, fmt.Errorf("unmarshal positions: %w", err)
	}

	positions := make([]model.Position, 0, len(data.Net))
	for _, p := range data.Net {
		positions = append(positions, model.Position{
			TradingSymbol: p.TradingSymbol,
			Quantity:      p.Quantity,
			LastPrice:     decimal.NewFromFloat(p.LastPrice),
			PnL:           decimal.NewFromFloat(p.PnL),
		})
	}
	return positions, nil
}

// InvalidateSession ends the broker session at the close of the
// trading day. The session value is unusable afterwards.
func (c *KiteClient) InvalidateSession(ctx context.Context) error {
	_, err := c.doRequest(ctx, http.MethodDelete, "/session/token", map[string]string{
		"api_key":      c.session.APIKey,
		"access_token": c.session.AccessToken,
	}, nil)
	if err != nil {
		return fmt.Errorf("invalidate session: %w", err)
	}

	c.session.Expiry = c.now()
	logger.Info("broker session invalidated")
	return nil
}
