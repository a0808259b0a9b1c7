package connectors

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aamirazhar/phithebot/src/model"
	"github.com/aamirazhar/phithebot/src/utils"
)

func testSession() *Session {
	now := time.Now()
	return &Session{
		APIKey:      "testkey",
		AccessToken: "testtoken",
		IssuedAt:    now,
		Expiry:      now.Add(8 * time.Hour),
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*KiteClient, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewKiteClient(testSession())
	client.http.SetBaseURL(srv.URL)
	client.http.SetRetryCount(0)
	return client, srv
}

func TestPlaceOrderSubmitsLimitOrder(t *testing.T) {
	var gotForm map[string]string

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/orders/regular" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		gotForm = map[string]string{}
		for k := range r.PostForm {
			gotForm[k] = r.PostForm.Get(k)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","data":{"order_id":"210428000000001"}}`))
	})

	orderID, err := client.PlaceOrder(context.Background(), OrderParams{
		TradingSymbol:   "NIFTY26AUG24800CE",
		TransactionType: model.TransactionBuy,
		Quantity:        75,
		Price:           decimal.RequireFromString("104.80"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if orderID != "210428000000001" {
		t.Fatalf("order id mismatch: %s", orderID)
	}

	want := map[string]string{
		"exchange":         ExchangeNFO,
		"tradingsymbol":    "NIFTY26AUG24800CE",
		"transaction_type": "BUY",
		"quantity":         "75",
		"product":          "NRML",
		"order_type":       "LIMIT",
		"price":            "104.8",
		"validity":         "DAY",
	}
	for k, v := range want {
		if gotForm[k] != v {
			t.Fatalf("form field %s mismatch. got=%q want=%q", k, gotForm[k], v)
		}
	}
}

func TestExpiredSessionBlocksRequests(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		t.Fatal("expired session must never reach the gateway")
	})
	client.session.Expiry = time.Now().Add(-time.Minute)

	_, err := client.Orders(context.Background())
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
}

func TestTokenExceptionMapsToSessionExpired(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"status":"error","message":"Token is invalid","error_type":"TokenException"}`))
	})

	_, err := client.Orders(context.Background())
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
}

func TestNetworkExceptionIsTransient(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"error","message":"upstream unreachable","error_type":"NetworkException"}`))
	})

	_, err := client.Orders(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsTransient(err) {
		t.Fatalf("expected a transient error, got %v", err)
	}
}

func TestOrderHistoryParsesBrokerTimestamps(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/orders/210428000000001" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","data":[
			{"order_id":"210428000000001","status":"OPEN","tradingsymbol":"NIFTY26AUG24800CE",
			 "transaction_type":"BUY","order_type":"LIMIT","quantity":75,"price":104.8,
			 "order_timestamp":"2026-08-27 10:30:02"},
			{"order_id":"210428000000001","status":"COMPLETE","tradingsymbol":"NIFTY26AUG24800CE",
			 "transaction_type":"BUY","order_type":"LIMIT","quantity":75,"price":104.8,
			 "order_timestamp":"2026-08-27 10:30:02","exchange_update_timestamp":"2026-08-27 10:31:40"}
		]}`))
	})

	history, err := client.OrderHistory(context.Background(), "210428000000001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(history))
	}

	latest := history[len(history)-1]
	if latest.Status != model.OrderStatusComplete {
		t.Fatalf("latest snapshot must be last, got %s", latest.Status)
	}
	want := time.Date(2026, time.August, 27, 10, 30, 2, 0, utils.IST())
	if !latest.OrderTimestamp.Equal(want) {
		t.Fatalf("order timestamp mismatch. got=%s want=%s", latest.OrderTimestamp, want)
	}
	if !latest.Price.Equal(decimal.RequireFromString("104.8")) {
		t.Fatalf("price mismatch: %s", latest.Price.String())
	}
}

func TestLTPParsesQuote(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("i"); got != "NSE:NIFTY 50" {
			t.Fatalf("instrument query mismatch: %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","data":{"NSE:NIFTY 50":{"instrument_token":256265,"last_price":24873.4}}}`))
	})

	quote, err := client.LTP(context.Background(), "NSE:NIFTY 50")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quote.InstrumentToken != 256265 {
		t.Fatalf("token mismatch: %d", quote.InstrumentToken)
	}
	if !quote.LastPrice.Equal(decimal.RequireFromString("24873.4")) {
		t.Fatalf("price mismatch: %s", quote.LastPrice.String())
	}
}

func TestHistoricalCandlesParsesRows(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/instruments/historical/256265/15minute" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","data":{"candles":[
			["2026-08-27T10:15:00+05:30",24850.0,24881.2,24833.6,24873.4,125000],
			["2026-08-27T10:30:00+05:30",24873.4,24890.0,24860.1,24880.0,98000]
		]}}`))
	})

	candles, err := client.HistoricalCandles(context.Background(), 256265, 2, model.Interval15Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(candles))
	}

	first := candles[0]
	wantDate := time.Date(2026, time.August, 27, 10, 15, 0, 0, utils.IST())
	if !first.Date.Equal(wantDate) {
		t.Fatalf("candle date mismatch. got=%s want=%s", first.Date, wantDate)
	}
	if !first.Close.Equal(decimal.RequireFromString("24873.4")) {
		t.Fatalf("close mismatch: %s", first.Close.String())
	}
	if first.Volume != 125000 {
		t.Fatalf("volume mismatch: %d", first.Volume)
	}
}

func TestInvalidateSessionExpiresToken(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/session/token" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","data":true}`))
	})

	if err := client.InvalidateSession(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.session.Valid(time.Now()) {
		t.Fatal("session must be invalid after logout")
	}
}
