package symbols

import (
	"strings"
	"testing"
	"time"
)

func TestParseInstruments(t *testing.T) {
	csvDump := strings.Join([]string{
		"instrument_token,exchange_token,tradingsymbol,name,last_price,expiry,strike,tick_size,lot_size,instrument_type,segment,exchange",
		"10716162,41860,NIFTY26AUG24800CE,NIFTY,0,2026-08-27,24800.0,0.05,75,CE,NFO-OPT,NFO",
		"10716418,41861,NIFTY26AUG24800PE,NIFTY,0,2026-08-27,24800.0,0.05,75,PE,NFO-OPT,NFO",
		",,,,,,,,,,,", // row without a trading symbol is skipped
	}, "\n")

	instruments, err := parseInstruments(strings.NewReader(csvDump))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(instruments) != 2 {
		t.Fatalf("expected 2 instruments, got %d", len(instruments))
	}

	call := instruments[0]
	if call.TradingSymbol != "NIFTY26AUG24800CE" {
		t.Fatalf("symbol mismatch: %s", call.TradingSymbol)
	}
	if call.InstrumentToken != 10716162 {
		t.Fatalf("token mismatch: %d", call.InstrumentToken)
	}
	if call.Strike != 24800.0 || call.LotSize != 75 {
		t.Fatalf("contract terms mismatch: %+v", call)
	}
	if !call.Expiry.Equal(time.Date(2026, time.August, 27, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expiry mismatch: %s", call.Expiry)
	}
	if call.InstrumentType != "CE" || call.Exchange != "NFO" {
		t.Fatalf("classification mismatch: %+v", call)
	}
}

func TestParseInstrumentsDayFirstExpiry(t *testing.T) {
	csvDump := strings.Join([]string{
		"tradingsymbol,expiry",
		"NIFTY26AUG24800CE,27-08-2026",
	}, "\n")

	instruments, err := parseInstruments(strings.NewReader(csvDump))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(instruments) != 1 {
		t.Fatalf("expected 1 instrument, got %d", len(instruments))
	}
	if !instruments[0].Expiry.Equal(time.Date(2026, time.August, 27, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("day-first expiry not parsed: %s", instruments[0].Expiry)
	}
}

func TestParseInstrumentsMissingSymbolColumn(t *testing.T) {
	csvDump := "instrument_token,name\n123,NIFTY"

	if _, err := parseInstruments(strings.NewReader(csvDump)); err == nil {
		t.Fatal("expected error when the dump lacks a tradingsymbol column")
	}
}
