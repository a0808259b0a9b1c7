package symbols

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	logger "github.com/sirupsen/logrus"

	"github.com/aamirazhar/phithebot/src/model"
)

// expiry appears as 2021-04-29 in the broker dump; older exports used
// the day-first form.
var expiryLayouts = []string{"2006-01-02", "02-01-2006"}

// LoadInstrumentsCSV parses a broker instrument dump. Unknown columns
// are ignored; rows without a trading symbol are skipped.
func LoadInstrumentsCSV(path string) ([]model.Instrument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open instruments csv: %w", err)
	}
	defer f.Close()

	return parseInstruments(f)
}

func parseInstruments(r io.Reader) ([]model.Instrument, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	if _, ok := col["tradingsymbol"]; !ok {
		return nil, fmt.Errorf("instruments csv missing tradingsymbol column")
	}

	field := func(row []string, name string) string {
		idx, ok := col[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return row[idx]
	}

	var instruments []model.Instrument
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}

		symbol := field(row, "tradingsymbol")
		if symbol == "" {
			continue
		}

		token, _ := strconv.ParseUint(field(row, "instrument_token"), 10, 32)
		strike, _ := strconv.ParseFloat(field(row, "strike"), 64)
		lotSize, _ := strconv.Atoi(field(row, "lot_size"))

		instruments = append(instruments, model.Instrument{
			TradingSymbol:   symbol,
			InstrumentToken: uint32(token),
			Name:            field(row, "name"),
			Expiry:          parseExpiry(field(row, "expiry")),
			Strike:          strike,
			InstrumentType:  field(row, "instrument_type"),
			Segment:         field(row, "segment"),
			Exchange:        field(row, "exchange"),
			LotSize:         lotSize,
		})
	}

	logger.WithField("rows", len(instruments)).Info("parsed instrument dump")
	return instruments, nil
}

func parseExpiry(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range expiryLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	logger.WithField("value", s).Warn("unparseable expiry in instrument dump")
	return time.Time{}
}
