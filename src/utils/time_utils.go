package utils

import "time"

// Indian market timings. All scheduling decisions are made in IST
// regardless of the host timezone.
var (
	marketOpen  = clock{9, 15}
	marketClose = clock{15, 30}
)

type clock struct {
	hour, minute int
}

// IST returns the exchange timezone. The IANA zone must be present on
// the host; the fixed offset fallback keeps the executor usable in
// minimal containers.
func IST() *time.Location {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		return time.FixedZone("IST", 5*3600+1800)
	}
	return loc
}

// MinutesOfDay collapses a timestamp to minutes since midnight IST.
func MinutesOfDay(t time.Time) int {
	t = t.In(IST())
	return t.Hour()*60 + t.Minute()
}

// WithinMarketHours reports whether t falls inside the trading session.
func WithinMarketHours(t time.Time) bool {
	m := MinutesOfDay(t)
	return m >= marketOpen.minutes() && m <= marketClose.minutes()
}

// Before reports whether t is earlier than hour:minute IST on the same day.
func Before(t time.Time, hour, minute int) bool {
	return MinutesOfDay(t) < hour*60+minute
}

// After reports whether t is later than hour:minute IST on the same day.
func After(t time.Time, hour, minute int) bool {
	return MinutesOfDay(t) > hour*60+minute
}

func (c clock) minutes() int {
	return c.hour*60 + c.minute
}
