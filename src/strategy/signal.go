package strategy

import (
	"fmt"
	"sort"
	"sync"

	"github.com/aamirazhar/phithebot/src/model"
)

// Evaluation is one row of a scored signal frame. The last row of a
// frame is the actionable signal for the current cycle.
type Evaluation struct {
	Candle      model.Candle
	LongSignal  string // LE, LX, Hold or None
	ShortSignal string // SE, SX, Hold or None
	Boost       int    // 1 doubles longs, -1 doubles shorts, 0 no effect
}

// EntrySignal returns the entry signal carried by this row, if any.
func (e *Evaluation) EntrySignal() (string, bool) {
	if e.LongSignal == model.SignalLongEntry {
		return model.SignalLongEntry, true
	}
	if e.ShortSignal == model.SignalShortEntry {
		return model.SignalShortEntry, true
	}
	return "", false
}

// ExitSignal returns the exit signal carried by this row, if any.
func (e *Evaluation) ExitSignal() (string, bool) {
	if e.LongSignal == model.SignalLongExit {
		return model.SignalLongExit, true
	}
	if e.ShortSignal == model.SignalShortExit {
		return model.SignalShortExit, true
	}
	return "", false
}

// SignalFunc scores historical bars and returns the signal frame. The
// scoring logic itself is user supplied; this module only consumes the
// frame's last row.
type SignalFunc func(candles []model.Candle) ([]Evaluation, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]SignalFunc{}
)

// Register binds a signal function to a strategy name. Strategies must
// be registered before the executor starts.
func Register(name string, fn SignalFunc) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = fn
}

// Lookup resolves the signal function configured for a strategy.
func Lookup(name string) (SignalFunc, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	fn, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("strategy %q has no registered signal function", name)
	}
	return fn, nil
}

// Registered lists the registered strategy names, sorted.
func Registered() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
