package model

import "fmt"

// Signal slot identifiers as emitted by the strategy signal functions.
// LE/SE open a position, LX/SX close it. Hold keeps an open position,
// None means no action this cycle.
const (
	SignalLongEntry  = "LE"
	SignalLongExit   = "LX"
	SignalShortEntry = "SE"
	SignalShortExit  = "SX"
	SignalHold       = "Hold"
	SignalNone       = "None"
)

const (
	TransactionBuy  = "BUY"
	TransactionSell = "SELL"
)

// SignalSlots is the fixed set of order slots tracked per strategy.
var SignalSlots = []string{SignalLongEntry, SignalLongExit, SignalShortEntry, SignalShortExit}

// IsEntrySlot reports whether the slot opens a position.
func IsEntrySlot(slot string) bool {
	return slot == SignalLongEntry || slot == SignalShortEntry
}

// IsExitSlot reports whether the slot closes a position.
func IsExitSlot(slot string) bool {
	return slot == SignalLongExit || slot == SignalShortExit
}

// CompanionEntrySlot returns the entry slot closed by the given exit slot.
func CompanionEntrySlot(exitSlot string) (string, error) {
	switch exitSlot {
	case SignalLongExit:
		return SignalLongEntry, nil
	case SignalShortExit:
		return SignalShortEntry, nil
	default:
		return "", fmt.Errorf("slot %q is not an exit slot", exitSlot)
	}
}

// TransactionTypeForSlot maps a slot to the broker transaction type.
// Options are bought on entry and sold on exit for both directions,
// since long signals buy calls and short signals buy puts.
func TransactionTypeForSlot(slot string) (string, error) {
	switch slot {
	case SignalLongEntry, SignalShortEntry:
		return TransactionBuy, nil
	case SignalLongExit, SignalShortExit:
		return TransactionSell, nil
	default:
		return "", fmt.Errorf("unknown signal slot %q", slot)
	}
}
