package model

import (
	"testing"
	"time"
)

func TestTransactionTypeForSlot(t *testing.T) {
	tests := []struct {
		slot string
		want string
	}{
		{slot: SignalLongEntry, want: TransactionBuy},
		{slot: SignalShortEntry, want: TransactionBuy},
		{slot: SignalLongExit, want: TransactionSell},
		{slot: SignalShortExit, want: TransactionSell},
	}

	for _, tt := range tests {
		got, err := TransactionTypeForSlot(tt.slot)
		if err != nil {
			t.Fatalf("unexpected error for %s: %v", tt.slot, err)
		}
		if got != tt.want {
			t.Fatalf("slot %s: got %s, want %s", tt.slot, got, tt.want)
		}
	}

	for _, slot := range []string{SignalHold, SignalNone, "", "XX"} {
		if _, err := TransactionTypeForSlot(slot); err == nil {
			t.Fatalf("expected error for slot %q", slot)
		}
	}
}

func TestCompanionEntrySlot(t *testing.T) {
	if got, _ := CompanionEntrySlot(SignalLongExit); got != SignalLongEntry {
		t.Fatalf("LX closes LE, got %s", got)
	}
	if got, _ := CompanionEntrySlot(SignalShortExit); got != SignalShortEntry {
		t.Fatalf("SX closes SE, got %s", got)
	}
	if _, err := CompanionEntrySlot(SignalLongEntry); err == nil {
		t.Fatal("entry slots have no companion entry")
	}
}

func TestSnapshotLiveness(t *testing.T) {
	empty := EmptySnapshot("alpha", SignalLongEntry, time.Now())
	if !empty.IsEmpty() || empty.IsLive() {
		t.Fatalf("fresh slot must be empty and not live: %+v", empty)
	}

	open := empty
	open.OrderID = "OID1"
	open.Status = OrderStatusOpen
	if open.IsEmpty() || !open.IsLive() {
		t.Fatalf("open order must be live: %+v", open)
	}

	for _, status := range []string{OrderStatusComplete, OrderStatusRejected} {
		terminal := open
		terminal.Status = status
		if terminal.IsLive() {
			t.Fatalf("%s order must not be live", status)
		}
	}

	// Broker-specific intermediate statuses still need reconciling.
	pending := open
	pending.Status = "TRIGGER PENDING"
	if !pending.IsLive() {
		t.Fatal("unknown broker statuses must stay live")
	}
}

func TestBrokerOrderSnapshotTagsSlot(t *testing.T) {
	order := BrokerOrder{
		OrderID:       "OID1",
		Status:        OrderStatusOpen,
		TradingSymbol: "NIFTY26AUG24800CE",
		Quantity:      75,
	}

	snap := order.Snapshot("alpha", SignalLongEntry)
	if snap.Strategy != "alpha" || snap.Slot != SignalLongEntry {
		t.Fatalf("snapshot not keyed to its slot: %+v", snap)
	}
	if snap.Signal != SignalLongEntry {
		t.Fatalf("signal must mirror the slot: %+v", snap)
	}
}
