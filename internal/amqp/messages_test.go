package amqp

import (
	"testing"
	"time"
)

func TestLedgerEventMessageRoundTrip(t *testing.T) {
	msg := NewLedgerEventMessage(42, OpUpdate, []int64{1, 7})

	data, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := LedgerEventMessageFromJSON(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if got.TransactionID != 42 || got.Op != OpUpdate {
		t.Errorf("got %+v", got)
	}
	if len(got.AccountIDs) != 2 || got.AccountIDs[0] != 1 || got.AccountIDs[1] != 7 {
		t.Errorf("account ids: %v", got.AccountIDs)
	}
	if time.Since(got.Timestamp) > time.Minute {
		t.Errorf("timestamp not recent: %v", got.Timestamp)
	}
}

func TestLedgerEventMessageFromJSONRejectsGarbage(t *testing.T) {
	if _, err := LedgerEventMessageFromJSON([]byte("not json")); err == nil {
		t.Fatal("expected error")
	}
}
