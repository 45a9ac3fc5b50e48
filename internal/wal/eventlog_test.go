package wal

import (
	"path/filepath"
	"testing"
)

func TestEventLog_AppendAssignsSequentialTxns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "_event")
	el, err := openEventLog(path)
	if err != nil {
		t.Fatalf("open event log: %v", err)
	}
	defer el.close()

	txn0, err := el.Append(EventData, 1000, []byte(`{"rowCount":1}`))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	txn1, err := el.Append(EventData, 2000, []byte(`{"rowCount":2}`))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if txn0 != 0 || txn1 != 1 {
		t.Fatalf("expected sequential txns 0,1, got %d,%d", txn0, txn1)
	}
	if el.NextTxn() != 2 {
		t.Fatalf("expected NextTxn 2, got %d", el.NextTxn())
	}
}

func TestEventLog_RecoversNextTxnOnReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "_event")
	el, err := openEventLog(path)
	if err != nil {
		t.Fatalf("open event log: %v", err)
	}
	if _, err := el.Append(EventData, 1000, nil); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := el.Append(EventTruncate, 2000, nil); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := el.close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := openEventLog(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.close()
	if reopened.NextTxn() != 2 {
		t.Fatalf("expected recovered NextTxn 2, got %d", reopened.NextTxn())
	}
}

func TestEventLogReader_ReadsBackPayloadAndKind(t *testing.T) {
	path := filepath.Join(t.TempDir(), "_event")
	el, err := openEventLog(path)
	if err != nil {
		t.Fatalf("open event log: %v", err)
	}
	payload := []byte(`{"rowCount":5}`)
	if _, err := el.Append(EventData, 12345, payload); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := el.close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	r, err := newEventLogReader(path)
	if err != nil {
		t.Fatalf("new reader: %v", err)
	}
	defer r.Close()

	rec, err := r.Next()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if rec.Kind != EventData {
		t.Fatalf("expected EventData, got %s", rec.Kind)
	}
	if rec.Timestamp != 12345 {
		t.Fatalf("expected timestamp 12345, got %d", rec.Timestamp)
	}
	if string(rec.Payload) != string(payload) {
		t.Fatalf("payload mismatch: got %q want %q", rec.Payload, payload)
	}
}

func TestEventKind_String(t *testing.T) {
	cases := map[EventKind]string{
		EventData:     "DATA",
		EventSQL:      "SQL",
		EventTruncate: "TRUNCATE",
		EventKind(99): "UNKNOWN",
	}
	for kind, want := range cases {
		if got := kind.String(); got != want {
			t.Fatalf("EventKind(%d).String() = %q, want %q", kind, got, want)
		}
	}
}
