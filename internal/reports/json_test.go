package reports

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/okapi-pay/okapi_pay/internal/ledger"
)

func sampleHistory() []ledger.Entry {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return []ledger.Entry{
		{ID: 1, Wallet: "myWallet", Type: ledger.EntryDeposit, Amount: 10_000, ResultingBalance: 10_000, Time: at},
		{ID: 2, Wallet: "myWallet", Type: ledger.EntryTransferOut, Amount: 100, Counterpart: "anotherWallet", ResultingBalance: 9_900, Time: at.Add(time.Minute)},
	}
}

func TestJSONWriteInto(t *testing.T) {
	var buf bytes.Buffer
	w := &JSON{}
	if err := w.WriteInto(&buf, sampleHistory()); err != nil {
		t.Fatalf("write: %v", err)
	}

	var decoded []ledger.Entry
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid json: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(decoded))
	}
	if decoded[1].Counterpart != "anotherWallet" {
		t.Fatalf("counterpart lost: %+v", decoded[1])
	}
}

func TestJSONEmptyHistoryIsArray(t *testing.T) {
	var buf bytes.Buffer
	if err := (&JSON{}).WriteInto(&buf, nil); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := strings.TrimSpace(buf.String()); got != "[]" {
		t.Fatalf("expected [], got %q", got)
	}
}

func TestJSONWithIndent(t *testing.T) {
	var buf bytes.Buffer
	if err := (&JSON{WithIndent: true}).WriteInto(&buf, sampleHistory()); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !strings.Contains(buf.String(), "\n\t") {
		t.Fatal("expected indented output")
	}
}
