package reports

import (
	"bytes"
	"encoding/csv"
	"testing"
)

func TestCSVWriteInto(t *testing.T) {
	var buf bytes.Buffer
	if err := (&CSV{}).WriteInto(&buf, sampleHistory()); err != nil {
		t.Fatalf("write: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid csv: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows without header, got %d", len(rows))
	}
	if rows[0][1] != "myWallet" || rows[0][3] != "10000" {
		t.Fatalf("unexpected first row: %v", rows[0])
	}
	if rows[1][4] != "anotherWallet" {
		t.Fatalf("unexpected counterpart column: %v", rows[1])
	}
}

func TestCSVWithHeader(t *testing.T) {
	var buf bytes.Buffer
	if err := (&CSV{WithHeader: true}).WriteInto(&buf, sampleHistory()); err != nil {
		t.Fatalf("write: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "id" || rows[0][5] != "resulting_balance" {
		t.Fatalf("unexpected header: %v", rows[0])
	}
}

func TestCSVEmptyHistory(t *testing.T) {
	var buf bytes.Buffer
	if err := (&CSV{WithHeader: true}).WriteInto(&buf, nil); err != nil {
		t.Fatalf("write: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected only the header, got %d rows", len(rows))
	}
}
