package reports

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/okapi-pay/okapi_pay/internal/ledger"
)

// CSV renders history as comma-separated rows, optionally with a header.
type CSV struct {
	WithHeader bool
}

var csvHeader = []string{"id", "wallet", "type", "amount", "counterpart", "resulting_balance", "time"}

func entryToRow(e ledger.Entry) []string {
	return []string{
		strconv.FormatInt(e.ID, 10),
		e.Wallet,
		string(e.Type),
		strconv.FormatInt(e.Amount, 10),
		e.Counterpart,
		strconv.FormatInt(e.ResultingBalance, 10),
		e.Time.UTC().Format(time.RFC3339Nano),
	}
}

func (r *CSV) WriteInto(w io.Writer, history []ledger.Entry) error {
	csvw := csv.NewWriter(w)
	if r.WithHeader {
		if err := csvw.Write(csvHeader); err != nil {
			return fmt.Errorf("cannot write header: %w", err)
		}
	}
	for _, item := range history {
		if err := csvw.Write(entryToRow(item)); err != nil {
			return fmt.Errorf("cannot write row: %w", err)
		}
	}
	csvw.Flush()
	return csvw.Error()
}
