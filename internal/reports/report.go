// Package reports renders wallet history into caller-facing formats.
package reports

import (
	"io"

	"github.com/okapi-pay/okapi_pay/internal/ledger"
)

// ReportWriter renders a history slice into w.
type ReportWriter interface {
	WriteInto(w io.Writer, history []ledger.Entry) error
}
