package reports

import (
	"encoding/json"
	"io"

	"github.com/okapi-pay/okapi_pay/internal/ledger"
)

// JSON renders history as a JSON array. An empty history renders as [] rather
// than null.
type JSON struct {
	WithIndent bool
}

func (r *JSON) WriteInto(w io.Writer, history []ledger.Entry) error {
	if history == nil {
		history = []ledger.Entry{}
	}
	e := json.NewEncoder(w)
	if r.WithIndent {
		e.SetIndent("", "\t")
	}
	return e.Encode(history)
}
