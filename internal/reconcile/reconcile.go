package reconcile

import (
	"fmt"
	"strconv"
	"strings"
)

// Entry is one ledger line as read back from the business application.
type Entry struct {
	// Position is the 1-based line index inside the account view.
	Position int
	// Document is the piece number the line carries.
	Document string
	Debit    float64
	Credit   float64
	// Tag is the reconciliation letter already applied, empty when the
	// line is still open.
	Tag string
	Ref string
}

// Reason explains why a pair did not match.
type Reason string

const (
	ReasonMatched       Reason = "matched"
	ReasonNotFound      Reason = "not_found"
	ReasonAlreadyTagged Reason = "already_tagged"
)

// Result reports the outcome of matching an invoice against a credit
// advice within one account.
type Result struct {
	Reason  Reason
	Invoice *Entry
	Advice  *Entry
	Message string
}

// Matched reports whether both sides were found and open.
func (r Result) Matched() bool {
	return r.Reason == ReasonMatched
}

// Match looks for the invoice and advice documents among the account
// entries. Comparison is case-insensitive and exact after trimming.
// Lookup takes the first entry carrying the document; a missing side
// is reported before a tagged one, and either side already lettered
// blocks the match.
func Match(entries []Entry, invoiceDoc, adviceDoc string) Result {
	invoice := find(entries, invoiceDoc)
	advice := find(entries, adviceDoc)

	switch {
	case invoice == nil:
		return Result{
			Reason:  ReasonNotFound,
			Advice:  advice,
			Message: fmt.Sprintf("invoice %s not found in account", invoiceDoc),
		}
	case advice == nil:
		return Result{
			Reason:  ReasonNotFound,
			Invoice: invoice,
			Message: fmt.Sprintf("credit advice %s not found in account", adviceDoc),
		}
	case strings.TrimSpace(invoice.Tag) != "":
		return Result{
			Reason:  ReasonAlreadyTagged,
			Invoice: invoice,
			Advice:  advice,
			Message: fmt.Sprintf("document %s already lettered with %q", invoice.Document, invoice.Tag),
		}
	case strings.TrimSpace(advice.Tag) != "":
		return Result{
			Reason:  ReasonAlreadyTagged,
			Invoice: invoice,
			Advice:  advice,
			Message: fmt.Sprintf("document %s already lettered with %q", advice.Document, advice.Tag),
		}
	default:
		return Result{
			Reason:  ReasonMatched,
			Invoice: invoice,
			Advice:  advice,
			Message: fmt.Sprintf("matched %s with %s", invoice.Document, advice.Document),
		}
	}
}

// find returns the first entry carrying the document, tagged or not.
func find(entries []Entry, document string) *Entry {
	want := normalize(document)
	if want == "" {
		return nil
	}
	for i := range entries {
		if normalize(entries[i].Document) == want {
			return &entries[i]
		}
	}
	return nil
}

func normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// ParseAmount converts a display amount such as "1 234,56" into a
// float. Spaces and non-breaking spaces are thousand separators, the
// comma is the decimal mark. A plain dot decimal also parses.
func ParseAmount(value string) (float64, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', ' ', ' ':
			return -1
		default:
			return r
		}
	}, strings.TrimSpace(value))
	if cleaned == "" {
		return 0, fmt.Errorf("empty amount")
	}
	cleaned = strings.ReplaceAll(cleaned, ",", ".")
	amount, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", value, err)
	}
	return amount, nil
}
