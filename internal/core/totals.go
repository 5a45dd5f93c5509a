package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type (
	// Bucket is the running aggregate for one (chat, business date,
	// shift, currency) key: the summed amount and how many entries
	// contributed to it.
	Bucket struct {
		Total    decimal.Decimal
		Invoices int64
	}

	// Totals maps each supported currency to its bucket. A Totals value
	// always carries every supported currency; inactive ones hold a
	// zero bucket rather than being absent.
	Totals map[Currency]Bucket
)

// NewTotals returns a Totals with a zero bucket for every supported
// currency, so callers always see both currencies represented.
func NewTotals() Totals {
	t := make(Totals, len(Currencies()))
	for _, c := range Currencies() {
		t[c] = Bucket{Total: decimal.Zero}
	}
	return t
}

// Add accumulates one contribution into the currency's bucket.
func (t Totals) Add(c Currency, amount decimal.Decimal) {
	b := t[c]
	b.Total = b.Total.Add(amount)
	b.Invoices++
	t[c] = b
}

// Set replaces the currency's bucket with an already-aggregated value.
func (t Totals) Set(c Currency, b Bucket) {
	t[c] = b
}

// Merge folds other into t, summing totals and invoice counts per
// currency. Used to collapse per-shift buckets into a business day.
func (t Totals) Merge(other Totals) {
	for c, b := range other {
		cur := t[c]
		cur.Total = cur.Total.Add(b.Total)
		cur.Invoices += b.Invoices
		t[c] = cur
	}
}

// Summary renders the reply line sent back to the chat:
//
//	USD: 12.50$ | KHR: 3,000៛
//
// USD keeps two decimals, KHR is rounded to whole riel and
// thousands-separated.
func (t Totals) Summary() string {
	usd := t[USD].Total.StringFixed(2)
	khr := groupThousands(t[KHR].Total.StringFixed(0))
	return fmt.Sprintf("USD: %s%s | KHR: %s%s", usd, USD.Symbol(), khr, KHR.Symbol())
}

// groupThousands inserts commas into a plain integer string.
func groupThousands(s string) string {
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	if len(s) <= 3 {
		if neg {
			return "-" + s
		}
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
