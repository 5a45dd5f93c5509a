// Package core holds the domain model: currencies, shifts, the free-text
// amount parser and the totals aggregate.
//
// Amounts are decimals, never floats, so fractional precision survives
// parsing, storage and accumulation unchanged.
package core

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// ParsedAmount is one monetary mention extracted from a message.
type ParsedAmount struct {
	Amount   decimal.Decimal
	Currency Currency
}

// Two notations: a currency symbol before the number ($12.50, ៛5000)
// or the number followed by a 3-letter code (3000 khr), case-insensitive.
var amountPattern = regexp.MustCompile(`(?i)([$៛])\s*(\d+(?:\.\d+)?)|(\d+(?:\.\d+)?)\s*(USD|KHR)`)

// ParseAmounts extracts every monetary mention from text, left to right.
// Thousands separators are stripped before matching. Text with no
// monetary pattern yields an empty slice, not an error: menu commands
// and chatter are valid no-op inputs.
func ParseAmounts(text string) []ParsedAmount {
	text = strings.ReplaceAll(text, ",", "")

	matches := amountPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	out := make([]ParsedAmount, 0, len(matches))
	for _, m := range matches {
		var (
			raw      string
			currency Currency
		)
		if m[1] != "" {
			raw = m[2]
			if m[1] == "$" {
				currency = USD
			} else {
				currency = KHR
			}
		} else {
			raw = m[3]
			c, err := ParseCurrency(m[4])
			if err != nil {
				// The pattern only admits USD/KHR suffixes.
				continue
			}
			currency = c
		}

		amount, err := decimal.NewFromString(raw)
		if err != nil || amount.Sign() <= 0 {
			continue
		}
		out = append(out, ParsedAmount{Amount: amount, Currency: currency})
	}
	return out
}
