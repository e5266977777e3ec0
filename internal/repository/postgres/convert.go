package postgres

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// The wizard keeps money and count figures as free text until persistence.
// These helpers map between that text form and the nullable storage columns:
// empty or unparseable text becomes NULL, NULL reads back as empty text.

func parseDecimalText(s string) *decimal.Decimal {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	return &d
}

func decimalText(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.String()
}

func parseIntText(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}

func intText(n int) string {
	return strconv.Itoa(n)
}
