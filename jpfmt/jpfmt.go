// Package jpfmt formats amounts and periods for Japanese-facing reports.
package jpfmt

import (
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.Japanese)

// Currency renders a yen amount with grouping, e.g. "¥1,234,567".
// Fractional sen are kept when present.
func Currency(d decimal.Decimal) string {
	if d.IsInteger() {
		return printer.Sprintf("¥%d", d.IntPart())
	}
	whole := d.Truncate(0)
	frac := d.Sub(whole).Abs().String() // "0.xxxx"
	return printer.Sprintf("¥%d", whole.IntPart()) + frac[1:]
}

// FiscalPeriod renders a (year, month) pair as "2025年4月度".
func FiscalPeriod(year, month int) string {
	return fmt.Sprintf("%d年%d月度", year, month)
}

// Percent renders a percentage with the sign kept, e.g. "-12.5%".
func Percent(d decimal.Decimal) string {
	return d.String() + "%"
}
