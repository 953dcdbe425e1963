package report

import (
	"fmt"
	"math"
	"math/big"

	"github.com/dustin/go-humanize"
)

// UnitsPerMLD is the number of base token units in one MLD
const UnitsPerMLD = 1_000_000

// FormatMLD renders a base-unit amount in MLD. Precision depends on the
// magnitude: >= 1000 MLD has no decimals, >= 100 MLD one, otherwise two.
func FormatMLD(units uint64) string {
	mld := float64(units) / UnitsPerMLD

	format := "#,###.##"
	switch {
	case mld >= 1000:
		format = "#,###."
	case mld >= 100:
		format = "#,###.#"
	}
	return humanize.FormatFloat(format, mld) + " MLD"
}

// FormatPct renders a percentage with two decimals
func FormatPct(pct float64) string {
	return fmt.Sprintf("%.2f%%", pct)
}

// FormatCount renders an integer with thousands separators
func FormatCount(n uint64) string {
	if n > math.MaxInt64 {
		return humanize.BigComma(new(big.Int).SetUint64(n))
	}
	return humanize.Comma(int64(n))
}
