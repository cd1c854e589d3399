package futures

import (
	"fmt"
	"strings"
	"time"
)

// SymbolGenerator builds standard vt_symbols for a product across a
// month range. Grounded on
// original_source/.../backtesting/discovery/symbol_generator.py.
type SymbolGenerator struct {
	resolver ExchangeResolver
}

func NewSymbolGenerator() *SymbolGenerator { return &SymbolGenerator{} }

// GenerateForRange returns every vt_symbol for productCode from
// (startYear, startMonth) through (endYear, endMonth) inclusive. CZCE
// products use a 3-digit contract code (1-digit year + 2-digit month,
// e.g. AP601); every other exchange uses 4 digits (e.g. rb2601). If
// productCode already carries an exchange suffix ("."), it is returned
// unchanged as a single-element slice.
func (g *SymbolGenerator) GenerateForRange(productCode string, startYear int, startMonth time.Month, endYear int, endMonth time.Month) ([]string, error) {
	if strings.Contains(productCode, ".") {
		return []string{productCode}, nil
	}

	exchange, err := g.resolver.Resolve(productCode)
	if err != nil {
		return nil, err
	}
	isCZCE := exchange == "CZCE"

	var symbols []string
	year, month := startYear, startMonth
	endVal := endYear*100 + int(endMonth)
	for year*100+int(month) <= endVal {
		var code string
		if isCZCE {
			yearChar := fmt.Sprintf("%d", year)
			code = fmt.Sprintf("%s%s%02d", productCode, yearChar[len(yearChar)-1:], int(month))
		} else {
			code = fmt.Sprintf("%s%02d%02d", productCode, year%100, int(month))
		}
		symbols = append(symbols, code+"."+exchange)

		month++
		if month > time.December {
			month = time.January
			year++
		}
	}
	return symbols, nil
}

// GenerateRecent returns vt_symbols from the current month through
// monthsAhead months later.
func (g *SymbolGenerator) GenerateRecent(productCode string, monthsAhead int, now time.Time) ([]string, error) {
	startYear, startMonth := now.Year(), now.Month()
	totalMonths := now.Year()*12 + int(now.Month()) + monthsAhead
	endYear := (totalMonths - 1) / 12
	endMonth := time.Month((totalMonths-1)%12 + 1)
	return g.GenerateForRange(productCode, startYear, startMonth, endYear, endMonth)
}
