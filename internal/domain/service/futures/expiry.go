package futures

import (
	"fmt"
	"time"
)

// ExpiryCalculator computes a futures/options contract's expiry date
// from its product code and contract month, following each Chinese
// exchange's listing rule. Grounded on
// original_source/.../backtesting/contract/expiry_calculator.py.
//
// The Python source's chinese_calendar holiday lookup is optional
// there too (it degrades to weekend-only trading days when the import
// fails) — this port always takes that degraded path, since no package
// in the retrieved corpus provides a Chinese public-holiday calendar.
type ExpiryCalculator struct {
	resolver ExchangeResolver
	// ManualExpiry overrides the computed date for specific contracts
	// (symbol_key -> date), mirroring MANUAL_EXPIRY_CONFIG.
	ManualExpiry map[string]time.Time
}

func NewExpiryCalculator() *ExpiryCalculator {
	return &ExpiryCalculator{ManualExpiry: make(map[string]time.Time)}
}

// TradingDays returns every weekday in the given month (no holiday
// calendar — see the package doc comment).
func TradingDays(year int, month time.Month) []time.Time {
	var days []time.Time
	for d := 1; ; d++ {
		t := time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
		if t.Month() != month {
			break
		}
		if t.Weekday() != time.Saturday && t.Weekday() != time.Sunday {
			days = append(days, t)
		}
	}
	return days
}

// Calculate computes the expiry date for productCode's contract in
// the given (year, month), preferring an entry in ManualExpiry.
func (c *ExpiryCalculator) Calculate(productCode string, year int, month time.Month) time.Time {
	symbolKey := productCode + yyMM(year, month)
	if t, ok := c.ManualExpiry[symbolKey]; ok {
		return t
	}

	exchange, err := c.resolver.Resolve(productCode)
	if err != nil {
		return time.Date(year, month, 15, 0, 0, 0, 0, time.UTC)
	}

	preYear, preMonth := year, month-1
	if month == time.January {
		preYear, preMonth = year-1, time.December
	}

	switch exchange {
	case "CFFEX":
		return c.calcCFFEX(year, month)
	case "DCE":
		return c.calcNthTradingDay(preYear, preMonth, 12)
	case "CZCE":
		return c.calcNthTradingDay(preYear, preMonth, 15)
	case "SHFE", "INE":
		return c.calcFromLastTradingDay(preYear, preMonth, 5)
	}
	return time.Date(year, month, 15, 0, 0, 0, 0, time.UTC)
}

// calcCFFEX returns the contract month's third Friday.
func (c *ExpiryCalculator) calcCFFEX(year int, month time.Month) time.Time {
	var fridays []time.Time
	for d := 1; ; d++ {
		t := time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
		if t.Month() != month {
			break
		}
		if t.Weekday() == time.Friday {
			fridays = append(fridays, t)
		}
	}
	if len(fridays) >= 3 {
		return fridays[2]
	}
	return time.Date(year, month, 15, 0, 0, 0, 0, time.UTC)
}

// calcNthTradingDay returns the nth (1-based) trading day of
// (year, month), falling back to the last available trading day when
// the month has fewer than n, and to the 28th when it has none.
func (c *ExpiryCalculator) calcNthTradingDay(year int, month time.Month, n int) time.Time {
	days := TradingDays(year, month)
	if len(days) >= n {
		return days[n-1]
	}
	if len(days) > 0 {
		return days[len(days)-1]
	}
	return time.Date(year, month, 28, 0, 0, 0, 0, time.UTC)
}

// calcFromLastTradingDay returns the nth-from-last trading day of
// (year, month).
func (c *ExpiryCalculator) calcFromLastTradingDay(year int, month time.Month, n int) time.Time {
	days := TradingDays(year, month)
	if len(days) >= n {
		return days[len(days)-n]
	}
	if len(days) > 0 {
		return days[0]
	}
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
}

func yyMM(year int, month time.Month) string {
	return fmt.Sprintf("%02d%02d", year%100, int(month))
}
