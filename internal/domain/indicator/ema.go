package indicator

import "optiontrader/internal/domain/valueobject"

// EMASeries holds the per-bar fast/slow EMA series.
type EMASeries struct {
	Fast []float64
	Slow []float64
}

func ComputeEMA(closes []float64, fastPeriod, slowPeriod int) EMASeries {
	return EMASeries{Fast: ewmSeries(closes, fastPeriod), Slow: ewmSeries(closes, slowPeriod)}
}

func (s EMASeries) LatestState(lookback int) *valueobject.EMAState {
	n := len(s.Fast)
	if n == 0 {
		return nil
	}
	return &valueobject.EMAState{
		FastEMA: s.Fast[n-1],
		SlowEMA: s.Slow[n-1],
		Trend:   determineTrend(s, lookback),
	}
}

// determineTrend mirrors EmaCalculatorService.determine_trend: up if the
// fast EMA has stayed strictly above the slow EMA for the whole lookback
// window and is itself rising; down if mirrored; neutral otherwise.
func determineTrend(s EMASeries, lookback int) valueobject.TrendStatus {
	n := len(s.Fast)
	if n < lookback {
		return valueobject.TrendNeutral
	}
	fast := s.Fast[n-lookback:]
	slow := s.Slow[n-lookback:]

	fastDirection := fast[len(fast)-1] - fast[0]
	aboveAll, belowAll := true, true
	for i := range fast {
		if !(fast[i] > slow[i]) {
			aboveAll = false
		}
		if !(fast[i] < slow[i]) {
			belowAll = false
		}
	}
	switch {
	case aboveAll && fastDirection > 0:
		return valueobject.TrendUp
	case belowAll && fastDirection < 0:
		return valueobject.TrendDown
	default:
		return valueobject.TrendNeutral
	}
}

// CheckCross reports golden/death crosses between the last two bars.
func (s EMASeries) CheckCross() (golden, death bool) {
	n := len(s.Fast)
	if n < 2 {
		return false, false
	}
	prevFast, prevSlow := s.Fast[n-2], s.Slow[n-2]
	currFast, currSlow := s.Fast[n-1], s.Slow[n-1]
	golden = prevFast <= prevSlow && currFast > currSlow
	death = prevFast >= prevSlow && currFast < currSlow
	return golden, death
}
