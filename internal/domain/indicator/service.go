// Package indicator computes the per-bar derived indicators
// (MACD/TD/EMA) and the persistent dullness/divergence state machines
// layered on top of them. Grounded on
// original_source/.../domain_service/{calculation_service/*,indicator_service}.py.
package indicator

import (
	"optiontrader/internal/domain/entity"
	"optiontrader/internal/domain/valueobject"
)

// Service computes all indicators for an instrument in one pass. Default
// periods match spec.md §4.B.1's explicit text (EMA fast=12/slow=26,
// MACD 12/26/9) rather than the Python demo service's ema_fast=5/
// ema_slow=20 default — see DESIGN.md's Open Question resolution.
type Service struct {
	MACDFast     int
	MACDSlow     int
	MACDSignal   int
	EMAFast      int
	EMASlow      int
	PeakLookback int
	TrendLookback int
}

func NewService() *Service {
	return &Service{
		MACDFast:      12,
		MACDSlow:      26,
		MACDSignal:    9,
		EMAFast:       12,
		EMASlow:       26,
		PeakLookback:  5,
		TrendLookback: 5,
	}
}

// LogFunc receives debug-level trace lines, mirroring the Python
// service's optional log_func callback.
type LogFunc func(msg string, args ...any)

// CalculateAll runs the full MACD -> TD -> EMA -> dullness -> divergence
// chain and returns the result; it does not mutate the instrument.
// Callers write the result into instrument.Indicators themselves (the
// aggregate owns the write per spec.md §4.B.2's read-only service
// contract).
func (s *Service) CalculateAll(instrument *entity.TargetInstrument, prevDullness valueobject.DullnessState, prevDivergence valueobject.DivergenceState, log LogFunc) valueobject.IndicatorResult {
	bars := instrument.AllBars()
	if len(bars) < entity.MinBarsForSignal {
		return valueobject.IndicatorResult{}
	}

	closes := make([]float64, len(bars))
	times := make([]int64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
		times[i] = b.Time
	}

	macdSeries := ComputeMACD(closes, s.MACDFast, s.MACDSlow, s.MACDSignal)
	macdValue := macdSeries.Latest()

	tdCount, tdSetup := ComputeTD(closes)
	tdValue := LatestTDValue(tdCount, tdSetup)

	emaSeries := ComputeEMA(closes, s.EMAFast, s.EMASlow)
	emaState := emaSeries.LatestState(s.TrendLookback)

	newDullness := s.CheckDullness(macdSeries, times, closes, prevDullness, log)
	newDivergence := s.CheckDivergence(macdSeries, closes, times, newDullness, prevDivergence, log)

	if log != nil && macdValue != nil && tdValue != nil && emaState != nil {
		log("indicator snapshot", "symbol", instrument.Symbol, "dif", macdValue.Dif, "dea", macdValue.Dea,
			"macd_bar", macdValue.MacdBar, "td_count", tdValue.Count, "fast_ema", emaState.FastEMA, "slow_ema", emaState.SlowEMA)
		if newDullness.TopActive != prevDullness.TopActive {
			log("top dullness state changed", "symbol", instrument.Symbol, "from", prevDullness.TopActive, "to", newDullness.TopActive)
		}
		if newDullness.BottomActive != prevDullness.BottomActive {
			log("bottom dullness state changed", "symbol", instrument.Symbol, "from", prevDullness.BottomActive, "to", newDullness.BottomActive)
		}
	}

	return valueobject.IndicatorResult{
		MACD:       macdValue,
		TD:         tdValue,
		EMA:        emaState,
		Dullness:   &newDullness,
		Divergence: &newDivergence,
	}
}

// CheckDullness implements the top/bottom dullness state machine:
// "dullness" is a run of 3 successive bars where the MACD histogram
// strictly shrinks (in absolute terms) while DIF stays on one side of
// zero; it is invalidated once the histogram grows again, and reset
// entirely when DIF crosses zero. Matches
// IndicatorService.check_dullness.
func (s *Service) CheckDullness(series MACDSeries, times []int64, closes []float64, prev valueobject.DullnessState, log LogFunc) valueobject.DullnessState {
	n := len(series.MacdBar)
	if n < 3 {
		return prev
	}
	current := valueobject.MACDValue{Dif: series.Dif[n-1], Dea: series.Dea[n-1], MacdBar: series.MacdBar[n-1]}
	prev1 := valueobject.MACDValue{Dif: series.Dif[n-2], Dea: series.Dea[n-2], MacdBar: series.MacdBar[n-2]}
	prev2 := valueobject.MACDValue{Dif: series.Dif[n-3], Dea: series.Dea[n-3], MacdBar: series.MacdBar[n-3]}

	currentTime := times[n-1]
	currentPrice := closes[n-1]

	switch {
	case current.IsAboveZero():
		if current.MacdBar < prev1.MacdBar && prev1.MacdBar < prev2.MacdBar {
			if !prev.TopActive {
				if log != nil {
					log("top dullness formed", "price", currentPrice, "dif", current.Dif)
				}
				return prev.WithTopActive(currentTime, currentPrice, current.Dif)
			}
		} else if prev.TopActive && current.MacdBar > prev1.MacdBar {
			if log != nil {
				log("top dullness invalidated", "from", prev1.MacdBar, "to", current.MacdBar)
			}
			return prev.WithTopInvalidated()
		}
	case current.IsBelowZero():
		if current.MacdBar > prev1.MacdBar && prev1.MacdBar > prev2.MacdBar {
			if !prev.BottomActive {
				if log != nil {
					log("bottom dullness formed", "price", currentPrice, "dif", current.Dif)
				}
				return prev.WithBottomActive(currentTime, currentPrice, current.Dif)
			}
		} else if prev.BottomActive && current.MacdBar < prev1.MacdBar {
			if log != nil {
				log("bottom dullness invalidated", "from", prev1.MacdBar, "to", current.MacdBar)
			}
			return prev.WithBottomInvalidated()
		}
	}

	if prev.IsActive() {
		crossedUp := prev1.IsAboveZero() && current.IsBelowZero()
		crossedDown := prev1.IsBelowZero() && current.IsAboveZero()
		if crossedUp || crossedDown {
			if log != nil {
				log("dullness reset on zero-line cross")
			}
			return prev.Reset()
		}
	}

	return prev
}

// CheckDivergence implements top/bottom divergence confirmation: given
// dullness is active on the relevant side, compare the two most recent
// same-signed MACD peaks — a new price extreme not confirmed by a
// matching DIF extreme is a divergence. Matches
// IndicatorService.check_divergence.
func (s *Service) CheckDivergence(series MACDSeries, closes []float64, times []int64, dullness valueobject.DullnessState, prev valueobject.DivergenceState, log LogFunc) valueobject.DivergenceState {
	n := len(series.MacdBar)
	if n < 20 {
		return prev
	}
	peaks := DetectPeaks(series, closes, times, s.PeakLookback)
	if len(peaks) < 2 {
		return prev
	}

	currentTime := times[n-1]
	currentPrice := closes[n-1]
	currentDif := series.Dif[n-1]

	var topPeaks, bottomPeaks []MACDPeak
	for _, p := range peaks {
		if p.IsTop {
			topPeaks = append(topPeaks, p)
		} else {
			bottomPeaks = append(bottomPeaks, p)
		}
	}

	if len(topPeaks) >= 2 && dullness.TopActive {
		recent := topPeaks[len(topPeaks)-1]
		prevTop := topPeaks[len(topPeaks)-2]
		if recent.Price > prevTop.Price && recent.Dif < prevTop.Dif {
			if log != nil {
				log("top divergence confirmed", "price_from", prevTop.Price, "price_to", recent.Price)
			}
			return prev.WithTopConfirmed(currentTime, currentPrice, currentDif)
		}
	}

	if len(bottomPeaks) >= 2 && dullness.BottomActive {
		recent := bottomPeaks[len(bottomPeaks)-1]
		prevBottom := bottomPeaks[len(bottomPeaks)-2]
		if recent.Price < prevBottom.Price && recent.Dif > prevBottom.Dif {
			if log != nil {
				log("bottom divergence confirmed", "price_from", prevBottom.Price, "price_to", recent.Price)
			}
			return prev.WithBottomConfirmed(currentTime, currentPrice, currentDif)
		}
	}

	return prev
}
