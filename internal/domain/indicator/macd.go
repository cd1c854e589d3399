package indicator

import "optiontrader/internal/domain/valueobject"

// ewmSeries computes pandas-style ewm(adjust=False).mean(): a plain
// recursive EMA seeded by the first sample, y[0]=x[0],
// y[i]=alpha*x[i]+(1-alpha)*y[i-1].
func ewmSeries(values []float64, span int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	alpha := 2.0 / (float64(span) + 1.0)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// MACDSeries holds the per-bar DIF/DEA/MACD-bar series for peak
// detection and dullness/divergence state transitions.
type MACDSeries struct {
	Dif     []float64
	Dea     []float64
	MacdBar []float64
}

// ComputeMACD computes the MACD series over the full closing-price
// history, matching MacdCalculatorService.compute.
func ComputeMACD(closes []float64, fastPeriod, slowPeriod, signalPeriod int) MACDSeries {
	emaFast := ewmSeries(closes, fastPeriod)
	emaSlow := ewmSeries(closes, slowPeriod)
	dif := make([]float64, len(closes))
	for i := range closes {
		dif[i] = emaFast[i] - emaSlow[i]
	}
	dea := ewmSeries(dif, signalPeriod)
	macdBar := make([]float64, len(closes))
	for i := range closes {
		macdBar[i] = 2 * (dif[i] - dea[i])
	}
	return MACDSeries{Dif: dif, Dea: dea, MacdBar: macdBar}
}

func (s MACDSeries) Latest() *valueobject.MACDValue {
	n := len(s.Dif)
	if n == 0 {
		return nil
	}
	return &valueobject.MACDValue{Dif: s.Dif[n-1], Dea: s.Dea[n-1], MacdBar: s.MacdBar[n-1]}
}

// MACDPeak is one detected local extremum of the MACD histogram.
type MACDPeak struct {
	Index int
	Time  int64
	Price float64
	Dif   float64
	IsTop bool
}

// DetectPeaks finds local maxima (macd_bar>0) and minima (macd_bar<0)
// within a +-lookback window, matching MacdCalculatorService.detect_peaks.
func DetectPeaks(series MACDSeries, closes []float64, times []int64, lookback int) []MACDPeak {
	n := len(series.MacdBar)
	var peaks []MACDPeak
	for i := lookback; i < n-lookback; i++ {
		current := series.MacdBar[i]
		switch {
		case current > 0:
			isPeak := true
			for j := i - lookback; j <= i+lookback; j++ {
				if j == i {
					continue
				}
				if current < series.MacdBar[j] {
					isPeak = false
					break
				}
			}
			if isPeak {
				peaks = append(peaks, MACDPeak{Index: i, Time: times[i], Price: closes[i], Dif: series.Dif[i], IsTop: true})
			}
		case current < 0:
			isValley := true
			for j := i - lookback; j <= i+lookback; j++ {
				if j == i {
					continue
				}
				if current > series.MacdBar[j] {
					isValley = false
					break
				}
			}
			if isValley {
				peaks = append(peaks, MACDPeak{Index: i, Time: times[i], Price: closes[i], Dif: series.Dif[i], IsTop: false})
			}
		}
	}
	return peaks
}
