package valueobject

// MACDValue is a per-bar MACD snapshot: dif is the fast-minus-slow EMA
// spread, dea is its signal-line EMA, macd_bar is twice their difference.
type MACDValue struct {
	Dif     float64
	Dea     float64
	MacdBar float64
}

func (m MACDValue) IsGoldenCross() bool { return m.Dif > m.Dea }
func (m MACDValue) IsDeathCross() bool  { return m.Dif < m.Dea }
func (m MACDValue) IsAboveZero() bool   { return m.Dif > 0 }
func (m MACDValue) IsBelowZero() bool   { return m.Dif < 0 }

// TDValue is a per-bar DeMark TD Setup snapshot.
type TDValue struct {
	Count     int // positive = buy setup, negative = sell setup
	Setup     int
	HasBuy89  bool
	HasSell89 bool
}

func (t TDValue) IsBuySetupComplete() bool  { return t.Count >= 9 }
func (t TDValue) IsSellSetupComplete() bool { return t.Count <= -9 }
func (t TDValue) IsBuySignalActive() bool   { return t.HasBuy89 || t.IsBuySetupComplete() }
func (t TDValue) IsSellSignalActive() bool  { return t.HasSell89 || t.IsSellSetupComplete() }

// TrendStatus is the EMA trend classification.
type TrendStatus string

const (
	TrendUp      TrendStatus = "up"
	TrendDown    TrendStatus = "down"
	TrendNeutral TrendStatus = "neutral"
)

// EMAState is a per-bar fast/slow EMA snapshot.
type EMAState struct {
	FastEMA float64
	SlowEMA float64
	Trend   TrendStatus
}

func (e EMAState) IsBullish() bool  { return e.FastEMA > e.SlowEMA }
func (e EMAState) IsBearish() bool  { return e.FastEMA < e.SlowEMA }
func (e EMAState) IsUptrend() bool  { return e.Trend == TrendUp }
func (e EMAState) IsDowntrend() bool { return e.Trend == TrendDown }
func (e EMAState) Spread() float64  { return e.FastEMA - e.SlowEMA }

func (e EMAState) SpreadPct() float64 {
	if e.SlowEMA == 0 {
		return 0
	}
	return (e.FastEMA - e.SlowEMA) / e.SlowEMA * 100
}

// DullnessState is the persistent MACD-dullness state machine value:
// "dullness" is a sustained shrink of the MACD histogram that has not
// (yet) resolved into a confirmed divergence. Updates return a new value
// rather than mutating in place, matching the rest of this package.
type DullnessState struct {
	TopActive         bool
	BottomActive      bool
	StartTime         int64
	StartPrice        float64
	StartDiff         float64
	TopInvalidated    bool
	BottomInvalidated bool
}

func (d DullnessState) IsActive() bool      { return d.TopActive || d.BottomActive }
func (d DullnessState) IsInvalidated() bool { return d.TopInvalidated || d.BottomInvalidated }

func (d DullnessState) WithTopActive(startTime int64, startPrice, startDiff float64) DullnessState {
	return DullnessState{TopActive: true, StartTime: startTime, StartPrice: startPrice, StartDiff: startDiff}
}

func (d DullnessState) WithBottomActive(startTime int64, startPrice, startDiff float64) DullnessState {
	return DullnessState{BottomActive: true, StartTime: startTime, StartPrice: startPrice, StartDiff: startDiff}
}

func (d DullnessState) WithTopInvalidated() DullnessState {
	d.TopActive = false
	d.TopInvalidated = true
	return d
}

func (d DullnessState) WithBottomInvalidated() DullnessState {
	d.BottomActive = false
	d.BottomInvalidated = true
	return d
}

func (d DullnessState) Reset() DullnessState {
	return DullnessState{}
}

// DivergenceState is the confirmed-divergence state value.
type DivergenceState struct {
	TopConfirmed    bool
	BottomConfirmed bool
	ConfirmTime     int64
	ConfirmPrice    float64
	ConfirmDiff     float64
}

func (d DivergenceState) IsConfirmed() bool { return d.TopConfirmed || d.BottomConfirmed }

func (d DivergenceState) WithTopConfirmed(confirmTime int64, confirmPrice, confirmDiff float64) DivergenceState {
	return DivergenceState{TopConfirmed: true, ConfirmTime: confirmTime, ConfirmPrice: confirmPrice, ConfirmDiff: confirmDiff}
}

func (d DivergenceState) WithBottomConfirmed(confirmTime int64, confirmPrice, confirmDiff float64) DivergenceState {
	return DivergenceState{BottomConfirmed: true, ConfirmTime: confirmTime, ConfirmPrice: confirmPrice, ConfirmDiff: confirmDiff}
}

func (d DivergenceState) Reset() DivergenceState {
	return DivergenceState{}
}

// IndicatorResult aggregates one calculate_all() pass across all
// indicator services. Typed fields rather than a dynamic map per the
// per-instrument indicator bag redesign: the producing services are
// fixed and known ahead of time.
type IndicatorResult struct {
	MACD       *MACDValue
	TD         *TDValue
	EMA        *EMAState
	Dullness   *DullnessState
	Divergence *DivergenceState
}

func (r IndicatorResult) IsComplete() bool {
	return r.MACD != nil && r.TD != nil && r.EMA != nil && r.Dullness != nil && r.Divergence != nil
}
