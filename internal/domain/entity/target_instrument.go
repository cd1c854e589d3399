// Package entity holds the mutable, identity-bearing domain types:
// TargetInstrument (per-symbol bar history + indicators), Position
// (strategy-owned option/future position), and Order (one working or
// finished exchange order). Grounded on original_source/.../entity/*.py.
package entity

import (
	"optiontrader/internal/domain/ringbuffer"
	"optiontrader/internal/domain/valueobject"
)

// MinBarsForSignal is the default "enough data" threshold below which
// the signal services are never consulted.
const MinBarsForSignal = 30

// TargetInstrument is the per-symbol market data aggregate: an ordered
// bar history plus the latest indicator snapshot produced by the
// indicator service.
type TargetInstrument struct {
	Symbol         string
	bars           *ringbuffer.Bars
	Indicators     valueobject.IndicatorResult
	LastUpdateTime int64
}

// NewTargetInstrument creates an instrument with an unbounded bar
// history (capacity <= 0). Pass a positive capacity to bound memory use
// for long-running symbols.
func NewTargetInstrument(symbol string, capacity int) *TargetInstrument {
	return &TargetInstrument{Symbol: symbol, bars: ringbuffer.New(capacity)}
}

// AppendBar appends a new bar and stamps the update time.
func (t *TargetInstrument) AppendBar(bar valueobject.Bar) {
	t.bars.Append(bar)
	t.LastUpdateTime = bar.Time
}

// HasEnoughData reports whether the instrument has accumulated the
// minimum bar history required before signal services may be consulted.
func (t *TargetInstrument) HasEnoughData() bool {
	return t.bars.Len() >= MinBarsForSignal
}

func (t *TargetInstrument) LatestClose() (float64, bool) {
	bar, ok := t.bars.Last()
	return bar.Close, ok
}

func (t *TargetInstrument) LatestHigh() (float64, bool) {
	bar, ok := t.bars.Last()
	return bar.High, ok
}

func (t *TargetInstrument) LatestLow() (float64, bool) {
	bar, ok := t.bars.Last()
	return bar.Low, ok
}

// BarHistory returns the last n bars, oldest first.
func (t *TargetInstrument) BarHistory(n int) []valueobject.Bar {
	return t.bars.Tail(n)
}

// AllBars returns the full retained history, oldest first.
func (t *TargetInstrument) AllBars() []valueobject.Bar {
	return t.bars.Slice()
}

func (t *TargetInstrument) BarCount() int {
	return t.bars.Len()
}

// InstrumentSnapshot is the serializable form of a TargetInstrument.
type InstrumentSnapshot struct {
	Symbol         string                    `json:"symbol"`
	Bars           []valueobject.Bar         `json:"bars"`
	Indicators     valueobject.IndicatorResult `json:"indicators"`
	LastUpdateTime int64                     `json:"last_update_time"`
}

func (t *TargetInstrument) ToSnapshot() InstrumentSnapshot {
	return InstrumentSnapshot{
		Symbol:         t.Symbol,
		Bars:           t.AllBars(),
		Indicators:     t.Indicators,
		LastUpdateTime: t.LastUpdateTime,
	}
}

func FromInstrumentSnapshot(s InstrumentSnapshot) *TargetInstrument {
	t := NewTargetInstrument(s.Symbol, 0)
	for _, bar := range s.Bars {
		t.AppendBar(bar)
	}
	t.Indicators = s.Indicators
	t.LastUpdateTime = s.LastUpdateTime
	return t
}
