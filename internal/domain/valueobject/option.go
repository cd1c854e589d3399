package valueobject

// OptionType distinguishes calls from puts.
type OptionType string

const (
	Call OptionType = "call"
	Put  OptionType = "put"
)

// OptionContract describes one listed option, including the fields the
// selector service needs to rank candidates (bid/ask, remaining trading
// days, OTM distance).
type OptionContract struct {
	Symbol         string
	Underlying     string
	Type           OptionType
	Strike         float64
	ExpiryUnix     int64
	Diff1          float64 // signed OTM distance, populated by the selector
	BidPrice       float64
	BidVolume      int
	AskPrice       float64
	AskVolume      int
	DaysToExpiry   int
}

// QuoteRequest is a two-sided quote submitted through IQuoteGateway.
type QuoteRequest struct {
	Symbol    string
	BidPrice  float64
	BidVolume int
	AskPrice  float64
	AskVolume int
	BidOffset Offset
	AskOffset Offset
	Reference string
}

func NewQuoteRequest(symbol string, bidPrice float64, bidVolume int, askPrice float64, askVolume int) QuoteRequest {
	return QuoteRequest{
		Symbol:    symbol,
		BidPrice:  bidPrice,
		BidVolume: bidVolume,
		AskPrice:  askPrice,
		AskVolume: askVolume,
		BidOffset: Open,
		AskOffset: Open,
	}
}

func (q QuoteRequest) Spread() float64 {
	return q.AskPrice - q.BidPrice
}

func (q QuoteRequest) MidPrice() float64 {
	return (q.BidPrice + q.AskPrice) / 2
}

// GreeksInput is the set of Black-Scholes inputs for one contract.
type GreeksInput struct {
	Spot   float64
	Strike float64
	Rate   float64
	Vol    float64
	T      float64 // years to expiry
	Type   OptionType
}

// GreeksResult holds the first- and second-order sensitivities.
type GreeksResult struct {
	Delta float64
	Gamma float64
	Theta float64
	Vega  float64
}

// RiskThresholds bounds the absolute weighted Greeks allowed at a given
// level (position or portfolio).
type RiskThresholds struct {
	Delta float64
	Gamma float64
	Vega  float64
}

// PortfolioGreeks is the aggregated, volume/multiplier-weighted Greeks
// snapshot for the whole book.
type PortfolioGreeks struct {
	Delta float64
	Gamma float64
	Theta float64
	Vega  float64
}

// HedgingConfig parametrizes the delta-hedging engine.
type HedgingConfig struct {
	TargetDelta     float64
	Band            float64
	HedgeInstrument string
	HedgeDelta      float64
	HedgeMultiplier float64
}

// GammaScalpConfig parametrizes the gamma-scalping engine.
type GammaScalpConfig struct {
	RebalanceThreshold float64
	HedgeInstrument    string
	HedgeDelta         float64
	HedgeMultiplier    float64
}

// OrderExecutionConfig parametrizes the SmartOrderExecutor.
type OrderExecutionConfig struct {
	TimeoutSeconds int
	MaxRetries     int
	SlippageTicks  int
	PriceTick      float64
}

// VolQuote is one implied-vol observation at (strike, T).
type VolQuote struct {
	Strike     float64
	T          float64
	ImpliedVol float64
}

// VolSurfaceSnapshot is the serializable form of a built vol surface.
type VolSurfaceSnapshot struct {
	Strikes  []float64
	Expiries []float64
	Matrix   [][]float64 // Matrix[expiryIdx][strikeIdx]
}
