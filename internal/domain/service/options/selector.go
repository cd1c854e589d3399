package options

import (
	"fmt"
	"sort"

	"optiontrader/internal/domain/valueobject"
)

// LogFunc receives a trace line explaining a filtering decision.
type LogFunc func(msg string, args ...any)

// TickQuote is the subset of a live tick the liquidity check needs.
type TickQuote struct {
	Symbol      string
	Volume      int
	BidPrice    float64
	BidVolume   int
	AskPrice    float64
	PriceTick   float64
}

// SelectorConfig parametrizes OptionSelectorService.
type SelectorConfig struct {
	StrikeLevel    int // target OTM rung, 0-based (0 = nearest-to-the-money OTM strike)
	MinBidPrice    float64
	MinBidVolume   int
	MinTradingDays int
	MaxTradingDays int
}

func DefaultSelectorConfig() SelectorConfig {
	return SelectorConfig{StrikeLevel: 3, MinBidPrice: 10.0, MinBidVolume: 10, MinTradingDays: 1, MaxTradingDays: 50}
}

// OptionSelectorService filters the live option chain down to liquid,
// suitably-dated OTM contracts and picks a target strike rung.
// Grounded on
// original_source/.../domain_service/option_selector_service.py.
type OptionSelectorService struct {
	cfg SelectorConfig
}

func NewOptionSelectorService(cfg SelectorConfig) OptionSelectorService {
	return OptionSelectorService{cfg: cfg}
}

// CheckLiquidity validates a quote against a pre-open liquidity bar:
// minimum day volume, minimum bid depth, and a maximum bid/ask spread
// expressed in price ticks.
func (s OptionSelectorService) CheckLiquidity(tick TickQuote, minVolume, minBidVolume, maxSpreadTicks int, log LogFunc) bool {
	if tick.Volume < minVolume {
		if log != nil {
			log("liquidity filter: volume too low", "symbol", tick.Symbol, "volume", tick.Volume, "min", minVolume)
		}
		return false
	}
	if tick.BidVolume < minBidVolume {
		if log != nil {
			log("liquidity filter: bid depth too thin", "symbol", tick.Symbol, "bid_volume", tick.BidVolume, "min", minBidVolume)
		}
		return false
	}
	if tick.PriceTick <= 0 {
		if log != nil {
			log("liquidity filter: invalid price tick", "symbol", tick.Symbol, "price_tick", tick.PriceTick)
		}
		return false
	}
	spreadTicks := (tick.AskPrice - tick.BidPrice) / tick.PriceTick
	if spreadTicks >= float64(maxSpreadTicks) {
		if log != nil {
			log("liquidity filter: spread too wide", "symbol", tick.Symbol, "bid", tick.BidPrice, "ask", tick.AskPrice, "spread_ticks", spreadTicks, "max", maxSpreadTicks)
		}
		return false
	}
	return true
}

// SelectTargetOption narrows contracts to the requested option type,
// applies liquidity and expiry filters, ranks by OTM distance, and
// returns the contract at the target strike rung. strikeLevel<0 uses
// the service's configured default.
func (s OptionSelectorService) SelectTargetOption(contracts []valueobject.OptionContract, optionType valueobject.OptionType, underlyingPrice float64, strikeLevel int, log LogFunc) (valueobject.OptionContract, bool) {
	if len(contracts) == 0 {
		if log != nil {
			log("select target option: candidate list empty")
		}
		return valueobject.OptionContract{}, false
	}

	level := s.cfg.StrikeLevel
	if strikeLevel >= 0 {
		level = strikeLevel
	}

	ranked := s.rankOTM(contracts, optionType, underlyingPrice, log)
	if len(ranked) == 0 {
		if log != nil {
			log("select target option: no OTM candidates", "underlying_price", underlyingPrice)
		}
		return valueobject.OptionContract{}, false
	}

	target := selectByLevel(ranked, level)
	if log != nil {
		log("select target option: selected", "symbol", target.Symbol, "level", level)
	}
	return target, true
}

// GetAllOTMOptions returns every OTM contract of optionType, ranked
// from nearest-the-money to deepest OTM.
func (s OptionSelectorService) GetAllOTMOptions(contracts []valueobject.OptionContract, optionType valueobject.OptionType, underlyingPrice float64) []valueobject.OptionContract {
	return s.rankOTM(contracts, optionType, underlyingPrice, nil)
}

func (s OptionSelectorService) rankOTM(contracts []valueobject.OptionContract, optionType valueobject.OptionType, underlyingPrice float64, log LogFunc) []valueobject.OptionContract {
	var filtered []valueobject.OptionContract
	for _, c := range contracts {
		if c.Type != optionType {
			continue
		}
		if c.BidPrice < s.cfg.MinBidPrice || c.BidVolume < s.cfg.MinBidVolume {
			continue
		}
		if c.DaysToExpiry < s.cfg.MinTradingDays || c.DaysToExpiry > s.cfg.MaxTradingDays {
			continue
		}
		filtered = append(filtered, c)
	}
	if log != nil {
		log("rank OTM: post-filter count", "count", len(filtered))
	}

	if underlyingPrice <= 0 {
		return filtered
	}

	var otm []valueobject.OptionContract
	for _, c := range filtered {
		var diff1 float64
		if optionType == valueobject.Call {
			diff1 = (c.Strike - underlyingPrice) / underlyingPrice
		} else {
			diff1 = (underlyingPrice - c.Strike) / underlyingPrice
		}
		if diff1 <= 0 {
			continue
		}
		c.Diff1 = diff1
		otm = append(otm, c)
	}

	sort.Slice(otm, func(i, j int) bool { return otm[i].Diff1 < otm[j].Diff1 })
	return otm
}

// selectByLevel picks the contract at the given 0-based OTM rung,
// falling back to the deepest OTM contract available when the ranked
// list is shorter than the requested rung.
func selectByLevel(ranked []valueobject.OptionContract, level int) valueobject.OptionContract {
	if level < 0 || level >= len(ranked) {
		return ranked[len(ranked)-1]
	}
	return ranked[level]
}

func (c TickQuote) String() string {
	return fmt.Sprintf("%s bid=%.2f ask=%.2f vol=%d", c.Symbol, c.BidPrice, c.AskPrice, c.Volume)
}
