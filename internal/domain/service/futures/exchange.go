// Package futures implements the contract-discovery domain services:
// exchange resolution, expiry-date calculation, vt_symbol parsing/
// generation, and dominant-contract selection. Grounded on
// original_source/.../backtesting/contract/*.py and
// .../discovery/symbol_generator.py.
package futures

import "fmt"

// ExchangeMap maps a product code to its listing exchange, mirroring
// backtesting/config.py's EXCHANGE_MAP.
var ExchangeMap = map[string]string{
	// SHFE
	"ag": "SHFE", "rb": "SHFE", "ao": "SHFE", "cu": "SHFE", "al": "SHFE",
	"zn": "SHFE", "au": "SHFE", "ru": "SHFE", "sn": "SHFE", "ni": "SHFE",
	"bu": "SHFE", "sp": "SHFE", "fu": "SHFE", "br": "SHFE", "pb": "SHFE",
	"ss": "SHFE", "hc": "SHFE", "wr": "SHFE",
	// CZCE
	"FG": "CZCE", "SA": "CZCE", "MA": "CZCE", "SR": "CZCE", "TA": "CZCE",
	"RM": "CZCE", "CF": "CZCE", "OI": "CZCE", "PK": "CZCE", "SF": "CZCE",
	"SM": "CZCE", "PX": "CZCE", "UR": "CZCE", "CJ": "CZCE", "AP": "CZCE",
	// DCE
	"m": "DCE", "i": "DCE", "p": "DCE", "y": "DCE", "c": "DCE", "jd": "DCE",
	"a": "DCE", "b": "DCE", "pp": "DCE", "l": "DCE", "v": "DCE", "eg": "DCE",
	"eb": "DCE", "pg": "DCE", "lh": "DCE", "si": "DCE",
	// CFFEX
	"IF": "CFFEX", "IH": "CFFEX", "IC": "CFFEX", "IM": "CFFEX",
	"IO": "CFFEX", "HO": "CFFEX", "MO": "CFFEX",
	"T": "CFFEX", "TF": "CFFEX", "TS": "CFFEX",
	// INE
	"sc": "INE", "lu": "INE", "nr": "INE", "bc": "INE",
}

// FutureOptionMap maps a futures product code to its corresponding
// index-option product code.
var FutureOptionMap = map[string]string{"IF": "IO", "IM": "MO", "IH": "HO"}

// OptionFutureMap is FutureOptionMap inverted.
var OptionFutureMap = buildOptionFutureMap()

func buildOptionFutureMap() map[string]string {
	m := make(map[string]string, len(FutureOptionMap))
	for k, v := range FutureOptionMap {
		m[v] = k
	}
	return m
}

// ProductSpec holds a product's contract multiplier and minimum price
// tick.
type ProductSpec struct {
	Size      float64
	PriceTick float64
}

var ProductSpecs = map[string]ProductSpec{
	"IF": {300, 0.2}, "IH": {300, 0.2}, "IC": {200, 0.2}, "IM": {200, 0.2},
	"IO": {100, 0.2}, "HO": {100, 0.2}, "MO": {100, 0.2},
	"rb": {10, 1.0}, "hc": {10, 1.0}, "ag": {15, 1.0}, "au": {1000, 0.02},
	"sc": {1000, 0.1}, "lu": {10, 1.0},
	"m": {10, 1.0}, "i": {100, 0.5},
	"SA": {20, 1.0}, "MA": {10, 1.0},
}

var DefaultProductSpec = ProductSpec{10, 1.0}

func ProductSpecFor(productCode string) ProductSpec {
	if s, ok := ProductSpecs[productCode]; ok {
		return s
	}
	return DefaultProductSpec
}

// ExchangeResolver resolves a product code to its listing exchange.
type ExchangeResolver struct{}

func (ExchangeResolver) Resolve(productCode string) (string, error) {
	exchange, ok := ExchangeMap[productCode]
	if !ok {
		return "", fmt.Errorf("futures: unknown product code %q", productCode)
	}
	return exchange, nil
}

func (r ExchangeResolver) IsCZCE(productCode string) bool {
	exchange, err := r.Resolve(productCode)
	return err == nil && exchange == "CZCE"
}
