package futures

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"optiontrader/internal/domain/valueobject"
)

// ContractFactory parses a vt_symbol and builds the contract
// definition it describes, for either a futures or an options symbol.
// Grounded on
// original_source/.../backtesting/contract/contract_factory.py.
type ContractFactory struct {
	resolver ExchangeResolver
	expiry   *ExpiryCalculator
}

func NewContractFactory(expiry *ExpiryCalculator) *ContractFactory {
	return &ContractFactory{expiry: expiry}
}

var optionPattern = regexp.MustCompile(`^([a-zA-Z]+[0-9]+)-?([CPcp])-?([0-9]+(?:\.[0-9]+)?)$`)
var productCodePattern = regexp.MustCompile(`^([a-zA-Z]+)`)
var expiryDigitsPattern = regexp.MustCompile(`(\d{2})(\d{2})$`)

// ContractSpec is the parsed, fully-resolved shape of one contract,
// covering both futures and options (OptionType/Strike/Underlying are
// zero for futures).
type ContractSpec struct {
	Symbol        string
	Exchange      string
	Size          float64
	PriceTick     float64
	MinVolume     float64
	IsOption      bool
	OptionType    valueobject.OptionType
	OptionStrike  float64
	OptionUnderlying string
	OptionExpiry  time.Time
}

// ParseVtSymbol splits "sc2602C540.5.INE" into
// (symbol="sc2602C540.5", exchange="INE", productCode="sc"), using the
// last '.' as the separator so option strikes carrying a decimal point
// are handled correctly.
func ParseVtSymbol(vtSymbol string) (symbol, exchange, productCode string, ok bool) {
	idx := strings.LastIndex(vtSymbol, ".")
	if idx <= 0 || idx == len(vtSymbol)-1 {
		return "", "", "", false
	}
	symbol, exchange = vtSymbol[:idx], vtSymbol[idx+1:]

	m := productCodePattern.FindStringSubmatch(symbol)
	if m == nil {
		return "", "", "", false
	}
	return symbol, exchange, m[1], true
}

// Create parses vtSymbol and builds its ContractSpec, for either a
// futures or an options format.
func (f *ContractFactory) Create(vtSymbol string) (ContractSpec, bool) {
	symbol, exchange, productCode, ok := ParseVtSymbol(vtSymbol)
	if !ok {
		return ContractSpec{}, false
	}

	if match := optionPattern.FindStringSubmatch(symbol); match != nil {
		return f.buildOption(symbol, exchange, productCode, match), true
	}
	return f.buildFutures(symbol, exchange, productCode), true
}

func (f *ContractFactory) buildFutures(symbol, exchange, productCode string) ContractSpec {
	spec := ProductSpecFor(productCode)
	return ContractSpec{Symbol: symbol, Exchange: exchange, Size: spec.Size, PriceTick: spec.PriceTick, MinVolume: 1}
}

func (f *ContractFactory) buildOption(symbol, exchange, productCode string, match []string) ContractSpec {
	underlyingSymbol := match[1]
	typeChar := strings.ToUpper(match[2])
	strikeStr := match[3]

	optionType := valueobject.Put
	if typeChar == "C" {
		optionType = valueobject.Call
	}
	strike, _ := strconv.ParseFloat(strikeStr, 64)

	realUnderlying := underlyingSymbol
	if futureProduct, ok := OptionFutureMap[productCode]; ok {
		realUnderlying = futureProduct + underlyingSymbol[len(productCode):]
	}

	spec := ProductSpecFor(productCode)
	contract := ContractSpec{
		Symbol: symbol, Exchange: exchange, Size: spec.Size, PriceTick: spec.PriceTick, MinVolume: 1,
		IsOption: true, OptionType: optionType, OptionStrike: strike, OptionUnderlying: realUnderlying,
	}

	if dm := expiryDigitsPattern.FindStringSubmatch(underlyingSymbol); dm != nil && f.expiry != nil {
		yearShort, _ := strconv.Atoi(dm[1])
		month, _ := strconv.Atoi(dm[2])
		contract.OptionExpiry = f.expiry.Calculate(productCode, 2000+yearShort, time.Month(month))
	}

	return contract
}
