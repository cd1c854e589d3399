package valueobject

import "strings"

// SignalType enumerates the concrete open/close signals the demo signal
// service emits. Supplements spec.md's bare "signal string" with the
// literal vocabulary the original implementation used, so the runtime's
// domain-event log and close-signal matching are meaningful end to end.
type SignalType string

const (
	SellPutDivergenceTD9      SignalType = "sell_put_divergence_td9"
	SellPutDivergenceConfirm  SignalType = "sell_put_divergence_confirm"
	SellCallDivergenceTD9     SignalType = "sell_call_divergence_td9"
	SellCallDivergenceConfirm SignalType = "sell_call_divergence_confirm"

	ClosePutTDHigh9            SignalType = "close_put_td_high9"
	ClosePutTopDivergence      SignalType = "close_put_top_divergence"
	ClosePutFlatteningInvalid  SignalType = "close_put_flattening_invalid"
	CloseCallTDLow9            SignalType = "close_call_td_low9"
	CloseCallBottomDivergence  SignalType = "close_call_bottom_divergence"
	CloseCallFlatteningInvalid SignalType = "close_call_flattening_invalid"
)

func (s SignalType) IsOpenSignal() bool  { return strings.HasPrefix(string(s), "sell_") }
func (s SignalType) IsCloseSignal() bool { return strings.HasPrefix(string(s), "close_") }
func (s SignalType) IsPutSignal() bool   { return strings.Contains(string(s), "put") }
func (s SignalType) IsCallSignal() bool  { return strings.Contains(string(s), "call") }

// ValidCloseSignalsFor returns the set of close signals a given open
// signal may legitimately be closed by.
func ValidCloseSignalsFor(open SignalType) map[SignalType]struct{} {
	putClose := map[SignalType]struct{}{
		ClosePutTDHigh9:           {},
		ClosePutTopDivergence:     {},
		ClosePutFlatteningInvalid: {},
	}
	callClose := map[SignalType]struct{}{
		CloseCallTDLow9:            {},
		CloseCallBottomDivergence:  {},
		CloseCallFlatteningInvalid: {},
	}
	switch open {
	case SellPutDivergenceTD9, SellPutDivergenceConfirm:
		return putClose
	case SellCallDivergenceTD9, SellCallDivergenceConfirm:
		return callClose
	default:
		return map[SignalType]struct{}{}
	}
}
