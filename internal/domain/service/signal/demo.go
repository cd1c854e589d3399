package signal

import (
	"optiontrader/internal/domain/entity"
	"optiontrader/internal/domain/valueobject"
)

// DemoService is the reference signal service: sell premium at a
// confirmed MACD divergence, or at an exhaustion extreme (DeMark TD 8/9
// count) while the matching MACD dullness setup is active (bottom for
// puts, top for calls), and close on the opposite extreme, on divergence in
// the position's favor, or when the dullness setup that justified the
// position is invalidated. Grounded on
// original_source/.../impl/demo_signal_service.py's structure (guard on
// indicator completeness, return the empty signal rather than erroring)
// with the richer SignalType vocabulary substituted for that file's
// plain MACD-cross demo, since nothing else in the corpus exercises it.
type DemoService struct{}

func NewDemoService() *DemoService { return &DemoService{} }

func (DemoService) CheckOpenSignal(instrument *entity.TargetInstrument) (string, bool) {
	ind := instrument.Indicators
	if !ind.IsComplete() {
		return "", false
	}

	switch {
	case ind.Divergence.BottomConfirmed:
		return string(valueobject.SellPutDivergenceConfirm), true
	case ind.Dullness.BottomActive && ind.TD.HasBuy89:
		return string(valueobject.SellPutDivergenceTD9), true
	}

	switch {
	case ind.Divergence.TopConfirmed:
		return string(valueobject.SellCallDivergenceConfirm), true
	case ind.Dullness.TopActive && ind.TD.HasSell89:
		return string(valueobject.SellCallDivergenceTD9), true
	}

	return "", false
}

func (DemoService) CheckCloseSignal(instrument *entity.TargetInstrument, position *entity.Position) (string, bool) {
	ind := instrument.Indicators
	if !ind.IsComplete() {
		return "", false
	}

	open := valueobject.SignalType(position.Signal)
	switch {
	case open.IsPutSignal():
		switch {
		case ind.TD.HasSell89:
			return string(valueobject.ClosePutTDHigh9), true
		case ind.Divergence.TopConfirmed:
			return string(valueobject.ClosePutTopDivergence), true
		case ind.Dullness.BottomInvalidated:
			return string(valueobject.ClosePutFlatteningInvalid), true
		}
	case open.IsCallSignal():
		switch {
		case ind.TD.HasBuy89:
			return string(valueobject.CloseCallTDLow9), true
		case ind.Divergence.BottomConfirmed:
			return string(valueobject.CloseCallBottomDivergence), true
		case ind.Dullness.TopInvalidated:
			return string(valueobject.CloseCallFlatteningInvalid), true
		}
	}
	return "", false
}
