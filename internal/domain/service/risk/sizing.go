// Package risk implements the pre-trade risk gates: per-order position
// sizing and account-level Greeks aggregation. Grounded on
// original_source/.../domain_service/risk/{position_sizing_service,
// portfolio_risk_aggregator}.py.
package risk

import (
	"log/slog"

	"optiontrader/internal/domain/entity"
	"optiontrader/internal/domain/valueobject"
)

// SizingConfig holds the PositionSizingService's tunables. Field names
// use correct English ("volume"), not the source's "volumn" typo.
type SizingConfig struct {
	FixedVolumeMode       bool
	FixedVolume           int
	PositionRatio         float64 // 0-1, used when FixedVolumeMode is false
	MaxPositionPerProduct int
	MarginRatio           float64
}

func DefaultSizingConfig() SizingConfig {
	return SizingConfig{
		FixedVolumeMode:       true,
		FixedVolume:           1,
		PositionRatio:         0.1,
		MaxPositionPerProduct: 5,
		MarginRatio:           0.15,
	}
}

// PositionSizingService turns a desired open/close volume into the
// actual volume the runtime is willing to risk, applying duplicate-
// position, per-product, and margin-sufficiency gates.
type PositionSizingService struct {
	cfg SizingConfig
	log *slog.Logger
}

func NewPositionSizingService(cfg SizingConfig, log *slog.Logger) *PositionSizingService {
	if log == nil {
		log = slog.Default()
	}
	return &PositionSizingService{cfg: cfg, log: log}
}

// CalculateOpenVolume returns the volume to actually open, or 0 to
// reject. hasExistingPosition guards against duplicate opens on a
// symbol that already carries an active position.
func (s *PositionSizingService) CalculateOpenVolume(
	desiredVolume int,
	instrument *entity.TargetInstrument,
	account valueobject.AccountSnapshot,
	hasExistingPosition bool,
) int {
	if account.Available <= 0 {
		s.log.Debug("sizing rejected: no available funds", "symbol", instrument.Symbol)
		return 0
	}
	if hasExistingPosition {
		s.log.Debug("sizing rejected: duplicate position", "symbol", instrument.Symbol)
		return 0
	}

	latestClose, _ := instrument.LatestClose()

	var targetVolume int
	if s.cfg.FixedVolumeMode {
		targetVolume = s.cfg.FixedVolume
	} else {
		targetVolume = s.calculateVolumeByRatio(account.Available, latestClose)
	}

	if targetVolume > s.cfg.MaxPositionPerProduct {
		s.log.Debug("sizing capped to max per-product", "symbol", instrument.Symbol,
			"requested", targetVolume, "max", s.cfg.MaxPositionPerProduct)
		targetVolume = s.cfg.MaxPositionPerProduct
	}

	requiredMargin := s.calculateRequiredMargin(targetVolume, latestClose)
	if requiredMargin > account.Available {
		s.log.Debug("sizing rejected: insufficient funds", "symbol", instrument.Symbol,
			"required_margin", requiredMargin, "available", account.Available)
		return 0
	}

	s.log.Debug("sizing approved", "symbol", instrument.Symbol, "volume", targetVolume,
		"required_margin", requiredMargin, "available", account.Available)
	_ = desiredVolume // the original keeps this parameter for interface symmetry; unused by fixed/ratio sizing
	return targetVolume
}

// CalculateExitVolume clamps a desired close volume to the position's
// actually-held volume.
func (s *PositionSizingService) CalculateExitVolume(desiredVolume int, position *entity.Position) int {
	if position == nil || position.Volume <= 0 {
		s.log.Debug("exit rejected: no active volume")
		return 0
	}
	actual := desiredVolume
	if actual > position.Volume {
		actual = position.Volume
	}
	return actual
}

func (s *PositionSizingService) calculateVolumeByRatio(availableFunds, price float64) int {
	if price <= 0 {
		return 0
	}
	positionFunds := availableFunds * s.cfg.PositionRatio
	marginPerLot := price * s.cfg.MarginRatio
	if marginPerLot <= 0 {
		return 0
	}
	volume := int(positionFunds / marginPerLot)
	if volume < 0 {
		return 0
	}
	return volume
}

func (s *PositionSizingService) calculateRequiredMargin(volume int, price float64) float64 {
	return float64(volume) * price * s.cfg.MarginRatio
}
