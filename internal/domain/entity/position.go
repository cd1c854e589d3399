package entity

import "optiontrader/internal/domain/valueobject"

// Position is a strategy-owned option position: the strategy's own view
// of what it opened, independent of the exchange's account-level report
// (that report is reconciled against this entity in PositionAggregate).
type Position struct {
	Symbol           string
	UnderlyingSymbol string
	Signal           string
	Volume           int
	TargetVolume     int
	Direction        valueobject.Direction
	OpenPrice        float64
	CreateTime       int64
	OpenTime         *int64
	CloseTime        *int64
	IsClosed         bool
	IsManuallyClosed bool
}

// NewPosition creates a freshly opened (unfilled) position.
func NewPosition(symbol, underlying, signal string, targetVolume int, direction valueobject.Direction, createTime int64) *Position {
	return &Position{
		Symbol:           symbol,
		UnderlyingSymbol: underlying,
		Signal:           signal,
		TargetVolume:     targetVolume,
		Direction:        direction,
		CreateTime:       createTime,
	}
}

// AddFill records a fill. The first fill (Volume == 0) stamps
// OpenPrice/OpenTime, adds the filled volume and returns early; a
// subsequent fill adds the volume and recomputes OpenPrice as the
// volume-weighted average of the held and filled volume.
func (p *Position) AddFill(filledVolume int, fillPrice float64, fillTime int64) {
	if p.Volume == 0 {
		p.OpenPrice = fillPrice
		t := fillTime
		p.OpenTime = &t
		p.Volume += filledVolume
		return
	}
	totalValue := p.OpenPrice*float64(p.Volume) + fillPrice*float64(filledVolume)
	p.Volume += filledVolume
	if p.Volume > 0 {
		p.OpenPrice = totalValue / float64(p.Volume)
	} else {
		p.OpenPrice = 0
	}
}

// ReduceVolume reduces the held volume (a close fill), flooring it at
// zero. When the volume reaches zero the position is marked closed
// with CloseTime set to closeTime as given.
func (p *Position) ReduceVolume(closedVolume int, closeTime int64) {
	p.Volume -= closedVolume
	if p.Volume < 0 {
		p.Volume = 0
	}
	if p.Volume == 0 {
		p.IsClosed = true
		t := closeTime
		p.CloseTime = &t
	}
}

func (p *Position) MarkAsManuallyClosed(closedVolume int, now int64) {
	p.IsManuallyClosed = true
	p.ReduceVolume(closedVolume, now)
}

func (p *Position) IsFullyFilled() bool {
	return p.Volume >= p.TargetVolume
}

func (p *Position) PendingVolume() int {
	v := p.TargetVolume - p.Volume
	if v < 0 {
		return 0
	}
	return v
}

func (p *Position) IsActive() bool {
	return p.Volume > 0 && !p.IsClosed
}

// HoldingTime returns the holding duration in seconds, or ok=false if
// the position was never filled.
func (p *Position) HoldingTime(now int64) (seconds int64, ok bool) {
	if p.OpenTime == nil {
		return 0, false
	}
	end := now
	if p.CloseTime != nil {
		end = *p.CloseTime
	}
	return end - *p.OpenTime, true
}

func (p *Position) IsForOpenSignal(signals ...string) bool {
	for _, s := range signals {
		if p.Signal == s {
			return true
		}
	}
	return false
}
