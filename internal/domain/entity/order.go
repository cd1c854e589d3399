package entity

import "optiontrader/internal/domain/valueobject"

// OrderStatus is the lifecycle status of an exchange order.
type OrderStatus string

const (
	OrderSubmitting OrderStatus = "submitting"
	OrderNotTraded  OrderStatus = "nottraded"
	OrderPartTraded OrderStatus = "parttraded"
	OrderAllTraded  OrderStatus = "alltraded"
	OrderCancelled  OrderStatus = "cancelled"
	OrderRejected   OrderStatus = "rejected"
)

// Order tracks one exchange order's lifecycle, linked to the signal that
// triggered it.
type Order struct {
	VtOrderID  string
	Symbol     string
	Direction  valueobject.Direction
	Offset     valueobject.Offset
	Volume     int
	Price      float64
	Status     OrderStatus
	Traded     int
	Signal     string
	CreateTime int64
	UpdateTime int64
}

func NewOrder(vtOrderID, symbol string, direction valueobject.Direction, offset valueobject.Offset, volume int, price float64, signal string, createTime int64) *Order {
	return &Order{
		VtOrderID:  vtOrderID,
		Symbol:     symbol,
		Direction:  direction,
		Offset:     offset,
		Volume:     volume,
		Price:      price,
		Status:     OrderSubmitting,
		Signal:     signal,
		CreateTime: createTime,
	}
}

func (o *Order) UpdateStatus(status OrderStatus, traded int, now int64) {
	o.Status = status
	o.Traded = traded
	o.UpdateTime = now
}

func (o *Order) AddTrade(tradeVolume int, now int64) {
	o.Traded += tradeVolume
	o.UpdateTime = now
	switch {
	case o.Traded >= o.Volume:
		o.Status = OrderAllTraded
	case o.Traded > 0:
		o.Status = OrderPartTraded
	}
}

func (o *Order) IsActive() bool {
	switch o.Status {
	case OrderSubmitting, OrderNotTraded, OrderPartTraded:
		return true
	}
	return false
}

func (o *Order) IsFinished() bool {
	switch o.Status {
	case OrderAllTraded, OrderCancelled, OrderRejected:
		return true
	}
	return false
}

func (o *Order) IsOpenOrder() bool  { return o.Offset == valueobject.Open }
func (o *Order) IsCloseOrder() bool {
	return o.Offset == valueobject.Close || o.Offset == valueobject.CloseToday || o.Offset == valueobject.CloseYesterday
}

func (o *Order) RemainingVolume() int {
	v := o.Volume - o.Traded
	if v < 0 {
		return 0
	}
	return v
}
