// Package execution implements the two order-execution domain
// services: SmartOrderExecutor (adaptive pricing, timeout, retry) and
// AdvancedOrderScheduler (iceberg/timed-split/TWAP/VWAP child-order
// splitting). Grounded on
// original_source/.../domain_service/{execution/smart_order_executor,
// advanced_order_scheduler}.py.
package execution

import (
	"sync"
	"time"

	"optiontrader/internal/domain/aggregate"
	"optiontrader/internal/domain/valueobject"
)

// SmartOrderExecutor computes adaptive limit prices, tracks working
// orders for timeout cancellation, and prepares more-aggressive retry
// instructions. It never calls the gateway itself — callers submit
// what it returns.
type SmartOrderExecutor struct {
	mu     sync.Mutex
	config valueobject.OrderExecutionConfig
	orders map[string]*valueobject.ManagedOrder
}

func NewSmartOrderExecutor(config valueobject.OrderExecutionConfig) *SmartOrderExecutor {
	return &SmartOrderExecutor{config: config, orders: make(map[string]*valueobject.ManagedOrder)}
}

// CalculateAdaptivePrice prices a short order at the bid minus slippage
// ticks, and a long order at the ask plus slippage ticks, falling back
// to the instruction's own price when the relevant side of book is
// unavailable.
func (e *SmartOrderExecutor) CalculateAdaptivePrice(instruction valueobject.OrderInstruction, bidPrice, askPrice, priceTick float64) float64 {
	if instruction.Direction == valueobject.Short {
		if bidPrice <= 0 {
			return instruction.Price
		}
		return bidPrice - float64(e.config.SlippageTicks)*priceTick
	}
	if askPrice <= 0 {
		return instruction.Price
	}
	return askPrice + float64(e.config.SlippageTicks)*priceTick
}

func (e *SmartOrderExecutor) RoundPriceToTick(price, priceTick float64) float64 {
	if priceTick <= 0 {
		return price
	}
	steps := float64(int64(price/priceTick + 0.5))
	return steps * priceTick
}

// RegisterOrder starts timeout tracking for a newly submitted order.
func (e *SmartOrderExecutor) RegisterOrder(vtOrderID string, instruction valueobject.OrderInstruction, now time.Time) *valueobject.ManagedOrder {
	e.mu.Lock()
	defer e.mu.Unlock()
	order := &valueobject.ManagedOrder{VtOrderID: vtOrderID, Instruction: instruction, SubmitTime: now, IsActive: true}
	e.orders[vtOrderID] = order
	return order
}

// CheckTimeouts returns the ids of orders that have exceeded the
// configured timeout and should be cancelled, plus the corresponding
// OrderTimeoutEvents.
func (e *SmartOrderExecutor) CheckTimeouts(currentTime time.Time) ([]string, []aggregate.DomainEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var cancelIDs []string
	var events []aggregate.DomainEvent
	for vtOrderID, order := range e.orders {
		if !order.IsActive {
			continue
		}
		elapsed := currentTime.Sub(order.SubmitTime).Seconds()
		if elapsed >= float64(e.config.TimeoutSeconds) {
			cancelIDs = append(cancelIDs, vtOrderID)
			events = append(events, aggregate.NewOrderTimeoutEvent(currentTime.Unix(), vtOrderID))
		}
	}
	return cancelIDs, events
}

func (e *SmartOrderExecutor) MarkOrderFilled(vtOrderID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if o, ok := e.orders[vtOrderID]; ok {
		o.IsActive = false
	}
}

func (e *SmartOrderExecutor) MarkOrderCancelled(vtOrderID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if o, ok := e.orders[vtOrderID]; ok {
		o.IsActive = false
	}
}

// PrepareRetry builds a more-aggressive retry instruction (a tick more
// favorable to the counterparty), or returns ok=false once retries are
// exhausted.
func (e *SmartOrderExecutor) PrepareRetry(managedOrder *valueobject.ManagedOrder, priceTick float64) (valueobject.OrderInstruction, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if managedOrder.RetryCount >= e.config.MaxRetries {
		return valueobject.OrderInstruction{}, false
	}

	old := managedOrder.Instruction
	var newPrice float64
	if old.Direction == valueobject.Short {
		newPrice = old.Price - priceTick
	} else {
		newPrice = old.Price + priceTick
	}
	newPrice = e.RoundPriceToTick(newPrice, priceTick)

	managedOrder.RetryCount++

	return valueobject.OrderInstruction{
		Symbol:    old.Symbol,
		Direction: old.Direction,
		Offset:    old.Offset,
		Volume:    old.Volume,
		Price:     newPrice,
		Signal:    old.Signal,
		Type:      old.Type,
	}, true
}
