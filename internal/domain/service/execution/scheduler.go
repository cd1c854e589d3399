package execution

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"optiontrader/internal/domain/aggregate"
	"optiontrader/internal/domain/valueobject"
)

// AdvancedOrderScheduler splits a parent OrderInstruction into child
// orders per one of four execution styles (iceberg, timed split, TWAP,
// VWAP) and tracks their fill lifecycle. Parent order ids are random
// google/uuid strings; child ids are "<parent id>_child_<index>".
type AdvancedOrderScheduler struct {
	mu     sync.Mutex
	orders map[string]*valueobject.AdvancedOrder
}

func NewAdvancedOrderScheduler() *AdvancedOrderScheduler {
	return &AdvancedOrderScheduler{orders: make(map[string]*valueobject.AdvancedOrder)}
}

func (s *AdvancedOrderScheduler) SubmitIceberg(instruction valueobject.OrderInstruction, batchSize int) (*valueobject.AdvancedOrder, error) {
	if instruction.Volume <= 0 {
		return nil, fmt.Errorf("execution: total volume must be positive")
	}
	if batchSize <= 0 {
		return nil, fmt.Errorf("execution: batch size must be positive")
	}

	orderID := uuid.NewString()
	request := valueobject.AdvancedOrderRequest{OrderType: valueobject.AdvancedOrderIceberg, Instruction: instruction, BatchSize: batchSize}

	var children []*valueobject.ChildOrder
	remaining := instruction.Volume
	idx := 0
	for remaining > 0 {
		vol := min(batchSize, remaining)
		children = append(children, &valueobject.ChildOrder{
			ChildID:  fmt.Sprintf("%s_child_%d", orderID, idx),
			ParentID: orderID,
			Volume:   vol,
		})
		remaining -= vol
		idx++
	}

	order := &valueobject.AdvancedOrder{OrderID: orderID, Request: request, Status: valueobject.AdvancedOrderExecuting, ChildOrders: children}
	s.mu.Lock()
	s.orders[orderID] = order
	s.mu.Unlock()
	return order, nil
}

// SubmitTimedSplit splits total volume into fixed-size slices, one per
// interval_seconds starting at startTime.
func (s *AdvancedOrderScheduler) SubmitTimedSplit(instruction valueobject.OrderInstruction, intervalSeconds, perOrderVolume int, startTime time.Time) (*valueobject.AdvancedOrder, error) {
	if instruction.Volume <= 0 {
		return nil, fmt.Errorf("execution: total volume must be positive")
	}
	if intervalSeconds <= 0 {
		return nil, fmt.Errorf("execution: interval must be positive")
	}
	if perOrderVolume <= 0 {
		return nil, fmt.Errorf("execution: per-order volume must be positive")
	}

	orderID := uuid.NewString()
	request := valueobject.AdvancedOrderRequest{
		OrderType: valueobject.AdvancedOrderTimedSplit, Instruction: instruction,
		IntervalSeconds: intervalSeconds, PerOrderVolume: perOrderVolume,
	}

	var children []*valueobject.ChildOrder
	var schedule []valueobject.SliceEntry
	remaining := instruction.Volume
	idx := 0
	for remaining > 0 {
		vol := min(perOrderVolume, remaining)
		scheduled := startTime.Add(time.Duration(intervalSeconds*idx) * time.Second)
		children = append(children, &valueobject.ChildOrder{
			ChildID: fmt.Sprintf("%s_child_%d", orderID, idx), ParentID: orderID,
			Volume: vol, ScheduledTime: &scheduled,
		})
		schedule = append(schedule, valueobject.SliceEntry{ScheduledTime: scheduled, Volume: vol})
		remaining -= vol
		idx++
	}

	order := &valueobject.AdvancedOrder{
		OrderID: orderID, Request: request, Status: valueobject.AdvancedOrderExecuting,
		ChildOrders: children, SliceSchedule: schedule,
	}
	s.mu.Lock()
	s.orders[orderID] = order
	s.mu.Unlock()
	return order, nil
}

// SubmitTWAP splits total volume evenly across numSlices, with any
// remainder assigned to the earliest slices.
func (s *AdvancedOrderScheduler) SubmitTWAP(instruction valueobject.OrderInstruction, timeWindowSeconds, numSlices int, startTime time.Time) (*valueobject.AdvancedOrder, error) {
	if instruction.Volume <= 0 {
		return nil, fmt.Errorf("execution: total volume must be positive")
	}
	if timeWindowSeconds <= 0 {
		return nil, fmt.Errorf("execution: time window must be positive")
	}
	if numSlices <= 0 {
		return nil, fmt.Errorf("execution: slice count must be positive")
	}

	orderID := uuid.NewString()
	request := valueobject.AdvancedOrderRequest{
		OrderType: valueobject.AdvancedOrderTWAP, Instruction: instruction,
		TimeWindowSeconds: timeWindowSeconds, NumSlices: numSlices,
	}

	baseVol := instruction.Volume / numSlices
	remainder := instruction.Volume % numSlices
	interval := float64(timeWindowSeconds) / float64(numSlices)

	var children []*valueobject.ChildOrder
	var schedule []valueobject.SliceEntry
	for i := 0; i < numSlices; i++ {
		vol := baseVol
		if i < remainder {
			vol++
		}
		scheduled := startTime.Add(time.Duration(interval*float64(i)+0.5) * time.Second)
		children = append(children, &valueobject.ChildOrder{
			ChildID: fmt.Sprintf("%s_child_%d", orderID, i), ParentID: orderID,
			Volume: vol, ScheduledTime: &scheduled,
		})
		schedule = append(schedule, valueobject.SliceEntry{ScheduledTime: scheduled, Volume: vol})
	}

	order := &valueobject.AdvancedOrder{
		OrderID: orderID, Request: request, Status: valueobject.AdvancedOrderExecuting,
		ChildOrders: children, SliceSchedule: schedule,
	}
	s.mu.Lock()
	s.orders[orderID] = order
	s.mu.Unlock()
	return order, nil
}

// SubmitVWAP splits total volume proportionally to volumeProfile's
// weights, using the largest-remainder method so the slices sum back
// to the exact total.
func (s *AdvancedOrderScheduler) SubmitVWAP(instruction valueobject.OrderInstruction, timeWindowSeconds int, volumeProfile []float64, startTime time.Time) (*valueobject.AdvancedOrder, error) {
	if instruction.Volume <= 0 {
		return nil, fmt.Errorf("execution: total volume must be positive")
	}
	if timeWindowSeconds <= 0 {
		return nil, fmt.Errorf("execution: time window must be positive")
	}
	if len(volumeProfile) == 0 {
		return nil, fmt.Errorf("execution: volume profile must not be empty")
	}
	var totalWeight float64
	for _, w := range volumeProfile {
		if w <= 0 {
			return nil, fmt.Errorf("execution: volume profile weights must be positive")
		}
		totalWeight += w
	}

	orderID := uuid.NewString()
	numSlices := len(volumeProfile)
	request := valueobject.AdvancedOrderRequest{
		OrderType: valueobject.AdvancedOrderVWAP, Instruction: instruction,
		TimeWindowSeconds: timeWindowSeconds, VolumeProfile: append([]float64(nil), volumeProfile...),
	}

	rawVolumes := make([]float64, numSlices)
	floorVolumes := make([]int, numSlices)
	sumFloors := 0
	for i, w := range volumeProfile {
		rawVolumes[i] = float64(instruction.Volume) * w / totalWeight
		floorVolumes[i] = int(rawVolumes[i])
		sumFloors += floorVolumes[i]
	}
	remainder := instruction.Volume - sumFloors

	type fractional struct {
		frac float64
		idx  int
	}
	fracs := make([]fractional, numSlices)
	for i := range fracs {
		fracs[i] = fractional{frac: rawVolumes[i] - float64(floorVolumes[i]), idx: i}
	}
	sort.Slice(fracs, func(a, b int) bool { return fracs[a].frac > fracs[b].frac })
	for j := 0; j < remainder; j++ {
		floorVolumes[fracs[j].idx]++
	}

	interval := float64(timeWindowSeconds) / float64(numSlices)
	var children []*valueobject.ChildOrder
	var schedule []valueobject.SliceEntry
	for i := 0; i < numSlices; i++ {
		scheduled := startTime.Add(time.Duration(interval*float64(i)+0.5) * time.Second)
		children = append(children, &valueobject.ChildOrder{
			ChildID: fmt.Sprintf("%s_child_%d", orderID, i), ParentID: orderID,
			Volume: floorVolumes[i], ScheduledTime: &scheduled,
		})
		schedule = append(schedule, valueobject.SliceEntry{ScheduledTime: scheduled, Volume: floorVolumes[i]})
	}

	order := &valueobject.AdvancedOrder{
		OrderID: orderID, Request: request, Status: valueobject.AdvancedOrderExecuting,
		ChildOrders: children, SliceSchedule: schedule,
	}
	s.mu.Lock()
	s.orders[orderID] = order
	s.mu.Unlock()
	return order, nil
}

// OnChildFilled records a child fill and, once every child of its
// parent is filled, completes the parent and returns the matching
// completion event.
func (s *AdvancedOrderScheduler) OnChildFilled(childID string, now int64) []aggregate.DomainEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, order := range s.orders {
		for _, child := range order.ChildOrders {
			if child.ChildID != childID || child.IsFilled {
				continue
			}
			child.IsFilled = true
			order.FilledVolume += child.Volume

			allFilled := true
			for _, c := range order.ChildOrders {
				if !c.IsFilled {
					allFilled = false
					break
				}
			}
			if !allFilled {
				return nil
			}
			order.Status = valueobject.AdvancedOrderCompleted
			totalVolume := order.Request.Instruction.Volume
			switch order.Request.OrderType {
			case valueobject.AdvancedOrderIceberg:
				return []aggregate.DomainEvent{aggregate.NewIcebergCompleteEvent(now, order.OrderID, totalVolume)}
			case valueobject.AdvancedOrderTWAP:
				return []aggregate.DomainEvent{aggregate.NewTWAPCompleteEvent(now, order.OrderID, totalVolume)}
			case valueobject.AdvancedOrderVWAP:
				return []aggregate.DomainEvent{aggregate.NewVWAPCompleteEvent(now, order.OrderID, totalVolume)}
			}
			return nil
		}
	}
	return nil
}

// GetPendingChildren returns the children that should be submitted at
// currentTime: for an iceberg, the single next unsubmitted child once
// all prior children are filled; for TWAP/VWAP/timed-split, every
// unsubmitted child whose scheduled time has arrived.
func (s *AdvancedOrderScheduler) GetPendingChildren(currentTime time.Time) []*valueobject.ChildOrder {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pending []*valueobject.ChildOrder
	for _, order := range s.orders {
		if order.Status != valueobject.AdvancedOrderExecuting {
			continue
		}
		if order.Request.OrderType == valueobject.AdvancedOrderIceberg {
			allPrevFilled := true
			for _, child := range order.ChildOrders {
				if child.IsSubmitted || child.IsFilled {
					allPrevFilled = allPrevFilled && child.IsFilled
					continue
				}
				if allPrevFilled {
					pending = append(pending, child)
				}
				break
			}
			continue
		}
		for _, child := range order.ChildOrders {
			if child.IsSubmitted || child.IsFilled {
				continue
			}
			if child.ScheduledTime != nil && !currentTime.Before(*child.ScheduledTime) {
				pending = append(pending, child)
			}
		}
	}
	return pending
}

// CancelOrder cancels a working parent order, returning the submitted-
// but-unfilled child ids that must be cancelled at the gateway and any
// cancellation event.
func (s *AdvancedOrderScheduler) CancelOrder(orderID string, now int64) ([]string, []aggregate.DomainEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return nil, nil
	}
	if order.Status == valueobject.AdvancedOrderCompleted || order.Status == valueobject.AdvancedOrderCancelled {
		return nil, nil
	}
	order.Status = valueobject.AdvancedOrderCancelled

	var cancelIDs []string
	remaining := 0
	for _, c := range order.ChildOrders {
		if c.IsSubmitted && !c.IsFilled {
			cancelIDs = append(cancelIDs, c.ChildID)
		}
		if !c.IsFilled {
			remaining += c.Volume
		}
	}

	var events []aggregate.DomainEvent
	if order.Request.OrderType == valueobject.AdvancedOrderIceberg {
		events = append(events, aggregate.NewIcebergCancelledEvent(
			now, order.OrderID, order.FilledVolume, remaining))
	}
	return cancelIDs, events
}

func (s *AdvancedOrderScheduler) GetOrder(orderID string) (*valueobject.AdvancedOrder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	return o, ok
}
