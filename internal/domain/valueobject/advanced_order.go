package valueobject

import "time"

// AdvancedOrderType selects how an AdvancedOrderScheduler splits a
// parent instruction into child orders.
type AdvancedOrderType string

const (
	AdvancedOrderIceberg    AdvancedOrderType = "iceberg"
	AdvancedOrderTimedSplit AdvancedOrderType = "timed_split"
	AdvancedOrderTWAP       AdvancedOrderType = "twap"
	AdvancedOrderVWAP       AdvancedOrderType = "vwap"
)

// AdvancedOrderStatus is the parent order's lifecycle state.
type AdvancedOrderStatus string

const (
	AdvancedOrderExecuting AdvancedOrderStatus = "executing"
	AdvancedOrderCompleted AdvancedOrderStatus = "completed"
	AdvancedOrderCancelled AdvancedOrderStatus = "cancelled"
)

// ChildOrder is one slice of a split parent order.
type ChildOrder struct {
	ChildID       string
	ParentID      string
	Volume        int
	ScheduledTime *time.Time
	IsSubmitted   bool
	IsFilled      bool
}

// SliceEntry records a child's planned (time, volume) pair, independent
// of whether it has since been submitted or filled.
type SliceEntry struct {
	ScheduledTime time.Time
	Volume        int
}

// AdvancedOrderRequest is the immutable parameters a parent order was
// submitted with.
type AdvancedOrderRequest struct {
	OrderType         AdvancedOrderType
	Instruction       OrderInstruction
	BatchSize         int
	IntervalSeconds   int
	PerOrderVolume    int
	TimeWindowSeconds int
	NumSlices         int
	VolumeProfile     []float64
}

// AdvancedOrder is one split parent order and its children.
type AdvancedOrder struct {
	OrderID       string
	Request       AdvancedOrderRequest
	Status        AdvancedOrderStatus
	ChildOrders   []*ChildOrder
	SliceSchedule []SliceEntry
	FilledVolume  int
}

// ManagedOrder is a working order tracked by SmartOrderExecutor for
// timeout/retry purposes.
type ManagedOrder struct {
	VtOrderID  string
	Instruction OrderInstruction
	SubmitTime time.Time
	IsActive   bool
	RetryCount int
}
