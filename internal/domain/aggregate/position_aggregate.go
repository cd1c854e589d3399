package aggregate

import (
	"sync"

	"optiontrader/internal/domain/entity"
	"optiontrader/internal/domain/valueobject"
)

// Default daily open-volume limits, per spec.md §4.C step 5.
const (
	DefaultGlobalDailyOpenLimit   = 50
	DefaultPerContractOpenLimit   = 2
)

// PositionAggregate is the single read-write, event-emitting aggregate
// the pipeline owns. It is not safe for concurrent use from more than
// one goroutine — the pipeline is its sole writer per spec.md §5 — the
// mutex only guards against accidental cross-goroutine reads (e.g. a
// dashboard/monitor snapshot reader).
type PositionAggregate struct {
	mu sync.Mutex

	positions      map[string]*entity.Position
	pendingOrders  map[string]*entity.Order
	managedSymbols map[string]struct{}
	domainEvents   []DomainEvent

	dailyOpenCountMap    map[string]int
	globalDailyOpenCount int
	lastTradingDate      string // YYYY-MM-DD
}

func NewPositionAggregate() *PositionAggregate {
	return &PositionAggregate{
		positions:         make(map[string]*entity.Position),
		pendingOrders:     make(map[string]*entity.Order),
		managedSymbols:    make(map[string]struct{}),
		dailyOpenCountMap: make(map[string]int),
	}
}

// --- persistence ---

type PositionAggregateSnapshot struct {
	Positions            map[string]*entity.Position `json:"positions"`
	PendingOrders        map[string]*entity.Order    `json:"pending_orders"`
	ManagedSymbols       []string                     `json:"managed_symbols"`
	DailyOpenCountMap    map[string]int               `json:"daily_open_count_map"`
	GlobalDailyOpenCount int                           `json:"global_daily_open_count"`
	LastTradingDate      string                        `json:"last_trading_date"`
}

func (a *PositionAggregate) ToSnapshot() PositionAggregateSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	symbols := make([]string, 0, len(a.managedSymbols))
	for s := range a.managedSymbols {
		symbols = append(symbols, s)
	}
	return PositionAggregateSnapshot{
		Positions:            a.positions,
		PendingOrders:        a.pendingOrders,
		ManagedSymbols:       symbols,
		DailyOpenCountMap:    a.dailyOpenCountMap,
		GlobalDailyOpenCount: a.globalDailyOpenCount,
		LastTradingDate:      a.lastTradingDate,
	}
}

func FromPositionAggregateSnapshot(s PositionAggregateSnapshot) *PositionAggregate {
	a := NewPositionAggregate()
	if s.Positions != nil {
		a.positions = s.Positions
	}
	if s.PendingOrders != nil {
		a.pendingOrders = s.PendingOrders
	}
	for _, sym := range s.ManagedSymbols {
		a.managedSymbols[sym] = struct{}{}
	}
	if s.DailyOpenCountMap != nil {
		a.dailyOpenCountMap = s.DailyOpenCountMap
	}
	a.globalDailyOpenCount = s.GlobalDailyOpenCount
	a.lastTradingDate = s.LastTradingDate
	return a
}

// --- position management ---

func (a *PositionAggregate) CreatePosition(optionSymbol, underlyingSymbol, signal string, targetVolume int, direction valueobject.Direction, now int64) *entity.Position {
	a.mu.Lock()
	defer a.mu.Unlock()
	pos := entity.NewPosition(optionSymbol, underlyingSymbol, signal, targetVolume, direction, now)
	a.positions[optionSymbol] = pos
	a.managedSymbols[optionSymbol] = struct{}{}
	return pos
}

func (a *PositionAggregate) GetPosition(symbol string) *entity.Position {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.positions[symbol]
}

func (a *PositionAggregate) GetPositionsByUnderlying(underlyingSymbol string) []*entity.Position {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []*entity.Position
	for _, p := range a.positions {
		if p.UnderlyingSymbol == underlyingSymbol && !p.IsClosed && p.Volume > 0 {
			out = append(out, p)
		}
	}
	return out
}

func (a *PositionAggregate) GetActivePositions() []*entity.Position {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []*entity.Position
	for _, p := range a.positions {
		if p.IsActive() {
			out = append(out, p)
		}
	}
	return out
}

func (a *PositionAggregate) GetAllPositions() []*entity.Position {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*entity.Position, 0, len(a.positions))
	for _, p := range a.positions {
		out = append(out, p)
	}
	return out
}

// --- order management ---

func (a *PositionAggregate) AddPendingOrder(order *entity.Order) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pendingOrders[order.VtOrderID] = order
}

func (a *PositionAggregate) GetPendingOrder(vtOrderID string) *entity.Order {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pendingOrders[vtOrderID]
}

func (a *PositionAggregate) GetAllPendingOrders() []*entity.Order {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*entity.Order, 0, len(a.pendingOrders))
	for _, o := range a.pendingOrders {
		out = append(out, o)
	}
	return out
}

// HasPendingClose reports whether a non-terminal close-side order
// already exists for position.Symbol, making _execute_close idempotent.
func (a *PositionAggregate) HasPendingClose(position *entity.Position) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, o := range a.pendingOrders {
		if o.Symbol == position.Symbol && !o.IsOpenOrder() && o.IsActive() {
			return true
		}
	}
	return false
}

// --- daily risk-budget state ---

// OnNewTradingDay resets the daily counters when the trading date
// changes (invariant 4 / testable property 13).
func (a *PositionAggregate) OnNewTradingDay(currentDate string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.lastTradingDate != currentDate {
		a.dailyOpenCountMap = make(map[string]int)
		a.globalDailyOpenCount = 0
		a.lastTradingDate = currentDate
	}
}

// RecordOpenUsage records filled open volume against the daily budget
// and emits RiskLimitExceededEvent when either limit is crossed.
func (a *PositionAggregate) RecordOpenUsage(symbol string, volume int, globalLimit, contractLimit int, now int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.recordOpenUsageLocked(symbol, volume, globalLimit, contractLimit, now)
}

func (a *PositionAggregate) GetDailyOpenVolume(symbol string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dailyOpenCountMap[symbol]
}

func (a *PositionAggregate) GetGlobalDailyOpenVolume() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.globalDailyOpenCount
}

// GetReservedOpenVolume sums the remaining (unfilled) volume of active
// open-side orders, optionally scoped to one symbol (empty string means
// global). Invariant 5.
func (a *PositionAggregate) GetReservedOpenVolume(symbol string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	total := 0
	for _, o := range a.pendingOrders {
		if !o.IsOpenOrder() || !o.IsActive() {
			continue
		}
		if symbol != "" && o.Symbol != symbol {
			continue
		}
		total += o.RemainingVolume()
	}
	return total
}

// --- report handling ---

// OrderReport is the subset of a gateway order callback the aggregate
// needs.
type OrderReport struct {
	VtOrderID string
	Symbol    string
	Status    entity.OrderStatus
	Traded    int
}

// UpdateFromOrder applies an order-report callback: updates status and
// traded volume, and drops the order from pendingOrders on terminal
// status. No side effect on Position.Volume (that's UpdateFromTrade).
func (a *PositionAggregate) UpdateFromOrder(report OrderReport, now int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	order, ok := a.pendingOrders[report.VtOrderID]
	if !ok {
		return
	}
	order.UpdateStatus(report.Status, report.Traded, now)
	if order.IsFinished() {
		delete(a.pendingOrders, report.VtOrderID)
	}
}

// TradeReport is the subset of a gateway trade callback the aggregate
// needs.
type TradeReport struct {
	Symbol string
	Volume int
	Offset valueobject.Offset
	Price  float64
	Time   int64
}

// UpdateFromTrade applies a trade-report callback to the managed
// position, if any, for symbols the strategy manages.
func (a *PositionAggregate) UpdateFromTrade(report TradeReport) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, managed := a.managedSymbols[report.Symbol]; !managed {
		return
	}
	position, ok := a.positions[report.Symbol]
	if !ok {
		return
	}
	if report.Offset == valueobject.Open {
		position.AddFill(report.Volume, report.Price, report.Time)
		a.recordOpenUsageLocked(report.Symbol, report.Volume, DefaultGlobalDailyOpenLimit, DefaultPerContractOpenLimit, report.Time)
	} else {
		position.ReduceVolume(report.Volume, report.Time)
	}
}

// recordOpenUsageLocked is RecordOpenUsage's body without its own
// locking, for call sites that already hold the mutex.
func (a *PositionAggregate) recordOpenUsageLocked(symbol string, volume int, globalLimit, contractLimit int, now int64) {
	a.globalDailyOpenCount += volume
	a.dailyOpenCountMap[symbol] += volume

	if a.globalDailyOpenCount >= globalLimit {
		a.domainEvents = append(a.domainEvents, RiskLimitExceededEvent{
			baseEvent: at(now), Symbol: "GLOBAL", LimitType: RiskLimitGlobal,
			CurrentVolume: a.globalDailyOpenCount, LimitVolume: globalLimit,
		})
	}
	if a.dailyOpenCountMap[symbol] >= contractLimit {
		a.domainEvents = append(a.domainEvents, RiskLimitExceededEvent{
			baseEvent: at(now), Symbol: symbol, LimitType: RiskLimitContract,
			CurrentVolume: a.dailyOpenCountMap[symbol], LimitVolume: contractLimit,
		})
	}
}

// PositionReport is the subset of a gateway position-report callback
// the aggregate needs for reconciliation.
type PositionReport struct {
	Symbol        string
	ActualVolume  int
}

// UpdateFromPosition reconciles the exchange-reported volume against
// the strategy's own Position. A shortfall is a manual close; a surplus
// is a manual open the strategy does not adopt. Testable property 14.
func (a *PositionAggregate) UpdateFromPosition(report PositionReport, now int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, managed := a.managedSymbols[report.Symbol]; !managed {
		return
	}
	position, ok := a.positions[report.Symbol]
	if !ok {
		return
	}

	switch {
	case report.ActualVolume < position.Volume:
		manualVolume := position.Volume - report.ActualVolume
		position.MarkAsManuallyClosed(manualVolume, now)
		a.domainEvents = append(a.domainEvents, ManualCloseDetectedEvent{
			baseEvent: at(now), Symbol: report.Symbol, Volume: manualVolume,
		})
	case report.ActualVolume > position.Volume:
		manualVolume := report.ActualVolume - position.Volume
		a.domainEvents = append(a.domainEvents, ManualOpenDetectedEvent{
			baseEvent: at(now), Symbol: report.Symbol, Volume: manualVolume,
		})
	}
}

// --- domain events ---

func (a *PositionAggregate) Enqueue(event DomainEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.domainEvents = append(a.domainEvents, event)
}

func (a *PositionAggregate) PopDomainEvents() []DomainEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	events := a.domainEvents
	a.domainEvents = nil
	return events
}

func (a *PositionAggregate) HasPendingEvents() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.domainEvents) > 0
}

// --- helpers ---

func (a *PositionAggregate) IsManaged(symbol string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.managedSymbols[symbol]
	return ok
}

func (a *PositionAggregate) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.positions = make(map[string]*entity.Position)
	a.pendingOrders = make(map[string]*entity.Order)
	a.managedSymbols = make(map[string]struct{})
	a.domainEvents = nil
}
