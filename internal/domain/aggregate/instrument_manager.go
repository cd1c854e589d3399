package aggregate

import (
	"sync"

	"optiontrader/internal/domain/entity"
	"optiontrader/internal/domain/valueobject"
)

// InstrumentManager is the read-only market-data container: it manages
// the set of TargetInstrument entities and the dominant-contract map,
// with no calculation logic and no domain events of its own. Grounded
// on original_source/.../aggregate/instrument_manager.py.
type InstrumentManager struct {
	mu               sync.RWMutex
	instruments      map[string]*entity.TargetInstrument
	activeContracts  map[string]string // product -> vt_symbol
	barCapacity      int
}

func NewInstrumentManager(barCapacity int) *InstrumentManager {
	return &InstrumentManager{
		instruments:     make(map[string]*entity.TargetInstrument),
		activeContracts: make(map[string]string),
		barCapacity:     barCapacity,
	}
}

// --- persistence ---

type InstrumentManagerSnapshot struct {
	Instruments     map[string]entity.InstrumentSnapshot `json:"instruments"`
	ActiveContracts map[string]string                    `json:"active_contracts"`
}

func (m *InstrumentManager) ToSnapshot() InstrumentManagerSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap := InstrumentManagerSnapshot{
		Instruments:     make(map[string]entity.InstrumentSnapshot, len(m.instruments)),
		ActiveContracts: m.activeContracts,
	}
	for sym, inst := range m.instruments {
		snap.Instruments[sym] = inst.ToSnapshot()
	}
	return snap
}

func FromInstrumentManagerSnapshot(snap InstrumentManagerSnapshot, barCapacity int) *InstrumentManager {
	m := NewInstrumentManager(barCapacity)
	for sym, instSnap := range snap.Instruments {
		m.instruments[sym] = entity.FromInstrumentSnapshot(instSnap)
	}
	if snap.ActiveContracts != nil {
		m.activeContracts = snap.ActiveContracts
	}
	return m
}

// --- dominant contract tracking ---

func (m *InstrumentManager) SetActiveContract(product, vtSymbol string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activeContracts[product] = vtSymbol
}

func (m *InstrumentManager) GetActiveContract(product string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.activeContracts[product]
	return s, ok
}

func (m *InstrumentManager) GetAllActiveContracts() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.activeContracts))
	for _, s := range m.activeContracts {
		out = append(out, s)
	}
	return out
}

// --- instrument access ---

func (m *InstrumentManager) GetInstrument(vtSymbol string) *entity.TargetInstrument {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.instruments[vtSymbol]
}

func (m *InstrumentManager) GetOrCreateInstrument(vtSymbol string) *entity.TargetInstrument {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, ok := m.instruments[vtSymbol]
	if !ok {
		inst = entity.NewTargetInstrument(vtSymbol, m.barCapacity)
		m.instruments[vtSymbol] = inst
	}
	return inst
}

// UpdateBar appends a bar to vtSymbol's history, creating the
// instrument on first sight. Called from the pipeline's on_bars path.
func (m *InstrumentManager) UpdateBar(vtSymbol string, bar valueobject.Bar) *entity.TargetInstrument {
	inst := m.GetOrCreateInstrument(vtSymbol)
	inst.AppendBar(bar)
	return inst
}

func (m *InstrumentManager) GetBarHistory(vtSymbol string, n int) []valueobject.Bar {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.instruments[vtSymbol]
	if !ok {
		return nil
	}
	return inst.BarHistory(n)
}

func (m *InstrumentManager) GetLatestPrice(vtSymbol string) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.instruments[vtSymbol]
	if !ok {
		return 0
	}
	price, _ := inst.LatestClose()
	return price
}

func (m *InstrumentManager) GetAllSymbols() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.instruments))
	for s := range m.instruments {
		out = append(out, s)
	}
	return out
}

func (m *InstrumentManager) HasInstrument(vtSymbol string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.instruments[vtSymbol]
	return ok
}

func (m *InstrumentManager) HasEnoughData(vtSymbol string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.instruments[vtSymbol]
	if !ok {
		return false
	}
	return inst.HasEnoughData()
}

func (m *InstrumentManager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.instruments = make(map[string]*entity.TargetInstrument)
}
