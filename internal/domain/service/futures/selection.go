package futures

import (
	"sort"
	"time"
)

// DominantCandidate is the subset of contract data the selection
// service needs: a symbol to sort by and an expiry to apply the
// 7-day rollover rule against.
type DominantCandidate struct {
	Symbol string
	Expiry time.Time
}

// FutureSelectionService picks the current month's contract as
// dominant unless it is within 7 days of expiry, in which case it
// rolls to the next month's contract. Grounded on
// original_source/.../domain_service/future_selection_service.py.
type FutureSelectionService struct{}

// LogFunc receives a trace line explaining the selection decision.
type LogFunc func(msg string, args ...any)

// SelectDominantContract returns the dominant contract among
// candidates as of currentDate, or ok=false if candidates is empty.
func (FutureSelectionService) SelectDominantContract(candidates []DominantCandidate, currentDate time.Time, log LogFunc) (DominantCandidate, bool) {
	if len(candidates) == 0 {
		return DominantCandidate{}, false
	}

	sorted := append([]DominantCandidate(nil), candidates...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Symbol < sorted[j].Symbol })

	currentMonth := sorted[0]
	if currentMonth.Expiry.IsZero() {
		if log != nil {
			log("could not resolve expiry, defaulting to current-month contract", "symbol", currentMonth.Symbol)
		}
		return currentMonth, true
	}

	daysToExpiry := int(currentMonth.Expiry.Sub(currentDate).Hours() / 24)
	if daysToExpiry > 7 {
		if log != nil {
			log("selecting current-month contract", "symbol", currentMonth.Symbol, "days_to_expiry", daysToExpiry)
		}
		return currentMonth, true
	}

	if len(sorted) > 1 {
		next := sorted[1]
		if log != nil {
			log("rolling to next-month contract", "from", currentMonth.Symbol, "to", next.Symbol, "days_to_expiry", daysToExpiry)
		}
		return next, true
	}

	if log != nil {
		log("no next-month contract available, staying on current-month contract", "symbol", currentMonth.Symbol, "days_to_expiry", daysToExpiry)
	}
	return currentMonth, true
}
