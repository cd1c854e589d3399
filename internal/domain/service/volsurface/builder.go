// Package volsurface builds an implied-volatility surface from market
// option quotes and answers bilinear-interpolated queries against it.
// Grounded on
// original_source/.../domain_service/vol_surface_builder.py.
package volsurface

import (
	"fmt"
	"sort"

	"optiontrader/internal/domain/valueobject"
)

// VolQueryResult is the outcome of a point lookup against a surface.
type VolQueryResult struct {
	ImpliedVol float64
	Success    bool
	Error      string
}

// VolSmile is the strike-axis slice of a surface at one expiry.
type VolSmile struct {
	TimeToExpiry float64
	Strikes      []float64
	Vols         []float64
}

// TermStructure is the expiry-axis slice of a surface at one strike.
type TermStructure struct {
	Strike   float64
	Expiries []float64
	Vols     []float64
}

// Builder constructs a vol surface from discrete quotes and serves
// bilinear-interpolated queries against it. Stateless.
type Builder struct{}

func NewBuilder() Builder { return Builder{} }

const epsilon = 1e-9

// BuildSurface assembles strikes x expiries grid from quotes,
// discarding non-positive implied vols, and requires at least 2
// distinct strikes and 2 distinct expiries to interpolate against.
func (Builder) BuildSurface(quotes []valueobject.VolQuote) (valueobject.VolSurfaceSnapshot, error) {
	strikeSet := make(map[float64]struct{})
	expirySet := make(map[float64]struct{})
	var valid []valueobject.VolQuote
	for _, q := range quotes {
		if q.ImpliedVol <= 0 {
			continue
		}
		valid = append(valid, q)
		strikeSet[q.Strike] = struct{}{}
		expirySet[q.T] = struct{}{}
	}

	strikes := sortedKeys(strikeSet)
	expiries := sortedKeys(expirySet)

	if len(strikes) < 2 || len(expiries) < 2 {
		return valueobject.VolSurfaceSnapshot{}, fmt.Errorf("volsurface: insufficient quotes to build a surface: %d strikes, %d expiries (need at least 2 each)", len(strikes), len(expiries))
	}

	type key struct{ expiry, strike float64 }
	lookup := make(map[key]float64, len(valid))
	for _, q := range valid {
		lookup[key{q.T, q.Strike}] = q.ImpliedVol
	}

	matrix := make([][]float64, len(expiries))
	for ei, exp := range expiries {
		row := make([]float64, len(strikes))
		for si, stk := range strikes {
			row[si] = lookup[key{exp, stk}]
		}
		matrix[ei] = row
	}

	return valueobject.VolSurfaceSnapshot{Strikes: strikes, Expiries: expiries, Matrix: matrix}, nil
}

func sortedKeys(set map[float64]struct{}) []float64 {
	keys := make([]float64, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Float64s(keys)
	return keys
}

// QueryVol bilinearly interpolates the implied vol at (strike, T),
// clamping to the surface's covered range once within tolerance of
// its bounds and failing when genuinely out of range.
func (Builder) QueryVol(snap valueobject.VolSurfaceSnapshot, strike, timeToExpiry float64) VolQueryResult {
	strikes, expiries, matrix := snap.Strikes, snap.Expiries, snap.Matrix
	if len(strikes) == 0 || len(expiries) == 0 {
		return VolQueryResult{Error: "surface is empty"}
	}

	if strike < strikes[0]-epsilon || strike > strikes[len(strikes)-1]+epsilon {
		return VolQueryResult{Error: fmt.Sprintf("strike %v out of range [%v, %v]", strike, strikes[0], strikes[len(strikes)-1])}
	}
	if timeToExpiry < expiries[0]-epsilon || timeToExpiry > expiries[len(expiries)-1]+epsilon {
		return VolQueryResult{Error: fmt.Sprintf("time_to_expiry %v out of range [%v, %v]", timeToExpiry, expiries[0], expiries[len(expiries)-1])}
	}

	strike = clamp(strike, strikes[0], strikes[len(strikes)-1])
	timeToExpiry = clamp(timeToExpiry, expiries[0], expiries[len(expiries)-1])

	si := upperBound(strikes, strike) - 1
	si = min(si, len(strikes)-2)
	ei := upperBound(expiries, timeToExpiry) - 1
	ei = min(ei, len(expiries)-2)
	si, ei = max(si, 0), max(ei, 0)

	s0, s1 := strikes[si], strikes[si+1]
	e0, e1 := expiries[ei], expiries[ei+1]

	var ts, te float64
	if s1 != s0 {
		ts = (strike - s0) / (s1 - s0)
	}
	if e1 != e0 {
		te = (timeToExpiry - e0) / (e1 - e0)
	}

	v00, v01 := matrix[ei][si], matrix[ei][si+1]
	v10, v11 := matrix[ei+1][si], matrix[ei+1][si+1]
	vol := v00*(1-ts)*(1-te) + v01*ts*(1-te) + v10*(1-ts)*te + v11*ts*te

	return VolQueryResult{ImpliedVol: vol, Success: true}
}

// ExtractSmile returns the strike-axis vol slice at timeToExpiry.
func (b Builder) ExtractSmile(snap valueobject.VolSurfaceSnapshot, timeToExpiry float64) VolSmile {
	vols := make([]float64, len(snap.Strikes))
	for i, strike := range snap.Strikes {
		if r := b.QueryVol(snap, strike, timeToExpiry); r.Success {
			vols[i] = r.ImpliedVol
		}
	}
	return VolSmile{TimeToExpiry: timeToExpiry, Strikes: append([]float64(nil), snap.Strikes...), Vols: vols}
}

// ExtractTermStructure returns the expiry-axis vol slice at strike.
func (b Builder) ExtractTermStructure(snap valueobject.VolSurfaceSnapshot, strike float64) TermStructure {
	vols := make([]float64, len(snap.Expiries))
	for i, exp := range snap.Expiries {
		if r := b.QueryVol(snap, strike, exp); r.Success {
			vols[i] = r.ImpliedVol
		}
	}
	return TermStructure{Strike: strike, Expiries: append([]float64(nil), snap.Expiries...), Vols: vols}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// upperBound returns the index of the first element strictly greater
// than v (bisect_right).
func upperBound(sorted []float64, v float64) int {
	lo, hi := 0, len(sorted)
	for lo < hi {
		mid := (lo + hi) / 2
		if sorted[mid] <= v {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}
