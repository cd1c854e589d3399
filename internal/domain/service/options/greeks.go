// Package options implements the options domain services: OTM contract
// selection and Black-Scholes Greeks/implied-volatility calculation.
// Grounded on
// original_source/.../domain_service/{option_selector_service,greeks_calculator}.py.
package options

import (
	"fmt"
	"math"

	"optiontrader/internal/domain/valueobject"
)

// GreeksCalculator computes Black-Scholes Greeks and implied
// volatility. Stateless. Grounded on
// original_source/.../domain_service/greeks_calculator.py.
type GreeksCalculator struct{}

func NewGreeksCalculator() GreeksCalculator { return GreeksCalculator{} }

func normCDF(x float64) float64 { return 0.5 * (1.0 + math.Erf(x/math.Sqrt2)) }

func normPDF(x float64) float64 { return math.Exp(-0.5*x*x) / math.Sqrt(2.0*math.Pi) }

// CalculateGreeks returns delta/gamma/theta/vega for the given inputs.
func (GreeksCalculator) CalculateGreeks(in valueobject.GreeksInput) (valueobject.GreeksResult, error) {
	if in.Spot <= 0 || in.Strike <= 0 {
		return valueobject.GreeksResult{}, fmt.Errorf("options: spot and strike must be positive")
	}
	if in.T < 0 {
		return valueobject.GreeksResult{}, fmt.Errorf("options: time_to_expiry cannot be negative")
	}
	if in.Vol <= 0 {
		return valueobject.GreeksResult{}, fmt.Errorf("options: volatility must be positive")
	}

	if in.T == 0 {
		var delta float64
		if in.Type == valueobject.Call {
			if in.Spot > in.Strike {
				delta = 1.0
			}
		} else if in.Spot < in.Strike {
			delta = -1.0
		}
		return valueobject.GreeksResult{Delta: delta}, nil
	}

	sqrtT := math.Sqrt(in.T)
	d1 := (math.Log(in.Spot/in.Strike) + (in.Rate+0.5*in.Vol*in.Vol)*in.T) / (in.Vol * sqrtT)
	d2 := d1 - in.Vol*sqrtT

	pdfD1 := normPDF(d1)
	cdfD1 := normCDF(d1)
	cdfD2 := normCDF(d2)

	gamma := pdfD1 / (in.Spot * in.Vol * sqrtT)
	vega := in.Spot * pdfD1 * sqrtT / 100.0

	var delta, theta float64
	if in.Type == valueobject.Call {
		delta = cdfD1
		theta = (-in.Spot*pdfD1*in.Vol/(2.0*sqrtT) - in.Rate*in.Strike*math.Exp(-in.Rate*in.T)*cdfD2) / 365.0
	} else {
		delta = cdfD1 - 1.0
		theta = (-in.Spot*pdfD1*in.Vol/(2.0*sqrtT) + in.Rate*in.Strike*math.Exp(-in.Rate*in.T)*normCDF(-d2)) / 365.0
	}

	return valueobject.GreeksResult{Delta: delta, Gamma: gamma, Theta: theta, Vega: vega}, nil
}

// BSPrice returns the Black-Scholes theoretical price.
func (c GreeksCalculator) BSPrice(in valueobject.GreeksInput) float64 {
	if in.T == 0 {
		if in.Type == valueobject.Call {
			return math.Max(in.Spot-in.Strike, 0.0)
		}
		return math.Max(in.Strike-in.Spot, 0.0)
	}

	sqrtT := math.Sqrt(in.T)
	d1 := (math.Log(in.Spot/in.Strike) + (in.Rate+0.5*in.Vol*in.Vol)*in.T) / (in.Vol * sqrtT)
	d2 := d1 - in.Vol*sqrtT

	if in.Type == valueobject.Call {
		return in.Spot*normCDF(d1) - in.Strike*math.Exp(-in.Rate*in.T)*normCDF(d2)
	}
	return in.Strike*math.Exp(-in.Rate*in.T)*normCDF(-d2) - in.Spot*normCDF(-d1)
}

// IVResult is the outcome of an implied-volatility solve.
type IVResult struct {
	ImpliedVolatility float64
	Iterations        int
}

const (
	defaultMaxIterations = 100
	defaultTolerance     = 0.01
)

// CalculateImpliedVolatility solves for volatility via Newton's method
// with a bisection fallback, matching the Python source's hybrid
// solver exactly (bisection bounds narrow on every iteration
// regardless of which step type is taken).
func (c GreeksCalculator) CalculateImpliedVolatility(marketPrice float64, in valueobject.GreeksInput) (IVResult, error) {
	if marketPrice <= 0 {
		return IVResult{}, fmt.Errorf("options: market price must be positive")
	}

	var intrinsic float64
	if in.Type == valueobject.Call {
		intrinsic = math.Max(in.Spot-in.Strike*math.Exp(-in.Rate*in.T), 0.0)
	} else {
		intrinsic = math.Max(in.Strike*math.Exp(-in.Rate*in.T)-in.Spot, 0.0)
	}
	if marketPrice < intrinsic-defaultTolerance {
		return IVResult{}, fmt.Errorf("options: market price below intrinsic value")
	}

	sigma := 0.5
	sigmaLow, sigmaHigh := 0.001, 10.0

	for i := 0; i < defaultMaxIterations; i++ {
		trial := in
		trial.Vol = sigma
		price := c.BSPrice(trial)
		greeks, err := c.CalculateGreeks(trial)

		diff := price - marketPrice
		if math.Abs(diff) < defaultTolerance {
			return IVResult{ImpliedVolatility: sigma, Iterations: i + 1}, nil
		}

		if diff > 0 {
			sigmaHigh = sigma
		} else {
			sigmaLow = sigma
		}

		vegaRaw := 0.0
		if err == nil {
			vegaRaw = greeks.Vega * 100.0
		}
		if math.Abs(vegaRaw) > 1e-10 {
			newSigma := sigma - diff/vegaRaw
			if sigmaLow < newSigma && newSigma < sigmaHigh {
				sigma = newSigma
			} else {
				sigma = (sigmaLow + sigmaHigh) / 2.0
			}
		} else {
			sigma = (sigmaLow + sigmaHigh) / 2.0
		}
	}

	return IVResult{Iterations: defaultMaxIterations}, fmt.Errorf("options: implied volatility did not converge within %d iterations", defaultMaxIterations)
}
