package portfolio

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"stockadvisor/internal/market"
)

// objective selects the quantity the solver minimizes.
type objective int

const (
	objMinVolatility objective = iota
	objMaxSharpe
	objMaxQuadraticUtility
)

// objectiveFor maps a tier to its objective. Only the literal
// conservative/aggressive values change the objective; everything else,
// including unknown tiers, gets max-Sharpe.
func objectiveFor(tier RiskTier) objective {
	switch tier {
	case Conservative:
		return objMinVolatility
	case Aggressive:
		return objMaxQuadraticUtility
	default:
		return objMaxSharpe
	}
}

// riskAversion is the quadratic-utility penalty on variance.
const riskAversion = 1.0

// Optimize computes a mean-variance-efficient allocation for the tickers
// under the tier's bounds and objective. Tickers absent from the price
// table are dropped silently. On infeasibility it walks a fixed ladder:
// the requested objective, then minimum volatility under the same bounds,
// then minimum volatility with bounds relaxed to [0, 1]. The Result
// records which rung succeeded; ErrInfeasible is returned only when all
// three fail.
func Optimize(tickers []string, prices *market.PriceTable, tier RiskTier) (*Result, error) {
	p := prices.Select(tickers).DropMissing()
	mu, sigma, err := Estimate(p)
	if err != nil {
		return nil, err
	}
	names := p.Tickers()

	ladder := []struct {
		obj     objective
		upper   float64
		attempt Attempt
	}{
		{objectiveFor(tier), tier.Bound(), AttemptRequested},
		{objMinVolatility, tier.Bound(), AttemptMinVolFallback},
		{objMinVolatility, 1.0, AttemptRelaxedBounds},
	}

	var lastErr error
	for _, rung := range ladder {
		w, err := solve(mu, sigma, rung.obj, rung.upper)
		if err != nil {
			lastErr = err
			continue
		}
		return newResult(names, w, mu, sigma, rung.attempt), nil
	}
	return nil, fmt.Errorf("all optimization attempts failed: %w (last: %v)", ErrInfeasible, lastErr)
}

// solve minimizes the selected objective over {0 <= w_i <= upper,
// sum(w) = 1}, formulated as an unconstrained penalty problem and finished
// with an exact projection onto the capped simplex.
func solve(mu []float64, sigma *mat.SymDense, obj objective, upper float64) ([]float64, error) {
	n := len(mu)
	if float64(n)*upper < 1.0-1e-9 {
		return nil, fmt.Errorf("%d assets cannot sum to 1 under bound %.2f: %w", n, upper, ErrInfeasible)
	}

	const penalty = 1000.0

	sigmaW := func(x []float64) []float64 {
		out := make([]float64, n)
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				out[i] += sigma.At(i, j) * x[j]
			}
		}
		return out
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			var ret, variance, sum float64
			sw := sigmaW(x)
			for i := 0; i < n; i++ {
				ret += mu[i] * x[i]
				variance += x[i] * sw[i]
				sum += x[i]
			}

			var f float64
			switch obj {
			case objMinVolatility:
				f = variance
			case objMaxQuadraticUtility:
				f = -(ret - 0.5*riskAversion*variance)
			default: // max Sharpe
				f = -(ret - RiskFreeRate) / math.Sqrt(math.Max(variance, 1e-10))
			}

			f += penalty * (sum - 1) * (sum - 1)
			for i := 0; i < n; i++ {
				if x[i] < 0 {
					f += penalty * x[i] * x[i]
				} else if x[i] > upper {
					d := x[i] - upper
					f += penalty * d * d
				}
			}
			return f
		},
		Grad: func(grad, x []float64) {
			var ret, variance, sum float64
			sw := sigmaW(x)
			for i := 0; i < n; i++ {
				ret += mu[i] * x[i]
				variance += x[i] * sw[i]
				sum += x[i]
			}

			switch obj {
			case objMinVolatility:
				for i := 0; i < n; i++ {
					grad[i] = 2 * sw[i]
				}
			case objMaxQuadraticUtility:
				for i := 0; i < n; i++ {
					grad[i] = -mu[i] + riskAversion*sw[i]
				}
			default:
				sd := math.Sqrt(math.Max(variance, 1e-10))
				for i := 0; i < n; i++ {
					grad[i] = -mu[i]/sd + (ret-RiskFreeRate)*sw[i]/(sd*sd*sd)
				}
			}

			for i := 0; i < n; i++ {
				grad[i] += 2 * penalty * (sum - 1)
				if x[i] < 0 {
					grad[i] += 2 * penalty * x[i]
				} else if x[i] > upper {
					grad[i] += 2 * penalty * (x[i] - upper)
				}
			}
		},
	}

	initial := make([]float64, n)
	for i := range initial {
		initial[i] = 1.0 / float64(n)
	}

	x, err := minimize(problem, initial)
	if err != nil {
		return nil, err
	}
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("solver produced non-finite weights: %w", ErrInfeasible)
		}
	}
	return projectCappedSimplex(x, upper), nil
}

// minimize runs BFGS and falls back to Nelder-Mead when BFGS fails to
// converge on the penalty surface.
func minimize(problem optimize.Problem, initial []float64) ([]float64, error) {
	result, err := optimize.Minimize(problem, initial, &optimize.Settings{}, &optimize.BFGS{})
	if err == nil && converged(result.Status) {
		return result.X, nil
	}
	result, err = optimize.Minimize(problem, initial, &optimize.Settings{}, &optimize.NelderMead{})
	if err != nil {
		return nil, fmt.Errorf("solver: %w", err)
	}
	if !converged(result.Status) {
		return nil, fmt.Errorf("solver did not converge: status=%v: %w", result.Status, ErrInfeasible)
	}
	return result.X, nil
}

func converged(s optimize.Status) bool {
	switch s {
	case optimize.Success, optimize.GradientThreshold, optimize.FunctionConvergence,
		optimize.FunctionThreshold, optimize.StepConvergence, optimize.MethodConverge:
		return true
	}
	return false
}

// projectCappedSimplex maps x onto {0 <= w_i <= upper, sum(w) = 1} by
// clamping and redistributing the residual across unsaturated
// coordinates. Requires n*upper >= 1, which solve checks up front.
func projectCappedSimplex(x []float64, upper float64) []float64 {
	n := len(x)
	w := make([]float64, n)
	for i, v := range x {
		w[i] = math.Min(upper, math.Max(0, v))
	}
	for iter := 0; iter < 200; iter++ {
		sum := 0.0
		for _, v := range w {
			sum += v
		}
		diff := 1 - sum
		if math.Abs(diff) < 1e-12 {
			break
		}
		var free []int
		for i, v := range w {
			if diff > 0 && v < upper-1e-15 {
				free = append(free, i)
			} else if diff < 0 && v > 1e-15 {
				free = append(free, i)
			}
		}
		if len(free) == 0 {
			break
		}
		step := diff / float64(len(free))
		for _, i := range free {
			w[i] = math.Min(upper, math.Max(0, w[i]+step))
		}
	}
	return w
}

// newResult cleans the raw solution into reported weights and computes the
// performance triple from the raw (untruncated) weights.
func newResult(names []string, w, mu []float64, sigma *mat.SymDense, attempt Attempt) *Result {
	ret, vol, sharpe := performance(w, mu, sigma)

	weights := make(map[string]float64, len(names))
	for i, name := range names {
		rounded := round4(w[i])
		if rounded > 0.01 {
			weights[name] = rounded
		}
	}
	return &Result{
		Weights:        weights,
		ExpectedReturn: round4(ret),
		Volatility:     round4(vol),
		SharpeRatio:    round4(sharpe),
		Attempt:        attempt,
	}
}
