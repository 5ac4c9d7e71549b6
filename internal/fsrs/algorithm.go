package fsrs

import (
	"math"

	"github.com/conorfennell/spacedrep/internal/domain"
)

// algo evaluates the FSRS-4.5 formulas for a fixed weight vector.
type algo struct {
	w [19]float64
}

// recallMultiplier is the per-rating factor of the recall stability formula.
func (a *algo) recallMultiplier(r domain.Rating) float64 {
	switch r {
	case domain.Hard:
		return a.w[16]
	case domain.Easy:
		return a.w[17]
	default:
		return 1
	}
}

// retrievability computes R(t, S) = e^(-t/S).
func (a *algo) retrievability(elapsedDays, stability float64) float64 {
	return math.Exp(-elapsedDays / stability)
}

// initStability returns S₀(G) = w[G-1], floored at 0.1.
func (a *algo) initStability(r domain.Rating) float64 {
	return clampS(a.w[r-1])
}

// initDifficulty returns D₀(G) = clamp_d(w[4] - (G-3)*w[5]).
func (a *algo) initDifficulty(r domain.Rating) float64 {
	return clampD(a.w[4] - float64(r-3)*a.w[5])
}

// nextDifficulty applies the rating delta and reverts toward w[4].
// D' = D - w[6]*(G-3)
// D'' = clamp_d(w[7]*w[4] + (1-w[7])*D')
func (a *algo) nextDifficulty(d float64, r domain.Rating) float64 {
	raw := d - a.w[6]*float64(r-3)
	return clampD(a.w[7]*a.w[4] + (1-a.w[7])*raw)
}

// nextStability dispatches on the rating. Again has its own formula;
// Hard, Good and Easy share the recall formula with a multiplier.
func (a *algo) nextStability(d, s, elapsedDays float64, r domain.Rating) float64 {
	R := a.retrievability(elapsedDays, s)
	if r == domain.Again {
		return clampS(a.forgetStability(d, s, R))
	}
	return clampS(a.recallStability(d, s, R, a.recallMultiplier(r)))
}

// recallStability computes stability after a successful recall.
// S'_r = S * (1 + e^w[8] * (11-D) * S^(-w[9]) * (e^((1-R)*w[10]) - 1) * m)
func (a *algo) recallStability(d, s, R, m float64) float64 {
	return s * (1 + math.Exp(a.w[8])*
		(11-d)*
		math.Pow(s, -a.w[9])*
		(math.Exp((1-R)*a.w[10])-1)*
		m)
}

// forgetStability computes stability after a lapse.
// s_recall = w[11] * D^(-w[12]) * ((S+1)^w[13] - 1) * e^(-R*w[14])
// S'_f = S * (1 + s_recall*w[15])
func (a *algo) forgetStability(d, s, R float64) float64 {
	sRecall := a.w[11] *
		math.Pow(d, -a.w[12]) *
		(math.Pow(s+1, a.w[13]) - 1) *
		math.Exp(-R*a.w[14])
	return s * (1 + sRecall*a.w[15])
}

// nextInterval returns the days until the next review.
// After Again the card is shown again soon: max(1, 0.2*S).
// Otherwise I = S * (1/r - 1) for desired retention r.
func (a *algo) nextInterval(stability, desiredRetention float64, r domain.Rating, maxIvl int) float64 {
	var ivl float64
	if r == domain.Again {
		ivl = math.Max(1, stability*0.2)
	} else {
		ivl = stability * (1/desiredRetention - 1)
	}
	return math.Min(ivl, float64(maxIvl))
}

func clampS(s float64) float64 {
	return math.Max(s, minStability)
}

func clampD(d float64) float64 {
	return math.Min(math.Max(d, minDifficulty), maxDifficulty)
}
