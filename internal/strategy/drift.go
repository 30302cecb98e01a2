package strategy

import (
	"math"
	"slices"

	"EtfSentinel/internal/calculator"
	"EtfSentinel/internal/model"
)

// zeroTargetDrift is the drift percentage reported for a key without target weight.
const zeroTargetDrift = 100

// DriftData compares current values with the target allocation, one row per key.
// Rows follow the target order, then keys held but missing from the target.
//
// The buy amounts anchor on the most overweight key: the portfolio grows until that
// key is back on target. The sell amounts anchor on the most underweight key: the
// portfolio shrinks until that key is on target. A strategy that cannot reach the
// target leaves its amount nil on every row.
func DriftData[K ~string](target, current model.Weights[K]) []model.DriftRow[K] {
	portfolioValue := current.Sum()

	keys := target.Keys()
	for _, k := range current.Keys() {
		if !target.Has(k) {
			keys = append(keys, k)
		}
	}

	rows := make([]model.DriftRow[K], len(keys))
	for i, k := range keys {
		targetPct := target.Get(k)
		currentValue := current.Get(k)
		currentPct := calculator.Percent(currentValue, portfolioValue)
		pct := float64(zeroTargetDrift)
		if targetPct != 0 {
			pct = calculator.Round2((currentPct - targetPct) / targetPct * 100)
		}
		rows[i] = model.DriftRow[K]{
			Key:               k,
			CurrentValue:      currentValue,
			TargetPercentage:  targetPct,
			CurrentPercentage: currentPct,
			DriftAmount:       currentValue - targetPct/100*portfolioValue,
			Percentage:        pct,
		}
	}

	buyFeasible := buyFeasible(target, current)
	sellFeasible := sellFeasible(target, current)

	sorted := slices.Clone(rows)
	slices.SortStableFunc(sorted, func(a, b model.DriftRow[K]) int {
		switch {
		case a.DriftAmount < b.DriftAmount:
			return -1
		case a.DriftAmount > b.DriftAmount:
			return 1
		}
		return 0
	})

	newValueBuy, newValueSell := portfolioValue, portfolioValue
	if len(sorted) > 0 {
		if buyFeasible {
			newValueBuy = impliedTotal(sorted[len(sorted)-1], portfolioValue)
		}
		newValueSell = impliedTotal(sorted[0], portfolioValue)
	}

	for i := range rows {
		r := &rows[i]
		if buyFeasible {
			v := calculator.Round2(newValueBuy*r.TargetPercentage/100 - r.CurrentValue)
			r.AmountToBuy = &v
		}
		if sellFeasible {
			v := calculator.Round2(r.CurrentValue - newValueSell*r.TargetPercentage/100)
			r.AmountToSell = &v
		}
	}
	return rows
}

// DriftByAssetClass runs DriftData over asset-class categories.
func DriftByAssetClass(target, current model.Weights[model.Category]) []model.DriftRow[model.Category] {
	return DriftData(target, current)
}

// DriftByCountry runs DriftData over countries.
func DriftByCountry(target, current model.Weights[model.Country]) []model.DriftRow[model.Country] {
	return DriftData(target, current)
}

// NewPlan wraps the drift rows with the portfolio-wide flags and the drift tolerance.
func NewPlan[K ~string](target, current model.Weights[K], maxDrift float64) model.DriftPlan[K] {
	rows := DriftData(target, current)
	plan := model.DriftPlan[K]{
		Rows:         rows,
		BuyFeasible:  buyFeasible(target, current),
		SellFeasible: sellFeasible(target, current),
		MaxDrift:     maxDrift,
	}
	for _, r := range rows {
		plan.MaxCurrentDrift = math.Max(plan.MaxCurrentDrift, math.Abs(r.Percentage))
	}
	for _, k := range current.Keys() {
		if !target.Has(k) {
			plan.BuyBlockers = append(plan.BuyBlockers, k)
		}
	}
	for _, k := range target.Keys() {
		if !current.Has(k) {
			plan.SellBlockers = append(plan.SellBlockers, k)
		}
	}
	return plan
}

// impliedTotal is the portfolio size at which the pivot row sits exactly on target.
func impliedTotal[K ~string](pivot model.DriftRow[K], fallback float64) float64 {
	return calculator.SafeDiv(pivot.CurrentValue, pivot.TargetPercentage, fallback/100) * 100
}

// buyFeasible reports whether every held key has a target weight.
func buyFeasible[K ~string](target, current model.Weights[K]) bool {
	for _, k := range current.Keys() {
		if !target.Has(k) {
			return false
		}
	}
	return true
}

// sellFeasible reports whether every target key is held.
func sellFeasible[K ~string](target, current model.Weights[K]) bool {
	for _, k := range target.Keys() {
		if !current.Has(k) {
			return false
		}
	}
	return true
}
