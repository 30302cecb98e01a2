package strategy

import (
	"fmt"
	"math"
	"strings"

	"EtfSentinel/internal/model"
)

// Strategy selects which side of the drift table is acted upon.
type Strategy string

const (
	BuyAndSell Strategy = "buy-and-sell"
	BuyOnly    Strategy = "buy"
	SellOnly   Strategy = "sell"
)

// ParseStrategy accepts the strategy names plus a few spellings used on the command line.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "buy-and-sell", "buyandsell", "both":
		return BuyAndSell, nil
	case "buy":
		return BuyOnly, nil
	case "sell":
		return SellOnly, nil
	}
	return "", fmt.Errorf("unknown strategy %q", s)
}

// Action is the non-negative amount to buy or sell for one key. Zero means no action.
type Action[K ~string] struct {
	Key  K       `json:"key"`
	Buy  float64 `json:"buy"`
	Sell float64 `json:"sell"`
}

// Feasible reports whether s can reach the target allocation of plan.
func Feasible[K ~string](plan model.DriftPlan[K], s Strategy) bool {
	switch s {
	case BuyOnly:
		return plan.BuyFeasible
	case SellOnly:
		return plan.SellFeasible
	}
	return true
}

// Blockers returns the keys that prevent s from reaching the target allocation.
func Blockers[K ~string](plan model.DriftPlan[K], s Strategy) []K {
	switch s {
	case BuyOnly:
		return plan.BuyBlockers
	case SellOnly:
		return plan.SellBlockers
	}
	return nil
}

// Recommend turns the signed drift table into what to buy and sell under s.
// Buying only applies to keys at or below target. With buy-and-sell, or when the
// buy-only amount is unavailable, the drift itself is bought back. The sell side of
// buy-and-sell only covers overweight keys.
func Recommend[K ~string](plan model.DriftPlan[K], s Strategy) []Action[K] {
	actions := make([]Action[K], len(plan.Rows))
	for i, r := range plan.Rows {
		a := Action[K]{Key: r.Key}
		if r.DriftAmount <= 0 {
			switch {
			case s == BuyAndSell, s == BuyOnly && r.AmountToBuy == nil:
				a.Buy = math.Abs(r.DriftAmount)
			case s == BuyOnly:
				a.Buy = math.Abs(*r.AmountToBuy)
			}
		}
		switch {
		case s == BuyAndSell && r.DriftAmount > 0:
			a.Sell = math.Abs(r.DriftAmount)
		case s == SellOnly && r.AmountToSell != nil:
			a.Sell = math.Abs(*r.AmountToSell)
		}
		actions[i] = a
	}
	return actions
}
