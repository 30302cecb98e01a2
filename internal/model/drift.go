package model

// DriftRow compares the current and target weight of one key.
// A nil amount means the strategy cannot reach the target allocation.
type DriftRow[K ~string] struct {
	Key               K        `json:"key"`
	CurrentValue      float64  `json:"currentValue"`
	TargetPercentage  float64  `json:"targetPercentage"`
	CurrentPercentage float64  `json:"currentPercentage"`
	DriftAmount       float64  `json:"driftAmount"`
	Percentage        float64  `json:"percentage"`
	AmountToBuy       *float64 `json:"amountToBuyToCompensate"`
	AmountToSell      *float64 `json:"amountToSellToCompensate"`
}

// DriftPlan is the drift table of one dimension plus its portfolio-wide flags.
type DriftPlan[K ~string] struct {
	Rows            []DriftRow[K] `json:"rows"`
	BuyFeasible     bool          `json:"buyFeasible"`
	SellFeasible    bool          `json:"sellFeasible"`
	MaxDrift        float64       `json:"maxDrift"`
	MaxCurrentDrift float64       `json:"maxCurrentDrift"`
	// BuyBlockers are held keys without a target weight.
	BuyBlockers []K `json:"buyBlockers,omitempty"`
	// SellBlockers are target keys without holdings.
	SellBlockers []K `json:"sellBlockers,omitempty"`
}

// Breached reports whether any row drifts further than the tolerated maximum.
func (p DriftPlan[K]) Breached() bool { return p.MaxCurrentDrift > p.MaxDrift }
