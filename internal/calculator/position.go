package calculator

import "EtfSentinel/internal/model"

// QuantityAtDate returns the units held on the given date: every explicit transaction
// dated on or before it, plus the purchases of the recurring plan elapsed so far.
// Transactions may come in any order.
func QuantityAtDate(transactions []model.Transaction, on model.Date, plan *model.RecurringPlan) float64 {
	qty := 0.0
	for _, tx := range transactions {
		if !tx.Date.After(on) {
			qty += tx.Quantity
		}
	}
	if n := RecurringOccurrences(plan, on); n > 0 {
		qty += float64(n) * plan.Quantity
	}
	return qty
}

// RecurringOccurrences counts the purchases of plan dated on or before on.
// The start date is the first purchase.
func RecurringOccurrences(plan *model.RecurringPlan, on model.Date) int {
	if plan == nil || plan.StartDate.IsZero() || plan.StartDate.After(on) {
		return 0
	}
	period := plan.Period()
	if period < 1 {
		return 0
	}
	return on.MonthsSince(plan.StartDate)/period + 1
}

// RecurringDates lists the purchase dates of plan up to on. Each date is derived
// from the start date so month-end clamping never accumulates.
func RecurringDates(plan *model.RecurringPlan, on model.Date) []model.Date {
	n := RecurringOccurrences(plan, on)
	if n == 0 {
		return nil
	}
	dates := make([]model.Date, n)
	for i := range dates {
		dates[i] = plan.StartDate.AddMonths(i * plan.Period())
	}
	return dates
}
