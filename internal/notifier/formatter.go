package notifier

import (
	"fmt"
	"html"
	"math"
	"strings"

	"github.com/Rhymond/go-money"

	"EtfSentinel/internal/model"
	"EtfSentinel/internal/strategy"
)

// EUR formats an amount in euro, rounded to the cent: €1,234.56.
func EUR(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	return money.New(int64(math.Round(v*100)), money.EUR).Display()
}

// Pct formats a signed percentage with two decimals.
func Pct(v float64) string { return fmt.Sprintf("%+.2f%%", v) }

// FormatSummary formats the headline figures and holdings of a report.
func FormatSummary(r *model.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "📊 <b>%s</b> | %s\n\n", html.EscapeString(r.PortfolioName), r.Date)
	fmt.Fprintf(&b, "Value: %s\n", EUR(r.Summary.Value))
	fmt.Fprintf(&b, "Cost: %s\n", EUR(r.Summary.Cost))
	fmt.Fprintf(&b, "Variation: %s\n", Pct(r.Summary.Variation))
	if !r.Summary.PricesAsOf.IsZero() {
		fmt.Fprintf(&b, "Prices as of %s\n", r.Summary.PricesAsOf)
	}

	if len(r.Etfs) > 0 {
		b.WriteString("\n💼 <b>Holdings:</b>\n")
		for _, e := range r.Etfs {
			fmt.Fprintf(&b, "  %s: %g units, %s (paid %s)\n",
				html.EscapeString(e.Name), e.Quantity, EUR(e.CurrentValue), EUR(e.PaidValue))
		}
	}

	if r.AssetClassAllocation.Len() > 0 {
		b.WriteString("\n🥧 <b>Allocation:</b>\n")
		for k, v := range r.AssetClassAllocation.All() {
			fmt.Fprintf(&b, "  %s: %.2f%% (target %.2f%%)\n",
				html.EscapeString(string(k)), v, targetOf(r.AssetClassDrift, k))
		}
	}
	return b.String()
}

func targetOf[K ~string](plan model.DriftPlan[K], key K) float64 {
	for _, row := range plan.Rows {
		if row.Key == key {
			return row.TargetPercentage
		}
	}
	return 0
}

// FormatDriftReport formats a drift table with the actions of strategy s.
func FormatDriftReport[K ~string](title string, plan model.DriftPlan[K], s strategy.Strategy) string {
	var b strings.Builder

	fmt.Fprintf(&b, "⚖️ <b>%s</b> | %s\n", html.EscapeString(title), s)
	fmt.Fprintf(&b, "Max drift: %.2f%% (tolerance %.2f%%)\n\n", plan.MaxCurrentDrift, plan.MaxDrift)

	if len(plan.Rows) == 0 {
		b.WriteString("Nothing to compare.\n")
		return b.String()
	}

	actions := strategy.Recommend(plan, s)
	for i, row := range plan.Rows {
		marker := "✅"
		if math.Abs(row.Percentage) > plan.MaxDrift {
			marker = "⚠️"
		}
		fmt.Fprintf(&b, "%s %s: %.2f%% / %.2f%% (%s)\n", marker,
			html.EscapeString(string(row.Key)), row.CurrentPercentage, row.TargetPercentage, Pct(row.Percentage))
		switch a := actions[i]; {
		case a.Buy > 0:
			fmt.Fprintf(&b, "    buy %s\n", EUR(a.Buy))
		case a.Sell > 0:
			fmt.Fprintf(&b, "    sell %s\n", EUR(a.Sell))
		}
	}

	if !strategy.Feasible(plan, s) {
		keys := make([]string, 0, len(strategy.Blockers(plan, s)))
		for _, k := range strategy.Blockers(plan, s) {
			keys = append(keys, html.EscapeString(string(k)))
		}
		fmt.Fprintf(&b, "\n🚫 The %s strategy cannot reach the target: %s\n", s, strings.Join(keys, ", "))
	}
	return b.String()
}

// FormatDriftAlert formats the message sent when a drift check finds a breach.
func FormatDriftAlert(r *model.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "🚨 <b>Drift alert</b> | %s\n\n", html.EscapeString(r.PortfolioName))
	writeBreaches(&b, "Asset classes", r.AssetClassDrift)
	writeBreaches(&b, "Countries", r.CountryDrift)
	fmt.Fprintf(&b, "\nPortfolio value: %s\nSend /drift for the rebalancing plan.", EUR(r.Summary.Value))
	return b.String()
}

func writeBreaches[K ~string](b *strings.Builder, title string, plan model.DriftPlan[K]) {
	if !plan.Breached() {
		return
	}
	fmt.Fprintf(b, "<b>%s</b> (tolerance %.2f%%):\n", title, plan.MaxDrift)
	for _, row := range plan.Rows {
		if math.Abs(row.Percentage) > plan.MaxDrift {
			fmt.Fprintf(b, "  %s: %s\n", html.EscapeString(string(row.Key)), Pct(row.Percentage))
		}
	}
}

// FormatHelp lists the bot commands.
func FormatHelp() string {
	return "Commands:\n" +
		"/summary - portfolio value and allocation\n" +
		"/drift [buy|sell] - asset class rebalancing plan\n" +
		"/drift_country [buy|sell] - country rebalancing plan\n" +
		"/refresh - fetch fresh prices"
}
