package cli

import (
	"fmt"
	"strings"

	"EtfSentinel/internal/cache"
	"EtfSentinel/internal/model"
	"EtfSentinel/internal/notifier"
	"EtfSentinel/internal/strategy"
)

// summaryMarkdown renders the headline figures, holdings and allocation of r.
func summaryMarkdown(r *model.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", r.PortfolioName)
	fmt.Fprintf(&b, "Report of **%s**", r.Date)
	if !r.Summary.PricesAsOf.IsZero() {
		fmt.Fprintf(&b, ", prices as of %s", r.Summary.PricesAsOf)
	}
	b.WriteString("\n\n")

	b.WriteString("| | |\n|:---|---:|\n")
	fmt.Fprintf(&b, "| Value | %s |\n", notifier.EUR(r.Summary.Value))
	fmt.Fprintf(&b, "| Cost | %s |\n", notifier.EUR(r.Summary.Cost))
	fmt.Fprintf(&b, "| Variation | %s |\n", notifier.Pct(r.Summary.Variation))
	fmt.Fprintf(&b, "| Equities | %s |\n", notifier.EUR(r.Summary.EquityValue))

	if len(r.Etfs) > 0 {
		b.WriteString("\n## Holdings\n\n")
		b.WriteString("| ISIN | Name | Category | Units | Paid | Value |\n")
		b.WriteString("|:---|:---|:---|---:|---:|---:|\n")
		for _, e := range r.Etfs {
			fmt.Fprintf(&b, "| %s | %s | %s | %g | %s | %s |\n",
				e.ISIN, cell(e.Name), cell(string(e.Category)), e.Quantity,
				notifier.EUR(e.PaidValue), notifier.EUR(e.CurrentValue))
		}
	}

	if r.AssetClassAllocation.Len() > 0 {
		b.WriteString("\n## Asset classes\n\n")
		writeAllocation(&b, r.AssetClassValues, r.AssetClassAllocation)
	}
	if r.CountryAllocation.Len() > 0 {
		b.WriteString("\n## Countries\n\n")
		writeAllocation(&b, r.CountryValues, r.CountryAllocation)
	}
	return b.String()
}

func writeAllocation[K ~string](b *strings.Builder, values, allocation model.Weights[K]) {
	b.WriteString("| | Value | Weight |\n|:---|---:|---:|\n")
	for k, pct := range allocation.All() {
		fmt.Fprintf(b, "| %s | %s | %.2f%% |\n", cell(string(k)), notifier.EUR(values.Get(k)), pct)
	}
}

// driftMarkdown renders the drift table of one dimension with the actions of s.
func driftMarkdown[K ~string](title string, plan model.DriftPlan[K], s strategy.Strategy) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s drift\n\n", title)
	fmt.Fprintf(&b, "Strategy **%s**, max drift %.2f%% (tolerance %.2f%%)", s, plan.MaxCurrentDrift, plan.MaxDrift)
	if plan.Breached() {
		b.WriteString(", **out of tolerance**")
	}
	b.WriteString("\n\n")

	if len(plan.Rows) == 0 {
		b.WriteString("Nothing to compare.\n")
		return b.String()
	}

	if !strategy.Feasible(plan, s) {
		var keys []string
		for _, k := range strategy.Blockers(plan, s) {
			keys = append(keys, string(k))
		}
		fmt.Fprintf(&b, "> The %s strategy cannot reach the target: %s\n\n", s, strings.Join(keys, ", "))
	}

	actions := strategy.Recommend(plan, s)
	b.WriteString("| | Value | Current | Target | Drift | Buy | Sell |\n")
	b.WriteString("|:---|---:|---:|---:|---:|---:|---:|\n")
	for i, row := range plan.Rows {
		a := actions[i]
		fmt.Fprintf(&b, "| %s | %s | %.2f%% | %.2f%% | %s | %s | %s |\n",
			cell(string(row.Key)), notifier.EUR(row.CurrentValue),
			row.CurrentPercentage, row.TargetPercentage, notifier.Pct(row.Percentage),
			amount(a.Buy), amount(a.Sell))
	}
	return b.String()
}

func amount(v float64) string {
	if v == 0 {
		return "-"
	}
	return notifier.EUR(v)
}

// cell escapes the characters that would break a Markdown table cell.
func cell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// pricesMarkdown lists the current price of every holding of p.
func pricesMarkdown(p *model.Portfolio, prices model.Prices) string {
	if p == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString("| ISIN | Name | Source | Price | As of |\n")
	b.WriteString("|:---|:---|:---|---:|:---|\n")
	for _, etf := range p.ETFs {
		price, asOf := "-", "never"
		if h, ok := prices[etf.ISIN]; ok {
			price = notifier.EUR(h.Price)
			asOf = h.AsOf.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n", etf.ISIN, cell(etf.Name), etf.DataSource, price, asOf)
	}
	return b.String()
}

// historyMarkdown lists drift snapshots as recorded, newest first.
func historyMarkdown(history []cache.DriftSnapshot) string {
	var b strings.Builder
	b.WriteString("# Drift history\n\n")
	if len(history) == 0 {
		b.WriteString("No drift check recorded yet.\n")
		return b.String()
	}
	b.WriteString("| Date | Value | Cost | Asset classes | Countries | Tolerance | |\n")
	b.WriteString("|:---|---:|---:|---:|---:|---:|:---|\n")
	for _, s := range history {
		status := ""
		if s.Breached {
			status = "**out of tolerance**"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %.2f%% | %.2f%% | %.2f%% | %s |\n",
			s.Date, notifier.EUR(s.Value), notifier.EUR(s.Cost),
			s.AssetClassMaxDrift, s.CountryMaxDrift, s.MaxDrift, status)
	}
	return b.String()
}
