package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"EtfSentinel/internal/importer"
	"EtfSentinel/internal/notifier"
	"EtfSentinel/internal/strategy"
	"EtfSentinel/internal/tracker"
)

// importCmd replaces the cached portfolio with a YAML document.
type importCmd struct{}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "import a portfolio YAML document into the cache" }
func (*importCmd) Usage() string {
	return `etfctl import <file>

  Parses the portfolio document and makes it the current portfolio.
`
}

func (*importCmd) SetFlags(*flag.FlagSet) {}

func (c *importCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: import expects exactly one file")
		return subcommands.ExitUsageError
	}
	file, err := os.Open(f.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening %q: %v\n", f.Arg(0), err)
		return subcommands.ExitFailure
	}
	defer file.Close()

	p, err := importer.Parse(file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing %q: %v\n", f.Arg(0), err)
		return subcommands.ExitFailure
	}

	return withSession(ctx, func(s *session) error {
		if err := s.tracker.SetPortfolio(p); err != nil {
			return err
		}
		printMarkdown(fmt.Sprintf("Imported **%s** with %d ETFs.\n", p.Name, len(p.ETFs)))
		return nil
	})
}

// summaryCmd prints the report of the current portfolio.
type summaryCmd struct {
	date string
}

func (*summaryCmd) Name() string     { return "summary" }
func (*summaryCmd) Synopsis() string { return "display the portfolio value, holdings and allocation" }
func (*summaryCmd) Usage() string {
	return `etfctl summary [-d <date>]

  Displays the value, cost and allocation of the current portfolio using cached prices.
`
}

func (c *summaryCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "d", "", "Date of the report (YYYY-MM-DD). Defaults to today.")
}

func (c *summaryCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	on, err := parseDate(c.date)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing date: %v\n", err)
		return subcommands.ExitUsageError
	}
	return withSession(ctx, func(s *session) error {
		r, err := s.tracker.Report(on)
		if err != nil {
			return err
		}
		printMarkdown(summaryMarkdown(r))
		return nil
	})
}

// driftCmd prints the drift table of one dimension.
type driftCmd struct {
	date      string
	dimension string
	strategy  string
}

func (*driftCmd) Name() string     { return "drift" }
func (*driftCmd) Synopsis() string { return "compare the allocation with its targets" }
func (*driftCmd) Usage() string {
	return `etfctl drift [-d <date>] [-dimension asset-class|country] [-strategy buy-and-sell|buy|sell]

  Displays the drift of each asset class or country and what to buy or sell to compensate it.
`
}

func (c *driftCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "d", "", "Date of the report (YYYY-MM-DD). Defaults to today.")
	f.StringVar(&c.dimension, "dimension", "asset-class", "Dimension to compare: asset-class or country")
	f.StringVar(&c.strategy, "strategy", string(strategy.BuyAndSell), "Rebalancing strategy: buy-and-sell, buy or sell")
}

func (c *driftCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	on, err := parseDate(c.date)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing date: %v\n", err)
		return subcommands.ExitUsageError
	}
	strat, err := strategy.ParseStrategy(c.strategy)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	if c.dimension != "asset-class" && c.dimension != "country" {
		fmt.Fprintf(os.Stderr, "Error: unknown dimension %q\n", c.dimension)
		return subcommands.ExitUsageError
	}

	return withSession(ctx, func(s *session) error {
		r, err := s.tracker.Report(on)
		if err != nil {
			return err
		}
		if c.dimension == "country" {
			printMarkdown(driftMarkdown("Country", r.CountryDrift, strat))
		} else {
			printMarkdown(driftMarkdown("Asset class", r.AssetClassDrift, strat))
		}
		return nil
	})
}

// refreshCmd downloads the prices of every holding.
type refreshCmd struct {
	force bool
}

func (*refreshCmd) Name() string     { return "refresh" }
func (*refreshCmd) Synopsis() string { return "update the cached prices of every holding" }
func (*refreshCmd) Usage() string {
	return `etfctl refresh [-force]

  Downloads the price history of every ETF whose cached price is older than the configured max age.
`
}

func (c *refreshCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.force, "force", false, "Download every price, even fresh ones")
}

func (c *refreshCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withSession(ctx, func(s *session) error {
		err := s.tracker.RefreshPrices(ctx, c.force)
		if errors.Is(err, tracker.ErrNoPortfolio) {
			return err
		}
		printMarkdown(pricesMarkdown(s.tracker.Portfolio(), s.tracker.Prices()))
		return err
	})
}

// adjustCmd records a manual change of quantity.
type adjustCmd struct {
	isin     string
	quantity float64
	date     string
}

func (*adjustCmd) Name() string     { return "adjust" }
func (*adjustCmd) Synopsis() string { return "add or remove units of an ETF" }
func (*adjustCmd) Usage() string {
	return `etfctl adjust -isin <isin> -q <quantity> [-d <date>]

  Records a transaction of quantity units priced at the current price. Use a negative quantity to remove units.
`
}

func (c *adjustCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.isin, "isin", "", "ISIN of the ETF to adjust")
	f.Float64Var(&c.quantity, "q", 0, "Units to add, negative to remove")
	f.StringVar(&c.date, "d", "", "Date of the transaction (YYYY-MM-DD). Defaults to today.")
}

func (c *adjustCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.isin == "" || c.quantity == 0 {
		fmt.Fprintln(os.Stderr, "Error: -isin and a non-zero -q are required")
		return subcommands.ExitUsageError
	}
	on, err := parseDate(c.date)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing date: %v\n", err)
		return subcommands.ExitUsageError
	}
	return withSession(ctx, func(s *session) error {
		tx, err := s.tracker.AdjustQuantity(c.isin, c.quantity, on)
		if err != nil {
			return err
		}
		printMarkdown(fmt.Sprintf("Recorded **%+g** units of %s on %s at %s.\n",
			tx.Quantity, c.isin, tx.Date, notifier.EUR(tx.Price)))
		return nil
	})
}

// historyCmd lists the recorded drift checks.
type historyCmd struct {
	limit int
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "list the recorded drift checks of the portfolio" }
func (*historyCmd) Usage() string {
	return `etfctl history [-n <count>]

  Displays the value and maximum drift recorded by the scheduled drift checks, newest first.
`
}

func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.limit, "n", 30, "Number of checks to list, 0 for all")
}

func (c *historyCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.limit < 0 {
		fmt.Fprintln(os.Stderr, "Error: -n must not be negative")
		return subcommands.ExitUsageError
	}
	return withSession(ctx, func(s *session) error {
		history, err := s.tracker.DriftHistory(c.limit)
		if err != nil {
			return err
		}
		printMarkdown(historyMarkdown(history))
		return nil
	})
}

// exportCmd writes the current portfolio back as a YAML document.
type exportCmd struct {
	output string
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "write the current portfolio as a YAML document" }
func (*exportCmd) Usage() string {
	return `etfctl export [-o <file>]

  Writes the current portfolio, adjustments included, in the import format.
`
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.output, "o", "", "File to write. Defaults to standard output.")
}

func (c *exportCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withSession(ctx, func(s *session) error {
		data, err := s.tracker.Export()
		if err != nil {
			return err
		}
		if c.output == "" {
			_, err = stdout.Write(data)
			return err
		}
		return os.WriteFile(c.output, data, 0o644)
	})
}

// removeCmd deletes the current portfolio from the cache.
type removeCmd struct{}

func (*removeCmd) Name() string     { return "remove" }
func (*removeCmd) Synopsis() string { return "delete the current portfolio from the cache" }
func (*removeCmd) Usage() string {
	return `etfctl remove

  Deletes the current portfolio. Cached prices are kept.
`
}

func (*removeCmd) SetFlags(*flag.FlagSet) {}

func (c *removeCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withSession(ctx, func(s *session) error {
		name := ""
		if p := s.tracker.Portfolio(); p != nil {
			name = p.Name
		}
		if err := s.tracker.RemovePortfolio(); err != nil {
			return err
		}
		printMarkdown(fmt.Sprintf("Removed **%s**.\n", name))
		return nil
	})
}
