package importer

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EtfSentinel/internal/calculator"
	"EtfSentinel/internal/model"
)

const simplePortfolio = `
name: "My Simple Portfolio"

targetAssetClassAllocation:
  Stocks: 70
  Bonds: 30

targetCountryAllocation:
  US: 50
  others: 50

maxDrift: 10

etfs:
  IE00B4L5Y983:
    name: "iShares Core MSCI World UCITS"
    assetClass:
      name: "US Total Market"
      category: "Stocks"
    countries:
      US: 68.96
      others: 31.04
    transactions:
      - date: "2024-06-15"
        quantity: 5
        price: 235.20
      - date: "2024-01-15"
        quantity: 10
        price: 220.50
    sip:
      quantity: 1
      frequency: 12
      startDate: "2026-01-16"

  LU0478205379:
    name: "Xtrackers II EUR Corporate Bond UCITS ETF 1C"
    dataSource: justetf
    assetClass:
      name: "US Aggregate Bonds"
      category: "Bonds"
    transactions:
      - date: 2024-01-15
        quantity: 20
        price: 72.30
`

func TestParse(t *testing.T) {
	p, err := Parse(strings.NewReader(simplePortfolio))
	require.NoError(t, err)

	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "My Simple Portfolio", p.Name)
	assert.Equal(t, 10.0, p.MaxDrift)
	assert.Equal(t, []model.Category{model.CategoryStocks, "Bonds"}, p.TargetAssetClassAllocation.Keys())
	assert.Equal(t, 70.0, p.TargetAssetClassAllocation.Get(model.CategoryStocks))
	assert.Equal(t, []model.Country{"US", "others"}, p.TargetCountryAllocation.Keys())

	require.Len(t, p.ETFs, 2)
	world := p.ETFs[0]
	assert.Equal(t, "IE00B4L5Y983", world.ISIN)
	assert.Equal(t, model.SourceBorsaItaliana, world.DataSource)
	assert.Equal(t, model.AssetClass{Name: "US Total Market", Category: model.CategoryStocks}, world.AssetClass)
	assert.Equal(t, 68.96, world.Countries.Get("US"))
	assert.Equal(t, []model.Transaction{
		{Date: model.MustParseDate("2024-01-15"), Quantity: 10, Price: 220.5},
		{Date: model.MustParseDate("2024-06-15"), Quantity: 5, Price: 235.2},
	}, world.Transactions, "transactions are sorted by date")
	assert.Equal(t, &model.RecurringPlan{Quantity: 1, Frequency: 12, StartDate: model.MustParseDate("2026-01-16")}, world.Plan)

	bonds := p.ETFs[1]
	assert.Equal(t, model.SourceJustETF, bonds.DataSource)
	assert.Equal(t, 0, bonds.Countries.Len())
	assert.Nil(t, bonds.Plan)
}

func TestParse_AssignsFreshIDs(t *testing.T) {
	a, err := ParseBytes([]byte(simplePortfolio))
	require.NoError(t, err)
	b, err := ParseBytes([]byte(simplePortfolio))
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestParse_Defaults(t *testing.T) {
	p, err := ParseBytes([]byte(`
name: minimal
targetAssetClassAllocation: {stocks: 100}
targetCountryAllocation: {}
maxDrift: 5
etfs:
  IE00B4L5Y983:
    name: World
    assetClass: {name: World, category: equity}
`))
	require.NoError(t, err)
	require.Len(t, p.ETFs, 1)
	etf := p.ETFs[0]
	assert.NotNil(t, etf.Transactions)
	assert.Empty(t, etf.Transactions)
	assert.Equal(t, 0, etf.Countries.Len())
	assert.Equal(t, model.DefaultDataSource, etf.DataSource)
	assert.True(t, etf.IsEquity())
}

func TestParse_EmptyDocument(t *testing.T) {
	for _, in := range []string{"", "   \n\t\n"} {
		_, err := ParseBytes([]byte(in))
		assert.ErrorIs(t, err, ErrEmptyDocument)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		field string
	}{
		{"missing name", `
targetAssetClassAllocation: {stocks: 100}
targetCountryAllocation: {}
maxDrift: 5
etfs: {}
`, "name"},
		{"missing country targets", `
name: x
targetAssetClassAllocation: {stocks: 100}
maxDrift: 5
etfs: {}
`, "targetCountryAllocation"},
		{"missing etfs", `
name: x
targetAssetClassAllocation: {stocks: 100}
targetCountryAllocation: {}
maxDrift: 5
`, "etfs"},
		{"bad frequency", `
name: x
targetAssetClassAllocation: {stocks: 100}
targetCountryAllocation: {}
maxDrift: 5
etfs:
  IE00B4L5Y983:
    name: World
    assetClass: {name: World, category: stocks}
    sip: {quantity: 1, frequency: 5, startDate: 2024-01-01}
`, "etfs.IE00B4L5Y983.sip.frequency"},
		{"bad date", `
name: x
targetAssetClassAllocation: {stocks: 100}
targetCountryAllocation: {}
maxDrift: 5
etfs:
  IE00B4L5Y983:
    name: World
    assetClass: {name: World, category: stocks}
    transactions:
      - {date: 15/01/2024, quantity: 1, price: 2}
`, "etfs.IE00B4L5Y983.transactions[0].date"},
		{"missing price", `
name: x
targetAssetClassAllocation: {stocks: 100}
targetCountryAllocation: {}
maxDrift: 5
etfs:
  IE00B4L5Y983:
    name: World
    assetClass: {name: World, category: stocks}
    transactions:
      - {date: 2024-01-15, quantity: 1}
`, "etfs.IE00B4L5Y983.transactions[0].price"},
		{"unknown data source", `
name: x
targetAssetClassAllocation: {stocks: 100}
targetCountryAllocation: {}
maxDrift: 5
etfs:
  IE00B4L5Y983:
    name: World
    dataSource: yahoo
    assetClass: {name: World, category: stocks}
`, "etfs.IE00B4L5Y983.dataSource"},
		{"missing asset class", `
name: x
targetAssetClassAllocation: {stocks: 100}
targetCountryAllocation: {}
maxDrift: 5
etfs:
  IE00B4L5Y983:
    name: World
`, "etfs.IE00B4L5Y983.assetClass"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBytes([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, fields(err), tt.field)
		})
	}
}

func TestParse_NonFinite(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		field string
	}{
		{"infinite target", `
name: x
targetAssetClassAllocation: {stocks: .inf}
targetCountryAllocation: {}
maxDrift: 5
etfs: {}
`, "targetAssetClassAllocation.stocks"},
		{"nan country target", `
name: x
targetAssetClassAllocation: {stocks: 100}
targetCountryAllocation: {US: .nan}
maxDrift: 5
etfs: {}
`, "targetCountryAllocation.US"},
		{"infinite max drift", `
name: x
targetAssetClassAllocation: {stocks: 100}
targetCountryAllocation: {}
maxDrift: -.inf
etfs: {}
`, "maxDrift"},
		{"infinite country weight", `
name: x
targetAssetClassAllocation: {stocks: 100}
targetCountryAllocation: {}
maxDrift: 5
etfs:
  IE00B4L5Y983:
    name: World
    assetClass: {name: World, category: stocks}
    countries: {US: .inf}
`, "etfs.IE00B4L5Y983.countries.US"},
		{"nan price", `
name: x
targetAssetClassAllocation: {stocks: 100}
targetCountryAllocation: {}
maxDrift: 5
etfs:
  IE00B4L5Y983:
    name: World
    assetClass: {name: World, category: stocks}
    transactions:
      - {date: 2024-01-15, quantity: 1, price: .nan}
`, "etfs.IE00B4L5Y983.transactions[0].price"},
		{"infinite quantity", `
name: x
targetAssetClassAllocation: {stocks: 100}
targetCountryAllocation: {}
maxDrift: 5
etfs:
  IE00B4L5Y983:
    name: World
    assetClass: {name: World, category: stocks}
    transactions:
      - {date: 2024-01-15, quantity: .inf, price: 2}
`, "etfs.IE00B4L5Y983.transactions[0].quantity"},
		{"infinite plan quantity", `
name: x
targetAssetClassAllocation: {stocks: 100}
targetCountryAllocation: {}
maxDrift: 5
etfs:
  IE00B4L5Y983:
    name: World
    assetClass: {name: World, category: stocks}
    sip: {quantity: .inf, frequency: 12, startDate: 2024-01-01}
`, "etfs.IE00B4L5Y983.sip.quantity"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBytes([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, fields(err), tt.field)
		})
	}
}

func TestParse_FrequencyHint(t *testing.T) {
	_, err := ParseBytes([]byte(`
name: x
targetAssetClassAllocation: {stocks: 100}
targetCountryAllocation: {}
maxDrift: 5
etfs:
  IE00B4L5Y983:
    name: World
    assetClass: {name: World, category: stocks}
    sip: {quantity: 1, frequency: 5, startDate: 2024-01-01}
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "4 quarterly")
}

func TestParse_Malformed(t *testing.T) {
	_, err := ParseBytes([]byte("name: [unterminated\n"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrEmptyDocument)
}

func TestParse_RoundTripThroughValuation(t *testing.T) {
	p, err := ParseBytes([]byte(`
name: single
targetAssetClassAllocation: {stocks: 100}
targetCountryAllocation: {US: 100}
maxDrift: 5
etfs:
  IE00B4L5Y983:
    name: World
    assetClass: {name: World, category: stocks}
    transactions:
      - {date: 2024-01-15, quantity: 12, price: 80.5}
`))
	require.NoError(t, err)

	on := model.MustParseDate("2024-01-15")
	prices := model.Prices{"IE00B4L5Y983": {Price: 91.25}}
	rows := calculator.CurrentEtfData(p.ETFs, prices, on)
	require.Len(t, rows, 1)
	assert.Equal(t, 12*80.5, rows[0].PaidValue)
	assert.Equal(t, 12*91.25, rows[0].CurrentValue)
}

func TestMarshal_RoundTrip(t *testing.T) {
	p, err := ParseBytes([]byte(simplePortfolio))
	require.NoError(t, err)

	data, err := Marshal(p)
	require.NoError(t, err)

	back, err := ParseBytes(data)
	require.NoError(t, err)
	back.ID = p.ID
	assert.Equal(t, p, back)
}

func fields(err error) []string {
	var out []string
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		for _, e := range joined.Unwrap() {
			var ve *ValidationError
			if errors.As(e, &ve) {
				out = append(out, ve.Field)
			}
		}
	}
	return out
}
