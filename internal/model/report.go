package model

// EtfRow is the per-holding snapshot shown in the holdings table.
type EtfRow struct {
	ISIN         string   `json:"isin"`
	Name         string   `json:"name"`
	Category     Category `json:"category"`
	Quantity     float64  `json:"quantity"`
	PaidValue    float64  `json:"paidValue"`
	CurrentValue float64  `json:"currentValue"`
}

// Summary holds the headline figures of a portfolio.
type Summary struct {
	Value       float64 `json:"value"`
	Cost        float64 `json:"cost"`
	Variation   float64 `json:"variation"`
	EquityValue float64 `json:"equityValue"`
	PricesAsOf  Date    `json:"pricesAsOf"`
}

// Report is everything derived from a portfolio and its prices on a given date.
type Report struct {
	PortfolioID          string              `json:"portfolioId"`
	PortfolioName        string              `json:"portfolioName"`
	Date                 Date                `json:"date"`
	Summary              Summary             `json:"summary"`
	Etfs                 []EtfRow            `json:"etfs"`
	AssetClassValues     Weights[Category]   `json:"assetClassValues"`
	AssetClassAllocation Weights[Category]   `json:"assetClassAllocation"`
	CountryValues        Weights[Country]    `json:"countryValues"`
	CountryAllocation    Weights[Country]    `json:"countryAllocation"`
	AssetClassDrift      DriftPlan[Category] `json:"assetClassDrift"`
	CountryDrift         DriftPlan[Country]  `json:"countryDrift"`
	AssetClassColors     map[Category]string `json:"assetClassColors"`
	CountryColors        map[Country]string  `json:"countryColors"`
}
