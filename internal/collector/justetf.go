package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"EtfSentinel/internal/model"
)

// DefaultJustETFURL is the public justETF host.
const DefaultJustETFURL = "https://www.justetf.com"

// JustETFFetcher reads the EUR market value chart of the last year.
type JustETFFetcher struct {
	BaseURL string
	Client  *http.Client
	Now     func() time.Time
}

// NewJustETFFetcher creates a new fetcher with optional proxy support.
func NewJustETFFetcher(baseURL, proxyURL string) *JustETFFetcher {
	if baseURL == "" {
		baseURL = DefaultJustETFURL
	}
	return &JustETFFetcher{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  NewHTTPClient(proxyURL),
		Now:     time.Now,
	}
}

func (f *JustETFFetcher) Name() string { return string(model.SourceJustETF) }

type justETFResponse struct {
	Series []struct {
		Date  string `json:"date"`
		Value struct {
			Raw float64 `json:"raw"`
		} `json:"value"`
	} `json:"series"`
}

func (f *JustETFFetcher) FetchHistory(ctx context.Context, isin string) (*model.PriceHistory, error) {
	now := f.Now()
	q := url.Values{}
	q.Set("locale", "it")
	q.Set("currency", "EUR")
	q.Set("valuesType", "MARKET_VALUE")
	q.Set("reduceData", "false")
	q.Set("includeDividends", "true")
	q.Set("features", "DIVIDENDS")
	q.Set("dateFrom", now.AddDate(-1, 0, 0).UTC().Format(model.DateFormat))
	q.Set("dateTo", now.UTC().Format(model.DateFormat))
	endpoint := fmt.Sprintf("%s/api/etfs/%s/performance-chart?%s", f.BaseURL, url.PathEscape(isin), q.Encode())

	var body justETFResponse
	if err := getJSON(ctx, f.Client, endpoint, nil, &body); err != nil {
		return nil, fmt.Errorf("justetf %s: %w", isin, err)
	}

	series := make([]model.PricePoint, 0, len(body.Series))
	for _, item := range body.Series {
		d, err := model.ParseDate(item.Date)
		if err != nil {
			return nil, fmt.Errorf("justetf %s: %w", isin, err)
		}
		series = append(series, model.PricePoint{Date: d, Price: item.Value.Raw})
	}
	if len(series) == 0 {
		return nil, noLastPrice(isin)
	}
	return model.NewPriceHistory(now, series), nil
}
