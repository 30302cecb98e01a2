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

// DefaultBorsaItalianaURL is the chart API host of Borsa Italiana.
const DefaultBorsaItalianaURL = "https://grafici.borsaitaliana.it"

// BorsaItalianaFetcher reads one year of adjusted closes listed on XMIL.
type BorsaItalianaFetcher struct {
	BaseURL string
	Token   string
	Client  *http.Client
	Now     func() time.Time
}

// NewBorsaItalianaFetcher creates a fetcher authenticated with a bearer token.
func NewBorsaItalianaFetcher(baseURL, token, proxyURL string) *BorsaItalianaFetcher {
	if baseURL == "" {
		baseURL = DefaultBorsaItalianaURL
	}
	return &BorsaItalianaFetcher{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		Client:  NewHTTPClient(proxyURL),
		Now:     time.Now,
	}
}

func (f *BorsaItalianaFetcher) Name() string { return string(model.SourceBorsaItaliana) }

type borsaItalianaResponse struct {
	History struct {
		HistoryDt []struct {
			Dt      string  `json:"dt"`
			ClosePx float64 `json:"closePx"`
		} `json:"historyDt"`
	} `json:"history"`
}

func (f *BorsaItalianaFetcher) FetchHistory(ctx context.Context, isin string) (*model.PriceHistory, error) {
	endpoint := fmt.Sprintf("%s/api/instruments/%s,XMIL,ISIN/history/period?period=1Y&adjustment=true&add-last-price=true",
		f.BaseURL, url.PathEscape(isin))

	header := http.Header{}
	if f.Token != "" {
		header.Set("Authorization", "Bearer "+f.Token)
	}

	var body borsaItalianaResponse
	if err := getJSON(ctx, f.Client, endpoint, header, &body); err != nil {
		return nil, fmt.Errorf("borsaitaliana %s: %w", isin, err)
	}

	series := make([]model.PricePoint, 0, len(body.History.HistoryDt))
	for _, item := range body.History.HistoryDt {
		d, err := ParseCompactDate(item.Dt)
		if err != nil {
			return nil, fmt.Errorf("borsaitaliana %s: %w", isin, err)
		}
		series = append(series, model.PricePoint{Date: d, Price: item.ClosePx})
	}
	if len(series) == 0 {
		return nil, noLastPrice(isin)
	}
	return model.NewPriceHistory(f.Now(), series), nil
}

// ParseCompactDate parses the YYYYMMDD dates of the Borsa Italiana API. A trailing
// time part such as "-00:00:00" is ignored.
func ParseCompactDate(dt string) (model.Date, error) {
	day, _, _ := strings.Cut(dt, "-")
	t, err := time.Parse("20060102", day)
	if err != nil {
		return model.Date{}, fmt.Errorf("invalid date %q", dt)
	}
	return model.DateOf(t), nil
}
