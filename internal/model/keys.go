package model

import (
	"fmt"
	"strings"
	"unicode"
)

// Category identifies an asset-class category (stocks, bonds, gold, ...).
type Category string

// Country identifies a geographic exposure bucket.
type Country string

// CategoryStocks is the equity sleeve; country breakdowns only apply to it.
const CategoryStocks Category = "stocks"

var stockSynonyms = []string{"stocks", "stock", "equity", "equities"}

// ParseCategory validates a category key. Equity synonyms collapse to CategoryStocks
// regardless of case, other keys are kept verbatim after trimming.
func ParseCategory(s string) (Category, error) {
	s, err := cleanKey("category", s)
	if err != nil {
		return "", err
	}
	for _, syn := range stockSynonyms {
		if strings.EqualFold(s, syn) {
			return CategoryStocks, nil
		}
	}
	return Category(s), nil
}

// ParseCountry validates a country key.
func ParseCountry(s string) (Country, error) {
	s, err := cleanKey("country", s)
	if err != nil {
		return "", err
	}
	return Country(s), nil
}

func cleanKey(kind, s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("empty %s", kind)
	}
	if strings.IndexFunc(s, unicode.IsControl) >= 0 {
		return "", fmt.Errorf("invalid %s %q", kind, s)
	}
	return s, nil
}

// DataSource tags the upstream provider used to price an instrument.
type DataSource string

const (
	SourceBorsaItaliana DataSource = "borsaitaliana"
	SourceJustETF       DataSource = "justetf"
)

// DefaultDataSource is used when a document does not name one.
const DefaultDataSource = SourceBorsaItaliana

// ParseDataSource maps an optional document value to a DataSource.
func ParseDataSource(s string) (DataSource, error) {
	switch DataSource(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return DefaultDataSource, nil
	case SourceBorsaItaliana:
		return SourceBorsaItaliana, nil
	case SourceJustETF:
		return SourceJustETF, nil
	}
	return "", fmt.Errorf("unknown data source %q", s)
}
