// Package importer reads and writes portfolio documents in YAML.
package importer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"EtfSentinel/internal/model"
)

// ErrEmptyDocument is returned for an empty or blank document.
var ErrEmptyDocument = errors.New("the file is empty")

// ValidationError reports a missing or invalid field of the document.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string { return e.Field + ": " + e.Msg }

type document struct {
	Name                       string                 `yaml:"name"`
	TargetAssetClassAllocation *model.Weights[string] `yaml:"targetAssetClassAllocation"`
	TargetCountryAllocation    *model.Weights[string] `yaml:"targetCountryAllocation"`
	MaxDrift                   *float64               `yaml:"maxDrift"`
	ETFs                       yaml.Node              `yaml:"etfs"`
}

type etfDocument struct {
	DataSource   string                 `yaml:"dataSource,omitempty"`
	Name         string                 `yaml:"name"`
	AssetClass   *assetClassDocument    `yaml:"assetClass"`
	Countries    model.Weights[string]  `yaml:"countries,omitempty"`
	Transactions []transactionDocument  `yaml:"transactions,omitempty"`
	SIP          *recurringPlanDocument `yaml:"sip,omitempty"`
}

type assetClassDocument struct {
	Name     string `yaml:"name"`
	Category string `yaml:"category"`
}

type transactionDocument struct {
	Date     string   `yaml:"date"`
	Quantity *float64 `yaml:"quantity"`
	Price    *float64 `yaml:"price"`
}

type recurringPlanDocument struct {
	Quantity  *float64 `yaml:"quantity"`
	Frequency *int     `yaml:"frequency"`
	StartDate string   `yaml:"startDate"`
}

// Parse reads a portfolio document. Optional fields are defaulted: no transactions,
// no country weights and the default data source. The portfolio gets a fresh ID.
func Parse(r io.Reader) (*model.Portfolio, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	return ParseBytes(data)
}

// ParseBytes is Parse over an in-memory document.
func ParseBytes(data []byte) (*model.Portfolio, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyDocument
	}
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	var errs []error
	invalid := func(field, format string, args ...any) {
		errs = append(errs, &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)})
	}

	p := &model.Portfolio{ID: uuid.NewString(), Name: doc.Name}
	if doc.Name == "" {
		invalid("name", "is required")
	}
	if doc.MaxDrift == nil {
		invalid("maxDrift", "is required")
	} else if !finite(*doc.MaxDrift) {
		invalid("maxDrift", "must be a finite number")
	} else {
		p.MaxDrift = *doc.MaxDrift
	}
	if doc.TargetAssetClassAllocation == nil {
		invalid("targetAssetClassAllocation", "is required")
	} else {
		for k, v := range doc.TargetAssetClassAllocation.All() {
			c, err := model.ParseCategory(k)
			if err != nil {
				invalid("targetAssetClassAllocation", "%v", err)
				continue
			}
			if !finite(v) {
				invalid("targetAssetClassAllocation."+k, "must be a finite number")
				continue
			}
			p.TargetAssetClassAllocation.Add(c, v)
		}
	}
	if doc.TargetCountryAllocation == nil {
		invalid("targetCountryAllocation", "is required")
	} else {
		for k, v := range doc.TargetCountryAllocation.All() {
			c, err := model.ParseCountry(k)
			if err != nil {
				invalid("targetCountryAllocation", "%v", err)
				continue
			}
			if !finite(v) {
				invalid("targetCountryAllocation."+k, "must be a finite number")
				continue
			}
			p.TargetCountryAllocation.Add(c, v)
		}
	}

	switch doc.ETFs.Kind {
	case 0:
		invalid("etfs", "is required")
	case yaml.MappingNode:
		seen := make(map[string]bool)
		for i := 0; i+1 < len(doc.ETFs.Content); i += 2 {
			isin := doc.ETFs.Content[i].Value
			field := "etfs." + isin
			if isin == "" {
				invalid("etfs", "empty isin at line %d", doc.ETFs.Content[i].Line)
				continue
			}
			if seen[isin] {
				invalid(field, "duplicate isin")
				continue
			}
			seen[isin] = true
			var ed etfDocument
			if err := doc.ETFs.Content[i+1].Decode(&ed); err != nil {
				invalid(field, "%v", err)
				continue
			}
			etf, etfErrs := buildETF(field, isin, ed)
			errs = append(errs, etfErrs...)
			p.ETFs = append(p.ETFs, etf)
		}
	default:
		invalid("etfs", "must be a mapping keyed by isin")
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return p, nil
}

func buildETF(field, isin string, ed etfDocument) (model.ETF, []error) {
	var errs []error
	invalid := func(f, format string, args ...any) {
		errs = append(errs, &ValidationError{Field: field + f, Msg: fmt.Sprintf(format, args...)})
	}

	etf := model.ETF{ISIN: isin, Name: ed.Name, Transactions: []model.Transaction{}}
	if ed.Name == "" {
		invalid(".name", "is required")
	}
	ds, err := model.ParseDataSource(ed.DataSource)
	if err != nil {
		invalid(".dataSource", "%v", err)
	}
	etf.DataSource = ds

	if ed.AssetClass == nil {
		invalid(".assetClass", "is required")
	} else {
		etf.AssetClass.Name = ed.AssetClass.Name
		if ed.AssetClass.Name == "" {
			invalid(".assetClass.name", "is required")
		}
		if c, err := model.ParseCategory(ed.AssetClass.Category); err != nil {
			invalid(".assetClass.category", "%v", err)
		} else {
			etf.AssetClass.Category = c
		}
	}

	for k, v := range ed.Countries.All() {
		c, err := model.ParseCountry(k)
		if err != nil {
			invalid(".countries", "%v", err)
			continue
		}
		if !finite(v) {
			invalid(".countries."+k, "must be a finite number")
			continue
		}
		etf.Countries.Add(c, v)
	}

	for i, td := range ed.Transactions {
		f := fmt.Sprintf(".transactions[%d]", i)
		tx := model.Transaction{}
		if d, err := model.ParseDate(td.Date); err != nil {
			invalid(f+".date", "%v", err)
		} else {
			tx.Date = d
		}
		if td.Quantity == nil {
			invalid(f+".quantity", "is required")
		} else if !finite(*td.Quantity) {
			invalid(f+".quantity", "must be a finite number")
		} else {
			tx.Quantity = *td.Quantity
		}
		if td.Price == nil {
			invalid(f+".price", "is required")
		} else if !finite(*td.Price) {
			invalid(f+".price", "must be a finite number")
		} else {
			tx.Price = *td.Price
		}
		etf.Transactions = append(etf.Transactions, tx)
	}
	sort.SliceStable(etf.Transactions, func(i, j int) bool {
		return etf.Transactions[i].Date.Before(etf.Transactions[j].Date)
	})

	if sd := ed.SIP; sd != nil {
		plan := &model.RecurringPlan{}
		if sd.Quantity == nil {
			invalid(".sip.quantity", "is required")
		} else if !finite(*sd.Quantity) {
			invalid(".sip.quantity", "must be a finite number")
		} else {
			plan.Quantity = *sd.Quantity
		}
		if sd.Frequency == nil {
			invalid(".sip.frequency", "is required")
		} else if f := *sd.Frequency; f < 1 || f > 12 || 12%f != 0 {
			invalid(".sip.frequency", "must be one of 1, 2, 3, 4, 6, 12 purchases a year (3 buys every four months, 4 quarterly), got %d", f)
		} else {
			plan.Frequency = f
		}
		if d, err := model.ParseDate(sd.StartDate); err != nil {
			invalid(".sip.startDate", "%v", err)
		} else {
			plan.StartDate = d
		}
		etf.Plan = plan
	}
	return etf, errs
}

// Marshal writes p back as a portfolio document. The ID is not part of the document.
func Marshal(p *model.Portfolio) ([]byte, error) {
	etfs := &yaml.Node{Kind: yaml.MappingNode}
	for _, e := range p.ETFs {
		ed := etfDocument{
			DataSource: string(e.DataSource),
			Name:       e.Name,
			AssetClass: &assetClassDocument{Name: e.AssetClass.Name, Category: string(e.AssetClass.Category)},
		}
		for k, v := range e.Countries.All() {
			ed.Countries.Set(string(k), v)
		}
		for _, tx := range e.Transactions {
			ed.Transactions = append(ed.Transactions, transactionDocument{
				Date:     tx.Date.String(),
				Quantity: ptr(tx.Quantity),
				Price:    ptr(tx.Price),
			})
		}
		if e.Plan != nil {
			ed.SIP = &recurringPlanDocument{
				Quantity:  ptr(e.Plan.Quantity),
				Frequency: ptr(e.Plan.Frequency),
				StartDate: e.Plan.StartDate.String(),
			}
		}
		var value yaml.Node
		if err := value.Encode(ed); err != nil {
			return nil, fmt.Errorf("encode etf %s: %w", e.ISIN, err)
		}
		etfs.Content = append(etfs.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: e.ISIN}, &value)
	}

	var assetClasses, countries model.Weights[string]
	for k, v := range p.TargetAssetClassAllocation.All() {
		assetClasses.Set(string(k), v)
	}
	for k, v := range p.TargetCountryAllocation.All() {
		countries.Set(string(k), v)
	}
	doc := document{
		Name:                       p.Name,
		TargetAssetClassAllocation: &assetClasses,
		TargetCountryAllocation:    &countries,
		MaxDrift:                   ptr(p.MaxDrift),
		ETFs:                       *etfs,
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode portfolio: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func ptr[T any](v T) *T { return &v }

// finite rejects the .inf and .nan YAML scalars, which JSON cannot carry.
func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
