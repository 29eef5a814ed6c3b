package metering

import (
	"github.com/metering/backend/internal/domain/shared"
	"github.com/metering/backend/internal/domain/shared/valueobject"
)

// Default unit prices in minor currency units (page = 0.10, translation unit = 0.05)
const (
	DefaultPageUnitPrice        int64 = 10
	DefaultTranslationUnitPrice int64 = 5
)

// PriceList holds the fixed per-unit prices for metered operations.
// It is process-wide configuration, loaded once and immutable at runtime.
type PriceList struct {
	PageUnitPrice        valueobject.Money
	TranslationUnitPrice valueobject.Money
}

// DefaultPriceList returns the built-in unit prices
func DefaultPriceList() PriceList {
	return PriceList{
		PageUnitPrice:        valueobject.NewMoneyFromMinorUnits(DefaultPageUnitPrice),
		TranslationUnitPrice: valueobject.NewMoneyFromMinorUnits(DefaultTranslationUnitPrice),
	}
}

// CostQuote is the monetary cost of a requested operation, broken down by
// meter. TotalCost always equals PagesCost + TranslationsCost.
type CostQuote struct {
	PagesCost        valueobject.Money `json:"pages_cost"`
	TranslationsCost valueobject.Money `json:"translations_cost"`
	TotalCost        valueobject.Money `json:"total_cost"`
}

// ZeroQuote returns a quote with all amounts zero
func ZeroQuote() CostQuote {
	zero := valueobject.ZeroDefault()
	return CostQuote{PagesCost: zero, TranslationsCost: zero, TotalCost: zero}
}

// IsFree returns true if nothing is charged
func (q CostQuote) IsFree() bool {
	return q.TotalCost.IsZero()
}

// QuotePages prices the processing of pageCount document pages
func (p PriceList) QuotePages(pageCount int64) (CostQuote, error) {
	if pageCount < 0 {
		return CostQuote{}, shared.ErrInvalidQuantity
	}
	cost := p.PageUnitPrice.MultiplyByInt(pageCount)
	return CostQuote{
		PagesCost:        cost,
		TranslationsCost: valueobject.Zero(cost.Currency()),
		TotalCost:        cost,
	}, nil
}

// QuoteTranslations prices the translation of chunkCount chunks into
// targetLanguageCount languages. Total units = targetLanguageCount * chunkCount.
func (p PriceList) QuoteTranslations(targetLanguageCount, chunkCount int64) (CostQuote, error) {
	if targetLanguageCount < 0 || chunkCount < 0 {
		return CostQuote{}, shared.ErrInvalidQuantity
	}
	units := targetLanguageCount * chunkCount
	cost := p.TranslationUnitPrice.MultiplyByInt(units)
	return CostQuote{
		PagesCost:        valueobject.Zero(cost.Currency()),
		TranslationsCost: cost,
		TotalCost:        cost,
	}, nil
}
