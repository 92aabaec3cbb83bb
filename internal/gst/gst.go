// Package gst computes invoice line and total amounts under inclusive,
// exclusive and exempt GST treatment.
package gst

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/books/internal/apperr"
)

// DefaultRate is the standard GST rate applied when none is configured.
var DefaultRate = decimal.RequireFromString("0.15")

// Mode selects how Rate is applied to line amounts.
type Mode struct {
	Rate      decimal.Decimal
	Inclusive bool // prices already include GST
	Exempt    bool // no GST at all; Rate and Inclusive are ignored
}

// Validate checks that the mode is usable.
func (m Mode) Validate() error {
	const op = "gst.Mode"
	if m.Exempt {
		return nil
	}
	if m.Rate.IsNegative() {
		return apperr.Validation(op, "tax rate must not be negative, got %s", m.Rate)
	}
	if m.Rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return apperr.Validation(op, "tax rate must be a fraction below 1, got %s", m.Rate)
	}
	return nil
}

// EffectiveRate is the rate actually charged: zero when exempt.
func (m Mode) EffectiveRate() decimal.Decimal {
	if m.Exempt {
		return decimal.Zero
	}
	return m.Rate
}

// Line is one priced invoice line.
type Line struct {
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
}

// LineResult is a line with its computed amounts.
type LineResult struct {
	Line
	Total     decimal.Decimal // quantity x unit price, in cents
	TaxRate   decimal.Decimal
	TaxAmount decimal.Decimal
}

// Result holds the invoice-level amounts. Subtotal + TaxAmount == Total.
type Result struct {
	Subtotal  decimal.Decimal
	TaxAmount decimal.Decimal
	Total     decimal.Decimal
	Rate      decimal.Decimal
	Lines     []LineResult
}

// Calculate prices lines under mode. Line totals and tax amounts are rounded
// half away from zero to cents. Invoice tax is computed from the summed line
// totals, so it can differ from the sum of line taxes by a cent.
func Calculate(lines []Line, mode Mode) (Result, error) {
	const op = "gst.Calculate"
	if err := mode.Validate(); err != nil {
		return Result{}, err
	}
	if len(lines) == 0 {
		return Result{}, apperr.Validation(op, "at least one line is required")
	}

	rate := mode.EffectiveRate()
	res := Result{Rate: rate, Lines: make([]LineResult, len(lines))}
	sum := decimal.Zero
	for i, l := range lines {
		if strings.TrimSpace(l.Description) == "" {
			return Result{}, apperr.Validation(op, "line %d: description is required", i+1)
		}
		if !l.Quantity.IsPositive() {
			return Result{}, apperr.Validation(op, "line %d: quantity must be positive, got %s", i+1, l.Quantity)
		}
		if l.UnitPrice.IsNegative() {
			return Result{}, apperr.Validation(op, "line %d: unit price must not be negative, got %s", i+1, l.UnitPrice)
		}

		total := cents(l.Quantity.Mul(l.UnitPrice))
		res.Lines[i] = LineResult{
			Line:      l,
			Total:     total,
			TaxRate:   rate,
			TaxAmount: taxOn(total, mode),
		}
		sum = sum.Add(total)
	}

	res.TaxAmount = taxOn(sum, mode)
	switch {
	case mode.Exempt:
		res.Subtotal, res.Total = sum, sum
	case mode.Inclusive:
		res.Subtotal, res.Total = sum.Sub(res.TaxAmount), sum
	default:
		res.Subtotal, res.Total = sum, sum.Add(res.TaxAmount)
	}
	return res, nil
}

// taxOn returns the GST contained in (inclusive) or added to (exclusive)
// amount.
func taxOn(amount decimal.Decimal, mode Mode) decimal.Decimal {
	if mode.Exempt || mode.Rate.IsZero() {
		return decimal.Zero
	}
	if mode.Inclusive {
		return cents(amount.Div(mode.Rate.Add(decimal.NewFromInt(1))).Mul(mode.Rate))
	}
	return cents(amount.Mul(mode.Rate))
}

func cents(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
