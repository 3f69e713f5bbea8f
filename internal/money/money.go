// Package money provides the single rounding policy applied to every monetary
// value before it is persisted or compared. All arithmetic uses exact decimals;
// binary floats never carry money.
package money

import "github.com/shopspring/decimal"

// Quantize rounds an amount to 2 fractional digits, half away from zero.
// Every subtotal, tax, fee, and total goes through Quantize exactly once at
// the point it is fixed, so stored amounts are always comparable without
// accumulated drift.
func Quantize(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(2)
}

// MinorUnits converts an amount to the currency's minor unit (e.g. kobo,
// cents) as an integer. The amount is quantized first, so the shift by two
// digits is always exact.
func MinorUnits(amount decimal.Decimal) int64 {
	return Quantize(amount).Shift(2).IntPart()
}

// FromMinorUnits converts an integer minor-unit amount back to a decimal
// major-unit amount.
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.NewFromInt(minor).Shift(-2)
}
