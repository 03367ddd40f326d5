package domain

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Round2 rounds to 2 decimal places, the precision used for all stored and
// derived prices and percentages.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// NormalizeDiscount computes the discount state for a product from raw request
// fields plus fallback values (the existing record's settings on update, zero
// values on create). It is the single source of discount validation.
//
// Raw values arrive from the JSON boundary untyped: the flag may be a bool,
// number or string, the percentage a number or string. A nil flag or a
// nil/empty-string percentage means "not submitted" and falls back.
func NormalizeDiscount(rawFlag, rawPercentage any, fallback DiscountSettings) (DiscountSettings, error) {
	hasFlag := rawFlag != nil
	hasPercentage := rawPercentage != nil && rawPercentage != ""

	isDiscounted := fallback.IsDiscounted
	if hasFlag {
		isDiscounted = toBoolean(rawFlag)
	}

	percentage := fallback.DiscountPercentage
	ok := true
	if hasPercentage {
		percentage, ok = toNumber(rawPercentage)
	}

	if isDiscounted {
		if !ok {
			return DiscountSettings{}, NewValidationError("Discount percentage must be a valid number")
		}
		if percentage <= 0 || percentage >= 100 {
			return DiscountSettings{}, NewValidationError("Discount percentage must be between 1 and 99")
		}
		return DiscountSettings{IsDiscounted: true, DiscountPercentage: Round2(percentage)}, nil
	}

	return DiscountSettings{IsDiscounted: false, DiscountPercentage: 0}, nil
}

// toBoolean coerces a duck-typed JSON value to a flag: booleans pass through,
// nonzero numbers are true, and the strings true/1/yes/on (trimmed,
// case-insensitive) are true. Anything else is false.
func toBoolean(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case float64:
		return val != 0
	case int:
		return val != 0
	case json.Number:
		f, err := val.Float64()
		return err == nil && f != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "true", "1", "yes", "on":
			return true
		}
		return false
	}
	return false
}

func toNumber(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case int:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			// Number("") and Number("  ") are 0 at the JSON boundary.
			return 0, true
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		return f, err == nil
	case bool:
		// Number(true) is 1; matches the loose coercion of the JSON boundary.
		if val {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// ToNumber exposes the boundary coercion for other duck-typed numeric fields
// (price), returning false when the value cannot be read as a number.
func ToNumber(v any) (float64, bool) {
	return toNumber(v)
}
