// Package derive computes listing attributes that providers never report
// verbatim.
package derive

import (
	"math"
	"strings"
)

// RoofHeightCategory is the van/truck roof class shown on a listing.
type RoofHeightCategory string

const (
	LowRoof    RoofHeightCategory = "Low Roof"
	MediumRoof RoofHeightCategory = "Medium Roof"
	HighRoof   RoofHeightCategory = "High Roof"
)

// Band lower bounds in inches; each bound belongs to the band above it.
const (
	mediumRoofMinIn = 80.0
	highRoofMinIn   = 90.0
)

// RoofHeight classifies an overall height in inches. heightIn must be a
// finite, non-negative number; use RoofHeightFor for unchecked input.
func RoofHeight(heightIn float64) RoofHeightCategory {
	switch {
	case heightIn >= highRoofMinIn:
		return HighRoof
	case heightIn >= mediumRoofMinIn:
		return MediumRoof
	default:
		return LowRoof
	}
}

// RoofHeightFor rejects NaN, infinite and negative heights before
// classifying.
func RoofHeightFor(heightIn float64) (RoofHeightCategory, bool) {
	if math.IsNaN(heightIn) || math.IsInf(heightIn, 0) || heightIn < 0 {
		return "", false
	}
	return RoofHeight(heightIn), true
}

// ParseRoofHeight matches a category name case-insensitively.
func ParseRoofHeight(s string) (RoofHeightCategory, bool) {
	s = strings.TrimSpace(s)
	for _, c := range []RoofHeightCategory{LowRoof, MediumRoof, HighRoof} {
		if strings.EqualFold(s, string(c)) {
			return c, true
		}
	}
	return "", false
}
