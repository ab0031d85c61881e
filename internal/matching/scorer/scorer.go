// Package scorer holds the pure requirement-vs-property scoring rules. No
// I/O, no clock, no randomness: the same inputs always produce the same
// result, which keeps the rules testable as a table.
package scorer

import (
	"fmt"
	"strings"

	"propbridge/internal/matching/models"
	"propbridge/internal/property"
)

// QualifyThresholdPct is the budget-overlap floor a pair must clear, on top
// of a location match, to become a match.
const QualifyThresholdPct = 80.0

// tolerance is the band applied around a listing price when comparing
// against budgets: a price competes in [price*0.8, price*1.2].
const tolerance = 0.20

// Result is the outcome of scoring one (requirement, property) pair.
type Result struct {
	LocationClass    models.LocationClass
	BudgetOverlapPct float64
	Score            float64
	Reasons          []string
}

// Qualifies reports whether the pair clears the match bar: some location
// alignment and enough budget overlap.
func (r Result) Qualifies() bool {
	return r.LocationClass != models.LocationNone && r.BudgetOverlapPct >= QualifyThresholdPct
}

// Score evaluates a requirement against a listing. A city mismatch
// short-circuits to a non-match regardless of budget.
func Score(req *models.Requirement, prop *property.Property) Result {
	class := locationClass(req, prop)
	if class == models.LocationNone {
		return Result{}
	}

	overlap := budgetOverlapPct(req, prop.Price)

	var reasons []string
	switch class {
	case models.LocationLocality:
		reasons = append(reasons, fmt.Sprintf("locality match: %s, %s", prop.Locality, prop.City))
	case models.LocationCity:
		reasons = append(reasons, "city match: "+prop.City)
	}
	reasons = append(reasons, fmt.Sprintf("budget overlap %.0f%%", overlap))
	if req.PropertyType != "" && strings.EqualFold(req.PropertyType, prop.PropertyType) {
		reasons = append(reasons, "property type match: "+prop.PropertyType)
	}
	if req.Bedrooms > 0 && prop.Bedrooms >= req.Bedrooms {
		reasons = append(reasons, fmt.Sprintf("%d bedrooms (asked %d)", prop.Bedrooms, req.Bedrooms))
	}
	if req.MinAreaSqFt > 0 && prop.AreaSqFt >= req.MinAreaSqFt {
		reasons = append(reasons, fmt.Sprintf("%.0f sqft (asked %.0f)", prop.AreaSqFt, req.MinAreaSqFt))
	}

	return Result{
		LocationClass:    class,
		BudgetOverlapPct: overlap,
		Score:            models.OverallScore(class, overlap),
		Reasons:          reasons,
	}
}

func locationClass(req *models.Requirement, prop *property.Property) models.LocationClass {
	if !strings.EqualFold(strings.TrimSpace(req.City), strings.TrimSpace(prop.City)) {
		return models.LocationNone
	}
	if req.Locality != "" && strings.EqualFold(strings.TrimSpace(req.Locality), strings.TrimSpace(prop.Locality)) {
		return models.LocationLocality
	}
	return models.LocationCity
}

// budgetOverlapPct measures how much of the requirement's budget range falls
// inside the listing's tolerance band [price*0.8, price*1.2], as a fraction
// of the requirement range. A requirement without a usable range (no min, or
// min == max) degrades to a point comparison against the ceiling with a
// linear falloff outside the band.
func budgetOverlapPct(req *models.Requirement, price float64) float64 {
	bandLo := price * (1 - tolerance)
	bandHi := price * (1 + tolerance)

	if req.MinBudget == nil || *req.MinBudget >= req.MaxBudget {
		return pointOverlapPct(req.MaxBudget, price, bandLo, bandHi)
	}

	lo := max(*req.MinBudget, bandLo)
	hi := min(req.MaxBudget, bandHi)
	if hi <= lo {
		return 0
	}
	pct := (hi - lo) / (req.MaxBudget - *req.MinBudget) * 100
	return min(pct, 100)
}

func pointOverlapPct(budget, price, bandLo, bandHi float64) float64 {
	if budget >= bandLo && budget <= bandHi {
		return 100
	}
	var distance float64
	if budget < bandLo {
		distance = bandLo - budget
	} else {
		distance = budget - bandHi
	}
	pct := 100 - distance/price*100
	return max(pct, 0)
}
