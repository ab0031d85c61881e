package scorer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propbridge/internal/matching/models"
	"propbridge/internal/property"
	id "propbridge/pkg/domain"
)

func req(city, locality string, minBudget *float64, maxBudget float64) *models.Requirement {
	return &models.Requirement{
		ID:        id.NewRequirementID(),
		BuyerID:   id.NewUserID(),
		City:      city,
		Locality:  locality,
		MinBudget: minBudget,
		MaxBudget: maxBudget,
	}
}

func listing(city, locality string, price float64) *property.Property {
	return &property.Property{
		ID:       id.NewPropertyID(),
		SellerID: id.NewUserID(),
		Status:   property.StatusLive,
		City:     city,
		Locality: locality,
		Price:    price,
	}
}

func ptr(v float64) *float64 { return &v }

func TestScore(t *testing.T) {
	tests := []struct {
		name        string
		req         *models.Requirement
		prop        *property.Property
		wantClass   models.LocationClass
		wantOverlap float64
		wantQualify bool
	}{
		{
			name:        "range inside tolerance band qualifies",
			req:         req("Pune", "", ptr(4_500_000), 5_500_000),
			prop:        listing("Pune", "Kothrud", 5_000_000),
			wantClass:   models.LocationCity,
			wantOverlap: 100,
			wantQualify: true,
		},
		{
			name:        "locality alignment upgrades class",
			req:         req("Pune", "Kothrud", ptr(4_500_000), 5_500_000),
			prop:        listing("Pune", "Kothrud", 5_000_000),
			wantClass:   models.LocationLocality,
			wantOverlap: 100,
			wantQualify: true,
		},
		{
			name:        "different city never matches",
			req:         req("Mumbai", "", ptr(4_500_000), 5_500_000),
			prop:        listing("Pune", "", 5_000_000),
			wantClass:   models.LocationNone,
			wantOverlap: 0,
			wantQualify: false,
		},
		{
			name:        "city comparison ignores case",
			req:         req("pune", "", ptr(4_500_000), 5_500_000),
			prop:        listing("PUNE", "", 5_000_000),
			wantClass:   models.LocationCity,
			wantOverlap: 100,
			wantQualify: true,
		},
		{
			// band [4.8M, 7.2M], range [4M, 5M]: only [4.8M, 5M] overlaps.
			name:        "partial overlap below threshold",
			req:         req("Pune", "", ptr(4_000_000), 5_000_000),
			prop:        listing("Pune", "", 6_000_000),
			wantClass:   models.LocationCity,
			wantOverlap: 20,
			wantQualify: false,
		},
		{
			// band [1.6M, 2.4M] disjoint from [5M, 6M].
			name:        "disjoint budget scores zero overlap",
			req:         req("Pune", "", ptr(5_000_000), 6_000_000),
			prop:        listing("Pune", "", 2_000_000),
			wantClass:   models.LocationCity,
			wantOverlap: 0,
			wantQualify: false,
		},
		{
			name:        "no min budget falls back to point comparison inside band",
			req:         req("Pune", "", nil, 5_000_000),
			prop:        listing("Pune", "", 5_500_000),
			wantClass:   models.LocationCity,
			wantOverlap: 100,
			wantQualify: true,
		},
		{
			// band [4.8M, 7.2M]; budget 4.2M is 600k below, 600k/6M = 10%.
			name:        "point comparison falls off linearly outside band",
			req:         req("Pune", "", nil, 4_200_000),
			prop:        listing("Pune", "", 6_000_000),
			wantClass:   models.LocationCity,
			wantOverlap: 90,
			wantQualify: true,
		},
		{
			name:        "point comparison floors at zero",
			req:         req("Pune", "", nil, 100_000),
			prop:        listing("Pune", "", 10_000_000),
			wantClass:   models.LocationCity,
			wantOverlap: 0,
			wantQualify: false,
		},
		{
			name:        "degenerate range treated as point",
			req:         req("Pune", "", ptr(5_000_000), 5_000_000),
			prop:        listing("Pune", "", 5_000_000),
			wantClass:   models.LocationCity,
			wantOverlap: 100,
			wantQualify: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.req, tt.prop)
			assert.Equal(t, tt.wantClass, got.LocationClass)
			assert.InDelta(t, tt.wantOverlap, got.BudgetOverlapPct, 0.01)
			assert.Equal(t, tt.wantQualify, got.Qualifies())
		})
	}
}

func TestScoreReasons(t *testing.T) {
	r := req("Pune", "Kothrud", ptr(4_500_000), 5_500_000)
	r.PropertyType = "apartment"
	r.Bedrooms = 2
	r.MinAreaSqFt = 900

	p := listing("Pune", "Kothrud", 5_000_000)
	p.PropertyType = "Apartment"
	p.Bedrooms = 3
	p.AreaSqFt = 1100

	got := Score(r, p)
	require.True(t, got.Qualifies())
	assert.Contains(t, got.Reasons, "locality match: Kothrud, Pune")
	assert.Contains(t, got.Reasons, "budget overlap 100%")
	assert.Contains(t, got.Reasons, "property type match: Apartment")
	assert.Len(t, got.Reasons, 5)
}

func TestScoreDeterministic(t *testing.T) {
	r := req("Pune", "Baner", ptr(4_000_000), 6_000_000)
	p := listing("Pune", "Baner", 5_200_000)

	first := Score(r, p)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Score(r, p))
	}
}

// Widening a requirement range that sits inside the listing's tolerance band
// keeps the overlap from shrinking; the newly added span keeps overlapping
// until the range outgrows the band.
func TestScoreWideningRangeInsideBand(t *testing.T) {
	p := listing("Pune", "", 5_000_000) // band [4M, 6M]

	narrow := Score(req("Pune", "", ptr(4_600_000), 5_400_000), p)
	wide := Score(req("Pune", "", ptr(4_100_000), 5_900_000), p)

	assert.GreaterOrEqual(t, wide.BudgetOverlapPct, narrow.BudgetOverlapPct)
	assert.InDelta(t, 100, narrow.BudgetOverlapPct, 0.01)
	assert.InDelta(t, 100, wide.BudgetOverlapPct, 0.01)
}
