package catalog

import (
	"sort"
	"strings"

	pkgerrors "github.com/livemart/livemart-backend/pkg/errors"
)

// SortBy names a catalog ordering.
type SortBy string

const (
	SortNewest    SortBy = ""
	SortDistance  SortBy = "distance"
	SortPriceAsc  SortBy = "price-asc"
	SortPriceDesc SortBy = "price-desc"
	SortName      SortBy = "name"
	SortRating    SortBy = "rating"
)

// ParseSortBy validates the sortBy query parameter. Empty and "newest" both
// select the default ordering.
func ParseSortBy(raw string) (SortBy, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch SortBy(value) {
	case SortNewest, SortDistance, SortPriceAsc, SortPriceDesc, SortName, SortRating:
		return SortBy(value), nil
	}
	if value == "newest" {
		return SortNewest, nil
	}
	return "", pkgerrors.New(pkgerrors.CodeValidation, "unsupported sortBy").
		WithDetails(map[string]any{"sortBy": raw})
}

// sortViews orders views in place. Every ordering is stable so ties keep the
// repository's newest-first order.
func sortViews(views []ProductView, by SortBy) {
	switch by {
	case SortDistance:
		sort.SliceStable(views, func(i, j int) bool {
			return distanceLess(views[i].DistanceKm, views[j].DistanceKm)
		})
	case SortPriceAsc:
		sort.SliceStable(views, func(i, j int) bool {
			return views[i].Price.LessThan(views[j].Price)
		})
	case SortPriceDesc:
		sort.SliceStable(views, func(i, j int) bool {
			return views[i].Price.GreaterThan(views[j].Price)
		})
	case SortName:
		sort.SliceStable(views, func(i, j int) bool {
			return strings.ToLower(views[i].Name) < strings.ToLower(views[j].Name)
		})
	case SortRating:
		sort.SliceStable(views, func(i, j int) bool {
			return views[i].Rating > views[j].Rating
		})
	}
}

// distanceLess orders known distances ascending; unknown distances sort last.
func distanceLess(a, b *float64) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	default:
		return *a < *b
	}
}
