// Package filter narrows the in-memory listing collection for the public pages.
package filter

import (
	"strings"

	"property-catalog/internal/domain"
)

// Apply returns the listings of all that satisfy every populated field of c,
// in their original order. Inactive listings never pass. Apply does not
// modify all, and c.Query is intentionally not matched.
func Apply(all []domain.Listing, c domain.Criteria) []domain.Listing {
	city := strings.ToLower(c.City)

	out := make([]domain.Listing, 0, len(all))
	for _, l := range all {
		if matches(l, c, city) {
			out = append(out, l)
		}
	}
	return out
}

// Featured returns up to n active listings from the head of all.
func Featured(all []domain.Listing, n int) []domain.Listing {
	if n <= 0 {
		return []domain.Listing{}
	}
	out := make([]domain.Listing, 0, n)
	for _, l := range all {
		if len(out) == n {
			break
		}
		if l.IsActive {
			out = append(out, l)
		}
	}
	return out
}

func matches(l domain.Listing, c domain.Criteria, lowerCity string) bool {
	if !l.IsActive {
		return false
	}
	if lowerCity != "" && !strings.Contains(strings.ToLower(l.Location.City), lowerCity) {
		return false
	}
	if c.Type != "" && l.Type != c.Type {
		return false
	}
	if c.Modality != "" && l.Modality != c.Modality {
		return false
	}
	if c.MinPrice != nil && l.Price < *c.MinPrice {
		return false
	}
	if c.MaxPrice != nil && l.Price > *c.MaxPrice {
		return false
	}
	return true
}
