package domain

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

var ErrInvalidCriteria = errors.New("invalid filter criteria")

// Criteria narrows the public listing set. Empty fields and nil bounds
// place no constraint. Query is accepted from forms and URLs but is not
// used by the filter.
type Criteria struct {
	Query    string       `json:"query"`
	City     string       `json:"city"`
	Type     PropertyType `json:"type"`
	Modality Modality     `json:"modality"`
	MinPrice *float64     `json:"minPrice,omitempty"`
	MaxPrice *float64     `json:"maxPrice,omitempty"`
}

// ParseCriteria reads criteria from URL query values.
func ParseCriteria(values url.Values) (Criteria, error) {
	c := Criteria{
		Query: strings.TrimSpace(values.Get("query")),
		City:  strings.TrimSpace(values.Get("city")),
	}

	if v := values.Get("type"); v != "" {
		t, err := ParsePropertyType(v)
		if err != nil {
			return Criteria{}, fmt.Errorf("%w: %v", ErrInvalidCriteria, err)
		}
		c.Type = t
	}

	if v := values.Get("modality"); v != "" {
		m, err := ParseModality(v)
		if err != nil {
			return Criteria{}, fmt.Errorf("%w: %v", ErrInvalidCriteria, err)
		}
		c.Modality = m
	}

	var err error
	if c.MinPrice, err = parseBound(values.Get("minPrice")); err != nil {
		return Criteria{}, fmt.Errorf("%w: minPrice: %v", ErrInvalidCriteria, err)
	}
	if c.MaxPrice, err = parseBound(values.Get("maxPrice")); err != nil {
		return Criteria{}, fmt.Errorf("%w: maxPrice: %v", ErrInvalidCriteria, err)
	}

	return c, nil
}

// Values is the inverse of ParseCriteria; empty fields are omitted.
func (c Criteria) Values() url.Values {
	values := url.Values{}
	if c.Query != "" {
		values.Set("query", c.Query)
	}
	if c.City != "" {
		values.Set("city", c.City)
	}
	if c.Type != "" {
		values.Set("type", string(c.Type))
	}
	if c.Modality != "" {
		values.Set("modality", string(c.Modality))
	}
	if c.MinPrice != nil {
		values.Set("minPrice", strconv.FormatFloat(*c.MinPrice, 'f', -1, 64))
	}
	if c.MaxPrice != nil {
		values.Set("maxPrice", strconv.FormatFloat(*c.MaxPrice, 'f', -1, 64))
	}
	return values
}

func parseBound(raw string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, err
	}
	if !finite(v) {
		return nil, fmt.Errorf("%q is not a finite number", raw)
	}
	return &v, nil
}
