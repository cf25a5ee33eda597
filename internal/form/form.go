// Package form maps the flat admin submission onto the nested listing
// records. City and neighborhood, as well as the four feature counters,
// travel as top-level keys and are recombined here.
package form

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"property-catalog/internal/domain"
)

var ErrInvalidForm = errors.New("invalid listing form")

// ListingForm is the flat admin submission.
type ListingForm struct {
	Title         string              `json:"title"`
	Description   string              `json:"description"`
	Price         float64             `json:"price"`
	Type          domain.PropertyType `json:"type"`
	Modality      domain.Modality     `json:"modality"`
	Status        domain.Status       `json:"status"`
	City          string              `json:"city"`
	Neighborhood  string              `json:"neighborhood"`
	Address       string              `json:"address,omitempty"`
	Bedrooms      int                 `json:"bedrooms"`
	Bathrooms     int                 `json:"bathrooms"`
	Area          float64             `json:"area"`
	ParkingSpaces int                 `json:"parkingSpaces"`
	Images        []string            `json:"images"`
	IsActive      bool                `json:"isActive"`
}

// Default is the blank admin form.
func Default() ListingForm {
	return ListingForm{
		Type:     domain.TypeHouse,
		Modality: domain.ModalitySale,
		Status:   domain.StatusAvailable,
		Images:   []string{},
		IsActive: true,
	}
}

// FromListing prefills the form for editing l.
func FromListing(l domain.Listing) ListingForm {
	return ListingForm{
		Title:         l.Title,
		Description:   l.Description,
		Price:         l.Price,
		Type:          l.Type,
		Modality:      l.Modality,
		Status:        l.Status,
		City:          l.Location.City,
		Neighborhood:  l.Location.Neighborhood,
		Address:       l.Location.Address,
		Bedrooms:      l.Features.Bedrooms,
		Bathrooms:     l.Features.Bathrooms,
		Area:          l.Features.Area,
		ParkingSpaces: l.Features.ParkingSpaces,
		Images:        append([]string{}, l.Images...),
		IsActive:      l.IsActive,
	}
}

// FromValues reads an urlencoded submission. Absent keys keep the value
// of Default; images may be repeated or separated by newlines or commas.
func FromValues(values url.Values) (ListingForm, error) {
	f := Default()

	f.Title = strings.TrimSpace(values.Get("title"))
	f.Description = strings.TrimSpace(values.Get("description"))
	f.City = strings.TrimSpace(values.Get("city"))
	f.Neighborhood = strings.TrimSpace(values.Get("neighborhood"))
	f.Address = strings.TrimSpace(values.Get("address"))

	var err error
	if v := values.Get("type"); v != "" {
		if f.Type, err = domain.ParsePropertyType(v); err != nil {
			return ListingForm{}, fmt.Errorf("%w: %v", ErrInvalidForm, err)
		}
	}
	if v := values.Get("modality"); v != "" {
		if f.Modality, err = domain.ParseModality(v); err != nil {
			return ListingForm{}, fmt.Errorf("%w: %v", ErrInvalidForm, err)
		}
	}
	if v := values.Get("status"); v != "" {
		if f.Status, err = domain.ParseStatus(v); err != nil {
			return ListingForm{}, fmt.Errorf("%w: %v", ErrInvalidForm, err)
		}
	}

	if f.Price, err = parseFloat(values, "price"); err != nil {
		return ListingForm{}, err
	}
	if f.Area, err = parseFloat(values, "area"); err != nil {
		return ListingForm{}, err
	}
	if f.Bedrooms, err = parseInt(values, "bedrooms"); err != nil {
		return ListingForm{}, err
	}
	if f.Bathrooms, err = parseInt(values, "bathrooms"); err != nil {
		return ListingForm{}, err
	}
	if f.ParkingSpaces, err = parseInt(values, "parkingSpaces"); err != nil {
		return ListingForm{}, err
	}

	if v, ok := values["isActive"]; ok && len(v) > 0 {
		switch strings.ToLower(strings.TrimSpace(v[len(v)-1])) {
		case "true", "on", "1", "yes":
			f.IsActive = true
		case "false", "off", "0", "no":
			f.IsActive = false
		default:
			return ListingForm{}, fmt.Errorf("%w: isActive: %q", ErrInvalidForm, v[len(v)-1])
		}
	}

	f.Images = splitImages(values["images"])

	return f, nil
}

// Draft recombines the form into the nested record sent on create.
func (f ListingForm) Draft() domain.Draft {
	images := f.Images
	if images == nil {
		images = []string{}
	}
	return domain.Draft{
		Title:       f.Title,
		Description: f.Description,
		Price:       f.Price,
		Type:        f.Type,
		Modality:    f.Modality,
		Status:      f.Status,
		Location: domain.Location{
			City:         f.City,
			Neighborhood: f.Neighborhood,
			Address:      f.Address,
		},
		Features: domain.Features{
			Bedrooms:      f.Bedrooms,
			Bathrooms:     f.Bathrooms,
			Area:          f.Area,
			ParkingSpaces: f.ParkingSpaces,
		},
		Images:   images,
		IsActive: f.IsActive,
	}
}

// Patch is the full update an edit submission stands for: every field is
// populated.
func (f ListingForm) Patch() domain.Patch {
	d := f.Draft()
	return domain.Patch{
		Title:       &d.Title,
		Description: &d.Description,
		Price:       &d.Price,
		Type:        &d.Type,
		Modality:    &d.Modality,
		Status:      &d.Status,
		Location:    &d.Location,
		Features:    &d.Features,
		Images:      &d.Images,
		IsActive:    &d.IsActive,
	}
}

func parseFloat(values url.Values, key string) (float64, error) {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(normalizeNumber(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %s: %q is not a number", ErrInvalidForm, key, raw)
	}
	return v, nil
}

// normalizeNumber accepts Brazilian notation, where "." groups thousands
// and "," marks decimals ("1.800.000,50"), as well as plain numbers. A
// single "." followed by exactly three digits is read as a thousands
// separator.
func normalizeNumber(raw string) string {
	if strings.Contains(raw, ",") {
		return strings.ReplaceAll(strings.ReplaceAll(raw, ".", ""), ",", ".")
	}
	switch dots := strings.Count(raw, "."); {
	case dots > 1:
		return strings.ReplaceAll(raw, ".", "")
	case dots == 1 && len(raw)-strings.Index(raw, ".") == 4:
		return strings.Replace(raw, ".", "", 1)
	}
	return raw
}

func parseInt(values url.Values, key string) (int, error) {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %q is not a whole number", ErrInvalidForm, key, raw)
	}
	return v, nil
}

func splitImages(raw []string) []string {
	images := []string{}
	for _, entry := range raw {
		for _, part := range strings.FieldsFunc(entry, func(r rune) bool {
			return r == '\n' || r == '\r' || r == ','
		}) {
			if part = strings.TrimSpace(part); part != "" {
				images = append(images, part)
			}
		}
	}
	return images
}
