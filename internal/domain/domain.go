package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var ErrInvalidListing = errors.New("invalid listing")

type Location struct {
	City         string `json:"city"`
	Neighborhood string `json:"neighborhood"`
	Address      string `json:"address,omitempty"`
}

type Features struct {
	Bedrooms      int     `json:"bedrooms"`
	Bathrooms     int     `json:"bathrooms"`
	Area          float64 `json:"area"`
	ParkingSpaces int     `json:"parkingSpaces"`
}

// Listing is a single property of the catalog. ID and CreatedAt are
// assigned by the remote store; Version is bumped by it on every update.
type Listing struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Price       float64      `json:"price"`
	Type        PropertyType `json:"type"`
	Modality    Modality     `json:"modality"`
	Status      Status       `json:"status"`
	Location    Location     `json:"location"`
	Features    Features     `json:"features"`
	Images      []string     `json:"images"`
	IsActive    bool         `json:"isActive"`
	CreatedAt   string       `json:"createdAt"`
	Version     int          `json:"version,omitempty"`
}

// Cover returns the first image, or "" when the listing has none.
func (l Listing) Cover() string {
	if len(l.Images) == 0 {
		return ""
	}
	return l.Images[0]
}

// Draft is a listing before the remote store has assigned its identity.
type Draft struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Price       float64      `json:"price"`
	Type        PropertyType `json:"type"`
	Modality    Modality     `json:"modality"`
	Status      Status       `json:"status"`
	Location    Location     `json:"location"`
	Features    Features     `json:"features"`
	Images      []string     `json:"images"`
	IsActive    bool         `json:"isActive"`
}

func (d Draft) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidListing)
	}
	if err := validatePrice(d.Price); err != nil {
		return err
	}
	if !d.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidType, d.Type)
	}
	if !d.Modality.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidModality, d.Modality)
	}
	if !d.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, d.Status)
	}
	return validateFeatures(d.Features)
}

// Listing builds the record the remote store would return for d.
func (d Draft) Listing(id, createdAt string) Listing {
	return Listing{
		ID:          id,
		Title:       d.Title,
		Description: d.Description,
		Price:       d.Price,
		Type:        d.Type,
		Modality:    d.Modality,
		Status:      d.Status,
		Location:    d.Location,
		Features:    d.Features,
		Images:      append([]string(nil), d.Images...),
		IsActive:    d.IsActive,
		CreatedAt:   createdAt,
		Version:     1,
	}
}

// Patch carries the fields of an update. Nil fields are left untouched;
// Location and Features replace the whole sub-record.
type Patch struct {
	Title       *string       `json:"title,omitempty"`
	Description *string       `json:"description,omitempty"`
	Price       *float64      `json:"price,omitempty"`
	Type        *PropertyType `json:"type,omitempty"`
	Modality    *Modality     `json:"modality,omitempty"`
	Status      *Status       `json:"status,omitempty"`
	Location    *Location     `json:"location,omitempty"`
	Features    *Features     `json:"features,omitempty"`
	Images      *[]string     `json:"images,omitempty"`
	IsActive    *bool         `json:"isActive,omitempty"`
}

func (p Patch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Price == nil && p.Type == nil &&
		p.Modality == nil && p.Status == nil && p.Location == nil && p.Features == nil &&
		p.Images == nil && p.IsActive == nil
}

func (p Patch) Validate() error {
	if p.Empty() {
		return fmt.Errorf("%w: empty update", ErrInvalidListing)
	}
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidListing)
	}
	if p.Price != nil {
		if err := validatePrice(*p.Price); err != nil {
			return err
		}
	}
	if p.Type != nil && !p.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidType, *p.Type)
	}
	if p.Modality != nil && !p.Modality.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidModality, *p.Modality)
	}
	if p.Status != nil && !p.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, *p.Status)
	}
	if p.Features != nil {
		return validateFeatures(*p.Features)
	}
	return nil
}

// ApplyTo returns a copy of l with the populated fields of p written over it.
func (p Patch) ApplyTo(l Listing) Listing {
	if p.Title != nil {
		l.Title = *p.Title
	}
	if p.Description != nil {
		l.Description = *p.Description
	}
	if p.Price != nil {
		l.Price = *p.Price
	}
	if p.Type != nil {
		l.Type = *p.Type
	}
	if p.Modality != nil {
		l.Modality = *p.Modality
	}
	if p.Status != nil {
		l.Status = *p.Status
	}
	if p.Location != nil {
		l.Location = *p.Location
	}
	if p.Features != nil {
		l.Features = *p.Features
	}
	if p.Images != nil {
		l.Images = append([]string(nil), (*p.Images)...)
	} else {
		l.Images = append([]string(nil), l.Images...)
	}
	if p.IsActive != nil {
		l.IsActive = *p.IsActive
	}
	return l
}

func validatePrice(price float64) error {
	if !finite(price) {
		return fmt.Errorf("%w: price must be a finite number", ErrInvalidListing)
	}
	if price < 0 {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidListing)
	}
	return nil
}

func validateFeatures(f Features) error {
	if !finite(f.Area) {
		return fmt.Errorf("%w: area must be a finite number", ErrInvalidListing)
	}
	if f.Bedrooms < 0 || f.Bathrooms < 0 || f.Area < 0 || f.ParkingSpaces < 0 {
		return fmt.Errorf("%w: features must not be negative", ErrInvalidListing)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
