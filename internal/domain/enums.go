package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidType     = errors.New("invalid property type")
	ErrInvalidModality = errors.New("invalid modality")
	ErrInvalidStatus   = errors.New("invalid status")
)

type PropertyType string

const (
	TypeHouse        PropertyType = "House"
	TypeApartment    PropertyType = "Apartment"
	TypeLand         PropertyType = "Land"
	TypeCommercial   PropertyType = "Commercial"
	TypeFarm         PropertyType = "Farm"
	TypeRanch        PropertyType = "Ranch"
	TypeSmallholding PropertyType = "Smallholding"
)

// PropertyTypes lists every type in display order.
var PropertyTypes = []PropertyType{
	TypeHouse, TypeApartment, TypeLand, TypeCommercial, TypeFarm, TypeRanch, TypeSmallholding,
}

func (t PropertyType) Valid() bool {
	switch t {
	case TypeHouse, TypeApartment, TypeLand, TypeCommercial, TypeFarm, TypeRanch, TypeSmallholding:
		return true
	}
	return false
}

// ParsePropertyType accepts canonical names in any case and the
// Portuguese labels written by earlier versions of the catalog.
func ParsePropertyType(s string) (PropertyType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "house", "casa":
		return TypeHouse, nil
	case "apartment", "apartamento":
		return TypeApartment, nil
	case "land", "terreno":
		return TypeLand, nil
	case "commercial", "comercial":
		return TypeCommercial, nil
	case "farm", "fazenda":
		return TypeFarm, nil
	case "ranch", "chácara", "chacara":
		return TypeRanch, nil
	case "smallholding", "sítio", "sitio":
		return TypeSmallholding, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidType, s)
}

func (t *PropertyType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*t = ""
		return nil
	}
	parsed, err := ParsePropertyType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

type Modality string

const (
	ModalitySale   Modality = "Sale"
	ModalityRental Modality = "Rental"
)

var Modalities = []Modality{ModalitySale, ModalityRental}

func (m Modality) Valid() bool {
	switch m {
	case ModalitySale, ModalityRental:
		return true
	}
	return false
}

func ParseModality(s string) (Modality, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sale", "venda":
		return ModalitySale, nil
	case "rental", "rent", "aluguel":
		return ModalityRental, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidModality, s)
}

func (m *Modality) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*m = ""
		return nil
	}
	parsed, err := ParseModality(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

type Status string

const (
	StatusAvailable Status = "Available"
	StatusSold      Status = "Sold"
	StatusRented    Status = "Rented"
)

var Statuses = []Status{StatusAvailable, StatusSold, StatusRented}

func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusSold, StatusRented:
		return true
	}
	return false
}

func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "available", "disponível", "disponivel":
		return StatusAvailable, nil
	case "sold", "vendido":
		return StatusSold, nil
	case "rented", "alugado":
		return StatusRented, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == "" {
		*s = ""
		return nil
	}
	parsed, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
