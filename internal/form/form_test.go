package form

import (
	"encoding/json"
	"errors"
	"net/url"
	"reflect"
	"testing"

	"property-catalog/internal/domain"
)

func TestFromValuesRecombinesNestedRecords(t *testing.T) {
	values := url.Values{
		"title":         {" Casa com quintal "},
		"description":   {"Três quartos"},
		"price":         {"450000"},
		"type":          {"Casa"},
		"modality":      {"Aluguel"},
		"status":        {"Disponível"},
		"city":          {"Marabá"},
		"neighborhood":  {"Cidade Nova"},
		"bedrooms":      {"3"},
		"bathrooms":     {"2"},
		"area":          {"180,5"},
		"parkingSpaces": {"2"},
		"images":        {"https://img/1.jpg\nhttps://img/2.jpg, https://img/3.jpg", "https://img/4.jpg"},
		"isActive":      {"off"},
	}

	f, err := FromValues(values)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	d := f.Draft()
	if d.Title != "Casa com quintal" || d.Price != 450000 {
		t.Errorf("scalar fields = %q %v", d.Title, d.Price)
	}
	if d.Type != domain.TypeHouse || d.Modality != domain.ModalityRental || d.Status != domain.StatusAvailable {
		t.Errorf("enums = %s %s %s", d.Type, d.Modality, d.Status)
	}
	if d.Location != (domain.Location{City: "Marabá", Neighborhood: "Cidade Nova"}) {
		t.Errorf("location = %+v", d.Location)
	}
	if d.Features != (domain.Features{Bedrooms: 3, Bathrooms: 2, Area: 180.5, ParkingSpaces: 2}) {
		t.Errorf("features = %+v", d.Features)
	}
	wantImages := []string{"https://img/1.jpg", "https://img/2.jpg", "https://img/3.jpg", "https://img/4.jpg"}
	if !reflect.DeepEqual(d.Images, wantImages) {
		t.Errorf("images = %v", d.Images)
	}
	if d.IsActive {
		t.Error("isActive=off should deactivate the listing")
	}
	if err := d.Validate(); err != nil {
		t.Errorf("draft should be valid: %v", err)
	}
}

func TestFromValuesDefaults(t *testing.T) {
	f, err := FromValues(url.Values{"title": {"Lote"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Type != domain.TypeHouse || f.Modality != domain.ModalitySale || f.Status != domain.StatusAvailable || !f.IsActive {
		t.Errorf("defaults not applied: %+v", f)
	}
	if f.Images == nil || len(f.Images) != 0 {
		t.Errorf("images = %#v, want empty slice", f.Images)
	}
}

func TestFromValuesRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name   string
		values url.Values
	}{
		{"unknown type", url.Values{"type": {"Castle"}}},
		{"unknown modality", url.Values{"modality": {"Leilão"}}},
		{"unknown status", url.Values{"status": {"Reservado"}}},
		{"price not a number", url.Values{"price": {"a lot"}}},
		{"price NaN", url.Values{"price": {"NaN"}}},
		{"price infinite", url.Values{"price": {"+Inf"}}},
		{"area infinite", url.Values{"area": {"-Inf"}}},
		{"comma thousands", url.Values{"price": {"1,800,000"}}},
		{"fractional bedrooms", url.Values{"bedrooms": {"2.5"}}},
		{"bad isActive", url.Values{"isActive": {"maybe"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := FromValues(tt.values); !errors.Is(err, ErrInvalidForm) {
				t.Errorf("expected ErrInvalidForm, got %v", err)
			}
		})
	}
}

func TestFromValuesPriceNotation(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{"1800000", 1800000},
		{"1.800.000", 1800000},
		{"1.800.000,00", 1800000},
		{"3.500", 3500},
		{"3500,50", 3500.5},
		{"3500.5", 3500.5},
		{"99.90", 99.9},
	}
	for _, tt := range tests {
		f, err := FromValues(url.Values{"title": {"Casa"}, "price": {tt.raw}})
		if err != nil {
			t.Errorf("price %q: %v", tt.raw, err)
			continue
		}
		if f.Price != tt.want {
			t.Errorf("price %q = %v, want %v", tt.raw, f.Price, tt.want)
		}
	}
}

func TestJSONDecodeOntoDefaults(t *testing.T) {
	f := Default()
	body := `{"title":"Apto","price":3500,"modality":"Rental","city":"Marabá","images":["a.jpg"]}`
	if err := json.Unmarshal([]byte(body), &f); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Type != domain.TypeHouse || f.Modality != domain.ModalityRental || !f.IsActive {
		t.Errorf("form = %+v", f)
	}

	bad := Default()
	if err := json.Unmarshal([]byte(`{"type":"Castle"}`), &bad); !errors.Is(err, domain.ErrInvalidType) {
		t.Errorf("expected ErrInvalidType, got %v", err)
	}
}

func TestFromListingRoundTrip(t *testing.T) {
	l := domain.Listing{
		ID:          "abc",
		Title:       "Sítio",
		Description: "Beira rio",
		Price:       900000,
		Type:        domain.TypeSmallholding,
		Modality:    domain.ModalitySale,
		Status:      domain.StatusSold,
		Location:    domain.Location{City: "Marabá", Neighborhood: "Zona rural", Address: "BR-230 km 12"},
		Features:    domain.Features{Bedrooms: 4, Bathrooms: 3, Area: 50000, ParkingSpaces: 6},
		Images:      []string{"x.jpg"},
		IsActive:    true,
		CreatedAt:   "2024-01-01T00:00:00Z",
		Version:     3,
	}

	updated := FromListing(l).Patch().ApplyTo(l)
	if !reflect.DeepEqual(updated, l) {
		t.Errorf("full patch from prefilled form changed the listing:\n got %+v\nwant %+v", updated, l)
	}
}

func TestPatchPopulatesEveryField(t *testing.T) {
	p := Default().Patch()
	v := reflect.ValueOf(p)
	for i := 0; i < v.NumField(); i++ {
		if v.Field(i).IsNil() {
			t.Errorf("field %s not populated", v.Type().Field(i).Name)
		}
	}
}
