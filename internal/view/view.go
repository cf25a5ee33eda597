// Package view builds the JSON view model of each page from the catalog
// state. It holds no state of its own.
package view

import (
	"math"
	"net/url"
	"strconv"
	"strings"

	"property-catalog/internal/domain"
	"property-catalog/internal/filter"
	"property-catalog/internal/navigation"
	"property-catalog/internal/store"
)

const (
	RentalSuffix = "/month"
	RetryAction  = "/api/retry"
)

// Settings are the presentation knobs of the site.
type Settings struct {
	Currency         string
	PlaceholderImage string
	FeaturedCount    int
	ContactPhone     string
	PublicURL        string
}

// Input is everything a page is rendered from.
type Input struct {
	State         navigation.State
	Location      *url.URL
	ResetScroll   bool
	Criteria      domain.Criteria
	Listings      []domain.Listing
	Authenticated bool
	FetchErr      *store.FetchError
}

type Page struct {
	Page        navigation.Page `json:"page"`
	SelectedID  string          `json:"selectedId,omitempty"`
	Location    string          `json:"location"`
	ResetScroll bool            `json:"resetScroll"`
	Filters     domain.Criteria `json:"filters"`
	Options     Options         `json:"options"`
	Featured    []Card          `json:"featured,omitempty"`
	Results     []Card          `json:"results,omitempty"`
	Count       int             `json:"count"`
	Property    *Detail         `json:"property,omitempty"`
	NotFound    *NotFound       `json:"notFound,omitempty"`
	Admin       *Admin          `json:"admin,omitempty"`
	Error       *Error          `json:"error,omitempty"`
}

// Options feed the search filter selects.
type Options struct {
	Types      []domain.PropertyType `json:"types"`
	Modalities []domain.Modality     `json:"modalities"`
}

type Card struct {
	ID           string              `json:"id"`
	Title        string              `json:"title"`
	Price        string              `json:"price"`
	Cover        string              `json:"cover"`
	Type         domain.PropertyType `json:"type"`
	Modality     domain.Modality     `json:"modality"`
	Status       domain.Status       `json:"status"`
	Available    bool                `json:"available"`
	City         string              `json:"city"`
	Neighborhood string              `json:"neighborhood"`
	Features     domain.Features     `json:"features"`
}

type Detail struct {
	Card
	Description string   `json:"description"`
	Address     string   `json:"address,omitempty"`
	Images      []string `json:"images"`
	ShareURL    string   `json:"shareUrl,omitempty"`
	ContactURL  string   `json:"contactUrl,omitempty"`
}

// Action is a navigation the client can trigger from a terminal page.
type Action struct {
	Label string          `json:"label"`
	Page  navigation.Page `json:"page"`
}

type NotFound struct {
	Message string `json:"message"`
	Action  Action `json:"action"`
}

type Admin struct {
	AuthRequired bool       `json:"authRequired"`
	Listings     []AdminRow `json:"listings,omitempty"`
}

type AdminRow struct {
	Card
	IsActive  bool   `json:"isActive"`
	CreatedAt string `json:"createdAt"`
	Version   int    `json:"version,omitempty"`
}

type Error struct {
	Kind    store.Kind `json:"kind"`
	Message string     `json:"message"`
	Retry   string     `json:"retry"`
}

type Renderer struct {
	settings Settings
}

func NewRenderer(settings Settings) *Renderer {
	return &Renderer{settings: settings}
}

func (r *Renderer) Render(in Input) Page {
	page := Page{
		Page:        in.State.Page,
		SelectedID:  in.State.SelectedID,
		ResetScroll: in.ResetScroll,
		Filters:     in.Criteria,
		Options: Options{
			Types:      domain.PropertyTypes,
			Modalities: domain.Modalities,
		},
	}
	if in.Location != nil {
		page.Location = in.Location.String()
	}
	if in.FetchErr != nil {
		page.Error = &Error{
			Kind:    in.FetchErr.Kind,
			Message: in.FetchErr.Kind.Message(),
			Retry:   RetryAction,
		}
	}

	switch in.State.Page {
	case navigation.PageHome:
		page.Featured = r.Cards(filter.Featured(in.Listings, r.settings.FeaturedCount))
		page.Count = len(page.Featured)

	case navigation.PageListings:
		page.Results = r.Cards(filter.Apply(in.Listings, in.Criteria))
		page.Count = len(page.Results)

	case navigation.PageProperty:
		l, ok := navigation.Resolve(in.State, in.Listings)
		if !ok || !l.IsActive {
			page.NotFound = &NotFound{
				Message: "This property is no longer available.",
				Action:  Action{Label: "Back to home", Page: navigation.PageHome},
			}
			break
		}
		detail := r.Detail(l, in.Location)
		page.Property = &detail
		page.Count = 1

	case navigation.PageAdmin:
		if !in.Authenticated {
			page.Admin = &Admin{AuthRequired: true}
			break
		}
		page.Admin = &Admin{Listings: r.AdminRows(in.Listings)}
		page.Count = len(page.Admin.Listings)
	}

	return page
}

func (r *Renderer) Cards(listings []domain.Listing) []Card {
	cards := make([]Card, 0, len(listings))
	for _, l := range listings {
		cards = append(cards, r.Card(l))
	}
	return cards
}

func (r *Renderer) Card(l domain.Listing) Card {
	cover := l.Cover()
	if cover == "" {
		cover = r.settings.PlaceholderImage
	}
	return Card{
		ID:           l.ID,
		Title:        l.Title,
		Price:        PriceLabel(r.settings.Currency, l.Price, l.Modality),
		Cover:        cover,
		Type:         l.Type,
		Modality:     l.Modality,
		Status:       l.Status,
		Available:    l.Status == domain.StatusAvailable,
		City:         l.Location.City,
		Neighborhood: l.Location.Neighborhood,
		Features:     l.Features,
	}
}

// Detail renders the property page. Share and contact links are left
// empty when no absolute base URL is known.
func (r *Renderer) Detail(l domain.Listing, location *url.URL) Detail {
	images := append([]string{}, l.Images...)
	if len(images) == 0 && r.settings.PlaceholderImage != "" {
		images = append(images, r.settings.PlaceholderImage)
	}

	d := Detail{
		Card:        r.Card(l),
		Description: l.Description,
		Address:     l.Location.Address,
		Images:      images,
	}

	base := r.settings.PublicURL
	if base == "" && location != nil {
		base = location.String()
	}
	if share, err := navigation.ShareURL(base, l.ID); err == nil {
		d.ShareURL = share
		if r.settings.ContactPhone != "" {
			d.ContactURL = navigation.ContactURL(r.settings.ContactPhone, l, share)
		}
	}
	return d
}

// AdminRows lists every listing, inactive ones included.
func (r *Renderer) AdminRows(listings []domain.Listing) []AdminRow {
	rows := make([]AdminRow, 0, len(listings))
	for _, l := range listings {
		rows = append(rows, AdminRow{
			Card:      r.Card(l),
			IsActive:  l.IsActive,
			CreatedAt: l.CreatedAt,
			Version:   l.Version,
		})
	}
	return rows
}

// PriceLabel formats price without decimals and with "." as the thousands
// separator, e.g. "R$ 1.800.000" or "R$ 3.500/month".
func PriceLabel(currency string, price float64, modality domain.Modality) string {
	amount := int64(math.Round(price))
	negative := amount < 0
	if negative {
		amount = -amount
	}
	digits := strconv.FormatInt(amount, 10)

	var b strings.Builder
	if currency != "" {
		b.WriteString(currency)
		b.WriteByte(' ')
	}
	if negative {
		b.WriteByte('-')
	}
	for i, ch := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(ch)
	}
	if modality == domain.ModalityRental {
		b.WriteString(RentalSuffix)
	}
	return b.String()
}
