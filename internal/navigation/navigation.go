// Package navigation keeps the current page and selected listing in sync
// with the address bar of the client.
//
// URL to state happens once, on load, through InitialState. State to URL
// happens on every navigation through ToURL. Both are pure; Controller only
// sequences them and notifies the History and Scroller collaborators.
package navigation

import (
	"errors"
	"fmt"
	"net/url"

	"property-catalog/internal/domain"
)

// ListingParam is the query parameter carrying the selected listing id.
const ListingParam = "property"

var ErrInvalidPage = errors.New("invalid page")

type Page string

const (
	PageHome     Page = "home"
	PageListings Page = "listings"
	PageProperty Page = "property"
	PageAdmin    Page = "admin"
)

func (p Page) Valid() bool {
	switch p {
	case PageHome, PageListings, PageProperty, PageAdmin:
		return true
	}
	return false
}

func ParsePage(s string) (Page, error) {
	p := Page(s)
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPage, s)
	}
	return p, nil
}

type State struct {
	Page       Page   `json:"page"`
	SelectedID string `json:"selectedId,omitempty"`
}

// Home is the state every session starts in.
var Home = State{Page: PageHome}

// ListingIDFromURL returns the listing id carried by u, or "".
func ListingIDFromURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	return u.Query().Get(ListingParam)
}

// InitialState maps a freshly loaded URL to a state once the listings are
// known: a deep link to an existing listing opens its detail page, anything
// else opens home.
func InitialState(u *url.URL, listings []domain.Listing) State {
	id := ListingIDFromURL(u)
	if id == "" {
		return Home
	}
	if _, ok := Find(listings, id); !ok {
		return Home
	}
	return State{Page: PageProperty, SelectedID: id}
}

// ToURL returns a copy of u reflecting s. Only the listing parameter is
// touched; path, fragment and other parameters are kept.
func ToURL(u *url.URL, s State) *url.URL {
	out := cloneURL(u)

	q := out.Query()
	if s.Page == PageProperty && s.SelectedID != "" {
		q.Set(ListingParam, s.SelectedID)
	} else {
		q.Del(ListingParam)
	}
	out.RawQuery = q.Encode()

	return out
}

// Find looks a listing up by id.
func Find(listings []domain.Listing, id string) (domain.Listing, bool) {
	for _, l := range listings {
		if l.ID == id {
			return l, true
		}
	}
	return domain.Listing{}, false
}

// Resolve returns the listing shown by s. It reports false when s is the
// property page and its id is missing from listings, which the view turns
// into the not-found page.
func Resolve(s State, listings []domain.Listing) (domain.Listing, bool) {
	if s.Page != PageProperty {
		return domain.Listing{}, true
	}
	return Find(listings, s.SelectedID)
}
