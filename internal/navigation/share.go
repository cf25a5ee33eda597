package navigation

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"property-catalog/internal/domain"
)

var ErrInvalidShareBase = errors.New("invalid public base url")

const contactTemplate = "Olá! Tenho interesse no imóvel: %s (%s, %s). Link: %s"

// ShareURL builds the public link of a listing: base without its query
// string or fragment, plus the listing parameter.
func ShareURL(base, id string) (string, error) {
	if id == "" {
		return "", errors.New("listing id is required")
	}

	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidShareBase, base)
	}

	u.RawQuery = url.Values{ListingParam: {id}}.Encode()
	u.Fragment = ""
	u.RawFragment = ""

	return u.String(), nil
}

// ContactURL builds the WhatsApp link that opens a chat with phone,
// pre-filled with an interest message about l.
func ContactURL(phone string, l domain.Listing, shareURL string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)

	message := fmt.Sprintf(contactTemplate, l.Title, l.Location.Neighborhood, l.Location.City, shareURL)

	return "https://wa.me/" + digits + "?text=" + url.QueryEscape(message)
}
