package navigation

import (
	"net/url"

	"property-catalog/internal/domain"
)

// History receives every URL the controller wants in the address bar.
type History interface {
	PushState(u *url.URL)
}

// Scroller resets the viewport. Called with (0, 0) on every page or
// selection change, without animation.
type Scroller interface {
	ScrollTo(x, y int)
}

type Controller struct {
	state     State
	location  *url.URL
	pendingID string
	history   History
	scroller  Scroller
}

// NewController starts in the home state at location. The listing id of
// location is remembered until Restore runs against the fetched listings.
func NewController(location *url.URL, history History, scroller Scroller) *Controller {
	return &Controller{
		state:     Home,
		location:  cloneURL(location),
		pendingID: ListingIDFromURL(location),
		history:   history,
		scroller:  scroller,
	}
}

// ResumeController continues a session that is already showing state at
// location. Used when the state lives with the client between requests.
func ResumeController(location *url.URL, state State, history History, scroller Scroller) *Controller {
	return &Controller{
		state:    state,
		location: cloneURL(location),
		history:  history,
		scroller: scroller,
	}
}

func (c *Controller) State() State {
	return c.state
}

// Location is the URL currently shown to the user.
func (c *Controller) Location() *url.URL {
	return cloneURL(c.location)
}

// Restore applies the deep link captured at construction once the initial
// fetch has resolved. It reports whether the link matched a listing.
func (c *Controller) Restore(listings []domain.Listing) bool {
	id := c.pendingID
	c.pendingID = ""

	if id == "" {
		return false
	}
	if _, ok := Find(listings, id); !ok {
		return false
	}
	c.setState(State{Page: PageProperty, SelectedID: id})
	return true
}

// Navigate moves to page with an optional listing id and pushes the
// matching URL to the history without reloading.
func (c *Controller) Navigate(page Page, id string) {
	next := State{Page: page, SelectedID: id}

	c.location = ToURL(c.location, next)
	if c.history != nil {
		c.history.PushState(c.Location())
	}
	c.setState(next)
}

func (c *Controller) setState(next State) {
	changed := next != c.state
	c.state = next
	if changed && c.scroller != nil {
		c.scroller.ScrollTo(0, 0)
	}
}

func cloneURL(u *url.URL) *url.URL {
	if u == nil {
		return &url.URL{}
	}
	copied := *u
	return &copied
}
