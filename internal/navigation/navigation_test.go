package navigation

import (
	"errors"
	"net/url"
	"reflect"
	"strings"
	"testing"

	"property-catalog/internal/domain"
)

type recordingHistory struct {
	pushed []string
}

func (h *recordingHistory) PushState(u *url.URL) {
	h.pushed = append(h.pushed, u.String())
}

type countingScroller struct {
	resets int
}

func (s *countingScroller) ScrollTo(x, y int) {
	if x == 0 && y == 0 {
		s.resets++
	}
}

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return u
}

func listings() []domain.Listing {
	return []domain.Listing{{ID: "a1", IsActive: true}, {ID: "b2", IsActive: true}}
}

func TestInitialState(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want State
	}{
		{"no parameter", "https://site.test/", Home},
		{"existing listing", "https://site.test/?property=b2", State{Page: PageProperty, SelectedID: "b2"}},
		{"unknown listing", "https://site.test/?property=zz", Home},
		{"empty parameter", "https://site.test/?property=", Home},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := InitialState(mustParse(t, tt.url), listings())
			if got != tt.want {
				t.Errorf("InitialState() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestToURL(t *testing.T) {
	base := mustParse(t, "https://site.test/catalog?utm=x&property=old#top")

	got := ToURL(base, State{Page: PageProperty, SelectedID: "a1"})
	if got.Query().Get(ListingParam) != "a1" || got.Query().Get("utm") != "x" {
		t.Errorf("property state: %s", got)
	}
	if got.Path != "/catalog" || got.Fragment != "top" {
		t.Errorf("path or fragment lost: %s", got)
	}

	for _, s := range []State{
		{Page: PageListings},
		{Page: PageHome},
		{Page: PageAdmin, SelectedID: "a1"},
		{Page: PageProperty},
	} {
		u := ToURL(base, s)
		if _, ok := u.Query()[ListingParam]; ok {
			t.Errorf("%+v: listing parameter kept in %s", s, u)
		}
	}

	if base.Query().Get(ListingParam) != "old" {
		t.Error("ToURL modified its input")
	}
}

func TestURLRoundTrip(t *testing.T) {
	s := State{Page: PageProperty, SelectedID: "a1"}
	if got := InitialState(ToURL(mustParse(t, "https://site.test/"), s), listings()); got != s {
		t.Errorf("round trip = %+v, want %+v", got, s)
	}
}

func TestControllerNavigate(t *testing.T) {
	history := &recordingHistory{}
	scroller := &countingScroller{}
	c := NewController(mustParse(t, "https://site.test/"), history, scroller)

	c.Navigate(PageProperty, "a1")
	if c.State() != (State{Page: PageProperty, SelectedID: "a1"}) {
		t.Fatalf("state = %+v", c.State())
	}
	if got := c.Location().Query().Get(ListingParam); got != "a1" {
		t.Errorf("location parameter = %q", got)
	}

	c.Navigate(PageListings, "")
	if _, ok := c.Location().Query()[ListingParam]; ok {
		t.Errorf("parameter not removed: %s", c.Location())
	}

	want := []string{"https://site.test/?property=a1", "https://site.test/"}
	if !reflect.DeepEqual(history.pushed, want) {
		t.Errorf("pushed %v, want %v", history.pushed, want)
	}
	if scroller.resets != 2 {
		t.Errorf("scroll resets = %d, want 2", scroller.resets)
	}

	c.Navigate(PageListings, "")
	if scroller.resets != 2 {
		t.Errorf("scroll reset without a state change")
	}
}

func TestResumeController(t *testing.T) {
	scroller := &countingScroller{}
	current := State{Page: PageProperty, SelectedID: "a1"}
	c := ResumeController(mustParse(t, "https://site.test/?property=a1&utm=x"), current, nil, scroller)

	c.Navigate(PageProperty, "a1")
	if scroller.resets != 0 {
		t.Errorf("scroll reset when staying on the same listing")
	}

	c.Navigate(PageHome, "")
	if scroller.resets != 1 {
		t.Errorf("scroll resets = %d, want 1", scroller.resets)
	}
	if got := c.Location().String(); got != "https://site.test/?utm=x" {
		t.Errorf("location = %q", got)
	}
}

func TestControllerRestore(t *testing.T) {
	scroller := &countingScroller{}
	c := NewController(mustParse(t, "https://site.test/?property=b2"), nil, scroller)

	if c.State() != Home {
		t.Fatalf("state before restore = %+v", c.State())
	}
	if !c.Restore(listings()) {
		t.Fatal("deep link not restored")
	}
	if c.State() != (State{Page: PageProperty, SelectedID: "b2"}) {
		t.Errorf("state = %+v", c.State())
	}
	if scroller.resets != 1 {
		t.Errorf("scroll resets = %d, want 1", scroller.resets)
	}
	if c.Restore(listings()) {
		t.Error("deep link applied twice")
	}

	stale := NewController(mustParse(t, "https://site.test/?property=gone"), nil, nil)
	if stale.Restore(listings()) || stale.State() != Home {
		t.Errorf("stale link: state = %+v", stale.State())
	}
}

func TestResolve(t *testing.T) {
	if _, ok := Resolve(State{Page: PageProperty, SelectedID: "a1"}, listings()); !ok {
		t.Error("existing listing not resolved")
	}
	if _, ok := Resolve(State{Page: PageProperty, SelectedID: "deleted"}, listings()); ok {
		t.Error("deleted listing resolved")
	}
	if _, ok := Resolve(State{Page: PageProperty}, listings()); ok {
		t.Error("property page without id resolved")
	}
	if _, ok := Resolve(State{Page: PageListings}, nil); !ok {
		t.Error("non-property page reported as not found")
	}
}

func TestParsePage(t *testing.T) {
	if p, err := ParsePage("admin"); err != nil || p != PageAdmin {
		t.Errorf("ParsePage(admin) = %q, %v", p, err)
	}
	if _, err := ParsePage("settings"); !errors.Is(err, ErrInvalidPage) {
		t.Errorf("expected ErrInvalidPage, got %v", err)
	}
}

func TestShareURL(t *testing.T) {
	got, err := ShareURL("https://imoveis.test/app?showAssistant=true#x", "a1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "https://imoveis.test/app?property=a1" {
		t.Errorf("ShareURL() = %q", got)
	}

	if _, err := ShareURL("not a url", "a1"); !errors.Is(err, ErrInvalidShareBase) {
		t.Errorf("expected ErrInvalidShareBase, got %v", err)
	}
	if _, err := ShareURL("https://imoveis.test/", ""); err == nil {
		t.Error("expected error for empty id")
	}
}

func TestContactURL(t *testing.T) {
	l := domain.Listing{
		Title:    "Casa Verde",
		Location: domain.Location{City: "Marabá", Neighborhood: "Centro"},
	}
	got := ContactURL("+55 (94) 99291-2256", l, "https://imoveis.test/?property=a1")

	if !strings.HasPrefix(got, "https://wa.me/5594992912256?text=") {
		t.Fatalf("ContactURL() = %q", got)
	}
	u := mustParse(t, got)
	text := u.Query().Get("text")
	if !strings.Contains(text, "Casa Verde (Centro, Marabá)") || !strings.HasSuffix(text, "?property=a1") {
		t.Errorf("message = %q", text)
	}
}
