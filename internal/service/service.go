package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"property-catalog/internal/domain"
	"property-catalog/internal/filter"
	"property-catalog/internal/infrastructure/metrics"
	"property-catalog/internal/navigation"
	"property-catalog/internal/repository"
	"property-catalog/internal/store"
	"property-catalog/internal/view"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrInvalidID       = errors.New("invalid listing ID")
	ErrListingNotFound = errors.New("listing not found")
)

// LoadRequest is a fresh page load at Location.
type LoadRequest struct {
	Location      *url.URL
	Criteria      domain.Criteria
	Authenticated bool
}

// NavigateRequest moves a client from its current state to Page/ID.
// Criteria are echoed back untouched whatever the target page.
type NavigateRequest struct {
	From          navigation.State
	Page          navigation.Page
	ID            string
	Location      *url.URL
	Criteria      domain.Criteria
	Authenticated bool
}

type ShareLinks struct {
	URL     string `json:"url"`
	Contact string `json:"contact,omitempty"`
}

type RetryResult struct {
	Count int         `json:"count"`
	Error *view.Error `json:"error,omitempty"`
}

type CatalogService interface {
	Bootstrap(ctx context.Context) error
	Retry(ctx context.Context) RetryResult
	Load(ctx context.Context, req LoadRequest) (view.Page, error)
	Navigate(ctx context.Context, req NavigateRequest) (view.Page, error)
	Search(ctx context.Context, criteria domain.Criteria) []domain.Listing
	GetListing(ctx context.Context, id string) (domain.Listing, error)
	Share(ctx context.Context, id string, base *url.URL) (ShareLinks, error)
	AdminListings(ctx context.Context) []domain.Listing
	CreateListing(ctx context.Context, draft domain.Draft) (domain.Listing, error)
	UpdateListing(ctx context.Context, id string, version int, patch domain.Patch) (domain.Listing, error)
	DeleteListing(ctx context.Context, id string, confirmer store.Confirmer) error
}

type catalogService struct {
	store    *store.Store
	renderer *view.Renderer
	metrics  *metrics.ServiceMetrics
	tracer   trace.Tracer
}

func NewCatalogService(store *store.Store, settings view.Settings, metrics *metrics.ServiceMetrics) CatalogService {
	tracer := otel.Tracer("property-catalog/service")
	return &catalogService{
		store:    store,
		renderer: view.NewRenderer(settings),
		metrics:  metrics,
		tracer:   tracer,
	}
}

// Bootstrap runs the initial fetch. A failure is recorded for the views
// and returned, but the service stays usable.
func (s *catalogService) Bootstrap(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "Bootstrap")
	defer span.End()

	startTime := time.Now()
	status := "success"

	defer func() {
		s.metrics.Observe("Bootstrap", status, startTime)
	}()

	if err := s.fetch(ctx); err != nil {
		status = "error"
		span.RecordError(err)
		return err
	}
	return nil
}

func (s *catalogService) Retry(ctx context.Context) RetryResult {
	ctx, span := s.tracer.Start(ctx, "Retry")
	defer span.End()

	startTime := time.Now()
	status := "success"

	defer func() {
		s.metrics.Observe("Retry", status, startTime)
	}()

	if err := s.fetch(ctx); err != nil {
		status = "error"
		span.RecordError(err)
		kind := store.Classify(err)
		var fetchErr *store.FetchError
		if errors.As(err, &fetchErr) {
			kind = fetchErr.Kind
		}
		return RetryResult{
			Count: len(s.store.Snapshot()),
			Error: &view.Error{Kind: kind, Message: kind.Message(), Retry: view.RetryAction},
		}
	}
	return RetryResult{Count: len(s.store.Snapshot())}
}

// Load renders the first page of a session. A listing id in the location
// opens its detail page once the catalog is known.
func (s *catalogService) Load(ctx context.Context, req LoadRequest) (view.Page, error) {
	ctx, span := s.tracer.Start(ctx, "Load")
	defer span.End()

	startTime := time.Now()
	status := "success"

	defer func() {
		s.metrics.Observe("Load", status, startTime)
	}()

	scroll := &scrollRecorder{}
	controller := navigation.NewController(req.Location, nil, scroll)

	if !s.store.Loaded() {
		if err := s.fetch(ctx); err != nil {
			status = "fetch_error"
			span.RecordError(err)
		}
	}

	listings := s.store.Snapshot()
	if controller.Restore(listings) {
		span.SetAttributes(attribute.String("listing.id", controller.State().SelectedID))
	}

	return s.renderer.Render(view.Input{
		State:         controller.State(),
		Location:      controller.Location(),
		ResetScroll:   scroll.reset,
		Criteria:      req.Criteria,
		Listings:      listings,
		Authenticated: req.Authenticated,
		FetchErr:      s.store.LastError(),
	}), nil
}

func (s *catalogService) Navigate(ctx context.Context, req NavigateRequest) (view.Page, error) {
	_, span := s.tracer.Start(ctx, "Navigate")
	defer span.End()

	startTime := time.Now()
	status := "success"

	defer func() {
		s.metrics.Observe("Navigate", status, startTime)
	}()

	if !req.Page.Valid() {
		status = "error"
		return view.Page{}, fmt.Errorf("%w: %q", navigation.ErrInvalidPage, req.Page)
	}
	from := req.From
	if !from.Page.Valid() {
		from = navigation.Home
	}

	span.SetAttributes(
		attribute.String("navigation.page", string(req.Page)),
		attribute.String("listing.id", req.ID),
	)

	history := &historyRecorder{}
	scroll := &scrollRecorder{}
	controller := navigation.ResumeController(req.Location, from, history, scroll)
	controller.Navigate(req.Page, req.ID)

	return s.renderer.Render(view.Input{
		State:         controller.State(),
		Location:      history.last(controller),
		ResetScroll:   scroll.reset,
		Criteria:      req.Criteria,
		Listings:      s.store.Snapshot(),
		Authenticated: req.Authenticated,
		FetchErr:      s.store.LastError(),
	}), nil
}

func (s *catalogService) Search(ctx context.Context, criteria domain.Criteria) []domain.Listing {
	_, span := s.tracer.Start(ctx, "Search")
	defer span.End()

	startTime := time.Now()
	defer func() {
		s.metrics.Observe("Search", "success", startTime)
	}()

	results := filter.Apply(s.store.Snapshot(), criteria)
	span.SetAttributes(attribute.Int("listings.count", len(results)))
	return results
}

// GetListing returns a publicly visible listing.
func (s *catalogService) GetListing(ctx context.Context, id string) (domain.Listing, error) {
	if id == "" {
		return domain.Listing{}, ErrInvalidID
	}

	_, span := s.tracer.Start(ctx, "GetListing")
	defer span.End()

	startTime := time.Now()
	status := "success"

	defer func() {
		s.metrics.Observe("GetListing", status, startTime)
	}()

	span.SetAttributes(attribute.String("listing.id", id))

	l, ok := s.store.Get(id)
	if !ok || !l.IsActive {
		status = "not_found"
		return domain.Listing{}, ErrListingNotFound
	}
	return l, nil
}

// Share builds the public link of a listing and the contact link that
// carries it. base is used when no public URL is configured.
func (s *catalogService) Share(ctx context.Context, id string, base *url.URL) (ShareLinks, error) {
	l, err := s.GetListing(ctx, id)
	if err != nil {
		return ShareLinks{}, err
	}

	detail := s.renderer.Detail(l, base)
	if detail.ShareURL == "" {
		return ShareLinks{}, navigation.ErrInvalidShareBase
	}
	return ShareLinks{URL: detail.ShareURL, Contact: detail.ContactURL}, nil
}

// AdminListings returns the whole collection, inactive listings included.
func (s *catalogService) AdminListings(ctx context.Context) []domain.Listing {
	_, span := s.tracer.Start(ctx, "AdminListings")
	defer span.End()

	listings := s.store.Snapshot()
	span.SetAttributes(attribute.Int("listings.count", len(listings)))
	return listings
}

func (s *catalogService) CreateListing(ctx context.Context, draft domain.Draft) (domain.Listing, error) {
	ctx, span := s.tracer.Start(ctx, "CreateListing")
	defer span.End()

	startTime := time.Now()
	status := "success"

	defer func() {
		s.metrics.Observe("CreateListing", status, startTime)
	}()

	created, err := s.store.Create(ctx, draft)
	if err != nil {
		status = "error"
		span.RecordError(err)
		return domain.Listing{}, err
	}

	s.metrics.Listings.Set(float64(len(s.store.Snapshot())))
	span.SetAttributes(
		attribute.String("listing.id", created.ID),
		attribute.String("listing.title", created.Title),
		attribute.Float64("listing.price", created.Price),
	)
	return created, nil
}

// UpdateListing patches id. A zero version uses the one held in memory.
func (s *catalogService) UpdateListing(ctx context.Context, id string, version int, patch domain.Patch) (domain.Listing, error) {
	if id == "" {
		return domain.Listing{}, ErrInvalidID
	}

	ctx, span := s.tracer.Start(ctx, "UpdateListing")
	defer span.End()

	startTime := time.Now()
	status := "success"

	defer func() {
		s.metrics.Observe("UpdateListing", status, startTime)
	}()

	span.SetAttributes(
		attribute.String("listing.id", id),
		attribute.Int("listing.version", version),
	)

	var (
		updated domain.Listing
		err     error
	)
	if version > 0 {
		updated, err = s.store.UpdateAt(ctx, id, version, patch)
	} else {
		updated, err = s.store.Update(ctx, id, patch)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			status = "not_found"
			return domain.Listing{}, ErrListingNotFound
		}
		if errors.Is(err, repository.ErrVersionConflict) {
			status = "conflict"
			return domain.Listing{}, err
		}
		status = "error"
		span.RecordError(err)
		return domain.Listing{}, err
	}

	return updated, nil
}

func (s *catalogService) DeleteListing(ctx context.Context, id string, confirmer store.Confirmer) error {
	if id == "" {
		return ErrInvalidID
	}

	ctx, span := s.tracer.Start(ctx, "DeleteListing")
	defer span.End()

	startTime := time.Now()
	status := "success"

	defer func() {
		s.metrics.Observe("DeleteListing", status, startTime)
	}()

	span.SetAttributes(attribute.String("listing.id", id))

	if err := s.store.Delete(ctx, id, confirmer); err != nil {
		switch {
		case errors.Is(err, store.ErrNotConfirmed):
			status = "not_confirmed"
		case errors.Is(err, repository.ErrNotFound):
			status = "not_found"
			return ErrListingNotFound
		default:
			status = "error"
			span.RecordError(err)
		}
		return err
	}

	s.metrics.Listings.Set(float64(len(s.store.Snapshot())))
	return nil
}

func (s *catalogService) fetch(ctx context.Context) error {
	listings, err := s.store.FetchAll(ctx)
	if err != nil {
		var fetchErr *store.FetchError
		if errors.As(err, &fetchErr) {
			s.metrics.FetchFailures.WithLabelValues(string(fetchErr.Kind)).Inc()
		}
		return err
	}
	s.metrics.Listings.Set(float64(len(listings)))
	return nil
}

// historyRecorder and scrollRecorder stand in for the browser: the URL
// and the scroll reset travel back in the response instead.
type historyRecorder struct {
	pushed []*url.URL
}

func (h *historyRecorder) PushState(u *url.URL) {
	h.pushed = append(h.pushed, u)
}

func (h *historyRecorder) last(c *navigation.Controller) *url.URL {
	if len(h.pushed) == 0 {
		return c.Location()
	}
	return h.pushed[len(h.pushed)-1]
}

type scrollRecorder struct {
	reset bool
}

func (s *scrollRecorder) ScrollTo(x, y int) {
	if x == 0 && y == 0 {
		s.reset = true
	}
}
