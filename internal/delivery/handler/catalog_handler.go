package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"property-catalog/internal/delivery/middleware"
	"property-catalog/internal/domain"
	"property-catalog/internal/infrastructure/metrics"
	"property-catalog/internal/navigation"
	"property-catalog/internal/service"
	"property-catalog/pkg/logger"
	"property-catalog/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type CatalogHandler struct {
	service service.CatalogService
	logger  *logger.Loggers
	metrics *metrics.HandlerMetrics
	tracer  trace.Tracer
}

// navigateRequest is the body of POST /navigate.
type navigateRequest struct {
	From     navigation.State `json:"from"`
	Page     navigation.Page  `json:"page"`
	ID       string           `json:"id"`
	Location string           `json:"location"`
	Filters  domain.Criteria  `json:"filters"`
}

func NewCatalogHandler(service service.CatalogService, logger *logger.Loggers, metrics *metrics.HandlerMetrics) *CatalogHandler {
	tracer := otel.Tracer("property-catalog/handler")
	return &CatalogHandler{
		service: service,
		logger:  logger,
		metrics: metrics,
		tracer:  tracer,
	}
}

// Load renders the first page for the requested URL, following a
// ?property=<id> deep link when it names a known listing.
func (h *CatalogHandler) Load(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "Load")
	defer span.End()

	startTime := time.Now()
	status := "success"

	defer func() {
		h.metrics.Observe("GET", "/", status, startTime)
	}()

	criteria, err := domain.ParseCriteria(r.URL.Query())
	if err != nil {
		status = "error"
		utils.RespondWithErrorJSON(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := h.service.Load(ctx, service.LoadRequest{
		Location:      requestURL(r),
		Criteria:      criteria,
		Authenticated: middleware.IsAdmin(r.Context()),
	})
	if err != nil {
		status = "error"
		h.logger.ErrorLogger.Error("failed to load page", utils.Err(err))
		span.RecordError(err)
		utils.RespondWithErrorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if page.Error != nil {
		status = "fetch_error"
	}

	span.SetAttributes(attribute.String("navigation.page", string(page.Page)))
	utils.RespondWithJSON(w, http.StatusOK, page)
}

func (h *CatalogHandler) Navigate(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "Navigate")
	defer span.End()

	startTime := time.Now()
	status := "success"

	defer func() {
		h.metrics.Observe("POST", "/navigate", status, startTime)
	}()

	var req navigateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		status = "error"
		span.RecordError(err)
		utils.RespondWithErrorJSON(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	location := requestOrigin(r)
	if req.Location != "" {
		parsed, err := url.Parse(req.Location)
		if err != nil {
			status = "error"
			utils.RespondWithErrorJSON(w, http.StatusBadRequest, "invalid location")
			return
		}
		location = parsed
	}

	span.SetAttributes(
		attribute.String("navigation.page", string(req.Page)),
		attribute.String("listing.id", req.ID),
	)

	page, err := h.service.Navigate(ctx, service.NavigateRequest{
		From:          req.From,
		Page:          req.Page,
		ID:            req.ID,
		Location:      location,
		Criteria:      req.Filters,
		Authenticated: middleware.IsAdmin(r.Context()),
	})
	if err != nil {
		if errors.Is(err, navigation.ErrInvalidPage) {
			status = "error"
			utils.RespondWithErrorJSON(w, http.StatusBadRequest, err.Error())
			return
		}
		status = "error"
		h.logger.ErrorLogger.Error("failed to navigate", utils.Err(err))
		span.RecordError(err)
		utils.RespondWithErrorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, page)
}

// SearchListings returns the active listings matching the query criteria.
func (h *CatalogHandler) SearchListings(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "SearchListings")
	defer span.End()

	startTime := time.Now()
	status := "success"

	defer func() {
		h.metrics.Observe("GET", "/api/listings", status, startTime)
	}()

	criteria, err := domain.ParseCriteria(r.URL.Query())
	if err != nil {
		status = "error"
		utils.RespondWithErrorJSON(w, http.StatusBadRequest, err.Error())
		return
	}

	span.SetAttributes(
		attribute.String("criteria.city", criteria.City),
		attribute.String("criteria.type", string(criteria.Type)),
		attribute.String("criteria.modality", string(criteria.Modality)),
	)

	listings := h.service.Search(ctx, criteria)
	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"listings": listings,
		"count":    len(listings),
		"filters":  criteria,
	})
}

func (h *CatalogHandler) GetListing(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetListing")
	defer span.End()

	startTime := time.Now()
	status := "success"

	defer func() {
		h.metrics.Observe("GET", "/api/listings/{id}", status, startTime)
	}()

	id := chi.URLParam(r, "id")
	span.SetAttributes(attribute.String("listing.id", id))

	listing, err := h.service.GetListing(ctx, id)
	if err != nil {
		status = h.respondLookupError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, listing)
}

func (h *CatalogHandler) ShareListing(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ShareListing")
	defer span.End()

	startTime := time.Now()
	status := "success"

	defer func() {
		h.metrics.Observe("GET", "/api/listings/{id}/share", status, startTime)
	}()

	id := chi.URLParam(r, "id")
	span.SetAttributes(attribute.String("listing.id", id))

	links, err := h.service.Share(ctx, id, requestOrigin(r))
	if err != nil {
		status = h.respondLookupError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, links)
}

// Retry re-runs the catalog fetch after a failure.
func (h *CatalogHandler) Retry(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "Retry")
	defer span.End()

	startTime := time.Now()
	status := "success"

	defer func() {
		h.metrics.Observe("POST", "/api/retry", status, startTime)
	}()

	result := h.service.Retry(ctx)
	if result.Error != nil {
		status = "fetch_error"
		h.logger.ErrorLogger.Warn("catalog fetch failed again", "kind", result.Error.Kind)
		utils.RespondWithJSON(w, http.StatusBadGateway, result)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, result)
}

func (h *CatalogHandler) respondLookupError(w http.ResponseWriter, err error) string {
	switch {
	case errors.Is(err, service.ErrInvalidID):
		utils.RespondWithErrorJSON(w, http.StatusBadRequest, "invalid id parameter")
		return "error"
	case errors.Is(err, service.ErrListingNotFound):
		utils.RespondWithErrorJSON(w, http.StatusNotFound, "listing not found")
		return "not_found"
	case errors.Is(err, navigation.ErrInvalidShareBase):
		utils.RespondWithErrorJSON(w, http.StatusInternalServerError, "public url is not configured")
		return "error"
	default:
		h.logger.ErrorLogger.Error("listing lookup failed", utils.Err(err))
		utils.RespondWithErrorJSON(w, http.StatusInternalServerError, "internal server error")
		return "error"
	}
}

// requestURL rebuilds the absolute URL the client asked for.
func requestURL(r *http.Request) *url.URL {
	u := requestOrigin(r)
	u.Path = r.URL.Path
	u.RawQuery = r.URL.RawQuery
	return u
}

// requestOrigin is scheme and host of the request with the root path.
func requestOrigin(r *http.Request) *url.URL {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if forwarded := r.Header.Get("X-Forwarded-Proto"); forwarded == "http" || forwarded == "https" {
		scheme = forwarded
	}
	return &url.URL{Scheme: scheme, Host: r.Host, Path: "/"}
}
