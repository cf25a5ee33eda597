package handler

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"property-catalog/internal/delivery/middleware"
	"property-catalog/internal/domain"
	"property-catalog/internal/form"
	"property-catalog/internal/infrastructure/metrics"
	"property-catalog/internal/navigation"
	"property-catalog/internal/repository"
	"property-catalog/internal/service"
	"property-catalog/internal/store"
	"property-catalog/pkg/logger"
	"property-catalog/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type AdminHandler struct {
	service service.CatalogService
	auth    *middleware.Authenticator
	logger  *logger.Loggers
	metrics *metrics.HandlerMetrics
	tracer  trace.Tracer
}

type loginRequest struct {
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func NewAdminHandler(service service.CatalogService, auth *middleware.Authenticator, logger *logger.Loggers, metrics *metrics.HandlerMetrics) *AdminHandler {
	tracer := otel.Tracer("property-catalog/handler")
	return &AdminHandler{
		service: service,
		auth:    auth,
		logger:  logger,
		metrics: metrics,
		tracer:  tracer,
	}
}

func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	_, span := h.tracer.Start(r.Context(), "Login")
	defer span.End()

	startTime := time.Now()
	status := "success"

	defer func() {
		h.metrics.Observe("POST", "/admin/login", status, startTime)
	}()

	var req loginRequest
	if isJSON(r) {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			status = "error"
			utils.RespondWithErrorJSON(w, http.StatusBadRequest, "invalid request payload")
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			status = "error"
			utils.RespondWithErrorJSON(w, http.StatusBadRequest, "invalid request payload")
			return
		}
		req.Password = r.PostForm.Get("password")
	}

	token, expires, err := h.auth.Login(req.Password)
	if err != nil {
		if errors.Is(err, middleware.ErrWrongPassword) {
			status = "unauthorized"
			utils.RespondWithErrorJSON(w, http.StatusUnauthorized, "wrong password")
			return
		}
		status = "error"
		h.logger.ErrorLogger.Error("failed to issue admin session", utils.Err(err))
		span.RecordError(err)
		utils.RespondWithErrorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	utils.RespondWithJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: expires})
}

func (h *AdminHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	w.WriteHeader(http.StatusNoContent)
}

// ListListings returns every listing, inactive ones included.
func (h *AdminHandler) ListListings(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListListings")
	defer span.End()

	startTime := time.Now()
	defer func() {
		h.metrics.Observe("GET", "/admin/listings", "success", startTime)
	}()

	listings := h.service.AdminListings(ctx)
	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"listings": listings,
		"count":    len(listings),
	})
}

// BlankForm returns the admin form with its defaults.
func (h *AdminHandler) BlankForm(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithJSON(w, http.StatusOK, form.Default())
}

// EditForm returns the admin form prefilled with a listing.
func (h *AdminHandler) EditForm(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "EditForm")
	defer span.End()

	id := chi.URLParam(r, "id")
	span.SetAttributes(attribute.String("listing.id", id))

	listing, ok := navigation.Find(h.service.AdminListings(ctx), id)
	if !ok {
		utils.RespondWithErrorJSON(w, http.StatusNotFound, "listing not found")
		return
	}

	w.Header().Set("ETag", etag(listing.Version))
	utils.RespondWithJSON(w, http.StatusOK, form.FromListing(listing))
}

func (h *AdminHandler) CreateListing(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateListing")
	defer span.End()

	startTime := time.Now()
	status := "success"

	defer func() {
		h.metrics.Observe("POST", "/admin/listings", status, startTime)
	}()

	f, err := decodeListingForm(r)
	if err != nil {
		status = "error"
		span.RecordError(err)
		utils.RespondWithErrorJSON(w, http.StatusBadRequest, err.Error())
		return
	}

	span.SetAttributes(
		attribute.String("listing.title", f.Title),
		attribute.Float64("listing.price", f.Price),
	)

	created, err := h.service.CreateListing(ctx, f.Draft())
	if err != nil {
		status = h.respondMutationError(w, err, "could not create listing")
		span.RecordError(err)
		return
	}

	w.Header().Set("ETag", etag(created.Version))
	utils.RespondWithJSON(w, http.StatusCreated, created)
}

// ReplaceListing applies a full form submission to a listing.
func (h *AdminHandler) ReplaceListing(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ReplaceListing")
	defer span.End()

	startTime := time.Now()
	status := "success"

	defer func() {
		h.metrics.Observe("PUT", "/admin/listings/{id}", status, startTime)
	}()

	version, err := ifMatchVersion(r)
	if err != nil {
		status = "error"
		utils.RespondWithErrorJSON(w, http.StatusBadRequest, "invalid If-Match header")
		return
	}

	f, err := decodeListingForm(r)
	if err != nil {
		status = "error"
		span.RecordError(err)
		utils.RespondWithErrorJSON(w, http.StatusBadRequest, err.Error())
		return
	}

	status = h.update(ctx, w, chi.URLParam(r, "id"), version, f.Patch())
}

// PatchListing applies a partial JSON update to a listing.
func (h *AdminHandler) PatchListing(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "PatchListing")
	defer span.End()

	startTime := time.Now()
	status := "success"

	defer func() {
		h.metrics.Observe("PATCH", "/admin/listings/{id}", status, startTime)
	}()

	version, err := ifMatchVersion(r)
	if err != nil {
		status = "error"
		utils.RespondWithErrorJSON(w, http.StatusBadRequest, "invalid If-Match header")
		return
	}

	var patch domain.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		status = "error"
		span.RecordError(err)
		utils.RespondWithErrorJSON(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	status = h.update(ctx, w, chi.URLParam(r, "id"), version, patch)
}

func (h *AdminHandler) update(ctx context.Context, w http.ResponseWriter, id string, version int, patch domain.Patch) string {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.String("listing.id", id),
		attribute.Int("listing.version", version),
	)

	updated, err := h.service.UpdateListing(ctx, id, version, patch)
	if err != nil {
		span.RecordError(err)
		return h.respondMutationError(w, err, "could not update listing")
	}

	w.Header().Set("ETag", etag(updated.Version))
	utils.RespondWithJSON(w, http.StatusOK, updated)
	return "success"
}

// DeleteListing removes a listing. The request must carry confirm=true,
// otherwise nothing is sent to the remote store.
func (h *AdminHandler) DeleteListing(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "DeleteListing")
	defer span.End()

	startTime := time.Now()
	status := "success"

	defer func() {
		h.metrics.Observe("DELETE", "/admin/listings/{id}", status, startTime)
	}()

	id := chi.URLParam(r, "id")
	span.SetAttributes(attribute.String("listing.id", id))

	confirmed, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	confirmer := store.ConfirmFunc(func(context.Context, string) bool {
		return confirmed
	})

	if err := h.service.DeleteListing(ctx, id, confirmer); err != nil {
		if errors.Is(err, store.ErrNotConfirmed) {
			status = "not_confirmed"
			utils.RespondWithJSON(w, http.StatusPreconditionFailed, map[string]string{
				"error":   "deletion not confirmed",
				"confirm": store.DeletePrompt,
			})
			return
		}
		status = h.respondMutationError(w, err, "could not delete listing")
		span.RecordError(err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "listing deleted successfully"})
}

// respondMutationError writes the status for a failed create, update or
// delete and returns the metric label.
func (h *AdminHandler) respondMutationError(w http.ResponseWriter, err error, message string) string {
	switch {
	case errors.Is(err, service.ErrInvalidID):
		utils.RespondWithErrorJSON(w, http.StatusBadRequest, "invalid id parameter")
		return "error"
	case isInvalidInput(err):
		utils.RespondWithErrorJSON(w, http.StatusBadRequest, err.Error())
		return "error"
	case errors.Is(err, service.ErrListingNotFound):
		utils.RespondWithErrorJSON(w, http.StatusNotFound, "listing not found")
		return "not_found"
	case errors.Is(err, repository.ErrVersionConflict):
		utils.RespondWithErrorJSON(w, http.StatusConflict, "listing was modified by another session, reload and try again")
		return "conflict"
	default:
		h.logger.ErrorLogger.Error(message, utils.Err(err))
		utils.RespondWithErrorJSON(w, http.StatusBadGateway, message)
		return "error"
	}
}

func isInvalidInput(err error) bool {
	return errors.Is(err, domain.ErrInvalidListing) ||
		errors.Is(err, domain.ErrInvalidType) ||
		errors.Is(err, domain.ErrInvalidModality) ||
		errors.Is(err, domain.ErrInvalidStatus) ||
		errors.Is(err, form.ErrInvalidForm)
}

func isJSON(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}

// decodeListingForm reads the admin form as JSON or urlencoded fields.
func decodeListingForm(r *http.Request) (form.ListingForm, error) {
	if isJSON(r) {
		f := form.Default()
		if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
			return form.ListingForm{}, errors.Join(form.ErrInvalidForm, err)
		}
		return f, nil
	}

	if err := r.ParseForm(); err != nil {
		return form.ListingForm{}, errors.Join(form.ErrInvalidForm, err)
	}
	return form.FromValues(r.PostForm)
}

// ifMatchVersion reads the expected listing version from If-Match. A
// missing header yields zero.
func ifMatchVersion(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.Header.Get("If-Match"))
	if raw == "" || raw == "*" {
		return 0, nil
	}
	raw = strings.Trim(strings.TrimPrefix(raw, "W/"), `"`)
	version, err := strconv.Atoi(raw)
	if err != nil || version < 0 {
		return 0, errors.New("invalid version")
	}
	return version, nil
}

func etag(version int) string {
	return `"` + strconv.Itoa(version) + `"`
}
