package router

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"property-catalog/internal/delivery/middleware"
	"property-catalog/internal/domain"
	"property-catalog/internal/infrastructure/metrics"
	"property-catalog/internal/repository"
	"property-catalog/internal/service"
	"property-catalog/internal/store"
	"property-catalog/internal/view"
	"property-catalog/pkg/logger"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

// ============================================
// mock repository
// ============================================
type mockRepository struct {
	rows    []domain.Listing
	listErr error
	mutErr  error
	removes int
}

func (m *mockRepository) List(ctx context.Context) ([]domain.Listing, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return append([]domain.Listing(nil), m.rows...), nil
}

func (m *mockRepository) Insert(ctx context.Context, draft domain.Draft) (domain.Listing, error) {
	if m.mutErr != nil {
		return domain.Listing{}, m.mutErr
	}
	l := draft.Listing("created", "2024-08-01T10:00:00Z")
	m.rows = append([]domain.Listing{l}, m.rows...)
	return l, nil
}

func (m *mockRepository) Patch(ctx context.Context, id string, patch domain.Patch, expectedVersion int) (domain.Listing, error) {
	if m.mutErr != nil {
		return domain.Listing{}, m.mutErr
	}
	for i, l := range m.rows {
		if l.ID == id {
			if expectedVersion > 0 && expectedVersion != l.Version {
				return domain.Listing{}, repository.ErrVersionConflict
			}
			m.rows[i] = patch.ApplyTo(l)
			m.rows[i].Version++
			return m.rows[i], nil
		}
	}
	return domain.Listing{}, repository.ErrNotFound
}

func (m *mockRepository) Remove(ctx context.Context, id string) error {
	m.removes++
	if m.mutErr != nil {
		return m.mutErr
	}
	return nil
}

func rows() []domain.Listing {
	return []domain.Listing{
		{ID: "A", Title: "Apto", Price: 3500, Type: domain.TypeApartment, Modality: domain.ModalityRental, Status: domain.StatusAvailable,
			Location: domain.Location{City: "Florianópolis", Neighborhood: "Centro"}, Images: []string{}, IsActive: true, Version: 1},
		{ID: "B", Title: "Casa", Price: 1800000, Type: domain.TypeHouse, Modality: domain.ModalitySale, Status: domain.StatusAvailable,
			Location: domain.Location{City: "São José", Neighborhood: "Kobrasol"}, Images: []string{}, IsActive: true, Version: 1},
		{ID: "C", Title: "Apto", Price: 3500, Type: domain.TypeApartment, Modality: domain.ModalityRental, Status: domain.StatusAvailable,
			Location: domain.Location{City: "Florianópolis", Neighborhood: "Centro"}, Images: []string{}, IsActive: false, Version: 1},
	}
}

type testServer struct {
	*httptest.Server
	repo *mockRepository
	auth *middleware.Authenticator
}

func newTestServer(t *testing.T, repo *mockRepository) *testServer {
	t.Helper()
	reg := prometheus.NewRegistry()

	catalog := service.NewCatalogService(store.New(repo), view.Settings{
		Currency:      "R$",
		FeaturedCount: 3,
		ContactPhone:  "5594992912256",
	}, metrics.NewServiceMetrics(reg))
	_ = catalog.Bootstrap(context.Background())

	auth := middleware.NewAuthenticator("admin", "router-test-secret", time.Hour)
	handlerMetrics := metrics.NewHandlerMetrics(reg)

	r := chi.NewRouter()
	SetupCatalogRoutes(r, catalog, auth, logger.Discard(), handlerMetrics)
	SetupAdminRoutes(r, catalog, auth, logger.Discard(), handlerMetrics)
	r.Handle("/metrics", handlerMetrics.HTTPHandler())

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, repo: repo, auth: auth}
}

func (s *testServer) do(t *testing.T, method, path, contentType, body string, headers map[string]string) (*http.Response, map[string]interface{}) {
	t.Helper()
	req, err := http.NewRequest(method, s.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var decoded map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func (s *testServer) bearer(t *testing.T) map[string]string {
	t.Helper()
	token, _, err := s.auth.Login("admin")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	return map[string]string{"Authorization": "Bearer " + token}
}

// ============================================
// TESTS
// ============================================

func TestLoadFollowsDeepLink(t *testing.T) {
	srv := newTestServer(t, &mockRepository{rows: rows()})

	resp, body := srv.do(t, http.MethodGet, "/?property=B", "", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["page"] != "property" || body["selectedId"] != "B" || body["resetScroll"] != true {
		t.Errorf("body = %v", body)
	}
	property, _ := body["property"].(map[string]interface{})
	if property == nil || property["shareUrl"] != srv.URL+"/?property=B" {
		t.Errorf("property = %v", property)
	}

	_, body = srv.do(t, http.MethodGet, "/?property=nope", "", "", nil)
	if body["page"] != "home" {
		t.Errorf("unknown deep link page = %v", body["page"])
	}
}

func TestLoadRejectsBadCriteria(t *testing.T) {
	srv := newTestServer(t, &mockRepository{rows: rows()})

	resp, _ := srv.do(t, http.MethodGet, "/?minPrice=cheap", "", "", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestNavigate(t *testing.T) {
	srv := newTestServer(t, &mockRepository{rows: rows()})

	body := `{"from":{"page":"listings"},"page":"property","id":"A","location":"https://imoveis.test/?city=x","filters":{"city":"floria"}}`
	resp, page := srv.do(t, http.MethodPost, "/navigate", "application/json", body, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if page["location"] != "https://imoveis.test/?city=x&property=A" || page["resetScroll"] != true {
		t.Errorf("page = %v", page)
	}
	filters, _ := page["filters"].(map[string]interface{})
	if filters["city"] != "floria" {
		t.Errorf("filters = %v", filters)
	}

	resp, _ = srv.do(t, http.MethodPost, "/navigate", "application/json", `{"page":"checkout"}`, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown page status = %d", resp.StatusCode)
	}
}

func TestNavigateAdminUsesSession(t *testing.T) {
	srv := newTestServer(t, &mockRepository{rows: rows()})

	_, page := srv.do(t, http.MethodPost, "/navigate", "application/json", `{"page":"admin"}`, nil)
	admin, _ := page["admin"].(map[string]interface{})
	if admin["authRequired"] != true {
		t.Errorf("anonymous admin = %v", admin)
	}

	_, page = srv.do(t, http.MethodPost, "/navigate", "application/json", `{"page":"admin"}`, srv.bearer(t))
	admin, _ = page["admin"].(map[string]interface{})
	if admin["authRequired"] != false || len(admin["listings"].([]interface{})) != 3 {
		t.Errorf("admin = %v", admin)
	}
}

func TestSearchAndLookup(t *testing.T) {
	srv := newTestServer(t, &mockRepository{rows: rows()})

	_, body := srv.do(t, http.MethodGet, "/api/listings?minPrice=1000000", "", "", nil)
	if body["count"] != float64(1) {
		t.Errorf("search = %v", body)
	}

	resp, _ := srv.do(t, http.MethodGet, "/api/listings?type=Castle", "", "", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid type status = %d", resp.StatusCode)
	}

	resp, _ = srv.do(t, http.MethodGet, "/api/listings/C", "", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("inactive listing status = %d", resp.StatusCode)
	}

	resp, share := srv.do(t, http.MethodGet, "/api/listings/A/share", "", "", nil)
	if resp.StatusCode != http.StatusOK || share["url"] != srv.URL+"/?property=A" {
		t.Errorf("share = %d %v", resp.StatusCode, share)
	}
}

func TestRetry(t *testing.T) {
	repo := &mockRepository{listErr: &repository.RemoteError{Code: "PGRST301", Message: "JWT expired"}}
	srv := newTestServer(t, repo)

	resp, body := srv.do(t, http.MethodPost, "/api/retry", "", "", nil)
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	errBody, _ := body["error"].(map[string]interface{})
	if errBody["kind"] != string(store.KindInvalidCredential) {
		t.Errorf("error = %v", errBody)
	}

	repo.listErr = nil
	repo.rows = rows()
	resp, body = srv.do(t, http.MethodPost, "/api/retry", "", "", nil)
	if resp.StatusCode != http.StatusOK || body["count"] != float64(3) {
		t.Errorf("retry = %d %v", resp.StatusCode, body)
	}
}

func TestAdminLogin(t *testing.T) {
	srv := newTestServer(t, &mockRepository{rows: rows()})

	resp, _ := srv.do(t, http.MethodPost, "/admin/login", "application/json", `{"password":"guess"}`, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("wrong password status = %d", resp.StatusCode)
	}

	resp, body := srv.do(t, http.MethodPost, "/admin/login", "application/x-www-form-urlencoded", "password=admin", nil)
	if resp.StatusCode != http.StatusOK || body["token"] == "" {
		t.Fatalf("login = %d %v", resp.StatusCode, body)
	}
	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == middleware.SessionCookie {
			cookie = c
		}
	}
	if cookie == nil || !cookie.HttpOnly {
		t.Errorf("session cookie = %+v", cookie)
	}

	resp, _ = srv.do(t, http.MethodGet, "/admin/listings", "", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("admin without session status = %d", resp.StatusCode)
	}
}

func TestAdminCreateUpdateDelete(t *testing.T) {
	repo := &mockRepository{rows: rows()}
	srv := newTestServer(t, repo)
	auth := srv.bearer(t)

	resp, created := srv.do(t, http.MethodPost, "/admin/listings", "application/x-www-form-urlencoded",
		"title=Terreno+Folha+32&price=120000&type=Terreno&city=Marab%C3%A1&neighborhood=Nova+Marab%C3%A1", auth)
	if resp.StatusCode != http.StatusCreated || created["id"] != "created" {
		t.Fatalf("create = %d %v", resp.StatusCode, created)
	}
	if created["type"] != "Land" || created["isActive"] != true {
		t.Errorf("created = %v", created)
	}
	location, _ := created["location"].(map[string]interface{})
	if location["city"] != "Marabá" {
		t.Errorf("location = %v", location)
	}

	resp, _ = srv.do(t, http.MethodPost, "/admin/listings", "application/json", `{"title":"x","price":-5}`, auth)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("negative price status = %d", resp.StatusCode)
	}

	headers := map[string]string{"If-Match": `"1"`}
	for k, v := range auth {
		headers[k] = v
	}
	resp, updated := srv.do(t, http.MethodPatch, "/admin/listings/A", "application/json", `{"price":999}`, headers)
	if resp.StatusCode != http.StatusOK || updated["price"] != float64(999) || resp.Header.Get("ETag") != `"2"` {
		t.Fatalf("patch = %d %v etag=%s", resp.StatusCode, updated, resp.Header.Get("ETag"))
	}

	resp, _ = srv.do(t, http.MethodPatch, "/admin/listings/A", "application/json", `{"price":1}`, headers)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("stale version status = %d", resp.StatusCode)
	}

	resp, _ = srv.do(t, http.MethodPut, "/admin/listings/missing", "application/json", `{"title":"x"}`, auth)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing listing status = %d", resp.StatusCode)
	}

	repo.mutErr = errors.New("network unreachable")
	resp, body := srv.do(t, http.MethodPatch, "/admin/listings/B", "application/json", `{"price":1}`, auth)
	if resp.StatusCode != http.StatusBadGateway || body["error"] != "could not update listing" {
		t.Errorf("remote failure = %d %v", resp.StatusCode, body)
	}
	repo.mutErr = nil

	resp, body = srv.do(t, http.MethodDelete, "/admin/listings/B", "", "", auth)
	if resp.StatusCode != http.StatusPreconditionFailed || body["confirm"] != store.DeletePrompt {
		t.Errorf("unconfirmed delete = %d %v", resp.StatusCode, body)
	}
	if repo.removes != 0 {
		t.Errorf("remote delete issued without confirmation")
	}

	resp, _ = srv.do(t, http.MethodDelete, "/admin/listings/B?confirm=true", "", "", auth)
	if resp.StatusCode != http.StatusOK || repo.removes != 1 {
		t.Errorf("confirmed delete = %d removes=%d", resp.StatusCode, repo.removes)
	}

	resp, _ = srv.do(t, http.MethodGet, "/api/listings/B", "", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("deleted listing status = %d", resp.StatusCode)
	}
}

func TestAdminForms(t *testing.T) {
	srv := newTestServer(t, &mockRepository{rows: rows()})
	auth := srv.bearer(t)

	_, blank := srv.do(t, http.MethodGet, "/admin/form", "", "", auth)
	if blank["type"] != "House" || blank["modality"] != "Sale" || blank["status"] != "Available" || blank["isActive"] != true {
		t.Errorf("blank form = %v", blank)
	}

	resp, edit := srv.do(t, http.MethodGet, "/admin/listings/C/form", "", "", auth)
	if resp.StatusCode != http.StatusOK || edit["city"] != "Florianópolis" || edit["isActive"] != false {
		t.Errorf("edit form = %d %v", resp.StatusCode, edit)
	}
	if resp.Header.Get("ETag") != `"1"` {
		t.Errorf("etag = %q", resp.Header.Get("ETag"))
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, &mockRepository{rows: rows()})
	srv.do(t, http.MethodGet, "/api/listings", "", "", nil)

	resp, err := srv.Client().Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	defer resp.Body.Close()

	buf := new(strings.Builder)
	if _, err := io.Copy(buf, resp.Body); err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	for _, want := range []string{"handler_requests_total", "catalog_listings 3"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
