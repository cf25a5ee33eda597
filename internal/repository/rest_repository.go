package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"property-catalog/internal/domain"
	"property-catalog/internal/infrastructure/metrics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	acceptSingle   = "application/vnd.pgrst.object+json"
	codeNoRows     = "PGRST116"
	restPathPrefix = "/rest/v1/"
)

// RestOptions points the client at a PostgREST endpoint, such as a
// Supabase project.
type RestOptions struct {
	URL   string
	Key   string
	Table string
}

type restRepository struct {
	endpoint string
	key      string
	client   *http.Client
	metrics  *metrics.RepositoryMetrics
	tracer   trace.Tracer
}

// restError is the error body PostgREST returns.
type restError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

type versionedPatch struct {
	domain.Patch
	Version int `json:"version,omitempty"`
}

func NewRestRepository(opts RestOptions, client *http.Client, metrics *metrics.RepositoryMetrics) Repository {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	table := opts.Table
	if table == "" {
		table = "properties"
	}

	return &restRepository{
		endpoint: strings.TrimRight(opts.URL, "/") + restPathPrefix + table,
		key:      opts.Key,
		client:   client,
		metrics:  metrics,
		tracer:   otel.Tracer("property-catalog/repository"),
	}
}

func (r *restRepository) List(ctx context.Context) ([]domain.Listing, error) {
	ctx, span := r.tracer.Start(ctx, "Repository List")
	defer span.End()

	startTime := time.Now()
	status := "success"

	defer func() {
		r.metrics.Observe("List", status, startTime)
	}()

	query := url.Values{}
	query.Set("select", "*")
	query.Set("order", "createdAt.desc")

	var listings []domain.Listing
	if err := r.do(ctx, http.MethodGet, query, nil, false, &listings); err != nil {
		status = "error"
		span.RecordError(err)
		return nil, fmt.Errorf("failed to retrieve listings: %w", err)
	}

	span.SetAttributes(attribute.Int("listings.count", len(listings)))
	return listings, nil
}

func (r *restRepository) Insert(ctx context.Context, draft domain.Draft) (domain.Listing, error) {
	ctx, span := r.tracer.Start(ctx, "Repository Insert")
	defer span.End()

	span.SetAttributes(
		attribute.String("listing.title", draft.Title),
		attribute.Float64("listing.price", draft.Price),
	)

	startTime := time.Now()
	status := "success"

	defer func() {
		r.metrics.Observe("Insert", status, startTime)
	}()

	var created domain.Listing
	if err := r.do(ctx, http.MethodPost, nil, draft, true, &created); err != nil {
		status = "error"
		span.RecordError(err)
		return domain.Listing{}, fmt.Errorf("failed to insert listing: %w", err)
	}

	return created, nil
}

func (r *restRepository) Patch(ctx context.Context, id string, patch domain.Patch, expectedVersion int) (domain.Listing, error) {
	ctx, span := r.tracer.Start(ctx, "Repository Patch")
	defer span.End()

	span.SetAttributes(
		attribute.String("listing.id", id),
		attribute.Int("listing.version", expectedVersion),
	)

	startTime := time.Now()
	status := "success"

	defer func() {
		r.metrics.Observe("Patch", status, startTime)
	}()

	query := url.Values{}
	query.Set("id", "eq."+id)
	body := versionedPatch{Patch: patch}
	if expectedVersion > 0 {
		query.Set("version", "eq."+strconv.Itoa(expectedVersion))
		body.Version = expectedVersion + 1
	}

	var updated domain.Listing
	err := r.do(ctx, http.MethodPatch, query, body, true, &updated)
	if err == nil {
		return updated, nil
	}

	if isNoRows(err) {
		if expectedVersion > 0 {
			exists, existsErr := r.exists(ctx, id)
			if existsErr == nil && exists {
				status = "conflict"
				return domain.Listing{}, ErrVersionConflict
			}
		}
		status = "not_found"
		return domain.Listing{}, ErrNotFound
	}

	status = "error"
	span.RecordError(err)
	return domain.Listing{}, fmt.Errorf("failed to update listing: %w", err)
}

func (r *restRepository) Remove(ctx context.Context, id string) error {
	ctx, span := r.tracer.Start(ctx, "Repository Remove")
	defer span.End()

	span.SetAttributes(attribute.String("listing.id", id))

	startTime := time.Now()
	status := "success"

	defer func() {
		r.metrics.Observe("Remove", status, startTime)
	}()

	query := url.Values{}
	query.Set("id", "eq."+id)

	var removed []domain.Listing
	if err := r.do(ctx, http.MethodDelete, query, nil, false, &removed); err != nil {
		status = "error"
		span.RecordError(err)
		return fmt.Errorf("failed to delete listing: %w", err)
	}

	if len(removed) == 0 {
		status = "not_found"
		return ErrNotFound
	}

	return nil
}

func (r *restRepository) exists(ctx context.Context, id string) (bool, error) {
	query := url.Values{}
	query.Set("select", "id")
	query.Set("id", "eq."+id)

	var rows []struct {
		ID string `json:"id"`
	}
	if err := r.do(ctx, http.MethodGet, query, nil, false, &rows); err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

func (r *restRepository) do(ctx context.Context, method string, query url.Values, body interface{}, single bool, out interface{}) error {
	target := r.endpoint
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return err
	}

	req.Header.Set("apikey", r.key)
	req.Header.Set("Authorization", "Bearer "+r.key)
	req.Header.Set("Prefer", "return=representation")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if single {
		req.Header.Set("Accept", acceptSingle)
	} else {
		req.Header.Set("Accept", "application/json")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return &RemoteError{Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &RemoteError{Status: resp.StatusCode, Message: err.Error(), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeRestError(resp.StatusCode, data)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeRestError(status int, data []byte) error {
	var body restError
	if err := json.Unmarshal(data, &body); err != nil || (body.Code == "" && body.Message == "") {
		return &RemoteError{Status: status, Message: strings.TrimSpace(string(data))}
	}

	message := body.Message
	if body.Details != "" {
		message += ": " + body.Details
	}
	return &RemoteError{Status: status, Code: body.Code, Message: message}
}

func isNoRows(err error) bool {
	var remote *RemoteError
	return errors.As(err, &remote) && remote.Code == codeNoRows
}
