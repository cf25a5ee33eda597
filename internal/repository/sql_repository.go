package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"property-catalog/internal/domain"
	"property-catalog/internal/infrastructure/metrics"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const listingColumns = `id, title, description, price, type, modality, status,
		city, neighborhood, address, bedrooms, bathrooms, area, parking_spaces,
		images, is_active, created_at, version`

// Dialect covers the differences between the SQL backends.
type Dialect int

const (
	MySQL Dialect = iota
	Postgres
)

type sqlRepository struct {
	db      *sql.DB
	dialect Dialect
	metrics *metrics.RepositoryMetrics
	tracer  trace.Tracer
}

func NewMysqlRepository(db *sql.DB, metrics *metrics.RepositoryMetrics) Repository {
	return newSQLRepository(db, MySQL, metrics)
}

func NewPostgresRepository(db *sql.DB, metrics *metrics.RepositoryMetrics) Repository {
	return newSQLRepository(db, Postgres, metrics)
}

func newSQLRepository(db *sql.DB, dialect Dialect, metrics *metrics.RepositoryMetrics) *sqlRepository {
	return &sqlRepository{
		db:      db,
		dialect: dialect,
		metrics: metrics,
		tracer:  otel.Tracer("property-catalog/repository"),
	}
}

func (r *sqlRepository) List(ctx context.Context) ([]domain.Listing, error) {
	ctx, span := r.tracer.Start(ctx, "Repository List")
	defer span.End()

	startTime := time.Now()
	status := "success"

	defer func() {
		r.metrics.Observe("List", status, startTime)
	}()

	query := `SELECT ` + listingColumns + ` FROM properties ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		status = "error"
		span.RecordError(err)
		return nil, fmt.Errorf("failed to retrieve listings: %w", remoteError(err))
	}
	defer rows.Close()

	listings := []domain.Listing{}
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			status = "error"
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}
		listings = append(listings, l)
	}

	if err := rows.Err(); err != nil {
		status = "error"
		span.RecordError(err)
		return nil, fmt.Errorf("rows error: %w", remoteError(err))
	}

	span.SetAttributes(attribute.Int("listings.count", len(listings)))
	return listings, nil
}

func (r *sqlRepository) Insert(ctx context.Context, draft domain.Draft) (domain.Listing, error) {
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

	images, err := encodeImages(draft.Images)
	if err != nil {
		status = "error"
		return domain.Listing{}, err
	}

	id := uuid.NewString()
	query := r.rebind(`
		INSERT INTO properties (id, title, description, price, type, modality, status,
			city, neighborhood, address, bedrooms, bathrooms, area, parking_spaces,
			images, is_active, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`)

	_, err = r.db.ExecContext(ctx, query,
		id, draft.Title, draft.Description, draft.Price,
		string(draft.Type), string(draft.Modality), string(draft.Status),
		draft.Location.City, draft.Location.Neighborhood, draft.Location.Address,
		draft.Features.Bedrooms, draft.Features.Bathrooms, draft.Features.Area, draft.Features.ParkingSpaces,
		images, draft.IsActive)
	if err != nil {
		status = "error"
		span.RecordError(err)
		return domain.Listing{}, fmt.Errorf("failed to insert listing: %w", remoteError(err))
	}

	created, err := r.get(ctx, id)
	if err != nil {
		status = "error"
		span.RecordError(err)
		return domain.Listing{}, fmt.Errorf("failed to fetch inserted listing: %w", err)
	}

	span.SetAttributes(attribute.String("listing.id", id))
	return created, nil
}

func (r *sqlRepository) Patch(ctx context.Context, id string, patch domain.Patch, expectedVersion int) (domain.Listing, error) {
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

	sets, args, err := patchAssignments(patch)
	if err != nil {
		status = "error"
		return domain.Listing{}, err
	}

	query := `UPDATE properties SET ` + strings.Join(append(sets, "version = version + 1"), ", ") + ` WHERE id = ?`
	args = append(args, id)
	if expectedVersion > 0 {
		query += ` AND version = ?`
		args = append(args, expectedVersion)
	}

	result, err := r.db.ExecContext(ctx, r.rebind(query), args...)
	if err != nil {
		status = "error"
		span.RecordError(err)
		return domain.Listing{}, fmt.Errorf("failed to update listing: %w", remoteError(err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		status = "error"
		span.RecordError(err)
		return domain.Listing{}, fmt.Errorf("failed to retrieve rows affected: %w", err)
	}

	if rowsAffected == 0 {
		if expectedVersion > 0 {
			if _, err := r.get(ctx, id); err == nil {
				status = "conflict"
				return domain.Listing{}, ErrVersionConflict
			}
		}
		status = "not_found"
		return domain.Listing{}, ErrNotFound
	}

	updated, err := r.get(ctx, id)
	if err != nil {
		status = "error"
		span.RecordError(err)
		return domain.Listing{}, fmt.Errorf("failed to fetch updated listing: %w", err)
	}

	return updated, nil
}

func (r *sqlRepository) Remove(ctx context.Context, id string) error {
	ctx, span := r.tracer.Start(ctx, "Repository Remove")
	defer span.End()

	span.SetAttributes(attribute.String("listing.id", id))

	startTime := time.Now()
	status := "success"

	defer func() {
		r.metrics.Observe("Remove", status, startTime)
	}()

	result, err := r.db.ExecContext(ctx, r.rebind(`DELETE FROM properties WHERE id = ?`), id)
	if err != nil {
		status = "error"
		span.RecordError(err)
		return fmt.Errorf("failed to delete listing: %w", remoteError(err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		status = "error"
		span.RecordError(err)
		return fmt.Errorf("failed to retrieve rows affected: %w", err)
	}

	if rowsAffected == 0 {
		status = "not_found"
		return ErrNotFound
	}

	return nil
}

func (r *sqlRepository) get(ctx context.Context, id string) (domain.Listing, error) {
	query := r.rebind(`SELECT ` + listingColumns + ` FROM properties WHERE id = ?`)

	l, err := scanListing(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Listing{}, ErrNotFound
	}
	if err != nil {
		return domain.Listing{}, remoteError(err)
	}
	return l, nil
}

// rebind rewrites ? placeholders to $n for Postgres.
func (r *sqlRepository) rebind(query string) string {
	if r.dialect != Postgres {
		return query
	}

	var b strings.Builder
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanListing(row rowScanner) (domain.Listing, error) {
	var (
		l                     domain.Listing
		typ, modality, status string
		address               sql.NullString
		images                sql.NullString
		createdAt             time.Time
	)

	err := row.Scan(
		&l.ID, &l.Title, &l.Description, &l.Price, &typ, &modality, &status,
		&l.Location.City, &l.Location.Neighborhood, &address,
		&l.Features.Bedrooms, &l.Features.Bathrooms, &l.Features.Area, &l.Features.ParkingSpaces,
		&images, &l.IsActive, &createdAt, &l.Version,
	)
	if err != nil {
		return domain.Listing{}, err
	}

	if l.Type, err = domain.ParsePropertyType(typ); err != nil {
		return domain.Listing{}, err
	}
	if l.Modality, err = domain.ParseModality(modality); err != nil {
		return domain.Listing{}, err
	}
	if l.Status, err = domain.ParseStatus(status); err != nil {
		return domain.Listing{}, err
	}

	l.Location.Address = address.String
	l.Images = []string{}
	if images.Valid && images.String != "" {
		if err := json.Unmarshal([]byte(images.String), &l.Images); err != nil {
			return domain.Listing{}, fmt.Errorf("invalid images column: %w", err)
		}
	}
	l.CreatedAt = createdAt.UTC().Format(time.RFC3339Nano)

	return l, nil
}

func patchAssignments(p domain.Patch) ([]string, []interface{}, error) {
	var (
		sets []string
		args []interface{}
	)
	set := func(column string, value interface{}) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}

	if p.Title != nil {
		set("title", *p.Title)
	}
	if p.Description != nil {
		set("description", *p.Description)
	}
	if p.Price != nil {
		set("price", *p.Price)
	}
	if p.Type != nil {
		set("type", string(*p.Type))
	}
	if p.Modality != nil {
		set("modality", string(*p.Modality))
	}
	if p.Status != nil {
		set("status", string(*p.Status))
	}
	if p.Location != nil {
		set("city", p.Location.City)
		set("neighborhood", p.Location.Neighborhood)
		set("address", p.Location.Address)
	}
	if p.Features != nil {
		set("bedrooms", p.Features.Bedrooms)
		set("bathrooms", p.Features.Bathrooms)
		set("area", p.Features.Area)
		set("parking_spaces", p.Features.ParkingSpaces)
	}
	if p.Images != nil {
		images, err := encodeImages(*p.Images)
		if err != nil {
			return nil, nil, err
		}
		set("images", images)
	}
	if p.IsActive != nil {
		set("is_active", *p.IsActive)
	}

	if len(sets) == 0 {
		return nil, nil, fmt.Errorf("%w: empty update", domain.ErrInvalidListing)
	}
	return sets, args, nil
}

func encodeImages(images []string) (string, error) {
	if images == nil {
		images = []string{}
	}
	data, err := json.Marshal(images)
	if err != nil {
		return "", fmt.Errorf("failed to encode images: %w", err)
	}
	return string(data), nil
}

// remoteError normalises driver errors so callers can classify them
// without importing the drivers.
func remoteError(err error) error {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return &RemoteError{Code: string(myErr.SQLState[:]), Message: myErr.Message, Err: err}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &RemoteError{Code: pgErr.Code, Message: pgErr.Message, Err: err}
	}

	return &RemoteError{Message: err.Error(), Err: err}
}
