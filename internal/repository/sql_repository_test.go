package repository

import (
	"errors"
	"reflect"
	"testing"

	"property-catalog/internal/domain"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestRebind(t *testing.T) {
	pg := &sqlRepository{dialect: Postgres}
	if got := pg.rebind("UPDATE t SET a = ?, b = ? WHERE id = ?"); got != "UPDATE t SET a = $1, b = $2 WHERE id = $3" {
		t.Errorf("postgres rebind = %q", got)
	}

	my := &sqlRepository{dialect: MySQL}
	if got := my.rebind("WHERE id = ?"); got != "WHERE id = ?" {
		t.Errorf("mysql rebind = %q", got)
	}
}

func TestPatchAssignments(t *testing.T) {
	price := 999.0
	active := false
	images := []string{"a.jpg"}
	sets, args, err := patchAssignments(domain.Patch{
		Price:    &price,
		Location: &domain.Location{City: "Marabá", Neighborhood: "Centro"},
		Images:   &images,
		IsActive: &active,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantSets := []string{"price = ?", "city = ?", "neighborhood = ?", "address = ?", "images = ?", "is_active = ?"}
	if !reflect.DeepEqual(sets, wantSets) {
		t.Errorf("sets = %v", sets)
	}
	wantArgs := []interface{}{999.0, "Marabá", "Centro", "", `["a.jpg"]`, false}
	if !reflect.DeepEqual(args, wantArgs) {
		t.Errorf("args = %v", args)
	}

	if _, _, err := patchAssignments(domain.Patch{}); !errors.Is(err, domain.ErrInvalidListing) {
		t.Errorf("empty patch: expected ErrInvalidListing, got %v", err)
	}
}

func TestRemoteErrorFromDrivers(t *testing.T) {
	myErr := &mysql.MySQLError{Number: 1146, SQLState: [5]byte{'4', '2', 'S', '0', '2'}, Message: "Table 'catalog.properties' doesn't exist"}
	var remote *RemoteError
	if !errors.As(remoteError(myErr), &remote) || remote.Code != "42S02" {
		t.Errorf("mysql error = %+v", remote)
	}

	pgErr := &pgconn.PgError{Code: "28P01", Message: "password authentication failed"}
	if !errors.As(remoteError(pgErr), &remote) || remote.Code != "28P01" {
		t.Errorf("postgres error = %+v", remote)
	}
	if !errors.Is(remoteError(pgErr), pgErr) {
		t.Error("driver error not unwrapped")
	}

	plain := errors.New("connection refused")
	if !errors.As(remoteError(plain), &remote) || remote.Code != "" || remote.Message != "connection refused" {
		t.Errorf("plain error = %+v", remote)
	}
}
