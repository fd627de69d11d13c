package lifecycle

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/rowjay/db-admin-utility/internal/archive"
	"github.com/rowjay/db-admin-utility/internal/version"
)

func TestPGVersionString(t *testing.T) {
	cases := []struct {
		num  int
		want string
	}{
		{90605, "9.6"},
		{90200, "9.2"},
		{100012, "10.0"},
		{150002, "15.0"},
	}
	for _, c := range cases {
		if got := pgVersionString(c.num); got != c.want {
			t.Fatalf("pgVersionString(%d) = %s, want %s", c.num, got, c.want)
		}
	}
}

func TestManifestForDB(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{"name", "latest_version"}).
		AddRow("base", "11.0.1.3").
		AddRow("web", "11.0.1.0")
	mock.ExpectQuery(regexp.QuoteMeta("FROM ir_module_module WHERE state = 'installed'")).
		WillReturnRows(rows)

	m, err := manifestForDB(context.Background(), db, "demo", "9.6")
	if err != nil {
		t.Fatalf("manifest: %v", err)
	}
	if m.Marker != archive.FormatMarker {
		t.Fatalf("unexpected marker: %s", m.Marker)
	}
	if m.DBName != "demo" || m.PGVersion != "9.6" {
		t.Fatalf("unexpected manifest: %+v", m)
	}
	if m.Version != version.Release || m.MajorVersion != version.MajorRelease {
		t.Fatalf("unexpected versions: %+v", m)
	}
	if len(m.Modules) != 2 || m.Modules["base"] != "11.0.1.3" {
		t.Fatalf("unexpected modules: %+v", m.Modules)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestResetInstallationIDUpdatesExistingRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE ir_config_parameter SET value = $1 WHERE key = 'database.uuid'")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := resetInstallationID(context.Background(), db); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestResetInstallationIDInsertsWhenMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE ir_config_parameter")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ir_config_parameter")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := resetInstallationID(context.Background(), db); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
