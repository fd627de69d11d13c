package lifecycle

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/rowjay/db-admin-utility/internal/config"
	"github.com/rowjay/db-admin-utility/internal/filestore"
	"github.com/rowjay/db-admin-utility/internal/pgtools"
	"github.com/rowjay/db-admin-utility/internal/registry"
	"github.com/rowjay/db-admin-utility/internal/srverr"
)

// fakeCluster records every pool interaction in order.
type fakeCluster struct {
	calls       []string
	maintenance *sql.DB
	dbs         map[string]*sql.DB
	names       []string
	alive       bool
}

func (f *fakeCluster) record(call string) { f.calls = append(f.calls, call) }

func (f *fakeCluster) Get(name string) (*sql.DB, error) {
	f.record("get " + name)
	if db, ok := f.dbs[name]; ok {
		return db, nil
	}
	return nil, errors.New("no handle for " + name)
}

func (f *fakeCluster) Maintenance() (*sql.DB, error) {
	f.record("maintenance")
	return f.maintenance, nil
}

func (f *fakeCluster) CloseDB(name string) { f.record("close " + name) }

func (f *fakeCluster) Exists(ctx context.Context, name string) bool {
	f.record("exists " + name)
	return f.alive
}

func (f *fakeCluster) ListDatabases(ctx context.Context) ([]string, error) {
	f.record("list")
	return f.names, nil
}

func (f *fakeCluster) ServerVersionNum(ctx context.Context) (int, error) {
	return 150002, nil
}

func (f *fakeCluster) Terminate(ctx context.Context, name string) { f.record("terminate " + name) }

// spyBootstrap records which databases were bootstrapped.
type spyBootstrap struct {
	databases []string
}

func (s *spyBootstrap) New(ctx context.Context, database string, opts registry.Options) error {
	s.databases = append(s.databases, database)
	return nil
}

func newTestService(t *testing.T, cluster *fakeCluster) (*Service, *spyBootstrap, afero.Fs) {
	t.Helper()
	cfg := &config.Config{Server: config.ServerConfig{
		Template:      "template0",
		MaintenanceDB: "postgres",
	}}
	fs := afero.NewMemMapFs()
	boot := &spyBootstrap{}
	svc := New(cfg, cluster, pgtools.NewRunner(cfg.Server),
		filestore.NewWithFs(fs, "/fs"), boot, zerolog.Nop())
	return svc, boot, fs
}

func maintenanceMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestCreateExistingNameFailsFast(t *testing.T) {
	db, mock := maintenanceMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT datname FROM pg_database")).
		WithArgs("prod").
		WillReturnRows(sqlmock.NewRows([]string{"datname"}).AddRow("prod"))

	cluster := &fakeCluster{maintenance: db}
	svc, boot, _ := newTestService(t, cluster)

	err := svc.Create(context.Background(), "prod", false, "", "admin", "admin", "")
	if !srverr.AlreadyExists.Has(err) {
		t.Fatalf("expected already-exists, got %v", err)
	}
	if len(boot.databases) != 0 {
		t.Fatalf("bootstrap ran despite collision: %v", boot.databases)
	}
	// No CREATE DATABASE was attempted.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreateSurfacesCatalogProbeFailure(t *testing.T) {
	db, mock := maintenanceMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT datname FROM pg_database")).
		WithArgs("prod").
		WillReturnError(errors.New("connection reset"))

	cluster := &fakeCluster{maintenance: db}
	svc, boot, _ := newTestService(t, cluster)

	err := svc.Create(context.Background(), "prod", false, "", "admin", "admin", "")
	if err == nil || srverr.AlreadyExists.Has(err) {
		t.Fatalf("expected a probe error, got %v", err)
	}
	if !srverr.ProvisionFailed.Has(err) {
		t.Fatalf("expected provision-failed class, got %v", err)
	}
	if len(boot.databases) != 0 {
		t.Fatalf("bootstrap ran despite probe failure: %v", boot.databases)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDropMissingDatabaseReturnsFalse(t *testing.T) {
	cluster := &fakeCluster{names: []string{"other"}}
	svc, _, fs := newTestService(t, cluster)
	if err := afero.WriteFile(fs, "/fs/gone/blob", []byte("x"), 0o640); err != nil {
		t.Fatalf("seed: %v", err)
	}

	dropped, err := svc.Drop(context.Background(), "gone")
	if err != nil {
		t.Fatalf("drop: %v", err)
	}
	if dropped {
		t.Fatalf("expected false for a name outside the catalog")
	}
	if exists, _ := afero.DirExists(fs, "/fs/gone"); !exists {
		t.Fatalf("filestore was touched for a nonexistent database")
	}
	for _, call := range cluster.calls {
		if call != "list" {
			t.Fatalf("unexpected pool interaction: %v", cluster.calls)
		}
	}
}

func TestDropClosesThenTerminatesThenRemovesFilestore(t *testing.T) {
	db, mock := maintenanceMock(t)
	mock.ExpectExec(regexp.QuoteMeta(`DROP DATABASE "prod"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	cluster := &fakeCluster{maintenance: db, names: []string{"prod"}}
	svc, _, fs := newTestService(t, cluster)
	if err := afero.WriteFile(fs, "/fs/prod/blob", []byte("x"), 0o640); err != nil {
		t.Fatalf("seed: %v", err)
	}

	dropped, err := svc.Drop(context.Background(), "prod")
	if err != nil {
		t.Fatalf("drop: %v", err)
	}
	if !dropped {
		t.Fatalf("expected true for an existing database")
	}
	if exists, _ := afero.DirExists(fs, "/fs/prod"); exists {
		t.Fatalf("filestore survived the drop")
	}

	closeAt, terminateAt := -1, -1
	for i, call := range cluster.calls {
		switch call {
		case "close prod":
			closeAt = i
		case "terminate prod":
			terminateAt = i
		}
	}
	if closeAt == -1 || terminateAt == -1 || closeAt > terminateAt {
		t.Fatalf("cache invalidation must precede termination: %v", cluster.calls)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDuplicateFailureNamesBothDatabases(t *testing.T) {
	db, mock := maintenanceMock(t)
	mock.ExpectExec(regexp.QuoteMeta(`CREATE DATABASE "dst"`)).
		WillReturnError(errors.New("source database is being accessed"))

	cluster := &fakeCluster{maintenance: db}
	svc, _, _ := newTestService(t, cluster)

	err := svc.Duplicate(context.Background(), "src", "dst")
	if !srverr.ProvisionFailed.Has(err) {
		t.Fatalf("expected provision-failed, got %v", err)
	}
	if !strings.Contains(err.Error(), "src") || !strings.Contains(err.Error(), "dst") {
		t.Fatalf("error does not name both databases: %v", err)
	}
}

func TestRenameKeepsFilestoreWhenDDLFails(t *testing.T) {
	db, mock := maintenanceMock(t)
	mock.ExpectExec(regexp.QuoteMeta(`ALTER DATABASE "old" RENAME TO "new"`)).
		WillReturnError(errors.New("database is being accessed by other users"))

	cluster := &fakeCluster{maintenance: db}
	svc, _, fs := newTestService(t, cluster)
	if err := afero.WriteFile(fs, "/fs/old/blob", []byte("x"), 0o640); err != nil {
		t.Fatalf("seed: %v", err)
	}

	err := svc.Rename(context.Background(), "old", "new")
	if !srverr.ProvisionFailed.Has(err) {
		t.Fatalf("expected provision-failed, got %v", err)
	}
	if exists, _ := afero.DirExists(fs, "/fs/old"); !exists {
		t.Fatalf("source filestore moved despite failed rename")
	}
	if exists, _ := afero.DirExists(fs, "/fs/new"); exists {
		t.Fatalf("target filestore appeared despite failed rename")
	}
}
