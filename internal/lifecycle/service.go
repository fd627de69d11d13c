// Package lifecycle implements the database lifecycle engine: it
// provisions, duplicates, renames, drops, migrates, dumps, and restores
// application databases, keeping each database's filestore tree in
// lockstep with the relational side.
package lifecycle

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/rowjay/db-admin-utility/internal/config"
	"github.com/rowjay/db-admin-utility/internal/filestore"
	"github.com/rowjay/db-admin-utility/internal/master"
	"github.com/rowjay/db-admin-utility/internal/pgtools"
	"github.com/rowjay/db-admin-utility/internal/registry"
	"github.com/rowjay/db-admin-utility/internal/srverr"
	"github.com/rowjay/db-admin-utility/internal/version"
)

// Cluster is the engine's view of the connection cache: per-database
// handles, the maintenance handle for cluster-level DDL, cache
// invalidation, and the catalog/version helpers. Satisfied by
// *pgpool.Pool.
type Cluster interface {
	Get(name string) (*sql.DB, error)
	Maintenance() (*sql.DB, error)
	CloseDB(name string)
	Exists(ctx context.Context, name string) bool
	ListDatabases(ctx context.Context) ([]string, error)
	ServerVersionNum(ctx context.Context) (int, error)
	Terminate(ctx context.Context, name string)
}

type Service struct {
	cfg      *config.Config
	pool     Cluster
	runner   *pgtools.Runner
	files    *filestore.Store
	registry registry.Bootstrap
	log      zerolog.Logger
}

func New(cfg *config.Config, pool Cluster, runner *pgtools.Runner, files *filestore.Store, boot registry.Bootstrap, log zerolog.Logger) *Service {
	return &Service{cfg: cfg, pool: pool, runner: runner, files: files, registry: boot, log: log}
}

// Exists reports whether a connection to the named database succeeds.
// See pgpool.Exists for the reachability caveat.
func (s *Service) Exists(ctx context.Context, name string) bool {
	return s.pool.Exists(ctx, name)
}

// List enumerates the managed databases on the cluster.
func (s *Service) List(ctx context.Context) ([]string, error) {
	if !s.cfg.Master.ListDatabases {
		return nil, srverr.AccessDenied.New("database listing is disabled")
	}
	return s.pool.ListDatabases(ctx)
}

// ServerVersion reports the product version, used by clients to verify
// compatibility before dump/restore.
func (s *Service) ServerVersion() string {
	return version.Release
}

// ChangeMasterPassword hashes and persists a new master password.
func (s *Service) ChangeMasterPassword(newPassword string) error {
	hashed, err := master.Hash(newPassword)
	if err != nil {
		return err
	}
	return s.cfg.SaveMasterPassword(hashed)
}

// resetInstallationID regenerates the database's unique installation
// identifier. Run on duplicates and restored copies so two clones never
// share an identity.
func (s *Service) resetInstallationID(ctx context.Context, name string) error {
	db, err := s.pool.Get(name)
	if err != nil {
		return err
	}
	return resetInstallationID(ctx, db)
}

func resetInstallationID(ctx context.Context, db *sql.DB) error {
	id := uuid.NewString()
	res, err := db.ExecContext(ctx,
		`UPDATE ir_config_parameter SET value = $1 WHERE key = 'database.uuid'`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		_, err = db.ExecContext(ctx,
			`INSERT INTO ir_config_parameter (key, value) VALUES ('database.uuid', $1)`, id)
		return err
	}
	return nil
}

// enableUnaccent is best-effort: the text-normalization extension is a
// convenience and its absence must not fail a restore.
func (s *Service) enableUnaccent(ctx context.Context, name string) {
	db, err := s.pool.Get(name)
	if err != nil {
		s.log.Debug().Err(err).Str("db", name).Msg("unaccent: no connection")
		return
	}
	if _, err := db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS unaccent"); err != nil {
		s.log.Debug().Err(err).Str("db", name).Msg("unaccent extension not enabled")
	}
}

func quoteIdent(name string) string {
	return pq.QuoteIdentifier(name)
}

func databaseError(op, name string, err error) error {
	return srverr.ProvisionFailed.New("%s %s: %v", op, name, err)
}
