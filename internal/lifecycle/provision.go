package lifecycle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rowjay/db-admin-utility/internal/registry"
	"github.com/rowjay/db-admin-utility/internal/srverr"
)

// createEmptyDatabase copies the configured template into a new
// database. CREATE DATABASE cannot run inside a transaction, so the
// statement goes through the maintenance handle's implicit autocommit.
func (s *Service) createEmptyDatabase(ctx context.Context, name string) error {
	db, err := s.pool.Maintenance()
	if err != nil {
		return err
	}
	var existing string
	err = db.QueryRowContext(ctx, "SELECT datname FROM pg_database WHERE datname = $1", name).Scan(&existing)
	switch {
	case err == nil:
		return srverr.AlreadyExists.New("%q", name)
	case !errors.Is(err, sql.ErrNoRows):
		// A failed catalog probe is not a free name.
		return databaseError("check database", name, err)
	}
	stmt := fmt.Sprintf("CREATE DATABASE %s ENCODING 'unicode' TEMPLATE %s",
		quoteIdent(name), quoteIdent(s.cfg.Server.Template))
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return databaseError("create database", name, err)
	}
	return nil
}

// Create provisions a new database from the template, bootstraps the
// application layer, and finalizes the administrative account. A
// failure in the final step is logged, not propagated: a partially
// initialized database is preferable to silently deleting it, but the
// operator must treat the logged failure as requiring manual follow-up.
func (s *Service) Create(ctx context.Context, name string, demo bool, lang, adminPassword, adminLogin, countryCode string) error {
	s.log.Info().Str("db", name).Msg("create database")
	if err := s.createEmptyDatabase(ctx, name); err != nil {
		return err
	}
	opts := registry.Options{
		Demo:          demo,
		UpdateModules: true,
		Language:      lang,
		CountryCode:   countryCode,
	}
	if err := s.registry.New(ctx, name, opts); err != nil {
		return err
	}
	if err := s.finalizeAdminAccount(ctx, name, adminLogin, adminPassword, lang); err != nil {
		s.log.Error().Err(err).Str("db", name).
			Msg("admin account finalization failed; database created, manual follow-up required")
	}
	return nil
}

func (s *Service) finalizeAdminAccount(ctx context.Context, name, login, password, lang string) error {
	if login == "" {
		login = "admin"
	}
	db, err := s.pool.Get(name)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		`UPDATE res_users SET login = $1, password = $2 WHERE id = 1`, login, password)
	if err != nil {
		return err
	}
	if lang != "" {
		if _, err := db.ExecContext(ctx,
			`UPDATE res_users SET lang = $1 WHERE id = 1`, lang); err != nil {
			return err
		}
	}
	return nil
}

// Duplicate copies a live database server-side and clones its
// filestore. The copy gets a fresh installation identifier so the two
// databases never collide.
func (s *Service) Duplicate(ctx context.Context, src, dst string) error {
	s.log.Info().Str("from", src).Str("to", dst).Msg("duplicate database")
	s.pool.CloseDB(src)
	db, err := s.pool.Maintenance()
	if err != nil {
		return err
	}
	s.pool.Terminate(ctx, src)
	stmt := fmt.Sprintf("CREATE DATABASE %s ENCODING 'unicode' TEMPLATE %s",
		quoteIdent(dst), quoteIdent(src))
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return srverr.ProvisionFailed.New("duplicate database %s to %s: %v", src, dst, err)
	}
	if err := s.resetInstallationID(ctx, dst); err != nil {
		return err
	}
	return s.files.Copy(src, dst)
}

// Drop removes a database and its filestore. Returns false without
// side effects when the name is not in the visible database list.
func (s *Service) Drop(ctx context.Context, name string) (bool, error) {
	names, err := s.pool.ListDatabases(ctx)
	if err != nil {
		return false, err
	}
	if !contains(names, name) {
		return false, nil
	}
	s.pool.CloseDB(name)
	db, err := s.pool.Maintenance()
	if err != nil {
		return false, err
	}
	s.pool.Terminate(ctx, name)
	if _, err := db.ExecContext(ctx, "DROP DATABASE "+quoteIdent(name)); err != nil {
		s.log.Info().Err(err).Str("db", name).Msg("drop database failed")
		return false, databaseError("drop database", name, err)
	}
	s.log.Info().Str("db", name).Msg("dropped database")
	if err := s.files.Remove(name); err != nil {
		return true, err
	}
	return true, nil
}

// Rename renames a database and then moves its filestore. The
// filestore only moves after the SQL rename succeeded, so a failed
// rename never leaves the target's filestore populated.
func (s *Service) Rename(ctx context.Context, oldName, newName string) error {
	s.pool.CloseDB(oldName)
	db, err := s.pool.Maintenance()
	if err != nil {
		return err
	}
	s.pool.Terminate(ctx, oldName)
	stmt := fmt.Sprintf("ALTER DATABASE %s RENAME TO %s", quoteIdent(oldName), quoteIdent(newName))
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		s.log.Info().Err(err).Str("from", oldName).Str("to", newName).Msg("rename database failed")
		return srverr.ProvisionFailed.New("rename database %s to %s: %v", oldName, newName, err)
	}
	s.log.Info().Str("from", oldName).Str("to", newName).Msg("renamed database")
	return s.files.Move(oldName, newName)
}

// Database names are case-sensitive identifiers; no folding here.
func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
