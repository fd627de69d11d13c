package lifecycle

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/rowjay/db-admin-utility/internal/archive"
	"github.com/rowjay/db-admin-utility/internal/registry"
	"github.com/rowjay/db-admin-utility/internal/srverr"
	"github.com/rowjay/db-admin-utility/internal/version"
)

// Restore materializes a database plus filestore from an archive
// stream. asCopy forces regeneration of the installation identifier.
// On a failed restore the freshly created empty database is left
// behind for inspection rather than dropped.
func (s *Service) Restore(ctx context.Context, name string, data io.Reader, asCopy bool) error {
	tmp, err := os.CreateTemp("", "dba-restore-")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return s.RestoreFile(ctx, name, tmp.Name(), asCopy)
}

// RestoreFile restores from an archive already on disk.
func (s *Service) RestoreFile(ctx context.Context, name, archivePath string, asCopy bool) error {
	if s.pool.Exists(ctx, name) {
		s.log.Info().Str("db", name).Msg("restore: database already exists")
		return srverr.AlreadyExists.New("%q", name)
	}
	if err := s.createEmptyDatabase(ctx, name); err != nil {
		return err
	}

	staging, err := os.MkdirTemp("", "dba-restore-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(staging)

	hasFilestore := false
	switch archive.DetectFile(archivePath) {
	case archive.FormatZip:
		var manifest *archive.Manifest
		hasFilestore, manifest, err = archive.ExtractSafe(archivePath, staging)
		if err != nil {
			return srverr.RestoreFailed.New("unpack archive: %v", err)
		}
		s.reportManifest(manifest)
		err = s.runner.Run(ctx, "psql", "-q", "--dbname="+name, "-f", filepath.Join(staging, archive.DumpName))
	default:
		err = s.runner.Run(ctx, "pg_restore", "--no-owner", "--dbname="+name, archivePath)
	}
	if err != nil {
		return srverr.RestoreFailed.New("%v", err)
	}

	if err := s.registry.New(ctx, name, registry.Options{}); err != nil {
		return err
	}
	if asCopy {
		if err := s.resetInstallationID(ctx, name); err != nil {
			return err
		}
	}
	if hasFilestore {
		if err := s.files.ImportTree(filepath.Join(staging, "filestore"), name); err != nil {
			return err
		}
	}
	if s.cfg.Master.Unaccent {
		s.enableUnaccent(ctx, name)
	}
	s.log.Info().Str("db", name).Msg("restored database")
	return nil
}

// reportManifest surfaces provenance and version skew for operators.
// Mismatches never fail the restore.
func (s *Service) reportManifest(m *archive.Manifest) {
	if m == nil {
		return
	}
	event := s.log.Info().
		Str("source_db", m.DBName).
		Str("version", m.Version).
		Int("modules", len(m.Modules))
	if m.MajorVersion != "" && m.MajorVersion != version.MajorRelease {
		event = event.Str("expected_version", version.MajorRelease).Bool("version_mismatch", true)
	}
	event.Msg("restoring archive")
}
