package lifecycle

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rowjay/db-admin-utility/internal/archive"
	"github.com/rowjay/db-admin-utility/internal/version"
)

// FormatZip produces the portable container: plain SQL dump, manifest,
// and filestore tree. Any other value falls through to the legacy raw
// custom-format dump.
const FormatZip = "zip"

// Dump snapshots a live database. When w is nil the archive is staged
// in a temporary file and returned as a reader positioned at offset
// zero; the file is removed on Close.
func (s *Service) Dump(ctx context.Context, name, format string, w io.Writer) (io.ReadCloser, error) {
	s.log.Info().Str("db", name).Str("format", format).Msg("dump database")
	if format == FormatZip {
		return s.dumpZip(ctx, name, w)
	}
	return s.dumpCustom(ctx, name, w)
}

func (s *Service) dumpZip(ctx context.Context, name string, w io.Writer) (io.ReadCloser, error) {
	staging, err := os.MkdirTemp("", "dba-dump-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(staging)

	if err := s.files.ExportTree(name, filepath.Join(staging, "filestore")); err != nil {
		return nil, err
	}
	manifest, err := s.buildManifest(ctx, name)
	if err != nil {
		return nil, err
	}
	if err := archive.WriteManifest(staging, manifest); err != nil {
		return nil, err
	}
	dumpPath := filepath.Join(staging, archive.DumpName)
	if err := s.runner.Run(ctx, "pg_dump", "--no-owner", "--file="+dumpPath, name); err != nil {
		return nil, err
	}

	if w != nil {
		return nil, archive.PackDir(staging, w)
	}
	tmp, err := os.CreateTemp("", "dba-archive-")
	if err != nil {
		return nil, err
	}
	if err := archive.PackDir(staging, tmp); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, err
	}
	return rewound(tmp)
}

func (s *Service) dumpCustom(ctx context.Context, name string, w io.Writer) (io.ReadCloser, error) {
	stream, err := s.runner.Stream(ctx, "pg_dump", "--no-owner", "--format=c", name)
	if err != nil {
		return nil, err
	}
	if w != nil {
		if _, err := io.Copy(w, stream.Reader); err != nil {
			_ = stream.Wait()
			return nil, err
		}
		return nil, stream.Wait()
	}
	tmp, err := os.CreateTemp("", "dba-archive-")
	if err != nil {
		_ = stream.Wait()
		return nil, err
	}
	if _, err := io.Copy(tmp, stream.Reader); err != nil {
		_ = stream.Wait()
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, err
	}
	if err := stream.Wait(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, err
	}
	return rewound(tmp)
}

func (s *Service) buildManifest(ctx context.Context, name string) (*archive.Manifest, error) {
	versionNum, err := s.pool.ServerVersionNum(ctx)
	if err != nil {
		return nil, err
	}
	db, err := s.pool.Get(name)
	if err != nil {
		return nil, err
	}
	return manifestForDB(ctx, db, name, pgVersionString(versionNum))
}

func manifestForDB(ctx context.Context, db *sql.DB, name, pgVersion string) (*archive.Manifest, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT name, latest_version FROM ir_module_module WHERE state = 'installed'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	modules := make(map[string]string)
	for rows.Next() {
		var mod, ver string
		if err := rows.Scan(&mod, &ver); err != nil {
			return nil, err
		}
		modules[mod] = ver
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &archive.Manifest{
		Marker:       archive.FormatMarker,
		DBName:       name,
		Version:      version.Release,
		VersionInfo:  version.ReleaseInfo,
		MajorVersion: version.MajorRelease,
		PGVersion:    pgVersion,
		Modules:      modules,
	}, nil
}

func pgVersionString(versionNum int) string {
	return fmt.Sprintf("%d.%d", versionNum/10000, (versionNum/100)%100)
}

// rewound returns the temp file as a reader at offset zero that
// deletes itself on Close.
func rewound(f *os.File) (io.ReadCloser, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, err
	}
	return &tempFileReader{File: f}, nil
}

type tempFileReader struct {
	*os.File
}

func (t *tempFileReader) Close() error {
	err := t.File.Close()
	os.Remove(t.File.Name())
	return err
}
