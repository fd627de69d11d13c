// Package filestore manages the per-database attachment trees stored
// outside the relational engine. Each database owns at most one tree,
// located at a deterministic path under the configured root, and the
// tree always travels with its database through duplicate, rename,
// backup, and restore.
package filestore

import (
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

type Store struct {
	fs   afero.Fs
	root string
}

func New(root string) *Store {
	return &Store{fs: afero.NewOsFs(), root: root}
}

// NewWithFs backs the store with an arbitrary filesystem (tests).
func NewWithFs(fs afero.Fs, root string) *Store {
	return &Store{fs: fs, root: root}
}

// Path resolves the attachment tree for a database name. Pure function
// of the name; it does not touch the filesystem.
func (s *Store) Path(name string) string {
	return filepath.Join(s.root, name)
}

// Exists reports whether the database has an attachment tree. Absence
// is normal: a database may have no attachments.
func (s *Store) Exists(name string) bool {
	info, err := s.fs.Stat(s.Path(name))
	return err == nil && info.IsDir()
}

// Copy clones src's tree to dst. It is a no-op when src has no tree or
// dst already has one, so a pre-existing destination is never clobbered.
func (s *Store) Copy(src, dst string) error {
	if !s.Exists(src) || s.Exists(dst) {
		return nil
	}
	return s.copyTree(s.Path(src), s.Path(dst))
}

// Move relocates src's tree to dst under the same no-clobber rule.
func (s *Store) Move(src, dst string) error {
	if !s.Exists(src) || s.Exists(dst) {
		return nil
	}
	if err := s.fs.Rename(s.Path(src), s.Path(dst)); err == nil {
		return nil
	}
	// Rename can fail across devices; fall back to copy+remove.
	if err := s.copyTree(s.Path(src), s.Path(dst)); err != nil {
		return err
	}
	return s.fs.RemoveAll(s.Path(src))
}

// Remove deletes the database's tree, if any.
func (s *Store) Remove(name string) error {
	if !s.Exists(name) {
		return nil
	}
	return s.fs.RemoveAll(s.Path(name))
}

// ExportTree copies the database's tree into destDir (dump staging).
func (s *Store) ExportTree(name, destDir string) error {
	if !s.Exists(name) {
		return nil
	}
	return s.copyTree(s.Path(name), destDir)
}

// ImportTree moves an extracted tree into place as name's filestore.
// Used by restore once the destination database is live.
func (s *Store) ImportTree(srcDir, name string) error {
	if err := s.fs.MkdirAll(s.root, 0o750); err != nil {
		return err
	}
	if err := s.fs.Rename(srcDir, s.Path(name)); err == nil {
		return nil
	}
	if err := s.copyTree(srcDir, s.Path(name)); err != nil {
		return err
	}
	return s.fs.RemoveAll(srcDir)
}

func (s *Store) copyTree(src, dst string) error {
	return afero.Walk(s.fs, src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return s.fs.MkdirAll(target, info.Mode().Perm()|0o700)
		}
		return s.copyFile(path, target, info.Mode().Perm())
	})
}

func (s *Store) copyFile(src, dst string, perm os.FileMode) error {
	in, err := s.fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	if err := s.fs.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return err
	}
	out, err := s.fs.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
