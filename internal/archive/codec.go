// Package archive reads and writes the portable dump format: a zip
// container holding dump.sql, manifest.json, and an optional
// filestore/ subtree, with a legacy fallback of raw pg_dump
// custom-format output.
package archive

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/zeebo/errs"
)

// DumpName is the SQL dump member inside a zip archive.
const DumpName = "dump.sql"

// FilestorePrefix is the attachment subtree inside a zip archive.
const FilestorePrefix = "filestore/"

type Format int

const (
	// FormatZip is the current container: dump.sql + manifest.json +
	// optional filestore tree.
	FormatZip Format = iota
	// FormatCustom is the legacy encoding: raw output of
	// pg_dump --format=c, not a zip.
	FormatCustom
)

// DetectFile sniffs an archive's encoding. Anything that does not parse
// as a zip container is treated as a legacy custom-format dump.
func DetectFile(path string) Format {
	r, err := zip.OpenReader(path)
	if err != nil {
		return FormatCustom
	}
	r.Close()
	return FormatZip
}

// PackDir zips the contents of dir into w. Members are sorted with
// dump.sql demoted to the end of the listing so the bulky SQL payload
// is physically last; extraction carries no ordering dependency.
func PackDir(dir string, w io.Writer) error {
	var names []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return err
	}
	sort.Slice(names, func(i, j int) bool {
		if a, b := names[i] == DumpName, names[j] == DumpName; a != b {
			return b
		}
		return names[i] < names[j]
	})

	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestSpeed)
	})
	for _, name := range names {
		if err := packFile(zw, dir, name); err != nil {
			return err
		}
	}
	return zw.Close()
}

func packFile(zw *zip.Writer, dir, name string) error {
	in, err := os.Open(filepath.Join(dir, filepath.FromSlash(name)))
	if err != nil {
		return err
	}
	defer in.Close()
	dst, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return err
	}
	_, err = io.Copy(dst, in)
	return err
}

// ExtractSafe extracts only the known member set from a zip archive
// into destDir: dump.sql and anything under filestore/. Every other
// member is ignored, and traversal-shaped names are rejected outright.
// It reports whether a filestore subtree was present, and the parsed
// manifest when one is embedded.
func ExtractSafe(archivePath, destDir string) (hasFilestore bool, manifest *Manifest, err error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return false, nil, errs.Wrap(err)
	}
	defer r.Close()

	for _, f := range r.File {
		name := f.Name
		if !validMemberName(name) {
			return false, nil, errs.New("archive member %q is not a valid path", name)
		}
		switch {
		case name == DumpName:
			if err := extractMember(f, destDir); err != nil {
				return false, nil, err
			}
		case strings.HasPrefix(name, FilestorePrefix):
			hasFilestore = true
			if err := extractMember(f, destDir); err != nil {
				return false, nil, err
			}
		case name == ManifestName:
			m, readErr := readManifestMember(f)
			if readErr == nil {
				manifest = m
			}
		}
	}
	return hasFilestore, manifest, nil
}

func validMemberName(name string) bool {
	if name == "" || strings.HasPrefix(name, "/") || filepath.IsAbs(name) {
		return false
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." {
			return false
		}
	}
	return true
}

func extractMember(f *zip.File, destDir string) error {
	target := filepath.Join(destDir, filepath.FromSlash(f.Name))
	if strings.HasSuffix(f.Name, "/") {
		return os.MkdirAll(target, 0o750)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return err
	}
	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()
	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

func readManifestMember(f *zip.File) (*Manifest, error) {
	src, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, err
	}
	return ReadManifest(data)
}
