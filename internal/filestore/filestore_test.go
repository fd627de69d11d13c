package filestore

import (
	"testing"

	"github.com/spf13/afero"
)

func memStore(t *testing.T) (*Store, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	return NewWithFs(fs, "/data/filestore"), fs
}

func seed(t *testing.T, fs afero.Fs, path, content string) {
	t.Helper()
	if err := afero.WriteFile(fs, path, []byte(content), 0o640); err != nil {
		t.Fatalf("seed %s: %v", path, err)
	}
}

func TestPathIsDeterministic(t *testing.T) {
	store, _ := memStore(t)
	if got := store.Path("prod"); got != "/data/filestore/prod" {
		t.Fatalf("unexpected path: %s", got)
	}
	if store.Path("prod") != store.Path("prod") {
		t.Fatalf("path is not stable")
	}
}

func TestCopyClonesTree(t *testing.T) {
	store, fs := memStore(t)
	seed(t, fs, "/data/filestore/src/ab/blob1", "one")
	seed(t, fs, "/data/filestore/src/cd/blob2", "two")

	if err := store.Copy("src", "dst"); err != nil {
		t.Fatalf("copy: %v", err)
	}
	got, err := afero.ReadFile(fs, "/data/filestore/dst/ab/blob1")
	if err != nil {
		t.Fatalf("read copy: %v", err)
	}
	if string(got) != "one" {
		t.Fatalf("unexpected content: %s", got)
	}
	// Source untouched.
	if !store.Exists("src") {
		t.Fatalf("source tree disappeared")
	}
}

func TestCopyNeverClobbers(t *testing.T) {
	store, fs := memStore(t)
	seed(t, fs, "/data/filestore/src/blob", "new")
	seed(t, fs, "/data/filestore/dst/blob", "existing")

	if err := store.Copy("src", "dst"); err != nil {
		t.Fatalf("copy: %v", err)
	}
	got, _ := afero.ReadFile(fs, "/data/filestore/dst/blob")
	if string(got) != "existing" {
		t.Fatalf("existing destination was overwritten")
	}
}

func TestCopyWithoutSourceIsNoop(t *testing.T) {
	store, _ := memStore(t)
	if err := store.Copy("absent", "dst"); err != nil {
		t.Fatalf("copy: %v", err)
	}
	if store.Exists("dst") {
		t.Fatalf("destination created from nothing")
	}
}

func TestMoveRelocatesTree(t *testing.T) {
	store, fs := memStore(t)
	seed(t, fs, "/data/filestore/old/ab/blob", "payload")

	if err := store.Move("old", "new"); err != nil {
		t.Fatalf("move: %v", err)
	}
	if store.Exists("old") {
		t.Fatalf("source still present after move")
	}
	got, err := afero.ReadFile(fs, "/data/filestore/new/ab/blob")
	if err != nil {
		t.Fatalf("read moved: %v", err)
	}
	if string(got) != "payload" {
		t.Fatalf("unexpected content: %s", got)
	}
}

func TestRemove(t *testing.T) {
	store, fs := memStore(t)
	seed(t, fs, "/data/filestore/gone/blob", "x")

	if err := store.Remove("gone"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if store.Exists("gone") {
		t.Fatalf("tree still present")
	}
	// Removing a missing tree is fine.
	if err := store.Remove("gone"); err != nil {
		t.Fatalf("second remove: %v", err)
	}
}

func TestExportAndImportTree(t *testing.T) {
	store, fs := memStore(t)
	seed(t, fs, "/data/filestore/db1/ab/blob", "content")

	if err := store.ExportTree("db1", "/staging/filestore"); err != nil {
		t.Fatalf("export: %v", err)
	}
	got, err := afero.ReadFile(fs, "/staging/filestore/ab/blob")
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if string(got) != "content" {
		t.Fatalf("unexpected export content: %s", got)
	}

	if err := store.ImportTree("/staging/filestore", "db2"); err != nil {
		t.Fatalf("import: %v", err)
	}
	got, err = afero.ReadFile(fs, "/data/filestore/db2/ab/blob")
	if err != nil {
		t.Fatalf("read import: %v", err)
	}
	if string(got) != "content" {
		t.Fatalf("unexpected import content: %s", got)
	}
}
