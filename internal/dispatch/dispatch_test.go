package dispatch

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/rowjay/db-admin-utility/internal/lifecycle"
	"github.com/rowjay/db-admin-utility/internal/srverr"
)

// spyService records which operations were invoked.
type spyService struct {
	calls []string

	existsResult bool
	listResult   []string
	dropResult   bool
	dumpPayload  []byte
	restored     []byte

	createName     string
	createDemo     bool
	createLogin    string
	createPassword string
}

func (s *spyService) record(name string) { s.calls = append(s.calls, name) }

func (s *spyService) Exists(ctx context.Context, name string) bool {
	s.record("exists")
	return s.existsResult
}

func (s *spyService) List(ctx context.Context) ([]string, error) {
	s.record("list")
	return s.listResult, nil
}

func (s *spyService) ListLanguages() []lifecycle.Language {
	s.record("list_lang")
	return []lifecycle.Language{{Code: "en_US", Name: "English (US)"}}
}

func (s *spyService) ServerVersion() string {
	s.record("server_version")
	return "11.0"
}

func (s *spyService) Create(ctx context.Context, name string, demo bool, lang, adminPassword, adminLogin, countryCode string) error {
	s.record("create")
	s.createName = name
	s.createDemo = demo
	s.createLogin = adminLogin
	s.createPassword = adminPassword
	return nil
}

func (s *spyService) Duplicate(ctx context.Context, src, dst string) error {
	s.record("duplicate")
	return nil
}

func (s *spyService) Drop(ctx context.Context, name string) (bool, error) {
	s.record("drop")
	return s.dropResult, nil
}

func (s *spyService) Rename(ctx context.Context, oldName, newName string) error {
	s.record("rename")
	return nil
}

func (s *spyService) Dump(ctx context.Context, name, format string, w io.Writer) (io.ReadCloser, error) {
	s.record("dump")
	return io.NopCloser(bytes.NewReader(s.dumpPayload)), nil
}

func (s *spyService) Restore(ctx context.Context, name string, data io.Reader, asCopy bool) error {
	s.record("restore")
	payload, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	s.restored = payload
	return nil
}

func (s *spyService) Migrate(ctx context.Context, names []string) error {
	s.record("migrate")
	return nil
}

func (s *spyService) ChangeMasterPassword(newPassword string) error {
	s.record("change_admin_password")
	return nil
}

func newTestDispatcher(spy *spyService) *Dispatcher {
	return New(spy, func() string { return "s3cret" })
}

func TestDispatchPublicMethodsNeedNoCredential(t *testing.T) {
	spy := &spyService{existsResult: true, listResult: []string{"a", "b"}}
	d := newTestDispatcher(spy)

	res, err := d.Dispatch(context.Background(), "db_exist", []any{"prod"})
	if err != nil {
		t.Fatalf("db_exist: %v", err)
	}
	if res != true {
		t.Fatalf("unexpected db_exist result: %v", res)
	}

	res, err = d.Dispatch(context.Background(), "list", nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if names := res.([]string); len(names) != 2 {
		t.Fatalf("unexpected list result: %v", names)
	}

	if _, err := d.Dispatch(context.Background(), "server_version", nil); err != nil {
		t.Fatalf("server_version: %v", err)
	}
	if _, err := d.Dispatch(context.Background(), "list_lang", nil); err != nil {
		t.Fatalf("list_lang: %v", err)
	}
}

func TestDispatchRejectsBadCredentialWithoutSideEffect(t *testing.T) {
	spy := &spyService{}
	d := newTestDispatcher(spy)

	for _, method := range []string{
		"create_database", "duplicate_database", "drop", "dump",
		"restore", "rename", "change_admin_password", "migrate_databases",
	} {
		_, err := d.Dispatch(context.Background(), method, []any{"wrong", "demo"})
		if !srverr.AccessDenied.Has(err) {
			t.Fatalf("%s: expected access denied, got %v", method, err)
		}
	}
	if len(spy.calls) != 0 {
		t.Fatalf("service was invoked despite bad credential: %v", spy.calls)
	}
}

func TestDispatchMissingCredential(t *testing.T) {
	spy := &spyService{}
	d := newTestDispatcher(spy)
	_, err := d.Dispatch(context.Background(), "drop", nil)
	if !srverr.AccessDenied.Has(err) {
		t.Fatalf("expected access denied, got %v", err)
	}
	if len(spy.calls) != 0 {
		t.Fatalf("service was invoked: %v", spy.calls)
	}
}

func TestDispatchUnknownMethod(t *testing.T) {
	spy := &spyService{}
	d := newTestDispatcher(spy)
	_, err := d.Dispatch(context.Background(), "explode", []any{"s3cret"})
	if !srverr.MethodNotFound.Has(err) {
		t.Fatalf("expected method not found, got %v", err)
	}
}

func TestDispatchCreateStripsCredentialAndDefaults(t *testing.T) {
	spy := &spyService{}
	d := newTestDispatcher(spy)

	res, err := d.Dispatch(context.Background(), "create_database",
		[]any{"s3cret", "demo", true, "en_US"})
	if err != nil {
		t.Fatalf("create_database: %v", err)
	}
	if res != true {
		t.Fatalf("unexpected result: %v", res)
	}
	if spy.createName != "demo" || !spy.createDemo {
		t.Fatalf("wrong create args: %s demo=%v", spy.createName, spy.createDemo)
	}
	if spy.createLogin != "admin" || spy.createPassword != "admin" {
		t.Fatalf("defaults not applied: login=%s password=%s", spy.createLogin, spy.createPassword)
	}
}

func TestDispatchDumpReturnsBytes(t *testing.T) {
	spy := &spyService{dumpPayload: []byte("PGDMP...")}
	d := newTestDispatcher(spy)

	res, err := d.Dispatch(context.Background(), "dump", []any{"s3cret", "demo", "custom"})
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	if string(res.([]byte)) != "PGDMP..." {
		t.Fatalf("unexpected payload: %q", res)
	}
}

func TestDispatchRestorePassesPayload(t *testing.T) {
	spy := &spyService{}
	d := newTestDispatcher(spy)

	res, err := d.Dispatch(context.Background(), "restore",
		[]any{"s3cret", "demo2", []byte("archive-bytes"), true})
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if res != true {
		t.Fatalf("unexpected result: %v", res)
	}
	if string(spy.restored) != "archive-bytes" {
		t.Fatalf("payload not forwarded: %q", spy.restored)
	}
}

func TestDispatchMigrateAcceptsAnySlice(t *testing.T) {
	spy := &spyService{}
	d := newTestDispatcher(spy)

	if _, err := d.Dispatch(context.Background(), "migrate_databases",
		[]any{"s3cret", []any{"a", "b"}}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if len(spy.calls) != 1 || spy.calls[0] != "migrate" {
		t.Fatalf("unexpected calls: %v", spy.calls)
	}
}
