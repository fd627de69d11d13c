// Package dispatch routes named service operations, enforcing the
// master-password gate on everything outside a small public allow-list.
// It is a pure router: no side effects beyond delegation.
package dispatch

import (
	"bytes"
	"context"
	"io"

	"github.com/zeebo/errs"

	"github.com/rowjay/db-admin-utility/internal/lifecycle"
	"github.com/rowjay/db-admin-utility/internal/master"
	"github.com/rowjay/db-admin-utility/internal/srverr"
)

// Service is the slice of the lifecycle engine the dispatcher fronts.
type Service interface {
	Exists(ctx context.Context, name string) bool
	List(ctx context.Context) ([]string, error)
	ListLanguages() []lifecycle.Language
	ServerVersion() string

	Create(ctx context.Context, name string, demo bool, lang, adminPassword, adminLogin, countryCode string) error
	Duplicate(ctx context.Context, src, dst string) error
	Drop(ctx context.Context, name string) (bool, error)
	Rename(ctx context.Context, oldName, newName string) error
	Dump(ctx context.Context, name, format string, w io.Writer) (io.ReadCloser, error)
	Restore(ctx context.Context, name string, data io.Reader, asCopy bool) error
	Migrate(ctx context.Context, names []string) error
	ChangeMasterPassword(newPassword string) error
}

// Secret yields the currently configured master password (or its
// hash); indirected so password rotation takes effect immediately.
type Secret func() string

type Dispatcher struct {
	svc    Service
	secret Secret
}

func New(svc Service, secret Secret) *Dispatcher {
	return &Dispatcher{svc: svc, secret: secret}
}

// Dispatch invokes method with params. For credentialed methods the
// first param is consumed as the master password and verified before
// anything else happens; a bad credential causes no side effect.
func (d *Dispatcher) Dispatch(ctx context.Context, method string, params []any) (any, error) {
	switch method {
	case "db_exist":
		name, err := argString(params, 0)
		if err != nil {
			return nil, err
		}
		return d.svc.Exists(ctx, name), nil
	case "list":
		return d.svc.List(ctx)
	case "list_lang":
		return d.svc.ListLanguages(), nil
	case "server_version":
		return d.svc.ServerVersion(), nil
	}

	if !isCredentialed(method) {
		return nil, srverr.MethodNotFound.New("%s", method)
	}
	cred, err := argString(params, 0)
	if err != nil || !master.Verify(d.secret(), cred) {
		return nil, srverr.AccessDenied.New("invalid master password")
	}
	return d.invoke(ctx, method, params[1:])
}

func isCredentialed(method string) bool {
	switch method {
	case "create_database", "duplicate_database", "drop", "dump",
		"restore", "rename", "change_admin_password", "migrate_databases":
		return true
	}
	return false
}

func (d *Dispatcher) invoke(ctx context.Context, method string, params []any) (any, error) {
	switch method {
	case "create_database":
		name, err := argString(params, 0)
		if err != nil {
			return nil, err
		}
		demo := argBool(params, 1)
		lang := argStringDefault(params, 2, "")
		password := argStringDefault(params, 3, "admin")
		login := argStringDefault(params, 4, "admin")
		country := argStringDefault(params, 5, "")
		if err := d.svc.Create(ctx, name, demo, lang, password, login, country); err != nil {
			return nil, err
		}
		return true, nil

	case "duplicate_database":
		src, err := argString(params, 0)
		if err != nil {
			return nil, err
		}
		dst, err := argString(params, 1)
		if err != nil {
			return nil, err
		}
		if err := d.svc.Duplicate(ctx, src, dst); err != nil {
			return nil, err
		}
		return true, nil

	case "drop":
		name, err := argString(params, 0)
		if err != nil {
			return nil, err
		}
		return d.svc.Drop(ctx, name)

	case "dump":
		name, err := argString(params, 0)
		if err != nil {
			return nil, err
		}
		format := argStringDefault(params, 1, "zip")
		rc, err := d.svc.Dump(ctx, name, format, nil)
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)

	case "restore":
		name, err := argString(params, 0)
		if err != nil {
			return nil, err
		}
		data, err := argBytes(params, 1)
		if err != nil {
			return nil, err
		}
		asCopy := argBool(params, 2)
		if err := d.svc.Restore(ctx, name, bytes.NewReader(data), asCopy); err != nil {
			return nil, err
		}
		return true, nil

	case "rename":
		oldName, err := argString(params, 0)
		if err != nil {
			return nil, err
		}
		newName, err := argString(params, 1)
		if err != nil {
			return nil, err
		}
		if err := d.svc.Rename(ctx, oldName, newName); err != nil {
			return nil, err
		}
		return true, nil

	case "change_admin_password":
		newPassword, err := argString(params, 0)
		if err != nil {
			return nil, err
		}
		if err := d.svc.ChangeMasterPassword(newPassword); err != nil {
			return nil, err
		}
		return true, nil

	case "migrate_databases":
		names, err := argStrings(params, 0)
		if err != nil {
			return nil, err
		}
		if err := d.svc.Migrate(ctx, names); err != nil {
			return nil, err
		}
		return true, nil
	}
	return nil, srverr.MethodNotFound.New("%s", method)
}

func argString(params []any, i int) (string, error) {
	if i >= len(params) {
		return "", errs.New("missing parameter %d", i)
	}
	s, ok := params[i].(string)
	if !ok {
		return "", errs.New("parameter %d: expected string, got %T", i, params[i])
	}
	return s, nil
}

func argStringDefault(params []any, i int, def string) string {
	s, err := argString(params, i)
	if err != nil || s == "" {
		return def
	}
	return s
}

func argBool(params []any, i int) bool {
	if i >= len(params) {
		return false
	}
	b, ok := params[i].(bool)
	return ok && b
}

func argBytes(params []any, i int) ([]byte, error) {
	if i >= len(params) {
		return nil, errs.New("missing parameter %d", i)
	}
	switch v := params[i].(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, errs.New("parameter %d: expected bytes, got %T", i, params[i])
	}
}

func argStrings(params []any, i int) ([]string, error) {
	if i >= len(params) {
		return nil, errs.New("missing parameter %d", i)
	}
	switch v := params[i].(type) {
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, errs.New("parameter %d: expected string list", i)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, errs.New("parameter %d: expected string list, got %T", i, params[i])
	}
}
