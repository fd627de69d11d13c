// Package pgpool maintains the process-wide cache of administrative
// connections to the Postgres cluster, one handle per database name.
// Every operation that destroys, renames, or recreates a database must
// invalidate its cache entry before issuing the destructive statement.
package pgpool

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/rowjay/db-admin-utility/internal/config"
)

type Pool struct {
	cfg config.ServerConfig
	log zerolog.Logger

	mu    sync.Mutex
	conns map[string]*sql.DB
}

func New(cfg config.ServerConfig, log zerolog.Logger) *Pool {
	return &Pool{cfg: cfg, log: log, conns: make(map[string]*sql.DB)}
}

// Get returns the cached handle for the named database, opening one if
// needed. Handles stay open until CloseDB/CloseAll invalidates them.
func (p *Pool) Get(name string) (*sql.DB, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if db, ok := p.conns[name]; ok {
		return db, nil
	}
	db, err := sql.Open("postgres", p.dsn(name))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(2)
	p.conns[name] = db
	return db, nil
}

// Maintenance returns the handle to the cluster's maintenance database,
// used for CREATE/DROP/ALTER DATABASE statements.
func (p *Pool) Maintenance() (*sql.DB, error) {
	return p.Get(p.cfg.MaintenanceDB)
}

// CloseDB invalidates the cached handle for name. Callers invoke this
// before any statement that would conflict with lingering local
// connections (DROP, RENAME, TEMPLATE copy).
func (p *Pool) CloseDB(name string) {
	p.mu.Lock()
	db, ok := p.conns[name]
	if ok {
		delete(p.conns, name)
	}
	p.mu.Unlock()
	if ok {
		if err := db.Close(); err != nil {
			p.log.Debug().Err(err).Str("db", name).Msg("closing cached connection")
		}
	}
}

// CloseAll invalidates every cached handle.
func (p *Pool) CloseAll() {
	p.mu.Lock()
	conns := p.conns
	p.conns = make(map[string]*sql.DB)
	p.mu.Unlock()
	for name, db := range conns {
		if err := db.Close(); err != nil {
			p.log.Debug().Err(err).Str("db", name).Msg("closing cached connection")
		}
	}
}

// Exists reports whether a connection to the named database can be
// established. A database that exists but is unreachable (permissions,
// network) is indistinguishable from a nonexistent one here; callers
// needing exact semantics should consult ListDatabases instead.
func (p *Pool) Exists(ctx context.Context, name string) bool {
	db, err := sql.Open("postgres", p.dsn(name))
	if err != nil {
		return false
	}
	defer db.Close()
	return db.PingContext(ctx) == nil
}

// ListDatabases returns the names of all connectable, non-template
// databases on the cluster, excluding the maintenance and template
// databases, sorted.
func (p *Pool) ListDatabases(ctx context.Context) ([]string, error) {
	db, err := p.Maintenance()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx,
		`SELECT datname FROM pg_database
		 WHERE NOT datistemplate AND datallowconn AND datname NOT IN ($1, $2)
		 ORDER BY datname`,
		p.cfg.MaintenanceDB, p.cfg.Template)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// ServerVersionNum returns the cluster version as reported by
// server_version_num (e.g. 90600, 150002).
func (p *Pool) ServerVersionNum(ctx context.Context) (int, error) {
	db, err := p.Maintenance()
	if err != nil {
		return 0, err
	}
	var raw string
	if err := db.QueryRowContext(ctx, "SHOW server_version_num").Scan(&raw); err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(raw))
}

func (p *Pool) dsn(name string) string {
	parts := []string{
		"host=" + quoteDSN(p.cfg.Host),
		fmt.Sprintf("port=%d", p.cfg.Port),
		"dbname=" + quoteDSN(name),
		"sslmode=" + sslModeOrDefault(p.cfg.SSLMode),
	}
	if p.cfg.Username != "" {
		parts = append(parts, "user="+quoteDSN(p.cfg.Username))
	}
	if p.cfg.Password != "" {
		parts = append(parts, "password="+quoteDSN(p.cfg.Password))
	}
	if p.cfg.ConnectionTimeout > 0 {
		parts = append(parts, fmt.Sprintf("connect_timeout=%d", int(p.cfg.ConnectionTimeout.Seconds())))
	}
	return strings.Join(parts, " ")
}

func sslModeOrDefault(mode string) string {
	if mode == "" {
		return "disable"
	}
	return mode
}

func quoteDSN(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}
