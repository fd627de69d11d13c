package pgpool

import (
	"context"
	"database/sql"
	"fmt"
)

// Postgres 9.2 renamed pg_stat_activity.procpid to pid.
const pidRenameVersion = 90200

// Terminate severs all other sessions connected to the named database.
// It is best-effort and never fails: callers always proceed to a
// destructive statement next, and that statement's error is the one
// worth surfacing.
func (p *Pool) Terminate(ctx context.Context, name string) {
	db, err := p.Maintenance()
	if err != nil {
		p.log.Debug().Err(err).Str("db", name).Msg("terminate sessions: no maintenance connection")
		return
	}
	version, err := p.ServerVersionNum(ctx)
	if err != nil {
		p.log.Debug().Err(err).Str("db", name).Msg("terminate sessions: version probe failed")
		return
	}
	if err := terminateSessions(ctx, db, name, version); err != nil {
		p.log.Debug().Err(err).Str("db", name).Msg("terminate sessions failed")
	}
}

func terminateSessions(ctx context.Context, db *sql.DB, name string, serverVersion int) error {
	col := pidColumn(serverVersion)
	query := fmt.Sprintf(
		`SELECT pg_terminate_backend(%[1]s)
		 FROM pg_stat_activity
		 WHERE datname = $1 AND %[1]s != pg_backend_pid()`, col)
	_, err := db.ExecContext(ctx, query, name)
	return err
}

func pidColumn(serverVersion int) string {
	if serverVersion >= pidRenameVersion {
		return "pid"
	}
	return "procpid"
}
