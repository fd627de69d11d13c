// Package pgtools invokes the external Postgres client tools (pg_dump,
// psql, pg_restore) with the administrative connection environment.
package pgtools

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/zeebo/errs"

	"github.com/rowjay/db-admin-utility/internal/config"
)

type Runner struct {
	cfg config.ServerConfig
}

func NewRunner(cfg config.ServerConfig) *Runner {
	return &Runner{cfg: cfg}
}

// RequireBinary verifies the binary is on PATH.
func RequireBinary(name string) error {
	if _, err := exec.LookPath(name); err != nil {
		return fmt.Errorf("required binary not found: %s", name)
	}
	return nil
}

// Run executes a tool to completion. A nonzero exit becomes an error
// carrying the tool's captured stderr/stdout.
func (r *Runner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = r.mergedEnv()
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output
	if err := cmd.Run(); err != nil {
		return errs.New("%s %s: %v: %s", name, strings.Join(args, " "), err, strings.TrimSpace(output.String()))
	}
	return nil
}

// Stream starts a tool whose stdout is consumed by the caller. Wait
// must be called after the reader is drained; it folds a nonzero exit
// and the captured stderr into one error.
type Stream struct {
	Reader io.ReadCloser
	Wait   func() error
}

func (r *Runner) Stream(ctx context.Context, name string, args ...string) (*Stream, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = r.mergedEnv()
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	wait := func() error {
		if err := cmd.Wait(); err != nil {
			return errs.New("%s: %v: %s", name, err, strings.TrimSpace(stderr.String()))
		}
		return nil
	}
	return &Stream{Reader: stdout, Wait: wait}, nil
}

func (r *Runner) mergedEnv() []string {
	env := append([]string{}, os.Environ()...)
	env = append(env,
		"PGHOST="+r.cfg.Host,
		"PGPORT="+strconv.Itoa(portOrDefault(r.cfg.Port)),
	)
	if r.cfg.Username != "" {
		env = append(env, "PGUSER="+r.cfg.Username)
	}
	if r.cfg.Password != "" {
		env = append(env, "PGPASSWORD="+r.cfg.Password)
	}
	if r.cfg.SSLMode != "" {
		env = append(env, "PGSSLMODE="+r.cfg.SSLMode)
	}
	if r.cfg.ConnectionTimeout > 0 {
		env = append(env, "PGCONNECT_TIMEOUT="+strconv.Itoa(int(r.cfg.ConnectionTimeout.Seconds())))
	}
	return env
}

func portOrDefault(port int) int {
	if port == 0 {
		return 5432
	}
	return port
}
