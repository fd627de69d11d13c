// Package registry is the engine's view of the external application
// registry: the collaborator that turns a bare database into a working
// application instance (schema, data migrations, module activation).
// Only the bootstrap interface is modeled here.
package registry

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"
	"github.com/zeebo/errs"
)

// Options control a bootstrap pass.
type Options struct {
	// Demo seeds demonstration data into a fresh database.
	Demo bool
	// UpdateModules re-applies pending schema/data upgrades.
	UpdateModules bool
	// ForceUpdate forces the base module upgrade (migration runs).
	ForceUpdate bool
	Language    string
	CountryCode string
}

// Bootstrap provisions the application layer of a database. Called
// after any operation that changes schema or data.
type Bootstrap interface {
	New(ctx context.Context, database string, opts Options) error
}

// Command shells out to a configured bootstrap tool.
type Command struct {
	argv []string
	log  zerolog.Logger
}

func NewCommand(argv []string, log zerolog.Logger) *Command {
	return &Command{argv: argv, log: log}
}

func (c *Command) New(ctx context.Context, database string, opts Options) error {
	if len(c.argv) == 0 {
		c.log.Debug().Str("db", database).Msg("registry bootstrap disabled; no command configured")
		return nil
	}
	args := append([]string{}, c.argv[1:]...)
	args = append(args, "--database="+database)
	if opts.Demo {
		args = append(args, "--demo")
	} else {
		args = append(args, "--without-demo")
	}
	if opts.UpdateModules {
		args = append(args, "--update-modules")
	}
	if opts.ForceUpdate {
		args = append(args, "--force-update")
	}
	if opts.Language != "" {
		args = append(args, "--load-language="+opts.Language)
	}
	if opts.CountryCode != "" {
		args = append(args, "--country="+opts.CountryCode)
	}

	cmd := exec.CommandContext(ctx, c.argv[0], args...)
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output
	c.log.Info().Str("db", database).Str("cmd", c.argv[0]).Msg("registry bootstrap")
	if err := cmd.Run(); err != nil {
		return errs.New("registry bootstrap %s: %v: %s", database, err, strings.TrimSpace(output.String()))
	}
	return nil
}

// NoOp satisfies Bootstrap without side effects (tests, bare-SQL use).
type NoOp struct{}

func (NoOp) New(context.Context, string, Options) error { return nil }
