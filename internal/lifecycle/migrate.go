package lifecycle

import (
	"context"

	"github.com/zeebo/errs"

	"github.com/rowjay/db-admin-utility/internal/registry"
)

// Migrate re-applies pending schema and data upgrades to each named
// database in order. Upgrades are I/O- and lock-heavy, so they run
// strictly sequentially; the first failure aborts and names the
// database it happened on. The overall call succeeds only when every
// database migrated.
func (s *Service) Migrate(ctx context.Context, names []string) error {
	for _, name := range names {
		s.log.Info().Str("db", name).Msg("migrate database")
		opts := registry.Options{
			Demo:          false,
			UpdateModules: true,
			ForceUpdate:   true,
		}
		if err := s.registry.New(ctx, name, opts); err != nil {
			return errs.New("migrate %s: %v", name, err)
		}
	}
	return nil
}
