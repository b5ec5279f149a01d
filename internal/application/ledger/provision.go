package ledger

import (
	"context"
	"fmt"

	"github.com/cassiomorais/pspadapter/internal/domain/interaction"
	"github.com/rs/zerolog"
)

// Provision creates every interaction type that does not exist yet and
// primes the resolver with the resulting ids. Running it twice is a no-op.
func Provision(ctx context.Context, repo interaction.TypeRepository, resolver *TypeResolver, logger zerolog.Logger) error {
	for _, def := range interaction.Definitions() {
		id, err := repo.Ensure(ctx, def)
		if err != nil {
			return fmt.Errorf("ensure interaction type %s: %w", def.Key, err)
		}
		if resolver != nil {
			resolver.Prime(def.Key, id)
		}
		logger.Debug().Str("type_key", def.Key).Str("type_id", id).Msg("Interaction type ready")
	}
	return nil
}
