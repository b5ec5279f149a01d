package ledger

import (
	"context"
	"sync"

	"github.com/cassiomorais/pspadapter/internal/domain/interaction"
)

// TypeResolver maps interaction type keys to platform ids, caching hits.
// Concurrent first lookups of the same key may both reach the repository;
// they resolve to the same id, so the last store wins harmlessly. Failed
// lookups are not cached.
type TypeResolver struct {
	repo interaction.TypeRepository
	ids  sync.Map // key -> id
}

func NewTypeResolver(repo interaction.TypeRepository) *TypeResolver {
	return &TypeResolver{repo: repo}
}

// ID returns the platform id for key, or ErrTypeNotFound.
func (r *TypeResolver) ID(ctx context.Context, key string) (string, error) {
	if id, ok := r.ids.Load(key); ok {
		return id.(string), nil
	}

	id, err := r.repo.IDByKey(ctx, key)
	if err != nil {
		return "", err
	}
	r.ids.Store(key, id)
	return id, nil
}

// Prime records a known key to id mapping, as returned by provisioning.
func (r *TypeResolver) Prime(key, id string) {
	r.ids.Store(key, id)
}
