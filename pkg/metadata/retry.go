package metadata

import (
	"context"
	"errors"

	"github.com/otakuflix/adata/pkg/catalog"
)

// Lookup queries p for q and, when nothing matches the raw name, retries once
// with the cleaned name.
func Lookup(ctx context.Context, p Provider, q Query) (Record, error) {
	rec, err := p.Lookup(ctx, q)
	if !errors.Is(err, ErrNoMatch) {
		return rec, err
	}
	cleaned := catalog.CleanName(q.Name)
	if cleaned == "" || cleaned == q.Name {
		return Record{}, err
	}
	q.Name = cleaned
	return p.Lookup(ctx, q)
}
