package embedcache

import "context"

// Tiered consults tiers in order. A hit in a slower tier is copied into the
// faster tiers before returning.
type Tiered struct {
	tiers []Tier
}

var _ Tier = (*Tiered)(nil)

// NewTiered builds a cache from fastest to slowest tier. Nil tiers are skipped.
func NewTiered(tiers ...Tier) *Tiered {
	t := &Tiered{}
	for _, tier := range tiers {
		if tier != nil {
			t.tiers = append(t.tiers, tier)
		}
	}
	return t
}

func (t *Tiered) Get(ctx context.Context, key string) ([]float32, bool) {
	for i, tier := range t.tiers {
		if v, ok := tier.Get(ctx, key); ok {
			for j := 0; j < i; j++ {
				t.tiers[j].Set(ctx, key, v)
			}
			return v, true
		}
	}
	return nil, false
}

func (t *Tiered) Set(ctx context.Context, key string, v []float32) {
	for _, tier := range t.tiers {
		tier.Set(ctx, key, v)
	}
}

func (t *Tiered) Invalidate(ctx context.Context, key string) {
	for _, tier := range t.tiers {
		tier.Invalidate(ctx, key)
	}
}

func (t *Tiered) Purge(ctx context.Context) {
	for _, tier := range t.tiers {
		tier.Purge(ctx)
	}
}
