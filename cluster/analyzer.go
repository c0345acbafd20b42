package cluster

import (
	"bytes"
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/samber/lo"

	"github.com/poiesic/keywordlens/core"
	"github.com/poiesic/keywordlens/storage"
	"github.com/poiesic/keywordlens/vector"
)

// DefaultRepresentativeKeywords is how many top-volume keywords describe a cluster.
const DefaultRepresentativeKeywords = 5

// ErrRepositoryRequired is returned when no cluster repository is provided.
var ErrRepositoryRequired = errors.New("cluster repository required")

// buckets are the size ranges of the distribution, in order. Max 0 is unbounded.
var buckets = []core.SizeBucket{
	{Range: "1-5", Min: 1, Max: 5},
	{Range: "6-15", Min: 6, Max: 15},
	{Range: "16-30", Min: 16, Max: 30},
	{Range: "31+", Min: 31},
}

// Analyzer computes cluster analyses.
type Analyzer struct {
	repo            storage.ClusterRepository
	logger          *slog.Logger
	representatives int
}

// Option configures an Analyzer.
type Option func(*Analyzer) error

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Analyzer) error {
		if logger == nil {
			logger = slog.Default()
		}
		a.logger = logger.With("component", "cluster-analyzer")
		return nil
	}
}

// WithRepresentativeKeywords sets how many keywords are listed per cluster.
func WithRepresentativeKeywords(n int) Option {
	return func(a *Analyzer) error {
		if n < 0 {
			return fmt.Errorf("representative keywords cannot be negative: %d", n)
		}
		a.representatives = n
		return nil
	}
}

// NewAnalyzer creates an analyzer over a cluster repository.
func NewAnalyzer(repo storage.ClusterRepository, opts ...Option) (*Analyzer, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}
	a := &Analyzer{
		repo:            repo,
		logger:          slog.Default().With("component", "cluster-analyzer"),
		representatives: DefaultRepresentativeKeywords,
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Analyze reports the cluster distribution of a tenant, or of every tenant when
// blogScope is core.NilID. Clusters without embedded members are left out.
func (a *Analyzer) Analyze(ctx context.Context, blogScope core.ID) (*core.ClusterAnalysis, error) {
	const op = "analyze_clusters"

	keywords, err := a.repo.ListClusteredKeywords(ctx, blogScope)
	if err != nil {
		return nil, core.RepositoryUnavailable(op, err)
	}
	known, err := a.repo.ListClusters(ctx, blogScope)
	if err != nil {
		return nil, core.RepositoryUnavailable(op, err)
	}

	byId := make(map[core.ID]*core.SemanticCluster, len(known))
	for _, c := range known {
		byId[c.Id] = c
	}

	members := make(map[core.ID][]*core.KeywordVariation)
	for _, kw := range keywords {
		if kw.ClusterId == nil || !kw.HasEmbedding() {
			continue
		}
		members[*kw.ClusterId] = append(members[*kw.ClusterId], kw)
	}

	analysis := &core.ClusterAnalysis{
		SizeDistribution: slices.Clone(buckets),
		Clusters:         make([]*core.SemanticCluster, 0, len(members)),
	}
	for id, kws := range members {
		c := a.summarize(id, byId[id], kws)
		analysis.Clusters = append(analysis.Clusters, c)
		analysis.TotalKeywords += c.KeywordCount
		for i := range analysis.SizeDistribution {
			b := &analysis.SizeDistribution[i]
			if c.KeywordCount >= b.Min && (b.Max == 0 || c.KeywordCount <= b.Max) {
				b.Count++
				break
			}
		}
	}

	analysis.TotalClusters = len(analysis.Clusters)
	if analysis.TotalClusters == 0 {
		return analysis, nil
	}

	slices.SortFunc(analysis.Clusters, compareClusters)
	analysis.LargestCluster = analysis.Clusters[0]
	analysis.AvgClusterSize = int(math.Round(float64(analysis.TotalKeywords) / float64(analysis.TotalClusters)))

	a.logger.Debug("clusters analyzed",
		"clusters", analysis.TotalClusters,
		"keywords", analysis.TotalKeywords,
		"largest", analysis.LargestCluster.Name)
	return analysis, nil
}

// summarize builds the per-cluster view. Stored clusters may be missing when
// keywords reference a deleted cluster; the id stands in for the name then.
func (a *Analyzer) summarize(id core.ID, stored *core.SemanticCluster, kws []*core.KeywordVariation) *core.SemanticCluster {
	c := &core.SemanticCluster{Id: id, Name: id.String()}
	if stored != nil {
		c.BlogId = stored.BlogId
		c.Name = stored.Name
	} else {
		c.BlogId = kws[0].BlogId
	}
	c.KeywordCount = len(kws)

	vectors := make([][]float32, 0, len(kws))
	var (
		volumeSum, difficultySum     float64
		volumeCount, difficultyCount int
	)
	for _, kw := range kws {
		vectors = append(vectors, kw.Vector)
		if kw.SearchVolume != nil {
			volumeSum += float64(*kw.SearchVolume)
			volumeCount++
		}
		if kw.Difficulty != nil {
			difficultySum += float64(*kw.Difficulty)
			difficultyCount++
		}
	}
	c.Representative = vector.Centroid(vectors)
	if volumeCount > 0 {
		c.AvgSearchVolume = round2(volumeSum / float64(volumeCount))
	}
	if difficultyCount > 0 {
		c.AvgDifficulty = round2(difficultySum / float64(difficultyCount))
	}

	ranked := slices.Clone(kws)
	slices.SortFunc(ranked, func(x, y *core.KeywordVariation) int {
		if d := cmp.Compare(volumeOf(y), volumeOf(x)); d != 0 {
			return d
		}
		return cmp.Compare(x.Text, y.Text)
	})
	c.RepresentativeKeywords = lo.Map(ranked[:min(a.representatives, len(ranked))], func(kw *core.KeywordVariation, _ int) string {
		return kw.Text
	})
	return c
}

// compareClusters orders by size descending, then name, then id.
func compareClusters(x, y *core.SemanticCluster) int {
	if c := cmp.Compare(y.KeywordCount, x.KeywordCount); c != 0 {
		return c
	}
	if c := cmp.Compare(x.Name, y.Name); c != 0 {
		return c
	}
	return bytes.Compare(x.Id[:], y.Id[:])
}

func volumeOf(kw *core.KeywordVariation) int {
	if kw.SearchVolume == nil {
		return -1
	}
	return *kw.SearchVolume
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
