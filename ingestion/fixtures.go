package ingestion

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/poiesic/keywordlens/core"
)

//go:embed sample.yaml
var sampleFixture []byte

// Fixtures is a YAML document describing one blog's keywords, clusters and posts.
type Fixtures struct {
	Blog     string           `yaml:"blog"`
	Clusters []ClusterFixture `yaml:"clusters"`
	Keywords []KeywordFixture `yaml:"keywords"`
	Posts    []PostFixture    `yaml:"posts"`
}

// ClusterFixture names a cluster. Membership is declared on keywords.
type ClusterFixture struct {
	Name string `yaml:"name"`
}

// KeywordFixture is one keyword variation with optional SEO metrics.
type KeywordFixture struct {
	Text         string   `yaml:"text"`
	MainKeyword  string   `yaml:"main_keyword"`
	SearchVolume *int     `yaml:"search_volume"`
	Difficulty   *int     `yaml:"difficulty"`
	CPC          *float64 `yaml:"cpc"`
	Competition  string   `yaml:"competition"`
	Intent       string   `yaml:"intent"`
	Cluster      string   `yaml:"cluster"`
	Topics       []string `yaml:"topics"`
}

// PostFixture is one content post.
type PostFixture struct {
	Title     string   `yaml:"title"`
	Excerpt   string   `yaml:"excerpt"`
	WordCount int      `yaml:"word_count"`
	SeoScore  int      `yaml:"seo_score"`
	Topics    []string `yaml:"topics"`
}

// LoadFixtures decodes a fixture document. Unknown fields are rejected.
func LoadFixtures(r io.Reader) (*Fixtures, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f Fixtures
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFixture, err)
	}
	if strings.TrimSpace(f.Blog) == "" {
		return nil, fmt.Errorf("%w: blog is required", ErrInvalidFixture)
	}
	return &f, nil
}

// SampleFixtures returns the built-in sample data set.
func SampleFixtures() (*Fixtures, error) {
	return LoadFixtures(bytes.NewReader(sampleFixture))
}

// BlogID is the tenant ID derived from the blog name.
func (f *Fixtures) BlogID() core.ID {
	return core.IDFromContent("blog:" + f.Blog)
}

func (f *Fixtures) clusterID(name string) core.ID {
	return core.IDFromContent(f.BlogID().String() + ":cluster:" + name)
}

// Records converts the document into domain records. Keywords referencing an
// undeclared cluster are an error.
func (f *Fixtures) Records() ([]*core.SemanticCluster, []*core.KeywordVariation, []*core.ContentPost, error) {
	blog := f.BlogID()

	clusters := make([]*core.SemanticCluster, len(f.Clusters))
	declared := make(map[string]core.ID, len(f.Clusters))
	for i, c := range f.Clusters {
		id := f.clusterID(c.Name)
		declared[c.Name] = id
		clusters[i] = &core.SemanticCluster{Id: id, BlogId: blog, Name: c.Name}
	}

	keywords := make([]*core.KeywordVariation, len(f.Keywords))
	for i, k := range f.Keywords {
		main := k.MainKeyword
		if main == "" {
			main = k.Text
		}
		kw := &core.KeywordVariation{
			BlogId:        blog,
			MainKeywordId: core.IDFromContent(blog.String() + ":main:" + main),
			Text:          k.Text,
			SearchVolume:  k.SearchVolume,
			Difficulty:    k.Difficulty,
			CPC:           k.CPC,
			Competition:   core.ParseCompetition(k.Competition),
			SearchIntent:  core.ParseSearchIntent(k.Intent),
			Topics:        k.Topics,
		}
		if k.Cluster != "" {
			id, ok := declared[k.Cluster]
			if !ok {
				return nil, nil, nil, fmt.Errorf("%w: keyword %q references unknown cluster %q", ErrInvalidFixture, k.Text, k.Cluster)
			}
			kw.ClusterId = &id
		}
		keywords[i] = kw
	}

	posts := make([]*core.ContentPost, len(f.Posts))
	for i, p := range f.Posts {
		posts[i] = &core.ContentPost{
			BlogId:    blog,
			Title:     p.Title,
			Excerpt:   p.Excerpt,
			WordCount: p.WordCount,
			SeoScore:  p.SeoScore,
			Topics:    p.Topics,
		}
	}
	return clusters, keywords, posts, nil
}

// Summary counts the records stored by IngestFixtures.
type Summary struct {
	Clusters int
	Keywords int
	Posts    int
}

// IngestFixtures stores a fixture document. Embeddings are queued like any
// other ingestion; call Wait to block until they are written.
func (p *Pipeline) IngestFixtures(ctx context.Context, f *Fixtures) (Summary, error) {
	clusters, keywords, posts, err := f.Records()
	if err != nil {
		return Summary{}, err
	}

	if len(clusters) > 0 {
		if err := p.store.Clusters().AddClusters(ctx, clusters...); err != nil {
			return Summary{}, err
		}
	}
	summary := Summary{Clusters: len(clusters)}

	if len(keywords) > 0 {
		added, err := p.IngestKeywords(ctx, keywords...)
		if err != nil {
			return summary, err
		}
		summary.Keywords = len(added)
	}

	if len(posts) > 0 {
		added, err := p.IngestPosts(ctx, posts...)
		if err != nil {
			return summary, err
		}
		summary.Posts = len(added)
	}

	p.logger.Info("ingested fixtures", "blog", f.Blog,
		"clusters", summary.Clusters, "keywords", summary.Keywords, "posts", summary.Posts)
	return summary, nil
}
