package main

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/poiesic/keywordlens/core"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printSearch(c *cli.Context, resp *core.SearchResponse) error {
	w := c.App.Writer
	if c.Bool("json") {
		return printJSON(w, resp)
	}

	fmt.Fprintf(w, "Found %d hits in %.3fs\n", resp.TotalFound, resp.ProcessingTimeSeconds)
	for i, r := range resp.Results {
		fmt.Fprintf(w, "%d: [%s] '%s' (%s) similarity=%.3f score=%.2f\n",
			i, r.Kind, r.Label, r.ItemId, r.Similarity, r.RelevanceScore)
		if len(r.RelatedTopics) > 0 {
			fmt.Fprintf(w, "   topics: %s\n", strings.Join(r.RelatedTopics, ", "))
		}
		for _, s := range r.ContentSuggestions {
			fmt.Fprintf(w, "   suggestion: %s\n", s)
		}
	}
	return nil
}

func printReport(c *cli.Context, report *core.ReadinessReport) error {
	w := c.App.Writer
	if c.Bool("json") {
		return printJSON(w, report)
	}

	fmt.Fprintf(w, "State: %s\n", stateLabel(report.State))
	for _, name := range slices.Sorted(maps.Keys(report.SearchFunctions)) {
		fmt.Fprintf(w, "Function %s: %v\n", name, report.SearchFunctions[name])
	}
	for _, ext := range report.Extensions {
		fmt.Fprintf(w, "Extension %s %s\n", ext.Name, ext.Version)
	}
	fmt.Fprintf(w, "Keywords embedded: %d/%d\n", report.EmbeddingCounts.Keywords, report.TotalCounts.Keywords)
	fmt.Fprintf(w, "Posts embedded: %d/%d\n", report.EmbeddingCounts.Posts, report.TotalCounts.Posts)
	for _, r := range report.Recommendations {
		fmt.Fprintf(w, "- %s\n", r)
	}
	return nil
}

func stateLabel(state core.ReadinessState) string {
	switch state {
	case core.StateReady, core.StateComplete:
		return color.GreenString(string(state))
	case core.StateNotReady:
		return color.RedString(string(state))
	}
	return color.YellowString(string(state))
}

func printAnalysis(c *cli.Context, analysis *core.ClusterAnalysis) error {
	w := c.App.Writer
	if c.Bool("json") {
		return printJSON(w, analysis)
	}

	fmt.Fprintf(w, "Clusters: %d, keywords: %d, average size: %d\n",
		analysis.TotalClusters, analysis.TotalKeywords, analysis.AvgClusterSize)
	if analysis.LargestCluster != nil {
		fmt.Fprintf(w, "Largest: %s (%d keywords)\n", analysis.LargestCluster.Name, analysis.LargestCluster.KeywordCount)
	}
	for _, b := range analysis.SizeDistribution {
		fmt.Fprintf(w, "  %-6s %d\n", b.Range, b.Count)
	}
	for _, cl := range analysis.Clusters {
		fmt.Fprintf(w, "%s: %d keywords, avg volume %.2f, avg difficulty %.2f, top: %s\n",
			cl.Name, cl.KeywordCount, cl.AvgSearchVolume, cl.AvgDifficulty, strings.Join(cl.RepresentativeKeywords, ", "))
	}
	return nil
}
