// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"log"
	"os"
	"time"

	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// storeFlags select the configuration and the pieces most often overridden
// on the command line.
func storeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to a YAML config file",
			EnvVars: []string{"KEYWORDLENS_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "db",
			Aliases: []string{"d"},
			Usage:   "Path to BadgerDB database directory (overrides storage.path)",
		},
		&cli.StringFlag{
			Name:  "embedding-host",
			Usage: "Embedding service host URL (overrides embedding.host)",
		},
		&cli.StringFlag{
			Name:  "embedding-model",
			Usage: "Embedding model name (overrides embedding.model)",
		},
	}
}

func scopeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "blog",
			Usage: "Restrict to one blog ID (default: all blogs)",
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Print JSON instead of text",
		},
	}
}

func searchFlags() []cli.Flag {
	return append(scopeFlags(),
		&cli.Float64Flag{
			Name:    "threshold",
			Aliases: []string{"t"},
			Usage:   "Minimum cosine similarity in (0, 1] (default: search.default_threshold)",
		},
		&cli.IntFlag{
			Name:    "max-results",
			Aliases: []string{"n"},
			Usage:   "Maximum number of results (default: search.default_max_results)",
		},
	)
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "keywordlens",
		Usage: "Semantic search and clustering over SEO keyword variations and content",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API",
				Action: serveCommand,
				Flags: append(storeFlags(),
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address (overrides server.address)",
					},
				),
			},
			{
				Name:      "search",
				Usage:     "Find keywords and posts semantically similar to a query",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: append(append(storeFlags(), searchFlags()...),
					&cli.StringFlag{
						Name:  "corpus",
						Usage: "Collection to search: keywords, posts or all",
						Value: "all",
					},
				),
			},
			{
				Name:      "similar",
				Usage:     "Find keywords similar to a stored keyword",
				ArgsUsage: "<keyword-id>",
				Action:    similarCommand,
				Flags:     append(storeFlags(), searchFlags()...),
			},
			{
				Name:   "readiness",
				Usage:  "Report whether semantic search can run",
				Action: readinessCommand,
				Flags: append(storeFlags(),
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print JSON instead of text",
					},
				),
			},
			{
				Name:   "setup",
				Usage:  "Install missing search functions and verify them",
				Action: setupCommand,
				Flags: append(storeFlags(),
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print JSON instead of text",
					},
				),
			},
			{
				Name:   "clusters",
				Usage:  "Summarize how keywords are distributed across clusters",
				Action: clustersCommand,
				Flags:  append(storeFlags(), scopeFlags()...),
			},
			{
				Name:   "backfill",
				Usage:  "Embed every keyword and post that has no embedding",
				Action: backfillCommand,
				Flags: append(storeFlags(),
					&cli.StringFlag{
						Name:  "corpus",
						Usage: "Collection to backfill: keywords, posts or all",
						Value: "all",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of records to process in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Number of batches embedded concurrently",
						Value: 2,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N records",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed operations",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				),
			},
			{
				Name:   "seed",
				Usage:  "Load keyword and post fixtures into the store",
				Action: seedCommand,
				Flags: append(storeFlags(),
					&cli.StringFlag{
						Name:  "src",
						Usage: "YAML fixture file (default: built-in sample data)",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of records embedded per provider call",
						Value: 5,
					},
				),
			},
		},
	}
}
