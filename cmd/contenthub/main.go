// Command contenthub serves and queries the hotel revenue content corpus.
//
//	contenthub serve                       HTTP + RPC tool server
//	contenthub search "rate parity" -k 3   one-shot search
//	contenthub glossary RevPAR             glossary lookup
//	contenthub casestudy --country Spain   case-study lookup
//	contenthub stats                       corpus and index statistics
//	contenthub analytics                   tool-call analytics service
//	contenthub import                      seed Postgres from a content directory
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/pkg/resilience"
)

type rootOptions struct {
	configPath string
	jsonOut    bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:          "contenthub",
		Short:        "Hotel revenue content retrieval for agents",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", os.Getenv("CH_CONFIG"), "path to YAML config file")
	root.PersistentFlags().BoolVar(&opts.jsonOut, "json", false, "print JSON even on a terminal")

	root.AddCommand(
		newServeCmd(opts),
		newSearchCmd(opts),
		newGlossaryCmd(opts),
		newCaseStudyCmd(opts),
		newStatsCmd(opts),
		newAnalyticsCmd(opts),
		newImportCmd(opts),
	)
	return root
}

// loadConfig reads the config file. Services log to stdout; one-shot
// commands log to stderr so stdout carries only their output.
func (o *rootOptions) loadConfig(service bool) (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if service {
		logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	} else {
		level := cfg.Logging.Level
		if level == "info" || level == "debug" {
			level = "warn"
		}
		logger.SetupWriter(os.Stderr, level, cfg.Logging.Format)
	}
	return cfg, nil
}

// humanOutput reports whether results should be rendered for a person
// rather than as JSON.
func (o *rootOptions) humanOutput() bool {
	return !o.jsonOut && term.IsTerminal(int(os.Stdout.Fd()))
}

// openCorpus loads the corpus from the configured source. The returned
// client is non-nil for the postgres source and must be closed by the
// caller.
func openCorpus(ctx context.Context, cfg *config.Config) (*corpus.Store, *postgres.Client, error) {
	switch cfg.Corpus.Source {
	case "postgres":
		client, err := postgres.New(cfg.Postgres)
		if err != nil {
			return nil, nil, err
		}
		store, err := corpus.Load(ctx, corpus.NewPostgresSource(client, resilience.DefaultRetryConfig()))
		if err != nil {
			client.Close()
			return nil, nil, err
		}
		return store, client, nil
	default:
		store, err := corpus.Load(ctx, corpus.DirSource{Dir: cfg.Corpus.Dir})
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	}
}
