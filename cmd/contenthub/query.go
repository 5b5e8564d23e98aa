package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/revenue-content-hub/internal/tools"
)

// openService loads the corpus and builds an in-process tool service with
// no cache, analytics or tracing.
func (o *rootOptions) openService(ctx context.Context) (*tools.Service, func(), error) {
	cfg, err := o.loadConfig(false)
	if err != nil {
		return nil, nil, err
	}
	store, pg, err := openCorpus(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("loading corpus: %w", err)
	}
	cleanup := func() {
		if pg != nil {
			pg.Close()
		}
	}
	core, err := tools.BuildCore(store, cfg.Search, cfg.Ranking)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return tools.NewService(core, cfg.Search.DefaultTopK, tools.Deps{}), cleanup, nil
}

func newSearchCmd(opts *rootOptions) *cobra.Command {
	var (
		topK  int
		kinds []string
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Rank the corpus against a free-text query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := opts.openService(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			params := tools.SearchParams{Query: strings.Join(args, " "), Kinds: kinds}
			if cmd.Flags().Changed("top-k") {
				params.TopK = &topK
			}
			res, err := svc.Search(cmd.Context(), params)
			if err != nil {
				return err
			}
			if !opts.humanOutput() {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			printSearch(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "number of results")
	cmd.Flags().StringSliceVar(&kinds, "kind", nil, "restrict to document kinds ("+kindList()+")")
	return cmd
}

func newGlossaryCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "glossary [term]",
		Short: "Resolve a glossary term, or list all terms",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := opts.openService(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			out := cmd.OutOrStdout()
			if len(args) == 0 {
				terms := svc.GlossaryTerms()
				if !opts.humanOutput() {
					return writeJSON(out, map[string]any{"terms": terms})
				}
				for _, t := range terms {
					fmt.Fprintln(out, t)
				}
				return nil
			}
			res, err := svc.LookupGlossaryTerm(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			if !opts.humanOutput() {
				return writeJSON(out, res)
			}
			fmt.Fprintf(out, "%s (%s match, %.2f)\n", res.Term, res.Method, res.Score)
			if len(res.Synonyms) > 0 {
				fmt.Fprintf(out, "Also: %s\n", strings.Join(res.Synonyms, ", "))
			}
			fmt.Fprintf(out, "\n%s\n", res.Definition)
			if res.Explanation != "" {
				fmt.Fprintf(out, "\n%s\n", res.Explanation)
			}
			if res.URL != "" {
				fmt.Fprintf(out, "\n%s\n", res.URL)
			}
			return nil
		},
	}
}

func newCaseStudyCmd(opts *rootOptions) *cobra.Command {
	var (
		topK          int
		propertyType  string
		country       string
		challenge     string
		freeText      string
		requireRanked bool
		listFilters   bool
	)
	cmd := &cobra.Command{
		Use:     "casestudy",
		Aliases: []string{"case-study"},
		Short:   "Find case studies by property type, country, challenge or free text",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, cleanup, err := opts.openService(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			out := cmd.OutOrStdout()
			if listFilters {
				filters := svc.CaseStudyFilters()
				if !opts.humanOutput() {
					return writeJSON(out, filters)
				}
				for _, attr := range corpus.CaseStudyAttributes {
					fmt.Fprintf(out, "%s: %s\n", attr, strings.Join(filters[attr], ", "))
				}
				return nil
			}

			params := tools.CaseStudyParams{
				Filters:       map[string]string{},
				FreeText:      freeText,
				RequireRanked: requireRanked,
			}
			for attr, v := range map[string]string{
				"property_type": propertyType,
				"country":       country,
				"challenge":     challenge,
			} {
				if v != "" {
					params.Filters[attr] = v
				}
			}
			if cmd.Flags().Changed("top-k") {
				params.TopK = &topK
			}
			res, err := svc.LookupCaseStudy(cmd.Context(), params)
			if err != nil {
				return err
			}
			if !opts.humanOutput() {
				return writeJSON(out, res)
			}
			if len(res.Results) == 0 {
				fmt.Fprintln(out, "no matching case studies")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SCORE\tID\tTITLE\tMATCHED")
			for _, h := range res.Results {
				fmt.Fprintf(tw, "%.3f\t%s\t%s\t%s\n", h.Score, h.ID, h.Title, strings.Join(h.MatchedFilters, ","))
			}
			return tw.Flush()
		},
	}
	f := cmd.Flags()
	f.IntVarP(&topK, "top-k", "k", 0, "number of results")
	f.StringVar(&propertyType, "property-type", "", "property type filter, e.g. Hostel")
	f.StringVar(&country, "country", "", "country filter")
	f.StringVar(&challenge, "challenge", "", "challenge filter, e.g. Seasonality")
	f.StringVar(&freeText, "text", "", "free-text query ranked against the case studies")
	f.BoolVar(&requireRanked, "require-ranked", false, "fail instead of listing every case study when no criteria are given")
	f.BoolVar(&listFilters, "filters", false, "list the values each filter accepts")
	return cmd
}

func newStatsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show corpus and index statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, cleanup, err := opts.openService(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			st := svc.Stats()
			out := cmd.OutOrStdout()
			if !opts.humanOutput() {
				return writeJSON(out, st)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "fingerprint\t%s\n", st.Fingerprint)
			fmt.Fprintf(tw, "documents\t%d\n", st.Corpus.Total)
			for _, k := range corpus.Kinds {
				fmt.Fprintf(tw, "  %s\t%d\n", k, st.Corpus.Counts[k])
			}
			fmt.Fprintf(tw, "indexed\t%d\n", st.Index.Documents)
			fmt.Fprintf(tw, "terms\t%d\n", st.Index.Terms)
			fmt.Fprintf(tw, "glossary terms\t%d\n", st.GlossaryTerms)
			fmt.Fprintf(tw, "case studies\t%d\n", st.CaseStudies)
			return tw.Flush()
		},
	}
}

func printSearch(w io.Writer, res *executor.SearchResult) {
	if len(res.Results) == 0 {
		fmt.Fprintf(w, "no results for %q\n", res.Query)
		return
	}
	for i, h := range res.Results {
		fmt.Fprintf(w, "%d. %s [%s] %.3f\n", i+1, h.Title, h.Kind, h.Score)
		if h.URL != "" {
			fmt.Fprintf(w, "   %s\n", h.URL)
		}
		if h.Excerpt != "" {
			fmt.Fprintf(w, "   %s\n", h.Excerpt)
		}
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func kindList() string {
	names := make([]string, len(corpus.Kinds))
	for i, k := range corpus.Kinds {
		names[i] = string(k)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
