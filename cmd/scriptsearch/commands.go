package main

import (
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/viant/scriptsearch/errs"
	"github.com/viant/scriptsearch/model"
	"github.com/viant/scriptsearch/search"
)

func newSearchCmd() *cobra.Command {
	var (
		dialogue, action, parenthetical, mode string
		characters, locations, times, types   []string
		seasonStart, seasonEnd                int
		episodeStart, episodeEnd              int
		includeBible, onlyBible               bool
		limit, offset                         int
		minScore                              float64
		entityFilter                          map[string]string
	)
	cmd := &cobra.Command{
		Use:   "search [text...]",
		Short: "Run a structured search",
		Long: `Search scenes by free text, dialogue, action, characters, locations,
time of day and season/episode ranges, fused with semantic matches when an
embedding provider is configured. With --type the multi-type search over
scenes, characters, locations and bible chunks is used instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m, err := model.ParseMode(mode)
			if err != nil {
				return err
			}
			raw := strings.Join(args, " ")
			opts := []model.QueryOption{
				model.WithText(raw),
				model.WithDialogue(dialogue),
				model.WithAction(action),
				model.WithParenthetical(parenthetical),
				model.WithCharacters(characters...),
				model.WithLocations(locations...),
				model.WithTimesOfDay(times...),
				model.WithMode(m),
				model.WithBible(includeBible, onlyBible),
				model.WithLimit(limit),
				model.WithOffset(offset),
			}
			if seasonStart >= 0 {
				opts = append(opts, model.WithSeason(seasonStart, seasonEnd))
			}
			if episodeStart >= 0 {
				opts = append(opts, model.WithEpisode(episodeStart, episodeEnd))
			}
			if cmd.Flags().Changed("min-score") {
				opts = append(opts, model.WithMinScore(minScore))
			}
			q, err := model.NewQuery(raw, opts...)
			if err != nil {
				return err
			}

			a, err := newApp(ctx, configFrom(ctx), false)
			if err != nil {
				return err
			}
			defer a.Close()

			if len(types) > 0 {
				so := search.SearchOptions{
					Types:        types,
					EntityFilter: entityFilter,
					Limit:        limit,
					Offset:       offset,
					MinScore:     q.MinScore,
				}
				maps, err := a.engine.Search(ctx, q, so)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), maps)
			}
			resp, err := a.engine.Execute(ctx, q)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), renderResponse(resp))
		},
	}
	f := cmd.Flags()
	f.StringVar(&dialogue, "dialogue", "", "dialogue text to match")
	f.StringVar(&action, "action", "", "action line text to match")
	f.StringVar(&parenthetical, "parenthetical", "", "parenthetical text to match")
	f.StringSliceVar(&characters, "character", nil, "speaking character (repeatable)")
	f.StringSliceVar(&locations, "location", nil, "scene location (repeatable)")
	f.StringSliceVar(&times, "time", nil, "time of day, e.g. DAY or NIGHT (repeatable)")
	f.StringVar(&mode, "mode", "fuzzy", "fuzzy or strict name matching")
	f.IntVar(&seasonStart, "season", -1, "season, or first season of a range")
	f.IntVar(&seasonEnd, "season-end", -1, "last season of the range")
	f.IntVar(&episodeStart, "episode", -1, "episode, or first episode of a range")
	f.IntVar(&episodeEnd, "episode-end", -1, "last episode of the range")
	f.BoolVar(&includeBible, "bible", false, "also search series bible chunks")
	f.BoolVar(&onlyBible, "only-bible", false, "search series bible chunks only")
	f.IntVarP(&limit, "limit", "n", model.DefaultLimit, "page size")
	f.IntVar(&offset, "offset", 0, "page offset")
	f.Float64Var(&minScore, "min-score", 0, "drop results scoring below this")
	f.StringSliceVar(&types, "type", nil, "multi-type search over scene, character, location, bible")
	f.StringToStringVar(&entityFilter, "filter", nil, "multi-type result filter, key=value")
	return cmd
}

func newDialogueCmd() *cobra.Command {
	var (
		character string
		sceneID   int64
	)
	cmd := &cobra.Command{
		Use:   "dialogue <text>",
		Short: "Find dialogue lines containing text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, configFrom(ctx), false)
			if err != nil {
				return err
			}
			defer a.Close()
			results, err := a.engine.SearchDialogue(ctx, strings.Join(args, " "), character, sceneID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), renderResults(results))
		},
	}
	cmd.Flags().StringVar(&character, "character", "", "speaking character")
	cmd.Flags().Int64Var(&sceneID, "scene", 0, "restrict to one scene id")
	return cmd
}

func newSimilarCmd() *cobra.Command {
	var (
		limit         int
		minSimilarity float64
	)
	cmd := &cobra.Command{
		Use:   "similar <scene-id>",
		Short: "Find scenes similar to a stored scene",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sceneID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return errs.Configuration("scriptsearch.similar", "invalid scene id %q", args[0])
			}
			ctx := cmd.Context()
			a, err := newApp(ctx, configFrom(ctx), false)
			if err != nil {
				return err
			}
			defer a.Close()
			results, err := a.engine.SearchSimilarScenes(ctx, sceneID, limit, minSimilarity)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), renderResults(results))
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", model.DefaultLimit, "maximum results")
	cmd.Flags().Float64Var(&minSimilarity, "min-similarity", 0.5, "minimum similarity in [0,1]")
	return cmd
}

func newThemeCmd() *cobra.Command {
	var (
		entityType string
		limit      int
	)
	cmd := &cobra.Command{
		Use:   "theme <text>",
		Short: "Find scenes and bible chunks semantically close to a theme",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, configFrom(ctx), false)
			if err != nil {
				return err
			}
			defer a.Close()
			scenes, bible, err := a.engine.SearchByTheme(ctx, strings.Join(args, " "), entityType, limit)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"results":       renderResults(scenes),
				"bible_results": renderBible(bible),
			})
		},
	}
	cmd.Flags().StringVar(&entityType, "entity-type", "", "scene or bible; empty searches both")
	cmd.Flags().IntVarP(&limit, "limit", "n", model.DefaultLimit, "maximum results per entity type")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate-vectors",
		Short: "Rewrite legacy length-prefixed embeddings in the current format",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, configFrom(ctx), true)
			if err != nil {
				return err
			}
			defer a.Close()
			report, err := a.store.MigrateLegacy(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]int{
				"migrated": report.Migrated,
				"current":  report.Current,
				"invalid":  report.Invalid,
			})
		},
	}
}

func renderResults(results []model.Result) []map[string]any {
	out := make([]map[string]any, 0, len(results))
	for _, r := range results {
		out = append(out, r.AsMap())
	}
	return out
}

func renderBible(results []model.BibleResult) []map[string]any {
	out := make([]map[string]any, 0, len(results))
	for _, r := range results {
		out = append(out, r.AsMap())
	}
	return out
}

func renderResponse(resp *model.Response) map[string]any {
	out := map[string]any{
		"results":           renderResults(resp.Results),
		"bible_results":     renderBible(resp.BibleResults),
		"total_count":       resp.TotalCount,
		"search_methods":    resp.SearchMethods,
		"execution_time_ms": float64(resp.ExecutionTime) / float64(time.Millisecond),
		"degraded":          resp.Degraded,
	}
	if resp.DegradedReason != "" {
		out["degraded_reason"] = resp.DegradedReason
	}
	if len(resp.BranchErrors) > 0 {
		branchErrors := make(map[string]string, len(resp.BranchErrors))
		for name, err := range resp.BranchErrors {
			branchErrors[name] = err.Error()
		}
		out["branch_errors"] = branchErrors
	}
	return out
}
