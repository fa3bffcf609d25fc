package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/JordanRousseau/capital-problem/internal/cache"
	"github.com/JordanRousseau/capital-problem/internal/domain"
	"github.com/JordanRousseau/capital-problem/internal/pipeline"
)

func newCompareCommand(ctx *cliContext) *cobra.Command {
	var (
		metric  string
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "compare <requests.json>",
		Short: "Rank the candidates of every request in a file",
		Long: "Reads one comparison request, or a JSON array of them, cleans every series,\n" +
			"scores each candidate against its target and prints the ranking.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read requests: %w", err)
			}
			raws, err := splitRequests(data)
			if err != nil {
				return err
			}

			analysis, err := ctx.analysis()
			if err != nil {
				return err
			}
			if metric != "" {
				m, err := domain.ParseMetric(metric)
				if err != nil {
					return err
				}
				analysis.Metric = m
			}

			store, err := ctx.openStore(false)
			if err != nil {
				return err
			}
			defer store.Close()

			logger := ctx.logger(cmd)
			builder := cache.NewCachedBuilder(analysis.Builder(), analysis.CacheSize, nil)
			transformer := pipeline.NewComparisonTransformer(builder, analysis.Metric, analysis.Workers, logger, nil)

			reports := make([]domain.ComparisonReport, 0, len(raws))
			for i, raw := range raws {
				req, err := domain.ParseComparisonRequest(raw)
				if err != nil {
					return fmt.Errorf("request %d: %w", i+1, err)
				}
				if metric != "" {
					req.Metric = metric
				}
				report, err := transformer.Compare(cmd.Context(), req)
				if err != nil {
					return fmt.Errorf("request %s: %w", req.ID, err)
				}
				if store != nil {
					if err := store.Save(cmd.Context(), report); err != nil {
						return err
					}
				}
				reports = append(reports, report)
			}

			if jsonOut {
				return writeJSON(cmd, reports)
			}
			out := cmd.OutOrStdout()
			for i, r := range reports {
				if i > 0 {
					fmt.Fprintln(out)
				}
				renderReport(out, r)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&metric, "metric", "m", "", "Rank by this metric for every request (dtw, frechet_dist, pcm, area, std)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print reports as JSON")
	return cmd
}

// splitRequests accepts a single request object or an array of them. A
// request without an id is keyed with a random UUID.
func splitRequests(data []byte) ([]domain.RawEvent, error) {
	trimmed := bytes.TrimSpace(data)
	var items []json.RawMessage
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("parse requests: %w", err)
		}
	} else {
		items = []json.RawMessage{trimmed}
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("parse requests: no request in file")
	}

	events := make([]domain.RawEvent, 0, len(items))
	for i, item := range items {
		var head struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(item, &head); err != nil {
			return nil, fmt.Errorf("parse request %d: %w", i+1, err)
		}
		key := head.ID
		if key == "" {
			key = uuid.NewString()
		}
		events = append(events, domain.RawEvent{Key: []byte(key), Value: item})
	}
	return events, nil
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
