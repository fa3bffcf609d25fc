package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/JordanRousseau/capital-problem/internal/domain"
)

func renderReport(w io.Writer, r domain.ComparisonReport) {
	fmt.Fprintf(w, "Report %s: target %s ranked by %s\n", r.ID, r.Target, r.Metric)
	fmt.Fprintf(w, "Best match: %s\n", orDash(r.BestMatch))
	fmt.Fprintf(w, "Target: %d days, %d interpolated, %d outliers corrected, mean %s (min %s, max %s)\n",
		r.Year.Days, r.TargetStats.Interpolated, r.TargetStats.Outliers,
		formatTemp(r.Year.Mean), formatTemp(r.Year.Min), formatTemp(r.Year.Max))

	rows := make([][]string, 0, len(r.Ranking))
	for _, c := range r.Ranking {
		rows = append(rows, []string{
			strconv.Itoa(c.Rank),
			c.Name,
			formatScore(c.Score),
			formatScore(c.Result.DTW),
			formatScore(c.Result.Frechet),
			formatScore(c.Result.PCM),
			formatScore(c.Result.Area),
			formatScore(c.Result.Std),
			strconv.Itoa(c.Stats.Outliers),
			strconv.Itoa(c.Stats.Interpolated),
		})
	}
	fmt.Fprintln(w, renderTable(
		[]string{"#", "Candidate", "Score", "DTW", "Frechet", "PCM", "Area", "Std", "Outliers", "Filled"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
	))

	if len(r.Months) > 0 {
		months := make([][]string, 0, len(r.Months))
		for _, m := range r.Months {
			months = append(months, []string{
				m.Month,
				strconv.Itoa(m.Days),
				formatTemp(m.Mean),
				formatTemp(m.Min),
				formatTemp(m.Max),
				formatTemp(m.Std),
			})
		}
		fmt.Fprintln(w, renderTable(
			[]string{"Month", "Days", "Mean", "Min", "Max", "Std"},
			months,
			[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight},
		))
	}

	for _, f := range r.Failures {
		fmt.Fprintf(w, "Skipped %s: %s\n", f.Name, f.Error)
	}
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func formatTemp(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
