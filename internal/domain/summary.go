package domain

import (
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// MonthSummary describes one calendar month of a cleaned series.
type MonthSummary struct {
	Month string  `json:"month"`
	Days  int     `json:"days"`
	Mean  float64 `json:"mean"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Std   float64 `json:"std"`
}

// YearSummary describes a whole cleaned series.
type YearSummary struct {
	Days  int     `json:"days"`
	Mean  float64 `json:"mean"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Std   float64 `json:"std"`
	First string  `json:"first,omitempty"`
	Last  string  `json:"last,omitempty"`
}

// SummarizeMonths groups a series by month, in calendar order. Months without
// records are left out.
func SummarizeMonths(series CleanedSeries) []MonthSummary {
	byMonth := make(map[time.Month][]float64)
	for _, r := range series {
		m := r.FullDate.Month()
		byMonth[m] = append(byMonth[m], r.Temperature)
	}
	out := make([]MonthSummary, 0, len(byMonth))
	for m := time.January; m <= time.December; m++ {
		values, ok := byMonth[m]
		if !ok {
			continue
		}
		out = append(out, MonthSummary{
			Month: m.String(),
			Days:  len(values),
			Mean:  stat.Mean(values, nil),
			Min:   floats.Min(values),
			Max:   floats.Max(values),
			Std:   stat.PopStdDev(values, nil),
		})
	}
	return out
}

// SummarizeYear describes the whole series. An empty series gives a zero summary.
func SummarizeYear(series CleanedSeries) YearSummary {
	if len(series) == 0 {
		return YearSummary{}
	}
	values := series.Values()
	return YearSummary{
		Days:  len(values),
		Mean:  stat.Mean(values, nil),
		Min:   floats.Min(values),
		Max:   floats.Max(values),
		Std:   stat.PopStdDev(values, nil),
		First: series[0].Key(),
		Last:  series[len(series)-1].Key(),
	}
}
