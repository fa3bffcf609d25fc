package domain

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Outlier detection defaults: a five-day centered window and a ten degree gap.
const (
	DefaultOutlierWindow    = 5
	DefaultOutlierThreshold = 10.0
)

// CleanOptions configures outlier detection.
type CleanOptions struct {
	Window    int     `json:"window" toml:"window"`
	Threshold float64 `json:"threshold" toml:"threshold"`
}

// DefaultCleanOptions returns the default window and threshold.
func DefaultCleanOptions() CleanOptions {
	return CleanOptions{Window: DefaultOutlierWindow, Threshold: DefaultOutlierThreshold}
}

// Validate rejects windows below one point and negative thresholds.
func (o CleanOptions) Validate() error {
	if o.Window < 1 {
		return fmt.Errorf("%w: window %d", ErrInvalidOptions, o.Window)
	}
	if o.Threshold < 0 || math.IsNaN(o.Threshold) {
		return fmt.Errorf("%w: threshold %g", ErrInvalidOptions, o.Threshold)
	}
	return nil
}

// CleanStats counts what cleaning did to a series.
type CleanStats struct {
	Records      int `json:"records"`
	DroppedDates int `json:"dropped_dates"`
	Interpolated int `json:"interpolated"`
	Outliers     int `json:"outliers"`
}

// ParseTemperature parses a cell as degrees. Anything that is not a finite
// number is missing (NaN), never zero.
func ParseTemperature(raw string) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsInf(v, 0) {
		return math.NaN()
	}
	return v
}

// CoerceNumeric parses every record's Raw text into Temperature and clears
// Raw. Records without raw text keep their current temperature, so coercing
// twice changes nothing.
func CoerceNumeric(records []TemperatureRecord) []TemperatureRecord {
	out := make([]TemperatureRecord, len(records))
	copy(out, records)
	for i := range out {
		if out[i].Raw == "" {
			continue
		}
		out[i].Temperature = ParseTemperature(out[i].Raw)
		out[i].Raw = ""
	}
	return out
}

// FillGaps interpolates missing values linearly between their nearest numeric
// neighbours, then fills the edges by propagating the nearest value backward
// and then forward. A slice without any numeric value is returned unchanged.
func FillGaps(values []float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)

	prev := -1
	for i, v := range out {
		if math.IsNaN(v) {
			continue
		}
		if prev >= 0 && i-prev > 1 {
			span := float64(i - prev)
			for k := prev + 1; k < i; k++ {
				frac := float64(k-prev) / span
				out[k] = out[prev] + (v-out[prev])*frac
			}
		}
		prev = i
	}
	return propagate(out)
}

// propagate back-fills every missing value from the next numeric one, then
// forward-fills whatever is left from the previous numeric one.
func propagate(values []float64) []float64 {
	next := math.NaN()
	for i := len(values) - 1; i >= 0; i-- {
		if math.IsNaN(values[i]) {
			values[i] = next
			continue
		}
		next = values[i]
	}
	last := math.NaN()
	for i, v := range values {
		if math.IsNaN(v) {
			values[i] = last
			continue
		}
		last = v
	}
	return values
}

// RollingMean is the centered mean over window consecutive points. Positions
// whose window does not fit in the series, or covers a missing value, are
// filled by nearest-value propagation. For even windows the extra point is
// taken on the left.
func RollingMean(values []float64, window int) []float64 {
	n := len(values)
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	if window < 1 || window > n {
		return out
	}

	half := window / 2
	for i := range values {
		lo := i - half
		hi := lo + window - 1
		if lo < 0 || hi >= n {
			continue
		}
		sum := 0.0
		for _, v := range values[lo : hi+1] {
			sum += v
		}
		out[i] = sum / float64(window)
	}
	return propagate(out)
}

// DetectOutliers flags points further than threshold from their rolling mean.
func DetectOutliers(values []float64, window int, threshold float64) []bool {
	means := RollingMean(values, window)
	mask := make([]bool, len(values))
	for i, v := range values {
		if math.IsNaN(v) || math.IsNaN(means[i]) {
			continue
		}
		mask[i] = math.Abs(v-means[i]) > threshold
	}
	return mask
}

// FixOutliers blanks flagged points and re-fills them, repeating until a pass
// flags nothing. It stops early rather than blank every numeric point.
// Returns the corrected values and the number of replacements made.
func FixOutliers(values []float64, opts CleanOptions) ([]float64, int) {
	out := FillGaps(values)
	total := 0
	for pass := 0; pass < len(out); pass++ {
		mask := DetectOutliers(out, opts.Window, opts.Threshold)
		flagged, kept := 0, 0
		for i, bad := range mask {
			switch {
			case bad:
				flagged++
			case !math.IsNaN(out[i]):
				kept++
			}
		}
		if flagged == 0 || kept == 0 {
			break
		}
		for i, bad := range mask {
			if bad {
				out[i] = math.NaN()
			}
		}
		out = FillGaps(out)
		total += flagged
	}
	return out, total
}

// Clean turns raw records into a CleanedSeries: invalid dates are dropped,
// values coerced, the series sorted by date, gaps filled and outliers fixed.
func Clean(records []TemperatureRecord, opts CleanOptions) (CleanedSeries, CleanStats, error) {
	if err := opts.Validate(); err != nil {
		return nil, CleanStats{}, err
	}

	valid := CoerceNumeric(DropInvalidDates(records))
	sort.SliceStable(valid, func(i, j int) bool {
		return valid[i].FullDate.Before(valid[j].FullDate)
	})
	stats := CleanStats{Records: len(valid), DroppedDates: len(records) - len(valid)}

	values := make([]float64, len(valid))
	numeric := 0
	for i, r := range valid {
		values[i] = r.Temperature
		if !r.IsMissing() {
			numeric++
		}
	}
	if numeric == 0 {
		return nil, stats, ErrNoNumericValues
	}
	stats.Interpolated = len(values) - numeric

	fixed, outliers := FixOutliers(values, opts)
	stats.Outliers = outliers

	series := make(CleanedSeries, len(valid))
	for i, r := range valid {
		r.Temperature = fixed[i]
		series[i] = r
	}
	return series, stats, nil
}
