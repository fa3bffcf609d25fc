// Package domain models daily temperature series and the scoring used to
// decide which reference location a target climate profile resembles most.
//
// # Data Source
//
// Target profiles come from climate workbooks laid out as one sheet per
// location: one row per day of month and one column per month. Reference
// locations come from open-data exports that are already stacked (one row per
// day with year, month number, day and temperature). Both reach the service as
// JSON comparison requests; workbook parsing happens upstream.
//
// # Table Conventions
//
// Day rows:
//
//	"J<n>" where n is the day of month, e.g. "J1" or "J01". Plain numbers
//	("7", "07") are accepted too. Labels are normalised to two digits; rows whose
//	label does not match are dropped by [SelectDayRows].
//
// Month columns:
//
//	Column positions are configured through a [TableSchema] that names the
//	calendar month of every column. Records carry the English month name, so
//	spreadsheet headers in other languages ("janvier", "février") never reach
//	date composition.
//
// Missing values:
//
//	Empty cells, null and any text that is not a number are missing. Missing is
//	represented as NaN, never as zero, and is filled by interpolation.
//
// Calendar dates:
//
//	Every table has 31 day rows for every month, so cells such as 30 February
//	exist. Their composed date is invalid and they are dropped before any
//	statistic is computed.
//
// # Cleaning
//
// Gaps are filled by linear interpolation along the series, then by
// propagating the nearest value backward and forward at the edges. Outliers are
// points further than a threshold (degrees) from the centered rolling mean; they
// are blanked and re-interpolated until a pass flags nothing.
//
// # Scoring
//
// Two cleaned series are aligned on their ISO dates and compared as curves
// over a synthetic 0..N-1 axis, not over the dates themselves. All metrics are
// distances: lower means more similar.
//
//	dtw           cumulative dynamic time warping cost (Euclidean point cost)
//	frechet_dist  discrete Fréchet distance
//	pcm           partial curve mapping, minimal area of an arc-length matched coupling
//	area          unsigned area between the curves
//	std           absolute difference of the population standard deviations
package domain
