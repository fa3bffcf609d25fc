package domain

import "errors"

var (
	// ErrColumnOutOfRange means a schema points at a column the table does not have.
	ErrColumnOutOfRange = errors.New("column index out of range")

	// ErrInvalidSchema means a table schema names no months or an impossible month.
	ErrInvalidSchema = errors.New("invalid table schema")

	// ErrInvalidOptions means cleaning options are outside their valid range.
	ErrInvalidOptions = errors.New("invalid cleaning options")

	// ErrNoNumericValues means a series has no numeric value to interpolate from.
	ErrNoNumericValues = errors.New("series has no numeric values")

	// ErrDegenerateSeries means a curve has fewer than two points.
	ErrDegenerateSeries = errors.New("series needs at least two points")

	// ErrLengthMismatch means two sequences that must line up do not.
	ErrLengthMismatch = errors.New("sequence lengths differ")

	// ErrMissingValue means a sequence handed to the scorer still has a gap.
	ErrMissingValue = errors.New("sequence contains missing values")

	// ErrUnknownMetric means a metric name is not one of the supported metrics.
	ErrUnknownMetric = errors.New("unknown similarity metric")

	// ErrEmptyInput means a series input carries neither a table nor records.
	ErrEmptyInput = errors.New("series input has no table and no records")

	// ErrReportNotFound means no stored report has the requested ID.
	ErrReportNotFound = errors.New("report not found")
)
