package domain

import (
	"context"
	"fmt"
)

// DefaultYear is the calendar year given to tables that do not carry one.
const DefaultYear = 2018

// BuiltSeries is a SeriesInput after reshaping and cleaning.
type BuiltSeries struct {
	Name   string        `json:"name"`
	Series CleanedSeries `json:"series"`
	Stats  CleanStats    `json:"stats"`
}

// SeriesBuilder turns a request input into a cleaned series.
type SeriesBuilder interface {
	Build(ctx context.Context, in SeriesInput) (BuiltSeries, error)
}

// Builder runs the reshape and clean steps with a fixed configuration.
type Builder struct {
	Schema      TableSchema
	Options     CleanOptions
	DefaultYear int
}

// NewBuilder returns a Builder with the workbook schema, default cleaning
// options and DefaultYear.
func NewBuilder() Builder {
	return Builder{Schema: DefaultTableSchema(), Options: DefaultCleanOptions(), DefaultYear: DefaultYear}
}

// Build reshapes the input's table and stacked rows, attaches dates and cleans
// the result. An input schema overrides the builder's schema.
func (b Builder) Build(ctx context.Context, in SeriesInput) (BuiltSeries, error) {
	if err := ctx.Err(); err != nil {
		return BuiltSeries{}, err
	}
	if in.Empty() {
		return BuiltSeries{}, fmt.Errorf("series %q: %w", in.Name, ErrEmptyInput)
	}

	year := in.Year
	if year == 0 {
		year = b.DefaultYear
	}

	var records []TemperatureRecord
	if in.Table != nil && len(in.Table.Rows) > 0 {
		schema := b.Schema
		if in.Schema != nil {
			schema = *in.Schema
		}
		melted, err := Reshape(SelectDayRows(*in.Table, schema.DayColumn), schema)
		if err != nil {
			return BuiltSeries{}, fmt.Errorf("series %q: %w", in.Name, err)
		}
		records = AttachYearAndDate(melted, year)
	}
	records = append(records, FromLongRows(in.Records, year)...)

	series, stats, err := Clean(records, b.Options)
	if err != nil {
		return BuiltSeries{}, fmt.Errorf("series %q: %w", in.Name, err)
	}
	return BuiltSeries{Name: in.Name, Series: series, Stats: stats}, nil
}
