package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Cell is the raw text of one spreadsheet cell. JSON numbers, strings and null
// all decode into it; null decodes to the empty string.
type Cell string

// UnmarshalJSON accepts any JSON scalar and keeps its textual form.
func (c *Cell) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*c = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode cell: %w", err)
		}
		*c = Cell(s)
	default:
		*c = Cell(data)
	}
	return nil
}

// RawTable is a wide temperature table: one row per day, one column per month.
// Rows may be shorter than Columns; absent cells read as missing.
type RawTable struct {
	Columns []string `json:"columns,omitempty"`
	Rows    [][]Cell `json:"rows"`
}

// width is the number of addressable columns.
func (t RawTable) width() int {
	if len(t.Columns) > 0 {
		return len(t.Columns)
	}
	w := 0
	for _, row := range t.Rows {
		w = max(w, len(row))
	}
	return w
}

func cellAt(row []Cell, col int) Cell {
	if col < 0 || col >= len(row) {
		return ""
	}
	return row[col]
}

// MonthColumn binds a calendar month to the table column holding it.
type MonthColumn struct {
	Month  time.Month `json:"month" toml:"month"`
	Column int        `json:"column" toml:"column"`
}

// TableSchema names the columns of a RawTable.
type TableSchema struct {
	DayColumn    int           `json:"day_column" toml:"day_column"`
	MonthColumns []MonthColumn `json:"month_columns" toml:"month_columns"`
}

// DefaultTableSchema is the workbook layout: day labels in column 0 and
// January through December in columns 1 to 12.
func DefaultTableSchema() TableSchema {
	return SchemaFromPositions(0, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12})
}

// SchemaFromPositions builds a schema from a positional month list where the
// k-th entry (zero based) is the column of month k+1.
func SchemaFromPositions(dayColumn int, monthColumns []int) TableSchema {
	s := TableSchema{DayColumn: dayColumn, MonthColumns: make([]MonthColumn, len(monthColumns))}
	for i, col := range monthColumns {
		s.MonthColumns[i] = MonthColumn{Month: time.Month(i + 1), Column: col}
	}
	return s
}

// Validate checks the schema without looking at any table.
func (s TableSchema) Validate() error {
	if len(s.MonthColumns) == 0 {
		return fmt.Errorf("%w: no month columns", ErrInvalidSchema)
	}
	if s.DayColumn < 0 {
		return fmt.Errorf("%w: negative day column %d", ErrInvalidSchema, s.DayColumn)
	}
	seen := make(map[time.Month]bool, len(s.MonthColumns))
	for _, mc := range s.MonthColumns {
		if mc.Month < time.January || mc.Month > time.December {
			return fmt.Errorf("%w: month %d", ErrInvalidSchema, int(mc.Month))
		}
		if seen[mc.Month] {
			return fmt.Errorf("%w: month %s mapped twice", ErrInvalidSchema, mc.Month)
		}
		seen[mc.Month] = true
	}
	return nil
}

// TemperatureRecord is one daily observation. Temperature is NaN while the
// value is missing; FullDate is the zero time when the composed date is not a
// real calendar date.
type TemperatureRecord struct {
	Day         string    `json:"day"`
	Month       string    `json:"month"`
	Raw         string    `json:"-"`
	Temperature float64   `json:"temperature"`
	Year        int       `json:"year"`
	FullDate    time.Time `json:"full_date"`
}

// HasDate reports whether the record's composed date is valid.
func (r TemperatureRecord) HasDate() bool {
	return !r.FullDate.IsZero()
}

// IsMissing reports whether the temperature is still missing.
func (r TemperatureRecord) IsMissing() bool {
	return math.IsNaN(r.Temperature)
}

// Key is the ISO date used to align series from different sources.
func (r TemperatureRecord) Key() string {
	return r.FullDate.Format(time.DateOnly)
}

// CleanedSeries is a date-ordered series without missing temperatures.
type CleanedSeries []TemperatureRecord

// Values returns the temperatures in series order.
func (s CleanedSeries) Values() []float64 {
	out := make([]float64, len(s))
	for i, r := range s {
		out[i] = r.Temperature
	}
	return out
}

// Keys returns the ISO dates in series order.
func (s CleanedSeries) Keys() []string {
	out := make([]string, len(s))
	for i, r := range s {
		out[i] = r.Key()
	}
	return out
}
