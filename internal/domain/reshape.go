package domain

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	// dayRowRe matches day labels kept by SelectDayRows, e.g. "J7" or "J07".
	dayRowRe = regexp.MustCompile(`^J?[0-9]+$`)

	// dayLabelRe captures the day number of a label, dropping the marker and
	// leading zeros: "J07" -> "7".
	dayLabelRe = regexp.MustCompile(`^[A-Za-z]?0*([0-9]{1,2})$`)
)

// dateLayout composes year, English month name and two-digit day.
const dateLayout = "2006-January-02"

// SelectDayRows keeps the rows whose day label looks like a day of month.
func SelectDayRows(table RawTable, dayColumn int) RawTable {
	out := RawTable{Columns: table.Columns, Rows: make([][]Cell, 0, len(table.Rows))}
	for _, row := range table.Rows {
		label := strings.TrimSpace(string(cellAt(row, dayColumn)))
		if dayRowRe.MatchString(label) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

// Reshape melts a wide table into one record per (day row, month column) cell,
// month by month. Temperatures stay missing until CoerceNumeric parses Raw.
func Reshape(table RawTable, schema TableSchema) ([]TemperatureRecord, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	width := table.width()
	if schema.DayColumn >= width {
		return nil, fmt.Errorf("day column %d of %d: %w", schema.DayColumn, width, ErrColumnOutOfRange)
	}
	for _, mc := range schema.MonthColumns {
		if mc.Column < 0 || mc.Column >= width {
			return nil, fmt.Errorf("%s column %d of %d: %w", mc.Month, mc.Column, width, ErrColumnOutOfRange)
		}
	}

	records := make([]TemperatureRecord, 0, len(table.Rows)*len(schema.MonthColumns))
	for _, mc := range schema.MonthColumns {
		label := mc.Month.String()
		for _, row := range table.Rows {
			records = append(records, TemperatureRecord{
				Day:         normalizeDay(string(cellAt(row, schema.DayColumn))),
				Month:       label,
				Raw:         strings.TrimSpace(string(cellAt(row, mc.Column))),
				Temperature: math.NaN(),
			})
		}
	}
	return records, nil
}

// normalizeDay turns "J7", "J07" or "7" into "07". Labels that are not a day
// number are returned trimmed, and their date composition fails later.
func normalizeDay(label string) string {
	label = strings.TrimSpace(label)
	m := dayLabelRe.FindStringSubmatch(label)
	if len(m) != 2 {
		return label
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return label
	}
	return fmt.Sprintf("%02d", n)
}

// AttachYearAndDate sets the year on every record and composes its date.
// Records whose composition is not a calendar date keep a zero FullDate.
func AttachYearAndDate(records []TemperatureRecord, year int) []TemperatureRecord {
	out := make([]TemperatureRecord, len(records))
	copy(out, records)
	for i := range out {
		out[i].Year = year
		out[i].FullDate = composeDate(year, out[i].Month, out[i].Day)
	}
	return out
}

func composeDate(year int, month, day string) time.Time {
	t, err := time.Parse(dateLayout, fmt.Sprintf("%04d-%s-%s", year, month, day))
	if err != nil {
		return time.Time{}
	}
	return t
}

// DropInvalidDates removes records whose date failed to compose.
func DropInvalidDates(records []TemperatureRecord) []TemperatureRecord {
	out := make([]TemperatureRecord, 0, len(records))
	for _, r := range records {
		if r.HasDate() {
			out = append(out, r)
		}
	}
	return out
}

// LongRow is one row of an already stacked export.
type LongRow struct {
	Year        int  `json:"year,omitempty"`
	Month       int  `json:"month"`
	Day         Cell `json:"day"`
	Temperature Cell `json:"temperature"`
}

// FromLongRows converts stacked rows into dated records. Month numbers become
// English month names; rows without a year take defaultYear.
func FromLongRows(rows []LongRow, defaultYear int) []TemperatureRecord {
	out := make([]TemperatureRecord, len(rows))
	for i, row := range rows {
		year := row.Year
		if year == 0 {
			year = defaultYear
		}
		month := ""
		if row.Month >= 1 && row.Month <= 12 {
			month = time.Month(row.Month).String()
		}
		day := normalizeDay(string(row.Day))
		out[i] = TemperatureRecord{
			Day:         day,
			Month:       month,
			Raw:         strings.TrimSpace(string(row.Temperature)),
			Temperature: math.NaN(),
			Year:        year,
			FullDate:    composeDate(year, month, day),
		}
	}
	return out
}

// DayMonthTable is a series pivoted back into days by months. Values[d][m] is
// NaN where the series has no record for that cell.
type DayMonthTable struct {
	Days   []string    `json:"days"`
	Months []string    `json:"months"`
	Values [][]float64 `json:"values"`
}

// Unstack pivots a series into a DayMonthTable. Days are sorted; months keep
// the order in which they first appear in the series.
func Unstack(series CleanedSeries) DayMonthTable {
	dayIdx := map[string]int{}
	monthIdx := map[string]int{}
	var t DayMonthTable
	for _, r := range series {
		if _, ok := dayIdx[r.Day]; !ok {
			dayIdx[r.Day] = len(t.Days)
			t.Days = append(t.Days, r.Day)
		}
		if _, ok := monthIdx[r.Month]; !ok {
			monthIdx[r.Month] = len(t.Months)
			t.Months = append(t.Months, r.Month)
		}
	}
	sort.Strings(t.Days)
	for i, d := range t.Days {
		dayIdx[d] = i
	}

	t.Values = make([][]float64, len(t.Days))
	for i := range t.Values {
		row := make([]float64, len(t.Months))
		for j := range row {
			row[j] = math.NaN()
		}
		t.Values[i] = row
	}
	for _, r := range series {
		t.Values[dayIdx[r.Day]][monthIdx[r.Month]] = r.Temperature
	}
	return t
}
