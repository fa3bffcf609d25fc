package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/JordanRousseau/capital-problem/internal/domain"
)

// Profile is a TOML analysis profile. Unset keys keep their current value.
//
//	metric = "pcm"
//	reference_year = 2018
//
//	[clean]
//	window = 7
//	threshold = 8.5
//
//	[schema]
//	day_column = 0
//	month_columns = [1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12]
type Profile struct {
	Metric        *string        `toml:"metric"`
	ReferenceYear *int           `toml:"reference_year"`
	Workers       *int           `toml:"workers"`
	CacheSize     *int           `toml:"cache_size"`
	Clean         *CleanProfile  `toml:"clean"`
	Schema        *SchemaProfile `toml:"schema"`
}

// CleanProfile overrides outlier detection settings.
type CleanProfile struct {
	Window    *int     `toml:"window"`
	Threshold *float64 `toml:"threshold"`
}

// SchemaProfile overrides the table layout. MonthColumns is positional,
// January first.
type SchemaProfile struct {
	DayColumn    *int  `toml:"day_column"`
	MonthColumns []int `toml:"month_columns"`
}

// LoadProfile parses a TOML profile, rejecting unknown keys.
func LoadProfile(path string) (*Profile, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open profile: %w", err)
	}
	defer file.Close()

	var p Profile
	decoder := toml.NewDecoder(file).DisallowUnknownFields()
	if err := decoder.Decode(&p); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, fmt.Errorf("parse profile %s: %s", path, strict.String())
		}
		return nil, fmt.Errorf("parse profile %s: %w", path, err)
	}
	return &p, nil
}

// Apply copies every set field of the profile into a.
func (p *Profile) Apply(a *Analysis) error {
	if p.Metric != nil {
		m, err := domain.ParseMetric(*p.Metric)
		if err != nil {
			return fmt.Errorf("profile metric: %w", err)
		}
		a.Metric = m
	}
	if p.ReferenceYear != nil {
		a.ReferenceYear = *p.ReferenceYear
	}
	if p.Workers != nil {
		a.Workers = *p.Workers
	}
	if p.CacheSize != nil {
		a.CacheSize = *p.CacheSize
	}
	if p.Clean != nil {
		if p.Clean.Window != nil {
			a.Clean.Window = *p.Clean.Window
		}
		if p.Clean.Threshold != nil {
			a.Clean.Threshold = *p.Clean.Threshold
		}
	}
	if p.Schema != nil {
		if p.Schema.DayColumn != nil {
			a.Schema.DayColumn = *p.Schema.DayColumn
		}
		if len(p.Schema.MonthColumns) > 0 {
			a.Schema = domain.SchemaFromPositions(a.Schema.DayColumn, p.Schema.MonthColumns)
		}
	}
	return a.Validate()
}
