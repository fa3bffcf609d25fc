// Command genmock builds comparison request fixtures. Each series is read from
// a CSV export of a day-by-month sheet or synthesized from a seeded seasonal
// model. Every series is run through the domain builder so the fixture is
// known to clean, and the expected reports can be written alongside.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -target sheets/capital.csv \
//	  -candidate inland=sheets/inland.csv -candidate coast=sheets/coast.csv \
//	  -out data/mock/capital_request.json
//
//	go run ./cmd/genmock -synthetic 4 -seed 7 \
//	  -out data/mock/synthetic_request.json \
//	  -report-out data/mock/synthetic_report.json
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/JordanRousseau/capital-problem/internal/domain"
	"github.com/JordanRousseau/capital-problem/internal/pipeline"
)

// reportTime is the fixed generation time written into expected reports.
var reportTime = time.Date(2018, time.December, 31, 12, 0, 0, 0, time.UTC)

var monthHeaders = []string{"Jour", "Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// namedPaths collects repeated name=path flags.
type namedPaths []namedPath

type namedPath struct {
	name string
	path string
}

func (n *namedPaths) String() string {
	parts := make([]string, len(*n))
	for i, p := range *n {
		parts[i] = p.name + "=" + p.path
	}
	return strings.Join(parts, ",")
}

func (n *namedPaths) Set(v string) error {
	name, path, ok := strings.Cut(v, "=")
	if !ok || name == "" || path == "" {
		return fmt.Errorf("expected name=path, got %q", v)
	}
	*n = append(*n, namedPath{name: name, path: path})
	return nil
}

type options struct {
	target     string
	candidates namedPaths
	synthetic  int
	seed       uint64
	year       int
	metric     string
	id         string
	out        string
	reportOut  string
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	var opts options
	flag.StringVar(&opts.target, "target", "", "CSV export of the target sheet")
	flag.Var(&opts.candidates, "candidate", "candidate as name=path.csv (repeatable)")
	flag.IntVar(&opts.synthetic, "synthetic", 0, "synthesize this many candidates instead of reading CSV")
	flag.Uint64Var(&opts.seed, "seed", 1, "random seed for synthetic series")
	flag.IntVar(&opts.year, "year", domain.DefaultYear, "year of the series")
	flag.StringVar(&opts.metric, "metric", string(domain.DefaultMetric), "ranking metric")
	flag.StringVar(&opts.id, "id", "", "request id (derived from the seed or inputs when empty)")
	flag.StringVar(&opts.out, "out", "", "output path for the request fixture")
	flag.StringVar(&opts.reportOut, "report-out", "", "optional output path for the expected report")
	flag.Parse()

	if opts.out == "" {
		flag.Usage()
		return errors.New("missing required flag: -out")
	}
	if _, err := domain.ParseMetric(opts.metric); err != nil {
		return err
	}

	var (
		req domain.ComparisonRequest
		err error
	)
	switch {
	case opts.synthetic > 0:
		req = synthesize(opts)
	case opts.target != "" && len(opts.candidates) > 0:
		req, err = fromCSV(opts)
	default:
		flag.Usage()
		return errors.New("need -synthetic N, or -target with at least one -candidate")
	}
	if err != nil {
		return err
	}

	if err := printStats(req); err != nil {
		return err
	}

	if err := writeJSON(opts.out, []domain.ComparisonRequest{req}); err != nil {
		return fmt.Errorf("writing request fixture: %w", err)
	}
	log.Printf("wrote request fixture: %s", opts.out)

	if opts.reportOut != "" {
		report, err := expectedReport(req)
		if err != nil {
			return fmt.Errorf("building expected report: %w", err)
		}
		if err := writeJSON(opts.reportOut, []domain.ComparisonReport{report}); err != nil {
			return fmt.Errorf("writing report fixture: %w", err)
		}
		log.Printf("wrote report fixture: %s (best match %s)", opts.reportOut, report.BestMatch)
	}
	return nil
}

func fromCSV(opts options) (domain.ComparisonRequest, error) {
	target, err := readSeries("target", opts.target, opts.year)
	if err != nil {
		return domain.ComparisonRequest{}, err
	}
	req := domain.ComparisonRequest{
		ID:     opts.id,
		Target: target,
		Metric: opts.metric,
	}
	for _, c := range opts.candidates {
		in, err := readSeries(c.name, c.path, opts.year)
		if err != nil {
			return domain.ComparisonRequest{}, err
		}
		req.Candidates = append(req.Candidates, in)
	}
	if req.ID == "" {
		req.ID = uuid.NewSHA1(uuid.NameSpaceURL, []byte("climatematch/csv/"+opts.target)).String()
	}
	return req, nil
}

// readSeries loads a CSV sheet export. The first row is the header.
func readSeries(name, path string, year int) (domain.SeriesInput, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.SeriesInput{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return domain.SeriesInput{}, fmt.Errorf("read csv %s: %w", path, err)
	}
	if len(rows) < 2 {
		return domain.SeriesInput{}, fmt.Errorf("read csv %s: no data rows", path)
	}

	table := &domain.RawTable{Columns: rows[0]}
	for _, row := range rows[1:] {
		cells := make([]domain.Cell, len(row))
		for i, v := range row {
			cells[i] = domain.Cell(strings.TrimSpace(v))
		}
		table.Rows = append(table.Rows, cells)
	}
	return domain.SeriesInput{Name: name, Year: year, Table: table}, nil
}

// seasonalModel describes a synthetic station: a yearly cosine with noise.
type seasonalModel struct {
	mean      float64
	amplitude float64
	noise     float64
}

func (m seasonalModel) at(rng *rand.Rand, dayOfYear int) float64 {
	phase := 2 * math.Pi * float64(dayOfYear-15) / 365
	return m.mean - m.amplitude*math.Cos(phase) + rng.NormFloat64()*m.noise
}

// synthesize builds a target and n candidates. The first candidate shares the
// target's model, so it is the expected best match; it also carries one spike.
func synthesize(opts options) domain.ComparisonRequest {
	rng := rand.New(rand.NewPCG(opts.seed, opts.seed^0x9e3779b97f4a7c15))
	base := seasonalModel{mean: 10.5, amplitude: 8.5, noise: 1.2}

	id := opts.id
	if id == "" {
		id = uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("climatematch/synthetic/%d", opts.seed))).String()
	}
	req := domain.ComparisonRequest{
		ID:     id,
		Target: syntheticSeries(rng, "target", opts.year, base, false),
		Metric: opts.metric,
	}
	for i := range opts.synthetic {
		model := base
		name := "reference"
		if i > 0 {
			model = seasonalModel{
				mean:      base.mean + float64(i)*1.8 - 0.5,
				amplitude: base.amplitude * (1 + 0.15*float64(i)),
				noise:     base.noise + 0.3*float64(i),
			}
			name = fmt.Sprintf("station-%d", i)
		}
		req.Candidates = append(req.Candidates, syntheticSeries(rng, name, opts.year, model, i == 0))
	}
	return req
}

// syntheticSeries renders a model as a wide sheet with J-prefixed day labels,
// a trailing summary row, blank impossible dates and a few NA cells.
func syntheticSeries(rng *rand.Rand, name string, year int, model seasonalModel, spike bool) domain.SeriesInput {
	table := &domain.RawTable{Columns: monthHeaders}
	for day := 1; day <= 31; day++ {
		row := make([]domain.Cell, len(monthHeaders))
		row[0] = domain.Cell("J" + strconv.Itoa(day))
		for month := time.January; month <= time.December; month++ {
			date := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
			if date.Month() != month {
				continue
			}
			v := model.at(rng, date.YearDay())
			row[month] = domain.Cell(strconv.FormatFloat(v, 'f', 1, 64))
		}
		table.Rows = append(table.Rows, row)
	}

	for range 3 {
		day, month := rng.IntN(28), 1+rng.IntN(12)
		table.Rows[day][month] = "NA"
	}
	if spike {
		day, month := rng.IntN(28), 1+rng.IntN(12)
		v, err := strconv.ParseFloat(string(table.Rows[day][month]), 64)
		if err == nil {
			table.Rows[day][month] = domain.Cell(strconv.FormatFloat(v+25, 'f', 1, 64))
		}
	}

	summary := make([]domain.Cell, len(monthHeaders))
	summary[0] = "Moyenne"
	table.Rows = append(table.Rows, summary)

	return domain.SeriesInput{Name: name, Year: year, Table: table}
}

// printStats runs every series through the builder and logs what cleaning did.
func printStats(req domain.ComparisonRequest) error {
	builder := domain.NewBuilder()
	inputs := append([]domain.SeriesInput{req.Target}, req.Candidates...)
	for _, in := range inputs {
		built, err := builder.Build(context.Background(), in)
		if err != nil {
			return fmt.Errorf("build %s: %w", in.Name, err)
		}
		year := domain.SummarizeYear(built.Series)
		log.Printf("%-12s records=%d dropped=%d interpolated=%d outliers=%d mean=%.1f min=%.1f max=%.1f",
			built.Name, built.Stats.Records, built.Stats.DroppedDates, built.Stats.Interpolated,
			built.Stats.Outliers, year.Mean, year.Min, year.Max)
	}
	return nil
}

// expectedReport compares the request with a fixed clock so the fixture is reproducible.
func expectedReport(req domain.ComparisonRequest) (domain.ComparisonReport, error) {
	domain.SetClock(clockwork.NewFakeClockAt(reportTime))
	defer domain.SetClock(nil)

	transformer := pipeline.NewComparisonTransformer(domain.NewBuilder(), domain.DefaultMetric, 4, slog.Default(), nil)
	return transformer.Compare(context.Background(), req)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
