package usecase

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"go.ngs.io/flat10/internal/adapter/interp"
	"go.ngs.io/flat10/internal/adapter/store"
	"go.ngs.io/flat10/internal/adapter/store/history"
	"go.ngs.io/flat10/internal/domain"
)

// ErrUnknownCase is returned for a case suffix with no archive root.
var ErrUnknownCase = errors.New("unknown case")

// DefaultStream is the monthly-mean history stream.
const DefaultStream = "h0"

// DefaultWeightsExperiment is the experiment whose control case holds the
// area weights.
const DefaultWeightsExperiment = "ctrl-esm"

// weightsMonth is the month the control case's area weights are read from.
var weightsMonth = domain.YearMonth{Year: 1, Month: 1}

// ArchiveRoots maps case suffixes to the archive root holding them.
type ArchiveRoots struct {
	Default string            // Used for suffixes missing from Cases.
	Cases   map[string]string // Suffix -> root. "" is the control case.
}

// Root returns the archive root of a case suffix.
func (a ArchiveRoots) Root(suffix string) (string, error) {
	if root, ok := a.Cases[suffix]; ok && root != "" {
		return root, nil
	}
	if a.Default != "" {
		return a.Default, nil
	}
	return "", fmt.Errorf("%w: %q has no archive root", ErrUnknownCase, suffix)
}

// LatLon is a target grid for nearest-neighbour reindexing.
type LatLon struct {
	Lat []float64
	Lon []float64
}

// LoadRequest selects one gridded variable over a month range.
type LoadRequest struct {
	Variable   string
	Domain     string
	Experiment string
	CaseSuffix string
	Stream     string // Defaults to DefaultStream.
	Start      domain.YearMonth
	End        domain.YearMonth
	// MultiFile opens every file of the stream as one lazy dataset and
	// selects the months from it. Otherwise each month is loaded on its own.
	MultiFile bool
	// ReindexLike, when set, maps the result onto this grid by nearest
	// neighbour within interp.DefaultTolerance.
	ReindexLike *LatLon
}

// Validate checks if the request is valid.
func (r *LoadRequest) Validate() error {
	if r.Variable == "" {
		return fmt.Errorf("variable must be provided")
	}
	if _, err := domain.Component(r.Domain); err != nil {
		return err
	}
	if err := r.Start.Validate(); err != nil {
		return fmt.Errorf("invalid start: %w", err)
	}
	if err := r.End.Validate(); err != nil {
		return fmt.Errorf("invalid end: %w", err)
	}
	if r.End.Before(r.Start) {
		return fmt.Errorf("end month %s is before start month %s", r.End, r.Start)
	}
	return nil
}

// Field is a gridded variable over time. Values[t] is row-major (lat, lon).
type Field struct {
	Variable string
	Case     string
	Times    []domain.CFTime
	Lat      []float64
	Lon      []float64
	Attrs    store.Attributes
	Values   [][]float64
}

// SeriesRequest asks for an area-reduced time series.
type SeriesRequest struct {
	LoadRequest
	Reduce domain.Reduction
}

// SeriesUseCase loads FLAT10 variables and reduces them over area.
type SeriesUseCase struct {
	roots             ArchiveRoots
	maxOpenFiles      int
	weightsExperiment string
	log               logrus.FieldLogger

	mu      sync.Mutex
	weights map[string]*weights
}

type weights struct {
	lat, lon []float64
	area     []float64
	landfrac []float64 // nil on the atmosphere grid.
}

// NewSeriesUseCase creates a new series use case.
func NewSeriesUseCase(roots ArchiveRoots, maxOpenFiles int, log logrus.FieldLogger) *SeriesUseCase {
	return &SeriesUseCase{
		roots:             roots,
		maxOpenFiles:      maxOpenFiles,
		weightsExperiment: DefaultWeightsExperiment,
		log:               log,
		weights:           make(map[string]*weights),
	}
}

// WithWeightsExperiment reads area weights from the control case of
// experiment instead of DefaultWeightsExperiment. An empty name keeps the
// current setting.
func (uc *SeriesUseCase) WithWeightsExperiment(experiment string) *SeriesUseCase {
	if experiment != "" {
		uc.weightsExperiment = experiment
	}
	return uc
}

// Load reads one variable of one case over [Start, End]. For the control
// case, End is clamped to the last archived month.
func (uc *SeriesUseCase) Load(ctx context.Context, req LoadRequest) (*Field, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid load request: %w", err)
	}
	if req.Stream == "" {
		req.Stream = DefaultStream
	}
	root, err := uc.roots.Root(req.CaseSuffix)
	if err != nil {
		return nil, err
	}
	caseName := domain.CaseName(req.Experiment, req.CaseSuffix)
	end := domain.ClampControlCase(req.CaseSuffix, req.End)
	if end.Before(req.Start) {
		return nil, fmt.Errorf("case %s ends at %s, before start %s", caseName, end, req.Start)
	}
	log := uc.log.WithFields(logrus.Fields{
		"variable": req.Variable,
		"case":     caseName,
		"start":    req.Start.String(),
		"end":      end.String(),
	})
	if end != req.End {
		log.WithField("requested_end", req.End.String()).Info("clamped end month to the control case archive")
	}

	paths, err := uc.paths(root, caseName, req, end)
	if err != nil {
		return nil, err
	}

	vars := []string{req.Variable, "lat", "lon"}
	var src store.Source
	if req.MultiFile {
		src, err = openSource(paths, vars, uc.maxOpenFiles, log)
	} else {
		log.WithField("files", len(paths)).Debug("loading monthly files")
		src, err = history.LoadEager(paths, vars)
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = src.Close() }()

	field, err := readField(ctx, src, req.Variable)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s from %s: %w", req.Variable, caseName, err)
	}
	field.Case = caseName

	if req.ReindexLike != nil {
		if err := field.reindex(*req.ReindexLike); err != nil {
			return nil, err
		}
	}
	return field, nil
}

func (uc *SeriesUseCase) paths(root, caseName string, req LoadRequest, end domain.YearMonth) ([]string, error) {
	if req.MultiFile {
		pattern, err := domain.HistoryGlob(root, caseName, req.Domain, req.Stream)
		if err != nil {
			return nil, err
		}
		all, err := history.Glob(pattern)
		if err != nil {
			return nil, err
		}
		paths := monthlyFiles(all, req.Start, end)
		if len(paths) == 0 {
			return nil, fmt.Errorf("%w: nothing between %s and %s in %s", history.ErrNoFiles, req.Start, end, pattern)
		}
		return paths, nil
	}

	months, err := domain.Months(req.Start, end)
	if err != nil {
		return nil, err
	}
	paths := make([]string, len(months))
	for i, m := range months {
		if paths[i], err = domain.HistoryFile(root, caseName, req.Domain, req.Stream, m); err != nil {
			return nil, err
		}
		if _, err := os.Stat(paths[i]); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("missing history file for %s: %w", m, err)
			}
			return nil, fmt.Errorf("failed to stat %s: %w", paths[i], err)
		}
	}
	return paths, nil
}

// readField reads every step of a (time, lat, lon) variable.
func readField(ctx context.Context, src store.Source, variable string) (*Field, error) {
	if !src.HasVar(variable) {
		return nil, fmt.Errorf("variable %s not found", variable)
	}
	times, err := decodeTimes(src)
	if err != nil {
		return nil, fmt.Errorf("failed to decode time: %w", err)
	}
	f := &Field{Variable: variable, Times: times}
	if f.Lat, err = src.ReadStatic("lat"); err != nil {
		return nil, err
	}
	if f.Lon, err = src.ReadStatic("lon"); err != nil {
		return nil, err
	}
	if f.Attrs, err = src.Attrs(variable); err != nil {
		return nil, err
	}

	size := len(f.Lat) * len(f.Lon)
	f.Values = make([][]float64, src.NumTimes())
	for t := range f.Values {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		step, err := src.ReadStep(variable, t)
		if err != nil {
			return nil, err
		}
		if len(step) != size {
			return nil, fmt.Errorf("%s is not on the %dx%d lat/lon grid (%d values per step)", variable, len(f.Lat), len(f.Lon), len(step))
		}
		f.Values[t] = step
	}
	return f, nil
}

func (f *Field) reindex(target LatLon) error {
	for t, step := range f.Values {
		out, err := reindexFlat(step, f.Lat, f.Lon, target)
		if err != nil {
			return fmt.Errorf("failed to reindex %s step %d: %w", f.Variable, t, err)
		}
		f.Values[t] = out
	}
	f.Lat, f.Lon = target.Lat, target.Lon
	return nil
}

func reindexFlat(values, lat, lon []float64, target LatLon) ([]float64, error) {
	g, err := interp.NewGrid2D(lon, lat, values)
	if err != nil {
		return nil, err
	}
	out, err := g.Reindex(target.Lon, target.Lat, interp.DefaultTolerance)
	if err != nil {
		return nil, err
	}
	return out.Flat(), nil
}

// Series loads a variable and reduces every step over area. Weights come
// from the control case of the weights experiment at 0001-01: AREA for
// atm, area and landfrac for lnd. A step without any defined value on a
// weighted cell is reported as NaN.
func (uc *SeriesUseCase) Series(ctx context.Context, req SeriesRequest) (*domain.Series, error) {
	reduce, err := domain.ParseReduction(string(req.Reduce))
	if err != nil {
		return nil, err
	}
	if reduce == domain.ReduceIntegrate && req.Domain != "lnd" {
		return nil, fmt.Errorf("area integration is only defined for domain lnd")
	}

	field, err := uc.Load(ctx, req.LoadRequest)
	if err != nil {
		return nil, err
	}
	w, err := uc.weightsFor(ctx, req.Domain)
	if err != nil {
		return nil, fmt.Errorf("failed to load area weights: %w", err)
	}
	area, landfrac := w.area, w.landfrac
	if req.ReindexLike != nil {
		if area, err = reindexFlat(area, w.lat, w.lon, *req.ReindexLike); err != nil {
			return nil, err
		}
		if landfrac != nil {
			if landfrac, err = reindexFlat(landfrac, w.lat, w.lon, *req.ReindexLike); err != nil {
				return nil, err
			}
		}
	}

	s := &domain.Series{
		Variable: req.Variable,
		Case:     field.Case,
		Domain:   req.Domain,
		Units:    field.Attrs.String("units"),
		Reduce:   reduce,
		Points:   make([]domain.SeriesPoint, len(field.Values)),
	}
	if reduce == domain.ReduceIntegrate && s.Units != "" {
		s.Units += " m^2"
	}
	for t, values := range field.Values {
		v, err := reduceStep(values, area, landfrac, reduce)
		if err != nil {
			return nil, fmt.Errorf("failed to reduce %s at %s: %w", req.Variable, field.Times[t], err)
		}
		if math.IsNaN(v) {
			uc.log.WithFields(logrus.Fields{
				"variable": req.Variable,
				"case":     field.Case,
				"time":     field.Times[t].String(),
			}).Debug("no defined values on weighted cells")
		}
		s.Points[t] = domain.SeriesPoint{Time: field.Times[t], Value: v}
	}
	return s, nil
}

// reduceStep reduces one (lat, lon) step. landfrac is nil on the
// atmosphere grid. A step without data reduces to NaN.
func reduceStep(values, area, landfrac []float64, reduce domain.Reduction) (float64, error) {
	var v float64
	var err error
	switch {
	case landfrac == nil:
		v, err = domain.AreaAverage(values, area)
	case reduce == domain.ReduceIntegrate:
		v, err = domain.LandAreaIntegrate(values, area, landfrac)
	default:
		v, err = domain.LandAreaAverage(values, area, landfrac)
	}
	if errors.Is(err, domain.ErrNoData) {
		return math.NaN(), nil
	}
	return v, err
}

// weightsFor loads and caches the control case weights of a domain.
func (uc *SeriesUseCase) weightsFor(ctx context.Context, dom string) (*weights, error) {
	experiment := uc.weightsExperiment
	key := dom + "/" + experiment
	uc.mu.Lock()
	w, ok := uc.weights[key]
	uc.mu.Unlock()
	if ok {
		return w, nil
	}

	load := func(variable string) (*Field, error) {
		return uc.Load(ctx, LoadRequest{
			Variable:   variable,
			Domain:     dom,
			Experiment: experiment,
			Start:      weightsMonth,
			End:        weightsMonth,
		})
	}
	areaName := "area"
	if dom == "atm" {
		areaName = "AREA"
	}
	area, err := load(areaName)
	if err != nil {
		return nil, err
	}
	w = &weights{lat: area.Lat, lon: area.Lon, area: area.Values[0]}
	if dom == "lnd" {
		frac, err := load("landfrac")
		if err != nil {
			return nil, err
		}
		w.landfrac = frac.Values[0]
	}

	uc.mu.Lock()
	uc.weights[key] = w
	uc.mu.Unlock()
	return w, nil
}
