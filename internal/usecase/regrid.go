package usecase

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/ctessum/sparse"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"go.ngs.io/flat10/internal/adapter/store"
	"go.ngs.io/flat10/internal/adapter/store/gridded"
	"go.ngs.io/flat10/internal/adapter/store/history"
	"go.ngs.io/flat10/internal/domain"
)

// RegridRequest selects one landunit-level variable of one case.
type RegridRequest struct {
	Variable   string
	Experiment string
	CaseSuffix string
	Domain     string
	Stream     string

	ArchiveRoot string // Archive root holding this case.
	OutputRoot  string

	Retained  domain.LandunitTypeSet
	Collision domain.CollisionPolicy
	Fill      float64

	Workers      int // Concurrent time steps; values below 1 mean 1.
	MaxOpenFiles int // Zero means no limit.
	Verify       bool
}

// Validate checks if the request is valid.
func (r *RegridRequest) Validate() error {
	if r.Variable == "" {
		return fmt.Errorf("variable must be provided")
	}
	if _, err := domain.Component(r.Domain); err != nil {
		return err
	}
	if r.Domain != "lnd" {
		return fmt.Errorf("landunit regridding needs domain lnd, got %q", r.Domain)
	}
	if r.Stream == "" {
		return fmt.Errorf("history stream must be provided")
	}
	if r.ArchiveRoot == "" || r.OutputRoot == "" {
		return fmt.Errorf("archive and output roots must be provided")
	}
	if r.Retained.Empty() {
		return fmt.Errorf("at least one landunit type must be retained")
	}
	return nil
}

// RegridResult describes a completed regrid run.
type RegridResult struct {
	RunID      string
	Case       string
	OutputPath string
	NumTimes   int
	First      domain.YearMonth
	Last       domain.YearMonth
	Elapsed    time.Duration
}

// RegridUseCase grids CLM landunit vectors onto (time, lat, lon, typlunit).
type RegridUseCase struct {
	log logrus.FieldLogger
}

// NewRegridUseCase creates a new regrid use case.
func NewRegridUseCase(log logrus.FieldLogger) *RegridUseCase {
	return &RegridUseCase{log: log}
}

// Execute regrids every time step of the requested history stream and
// writes the stacked result.
func (uc *RegridUseCase) Execute(ctx context.Context, req RegridRequest) (*RegridResult, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid regrid request: %w", err)
	}
	start := time.Now()
	caseName := domain.CaseName(req.Experiment, req.CaseSuffix)
	result := &RegridResult{RunID: uuid.NewString(), Case: caseName}
	log := uc.log.WithFields(logrus.Fields{
		"run_id":   result.RunID,
		"variable": req.Variable,
		"case":     caseName,
	})

	pattern, err := domain.HistoryGlob(req.ArchiveRoot, caseName, req.Domain, req.Stream)
	if err != nil {
		return nil, err
	}
	paths, err := history.Glob(pattern)
	if err != nil {
		return nil, err
	}
	if paths = monthlyFiles(paths, domain.YearMonth{}, domain.YearMonth{}); len(paths) == 0 {
		return nil, fmt.Errorf("%w: no monthly files in %s", history.ErrNoFiles, pattern)
	}
	log.WithField("files", len(paths)).Info("opening history files")

	vars := []string{req.Variable, varIxy, varJxy, varItyp, "lat", "lon"}
	src, err := openSource(paths, vars, req.MaxOpenFiles, log)
	if err != nil {
		return nil, err
	}
	defer func() { _ = src.Close() }()

	ds, err := uc.regrid(ctx, src, req, log)
	if err != nil {
		return nil, err
	}
	ds.GlobalAttrs = append(ds.GlobalAttrs,
		store.Attribute{Name: "case", Value: caseName},
		store.Attribute{Name: "run_id", Value: result.RunID},
	)

	times, err := decodeTimes(src)
	if err != nil {
		return nil, fmt.Errorf("failed to decode time: %w", err)
	}
	result.NumTimes = len(times)
	result.First = times[0].YearMonth()
	result.Last = times[len(times)-1].YearMonth()

	result.OutputPath, err = domain.RegriddedFile(req.OutputRoot, caseName, req.Domain, req.Stream, req.Variable, result.First, result.Last)
	if err != nil {
		return nil, err
	}
	if err := gridded.Write(result.OutputPath, ds); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", result.OutputPath, err)
	}
	if req.Verify {
		if err := verify(result.OutputPath, ds); err != nil {
			return nil, err
		}
	}

	result.Elapsed = time.Since(start)
	log.WithFields(logrus.Fields{
		"output":  result.OutputPath,
		"steps":   result.NumTimes,
		"elapsed": result.Elapsed.Round(time.Millisecond).String(),
	}).Info("regrid complete")
	return result, nil
}

// regrid rasterizes every time step of src and stacks the result.
func (uc *RegridUseCase) regrid(ctx context.Context, src store.Source, req RegridRequest, log logrus.FieldLogger) (*gridded.Dataset, error) {
	nt := src.NumTimes()
	if nt == 0 {
		return nil, fmt.Errorf("history files contain no time steps")
	}
	lat, err := src.ReadStatic("lat")
	if err != nil {
		return nil, fmt.Errorf("failed to read lat: %w", err)
	}
	lon, err := src.ReadStatic("lon")
	if err != nil {
		return nil, fmt.Errorf("failed to read lon: %w", err)
	}
	attrs, err := src.Attrs(req.Variable)
	if err != nil {
		return nil, err
	}
	nLandunit, err := src.Dim("landunit")
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"steps":     nt,
		"landunits": nLandunit,
		"grid":      fmt.Sprintf("%dx%d", len(lat), len(lon)),
	}).Info("rasterizing")

	r := domain.NewRasterizer(len(lat), len(lon))
	r.Retained = req.Retained
	r.Collision = req.Collision
	r.Fill = req.Fill

	workers := req.Workers
	if workers < 1 {
		workers = 1
	}
	steps := make([]*sparse.DenseArray, nt)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for t := 0; t < nt; t++ {
		t := t
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			grid, err := rasterizeStep(src, r, req.Variable, t, nLandunit, log)
			if err != nil {
				return fmt.Errorf("time step %d: %w", t, err)
			}
			steps[t] = grid
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stacked, err := domain.StackTime(steps)
	if err != nil {
		return nil, err
	}
	return &gridded.Dataset{
		Variable:  req.Variable,
		Times:     src.Times(),
		TimeAttrs: src.TimeAttrs(),
		Lat:       lat,
		Lon:       lon,
		VarAttrs:  attrs,
		GlobalAttrs: store.Attributes{
			{Name: "retained_landunit_types", Value: int32s(req.Retained.Ints())},
			{Name: "collision_policy", Value: req.Collision.String()},
		},
		Data: stacked,
		Fill: req.Fill,
	}, nil
}

func rasterizeStep(src store.Source, r *domain.Rasterizer, variable string, t, nLandunit int, log logrus.FieldLogger) (*sparse.DenseArray, error) {
	ixy, err := readCodes(src, varIxy, t)
	if err != nil {
		return nil, err
	}
	jxy, err := readCodes(src, varJxy, t)
	if err != nil {
		return nil, err
	}
	ityp, err := readCodes(src, varItyp, t)
	if err != nil {
		return nil, err
	}
	idx, err := domain.ExtractLandunitIndex(ixy, jxy, ityp, r.NLat, r.NLon)
	if err != nil {
		return nil, err
	}
	values, err := src.ReadStep(variable, t)
	if err != nil {
		return nil, err
	}
	if len(values) != nLandunit {
		return nil, fmt.Errorf("%s is not on the landunit axis: %d values for %d landunits", variable, len(values), nLandunit)
	}
	grid, err := r.Rasterize(idx, values)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"time_step": t,
		"landunits": idx.Len(),
		"retained":  r.CountRetained(idx),
	}).Debug("rasterized time step")
	return grid, nil
}

// verify re-reads path and checks it matches ds. Fill cells read back
// as NaN.
func verify(path string, ds *gridded.Dataset) error {
	back, err := gridded.Read(path, ds.Variable)
	if err != nil {
		return fmt.Errorf("failed to re-read %s: %w", path, err)
	}
	if len(back.Times) != len(ds.Times) || len(back.Data.Elements) != len(ds.Data.Elements) {
		return fmt.Errorf("verification of %s failed: shape %v, want %v", path, back.Data.Shape, ds.Data.Shape)
	}
	for i, want := range ds.Data.Elements {
		got := back.Data.Elements[i]
		if math.IsNaN(got) && (math.IsNaN(want) || want == ds.Fill) {
			continue
		}
		if got != want {
			return fmt.Errorf("verification of %s failed at element %d: got %v, want %v", path, i, got, want)
		}
	}
	return nil
}

func int32s(in []int) []int32 {
	out := make([]int32, len(in))
	for i, v := range in {
		out[i] = int32(v)
	}
	return out
}
