// Package mockarchive writes small synthetic CESM history archives that
// follow the FLAT10 naming convention.
package mockarchive

import (
	"fmt"
	"math"
	"os"

	"github.com/fhs/go-netcdf/netcdf"

	"go.ngs.io/flat10/internal/domain"
)

// FillValue marks missing data in generated files.
const FillValue float32 = 1e36

// TimeUnits and Calendar are written on every time coordinate.
const (
	TimeUnits = "days since 0001-01-01 00:00:00"
	Calendar  = "noleap"
)

const earthRadiusKM = 6371.22

// Grid defines the geographic bounds and resolution.
type Grid struct {
	LatMin     float64
	LatMax     float64
	LonMin     float64
	LonMax     float64
	Resolution float64 // degrees
}

// DefaultGrid is a coarse 4 x 6 grid.
var DefaultGrid = Grid{LatMin: -45, LatMax: 45, LonMin: 0, LonMax: 150, Resolution: 30}

// Lat returns cell-centre latitudes.
func (g Grid) Lat() []float64 { return axis(g.LatMin, g.LatMax, g.Resolution) }

// Lon returns cell-centre longitudes.
func (g Grid) Lon() []float64 { return axis(g.LonMin, g.LonMax, g.Resolution) }

func axis(lo, hi, step float64) []float64 {
	n := int(math.Round((hi-lo)/step)) + 1
	out := make([]float64, n)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	return out
}

// Area returns the cell area in km² for every (lat, lon) cell.
func (g Grid) Area() []float64 {
	lat, lon := g.Lat(), g.Lon()
	out := make([]float64, len(lat)*len(lon))
	dlon := g.Resolution * math.Pi / 180
	for i, phi := range lat {
		lo := math.Max(-90, phi-g.Resolution/2) * math.Pi / 180
		hi := math.Min(90, phi+g.Resolution/2) * math.Pi / 180
		a := earthRadiusKM * earthRadiusKM * dlon * (math.Sin(hi) - math.Sin(lo))
		for j := range lon {
			out[i*len(lon)+j] = a
		}
	}
	return out
}

// IsLand reports whether the cell at (row, col) carries land.
func IsLand(row, col int) bool { return (row+col)%4 != 3 }

// LandFrac is the land fraction of a cell.
func LandFrac(row, col int) float64 {
	switch {
	case !IsLand(row, col):
		return 0
	case col == 0:
		return 0.5
	default:
		return 1
	}
}

// Landunits returns the landunit types present in a land cell, in file order.
func Landunits(row, col int) []domain.LandunitType {
	if !IsLand(row, col) {
		return nil
	}
	types := []domain.LandunitType{domain.VegetatedOrBareSoil}
	if (row+col)%2 == 0 {
		types = append(types, domain.Crop)
	}
	if row%3 == 0 {
		types = append(types, domain.DeepLake)
	}
	return types
}

// Value is the synthetic value of a landunit of type typ in cell (row, col)
// during month ym. Deep lake landunits hold FillValue.
func Value(ym domain.YearMonth, row, col int, typ domain.LandunitType) float32 {
	if typ == domain.DeepLake {
		return FillValue
	}
	return float32(1000 + 100*float64(typ) + 10*float64(row) + float64(col) + 0.25*float64(ym.Index()))
}

// Options describes one generated history stream.
type Options struct {
	Root       string
	Experiment string
	Suffix     string
	Domain     string // "lnd" or "atm".
	Stream     string
	Variable   string
	Units      string
	Start, End domain.YearMonth
	Grid       Grid
	// Vector writes Variable on the 1-D landunit axis with land1d_* index
	// variables, as CLM does for landunit-level streams. Otherwise Variable
	// is gridded (time, lat, lon). Vector output requires Domain "lnd".
	Vector bool
}

// Generate writes one file per month and returns their paths.
func Generate(opts Options) ([]string, error) {
	if opts.Vector && opts.Domain != "lnd" {
		return nil, fmt.Errorf("landunit vector output requires domain lnd, got %q", opts.Domain)
	}
	if opts.Grid.Resolution <= 0 {
		opts.Grid = DefaultGrid
	}
	months, err := domain.Months(opts.Start, opts.End)
	if err != nil {
		return nil, err
	}

	caseName := domain.CaseName(opts.Experiment, opts.Suffix)
	if err := os.MkdirAll(domain.HistoryDir(opts.Root, caseName, opts.Domain), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	paths := make([]string, 0, len(months))
	for _, ym := range months {
		path, err := domain.HistoryFile(opts.Root, caseName, opts.Domain, opts.Stream, ym)
		if err != nil {
			return nil, err
		}
		if err := writeMonth(path, ym, opts); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// MidMonth is the time coordinate written for month ym.
func MidMonth(ym domain.YearMonth) float64 {
	return domain.DaysSince(domain.CFTime{Year: 1, Month: 1, Day: 1}, ym.Year, ym.Month, 15)
}

type landunit struct {
	row, col int
	typ      domain.LandunitType
}

func landunits(nLat, nLon int) []landunit {
	var out []landunit
	for row := 0; row < nLat; row++ {
		for col := 0; col < nLon; col++ {
			for _, typ := range Landunits(row, col) {
				out = append(out, landunit{row: row, col: col, typ: typ})
			}
		}
	}
	return out
}

func writeMonth(path string, ym domain.YearMonth, opts Options) error {
	ds, err := netcdf.CreateFile(path, netcdf.CLOBBER|netcdf.NETCDF4)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := writeVars(ds, ym, opts); err != nil {
		_ = ds.Close()
		return err
	}
	if err := ds.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	return nil
}

// writeVars defines and writes every variable of one monthly file.
func writeVars(ds netcdf.Dataset, ym domain.YearMonth, opts Options) error {
	lat, lon := opts.Grid.Lat(), opts.Grid.Lon()
	nLat, nLon := len(lat), len(lon)

	timeDim, err := ds.AddDim("time", 1)
	if err != nil {
		return err
	}
	latDim, err := ds.AddDim("lat", uint64(nLat))
	if err != nil {
		return err
	}
	lonDim, err := ds.AddDim("lon", uint64(nLon))
	if err != nil {
		return err
	}

	timeVar, err := ds.AddVar("time", netcdf.DOUBLE, []netcdf.Dim{timeDim})
	if err != nil {
		return err
	}
	latVar, err := ds.AddVar("lat", netcdf.DOUBLE, []netcdf.Dim{latDim})
	if err != nil {
		return err
	}
	lonVar, err := ds.AddVar("lon", netcdf.DOUBLE, []netcdf.Dim{lonDim})
	if err != nil {
		return err
	}
	if err := writeText(timeVar, "units", TimeUnits); err != nil {
		return err
	}
	if err := writeText(timeVar, "calendar", Calendar); err != nil {
		return err
	}

	// Cell area is "area" on the land grid and "AREA" on the atmosphere grid.
	areaName := "area"
	if opts.Domain == "atm" {
		areaName = "AREA"
	}
	areaVar, err := ds.AddVar(areaName, netcdf.FLOAT, []netcdf.Dim{latDim, lonDim})
	if err != nil {
		return err
	}
	if err := writeText(areaVar, "units", "km^2"); err != nil {
		return err
	}
	var fracVar netcdf.Var
	if opts.Domain == "lnd" {
		if fracVar, err = ds.AddVar("landfrac", netcdf.FLOAT, []netcdf.Dim{latDim, lonDim}); err != nil {
			return err
		}
	}

	var (
		units     = landunits(nLat, nLon)
		dataVar   netcdf.Var
		indexVars [3]netcdf.Var
	)
	if opts.Vector {
		luDim, err := ds.AddDim("landunit", uint64(len(units)))
		if err != nil {
			return err
		}
		for i, name := range []string{"land1d_ixy", "land1d_jxy", "land1d_ityplunit"} {
			if indexVars[i], err = ds.AddVar(name, netcdf.INT, []netcdf.Dim{timeDim, luDim}); err != nil {
				return err
			}
		}
		dataVar, err = ds.AddVar(opts.Variable, netcdf.FLOAT, []netcdf.Dim{timeDim, luDim})
		if err != nil {
			return err
		}
	} else {
		dataVar, err = ds.AddVar(opts.Variable, netcdf.FLOAT, []netcdf.Dim{timeDim, latDim, lonDim})
		if err != nil {
			return err
		}
	}
	if err := writeText(dataVar, "units", opts.Units); err != nil {
		return err
	}
	if err := writeText(dataVar, "long_name", "synthetic "+opts.Variable); err != nil {
		return err
	}
	if err := dataVar.Attr("_FillValue").WriteFloat32s([]float32{FillValue}); err != nil {
		return err
	}
	if err := dataVar.Attr("missing_value").WriteFloat32s([]float32{FillValue}); err != nil {
		return err
	}

	if err := ds.EndDef(); err != nil {
		return err
	}

	if err := timeVar.WriteFloat64s([]float64{MidMonth(ym)}); err != nil {
		return err
	}
	if err := latVar.WriteFloat64s(lat); err != nil {
		return err
	}
	if err := lonVar.WriteFloat64s(lon); err != nil {
		return err
	}
	area := opts.Grid.Area()
	area32 := make([]float32, len(area))
	frac32 := make([]float32, len(area))
	for i, a := range area {
		area32[i] = float32(a)
		frac32[i] = float32(LandFrac(i/nLon, i%nLon))
	}
	if err := areaVar.WriteFloat32s(area32); err != nil {
		return err
	}
	if opts.Domain == "lnd" {
		if err := fracVar.WriteFloat32s(frac32); err != nil {
			return err
		}
	}

	if opts.Vector {
		ixy := make([]int32, len(units))
		jxy := make([]int32, len(units))
		ityp := make([]int32, len(units))
		values := make([]float32, len(units))
		for i, u := range units {
			ixy[i] = int32(u.col + 1)
			jxy[i] = int32(u.row + 1)
			ityp[i] = int32(u.typ + 1)
			values[i] = Value(ym, u.row, u.col, u.typ)
		}
		for i, codes := range [][]int32{ixy, jxy, ityp} {
			if len(codes) == 0 {
				continue
			}
			if err := indexVars[i].WriteInt32s(codes); err != nil {
				return err
			}
		}
		if len(values) > 0 {
			return dataVar.WriteFloat32s(values)
		}
		return nil
	}

	values := make([]float32, nLat*nLon)
	for row := 0; row < nLat; row++ {
		for col := 0; col < nLon; col++ {
			v := FillValue
			if IsLand(row, col) || opts.Domain == "atm" {
				v = Value(ym, row, col, domain.VegetatedOrBareSoil)
			}
			values[row*nLon+col] = v
		}
	}
	return dataVar.WriteFloat32s(values)
}

func writeText(v netcdf.Var, name, value string) error {
	if value == "" {
		return nil
	}
	return v.Attr(name).WriteBytes([]byte(value))
}
