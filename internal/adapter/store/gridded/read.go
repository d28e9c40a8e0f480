package gridded

import (
	"fmt"
	"math"
	"strings"

	"github.com/ctessum/sparse"
	"github.com/fhs/go-netcdf/netcdf"

	"go.ngs.io/flat10/internal/adapter/store/history"
	"go.ngs.io/flat10/internal/domain"
)

// GlobalAttrNames are the global attributes Read restores.
var GlobalAttrNames = []string{"case", "run_id", "retained_landunit_types", "collision_policy"}

// Read loads a file produced by Write. Cells equal to the stored
// _FillValue come back as NaN, and Fill is set from that attribute.
func Read(path, variable string) (*Dataset, error) {
	src, err := history.Open([]string{path}, history.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = src.Close() }()

	d := &Dataset{
		Variable:  variable,
		Times:     src.Times(),
		TimeAttrs: src.TimeAttrs(),
		Fill:      math.NaN(),
	}
	if d.Lat, err = src.ReadStatic("lat"); err != nil {
		return nil, err
	}
	if d.Lon, err = src.ReadStatic("lon"); err != nil {
		return nil, err
	}
	if d.VarAttrs, err = src.Attrs(variable); err != nil {
		return nil, err
	}
	if fill, err := d.VarAttrs.Float64("_FillValue"); err == nil {
		d.Fill = fill
	}
	d.VarAttrs = d.VarAttrs.Without("_FillValue")
	if d.GlobalAttrs, err = src.GlobalAttrs(GlobalAttrNames...); err != nil {
		return nil, err
	}

	d.Data = sparse.ZerosDense(len(d.Times), len(d.Lat), len(d.Lon), domain.NumLandunitTypes)
	stepSize := len(d.Lat) * len(d.Lon) * domain.NumLandunitTypes
	for t := range d.Times {
		step, err := src.ReadStep(variable, t)
		if err != nil {
			return nil, err
		}
		if len(step) != stepSize {
			return nil, fmt.Errorf("%s step %d has %d values, want %d", variable, t, len(step), stepSize)
		}
		copy(d.Data.Elements[t*stepSize:], step)
	}
	return d, nil
}

// ReadTypeNames returns the typlunit_name labels stored in path.
func ReadTypeNames(path string) ([]string, error) {
	ds, err := netcdf.OpenFile(path, netcdf.NOWRITE)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = ds.Close() }()

	v, err := ds.Var("typlunit_name")
	if err != nil {
		return nil, fmt.Errorf("typlunit_name not found: %w", err)
	}
	lens, err := v.LenDims()
	if err != nil || len(lens) != 2 {
		return nil, fmt.Errorf("typlunit_name has unexpected shape %v: %v", lens, err)
	}
	buf := make([]byte, lens[0]*lens[1])
	if err := v.ReadBytes(buf); err != nil {
		return nil, fmt.Errorf("failed to read typlunit_name: %w", err)
	}
	names := make([]string, lens[0])
	for i := range names {
		row := buf[uint64(i)*lens[1] : uint64(i+1)*lens[1]]
		names[i] = strings.TrimRight(string(row), "\x00 ")
	}
	return names, nil
}
