// Package gridded writes and reads the regridded 4-D landunit files
// (time, lat, lon, typlunit).
package gridded

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ctessum/sparse"
	"github.com/fhs/go-netcdf/netcdf"

	"go.ngs.io/flat10/internal/adapter/store"
	"go.ngs.io/flat10/internal/domain"
)

// Dataset is one regridded variable with its coordinates.
type Dataset struct {
	Variable    string
	Times       []float64
	TimeAttrs   store.Attributes
	Lat         []float64
	Lon         []float64
	VarAttrs    store.Attributes
	GlobalAttrs store.Attributes
	// Data has shape (len(Times), len(Lat), len(Lon), domain.NumLandunitTypes).
	Data *sparse.DenseArray
	Fill float64
}

func (d *Dataset) validate() error {
	if d.Variable == "" {
		return fmt.Errorf("variable name is empty")
	}
	if d.Data == nil {
		return fmt.Errorf("no data for %s", d.Variable)
	}
	want := []int{len(d.Times), len(d.Lat), len(d.Lon), domain.NumLandunitTypes}
	if len(d.Lat) == 0 || len(d.Lon) == 0 {
		return fmt.Errorf("empty lat/lon coordinates")
	}
	if len(d.Data.Shape) != len(want) {
		return fmt.Errorf("data has %d dims, want 4", len(d.Data.Shape))
	}
	for i := range want {
		if d.Data.Shape[i] != want[i] {
			return fmt.Errorf("data shape %v does not match coordinates %v", d.Data.Shape, want)
		}
	}
	return nil
}

// Write stores d at path, creating parent directories. The file is written
// under a temporary name and renamed into place.
func Write(path string, d *Dataset) error {
	if err := d.validate(); err != nil {
		return fmt.Errorf("invalid dataset: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := write(tmp, d); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return nil
}

func write(path string, d *Dataset) error {
	f, err := netcdf.CreateFile(path, netcdf.CLOBBER|netcdf.NETCDF4)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	closed := false
	defer func() {
		if !closed {
			_ = f.Close()
		}
	}()

	names := domain.LandunitTypeNames()
	nchars := 0
	for _, n := range names {
		if len(n) > nchars {
			nchars = len(n)
		}
	}

	timeDim, err := f.AddDim("time", uint64(len(d.Times)))
	if err != nil {
		return fmt.Errorf("failed to add time dim: %w", err)
	}
	latDim, err := f.AddDim("lat", uint64(len(d.Lat)))
	if err != nil {
		return fmt.Errorf("failed to add lat dim: %w", err)
	}
	lonDim, err := f.AddDim("lon", uint64(len(d.Lon)))
	if err != nil {
		return fmt.Errorf("failed to add lon dim: %w", err)
	}
	typDim, err := f.AddDim("typlunit", domain.NumLandunitTypes)
	if err != nil {
		return fmt.Errorf("failed to add typlunit dim: %w", err)
	}
	charDim, err := f.AddDim("nchars", uint64(nchars))
	if err != nil {
		return fmt.Errorf("failed to add nchars dim: %w", err)
	}

	vtime, err := f.AddVar("time", netcdf.DOUBLE, []netcdf.Dim{timeDim})
	if err != nil {
		return fmt.Errorf("failed to add time var: %w", err)
	}
	vlat, err := f.AddVar("lat", netcdf.DOUBLE, []netcdf.Dim{latDim})
	if err != nil {
		return fmt.Errorf("failed to add lat var: %w", err)
	}
	vlon, err := f.AddVar("lon", netcdf.DOUBLE, []netcdf.Dim{lonDim})
	if err != nil {
		return fmt.Errorf("failed to add lon var: %w", err)
	}
	vtyp, err := f.AddVar("typlunit", netcdf.INT, []netcdf.Dim{typDim})
	if err != nil {
		return fmt.Errorf("failed to add typlunit var: %w", err)
	}
	vname, err := f.AddVar("typlunit_name", netcdf.CHAR, []netcdf.Dim{typDim, charDim})
	if err != nil {
		return fmt.Errorf("failed to add typlunit_name var: %w", err)
	}
	vdata, err := f.AddVar(d.Variable, netcdf.DOUBLE, []netcdf.Dim{timeDim, latDim, lonDim, typDim})
	if err != nil {
		return fmt.Errorf("failed to add %s var: %w", d.Variable, err)
	}

	if err := writeAttrs(vtime, d.TimeAttrs); err != nil {
		return fmt.Errorf("failed to write time attributes: %w", err)
	}
	if err := writeAttrs(vlat, store.Attributes{{Name: "units", Value: "degrees_north"}, {Name: "long_name", Value: "coordinate latitude"}}); err != nil {
		return fmt.Errorf("failed to write lat attributes: %w", err)
	}
	if err := writeAttrs(vlon, store.Attributes{{Name: "units", Value: "degrees_east"}, {Name: "long_name", Value: "coordinate longitude"}}); err != nil {
		return fmt.Errorf("failed to write lon attributes: %w", err)
	}
	if err := writeAttrs(vtyp, store.Attributes{{Name: "long_name", Value: "landunit type index"}}); err != nil {
		return fmt.Errorf("failed to write typlunit attributes: %w", err)
	}
	attrs := d.VarAttrs.Without("_FillValue", "missing_value")
	attrs = append(attrs, store.Attribute{Name: "_FillValue", Value: []float64{d.Fill}})
	if err := writeAttrs(vdata, attrs); err != nil {
		return fmt.Errorf("failed to write %s attributes: %w", d.Variable, err)
	}
	for _, a := range d.GlobalAttrs {
		if err := writeAttr(f.Attr(a.Name), a.Value); err != nil {
			return fmt.Errorf("failed to write global attribute %s: %w", a.Name, err)
		}
	}

	if err := f.EndDef(); err != nil {
		return fmt.Errorf("failed to end define mode: %w", err)
	}

	if len(d.Times) > 0 {
		if err := vtime.WriteFloat64s(d.Times); err != nil {
			return fmt.Errorf("failed to write time: %w", err)
		}
	}
	if err := vlat.WriteFloat64s(d.Lat); err != nil {
		return fmt.Errorf("failed to write lat: %w", err)
	}
	if err := vlon.WriteFloat64s(d.Lon); err != nil {
		return fmt.Errorf("failed to write lon: %w", err)
	}
	typs := make([]int32, domain.NumLandunitTypes)
	chars := make([]byte, domain.NumLandunitTypes*nchars)
	for i, n := range names {
		typs[i] = int32(i)
		copy(chars[i*nchars:], n)
	}
	if err := vtyp.WriteInt32s(typs); err != nil {
		return fmt.Errorf("failed to write typlunit: %w", err)
	}
	if err := vname.WriteBytes(chars); err != nil {
		return fmt.Errorf("failed to write typlunit_name: %w", err)
	}
	if len(d.Data.Elements) > 0 {
		if err := vdata.WriteFloat64s(d.Data.Elements); err != nil {
			return fmt.Errorf("failed to write %s: %w", d.Variable, err)
		}
	}

	closed = true
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}

func writeAttrs(v netcdf.Var, attrs store.Attributes) error {
	for _, a := range attrs {
		if err := writeAttr(v.Attr(a.Name), a.Value); err != nil {
			return fmt.Errorf("%s: %w", a.Name, err)
		}
	}
	return nil
}

// writeAttr writes one attribute. Empty values are skipped.
func writeAttr(a netcdf.Attr, value interface{}) error {
	if attrLen(value) == 0 {
		return nil
	}
	switch v := value.(type) {
	case string:
		return a.WriteBytes([]byte(v))
	case []float64:
		return a.WriteFloat64s(v)
	case []float32:
		return a.WriteFloat32s(v)
	case []int32:
		return a.WriteInt32s(v)
	case []int16:
		return a.WriteInt16s(v)
	default:
		return fmt.Errorf("unsupported attribute type %T", value)
	}
}

func attrLen(value interface{}) int {
	switch v := value.(type) {
	case string:
		return len(v)
	case []float64:
		return len(v)
	case []float32:
		return len(v)
	case []int32:
		return len(v)
	case []int16:
		return len(v)
	}
	return -1
}
