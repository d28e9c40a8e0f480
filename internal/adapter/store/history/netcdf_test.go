package history

import (
	"errors"
	"io/fs"
	"math"
	"path/filepath"
	"testing"

	"github.com/fhs/go-netcdf/netcdf"
)

// createMonthNC writes one monthly file with two landunits: a timed FLOAT
// variable, a static INT index and a time coordinate.
func createMonthNC(t *testing.T, path string, day float64, values []float32) {
	t.Helper()
	f, err := netcdf.CreateFile(path, netcdf.CLOBBER|netcdf.NETCDF4)
	if err != nil {
		t.Fatalf("create nc: %v", err)
	}
	defer f.Close()

	timeDim, _ := f.AddDim("time", 1)
	luDim, _ := f.AddDim("landunit", 2)
	vtime, _ := f.AddVar("time", netcdf.DOUBLE, []netcdf.Dim{timeDim})
	vval, _ := f.AddVar("TOTSOMC", netcdf.FLOAT, []netcdf.Dim{timeDim, luDim})
	vixy, _ := f.AddVar("land1d_ixy", netcdf.INT, []netcdf.Dim{luDim})

	if err := vtime.Attr("units").WriteBytes([]byte("days since 0001-01-01 00:00:00")); err != nil {
		t.Fatalf("time units: %v", err)
	}
	if err := vtime.Attr("calendar").WriteBytes([]byte("noleap")); err != nil {
		t.Fatalf("time calendar: %v", err)
	}
	if err := vval.Attr("units").WriteBytes([]byte("gC/m^2")); err != nil {
		t.Fatalf("units: %v", err)
	}
	if err := vval.Attr("_FillValue").WriteFloat32s([]float32{1e36}); err != nil {
		t.Fatalf("fill: %v", err)
	}

	if err := f.EndDef(); err != nil {
		t.Fatalf("enddef: %v", err)
	}
	if err := vtime.WriteFloat64s([]float64{day}); err != nil {
		t.Fatalf("write time: %v", err)
	}
	if err := vval.WriteFloat32s(values); err != nil {
		t.Fatalf("write values: %v", err)
	}
	if err := vixy.WriteInt32s([]int32{1, 2}); err != nil {
		t.Fatalf("write ixy: %v", err)
	}
}

func twoMonths(t *testing.T) []string {
	t.Helper()
	dir := t.TempDir()
	jan := filepath.Join(dir, "case.clm2.h4.0001-01.nc")
	feb := filepath.Join(dir, "case.clm2.h4.0001-02.nc")
	createMonthNC(t, jan, 15.5, []float32{1, 2})
	createMonthNC(t, feb, 45, []float32{3, 1e36})
	return []string{jan, feb}
}

func TestOpen_ConcatenatesTime(t *testing.T) {
	a, err := Open(twoMonths(t), Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer a.Close()

	if a.NumTimes() != 2 {
		t.Fatalf("NumTimes = %d, want 2", a.NumTimes())
	}
	if times := a.Times(); times[0] != 15.5 || times[1] != 45 {
		t.Fatalf("Times = %v", times)
	}
	if got := a.TimeAttrs().String("calendar"); got != "noleap" {
		t.Fatalf("calendar = %q", got)
	}
	if n, err := a.Dim("landunit"); err != nil || n != 2 {
		t.Fatalf("Dim(landunit) = %d, %v", n, err)
	}

	step, err := a.ReadStep("TOTSOMC", 1)
	if err != nil {
		t.Fatalf("ReadStep: %v", err)
	}
	if step[0] != 3 || !math.IsNaN(step[1]) {
		t.Fatalf("step 1 = %v, want [3 NaN]", step)
	}

	for ti := 0; ti < 2; ti++ {
		ixy, err := a.ReadStep("land1d_ixy", ti)
		if err != nil {
			t.Fatalf("ReadStep(land1d_ixy, %d): %v", ti, err)
		}
		if ixy[0] != 1 || ixy[1] != 2 {
			t.Fatalf("static var at %d = %v", ti, ixy)
		}
	}

	if _, err := a.ReadStep("TOTSOMC", 2); err == nil {
		t.Fatal("expected out of range error")
	}
	if a.HasVar("NOPE") {
		t.Fatal("HasVar reported a missing variable")
	}
	attrs, err := a.Attrs("TOTSOMC")
	if err != nil || attrs.String("units") != "gC/m^2" {
		t.Fatalf("Attrs = %v, %v", attrs, err)
	}
}

func TestOpen_MaxOpenFiles(t *testing.T) {
	_, err := Open(twoMonths(t), Options{MaxOpenFiles: 1})
	if !errors.Is(err, ErrLazyInfeasible) {
		t.Fatalf("expected ErrLazyInfeasible, got %v", err)
	}
}

func TestGlob_NoFiles(t *testing.T) {
	_, err := Glob(filepath.Join(t.TempDir(), "*.nc"))
	if !errors.Is(err, ErrNoFiles) || !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected ErrNoFiles wrapping fs.ErrNotExist, got %v", err)
	}
}

func TestLoadEager_MatchesLazy(t *testing.T) {
	paths := twoMonths(t)
	lazy, err := Open(paths, Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer lazy.Close()
	mem, err := LoadEager(paths, []string{"TOTSOMC", "land1d_ixy"})
	if err != nil {
		t.Fatalf("LoadEager: %v", err)
	}

	if mem.NumTimes() != lazy.NumTimes() {
		t.Fatalf("NumTimes %d vs %d", mem.NumTimes(), lazy.NumTimes())
	}
	for ti := 0; ti < mem.NumTimes(); ti++ {
		want, _ := lazy.ReadStep("TOTSOMC", ti)
		got, err := mem.ReadStep("TOTSOMC", ti)
		if err != nil {
			t.Fatalf("eager ReadStep: %v", err)
		}
		for i := range want {
			if math.Float64bits(got[i]) != math.Float64bits(want[i]) && !(math.IsNaN(got[i]) && math.IsNaN(want[i])) {
				t.Fatalf("step %d elem %d: eager %v lazy %v", ti, i, got[i], want[i])
			}
		}
	}
	ixy, err := mem.ReadStep("land1d_ixy", 1)
	if err != nil || ixy[1] != 2 {
		t.Fatalf("static eager read = %v, %v", ixy, err)
	}
	if n, err := mem.Dim("landunit"); err != nil || n != 2 {
		t.Fatalf("Dim = %d, %v", n, err)
	}
}

func TestOpen_ShortCoordinates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "case.clm2.h0.0001-01.nc")
	f, err := netcdf.CreateFile(path, netcdf.CLOBBER|netcdf.NETCDF4)
	if err != nil {
		t.Fatalf("create nc: %v", err)
	}
	timeDim, _ := f.AddDim("time", 1)
	latDim, _ := f.AddDim("lat", 3)
	vtime, _ := f.AddVar("time", netcdf.SHORT, []netcdf.Dim{timeDim})
	vlat, _ := f.AddVar("lat", netcdf.SHORT, []netcdf.Dim{latDim})
	vlev, _ := f.AddVar("nlevgrnd", netcdf.SHORT, nil)
	if err := vtime.Attr("units").WriteBytes([]byte("days since 0001-01-01 00:00:00")); err != nil {
		t.Fatalf("time units: %v", err)
	}
	if err := f.EndDef(); err != nil {
		t.Fatalf("enddef: %v", err)
	}
	if err := vtime.WriteInt16s([]int16{15}); err != nil {
		t.Fatalf("write time: %v", err)
	}
	if err := vlat.WriteInt16s([]int16{-60, 0, 60}); err != nil {
		t.Fatalf("write lat: %v", err)
	}
	if err := vlev.WriteInt16s([]int16{25}); err != nil {
		t.Fatalf("write nlevgrnd: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	a, err := Open([]string{path}, Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer a.Close()

	if times := a.Times(); len(times) != 1 || times[0] != 15 {
		t.Fatalf("Times = %v, want [15]", times)
	}
	lat, err := a.ReadStatic("lat")
	if err != nil {
		t.Fatalf("ReadStatic(lat): %v", err)
	}
	if len(lat) != 3 || lat[0] != -60 || lat[2] != 60 {
		t.Fatalf("lat = %v", lat)
	}
	lev, err := a.ReadStatic("nlevgrnd")
	if err != nil {
		t.Fatalf("ReadStatic(nlevgrnd): %v", err)
	}
	if len(lev) != 1 || lev[0] != 25 {
		t.Fatalf("nlevgrnd = %v, want [25]", lev)
	}
}
