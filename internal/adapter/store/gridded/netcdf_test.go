package gridded

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/ctessum/sparse"
	"github.com/stretchr/testify/require"

	"go.ngs.io/flat10/internal/adapter/store"
	"go.ngs.io/flat10/internal/domain"
)

func sampleDataset() *Dataset {
	data := sparse.ZerosDense(2, 2, 3, domain.NumLandunitTypes)
	for i := range data.Elements {
		data.Elements[i] = math.NaN()
	}
	data.Elements[data.Index1d(0, 1, 2, 0)] = 7.25
	data.Elements[data.Index1d(1, 1, 2, 0)] = 0
	data.Elements[data.Index1d(1, 0, 0, 3)] = -1.5e-7

	return &Dataset{
		Variable: "TOTSOMC",
		Times:    []float64{15.5, 45},
		TimeAttrs: store.Attributes{
			{Name: "units", Value: "days since 0001-01-01 00:00:00"},
			{Name: "calendar", Value: "noleap"},
		},
		Lat: []float64{-10, 10},
		Lon: []float64{0, 120, 240},
		VarAttrs: store.Attributes{
			{Name: "units", Value: "gC/m^2"},
			{Name: "long_name", Value: "total soil organic matter carbon"},
			{Name: "_FillValue", Value: []float32{1e36}},
		},
		GlobalAttrs: store.Attributes{
			{Name: "case", Value: "b.e21.B1850.f09_g17.FLAT10ctrl-esm.001.leafcn_high"},
			{Name: "retained_landunit_types", Value: []int32{0, 1}},
		},
		Data: data,
		Fill: math.NaN(),
	}
}

func TestWriteRead_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "case", "lnd", "TOTSOMC.nc")
	in := sampleDataset()
	require.NoError(t, Write(path, in))

	_, err := os.Stat(path + ".tmp")
	require.True(t, os.IsNotExist(err), "temporary file left behind")

	out, err := Read(path, "TOTSOMC")
	require.NoError(t, err)
	require.Equal(t, in.Times, out.Times)
	require.Equal(t, in.Lat, out.Lat)
	require.Equal(t, in.Lon, out.Lon)
	require.Equal(t, in.Data.Shape, out.Data.Shape)
	for i := range in.Data.Elements {
		require.Equal(t, math.Float64bits(in.Data.Elements[i]), math.Float64bits(out.Data.Elements[i]), "element %d", i)
	}

	require.Equal(t, "noleap", out.TimeAttrs.String("calendar"))
	require.Equal(t, "gC/m^2", out.VarAttrs.String("units"))
	require.True(t, math.IsNaN(out.Fill))
	require.Equal(t, in.GlobalAttrs, out.GlobalAttrs)
}

func TestWrite_TypeNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "names.nc")
	require.NoError(t, Write(path, sampleDataset()))

	names, err := ReadTypeNames(path)
	require.NoError(t, err)
	require.Equal(t, domain.LandunitTypeNames(), names)
}

func TestWrite_ShapeMismatch(t *testing.T) {
	d := sampleDataset()
	d.Lon = d.Lon[:2]
	err := Write(filepath.Join(t.TempDir(), "bad.nc"), d)
	require.Error(t, err)
}
