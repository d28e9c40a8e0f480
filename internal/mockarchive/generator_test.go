package mockarchive

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"go.ngs.io/flat10/internal/adapter/store/history"
	"go.ngs.io/flat10/internal/domain"
)

func TestGenerate_VectorStream(t *testing.T) {
	root := t.TempDir()
	start := domain.YearMonth{Year: 1, Month: 11}
	end := domain.YearMonth{Year: 2, Month: 2}
	paths, err := Generate(Options{
		Root:       root,
		Experiment: "ctrl-esm",
		Suffix:     "leafcn_high",
		Domain:     "lnd",
		Stream:     "h4",
		Variable:   "TOTSOMC",
		Units:      "gC/m^2",
		Start:      start,
		End:        end,
		Vector:     true,
	})
	require.NoError(t, err)
	require.Len(t, paths, 4)
	require.Equal(t,
		"b.e21.B1850.f09_g17.FLAT10ctrl-esm.001.leafcn_high.clm2.h4.0001-11.nc",
		filepath.Base(paths[0]))

	a, err := history.Open(paths, history.Options{})
	require.NoError(t, err)
	defer a.Close()
	require.Equal(t, 4, a.NumTimes())

	times, err := domain.DecodeTimes(a.Times(), a.TimeAttrs().String("units"), domain.Calendar(a.TimeAttrs().String("calendar")))
	require.NoError(t, err)
	require.Equal(t, "0001-11-15", times[0].Date())
	require.Equal(t, "0002-02-15", times[3].Date())

	ityp, err := a.ReadStep("land1d_ityplunit", 0)
	require.NoError(t, err)
	values, err := a.ReadStep("TOTSOMC", 0)
	require.NoError(t, err)
	require.Len(t, values, len(ityp))
	for i, code := range ityp {
		if domain.LandunitType(code-1) == domain.DeepLake {
			require.True(t, math.IsNaN(values[i]), "lake landunit %d should be masked", i)
		}
	}
}

func TestGenerate_GriddedAtm(t *testing.T) {
	m := domain.YearMonth{Year: 1, Month: 1}
	paths, err := Generate(Options{
		Root:       t.TempDir(),
		Experiment: "ctrl-esm",
		Domain:     "atm",
		Stream:     "h0",
		Variable:   "TS",
		Start:      m,
		End:        m,
	})
	require.NoError(t, err)

	a, err := history.Open(paths, history.Options{})
	require.NoError(t, err)
	defer a.Close()
	require.True(t, a.HasVar("AREA"))
	require.False(t, a.HasVar("landfrac"))

	ts, err := a.ReadStep("TS", 0)
	require.NoError(t, err)
	require.Equal(t, float64(Value(m, 0, 0, domain.VegetatedOrBareSoil)), ts[0])
}

func TestGenerate_VectorNeedsLand(t *testing.T) {
	_, err := Generate(Options{Root: t.TempDir(), Domain: "atm", Vector: true})
	require.Error(t, err)
}

func TestGrid(t *testing.T) {
	g := DefaultGrid
	require.Equal(t, []float64{-45, -15, 15, 45}, g.Lat())
	require.Len(t, g.Lon(), 6)

	// Every band of a full global grid sums to the sphere's surface area.
	global := Grid{LatMin: -60, LatMax: 60, LonMin: 0, LonMax: 300, Resolution: 60}
	total := 0.0
	for _, a := range global.Area() {
		total += a
	}
	require.InDelta(t, 4*math.Pi*earthRadiusKM*earthRadiusKM, total, 1)
}
