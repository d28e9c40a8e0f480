package cli

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"go.ngs.io/flat10/internal/mockarchive"
)

func (a *app) mockArchiveCmd() *cobra.Command {
	var units string
	var gridded bool
	grid := mockarchive.DefaultGrid
	cmd := &cobra.Command{
		Use:   "mock-archive",
		Short: "Generate a synthetic FLAT10 archive",
		Long: `mock-archive writes synthetic monthly history files for one case under
archive-root, using the archive's naming scheme. Land output is written
on the landunit axis with land1d_* index variables unless --gridded is
given. Atmosphere output is always gridded.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.cfg
			if cfg.ArchiveRoot == "" {
				return errMissingRoot
			}
			start, end, err := cfg.Months()
			if err != nil {
				return err
			}
			paths, err := mockarchive.Generate(mockarchive.Options{
				Root:       cfg.ArchiveRoot,
				Experiment: cfg.Experiment,
				Suffix:     cfg.CaseSuffix,
				Domain:     cfg.Domain,
				Stream:     cfg.HistoryStream,
				Variable:   cfg.Variable,
				Units:      units,
				Start:      start,
				End:        end,
				Grid:       grid,
				Vector:     cfg.Domain == "lnd" && !gridded,
			})
			if err != nil {
				return err
			}
			a.log.WithFields(logrus.Fields{
				"files": len(paths),
				"root":  cfg.ArchiveRoot,
			}).Info("generated mock archive")
			return nil
		},
		DisableAutoGenTag: true,
	}
	cmd.Flags().StringVar(&units, "units", "gC/m^2", "units is the units attribute of the generated variable.")
	cmd.Flags().BoolVar(&gridded, "gridded", false, "gridded writes the variable on (time, lat, lon) instead of the landunit axis.")
	cmd.Flags().Float64Var(&grid.LatMin, "lat-min", grid.LatMin, "Minimum latitude of the generated grid")
	cmd.Flags().Float64Var(&grid.LatMax, "lat-max", grid.LatMax, "Maximum latitude of the generated grid")
	cmd.Flags().Float64Var(&grid.LonMin, "lon-min", grid.LonMin, "Minimum longitude of the generated grid")
	cmd.Flags().Float64Var(&grid.LonMax, "lon-max", grid.LonMax, "Maximum longitude of the generated grid")
	cmd.Flags().Float64Var(&grid.Resolution, "resolution", grid.Resolution, "Grid resolution in degrees")
	return cmd
}
