package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"go.ngs.io/flat10/internal/adapter/store/csv"
	"go.ngs.io/flat10/internal/adapter/store/history"
	"go.ngs.io/flat10/internal/domain"
	"go.ngs.io/flat10/internal/usecase"
)

func (a *app) seriesCmd() *cobra.Command {
	var out, reindexLike string
	cmd := &cobra.Command{
		Use:   "series",
		Short: "Reduce a gridded variable to an area-weighted time series",
		Long: `series loads one gridded variable of one case between start and end and
reduces every month over area, weighting by the control case cell areas
(and land fraction on the land grid). The result is written as CSV.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.cfg
			start, end, err := cfg.Months()
			if err != nil {
				return err
			}
			reduce, err := domain.ParseReduction(cfg.Reduce)
			if err != nil {
				return err
			}
			req := usecase.SeriesRequest{
				LoadRequest: usecase.LoadRequest{
					Variable:   cfg.Variable,
					Domain:     cfg.Domain,
					Experiment: cfg.Experiment,
					CaseSuffix: cfg.CaseSuffix,
					Stream:     cfg.SeriesStream,
					Start:      start,
					End:        end,
					MultiFile:  cfg.MultiFile,
				},
				Reduce: reduce,
			}
			if reindexLike != "" {
				if req.ReindexLike, err = readLatLon(reindexLike); err != nil {
					return err
				}
			}

			uc := usecase.NewSeriesUseCase(a.roots(), cfg.MaxOpenFiles, a.log).
				WithWeightsExperiment(cfg.WeightsExp)
			s, err := uc.Series(cmd.Context(), req)
			if err != nil {
				return err
			}
			if out == "" {
				return csv.WriteSeries(cmd.OutOrStdout(), *s)
			}
			if err := csv.WriteSeriesFile(out, *s); err != nil {
				return err
			}
			a.log.WithField("path", out).Info("wrote series")
			return nil
		},
		DisableAutoGenTag: true,
	}
	cmd.Flags().StringVar(&out, "out", "", "out is the CSV file to write; standard output when empty.")
	cmd.Flags().StringVar(&reindexLike, "reindex-like", "", `reindex-like is a NetCDF file whose lat and lon coordinates the
              variable is mapped onto by nearest neighbour before reducing.`)
	return cmd
}

// readLatLon reads the lat and lon coordinates of a NetCDF file.
func readLatLon(path string) (*usecase.LatLon, error) {
	src, err := history.Open([]string{path}, history.Options{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = src.Close() }()

	var ll usecase.LatLon
	if ll.Lat, err = src.ReadStatic("lat"); err != nil {
		return nil, fmt.Errorf("failed to read lat from %s: %w", path, err)
	}
	if ll.Lon, err = src.ReadStatic("lon"); err != nil {
		return nil, fmt.Errorf("failed to read lon from %s: %w", path, err)
	}
	return &ll, nil
}
