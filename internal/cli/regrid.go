package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"go.ngs.io/flat10/internal/usecase"
)

func (a *app) regridCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "regrid",
		Short: "Grid landunit-level history output",
		Long: `regrid reads every file of a landunit-level CLM history stream, places
the landunits of the retained types on their (lat, lon, typlunit) cells
and writes one NetCDF file with all time steps. Cells without a retained
landunit hold the fill value.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.cfg
			root, err := a.roots().Root(cfg.CaseSuffix)
			if err != nil {
				return err
			}
			retained, err := cfg.Retained()
			if err != nil {
				return err
			}
			collision, err := cfg.CollisionPolicy()
			if err != nil {
				return err
			}

			res, err := usecase.NewRegridUseCase(a.log).Execute(cmd.Context(), usecase.RegridRequest{
				Variable:     cfg.Variable,
				Experiment:   cfg.Experiment,
				CaseSuffix:   cfg.CaseSuffix,
				Domain:       cfg.Domain,
				Stream:       cfg.HistoryStream,
				ArchiveRoot:  root,
				OutputRoot:   cfg.OutputRoot,
				Retained:     retained,
				Collision:    collision,
				Fill:         cfg.FillValue,
				Workers:      cfg.Workers,
				MaxOpenFiles: cfg.MaxOpenFiles,
				Verify:       cfg.Verify,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.OutputPath)
			return nil
		},
		DisableAutoGenTag: true,
	}
}
