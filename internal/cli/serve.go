package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	httpHandler "go.ngs.io/flat10/internal/http"
	"go.ngs.io/flat10/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

func (a *app) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve area-weighted series over HTTP",
		Long: `serve starts an HTTP server answering series queries against the
configured archives.

API ENDPOINTS:
  GET /health             Health check
  GET /v1/landunit-types  Landunit types and whether regrid retains them
  GET /v1/series          Area-weighted series of one variable of one case`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.cfg
			start, end, err := cfg.Months()
			if err != nil {
				return err
			}
			retained, err := cfg.Retained()
			if err != nil {
				return err
			}
			if cfg.ArchiveRoot == "" && len(cfg.Archives) == 0 {
				return errMissingRoot
			}

			if a.log.IsLevelEnabled(logrus.DebugLevel) {
				gin.SetMode(gin.DebugMode)
			} else {
				gin.SetMode(gin.ReleaseMode)
			}
			seriesUC := usecase.NewSeriesUseCase(a.roots(), cfg.MaxOpenFiles, a.log).
				WithWeightsExperiment(cfg.WeightsExp)
			handler := httpHandler.NewHandler(seriesUC, retained, httpHandler.Defaults{
				Experiment: cfg.Experiment,
				Stream:     cfg.SeriesStream,
				Start:      start,
				End:        end,
				MultiFile:  cfg.MultiFile,
			})
			router := httpHandler.SetupRouter(handler, cfg.CORSOrigins, a.log)
			return a.listen(cmd.Context(), cfg.Addr, router)
		},
		DisableAutoGenTag: true,
	}
}

// listen serves h on addr until ctx is done.
func (a *app) listen(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		a.log.WithField("addr", addr).Info("server listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	a.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
