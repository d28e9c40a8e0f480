// Package cli implements the flat10 command tree.
package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.ngs.io/flat10/internal/config"
	"go.ngs.io/flat10/internal/usecase"
)

// Version is the flat10 version.
const Version = "0.1.0"

// app carries state shared by the commands of one command tree.
type app struct {
	v   *viper.Viper
	cfg *config.Config
	log *logrus.Logger
}

// New returns the root flat10 command.
func New() *cobra.Command {
	a := &app{v: config.New(), log: logrus.New()}

	root := &cobra.Command{
		Use:   "flat10",
		Short: "Tools for the CESM2 FLAT10 parameter perturbation archive.",
		Long: `flat10 regrids landunit-level CLM history output onto the model grid
and reduces gridded FLAT10 variables to area-weighted time series.

Configuration comes from flags, FLAT10_* environment variables and an
optional configuration file given with --config.`,
		SilenceUsage:      true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error { return a.setConfig(cmd.ErrOrStderr()) },
		DisableAutoGenTag: true,
	}
	persistent := root.PersistentFlags()
	config.AddFlags(a.v, persistent,
		"config", "log-level", "log-format",
		"variable", "domain", "experiment", "case",
		"archive-root", "archives", "start", "end", "max-open-files",
	)

	regrid := a.regridCmd()
	series := a.seriesCmd()
	serve := a.serveCmd()
	mock := a.mockArchiveCmd()

	config.Bind(a.v, "stream", regrid.Flags(), mock.Flags())
	config.Bind(a.v, "retain", regrid.Flags(), serve.Flags())
	config.Bind(a.v, "series-stream", series.Flags(), serve.Flags())
	config.Bind(a.v, "multi-file", series.Flags(), serve.Flags())
	config.Bind(a.v, "weights-experiment", series.Flags(), serve.Flags())
	config.AddFlags(a.v, regrid.Flags(), "output-root", "collision", "workers", "fill", "verify")
	config.AddFlags(a.v, series.Flags(), "reduce")
	config.AddFlags(a.v, serve.Flags(), "addr", "cors-origins")

	root.AddCommand(regrid, series, serve, mock, a.configCmd(), versionCmd())
	return root
}

// setConfig reads the configuration file and sets up logging.
func (a *app) setConfig(logOut io.Writer) error {
	if err := config.ReadFile(a.v); err != nil {
		return err
	}
	cfg, err := config.Load(a.v)
	if err != nil {
		return fmt.Errorf("flat10: invalid configuration: %w", err)
	}
	a.cfg = cfg
	return configureLogger(a.log, cfg, logOut)
}

// configureLogger applies the configured level and format to log.
func configureLogger(log *logrus.Logger, cfg *config.Config, out io.Writer) error {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("flat10: invalid log-level: %w", err)
	}
	log.SetLevel(level)
	log.SetOutput(out)
	switch cfg.LogFormat {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return nil
}

// roots returns the archive roots of the configured cases.
func (a *app) roots() usecase.ArchiveRoots {
	return usecase.ArchiveRoots{Default: a.cfg.ArchiveRoot, Cases: a.cfg.Archives}
}

func (a *app) configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `config prints the configuration after merging the configuration file,
environment variables and flags, as YAML.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := a.cfg.YAML()
			if err != nil {
				return fmt.Errorf("failed to render configuration: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
		DisableAutoGenTag: true,
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Long:  "version prints the version number of this version of flat10.",
		// The configuration is not needed to print the version.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "flat10 v%s\n", Version)
		},
		DisableAutoGenTag: true,
	}
}

// errMissingRoot is returned when a command needs an archive root that
// is not configured.
var errMissingRoot = errors.New("archive-root must be set")
