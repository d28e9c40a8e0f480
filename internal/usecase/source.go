package usecase

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"go.ngs.io/flat10/internal/adapter/store"
	"go.ngs.io/flat10/internal/adapter/store/history"
	"go.ngs.io/flat10/internal/domain"
)

// Names of the CLM landunit mapping variables.
const (
	varIxy  = "land1d_ixy"
	varJxy  = "land1d_jxy"
	varItyp = "land1d_ityplunit"
)

// openSource opens paths lazily, falling back to loading the named
// variables eagerly, one file at a time, when that is not possible.
func openSource(paths, vars []string, maxOpenFiles int, log logrus.FieldLogger) (store.Source, error) {
	a, err := history.Open(paths, history.Options{MaxOpenFiles: maxOpenFiles})
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, history.ErrLazyInfeasible) {
		return nil, err
	}

	log.WithError(err).WithField("files", len(paths)).
		Warn("lazy multi-file open failed; loading and concatenating each file")
	mem, err := history.LoadEager(paths, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to load history files: %w", err)
	}
	return mem, nil
}

// monthlyFiles keeps the paths carrying a YYYY-MM stamp within
// [start, end]. Zero bounds are open. Files without a stamp, such as
// regridded outputs sharing the directory, are dropped.
func monthlyFiles(paths []string, start, end domain.YearMonth) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		ym, err := domain.HistoryFileMonth(p)
		if err != nil {
			continue
		}
		if start != (domain.YearMonth{}) && ym.Before(start) {
			continue
		}
		if end != (domain.YearMonth{}) && ym.After(end) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// decodeTimes decodes the time coordinate of src using its units and
// calendar attributes. A missing calendar means "standard".
func decodeTimes(src store.Source) ([]domain.CFTime, error) {
	attrs := src.TimeAttrs()
	units := attrs.String("units")
	if units == "" {
		return nil, fmt.Errorf("time coordinate has no units")
	}
	return domain.DecodeTimes(src.Times(), units, domain.Calendar(attrs.String("calendar")))
}

// readCodes reads an integer-valued landunit mapping variable at step t.
func readCodes(src store.Source, name string, t int) ([]int, error) {
	raw, err := src.ReadStep(name, t)
	if err != nil {
		return nil, err
	}
	return domain.CodesFromFloats(name, raw)
}
