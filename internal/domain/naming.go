package domain

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrUnknownDomain is returned for a model domain with no CESM component.
var ErrUnknownDomain = errors.New("unknown model domain")

// CasePrefix is the shared prefix of every FLAT10 case name.
const CasePrefix = "b.e21.B1850.f09_g17.FLAT10"

// ControlCaseLastMonth is the last month archived for the standard-parameter
// control case.
var ControlCaseLastMonth = YearMonth{Year: 30, Month: 12}

var components = map[string]string{
	"atm": "cam",
	"lnd": "clm2",
}

// Component maps a model domain ("atm", "lnd") to its CESM component name.
func Component(domain string) (string, error) {
	comp, ok := components[domain]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownDomain, domain)
	}
	return comp, nil
}

// CaseName builds b.e21.B1850.f09_g17.FLAT10{experiment}.001[.suffix].
func CaseName(experiment, suffix string) string {
	name := CasePrefix + experiment + ".001"
	if suffix != "" {
		name += "." + suffix
	}
	return name
}

// HistoryDir is the directory holding the history files of one case/domain.
func HistoryDir(root, caseName, domain string) string {
	return filepath.Join(root, caseName, domain, "hist")
}

// HistoryFile is the path of one monthly history file.
func HistoryFile(root, caseName, domain, stream string, month YearMonth) (string, error) {
	comp, err := Component(domain)
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s.%s.%s.%s.nc", caseName, comp, stream, month)
	return filepath.Join(HistoryDir(root, caseName, domain), name), nil
}

// HistoryGlob is the glob pattern matching every file of a history stream.
func HistoryGlob(root, caseName, domain, stream string) (string, error) {
	comp, err := Component(domain)
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s.%s.%s.*.nc", caseName, comp, stream)
	return filepath.Join(HistoryDir(root, caseName, domain), name), nil
}

// HistoryFileMonth extracts the YYYY-MM stamp from a monthly history file name.
func HistoryFileMonth(path string) (YearMonth, error) {
	base := strings.TrimSuffix(filepath.Base(path), ".nc")
	i := strings.LastIndex(base, ".")
	if i < 0 {
		return YearMonth{}, fmt.Errorf("no date stamp in %q", path)
	}
	return ParseYearMonth(base[i+1:])
}

// RegriddedFile is the output path of a regridded landunit variable.
func RegriddedFile(outRoot, caseName, domain, stream, variable string, first, last YearMonth) (string, error) {
	comp, err := Component(domain)
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s.%s.%s.%s-%s.%s.vegonly.nc",
		caseName, comp, stream, first.Compact(), last.Compact(), strings.ToUpper(variable))
	return filepath.Join(HistoryDir(outRoot, caseName, domain), name), nil
}

// YearMonth is a model calendar month. Years are model years (0001 onward).
type YearMonth struct {
	Year  int
	Month int
}

// ParseYearMonth parses "YYYY-MM".
func ParseYearMonth(s string) (YearMonth, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 2 {
		return YearMonth{}, fmt.Errorf("invalid month %q (expected YYYY-MM)", s)
	}
	y, err := strconv.Atoi(parts[0])
	if err != nil {
		return YearMonth{}, fmt.Errorf("invalid year in %q: %w", s, err)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return YearMonth{}, fmt.Errorf("invalid month in %q: %w", s, err)
	}
	ym := YearMonth{Year: y, Month: m}
	if err := ym.Validate(); err != nil {
		return YearMonth{}, err
	}
	return ym, nil
}

// Validate checks the month lies in 1..12 and the year is non-negative.
func (ym YearMonth) Validate() error {
	if ym.Year < 0 || ym.Year > 9999 {
		return fmt.Errorf("year %d out of range", ym.Year)
	}
	if ym.Month < 1 || ym.Month > 12 {
		return fmt.Errorf("month %d out of range", ym.Month)
	}
	return nil
}

// String formats as zero-padded YYYY-MM.
func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, ym.Month)
}

// Compact formats as zero-padded YYYYMM.
func (ym YearMonth) Compact() string {
	return fmt.Sprintf("%04d%02d", ym.Year, ym.Month)
}

// Index is the number of months since year 0, month 1.
func (ym YearMonth) Index() int {
	return ym.Year*12 + ym.Month - 1
}

// Next returns the following month.
func (ym YearMonth) Next() YearMonth {
	if ym.Month == 12 {
		return YearMonth{Year: ym.Year + 1, Month: 1}
	}
	return YearMonth{Year: ym.Year, Month: ym.Month + 1}
}

// Before reports whether ym is strictly earlier than other.
func (ym YearMonth) Before(other YearMonth) bool {
	return ym.Index() < other.Index()
}

// After reports whether ym is strictly later than other.
func (ym YearMonth) After(other YearMonth) bool {
	return ym.Index() > other.Index()
}

// Months lists every month from start to end inclusive.
func Months(start, end YearMonth) ([]YearMonth, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("end month %s is before start month %s", end, start)
	}
	months := make([]YearMonth, 0, end.Index()-start.Index()+1)
	for m := start; !m.After(end); m = m.Next() {
		months = append(months, m)
	}
	return months, nil
}

// ClampControlCase limits end to the last archived month of the
// standard-parameter control case (empty suffix).
func ClampControlCase(suffix string, end YearMonth) YearMonth {
	if suffix == "" && end.Year > ControlCaseLastMonth.Year {
		return ControlCaseLastMonth
	}
	return end
}
