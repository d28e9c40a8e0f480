// Package config defines the flat10 configuration options and loads them
// from flags, environment variables (FLAT10_*) and an optional config file.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"go.ngs.io/flat10/internal/domain"
)

// EnvPrefix is the prefix of configuration environment variables.
const EnvPrefix = "FLAT10"

// Config is the effective flat10 configuration.
type Config struct {
	Variable      string            `yaml:"variable"`
	Domain        string            `yaml:"domain"`
	Experiment    string            `yaml:"experiment"`
	WeightsExp    string            `yaml:"weights-experiment"`
	CaseSuffix    string            `yaml:"case"`
	HistoryStream string            `yaml:"stream"`
	SeriesStream  string            `yaml:"series-stream"`
	ArchiveRoot   string            `yaml:"archive-root"`
	Archives      map[string]string `yaml:"archives"`
	OutputRoot    string            `yaml:"output-root"`
	RetainedTypes []int             `yaml:"retain"`
	Collision     string            `yaml:"collision"`
	Workers       int               `yaml:"workers"`
	MaxOpenFiles  int               `yaml:"max-open-files"`
	FillValue     float64           `yaml:"fill"`
	Verify        bool              `yaml:"verify"`
	Start         string            `yaml:"start"`
	End           string            `yaml:"end"`
	MultiFile     bool              `yaml:"multi-file"`
	Reduce        string            `yaml:"reduce"`
	LogLevel      string            `yaml:"log-level"`
	LogFormat     string            `yaml:"log-format"`
	Addr          string            `yaml:"addr"`
	CORSOrigins   []string          `yaml:"cors-origins"`
}

// Option is one configuration option.
type Option struct {
	Name, Usage, Shorthand string
	Default                interface{}
}

// Options are the configuration options available to flat10.
var Options = []Option{
	{Name: "config", Usage: "config specifies the configuration file location.", Default: ""},
	{Name: "variable", Shorthand: "v", Usage: "variable is the history variable to process.", Default: "TOTSOMC"},
	{Name: "domain", Usage: "domain is the model domain: lnd or atm.", Default: "lnd"},
	{Name: "experiment", Usage: "experiment is the FLAT10 experiment name in the case name.", Default: "ctrl-esm"},
	{Name: "weights-experiment", Usage: "weights-experiment is the experiment whose control case provides area and landfrac.", Default: "ctrl-esm"},
	{Name: "case", Usage: `case is the case suffix (for example leafcn_high).
              An empty suffix selects the standard-parameter control case.`, Default: ""},
	{Name: "stream", Usage: "stream is the landunit-level history stream regridded by regrid.", Default: "h4"},
	{Name: "series-stream", Usage: "series-stream is the gridded history stream reduced by series and serve.", Default: "h0"},
	{Name: "archive-root", Usage: "archive-root is the archive holding cases without an entry in archives.", Default: ""},
	{Name: "archives", Usage: `archives maps case suffixes to archive roots, as a JSON
              object when given on the command line.`, Default: map[string]string{}},
	{Name: "output-root", Shorthand: "o", Usage: "output-root is where regridded files are written.", Default: "."},
	{Name: "retain", Usage: `retain lists the landunit types kept when regridding, by 0-based
              index or name (for example vegetated_or_bare_soil,crop).`, Default: []string{"0"}},
	{Name: "collision", Usage: "collision is the policy when two landunits map to one cell: error or last-write-wins.", Default: "error"},
	{Name: "workers", Usage: "workers is the number of time steps regridded concurrently.", Default: 1},
	{Name: "max-open-files", Usage: "max-open-files caps simultaneously open history files; 0 means no limit.", Default: 0},
	{Name: "fill", Usage: "fill is the value of grid cells without a retained landunit.", Default: math.NaN()},
	{Name: "verify", Usage: "verify re-reads the regridded file after writing it.", Default: false},
	{Name: "start", Usage: "start is the first month (YYYY-MM).", Default: "0001-01"},
	{Name: "end", Usage: "end is the last month (YYYY-MM).", Default: "0003-12"},
	{Name: "multi-file", Usage: "multi-file opens the whole history stream as one dataset instead of month by month.", Default: false},
	{Name: "reduce", Usage: "reduce is the area reduction: average or integrate.", Default: "average"},
	{Name: "log-level", Usage: "log-level is one of debug, info, warn, error.", Default: "info"},
	{Name: "log-format", Usage: "log-format is text or json.", Default: "text"},
	{Name: "addr", Usage: "addr is the HTTP listen address.", Default: ":8080"},
	{Name: "cors-origins", Usage: "cors-origins lists origins allowed by the HTTP API.", Default: []string{"*"}},
}

// New returns a viper instance reading FLAT10_* environment variables.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// lookup returns the option with the given name.
func lookup(name string) (Option, bool) {
	for _, o := range Options {
		if o.Name == name {
			return o, true
		}
	}
	return Option{}, false
}

// AddFlags defines the named options on set and binds them to v.
func AddFlags(v *viper.Viper, set *pflag.FlagSet, names ...string) {
	for _, name := range names {
		Bind(v, name, set)
	}
}

// Bind defines option name on the first flag set, shares the same flag
// with the remaining sets and binds it to v.
func Bind(v *viper.Viper, name string, sets ...*pflag.FlagSet) {
	o, ok := lookup(name)
	if !ok || len(sets) == 0 {
		panic(fmt.Sprintf("config: cannot bind option %q", name))
	}
	set := sets[0]
	if set.Lookup(o.Name) == nil {
		switch d := o.Default.(type) {
		case string:
			set.StringP(o.Name, o.Shorthand, d, o.Usage)
		case []string:
			set.StringSliceP(o.Name, o.Shorthand, d, o.Usage)
		case bool:
			set.BoolP(o.Name, o.Shorthand, d, o.Usage)
		case int:
			set.IntP(o.Name, o.Shorthand, d, o.Usage)
		case []int:
			set.IntSliceP(o.Name, o.Shorthand, d, o.Usage)
		case float64:
			set.Float64P(o.Name, o.Shorthand, d, o.Usage)
		case map[string]string:
			b, err := json.Marshal(d)
			if err != nil {
				panic(err)
			}
			set.StringP(o.Name, o.Shorthand, string(b), o.Usage)
		default:
			panic("invalid argument type")
		}
	}
	flag := set.Lookup(o.Name)
	for _, other := range sets[1:] {
		if other.Lookup(o.Name) == nil {
			other.AddFlag(flag)
		}
	}
	if err := v.BindPFlag(o.Name, flag); err != nil {
		panic(err)
	}
}

// SetDefaults registers every option default on v, for use without flags.
func SetDefaults(v *viper.Viper) {
	for _, o := range Options {
		v.SetDefault(o.Name, o.Default)
	}
}

// ReadFile reads the file named by the "config" option, if any.
func ReadFile(v *viper.Viper) error {
	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read configuration file: %w", err)
		}
	}
	return nil
}

// Load builds a Config from v and validates it. Paths may contain
// environment variables.
func Load(v *viper.Viper) (*Config, error) {
	retained, err := landunitTypes(v.Get("retain"))
	if err != nil {
		return nil, fmt.Errorf("invalid retain: %w", err)
	}
	archives, err := stringMapString(v.Get("archives"))
	if err != nil {
		return nil, fmt.Errorf("invalid archives: %w", err)
	}
	fill, err := cast.ToFloat64E(v.Get("fill"))
	if err != nil {
		return nil, fmt.Errorf("invalid fill: %w", err)
	}
	for k, root := range archives {
		archives[k] = os.ExpandEnv(root)
	}

	cfg := &Config{
		Variable:      v.GetString("variable"),
		Domain:        v.GetString("domain"),
		Experiment:    v.GetString("experiment"),
		WeightsExp:    v.GetString("weights-experiment"),
		CaseSuffix:    v.GetString("case"),
		HistoryStream: v.GetString("stream"),
		SeriesStream:  v.GetString("series-stream"),
		ArchiveRoot:   os.ExpandEnv(v.GetString("archive-root")),
		Archives:      archives,
		OutputRoot:    os.ExpandEnv(v.GetString("output-root")),
		RetainedTypes: retained,
		Collision:     v.GetString("collision"),
		Workers:       v.GetInt("workers"),
		MaxOpenFiles:  v.GetInt("max-open-files"),
		FillValue:     fill,
		Verify:        v.GetBool("verify"),
		Start:         v.GetString("start"),
		End:           v.GetString("end"),
		MultiFile:     v.GetBool("multi-file"),
		Reduce:        v.GetString("reduce"),
		LogLevel:      v.GetString("log-level"),
		LogFormat:     v.GetString("log-format"),
		Addr:          v.GetString("addr"),
		CORSOrigins:   cast.ToStringSlice(list(v.Get("cors-origins"))),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// list splits comma separated values, as given in the environment or
// printed by a slice flag; other values are returned unchanged.
func list(i interface{}) interface{} {
	s, ok := i.(string)
	if !ok {
		return i
	}
	var out []string
	for _, f := range strings.Split(strings.Trim(s, "[]"), ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// landunitTypes parses landunit types given by index or name.
func landunitTypes(i interface{}) ([]int, error) {
	names, err := cast.ToStringSliceE(list(i))
	if err != nil {
		return nil, err
	}
	out := make([]int, len(names))
	for k, name := range names {
		t, err := domain.ParseLandunitType(name)
		if err != nil {
			return nil, err
		}
		out[k] = int(t)
	}
	return out, nil
}

// stringMapString accepts a map from a config file or a JSON object
// given on the command line or in the environment.
func stringMapString(i interface{}) (map[string]string, error) {
	switch m := i.(type) {
	case nil:
		return map[string]string{}, nil
	case string:
		out := make(map[string]string)
		if strings.TrimSpace(m) == "" {
			return out, nil
		}
		d := json.NewDecoder(bytes.NewBufferString(m))
		if err := d.Decode(&out); err != nil {
			return nil, err
		}
		return out, nil
	default:
		return cast.ToStringMapStringE(i)
	}
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	if c.Variable == "" {
		return fmt.Errorf("variable must be set")
	}
	if c.WeightsExp == "" {
		return fmt.Errorf("weights-experiment must be set")
	}
	if _, err := domain.Component(c.Domain); err != nil {
		return err
	}
	if _, err := domain.NewLandunitTypeSet(c.RetainedTypes...); err != nil {
		return fmt.Errorf("invalid retain: %w", err)
	}
	if _, err := domain.ParseCollisionPolicy(c.Collision); err != nil {
		return err
	}
	if _, err := domain.ParseReduction(c.Reduce); err != nil {
		return err
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.MaxOpenFiles < 0 {
		return fmt.Errorf("max-open-files must not be negative")
	}
	start, err := domain.ParseYearMonth(c.Start)
	if err != nil {
		return fmt.Errorf("invalid start: %w", err)
	}
	end, err := domain.ParseYearMonth(c.End)
	if err != nil {
		return fmt.Errorf("invalid end: %w", err)
	}
	if end.Before(start) {
		return fmt.Errorf("end %s is before start %s", end, start)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log-format must be text or json, got %q", c.LogFormat)
	}
	return nil
}

// Months returns the parsed start and end months.
func (c *Config) Months() (start, end domain.YearMonth, err error) {
	if start, err = domain.ParseYearMonth(c.Start); err != nil {
		return
	}
	end, err = domain.ParseYearMonth(c.End)
	return
}

// Retained returns the retained landunit type set.
func (c *Config) Retained() (domain.LandunitTypeSet, error) {
	return domain.NewLandunitTypeSet(c.RetainedTypes...)
}

// CollisionPolicy returns the parsed collision policy.
func (c *Config) CollisionPolicy() (domain.CollisionPolicy, error) {
	return domain.ParseCollisionPolicy(c.Collision)
}

// YAML renders the configuration.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
