// Package history reads CESM monthly history files as one time series.
package history

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"path/filepath"
	"sort"
	"sync"
	"syscall"

	"github.com/fhs/go-netcdf/netcdf"

	"go.ngs.io/flat10/internal/adapter/store"
)

const timeDimName = "time"

var (
	// ErrNoFiles is returned when a history glob matches nothing.
	ErrNoFiles = fmt.Errorf("no history files found: %w", fs.ErrNotExist)

	// ErrLazyInfeasible is returned when the files cannot all be held open
	// at once. Callers fall back to LoadEager.
	ErrLazyInfeasible = errors.New("lazy multi-file open infeasible")
)

// Glob expands a history file pattern into a sorted file list.
func Glob(pattern string) ([]string, error) {
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to expand %s: %w", pattern, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoFiles, pattern)
	}
	sort.Strings(paths)
	return paths, nil
}

// Archive keeps every history file open and reads one time step at a time.
type Archive struct {
	members   []*member
	times     []float64
	timeAttrs store.Attributes
	mu        sync.Mutex // NetCDF-C handles are not safe for concurrent use.
}

type member struct {
	path  string
	ds    netcdf.Dataset
	start int // Offset of the first step of this file on the global time axis.
	n     int
}

// Options tunes Open.
type Options struct {
	// MaxOpenFiles caps the number of simultaneously open files.
	// Zero means no limit.
	MaxOpenFiles int
}

// Open opens every path, in order, as one archive concatenated along time.
func Open(paths []string, opts Options) (*Archive, error) {
	if len(paths) == 0 {
		return nil, ErrNoFiles
	}
	if opts.MaxOpenFiles > 0 && len(paths) > opts.MaxOpenFiles {
		return nil, fmt.Errorf("%w: %d files exceeds the limit of %d", ErrLazyInfeasible, len(paths), opts.MaxOpenFiles)
	}

	a := &Archive{}
	for _, path := range paths {
		//nolint:gosec // G304: paths come from the configured archive root.
		ds, err := netcdf.OpenFile(path, netcdf.NOWRITE)
		if err != nil {
			_ = a.Close()
			if isTooManyOpenFiles(err) {
				return nil, fmt.Errorf("%w: %v", ErrLazyInfeasible, err)
			}
			return nil, fmt.Errorf("failed to open history file %s: %w", path, err)
		}
		m := &member{path: path, ds: ds, start: len(a.times)}
		a.members = append(a.members, m)

		times, attrs, err := readTime(ds)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("failed to read time from %s: %w", path, err)
		}
		m.n = len(times)
		a.times = append(a.times, times...)
		if a.timeAttrs == nil {
			a.timeAttrs = attrs
		}
	}
	return a, nil
}

func isTooManyOpenFiles(err error) bool {
	if errors.Is(err, syscall.EMFILE) || errors.Is(err, syscall.ENFILE) {
		return true
	}
	var ncErr netcdf.Error
	if errors.As(err, &ncErr) {
		return int(ncErr) == int(syscall.EMFILE) || int(ncErr) == int(syscall.ENFILE)
	}
	return false
}

func readTime(ds netcdf.Dataset) ([]float64, store.Attributes, error) {
	v, err := ds.Var(timeDimName)
	if err != nil {
		return nil, nil, fmt.Errorf("time variable not found: %w", err)
	}
	times, err := readFloat64Var(v)
	if err != nil {
		return nil, nil, err
	}
	attrs, err := readAttrs(v)
	if err != nil {
		return nil, nil, err
	}
	return times, attrs, nil
}

// NumTimes implements store.Source.
func (a *Archive) NumTimes() int { return len(a.times) }

// Times implements store.Source.
func (a *Archive) Times() []float64 {
	out := make([]float64, len(a.times))
	copy(out, a.times)
	return out
}

// TimeAttrs implements store.Source.
func (a *Archive) TimeAttrs() store.Attributes { return a.timeAttrs }

// Dim implements store.Source.
func (a *Archive) Dim(name string) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	d, err := a.members[0].ds.Dim(name)
	if err != nil {
		return 0, fmt.Errorf("dimension %s not found: %w", name, err)
	}
	n, err := d.Len()
	if err != nil {
		return 0, fmt.Errorf("failed to get length of %s: %w", name, err)
	}
	return int(n), nil
}

// HasVar implements store.Source.
func (a *Archive) HasVar(name string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, err := a.members[0].ds.Var(name)
	return err == nil
}

// Attrs implements store.Source.
func (a *Archive) Attrs(name string) (store.Attributes, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	v, err := a.members[0].ds.Var(name)
	if err != nil {
		return nil, fmt.Errorf("variable %s not found: %w", name, err)
	}
	return readAttrs(v)
}

// ReadStep implements store.Source.
func (a *Archive) ReadStep(name string, t int) ([]float64, error) {
	if t < 0 || t >= len(a.times) {
		return nil, fmt.Errorf("time step %d out of range [0, %d)", t, len(a.times))
	}
	i := sort.Search(len(a.members), func(i int) bool {
		return a.members[i].start+a.members[i].n > t
	})
	m := a.members[i]

	a.mu.Lock()
	defer a.mu.Unlock()
	v, err := m.ds.Var(name)
	if err != nil {
		return nil, fmt.Errorf("variable %s not found in %s: %w", name, m.path, err)
	}
	data, err := readStep(v, t-m.start)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s step %d from %s: %w", name, t, m.path, err)
	}
	return data, nil
}

// ReadStatic implements store.Source.
func (a *Archive) ReadStatic(name string) ([]float64, error) {
	return a.ReadStep(name, 0)
}

// Close implements store.Source.
func (a *Archive) Close() error {
	var firstErr error
	for _, m := range a.members {
		if err := m.ds.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close %s: %w", m.path, err)
		}
	}
	a.members = nil
	return firstErr
}

// varShape returns dimension names and lengths of v.
func varShape(v netcdf.Var) ([]string, []uint64, error) {
	dims, err := v.Dims()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get dimensions: %w", err)
	}
	names := make([]string, len(dims))
	lens := make([]uint64, len(dims))
	for i, d := range dims {
		if names[i], err = d.Name(); err != nil {
			return nil, nil, fmt.Errorf("failed to get dimension name: %w", err)
		}
		if lens[i], err = d.Len(); err != nil {
			return nil, nil, fmt.Errorf("failed to get dimension length: %w", err)
		}
	}
	return names, lens, nil
}

// readStep reads one local time step of v, or all of v when it has no
// leading time dimension.
func readStep(v netcdf.Var, local int) ([]float64, error) {
	names, lens, err := varShape(v)
	if err != nil {
		return nil, err
	}

	start := make([]uint64, len(lens))
	count := make([]uint64, len(lens))
	copy(count, lens)
	if len(names) > 0 && names[0] == timeDimName {
		if uint64(local) >= lens[0] {
			return nil, fmt.Errorf("local step %d beyond time length %d", local, lens[0])
		}
		start[0] = uint64(local)
		count[0] = 1
	}

	data, err := readSlice(v, start, count)
	if err != nil {
		return nil, err
	}
	maskFill(v, data)
	return data, nil
}

// readSlice reads a hyperslab of v as float64.
func readSlice(v netcdf.Var, start, count []uint64) ([]float64, error) {
	total := uint64(1)
	for _, c := range count {
		total *= c
	}
	if total > uint64(math.MaxInt32)*4 {
		return nil, fmt.Errorf("%w: hyperslab of %d elements", ErrLazyInfeasible, total)
	}

	t, err := v.Type()
	if err != nil {
		return nil, fmt.Errorf("failed to get var type: %w", err)
	}

	// Scalars have no dimensions; read the single value directly.
	if len(count) == 0 {
		return readFloat64Var(v)
	}

	out := make([]float64, total)
	if total == 0 {
		return out, nil
	}
	switch t {
	case netcdf.DOUBLE:
		if err := v.ReadFloat64Slice(out, start, count); err != nil {
			return nil, fmt.Errorf("failed to read float64 slice: %w", err)
		}
	case netcdf.FLOAT:
		tmp := make([]float32, total)
		if err := v.ReadFloat32Slice(tmp, start, count); err != nil {
			return nil, fmt.Errorf("failed to read float32 slice: %w", err)
		}
		for i, val := range tmp {
			out[i] = float64(val)
		}
	case netcdf.INT:
		tmp := make([]int32, total)
		if err := v.ReadInt32Slice(tmp, start, count); err != nil {
			return nil, fmt.Errorf("failed to read int32 slice: %w", err)
		}
		for i, val := range tmp {
			out[i] = float64(val)
		}
	case netcdf.SHORT:
		tmp := make([]int16, total)
		if err := v.ReadInt16Slice(tmp, start, count); err != nil {
			return nil, fmt.Errorf("failed to read int16 slice: %w", err)
		}
		for i, val := range tmp {
			out[i] = float64(val)
		}
	default:
		return nil, fmt.Errorf("unsupported var type: %v", t)
	}
	return out, nil
}

// readFloat64Var reads a whole numeric variable as float64.
func readFloat64Var(v netcdf.Var) ([]float64, error) {
	lens, err := v.LenDims()
	if err != nil {
		return nil, fmt.Errorf("failed to get dimensions: %w", err)
	}
	length := uint64(1)
	for _, n := range lens {
		length *= n
	}

	if length == 0 {
		return []float64{}, nil
	}
	t, err := v.Type()
	if err != nil {
		return nil, fmt.Errorf("failed to get var type: %w", err)
	}
	switch t {
	case netcdf.DOUBLE:
		data := make([]float64, length)
		if err := v.ReadFloat64s(data); err != nil {
			return nil, err
		}
		return data, nil
	case netcdf.FLOAT:
		tmp := make([]float32, length)
		if err := v.ReadFloat32s(tmp); err != nil {
			return nil, err
		}
		out := make([]float64, length)
		for i, val := range tmp {
			out[i] = float64(val)
		}
		return out, nil
	case netcdf.INT:
		tmp := make([]int32, length)
		if err := v.ReadInt32s(tmp); err != nil {
			return nil, err
		}
		out := make([]float64, length)
		for i, val := range tmp {
			out[i] = float64(val)
		}
		return out, nil
	case netcdf.SHORT:
		tmp := make([]int16, length)
		if err := v.ReadInt16s(tmp); err != nil {
			return nil, err
		}
		out := make([]float64, length)
		for i, val := range tmp {
			out[i] = float64(val)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported var type: %v", t)
	}
}

// maskFill replaces _FillValue and missing_value entries with NaN.
func maskFill(v netcdf.Var, data []float64) {
	attrs, err := readAttrs(v)
	if err != nil {
		return
	}
	for _, name := range []string{"_FillValue", "missing_value"} {
		fv, err := attrs.Float64(name)
		if err != nil || math.IsNaN(fv) {
			continue
		}
		for i := range data {
			if data[i] == fv {
				data[i] = math.NaN()
			}
		}
	}
}

// GlobalAttrs reads the named global attributes of the first file.
// Names the file does not carry are left out.
func (a *Archive) GlobalAttrs(names ...string) (store.Attributes, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.members) == 0 {
		return nil, ErrNoFiles
	}
	var attrs store.Attributes
	for _, name := range names {
		attr := a.members[0].ds.Attr(name)
		if _, err := attr.Len(); err != nil {
			continue
		}
		value, ok, err := readAttrValue(attr)
		if err != nil {
			return nil, fmt.Errorf("failed to read global attribute %s: %w", name, err)
		}
		if ok {
			attrs = append(attrs, store.Attribute{Name: name, Value: value})
		}
	}
	return attrs, nil
}

// readAttrs reads every attribute of v, keeping its NetCDF type.
func readAttrs(v netcdf.Var) (store.Attributes, error) {
	n, err := v.NAttrs()
	if err != nil {
		return nil, fmt.Errorf("failed to count attributes: %w", err)
	}
	attrs := make(store.Attributes, 0, n)
	for i := 0; i < n; i++ {
		a, err := v.AttrN(i)
		if err != nil {
			return nil, fmt.Errorf("failed to get attribute %d: %w", i, err)
		}
		value, ok, err := readAttrValue(a)
		if err != nil {
			return nil, fmt.Errorf("failed to read attribute %s: %w", a.Name(), err)
		}
		if ok {
			attrs = append(attrs, store.Attribute{Name: a.Name(), Value: value})
		}
	}
	return attrs, nil
}

// readAttrValue decodes an attribute. Types outside the CESM set are
// skipped (ok is false).
func readAttrValue(a netcdf.Attr) (interface{}, bool, error) {
	t, err := a.Type()
	if err != nil {
		return nil, false, err
	}
	n, err := a.Len()
	if err != nil {
		return nil, false, err
	}
	if n == 0 {
		return nil, false, nil
	}
	switch t {
	case netcdf.CHAR:
		buf := make([]byte, n)
		if err := a.ReadBytes(buf); err != nil {
			return nil, false, err
		}
		return trimNul(buf), true, nil
	case netcdf.DOUBLE:
		buf := make([]float64, n)
		if err := a.ReadFloat64s(buf); err != nil {
			return nil, false, err
		}
		return buf, true, nil
	case netcdf.FLOAT:
		buf := make([]float32, n)
		if err := a.ReadFloat32s(buf); err != nil {
			return nil, false, err
		}
		return buf, true, nil
	case netcdf.INT:
		buf := make([]int32, n)
		if err := a.ReadInt32s(buf); err != nil {
			return nil, false, err
		}
		return buf, true, nil
	case netcdf.SHORT:
		buf := make([]int16, n)
		if err := a.ReadInt16s(buf); err != nil {
			return nil, false, err
		}
		return buf, true, nil
	default:
		return nil, false, nil
	}
}

func trimNul(b []byte) string {
	for len(b) > 0 && b[len(b)-1] == 0 {
		b = b[:len(b)-1]
	}
	return string(b)
}
