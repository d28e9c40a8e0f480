package history

import (
	"fmt"

	"go.ngs.io/flat10/internal/adapter/store"
)

// Memory is a fully loaded archive. It is what LoadEager returns when the
// files cannot all be held open.
type Memory struct {
	times     []float64
	timeAttrs store.Attributes
	dims      map[string]int
	vars      map[string]*memVar
}

type memVar struct {
	attrs    store.Attributes
	timed    bool
	stepSize int
	data     []float64
}

// LoadEager opens each path in turn, reads the named variables completely
// and concatenates them along time. Only one file is open at a time.
func LoadEager(paths []string, names []string) (*Memory, error) {
	if len(paths) == 0 {
		return nil, ErrNoFiles
	}
	mem := &Memory{
		dims: make(map[string]int),
		vars: make(map[string]*memVar, len(names)),
	}
	for i, path := range paths {
		if err := mem.load(path, names, i == 0); err != nil {
			return nil, err
		}
	}
	return mem, nil
}

func (m *Memory) load(path string, names []string, first bool) error {
	a, err := Open([]string{path}, Options{})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if first {
		m.timeAttrs = a.TimeAttrs()
	}
	m.times = append(m.times, a.times...)

	ds := a.members[0].ds
	for _, name := range names {
		v, err := ds.Var(name)
		if err != nil {
			return fmt.Errorf("variable %s not found in %s: %w", name, path, err)
		}
		dimNames, lens, err := varShape(v)
		if err != nil {
			return fmt.Errorf("failed to read shape of %s in %s: %w", name, path, err)
		}
		timed := len(dimNames) > 0 && dimNames[0] == timeDimName
		stepSize := 1
		for i, dn := range dimNames {
			if i == 0 && timed {
				continue
			}
			if prev, ok := m.dims[dn]; ok && prev != int(lens[i]) {
				return fmt.Errorf("dimension %s is %d in %s but %d earlier", dn, lens[i], path, prev)
			}
			m.dims[dn] = int(lens[i])
			stepSize *= int(lens[i])
		}

		mv, seen := m.vars[name]
		if !seen {
			attrs, err := readAttrs(v)
			if err != nil {
				return fmt.Errorf("failed to read attributes of %s: %w", name, err)
			}
			mv = &memVar{attrs: attrs, timed: timed, stepSize: stepSize}
			m.vars[name] = mv
		}
		if seen && !timed {
			continue
		}

		count := make([]uint64, len(lens))
		copy(count, lens)
		data, err := readSlice(v, make([]uint64, len(lens)), count)
		if err != nil {
			return fmt.Errorf("failed to read %s from %s: %w", name, path, err)
		}
		maskFill(v, data)
		mv.data = append(mv.data, data...)
	}
	return nil
}

// NumTimes implements store.Source.
func (m *Memory) NumTimes() int { return len(m.times) }

// Times implements store.Source.
func (m *Memory) Times() []float64 {
	out := make([]float64, len(m.times))
	copy(out, m.times)
	return out
}

// TimeAttrs implements store.Source.
func (m *Memory) TimeAttrs() store.Attributes { return m.timeAttrs }

// Dim implements store.Source.
func (m *Memory) Dim(name string) (int, error) {
	n, ok := m.dims[name]
	if !ok {
		return 0, fmt.Errorf("dimension %s not loaded", name)
	}
	return n, nil
}

// HasVar implements store.Source.
func (m *Memory) HasVar(name string) bool {
	_, ok := m.vars[name]
	return ok
}

// Attrs implements store.Source.
func (m *Memory) Attrs(name string) (store.Attributes, error) {
	v, ok := m.vars[name]
	if !ok {
		return nil, fmt.Errorf("variable %s not loaded", name)
	}
	return v.attrs, nil
}

// ReadStep implements store.Source.
func (m *Memory) ReadStep(name string, t int) ([]float64, error) {
	v, ok := m.vars[name]
	if !ok {
		return nil, fmt.Errorf("variable %s not loaded", name)
	}
	if t < 0 || t >= len(m.times) {
		return nil, fmt.Errorf("time step %d out of range [0, %d)", t, len(m.times))
	}
	out := make([]float64, v.stepSize)
	if !v.timed {
		copy(out, v.data)
		return out, nil
	}
	copy(out, v.data[t*v.stepSize:(t+1)*v.stepSize])
	return out, nil
}

// ReadStatic implements store.Source.
func (m *Memory) ReadStatic(name string) ([]float64, error) {
	return m.ReadStep(name, 0)
}

// Close implements store.Source.
func (m *Memory) Close() error { return nil }
