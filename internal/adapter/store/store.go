package store

import (
	"fmt"
	"sort"
)

// Source is a time-concatenated view over one or more history files.
// Variables with a leading "time" dimension are read one step at a time;
// variables without it are static.
type Source interface {
	// NumTimes is the total length of the concatenated time axis.
	NumTimes() int
	// Times returns the raw time coordinate values.
	Times() []float64
	// TimeAttrs returns the attributes of the time coordinate (units, calendar).
	TimeAttrs() Attributes
	// Dim returns the length of a non-time dimension.
	Dim(name string) (int, error)
	// HasVar reports whether the variable exists.
	HasVar(name string) bool
	// Attrs returns the attributes of a variable.
	Attrs(name string) (Attributes, error)
	// ReadStep reads the non-time part of a variable at time step t as float64.
	// Static variables return the same data for every t.
	ReadStep(name string, t int) ([]float64, error)
	// ReadStatic reads a whole variable that has no time dimension, or the
	// first time step of one that does.
	ReadStatic(name string) ([]float64, error)
	// Close releases underlying file handles.
	Close() error
}

// Attribute is one NetCDF attribute. Value holds string, []float64,
// []float32, []int32 or []int16.
type Attribute struct {
	Name  string
	Value interface{}
}

// Attributes is an ordered attribute list.
type Attributes []Attribute

// Get returns the named attribute value.
func (a Attributes) Get(name string) (interface{}, bool) {
	for _, attr := range a {
		if attr.Name == name {
			return attr.Value, true
		}
	}
	return nil, false
}

// String returns a text attribute, or "" when missing or not text.
func (a Attributes) String(name string) string {
	v, ok := a.Get(name)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// Without returns a copy of a without the named attributes.
func (a Attributes) Without(names ...string) Attributes {
	skip := make(map[string]bool, len(names))
	for _, n := range names {
		skip[n] = true
	}
	out := make(Attributes, 0, len(a))
	for _, attr := range a {
		if !skip[attr.Name] {
			out = append(out, attr)
		}
	}
	return out
}

// Names returns the attribute names, sorted.
func (a Attributes) Names() []string {
	names := make([]string, len(a))
	for i, attr := range a {
		names[i] = attr.Name
	}
	sort.Strings(names)
	return names
}

// Float64 returns the first element of a numeric attribute as float64.
func (a Attributes) Float64(name string) (float64, error) {
	v, ok := a.Get(name)
	if !ok {
		return 0, fmt.Errorf("attribute %s not found", name)
	}
	switch vals := v.(type) {
	case []float64:
		if len(vals) > 0 {
			return vals[0], nil
		}
	case []float32:
		if len(vals) > 0 {
			return float64(vals[0]), nil
		}
	case []int32:
		if len(vals) > 0 {
			return float64(vals[0]), nil
		}
	case []int16:
		if len(vals) > 0 {
			return float64(vals[0]), nil
		}
	}
	return 0, fmt.Errorf("attribute %s is not numeric", name)
}
