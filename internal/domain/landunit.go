package domain

import (
	"fmt"
	"sort"
	"strings"
)

// LandunitType is the 0-based CLM landunit type (ltype - 1).
type LandunitType int

// CLM landunit types, in history-file order.
const (
	VegetatedOrBareSoil LandunitType = iota
	Crop
	Unused
	LandIce
	DeepLake
	Wetland
	UrbanTBD
	UrbanHD
	UrbanMD
)

// NumLandunitTypes is the length of the typlunit axis.
const NumLandunitTypes = 9

var landunitTypeNames = [NumLandunitTypes]string{
	"vegetated_or_bare_soil",
	"crop",
	"UNUSED",
	"landice_multiple_elevation_classes",
	"deep_lake",
	"wetland",
	"urban_tbd",
	"urban_hd",
	"urban_md",
}

// String returns the name used for the typlunit_name coordinate.
func (t LandunitType) String() string {
	if !t.Valid() {
		return fmt.Sprintf("LandunitType(%d)", int(t))
	}
	return landunitTypeNames[t]
}

// Valid reports whether t lies on the typlunit axis.
func (t LandunitType) Valid() bool {
	return t >= 0 && t < NumLandunitTypes
}

// LandunitTypeNames returns the typlunit_name coordinate values.
func LandunitTypeNames() []string {
	names := make([]string, NumLandunitTypes)
	copy(names, landunitTypeNames[:])
	return names
}

// ParseLandunitType accepts either a 0-based index or a type name.
func ParseLandunitType(s string) (LandunitType, error) {
	s = strings.TrimSpace(s)
	for i, name := range landunitTypeNames {
		if strings.EqualFold(s, name) {
			return LandunitType(i), nil
		}
	}
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err == nil && fmt.Sprint(n) == s {
		t := LandunitType(n)
		if !t.Valid() {
			return 0, fmt.Errorf("landunit type %d out of range [0, %d)", n, NumLandunitTypes)
		}
		return t, nil
	}
	return 0, fmt.Errorf("unknown landunit type %q", s)
}

// LandunitTypeSet is the set of landunit types kept by the rasterizer.
type LandunitTypeSet [NumLandunitTypes]bool

// DefaultRetainedTypes keeps only vegetated/bare-soil landunits.
func DefaultRetainedTypes() LandunitTypeSet {
	var s LandunitTypeSet
	s[VegetatedOrBareSoil] = true
	return s
}

// NewLandunitTypeSet builds a set from 0-based type indices.
func NewLandunitTypeSet(types ...int) (LandunitTypeSet, error) {
	var s LandunitTypeSet
	for _, n := range types {
		t := LandunitType(n)
		if !t.Valid() {
			return s, fmt.Errorf("landunit type %d out of range [0, %d)", n, NumLandunitTypes)
		}
		s[t] = true
	}
	return s, nil
}

// Has reports whether t is retained.
func (s LandunitTypeSet) Has(t LandunitType) bool {
	return t.Valid() && s[t]
}

// Empty reports whether no type is retained.
func (s LandunitTypeSet) Empty() bool {
	for _, ok := range s {
		if ok {
			return false
		}
	}
	return true
}

// Types returns the retained types in ascending order.
func (s LandunitTypeSet) Types() []LandunitType {
	var out []LandunitType
	for i, ok := range s {
		if ok {
			out = append(out, LandunitType(i))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Ints returns the retained types as 0-based indices.
func (s LandunitTypeSet) Ints() []int {
	types := s.Types()
	out := make([]int, len(types))
	for i, t := range types {
		out[i] = int(t)
	}
	return out
}
