package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Calendar is a CF calendar attribute value.
type Calendar string

// Supported CF calendars.
const (
	CalendarNoLeap    Calendar = "noleap"
	Calendar365Day    Calendar = "365_day"
	Calendar360Day    Calendar = "360_day"
	CalendarStandard  Calendar = "standard"
	CalendarGregorian Calendar = "gregorian"
	CalendarProleptic Calendar = "proleptic_gregorian"
)

var noLeapMonthDays = [12]int{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

// CFTime is a decoded model timestamp. Model years start at 0001, which
// time.Time cannot represent faithfully for non-standard calendars.
type CFTime struct {
	Year, Month, Day     int
	Hour, Minute, Second int
}

// YearMonth returns the calendar month of t.
func (t CFTime) YearMonth() YearMonth {
	return YearMonth{Year: t.Year, Month: t.Month}
}

// String formats as YYYY-MM-DD hh:mm:ss.
func (t CFTime) String() string {
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d", t.Year, t.Month, t.Day, t.Hour, t.Minute, t.Second)
}

// Date formats as YYYY-MM-DD.
func (t CFTime) Date() string {
	return fmt.Sprintf("%04d-%02d-%02d", t.Year, t.Month, t.Day)
}

// TimeUnits is a parsed "<unit> since <reference>" attribute.
type TimeUnits struct {
	Step      time.Duration
	Reference CFTime
}

// ParseTimeUnits parses CF units such as "days since 0001-01-01 00:00:00".
func ParseTimeUnits(units string) (TimeUnits, error) {
	fields := strings.Fields(units)
	if len(fields) < 3 || !strings.EqualFold(fields[1], "since") {
		return TimeUnits{}, fmt.Errorf("invalid time units %q", units)
	}

	var step time.Duration
	switch strings.ToLower(fields[0]) {
	case "days", "day", "d":
		step = 24 * time.Hour
	case "hours", "hour", "h":
		step = time.Hour
	case "minutes", "minute", "min":
		step = time.Minute
	case "seconds", "second", "s":
		step = time.Second
	default:
		return TimeUnits{}, fmt.Errorf("unsupported time step %q in %q", fields[0], units)
	}

	ref, err := parseReference(strings.Join(fields[2:], " "))
	if err != nil {
		return TimeUnits{}, fmt.Errorf("invalid reference time in %q: %w", units, err)
	}
	return TimeUnits{Step: step, Reference: ref}, nil
}

func parseReference(s string) (CFTime, error) {
	s = strings.Replace(s, "T", " ", 1)
	parts := strings.Fields(s)
	if len(parts) == 0 {
		return CFTime{}, fmt.Errorf("empty reference")
	}
	date := strings.Split(parts[0], "-")
	if len(date) != 3 {
		return CFTime{}, fmt.Errorf("invalid date %q", parts[0])
	}
	var t CFTime
	var err error
	if t.Year, err = strconv.Atoi(date[0]); err != nil {
		return CFTime{}, err
	}
	if t.Month, err = strconv.Atoi(date[1]); err != nil {
		return CFTime{}, err
	}
	if t.Day, err = strconv.Atoi(date[2]); err != nil {
		return CFTime{}, err
	}
	if len(parts) > 1 {
		clock := strings.Split(strings.TrimSuffix(parts[1], "Z"), ":")
		vals := []*int{&t.Hour, &t.Minute, &t.Second}
		for i := 0; i < len(clock) && i < 3; i++ {
			f, err := strconv.ParseFloat(clock[i], 64)
			if err != nil {
				return CFTime{}, err
			}
			*vals[i] = int(f)
		}
	}
	return t, nil
}

// DecodeTimes converts raw time coordinate values to calendar timestamps.
func DecodeTimes(values []float64, units string, cal Calendar) ([]CFTime, error) {
	tu, err := ParseTimeUnits(units)
	if err != nil {
		return nil, err
	}
	if cal == "" {
		cal = CalendarStandard
	}
	out := make([]CFTime, len(values))
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("time value %d is not finite", i)
		}
		seconds := int64(math.Round(v * tu.Step.Seconds()))
		t, err := addSeconds(tu.Reference, seconds, cal)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

func addSeconds(ref CFTime, seconds int64, cal Calendar) (CFTime, error) {
	switch Calendar(strings.ToLower(string(cal))) {
	case CalendarNoLeap, Calendar365Day:
		return fixedAdd(ref, seconds, noLeapMonthDays[:]), nil
	case Calendar360Day:
		return fixedAdd(ref, seconds, []int{30, 30, 30, 30, 30, 30, 30, 30, 30, 30, 30, 30}), nil
	case CalendarStandard, CalendarGregorian, CalendarProleptic:
		base := time.Date(ref.Year, time.Month(ref.Month), ref.Day, ref.Hour, ref.Minute, ref.Second, 0, time.UTC)
		// Split into days so spans longer than ~292 years do not overflow time.Duration.
		days := floorDiv(seconds, 86400)
		t := base.AddDate(0, 0, int(days)).Add(time.Duration(seconds-days*86400) * time.Second)
		return CFTime{
			Year: t.Year(), Month: int(t.Month()), Day: t.Day(),
			Hour: t.Hour(), Minute: t.Minute(), Second: t.Second(),
		}, nil
	default:
		return CFTime{}, fmt.Errorf("unsupported calendar %q", cal)
	}
}

// fixedAdd adds seconds in a calendar whose years all have the same month lengths.
func fixedAdd(ref CFTime, seconds int64, monthDays []int) CFTime {
	yearDays := 0
	for _, d := range monthDays {
		yearDays += d
	}
	dayOfYear := ref.Day - 1
	for m := 0; m < ref.Month-1; m++ {
		dayOfYear += monthDays[m]
	}

	total := int64(ref.Year)*int64(yearDays)*86400 + int64(dayOfYear)*86400 +
		int64(ref.Hour)*3600 + int64(ref.Minute)*60 + int64(ref.Second) + seconds

	days := floorDiv(total, 86400)
	rem := total - days*86400

	var t CFTime
	t.Year = int(floorDiv(days, int64(yearDays)))
	doy := int(days - int64(t.Year)*int64(yearDays))
	t.Month = 1
	for _, d := range monthDays {
		if doy < d {
			break
		}
		doy -= d
		t.Month++
	}
	t.Day = doy + 1
	t.Hour = int(rem / 3600)
	t.Minute = int(rem % 3600 / 60)
	t.Second = int(rem % 60)
	return t
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// DaysSince returns the offset in days of (year, month, day) from ref in a
// noleap calendar. It is the inverse of DecodeTimes for daily units.
func DaysSince(ref CFTime, year, month, day int) float64 {
	doy := func(y, m, d int) int {
		n := y*365 + d - 1
		for i := 0; i < m-1; i++ {
			n += noLeapMonthDays[i]
		}
		return n
	}
	refSeconds := float64(ref.Hour*3600 + ref.Minute*60 + ref.Second)
	return float64(doy(year, month, day)-doy(ref.Year, ref.Month, ref.Day)) - refSeconds/86400
}
