package domain

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestCaseName(t *testing.T) {
	if got := CaseName("ctrl-esm", ""); got != "b.e21.B1850.f09_g17.FLAT10ctrl-esm.001" {
		t.Errorf("CaseName without suffix = %s", got)
	}
	if got := CaseName("ctrl-esm", "leafcn_high"); got != "b.e21.B1850.f09_g17.FLAT10ctrl-esm.001.leafcn_high" {
		t.Errorf("CaseName with suffix = %s", got)
	}
}

func TestComponent(t *testing.T) {
	for domain, want := range map[string]string{"atm": "cam", "lnd": "clm2"} {
		got, err := Component(domain)
		if err != nil || got != want {
			t.Errorf("Component(%s) = %s, %v; want %s", domain, got, err, want)
		}
	}
	if _, err := Component("ocn"); !errors.Is(err, ErrUnknownDomain) {
		t.Errorf("expected ErrUnknownDomain, got %v", err)
	}
}

func TestHistoryPaths(t *testing.T) {
	caseName := CaseName("ctrl-esm", "leafcn_high")
	got, err := HistoryFile("/archive", caseName, "lnd", "h0", YearMonth{Year: 1, Month: 3})
	if err != nil {
		t.Fatalf("HistoryFile: %v", err)
	}
	want := filepath.Join("/archive", caseName, "lnd", "hist", caseName+".clm2.h0.0001-03.nc")
	if got != want {
		t.Errorf("HistoryFile = %s, want %s", got, want)
	}

	glob, err := HistoryGlob("/archive", caseName, "atm", "h0")
	if err != nil {
		t.Fatalf("HistoryGlob: %v", err)
	}
	if want := filepath.Join("/archive", caseName, "atm", "hist", caseName+".cam.h0.*.nc"); glob != want {
		t.Errorf("HistoryGlob = %s, want %s", glob, want)
	}

	month, err := HistoryFileMonth(got)
	if err != nil || month != (YearMonth{Year: 1, Month: 3}) {
		t.Errorf("HistoryFileMonth = %v, %v", month, err)
	}
}

func TestRegriddedFile(t *testing.T) {
	caseName := "b.e21.B1850.f09_g17.FLAT10ctrl-esm.001.leafcn_high.bgc_spinup"
	got, err := RegriddedFile("/out", caseName, "lnd", "h4", "totsomc",
		YearMonth{Year: 1, Month: 2}, YearMonth{Year: 12, Month: 1})
	if err != nil {
		t.Fatalf("RegriddedFile: %v", err)
	}
	want := filepath.Join("/out", caseName, "lnd", "hist", caseName+".clm2.h4.000102-001201.TOTSOMC.vegonly.nc")
	if got != want {
		t.Errorf("RegriddedFile = %s, want %s", got, want)
	}
}

func TestYearMonth(t *testing.T) {
	ym, err := ParseYearMonth("0003-12")
	if err != nil {
		t.Fatalf("ParseYearMonth: %v", err)
	}
	if ym.String() != "0003-12" || ym.Compact() != "000312" {
		t.Errorf("formatting: %s %s", ym.String(), ym.Compact())
	}
	if next := ym.Next(); next != (YearMonth{Year: 4, Month: 1}) {
		t.Errorf("Next = %v", next)
	}
	for _, bad := range []string{"0003", "0003-13", "abcd-01", "0003-00"} {
		if _, err := ParseYearMonth(bad); err == nil {
			t.Errorf("ParseYearMonth(%q) should fail", bad)
		}
	}
}

func TestMonths(t *testing.T) {
	months, err := Months(YearMonth{Year: 1, Month: 11}, YearMonth{Year: 2, Month: 2})
	if err != nil {
		t.Fatalf("Months: %v", err)
	}
	if len(months) != 4 || months[0].String() != "0001-11" || months[3].String() != "0002-02" {
		t.Fatalf("Months = %v", months)
	}
	if _, err := Months(YearMonth{Year: 2, Month: 1}, YearMonth{Year: 1, Month: 1}); err == nil {
		t.Fatal("expected error for reversed range")
	}
}

func TestClampControlCase(t *testing.T) {
	end := YearMonth{Year: 45, Month: 6}
	if got := ClampControlCase("", end); got != ControlCaseLastMonth {
		t.Errorf("control case not clamped: %v", got)
	}
	if got := ClampControlCase("leafcn_high", end); got != end {
		t.Errorf("perturbed case clamped: %v", got)
	}
	if got := ClampControlCase("", YearMonth{Year: 30, Month: 12}); got != ControlCaseLastMonth {
		t.Errorf("year 30 changed: %v", got)
	}
}
