package skyodyssey

import "testing"

func TestParsePrice(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"$268", 268, true},
		{"1,200 €", 1200, true},
		{"268.50", 268, true}, // whole-unit fares
		{"€89", 89, true},
		{"", 0, false},
		{"free", 0, false},
		{"$0", 0, false},
		{"-50", 50, true}, // sign is stripped with the currency noise
	}
	for _, c := range cases {
		got, ok := parsePrice(c.in)
		if ok != c.ok || got != c.want {
			t.Errorf("parsePrice(%q) = (%v, %v), want (%v, %v)", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestParseClockMinutes(t *testing.T) {
	cases := []struct {
		in   string
		want int
		ok   bool
	}{
		{"10:30 AM", 630, true},
		{"12:00 AM", 0, true},
		{"12:15 PM", 735, true},
		{"6:00 PM", 1080, true},
		{"11:59 PM", 1439, true},
		{"25:00 AM", 0, false},
		{"noonish", 0, false},
	}
	for _, c := range cases {
		got, ok := parseClockMinutes(c.in)
		if ok != c.ok || (ok && got != c.want) {
			t.Errorf("parseClockMinutes(%q) = (%v, %v), want (%v, %v)", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestParseHHMM(t *testing.T) {
	if m, ok := ParseHHMM("08:30"); !ok || m != 510 {
		t.Errorf("ParseHHMM(08:30) = (%v, %v)", m, ok)
	}
	if m, ok := ParseHHMM("23:59"); !ok || m != 1439 {
		t.Errorf("ParseHHMM(23:59) = (%v, %v)", m, ok)
	}
	for _, bad := range []string{"24:00", "8", "8:61", ""} {
		if _, ok := ParseHHMM(bad); ok {
			t.Errorf("ParseHHMM(%q) should fail", bad)
		}
	}
}

func TestParseDurationMinutes(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"2 hr 15 min", 135},
		{"45 min", 45},
		{"3 hr", 180},
		{"", unknownDurationMinutes},
		{"soon", unknownDurationMinutes},
	}
	for _, c := range cases {
		if got := parseDurationMinutes(c.in); got != c.want {
			t.Errorf("parseDurationMinutes(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestNormalizeStops(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"Nonstop", 0},
		{"nonstop ", 0},
		{"1 stop", 1},
		{"2 stops", 2},
		{"", 1},
		{"several", 1},
	}
	for _, c := range cases {
		if got := normalizeStops(c.in); got != c.want {
			t.Errorf("normalizeStops(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestExpandDatesWithFlex(t *testing.T) {
	got := expandDatesWithFlex("2026-09-12", 1)
	want := []string{"2026-09-11", "2026-09-12", "2026-09-13"}
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Expected %v, got %v", want, got)
		}
	}

	if got := expandDatesWithFlex("2026-09-12", 0); len(got) != 1 || got[0] != "2026-09-12" {
		t.Errorf("Zero flex should return the date alone, got %v", got)
	}
	if got := expandDatesWithFlex("garbage", 2); len(got) != 1 || got[0] != "garbage" {
		t.Errorf("Unparseable dates pass through unchanged, got %v", got)
	}
}

func TestAddDays(t *testing.T) {
	got, err := addDays("2026-09-30", 2)
	if err != nil || got != "2026-10-02" {
		t.Errorf("addDays crossed the month wrong: %v, %v", got, err)
	}
	if _, err := addDays("not-a-date", 1); err == nil {
		t.Error("addDays should reject malformed dates")
	}
}

func TestMatchesWindow(t *testing.T) {
	cases := []struct {
		name      string
		departure string
		arrival   string
		window    TimeWindow
		want      bool
	}{
		{"no bounds", "10:30 AM", "1:00 PM", TimeWindow{}, true},
		{"depart after ok", "10:30 AM", "", TimeWindow{DepartAfter: 600}, true},
		{"depart too early", "9:30 AM", "", TimeWindow{DepartAfter: 600}, false},
		{"depart before ok", "10:30 AM", "", TimeWindow{DepartBefore: 660}, true},
		{"depart too late", "11:30 AM", "", TimeWindow{DepartBefore: 660}, false},
		{"arrive before ok", "10:30 AM", "1:00 PM", TimeWindow{ArriveBefore: 800}, true},
		{"arrive too late", "10:30 AM", "2:00 PM", TimeWindow{ArriveBefore: 800}, false},
		{"bound set but clock unreadable", "soon", "", TimeWindow{DepartAfter: 600}, false},
	}
	for _, c := range cases {
		if got := matchesWindow(c.departure, c.arrival, c.window); got != c.want {
			t.Errorf("%s: matchesWindow(%q, %q, %+v) = %v, want %v",
				c.name, c.departure, c.arrival, c.window, got, c.want)
		}
	}
}
