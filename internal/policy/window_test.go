package policy

import (
	"testing"
	"time"
)

func testWindow() Window {
	return Window{
		StartHour: 9,
		EndHour:   21,
		Location:  time.UTC,
	}
}

func TestWindowAllows(t *testing.T) {
	t.Parallel()

	w := testWindow()

	// 2024-06-05 is a Wednesday.
	if !w.Allows(time.Date(2024, 6, 5, 10, 0, 0, 0, time.UTC)) {
		t.Fatal("weekday 10:00 should be allowed")
	}
	if w.Allows(time.Date(2024, 6, 5, 8, 59, 0, 0, time.UTC)) {
		t.Fatal("before start hour should be rejected")
	}
	if w.Allows(time.Date(2024, 6, 5, 21, 0, 0, 0, time.UTC)) {
		t.Fatal("end hour is exclusive")
	}
	// 2024-06-08 is a Saturday.
	if w.Allows(time.Date(2024, 6, 8, 12, 0, 0, 0, time.UTC)) {
		t.Fatal("saturday should be rejected when weekends are disallowed")
	}

	weekend := w
	weekend.WeekendsAllowed = true
	if !weekend.Allows(time.Date(2024, 6, 8, 12, 0, 0, 0, time.UTC)) {
		t.Fatal("saturday should pass when weekends are allowed")
	}
}

func TestNextValidTime(t *testing.T) {
	t.Parallel()

	w := testWindow()

	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{
			name: "already valid",
			in:   time.Date(2024, 6, 5, 14, 30, 0, 0, time.UTC),
			want: time.Date(2024, 6, 5, 14, 30, 0, 0, time.UTC),
		},
		{
			name: "early morning moves to start hour",
			in:   time.Date(2024, 6, 5, 6, 0, 0, 0, time.UTC),
			want: time.Date(2024, 6, 5, 9, 0, 0, 0, time.UTC),
		},
		{
			name: "late evening moves to next day",
			in:   time.Date(2024, 6, 5, 22, 0, 0, 0, time.UTC),
			want: time.Date(2024, 6, 6, 9, 0, 0, 0, time.UTC),
		},
		{
			name: "friday night skips weekend",
			in:   time.Date(2024, 6, 7, 23, 0, 0, 0, time.UTC),
			want: time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC),
		},
		{
			name: "saturday noon skips to monday",
			in:   time.Date(2024, 6, 8, 12, 0, 0, 0, time.UTC),
			want: time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC),
		},
	}

	for _, tc := range tests {
		if got := w.NextValidTime(tc.in); !got.Equal(tc.want) {
			t.Fatalf("%s: NextValidTime(%s) = %s, want %s", tc.name, tc.in, got, tc.want)
		}
	}
}

func TestNextValidTimeSkipsHolidays(t *testing.T) {
	t.Parallel()

	holiday := time.Date(2024, 6, 6, 0, 0, 0, 0, time.UTC)
	w := testWindow()
	w.IsHoliday = func(t time.Time) bool {
		return t.Year() == holiday.Year() && t.YearDay() == holiday.YearDay()
	}

	got := w.NextValidTime(time.Date(2024, 6, 5, 22, 0, 0, 0, time.UTC))
	want := time.Date(2024, 6, 7, 9, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("NextValidTime() = %s, want %s (holiday skipped)", got, want)
	}
}

func TestNextDayStart(t *testing.T) {
	t.Parallel()

	w := testWindow()

	got := w.NextDayStart(time.Date(2024, 6, 5, 14, 0, 0, 0, time.UTC))
	want := time.Date(2024, 6, 6, 9, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("NextDayStart() = %s, want %s", got, want)
	}

	// Friday -> Monday when weekends are disallowed.
	got = w.NextDayStart(time.Date(2024, 6, 7, 14, 0, 0, 0, time.UTC))
	want = time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("NextDayStart() over weekend = %s, want %s", got, want)
	}
}

func TestDayBounds(t *testing.T) {
	t.Parallel()

	w := testWindow()
	start, end := w.DayBounds(time.Date(2024, 6, 5, 18, 30, 0, 0, time.UTC))
	if !start.Equal(time.Date(2024, 6, 5, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("day start = %s", start)
	}
	if !end.Equal(time.Date(2024, 6, 6, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("day end = %s", end)
	}
}
