package calendar

import (
	"testing"
	"time"
)

func at(day time.Time, hour, minute int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, day.Location())
}

func ptr[T any](v T) *T {
	return &v
}

var monday = time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC)

func TestCalendarArithmetic(t *testing.T) {
	t.Parallel()

	t.Run("start of week is sunday midnight", func(t *testing.T) {
		t.Parallel()
		got := StartOfWeek(time.Date(2024, time.March, 6, 15, 30, 0, 0, time.UTC))
		want := time.Date(2024, time.March, 3, 0, 0, 0, 0, time.UTC)
		if !got.Equal(want) {
			t.Fatalf("expected %v, got %v", want, got)
		}
		if got := StartOfWeek(want); !got.Equal(want) {
			t.Fatalf("sunday should map to itself, got %v", got)
		}
	})

	t.Run("add days keeps time of day", func(t *testing.T) {
		t.Parallel()
		got := AddDays(at(monday, 9, 30), 3)
		if got.Weekday() != time.Thursday || got.Hour() != 9 || got.Minute() != 30 {
			t.Fatalf("unexpected result %v", got)
		}
	})

	t.Run("month arithmetic rolls over like time.Date", func(t *testing.T) {
		t.Parallel()
		got := AddMonths(time.Date(2024, time.January, 31, 8, 0, 0, 0, time.UTC), 1)
		want := time.Date(2024, time.March, 2, 8, 0, 0, 0, time.UTC)
		if !got.Equal(want) {
			t.Fatalf("expected %v, got %v", want, got)
		}
		if back := SubMonths(time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC), 2); back.Month() != time.January {
			t.Fatalf("expected january, got %v", back)
		}
	})

	t.Run("same day and month ignore time of day", func(t *testing.T) {
		t.Parallel()
		if !IsSameDay(at(monday, 0, 0), at(monday, 23, 59)) {
			t.Fatal("expected same day")
		}
		if IsSameDay(at(monday, 23, 59), AddDays(at(monday, 0, 0), 1)) {
			t.Fatal("expected different days")
		}
		if !IsSameMonth(monday, time.Date(2024, time.March, 31, 12, 0, 0, 0, time.UTC)) {
			t.Fatal("expected same month")
		}
		if IsSameMonth(monday, time.Date(2023, time.March, 4, 0, 0, 0, 0, time.UTC)) {
			t.Fatal("different years must not match")
		}
	})
}

func TestEventOverlapsDay(t *testing.T) {
	t.Parallel()

	tuesday := AddDays(monday, 1)
	tests := []struct {
		name  string
		event CalendarEvent
		day   time.Time
		want  bool
	}{
		{
			name:  "inside the day",
			event: CalendarEvent{Start: at(monday, 9, 0), End: ptr(at(monday, 10, 0))},
			day:   monday,
			want:  true,
		},
		{
			name:  "point event late in the previous day",
			event: CalendarEvent{Start: at(monday, 23, 0)},
			day:   tuesday,
			want:  false,
		},
		{
			name:  "ending exactly at midnight touches the next day",
			event: CalendarEvent{Start: at(monday, 22, 0), End: ptr(at(tuesday, 0, 0))},
			day:   tuesday,
			want:  true,
		},
		{
			name:  "multi-day event covers a middle day",
			event: CalendarEvent{Start: at(monday, 8, 0), End: ptr(at(AddDays(monday, 2), 8, 0))},
			day:   tuesday,
			want:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := EventOverlapsDay(tt.event, tt.day); got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestEventOverlaps(t *testing.T) {
	t.Parallel()

	events := []CalendarEvent{
		{ID: "a", Start: at(monday, 9, 0), End: ptr(at(monday, 10, 0))},
		{ID: "b", Start: at(monday, 10, 0), End: ptr(at(monday, 11, 0))},
		{ID: "c", Start: at(monday, 9, 30)},
		{ID: "d", Start: at(monday, 10, 30)},
		{ID: "e", Start: at(monday, 8, 0), End: ptr(at(monday, 12, 0))},
	}

	t.Run("touching endpoints do not overlap", func(t *testing.T) {
		t.Parallel()
		if EventOverlaps(events[0], events[1]) {
			t.Fatal("09:00-10:00 and 10:00-11:00 must not overlap")
		}
	})

	t.Run("missing end counts as one hour", func(t *testing.T) {
		t.Parallel()
		if !EventOverlaps(events[2], events[1]) {
			t.Fatal("09:30 with default hour should overlap 10:00-11:00")
		}
	})

	t.Run("is symmetric", func(t *testing.T) {
		t.Parallel()
		for _, a := range events {
			for _, b := range events {
				if EventOverlaps(a, b) != EventOverlaps(b, a) {
					t.Fatalf("asymmetric result for %s and %s", a.ID, b.ID)
				}
			}
		}
	})
}

func TestSnap15(t *testing.T) {
	t.Parallel()

	t.Run("rounds to nearest step", func(t *testing.T) {
		t.Parallel()
		cases := map[float64]int{0: 0, 7.4: 0, 7.5: 15, 22.4: 15, 22.5: 30, 541: 540, -50: -45, -7.5: 0}
		for in, want := range cases {
			if got := Snap15(in); got != want {
				t.Fatalf("Snap15(%v): expected %d, got %d", in, want, got)
			}
		}
	})

	t.Run("is idempotent", func(t *testing.T) {
		t.Parallel()
		for m := -300.0; m <= 1800; m += 0.25 {
			once := Snap15(m)
			if twice := Snap15(float64(once)); twice != once {
				t.Fatalf("Snap15 not idempotent at %v: %d then %d", m, once, twice)
			}
		}
	})
}

func TestPixelConversion(t *testing.T) {
	t.Parallel()

	t.Run("minutes to pixels honours office start", func(t *testing.T) {
		t.Parallel()
		if got := MinutesToPixels(540, 60, 8); got != 60 {
			t.Fatalf("expected 60, got %v", got)
		}
		if got := MinutesToPixels(540, 120, 0); got != 1080 {
			t.Fatalf("expected 1080, got %v", got)
		}
	})

	t.Run("pixels to minutes inverts, snaps and clamps", func(t *testing.T) {
		t.Parallel()
		if got := PixelsToMinutes(60, 60, 8); got != 540 {
			t.Fatalf("expected 540, got %d", got)
		}
		if got := PixelsToMinutes(67, 60, 8); got != 540 {
			t.Fatalf("expected 540 after snapping, got %d", got)
		}
		if got := PixelsToMinutes(-100, 60, 0); got != 0 {
			t.Fatalf("expected clamp to 0, got %d", got)
		}
		if got := PixelsToMinutes(5000, 60, 0); got != MinutesPerDay-SnapStep {
			t.Fatalf("expected clamp to 1425, got %d", got)
		}
	})

	t.Run("office hours bound the grid", func(t *testing.T) {
		t.Parallel()
		g := NewGrid(60, &OfficeHours{Start: 8, End: 18})
		if got := g.PixelsToMinutes(-10); got != 480 {
			t.Fatalf("expected 480, got %d", got)
		}
		if got := g.PixelsToMinutes(10_000); got != 18*60-SnapStep {
			t.Fatalf("expected 1065, got %d", got)
		}
		if got := g.Height(); got != 600 {
			t.Fatalf("expected height 600, got %v", got)
		}
	})

	t.Run("invalid office hours are ignored", func(t *testing.T) {
		t.Parallel()
		g := NewGrid(60, &OfficeHours{Start: 18, End: 8})
		if g.Office != nil {
			t.Fatalf("expected office hours to be dropped, got %+v", g.Office)
		}
	})
}
