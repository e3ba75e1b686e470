package calendar

import (
	"testing"
	"time"
)

func job(id string, day time.Time, sh, sm, eh, em int, label string) CalendarEvent {
	return CalendarEvent{ID: id, Title: id, Start: at(day, sh, sm), End: ptr(at(day, eh, em)), Label: label}
}

func boxFor(t *testing.T, l TimeGridLayout, id string) EventBox {
	t.Helper()
	for _, b := range l.Boxes {
		if b.Event.ID == id {
			return b
		}
	}
	t.Fatalf("no box for %s", id)
	return EventBox{}
}

func TestLayoutWeek(t *testing.T) {
	t.Parallel()

	opts := LayoutOptions{Grid: hourGrid}

	t.Run("seven sunday-first columns", func(t *testing.T) {
		t.Parallel()
		l := LayoutWeek(at(monday, 15, 0), nil, opts)
		if len(l.Columns) != 7 {
			t.Fatalf("expected 7 columns, got %d", len(l.Columns))
		}
		if l.Columns[0].Day.Weekday() != time.Sunday {
			t.Fatalf("expected sunday first, got %v", l.Columns[0].Day.Weekday())
		}
		if l.Columns[1].Left != DefaultGutterWidth+DefaultColumnWidth {
			t.Fatalf("unexpected column offset %v", l.Columns[1].Left)
		}
	})

	t.Run("positions events from their time span", func(t *testing.T) {
		t.Parallel()
		l := LayoutWeek(monday, []CalendarEvent{job("a", monday, 9, 0, 10, 0, "")}, opts)
		b := boxFor(t, l, "a")
		if b.Column != 1 || b.Y != DefaultHeaderHeight+540 || b.Height != 60 {
			t.Fatalf("unexpected box %+v", b)
		}
		if b.Lanes != 1 || b.Width != DefaultColumnWidth {
			t.Fatalf("expected a full-width single lane, got %+v", b)
		}
	})

	t.Run("overlapping events share the column", func(t *testing.T) {
		t.Parallel()
		events := []CalendarEvent{
			job("a", monday, 9, 0, 11, 0, ""),
			job("b", monday, 10, 0, 12, 0, ""),
			job("c", monday, 11, 0, 12, 30, ""),
			job("d", monday, 13, 0, 14, 0, ""),
		}
		l := LayoutWeek(monday, events, opts)
		a, b, c, d := boxFor(t, l, "a"), boxFor(t, l, "b"), boxFor(t, l, "c"), boxFor(t, l, "d")
		if a.Lane != 0 || b.Lane != 1 || c.Lane != 0 {
			t.Fatalf("unexpected lanes a=%d b=%d c=%d", a.Lane, b.Lane, c.Lane)
		}
		if a.Lanes != 2 || b.Lanes != 2 || c.Lanes != 2 {
			t.Fatalf("expected cluster width 2, got %d %d %d", a.Lanes, b.Lanes, c.Lanes)
		}
		if d.Lanes != 1 || d.Width != DefaultColumnWidth {
			t.Fatalf("separate cluster should be full width, got %+v", d)
		}
		if b.X != a.X+a.Width {
			t.Fatalf("expected b beside a, got a.X=%v b.X=%v", a.X, b.X)
		}
	})

	t.Run("short events get a minimum visual height", func(t *testing.T) {
		t.Parallel()
		l := LayoutWeek(monday, []CalendarEvent{job("a", monday, 9, 0, 9, 5, "")}, opts)
		if b := boxFor(t, l, "a"); b.Height != 15 {
			t.Fatalf("expected 15px, got %v", b.Height)
		}
	})

	t.Run("multi-day events are split per day", func(t *testing.T) {
		t.Parallel()
		ev := CalendarEvent{ID: "a", Start: at(monday, 22, 0), End: ptr(at(AddDays(monday, 1), 2, 0))}
		l := LayoutWeek(monday, []CalendarEvent{ev}, opts)
		if len(l.Boxes) != 2 {
			t.Fatalf("expected two segments, got %d", len(l.Boxes))
		}
		if !l.Boxes[0].ContinuesAfter || !l.Boxes[1].ContinuesBefore {
			t.Fatalf("expected continuation flags, got %+v", l.Boxes)
		}
	})

	t.Run("office hours clip segments", func(t *testing.T) {
		t.Parallel()
		o := LayoutOptions{Grid: NewGrid(60, &OfficeHours{Start: 8, End: 18})}
		events := []CalendarEvent{
			job("early", monday, 6, 0, 9, 0, ""),
			job("night", monday, 19, 0, 20, 0, ""),
		}
		l := LayoutWeek(monday, events, o)
		if len(l.Boxes) != 1 {
			t.Fatalf("expected only the early job, got %d boxes", len(l.Boxes))
		}
		b := l.Boxes[0]
		if b.Y != DefaultHeaderHeight || b.Height != 60 || !b.ContinuesBefore {
			t.Fatalf("unexpected clipped box %+v", b)
		}
	})

	t.Run("now marker", func(t *testing.T) {
		t.Parallel()
		o := opts
		o.Now = at(monday, 10, 30)
		l := LayoutWeek(monday, nil, o)
		if len(l.Now) != 1 || l.Now[0].Column != 1 || l.Now[0].Y != DefaultHeaderHeight+630 {
			t.Fatalf("unexpected marker %+v", l.Now)
		}

		o.Grid = NewGrid(60, &OfficeHours{Start: 8, End: 18})
		o.Now = at(monday, 19, 0)
		if l := LayoutWeek(monday, nil, o); len(l.Now) != 0 {
			t.Fatalf("marker outside office hours: %+v", l.Now)
		}

		o.Now = at(AddDays(monday, 14), 10, 0)
		if l := LayoutWeek(monday, nil, o); len(l.Now) != 0 {
			t.Fatalf("marker outside the visible week: %+v", l.Now)
		}
	})
}

func TestLayoutDay(t *testing.T) {
	t.Parallel()

	resources := []Resource{{ID: "crew-a", Name: "Crew A"}, {ID: "crew-b", Name: "Crew B"}}
	events := []CalendarEvent{
		job("a", monday, 9, 0, 10, 0, "crew-b"),
		job("b", monday, 9, 0, 10, 0, ""),
		job("c", monday, 11, 0, 12, 0, "retired-crew"),
		job("d", AddDays(monday, 1), 9, 0, 10, 0, "crew-a"),
	}
	l := LayoutDay(at(monday, 13, 0), resources, events, LayoutOptions{Grid: hourGrid})

	if len(l.Columns) != 3 || !l.Columns[2].Unassigned || l.Columns[2].Name != UnassignedColumnName {
		t.Fatalf("unexpected columns %+v", l.Columns)
	}
	if b := boxFor(t, l, "a"); b.Column != 1 {
		t.Fatalf("expected crew-b column, got %d", b.Column)
	}
	if b := boxFor(t, l, "b"); b.Column != 2 {
		t.Fatalf("expected unassigned column, got %d", b.Column)
	}
	if b := boxFor(t, l, "c"); b.Column != 2 {
		t.Fatalf("unknown labels belong to unassigned, got %d", b.Column)
	}
	if len(l.Boxes) != 3 {
		t.Fatalf("expected tuesday job to be excluded, got %d boxes", len(l.Boxes))
	}
	if col, ok := l.Resolver().ResolveColumn(l.Columns[0].Left+1, 0); !ok || col.Resource != "crew-a" {
		t.Fatalf("resolver returned %+v", col)
	}
}

func TestConflicts(t *testing.T) {
	t.Parallel()

	events := []CalendarEvent{
		job("a", monday, 9, 0, 10, 0, "crew-a"),
		job("b", monday, 9, 30, 10, 30, "crew-a"),
		job("c", monday, 10, 30, 11, 0, "crew-a"),
		job("d", monday, 9, 0, 10, 0, "crew-b"),
		job("e", monday, 9, 0, 10, 0, ""),
		job("f", monday, 9, 0, 10, 0, ""),
	}
	got := Conflicts(events)
	if !got["a"] || !got["b"] {
		t.Fatalf("expected a and b to conflict, got %v", got)
	}
	for _, id := range []string{"c", "d", "e", "f"} {
		if got[id] {
			t.Fatalf("%s must not conflict", id)
		}
	}

	l := LayoutWeek(monday, events, LayoutOptions{Grid: hourGrid})
	if !boxFor(t, l, "a").Conflict || boxFor(t, l, "d").Conflict {
		t.Fatal("layout did not carry conflict flags")
	}
}

func TestHitTest(t *testing.T) {
	t.Parallel()

	l := LayoutWeek(monday, []CalendarEvent{job("a", monday, 9, 0, 10, 0, "")}, LayoutOptions{Grid: hourGrid})
	b := boxFor(t, l, "a")
	mid := b.X + b.Width/2

	tests := []struct {
		name string
		p    Pointer
		kind TargetKind
	}{
		{"body", Pointer{X: mid, Y: b.Y + 30}, TargetEvent},
		{"top handle", Pointer{X: mid, Y: b.Y + 1}, TargetStartEdge},
		{"bottom handle", Pointer{X: mid, Y: b.Y + b.Height - 1}, TargetEndEdge},
		{"empty slot", Pointer{X: mid, Y: b.Y + 200}, TargetEmpty},
		{"gutter", Pointer{X: 10, Y: b.Y}, TargetNone},
		{"header", Pointer{X: mid, Y: 5}, TargetNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := l.HitTest(tt.p)
			if got.Kind != tt.kind {
				t.Fatalf("expected %s, got %s", tt.kind, got.Kind)
			}
			if tt.kind == TargetEmpty && !got.Column.Day.Equal(monday) {
				t.Fatalf("expected monday column, got %v", got.Column.Day)
			}
		})
	}
}

func TestLayoutMonth(t *testing.T) {
	t.Parallel()

	events := []CalendarEvent{
		job("late", monday, 15, 0, 16, 0, ""),
		job("early", monday, 8, 0, 9, 0, ""),
	}
	l := LayoutMonth(at(monday, 12, 0), events, at(monday, 12, 0))
	if len(l.Weeks) != 6 {
		t.Fatalf("expected 6 weeks for march 2024, got %d", len(l.Weeks))
	}
	first := l.Weeks[0][0]
	if first.InMonth || first.Day.Month() != time.February || first.Day.Day() != 25 {
		t.Fatalf("unexpected first cell %+v", first)
	}
	cell := l.Weeks[1][1]
	if !cell.Today || !IsSameDay(cell.Day, monday) {
		t.Fatalf("expected today's cell, got %+v", cell)
	}
	if len(cell.Events) != 2 || cell.Events[0].ID != "early" {
		t.Fatalf("expected events sorted by start, got %+v", cell.Events)
	}
	last := l.Weeks[5][0]
	if !last.InMonth || last.Day.Day() != 31 {
		t.Fatalf("expected march 31 in the last row, got %+v", last)
	}
}
