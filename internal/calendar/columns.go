package calendar

import "time"

// UnassignedColumnName is the display name of the day view bucket for events without a label.
const UnassignedColumnName = "Unassigned"

// Column identifies what a rendered grid column represents.
type Column struct {
	Day time.Time
	// Resource is set for day view resource columns.
	Resource   string
	Name       string
	Unassigned bool
	// Top is the page offset of the column's first visible minute.
	Top float64
}

// assignsResource reports whether dropping an event here changes its label.
func (c Column) assignsResource() bool {
	return c.Resource != "" || c.Unassigned
}

// applyLabel returns the label an event gets when dropped into the column.
func (c Column) applyLabel(current string) string {
	switch {
	case c.Unassigned:
		return ""
	case c.Resource != "":
		return c.Resource
	}
	return current
}

// ColumnResolver maps a pointer position to the grid column underneath it.
type ColumnResolver interface {
	ResolveColumn(x, y float64) (Column, bool)
}

// ColumnResolverFunc adapts a function to ColumnResolver.
type ColumnResolverFunc func(x, y float64) (Column, bool)

func (f ColumnResolverFunc) ResolveColumn(x, y float64) (Column, bool) {
	return f(x, y)
}

// ColumnBox is a column together with its horizontal extent [Left, Right).
type ColumnBox struct {
	Left   float64
	Right  float64
	Column Column
}

// ColumnBoxes resolves by testing X against each box in order; the first match wins.
type ColumnBoxes []ColumnBox

func (b ColumnBoxes) ResolveColumn(x, _ float64) (Column, bool) {
	for _, box := range b {
		if x >= box.Left && x < box.Right {
			return box.Column, true
		}
	}
	return Column{}, false
}

func resolve(r ColumnResolver, p Pointer) (Column, bool) {
	if r == nil {
		return Column{}, false
	}
	return r.ResolveColumn(p.X, p.Y)
}
