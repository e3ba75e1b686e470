package calendar

import "testing"

func TestResolveStyle(t *testing.T) {
	t.Parallel()

	table := StyleTable{
		Types: map[string]EventType{
			"deep_clean": {Color: "#10b981"},
		},
	}

	tests := []struct {
		name    string
		event   CalendarEvent
		color   string
		bg      string
		opacity float64
		border  BorderStyle
		width   int
	}{
		{
			name:    "external appointment",
			event:   CalendarEvent{Metadata: Metadata{MetaExternal: true, MetaEventType: "deep_clean"}},
			color:   DefaultExternalColor,
			bg:      "#7c3aed59",
			opacity: 0.35,
			border:  BorderSolid,
			width:   2,
		},
		{
			name:    "block period",
			event:   CalendarEvent{Metadata: Metadata{MetaEventType: BlockType}},
			color:   BlockColor,
			bg:      "#9ca3af33",
			opacity: 0.2,
			border:  BorderSolid,
			width:   1,
		},
		{
			name:    "configured type",
			event:   CalendarEvent{Metadata: Metadata{MetaEventType: "deep_clean"}},
			color:   "#10b981",
			bg:      "#10b98133",
			opacity: 0.2,
			border:  BorderSolid,
			width:   1,
		},
		{
			name:    "unknown type falls back to default",
			event:   CalendarEvent{Metadata: Metadata{MetaEventType: "window"}},
			color:   DefaultEventColor,
			bg:      "#3b82f633",
			opacity: 0.2,
			border:  BorderSolid,
			width:   1,
		},
		{
			name:    "unconfirmed halves opacity and dashes border",
			event:   CalendarEvent{Confirmed: ptr(false)},
			color:   DefaultEventColor,
			bg:      "#3b82f61a",
			opacity: 0.1,
			border:  BorderDashed,
			width:   2,
		},
		{
			name:    "unconfirmed external keeps accent color",
			event:   CalendarEvent{Confirmed: ptr(false), Metadata: Metadata{MetaExternal: "true"}},
			color:   DefaultExternalColor,
			bg:      "#7c3aed2d",
			opacity: 0.175,
			border:  BorderDashed,
			width:   3,
		},
		{
			name:    "confirmed true is not a modifier",
			event:   CalendarEvent{Confirmed: ptr(true)},
			color:   DefaultEventColor,
			bg:      "#3b82f633",
			opacity: 0.2,
			border:  BorderSolid,
			width:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ResolveStyle(tt.event, table)
			if got.Color != tt.color {
				t.Fatalf("color: expected %s, got %s", tt.color, got.Color)
			}
			if got.BackgroundColor != tt.bg {
				t.Fatalf("background: expected %s, got %s", tt.bg, got.BackgroundColor)
			}
			if diff := got.BackgroundOpacity - tt.opacity; diff > 1e-9 || diff < -1e-9 {
				t.Fatalf("opacity: expected %v, got %v", tt.opacity, got.BackgroundOpacity)
			}
			if got.BorderStyle != tt.border || got.BorderWidth != tt.width {
				t.Fatalf("border: expected %s/%d, got %s/%d", tt.border, tt.width, got.BorderStyle, got.BorderWidth)
			}
		})
	}

	t.Run("table colors override package defaults", func(t *testing.T) {
		t.Parallel()
		got := ResolveStyle(CalendarEvent{}, StyleTable{DefaultColor: "#000"})
		if got.Color != "#000" || got.BackgroundColor != "#00000033" {
			t.Fatalf("unexpected style %+v", got)
		}
	})
}
