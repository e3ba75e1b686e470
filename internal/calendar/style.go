package calendar

import (
	"fmt"
	"strconv"
	"strings"
)

// BlockType is the reserved event type for non-bookable blackout periods.
const BlockType = "block"

const (
	DefaultEventColor    = "#3b82f6"
	DefaultExternalColor = "#7c3aed"
	BlockColor           = "#9ca3af"

	defaultOpacity  = 0.2
	externalOpacity = 0.35
)

// BorderStyle is the stroke pattern of an event card.
type BorderStyle string

const (
	BorderSolid  BorderStyle = "solid"
	BorderDashed BorderStyle = "dashed"
)

// TimeSlot is a window, in minutes from midnight, an event type may be booked in.
type TimeSlot struct {
	Start int
	End   int
}

// Contains reports whether [start, end) lies inside the slot.
func (s TimeSlot) Contains(start, end int) bool {
	return start >= s.Start && end <= s.End
}

// EventType describes a configured job type.
type EventType struct {
	Color           string
	DurationMinutes int
	AllowedSlots    []TimeSlot
}

// StyleTable is the type-to-color configuration consulted by ResolveStyle.
type StyleTable struct {
	Types         map[string]EventType
	DefaultColor  string
	ExternalColor string
}

// EventStyle is the resolved presentation of an event card.
type EventStyle struct {
	Color             string
	BackgroundColor   string
	BackgroundOpacity float64
	BorderStyle       BorderStyle
	BorderWidth       int
}

// ResolveStyle maps an event to its color and border treatment.
func ResolveStyle(e CalendarEvent, table StyleTable) EventStyle {
	style := EventStyle{
		Color:             firstNonEmpty(table.DefaultColor, DefaultEventColor),
		BackgroundOpacity: defaultOpacity,
		BorderStyle:       BorderSolid,
		BorderWidth:       1,
	}

	eventType := e.Metadata.String(MetaEventType)
	switch {
	case e.Metadata.Bool(MetaExternal):
		style.Color = firstNonEmpty(table.ExternalColor, DefaultExternalColor)
		style.BackgroundOpacity = externalOpacity
		style.BorderWidth = 2
	case eventType == BlockType:
		style.Color = BlockColor
	case eventType != "":
		if t, ok := table.Types[eventType]; ok && t.Color != "" {
			style.Color = t.Color
		}
	}

	if e.Confirmed != nil && !*e.Confirmed {
		style.BackgroundOpacity /= 2
		style.BorderStyle = BorderDashed
		style.BorderWidth++
	}

	style.BackgroundColor = withAlpha(style.Color, style.BackgroundOpacity)
	return style
}

// withAlpha renders a #rgb or #rrggbb color as #rrggbbaa. Unparseable colors are returned as is.
func withAlpha(color string, opacity float64) string {
	r, g, b, ok := ParseHexColor(color)
	if !ok {
		return color
	}
	a := int(opacity*255 + 0.5)
	return fmt.Sprintf("#%02x%02x%02x%02x", r, g, b, a)
}

// ParseHexColor decodes #rgb and #rrggbb colors.
func ParseHexColor(color string) (r, g, b uint8, ok bool) {
	hex := strings.TrimPrefix(strings.TrimSpace(color), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return 0, 0, 0, false
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, 0, 0, false
	}
	return uint8(v >> 16), uint8(v >> 8), uint8(v), true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
