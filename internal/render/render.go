// Package render draws calendar snapshots as PNG images.
package render

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"strconv"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"

	"github.com/example/cleaning-scheduler/internal/calendar"
)

// ErrEmptySnapshot is returned when a snapshot carries neither a time grid nor a month.
var ErrEmptySnapshot = errors.New("render: snapshot has no layout")

// Options tunes the month view, which carries no pixel geometry of its own.
type Options struct {
	MonthCellWidth  float64
	MonthCellHeight float64
	// MaxMonthEvents caps the titles listed per month cell.
	MaxMonthEvents int
	// Styles colors the month view markers; time grid boxes arrive resolved.
	Styles calendar.StyleTable
}

// DefaultOptions returns the sizes used by the HTTP snapshot endpoint.
func DefaultOptions() Options {
	return Options{MonthCellWidth: 140, MonthCellHeight: 96, MaxMonthEvents: 4}
}

var (
	background = color.RGBA{0xff, 0xff, 0xff, 0xff}
	gridLine   = color.RGBA{0xe0, 0xe0, 0xe0, 0xff}
	hourLine   = color.RGBA{0xc8, 0xc8, 0xc8, 0xff}
	labelColor = color.RGBA{0x44, 0x44, 0x44, 0xff}
	mutedColor = color.RGBA{0xa0, 0xa0, 0xa0, 0xff}
	nowColor   = color.RGBA{0xe5, 0x39, 0x35, 0xff}
	todayFill  = color.RGBA{0xff, 0xf8, 0xe1, 0xff}
	conflictC  = color.RGBA{0xd3, 0x2f, 0x2f, 0xff}
)

// PNG renders snap and writes the encoded image to w.
func PNG(w io.Writer, snap calendar.Snapshot, opts Options) error {
	var dc *gg.Context
	switch {
	case snap.TimeGrid != nil:
		dc = drawTimeGrid(*snap.TimeGrid)
	case snap.Month != nil:
		dc = drawMonth(*snap.Month, opts)
	default:
		return ErrEmptySnapshot
	}
	if err := dc.EncodePNG(w); err != nil {
		return fmt.Errorf("render: encode png: %w", err)
	}
	return nil
}

func drawTimeGrid(l calendar.TimeGridLayout) *gg.Context {
	width := max(int(l.Width+0.5), 1)
	height := max(int(l.Top+l.Height+0.5), 1)
	dc := gg.NewContext(width, height)
	dc.SetColor(background)
	dc.Clear()
	dc.SetFontFace(basicfont.Face7x13)

	gutter := l.Width
	if len(l.Columns) > 0 {
		gutter = l.Columns[0].Left
	}

	// Hour rows and gutter labels.
	dc.SetLineWidth(1)
	for h := l.Grid.StartHour(); h <= l.Grid.EndHour(); h++ {
		y := l.Top + l.Grid.MinutesToPixels(float64(h*60))
		dc.SetColor(hourLine)
		dc.DrawLine(gutter, y, l.Width, y)
		dc.Stroke()
		if h < l.Grid.EndHour() {
			dc.SetColor(labelColor)
			dc.DrawStringAnchored(fmt.Sprintf("%02d:00", h), gutter-4, y+2, 1, 1)
		}
	}

	// Column separators and headers.
	for _, c := range l.Columns {
		dc.SetColor(gridLine)
		dc.DrawLine(c.Left, 0, c.Left, l.Top+l.Height)
		dc.Stroke()
		dc.SetColor(labelColor)
		dc.DrawStringAnchored(columnHeader(c.Column, l.View), c.Left+c.Width/2, l.Top/2, 0.5, 0.5)
	}
	dc.SetColor(hourLine)
	dc.DrawLine(0, l.Top, l.Width, l.Top)
	dc.Stroke()

	for _, b := range l.Boxes {
		drawBox(dc, b)
	}

	dc.SetDash()
	dc.SetLineWidth(2)
	dc.SetColor(nowColor)
	for _, m := range l.Now {
		if m.Column < 0 || m.Column >= len(l.Columns) {
			continue
		}
		c := l.Columns[m.Column]
		dc.DrawLine(c.Left, m.Y, c.Left+c.Width, m.Y)
		dc.Stroke()
		dc.DrawCircle(c.Left, m.Y, 3)
		dc.Fill()
	}
	return dc
}

func drawBox(dc *gg.Context, b calendar.EventBox) {
	const inset = 1
	x, y := b.X+inset, b.Y+inset
	w, h := b.Width-2*inset, b.Height-2*inset
	if w <= 0 || h <= 0 {
		return
	}
	base := parseColor(b.Style.Color)
	opacity := b.Style.BackgroundOpacity
	if b.Pending {
		opacity /= 2
	}

	dc.SetDash()
	dc.DrawRectangle(x, y, w, h)
	dc.SetColor(withOpacity(base, opacity))
	dc.Fill()

	border := base
	if b.Conflict {
		border = conflictC
	}
	dc.SetLineWidth(float64(max(b.Style.BorderWidth, 1)))
	if b.Style.BorderStyle == calendar.BorderDashed {
		dc.SetDash(4, 3)
	}
	dc.DrawRectangle(x, y, w, h)
	dc.SetColor(border)
	dc.Stroke()
	dc.SetDash()

	dc.Push()
	dc.DrawRectangle(x, y, w, h)
	dc.Clip()
	dc.SetColor(labelColor)
	label := b.Event.Title
	if b.ContinuesBefore {
		label = "^ " + label
	}
	dc.DrawString(label, x+3, y+12)
	if h > 28 {
		dc.SetColor(mutedColor)
		dc.DrawString(b.Event.Start.Format("15:04"), x+3, y+25)
	}
	dc.ResetClip()
	dc.Pop()
}

func drawMonth(m calendar.MonthLayout, opts Options) *gg.Context {
	def := DefaultOptions()
	if opts.MonthCellWidth <= 0 {
		opts.MonthCellWidth = def.MonthCellWidth
	}
	if opts.MonthCellHeight <= 0 {
		opts.MonthCellHeight = def.MonthCellHeight
	}
	if opts.MaxMonthEvents <= 0 {
		opts.MaxMonthEvents = def.MaxMonthEvents
	}
	const header = float64(calendar.DefaultHeaderHeight)
	cw, ch := opts.MonthCellWidth, opts.MonthCellHeight
	dc := gg.NewContext(int(7*cw+0.5), int(header+float64(len(m.Weeks))*ch+0.5))
	dc.SetColor(background)
	dc.Clear()
	dc.SetFontFace(basicfont.Face7x13)

	dc.SetColor(labelColor)
	dc.DrawStringAnchored(m.Month.Format("January 2006"), 7*cw/2, header/2, 0.5, 0.5)

	dc.SetLineWidth(1)
	for wi, week := range m.Weeks {
		for di, cell := range week {
			x, y := float64(di)*cw, header+float64(wi)*ch
			if cell.Today {
				dc.DrawRectangle(x, y, cw, ch)
				dc.SetColor(todayFill)
				dc.Fill()
			}
			dc.DrawRectangle(x, y, cw, ch)
			dc.SetColor(gridLine)
			dc.Stroke()

			if cell.InMonth {
				dc.SetColor(labelColor)
			} else {
				dc.SetColor(mutedColor)
			}
			dc.DrawString(strconv.Itoa(cell.Day.Day()), x+4, y+14)

			for i, ev := range cell.Events {
				ty := y + 30 + float64(i)*14
				if i == opts.MaxMonthEvents-1 && len(cell.Events) > opts.MaxMonthEvents {
					dc.SetColor(mutedColor)
					dc.DrawString(fmt.Sprintf("+%d more", len(cell.Events)-i), x+4, ty)
					break
				}
				style := calendar.ResolveStyle(ev, opts.Styles)
				dc.SetColor(parseColor(style.Color))
				dc.DrawRectangle(x+4, ty-8, 6, 6)
				dc.Fill()
				dc.SetColor(labelColor)
				dc.DrawString(ev.Title, x+14, ty)
			}
		}
	}
	return dc
}

func columnHeader(c calendar.Column, view calendar.View) string {
	if c.Name != "" {
		return c.Name
	}
	if view == calendar.ViewDay {
		return c.Day.Format("Mon Jan 2")
	}
	return c.Day.Format("Mon 2")
}

func parseColor(hex string) color.RGBA {
	r, g, b, ok := calendar.ParseHexColor(hex)
	if !ok {
		r, g, b, _ = calendar.ParseHexColor(calendar.DefaultEventColor)
	}
	return color.RGBA{r, g, b, 0xff}
}

// withOpacity returns c as a non-premultiplied color with the given alpha.
func withOpacity(c color.RGBA, opacity float64) color.NRGBA {
	opacity = min(max(opacity, 0), 1)
	return color.NRGBA{c.R, c.G, c.B, uint8(opacity*255 + 0.5)}
}
