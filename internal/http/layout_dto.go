package http

import (
	"time"

	"github.com/example/cleaning-scheduler/internal/calendar"
	"github.com/example/cleaning-scheduler/internal/viewsession"
)

type eventDTO struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Start       string         `json:"start"`
	End         *string        `json:"end,omitempty"`
	Label       string         `json:"label,omitempty"`
	Confirmed   *bool          `json:"confirmed,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

func toEventDTO(ev calendar.CalendarEvent) eventDTO {
	return eventDTO{
		ID:          ev.ID,
		Title:       ev.Title,
		Description: ev.Description,
		Start:       ev.Start.Format(time.RFC3339),
		End:         formatTimePtr(ev.End),
		Label:       ev.Label,
		Confirmed:   ev.Confirmed,
		Metadata:    ev.Metadata,
	}
}

func toEventDTOs(events []calendar.CalendarEvent) []eventDTO {
	out := make([]eventDTO, 0, len(events))
	for _, ev := range events {
		out = append(out, toEventDTO(ev))
	}
	return out
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

type columnDTO struct {
	Day        string  `json:"day"`
	Resource   string  `json:"resource,omitempty"`
	Name       string  `json:"name,omitempty"`
	Unassigned bool    `json:"unassigned,omitempty"`
	Left       float64 `json:"left"`
	Width      float64 `json:"width"`
}

type boxDTO struct {
	Event           eventDTO `json:"event"`
	Color           string   `json:"color"`
	BackgroundColor string   `json:"background_color"`
	BorderStyle     string   `json:"border_style"`
	BorderWidth     int      `json:"border_width"`
	Column          int      `json:"column"`
	Lane            int      `json:"lane"`
	Lanes           int      `json:"lanes"`
	X               float64  `json:"x"`
	Y               float64  `json:"y"`
	Width           float64  `json:"width"`
	Height          float64  `json:"height"`
	ContinuesBefore bool     `json:"continues_before,omitempty"`
	ContinuesAfter  bool     `json:"continues_after,omitempty"`
	Conflict        bool     `json:"conflict,omitempty"`
	Pending         bool     `json:"pending,omitempty"`
	ReadOnly        bool     `json:"read_only,omitempty"`
}

type nowDTO struct {
	Column int     `json:"column"`
	Y      float64 `json:"y"`
}

type timeGridDTO struct {
	StartHour int         `json:"start_hour"`
	EndHour   int         `json:"end_hour"`
	Top       float64     `json:"top"`
	Height    float64     `json:"height"`
	Width     float64     `json:"width"`
	Columns   []columnDTO `json:"columns"`
	Boxes     []boxDTO    `json:"boxes"`
	Now       []nowDTO    `json:"now,omitempty"`
}

type monthCellDTO struct {
	Day     string     `json:"day"`
	InMonth bool       `json:"in_month"`
	Today   bool       `json:"today,omitempty"`
	Events  []eventDTO `json:"events"`
}

type monthDTO struct {
	Month string           `json:"month"`
	Weeks [][]monthCellDTO `json:"weeks"`
}

type slotPointDTO struct {
	Day     string `json:"day"`
	Minutes int    `json:"minutes"`
	Time    string `json:"time"`
}

type selectionDTO struct {
	Start slotPointDTO `json:"start"`
	End   slotPointDTO `json:"end"`
}

type snapshotDTO struct {
	View      string        `json:"view"`
	Date      string        `json:"date"`
	Zoom      float64       `json:"zoom"`
	Gesture   string        `json:"gesture,omitempty"`
	TimeGrid  *timeGridDTO  `json:"time_grid,omitempty"`
	Month     *monthDTO     `json:"month,omitempty"`
	Selection *selectionDTO `json:"selection,omitempty"`
}

func toSnapshotDTO(snap calendar.Snapshot) snapshotDTO {
	dto := snapshotDTO{
		View:    snap.View.String(),
		Date:    snap.Date.Format(time.DateOnly),
		Zoom:    snap.Zoom,
		Gesture: snap.Gesture,
	}
	if g := snap.TimeGrid; g != nil {
		grid := timeGridDTO{
			StartHour: g.Grid.StartHour(),
			EndHour:   g.Grid.EndHour(),
			Top:       g.Top,
			Height:    g.Height,
			Width:     g.Width,
			Columns:   make([]columnDTO, 0, len(g.Columns)),
			Boxes:     make([]boxDTO, 0, len(g.Boxes)),
		}
		for _, c := range g.Columns {
			grid.Columns = append(grid.Columns, columnDTO{
				Day:        c.Day.Format(time.DateOnly),
				Resource:   c.Resource,
				Name:       c.Name,
				Unassigned: c.Unassigned,
				Left:       c.Left,
				Width:      c.Width,
			})
		}
		for _, b := range g.Boxes {
			grid.Boxes = append(grid.Boxes, boxDTO{
				Event:           toEventDTO(b.Event),
				Color:           b.Style.Color,
				BackgroundColor: b.Style.BackgroundColor,
				BorderStyle:     string(b.Style.BorderStyle),
				BorderWidth:     b.Style.BorderWidth,
				Column:          b.Column,
				Lane:            b.Lane,
				Lanes:           b.Lanes,
				X:               b.X,
				Y:               b.Y,
				Width:           b.Width,
				Height:          b.Height,
				ContinuesBefore: b.ContinuesBefore,
				ContinuesAfter:  b.ContinuesAfter,
				Conflict:        b.Conflict,
				Pending:         b.Pending,
				ReadOnly:        b.ReadOnly,
			})
		}
		for _, n := range g.Now {
			grid.Now = append(grid.Now, nowDTO{Column: n.Column, Y: n.Y})
		}
		dto.TimeGrid = &grid
	}
	if m := snap.Month; m != nil {
		month := monthDTO{Month: m.Month.Format("2006-01")}
		for _, week := range m.Weeks {
			row := make([]monthCellDTO, 0, len(week))
			for _, cell := range week {
				row = append(row, monthCellDTO{
					Day:     cell.Day.Format(time.DateOnly),
					InMonth: cell.InMonth,
					Today:   cell.Today,
					Events:  toEventDTOs(cell.Events),
				})
			}
			month.Weeks = append(month.Weeks, row)
		}
		dto.Month = &month
	}
	if s := snap.Selection; s != nil {
		dto.Selection = &selectionDTO{Start: toSlotPointDTO(s.Start), End: toSlotPointDTO(s.End)}
	}
	return dto
}

func toSlotPointDTO(p calendar.SlotPoint) slotPointDTO {
	return slotPointDTO{Day: p.Day.Format(time.DateOnly), Minutes: p.Minutes, Time: p.Time().Format(time.RFC3339)}
}

type targetDTO struct {
	Kind    string `json:"kind"`
	EventID string `json:"event_id,omitempty"`
}

type modalDTO struct {
	Date      string `json:"date"`
	EndDate   string `json:"end_date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	EventID   string `json:"event_id,omitempty"`
}

func toModalDTO(m calendar.ModalRequest) modalDTO {
	return modalDTO{
		Date:      m.Date.Format(time.DateOnly),
		EndDate:   m.EndDate.Format(time.DateOnly),
		StartTime: m.StartTime,
		EndTime:   m.EndTime,
		EventID:   m.EventID,
	}
}

type outcomeDTO struct {
	Kind      string        `json:"kind"`
	Saved     bool          `json:"saved,omitempty"`
	Reverted  bool          `json:"reverted,omitempty"`
	Event     *eventDTO     `json:"event,omitempty"`
	Selection *selectionDTO `json:"selection,omitempty"`
}

type viewResponse struct {
	ID            string                     `json:"id"`
	Snapshot      snapshotDTO                `json:"snapshot"`
	Target        *targetDTO                 `json:"target,omitempty"`
	Outcome       *outcomeDTO                `json:"outcome,omitempty"`
	Event         *eventDTO                  `json:"event,omitempty"`
	Modals        []modalDTO                 `json:"modals,omitempty"`
	Notifications []viewsession.Notification `json:"notifications,omitempty"`
}

func toViewResponse(id string, res viewsession.Result) viewResponse {
	out := viewResponse{
		ID:            id,
		Snapshot:      toSnapshotDTO(res.Snapshot),
		Notifications: res.Notifications,
	}
	if res.Target != nil {
		out.Target = &targetDTO{Kind: res.Target.Kind.String(), EventID: res.Target.EventID}
	}
	if o := res.Outcome; o != nil {
		dto := outcomeDTO{Kind: string(o.Kind), Saved: o.Saved, Reverted: o.Reverted}
		if o.Event != nil {
			ev := toEventDTO(*o.Event)
			dto.Event = &ev
		}
		if o.Selection != nil {
			dto.Selection = &selectionDTO{Start: toSlotPointDTO(o.Selection.Range.Start), End: toSlotPointDTO(o.Selection.Range.End)}
		}
		out.Outcome = &dto
	}
	if res.Event != nil {
		ev := toEventDTO(*res.Event)
		out.Event = &ev
	}
	for _, m := range res.Modals {
		out.Modals = append(out.Modals, toModalDTO(m))
	}
	return out
}
